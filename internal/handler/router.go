package handler

import (
	"caltrack/internal/middleware"
	"caltrack/internal/session"
	"caltrack/internal/store"

	"github.com/labstack/echo/v4"
)

// RegisterRoutes mounts every route on the Echo instance. The actor is
// resolved once per request for the whole /api/v1 surface; the protected
// routes additionally require it.
func RegisterRoutes(e *echo.Echo, h *Handler, sessions *session.Manager, st *store.Store) {
	e.GET("/health", HealthCheck)
	e.GET("/metrics", MetricsHandler)

	api := e.Group("/api/v1")
	api.Use(middleware.LoadActor(sessions, st))

	// Public routes - no authentication required
	api.POST("/register", h.Register)
	api.POST("/login", h.Login)
	api.POST("/logout", h.Logout)

	// Protected routes
	users := api.Group("/users")
	users.Use(middleware.RequireActor)
	users.GET("", h.ListUsers)
	users.GET("/:id", h.GetUser)
	users.PATCH("/:id", h.UpdateUser)

	meals := api.Group("/meals")
	meals.Use(middleware.RequireActor)
	meals.POST("", h.CreateMeal)
	meals.DELETE("/:id", h.DeleteMeal)

	// Route all non data requests to the frontend app
	e.GET("/*", h.Frontend)
}
