package handler

import (
	"errors"
	"net/http"
	"strings"

	"caltrack/internal/middleware"
	"caltrack/internal/model"
	"caltrack/internal/store"
	"caltrack/pkg/logger"
	"caltrack/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Register creates a user from the allowed fields only and signs it in.
// Validation reports every failing field at once, ActiveRecord style.
func (h *Handler) Register(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RegisterCounter.Inc()

	var req struct {
		FirstName            string `json:"first_name"`
		LastName             string `json:"last_name"`
		Email                string `json:"email"`
		Password             string `json:"password"`
		PasswordConfirmation string `json:"password_confirmation"`
		Role                 string `json:"type"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse registration request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	var failures []string
	if strings.TrimSpace(req.FirstName) == "" {
		failures = append(failures, "First name can't be blank")
	}
	if strings.TrimSpace(req.LastName) == "" {
		failures = append(failures, "Last name can't be blank")
	}
	if strings.TrimSpace(req.Email) == "" {
		failures = append(failures, "Email can't be blank")
	} else {
		taken, err := h.store.EmailTaken(req.Email)
		if err != nil {
			log.Error("Failed to check email uniqueness", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
		}
		if taken {
			failures = append(failures, "Email has already been taken")
		}
	}
	if req.Password == "" {
		failures = append(failures, "Password can't be blank")
	}
	if req.Password != req.PasswordConfirmation {
		failures = append(failures, "Password confirmation doesn't match Password")
	}
	if !model.ValidRole(req.Role) {
		failures = append(failures, "Type is not included in the list")
	}

	if len(failures) > 0 {
		prometheus.RecordAuthError("validation_failed")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": strings.Join(failures, ", ")})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		prometheus.RecordAuthError("password_hash_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	user := model.User{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PasswordHash: string(hashedPassword),
		Role:         req.Role,
	}

	if err := h.store.CreateUser(&user); err != nil {
		log.Error("Failed to create user", zap.Error(err))
		prometheus.RecordAuthError("user_creation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	cookie, err := h.sessions.Issue(user.ID)
	if err != nil {
		log.Error("Failed to issue session", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}
	c.SetCookie(cookie)
	prometheus.IncreaseActiveSessions()

	log.Info("User registered", zap.Uint("user_id", user.ID), zap.String("role", user.Role))
	return c.JSON(http.StatusOK, echo.Map{"user_id": user.ID})
}

// Login authenticates by case-insensitive email and password. The error body
// never reveals whether the email exists.
func (h *Handler) Login(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.LoginCounter.Inc()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	user, err := h.store.FindUserByEmail(req.Email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Error("Failed to look up user", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
		}
		prometheus.RecordAuthError("invalid_credentials")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Email or password invalid"})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		prometheus.RecordAuthError("invalid_credentials")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Email or password invalid"})
	}

	cookie, err := h.sessions.Issue(user.ID)
	if err != nil {
		log.Error("Failed to issue session", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
	}
	c.SetCookie(cookie)
	prometheus.IncreaseActiveSessions()

	log.Info("User logged in", zap.Uint("user_id", user.ID))
	return c.JSON(http.StatusOK, echo.Map{"user_id": user.ID})
}

// Logout clears the session cookie. It succeeds whether or not a session was
// present.
func (h *Handler) Logout(c echo.Context) error {
	prometheus.LogoutCounter.Inc()
	if _, ok := middleware.ActorFrom(c); ok {
		prometheus.DecreaseActiveSessions()
	}
	c.SetCookie(h.sessions.Expire())
	return c.JSON(http.StatusOK, echo.Map{"message": "You successfully logged out"})
}
