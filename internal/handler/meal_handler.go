package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"caltrack/internal/middleware"
	"caltrack/internal/model"
	"caltrack/internal/policy"
	"caltrack/internal/store"
	"caltrack/pkg/logger"
	"caltrack/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// calorieValue accepts a JSON number or a numeric string. The legacy schema
// stored calories as text and the old frontend still sends strings.
type calorieValue int64

func (v *calorieValue) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*v = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("calories must be numeric: %w", err)
	}
	*v = calorieValue(n)
	return nil
}

// CreateMeal logs a meal owned by user_id. Self or admin.
func (h *Handler) CreateMeal(c echo.Context) error {
	log := logger.FromEcho(c)
	actor, _ := middleware.ActorFrom(c)

	var req struct {
		UserID      uint         `json:"user_id"`
		Description string       `json:"description"`
		Calories    calorieValue `json:"calories"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if _, err := h.store.FindUserByID(req.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "User not found"})
		}
		log.Error("Failed to load meal owner", zap.Error(err), zap.Uint("user_id", req.UserID))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create meal"})
	}

	if !policy.CanCreateMealFor(actor, req.UserID) {
		prometheus.RecordPolicyDenial("create_meal")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "You're not allowed to log meals for this user"})
	}

	if req.Calories < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Calories must be greater than or equal to 0"})
	}

	meal := model.Meal{
		UserID:      req.UserID,
		Description: req.Description,
		Calories:    int64(req.Calories),
	}
	if err := h.store.CreateMeal(&meal); err != nil {
		log.Error("Failed to create meal", zap.Error(err), zap.Uint("user_id", req.UserID))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create meal"})
	}

	prometheus.RecordMealOperation("create")
	log.Info("Meal created",
		zap.Uint("meal_id", meal.ID),
		zap.Uint("user_id", meal.UserID),
		zap.Uint("actor_id", actor.ID))
	return c.JSON(http.StatusOK, meal.SafeView())
}

// DeleteMeal removes a meal. Owner or admin.
func (h *Handler) DeleteMeal(c echo.Context) error {
	log := logger.FromEcho(c)
	actor, _ := middleware.ActorFrom(c)

	id, err := parseID(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Meal not found"})
	}

	meal, err := h.store.FindMealByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Meal not found"})
		}
		log.Error("Failed to load meal", zap.Error(err), zap.Uint("meal_id", id))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete meal"})
	}

	if !policy.CanDeleteMeal(actor, *meal) {
		prometheus.RecordPolicyDenial("delete_meal")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "You're not allowed to delete this meal"})
	}

	if err := h.store.DeleteMeal(meal.ID); err != nil {
		log.Error("Failed to delete meal", zap.Error(err), zap.Uint("meal_id", meal.ID))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete meal"})
	}

	prometheus.RecordMealOperation("delete")
	log.Info("Meal deleted", zap.Uint("meal_id", meal.ID), zap.Uint("actor_id", actor.ID))
	return c.JSON(http.StatusOK, echo.Map{"meal_id": meal.ID})
}
