package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"caltrack/internal/middleware"
	"caltrack/internal/policy"
	"caltrack/internal/store"
	"caltrack/pkg/logger"
	"caltrack/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ListUsers returns every user with their meal count. Manager and admin only.
func (h *Handler) ListUsers(c echo.Context) error {
	log := logger.FromEcho(c)
	actor, _ := middleware.ActorFrom(c)

	if !policy.CanListUsers(actor) {
		prometheus.RecordPolicyDenial("list_users")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "You're not allowed to list users"})
	}

	summaries, err := h.store.ListUsersWithMealCount()
	if err != nil {
		log.Error("Failed to list users", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list users"})
	}

	return c.JSON(http.StatusOK, summaries)
}

// GetUser returns the safe view of one user with their meals, most recent
// first. Existence is checked before permission.
func (h *Handler) GetUser(c echo.Context) error {
	log := logger.FromEcho(c)
	actor, _ := middleware.ActorFrom(c)

	id, err := parseID(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "User not found"})
	}

	user, err := h.store.GetUserWithMeals(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "User not found"})
		}
		log.Error("Failed to load user", zap.Error(err), zap.Uint("user_id", id))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load user"})
	}

	if !policy.CanViewUser(actor, user.ID) {
		prometheus.RecordPolicyDenial("view_user")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "You're not allowed to view this user"})
	}

	return c.JSON(http.StatusOK, user.SafeView())
}

// UpdateUser updates the mutable profile fields (first_name, last_name,
// daily_limit) of a user. Self, manager or admin.
func (h *Handler) UpdateUser(c echo.Context) error {
	log := logger.FromEcho(c)
	actor, _ := middleware.ActorFrom(c)

	id, err := parseID(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "User not found"})
	}

	var req struct {
		FirstName  *string `json:"first_name"`
		LastName   *string `json:"last_name"`
		DailyLimit *int64  `json:"daily_limit"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if _, err := h.store.FindUserByID(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "User not found"})
		}
		log.Error("Failed to load user", zap.Error(err), zap.Uint("user_id", id))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load user"})
	}

	if !policy.CanUpdateUser(actor, id) {
		prometheus.RecordPolicyDenial("update_user")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "You're not allowed to update this user"})
	}

	var failures []string
	if req.FirstName != nil && strings.TrimSpace(*req.FirstName) == "" {
		failures = append(failures, "First name can't be blank")
	}
	if req.LastName != nil && strings.TrimSpace(*req.LastName) == "" {
		failures = append(failures, "Last name can't be blank")
	}
	if req.DailyLimit != nil && *req.DailyLimit < 0 {
		failures = append(failures, "Daily limit must be greater than or equal to 0")
	}
	if len(failures) > 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": strings.Join(failures, ", ")})
	}

	if _, err := h.store.UpdateUserProfile(id, req.FirstName, req.LastName, req.DailyLimit); err != nil {
		log.Error("Failed to update user", zap.Error(err), zap.Uint("user_id", id))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update user"})
	}

	user, err := h.store.GetUserWithMeals(id)
	if err != nil {
		log.Error("Failed to reload user", zap.Error(err), zap.Uint("user_id", id))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update user"})
	}

	log.Info("User profile updated", zap.Uint("user_id", id), zap.Uint("actor_id", actor.ID))
	return c.JSON(http.StatusOK, user.SafeView())
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
