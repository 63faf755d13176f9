package middleware

import (
	"net/http"

	"caltrack/internal/model"
	"caltrack/internal/session"
	"caltrack/internal/store"
	"caltrack/pkg/logger"
	"caltrack/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const actorKey = "actor"

// LoadActor resolves the session cookie into an actor exactly once per
// request and stores it on the context. Requests without a valid session
// continue unauthenticated; RequireActor decides whether that is an error.
func LoadActor(sessions *session.Manager, users *store.Store) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(sessions.CookieName())
			if err != nil || cookie.Value == "" {
				return next(c)
			}

			userID, err := sessions.Resolve(cookie.Value)
			if err != nil {
				logger.FromEcho(c).Debug("Invalid session cookie", zap.Error(err))
				prometheus.RecordAuthError("invalid_session")
				return next(c)
			}

			user, err := users.FindUserByID(userID)
			if err != nil {
				// Session refers to a user that no longer exists
				prometheus.RecordAuthError("stale_session")
				return next(c)
			}

			c.Set(actorKey, *user)
			return next(c)
		}
	}
}

// RequireActor rejects unauthenticated requests with 401.
func RequireActor(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok := ActorFrom(c); !ok {
			prometheus.RecordAuthError("missing_session")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "you need to be logged in to see this page"})
		}
		return next(c)
	}
}

// ActorFrom returns the authenticated actor stored on the context, if any.
func ActorFrom(c echo.Context) (model.User, bool) {
	actor, ok := c.Get(actorKey).(model.User)
	return actor, ok
}
