package session

import (
	"errors"
	"net/http"
	"time"

	"caltrack/pkg/config"

	"github.com/golang-jwt/jwt/v4"
)

// ErrInvalidSession is returned when a cookie is missing, malformed, expired
// or carries a bad signature.
var ErrInvalidSession = errors.New("invalid session")

// Claims is the signed payload of the session cookie. It carries exactly the
// signed-in user's id.
type Claims struct {
	UserID uint `json:"user_id"`
	jwt.RegisteredClaims
}

// Manager issues and resolves signed, stateless session cookies. There is no
// server-side session table; expiry is absolute from issuance.
type Manager struct {
	signingKey []byte
	ttl        time.Duration
	cookieName string
	secure     bool
}

// NewManager creates a session manager from configuration.
func NewManager(cfg config.SessionConfig) *Manager {
	return &Manager{
		signingKey: []byte(cfg.SigningKey),
		ttl:        cfg.TTL,
		cookieName: cfg.CookieName,
		secure:     cfg.SecureCookie,
	}
}

// CookieName returns the name of the session cookie.
func (m *Manager) CookieName() string {
	return m.cookieName
}

// Issue creates a session cookie for the given user id.
func (m *Manager) Issue(userID uint) (*http.Cookie, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.signingKey)
	if err != nil {
		return nil, err
	}

	return &http.Cookie{
		Name:     m.cookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// Resolve validates a cookie value and returns the user id it was issued for.
func (m *Manager) Resolve(value string) (uint, error) {
	token, err := jwt.ParseWithClaims(value, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSession
		}
		return m.signingKey, nil
	})
	if err != nil {
		return 0, ErrInvalidSession
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == 0 {
		return 0, ErrInvalidSession
	}
	return claims.UserID, nil
}

// Expire returns a cookie that clears the session on the client.
func (m *Manager) Expire() *http.Cookie {
	return &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
