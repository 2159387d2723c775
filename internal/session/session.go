package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Skotchmaster/storefront/internal/models"
)

var (
	ErrNoSession = errors.New("no session")
	ErrExpired   = errors.New("session expired")
)

// Session is the credential the storefront holds for a signed-in customer.
type Session struct {
	Token     string
	User      models.User
	ExpiresAt time.Time
}

func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

type TokenClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// FromToken builds a session from a backend-issued JWT. The signature is not
// verified: the backend owns the key and re-checks every call. Only the expiry
// and subject are read so stale tokens can be dropped early.
func FromToken(token string, user models.User) (*Session, error) {
	if token == "" {
		return nil, ErrNoSession
	}
	s := &Session{Token: token, User: user}

	var claims TokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		// opaque tokens are fine, they just never expire client-side
		return s, nil
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	if s.User.Username == "" {
		s.User.Username = claims.Subject
	}
	if s.User.Role == "" {
		s.User.Role = claims.Role
	}
	return s, nil
}
