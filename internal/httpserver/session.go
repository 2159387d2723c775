package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/cart"
	"github.com/Skotchmaster/storefront/internal/checkout"
	"github.com/Skotchmaster/storefront/internal/session"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

const (
	SessionCookieName = "sid"
	sessionCookieAge  = 30 * 24 * time.Hour

	ctxSessionID    = "sid"
	ctxSession      = "session"
	ctxCookieSecure = "sid_secure"
)

// SessionCookie makes sure every API request carries a browser session id.
// The id keys the server-side cart and, after sign-in, the stored session.
func SessionCookie(secure bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := ""
			if ck, err := c.Cookie(SessionCookieName); err == nil {
				if _, err := uuid.Parse(ck.Value); err == nil {
					id = ck.Value
				}
			}
			c.Set(ctxCookieSecure, secure)
			if id == "" {
				setSessionID(c, uuid.NewString())
			} else {
				c.Set(ctxSessionID, id)
			}
			return next(c)
		}
	}
}

// setSessionID makes id the browser's session id for the rest of the request
// and sends it as the sid cookie.
func setSessionID(c echo.Context, id string) {
	secure, _ := c.Get(ctxCookieSecure).(bool)
	c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(sessionCookieAge.Seconds()),
	})
	c.Set(ctxSessionID, id)
}

// rotateSessionID moves the browser to a fresh session id and invalidates the
// old one, so an id known before sign-in or sign-out is worthless afterwards.
// When carts is non-nil the cart follows the browser to the new id.
func rotateSessionID(c echo.Context, m *session.Manager, carts *cart.Registry, reason session.Reason) (string, error) {
	old, id := sessionID(c), uuid.NewString()
	if carts != nil {
		carts.Rename(old, id)
	}
	if err := m.Invalidate(c.Request().Context(), old, reason); err != nil {
		return "", err
	}
	setSessionID(c, id)
	return id, nil
}

func sessionID(c echo.Context) string {
	id, _ := c.Get(ctxSessionID).(string)
	return id
}

// RequireSession answers 401 when the browser has no live signed-in session,
// so the front end can send the user to the login view.
func RequireSession(m *session.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			l := logging.FromContext(ctx).With("svc", "require_session")

			s, err := m.Load(ctx, sessionID(c))
			if err != nil {
				if errors.Is(err, session.ErrNoSession) || errors.Is(err, session.ErrExpired) {
					l.Info("session_required", "status", 401, "reason", err.Error())
					return echo.NewHTTPError(http.StatusUnauthorized, "login required")
				}
				l.Error("session_load_failed", "status", 500, "error", err)
				return echo.NewHTTPError(http.StatusInternalServerError, "cannot load session")
			}
			c.Set(ctxSession, s)
			return next(c)
		}
	}
}

func currentSession(c echo.Context) *session.Session {
	s, _ := c.Get(ctxSession).(*session.Session)
	return s
}

// optionalSession returns the signed-in session or nil for anonymous browsers.
func optionalSession(ctx context.Context, m *session.Manager, id string) *session.Session {
	s, err := m.Load(ctx, id)
	if err != nil {
		if !errors.Is(err, session.ErrNoSession) && !errors.Is(err, session.ErrExpired) {
			logging.FromContext(ctx).Warn("session_load_failed", "error", err)
		}
		return nil
	}
	return s
}

// DropOnInvalidate forgets the cart and checkout state of a session once it is
// logged out, rejected by the backend or expired.
func DropOnInvalidate(carts *cart.Registry, tracker *checkout.Tracker) func(session.Event) {
	return func(ev session.Event) {
		carts.Drop(ev.SessionID)
		tracker.Reset(ev.SessionID)
	}
}
