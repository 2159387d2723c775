package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/session"
	"github.com/Skotchmaster/storefront/pkg/apiclient"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

// CustomerHTTP serves the signed-in customer's portal. Every route sits
// behind RequireSession.
type CustomerHTTP struct {
	API      *apiclient.Client
	Sessions *session.Manager
}

func (h *CustomerHTTP) Profile(c echo.Context) error {
	s := currentSession(c)
	v := map[string]any{"user": s.User}
	if !s.ExpiresAt.IsZero() {
		v["expires_at"] = s.ExpiresAt
	}
	return c.JSON(http.StatusOK, v)
}

func (h *CustomerHTTP) Points(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "customer.points")
	s := currentSession(c)

	points, err := h.API.WithToken(s.Token).CustomerPoints(ctx, s.User.Email)
	if err != nil {
		return sessionBackendError(c, h.Sessions, l, "points_failed", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"email": s.User.Email, "points": points})
}

func (h *CustomerHTTP) Dashboard(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "customer.dashboard")

	stats, err := h.API.WithToken(currentSession(c).Token).Dashboard(ctx)
	if err != nil {
		return sessionBackendError(c, h.Sessions, l, "dashboard_failed", err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *CustomerHTTP) Orders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "customer.orders")

	orders, err := h.API.WithToken(currentSession(c).Token).Orders(ctx)
	if err != nil {
		return sessionBackendError(c, h.Sessions, l, "orders_failed", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"data": orders})
}
