package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/session"
	"github.com/Skotchmaster/storefront/pkg/apiclient"
)

var (
	errLineNotFound    = errors.New("cart line not found")
	errCheckoutAborted = errors.New("checkout aborted")
)

// backendError turns a marketplace call failure into the response the browser
// sees. Backend 4xx statuses and messages pass through verbatim.
func backendError(l *slog.Logger, event string, err error) error {
	if apiclient.IsTransport(err) {
		l.Error(event, "status", 502, "reason", "marketplace unreachable", "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "marketplace unavailable")
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		l.Warn(event, "status", 504, "reason", "request cancelled", "error", err)
		return echo.NewHTTPError(http.StatusGatewayTimeout, "marketplace timeout")
	}

	status := apiclient.StatusCode(err)
	switch {
	case status == 0:
		l.Error(event, "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	case status >= 500:
		l.Error(event, "status", 502, "backend_status", status, "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, apiclient.Message(err))
	default:
		l.Warn(event, "status", status, "error", err)
		return echo.NewHTTPError(status, apiclient.Message(err))
	}
}

// sessionBackendError is backendError for calls made with the customer's
// token. A 401 means the backend no longer accepts it, so the session ends.
func sessionBackendError(c echo.Context, m *session.Manager, l *slog.Logger, event string, err error) error {
	if apiclient.IsUnauthorized(err) {
		if ierr := m.Invalidate(c.Request().Context(), sessionID(c), session.ReasonUnauthorized); ierr != nil {
			l.Error("session_invalidate_failed", "error", ierr)
		}
		l.Info(event, "status", 401, "reason", "token rejected by backend")
		return echo.NewHTTPError(http.StatusUnauthorized, "session expired, please log in again")
	}
	return backendError(l, event, err)
}

func exhibitionMode(c echo.Context, storeName string) error {
	return c.JSON(http.StatusForbidden, map[string]string{
		"mode":    "exhibition",
		"message": storeName + " is not taking orders",
	})
}

func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func parseIntDefault(raw string, def int) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
