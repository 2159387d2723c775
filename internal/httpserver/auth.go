package httpserver

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/cart"
	"github.com/Skotchmaster/storefront/internal/middleware/csrf"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/session"
	"github.com/Skotchmaster/storefront/pkg/apiclient"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type AuthHTTP struct {
	API      *apiclient.Client
	Sessions *session.Manager
	Carts    *cart.Registry
	// CSRF, when set, gets a fresh token whenever the session id changes.
	CSRF *csrf.Guard
}

// startSession stores the backend token under a freshly minted session id.
// The anonymous cart is carried over.
func (h *AuthHTTP) startSession(c echo.Context, res *apiclient.AuthResponse) (*session.Session, error) {
	s, err := session.FromToken(res.Token, res.User())
	if err != nil {
		return nil, err
	}
	id, err := rotateSessionID(c, h.Sessions, h.Carts, session.ReasonRotated)
	if err != nil {
		return nil, err
	}
	if err := h.Sessions.Save(c.Request().Context(), id, s); err != nil {
		return nil, err
	}
	return s, h.rotateCSRF(c)
}

func (h *AuthHTTP) rotateCSRF(c echo.Context) error {
	if h.CSRF == nil {
		return nil
	}
	return h.CSRF.Rotate(c)
}

type authView struct {
	User          models.User `json:"user"`
	Authenticated bool        `json:"authenticated"`
	Message       string      `json:"message,omitempty"`
}

// Signup registers a customer account. The storefront only creates customers
// whatever role the body asks for.
func (h *AuthHTTP) Signup(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.signup")

	var req apiclient.SignupRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("signup_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Password == "" || !strings.Contains(req.Email, "@") {
		l.Warn("signup_failed", "status", 400, "reason", "missing fields")
		return echo.NewHTTPError(http.StatusBadRequest, "username, valid email and password are required")
	}
	req.Role = apiclient.RoleCustomer

	res, err := h.API.Signup(ctx, req)
	if err != nil {
		return backendError(l, "signup_failed", err)
	}

	v := authView{User: res.User(), Message: res.Message}
	if v.User.Username == "" {
		v.User.Username = req.Username
	}
	if v.User.Email == "" {
		v.User.Email = req.Email
	}
	if res.Token != "" {
		s, err := h.startSession(c, res)
		if err != nil {
			l.Error("signup_failed", "status", 500, "reason", "cannot store session", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot store session")
		}
		v.User, v.Authenticated = s.User, true
	}

	l.Info("signup_success", "authenticated", v.Authenticated)
	return c.JSON(http.StatusCreated, v)
}

func (h *AuthHTTP) Signin(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.signin")

	var req apiclient.SigninRequest
	if err := c.Bind(&req); err != nil || req.Username == "" || req.Password == "" {
		l.Warn("signin_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "username and password are required")
	}

	res, err := h.API.Signin(ctx, req)
	if err != nil {
		return backendError(l, "signin_failed", err)
	}
	if res.Token == "" {
		l.Error("signin_failed", "status", 502, "reason", "backend returned no token")
		return echo.NewHTTPError(http.StatusBadGateway, "login failed")
	}

	s, err := h.startSession(c, res)
	if err != nil {
		l.Error("signin_failed", "status", 500, "reason", "cannot store session", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot store session")
	}

	l.Info("signin_success", "user_id", s.User.ID)
	return c.JSON(http.StatusOK, authView{User: s.User, Authenticated: true})
}

func (h *AuthHTTP) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.logout")

	if _, err := rotateSessionID(c, h.Sessions, nil, session.ReasonLogout); err != nil {
		l.Error("logout_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot end session")
	}
	if err := h.rotateCSRF(c); err != nil {
		l.Error("logout_failed", "status", 500, "reason", "csrf token", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot end session")
	}
	return c.NoContent(http.StatusNoContent)
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func (h *AuthHTTP) ForgotPassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.forgot_password")

	var req forgotPasswordRequest
	if err := c.Bind(&req); err != nil || !strings.Contains(req.Email, "@") {
		l.Warn("forgot_password_failed", "status", 400, "reason", "invalid email", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "a valid email is required")
	}

	if err := h.API.ForgotPassword(ctx, strings.TrimSpace(req.Email)); err != nil {
		return backendError(l, "forgot_password_failed", err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"message": "if the account exists a reset link was sent"})
}

type resetPasswordRequest struct {
	Token           string `json:"token"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (h *AuthHTTP) ResetPassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.reset_password")

	var req resetPasswordRequest
	if err := c.Bind(&req); err != nil || req.Token == "" || req.NewPassword == "" {
		l.Warn("reset_password_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "token and new_password are required")
	}
	if req.ConfirmPassword != "" && req.ConfirmPassword != req.NewPassword {
		l.Warn("reset_password_failed", "status", 400, "reason", "password mismatch")
		return echo.NewHTTPError(http.StatusBadRequest, "passwords do not match")
	}

	err := h.API.ResetPassword(ctx, apiclient.ResetPasswordRequest{Token: req.Token, NewPassword: req.NewPassword})
	if err != nil {
		return backendError(l, "reset_password_failed", err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "password updated"})
}
