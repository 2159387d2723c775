package apiclient

import (
	"context"
	"net/http"

	"github.com/Skotchmaster/storefront/internal/models"
)

const RoleCustomer = "CUSTOMER"

type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type SigninRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token    string `json:"token"`
	Type     string `json:"type,omitempty"`
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Message  string `json:"message,omitempty"`
}

func (r AuthResponse) User() models.User {
	return models.User{ID: r.ID, Username: r.Username, Email: r.Email, Role: r.Role}
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// Signup registers an account. Some deployments also return a token, in which
// case the caller can treat it as a login.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	if req.Role == "" {
		req.Role = RoleCustomer
	}
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/signup", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Signin(ctx context.Context, req SigninRequest) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/signin", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/forgot-password", nil, map[string]string{"email": email}, nil)
}

func (c *Client) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	return c.do(ctx, http.MethodPost, "/auth/reset-password", nil, req, nil)
}
