package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/Skotchmaster/storefront/internal/models"
)

// CreateOrder registers one Click & Collect order line. A 2xx answer can still
// be a rejection; check OrderResult.Rejected.
func (c *Client) CreateOrder(ctx context.Context, req models.OrderRequest) (*models.OrderResult, error) {
	var out models.OrderResult
	if err := c.do(ctx, http.MethodPost, "/public/order", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CustomerPoints(ctx context.Context, email string) (int64, error) {
	var out models.Points
	if err := c.do(ctx, http.MethodGet, "/public/customer/points", url.Values{"email": {email}}, nil, &out); err != nil {
		return 0, err
	}
	return out.Points, nil
}

func (c *Client) Dashboard(ctx context.Context) (*models.DashboardStats, error) {
	var out models.DashboardStats
	if err := c.do(ctx, http.MethodGet, "/customer-portal/dashboard", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Orders(ctx context.Context) ([]models.OrderSummary, error) {
	var out []models.OrderSummary
	if err := c.do(ctx, http.MethodGet, "/customer-portal/orders", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
