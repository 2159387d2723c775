package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Skotchmaster/storefront/internal/models"
)

func (c *Client) ListProducts(ctx context.Context) ([]models.Product, error) {
	var out []models.Product
	if err := c.do(ctx, http.MethodGet, "/public/products", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Search hits the backend's text search. Results keep the backend's order.
func (c *Client) Search(ctx context.Context, query string) ([]models.Product, error) {
	var out []models.Product
	if err := c.do(ctx, http.MethodGet, "/public/search", url.Values{"q": {query}}, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	var out models.Product
	if err := c.do(ctx, http.MethodGet, "/public/products/"+strconv.FormatInt(id, 10), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Sellers lists every store's offer for a product display name.
func (c *Client) Sellers(ctx context.Context, name string) ([]models.Offer, error) {
	var out []models.Offer
	path := "/public/products/name/" + url.PathEscape(name) + "/sellers"
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) PlatformConfig(ctx context.Context) (*models.PlatformConfig, error) {
	var out models.PlatformConfig
	if err := c.do(ctx, http.MethodGet, "/public/config", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
