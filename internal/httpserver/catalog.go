package httpserver

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/catalog"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/pkg/apiclient"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type CatalogHTTP struct {
	API *apiclient.Client
	// Search, when set, serves remote text search instead of the backend's
	// /public/search.
	Search   catalog.Searcher
	Platform *Platform
}

type offerView struct {
	models.Offer
	Purchasable bool `json:"purchasable"`
}

func parseFilter(c echo.Context) (catalog.Filter, error) {
	f := catalog.Filter{
		Category: c.QueryParam("category"),
		Query:    c.QueryParam("q"),
		Sort:     catalog.ParseSort(c.QueryParam("sort")),
	}

	for _, bound := range []struct {
		param string
		dst   **decimal.Decimal
	}{{"min", &f.MinPrice}, {"max", &f.MaxPrice}} {
		raw := strings.TrimSpace(c.QueryParam(bound.param))
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return f, fmt.Errorf("%s price %q is not a number", bound.param, raw)
		}
		*bound.dst = &d
	}

	var stores []int64
	for _, raw := range c.QueryParams()["store"] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return f, fmt.Errorf("store %q is not an id", part)
			}
			stores = append(stores, id)
		}
	}
	if len(stores) > 0 {
		f = f.WithStores(stores...)
	}
	return f, nil
}

func (h *CatalogHTTP) ListProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.list_products")

	f, err := parseFilter(c)
	if err != nil {
		l.Warn("list_products_failed", "status", 400, "reason", "invalid filter", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var products []models.Product
	remote := c.QueryParam("remote") == "1" && strings.TrimSpace(f.Query) != ""
	if remote {
		products, err = h.search(c, f.Query)
		// hits keep the search source's order and are not filtered by text again
		f.Query = ""
	} else {
		products, err = h.API.ListProducts(ctx)
	}
	if err != nil {
		return backendError(l, "list_products_failed", err)
	}

	filtered := catalog.Apply(products, f)
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), catalog.DefaultPageSize)
	items, meta := catalog.Paginate(filtered, page, size)

	l.Info("list_products_success", "total", meta.Total, "remote", remote)
	return c.JSON(http.StatusOK, map[string]any{
		"data":       items,
		"meta":       meta,
		"categories": catalog.Categories(products),
		"stores":     catalog.Stores(products),
	})
}

func (h *CatalogHTTP) search(c echo.Context, query string) ([]models.Product, error) {
	ctx := c.Request().Context()
	if h.Search != nil {
		products, err := h.Search.Search(ctx, query)
		if err == nil {
			return products, nil
		}
		logging.FromContext(ctx).Warn("search_index_failed", "fallback", "backend", "error", err)
	}
	return h.API.Search(ctx, query)
}

func (h *CatalogHTTP) GetProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.get_product")

	id, ok := parseID(c.Param("id"))
	if !ok {
		l.Warn("get_product_failed", "status", 400, "reason", "id is not a positive integer")
		return echo.NewHTTPError(http.StatusBadRequest, "id is not a positive integer")
	}

	p, err := h.API.GetProduct(ctx, id)
	if err != nil {
		return backendError(l, "get_product_failed", err)
	}
	return c.JSON(http.StatusOK, offerView{Offer: *p, Purchasable: p.Purchasable()})
}

// Sellers lists every store's offer for a display name.
func (h *CatalogHTTP) Sellers(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.sellers")

	name, err := url.PathUnescape(c.Param("name"))
	if err != nil || strings.TrimSpace(name) == "" {
		l.Warn("sellers_failed", "status", 400, "reason", "invalid name")
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product name")
	}

	offers, err := h.API.Sellers(ctx, name)
	if err != nil {
		return backendError(l, "sellers_failed", err)
	}

	out := make([]offerView, len(offers))
	for i, o := range offers {
		out[i] = offerView{Offer: o, Purchasable: o.Purchasable()}
	}
	return c.JSON(http.StatusOK, map[string]any{"data": out})
}

func (h *CatalogHTTP) GetConfig(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.get_config")

	get := h.Platform.Get
	if c.QueryParam("refresh") == "1" {
		get = h.Platform.Refresh
	}
	cfg, err := get(ctx)
	if err != nil {
		return backendError(l, "get_config_failed", err)
	}
	return c.JSON(http.StatusOK, cfg)
}
