package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/cart"
	"github.com/Skotchmaster/storefront/internal/checkout"
	"github.com/Skotchmaster/storefront/pkg/apiclient"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

const CartEventsTopic = "cart_events"

type CartHTTP struct {
	API      *apiclient.Client
	Carts    *cart.Registry
	Platform *Platform
	Events   checkout.EventPublisher
}

type lineView struct {
	cart.Line
	Subtotal decimal.Decimal `json:"subtotal"`
}

type cartView struct {
	Lines           []lineView       `json:"lines"`
	Items           int              `json:"items"`
	Total           decimal.Decimal  `json:"total"`
	SecondaryTotal  *decimal.Decimal `json:"secondary_total,omitempty"`
	SecondarySymbol string           `json:"secondary_symbol,omitempty"`
}

func (h *CartHTTP) view(ct *cart.Cart) cartView {
	lines := ct.Lines()
	v := cartView{
		Lines: make([]lineView, len(lines)),
		Items: ct.Items(),
		Total: ct.Total(),
	}
	for i, line := range lines {
		v.Lines[i] = lineView{Line: line, Subtotal: line.Subtotal()}
	}
	if h.Platform != nil {
		if cfg, ok := h.Platform.Cached(); ok {
			if converted, ok := cfg.Convert(v.Total); ok {
				v.SecondaryTotal = &converted
				v.SecondarySymbol = cfg.SecondaryCurrencySymbol
			}
		}
	}
	return v
}

func (h *CartHTTP) publish(c echo.Context, event map[string]any) {
	if h.Events == nil {
		return
	}
	ctx := c.Request().Context()
	if err := h.Events.PublishEvent(ctx, CartEventsTopic, sessionID(c), event); err != nil {
		logging.FromContext(ctx).Error("event_publish_failed", "topic", CartEventsTopic, "error", err)
	}
}

func (h *CartHTTP) GetCart(c echo.Context) error {
	var v cartView
	_ = h.Carts.WithExisting(sessionID(c), func(ct *cart.Cart) error {
		v = h.view(ct)
		return nil
	})
	return c.JSON(http.StatusOK, v)
}

type addItemRequest struct {
	OfferID int64 `json:"offer_id"`
}

// AddItem puts one unit of an offer into the cart. The offer is re-read from
// the backend so price and tier are current; an offer the backend no longer
// knows is also taken out of the cart.
func (h *CartHTTP) AddItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add_item")

	var req addItemRequest
	if err := c.Bind(&req); err != nil || req.OfferID <= 0 {
		l.Warn("add_item_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "offer_id is required")
	}

	offer, err := h.API.GetProduct(ctx, req.OfferID)
	if apiclient.IsNotFound(err) {
		_ = h.Carts.WithExisting(sessionID(c), func(ct *cart.Cart) error {
			ct.Remove(req.OfferID)
			return nil
		})
		l.Warn("add_item_failed", "status", 404, "reason", "offer gone", "offer_id", req.OfferID)
		return echo.NewHTTPError(http.StatusNotFound, "offer no longer exists")
	}
	if err != nil {
		return backendError(l, "add_item_failed", err)
	}
	if !offer.Purchasable() {
		l.Info("add_item_blocked", "status", 403, "reason", "exhibition_mode", "store_id", offer.StoreID)
		return exhibitionMode(c, offer.StoreName)
	}

	var (
		line cart.Line
		v    cartView
	)
	_ = h.Carts.WithCart(sessionID(c), func(ct *cart.Cart) error {
		line = ct.Add(*offer)
		v = h.view(ct)
		return nil
	})

	l.Info("add_item_success", "offer_id", offer.ID, "quantity", line.Quantity)
	h.publish(c, map[string]any{
		"type":     "cart_item_added",
		"offer_id": offer.ID,
		"store_id": offer.StoreID,
		"quantity": line.Quantity,
	})
	return c.JSON(http.StatusOK, v)
}

type adjustItemRequest struct {
	Delta int `json:"delta"`
}

func (h *CartHTTP) AdjustItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.adjust_item")

	id, ok := parseID(c.Param("id"))
	if !ok {
		l.Warn("adjust_item_failed", "status", 400, "reason", "invalid id")
		return echo.NewHTTPError(http.StatusBadRequest, "id is not a positive integer")
	}
	var req adjustItemRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("adjust_item_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	var v cartView
	err := h.Carts.WithExisting(sessionID(c), func(ct *cart.Cart) error {
		if _, ok := ct.Adjust(id, req.Delta); !ok {
			return errLineNotFound
		}
		v = h.view(ct)
		return nil
	})
	if errors.Is(err, errLineNotFound) {
		l.Warn("adjust_item_failed", "status", 404, "reason", "not in cart", "offer_id", id)
		return echo.NewHTTPError(http.StatusNotFound, "offer is not in the cart")
	}

	return c.JSON(http.StatusOK, v)
}

// RemoveItem deletes a line. Removing an offer that is not in the cart is not
// an error.
func (h *CartHTTP) RemoveItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.remove_item")

	id, ok := parseID(c.Param("id"))
	if !ok {
		l.Warn("remove_item_failed", "status", 400, "reason", "invalid id")
		return echo.NewHTTPError(http.StatusBadRequest, "id is not a positive integer")
	}

	var (
		removed bool
		v       cartView
	)
	_ = h.Carts.WithExisting(sessionID(c), func(ct *cart.Cart) error {
		removed = ct.Remove(id)
		v = h.view(ct)
		return nil
	})
	if removed {
		h.publish(c, map[string]any{"type": "cart_item_removed", "offer_id": id})
	}
	return c.JSON(http.StatusOK, v)
}

func (h *CartHTTP) ClearCart(c echo.Context) error {
	var v cartView
	_ = h.Carts.WithExisting(sessionID(c), func(ct *cart.Cart) error {
		ct.Clear()
		v = h.view(ct)
		return nil
	})
	h.publish(c, map[string]any{"type": "cart_cleared"})
	return c.JSON(http.StatusOK, v)
}
