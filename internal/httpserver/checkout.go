package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/cart"
	"github.com/Skotchmaster/storefront/internal/checkout"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/session"
	"github.com/Skotchmaster/storefront/pkg/apiclient"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type CheckoutHTTP struct {
	API      *apiclient.Client
	Carts    *cart.Registry
	Tracker  *checkout.Tracker
	Sessions *session.Manager
	Events   checkout.EventPublisher

	Now  func() time.Time
	IntN func(n int) int
}

type checkoutRequest struct {
	Customer models.Customer `json:"customer"`
	// PreviousPoints is the balance the customer saw before paying, used only
	// if the balance cannot be refetched afterwards.
	PreviousPoints *int64 `json:"previous_points,omitempty"`
}

type outcomeView struct {
	OfferID  int64  `json:"offer_id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	OrderID  int64  `json:"order_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

type stateView struct {
	State        string                 `json:"state"`
	StartedAt    *time.Time             `json:"started_at,omitempty"`
	Confirmation *checkout.Confirmation `json:"confirmation,omitempty"`
	Message      string                 `json:"message,omitempty"`
	Mode         string                 `json:"mode,omitempty"`
	Partial      bool                   `json:"partial,omitempty"`
	Accepted     []outcomeView          `json:"accepted,omitempty"`
	Rejected     []outcomeView          `json:"rejected,omitempty"`
}

func outcomes(in []checkout.LineOutcome) []outcomeView {
	out := make([]outcomeView, len(in))
	for i, oc := range in {
		out[i] = outcomeView{
			OfferID:  oc.Line.Offer.ID,
			Name:     oc.Line.Offer.Name,
			Quantity: oc.Line.Quantity,
			OrderID:  oc.OrderID,
		}
		if oc.Err != nil {
			out[i].Error = oc.Err.Error()
		}
	}
	return out
}

func viewState(s checkout.State) stateView {
	switch st := s.(type) {
	case checkout.Pending:
		return stateView{State: "pending", StartedAt: &st.StartedAt}
	case checkout.Succeeded:
		return stateView{State: "succeeded", Confirmation: &st.Confirmation}
	case checkout.Failed:
		v := stateView{
			State:    "failed",
			Message:  st.Message(),
			Partial:  st.Partial(),
			Accepted: outcomes(st.Accepted),
			Rejected: outcomes(st.Rejected),
		}
		if errors.Is(st.Err, checkout.ErrExhibitionMode) {
			v.Mode = "exhibition"
		}
		return v
	default:
		return stateView{State: "idle"}
	}
}

func failedStatus(err error) int {
	switch {
	case errors.Is(err, checkout.ErrEmptyCart), errors.Is(err, checkout.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, checkout.ErrExhibitionMode):
		return http.StatusForbidden
	default:
		return http.StatusUnprocessableEntity
	}
}

func (h *CheckoutHTTP) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// Submit turns the session's cart into backend orders. A second submission
// while one is running is refused with 409. When the backend rejects the
// signed-in customer's token the session ends and the answer is 401.
func (h *CheckoutHTTP) Submit(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.submit")
	sid := sessionID(c)

	var req checkoutRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("checkout_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	api := h.API
	s := optionalSession(ctx, h.Sessions, sid)
	if s != nil {
		api = api.WithToken(s.Token)
		if req.Customer.Name == "" {
			req.Customer.Name = s.User.Username
		}
		if req.Customer.Email == "" {
			req.Customer.Email = s.User.Email
		}
	}

	if err := h.Tracker.Begin(sid, h.now()); err != nil {
		l.Warn("checkout_failed", "status", 409, "reason", "already in progress")
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}

	var state checkout.State
	defer func() {
		if state == nil {
			state = checkout.Failed{Err: errCheckoutAborted}
		}
		h.Tracker.Finish(sid, state)
	}()

	o := &checkout.Orchestrator{API: api, Events: h.Events, Now: h.Now, IntN: h.IntN}
	_ = h.Carts.WithExisting(sid, func(ct *cart.Cart) error {
		state = o.Submit(ctx, ct, req.Customer, req.PreviousPoints)
		return nil
	})

	f, failed := state.(checkout.Failed)
	if !failed {
		return c.JSON(http.StatusCreated, viewState(state))
	}
	if s != nil {
		if err := tokenRejected(f); err != nil {
			return sessionBackendError(c, h.Sessions, l, "checkout_failed", err)
		}
	}
	return c.JSON(failedStatus(f.Err), viewState(state))
}

// tokenRejected returns the first line error that is a backend 401.
func tokenRejected(f checkout.Failed) error {
	for _, oc := range f.Rejected {
		if apiclient.IsUnauthorized(oc.Err) {
			return oc.Err
		}
	}
	return nil
}

// Status reports the session's latest checkout attempt.
func (h *CheckoutHTTP) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, viewState(h.Tracker.Get(sessionID(c))))
}
