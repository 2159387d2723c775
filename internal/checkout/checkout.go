package checkout

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Skotchmaster/storefront/internal/cart"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

const (
	EventsTopic = "checkout_events"

	minPrepMinutes = 15
	maxPrepMinutes = 45
)

type OrderAPI interface {
	CreateOrder(ctx context.Context, req models.OrderRequest) (*models.OrderResult, error)
	CustomerPoints(ctx context.Context, email string) (int64, error)
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

type Orchestrator struct {
	API    OrderAPI
	Events EventPublisher

	Now  func() time.Time
	IntN func(n int) int
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *Orchestrator) prepMinutes() int {
	intN := o.IntN
	if intN == nil {
		intN = rand.IntN
	}
	return minPrepMinutes + intN(maxPrepMinutes-minPrepMinutes+1)
}

func validateCustomer(c models.Customer) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: customer name required", ErrValidation)
	}
	if !strings.Contains(c.Email, "@") {
		return fmt.Errorf("%w: valid customer email required", ErrValidation)
	}
	return nil
}

// Submit drains the cart into one backend order per line. All lines are sent
// concurrently and every outcome is awaited; there is no rollback of lines
// that succeed when another fails. On success the cart is cleared. previous
// is the balance shown before checkout, nil if unknown.
func (o *Orchestrator) Submit(ctx context.Context, c *cart.Cart, customer models.Customer, previous *int64) State {
	l := logging.FromContext(ctx).With("svc", "checkout.submit")

	lines := c.Lines()
	if len(lines) == 0 {
		return Failed{Err: ErrEmptyCart}
	}
	if err := validateCustomer(customer); err != nil {
		return Failed{Err: err}
	}
	for _, line := range lines {
		if !line.Offer.Purchasable() {
			l.Warn("checkout_blocked", "reason", "exhibition_mode", "store_id", line.Offer.StoreID)
			return Failed{Err: fmt.Errorf("%w: %s", ErrExhibitionMode, line.Offer.StoreName)}
		}
	}

	groups := GroupByStore(lines)
	total := c.Total()
	outcomes := o.placeAll(ctx, lines, customer)

	var accepted, rejected []LineOutcome
	for _, oc := range outcomes {
		if oc.Err != nil {
			rejected = append(rejected, oc)
		} else {
			accepted = append(accepted, oc)
		}
	}

	if len(rejected) > 0 {
		msgs := make([]string, 0, len(rejected))
		for _, oc := range rejected {
			msgs = append(msgs, oc.Err.Error())
		}
		failed := Failed{
			Err:      errors.New(strings.Join(msgs, "; ")),
			Accepted: accepted,
			Rejected: rejected,
		}
		l.Error("checkout_failed", "lines", len(lines), "rejected", len(rejected), "accepted", len(accepted), "error", failed.Err)
		o.publish(ctx, customer.Email, map[string]any{
			"type":     "checkout_failed",
			"email":    customer.Email,
			"accepted": len(accepted),
			"rejected": len(rejected),
			"error":    failed.Message(),
		})
		return failed
	}

	placedAt := o.now()
	earned := total.Floor().IntPart()
	conf := Confirmation{
		OrderNumber:  OrderNumber(placedAt),
		PlacedAt:     placedAt,
		Groups:       groups,
		Total:        total,
		OrderIDs:     make([]int64, 0, len(accepted)),
		PrepMinutes:  o.prepMinutes(),
		PointsEarned: earned,
	}
	for _, oc := range accepted {
		conf.OrderIDs = append(conf.OrderIDs, oc.OrderID)
	}
	conf.Points = o.refreshPoints(ctx, customer.Email, previous, earned)

	c.Clear()

	l.Info("checkout_success", "order_number", conf.OrderNumber, "lines", len(lines), "stores", len(groups))
	o.publish(ctx, customer.Email, map[string]any{
		"type":         "checkout_succeeded",
		"email":        customer.Email,
		"order_number": conf.OrderNumber,
		"order_ids":    conf.OrderIDs,
		"total":        total.String(),
		"stores":       len(groups),
	})
	return Succeeded{Confirmation: conf}
}

func (o *Orchestrator) placeAll(ctx context.Context, lines []cart.Line, customer models.Customer) []LineOutcome {
	outcomes := make([]LineOutcome, len(lines))

	var g errgroup.Group
	for i, line := range lines {
		g.Go(func() error {
			outcomes[i] = o.place(ctx, line, customer)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (o *Orchestrator) place(ctx context.Context, line cart.Line, customer models.Customer) LineOutcome {
	res, err := o.API.CreateOrder(ctx, models.OrderRequest{
		ProductID: line.Offer.ID,
		Quantity:  line.Quantity,
		Customer:  customer,
	})
	if err != nil {
		return LineOutcome{Line: line, Err: fmt.Errorf("%s: %w", line.Offer.Name, err)}
	}
	if res.Rejected() {
		reason := res.Reason()
		if reason == "" {
			return LineOutcome{Line: line, OrderID: res.ID, Err: fmt.Errorf("order for %s rejected: %w", line.Offer.Name, ErrOrderRejected)}
		}
		return LineOutcome{Line: line, OrderID: res.ID, Err: fmt.Errorf("%s: %s: %w", line.Offer.Name, reason, ErrOrderRejected)}
	}
	return LineOutcome{Line: line, OrderID: res.ID}
}

func (o *Orchestrator) refreshPoints(ctx context.Context, email string, previous *int64, earned int64) *PointsBalance {
	balance, err := o.API.CustomerPoints(ctx, email)
	if err == nil {
		return &PointsBalance{Balance: balance, Earned: earned}
	}

	logging.FromContext(ctx).Warn("points_refresh_failed", "error", err)
	if previous == nil {
		return nil
	}
	return &PointsBalance{Balance: *previous + earned, Earned: earned, Estimated: true}
}

func (o *Orchestrator) publish(ctx context.Context, key string, event map[string]any) {
	if o.Events == nil {
		return
	}
	if err := o.Events.PublishEvent(ctx, EventsTopic, key, event); err != nil {
		logging.FromContext(ctx).Error("event_publish_failed", "topic", EventsTopic, "error", err)
	}
}

// OrderNumber derives the customer-facing order number from the placement time.
func OrderNumber(t time.Time) string {
	return "ORD-" + strings.ToUpper(strconv.FormatInt(t.UnixMilli(), 36))
}
