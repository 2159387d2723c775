package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/cart"
	"github.com/Skotchmaster/storefront/internal/models"
)

type fakeAPI struct {
	mu       sync.Mutex
	requests []models.OrderRequest
	results  map[int64]*models.OrderResult
	errs     map[int64]error
	points   int64
	pointErr error
}

func (f *fakeAPI) CreateOrder(_ context.Context, req models.OrderRequest) (*models.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if err := f.errs[req.ProductID]; err != nil {
		return nil, err
	}
	if res := f.results[req.ProductID]; res != nil {
		return res, nil
	}
	return &models.OrderResult{ID: 1000 + req.ProductID, Status: "PENDING"}, nil
}

func (f *fakeAPI) CustomerPoints(context.Context, string) (int64, error) {
	return f.points, f.pointErr
}

type recordedEvent struct {
	topic, key string
	event      map[string]any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *fakePublisher) PublishEvent(_ context.Context, topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{topic, key, event.(map[string]any)})
	return nil
}

var customer = models.Customer{Name: "Ana", Email: "ana@example.com", Phone: "1155", Address: "Calle 1"}

func offer(id, storeID int64, storeName string, price string) models.Offer {
	return models.Offer{
		ID:        id,
		Name:      "offer-" + storeName,
		Price:     decimal.RequireFromString(price),
		StoreID:   storeID,
		StoreName: storeName,
		Tier:      models.TierPaid,
	}
}

func newOrchestrator(api *fakeAPI, pub *fakePublisher) *Orchestrator {
	o := &Orchestrator{
		API:  api,
		Now:  func() time.Time { return time.UnixMilli(1_760_000_000_000) },
		IntN: func(n int) int { return n - 1 },
	}
	if pub != nil {
		o.Events = pub
	}
	return o
}

func int64p(v int64) *int64 { return &v }

func TestSubmit_TwoStoresSucceed(t *testing.T) {
	api := &fakeAPI{points: 100 + 70}
	pub := &fakePublisher{}
	o := newOrchestrator(api, pub)

	c := cart.New()
	c.Add(offer(1, 10, "Centro", "25.50"))
	c.Add(offer(1, 10, "Centro", "25.50"))
	c.Add(offer(2, 20, "Norte", "19.40"))

	state := o.Submit(context.Background(), c, customer, int64p(100))

	ok, isSuccess := state.(Succeeded)
	require.True(t, isSuccess, "got %#v", state)
	conf := ok.Confirmation

	require.Len(t, conf.Groups, 2)
	assert.EqualValues(t, 10, conf.Groups[0].StoreID)
	assert.Equal(t, "Centro", conf.Groups[0].StoreName)
	assert.True(t, conf.Groups[0].Subtotal.Equal(decimal.RequireFromString("51")))
	assert.EqualValues(t, 20, conf.Groups[1].StoreID)

	assert.Zero(t, c.Len(), "cart must be cleared")
	assert.True(t, conf.Total.Equal(decimal.RequireFromString("70.40")))
	assert.EqualValues(t, 70, conf.PointsEarned)
	require.NotNil(t, conf.Points)
	assert.EqualValues(t, 170, conf.Points.Balance)
	assert.False(t, conf.Points.Estimated)

	assert.Equal(t, OrderNumber(time.UnixMilli(1_760_000_000_000)), conf.OrderNumber)
	assert.Equal(t, maxPrepMinutes, conf.PrepMinutes)
	assert.ElementsMatch(t, []int64{1001, 1002}, conf.OrderIDs)

	require.Len(t, api.requests, 2)
	for _, req := range api.requests {
		assert.Equal(t, customer, req.Customer)
		if req.ProductID == 1 {
			assert.Equal(t, 2, req.Quantity)
		}
	}

	require.Len(t, pub.events, 1)
	assert.Equal(t, EventsTopic, pub.events[0].topic)
	assert.Equal(t, customer.Email, pub.events[0].key)
	assert.Equal(t, "checkout_succeeded", pub.events[0].event["type"])
}

func TestSubmit_PointsEstimateWhenRefreshFails(t *testing.T) {
	api := &fakeAPI{pointErr: errors.New("points service down")}
	o := newOrchestrator(api, nil)

	c := cart.New()
	c.Add(offer(1, 10, "Centro", "99.99"))

	state := o.Submit(context.Background(), c, customer, int64p(40))
	ok, isSuccess := state.(Succeeded)
	require.True(t, isSuccess)

	require.NotNil(t, ok.Confirmation.Points)
	assert.True(t, ok.Confirmation.Points.Estimated)
	assert.EqualValues(t, 40+99, ok.Confirmation.Points.Balance)
	assert.EqualValues(t, 99, ok.Confirmation.Points.Earned)
}

func TestSubmit_PointsUnknownWithoutPrevious(t *testing.T) {
	api := &fakeAPI{pointErr: errors.New("down")}
	o := newOrchestrator(api, nil)

	c := cart.New()
	c.Add(offer(1, 10, "Centro", "5"))

	state := o.Submit(context.Background(), c, customer, nil)
	ok, isSuccess := state.(Succeeded)
	require.True(t, isSuccess)
	assert.Nil(t, ok.Confirmation.Points)
	assert.EqualValues(t, 5, ok.Confirmation.PointsEarned)
}

func TestSubmit_NetworkRejection(t *testing.T) {
	api := &fakeAPI{errs: map[int64]error{2: errors.New("dial tcp: connection refused")}}
	pub := &fakePublisher{}
	o := newOrchestrator(api, pub)

	c := cart.New()
	c.Add(offer(1, 10, "Centro", "10"))
	c.Add(offer(2, 20, "Norte", "20"))

	state := o.Submit(context.Background(), c, customer, nil)

	failed, isFailed := state.(Failed)
	require.True(t, isFailed, "got %#v", state)
	assert.Contains(t, failed.Message(), "connection refused")
	assert.Equal(t, 2, c.Len(), "cart must not be cleared")

	require.Len(t, failed.Rejected, 1)
	assert.EqualValues(t, 2, failed.Rejected[0].Line.Offer.ID)
	require.Len(t, failed.Accepted, 1)
	assert.EqualValues(t, 1001, failed.Accepted[0].OrderID)
	assert.True(t, failed.Partial())

	require.Len(t, pub.events, 1)
	assert.Equal(t, "checkout_failed", pub.events[0].event["type"])
}

func TestSubmit_BodyIndicatorFailures(t *testing.T) {
	no := false
	api := &fakeAPI{results: map[int64]*models.OrderResult{
		1: {Error: "sin stock"},
		2: {Success: &no},
	}}
	o := newOrchestrator(api, nil)

	c := cart.New()
	c.Add(offer(1, 10, "Centro", "10"))
	c.Add(offer(2, 20, "Norte", "20"))

	state := o.Submit(context.Background(), c, customer, nil)

	failed, isFailed := state.(Failed)
	require.True(t, isFailed)
	assert.Contains(t, failed.Message(), "sin stock")
	assert.Contains(t, failed.Message(), "order for offer-Norte rejected")
	assert.Empty(t, failed.Accepted)
	for _, r := range failed.Rejected {
		assert.ErrorIs(t, r.Err, ErrOrderRejected)
	}
	assert.Equal(t, 2, c.Len())
}

func TestSubmit_ExhibitionModeBlocksAllCalls(t *testing.T) {
	api := &fakeAPI{}
	o := newOrchestrator(api, nil)

	free := offer(2, 20, "Feria", "20")
	free.Tier = models.TierFree

	c := cart.New()
	c.Add(offer(1, 10, "Centro", "10"))
	c.Add(free)

	state := o.Submit(context.Background(), c, customer, nil)
	failed, isFailed := state.(Failed)
	require.True(t, isFailed)
	assert.ErrorIs(t, failed.Err, ErrExhibitionMode)
	assert.Empty(t, api.requests)
}

func TestSubmit_Validation(t *testing.T) {
	o := newOrchestrator(&fakeAPI{}, nil)

	state := o.Submit(context.Background(), cart.New(), customer, nil)
	assert.ErrorIs(t, state.(Failed).Err, ErrEmptyCart)

	c := cart.New()
	c.Add(offer(1, 10, "Centro", "10"))
	state = o.Submit(context.Background(), c, models.Customer{Name: "Ana", Email: "nope"}, nil)
	assert.ErrorIs(t, state.(Failed).Err, ErrValidation)

	state = o.Submit(context.Background(), c, models.Customer{Email: "ana@example.com"}, nil)
	assert.ErrorIs(t, state.(Failed).Err, ErrValidation)
}

func TestSubmit_FiresLinesConcurrently(t *testing.T) {
	const lines = 8
	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(lines)

	api := &blockingAPI{started: &started, release: release}
	o := &Orchestrator{API: api}

	c := cart.New()
	for i := int64(1); i <= lines; i++ {
		c.Add(offer(i, i, "s", "1"))
	}

	done := make(chan State, 1)
	go func() { done <- o.Submit(context.Background(), c, customer, nil) }()

	started.Wait()
	close(release)

	select {
	case s := <-done:
		_, ok := s.(Succeeded)
		assert.True(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("checkout did not finish")
	}
}

type blockingAPI struct {
	started *sync.WaitGroup
	release chan struct{}
}

func (b *blockingAPI) CreateOrder(_ context.Context, req models.OrderRequest) (*models.OrderResult, error) {
	b.started.Done()
	<-b.release
	return &models.OrderResult{ID: req.ProductID}, nil
}

func (b *blockingAPI) CustomerPoints(context.Context, string) (int64, error) { return 0, nil }

func TestGroupByStore(t *testing.T) {
	lat, lng := -34.6, -58.4
	a := offer(1, 10, "Centro", "1")
	a.Latitude, a.Longitude = &lat, &lng

	groups := GroupByStore([]cart.Line{
		{Offer: offer(3, 20, "Norte", "2"), Quantity: 1},
		{Offer: a, Quantity: 3},
		{Offer: offer(4, 20, "Norte", "5"), Quantity: 2},
	})

	require.Len(t, groups, 2)
	assert.EqualValues(t, 20, groups[0].StoreID)
	assert.Len(t, groups[0].Lines, 2)
	assert.True(t, groups[0].Subtotal.Equal(decimal.NewFromInt(12)))
	assert.Equal(t, &lat, groups[1].Latitude)
	assert.True(t, groups[1].Subtotal.Equal(decimal.NewFromInt(3)))
}

func TestOrderNumber(t *testing.T) {
	n := OrderNumber(time.UnixMilli(36*36 + 35))
	assert.Equal(t, "ORD-10Z", n)
}

func TestTracker(t *testing.T) {
	tr := NewTracker()
	_, idle := tr.Get("sid").(Idle)
	assert.True(t, idle)

	require.NoError(t, tr.Begin("sid", time.Now()))
	assert.ErrorIs(t, tr.Begin("sid", time.Now()), ErrInProgress)

	tr.Finish("sid", Failed{Err: ErrEmptyCart})
	require.NoError(t, tr.Begin("sid", time.Now()))

	tr.Reset("sid")
	_, idle = tr.Get("sid").(Idle)
	assert.True(t, idle)
}

func TestTracker_SweepForgetsOldStates(t *testing.T) {
	tr := NewTracker()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return now }

	require.NoError(t, tr.Begin("stuck", now))
	tr.Finish("done", Failed{Err: ErrEmptyCart})
	now = now.Add(2 * time.Hour)
	tr.Finish("recent", Failed{Err: ErrEmptyCart})

	assert.Equal(t, 2, tr.Sweep(now.Add(-time.Hour)))

	_, idle := tr.Get("stuck").(Idle)
	assert.True(t, idle)
	require.NoError(t, tr.Begin("stuck", now), "a swept pending state no longer blocks")
	_, failed := tr.Get("recent").(Failed)
	assert.True(t, failed)
}
