package checkout

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/cart"
)

// State is one of Idle, Pending, Succeeded or Failed.
type State interface {
	isState()
}

type Idle struct{}

type Pending struct {
	StartedAt time.Time
}

type Succeeded struct {
	Confirmation Confirmation
}

// Failed carries the outcome of every line. Accepted lines were created by the
// backend before the attempt failed and are not rolled back.
type Failed struct {
	Err      error
	Accepted []LineOutcome
	Rejected []LineOutcome
}

func (Idle) isState()      {}
func (Pending) isState()   {}
func (Succeeded) isState() {}
func (Failed) isState()    {}

func (f Failed) Message() string {
	if f.Err == nil {
		return ""
	}
	return f.Err.Error()
}

func (f Failed) Partial() bool {
	return len(f.Accepted) > 0
}

type LineOutcome struct {
	Line    cart.Line
	OrderID int64
	Err     error
}

type StoreGroup struct {
	StoreID   int64           `json:"store_id"`
	StoreName string          `json:"store_name"`
	Latitude  *float64        `json:"latitude,omitempty"`
	Longitude *float64        `json:"longitude,omitempty"`
	Lines     []cart.Line     `json:"lines"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// PointsBalance is the loyalty balance after checkout. Estimated is set when the
// backend could not be asked and the value is previous balance + earned.
type PointsBalance struct {
	Balance   int64 `json:"balance"`
	Earned    int64 `json:"earned"`
	Estimated bool  `json:"estimated"`
}

type Confirmation struct {
	OrderNumber  string          `json:"order_number"`
	PlacedAt     time.Time       `json:"placed_at"`
	Groups       []StoreGroup    `json:"groups"`
	Total        decimal.Decimal `json:"total"`
	OrderIDs     []int64         `json:"order_ids"`
	PrepMinutes  int             `json:"estimated_prep_minutes"`
	PointsEarned int64           `json:"points_earned"`
	Points       *PointsBalance  `json:"points,omitempty"`
}

var (
	ErrEmptyCart      = errors.New("cart is empty")
	ErrValidation     = errors.New("validation")
	ErrExhibitionMode = errors.New("store is in exhibition mode")
	ErrInProgress     = errors.New("checkout already in progress")
	ErrOrderRejected  = errors.New("order rejected")
)
