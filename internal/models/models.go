package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Tier string

const (
	TierFree  Tier = "FREE"
	TierTrial Tier = "TRIAL"
	TierPaid  Tier = "PAID"
)

// Purchasable reports whether stores on this tier accept orders. Anything else
// is shown in exhibition mode.
func (t Tier) Purchasable() bool {
	switch Tier(strings.ToUpper(string(t))) {
	case TierPaid, TierTrial:
		return true
	default:
		return false
	}
}

// Product is a catalog row as the marketplace returns it. A seller offer is the
// same shape: one row per store selling a given display name.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	StoreID     int64           `json:"storeId"`
	StoreName   string          `json:"storeName"`
	Tier        Tier            `json:"subscriptionTier"`
	Latitude    *float64        `json:"latitude,omitempty"`
	Longitude   *float64        `json:"longitude,omitempty"`
}

type Offer = Product

func (p Product) Purchasable() bool {
	return p.Tier.Purchasable()
}

type PlatformConfig struct {
	MaintenanceMode          bool            `json:"maintenanceMode"`
	SecondaryCurrencyEnabled bool            `json:"secondaryCurrencyEnabled"`
	SecondaryCurrencyRate    decimal.Decimal `json:"secondaryCurrencyRate"`
	SecondaryCurrencySymbol  string          `json:"secondaryCurrencySymbol"`
	Announcement             string          `json:"announcement"`
	ContactEmail             string          `json:"contactEmail"`
}

// Convert returns price in the secondary currency, rounded to cents, and false
// when the secondary currency is off or has no usable rate.
func (c PlatformConfig) Convert(price decimal.Decimal) (decimal.Decimal, bool) {
	if !c.SecondaryCurrencyEnabled || !c.SecondaryCurrencyRate.IsPositive() {
		return decimal.Zero, false
	}
	return price.Mul(c.SecondaryCurrencyRate).Round(2), true
}

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

type Customer struct {
	Name    string `json:"customerName"`
	Email   string `json:"customerEmail"`
	Phone   string `json:"customerPhone"`
	Address string `json:"customerAddress"`
}

type OrderRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
	Customer
}

// OrderResult is the body of POST /public/order. The backend may answer 2xx and
// still reject the order through Error or Success=false.
type OrderResult struct {
	ID      int64  `json:"id"`
	Status  string `json:"status"`
	Success *bool  `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func (r OrderResult) Rejected() bool {
	return r.Error != "" || (r.Success != nil && !*r.Success)
}

// Reason is the best human-readable explanation the body carries, possibly empty.
func (r OrderResult) Reason() string {
	if r.Error != "" {
		return r.Error
	}
	if r.Rejected() {
		return r.Message
	}
	return ""
}

type Points struct {
	Email  string `json:"email"`
	Points int64  `json:"points"`
}

type DashboardStats struct {
	TotalOrders   int64           `json:"totalOrders"`
	PendingOrders int64           `json:"pendingOrders"`
	TotalSpent    decimal.Decimal `json:"totalSpent"`
	Points        int64           `json:"points"`
}

type OrderSummary struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"productId"`
	Product   string          `json:"productName"`
	StoreName string          `json:"storeName"`
	Quantity  int             `json:"quantity"`
	Total     decimal.Decimal `json:"total"`
	Status    string          `json:"status"`
	CreatedAt string          `json:"createdAt"`
}
