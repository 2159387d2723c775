package cart

import (
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/models"
)

type Line struct {
	Offer    models.Offer `json:"offer"`
	Quantity int          `json:"quantity"`
}

func (l Line) Subtotal() decimal.Decimal {
	return l.Offer.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is a quantity-keyed list of offers. Lines keep insertion order and every
// line has Quantity >= 1. A Cart is not safe for concurrent use; see Registry.
type Cart struct {
	lines []Line
}

func New() *Cart {
	return &Cart{}
}

func (c *Cart) index(offerID int64) int {
	for i := range c.lines {
		if c.lines[i].Offer.ID == offerID {
			return i
		}
	}
	return -1
}

// Add appends the offer with quantity 1, or bumps the existing line by one.
func (c *Cart) Add(offer models.Offer) Line {
	if i := c.index(offer.ID); i >= 0 {
		c.lines[i].Quantity++
		return c.lines[i]
	}
	c.lines = append(c.lines, Line{Offer: offer, Quantity: 1})
	return c.lines[len(c.lines)-1]
}

// Remove deletes the line for offerID. Removing an absent offer is a no-op.
func (c *Cart) Remove(offerID int64) bool {
	i := c.index(offerID)
	if i < 0 {
		return false
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	return true
}

// Adjust moves the quantity by delta, flooring at 1. It never removes a line.
func (c *Cart) Adjust(offerID int64, delta int) (Line, bool) {
	i := c.index(offerID)
	if i < 0 {
		return Line{}, false
	}
	c.lines[i].Quantity = max(1, c.lines[i].Quantity+delta)
	return c.lines[i], true
}

func (c *Cart) Line(offerID int64) (Line, bool) {
	if i := c.index(offerID); i >= 0 {
		return c.lines[i], true
	}
	return Line{}, false
}

// Lines returns a copy of the lines in insertion order.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Len() int { return len(c.lines) }

func (c *Cart) Items() int {
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

// Total is recomputed on every call.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

func (c *Cart) Clear() {
	c.lines = nil
}
