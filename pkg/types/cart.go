package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is one item key plus its quantity within a cart.
//
// UnitPriceSnapshot is captured at add-time and is informational only: the
// authoritative price is always re-fetched from the catalog at checkout, so a
// stale snapshot can never influence what a customer is charged.
type CartLine struct {
	Key               ItemKey         `json:"key"`
	Quantity          int             `json:"quantity"`
	UnitPriceSnapshot decimal.Decimal `json:"unit_price"`
	AddedAt           time.Time       `json:"added_at"`
}

// Cart is an ordered mapping from ItemKey to CartLine. Insertion order is
// display order. A quantity reduced to zero removes the line entirely; the
// structure never holds a zero-quantity line.
type Cart struct {
	lines []CartLine
	index map[ItemKey]int
}

// NewCart returns an empty cart.
func NewCart() *Cart {
	return &Cart{index: map[ItemKey]int{}}
}

// CartFromLines rebuilds a cart from persisted lines, preserving order.
// Lines with a non-positive quantity or a zero key are dropped; duplicate
// keys collapse onto the first occurrence with summed quantities.
func CartFromLines(lines []CartLine) *Cart {
	c := NewCart()
	for _, line := range lines {
		if line.Key.IsZero() || line.Quantity <= 0 {
			continue
		}
		if idx, ok := c.index[line.Key]; ok {
			c.lines[idx].Quantity += line.Quantity
			continue
		}
		c.index[line.Key] = len(c.lines)
		c.lines = append(c.lines, line)
	}
	return c
}

// Len returns the number of lines.
func (c *Cart) Len() int {
	if c == nil {
		return 0
	}
	return len(c.lines)
}

// TotalQuantity sums quantities across all lines (the cart badge count).
func (c *Cart) TotalQuantity() int {
	total := 0
	for _, line := range c.lines {
		total += line.Quantity
	}
	return total
}

// Get returns the line for the given key.
func (c *Cart) Get(key ItemKey) (CartLine, bool) {
	if c == nil {
		return CartLine{}, false
	}
	idx, ok := c.index[key]
	if !ok {
		return CartLine{}, false
	}
	return c.lines[idx], true
}

// Lines returns a copy of the lines in display order.
func (c *Cart) Lines() []CartLine {
	if c == nil || len(c.lines) == 0 {
		return nil
	}
	out := make([]CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// Add inserts a new line at the end, or increments the quantity of an
// existing line for the same key. The price snapshot and AddedAt of an
// existing line are kept from the first add.
func (c *Cart) Add(key ItemKey, quantity int, unitPrice decimal.Decimal, addedAt time.Time) {
	if key.IsZero() || quantity <= 0 {
		return
	}
	if idx, ok := c.index[key]; ok {
		c.lines[idx].Quantity += quantity
		return
	}
	c.index[key] = len(c.lines)
	c.lines = append(c.lines, CartLine{
		Key:               key,
		Quantity:          quantity,
		UnitPriceSnapshot: unitPrice,
		AddedAt:           addedAt,
	})
}

// SetQuantity overwrites the quantity for key. Zero removes the line; the
// key being absent is a no-op for zero and an insert-at-end otherwise is NOT
// performed — callers add first. Negative values are the caller's bug and are
// ignored here; input validation happens at the facade.
func (c *Cart) SetQuantity(key ItemKey, quantity int) {
	idx, ok := c.index[key]
	if !ok {
		return
	}
	if quantity <= 0 {
		c.removeAt(idx)
		return
	}
	c.lines[idx].Quantity = quantity
}

// Remove deletes the line for key. Absent keys are a no-op.
func (c *Cart) Remove(key ItemKey) {
	idx, ok := c.index[key]
	if !ok {
		return
	}
	c.removeAt(idx)
}

// Clone returns an independent copy.
func (c *Cart) Clone() *Cart {
	return CartFromLines(c.Lines())
}

func (c *Cart) removeAt(idx int) {
	delete(c.index, c.lines[idx].Key)
	c.lines = append(c.lines[:idx], c.lines[idx+1:]...)
	for i := idx; i < len(c.lines); i++ {
		c.index[c.lines[i].Key] = i
	}
}
