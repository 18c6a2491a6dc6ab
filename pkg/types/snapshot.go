package types

import "time"

// Snapshot is the immutable cart view handed to subscribers and the API.
// Degraded marks a view served from last-known-good memory because the
// authoritative store could not be read; it must never be mistaken for an
// authoritative empty cart.
type Snapshot struct {
	Lines     []CartLine `json:"lines"`
	Wishlist  []ItemKey  `json:"wishlist"`
	Degraded  bool       `json:"degraded"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewSnapshot copies the current cart and wishlist state into a snapshot.
func NewSnapshot(cart *Cart, wishlist *WishlistSet, degraded bool, at time.Time) Snapshot {
	return Snapshot{
		Lines:     cart.Lines(),
		Wishlist:  wishlist.Keys(),
		Degraded:  degraded,
		UpdatedAt: at,
	}
}

// TotalQuantity sums line quantities (the cart badge count).
func (s Snapshot) TotalQuantity() int {
	total := 0
	for _, line := range s.Lines {
		total += line.Quantity
	}
	return total
}
