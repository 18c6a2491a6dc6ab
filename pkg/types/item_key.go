package types

import (
	"fmt"
	"strings"
)

// ItemKey identifies a purchasable unit: a product plus its selected
// size/variant. Two cart lines are the same line iff their keys are equal, so
// a size-M and a size-L of the same product are distinct lines. The zero
// Variant means the product has no variant dimension.
type ItemKey struct {
	ProductID string `json:"product_id"`
	Variant   string `json:"variant,omitempty"`
}

// NewItemKey builds a key, trimming surrounding whitespace from both parts.
func NewItemKey(productID, variant string) ItemKey {
	return ItemKey{
		ProductID: strings.TrimSpace(productID),
		Variant:   strings.TrimSpace(variant),
	}
}

// IsZero reports whether the key identifies nothing.
func (k ItemKey) IsZero() bool {
	return k.ProductID == ""
}

// String renders the canonical form used in persisted wishlist documents and
// log fields: "productID" or "productID#variant".
func (k ItemKey) String() string {
	if k.Variant == "" {
		return k.ProductID
	}
	return fmt.Sprintf("%s#%s", k.ProductID, k.Variant)
}

// ParseItemKey reverses String. Product ids never contain '#'.
func ParseItemKey(raw string) (ItemKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ItemKey{}, fmt.Errorf("empty item key")
	}
	if idx := strings.Index(raw, "#"); idx >= 0 {
		if idx == 0 {
			return ItemKey{}, fmt.Errorf("item key %q has no product id", raw)
		}
		return ItemKey{ProductID: raw[:idx], Variant: raw[idx+1:]}, nil
	}
	return ItemKey{ProductID: raw}, nil
}
