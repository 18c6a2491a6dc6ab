package reconcile

import (
	"sort"

	"github.com/raritone/session-backend/pkg/types"
)

// CeilingFunc returns the stock ceiling for a key, or nil when the quantity
// is untracked and must not be capped.
type CeilingFunc func(types.ItemKey) *int

// MergeCarts combines a guest cart and an account cart into one. Quantities
// for keys present on both sides are summed, then capped at the stock ceiling
// when one is known. One-sided keys carry over unchanged. A merged line keeps
// the earliest AddedAt of the two sides, and the result is ordered by AddedAt
// ascending so the display order reflects when items were first picked.
//
// The returned capped keys are the ones whose sum exceeded the ceiling.
func MergeCarts(local, remote *types.Cart, ceiling CeilingFunc) (*types.Cart, []types.ItemKey) {
	merged := make([]types.CartLine, 0, local.Len()+remote.Len())
	capped := []types.ItemKey{}

	appendKey := func(key types.ItemKey) {
		localLine, inLocal := local.Get(key)
		remoteLine, inRemote := remote.Get(key)

		var line types.CartLine
		switch {
		case inLocal && inRemote:
			line = localLine
			line.Quantity = localLine.Quantity + remoteLine.Quantity
			if remoteLine.AddedAt.Before(localLine.AddedAt) {
				line.AddedAt = remoteLine.AddedAt
				line.UnitPriceSnapshot = remoteLine.UnitPriceSnapshot
			}
		case inLocal:
			line = localLine
		default:
			line = remoteLine
		}

		if ceiling != nil {
			if max := ceiling(key); max != nil && line.Quantity > *max {
				line.Quantity = *max
				capped = append(capped, key)
			}
		}
		if line.Quantity > 0 {
			merged = append(merged, line)
		}
	}

	for _, line := range local.Lines() {
		appendKey(line.Key)
	}
	for _, line := range remote.Lines() {
		if _, ok := local.Get(line.Key); ok {
			continue
		}
		appendKey(line.Key)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].AddedAt.Before(merged[j].AddedAt)
	})

	return types.CartFromLines(merged), capped
}

// MergeWishlists unions the two saved-item sets. The account's entries come
// first, followed by guest entries the account lacked.
func MergeWishlists(local, remote *types.WishlistSet) *types.WishlistSet {
	return remote.Union(local)
}
