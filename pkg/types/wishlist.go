package types

// WishlistSet is an ordered set of item keys. No quantities, so merging two
// wishlists is a plain union.
type WishlistSet struct {
	keys []ItemKey
	seen map[ItemKey]struct{}
}

// NewWishlistSet returns an empty set.
func NewWishlistSet() *WishlistSet {
	return &WishlistSet{seen: map[ItemKey]struct{}{}}
}

// WishlistFromKeys rebuilds a set from persisted keys, dropping zero keys and
// duplicates while preserving first-seen order.
func WishlistFromKeys(keys []ItemKey) *WishlistSet {
	w := NewWishlistSet()
	for _, key := range keys {
		w.Add(key)
	}
	return w
}

// Len returns the number of saved items.
func (w *WishlistSet) Len() int {
	if w == nil {
		return 0
	}
	return len(w.keys)
}

// Has reports membership.
func (w *WishlistSet) Has(key ItemKey) bool {
	if w == nil {
		return false
	}
	_, ok := w.seen[key]
	return ok
}

// Add appends the key if not already present. Adding twice is a no-op.
func (w *WishlistSet) Add(key ItemKey) {
	if key.IsZero() {
		return
	}
	if _, ok := w.seen[key]; ok {
		return
	}
	w.seen[key] = struct{}{}
	w.keys = append(w.keys, key)
}

// Remove drops the key. Absent keys are a no-op.
func (w *WishlistSet) Remove(key ItemKey) {
	if _, ok := w.seen[key]; !ok {
		return
	}
	delete(w.seen, key)
	for i, k := range w.keys {
		if k == key {
			w.keys = append(w.keys[:i], w.keys[i+1:]...)
			break
		}
	}
}

// Keys returns a copy of the keys in insertion order.
func (w *WishlistSet) Keys() []ItemKey {
	if w == nil || len(w.keys) == 0 {
		return nil
	}
	out := make([]ItemKey, len(w.keys))
	copy(out, w.keys)
	return out
}

// Union returns a new set containing every key of w followed by the keys of
// other that w lacks.
func (w *WishlistSet) Union(other *WishlistSet) *WishlistSet {
	merged := WishlistFromKeys(w.Keys())
	for _, key := range other.Keys() {
		merged.Add(key)
	}
	return merged
}

// Clone returns an independent copy.
func (w *WishlistSet) Clone() *WishlistSet {
	return WishlistFromKeys(w.Keys())
}
