package guestcart

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/raritone/session-backend/pkg/errors"
	"github.com/raritone/session-backend/pkg/types"
)

type stubKV struct {
	data    map[string]string
	getErr  error
	setErr  error
	delErr  error
	lastTTL time.Duration
}

func newStubKV() *stubKV {
	return &stubKV{data: map[string]string{}}
}

func (s *stubKV) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.lastTTL = ttl
	switch v := value.(type) {
	case []byte:
		s.data[key] = string(v)
	case string:
		s.data[key] = v
	}
	return nil
}

func (s *stubKV) Get(_ context.Context, key string) (string, error) {
	if s.getErr != nil {
		return "", s.getErr
	}
	v, ok := s.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (s *stubKV) Del(_ context.Context, keys ...string) error {
	if s.delErr != nil {
		return s.delErr
	}
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func (s *stubKV) GuestCartKey(sessionID string) string {
	return "rt:guest_cart:" + sessionID
}

func newTestStore(t *testing.T, kv KV) *Store {
	t.Helper()
	store, err := NewStore(StoreParams{KV: kv, TTL: time.Hour})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func TestNewStoreRequiresKV(t *testing.T) {
	t.Parallel()

	if _, err := NewStore(StoreParams{TTL: time.Hour}); err == nil {
		t.Fatal("expected error for missing kv client")
	}
	if _, err := NewStore(StoreParams{KV: newStubKV()}); err == nil {
		t.Fatal("expected error for non-positive ttl")
	}
}

func TestLoadMissingSessionIsEmpty(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, newStubKV())
	state, err := store.Load(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if state.Cart.Len() != 0 || state.Wishlist.Len() != 0 {
		t.Fatalf("expected empty state, got %d lines, %d saved items", state.Cart.Len(), state.Wishlist.Len())
	}
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	t.Parallel()

	kv := newStubKV()
	store := newTestStore(t, kv)
	ctx := context.Background()

	state := EmptyState()
	addedAt := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)
	state.Cart.Add(types.NewItemKey("hoodie-01", "M"), 2, decimal.NewFromInt(59), addedAt)
	state.Cart.Add(types.NewItemKey("tee-03", ""), 1, decimal.NewFromInt(25), addedAt.Add(time.Minute))
	state.Wishlist.Add(types.NewItemKey("jacket-07", "L"))

	if err := store.Save(ctx, "sess-1", state); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if kv.lastTTL != time.Hour {
		t.Fatalf("expected ttl %v, got %v", time.Hour, kv.lastTTL)
	}

	loaded, err := store.Load(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Cart.Len() != 2 {
		t.Fatalf("expected 2 lines, got %d", loaded.Cart.Len())
	}
	line, ok := loaded.Cart.Get(types.NewItemKey("hoodie-01", "M"))
	if !ok {
		t.Fatal("expected hoodie-01#M line to survive the round trip")
	}
	if line.Quantity != 2 || !line.AddedAt.Equal(addedAt) {
		t.Fatalf("unexpected line after round trip: %+v", line)
	}
	if !loaded.Wishlist.Has(types.NewItemKey("jacket-07", "L")) {
		t.Fatal("expected wishlist entry to survive the round trip")
	}
}

func TestLoadMigratesLegacyBareArray(t *testing.T) {
	t.Parallel()

	kv := newStubKV()
	kv.data[kv.GuestCartKey("sess-legacy")] = `[{"product_id":"tee-03","quantity":3,"unit_price":"25","added_at":"2025-08-01T10:00:00Z"}]`

	store := newTestStore(t, kv)
	state, err := store.Load(context.Background(), "sess-legacy")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	line, ok := state.Cart.Get(types.NewItemKey("tee-03", ""))
	if !ok || line.Quantity != 3 {
		t.Fatalf("expected migrated line with quantity 3, got %+v ok=%v", line, ok)
	}
	if state.Wishlist.Len() != 0 {
		t.Fatalf("legacy documents carry no wishlist, got %d entries", state.Wishlist.Len())
	}
}

func TestLoadRejectsNewerSchema(t *testing.T) {
	t.Parallel()

	kv := newStubKV()
	doc, _ := json.Marshal(map[string]any{"schema_version": 99, "cart": nil, "wishlist": nil})
	kv.data[kv.GuestCartKey("sess-future")] = string(doc)

	store := newTestStore(t, kv)
	_, err := store.Load(context.Background(), "sess-future")
	if !pkgerrors.HasCode(err, pkgerrors.CodeStoreUnavailable) {
		t.Fatalf("expected STORE_UNAVAILABLE, got %v", err)
	}
}

func TestLoadMapsBackendFailure(t *testing.T) {
	t.Parallel()

	kv := newStubKV()
	kv.getErr = errors.New("connection refused")

	store := newTestStore(t, kv)
	_, err := store.Load(context.Background(), "sess-1")
	if !pkgerrors.HasCode(err, pkgerrors.CodeStoreUnavailable) {
		t.Fatalf("expected STORE_UNAVAILABLE, got %v", err)
	}
	if !pkgerrors.IsRetryable(err) {
		t.Fatal("store outages must be retryable")
	}
}

func TestClearRemovesDocument(t *testing.T) {
	t.Parallel()

	kv := newStubKV()
	store := newTestStore(t, kv)
	ctx := context.Background()

	state := EmptyState()
	state.Cart.Add(types.NewItemKey("tee-03", ""), 1, decimal.NewFromInt(25), time.Now().UTC())
	if err := store.Save(ctx, "sess-1", state); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := store.Clear(ctx, "sess-1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	loaded, err := store.Load(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Cart.Len() != 0 {
		t.Fatalf("expected cleared cart, got %d lines", loaded.Cart.Len())
	}

	// Clearing again is a no-op.
	if err := store.Clear(ctx, "sess-1"); err != nil {
		t.Fatalf("Clear absent: %v", err)
	}
}
