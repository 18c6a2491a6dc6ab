package accountcart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/raritone/session-backend/pkg/config"
	pkgerrors "github.com/raritone/session-backend/pkg/errors"
	"github.com/raritone/session-backend/pkg/types"
)

func setupAccountCartTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	accountCarts := `
CREATE TABLE IF NOT EXISTS account_carts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  created_at DATETIME,
  updated_at DATETIME
);`
	accountCartLines := `
CREATE TABLE IF NOT EXISTS account_cart_lines (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  variant TEXT NOT NULL DEFAULT '',
  quantity INTEGER NOT NULL,
  unit_price TEXT NOT NULL,
  position INTEGER NOT NULL DEFAULT 0,
  added_at DATETIME NOT NULL,
  created_at DATETIME
);`
	accountWishlistItems := `
CREATE TABLE IF NOT EXISTS account_wishlist_items (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  variant TEXT NOT NULL DEFAULT '',
  position INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  UNIQUE (user_id, product_id, variant)
);`
	require.NoError(t, db.Exec(accountCarts).Error)
	require.NoError(t, db.Exec(accountCartLines).Error)
	require.NoError(t, db.Exec(accountWishlistItems).Error)
	return db
}

func newTestStore(t *testing.T, db *gorm.DB) *Store {
	t.Helper()
	store, err := NewStore(StoreParams{
		DB: db,
		Retry: config.MergeConfig{
			MaxAttempts:    3,
			BackoffInitial: time.Millisecond,
			BackoffMax:     5 * time.Millisecond,
		},
	})
	require.NoError(t, err)
	return store
}

func testState(addedAt time.Time) State {
	state := EmptyState()
	state.Cart.Add(types.NewItemKey("hoodie-01", "M"), 2, decimal.NewFromInt(59), addedAt)
	state.Cart.Add(types.NewItemKey("tee-03", ""), 1, decimal.NewFromInt(25), addedAt.Add(time.Minute))
	state.Wishlist.Add(types.NewItemKey("jacket-07", "L"))
	return state
}

func TestLoadEmptyAccount(t *testing.T) {
	store := newTestStore(t, setupAccountCartTestDB(t))

	state, err := store.Load(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 0, state.Cart.Len())
	assert.Equal(t, 0, state.Wishlist.Len())
}

func TestSaveThenLoadPreservesOrder(t *testing.T) {
	store := newTestStore(t, setupAccountCartTestDB(t))
	ctx := context.Background()
	userID := uuid.New()
	addedAt := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, userID, testState(addedAt)))

	loaded, err := store.Load(ctx, userID)
	require.NoError(t, err)

	lines := loaded.Cart.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "hoodie-01", lines[0].Key.ProductID)
	assert.Equal(t, "M", lines[0].Key.Variant)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, "tee-03", lines[1].Key.ProductID)
	assert.True(t, loaded.Wishlist.Has(types.NewItemKey("jacket-07", "L")))
}

func TestSaveOverwritesPreviousState(t *testing.T) {
	store := newTestStore(t, setupAccountCartTestDB(t))
	ctx := context.Background()
	userID := uuid.New()
	addedAt := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, userID, testState(addedAt)))

	replacement := EmptyState()
	replacement.Cart.Add(types.NewItemKey("cap-11", ""), 1, decimal.NewFromInt(15), addedAt)
	require.NoError(t, store.Save(ctx, userID, replacement))

	loaded, err := store.Load(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, 1, loaded.Cart.Len())
	_, ok := loaded.Cart.Get(types.NewItemKey("cap-11", ""))
	assert.True(t, ok)
	assert.Equal(t, 0, loaded.Wishlist.Len())
}

func TestClearRemovesCartButKeepsWishlist(t *testing.T) {
	store := newTestStore(t, setupAccountCartTestDB(t))
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, store.Save(ctx, userID, testState(time.Now().UTC())))
	require.NoError(t, store.Clear(ctx, userID))

	loaded, err := store.Load(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Cart.Len())
	assert.Equal(t, 1, loaded.Wishlist.Len())

	// Clearing an absent cart is a no-op.
	require.NoError(t, store.Clear(ctx, uuid.New()))
}

func TestSaveWithRetrySucceeds(t *testing.T) {
	store := newTestStore(t, setupAccountCartTestDB(t))
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, store.SaveWithRetry(ctx, userID, testState(time.Now().UTC())))

	loaded, err := store.Load(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Cart.Len())
}

func TestSaveWithRetryExhaustionSurfacesSyncFailed(t *testing.T) {
	db := setupAccountCartTestDB(t)
	store := newTestStore(t, db)
	ctx := context.Background()

	// Dropping the lines table makes every save attempt fail.
	require.NoError(t, db.Exec(`DROP TABLE account_cart_lines`).Error)

	err := store.SaveWithRetry(ctx, uuid.New(), testState(time.Now().UTC()))
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeSyncFailed))
	assert.True(t, pkgerrors.IsRetryable(err))
}

func TestSaveWithRetryDoesNotRetryValidationErrors(t *testing.T) {
	store := newTestStore(t, setupAccountCartTestDB(t))

	err := store.SaveWithRetry(context.Background(), uuid.Nil, testState(time.Now().UTC()))
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}
