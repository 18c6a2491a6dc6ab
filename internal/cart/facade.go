package cart

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/raritone/session-backend/internal/accountcart"
	"github.com/raritone/session-backend/internal/guestcart"
	"github.com/raritone/session-backend/pkg/eventbus"
	pkgerrors "github.com/raritone/session-backend/pkg/errors"
	"github.com/raritone/session-backend/pkg/logger"
	"github.com/raritone/session-backend/pkg/types"
)

// LocalStore is the guest-session store the facade reads and writes while the
// session is anonymous.
type LocalStore interface {
	Load(ctx context.Context, sessionID string) (guestcart.State, error)
	Save(ctx context.Context, sessionID string, state guestcart.State) error
	Clear(ctx context.Context, sessionID string) error
}

// RemoteStore is the account store used once the session is authenticated.
type RemoteStore interface {
	Load(ctx context.Context, userID uuid.UUID) (accountcart.State, error)
	Save(ctx context.Context, userID uuid.UUID, state accountcart.State) error
}

// Facade is the single owner of one session's cart and wishlist. Mutations
// are serialized through its mutex and applied in call order, each completing
// its store write before the next is accepted. Reads never block on a broken
// store: if the authoritative store cannot be read, the facade serves the
// last known-good in-memory state flagged as degraded.
type Facade struct {
	sessionID string
	local     LocalStore
	remote    RemoteStore
	bus       *eventbus.Bus
	logg      *logger.Logger

	mu        sync.Mutex
	userID    uuid.UUID
	cart      *types.Cart
	wishlist  *types.WishlistSet
	hydrated  bool
	degraded  bool
	updatedAt time.Time
}

func newFacade(sessionID string, local LocalStore, remote RemoteStore, bus *eventbus.Bus, logg *logger.Logger) *Facade {
	return &Facade{
		sessionID: sessionID,
		local:     local,
		remote:    remote,
		bus:       bus,
		logg:      logg,
		cart:      types.NewCart(),
		wishlist:  types.NewWishlistSet(),
	}
}

// AddItem inserts the key at the end of the cart, or increments the existing
// line. Quantities below one are rejected with INVALID_QUANTITY.
func (f *Facade) AddItem(ctx context.Context, key types.ItemKey, quantity int, unitPrice decimal.Decimal) (types.Snapshot, error) {
	if key.IsZero() {
		return types.Snapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "item key is required")
	}
	if quantity < 1 {
		return types.Snapshot{}, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity must be at least 1")
	}
	return f.mutate(ctx, eventbus.KindCartChanged, func() {
		f.cart.Add(key, quantity, unitPrice, time.Now().UTC())
	})
}

// RemoveItem deletes the line for key. Removing an absent key is a no-op, not
// an error, so UI double-clicks never fail.
func (f *Facade) RemoveItem(ctx context.Context, key types.ItemKey) (types.Snapshot, error) {
	if key.IsZero() {
		return types.Snapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "item key is required")
	}
	return f.mutate(ctx, eventbus.KindCartChanged, func() {
		f.cart.Remove(key)
	})
}

// SetQuantity overwrites the line's quantity. Zero behaves exactly like
// RemoveItem; negative values are rejected with INVALID_QUANTITY.
func (f *Facade) SetQuantity(ctx context.Context, key types.ItemKey, quantity int) (types.Snapshot, error) {
	if key.IsZero() {
		return types.Snapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "item key is required")
	}
	if quantity < 0 {
		return types.Snapshot{}, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity must not be negative")
	}
	return f.mutate(ctx, eventbus.KindCartChanged, func() {
		f.cart.SetQuantity(key, quantity)
	})
}

// ClearCart removes every line. The wishlist is untouched.
func (f *Facade) ClearCart(ctx context.Context) (types.Snapshot, error) {
	return f.mutate(ctx, eventbus.KindCartChanged, func() {
		f.cart = types.NewCart()
	})
}

// AddWish saves the key to the wishlist. Saving twice is a no-op.
func (f *Facade) AddWish(ctx context.Context, key types.ItemKey) (types.Snapshot, error) {
	if key.IsZero() {
		return types.Snapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "item key is required")
	}
	return f.mutate(ctx, eventbus.KindWishlistChanged, func() {
		f.wishlist.Add(key)
	})
}

// RemoveWish drops the key from the wishlist. Absent keys are a no-op.
func (f *Facade) RemoveWish(ctx context.Context, key types.ItemKey) (types.Snapshot, error) {
	if key.IsZero() {
		return types.Snapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "item key is required")
	}
	return f.mutate(ctx, eventbus.KindWishlistChanged, func() {
		f.wishlist.Remove(key)
	})
}

// Snapshot returns the current cart view. It never fails: when the
// authoritative store cannot be read and nothing was loaded before, it
// returns an empty snapshot flagged degraded rather than an authoritative
// empty cart.
func (f *Facade) Snapshot(ctx context.Context) types.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hydrateLocked(ctx)
	return f.snapshotLocked()
}

// Subscribe registers a handler for this session's cart and wishlist events
// and returns the unsubscribe handle.
func (f *Facade) Subscribe(handler eventbus.Handler) func() {
	return f.bus.Subscribe(f.sessionID, handler)
}

// SetAuthenticated re-points the facade at the account store and replaces the
// in-memory state, typically with the result of a login merge or an account
// switch. Subscribers hear about the new state only after the facade reads
// agree with it.
func (f *Facade) SetAuthenticated(userID uuid.UUID, state accountcart.State) {
	f.mu.Lock()
	f.userID = userID
	f.cart = state.Cart.Clone()
	f.wishlist = state.Wishlist.Clone()
	f.hydrated = true
	f.degraded = false
	f.updatedAt = time.Now().UTC()
	snapshot := f.snapshotLocked()
	f.mu.Unlock()

	f.publishTransition(snapshot)
}

// SetAnonymous resets the facade to a fresh guest state after logout.
func (f *Facade) SetAnonymous() {
	f.mu.Lock()
	f.userID = uuid.Nil
	f.cart = types.NewCart()
	f.wishlist = types.NewWishlistSet()
	f.hydrated = true
	f.degraded = false
	f.updatedAt = time.Now().UTC()
	snapshot := f.snapshotLocked()
	f.mu.Unlock()

	f.publishTransition(snapshot)
}

// publishTransition announces an auth transition: the cart and wishlist both
// changed wholesale, then the auth event itself.
func (f *Facade) publishTransition(snapshot types.Snapshot) {
	f.bus.Publish(eventbus.Event{Kind: eventbus.KindCartChanged, SessionID: f.sessionID, Snapshot: snapshot})
	f.bus.Publish(eventbus.Event{Kind: eventbus.KindWishlistChanged, SessionID: f.sessionID, Snapshot: snapshot})
	f.bus.Publish(eventbus.Event{Kind: eventbus.KindAuthChanged, SessionID: f.sessionID, Snapshot: snapshot})
}

// UserID returns the authenticated user, or uuid.Nil for a guest session.
func (f *Facade) UserID() uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.userID
}

// mutate applies fn to the in-memory state and writes it through to the
// authoritative store before returning. A failed write keeps the in-memory
// change and flags the snapshot degraded instead of failing the call; only
// caller-input errors are synchronous failures. A session that has never been
// hydrated refuses to mutate blind, since saving on top of an unread store
// could overwrite committed lines.
func (f *Facade) mutate(ctx context.Context, kind eventbus.Kind, fn func()) (types.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.hydrateLocked(ctx)
	if !f.hydrated {
		return types.Snapshot{}, pkgerrors.New(pkgerrors.CodeStoreUnavailable, "cart store is unavailable")
	}

	fn()
	f.updatedAt = time.Now().UTC()

	if err := f.saveLocked(ctx); err != nil {
		f.degraded = true
		f.logg.Warn(f.logg.WithSessionID(ctx, f.sessionID), "cart write failed, serving degraded state")
	} else {
		f.degraded = false
	}

	snapshot := f.snapshotLocked()
	f.bus.Publish(eventbus.Event{Kind: kind, SessionID: f.sessionID, Snapshot: snapshot})
	return snapshot, nil
}

func (f *Facade) hydrateLocked(ctx context.Context) {
	if f.hydrated {
		return
	}
	if f.userID != uuid.Nil {
		state, err := f.remote.Load(ctx, f.userID)
		if err != nil {
			f.degraded = true
			return
		}
		f.cart = state.Cart
		f.wishlist = state.Wishlist
	} else {
		state, err := f.local.Load(ctx, f.sessionID)
		if err != nil {
			f.degraded = true
			return
		}
		f.cart = state.Cart
		f.wishlist = state.Wishlist
	}
	f.hydrated = true
	f.degraded = false
	f.updatedAt = time.Now().UTC()
}

func (f *Facade) saveLocked(ctx context.Context) error {
	if f.userID != uuid.Nil {
		return f.remote.Save(ctx, f.userID, accountcart.State{Cart: f.cart, Wishlist: f.wishlist})
	}
	return f.local.Save(ctx, f.sessionID, guestcart.State{Cart: f.cart, Wishlist: f.wishlist})
}

func (f *Facade) snapshotLocked() types.Snapshot {
	return types.NewSnapshot(f.cart, f.wishlist, f.degraded, f.updatedAt)
}
