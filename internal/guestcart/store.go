package guestcart

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/raritone/session-backend/pkg/errors"
	"github.com/raritone/session-backend/pkg/logger"
	"github.com/raritone/session-backend/pkg/redis"
	"github.com/raritone/session-backend/pkg/types"
)

// schemaVersion is the current guest document layout. Version 0 (a bare line
// array, the pre-versioning layout) is still readable and migrates on load.
const schemaVersion = 1

// KV is the subset of the redis client the guest store needs.
type KV interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	GuestCartKey(sessionID string) string
}

// State is the guest session's cart and wishlist as one unit. Load never
// returns nil members.
type State struct {
	Cart     *types.Cart
	Wishlist *types.WishlistSet
}

// EmptyState returns a fresh state with no lines and no saved items.
func EmptyState() State {
	return State{Cart: types.NewCart(), Wishlist: types.NewWishlistSet()}
}

// StoreParams groups dependencies for the guest cart store.
type StoreParams struct {
	KV     KV
	TTL    time.Duration
	Logger *logger.Logger
}

// Store persists guest session carts in Redis. Documents expire after the
// configured TTL so abandoned guest sessions clean themselves up.
type Store struct {
	kv   KV
	ttl  time.Duration
	logg *logger.Logger
}

// NewStore builds a guest cart store with the required dependencies.
func NewStore(params StoreParams) (*Store, error) {
	if params.KV == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "kv client is required")
	}
	if params.TTL <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guest cart ttl must be positive")
	}
	return &Store{kv: params.KV, ttl: params.TTL, logg: params.Logger}, nil
}

// Load reads the guest document for the session. A missing key is an empty
// state, not an error; an unreachable store or an unreadable document surfaces
// as STORE_UNAVAILABLE so callers degrade instead of treating the session as
// authoritatively empty.
func (s *Store) Load(ctx context.Context, sessionID string) (State, error) {
	if strings.TrimSpace(sessionID) == "" {
		return State{}, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}

	raw, err := s.kv.Get(ctx, s.kv.GuestCartKey(sessionID))
	if err != nil {
		if redis.IsNil(err) {
			return EmptyState(), nil
		}
		return State{}, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "loading guest cart")
	}

	state, migrated, err := decodeDocument(raw)
	if err != nil {
		// Leave the stored bytes untouched; a newer deploy may be able to
		// read them.
		return State{}, err
	}
	if migrated && s.logg != nil {
		s.logg.Info(s.logg.WithSessionID(ctx, sessionID), "migrated legacy guest cart document")
	}
	return state, nil
}

// Save fully overwrites the session's document. The write is a single SET so
// readers never observe partial lines.
func (s *Store) Save(ctx context.Context, sessionID string, state State) error {
	if strings.TrimSpace(sessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}

	payload, err := json.Marshal(encodeDocument(state))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding guest cart")
	}
	if err := s.kv.Set(ctx, s.kv.GuestCartKey(sessionID), payload, s.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "saving guest cart")
	}
	return nil
}

// Clear removes the session's document. Clearing an absent session is a no-op.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if err := s.kv.Del(ctx, s.kv.GuestCartKey(sessionID)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "clearing guest cart")
	}
	return nil
}

type document struct {
	SchemaVersion int       `json:"schema_version"`
	Cart          []lineDoc `json:"cart"`
	Wishlist      []string  `json:"wishlist"`
}

type lineDoc struct {
	ProductID string          `json:"product_id"`
	Variant   string          `json:"variant,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	AddedAt   time.Time       `json:"added_at"`
}

func encodeDocument(state State) document {
	doc := document{SchemaVersion: schemaVersion}
	for _, line := range state.Cart.Lines() {
		doc.Cart = append(doc.Cart, lineDoc{
			ProductID: line.Key.ProductID,
			Variant:   line.Key.Variant,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPriceSnapshot,
			AddedAt:   line.AddedAt,
		})
	}
	for _, key := range state.Wishlist.Keys() {
		doc.Wishlist = append(doc.Wishlist, key.String())
	}
	return doc
}

func decodeDocument(raw string) (State, bool, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return EmptyState(), false, nil
	}

	// Version 0 stored the cart as a bare JSON array with no envelope.
	if strings.HasPrefix(trimmed, "[") {
		var lines []lineDoc
		if err := json.Unmarshal([]byte(trimmed), &lines); err != nil {
			return State{}, false, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "decoding legacy guest cart")
		}
		return State{Cart: cartFromDocs(lines), Wishlist: types.NewWishlistSet()}, true, nil
	}

	var doc document
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		return State{}, false, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "decoding guest cart")
	}
	if doc.SchemaVersion > schemaVersion {
		return State{}, false, pkgerrors.New(pkgerrors.CodeStoreUnavailable, "guest cart document uses a newer schema version")
	}

	wishlist := types.NewWishlistSet()
	for _, raw := range doc.Wishlist {
		key, err := types.ParseItemKey(raw)
		if err != nil {
			continue
		}
		wishlist.Add(key)
	}
	return State{Cart: cartFromDocs(doc.Cart), Wishlist: wishlist}, false, nil
}

func cartFromDocs(docs []lineDoc) *types.Cart {
	lines := make([]types.CartLine, 0, len(docs))
	for _, d := range docs {
		lines = append(lines, types.CartLine{
			Key:               types.NewItemKey(d.ProductID, d.Variant),
			Quantity:          d.Quantity,
			UnitPriceSnapshot: d.UnitPrice,
			AddedAt:           d.AddedAt,
		})
	}
	return types.CartFromLines(lines)
}
