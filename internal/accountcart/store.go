package accountcart

import (
	"context"
	"errors"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/raritone/session-backend/pkg/config"
	"github.com/raritone/session-backend/pkg/db/models"
	pkgerrors "github.com/raritone/session-backend/pkg/errors"
	"github.com/raritone/session-backend/pkg/logger"
	"github.com/raritone/session-backend/pkg/types"
)

// State is the account's durable cart and wishlist as one unit. Load never
// returns nil members.
type State struct {
	Cart     *types.Cart
	Wishlist *types.WishlistSet
}

// EmptyState returns a fresh state with no lines and no saved items.
func EmptyState() State {
	return State{Cart: types.NewCart(), Wishlist: types.NewWishlistSet()}
}

// StoreParams groups dependencies for the account cart store.
type StoreParams struct {
	DB     *gorm.DB
	Retry  config.MergeConfig
	Logger *logger.Logger
}

// Store persists per-account carts in Postgres. Save fully overwrites the
// stored state inside one transaction so readers never observe a half-written
// cart.
type Store struct {
	db    *gorm.DB
	retry config.MergeConfig
	logg  *logger.Logger
}

// NewStore builds an account cart store with the required dependencies.
func NewStore(params StoreParams) (*Store, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "db handle is required")
	}
	if params.Retry.MaxAttempts <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "retry max attempts must be positive")
	}
	return &Store{db: params.DB, retry: params.Retry, logg: params.Logger}, nil
}

// Load reads the account's cart and wishlist. An account with no cart row is
// an empty state, not an error.
func (s *Store) Load(ctx context.Context, userID uuid.UUID) (State, error) {
	if userID == uuid.Nil {
		return State{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	state := EmptyState()

	var cart models.AccountCart
	err := s.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("user_id = ?", userID).
		First(&cart).Error
	switch {
	case err == nil:
		for _, line := range cart.Lines {
			state.Cart.Add(
				types.NewItemKey(line.ProductID, line.Variant),
				line.Quantity,
				line.UnitPrice,
				line.AddedAt,
			)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		// no cart yet
	default:
		return State{}, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "loading account cart")
	}

	var items []models.AccountWishlistItem
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("position ASC").
		Find(&items).Error; err != nil {
		return State{}, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "loading account wishlist")
	}
	for _, item := range items {
		state.Wishlist.Add(types.NewItemKey(item.ProductID, item.Variant))
	}

	return state, nil
}

// Save fully overwrites the account's cart and wishlist in one transaction.
func (s *Store) Save(ctx context.Context, userID uuid.UUID, state State) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if state.Cart == nil || state.Wishlist == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart and wishlist are required")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cart models.AccountCart
		err := tx.Where("user_id = ?", userID).First(&cart).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			cart = models.AccountCart{ID: uuid.New(), UserID: userID}
			if err := tx.Create(&cart).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		if err := tx.Where("cart_id = ?", cart.ID).Delete(&models.AccountCartLine{}).Error; err != nil {
			return err
		}
		for i, line := range state.Cart.Lines() {
			record := models.AccountCartLine{
				ID:        uuid.New(),
				CartID:    cart.ID,
				ProductID: line.Key.ProductID,
				Variant:   line.Key.Variant,
				Quantity:  line.Quantity,
				UnitPrice: line.UnitPriceSnapshot,
				Position:  i,
				AddedAt:   line.AddedAt,
			}
			if err := tx.Create(&record).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("user_id = ?", userID).Delete(&models.AccountWishlistItem{}).Error; err != nil {
			return err
		}
		for i, key := range state.Wishlist.Keys() {
			record := models.AccountWishlistItem{
				ID:        uuid.New(),
				UserID:    userID,
				ProductID: key.ProductID,
				Variant:   key.Variant,
				Position:  i,
			}
			if err := tx.Create(&record).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "saving account cart")
	}
	return nil
}

// SaveWithRetry retries Save with bounded exponential backoff. On exhaustion
// it surfaces SYNC_FAILED so the caller keeps the pending state local and
// retries on the next load.
func (s *Store) SaveWithRetry(ctx context.Context, userID uuid.UUID, state State) error {
	op := func() error {
		err := s.Save(ctx, userID, state)
		if err != nil && !pkgerrors.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.retry.BackoffInitial
	policy.MaxInterval = s.retry.BackoffMax

	attempts := uint64(s.retry.MaxAttempts)
	if attempts > 0 {
		attempts--
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, attempts), ctx))
	if err == nil {
		return nil
	}
	if !pkgerrors.IsRetryable(err) {
		return err
	}
	if s.logg != nil {
		s.logg.Warn(s.logg.WithUserID(ctx, userID.String()), "account cart save exhausted retries")
	}
	return pkgerrors.Wrap(pkgerrors.CodeSyncFailed, err, "saving account cart after retries")
}

// Clear removes the account's cart rows. The wishlist is durable and is not
// touched by a cart clear.
func (s *Store) Clear(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cart models.AccountCart
		err := tx.Where("user_id = ?", userID).First(&cart).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.Where("cart_id = ?", cart.ID).Delete(&models.AccountCartLine{}).Error; err != nil {
			return err
		}
		return tx.Delete(&cart).Error
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "clearing account cart")
	}
	return nil
}
