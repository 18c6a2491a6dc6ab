package catalog

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/raritone/session-backend/pkg/db/models"
	pkgerrors "github.com/raritone/session-backend/pkg/errors"
	"github.com/raritone/session-backend/pkg/types"
)

// StockProvider answers how many units of an item can be sold. A nil ceiling
// means the quantity is not tracked and merges must not cap it.
type StockProvider interface {
	StockCeiling(ctx context.Context, key types.ItemKey) (*int, error)
}

// Repository reads stock ceilings from the product_stocks table.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a stock repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// StockCeiling returns the tracked available quantity for the key, or nil
// when the product has no stock row.
func (r *Repository) StockCeiling(ctx context.Context, key types.ItemKey) (*int, error) {
	if key.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item key is required")
	}

	var row models.ProductStock
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND variant = ?", key.ProductID, key.Variant).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading stock ceiling")
	}

	qty := row.AvailableQty
	return &qty, nil
}
