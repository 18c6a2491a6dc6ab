package models

import (
	"time"

	"github.com/google/uuid"
)

// AccountWishlistItem links a user to a saved item key.
type AccountWishlistItem struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index:account_wishlist_user_id_idx;uniqueIndex:account_wishlist_user_item_key"`
	ProductID string    `gorm:"column:product_id;not null;uniqueIndex:account_wishlist_user_item_key"`
	Variant   string    `gorm:"column:variant;not null;default:'';uniqueIndex:account_wishlist_user_item_key"`
	Position  int       `gorm:"column:position;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
