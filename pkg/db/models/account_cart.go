package models

import (
	"time"

	"github.com/google/uuid"
)

// AccountCart is the durable per-account cart. Exactly one row exists per
// user id; it is the source of truth once the user is authenticated.
type AccountCart struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID         `gorm:"column:user_id;type:uuid;not null;uniqueIndex:account_carts_user_id_key"`
	Lines     []AccountCartLine `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
