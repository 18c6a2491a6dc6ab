package models

import "time"

// ProductStock tracks the available count per product variant. The
// reconciliation engine reads it as an optional ceiling when merging carts;
// rows may be absent for products without stock tracking.
type ProductStock struct {
	ProductID    string    `gorm:"column:product_id;primaryKey"`
	Variant      string    `gorm:"column:variant;primaryKey;not null;default:''"`
	AvailableQty int       `gorm:"column:available_qty;not null;default:0"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
