package models

import (
	"time"

	"github.com/google/uuid"
)

// Inventory holds the on-hand quantity for exactly one product. Quantity never
// goes below zero; every decrement is conditional.
type Inventory struct {
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	Quantity  int       `gorm:"column:quantity;not null;default:0;check:chk_inventories_quantity,quantity >= 0"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
