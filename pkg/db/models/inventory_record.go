package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InventoryRecord tracks on-hand/reserved counts per variant per location.
// QuantityOnHand is only ever changed through the inventory ledger; rows are
// created lazily on the first stock event for a (variant, location) pair.
type InventoryRecord struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	VariantID      uuid.UUID `gorm:"column:variant_id;type:uuid;not null;uniqueIndex:ux_inventory_variant_location"`
	LocationID     uuid.UUID `gorm:"column:location_id;type:uuid;not null;uniqueIndex:ux_inventory_variant_location"`
	QuantityOnHand int       `gorm:"column:quantity_on_hand;not null;default:0"`
	QuantityReserved int     `gorm:"column:quantity_reserved;not null;default:0"`
	ReorderLevel   int       `gorm:"column:reorder_level;not null;default:0"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *InventoryRecord) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
