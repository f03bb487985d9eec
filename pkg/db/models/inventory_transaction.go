package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/registerhq/retailcore-backend/pkg/enums"
)

// InventoryTransaction is an immutable, append-only stock movement. Replaying
// all rows for a (variant, location) pair in order reproduces QuantityOnHand.
type InventoryTransaction struct {
	ID             uuid.UUID                      `gorm:"column:id;type:uuid;primaryKey"`
	VariantID      uuid.UUID                      `gorm:"column:variant_id;type:uuid;not null;index:ix_inventory_txns_variant_location"`
	LocationID     uuid.UUID                      `gorm:"column:location_id;type:uuid;not null;index:ix_inventory_txns_variant_location"`
	Type           enums.InventoryTransactionType `gorm:"column:type;type:inventory_transaction_type;not null"`
	QuantityChange int                            `gorm:"column:quantity_change;not null"`
	QuantityBefore int                            `gorm:"column:quantity_before;not null"`
	QuantityAfter  int                            `gorm:"column:quantity_after;not null"`
	ReferenceType  string                         `gorm:"column:reference_type;not null"`
	ReferenceID    *uuid.UUID                     `gorm:"column:reference_id;type:uuid"`
	ActorID        uuid.UUID                      `gorm:"column:actor_id;type:uuid;not null"`
	CreatedAt      time.Time                      `gorm:"column:created_at;autoCreateTime"`
}

func (t *InventoryTransaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
