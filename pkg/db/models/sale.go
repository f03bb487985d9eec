package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/registerhq/retailcore-backend/pkg/enums"
)

// Sale is the durable record of a completed transaction. It is created once,
// atomically with its items and payments, and only ever transitions
// completed -> voided.
type Sale struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	SaleNumber     string             `gorm:"column:sale_number;not null;uniqueIndex:ux_sales_sale_number"`
	LocationID     uuid.UUID          `gorm:"column:location_id;type:uuid;not null;index"`
	ShiftID        *uuid.UUID         `gorm:"column:shift_id;type:uuid;index"`
	ActorID        uuid.UUID          `gorm:"column:actor_id;type:uuid;not null"`
	CustomerID     *uuid.UUID         `gorm:"column:customer_id;type:uuid"`
	SubtotalCents  int                `gorm:"column:subtotal_cents;not null"`
	TaxCents       int                `gorm:"column:tax_cents;not null;default:0"`
	DiscountCents  int                `gorm:"column:discount_cents;not null;default:0"`
	DiscountType   enums.DiscountType `gorm:"column:discount_type;type:discount_type;not null;default:'none'"`
	TotalCents     int                `gorm:"column:total_cents;not null"`
	Status         enums.SaleStatus   `gorm:"column:status;type:sale_status;not null;default:'completed'"`
	VoidedBy       *uuid.UUID         `gorm:"column:voided_by;type:uuid"`
	VoidedAt       *time.Time         `gorm:"column:voided_at"`
	VoidReason     *string            `gorm:"column:void_reason"`
	Items          []SaleItem         `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE"`
	Payments       []SalePayment      `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Sale) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
