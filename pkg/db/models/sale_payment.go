package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/registerhq/retailcore-backend/pkg/enums"
)

// SalePayment is one tender applied to a sale. The sum of a sale's payments
// equals Sale.TotalCents exactly at creation time.
type SalePayment struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	SaleID          uuid.UUID           `gorm:"column:sale_id;type:uuid;not null;index"`
	Method          enums.PaymentMethod `gorm:"column:method;type:payment_method;not null"`
	AmountCents     int                 `gorm:"column:amount_cents;not null"`
	ReferenceNumber *string             `gorm:"column:reference_number"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (p *SalePayment) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
