package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/registerhq/retailcore-backend/pkg/enums"
)

// Shift is a cash-drawer session for one actor at one terminal. Expected cash
// is derived from the shift's cash payments at close time and never mutated
// afterwards; corrections append to Notes.
type Shift struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	ActorID           uuid.UUID         `gorm:"column:actor_id;type:uuid;not null;index"`
	LocationID        uuid.UUID         `gorm:"column:location_id;type:uuid;not null"`
	TerminalID        string            `gorm:"column:terminal_id;not null"`
	OpeningCashCents  int               `gorm:"column:opening_cash_cents;not null"`
	ClosingCashCents  *int              `gorm:"column:closing_cash_cents"`
	ExpectedCashCents *int              `gorm:"column:expected_cash_cents"`
	CashDifferenceCents *int            `gorm:"column:cash_difference_cents"`
	Status            enums.ShiftStatus `gorm:"column:status;type:shift_status;not null;default:'open'"`
	Notes             *string           `gorm:"column:notes"`
	StartTime         time.Time         `gorm:"column:start_time;not null"`
	EndTime           *time.Time        `gorm:"column:end_time"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Shift) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
