package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/registerhq/retailcore-backend/internal/inventory"
	"github.com/registerhq/retailcore-backend/pkg/db/models"
	"github.com/registerhq/retailcore-backend/pkg/enums"
	pkgerrors "github.com/registerhq/retailcore-backend/pkg/errors"
	"github.com/registerhq/retailcore-backend/pkg/metrics"
	"github.com/registerhq/retailcore-backend/pkg/outbox"
	"github.com/registerhq/retailcore-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// shiftVerifier confirms a shift is open before a sale attaches to it.
type shiftVerifier interface {
	VerifyOpen(ctx context.Context, tx *gorm.DB, shiftID uuid.UUID) error
}

// ItemInput is one cart line submitted for sale creation.
type ItemInput struct {
	VariantID      uuid.UUID `json:"variant_id"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int       `json:"unit_price_cents"`
	DiscountCents  int       `json:"discount_cents"`
	TaxCents       int       `json:"tax_cents"`
}

// PaymentInput is one tender submitted for sale creation.
type PaymentInput struct {
	Method          enums.PaymentMethod `json:"method"`
	AmountCents     int                 `json:"amount_cents"`
	ReferenceNumber *string             `json:"reference_number"`
}

// CreateInput carries everything needed to persist one sale atomically.
type CreateInput struct {
	LocationID    uuid.UUID
	ActorID       uuid.UUID
	CustomerID    *uuid.UUID
	ShiftID       *uuid.UUID
	Items         []ItemInput
	Payments      []PaymentInput
	DiscountCents int
	DiscountType  enums.DiscountType
}

// CreateResult identifies the persisted sale.
type CreateResult struct {
	SaleID     uuid.UUID `json:"sale_id"`
	SaleNumber string    `json:"sale_number"`
	TotalCents int       `json:"total_cents"`
}

// VoidInput identifies a completed sale to reverse.
type VoidInput struct {
	SaleID  uuid.UUID
	ActorID uuid.UUID
	Reason  string
}

// SaleCompletedEvent is the outbox payload queued when a sale commits.
type SaleCompletedEvent struct {
	SaleID     uuid.UUID `json:"sale_id"`
	SaleNumber string    `json:"sale_number"`
	LocationID uuid.UUID `json:"location_id"`
	TotalCents int       `json:"total_cents"`
	ItemCount  int       `json:"item_count"`
}

// SaleVoidedEvent is the outbox payload queued when a void commits.
type SaleVoidedEvent struct {
	SaleID     uuid.UUID `json:"sale_id"`
	SaleNumber string    `json:"sale_number"`
	LocationID uuid.UUID `json:"location_id"`
	VoidedBy   uuid.UUID `json:"voided_by"`
	Reason     string    `json:"reason"`
}

// Service creates and voids sales. Every write path runs inside one database
// transaction spanning the sale rows and their inventory ledger mutations, so
// a failed line never leaves a partial sale behind.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*CreateResult, error)
	Void(ctx context.Context, input VoidInput) error
	Get(ctx context.Context, saleID uuid.UUID) (*models.Sale, error)
	List(ctx context.Context, locationID uuid.UUID, params pagination.Params) ([]models.Sale, error)
}

type service struct {
	repo      Repository
	tx        txRunner
	inventory inventory.Service
	shifts    shiftVerifier
	outbox    outboxPublisher
	metrics   *metrics.EngineMetrics
}

// NewService wires the sale transaction service. The shift verifier, outbox
// publisher and metrics are optional.
func NewService(
	repo Repository,
	tx txRunner,
	inv inventory.Service,
	shifts shiftVerifier,
	publisher outboxPublisher,
	engineMetrics *metrics.EngineMetrics,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("sales repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		inventory: inv,
		shifts:    shifts,
		outbox:    publisher,
		metrics:   engineMetrics,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*CreateResult, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	subtotal := 0
	tax := 0
	for _, item := range input.Items {
		subtotal += item.UnitPriceCents * item.Quantity
		tax += item.TaxCents
	}
	total := subtotal + tax - input.DiscountCents
	if total < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount exceeds sale total").
			WithDetails(map[string]any{
				"subtotal_cents": subtotal,
				"tax_cents":      tax,
				"discount_cents": input.DiscountCents,
			})
	}

	paymentTotal := 0
	for _, payment := range input.Payments {
		paymentTotal += payment.AmountCents
	}
	if paymentTotal != total {
		return nil, pkgerrors.New(pkgerrors.CodePaymentMismatch, "payments do not equal sale total").
			WithDetails(map[string]any{
				"expected_total_cents": total,
				"payment_total_cents":  paymentTotal,
			})
	}

	discountType := input.DiscountType
	if discountType == "" {
		discountType = enums.DiscountTypeNone
	}

	sale := &models.Sale{
		SaleNumber:    GenerateSaleNumber(time.Now()),
		LocationID:    input.LocationID,
		ShiftID:       input.ShiftID,
		ActorID:       input.ActorID,
		CustomerID:    input.CustomerID,
		SubtotalCents: subtotal,
		TaxCents:      tax,
		DiscountCents: input.DiscountCents,
		DiscountType:  discountType,
		TotalCents:    total,
		Status:        enums.SaleStatusCompleted,
	}
	for _, item := range input.Items {
		sale.Items = append(sale.Items, models.SaleItem{
			VariantID:      item.VariantID,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			DiscountCents:  item.DiscountCents,
			TaxCents:       item.TaxCents,
			LineTotalCents: item.UnitPriceCents * item.Quantity,
		})
	}
	for _, payment := range input.Payments {
		sale.Payments = append(sale.Payments, models.SalePayment{
			Method:          payment.Method,
			AmountCents:     payment.AmountCents,
			ReferenceNumber: payment.ReferenceNumber,
		})
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if input.ShiftID != nil && s.shifts != nil {
			if err := s.shifts.VerifyOpen(ctx, tx, *input.ShiftID); err != nil {
				return err
			}
		}

		if err := s.repo.WithTx(tx).Create(ctx, sale); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist sale")
		}

		for _, item := range input.Items {
			saleID := sale.ID
			_, err := s.inventory.Mutate(ctx, tx, inventory.MutateInput{
				VariantID:      item.VariantID,
				LocationID:     input.LocationID,
				QuantityChange: -item.Quantity,
				Type:           enums.InventoryTxnSale,
				ReferenceType:  "sale",
				ReferenceID:    &saleID,
				ActorID:        input.ActorID,
			})
			if err != nil {
				return err
			}
		}

		if s.outbox != nil {
			event := outbox.DomainEvent{
				EventType:     enums.EventSaleCompleted,
				AggregateType: enums.AggregateSale,
				AggregateID:   sale.ID,
				LocationID:    input.LocationID,
				Actor:         &outbox.ActorRef{ActorID: input.ActorID, LocationID: &input.LocationID},
				Data: SaleCompletedEvent{
					SaleID:     sale.ID,
					SaleNumber: sale.SaleNumber,
					LocationID: input.LocationID,
					TotalCents: total,
					ItemCount:  len(sale.Items),
				},
				Version: 1,
			}
			if err := s.outbox.Emit(ctx, tx, event); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue sale completed event")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncSaleCreated()
	return &CreateResult{
		SaleID:     sale.ID,
		SaleNumber: sale.SaleNumber,
		TotalCents: total,
	}, nil
}

func (s *service) Void(ctx context.Context, input VoidInput) error {
	if input.SaleID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "sale id required")
	}
	if input.ActorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "actor id required")
	}

	sale, err := s.Get(ctx, input.SaleID)
	if err != nil {
		return err
	}
	if sale.Status == enums.SaleStatusVoided {
		return alreadyVoided(sale.ID)
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		for _, item := range sale.Items {
			saleID := sale.ID
			_, err := s.inventory.Mutate(ctx, tx, inventory.MutateInput{
				VariantID:      item.VariantID,
				LocationID:     sale.LocationID,
				QuantityChange: item.Quantity,
				Type:           enums.InventoryTxnVoidRestore,
				ReferenceType:  "sale",
				ReferenceID:    &saleID,
				ActorID:        input.ActorID,
			})
			if err != nil {
				return err
			}
		}

		flipped, err := s.repo.WithTx(tx).MarkVoided(ctx, sale.ID, input.ActorID, input.Reason, time.Now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark sale voided")
		}
		if !flipped {
			// a concurrent void won the race; roll back our restorations
			return alreadyVoided(sale.ID)
		}

		if s.outbox != nil {
			event := outbox.DomainEvent{
				EventType:     enums.EventSaleVoided,
				AggregateType: enums.AggregateSale,
				AggregateID:   sale.ID,
				LocationID:    sale.LocationID,
				Actor:         &outbox.ActorRef{ActorID: input.ActorID, LocationID: &sale.LocationID},
				Data: SaleVoidedEvent{
					SaleID:     sale.ID,
					SaleNumber: sale.SaleNumber,
					LocationID: sale.LocationID,
					VoidedBy:   input.ActorID,
					Reason:     input.Reason,
				},
				Version: 1,
			}
			if err := s.outbox.Emit(ctx, tx, event); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue sale voided event")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.IncSaleVoided()
	return nil
}

func (s *service) Get(ctx context.Context, saleID uuid.UUID) (*models.Sale, error) {
	if saleID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale id required")
	}
	sale, err := s.repo.FindByID(ctx, saleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sale not found").
				WithDetails(map[string]any{"sale_id": saleID.String()})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sale")
	}
	return sale, nil
}

func (s *service) List(ctx context.Context, locationID uuid.UUID, params pagination.Params) ([]models.Sale, error) {
	if locationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "location id required")
	}
	sales, err := s.repo.ListByLocation(ctx, locationID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list sales")
	}
	return sales, nil
}

func validateCreateInput(input CreateInput) error {
	if input.LocationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "location id required")
	}
	if input.ActorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "actor id required")
	}
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one item required")
	}
	if len(input.Payments) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one payment required")
	}
	if input.DiscountCents < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount cannot be negative")
	}
	if input.DiscountType != "" && !input.DiscountType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid discount type").
			WithDetails(map[string]any{"discount_type": string(input.DiscountType)})
	}
	for i, item := range input.Items {
		if item.VariantID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "item variant id required").
				WithDetails(map[string]any{"index": i})
		}
		if item.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive").
				WithDetails(map[string]any{"index": i, "variant_id": item.VariantID.String()})
		}
		if item.UnitPriceCents < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "item unit price cannot be negative").
				WithDetails(map[string]any{"index": i, "variant_id": item.VariantID.String()})
		}
		if item.DiscountCents < 0 || item.TaxCents < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "item discount and tax cannot be negative").
				WithDetails(map[string]any{"index": i, "variant_id": item.VariantID.String()})
		}
	}
	for i, payment := range input.Payments {
		if !payment.Method.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method").
				WithDetails(map[string]any{"index": i, "method": string(payment.Method)})
		}
		if payment.AmountCents <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive").
				WithDetails(map[string]any{"index": i})
		}
	}
	return nil
}

func alreadyVoided(saleID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "sale already voided").
		WithDetails(map[string]any{"sale_id": saleID.String()})
}
