package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

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

// MutateInput carries one ledger mutation. QuantityChange is signed.
type MutateInput struct {
	VariantID      uuid.UUID
	LocationID     uuid.UUID
	QuantityChange int
	Type           enums.InventoryTransactionType
	ReferenceType  string
	ReferenceID    *uuid.UUID
	ActorID        uuid.UUID
	// AllowNegative lets pre-authorized manual mutations drive stock below
	// zero. It is never honored for sale or transfer-out mutations.
	AllowNegative bool
}

// MutationResult reports the stock level around one applied mutation.
type MutationResult struct {
	PreviousStock int `json:"previous_stock"`
	NewStock      int `json:"new_stock"`
}

// TransferInput moves quantity between two locations of the same variant.
type TransferInput struct {
	VariantID      uuid.UUID
	FromLocationID uuid.UUID
	ToLocationID   uuid.UUID
	Quantity       int
	ActorID        uuid.UUID
}

// InventoryUpdatedEvent is the outbox payload for stock changes.
type InventoryUpdatedEvent struct {
	VariantID     uuid.UUID                      `json:"variant_id"`
	LocationID    uuid.UUID                      `json:"location_id"`
	Type          enums.InventoryTransactionType `json:"type"`
	PreviousStock int                            `json:"previous_stock"`
	NewStock      int                            `json:"new_stock"`
}

// Service owns the stock-quantity invariants. Every mutation pairs a guarded
// quantity update with one immutable transaction-log row, inside the caller's
// database transaction; the ledger never commits on its own.
type Service interface {
	Mutate(ctx context.Context, tx *gorm.DB, input MutateInput) (*MutationResult, error)
	Adjust(ctx context.Context, input MutateInput) (*MutationResult, error)
	Transfer(ctx context.Context, input TransferInput) error
	OnHand(ctx context.Context, variantID, locationID uuid.UUID) (*models.InventoryRecord, error)
	Transactions(ctx context.Context, variantID, locationID uuid.UUID, params pagination.Params) ([]models.InventoryTransaction, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	metrics *metrics.EngineMetrics
}

// NewService wires the inventory ledger with its repository and transaction
// runner. The outbox publisher and metrics are optional; without a publisher
// mutations still apply but no inventory_updated events are queued.
func NewService(repo Repository, tx txRunner, publisher outboxPublisher, engineMetrics *metrics.EngineMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, outbox: publisher, metrics: engineMetrics}, nil
}

func (s *service) Mutate(ctx context.Context, tx *gorm.DB, input MutateInput) (*MutationResult, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "inventory mutation requires an enclosing transaction")
	}
	if err := validateMutateInput(input); err != nil {
		return nil, err
	}

	repo := s.repo.WithTx(tx)

	if _, err := repo.EnsureRecord(ctx, input.VariantID, input.LocationID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure inventory record")
	}

	guardNegative := input.Type.GuardsOversell() || !input.AllowNegative
	applied, err := repo.ApplyDelta(ctx, input.VariantID, input.LocationID, input.QuantityChange, guardNegative)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply stock delta")
	}
	if !applied {
		record, findErr := repo.FindRecord(ctx, input.VariantID, input.LocationID)
		onHand := 0
		if findErr == nil && record != nil {
			onHand = record.QuantityOnHand
		}
		s.metrics.IncOversellDenied(string(input.Type))
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "stock would go negative").
			WithDetails(map[string]any{
				"variant_id":  input.VariantID.String(),
				"location_id": input.LocationID.String(),
				"on_hand":     onHand,
				"requested":   -input.QuantityChange,
			})
	}

	record, err := repo.FindRecord(ctx, input.VariantID, input.LocationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload inventory record")
	}

	result := &MutationResult{
		PreviousStock: record.QuantityOnHand - input.QuantityChange,
		NewStock:      record.QuantityOnHand,
	}

	txn := &models.InventoryTransaction{
		VariantID:      input.VariantID,
		LocationID:     input.LocationID,
		Type:           input.Type,
		QuantityChange: input.QuantityChange,
		QuantityBefore: result.PreviousStock,
		QuantityAfter:  result.NewStock,
		ReferenceType:  input.ReferenceType,
		ReferenceID:    input.ReferenceID,
		ActorID:        input.ActorID,
	}
	if err := repo.AppendTransaction(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append inventory transaction")
	}

	if s.outbox != nil {
		event := outbox.DomainEvent{
			EventType:     enums.EventInventoryUpdated,
			AggregateType: enums.AggregateInventoryRecord,
			AggregateID:   record.ID,
			LocationID:    input.LocationID,
			Actor:         &outbox.ActorRef{ActorID: input.ActorID},
			Data: InventoryUpdatedEvent{
				VariantID:     input.VariantID,
				LocationID:    input.LocationID,
				Type:          input.Type,
				PreviousStock: result.PreviousStock,
				NewStock:      result.NewStock,
			},
			Version: 1,
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// Adjust applies one standalone manual mutation in its own transaction.
func (s *service) Adjust(ctx context.Context, input MutateInput) (*MutationResult, error) {
	switch input.Type {
	case enums.InventoryTxnAdjustment, enums.InventoryTxnReceive:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "adjust accepts adjustment or receive mutations only")
	}

	var result *MutationResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var mutErr error
		result, mutErr = s.Mutate(ctx, tx, input)
		return mutErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Transfer applies the paired out/in legs atomically. Rows are touched in
// lexical location order so two opposing transfers cannot deadlock.
func (s *service) Transfer(ctx context.Context, input TransferInput) error {
	if input.Quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "transfer quantity must be positive")
	}
	if input.FromLocationID == input.ToLocationID {
		return pkgerrors.New(pkgerrors.CodeValidation, "transfer requires distinct locations")
	}

	out := MutateInput{
		VariantID:      input.VariantID,
		LocationID:     input.FromLocationID,
		QuantityChange: -input.Quantity,
		Type:           enums.InventoryTxnTransferOut,
		ReferenceType:  "transfer",
		ActorID:        input.ActorID,
	}
	in := MutateInput{
		VariantID:      input.VariantID,
		LocationID:     input.ToLocationID,
		QuantityChange: input.Quantity,
		Type:           enums.InventoryTxnTransferIn,
		ReferenceType:  "transfer",
		ActorID:        input.ActorID,
	}

	legs := []MutateInput{out, in}
	if strings.Compare(input.ToLocationID.String(), input.FromLocationID.String()) < 0 {
		legs = []MutateInput{in, out}
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		for _, leg := range legs {
			if _, err := s.Mutate(ctx, tx, leg); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *service) OnHand(ctx context.Context, variantID, locationID uuid.UUID) (*models.InventoryRecord, error) {
	record, err := s.repo.FindRecord(ctx, variantID, locationID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inventory record not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find inventory record")
	}
	return record, nil
}

func (s *service) Transactions(ctx context.Context, variantID, locationID uuid.UUID, params pagination.Params) ([]models.InventoryTransaction, error) {
	txns, err := s.repo.ListTransactions(ctx, variantID, locationID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list inventory transactions")
	}
	return txns, nil
}

func validateMutateInput(input MutateInput) error {
	if input.VariantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "variant id required")
	}
	if input.LocationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "location id required")
	}
	if input.ActorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "actor id required")
	}
	if input.QuantityChange == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity change must be non-zero")
	}
	if !input.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid mutation type %q", input.Type))
	}
	if strings.TrimSpace(input.ReferenceType) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "reference type required")
	}
	return nil
}
