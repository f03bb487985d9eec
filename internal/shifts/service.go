package shifts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/registerhq/retailcore-backend/pkg/db"
	"github.com/registerhq/retailcore-backend/pkg/db/models"
	"github.com/registerhq/retailcore-backend/pkg/enums"
	pkgerrors "github.com/registerhq/retailcore-backend/pkg/errors"
	"github.com/registerhq/retailcore-backend/pkg/outbox"
	"github.com/registerhq/retailcore-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ClockInInput opens a cash-drawer session for one actor at one terminal.
type ClockInInput struct {
	ActorID          uuid.UUID
	LocationID       uuid.UUID
	TerminalID       string
	OpeningCashCents int
}

// ClockOutInput closes an open shift with the counted drawer amount.
type ClockOutInput struct {
	ShiftID          uuid.UUID
	ClosingCashCents int
	Notes            *string
}

// ShiftClosedEvent is the outbox payload queued when a shift closes.
type ShiftClosedEvent struct {
	ShiftID             uuid.UUID `json:"shift_id"`
	ActorID             uuid.UUID `json:"actor_id"`
	LocationID          uuid.UUID `json:"location_id"`
	ExpectedCashCents   int       `json:"expected_cash_cents"`
	ClosingCashCents    int       `json:"closing_cash_cents"`
	CashDifferenceCents int       `json:"cash_difference_cents"`
}

// Service drives the linear shift lifecycle open -> closed -> reconciled.
// Expected cash is derived from the shift's cash payments at close time and is
// reproducible at any time from sale data alone.
type Service interface {
	ClockIn(ctx context.Context, input ClockInInput) (*models.Shift, error)
	ClockOut(ctx context.Context, input ClockOutInput) (*models.Shift, error)
	Reconcile(ctx context.Context, shiftID uuid.UUID, notes *string) (*models.Shift, error)
	ActiveForActor(ctx context.Context, actorID uuid.UUID) (*models.Shift, error)
	Get(ctx context.Context, shiftID uuid.UUID) (*models.Shift, error)
	List(ctx context.Context, locationID uuid.UUID, params pagination.Params) ([]models.Shift, error)
	VerifyOpen(ctx context.Context, tx *gorm.DB, shiftID uuid.UUID) error
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
}

// NewService wires the shift lifecycle service. The outbox publisher is
// optional.
func NewService(repo Repository, tx txRunner, publisher outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("shifts repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, outbox: publisher}, nil
}

func (s *service) ClockIn(ctx context.Context, input ClockInInput) (*models.Shift, error) {
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id required")
	}
	if input.LocationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "location id required")
	}
	if strings.TrimSpace(input.TerminalID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "terminal id required")
	}
	if input.OpeningCashCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "opening cash cannot be negative")
	}

	shift := &models.Shift{
		ActorID:          input.ActorID,
		LocationID:       input.LocationID,
		TerminalID:       input.TerminalID,
		OpeningCashCents: input.OpeningCashCents,
		Status:           enums.ShiftStatusOpen,
		StartTime:        time.Now(),
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindOpenByActor(ctx, input.ActorID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check open shift")
		}
		if existing != nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "actor already has an open shift").
				WithDetails(map[string]any{"shift_id": existing.ID.String()})
		}
		if err := repo.Create(ctx, shift); err != nil {
			// partial unique index on (actor_id) WHERE status='open' is the
			// backstop for concurrent clock-ins
			if db.IsUniqueViolation(err, "ux_shifts_actor_open") {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "actor already has an open shift")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create shift")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return shift, nil
}

func (s *service) ClockOut(ctx context.Context, input ClockOutInput) (*models.Shift, error) {
	if input.ShiftID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shift id required")
	}
	if input.ClosingCashCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "closing cash cannot be negative")
	}

	var closed *models.Shift
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		shift, err := loadShift(ctx, repo, input.ShiftID)
		if err != nil {
			return err
		}
		if shift.Status != enums.ShiftStatusOpen {
			return transitionConflict(shift, enums.ShiftStatusClosed)
		}

		cashSales, err := repo.CashPaymentsTotal(ctx, shift.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum cash payments")
		}
		expected := shift.OpeningCashCents + cashSales
		difference := input.ClosingCashCents - expected

		flipped, err := repo.Close(ctx, shift.ID, CloseFields{
			ClosingCashCents:    input.ClosingCashCents,
			ExpectedCashCents:   expected,
			CashDifferenceCents: difference,
			Notes:               input.Notes,
			EndTime:             time.Now(),
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close shift")
		}
		if !flipped {
			return transitionConflict(shift, enums.ShiftStatusClosed)
		}

		closed, err = repo.FindByID(ctx, shift.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload shift")
		}

		if s.outbox != nil {
			event := outbox.DomainEvent{
				EventType:     enums.EventShiftClosed,
				AggregateType: enums.AggregateShift,
				AggregateID:   shift.ID,
				LocationID:    shift.LocationID,
				Actor:         &outbox.ActorRef{ActorID: shift.ActorID, LocationID: &shift.LocationID},
				Data: ShiftClosedEvent{
					ShiftID:             shift.ID,
					ActorID:             shift.ActorID,
					LocationID:          shift.LocationID,
					ExpectedCashCents:   expected,
					ClosingCashCents:    input.ClosingCashCents,
					CashDifferenceCents: difference,
				},
				Version: 1,
			}
			if err := s.outbox.Emit(ctx, tx, event); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue shift closed event")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}

func (s *service) Reconcile(ctx context.Context, shiftID uuid.UUID, notes *string) (*models.Shift, error) {
	if shiftID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shift id required")
	}

	var reconciled *models.Shift
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		shift, err := loadShift(ctx, repo, shiftID)
		if err != nil {
			return err
		}
		if shift.Status != enums.ShiftStatusClosed {
			return transitionConflict(shift, enums.ShiftStatusReconciled)
		}

		flipped, err := repo.Reconcile(ctx, shift.ID, notes)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reconcile shift")
		}
		if !flipped {
			return transitionConflict(shift, enums.ShiftStatusReconciled)
		}

		reconciled, err = repo.FindByID(ctx, shift.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload shift")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reconciled, nil
}

func (s *service) ActiveForActor(ctx context.Context, actorID uuid.UUID) (*models.Shift, error) {
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id required")
	}
	shift, err := s.repo.FindOpenByActor(ctx, actorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no open shift for actor").
				WithDetails(map[string]any{"actor_id": actorID.String()})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load open shift")
	}
	return shift, nil
}

func (s *service) Get(ctx context.Context, shiftID uuid.UUID) (*models.Shift, error) {
	if shiftID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shift id required")
	}
	return loadShift(ctx, s.repo, shiftID)
}

func (s *service) List(ctx context.Context, locationID uuid.UUID, params pagination.Params) ([]models.Shift, error) {
	if locationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "location id required")
	}
	shifts, err := s.repo.ListByLocation(ctx, locationID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list shifts")
	}
	return shifts, nil
}

// VerifyOpen confirms the shift exists and is still open. Sale creation calls
// this inside its own transaction before attaching a sale to the shift.
func (s *service) VerifyOpen(ctx context.Context, tx *gorm.DB, shiftID uuid.UUID) error {
	repo := s.repo
	if tx != nil {
		repo = s.repo.WithTx(tx)
	}
	shift, err := loadShift(ctx, repo, shiftID)
	if err != nil {
		return err
	}
	if shift.Status != enums.ShiftStatusOpen {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "shift is not open").
			WithDetails(map[string]any{
				"shift_id": shift.ID.String(),
				"status":   string(shift.Status),
			})
	}
	return nil
}

func loadShift(ctx context.Context, repo Repository, shiftID uuid.UUID) (*models.Shift, error) {
	shift, err := repo.FindByID(ctx, shiftID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shift not found").
				WithDetails(map[string]any{"shift_id": shiftID.String()})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shift")
	}
	return shift, nil
}

func transitionConflict(shift *models.Shift, next enums.ShiftStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "invalid shift transition").
		WithDetails(map[string]any{
			"shift_id": shift.ID.String(),
			"from":     string(shift.Status),
			"to":       string(next),
		})
}
