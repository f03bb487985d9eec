package shifts

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/registerhq/retailcore-backend/pkg/db/models"
	"github.com/registerhq/retailcore-backend/pkg/enums"
	pkgerrors "github.com/registerhq/retailcore-backend/pkg/errors"
	"github.com/registerhq/retailcore-backend/pkg/outbox"
	"github.com/registerhq/retailcore-backend/pkg/pagination"
)

type testTxRunner struct {
	db *gorm.DB
}

func (r testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:shifts_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Shift{},
		&models.Sale{},
		&models.SaleItem{},
		&models.SalePayment{},
		&models.OutboxEvent{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(
		NewRepository(db),
		testTxRunner{db: db},
		outbox.NewService(outbox.NewRepository(db), nil),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

// seedSale inserts a sale with one payment directly; the derivation under
// test only reads the sales and sale_payments tables.
func seedSale(t *testing.T, db *gorm.DB, shiftID uuid.UUID, status enums.SaleStatus, method enums.PaymentMethod, amountCents int) {
	t.Helper()
	sale := models.Sale{
		SaleNumber:    "S-TEST-" + uuid.NewString(),
		LocationID:    uuid.New(),
		ShiftID:       &shiftID,
		ActorID:       uuid.New(),
		SubtotalCents: amountCents,
		TotalCents:    amountCents,
		DiscountType:  enums.DiscountTypeNone,
		Status:        status,
		Payments: []models.SalePayment{
			{Method: method, AmountCents: amountCents},
		},
	}
	if err := db.Create(&sale).Error; err != nil {
		t.Fatalf("seed sale: %v", err)
	}
}

func clockIn(t *testing.T, svc Service, actorID uuid.UUID, openingCents int) *models.Shift {
	t.Helper()
	shift, err := svc.ClockIn(context.Background(), ClockInInput{
		ActorID:          actorID,
		LocationID:       uuid.New(),
		TerminalID:       "register-1",
		OpeningCashCents: openingCents,
	})
	if err != nil {
		t.Fatalf("clock in: %v", err)
	}
	return shift
}

func TestClockInOpensShift(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	actor := uuid.New()

	shift := clockIn(t, svc, actor, 10000)
	if shift.Status != enums.ShiftStatusOpen {
		t.Fatalf("expected open status, got %s", shift.Status)
	}
	if shift.OpeningCashCents != 10000 {
		t.Fatalf("expected opening cash 10000, got %d", shift.OpeningCashCents)
	}

	active, err := svc.ActiveForActor(context.Background(), actor)
	if err != nil {
		t.Fatalf("active for actor: %v", err)
	}
	if active.ID != shift.ID {
		t.Fatalf("expected active shift %s, got %s", shift.ID, active.ID)
	}
}

func TestClockInRejectsSecondOpenShift(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	actor := uuid.New()
	clockIn(t, svc, actor, 5000)

	_, err := svc.ClockIn(context.Background(), ClockInInput{
		ActorID:          actor,
		LocationID:       uuid.New(),
		TerminalID:       "register-2",
		OpeningCashCents: 0,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestClockOutDerivesExpectedCash(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	actor := uuid.New()

	// opening $100, cash sales $25.50 and $40.00, counted $165.00
	shift := clockIn(t, svc, actor, 10000)
	seedSale(t, db, shift.ID, enums.SaleStatusCompleted, enums.PaymentMethodCash, 2550)
	seedSale(t, db, shift.ID, enums.SaleStatusCompleted, enums.PaymentMethodCash, 4000)
	// excluded: card tender and a voided sale's cash tender
	seedSale(t, db, shift.ID, enums.SaleStatusCompleted, enums.PaymentMethodCard, 9999)
	seedSale(t, db, shift.ID, enums.SaleStatusVoided, enums.PaymentMethodCash, 1234)
	// excluded: cash sale on a different shift
	seedSale(t, db, uuid.New(), enums.SaleStatusCompleted, enums.PaymentMethodCash, 777)

	closed, err := svc.ClockOut(context.Background(), ClockOutInput{
		ShiftID:          shift.ID,
		ClosingCashCents: 16500,
	})
	if err != nil {
		t.Fatalf("clock out: %v", err)
	}
	if closed.Status != enums.ShiftStatusClosed {
		t.Fatalf("expected closed status, got %s", closed.Status)
	}
	if closed.ExpectedCashCents == nil || *closed.ExpectedCashCents != 16550 {
		t.Fatalf("expected cash 16550, got %v", closed.ExpectedCashCents)
	}
	if closed.CashDifferenceCents == nil || *closed.CashDifferenceCents != -50 {
		t.Fatalf("expected difference -50, got %v", closed.CashDifferenceCents)
	}
	if closed.EndTime == nil {
		t.Fatalf("expected end time recorded")
	}

	var events []models.OutboxEvent
	if err := db.Where("event_type = ?", enums.EventShiftClosed).Find(&events).Error; err != nil {
		t.Fatalf("load outbox: %v", err)
	}
	if len(events) != 1 || events[0].AggregateID != shift.ID {
		t.Fatalf("expected one shift_closed event, got %+v", events)
	}
}

func TestClockOutTwiceFails(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	shift := clockIn(t, svc, uuid.New(), 0)

	if _, err := svc.ClockOut(context.Background(), ClockOutInput{ShiftID: shift.ID}); err != nil {
		t.Fatalf("clock out: %v", err)
	}
	_, err := svc.ClockOut(context.Background(), ClockOutInput{ShiftID: shift.ID})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestReconcileLifecycle(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	shift := clockIn(t, svc, uuid.New(), 0)

	// cannot skip closed
	_, err := svc.Reconcile(context.Background(), shift.ID, nil)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict reconciling open shift, got %v", err)
	}

	if _, err := svc.ClockOut(context.Background(), ClockOutInput{ShiftID: shift.ID}); err != nil {
		t.Fatalf("clock out: %v", err)
	}

	notes := "drawer short, manager confirmed"
	reconciled, err := svc.Reconcile(context.Background(), shift.ID, &notes)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if reconciled.Status != enums.ShiftStatusReconciled {
		t.Fatalf("expected reconciled status, got %s", reconciled.Status)
	}
	if reconciled.Notes == nil || *reconciled.Notes == "" {
		t.Fatalf("expected notes recorded")
	}

	_, err = svc.Reconcile(context.Background(), shift.ID, nil)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict on second reconcile, got %v", err)
	}
}

func TestVerifyOpen(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	shift := clockIn(t, svc, uuid.New(), 0)

	if err := svc.VerifyOpen(context.Background(), nil, shift.ID); err != nil {
		t.Fatalf("verify open: %v", err)
	}

	if _, err := svc.ClockOut(context.Background(), ClockOutInput{ShiftID: shift.ID}); err != nil {
		t.Fatalf("clock out: %v", err)
	}
	err := svc.VerifyOpen(context.Background(), nil, shift.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}

	err = svc.VerifyOpen(context.Background(), nil, uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

// raceClockInRepo simulates losing the clock-in race: the open-shift lookup
// sees nothing, then the insert trips the partial unique index.
type raceClockInRepo struct{}

func (raceClockInRepo) WithTx(*gorm.DB) Repository { return raceClockInRepo{} }

func (raceClockInRepo) Create(context.Context, *models.Shift) error {
	return errors.New(`ERROR: duplicate key value violates unique constraint "ux_shifts_actor_open" (SQLSTATE 23505)`)
}

func (raceClockInRepo) FindByID(context.Context, uuid.UUID) (*models.Shift, error) {
	return nil, gorm.ErrRecordNotFound
}

func (raceClockInRepo) FindOpenByActor(context.Context, uuid.UUID) (*models.Shift, error) {
	return nil, gorm.ErrRecordNotFound
}

func (raceClockInRepo) CashPaymentsTotal(context.Context, uuid.UUID) (int, error) { return 0, nil }

func (raceClockInRepo) Close(context.Context, uuid.UUID, CloseFields) (bool, error) {
	return false, nil
}

func (raceClockInRepo) Reconcile(context.Context, uuid.UUID, *string) (bool, error) {
	return false, nil
}

func (raceClockInRepo) ListByLocation(context.Context, uuid.UUID, pagination.Params) ([]models.Shift, error) {
	return nil, nil
}

type passthroughTxRunner struct{}

func (passthroughTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func TestClockInConcurrentInsertMapsToStateConflict(t *testing.T) {
	t.Parallel()

	svc, err := NewService(raceClockInRepo{}, passthroughTxRunner{}, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.ClockIn(context.Background(), ClockInInput{
		ActorID:          uuid.New(),
		LocationID:       uuid.New(),
		TerminalID:       "register-1",
		OpeningCashCents: 10000,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict from losing the clock-in race, got %v", err)
	}
}
