package sales

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/registerhq/retailcore-backend/internal/inventory"
	"github.com/registerhq/retailcore-backend/pkg/db/models"
	"github.com/registerhq/retailcore-backend/pkg/enums"
	pkgerrors "github.com/registerhq/retailcore-backend/pkg/errors"
	"github.com/registerhq/retailcore-backend/pkg/outbox"
)

type testTxRunner struct {
	db *gorm.DB
}

func (r testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type rejectingShiftVerifier struct{}

func (rejectingShiftVerifier) VerifyOpen(context.Context, *gorm.DB, uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "shift is not open")
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:sales_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Sale{},
		&models.SaleItem{},
		&models.SalePayment{},
		&models.InventoryRecord{},
		&models.InventoryTransaction{},
		&models.OutboxEvent{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type testEnv struct {
	db        *gorm.DB
	sales     Service
	inventory inventory.Service
}

func newTestEnv(t *testing.T, shifts shiftVerifier) testEnv {
	t.Helper()
	db := newTestDB(t)
	runner := testTxRunner{db: db}
	publisher := outbox.NewService(outbox.NewRepository(db), nil)

	inv, err := inventory.NewService(inventory.NewRepository(db), runner, publisher, nil)
	if err != nil {
		t.Fatalf("new inventory service: %v", err)
	}
	svc, err := NewService(NewRepository(db), runner, inv, shifts, publisher, nil)
	if err != nil {
		t.Fatalf("new sales service: %v", err)
	}
	return testEnv{db: db, sales: svc, inventory: inv}
}

func seedStock(t *testing.T, env testEnv, variantID, locationID uuid.UUID, qty int) {
	t.Helper()
	_, err := env.inventory.Adjust(context.Background(), inventory.MutateInput{
		VariantID:      variantID,
		LocationID:     locationID,
		QuantityChange: qty,
		Type:           enums.InventoryTxnReceive,
		ReferenceType:  "purchase_order",
		ActorID:        uuid.New(),
	})
	if err != nil {
		t.Fatalf("seed stock: %v", err)
	}
}

func onHand(t *testing.T, env testEnv, variantID, locationID uuid.UUID) int {
	t.Helper()
	record, err := env.inventory.OnHand(context.Background(), variantID, locationID)
	if err != nil {
		t.Fatalf("on hand: %v", err)
	}
	return record.QuantityOnHand
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return n
}

func TestCreateSaleHappyPath(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	variant, location, actor := uuid.New(), uuid.New(), uuid.New()
	seedStock(t, env, variant, location, 5)

	// qty 2 at $10.00, $2.00 discount, $1.60 tax -> $19.60
	result, err := env.sales.Create(context.Background(), CreateInput{
		LocationID: location,
		ActorID:    actor,
		Items: []ItemInput{
			{VariantID: variant, Quantity: 2, UnitPriceCents: 1000, TaxCents: 160},
		},
		Payments: []PaymentInput{
			{Method: enums.PaymentMethodCash, AmountCents: 1960},
		},
		DiscountCents: 200,
		DiscountType:  enums.DiscountTypeFixed,
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if result.TotalCents != 1960 {
		t.Fatalf("expected total 1960, got %d", result.TotalCents)
	}
	if result.SaleNumber == "" {
		t.Fatalf("expected a sale number")
	}

	sale, err := env.sales.Get(context.Background(), result.SaleID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if sale.Status != enums.SaleStatusCompleted {
		t.Fatalf("expected completed status, got %s", sale.Status)
	}
	if sale.SubtotalCents != 2000 || sale.TaxCents != 160 || sale.DiscountCents != 200 {
		t.Fatalf("unexpected totals: %+v", sale)
	}
	if len(sale.Items) != 1 || sale.Items[0].LineTotalCents != 2000 {
		t.Fatalf("unexpected items: %+v", sale.Items)
	}
	if len(sale.Payments) != 1 || sale.Payments[0].AmountCents != 1960 {
		t.Fatalf("unexpected payments: %+v", sale.Payments)
	}

	if got := onHand(t, env, variant, location); got != 3 {
		t.Fatalf("expected stock 3 after sale, got %d", got)
	}

	var events []models.OutboxEvent
	if err := env.db.Where("event_type = ?", enums.EventSaleCompleted).Find(&events).Error; err != nil {
		t.Fatalf("load outbox: %v", err)
	}
	if len(events) != 1 || events[0].AggregateID != result.SaleID {
		t.Fatalf("expected one sale_completed event for the sale, got %+v", events)
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(events[0].Payload, &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Actor == nil || envelope.Actor.LocationID == nil {
		t.Fatalf("expected actor ref with location, got %+v", envelope.Actor)
	}
	if *envelope.Actor.LocationID != location {
		t.Fatalf("actor location = %s, want %s", envelope.Actor.LocationID, location)
	}
}

func TestCreateSalePaymentMismatchFailsBeforeAnyWrite(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	variant, location := uuid.New(), uuid.New()
	seedStock(t, env, variant, location, 5)

	_, err := env.sales.Create(context.Background(), CreateInput{
		LocationID: location,
		ActorID:    uuid.New(),
		Items: []ItemInput{
			{VariantID: variant, Quantity: 1, UnitPriceCents: 1000},
		},
		Payments: []PaymentInput{
			{Method: enums.PaymentMethodCard, AmountCents: 900},
		},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodePaymentMismatch {
		t.Fatalf("expected payment mismatch, got %v", err)
	}

	if n := countRows(t, env.db, &models.Sale{}); n != 0 {
		t.Fatalf("expected no sales persisted, got %d", n)
	}
	if got := onHand(t, env, variant, location); got != 5 {
		t.Fatalf("expected stock untouched at 5, got %d", got)
	}
}

func TestCreateSaleInsufficientStockIsAllOrNothing(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	plentiful, scarce, location := uuid.New(), uuid.New(), uuid.New()
	seedStock(t, env, plentiful, location, 10)
	seedStock(t, env, scarce, location, 3)

	_, err := env.sales.Create(context.Background(), CreateInput{
		LocationID: location,
		ActorID:    uuid.New(),
		Items: []ItemInput{
			{VariantID: plentiful, Quantity: 2, UnitPriceCents: 500},
			{VariantID: scarce, Quantity: 5, UnitPriceCents: 500},
		},
		Payments: []PaymentInput{
			{Method: enums.PaymentMethodCash, AmountCents: 3500},
		},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	if n := countRows(t, env.db, &models.Sale{}); n != 0 {
		t.Fatalf("expected no sales persisted, got %d", n)
	}
	if n := countRows(t, env.db, &models.SaleItem{}); n != 0 {
		t.Fatalf("expected no sale items persisted, got %d", n)
	}
	if n := countRows(t, env.db, &models.SalePayment{}); n != 0 {
		t.Fatalf("expected no payments persisted, got %d", n)
	}
	if got := onHand(t, env, plentiful, location); got != 10 {
		t.Fatalf("expected first line rolled back to 10, got %d", got)
	}
	if got := onHand(t, env, scarce, location); got != 3 {
		t.Fatalf("expected scarce stock untouched at 3, got %d", got)
	}

	// only the two seed receives remain in the ledger
	if n := countRows(t, env.db, &models.InventoryTransaction{}); n != 2 {
		t.Fatalf("expected 2 ledger rows, got %d", n)
	}
}

func TestVoidRestoresStockAndFlipsStatusOnce(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	variant, location, actor := uuid.New(), uuid.New(), uuid.New()
	seedStock(t, env, variant, location, 5)

	result, err := env.sales.Create(context.Background(), CreateInput{
		LocationID: location,
		ActorID:    actor,
		Items: []ItemInput{
			{VariantID: variant, Quantity: 2, UnitPriceCents: 1000, TaxCents: 160},
		},
		Payments: []PaymentInput{
			{Method: enums.PaymentMethodCash, AmountCents: 1960},
		},
		DiscountCents: 200,
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if got := onHand(t, env, variant, location); got != 3 {
		t.Fatalf("expected stock 3 after sale, got %d", got)
	}

	voider := uuid.New()
	if err := env.sales.Void(context.Background(), VoidInput{
		SaleID:  result.SaleID,
		ActorID: voider,
		Reason:  "customer return",
	}); err != nil {
		t.Fatalf("void sale: %v", err)
	}

	if got := onHand(t, env, variant, location); got != 5 {
		t.Fatalf("expected stock restored to 5, got %d", got)
	}

	sale, err := env.sales.Get(context.Background(), result.SaleID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if sale.Status != enums.SaleStatusVoided {
		t.Fatalf("expected voided status, got %s", sale.Status)
	}
	if sale.VoidedBy == nil || *sale.VoidedBy != voider || sale.VoidedAt == nil {
		t.Fatalf("expected void attribution recorded, got %+v", sale)
	}

	err = env.sales.Void(context.Background(), VoidInput{
		SaleID:  result.SaleID,
		ActorID: voider,
		Reason:  "again",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected already-voided conflict, got %v", err)
	}
	if got := onHand(t, env, variant, location); got != 5 {
		t.Fatalf("expected stock unchanged by second void, got %d", got)
	}

	var events []models.OutboxEvent
	if err := env.db.Where("event_type = ?", enums.EventSaleVoided).Find(&events).Error; err != nil {
		t.Fatalf("load outbox: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected exactly one sale_voided event, got %d", len(events))
	}
}

func TestCreateSaleRejectsClosedShift(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, rejectingShiftVerifier{})
	variant, location := uuid.New(), uuid.New()
	seedStock(t, env, variant, location, 5)

	shiftID := uuid.New()
	_, err := env.sales.Create(context.Background(), CreateInput{
		LocationID: location,
		ActorID:    uuid.New(),
		ShiftID:    &shiftID,
		Items: []ItemInput{
			{VariantID: variant, Quantity: 1, UnitPriceCents: 1000},
		},
		Payments: []PaymentInput{
			{Method: enums.PaymentMethodCash, AmountCents: 1000},
		},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected shift conflict, got %v", err)
	}
	if got := onHand(t, env, variant, location); got != 5 {
		t.Fatalf("expected stock untouched at 5, got %d", got)
	}
}

func TestCreateSaleValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	variant, location, actor := uuid.New(), uuid.New(), uuid.New()

	cases := []struct {
		name  string
		input CreateInput
	}{
		{
			name: "no items",
			input: CreateInput{
				LocationID: location,
				ActorID:    actor,
				Payments:   []PaymentInput{{Method: enums.PaymentMethodCash, AmountCents: 100}},
			},
		},
		{
			name: "no payments",
			input: CreateInput{
				LocationID: location,
				ActorID:    actor,
				Items:      []ItemInput{{VariantID: variant, Quantity: 1, UnitPriceCents: 100}},
			},
		},
		{
			name: "zero quantity",
			input: CreateInput{
				LocationID: location,
				ActorID:    actor,
				Items:      []ItemInput{{VariantID: variant, Quantity: 0, UnitPriceCents: 100}},
				Payments:   []PaymentInput{{Method: enums.PaymentMethodCash, AmountCents: 100}},
			},
		},
		{
			name: "unknown payment method",
			input: CreateInput{
				LocationID: location,
				ActorID:    actor,
				Items:      []ItemInput{{VariantID: variant, Quantity: 1, UnitPriceCents: 100}},
				Payments:   []PaymentInput{{Method: "barter", AmountCents: 100}},
			},
		},
		{
			name: "discount exceeds total",
			input: CreateInput{
				LocationID:    location,
				ActorID:       actor,
				Items:         []ItemInput{{VariantID: variant, Quantity: 1, UnitPriceCents: 100}},
				Payments:      []PaymentInput{{Method: enums.PaymentMethodCash, AmountCents: 100}},
				DiscountCents: 500,
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.sales.Create(context.Background(), tc.input)
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	if n := countRows(t, env.db, &models.Sale{}); n != 0 {
		t.Fatalf("expected no sales persisted, got %d", n)
	}
}

func TestVoidUnknownSale(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	err := env.sales.Void(context.Background(), VoidInput{
		SaleID:  uuid.New(),
		ActorID: uuid.New(),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGenerateSaleNumberUnique(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		n := GenerateSaleNumber(at)
		if seen[n] {
			t.Fatalf("duplicate sale number %s", n)
		}
		seen[n] = true
	}
}
