package shifts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/registerhq/retailcore-backend/pkg/db/models"
	"github.com/registerhq/retailcore-backend/pkg/enums"
	"github.com/registerhq/retailcore-backend/pkg/pagination"
)

// CloseFields carries the derived cash figures written at clock-out.
type CloseFields struct {
	ClosingCashCents    int
	ExpectedCashCents   int
	CashDifferenceCents int
	Notes               *string
	EndTime             time.Time
}

// Repository manages persistence for cash-drawer shifts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, shift *models.Shift) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Shift, error)
	FindOpenByActor(ctx context.Context, actorID uuid.UUID) (*models.Shift, error)
	CashPaymentsTotal(ctx context.Context, shiftID uuid.UUID) (int, error)
	Close(ctx context.Context, id uuid.UUID, fields CloseFields) (bool, error)
	Reconcile(ctx context.Context, id uuid.UUID, notes *string) (bool, error)
	ListByLocation(ctx context.Context, locationID uuid.UUID, params pagination.Params) ([]models.Shift, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a shifts repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, shift *models.Shift) error {
	return r.db.WithContext(ctx).Create(shift).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Shift, error) {
	var shift models.Shift
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&shift).Error
	if err != nil {
		return nil, err
	}
	return &shift, nil
}

func (r *repository) FindOpenByActor(ctx context.Context, actorID uuid.UUID) (*models.Shift, error) {
	var shift models.Shift
	err := r.db.WithContext(ctx).
		Where("actor_id = ? AND status = ?", actorID, enums.ShiftStatusOpen).
		First(&shift).Error
	if err != nil {
		return nil, err
	}
	return &shift, nil
}

// CashPaymentsTotal sums cash tenders on completed sales attached to the
// shift. Read-only; clock-out derives expected cash from this figure.
func (r *repository) CashPaymentsTotal(ctx context.Context, shiftID uuid.UUID) (int, error) {
	var total int
	err := r.db.WithContext(ctx).
		Model(&models.SalePayment{}).
		Select("COALESCE(SUM(sale_payments.amount_cents), 0)").
		Joins("JOIN sales ON sales.id = sale_payments.sale_id").
		Where("sales.shift_id = ?", shiftID).
		Where("sales.status = ?", enums.SaleStatusCompleted).
		Where("sale_payments.method = ?", enums.PaymentMethodCash).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

// Close flips open -> closed with a guarded update so concurrent clock-outs
// cannot both write financial fields.
func (r *repository) Close(ctx context.Context, id uuid.UUID, fields CloseFields) (bool, error) {
	updates := map[string]any{
		"status":                enums.ShiftStatusClosed,
		"closing_cash_cents":    fields.ClosingCashCents,
		"expected_cash_cents":   fields.ExpectedCashCents,
		"cash_difference_cents": fields.CashDifferenceCents,
		"end_time":              fields.EndTime,
	}
	if fields.Notes != nil {
		updates["notes"] = *fields.Notes
	}
	res := r.db.WithContext(ctx).
		Model(&models.Shift{}).
		Where("id = ? AND status = ?", id, enums.ShiftStatusOpen).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) Reconcile(ctx context.Context, id uuid.UUID, notes *string) (bool, error) {
	updates := map[string]any{"status": enums.ShiftStatusReconciled}
	if notes != nil {
		updates["notes"] = gorm.Expr(
			"CASE WHEN notes IS NULL OR notes = '' THEN ? ELSE notes || ? END",
			*notes, "\n"+*notes,
		)
	}
	res := r.db.WithContext(ctx).
		Model(&models.Shift{}).
		Where("id = ? AND status = ?", id, enums.ShiftStatusClosed).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) ListByLocation(ctx context.Context, locationID uuid.UUID, params pagination.Params) ([]models.Shift, error) {
	query := r.db.WithContext(ctx).
		Where("location_id = ?", locationID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var shifts []models.Shift
	if err := query.Find(&shifts).Error; err != nil {
		return nil, err
	}
	return shifts, nil
}
