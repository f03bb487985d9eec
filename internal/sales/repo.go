package sales

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/registerhq/retailcore-backend/pkg/db/models"
	"github.com/registerhq/retailcore-backend/pkg/enums"
	"github.com/registerhq/retailcore-backend/pkg/pagination"
)

// Repository manages persistence for sales and their line items/payments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, sale *models.Sale) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Sale, error)
	MarkVoided(ctx context.Context, id, actorID uuid.UUID, reason string, at time.Time) (bool, error)
	ListByLocation(ctx context.Context, locationID uuid.UUID, params pagination.Params) ([]models.Sale, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a sales repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create persists the sale together with its items and payments.
func (r *repository) Create(ctx context.Context, sale *models.Sale) error {
	return r.db.WithContext(ctx).Create(sale).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Sale, error) {
	var sale models.Sale
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Payments").
		Where("id = ?", id).
		First(&sale).Error
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

// MarkVoided flips completed -> voided with a guarded update so the
// transition can succeed at most once even under concurrent void attempts.
func (r *repository) MarkVoided(ctx context.Context, id, actorID uuid.UUID, reason string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Where("id = ? AND status = ?", id, enums.SaleStatusCompleted).
		Updates(map[string]any{
			"status":      enums.SaleStatusVoided,
			"voided_by":   actorID,
			"voided_at":   at,
			"void_reason": reason,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) ListByLocation(ctx context.Context, locationID uuid.UUID, params pagination.Params) ([]models.Sale, error) {
	query := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Payments").
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

	var sales []models.Sale
	if err := query.Find(&sales).Error; err != nil {
		return nil, err
	}
	return sales, nil
}
