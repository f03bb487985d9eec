package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/registerhq/retailcore-backend/pkg/db/models"
	"github.com/registerhq/retailcore-backend/pkg/pagination"
)

// Repository manages persistence for inventory records and their
// append-only transaction log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	EnsureRecord(ctx context.Context, variantID, locationID uuid.UUID) (*models.InventoryRecord, error)
	ApplyDelta(ctx context.Context, variantID, locationID uuid.UUID, delta int, guardNegative bool) (bool, error)
	FindRecord(ctx context.Context, variantID, locationID uuid.UUID) (*models.InventoryRecord, error)
	AppendTransaction(ctx context.Context, txn *models.InventoryTransaction) error
	ListTransactions(ctx context.Context, variantID, locationID uuid.UUID, params pagination.Params) ([]models.InventoryTransaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// EnsureRecord creates a zero-valued row on first touch for the pair.
func (r *repository) EnsureRecord(ctx context.Context, variantID, locationID uuid.UUID) (*models.InventoryRecord, error) {
	record := models.InventoryRecord{VariantID: variantID, LocationID: locationID}
	err := r.db.WithContext(ctx).
		Where("variant_id = ? AND location_id = ?", variantID, locationID).
		FirstOrCreate(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ApplyDelta adds delta to quantity_on_hand in a single guarded UPDATE. The
// row-level write lock it takes is what serializes concurrent mutations; when
// guardNegative is set and the result would go below zero, no row matches and
// the method reports false without writing.
func (r *repository) ApplyDelta(ctx context.Context, variantID, locationID uuid.UUID, delta int, guardNegative bool) (bool, error) {
	q := r.db.WithContext(ctx).
		Model(&models.InventoryRecord{}).
		Where("variant_id = ? AND location_id = ?", variantID, locationID)
	if guardNegative {
		q = q.Where("quantity_on_hand + ? >= 0", delta)
	}
	res := q.Update("quantity_on_hand", gorm.Expr("quantity_on_hand + ?", delta))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) FindRecord(ctx context.Context, variantID, locationID uuid.UUID) (*models.InventoryRecord, error) {
	var record models.InventoryRecord
	err := r.db.WithContext(ctx).
		Where("variant_id = ? AND location_id = ?", variantID, locationID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) AppendTransaction(ctx context.Context, txn *models.InventoryTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) ListTransactions(ctx context.Context, variantID, locationID uuid.UUID, params pagination.Params) ([]models.InventoryTransaction, error) {
	query := r.db.WithContext(ctx).
		Where("variant_id = ? AND location_id = ?", variantID, locationID).
		Order("created_at ASC").
		Order("id ASC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at > ?) OR (created_at = ? AND id > ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var txns []models.InventoryTransaction
	if err := query.Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}
