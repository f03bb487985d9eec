package sales

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/registerhq/retailcore-backend/pkg/db/models"
	"github.com/registerhq/retailcore-backend/pkg/enums"
	"github.com/registerhq/retailcore-backend/pkg/pagination"
)

func seedSaleAt(t *testing.T, repo Repository, locationID uuid.UUID, createdAt time.Time) *models.Sale {
	t.Helper()
	sale := &models.Sale{
		SaleNumber:    "S-" + uuid.NewString()[:13],
		LocationID:    locationID,
		ActorID:       uuid.New(),
		SubtotalCents: 1000,
		TotalCents:    1000,
		Status:        enums.SaleStatusCompleted,
		CreatedAt:     createdAt,
		Items: []models.SaleItem{
			{VariantID: uuid.New(), Quantity: 1, UnitPriceCents: 1000, LineTotalCents: 1000},
		},
		Payments: []models.SalePayment{
			{Method: enums.PaymentMethodCash, AmountCents: 1000},
		},
	}
	require.NoError(t, repo.Create(context.Background(), sale))
	return sale
}

func TestRepositoryCreateAndFind(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	locationID := uuid.New()

	created := seedSaleAt(t, repo, locationID, time.Now().UTC())

	found, err := repo.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.SaleNumber, found.SaleNumber)
	assert.Len(t, found.Items, 1)
	assert.Len(t, found.Payments, 1)
	assert.Equal(t, enums.SaleStatusCompleted, found.Status)
}

func TestRepositoryMarkVoidedFlipsOnce(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	sale := seedSaleAt(t, repo, uuid.New(), time.Now().UTC())
	actorID := uuid.New()
	now := time.Now().UTC()

	flipped, err := repo.MarkVoided(context.Background(), sale.ID, actorID, "damaged goods", now)
	require.NoError(t, err)
	assert.True(t, flipped)

	again, err := repo.MarkVoided(context.Background(), sale.ID, actorID, "duplicate attempt", now)
	require.NoError(t, err)
	assert.False(t, again)

	found, err := repo.FindByID(context.Background(), sale.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SaleStatusVoided, found.Status)
	require.NotNil(t, found.VoidReason)
	assert.Equal(t, "damaged goods", *found.VoidReason)
	require.NotNil(t, found.VoidedBy)
	assert.Equal(t, actorID, *found.VoidedBy)
}

func TestRepositoryListByLocationCursor(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	locationID := uuid.New()
	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	oldest := seedSaleAt(t, repo, locationID, base)
	middle := seedSaleAt(t, repo, locationID, base.Add(time.Minute))
	newest := seedSaleAt(t, repo, locationID, base.Add(2*time.Minute))

	// other locations never leak into the page
	seedSaleAt(t, repo, uuid.New(), base.Add(3*time.Minute))

	page, err := repo.ListByLocation(context.Background(), locationID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	// limit+1 rows come back so the caller can detect the next page
	require.Len(t, page, 3)
	assert.Equal(t, newest.ID, page[0].ID)
	assert.Equal(t, middle.ID, page[1].ID)

	cursor := pagination.EncodeCursor(pagination.Cursor{CreatedAt: page[1].CreatedAt, ID: page[1].ID})
	rest, err := repo.ListByLocation(context.Background(), locationID, pagination.Params{Limit: 2, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, oldest.ID, rest[0].ID)

	_, err = repo.ListByLocation(context.Background(), locationID, pagination.Params{Cursor: "not-base64!"})
	assert.Error(t, err)
}
