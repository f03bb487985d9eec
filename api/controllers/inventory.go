package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/registerhq/retailcore-backend/api/middleware"
	"github.com/registerhq/retailcore-backend/api/responses"
	"github.com/registerhq/retailcore-backend/api/validators"
	"github.com/registerhq/retailcore-backend/internal/inventory"
	"github.com/registerhq/retailcore-backend/pkg/enums"
	pkgerrors "github.com/registerhq/retailcore-backend/pkg/errors"
	"github.com/registerhq/retailcore-backend/pkg/logger"
	"github.com/registerhq/retailcore-backend/pkg/pagination"
)

type adjustInventoryRequest struct {
	VariantID      uuid.UUID `json:"variant_id" validate:"required"`
	LocationID     uuid.UUID `json:"location_id" validate:"required"`
	QuantityChange int       `json:"quantity_change" validate:"required"`
	Type           string    `json:"type" validate:"required,oneof=adjustment receive"`
	ReferenceType  string    `json:"reference_type,omitempty" validate:"max=100"`
	Reason         string    `json:"reason,omitempty" validate:"max=500"`
	AllowNegative  bool      `json:"allow_negative"`
}

type transferInventoryRequest struct {
	VariantID      uuid.UUID `json:"variant_id" validate:"required"`
	FromLocationID uuid.UUID `json:"from_location_id" validate:"required"`
	ToLocationID   uuid.UUID `json:"to_location_id" validate:"required"`
	Quantity       int       `json:"quantity" validate:"required,gt=0"`
}

// AdjustInventory applies one manual stock mutation.
func AdjustInventory(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		var payload adjustInventoryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txnType, err := enums.ParseInventoryTransactionType(payload.Type)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid mutation type"))
			return
		}

		referenceType := payload.ReferenceType
		if referenceType == "" {
			referenceType = "manual"
		}

		result, err := svc.Adjust(r.Context(), inventory.MutateInput{
			VariantID:      payload.VariantID,
			LocationID:     payload.LocationID,
			QuantityChange: payload.QuantityChange,
			Type:           txnType,
			ReferenceType:  referenceType,
			ActorID:        middleware.ActorIDFromContext(r.Context()),
			AllowNegative:  payload.AllowNegative,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// TransferInventory moves stock between two locations atomically.
func TransferInventory(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		var payload transferInventoryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Transfer(r.Context(), inventory.TransferInput{
			VariantID:      payload.VariantID,
			FromLocationID: payload.FromLocationID,
			ToLocationID:   payload.ToLocationID,
			Quantity:       payload.Quantity,
			ActorID:        middleware.ActorIDFromContext(r.Context()),
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"variant_id":       payload.VariantID,
			"from_location_id": payload.FromLocationID,
			"to_location_id":   payload.ToLocationID,
			"quantity":         payload.Quantity,
		})
	}
}

// InventoryOnHand returns current stock for one variant at one location.
func InventoryOnHand(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		variantID, err := validators.ParseQueryUUID(r, "variant_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		locationID, err := validators.ParseQueryUUID(r, "location_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.OnHand(r.Context(), variantID, locationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"variant_id":        record.VariantID,
			"location_id":       record.LocationID,
			"quantity_on_hand":  record.QuantityOnHand,
			"quantity_reserved": record.QuantityReserved,
			"reorder_level":     record.ReorderLevel,
		})
	}
}

type inventoryTransactionResponse struct {
	VariantID      uuid.UUID  `json:"variant_id"`
	LocationID     uuid.UUID  `json:"location_id"`
	Type           string     `json:"type"`
	QuantityChange int        `json:"quantity_change"`
	QuantityBefore int        `json:"quantity_before"`
	QuantityAfter  int        `json:"quantity_after"`
	ReferenceType  string     `json:"reference_type,omitempty"`
	ReferenceID    *uuid.UUID `json:"reference_id,omitempty"`
	ActorID        uuid.UUID  `json:"actor_id"`
	CreatedAt      time.Time  `json:"created_at"`
}

// InventoryTransactions returns the audit trail for one variant/location pair.
func InventoryTransactions(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		variantID, err := validators.ParseQueryUUID(r, "variant_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		locationID, err := validators.ParseQueryUUID(r, "location_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.Transactions(r.Context(), variantID, locationID, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		nextCursor := ""
		if len(rows) > limit {
			last := rows[limit-1]
			nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
			rows = rows[:limit]
		}

		items := make([]inventoryTransactionResponse, 0, len(rows))
		for _, row := range rows {
			items = append(items, inventoryTransactionResponse{
				VariantID:      row.VariantID,
				LocationID:     row.LocationID,
				Type:           string(row.Type),
				QuantityChange: row.QuantityChange,
				QuantityBefore: row.QuantityBefore,
				QuantityAfter:  row.QuantityAfter,
				ReferenceType:  row.ReferenceType,
				ReferenceID:    row.ReferenceID,
				ActorID:        row.ActorID,
				CreatedAt:      row.CreatedAt,
			})
		}

		responses.WriteSuccess(w, map[string]any{
			"transactions": items,
			"next_cursor":  nextCursor,
		})
	}
}
