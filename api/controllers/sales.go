package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/registerhq/retailcore-backend/api/middleware"
	"github.com/registerhq/retailcore-backend/api/responses"
	"github.com/registerhq/retailcore-backend/api/validators"
	"github.com/registerhq/retailcore-backend/internal/sales"
	"github.com/registerhq/retailcore-backend/pkg/db/models"
	"github.com/registerhq/retailcore-backend/pkg/enums"
	pkgerrors "github.com/registerhq/retailcore-backend/pkg/errors"
	"github.com/registerhq/retailcore-backend/pkg/logger"
	"github.com/registerhq/retailcore-backend/pkg/pagination"
)

type createSaleRequest struct {
	LocationID    uuid.UUID            `json:"location_id" validate:"required"`
	ShiftID       *uuid.UUID           `json:"shift_id,omitempty"`
	CustomerID    *uuid.UUID           `json:"customer_id,omitempty"`
	Items         []sales.ItemInput    `json:"items" validate:"required,min=1"`
	Payments      []sales.PaymentInput `json:"payments" validate:"required,min=1"`
	DiscountCents int                  `json:"discount_cents" validate:"gte=0"`
	DiscountType  string               `json:"discount_type,omitempty"`
}

type voidSaleRequest struct {
	Reason string `json:"reason" validate:"required,min=1,max=500"`
}

// CreateSale submits a complete cart as one atomic sale.
func CreateSale(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sales service unavailable"))
			return
		}

		var payload createSaleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		discountType, err := enums.ParseDiscountType(payload.DiscountType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "invalid discount type"))
			return
		}

		result, err := svc.Create(r.Context(), sales.CreateInput{
			LocationID:    payload.LocationID,
			ActorID:       middleware.ActorIDFromContext(r.Context()),
			CustomerID:    payload.CustomerID,
			ShiftID:       payload.ShiftID,
			Items:         payload.Items,
			Payments:      payload.Payments,
			DiscountCents: payload.DiscountCents,
			DiscountType:  discountType,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// VoidSale reverses a completed sale exactly once.
func VoidSale(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sales service unavailable"))
			return
		}

		saleID, err := validators.ParsePathUUID(chi.URLParam(r, "saleId"), "saleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload voidSaleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Void(r.Context(), sales.VoidInput{
			SaleID:  saleID,
			ActorID: middleware.ActorIDFromContext(r.Context()),
			Reason:  payload.Reason,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"sale_id": saleID, "status": enums.SaleStatusVoided})
	}
}

// GetSale returns the sale with its items and payments.
func GetSale(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sales service unavailable"))
			return
		}

		saleID, err := validators.ParsePathUUID(chi.URLParam(r, "saleId"), "saleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sale, err := svc.Get(r.Context(), saleID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSaleResponse(sale))
	}
}

// ListSales returns a cursor page of sales for one location.
func ListSales(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sales service unavailable"))
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

		rows, err := svc.List(r.Context(), locationID, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]saleResponse, 0, len(rows))
		nextCursor := ""
		if len(rows) > limit {
			last := rows[limit-1]
			nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
			rows = rows[:limit]
		}
		for i := range rows {
			items = append(items, newSaleResponse(&rows[i]))
		}

		responses.WriteSuccess(w, map[string]any{
			"sales":       items,
			"next_cursor": nextCursor,
		})
	}
}

type saleResponse struct {
	SaleID        uuid.UUID             `json:"sale_id"`
	SaleNumber    string                `json:"sale_number"`
	LocationID    uuid.UUID             `json:"location_id"`
	ShiftID       *uuid.UUID            `json:"shift_id,omitempty"`
	ActorID       uuid.UUID             `json:"actor_id"`
	CustomerID    *uuid.UUID            `json:"customer_id,omitempty"`
	SubtotalCents int                   `json:"subtotal_cents"`
	TaxCents      int                   `json:"tax_cents"`
	DiscountCents int                   `json:"discount_cents"`
	DiscountType  string                `json:"discount_type"`
	TotalCents    int                   `json:"total_cents"`
	Status        string                `json:"status"`
	VoidedBy      *uuid.UUID            `json:"voided_by,omitempty"`
	VoidedAt      *time.Time            `json:"voided_at,omitempty"`
	VoidReason    *string               `json:"void_reason,omitempty"`
	Items         []saleItemResponse    `json:"items"`
	Payments      []salePaymentResponse `json:"payments"`
	CreatedAt     time.Time             `json:"created_at"`
}

type saleItemResponse struct {
	VariantID      uuid.UUID `json:"variant_id"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int       `json:"unit_price_cents"`
	DiscountCents  int       `json:"discount_cents"`
	TaxCents       int       `json:"tax_cents"`
	LineTotalCents int       `json:"line_total_cents"`
}

type salePaymentResponse struct {
	Method          string  `json:"method"`
	AmountCents     int     `json:"amount_cents"`
	ReferenceNumber *string `json:"reference_number,omitempty"`
}

func newSaleResponse(sale *models.Sale) saleResponse {
	resp := saleResponse{
		SaleID:        sale.ID,
		SaleNumber:    sale.SaleNumber,
		LocationID:    sale.LocationID,
		ShiftID:       sale.ShiftID,
		ActorID:       sale.ActorID,
		CustomerID:    sale.CustomerID,
		SubtotalCents: sale.SubtotalCents,
		TaxCents:      sale.TaxCents,
		DiscountCents: sale.DiscountCents,
		DiscountType:  string(sale.DiscountType),
		TotalCents:    sale.TotalCents,
		Status:        string(sale.Status),
		VoidedBy:      sale.VoidedBy,
		VoidedAt:      sale.VoidedAt,
		VoidReason:    sale.VoidReason,
		Items:         make([]saleItemResponse, 0, len(sale.Items)),
		Payments:      make([]salePaymentResponse, 0, len(sale.Payments)),
		CreatedAt:     sale.CreatedAt,
	}
	for _, item := range sale.Items {
		resp.Items = append(resp.Items, saleItemResponse{
			VariantID:      item.VariantID,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			DiscountCents:  item.DiscountCents,
			TaxCents:       item.TaxCents,
			LineTotalCents: item.LineTotalCents,
		})
	}
	for _, payment := range sale.Payments {
		resp.Payments = append(resp.Payments, salePaymentResponse{
			Method:          string(payment.Method),
			AmountCents:     payment.AmountCents,
			ReferenceNumber: payment.ReferenceNumber,
		})
	}
	return resp
}
