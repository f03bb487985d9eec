package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/registerhq/retailcore-backend/api/middleware"
	"github.com/registerhq/retailcore-backend/api/responses"
	"github.com/registerhq/retailcore-backend/api/validators"
	"github.com/registerhq/retailcore-backend/internal/shifts"
	"github.com/registerhq/retailcore-backend/pkg/db/models"
	pkgerrors "github.com/registerhq/retailcore-backend/pkg/errors"
	"github.com/registerhq/retailcore-backend/pkg/logger"
	"github.com/registerhq/retailcore-backend/pkg/pagination"
)

type clockInRequest struct {
	LocationID       uuid.UUID `json:"location_id" validate:"required"`
	TerminalID       string    `json:"terminal_id" validate:"required,min=1,max=100"`
	OpeningCashCents int       `json:"opening_cash_cents" validate:"gte=0"`
}

type clockOutRequest struct {
	ClosingCashCents int     `json:"closing_cash_cents" validate:"gte=0"`
	Notes            *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

type reconcileRequest struct {
	Notes *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// ClockIn opens a new shift for the requesting actor.
func ClockIn(svc shifts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shifts service unavailable"))
			return
		}

		var payload clockInRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		shift, err := svc.ClockIn(r.Context(), shifts.ClockInInput{
			ActorID:          middleware.ActorIDFromContext(r.Context()),
			LocationID:       payload.LocationID,
			TerminalID:       payload.TerminalID,
			OpeningCashCents: payload.OpeningCashCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newShiftResponse(shift))
	}
}

// CloseShift clocks out, deriving expected cash from the shift's sales.
func CloseShift(svc shifts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shifts service unavailable"))
			return
		}

		shiftID, err := validators.ParsePathUUID(chi.URLParam(r, "shiftId"), "shiftId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload clockOutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		shift, err := svc.ClockOut(r.Context(), shifts.ClockOutInput{
			ShiftID:          shiftID,
			ClosingCashCents: payload.ClosingCashCents,
			Notes:            payload.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newShiftResponse(shift))
	}
}

// ReconcileShift confirms a closed shift's drawer count.
func ReconcileShift(svc shifts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shifts service unavailable"))
			return
		}

		shiftID, err := validators.ParsePathUUID(chi.URLParam(r, "shiftId"), "shiftId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload reconcileRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		shift, err := svc.Reconcile(r.Context(), shiftID, payload.Notes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newShiftResponse(shift))
	}
}

// GetShift returns one shift by id.
func GetShift(svc shifts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shifts service unavailable"))
			return
		}

		shiftID, err := validators.ParsePathUUID(chi.URLParam(r, "shiftId"), "shiftId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		shift, err := svc.Get(r.Context(), shiftID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newShiftResponse(shift))
	}
}

// ActiveShift returns the requesting actor's open shift, if any.
func ActiveShift(svc shifts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shifts service unavailable"))
			return
		}

		shift, err := svc.ActiveForActor(r.Context(), middleware.ActorIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newShiftResponse(shift))
	}
}

// ListShifts returns a cursor page of shifts for one location.
func ListShifts(svc shifts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shifts service unavailable"))
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

		nextCursor := ""
		if len(rows) > limit {
			last := rows[limit-1]
			nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
			rows = rows[:limit]
		}
		items := make([]shiftResponse, 0, len(rows))
		for i := range rows {
			items = append(items, newShiftResponse(&rows[i]))
		}

		responses.WriteSuccess(w, map[string]any{
			"shifts":      items,
			"next_cursor": nextCursor,
		})
	}
}

type shiftResponse struct {
	ShiftID             uuid.UUID  `json:"shift_id"`
	ActorID             uuid.UUID  `json:"actor_id"`
	LocationID          uuid.UUID  `json:"location_id"`
	TerminalID          string     `json:"terminal_id"`
	OpeningCashCents    int        `json:"opening_cash_cents"`
	ClosingCashCents    *int       `json:"closing_cash_cents,omitempty"`
	ExpectedCashCents   *int       `json:"expected_cash_cents,omitempty"`
	CashDifferenceCents *int       `json:"cash_difference_cents,omitempty"`
	Status              string     `json:"status"`
	Notes               *string    `json:"notes,omitempty"`
	StartTime           time.Time  `json:"start_time"`
	EndTime             *time.Time `json:"end_time,omitempty"`
}

func newShiftResponse(shift *models.Shift) shiftResponse {
	return shiftResponse{
		ShiftID:             shift.ID,
		ActorID:             shift.ActorID,
		LocationID:          shift.LocationID,
		TerminalID:          shift.TerminalID,
		OpeningCashCents:    shift.OpeningCashCents,
		ClosingCashCents:    shift.ClosingCashCents,
		ExpectedCashCents:   shift.ExpectedCashCents,
		CashDifferenceCents: shift.CashDifferenceCents,
		Status:              string(shift.Status),
		Notes:               shift.Notes,
		StartTime:           shift.StartTime,
		EndTime:             shift.EndTime,
	}
}
