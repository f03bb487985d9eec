package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/registerhq/retailcore-backend/api/middleware"
	"github.com/registerhq/retailcore-backend/api/responses"
	"github.com/registerhq/retailcore-backend/api/validators"
	"github.com/registerhq/retailcore-backend/internal/cart"
	pkgerrors "github.com/registerhq/retailcore-backend/pkg/errors"
	"github.com/registerhq/retailcore-backend/pkg/logger"
)

type parkCartRequest struct {
	LocationID uuid.UUID         `json:"location_id" validate:"required"`
	CustomerID *uuid.UUID        `json:"customer_id,omitempty"`
	Lines      []cart.Line       `json:"lines" validate:"required,min=1,dive"`
	Discount   cart.DiscountSpec `json:"discount"`
	Label      string            `json:"label,omitempty" validate:"max=200"`
}

// CartQuote reruns the terminal's pricing server-side; the response is the
// authoritative figure for the submitted lines.
func CartQuote(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload cart.QuoteInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := cart.Calculate(payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}

// ParkCart suspends the submitted cart until it is resumed or discarded.
func ParkCart(svc *cart.ParkService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		var payload parkCartRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snapshot, err := svc.Park(r.Context(), cart.ParkInput{
			LocationID: payload.LocationID,
			ActorID:    middleware.ActorIDFromContext(r.Context()),
			CustomerID: payload.CustomerID,
			Lines:      payload.Lines,
			Discount:   payload.Discount,
			Label:      payload.Label,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, snapshot)
	}
}

// GetParkedCart returns a parked cart without consuming it.
func GetParkedCart(svc *cart.ParkService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		cartID, err := validators.ParsePathUUID(chi.URLParam(r, "cartId"), "cartId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snapshot, err := svc.Peek(r.Context(), cartID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}

// ResumeParkedCart returns the snapshot and removes it.
func ResumeParkedCart(svc *cart.ParkService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		cartID, err := validators.ParsePathUUID(chi.URLParam(r, "cartId"), "cartId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snapshot, err := svc.Resume(r.Context(), cartID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}

// DiscardParkedCart drops a parked cart.
func DiscardParkedCart(svc *cart.ParkService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		cartID, err := validators.ParsePathUUID(chi.URLParam(r, "cartId"), "cartId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Discard(r.Context(), cartID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"cart_id": cartID, "discarded": true})
	}
}
