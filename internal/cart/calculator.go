package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/registerhq/retailcore-backend/pkg/enums"
	pkgerrors "github.com/registerhq/retailcore-backend/pkg/errors"
)

// Line is one cart entry as held by a terminal.
type Line struct {
	VariantID      uuid.UUID `json:"variant_id" validate:"required"`
	Quantity       int       `json:"quantity" validate:"required,gt=0"`
	UnitPriceCents int       `json:"unit_price_cents" validate:"gte=0"`
	DiscountCents  int       `json:"discount_cents" validate:"gte=0"`
}

// DiscountSpec describes the cart-level discount. For percentage discounts
// Value is the whole-number percentage; for fixed discounts it is cents.
type DiscountSpec struct {
	Type  enums.DiscountType `json:"type"`
	Value int64              `json:"value" validate:"gte=0"`
}

// QuoteInput is the full pricing request. TaxRateBps is the tax rate in
// basis points (825 = 8.25%).
type QuoteInput struct {
	Lines      []Line       `json:"lines" validate:"required,min=1,dive"`
	Discount   DiscountSpec `json:"discount"`
	TaxRateBps int          `json:"tax_rate_bps" validate:"gte=0"`
}

// Quote is the derived cart pricing.
type Quote struct {
	SubtotalCents int `json:"subtotal_cents"`
	TaxCents      int `json:"tax_cents"`
	DiscountCents int `json:"discount_cents"`
	TotalCents    int `json:"total_cents"`
}

var oneHundred = decimal.NewFromInt(100)

// Calculate derives subtotal, tax, discount and total from the cart lines.
// Pure function, no I/O: terminals run it for live display and the server
// reruns it as the authoritative figure, so both sides must agree exactly.
// All intermediate arithmetic is decimal with a single half-up rounding to
// cents per derived figure.
func Calculate(input QuoteInput) (*Quote, error) {
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line required")
	}
	if input.TaxRateBps < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tax rate cannot be negative")
	}
	if input.Discount.Value < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount value cannot be negative")
	}
	discountType := input.Discount.Type
	if discountType == "" {
		discountType = enums.DiscountTypeNone
	}
	if !discountType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid discount type").
			WithDetails(map[string]any{"type": string(input.Discount.Type)})
	}

	subtotal := decimal.Zero
	for i, line := range input.Lines {
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be positive").
				WithDetails(map[string]any{"index": i})
		}
		if line.UnitPriceCents < 0 || line.DiscountCents < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "line price and discount cannot be negative").
				WithDetails(map[string]any{"index": i})
		}
		lineTotal := decimal.NewFromInt(int64(line.UnitPriceCents)).
			Mul(decimal.NewFromInt(int64(line.Quantity)))
		lineDiscount := decimal.NewFromInt(int64(line.DiscountCents))
		// a line discount can zero the line but never invert it
		if lineDiscount.GreaterThan(lineTotal) {
			lineDiscount = lineTotal
		}
		subtotal = subtotal.Add(lineTotal.Sub(lineDiscount))
	}

	discount := decimal.Zero
	switch discountType {
	case enums.DiscountTypePercentage:
		discount = subtotal.
			Mul(decimal.NewFromInt(input.Discount.Value)).
			Div(oneHundred)
	case enums.DiscountTypeFixed:
		discount = decimal.NewFromInt(input.Discount.Value)
	}
	// a cart discount can zero the cart but never invert it
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}

	tax := subtotal.
		Mul(decimal.NewFromInt(int64(input.TaxRateBps))).
		Div(decimal.NewFromInt(10000))

	subtotalCents := int(subtotal.Round(0).IntPart())
	taxCents := int(tax.Round(0).IntPart())
	discountCents := int(discount.Round(0).IntPart())

	return &Quote{
		SubtotalCents: subtotalCents,
		TaxCents:      taxCents,
		DiscountCents: discountCents,
		TotalCents:    subtotalCents + taxCents - discountCents,
	}, nil
}
