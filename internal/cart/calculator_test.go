package cart

import (
	"testing"

	"github.com/google/uuid"

	"github.com/registerhq/retailcore-backend/pkg/enums"
	pkgerrors "github.com/registerhq/retailcore-backend/pkg/errors"
)

func TestCalculateFixedDiscount(t *testing.T) {
	t.Parallel()

	// qty 2 at $10.00, $2.00 off, 8% tax -> subtotal 2000, tax 160, total 1960
	quote, err := Calculate(QuoteInput{
		Lines: []Line{
			{VariantID: uuid.New(), Quantity: 2, UnitPriceCents: 1000},
		},
		Discount:   DiscountSpec{Type: enums.DiscountTypeFixed, Value: 200},
		TaxRateBps: 800,
	})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if quote.SubtotalCents != 2000 || quote.TaxCents != 160 || quote.DiscountCents != 200 || quote.TotalCents != 1960 {
		t.Fatalf("unexpected quote: %+v", quote)
	}
}

func TestCalculatePercentageDiscount(t *testing.T) {
	t.Parallel()

	quote, err := Calculate(QuoteInput{
		Lines: []Line{
			{VariantID: uuid.New(), Quantity: 3, UnitPriceCents: 500},
		},
		Discount: DiscountSpec{Type: enums.DiscountTypePercentage, Value: 10},
	})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if quote.SubtotalCents != 1500 || quote.DiscountCents != 150 || quote.TotalCents != 1350 {
		t.Fatalf("unexpected quote: %+v", quote)
	}
}

func TestCalculateRoundsHalfUp(t *testing.T) {
	t.Parallel()

	// 8.25% of 1030 = 84.975 -> 85
	quote, err := Calculate(QuoteInput{
		Lines: []Line{
			{VariantID: uuid.New(), Quantity: 1, UnitPriceCents: 1030},
		},
		TaxRateBps: 825,
	})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if quote.TaxCents != 85 {
		t.Fatalf("expected tax 85, got %d", quote.TaxCents)
	}
	if quote.TotalCents != 1115 {
		t.Fatalf("expected total 1115, got %d", quote.TotalCents)
	}
}

func TestCalculateDiscountNeverInvertsCart(t *testing.T) {
	t.Parallel()

	quote, err := Calculate(QuoteInput{
		Lines: []Line{
			{VariantID: uuid.New(), Quantity: 1, UnitPriceCents: 500},
		},
		Discount: DiscountSpec{Type: enums.DiscountTypeFixed, Value: 2000},
	})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if quote.DiscountCents != 500 {
		t.Fatalf("expected discount capped at 500, got %d", quote.DiscountCents)
	}
	if quote.TotalCents != 0 {
		t.Fatalf("expected total 0, got %d", quote.TotalCents)
	}
}

func TestCalculateLineDiscountNeverInvertsLine(t *testing.T) {
	t.Parallel()

	quote, err := Calculate(QuoteInput{
		Lines: []Line{
			{VariantID: uuid.New(), Quantity: 1, UnitPriceCents: 300, DiscountCents: 1000},
			{VariantID: uuid.New(), Quantity: 1, UnitPriceCents: 200},
		},
	})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if quote.SubtotalCents != 200 {
		t.Fatalf("expected subtotal 200, got %d", quote.SubtotalCents)
	}
}

func TestCalculateDeterministic(t *testing.T) {
	t.Parallel()

	input := QuoteInput{
		Lines: []Line{
			{VariantID: uuid.New(), Quantity: 3, UnitPriceCents: 333, DiscountCents: 17},
			{VariantID: uuid.New(), Quantity: 7, UnitPriceCents: 129},
		},
		Discount:   DiscountSpec{Type: enums.DiscountTypePercentage, Value: 15},
		TaxRateBps: 825,
	}
	first, err := Calculate(input)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Calculate(input)
		if err != nil {
			t.Fatalf("calculate: %v", err)
		}
		if *again != *first {
			t.Fatalf("expected identical quote, got %+v vs %+v", again, first)
		}
	}
}

func TestCalculateValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		input QuoteInput
	}{
		{name: "no lines", input: QuoteInput{}},
		{
			name: "zero quantity",
			input: QuoteInput{
				Lines: []Line{{VariantID: uuid.New(), Quantity: 0, UnitPriceCents: 100}},
			},
		},
		{
			name: "negative price",
			input: QuoteInput{
				Lines: []Line{{VariantID: uuid.New(), Quantity: 1, UnitPriceCents: -5}},
			},
		},
		{
			name: "unknown discount type",
			input: QuoteInput{
				Lines:    []Line{{VariantID: uuid.New(), Quantity: 1, UnitPriceCents: 100}},
				Discount: DiscountSpec{Type: "loyalty", Value: 10},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Calculate(tc.input)
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}
