package billing

import (
	"github.com/finbooks/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// LineAmounts holds the derived amounts for a single invoice line.
// Every field is computed in decimal space; nothing here ever touches
// floating point.
type LineAmounts struct {
	LineTotal      decimal.Decimal // quantity * unitPrice, before discount
	DiscountAmount decimal.Decimal
	Subtotal       decimal.Decimal // LineTotal - DiscountAmount
	TaxAmount      decimal.Decimal
	Total          decimal.Decimal // Subtotal + TaxAmount
}

// CalculateLine derives the amounts for one line item.
//
//	lineTotal      = quantity * unitPrice
//	discountAmount = lineTotal * discountPercent / 100
//	subtotal       = lineTotal - discountAmount
//	taxAmount      = subtotal * taxRate / 100
//	total          = subtotal + taxAmount
func CalculateLine(quantity, unitPrice, discountPercent, taxRate decimal.Decimal) (*LineAmounts, error) {
	if quantity.IsNegative() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Quantity cannot be negative")
	}
	if unitPrice.IsNegative() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Unit price cannot be negative")
	}
	if discountPercent.IsNegative() || discountPercent.GreaterThan(oneHundred) {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Discount percent must be between 0 and 100")
	}
	if taxRate.IsNegative() || taxRate.GreaterThan(oneHundred) {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Tax rate must be between 0 and 100")
	}

	lineTotal := quantity.Mul(unitPrice)
	discountAmount := lineTotal.Mul(discountPercent).Div(oneHundred)
	subtotal := lineTotal.Sub(discountAmount)

	// Unreachable with the input bounds above, but a negative subtotal must
	// never leak into an invoice total.
	if subtotal.IsNegative() {
		return nil, shared.NewDomainError(shared.CodeNegativeResult, "Line subtotal is negative")
	}

	taxAmount := subtotal.Mul(taxRate).Div(oneHundred)

	return &LineAmounts{
		LineTotal:      lineTotal,
		DiscountAmount: discountAmount,
		Subtotal:       subtotal,
		TaxAmount:      taxAmount,
		Total:          subtotal.Add(taxAmount),
	}, nil
}
