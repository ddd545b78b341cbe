package billing

import "math"

// Totals groups the computed invoice amounts.
type Totals struct {
	Subtotal   float64
	CGSTAmount float64
	SGSTAmount float64
	GrandTotal float64
}

// LineTotal applies the frozen per-line discount to quantity * unit price.
func LineTotal(quantity int, unitPrice, discountPct float64) float64 {
	gross := float64(quantity) * unitPrice
	return gross - gross*(discountPct/100)
}

// ComputeTotals sums line totals and applies the flat tax rates. Amounts are
// computed at full precision and rounded to 2 decimals for storage.
func ComputeTotals(lines []Line, rates TaxRates) Totals {
	var subtotal float64
	for _, line := range lines {
		subtotal += LineTotal(line.Quantity, line.UnitPrice, line.DiscountPct)
	}
	cgst := subtotal * (rates.CGSTPercent / 100)
	sgst := subtotal * (rates.SGSTPercent / 100)
	return Totals{
		Subtotal:   Round2(subtotal),
		CGSTAmount: Round2(cgst),
		SGSTAmount: Round2(sgst),
		GrandTotal: Round2(subtotal + cgst + sgst),
	}
}

// Round2 rounds to 2 decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
