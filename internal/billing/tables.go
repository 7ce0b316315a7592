// Package billing maps transaction amounts to tiered discounts and fees.
package billing

import (
	"github.com/boddenberg/dukaverse-accounts-go/internal/domain"

	"github.com/shopspring/decimal"
)

// bracket applies Fee to amounts up to and including Upper.
type bracket struct {
	Upper decimal.Decimal
	Fee   decimal.Decimal
}

func br(upper, fee int64) bracket {
	return bracket{Upper: decimal.NewFromInt(upper), Fee: decimal.NewFromInt(fee)}
}

// brackets is ascending by Upper. Amounts above the last bracket pay 0.
var brackets = []bracket{
	br(1000, 0),
	br(5000, 100),
	br(10000, 150),
	br(25000, 200),
	br(50000, 250),
	br(100000, 300),
	br(250000, 350),
	br(500000, 400),
	br(700000, 450),
}

func lookup(amount decimal.Decimal) decimal.Decimal {
	for _, b := range brackets {
		if amount.LessThanOrEqual(b.Upper) {
			return b.Fee
		}
	}
	// TODO: confirm the fee for amounts above 700000 with finance; it drops to 0 today.
	return decimal.Zero
}

// Fee returns the flat charge for amount.
func Fee(amount decimal.Decimal) decimal.Decimal {
	return lookup(amount)
}

// Discount returns the discount for amount. It shares the fee table.
func Discount(amount decimal.Decimal) decimal.Decimal {
	return lookup(amount)
}

// NewQuote computes discount and charge for amount independently.
func NewQuote(amount decimal.Decimal) domain.Quote {
	discount := Discount(amount)
	return domain.Quote{
		Amount:        amount,
		Discount:      discount,
		ChargedAmount: amount.Sub(discount),
		Charge:        Fee(amount),
	}
}

// LegacyTotal is the old payable total: amount plus fee, no discount.
//
// Deprecated: use NewQuote and surface Charge separately.
func LegacyTotal(amount decimal.Decimal) decimal.Decimal {
	return amount.Add(Fee(amount))
}
