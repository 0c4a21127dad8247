package money

import "github.com/shopspring/decimal"

// Dual holds one amount per settlement currency. Both values are taken as
// provided by the order source; they are never derived from each other.
type Dual struct {
	USD decimal.Decimal
	NGN decimal.Decimal
}

// In returns the amount denominated in c. Unknown currencies yield zero.
func (d Dual) In(c Currency) decimal.Decimal {
	switch c {
	case USD:
		return d.USD
	case NGN:
		return d.NGN
	default:
		return decimal.Zero
	}
}

// IsPositive reports whether the dollar amount is greater than zero. The
// dollar value is the one the order source uses to flag an outstanding
// balance.
func (d Dual) IsPositive() bool {
	return d.USD.IsPositive()
}
