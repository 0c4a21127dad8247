// Package money formats the two settlement currencies for display.
//
// Amounts arrive from the order source already denominated in both currencies.
// Nothing in this package converts between them.
package money

import (
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Currency is an ISO 4217 code accepted by the payment rails.
type Currency string

const (
	// NGN is the Nigerian naira rail.
	NGN Currency = "NGN"
	// USD is the US dollar rail.
	USD Currency = "USD"
)

// ErrUnsupportedCurrency is returned for any code other than NGN or USD.
var ErrUnsupportedCurrency = errors.New("unsupported currency")

var symbols = map[Currency]string{
	NGN: "₦",
	USD: "$",
}

// ParseCurrency parses a case-insensitive currency code.
func ParseCurrency(code string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(code)))
	if _, ok := symbols[c]; !ok {
		return "", errors.Wrapf(ErrUnsupportedCurrency, "%q", code)
	}
	return c, nil
}

// Symbol returns the display symbol for c.
func (c Currency) Symbol() string {
	return symbols[c]
}

func (c Currency) String() string {
	return string(c)
}

// FormatDollar renders amount as dollars, e.g. "$1,234.50".
func FormatDollar(amount decimal.Decimal) string {
	return format(USD, amount)
}

// FormatNaira renders amount as naira, e.g. "₦230,000.00".
func FormatNaira(amount decimal.Decimal) string {
	return format(NGN, amount)
}

// Format renders amount in the given currency. Unknown currencies are
// rendered with their code as prefix.
func Format(c Currency, amount decimal.Decimal) string {
	return format(c, amount)
}

// FormatNull renders a nullable amount, returning "" when it is null.
func FormatNull(c Currency, amount decimal.NullDecimal) string {
	if !amount.Valid {
		return ""
	}
	return format(c, amount.Decimal)
}

func format(c Currency, amount decimal.Decimal) string {
	symbol, ok := symbols[c]
	if !ok {
		symbol = string(c) + " "
	}

	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}

	whole, cents, _ := strings.Cut(amount.StringFixed(2), ".")
	return sign + symbol + groupThousands(whole) + "." + cents
}

// groupThousands inserts English digit grouping into a string of digits.
func groupThousands(digits string) string {
	if n, err := strconv.ParseInt(digits, 10, 64); err == nil {
		// The printer is cheap and not meant to be shared across goroutines.
		return message.NewPrinter(language.English).Sprint(number.Decimal(n))
	}

	// Beyond int64 range.
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}
