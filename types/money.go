package types

import (
	"fmt"
	"math"
	"strings"
)

// Money is a plan price in the smallest currency unit. Prices are
// descriptive only; nothing in this module charges or prorates them.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// DefaultCurrency is used when a price is given without one.
const DefaultCurrency = "usd"

// NewMoney returns amount minor units of currency.
func NewMoney(amount int64, currency string) Money {
	if currency == "" {
		currency = DefaultCurrency
	}

	return Money{Amount: amount, Currency: strings.ToLower(currency)}
}

// USD returns a price in cents.
func USD(cents int64) Money { return NewMoney(cents, "usd") }

// EUR returns a price in euro cents.
func EUR(cents int64) Money { return NewMoney(cents, "eur") }

// Free returns a zero price.
func Free() Money { return NewMoney(0, DefaultCurrency) }

// FromMajor converts a major-unit amount such as 9.99 into Money. SQL stores
// keep prices as fixed-point major units, so this is the read path.
func FromMajor(major float64, currency string) Money {
	m := NewMoney(0, currency)
	m.Amount = int64(math.Round(major * math.Pow10(currencyDecimals(m.Currency))))

	return m
}

// Major returns the price in major units.
func (m Money) Major() float64 {
	return float64(m.Amount) / math.Pow10(currencyDecimals(m.Currency))
}

// IsZero reports whether the price is free.
func (m Money) IsZero() bool { return m.Amount == 0 }

// FormatMajor renders the amount without a symbol, e.g. "49.00".
func (m Money) FormatMajor() string {
	decimals := currencyDecimals(m.Currency)
	if decimals == 0 {
		return fmt.Sprintf("%d", m.Amount)
	}

	sign := ""
	abs := m.Amount
	if abs < 0 {
		sign = "-"
		abs = -abs
	}

	divisor := int64(math.Pow10(decimals))

	return fmt.Sprintf("%s%d.%0*d", sign, abs/divisor, decimals, abs%divisor)
}

// String renders the price with its currency code, e.g. "USD 49.00".
func (m Money) String() string {
	return strings.ToUpper(m.Currency) + " " + m.FormatMajor()
}

func currencyDecimals(currency string) int {
	switch strings.ToLower(currency) {
	case "jpy", "krw", "vnd", "clp", "pyg", "idr":
		return 0
	default:
		return 2
	}
}
