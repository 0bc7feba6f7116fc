// Package money provides integer minor-unit monetary values and the split
// arithmetic used by the ledger. All arithmetic is integer-only.
package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount is returned for non-positive, oversized or malformed amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrSplitMismatch is returned when split shares do not add up to the total.
	ErrSplitMismatch = errors.New("split mismatch")
)

// MaxAmount is the largest amount accepted as input, in minor units.
// Sums of any realistic number of such values stay far below the int64 range.
const MaxAmount int64 = 1_000_000_000_000_000

// Money is an amount in the smallest currency unit.
//
// Examples:
//   - New(4900, "USD") = 49.00 USD
//   - New(100, "JPY")  = 100 JPY
type Money struct {
	Amount   int64  `json:"amount"`   // minor units (cents, pence, ...)
	Currency string `json:"currency"` // ISO 4217, uppercase
}

// New creates a Money value, normalising the currency code to upper case.
func New(amount int64, currency string) Money {
	return Money{Amount: amount, Currency: strings.ToUpper(currency)}
}

// Zero returns a zero Money value in the given currency.
func Zero(currency string) Money { return New(0, currency) }

// Add adds two values. Panics on currency mismatch or overflow.
func (m Money) Add(other Money) Money {
	m.assertSameCurrency(other)
	sum := m.Amount + other.Amount
	if (other.Amount > 0 && sum < m.Amount) || (other.Amount < 0 && sum > m.Amount) {
		panic(fmt.Sprintf("money: overflow adding %d and %d", m.Amount, other.Amount))
	}
	return Money{Amount: sum, Currency: m.Currency}
}

// Sub subtracts other from m. Panics on currency mismatch or overflow.
func (m Money) Sub(other Money) Money {
	return m.Add(other.Neg())
}

// Neg returns -m.
func (m Money) Neg() Money {
	if m.Amount == math.MinInt64 {
		panic("money: overflow negating minimum value")
	}
	return Money{Amount: -m.Amount, Currency: m.Currency}
}

// Abs returns |m|.
func (m Money) Abs() Money {
	if m.Amount < 0 {
		return m.Neg()
	}
	return m
}

// Cmp compares two values of the same currency and returns -1, 0 or +1.
func (m Money) Cmp(other Money) int {
	m.assertSameCurrency(other)
	switch {
	case m.Amount < other.Amount:
		return -1
	case m.Amount > other.Amount:
		return 1
	}
	return 0
}

// Min returns the smaller of two values.
func (m Money) Min(other Money) Money {
	if m.Cmp(other) <= 0 {
		return m
	}
	return other
}

func (m Money) IsZero() bool     { return m.Amount == 0 }
func (m Money) IsPositive() bool { return m.Amount > 0 }
func (m Money) IsNegative() bool { return m.Amount < 0 }

// Validate checks that m is usable as an input amount: positive, bounded and
// carrying a three-letter currency code.
func (m Money) Validate() error {
	if len(m.Currency) != 3 {
		return fmt.Errorf("%w: currency %q is not an ISO 4217 code", ErrInvalidAmount, m.Currency)
	}
	if m.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive, got %d", ErrInvalidAmount, m.Amount)
	}
	if m.Amount > MaxAmount {
		return fmt.Errorf("%w: amount %d exceeds maximum %d", ErrInvalidAmount, m.Amount, MaxAmount)
	}
	return nil
}

// Decimal returns the value in major units, e.g. 12.34 for New(1234, "USD").
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Amount, -int32(Exponent(m.Currency)))
}

// String formats the value as "12.34 USD".
func (m Money) String() string {
	return m.Decimal().StringFixed(int32(Exponent(m.Currency))) + " " + m.Currency
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Display  string `json:"display"`
	}{
		Amount:   m.Amount,
		Currency: m.Currency,
		Display:  m.String(),
	})
}

// Parse converts a major-unit decimal string ("12.34") into minor units of
// the given currency. Fractions finer than the currency exponent are rejected.
func Parse(s, currency string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, s, err)
	}
	minor := d.Shift(int32(Exponent(currency)))
	if !minor.IsInteger() {
		return Money{}, fmt.Errorf("%w: %q has more precision than %s allows", ErrInvalidAmount, s, strings.ToUpper(currency))
	}
	if minor.GreaterThan(decimal.NewFromInt(MaxAmount)) || minor.LessThan(decimal.NewFromInt(-MaxAmount)) {
		return Money{}, fmt.Errorf("%w: %q out of range", ErrInvalidAmount, s)
	}
	return New(minor.IntPart(), currency), nil
}

// Exponent returns the number of minor-unit decimal places for a currency.
func Exponent(currency string) int {
	switch strings.ToUpper(currency) {
	case "JPY", "KRW", "VND", "CLP", "PYG", "ISK", "UGX":
		return 0
	case "BHD", "KWD", "OMR", "JOD", "TND":
		return 3
	}
	return 2
}

func (m Money) assertSameCurrency(other Money) {
	if m.Currency != other.Currency {
		panic(fmt.Sprintf("money: currency mismatch: %s != %s", m.Currency, other.Currency))
	}
}
