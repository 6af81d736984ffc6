// Package money provides immutable decimal currency value objects used by the
// pricing and promotion rules: Money, Price and OrderTotal.
package money

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidArgument is returned when a value object is constructed from
	// malformed input (negative amounts, unknown currency codes, out-of-range
	// percentages).
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrCurrencyMismatch is returned when two amounts in different currencies
	// are combined. It matches ErrInvalidArgument under errors.Is.
	ErrCurrencyMismatch = errors.Wrap(ErrInvalidArgument, "currency mismatch")
)

var hundred = decimal.NewFromInt(100)

// Money is an amount of a single currency.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// New creates Money from a non-negative amount and an ISO-like currency code.
// The code is trimmed and uppercased.
func New(amount decimal.Decimal, currency string) (Money, error) {
	if amount.IsNegative() {
		return Money{}, errors.Wrapf(ErrInvalidArgument, "amount %s is negative", amount)
	}
	cur, err := NormalizeCurrency(currency)
	if err != nil {
		return Money{}, err
	}
	return Money{amount: amount, currency: cur}, nil
}

// NewSigned is like New but accepts a negative amount. It is meant for order
// amounts taken from a request, which the coupon engine itself rejects when
// they are not positive.
func NewSigned(amount decimal.Decimal, currency string) (Money, error) {
	cur, err := NormalizeCurrency(currency)
	if err != nil {
		return Money{}, err
	}
	return Money{amount: amount, currency: cur}, nil
}

// MustNew is like New but panics on error. Intended for tests and constants.
func MustNew(amount, currency string) Money {
	m, err := New(decimal.RequireFromString(amount), currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero amount of the given currency.
func Zero(currency string) (Money, error) {
	return New(decimal.Zero, currency)
}

// NormalizeCurrency trims and uppercases code and checks it is three ASCII letters.
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", errors.Wrapf(ErrInvalidArgument, "currency %q must be a 3-letter code", code)
	}
	for i := range len(code) {
		if code[i] < 'A' || code[i] > 'Z' {
			return "", errors.Wrapf(ErrInvalidArgument, "currency %q must be a 3-letter code", code)
		}
	}
	return code, nil
}

// Amount returns the decimal amount.
func (m Money) Amount() decimal.Decimal { return m.amount }

// Currency returns the uppercase currency code.
func (m Money) Currency() string { return m.currency }

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.amount.IsZero() }

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool { return m.amount.IsPositive() }

// IsNegative reports whether the amount is below zero. Only Sub and
// NewSigned can produce a negative Money.
func (m Money) IsNegative() bool { return m.amount.IsNegative() }

// Add returns m + o.
func (m Money) Add(o Money) (Money, error) {
	if err := m.sameCurrency(o); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount.Add(o.amount), currency: m.currency}, nil
}

// Sub returns m - o. The result may be negative.
func (m Money) Sub(o Money) (Money, error) {
	if err := m.sameCurrency(o); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount.Sub(o.amount), currency: m.currency}, nil
}

// Cmp compares m and o, returning -1, 0 or +1.
func (m Money) Cmp(o Money) (int, error) {
	if err := m.sameCurrency(o); err != nil {
		return 0, err
	}
	return m.amount.Cmp(o.amount), nil
}

// Min returns the smaller of m and o.
func (m Money) Min(o Money) (Money, error) {
	c, err := m.Cmp(o)
	if err != nil {
		return Money{}, err
	}
	if c <= 0 {
		return m, nil
	}
	return o, nil
}

// MulPercent returns m * pct / 100 rounded to two decimal places.
func (m Money) MulPercent(pct decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(pct).Div(hundred).Round(2), currency: m.currency}
}

// Round rounds the amount to the given number of decimal places.
func (m Money) Round(places int32) Money {
	return Money{amount: m.amount.Round(places), currency: m.currency}
}

// WithAmount returns Money of the same currency holding amount.
func (m Money) WithAmount(amount decimal.Decimal) Money {
	return Money{amount: amount, currency: m.currency}
}

// Equal reports whether both currency and amount match.
func (m Money) Equal(o Money) bool {
	return m.currency == o.currency && m.amount.Equal(o.amount)
}

// String renders the amount with two decimals followed by the currency code.
func (m Money) String() string {
	return m.amount.StringFixed(2) + " " + m.currency
}

func (m Money) sameCurrency(o Money) error {
	if m.currency != o.currency {
		return errors.Wrapf(ErrCurrencyMismatch, "%s vs %s", m.currency, o.currency)
	}
	return nil
}
