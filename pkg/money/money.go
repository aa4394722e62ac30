// Package money provides the fixed-point amount type used by the ledger.
//
// Invariants:
//   - Amount is always stored in the smallest unit (0.01 of RUB, PV or VWC).
//   - Floats never touch stored values; decimal strings are parsed exactly.
//   - Percentages round half-up to the smallest unit.
package money

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Amount is a monetary amount in hundredths of a currency unit.
type Amount int64

var (
	hundred  = decimal.NewFromInt(100)
	maxMinor = decimal.NewFromInt(math.MaxInt64)
	minMinor = decimal.NewFromInt(math.MinInt64)
)

// Parse converts a decimal string such as "87.50" into an Amount.
// Inputs with more than two decimal places are rejected rather than rounded.
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return FromDecimal(d)
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("money.MustParse(%q): %v", s, err))
	}
	return a
}

// FromDecimal converts an exact decimal value into an Amount.
func FromDecimal(d decimal.Decimal) (Amount, error) {
	if !d.Round(Decimals).Equal(d) {
		return 0, fmt.Errorf("%w: %s", ErrTooPrecise, d.String())
	}
	minor := d.Shift(Decimals)
	if minor.GreaterThan(maxMinor) || minor.LessThan(minMinor) {
		return 0, fmt.Errorf("%w: %s", ErrAmountOverflow, d.String())
	}
	return Amount(minor.IntPart()), nil
}

// Decimal returns the amount as an exact decimal in major units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -Decimals)
}

// Percent returns a × p / 100 rounded half-up to the smallest unit.
func (a Amount) Percent(p decimal.Decimal) (Amount, error) {
	if p.IsNegative() {
		return 0, fmt.Errorf("%w: %s", ErrInvalidPercent, p.String())
	}
	result := a.Decimal().Mul(p).Div(hundred).Round(Decimals)
	return FromDecimal(result)
}

// IsPositive reports whether the amount is greater than zero.
func (a Amount) IsPositive() bool { return a > 0 }

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool { return a == 0 }

// String renders the amount with exactly two decimal places.
func (a Amount) String() string {
	return a.Decimal().StringFixed(Decimals)
}

// MarshalJSON encodes the amount as a decimal string to keep precision across clients.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts either a decimal string or a JSON number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidAmount, string(data))
		}
		s = n.String()
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Sum adds up amounts, failing on int64 overflow.
func Sum(amounts ...Amount) (Amount, error) {
	var total int64
	for _, a := range amounts {
		v := int64(a)
		if (v > 0 && total > math.MaxInt64-v) || (v < 0 && total < math.MinInt64-v) {
			return 0, ErrAmountOverflow
		}
		total += v
	}
	return Amount(total), nil
}
