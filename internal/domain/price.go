package domain

import (
	"encoding/json"
	"fmt"
)

// Price is a signed fixed-precision price. The zero value is an unset price;
// use IsZero to test for presence (valid trading prices are positive).
type Price struct {
	Raw       int64
	Precision uint8
}

// NewPrice creates a Price from a float, rounding at the given precision.
// It panics on invalid precision; use PriceFromStr for fallible parsing.
func NewPrice(value float64, precision uint8) Price {
	raw, err := fixedFromFloat(value, precision)
	if err != nil {
		panic(err)
	}
	return Price{Raw: raw, Precision: precision}
}

// PriceFromRaw creates a Price from a raw 10^9-scaled integer.
func PriceFromRaw(raw int64, precision uint8) Price {
	if precision > MaxPrecision {
		panic(fmt.Sprintf("price precision %d exceeds maximum %d", precision, MaxPrecision))
	}
	return Price{Raw: raw, Precision: precision}
}

// PriceFromStr parses a decimal string, inferring precision from the number
// of fractional digits.
func PriceFromStr(s string) (Price, error) {
	raw, precision, err := parseFixed(s)
	if err != nil {
		return Price{}, fmt.Errorf("parsing price: %w", err)
	}
	return Price{Raw: raw, Precision: precision}, nil
}

// Float64 returns the price as a float. Display and statistics only; the
// matching path compares raw integers.
func (p Price) Float64() float64 { return fixedToFloat(p.Raw) }

// String renders the price with exactly Precision fractional digits.
func (p Price) String() string { return formatFixed(p.Raw, p.Precision) }

// MarshalJSON renders the price as a quoted decimal string, so the wire
// form carries the exact precision.
func (p Price) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON parses a quoted decimal string, inferring precision from
// the fractional digits.
func (p *Price) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := PriceFromStr(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// IsZero reports whether the price is unset (raw == 0).
func (p Price) IsZero() bool { return p.Raw == 0 }

// IsPositive reports whether the price is strictly greater than zero.
func (p Price) IsPositive() bool { return p.Raw > 0 }

// Add returns p + other, preserving the larger precision.
func (p Price) Add(other Price) Price {
	return Price{Raw: p.Raw + other.Raw, Precision: maxPrecision(p.Precision, other.Precision)}
}

// Sub returns p − other, preserving the larger precision.
func (p Price) Sub(other Price) Price {
	return Price{Raw: p.Raw - other.Raw, Precision: maxPrecision(p.Precision, other.Precision)}
}

// AddRaw returns the price shifted by a raw fixed-point delta.
func (p Price) AddRaw(raw int64) Price {
	return Price{Raw: p.Raw + raw, Precision: p.Precision}
}

// Cmp returns -1, 0, or 1 comparing raw values exactly.
func (p Price) Cmp(other Price) int {
	switch {
	case p.Raw < other.Raw:
		return -1
	case p.Raw > other.Raw:
		return 1
	}
	return 0
}

// Less reports p < other.
func (p Price) Less(other Price) bool { return p.Raw < other.Raw }

// Greater reports p > other.
func (p Price) Greater(other Price) bool { return p.Raw > other.Raw }

// Equal reports exact raw equality.
func (p Price) Equal(other Price) bool { return p.Raw == other.Raw }

// MidPrice returns the midpoint of two prices with one extra digit of
// precision, as required when extracting MID reference prices.
func MidPrice(a, b Price) Price {
	precision := maxPrecision(a.Precision, b.Precision)
	if precision < MaxPrecision {
		precision++
	}
	return Price{Raw: (a.Raw + b.Raw) / 2, Precision: precision}
}
