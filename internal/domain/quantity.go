package domain

import (
	"encoding/json"
	"fmt"
)

// Quantity is an unsigned fixed-precision size. Subtraction below zero is a
// programming error and panics.
type Quantity struct {
	Raw       uint64
	Precision uint8
}

// NewQty creates a Quantity from a float, rounding at the given precision.
// It panics on negative values or invalid precision.
func NewQty(value float64, precision uint8) Quantity {
	if value < 0 {
		panic(fmt.Sprintf("quantity cannot be negative: %v", value))
	}
	raw, err := fixedFromFloat(value, precision)
	if err != nil {
		panic(err)
	}
	return Quantity{Raw: uint64(raw), Precision: precision}
}

// QtyFromRaw creates a Quantity from a raw 10^9-scaled integer.
func QtyFromRaw(raw uint64, precision uint8) Quantity {
	if precision > MaxPrecision {
		panic(fmt.Sprintf("quantity precision %d exceeds maximum %d", precision, MaxPrecision))
	}
	return Quantity{Raw: raw, Precision: precision}
}

// QtyFromStr parses a decimal string, inferring precision from the number of
// fractional digits.
func QtyFromStr(s string) (Quantity, error) {
	raw, precision, err := parseFixed(s)
	if err != nil {
		return Quantity{}, fmt.Errorf("parsing quantity: %w", err)
	}
	if raw < 0 {
		return Quantity{}, fmt.Errorf("quantity cannot be negative: %q", s)
	}
	return Quantity{Raw: uint64(raw), Precision: precision}, nil
}

// Float64 returns the quantity as a float (display and statistics only).
func (q Quantity) Float64() float64 { return fixedToFloat(int64(q.Raw)) }

// String renders the quantity with exactly Precision fractional digits.
func (q Quantity) String() string { return formatFixed(int64(q.Raw), q.Precision) }

// MarshalJSON renders the quantity as a quoted decimal string, so the wire
// form carries the exact precision.
func (q Quantity) MarshalJSON() ([]byte, error) {
	return json.Marshal(q.String())
}

// UnmarshalJSON parses a quoted decimal string, inferring precision from
// the fractional digits.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := QtyFromStr(s)
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

// IsZero reports whether the quantity is zero.
func (q Quantity) IsZero() bool { return q.Raw == 0 }

// IsPositive reports whether the quantity is strictly greater than zero.
func (q Quantity) IsPositive() bool { return q.Raw > 0 }

// Add returns q + other, preserving the larger precision.
func (q Quantity) Add(other Quantity) Quantity {
	return Quantity{Raw: q.Raw + other.Raw, Precision: maxPrecision(q.Precision, other.Precision)}
}

// Sub returns q − other. It panics if the result would be negative.
func (q Quantity) Sub(other Quantity) Quantity {
	if other.Raw > q.Raw {
		panic(fmt.Sprintf("quantity underflow: %s - %s", q, other))
	}
	return Quantity{Raw: q.Raw - other.Raw, Precision: maxPrecision(q.Precision, other.Precision)}
}

// Cmp returns -1, 0, or 1 comparing raw values exactly.
func (q Quantity) Cmp(other Quantity) int {
	switch {
	case q.Raw < other.Raw:
		return -1
	case q.Raw > other.Raw:
		return 1
	}
	return 0
}

// Less reports q < other.
func (q Quantity) Less(other Quantity) bool { return q.Raw < other.Raw }

// Greater reports q > other.
func (q Quantity) Greater(other Quantity) bool { return q.Raw > other.Raw }

// Equal reports exact raw equality.
func (q Quantity) Equal(other Quantity) bool { return q.Raw == other.Raw }

// MinQty returns the smaller of two quantities.
func MinQty(a, b Quantity) Quantity {
	if a.Raw <= b.Raw {
		return a
	}
	return b
}
