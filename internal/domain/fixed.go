package domain

import (
	"fmt"
	"math"
	"strings"
)

// Fixed-point backing for Price, Quantity, and Money. All values store a raw
// integer scaled by 10^9 regardless of their declared precision; the
// precision only controls rounding and display. Keeping a single internal
// scale makes cross-precision arithmetic a plain integer add.
const (
	// FixedScalar is the internal resolution: raw = value * 10^9.
	FixedScalar int64 = 1_000_000_000

	// MaxPrecision is the highest representable decimal precision.
	MaxPrecision uint8 = 9
)

var pow10 = [10]int64{1, 10, 100, 1_000, 10_000, 100_000, 1_000_000, 10_000_000, 100_000_000, 1_000_000_000}

// fixedFromFloat converts a float to raw fixed-point, rounding half away
// from zero at the given precision.
func fixedFromFloat(value float64, precision uint8) (int64, error) {
	if precision > MaxPrecision {
		return 0, fmt.Errorf("precision %d exceeds maximum %d", precision, MaxPrecision)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("invalid fixed-point value %v", value)
	}
	scaled := math.Round(value * float64(pow10[precision]))
	return int64(scaled) * pow10[MaxPrecision-precision], nil
}

// fixedToFloat converts raw fixed-point back to a float.
func fixedToFloat(raw int64) float64 {
	return float64(raw) / float64(FixedScalar)
}

// formatFixed renders raw fixed-point as a decimal string with exactly
// precision fractional digits.
func formatFixed(raw int64, precision uint8) string {
	neg := raw < 0
	abs := raw
	if neg {
		abs = -abs
	}
	intPart := abs / FixedScalar
	fracPart := abs % FixedScalar

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	fmt.Fprintf(&b, "%d", intPart)
	if precision > 0 {
		frac := fmt.Sprintf("%09d", fracPart)
		b.WriteByte('.')
		b.WriteString(frac[:precision])
	}
	return b.String()
}

// parseFixed parses a decimal string into raw fixed-point, returning the
// precision inferred from the number of fractional digits.
func parseFixed(s string) (int64, uint8, error) {
	if s == "" {
		return 0, 0, fmt.Errorf("empty fixed-point string")
	}
	neg := false
	body := s
	switch s[0] {
	case '-':
		neg = true
		body = s[1:]
	case '+':
		body = s[1:]
	}
	intStr, fracStr := body, ""
	if i := strings.IndexByte(body, '.'); i >= 0 {
		intStr, fracStr = body[:i], body[i+1:]
	}
	if intStr == "" && fracStr == "" {
		return 0, 0, fmt.Errorf("invalid fixed-point string %q", s)
	}
	if len(fracStr) > int(MaxPrecision) {
		return 0, 0, fmt.Errorf("precision of %q exceeds maximum %d", s, MaxPrecision)
	}

	var raw int64
	for _, c := range intStr {
		if c < '0' || c > '9' {
			return 0, 0, fmt.Errorf("invalid fixed-point string %q", s)
		}
		raw = raw*10 + int64(c-'0')
	}
	raw *= FixedScalar

	var frac int64
	for _, c := range fracStr {
		if c < '0' || c > '9' {
			return 0, 0, fmt.Errorf("invalid fixed-point string %q", s)
		}
		frac = frac*10 + int64(c-'0')
	}
	raw += frac * pow10[int(MaxPrecision)-len(fracStr)]

	if neg {
		raw = -raw
	}
	return raw, uint8(len(fracStr)), nil
}

// maxPrecision returns the larger of two precisions; binary operations on
// fixed-point values preserve it.
func maxPrecision(a, b uint8) uint8 {
	if a > b {
		return a
	}
	return b
}
