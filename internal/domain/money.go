package domain

import (
	"encoding/json"
	"fmt"
)

// Money is a signed fixed-precision amount of a specific currency. The raw
// value is scaled by 10^9; the currency's precision controls display and
// rounding.
type Money struct {
	Raw      int64
	Currency Currency
}

// NewMoney creates Money from a float, rounding at the currency's
// precision.
func NewMoney(value float64, currency Currency) Money {
	raw, err := fixedFromFloat(value, currency.Precision)
	if err != nil {
		panic(err)
	}
	return Money{Raw: raw, Currency: currency}
}

// MoneyFromRaw creates Money from a raw 10^9-scaled integer.
func MoneyFromRaw(raw int64, currency Currency) Money {
	return Money{Raw: raw, Currency: currency}
}

// MoneyFromStr parses "123.45" at the currency's precision.
func MoneyFromStr(s string, currency Currency) (Money, error) {
	raw, _, err := parseFixed(s)
	if err != nil {
		return Money{}, fmt.Errorf("parsing money: %w", err)
	}
	return Money{Raw: raw, Currency: currency}, nil
}

// Float64 returns the amount as a float (display and statistics only).
func (m Money) Float64() float64 { return fixedToFloat(m.Raw) }

// String renders the amount followed by the currency code, e.g. "100.25 USD".
func (m Money) String() string {
	return formatFixed(m.Raw, m.Currency.Precision) + " " + m.Currency.Code
}

// Amount renders just the decimal amount without the currency code.
func (m Money) Amount() string { return formatFixed(m.Raw, m.Currency.Precision) }

// moneyJSON is the wire form of Money. The amount is a decimal string
// rendered at the currency's precision.
type moneyJSON struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// MarshalJSON renders the amount as a decimal string plus the currency
// code.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.Amount(), Currency: m.Currency.Code})
}

// UnmarshalJSON resolves the code against the built-in currencies. Unknown
// codes infer precision from the amount's fractional digits.
func (m *Money) UnmarshalJSON(data []byte) error {
	var dto moneyJSON
	if err := json.Unmarshal(data, &dto); err != nil {
		return err
	}
	raw, precision, err := parseFixed(dto.Amount)
	if err != nil {
		return fmt.Errorf("parsing money: %w", err)
	}
	currency, ok := builtinCurrency(dto.Currency)
	if !ok {
		currency = Currency{Code: dto.Currency, Precision: precision, Kind: CurrencyKindCrypto}
	}
	*m = Money{Raw: raw, Currency: currency}
	return nil
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.Raw == 0 }

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool { return m.Raw < 0 }

// Add returns m + other. Both operands must share a currency.
func (m Money) Add(other Money) Money {
	m.assertSameCurrency(other)
	return Money{Raw: m.Raw + other.Raw, Currency: m.Currency}
}

// Sub returns m − other. Both operands must share a currency.
func (m Money) Sub(other Money) Money {
	m.assertSameCurrency(other)
	return Money{Raw: m.Raw - other.Raw, Currency: m.Currency}
}

// Neg returns the negated amount.
func (m Money) Neg() Money {
	return Money{Raw: -m.Raw, Currency: m.Currency}
}

func (m Money) assertSameCurrency(other Money) {
	if m.Currency.Code != other.Currency.Code {
		panic(fmt.Sprintf("currency mismatch: %s vs %s", m.Currency.Code, other.Currency.Code))
	}
}
