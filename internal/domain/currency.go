package domain

import "strings"

// Currency describes a settlement currency.
type Currency struct {
	Code      string       `json:"code"`
	Precision uint8        `json:"precision"`
	ISO4217   uint16       `json:"iso4217"`
	Name      string       `json:"name"`
	Kind      CurrencyKind `json:"kind"`
}

// Built-in currencies. Anything else resolves through the registry fallback.
var (
	USD  = Currency{Code: "USD", Precision: 2, ISO4217: 840, Name: "United States dollar", Kind: CurrencyKindFiat}
	EUR  = Currency{Code: "EUR", Precision: 2, ISO4217: 978, Name: "Euro", Kind: CurrencyKindFiat}
	GBP  = Currency{Code: "GBP", Precision: 2, ISO4217: 826, Name: "Pound sterling", Kind: CurrencyKindFiat}
	JPY  = Currency{Code: "JPY", Precision: 0, ISO4217: 392, Name: "Japanese yen", Kind: CurrencyKindFiat}
	AUD  = Currency{Code: "AUD", Precision: 2, ISO4217: 36, Name: "Australian dollar", Kind: CurrencyKindFiat}
	USDT = Currency{Code: "USDT", Precision: 8, Name: "Tether", Kind: CurrencyKindCrypto}
	USDC = Currency{Code: "USDC", Precision: 8, Name: "USD Coin", Kind: CurrencyKindCrypto}
	BTC  = Currency{Code: "BTC", Precision: 8, Name: "Bitcoin", Kind: CurrencyKindCrypto}
	ETH  = Currency{Code: "ETH", Precision: 8, Name: "Ether", Kind: CurrencyKindCrypto}
)

var builtinCurrencies = []Currency{USD, EUR, GBP, JPY, AUD, USDT, USDC, BTC, ETH}

// builtinCurrency resolves a code against the built-in definitions.
func builtinCurrency(code string) (Currency, bool) {
	for _, c := range builtinCurrencies {
		if c.Code == code {
			return c, true
		}
	}
	return Currency{}, false
}

// CurrencyRegistry maps currency codes to definitions. It is an explicit
// value owned by the exchange (or backtest engine), never package-global
// mutable state.
type CurrencyRegistry struct {
	byCode map[string]Currency
}

// NewCurrencyRegistry creates a registry seeded with the built-in
// currencies.
func NewCurrencyRegistry() *CurrencyRegistry {
	r := &CurrencyRegistry{byCode: make(map[string]Currency)}
	for _, c := range builtinCurrencies {
		r.byCode[c.Code] = c
	}
	return r
}

// Register adds or replaces a currency definition.
func (r *CurrencyRegistry) Register(c Currency) {
	r.byCode[c.Code] = c
}

// Get resolves a code to a Currency. Unknown codes fall back to a
// precision-8 crypto definition so data from unrecognized venues still
// loads.
func (r *CurrencyRegistry) Get(code string) Currency {
	code = strings.ToUpper(code)
	if c, ok := r.byCode[code]; ok {
		return c
	}
	return Currency{Code: code, Precision: 8, Kind: CurrencyKindCrypto}
}
