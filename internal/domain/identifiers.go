package domain

import (
	"fmt"
	"strings"
)

// Identifiers are cheap comparable string wrappers. They serialize as plain
// strings everywhere.

// TraderID identifies a trader across the whole platform.
type TraderID string

// StrategyID identifies a strategy instance within a trader.
type StrategyID string

// ClientID identifies a registered execution client.
type ClientID string

// AccountID identifies an account at a venue.
type AccountID string

// ClientOrderID is the trader-assigned unique order identifier.
type ClientOrderID string

// VenueOrderID is the exchange-assigned order identifier, empty until the
// order is accepted.
type VenueOrderID string

// OrderListID groups orders submitted atomically as a list.
type OrderListID string

// PositionID identifies a position at the venue.
type PositionID string

// TradeID identifies a single fill (execution).
type TradeID string

// Venue identifies an exchange or trading venue.
type Venue string

// Symbol is the venue-local ticker for an instrument.
type Symbol string

// InstrumentID is the (symbol, venue) pair identifying a tradeable
// instrument. Its canonical string form is "SYMBOL.VENUE".
type InstrumentID struct {
	Symbol Symbol `json:"symbol"`
	Venue  Venue  `json:"venue"`
}

// NewInstrumentID creates an InstrumentID from its parts.
func NewInstrumentID(symbol Symbol, venue Venue) InstrumentID {
	return InstrumentID{Symbol: symbol, Venue: venue}
}

// ParseInstrumentID parses the canonical "SYMBOL.VENUE" form. The venue is
// everything after the last dot so symbols may themselves contain dots.
func ParseInstrumentID(s string) (InstrumentID, error) {
	i := strings.LastIndexByte(s, '.')
	if i <= 0 || i == len(s)-1 {
		return InstrumentID{}, fmt.Errorf("invalid instrument ID %q: expected SYMBOL.VENUE", s)
	}
	return InstrumentID{Symbol: Symbol(s[:i]), Venue: Venue(s[i+1:])}, nil
}

// String returns the canonical "SYMBOL.VENUE" form.
func (id InstrumentID) String() string {
	return string(id.Symbol) + "." + string(id.Venue)
}

// IsZero reports whether the ID is unset.
func (id InstrumentID) IsZero() bool {
	return id.Symbol == "" && id.Venue == ""
}

// MarshalText implements encoding.TextMarshaler so InstrumentID serializes
// as its canonical string (including when used as a map key).
func (id InstrumentID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *InstrumentID) UnmarshalText(b []byte) error {
	parsed, err := ParseInstrumentID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
