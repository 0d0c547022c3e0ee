package exchange

import (
	"fmt"

	"github.com/google/uuid"

	"tradesim/internal/domain"
)

// IDGenerator issues venue order, position, trade, and event IDs from
// monotonic counters. IDs depend only on the venue name and the sequence of
// calls, so two runs over the same inputs produce identical IDs. Reset
// rewinds all counters.
type IDGenerator struct {
	venue            domain.Venue
	orderCounters    map[domain.InstrumentID]int
	positionCounters map[domain.InstrumentID]int
	tradeCount       int
	eventCount       uint64
	entryCount       uint64
}

// NewIDGenerator creates a generator for the venue.
func NewIDGenerator(venue domain.Venue) *IDGenerator {
	g := &IDGenerator{venue: venue}
	g.Reset()
	return g
}

// NextVenueOrderID issues the next venue order ID for the instrument.
func (g *IDGenerator) NextVenueOrderID(instrumentID domain.InstrumentID) domain.VenueOrderID {
	g.orderCounters[instrumentID]++
	return domain.VenueOrderID(fmt.Sprintf("%s-%s-%03d", g.venue, instrumentID.Symbol, g.orderCounters[instrumentID]))
}

// NextPositionID issues the next position ID for the instrument.
func (g *IDGenerator) NextPositionID(instrumentID domain.InstrumentID) domain.PositionID {
	g.positionCounters[instrumentID]++
	return domain.PositionID(fmt.Sprintf("%s-%s-%03d", g.venue, instrumentID.Symbol, g.positionCounters[instrumentID]))
}

// NextTradeID issues the next trade ID. Trade IDs are venue-global.
func (g *IDGenerator) NextTradeID() domain.TradeID {
	g.tradeCount++
	return domain.TradeID(fmt.Sprintf("%s-%03d", g.venue, g.tradeCount))
}

// NextEventID issues the next order event ID. The ID is a name-based UUID
// over the venue and a venue-global counter, never drawn from process
// randomness, so identical runs emit byte-identical event streams.
func (g *IDGenerator) NextEventID() string {
	g.eventCount++
	name := fmt.Sprintf("%s-event-%d", g.venue, g.eventCount)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

// NextBookEntryID issues an internal book entry ID for a resting client
// order. The range starts above the IDs the book reserves for synthetic L1
// levels and stays below the price-keyed L2 range.
func (g *IDGenerator) NextBookEntryID() uint64 {
	g.entryCount++
	return g.entryCount
}

// Reset rewinds every counter to its initial state.
func (g *IDGenerator) Reset() {
	g.orderCounters = make(map[domain.InstrumentID]int)
	g.positionCounters = make(map[domain.InstrumentID]int)
	g.tradeCount = 0
	g.eventCount = 0
	g.entryCount = 100 // 1 and 2 are the book's synthetic L1 entries
}
