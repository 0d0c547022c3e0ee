package account

import (
	"tradesim/internal/domain"
)

// Portfolio indexes positions by ID and keeps insertion order so reports
// and iteration are deterministic.
type Portfolio struct {
	byID  map[domain.PositionID]*Position
	order []domain.PositionID
}

// NewPortfolio creates an empty portfolio.
func NewPortfolio() *Portfolio {
	return &Portfolio{byID: make(map[domain.PositionID]*Position)}
}

// Get returns the position with the given ID.
func (pf *Portfolio) Get(id domain.PositionID) (*Position, bool) {
	p, ok := pf.byID[id]
	return p, ok
}

// Add registers a new position.
func (pf *Portfolio) Add(p *Position) {
	if _, ok := pf.byID[p.ID]; !ok {
		pf.order = append(pf.order, p.ID)
	}
	pf.byID[p.ID] = p
}

// All returns every position in insertion order.
func (pf *Portfolio) All() []*Position {
	out := make([]*Position, 0, len(pf.order))
	for _, id := range pf.order {
		out = append(out, pf.byID[id])
	}
	return out
}

// OpenForInstrument returns the open positions on an instrument, in
// insertion order.
func (pf *Portfolio) OpenForInstrument(instrumentID domain.InstrumentID) []*Position {
	var out []*Position
	for _, id := range pf.order {
		p := pf.byID[id]
		if p.InstrumentID == instrumentID && p.IsOpen() {
			out = append(out, p)
		}
	}
	return out
}

// NetRaw returns the signed open quantity across all positions on an
// instrument for a strategy, in raw units.
func (pf *Portfolio) NetRaw(instrumentID domain.InstrumentID, strategyID domain.StrategyID) int64 {
	var net int64
	for _, id := range pf.order {
		p := pf.byID[id]
		if p.InstrumentID == instrumentID && p.StrategyID == strategyID {
			net += p.SignedRaw()
		}
	}
	return net
}

// Reset drops every position.
func (pf *Portfolio) Reset() {
	pf.byID = make(map[domain.PositionID]*Position)
	pf.order = nil
}
