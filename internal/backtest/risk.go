package backtest

import (
	"tradesim/internal/domain"
)

// RiskManager enforces pre-trade risk rules before a command reaches the
// venue: per-order notional caps and per-instrument position caps. A zero
// limit disables the corresponding check.
type RiskManager struct {
	maxOrderNotional    float64
	maxPositionNotional float64
}

// NewRiskManager creates a RiskManager with the specified limits, both
// denominated in the instrument's quote currency.
//
//   - maxOrderNotional: maximum notional value of a single order.
//   - maxPositionNotional: maximum notional value of the net position an
//     order may produce.
func NewRiskManager(maxOrderNotional, maxPositionNotional float64) *RiskManager {
	return &RiskManager{
		maxOrderNotional:    maxOrderNotional,
		maxPositionNotional: maxPositionNotional,
	}
}

// CheckOrder evaluates whether the proposed order complies with the
// configured limits. lastPx marks market orders; netRaw is the strategy's
// current signed position in raw fixed-point units.
func (rm *RiskManager) CheckOrder(inst *domain.Instrument, o *domain.Order, lastPx float64, netRaw int64) error {
	px := lastPx
	if !o.Price.IsZero() {
		px = o.Price.Float64()
	}
	if px <= 0 {
		return domain.RiskDeniedf("no reference price for %s", o.InstrumentID)
	}

	mult := 1.0
	if inst.Multiplier.IsPositive() {
		mult = inst.Multiplier.Float64()
	}

	if rm.maxOrderNotional > 0 {
		notional := o.Quantity.Float64() * px * mult
		if notional > rm.maxOrderNotional {
			return domain.RiskDeniedf("order notional %.2f exceeds limit %.2f", notional, rm.maxOrderNotional)
		}
	}

	if rm.maxPositionNotional > 0 {
		signed := int64(o.Quantity.Raw)
		if o.Side == domain.OrderSideSell {
			signed = -signed
		}
		after := netRaw + signed
		if after < 0 {
			after = -after
		}
		qtyAfter := domain.QtyFromRaw(uint64(after), inst.SizePrecision).Float64()
		notional := qtyAfter * px * mult
		if notional > rm.maxPositionNotional {
			return domain.RiskDeniedf("position notional %.2f would exceed limit %.2f", notional, rm.maxPositionNotional)
		}
	}

	return nil
}
