// Package account implements venue-side accounting: per-currency balances
// with margin locks, and netted positions built from fill events.
package account

import (
	"fmt"

	"tradesim/internal/domain"
)

// Position is a netted holding in one instrument. It is built purely from
// fill events: buys add signed quantity, sells subtract, and crossing zero
// flips the side. Realized PnL accrues in the quote currency as the position
// reduces, with commissions deducted when they share that currency.
type Position struct {
	ID           domain.PositionID
	TraderID     domain.TraderID
	StrategyID   domain.StrategyID
	InstrumentID domain.InstrumentID
	AccountID    domain.AccountID

	signedRaw     int64 // positive long, negative short, in quantity raw units
	sizePrecision uint8
	avgPxOpen     float64
	realizedPnl   domain.Money
	quote         domain.Currency
	multiplier    float64
	tradeIDs      []domain.TradeID

	TsOpened int64
	TsLast   int64
	TsClosed int64
}

// NewPosition opens a position from its first fill.
func NewPosition(instrument *domain.Instrument, ev domain.OrderFilled) *Position {
	mult := 1.0
	if instrument.Multiplier.IsPositive() {
		mult = instrument.Multiplier.Float64()
	}
	p := &Position{
		ID:            ev.PositionID,
		TraderID:      ev.TraderID,
		StrategyID:    ev.StrategyID,
		InstrumentID:  ev.InstrumentID,
		AccountID:     ev.AccountID,
		sizePrecision: ev.LastQty.Precision,
		realizedPnl:   domain.MoneyFromRaw(0, instrument.QuoteCurrency),
		quote:         instrument.QuoteCurrency,
		multiplier:    mult,
		TsOpened:      ev.TsEvent,
		TsLast:        ev.TsEvent,
	}
	p.ApplyFill(ev)
	return p
}

// ApplyFill nets the fill into the position, realizing PnL on any reducing
// portion and re-opening at the fill price on a flip.
func (p *Position) ApplyFill(ev domain.OrderFilled) {
	fillRaw := int64(ev.LastQty.Raw)
	if ev.Side == domain.OrderSideSell {
		fillRaw = -fillRaw
	}
	px := ev.LastPx.Float64()

	switch {
	case p.signedRaw == 0 || sameSign(p.signedRaw, fillRaw):
		open := absFloat(p.signedRaw, p.sizePrecision)
		add := ev.LastQty.Float64()
		if open+add > 0 {
			p.avgPxOpen = (p.avgPxOpen*open + px*add) / (open + add)
		}
		p.signedRaw += fillRaw

	default:
		closingRaw := min64(abs64(p.signedRaw), abs64(fillRaw))
		closedQty := rawToFloat(closingRaw, p.sizePrecision)
		direction := 1.0
		if p.signedRaw < 0 {
			direction = -1.0
		}
		pnl := (px - p.avgPxOpen) * direction * closedQty * p.multiplier
		p.realizedPnl = p.realizedPnl.Add(domain.NewMoney(pnl, p.quote))
		p.signedRaw += fillRaw
		if p.signedRaw != 0 && !sameSign(p.signedRaw, -fillRaw) {
			// Flipped through zero; the residual opens at the fill price.
			p.avgPxOpen = px
		}
	}

	if ev.Commission.Currency.Code == p.quote.Code {
		p.realizedPnl = p.realizedPnl.Sub(ev.Commission)
	}
	p.tradeIDs = append(p.tradeIDs, ev.TradeID)
	p.TsLast = ev.TsEvent
	if p.signedRaw == 0 {
		p.TsClosed = ev.TsEvent
	} else {
		p.TsClosed = 0
	}
}

// Side returns LONG, SHORT, or FLAT.
func (p *Position) Side() domain.PositionSide {
	switch {
	case p.signedRaw > 0:
		return domain.PositionSideLong
	case p.signedRaw < 0:
		return domain.PositionSideShort
	}
	return domain.PositionSideFlat
}

// Quantity returns the unsigned open quantity.
func (p *Position) Quantity() domain.Quantity {
	return domain.QtyFromRaw(uint64(abs64(p.signedRaw)), p.sizePrecision)
}

// SignedQty returns the signed open quantity as a float: positive long,
// negative short.
func (p *Position) SignedQty() float64 {
	return rawToFloat(p.signedRaw, p.sizePrecision)
}

// SignedRaw returns the signed open quantity in raw units.
func (p *Position) SignedRaw() int64 { return p.signedRaw }

// AvgPxOpen returns the volume-weighted average open price.
func (p *Position) AvgPxOpen() float64 { return p.avgPxOpen }

// RealizedPnl returns the accumulated realized PnL net of commissions.
func (p *Position) RealizedPnl() domain.Money { return p.realizedPnl }

// UnrealizedPnl marks the open quantity against last.
func (p *Position) UnrealizedPnl(last domain.Price) domain.Money {
	pnl := (last.Float64() - p.avgPxOpen) * p.SignedQty() * p.multiplier
	return domain.NewMoney(pnl, p.quote)
}

// TradeIDs returns the fills that built the position.
func (p *Position) TradeIDs() []domain.TradeID { return p.tradeIDs }

// IsOpen reports whether any quantity remains.
func (p *Position) IsOpen() bool { return p.signedRaw != 0 }

// IsClosed reports whether the position has netted to flat.
func (p *Position) IsClosed() bool { return p.signedRaw == 0 }

// WouldIncrease reports whether a fill on the given side would grow or flip
// the position rather than reduce it. Used for reduce-only enforcement.
func (p *Position) WouldIncrease(side domain.OrderSide, qty domain.Quantity) bool {
	fillRaw := int64(qty.Raw)
	if side == domain.OrderSideSell {
		fillRaw = -fillRaw
	}
	if p.signedRaw == 0 || sameSign(p.signedRaw, fillRaw) {
		return true
	}
	return abs64(fillRaw) > abs64(p.signedRaw)
}

// Report snapshots the position as a status report.
func (p *Position) Report(tsInit int64) domain.PositionStatusReport {
	r := domain.PositionStatusReport{
		AccountID:    p.AccountID,
		InstrumentID: p.InstrumentID,
		PositionID:   p.ID,
		PositionSide: p.Side(),
		Quantity:     p.Quantity().String(),
		RealizedPnl:  p.realizedPnl.String(),
		TsLast:       p.TsLast,
		TsInit:       tsInit,
	}
	if p.signedRaw != 0 {
		r.AvgPxOpen = fmt.Sprintf("%.*f", int(domain.MaxPrecision), p.avgPxOpen)
	}
	return r
}

func sameSign(a, b int64) bool { return (a > 0) == (b > 0) && a != 0 && b != 0 }

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func rawToFloat(raw int64, _ uint8) float64 {
	return float64(raw) / float64(domain.FixedScalar)
}

func absFloat(raw int64, precision uint8) float64 {
	return rawToFloat(abs64(raw), precision)
}
