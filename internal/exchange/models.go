// Package exchange implements the simulated venue: per-instrument matching
// engines over order books, an exchange-side latency model with an inflight
// command queue, probabilistic fill adjustment, and deterministic
// identifier generation. Everything advances on a single logical clock via
// Process; no wall-clock time or global randomness is consulted.
package exchange

import (
	"math/rand"

	"tradesim/internal/domain"
)

// LatencyModel computes the exchange-side delay between a command being
// sent and it committing at the venue. Delays are in nanoseconds of
// simulated time.
type LatencyModel interface {
	Delay(cmd domain.TradingCommand) int64
}

// FixedLatency applies a base delay plus a per-kind delay: inserts
// (submissions), updates (modifications), and deletes (cancels) each get
// their own component.
type FixedLatency struct {
	BaseNs   int64
	InsertNs int64
	UpdateNs int64
	DeleteNs int64
}

// Delay implements LatencyModel.
func (m FixedLatency) Delay(cmd domain.TradingCommand) int64 {
	switch cmd.(type) {
	case domain.SubmitOrder, domain.SubmitOrderList:
		return m.BaseNs + m.InsertNs
	case domain.ModifyOrder:
		return m.BaseNs + m.UpdateNs
	case domain.CancelOrder, domain.CancelAllOrders:
		return m.BaseNs + m.DeleteNs
	}
	return m.BaseNs
}

// ZeroLatency commits every command at the time it was sent.
type ZeroLatency struct{}

// Delay implements LatencyModel.
func (ZeroLatency) Delay(domain.TradingCommand) int64 { return 0 }

// FillModel injects execution uncertainty: a resting limit may miss a fill
// when the market only touches its level, a stop may slip by one tick, and
// an exhausted book may slip the residual of a market order. All draws come
// from a PRNG seeded at exchange construction so runs are reproducible.
type FillModel struct {
	ProbFillOnLimit float64
	ProbFillOnStop  float64
	ProbSlippage    float64
	rng             *rand.Rand
}

// NewFillModel validates the probabilities and seeds the model's PRNG.
func NewFillModel(probFillOnLimit, probFillOnStop, probSlippage float64, seed int64) (*FillModel, error) {
	for _, p := range []float64{probFillOnLimit, probFillOnStop, probSlippage} {
		if p < 0 || p > 1 {
			return nil, domain.Validationf("fill model probability %v outside [0, 1]", p)
		}
	}
	return &FillModel{
		ProbFillOnLimit: probFillOnLimit,
		ProbFillOnStop:  probFillOnStop,
		ProbSlippage:    probSlippage,
		rng:             rand.New(rand.NewSource(seed)),
	}, nil
}

// PerfectFill returns a model with no misses and no slippage, the default
// for deterministic scenario tests.
func PerfectFill() *FillModel {
	m, _ := NewFillModel(1, 1, 0, 0)
	return m
}

// IsLimitFilled draws whether a touched limit order fills.
func (m *FillModel) IsLimitFilled() bool { return m.draw(m.ProbFillOnLimit) }

// IsStopFilled draws whether a triggered stop fills at its trigger price.
func (m *FillModel) IsStopFilled() bool { return m.draw(m.ProbFillOnStop) }

// IsSlipped draws whether a market fill slips one tick.
func (m *FillModel) IsSlipped() bool { return m.draw(m.ProbSlippage) }

func (m *FillModel) draw(prob float64) bool {
	if prob >= 1 {
		return true
	}
	if prob <= 0 {
		return false
	}
	return m.rng.Float64() < prob
}
