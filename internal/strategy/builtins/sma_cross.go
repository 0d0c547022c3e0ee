// Package builtins provides built-in strategy implementations that ship with
// the tradesim platform.
package builtins

import (
	"strconv"

	"tradesim/internal/domain"
	"tradesim/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*SMACross)(nil)

// SMACross implements a simple moving average crossover strategy. It buys
// when the short-period SMA crosses above the long-period SMA and sells when
// it crosses below, flipping the position on each crossover.
type SMACross struct {
	strategy.BaseStrategy

	shortPeriod int
	longPeriod  int
	tradeSize   float64

	closes   []float64
	lastDiff float64 // shortSMA − longSMA at the previous bar
	primed   bool
}

// NewSMACross creates a new SMACross strategy with the specified short and
// long moving average periods and per-signal trade size.
func NewSMACross(short, long int, tradeSize float64) (*SMACross, error) {
	if short <= 0 || long <= 0 {
		return nil, domain.Validationf("sma periods must be positive: short=%d long=%d", short, long)
	}
	if short >= long {
		return nil, domain.Validationf("short period %d must be below long period %d", short, long)
	}
	if tradeSize <= 0 {
		return nil, domain.Validationf("trade size must be positive: %v", tradeSize)
	}
	return &SMACross{
		shortPeriod: short,
		longPeriod:  long,
		tradeSize:   tradeSize,
	}, nil
}

// FromParams builds an SMACross from registry parameters: "short", "long",
// and "trade_size".
func FromParams(params map[string]string) (strategy.Strategy, error) {
	short, err := intParam(params, "short", 10)
	if err != nil {
		return nil, err
	}
	long, err := intParam(params, "long", 20)
	if err != nil {
		return nil, err
	}
	size := 1.0
	if v, ok := params["trade_size"]; ok {
		size, err = strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, domain.Validationf("bad trade_size %q: %v", v, err)
		}
	}
	return NewSMACross(short, long, size)
}

func intParam(params map[string]string, key string, fallback int) (int, error) {
	v, ok := params[key]
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, domain.Validationf("bad %s %q: %v", key, v, err)
	}
	return n, nil
}

// Name returns "sma-cross".
func (s *SMACross) Name() string {
	return "sma-cross"
}

// Init resets the strategy's price history.
func (s *SMACross) Init(_ *strategy.Context) error {
	s.closes = make([]float64, 0, s.longPeriod)
	s.lastDiff = 0
	s.primed = false
	return nil
}

// OnBar appends the bar close to the price history and, once both averages
// are available, trades the crossover: a sign change in shortSMA − longSMA
// flips the position via a market order.
func (s *SMACross) OnBar(ctx *strategy.Context, bar domain.Bar) error {
	s.closes = append(s.closes, bar.Close.Float64())
	if len(s.closes) > s.longPeriod {
		s.closes = s.closes[1:]
	}
	if len(s.closes) < s.longPeriod {
		return nil
	}

	diff := s.sma(s.shortPeriod) - s.sma(s.longPeriod)
	defer func() {
		s.lastDiff = diff
		s.primed = true
	}()

	if !s.primed {
		return nil
	}

	instrumentID := bar.Type.InstrumentID
	switch {
	case s.lastDiff <= 0 && diff > 0:
		return s.enter(ctx, instrumentID, domain.OrderSideBuy)
	case s.lastDiff >= 0 && diff < 0:
		return s.enter(ctx, instrumentID, domain.OrderSideSell)
	}
	return nil
}

// enter flips to the target side: it closes any opposing exposure and opens
// the new position in a single market order.
func (s *SMACross) enter(ctx *strategy.Context, id domain.InstrumentID, side domain.OrderSide) error {
	inst, ok := ctx.Instrument(id)
	if !ok {
		return domain.ErrInstrumentNotFound
	}

	qty := s.tradeSize
	net := ctx.NetPosition(id)
	netQty := domain.QtyFromRaw(uint64(abs64(net)), inst.SizePrecision).Float64()
	if (side == domain.OrderSideBuy && net < 0) || (side == domain.OrderSideSell && net > 0) {
		qty += netQty
	} else if netQty > 0 {
		// Already positioned in this direction.
		return nil
	}

	clientOrderID, err := ctx.SubmitMarket(id, side, inst.MakeQty(qty))
	if err != nil {
		return err
	}
	ctx.Log.Info("crossover entry",
		"instrument", id.String(),
		"side", string(side),
		"qty", qty,
		"client_order_id", string(clientOrderID),
	)
	return nil
}

// sma returns the mean of the last n closes.
func (s *SMACross) sma(n int) float64 {
	sum := 0.0
	for _, c := range s.closes[len(s.closes)-n:] {
		sum += c
	}
	return sum / float64(n)
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
