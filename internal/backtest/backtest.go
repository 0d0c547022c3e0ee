// Package backtest replays historical market data through a simulated
// exchange, dispatches it to strategies, and computes run metrics.
package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/google/uuid"

	"tradesim/internal/domain"
	"tradesim/internal/exchange"
	"tradesim/internal/store"
	"tradesim/internal/strategy"
)

// Config assembles a backtest run.
type Config struct {
	RunID    string
	TraderID domain.TraderID
	Venue    *exchange.SimulatedExchange

	// EquityCurrency denominates the equity curve. Defaults to the first
	// funded currency on the venue account.
	EquityCurrency domain.Currency

	// Store, when set, receives every order event and the end-of-run mass
	// status.
	Store store.ExecutionStore

	// Risk, when set, vets every order before it is queued; denials are
	// recorded as ORDER_DENIED events.
	Risk *RiskManager

	Log *slog.Logger
}

// Result holds the summary metrics produced by a backtest run.
type Result struct {
	RunID string

	StartNs int64
	EndNs   int64

	InitialEquity float64
	FinalEquity   float64

	TotalReturn  float64
	SharpeRatio  float64 // per-element returns, not annualized
	MaxDrawdown  float64
	TotalTrades  int
	WinRate      float64
	ProfitFactor float64
}

// deniedEventID derives a deterministic event ID for a risk denial: client
// order IDs are unique per trader, so no process randomness is needed.
func deniedEventID(clientOrderID domain.ClientOrderID, tsNs int64) string {
	name := fmt.Sprintf("%s-%d-denied", clientOrderID, tsNs)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

type boundStrategy struct {
	id  domain.StrategyID
	s   strategy.Strategy
	ctx *strategy.Context
}

// Runner replays a data stream through the venue and its strategies.
type Runner struct {
	cfg Config
	log *slog.Logger

	strategies []*boundStrategy
	byStrategy map[domain.StrategyID]*boundStrategy

	lastPx map[domain.InstrumentID]float64
	equity []float64

	storeErr error
}

// NewRunner creates a Runner for one venue. Strategies are added with
// AddStrategy before Run.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Venue == nil {
		return nil, &domain.ConfigurationError{Message: "venue is required"}
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	if cfg.TraderID == "" {
		cfg.TraderID = "TRADER-001"
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.EquityCurrency.Code == "" {
		balances := cfg.Venue.Account().Balances()
		if len(balances) == 0 {
			return nil, &domain.ConfigurationError{Message: "equity currency is required for an unfunded account"}
		}
		cfg.EquityCurrency = balances[0].Total.Currency
	}
	return &Runner{
		cfg:        cfg,
		log:        cfg.Log.With("run_id", cfg.RunID),
		byStrategy: make(map[domain.StrategyID]*boundStrategy),
		lastPx:     make(map[domain.InstrumentID]float64),
	}, nil
}

// AddStrategy binds a strategy to the run under the given strategy ID.
func (r *Runner) AddStrategy(id domain.StrategyID, s strategy.Strategy) error {
	if _, dup := r.byStrategy[id]; dup {
		return &domain.ConfigurationError{Message: "strategy already added: " + string(id)}
	}
	ctx := strategy.NewContext(r.cfg.TraderID, id, r.cfg.Venue, r.log)
	if r.cfg.Risk != nil {
		ctx.Risk = r.riskCheck
	}
	b := &boundStrategy{id: id, s: s, ctx: ctx}
	r.strategies = append(r.strategies, b)
	r.byStrategy[id] = b
	return nil
}

// Run replays the data through the venue in timestamp order and returns the
// run metrics. The input slice is sorted in place; elements with equal
// timestamps keep their relative order.
func (r *Runner) Run(ctx context.Context, data []domain.Data) (*Result, error) {
	if len(data) == 0 {
		return nil, &domain.ConfigurationError{Message: "no data to replay"}
	}
	sort.SliceStable(data, func(i, j int) bool {
		return data[i].DataTsEvent() < data[j].DataTsEvent()
	})

	r.cfg.Venue.OnEvent(r.handleEvent)

	for _, b := range r.strategies {
		if err := b.s.Init(b.ctx); err != nil {
			return nil, err
		}
	}

	initial := r.equityNow()
	r.equity = append(r.equity[:0], initial)

	r.log.Info("backtest starting",
		"elements", len(data),
		"strategies", len(r.strategies),
		"initial_equity", initial,
	)

	for _, d := range data {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.replay(d)
		r.equity = append(r.equity, r.equityNow())
	}

	for _, b := range r.strategies {
		if err := b.s.Stop(b.ctx); err != nil {
			r.log.Error("strategy stop failed", "strategy", string(b.id), "err", err)
		}
	}

	if r.storeErr != nil {
		return nil, r.storeErr
	}

	status := r.cfg.Venue.GenerateMassStatus()
	if r.cfg.Store != nil {
		if err := r.cfg.Store.SaveMassStatus(ctx, r.cfg.RunID, status); err != nil {
			return nil, err
		}
	}

	res := r.metrics(data[0].DataTsEvent(), data[len(data)-1].DataTsEvent(), status)
	r.log.Info("backtest complete",
		"total_return", res.TotalReturn,
		"max_drawdown", res.MaxDrawdown,
		"trades", res.TotalTrades,
		"win_rate", res.WinRate,
	)
	return res, nil
}

// replay feeds one data element to the venue, then to every strategy.
func (r *Runner) replay(d domain.Data) {
	switch v := d.(type) {
	case domain.QuoteTick:
		r.lastPx[v.InstrumentID] = (v.Bid.Float64() + v.Ask.Float64()) / 2
		r.cfg.Venue.ProcessQuoteTick(v)
		for _, b := range r.strategies {
			if err := b.s.OnQuoteTick(b.ctx, v); err != nil {
				r.log.Error("OnQuoteTick failed", "strategy", string(b.id), "err", err)
			}
		}
	case domain.TradeTick:
		r.lastPx[v.InstrumentID] = v.Price.Float64()
		r.cfg.Venue.ProcessTradeTick(v)
		for _, b := range r.strategies {
			if err := b.s.OnTradeTick(b.ctx, v); err != nil {
				r.log.Error("OnTradeTick failed", "strategy", string(b.id), "err", err)
			}
		}
	case domain.Bar:
		r.lastPx[v.Type.InstrumentID] = v.Close.Float64()
		r.cfg.Venue.ProcessBar(v)
		for _, b := range r.strategies {
			if err := b.s.OnBar(b.ctx, v); err != nil {
				r.log.Error("OnBar failed", "strategy", string(b.id), "err", err)
			}
		}
	case domain.OrderBookDelta:
		r.cfg.Venue.ProcessOrderBookDelta(v)
	case domain.OrderBookSnapshot:
		r.cfg.Venue.ProcessOrderBookSnapshot(v)
	default:
		r.log.Error("unknown data element", "instrument", d.DataInstrumentID().String())
	}
}

// handleEvent persists each order event and dispatches it to the owning
// strategy.
func (r *Runner) handleEvent(ev domain.OrderEvent) {
	if r.cfg.Store != nil {
		if err := r.cfg.Store.SaveEvent(context.Background(), r.cfg.RunID, ev); err != nil && r.storeErr == nil {
			r.storeErr = err
		}
	}
	if b, ok := r.byStrategy[ev.EventStrategyID()]; ok {
		if err := b.s.OnEvent(b.ctx, ev); err != nil {
			r.log.Error("OnEvent failed", "strategy", string(b.id), "err", err)
		}
	}
}

// riskCheck vets an order against the risk limits; denials never reach the
// venue and are recorded as ORDER_DENIED.
func (r *Runner) riskCheck(o *domain.Order) error {
	inst, ok := r.cfg.Venue.Instrument(o.InstrumentID)
	if !ok {
		return domain.ErrInstrumentNotFound
	}
	netRaw := r.cfg.Venue.Portfolio().NetRaw(o.InstrumentID, o.StrategyID)
	err := r.cfg.Risk.CheckOrder(inst, o, r.lastPx[o.InstrumentID], netRaw)
	if err == nil {
		return nil
	}

	denied := domain.OrderDenied{
		OrderEventBase: domain.OrderEventBase{
			TraderID:      o.TraderID,
			StrategyID:    o.StrategyID,
			InstrumentID:  o.InstrumentID,
			ClientOrderID: o.ClientOrderID,
			EventID:       deniedEventID(o.ClientOrderID, r.cfg.Venue.NowNs()),
			TsEvent:       r.cfg.Venue.NowNs(),
			TsInit:        r.cfg.Venue.NowNs(),
		},
		Reason: err.Error(),
	}
	if applyErr := o.Apply(denied); applyErr != nil {
		r.log.Error("denied order in unexpected status", "client_order_id", string(o.ClientOrderID), "err", applyErr)
	}
	r.handleEvent(denied)
	r.log.Warn("order denied",
		"client_order_id", string(o.ClientOrderID),
		"reason", err.Error(),
	)
	return err
}

// equityNow marks the account to market: free-and-locked cash in the equity
// currency plus the unrealized PnL of every open position quoted in it.
func (r *Runner) equityNow() float64 {
	equity := 0.0
	if b, ok := r.cfg.Venue.Account().Balance(r.cfg.EquityCurrency); ok {
		equity = b.Total.Float64()
	}
	for _, p := range r.cfg.Venue.Portfolio().All() {
		if !p.IsOpen() {
			continue
		}
		last, ok := r.lastPx[p.InstrumentID]
		if !ok {
			continue
		}
		inst, ok := r.cfg.Venue.Instrument(p.InstrumentID)
		if !ok || inst.QuoteCurrency.Code != r.cfg.EquityCurrency.Code {
			continue
		}
		equity += p.UnrealizedPnl(inst.MakePrice(last)).Float64()
	}
	return equity
}

// metrics reduces the equity curve and position outcomes to the Result.
func (r *Runner) metrics(startNs, endNs int64, status domain.ExecutionMassStatus) *Result {
	res := &Result{
		RunID:         r.cfg.RunID,
		StartNs:       startNs,
		EndNs:         endNs,
		InitialEquity: r.equity[0],
		FinalEquity:   r.equity[len(r.equity)-1],
		TotalTrades:   len(status.TradeReports),
	}

	if res.InitialEquity != 0 {
		res.TotalReturn = (res.FinalEquity - res.InitialEquity) / res.InitialEquity
	}
	res.SharpeRatio = sharpe(r.equity)
	res.MaxDrawdown = maxDrawdown(r.equity)

	wins, losses := 0, 0
	grossProfit, grossLoss := 0.0, 0.0
	for _, p := range r.cfg.Venue.Portfolio().All() {
		if p.IsOpen() {
			continue
		}
		pnl := p.RealizedPnl().Float64()
		switch {
		case pnl > 0:
			wins++
			grossProfit += pnl
		case pnl < 0:
			losses++
			grossLoss += -pnl
		}
	}
	if wins+losses > 0 {
		res.WinRate = float64(wins) / float64(wins+losses)
	}
	switch {
	case grossLoss > 0:
		res.ProfitFactor = grossProfit / grossLoss
	case grossProfit > 0:
		res.ProfitFactor = math.Inf(1)
	}
	return res
}

// sharpe is the mean-over-stddev of per-element equity returns.
func sharpe(equity []float64) float64 {
	if len(equity) < 3 {
		return 0
	}
	var returns []float64
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			continue
		}
		returns = append(returns, equity[i]/equity[i-1]-1)
	}
	if len(returns) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range returns {
		mean += v
	}
	mean /= float64(len(returns))
	variance := 0.0
	for _, v := range returns {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(returns) - 1)
	if variance == 0 {
		return 0
	}
	return mean / math.Sqrt(variance)
}

// maxDrawdown is the largest peak-to-trough fraction of the equity curve.
func maxDrawdown(equity []float64) float64 {
	peak := math.Inf(-1)
	worst := 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}
