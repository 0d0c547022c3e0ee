package gather

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"tradesim/internal/domain"
	"tradesim/internal/store"
	"tradesim/internal/util"
)

// ---------------------------------------------------------------------------
// Compile-time interface checks
// ---------------------------------------------------------------------------

var _ Gatherer = (*BarGatherer)(nil)
var _ Gatherer = (*TradeGatherer)(nil)

const (
	maxWorkers   = 4
	retryCount   = 3
	retryBackoff = 2 * time.Second
)

// AlpacaConfig holds what both gatherers need to reach the Alpaca
// market-data API and shape the fetched data.
type AlpacaConfig struct {
	APIKey    string
	APISecret string
	DataURL   string

	Venue   domain.Venue
	Symbols []string
	Range   DateRange

	// Precisions applied when converting float prices to fixed point.
	PricePrecision uint8
	SizePrecision  uint8

	RateLimitPerMin int
}

func (c AlpacaConfig) client() *marketdata.Client {
	opts := marketdata.ClientOpts{
		APIKey:    c.APIKey,
		APISecret: c.APISecret,
	}
	if c.DataURL != "" {
		opts.BaseURL = c.DataURL
	}
	return marketdata.NewClient(opts)
}

// ---------------------------------------------------------------------------
// BarGatherer — historical OHLCV bars from the Alpaca API.
// ---------------------------------------------------------------------------

// BarGatherer fetches historical bars for the configured symbols via the
// Alpaca market-data API and writes them to the catalog. Completed
// (symbol, range) units are tracked on disk, so reruns skip work already
// done.
type BarGatherer struct {
	cfg     AlpacaConfig
	client  *marketdata.Client
	catalog store.DataCatalog
	dataDir string
	spec    string
	limiter *util.RateLimiter
	log     *slog.Logger
}

// NewBarGatherer creates a BarGatherer writing bars of the given spec
// (e.g. "1-DAY") to the catalog rooted at dataDir.
func NewBarGatherer(cfg AlpacaConfig, catalog store.DataCatalog, dataDir, spec string) *BarGatherer {
	perMin := cfg.RateLimitPerMin
	if perMin <= 0 {
		perMin = 200
	}
	return &BarGatherer{
		cfg:     cfg,
		client:  cfg.client(),
		catalog: catalog,
		dataDir: dataDir,
		spec:    spec,
		limiter: util.NewRateLimiter(perMin),
		log:     slog.Default().With("gatherer", "alpaca-bars"),
	}
}

// Name returns the gatherer identifier.
func (g *BarGatherer) Name() string { return "alpaca-bars" }

// Run fetches bars for every configured symbol. It is resumable: symbols
// already completed for this range are skipped.
func (g *BarGatherer) Run(ctx context.Context) error {
	tracker, err := newProgressTracker(g.dataDir)
	if err != nil {
		return fmt.Errorf("creating progress tracker: %w", err)
	}
	defer tracker.Close()

	rangeTag := g.cfg.Range.Start.Format("2006-01-02") + ":" + g.cfg.Range.End.Format("2006-01-02")

	var remaining []string
	for _, sym := range g.cfg.Symbols {
		if tracker.IsDone(g.unitKey(sym, rangeTag)) {
			continue
		}
		remaining = append(remaining, strings.ToUpper(sym))
	}

	g.log.Info("starting bar fetch",
		"spec", g.spec,
		"range", rangeTag,
		"total", len(g.cfg.Symbols),
		"remaining", len(remaining),
	)
	if len(remaining) == 0 {
		return nil
	}

	symbolCh := make(chan string, len(remaining))
	for _, sym := range remaining {
		symbolCh <- sym
	}
	close(symbolCh)

	var (
		wg       sync.WaitGroup
		written  atomic.Int64
		runStart = time.Now()
	)
	workers := min(maxWorkers, len(remaining))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sym := range symbolCh {
				if ctx.Err() != nil {
					return
				}
				n, err := g.fetchSymbol(ctx, sym)
				if err != nil {
					g.log.Error("symbol fetch failed", "symbol", sym, "err", err)
					continue
				}
				written.Add(int64(n))
				if err := tracker.MarkDone(g.unitKey(sym, rangeTag)); err != nil {
					g.log.Error("marking done failed", "symbol", sym, "err", err)
				}
			}
		}()
	}
	wg.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	g.log.Info("complete",
		"bars", written.Load(),
		"elapsed", time.Since(runStart).Round(time.Second),
	)
	return nil
}

func (g *BarGatherer) unitKey(symbol, rangeTag string) string {
	return fmt.Sprintf("bars/%s.%s/%s/%s", strings.ToUpper(symbol), g.cfg.Venue, g.spec, rangeTag)
}

// fetchSymbol downloads one symbol's bars and writes them to the catalog.
func (g *BarGatherer) fetchSymbol(ctx context.Context, symbol string) (int, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	var raw []marketdata.Bar
	err := util.Retry(ctx, retryCount, retryBackoff, func() error {
		var err error
		raw, err = g.client.GetBars(symbol, marketdata.GetBarsRequest{
			TimeFrame: timeFrameFor(g.spec),
			Start:     g.cfg.Range.Start,
			End:       g.cfg.Range.End,
			Feed:      "sip",
		})
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("GetBars %s: %w", symbol, err)
	}
	if len(raw) == 0 {
		return 0, nil
	}

	barType := domain.BarType{
		InstrumentID: domain.NewInstrumentID(domain.Symbol(symbol), g.cfg.Venue),
		Spec:         g.spec,
	}
	bars := make([]domain.Bar, 0, len(raw))
	for _, ab := range raw {
		ts := ab.Timestamp.UnixNano()
		b, err := domain.NewBar(barType,
			domain.NewPrice(ab.Open, g.cfg.PricePrecision),
			domain.NewPrice(ab.High, g.cfg.PricePrecision),
			domain.NewPrice(ab.Low, g.cfg.PricePrecision),
			domain.NewPrice(ab.Close, g.cfg.PricePrecision),
			domain.NewQty(float64(ab.Volume), g.cfg.SizePrecision),
			ts, ts)
		if err != nil {
			g.log.Warn("dropping malformed bar", "symbol", symbol, "ts", ab.Timestamp, "err", err)
			continue
		}
		bars = append(bars, b)
	}
	if len(bars) == 0 {
		return 0, nil
	}
	if err := g.catalog.WriteBars(ctx, barType, bars); err != nil {
		return 0, fmt.Errorf("writing bars %s: %w", symbol, err)
	}
	return len(bars), nil
}

// timeFrameFor maps a bar spec prefix onto an Alpaca timeframe.
func timeFrameFor(spec string) marketdata.TimeFrame {
	switch {
	case strings.HasPrefix(spec, "1-MINUTE"):
		return marketdata.OneMin
	case strings.HasPrefix(spec, "1-HOUR"):
		return marketdata.OneHour
	default:
		return marketdata.OneDay
	}
}

// ---------------------------------------------------------------------------
// TradeGatherer — historical trade (tick) data from the Alpaca API.
// ---------------------------------------------------------------------------

// TradeGatherer fetches historical trade prints for the configured symbols
// via the Alpaca market-data API and writes them to the catalog.
type TradeGatherer struct {
	cfg     AlpacaConfig
	client  *marketdata.Client
	catalog store.DataCatalog
	dataDir string
	limiter *util.RateLimiter
	log     *slog.Logger
}

// NewTradeGatherer creates a TradeGatherer writing trade ticks to the
// catalog rooted at dataDir.
func NewTradeGatherer(cfg AlpacaConfig, catalog store.DataCatalog, dataDir string) *TradeGatherer {
	perMin := cfg.RateLimitPerMin
	if perMin <= 0 {
		perMin = 200
	}
	return &TradeGatherer{
		cfg:     cfg,
		client:  cfg.client(),
		catalog: catalog,
		dataDir: dataDir,
		limiter: util.NewRateLimiter(perMin),
		log:     slog.Default().With("gatherer", "alpaca-trades"),
	}
}

// Name returns the gatherer identifier.
func (g *TradeGatherer) Name() string { return "alpaca-trades" }

// Run fetches trades day by day for every configured symbol. Each
// (symbol, day) unit is tracked, so interrupted runs resume at the first
// unfetched day.
func (g *TradeGatherer) Run(ctx context.Context) error {
	tracker, err := newProgressTracker(g.dataDir)
	if err != nil {
		return fmt.Errorf("creating progress tracker: %w", err)
	}
	defer tracker.Close()

	runStart := time.Now()
	var written int64

	for _, sym := range g.cfg.Symbols {
		sym = strings.ToUpper(sym)
		for day := g.cfg.Range.Start; !day.After(g.cfg.Range.End); day = day.AddDate(0, 0, 1) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
				continue
			}
			key := fmt.Sprintf("trades/%s.%s/%s", sym, g.cfg.Venue, day.Format("2006-01-02"))
			if tracker.IsDone(key) {
				continue
			}
			n, err := g.fetchDay(ctx, sym, day)
			if err != nil {
				g.log.Error("day fetch failed", "symbol", sym, "day", day.Format("2006-01-02"), "err", err)
				continue
			}
			written += int64(n)
			if err := tracker.MarkDone(key); err != nil {
				g.log.Error("marking done failed", "key", key, "err", err)
			}
		}
	}

	g.log.Info("complete",
		"trades", written,
		"elapsed", time.Since(runStart).Round(time.Second),
	)
	return nil
}

// fetchDay downloads one (symbol, day) of trade prints.
func (g *TradeGatherer) fetchDay(ctx context.Context, symbol string, day time.Time) (int, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	var raw []marketdata.Trade
	err := util.Retry(ctx, retryCount, retryBackoff, func() error {
		var err error
		raw, err = g.client.GetTrades(symbol, marketdata.GetTradesRequest{
			Start: day,
			End:   day.AddDate(0, 0, 1),
			Feed:  "sip",
		})
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("GetTrades %s: %w", symbol, err)
	}
	if len(raw) == 0 {
		return 0, nil
	}

	instrumentID := domain.NewInstrumentID(domain.Symbol(symbol), g.cfg.Venue)
	ticks := make([]domain.TradeTick, 0, len(raw))
	for _, tr := range raw {
		ts := tr.Timestamp.UnixNano()
		tick, err := domain.NewTradeTick(instrumentID,
			domain.NewPrice(tr.Price, g.cfg.PricePrecision),
			domain.NewQty(float64(tr.Size), g.cfg.SizePrecision),
			domain.AggressorSideNone,
			domain.TradeID(fmt.Sprintf("%s-%d", tr.Exchange, tr.ID)),
			ts, ts)
		if err != nil {
			g.log.Warn("dropping malformed trade", "symbol", symbol, "ts", tr.Timestamp, "err", err)
			continue
		}
		ticks = append(ticks, tick)
	}
	if len(ticks) == 0 {
		return 0, nil
	}
	if err := g.catalog.WriteTradeTicks(ctx, instrumentID, ticks); err != nil {
		return 0, fmt.Errorf("writing trades %s: %w", symbol, err)
	}
	return len(ticks), nil
}
