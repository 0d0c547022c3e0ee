package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tradesim/internal/backtest"
	"tradesim/internal/config"
	"tradesim/internal/domain"
	"tradesim/internal/exchange"
	"tradesim/internal/store"
	"tradesim/internal/strategy"
	"tradesim/internal/strategy/builtins"
	"tradesim/internal/util"
)

func main() {
	cfgPath := "config/tradesim.yaml"
	if p := os.Getenv("TRADESIM_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level)
	util.SetDefault(logger)

	currencies := domain.NewCurrencyRegistry()

	venue, err := buildVenue(cfg, currencies)
	if err != nil {
		log.Fatalf("building venue: %v", err)
	}

	registry := strategy.NewRegistry()
	registry.Register("sma-cross", builtins.FromParams)

	factory, ok := registry.Get(cfg.Backtest.Strategy)
	if !ok {
		log.Fatalf("unknown strategy %q (available: %v)", cfg.Backtest.Strategy, registry.List())
	}
	strat, err := factory(cfg.Backtest.Params)
	if err != nil {
		log.Fatalf("building strategy: %v", err)
	}

	execStore, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("opening execution store: %v", err)
	}
	defer execStore.Close()

	runner, err := backtest.NewRunner(backtest.Config{
		RunID:    cfg.Backtest.RunID,
		TraderID: domain.TraderID(cfg.Backtest.TraderID),
		Venue:    venue,
		Store:    execStore,
		Log:      logger,
	})
	if err != nil {
		log.Fatalf("building runner: %v", err)
	}
	strategyID := domain.StrategyID(strat.Name() + "-001")
	if err := runner.AddStrategy(strategyID, strat); err != nil {
		log.Fatalf("adding strategy: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	data, err := loadData(ctx, cfg, venue)
	if err != nil {
		log.Fatalf("loading data: %v", err)
	}

	result, err := runner.Run(ctx, data)
	if err != nil {
		log.Fatalf("backtest failed: %v", err)
	}

	fmt.Printf("run:            %s\n", result.RunID)
	fmt.Printf("initial equity: %.2f\n", result.InitialEquity)
	fmt.Printf("final equity:   %.2f\n", result.FinalEquity)
	fmt.Printf("total return:   %.2f%%\n", result.TotalReturn*100)
	fmt.Printf("max drawdown:   %.2f%%\n", result.MaxDrawdown*100)
	fmt.Printf("trades:         %d\n", result.TotalTrades)
	fmt.Printf("win rate:       %.2f%%\n", result.WinRate*100)
	fmt.Printf("profit factor:  %.2f\n", result.ProfitFactor)
}

// buildVenue assembles the simulated exchange from the venue configuration.
func buildVenue(cfg *config.Config, currencies *domain.CurrencyRegistry) (*exchange.SimulatedExchange, error) {
	vc := cfg.Venue
	if vc.Name == "" {
		return nil, fmt.Errorf("venue.name is required")
	}

	var balances []domain.Money
	for _, s := range vc.StartingBalances {
		m, err := parseMoney(s, currencies)
		if err != nil {
			return nil, fmt.Errorf("bad starting balance %q: %w", s, err)
		}
		balances = append(balances, m)
	}

	xcfg := exchange.Config{
		Venue:                   domain.Venue(vc.Name),
		OmsType:                 domain.OmsType(vc.OmsType),
		AccountType:             domain.AccountType(vc.AccountType),
		BookType:                domain.BookType(vc.BookType),
		StartingBalances:        balances,
		DefaultLeverage:         vc.DefaultLeverage,
		RejectStopOrders:        vc.RejectStopOrders,
		SupportContingentOrders: vc.SupportContingentOrders,
		FrozenAccount:           vc.FrozenAccount,
		Seed:                    vc.Seed,
	}
	if l := vc.Latency; l.BaseNs > 0 || l.InsertNs > 0 || l.UpdateNs > 0 || l.DeleteNs > 0 {
		xcfg.Latency = &exchange.FixedLatency{
			BaseNs:   l.BaseNs,
			InsertNs: l.InsertNs,
			UpdateNs: l.UpdateNs,
			DeleteNs: l.DeleteNs,
		}
	}
	if fm := vc.FillModel; fm.ProbFillOnLimit > 0 || fm.ProbFillOnStop > 0 || fm.ProbSlippage > 0 {
		model, err := exchange.NewFillModel(fm.ProbFillOnLimit, fm.ProbFillOnStop, fm.ProbSlippage, vc.Seed)
		if err != nil {
			return nil, err
		}
		xcfg.FillModel = model
	}

	venue, err := exchange.New(xcfg)
	if err != nil {
		return nil, err
	}

	for _, ic := range vc.Instruments {
		inst, err := buildInstrument(ic, domain.Venue(vc.Name), currencies)
		if err != nil {
			return nil, fmt.Errorf("instrument %s: %w", ic.Symbol, err)
		}
		if err := venue.AddInstrument(inst); err != nil {
			return nil, err
		}
	}
	return venue, nil
}

func buildInstrument(ic config.Instrument, venue domain.Venue, currencies *domain.CurrencyRegistry) (*domain.Instrument, error) {
	priceIncrement, err := domain.PriceFromStr(ic.PriceIncrement)
	if err != nil {
		return nil, fmt.Errorf("price_increment: %w", err)
	}
	sizeIncrement, err := domain.QtyFromStr(ic.SizeIncrement)
	if err != nil {
		return nil, fmt.Errorf("size_increment: %w", err)
	}
	inst := &domain.Instrument{
		ID:             domain.NewInstrumentID(domain.Symbol(ic.Symbol), venue),
		BaseCurrency:   currencies.Get(ic.BaseCurrency),
		QuoteCurrency:  currencies.Get(ic.QuoteCurrency),
		PricePrecision: ic.PricePrecision,
		SizePrecision:  ic.SizePrecision,
		PriceIncrement: priceIncrement,
		SizeIncrement:  sizeIncrement,
		MarginInit:     ic.MarginInit,
		MarginMaint:    ic.MarginMaint,
		MakerFee:       ic.MakerFee,
		TakerFee:       ic.TakerFee,
	}
	if ic.LotSize != "" {
		if inst.LotSize, err = domain.QtyFromStr(ic.LotSize); err != nil {
			return nil, fmt.Errorf("lot_size: %w", err)
		}
	}
	if ic.Multiplier != "" {
		if inst.Multiplier, err = domain.QtyFromStr(ic.Multiplier); err != nil {
			return nil, fmt.Errorf("multiplier: %w", err)
		}
	}
	return inst, nil
}

// loadData reads bars for every registered instrument over the backtest
// window, merged into one stream.
func loadData(ctx context.Context, cfg *config.Config, venue *exchange.SimulatedExchange) ([]domain.Data, error) {
	start, err := time.Parse(time.RFC3339, cfg.Backtest.Start)
	if err != nil {
		return nil, fmt.Errorf("parsing backtest.start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, cfg.Backtest.End)
	if err != nil {
		return nil, fmt.Errorf("parsing backtest.end: %w", err)
	}
	spec := cfg.Backtest.BarSpec
	if spec == "" {
		spec = "1-DAY"
	}

	catalog := store.NewParquetCatalog(cfg.Storage.DataDir)
	var data []domain.Data
	for _, ic := range cfg.Venue.Instruments {
		id := domain.NewInstrumentID(domain.Symbol(ic.Symbol), domain.Venue(cfg.Venue.Name))
		bars, err := catalog.ReadBars(ctx, domain.BarType{InstrumentID: id, Spec: spec}, start, end)
		if err != nil {
			return nil, fmt.Errorf("reading bars for %s: %w", id, err)
		}
		for _, b := range bars {
			data = append(data, b)
		}
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("no bars found in %s for window %s..%s", cfg.Storage.DataDir, cfg.Backtest.Start, cfg.Backtest.End)
	}
	return data, nil
}

func parseMoney(s string, currencies *domain.CurrencyRegistry) (domain.Money, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return domain.Money{}, fmt.Errorf("want \"<amount> <code>\"")
	}
	return domain.MoneyFromStr(fields[0], currencies.Get(fields[1]))
}
