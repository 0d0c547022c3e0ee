package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradesim/internal/config"
	"tradesim/internal/domain"
	"tradesim/internal/gather"
	"tradesim/internal/store"
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

	start, err := time.Parse("2006-01-02", cfg.Gather.StartDate)
	if err != nil {
		log.Fatalf("parsing gather.start_date: %v", err)
	}
	end := time.Now().UTC().Truncate(24 * time.Hour)
	if cfg.Gather.EndDate != "" {
		if end, err = time.Parse("2006-01-02", cfg.Gather.EndDate); err != nil {
			log.Fatalf("parsing gather.end_date: %v", err)
		}
	}
	if len(cfg.Gather.Symbols) == 0 {
		log.Fatal("gather.symbols is empty")
	}

	acfg := gather.AlpacaConfig{
		APIKey:          cfg.Alpaca.APIKey,
		APISecret:       cfg.Alpaca.APISecret,
		DataURL:         cfg.Alpaca.DataURL,
		Venue:           domain.Venue(cfg.Venue.Name),
		Symbols:         cfg.Gather.Symbols,
		Range:           gather.DateRange{Start: start, End: end},
		PricePrecision:  2,
		SizePrecision:   0,
		RateLimitPerMin: cfg.Gather.RateLimitPerMin,
	}

	catalog := store.NewParquetCatalog(cfg.Storage.DataDir)

	spec := cfg.Gather.BarSpec
	if spec == "" {
		spec = "1-DAY"
	}

	gatherers := []gather.Gatherer{
		gather.NewBarGatherer(acfg, catalog, cfg.Storage.DataDir, spec),
	}
	if cfg.Gather.IncludeTrades {
		gatherers = append(gatherers, gather.NewTradeGatherer(acfg, catalog, cfg.Storage.DataDir))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	for _, g := range gatherers {
		logger.Info("starting gatherer", "name", g.Name())
		if err := g.Run(ctx); err != nil {
			log.Fatalf("gatherer %s: %v", g.Name(), err)
		}
	}
}
