package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"tradesim/internal/domain"
)

// Compile-time interface check.
var _ DataCatalog = (*ParquetCatalog)(nil)

// ParquetCatalog implements DataCatalog with Parquet files on disk. Prices
// and quantities are stored as raw fixed-point integers plus precision so
// round-trips are exact; floats never touch the catalog.
type ParquetCatalog struct {
	DataDir string
}

// NewParquetCatalog creates a catalog rooted at the data directory.
func NewParquetCatalog(dataDir string) *ParquetCatalog {
	return &ParquetCatalog{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// barRecord is the Parquet schema for bar data.
type barRecord struct {
	BarType       string `parquet:"bar_type"`
	OpenRaw       int64  `parquet:"open_raw"`
	HighRaw       int64  `parquet:"high_raw"`
	LowRaw        int64  `parquet:"low_raw"`
	CloseRaw      int64  `parquet:"close_raw"`
	PxPrecision   int32  `parquet:"px_precision"`
	VolumeRaw     int64  `parquet:"volume_raw"`
	SizePrecision int32  `parquet:"size_precision"`
	TsEvent       int64  `parquet:"ts_event"`
	TsInit        int64  `parquet:"ts_init"`
}

// quoteRecord is the Parquet schema for quote tick data.
type quoteRecord struct {
	InstrumentID  string `parquet:"instrument_id"`
	BidRaw        int64  `parquet:"bid_raw"`
	AskRaw        int64  `parquet:"ask_raw"`
	PxPrecision   int32  `parquet:"px_precision"`
	BidSizeRaw    int64  `parquet:"bid_size_raw"`
	AskSizeRaw    int64  `parquet:"ask_size_raw"`
	SizePrecision int32  `parquet:"size_precision"`
	TsEvent       int64  `parquet:"ts_event"`
	TsInit        int64  `parquet:"ts_init"`
}

// tradeRecord is the Parquet schema for trade tick data.
type tradeRecord struct {
	InstrumentID  string `parquet:"instrument_id"`
	PriceRaw      int64  `parquet:"price_raw"`
	PxPrecision   int32  `parquet:"px_precision"`
	SizeRaw       int64  `parquet:"size_raw"`
	SizePrecision int32  `parquet:"size_precision"`
	Aggressor     string `parquet:"aggressor"`
	TradeID       string `parquet:"trade_id"`
	TsEvent       int64  `parquet:"ts_event"`
	TsInit        int64  `parquet:"ts_init"`
}

// ---------------------------------------------------------------------------
// Bars
// ---------------------------------------------------------------------------

// WriteBars writes bars grouped by year under
// <DataDir>/<VENUE>/<SYMBOL>/bars-<SPEC>/<YYYY>.parquet, merging with any
// existing file and deduplicating by ts_event.
func (c *ParquetCatalog) WriteBars(_ context.Context, barType domain.BarType, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	groups := make(map[int][]barRecord)
	for _, b := range bars {
		rec := barRecord{
			BarType:       barType.String(),
			OpenRaw:       b.Open.Raw,
			HighRaw:       b.High.Raw,
			LowRaw:        b.Low.Raw,
			CloseRaw:      b.Close.Raw,
			PxPrecision:   int32(b.Open.Precision),
			VolumeRaw:     int64(b.Volume.Raw),
			SizePrecision: int32(b.Volume.Precision),
			TsEvent:       b.TsEvent,
			TsInit:        b.TsInit,
		}
		y := yearOf(b.TsEvent)
		groups[y] = append(groups[y], rec)
	}
	for year, records := range groups {
		path := c.barPath(barType, year)
		existing, _ := readParquetFile[barRecord](path)
		merged := mergeRecords(existing, records,
			func(r barRecord) int64 { return r.TsEvent },
			func(r barRecord) string { return fmt.Sprint(r.TsEvent) })
		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing bars for %s/%d: %w", barType, year, err)
		}
	}
	return nil
}

// ReadBars reads bars of the bar type within [start, end], ordered by
// ts_event.
func (c *ParquetCatalog) ReadBars(_ context.Context, barType domain.BarType, start, end time.Time) ([]domain.Bar, error) {
	var bars []domain.Bar
	startNs, endNs := start.UnixNano(), end.UnixNano()
	for year := start.Year(); year <= end.Year(); year++ {
		records, err := readParquetFile[barRecord](c.barPath(barType, year))
		if err != nil {
			continue // no file for this year
		}
		for _, r := range records {
			if r.TsEvent < startNs || r.TsEvent > endNs {
				continue
			}
			px := uint8(r.PxPrecision)
			bars = append(bars, domain.Bar{
				Type:    barType,
				Open:    domain.PriceFromRaw(r.OpenRaw, px),
				High:    domain.PriceFromRaw(r.HighRaw, px),
				Low:     domain.PriceFromRaw(r.LowRaw, px),
				Close:   domain.PriceFromRaw(r.CloseRaw, px),
				Volume:  domain.QtyFromRaw(uint64(r.VolumeRaw), uint8(r.SizePrecision)),
				TsEvent: r.TsEvent,
				TsInit:  r.TsInit,
			})
		}
	}
	return bars, nil
}

// ---------------------------------------------------------------------------
// Quote ticks
// ---------------------------------------------------------------------------

// WriteQuoteTicks writes quotes grouped by day under
// <DataDir>/<VENUE>/<SYMBOL>/quotes/<YYYY-MM-DD>.parquet.
func (c *ParquetCatalog) WriteQuoteTicks(_ context.Context, instrumentID domain.InstrumentID, quotes []domain.QuoteTick) error {
	if len(quotes) == 0 {
		return nil
	}
	groups := make(map[string][]quoteRecord)
	for _, q := range quotes {
		rec := quoteRecord{
			InstrumentID:  instrumentID.String(),
			BidRaw:        q.Bid.Raw,
			AskRaw:        q.Ask.Raw,
			PxPrecision:   int32(q.Bid.Precision),
			BidSizeRaw:    int64(q.BidSize.Raw),
			AskSizeRaw:    int64(q.AskSize.Raw),
			SizePrecision: int32(q.BidSize.Precision),
			TsEvent:       q.TsEvent,
			TsInit:        q.TsInit,
		}
		d := dateOf(q.TsEvent)
		groups[d] = append(groups[d], rec)
	}
	for date, records := range groups {
		path := c.tickPath(instrumentID, "quotes", date)
		existing, _ := readParquetFile[quoteRecord](path)
		merged := mergeRecords(existing, records,
			func(r quoteRecord) int64 { return r.TsEvent },
			func(r quoteRecord) string { return fmt.Sprint(r.TsEvent) })
		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing quotes for %s/%s: %w", instrumentID, date, err)
		}
	}
	return nil
}

// ReadQuoteTicks reads quotes for the instrument within [start, end].
func (c *ParquetCatalog) ReadQuoteTicks(_ context.Context, instrumentID domain.InstrumentID, start, end time.Time) ([]domain.QuoteTick, error) {
	var quotes []domain.QuoteTick
	startNs, endNs := start.UnixNano(), end.UnixNano()
	for d := start.UTC().Truncate(24 * time.Hour); !d.After(end); d = d.AddDate(0, 0, 1) {
		records, err := readParquetFile[quoteRecord](c.tickPath(instrumentID, "quotes", d.Format("2006-01-02")))
		if err != nil {
			continue
		}
		for _, r := range records {
			if r.TsEvent < startNs || r.TsEvent > endNs {
				continue
			}
			px := uint8(r.PxPrecision)
			sz := uint8(r.SizePrecision)
			quotes = append(quotes, domain.QuoteTick{
				InstrumentID: instrumentID,
				Bid:          domain.PriceFromRaw(r.BidRaw, px),
				Ask:          domain.PriceFromRaw(r.AskRaw, px),
				BidSize:      domain.QtyFromRaw(uint64(r.BidSizeRaw), sz),
				AskSize:      domain.QtyFromRaw(uint64(r.AskSizeRaw), sz),
				TsEvent:      r.TsEvent,
				TsInit:       r.TsInit,
			})
		}
	}
	return quotes, nil
}

// ---------------------------------------------------------------------------
// Trade ticks
// ---------------------------------------------------------------------------

// WriteTradeTicks writes trades grouped by day under
// <DataDir>/<VENUE>/<SYMBOL>/trades/<YYYY-MM-DD>.parquet, deduplicating by
// trade ID.
func (c *ParquetCatalog) WriteTradeTicks(_ context.Context, instrumentID domain.InstrumentID, trades []domain.TradeTick) error {
	if len(trades) == 0 {
		return nil
	}
	groups := make(map[string][]tradeRecord)
	for _, t := range trades {
		rec := tradeRecord{
			InstrumentID:  instrumentID.String(),
			PriceRaw:      t.Price.Raw,
			PxPrecision:   int32(t.Price.Precision),
			SizeRaw:       int64(t.Size.Raw),
			SizePrecision: int32(t.Size.Precision),
			Aggressor:     string(t.AggressorSide),
			TradeID:       string(t.TradeID),
			TsEvent:       t.TsEvent,
			TsInit:        t.TsInit,
		}
		d := dateOf(t.TsEvent)
		groups[d] = append(groups[d], rec)
	}
	for date, records := range groups {
		path := c.tickPath(instrumentID, "trades", date)
		existing, _ := readParquetFile[tradeRecord](path)
		merged := mergeRecords(existing, records,
			func(r tradeRecord) int64 { return r.TsEvent },
			func(r tradeRecord) string { return r.TradeID })
		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing trades for %s/%s: %w", instrumentID, date, err)
		}
	}
	return nil
}

// ReadTradeTicks reads trades for the instrument within [start, end].
func (c *ParquetCatalog) ReadTradeTicks(_ context.Context, instrumentID domain.InstrumentID, start, end time.Time) ([]domain.TradeTick, error) {
	var trades []domain.TradeTick
	startNs, endNs := start.UnixNano(), end.UnixNano()
	for d := start.UTC().Truncate(24 * time.Hour); !d.After(end); d = d.AddDate(0, 0, 1) {
		records, err := readParquetFile[tradeRecord](c.tickPath(instrumentID, "trades", d.Format("2006-01-02")))
		if err != nil {
			continue
		}
		for _, r := range records {
			if r.TsEvent < startNs || r.TsEvent > endNs {
				continue
			}
			trades = append(trades, domain.TradeTick{
				InstrumentID:  instrumentID,
				Price:         domain.PriceFromRaw(r.PriceRaw, uint8(r.PxPrecision)),
				Size:          domain.QtyFromRaw(uint64(r.SizeRaw), uint8(r.SizePrecision)),
				AggressorSide: domain.AggressorSide(r.Aggressor),
				TradeID:       domain.TradeID(r.TradeID),
				TsEvent:       r.TsEvent,
				TsInit:        r.TsInit,
			})
		}
	}
	return trades, nil
}

// ListInstruments lists instrument IDs with any data under the venue
// directory.
func (c *ParquetCatalog) ListInstruments(_ context.Context, venue domain.Venue) ([]domain.InstrumentID, error) {
	dir := filepath.Join(c.DataDir, string(venue))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var ids []domain.InstrumentID
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, domain.InstrumentID{
				Symbol: domain.Symbol(e.Name()),
				Venue:  venue,
			})
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Symbol < ids[j].Symbol })
	return ids, nil
}

// ---------------------------------------------------------------------------
// Path helpers
// ---------------------------------------------------------------------------

// barPath layout: <dataDir>/<VENUE>/<SYMBOL>/bars-<SPEC>/<YYYY>.parquet
func (c *ParquetCatalog) barPath(barType domain.BarType, year int) string {
	id := barType.InstrumentID
	spec := strings.ToLower(barType.Spec)
	return filepath.Join(c.DataDir, string(id.Venue), string(id.Symbol),
		"bars-"+spec, fmt.Sprintf("%d.parquet", year))
}

// tickPath layout: <dataDir>/<VENUE>/<SYMBOL>/<kind>/<YYYY-MM-DD>.parquet
func (c *ParquetCatalog) tickPath(id domain.InstrumentID, kind, date string) string {
	return filepath.Join(c.DataDir, string(id.Venue), string(id.Symbol), kind, date+".parquet")
}

func yearOf(tsNs int64) int {
	return time.Unix(0, tsNs).UTC().Year()
}

func dateOf(tsNs int64) string {
	return time.Unix(0, tsNs).UTC().Format("2006-01-02")
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	return parquet.ReadFile[T](path)
}

// mergeRecords deduplicates by key, preferring incoming records, and sorts
// by timestamp.
func mergeRecords[T any](existing, incoming []T, tsOf func(T) int64, keyOf func(T) string) []T {
	seen := make(map[string]T, len(existing)+len(incoming))
	var order []string
	for _, r := range existing {
		k := keyOf(r)
		if _, ok := seen[k]; !ok {
			order = append(order, k)
		}
		seen[k] = r
	}
	for _, r := range incoming {
		k := keyOf(r)
		if _, ok := seen[k]; !ok {
			order = append(order, k)
		}
		seen[k] = r
	}
	merged := make([]T, 0, len(seen))
	for _, k := range order {
		merged = append(merged, seen[k])
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return tsOf(merged[i]) < tsOf(merged[j])
	})
	return merged
}
