package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tradesim/internal/domain"
)

var testInstrument = domain.NewInstrumentID("AAPL", "XNAS")

func testBarType() domain.BarType {
	return domain.BarType{InstrumentID: testInstrument, Spec: "1-DAY"}
}

func mustBar(t *testing.T, closePx float64, ts time.Time) domain.Bar {
	t.Helper()
	b, err := domain.NewBar(testBarType(),
		domain.NewPrice(closePx-1, 2),
		domain.NewPrice(closePx+1, 2),
		domain.NewPrice(closePx-2, 2),
		domain.NewPrice(closePx, 2),
		domain.NewQty(1000, 0),
		ts.UnixNano(), ts.UnixNano())
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestParquetCatalogPaths(t *testing.T) {
	c := NewParquetCatalog("/data")

	bp := c.barPath(testBarType(), 2024)
	want := filepath.Join("/data", "XNAS", "AAPL", "bars-1-day", "2024.parquet")
	if bp != want {
		t.Errorf("barPath mismatch:\n  got  %s\n  want %s", bp, want)
	}

	tp := c.tickPath(testInstrument, "trades", "2024-06-15")
	want = filepath.Join("/data", "XNAS", "AAPL", "trades", "2024-06-15.parquet")
	if tp != want {
		t.Errorf("tickPath mismatch:\n  got  %s\n  want %s", tp, want)
	}
}

func TestParquetCatalogBarsRoundTrip(t *testing.T) {
	c := NewParquetCatalog(t.TempDir())
	ctx := context.Background()

	bars := []domain.Bar{
		mustBar(t, 100.50, time.Date(2024, 1, 2, 21, 0, 0, 0, time.UTC)),
		mustBar(t, 101.25, time.Date(2024, 1, 3, 21, 0, 0, 0, time.UTC)),
		mustBar(t, 99.75, time.Date(2024, 1, 4, 21, 0, 0, 0, time.UTC)),
	}
	if err := c.WriteBars(ctx, testBarType(), bars); err != nil {
		t.Fatal(err)
	}

	got, err := c.ReadBars(ctx, testBarType(),
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(bars) {
		t.Fatalf("read %d bars, want %d", len(got), len(bars))
	}
	for i := range bars {
		// Fixed-point raws round-trip exactly.
		if got[i].Close.Raw != bars[i].Close.Raw || got[i].Close.Precision != bars[i].Close.Precision {
			t.Errorf("bar %d close = %s, want %s", i, got[i].Close, bars[i].Close)
		}
		if got[i].TsEvent != bars[i].TsEvent {
			t.Errorf("bar %d ts_event = %d, want %d", i, got[i].TsEvent, bars[i].TsEvent)
		}
	}

	// Range filter excludes out-of-window bars.
	got, err = c.ReadBars(ctx, testBarType(),
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 3, 23, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("range read returned %d bars, want 1", len(got))
	}
}

func TestParquetCatalogBarsMergeDedup(t *testing.T) {
	c := NewParquetCatalog(t.TempDir())
	ctx := context.Background()

	ts := time.Date(2024, 1, 2, 21, 0, 0, 0, time.UTC)
	first := mustBar(t, 100.00, ts)
	if err := c.WriteBars(ctx, testBarType(), []domain.Bar{first}); err != nil {
		t.Fatal(err)
	}

	// Rewriting the same timestamp replaces the earlier record.
	corrected := mustBar(t, 100.10, ts)
	later := mustBar(t, 101.00, ts.AddDate(0, 0, 1))
	if err := c.WriteBars(ctx, testBarType(), []domain.Bar{corrected, later}); err != nil {
		t.Fatal(err)
	}

	got, err := c.ReadBars(ctx, testBarType(), ts.AddDate(0, 0, -1), ts.AddDate(0, 0, 2))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("read %d bars after merge, want 2", len(got))
	}
	if got[0].Close.Raw != corrected.Close.Raw {
		t.Errorf("merged close = %s, want corrected %s", got[0].Close, corrected.Close)
	}
}

func TestParquetCatalogTradeTicksRoundTrip(t *testing.T) {
	c := NewParquetCatalog(t.TempDir())
	ctx := context.Background()

	ts := time.Date(2024, 6, 3, 14, 30, 0, 0, time.UTC)
	mk := func(px float64, id string, offset time.Duration) domain.TradeTick {
		tick, err := domain.NewTradeTick(testInstrument,
			domain.NewPrice(px, 2), domain.NewQty(100, 0),
			domain.AggressorSideBuyer, domain.TradeID(id),
			ts.Add(offset).UnixNano(), ts.Add(offset).UnixNano())
		if err != nil {
			t.Fatal(err)
		}
		return tick
	}
	trades := []domain.TradeTick{
		mk(100.01, "T-1", 0),
		mk(100.02, "T-2", time.Second),
	}
	if err := c.WriteTradeTicks(ctx, testInstrument, trades); err != nil {
		t.Fatal(err)
	}

	// Duplicate trade ID is dropped on merge.
	if err := c.WriteTradeTicks(ctx, testInstrument, []domain.TradeTick{mk(100.01, "T-1", 0)}); err != nil {
		t.Fatal(err)
	}

	got, err := c.ReadTradeTicks(ctx, testInstrument, ts.Add(-time.Hour), ts.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("read %d trades, want 2", len(got))
	}
	if got[0].TradeID != "T-1" || got[1].TradeID != "T-2" {
		t.Errorf("trade order: got %s, %s", got[0].TradeID, got[1].TradeID)
	}
	if got[0].Price.Raw != trades[0].Price.Raw {
		t.Errorf("trade price = %s, want %s", got[0].Price, trades[0].Price)
	}
}

func TestParquetCatalogQuoteTicksRoundTrip(t *testing.T) {
	c := NewParquetCatalog(t.TempDir())
	ctx := context.Background()

	ts := time.Date(2024, 6, 3, 14, 30, 0, 0, time.UTC)
	q, err := domain.NewQuoteTick(testInstrument,
		domain.NewPrice(100.00, 2), domain.NewPrice(100.02, 2),
		domain.NewQty(300, 0), domain.NewQty(500, 0),
		ts.UnixNano(), ts.UnixNano())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.WriteQuoteTicks(ctx, testInstrument, []domain.QuoteTick{q}); err != nil {
		t.Fatal(err)
	}

	got, err := c.ReadQuoteTicks(ctx, testInstrument, ts.Add(-time.Hour), ts.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("read %d quotes, want 1", len(got))
	}
	if got[0].Bid.Raw != q.Bid.Raw || got[0].Ask.Raw != q.Ask.Raw {
		t.Errorf("quote = %s/%s, want %s/%s", got[0].Bid, got[0].Ask, q.Bid, q.Ask)
	}
}

func TestParquetCatalogListInstruments(t *testing.T) {
	c := NewParquetCatalog(t.TempDir())
	ctx := context.Background()

	ts := time.Date(2024, 1, 2, 21, 0, 0, 0, time.UTC)
	if err := c.WriteBars(ctx, testBarType(), []domain.Bar{mustBar(t, 100, ts)}); err != nil {
		t.Fatal(err)
	}

	ids, err := c.ListInstruments(ctx, "XNAS")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != testInstrument {
		t.Errorf("ListInstruments = %v, want [%s]", ids, testInstrument)
	}

	ids, err = c.ListInstruments(ctx, "UNKNOWN")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Errorf("unknown venue returned %v", ids)
	}
}
