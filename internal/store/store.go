// Package store persists market data and execution records. Market data
// lives in Parquet files on disk (one catalog per data directory);
// execution records (order events, trades, positions) live in SQLite.
package store

import (
	"context"
	"time"

	"tradesim/internal/domain"
)

// DataCatalog persists and retrieves the market data a backtest replays.
type DataCatalog interface {
	// WriteBars persists a batch of bars for one bar type.
	WriteBars(ctx context.Context, barType domain.BarType, bars []domain.Bar) error

	// ReadBars returns bars of the bar type within [start, end].
	ReadBars(ctx context.Context, barType domain.BarType, start, end time.Time) ([]domain.Bar, error)

	// WriteQuoteTicks persists a batch of quotes for one instrument.
	WriteQuoteTicks(ctx context.Context, instrumentID domain.InstrumentID, quotes []domain.QuoteTick) error

	// ReadQuoteTicks returns quotes for the instrument within [start, end].
	ReadQuoteTicks(ctx context.Context, instrumentID domain.InstrumentID, start, end time.Time) ([]domain.QuoteTick, error)

	// WriteTradeTicks persists a batch of trades for one instrument.
	WriteTradeTicks(ctx context.Context, instrumentID domain.InstrumentID, trades []domain.TradeTick) error

	// ReadTradeTicks returns trades for the instrument within [start, end].
	ReadTradeTicks(ctx context.Context, instrumentID domain.InstrumentID, start, end time.Time) ([]domain.TradeTick, error)

	// ListInstruments returns the instrument IDs with any data on a venue.
	ListInstruments(ctx context.Context, venue domain.Venue) ([]domain.InstrumentID, error)
}

// ExecutionStore persists the execution record a backtest produces.
type ExecutionStore interface {
	// SaveEvent appends one order event to the run's event log.
	SaveEvent(ctx context.Context, runID string, ev domain.OrderEvent) error

	// ListEvents returns the events recorded for one order, in append order.
	ListEvents(ctx context.Context, runID string, clientOrderID domain.ClientOrderID) ([]domain.OrderEvent, error)

	// SaveMassStatus persists the end-of-run report aggregate.
	SaveMassStatus(ctx context.Context, runID string, status domain.ExecutionMassStatus) error

	// ListTradeReports returns every fill recorded for a run.
	ListTradeReports(ctx context.Context, runID string) ([]domain.TradeReport, error)

	// ListPositionReports returns every position recorded for a run.
	ListPositionReports(ctx context.Context, runID string) ([]domain.PositionStatusReport, error)

	// Close releases the underlying storage handle.
	Close() error
}
