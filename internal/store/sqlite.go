package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"tradesim/internal/domain"
)

// Compile-time interface check.
var _ ExecutionStore = (*SQLiteStore)(nil)

// SQLiteStore implements ExecutionStore backed by a SQLite database. Events
// are stored as their typed JSON envelopes so the log round-trips exactly;
// a few columns are lifted out for indexed lookup.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS order_events (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id          TEXT NOT NULL,
	client_order_id TEXT NOT NULL,
	event_type      TEXT NOT NULL,
	ts_event        INTEGER NOT NULL,
	envelope        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_order_events_run_order
	ON order_events (run_id, client_order_id, id);

CREATE TABLE IF NOT EXISTS trade_reports (
	run_id          TEXT NOT NULL,
	trade_id        TEXT NOT NULL,
	account_id      TEXT NOT NULL,
	instrument_id   TEXT NOT NULL,
	client_order_id TEXT NOT NULL,
	venue_order_id  TEXT NOT NULL,
	position_id     TEXT,
	order_side      TEXT NOT NULL,
	last_qty        TEXT NOT NULL,
	last_px         TEXT NOT NULL,
	commission      TEXT NOT NULL,
	liquidity_side  TEXT NOT NULL,
	ts_event        INTEGER NOT NULL,
	ts_init         INTEGER NOT NULL,
	PRIMARY KEY (run_id, trade_id)
);

CREATE TABLE IF NOT EXISTS position_reports (
	run_id        TEXT NOT NULL,
	position_id   TEXT NOT NULL,
	account_id    TEXT NOT NULL,
	instrument_id TEXT NOT NULL,
	position_side TEXT NOT NULL,
	quantity      TEXT NOT NULL,
	avg_px_open   TEXT,
	realized_pnl  TEXT,
	ts_last       INTEGER NOT NULL,
	ts_init       INTEGER NOT NULL,
	PRIMARY KEY (run_id, position_id)
);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and applies
// the schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveEvent appends one order event to the run's event log.
func (s *SQLiteStore) SaveEvent(ctx context.Context, runID string, ev domain.OrderEvent) error {
	envelope, err := domain.MarshalOrderEvent(ev)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO order_events (run_id, client_order_id, event_type, ts_event, envelope)
		 VALUES (?, ?, ?, ?, ?)`,
		runID, string(ev.OrderID()), ev.EventType(), ev.EventTsEvent(), string(envelope))
	return err
}

// ListEvents returns the events recorded for one order, in append order.
func (s *SQLiteStore) ListEvents(ctx context.Context, runID string, clientOrderID domain.ClientOrderID) ([]domain.OrderEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT envelope FROM order_events
		 WHERE run_id = ? AND client_order_id = ?
		 ORDER BY id`,
		runID, string(clientOrderID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.OrderEvent
	for rows.Next() {
		var envelope string
		if err := rows.Scan(&envelope); err != nil {
			return nil, err
		}
		ev, err := domain.UnmarshalOrderEvent([]byte(envelope))
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// SaveMassStatus persists the end-of-run trade and position reports.
func (s *SQLiteStore) SaveMassStatus(ctx context.Context, runID string, status domain.ExecutionMassStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, t := range status.TradeReports {
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO trade_reports
			 (run_id, trade_id, account_id, instrument_id, client_order_id, venue_order_id,
			  position_id, order_side, last_qty, last_px, commission, liquidity_side, ts_event, ts_init)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, string(t.TradeID), string(t.AccountID), t.InstrumentID.String(),
			string(t.ClientOrderID), string(t.VenueOrderID), string(t.PositionID),
			string(t.OrderSide), t.LastQty, t.LastPx, t.Commission,
			string(t.LiquiditySide), t.TsEvent, t.TsInit)
		if err != nil {
			return err
		}
	}
	for _, p := range status.PositionReports {
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO position_reports
			 (run_id, position_id, account_id, instrument_id, position_side,
			  quantity, avg_px_open, realized_pnl, ts_last, ts_init)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, string(p.PositionID), string(p.AccountID), p.InstrumentID.String(),
			string(p.PositionSide), p.Quantity, p.AvgPxOpen, p.RealizedPnl,
			p.TsLast, p.TsInit)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListTradeReports returns every fill recorded for a run, in trade order.
func (s *SQLiteStore) ListTradeReports(ctx context.Context, runID string) ([]domain.TradeReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT trade_id, account_id, instrument_id, client_order_id, venue_order_id,
		        position_id, order_side, last_qty, last_px, commission, liquidity_side,
		        ts_event, ts_init
		 FROM trade_reports WHERE run_id = ? ORDER BY ts_event, trade_id`,
		runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []domain.TradeReport
	for rows.Next() {
		var r domain.TradeReport
		var tradeID, accountID, instrumentID, clientOrderID, venueOrderID, positionID, side, liquidity string
		if err := rows.Scan(&tradeID, &accountID, &instrumentID, &clientOrderID, &venueOrderID,
			&positionID, &side, &r.LastQty, &r.LastPx, &r.Commission, &liquidity,
			&r.TsEvent, &r.TsInit); err != nil {
			return nil, err
		}
		id, err := domain.ParseInstrumentID(instrumentID)
		if err != nil {
			return nil, err
		}
		r.TradeID = domain.TradeID(tradeID)
		r.AccountID = domain.AccountID(accountID)
		r.InstrumentID = id
		r.ClientOrderID = domain.ClientOrderID(clientOrderID)
		r.VenueOrderID = domain.VenueOrderID(venueOrderID)
		r.PositionID = domain.PositionID(positionID)
		r.OrderSide = domain.OrderSide(side)
		r.LiquiditySide = domain.LiquiditySide(liquidity)
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// ListPositionReports returns every position recorded for a run.
func (s *SQLiteStore) ListPositionReports(ctx context.Context, runID string) ([]domain.PositionStatusReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT position_id, account_id, instrument_id, position_side,
		        quantity, avg_px_open, realized_pnl, ts_last, ts_init
		 FROM position_reports WHERE run_id = ? ORDER BY position_id`,
		runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []domain.PositionStatusReport
	for rows.Next() {
		var r domain.PositionStatusReport
		var positionID, accountID, instrumentID, side string
		var avgPx, pnl sql.NullString
		if err := rows.Scan(&positionID, &accountID, &instrumentID, &side,
			&r.Quantity, &avgPx, &pnl, &r.TsLast, &r.TsInit); err != nil {
			return nil, err
		}
		id, err := domain.ParseInstrumentID(instrumentID)
		if err != nil {
			return nil, err
		}
		r.PositionID = domain.PositionID(positionID)
		r.AccountID = domain.AccountID(accountID)
		r.InstrumentID = id
		r.PositionSide = domain.PositionSide(side)
		r.AvgPxOpen = avgPx.String
		r.RealizedPnl = pnl.String
		reports = append(reports, r)
	}
	return reports, rows.Err()
}
