package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"etrade-trader/internal/models"
)

// SQLiteStore caches historical candles and records per-cycle summaries.
// Unlike the StateStore files it holds no trading state the engine depends
// on for correctness; losing it only costs a refetch of history.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed initializes) the cache database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS candles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, timestamp)
	);
	CREATE INDEX IF NOT EXISTS idx_candles_symbol ON candles(symbol, timestamp);

	CREATE TABLE IF NOT EXISTS cycles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cycle INTEGER NOT NULL,
		started_at DATETIME NOT NULL,
		duration_ms INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		skip_reason TEXT,
		symbols_scored INTEGER NOT NULL,
		signals INTEGER NOT NULL,
		executed INTEGER NOT NULL,
		rejected INTEGER NOT NULL,
		cash REAL NOT NULL,
		total_value REAL NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveCandles upserts daily candles for a symbol.
func (s *SQLiteStore) SaveCandles(ctx context.Context, symbol string, candles []models.Candle) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candles (symbol, timestamp, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, timestamp) DO UPDATE SET
			open=excluded.open, high=excluded.high, low=excluded.low,
			close=excluded.close, volume=excluded.volume`)
	if err != nil {
		return fmt.Errorf("prepare candle upsert: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, symbol, c.Timestamp.UTC(), c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			return fmt.Errorf("upsert candle %s: %w", symbol, err)
		}
	}
	return tx.Commit()
}

// GetCandles returns cached candles for a symbol in chronological order.
func (s *SQLiteStore) GetCandles(ctx context.Context, symbol string, from time.Time) ([]models.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, volume
		FROM candles WHERE symbol = ? AND timestamp >= ?
		ORDER BY timestamp ASC`, symbol, from.UTC())
	if err != nil {
		return nil, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()

	var candles []models.Candle
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

// CandleFreshness returns the newest cached candle timestamp for a symbol,
// or the zero time when nothing is cached.
func (s *SQLiteStore) CandleFreshness(ctx context.Context, symbol string) (time.Time, error) {
	var ts sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(timestamp) FROM candles WHERE symbol = ?`, symbol).Scan(&ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("query freshness: %w", err)
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return ts.Time, nil
}

// RecordCycle appends one cycle summary to the audit history.
func (s *SQLiteStore) RecordCycle(ctx context.Context, summary *models.CycleSummary) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cycles (cycle, started_at, duration_ms, skipped, skip_reason,
			symbols_scored, signals, executed, rejected, cash, total_value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.Cycle, summary.StartedAt.UTC(), summary.Duration.Milliseconds(),
		boolToInt(summary.Skipped), summary.SkipReason, summary.SymbolsScored,
		summary.Signals, summary.Executed, summary.Rejected, summary.Cash, summary.TotalValue)
	if err != nil {
		return fmt.Errorf("record cycle: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
