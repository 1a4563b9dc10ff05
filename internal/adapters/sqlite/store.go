package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"stockSignalBot/internal/domain"
	"stockSignalBot/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Store implements the ports.SignalStore interface using SQLite.
type Store struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite signal store.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewStore creates a new SQLite signal store instance.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite store")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/signals.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite store initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000") // WAL mode for better concurrency
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite store initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite store initialization failed")
		return nil, err
	}

	// SQLite handles concurrency internally; the Go driver benefits from
	// limiting connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	store := &Store{db: db, logger: cfg.Logger}

	if err := store.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite store initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Database schema initialized/verified")

	return store, nil
}

// initializeSchema creates tables if they don't exist.
// NOTE: This is a basic approach. A proper migration tool is recommended for production.
func (s *Store) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS signals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		ts TIMESTAMP NOT NULL,
		classification TEXT NOT NULL,
		strength REAL NOT NULL,
		reasons TEXT NOT NULL DEFAULT '[]',
		close REAL NOT NULL,
		sma_short REAL NOT NULL,
		sma_long REAL NOT NULL,
		rsi REAL NOT NULL,
		macd REAL NOT NULL,
		macd_signal REAL NOT NULL,
		macd_hist REAL NOT NULL,
		volume_ratio REAL NOT NULL,
		momentum REAL NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (symbol, ts, classification)
	);

	CREATE TABLE IF NOT EXISTS analysis_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		ts TIMESTAMP NOT NULL,
		close REAL NOT NULL,
		volume REAL NOT NULL,
		sma_short REAL NOT NULL,
		sma_long REAL NOT NULL,
		rsi REAL NOT NULL,
		macd REAL NOT NULL,
		macd_signal REAL NOT NULL,
		macd_hist REAL NOT NULL,
		volume_ratio REAL NOT NULL,
		momentum REAL NOT NULL,
		bar_count INTEGER NOT NULL,
		warmed_up INTEGER NOT NULL
	);
	-- Add indexes for common lookups
	CREATE INDEX IF NOT EXISTS idx_signals_symbol_ts ON signals (symbol, ts);
	CREATE INDEX IF NOT EXISTS idx_analysis_symbol_ts ON analysis_snapshots (symbol, ts);
	`
	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		s.logger.Info(context.Background(), "Closing SQLite database connection")
		return s.db.Close()
	}
	return nil
}

// Append persists a signal. Re-appending a signal with the same
// (symbol, ts, classification) key is a silent no-op, which makes delivery
// safe to retry.
func (s *Store) Append(ctx context.Context, sig *domain.Signal) error {
	const query = `
	INSERT OR IGNORE INTO signals (run_id, symbol, ts, classification, strength, reasons,
	                               close, sma_short, sma_long, rsi, macd, macd_signal,
	                               macd_hist, volume_ratio, momentum)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	reasons, err := json.Marshal(sig.Reasons)
	if err != nil {
		return fmt.Errorf("failed to encode reasons for symbol %s: %w", sig.Symbol, err)
	}

	result, err := s.db.ExecContext(ctx, query,
		sig.RunID, sig.Symbol, sig.Timestamp.UTC(), string(sig.Classification), sig.Strength, string(reasons),
		sig.Basis.Close, sig.Basis.SMAShort, sig.Basis.SMALong, sig.Basis.RSI,
		sig.Basis.MACD, sig.Basis.MACDSignal, sig.Basis.MACDHist,
		sig.Basis.VolumeRatio, sig.Basis.Momentum)
	if err != nil {
		return fmt.Errorf("failed to insert signal for symbol %s: %w", sig.Symbol, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for signal %s: %w", sig.Symbol, err)
	}
	if rowsAffected == 0 {
		s.logger.Debug(ctx, "Duplicate signal ignored", map[string]interface{}{
			"symbol":         sig.Symbol,
			"timestamp":      sig.Timestamp,
			"classification": sig.Classification,
		})
		return nil
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID for signal %s: %w", sig.Symbol, err)
	}
	sig.ID = id // Update the domain object with the ID
	s.logger.Debug(ctx, "Signal stored", map[string]interface{}{
		"signalID":       id,
		"symbol":         sig.Symbol,
		"classification": sig.Classification,
	})
	return nil
}

const signalColumns = `
	id, run_id, symbol, ts, classification, strength, reasons,
	close, sma_short, sma_long, rsi, macd, macd_signal, macd_hist,
	volume_ratio, momentum`

// LastSignal retrieves the most recent signal emitted for a symbol, if any.
func (s *Store) LastSignal(ctx context.Context, symbol string) (*domain.Signal, error) {
	const query = `
	SELECT` + signalColumns + `
	FROM signals
	WHERE symbol = ? ORDER BY ts DESC, id DESC LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, symbol)
	sig, err := scanSignal(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Debug(ctx, "No signal history for symbol", map[string]interface{}{"symbol": symbol})
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query last signal for symbol %s: %w", symbol, err)
	}
	return sig, nil
}

// FindBySymbol retrieves the most recent signals for a given symbol, up to a limit.
func (s *Store) FindBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.Signal, error) {
	const query = `
	SELECT` + signalColumns + `
	FROM signals
	WHERE symbol = ? ORDER BY ts DESC, id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals for symbol %s: %w", symbol, err)
	}
	defer rows.Close()

	return collectSignals(rows)
}

// FindAll retrieves all signals, ordered by timestamp ascending.
func (s *Store) FindAll(ctx context.Context) ([]*domain.Signal, error) {
	const query = `
	SELECT` + signalColumns + `
	FROM signals
	ORDER BY ts ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query all signals: %w", err)
	}
	defer rows.Close()

	return collectSignals(rows)
}

// CountToday counts the number of signals stored today for a given symbol.
func (s *Store) CountToday(ctx context.Context, symbol string) (int, error) {
	const query = `SELECT COUNT(*) FROM signals WHERE symbol = ? AND date(ts) = date('now')`
	var count int
	err := s.db.QueryRowContext(ctx, query, symbol).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count signals today for symbol %s: %w", symbol, err)
	}
	return count, nil
}

// AppendAnalysis persists a periodic indicator snapshot.
func (s *Store) AppendAnalysis(ctx context.Context, runID string, snap *domain.IndicatorSnapshot) error {
	const query = `
	INSERT INTO analysis_snapshots (run_id, symbol, ts, close, volume, sma_short, sma_long,
	                                rsi, macd, macd_signal, macd_hist, volume_ratio,
	                                momentum, bar_count, warmed_up)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	warmedUp := 0
	if snap.WarmedUp {
		warmedUp = 1
	}

	_, err := s.db.ExecContext(ctx, query,
		runID, snap.Symbol, snap.Timestamp.UTC(), snap.Close, snap.Volume,
		snap.SMAShort, snap.SMALong, snap.RSI, snap.MACD, snap.MACDSignal,
		snap.MACDHist, snap.VolumeRatio, snap.Momentum, snap.BarCount, warmedUp)
	if err != nil {
		return fmt.Errorf("failed to insert analysis snapshot for symbol %s: %w", snap.Symbol, err)
	}
	return nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanSignal scans a row into a domain.Signal struct.
func scanSignal(sc scanner) (*domain.Signal, error) {
	sig := &domain.Signal{}
	var classification, reasons string
	err := sc.Scan(
		&sig.ID, &sig.RunID, &sig.Symbol, &sig.Timestamp, &classification, &sig.Strength, &reasons,
		&sig.Basis.Close, &sig.Basis.SMAShort, &sig.Basis.SMALong, &sig.Basis.RSI,
		&sig.Basis.MACD, &sig.Basis.MACDSignal, &sig.Basis.MACDHist,
		&sig.Basis.VolumeRatio, &sig.Basis.Momentum)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	sig.Classification = domain.Classification(classification)
	if reasons != "" && reasons != "null" {
		if err := json.Unmarshal([]byte(reasons), &sig.Reasons); err != nil {
			return nil, fmt.Errorf("failed to decode reasons for signal %d: %w", sig.ID, err)
		}
	}
	sig.Basis.Symbol = sig.Symbol
	sig.Basis.Timestamp = sig.Timestamp
	sig.Basis.WarmedUp = true // only warmed-up snapshots can emit
	return sig, nil
}

func collectSignals(rows *sql.Rows) ([]*domain.Signal, error) {
	signals := make([]*domain.Signal, 0)
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		signals = append(signals, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signal rows: %w", err)
	}
	return signals, nil
}
