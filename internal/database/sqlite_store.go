package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"pinbar-signal-bot/internal/models"
)

const sqliteTimeLayout = time.RFC3339Nano

// SQLiteStore persists signals and logs in a local SQLite file
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (and creates if needed) the database at path
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS signals (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			signal_id TEXT NOT NULL UNIQUE,
			timestamp TEXT NOT NULL,
			symbol TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			signal_type TEXT NOT NULL,
			pattern TEXT NOT NULL DEFAULT '',
			entry_price REAL NOT NULL,
			stop_loss REAL NOT NULL,
			take_profit REAL NOT NULL,
			position_size REAL NOT NULL,
			leverage INTEGER NOT NULL,
			confidence REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_timestamp ON signals(timestamp)`,
		`CREATE TABLE IF NOT EXISTS logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			level TEXT NOT NULL,
			message TEXT NOT NULL
		)`,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create sqlite tables: %w", err)
		}
	}
	return nil
}

// SaveSignal inserts a signal, ignoring duplicates by ID
func (s *SQLiteStore) SaveSignal(ctx context.Context, sig *models.TradingSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO signals (signal_id, timestamp, symbol, timeframe, signal_type, pattern,
		                               entry_price, stop_loss, take_profit, position_size, leverage, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sig.ID, sig.Timestamp.UTC().Format(sqliteTimeLayout), sig.Symbol, sig.Timeframe,
		string(sig.Direction), sig.Pattern, sig.EntryPrice, sig.StopLoss, sig.TakeProfit,
		sig.PositionSize, sig.Leverage, sig.Confidence,
	)
	if err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

// SaveLog inserts a log entry
func (s *SQLiteStore) SaveLog(ctx context.Context, entry models.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO logs (timestamp, level, message) VALUES (?, ?, ?)`,
		entry.Timestamp.UTC().Format(sqliteTimeLayout), string(entry.Level), entry.Message,
	)
	if err != nil {
		return fmt.Errorf("insert log: %w", err)
	}
	return nil
}

// RecentSignals returns the newest signals first
func (s *SQLiteStore) RecentSignals(ctx context.Context, limit int) ([]models.TradingSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT signal_id, timestamp, symbol, timeframe, signal_type, pattern,
		       entry_price, stop_loss, take_profit, position_size, leverage, confidence
		FROM signals
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var signals []models.TradingSignal
	for rows.Next() {
		var sig models.TradingSignal
		var ts, direction string
		if err := rows.Scan(
			&sig.ID, &ts, &sig.Symbol, &sig.Timeframe, &direction, &sig.Pattern,
			&sig.EntryPrice, &sig.StopLoss, &sig.TakeProfit, &sig.PositionSize, &sig.Leverage, &sig.Confidence,
		); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		if sig.Timestamp, err = time.Parse(sqliteTimeLayout, ts); err != nil {
			return nil, fmt.Errorf("parse signal timestamp %q: %w", ts, err)
		}
		sig.Direction = models.Direction(direction)
		signals = append(signals, sig)
	}
	return signals, rows.Err()
}

// RecentLogs returns the newest log entries first
func (s *SQLiteStore) RecentLogs(ctx context.Context, limit int) ([]models.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT timestamp, level, message FROM logs ORDER BY timestamp DESC, id DESC LIMIT ?`,
		normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query logs: %w", err)
	}
	defer rows.Close()

	var entries []models.LogEntry
	for rows.Next() {
		var e models.LogEntry
		var ts, level string
		if err := rows.Scan(&ts, &level, &e.Message); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		if e.Timestamp, err = time.Parse(sqliteTimeLayout, ts); err != nil {
			return nil, fmt.Errorf("parse log timestamp %q: %w", ts, err)
		}
		e.Level = models.LogLevel(level)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
