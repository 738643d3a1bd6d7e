package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pinbar-signal-bot/internal/models"
)

// PostgresStore persists signals and logs in PostgreSQL
type PostgresStore struct {
	db *DB
}

// NewPostgresStore creates a store on an open, migrated DB
func NewPostgresStore(db *DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// HealthCheck performs a database health check
func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	return s.db.Pool.Ping(ctx)
}

// SaveSignal inserts a signal, ignoring duplicates by ID
func (s *PostgresStore) SaveSignal(ctx context.Context, sig *models.TradingSignal) error {
	query := `
		INSERT INTO signals (id, timestamp, symbol, timeframe, signal_type, pattern,
		                     entry_price, stop_loss, take_profit, position_size, leverage, confidence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.Pool.Exec(ctx, query,
		sig.ID, sig.Timestamp, sig.Symbol, sig.Timeframe, string(sig.Direction), sig.Pattern,
		sig.EntryPrice, sig.StopLoss, sig.TakeProfit, sig.PositionSize, sig.Leverage, sig.Confidence,
	)
	if err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

// SaveLog inserts a log entry
func (s *PostgresStore) SaveLog(ctx context.Context, entry models.LogEntry) error {
	_, err := s.db.Pool.Exec(ctx,
		`INSERT INTO logs (timestamp, level, message) VALUES ($1, $2, $3)`,
		entry.Timestamp, string(entry.Level), entry.Message,
	)
	if err != nil {
		return fmt.Errorf("insert log: %w", err)
	}
	return nil
}

// RecentSignals returns the newest signals first
func (s *PostgresStore) RecentSignals(ctx context.Context, limit int) ([]models.TradingSignal, error) {
	query := `
		SELECT id, timestamp, symbol, timeframe, signal_type, pattern,
		       entry_price, stop_loss, take_profit, position_size, leverage, confidence
		FROM signals
		ORDER BY timestamp DESC
		LIMIT $1
	`
	rows, err := s.db.Pool.Query(ctx, query, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}

	signals, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.TradingSignal, error) {
		var sig models.TradingSignal
		var direction string
		err := row.Scan(
			&sig.ID, &sig.Timestamp, &sig.Symbol, &sig.Timeframe, &direction, &sig.Pattern,
			&sig.EntryPrice, &sig.StopLoss, &sig.TakeProfit, &sig.PositionSize, &sig.Leverage, &sig.Confidence,
		)
		sig.Direction = models.Direction(direction)
		return sig, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan signals: %w", err)
	}
	return signals, nil
}

// RecentLogs returns the newest log entries first
func (s *PostgresStore) RecentLogs(ctx context.Context, limit int) ([]models.LogEntry, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT timestamp, level, message FROM logs ORDER BY timestamp DESC, id DESC LIMIT $1`,
		normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("query logs: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.LogEntry, error) {
		var e models.LogEntry
		var level string
		err := row.Scan(&e.Timestamp, &level, &e.Message)
		e.Level = models.LogLevel(level)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan logs: %w", err)
	}
	return entries, nil
}

// Close closes the pool
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
