package database

import (
	"context"
	"errors"

	"pinbar-signal-bot/internal/models"
)

// ErrQueueFull is reported when the async recorder has no room left
var ErrQueueFull = errors.New("store queue full")

// ErrClosed is returned by stores after Close
var ErrClosed = errors.New("store closed")

// Store is a persistence backend for signals and log entries.
// SaveSignal is idempotent by signal ID.
type Store interface {
	SaveSignal(ctx context.Context, signal *models.TradingSignal) error
	SaveLog(ctx context.Context, entry models.LogEntry) error
	RecentSignals(ctx context.Context, limit int) ([]models.TradingSignal, error)
	RecentLogs(ctx context.Context, limit int) ([]models.LogEntry, error)
	Close() error
}

// Recorder is the best-effort sink used on the analysis path. Calls never
// block on the backend and never return errors.
type Recorder interface {
	RecordSignal(signal *models.TradingSignal)
	RecordLog(level models.LogLevel, message string)
}

// Ensure all backends implement Store
var (
	_ Store    = (*PostgresStore)(nil)
	_ Store    = (*SQLiteStore)(nil)
	_ Store    = (*MemoryStore)(nil)
	_ Recorder = (*AsyncStore)(nil)
)

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return 100
	}
	return limit
}
