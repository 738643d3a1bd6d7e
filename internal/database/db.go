package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"pinbar-signal-bot/internal/logging"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool   *pgxpool.Pool
	logger *logging.Logger
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
}

// DSN builds the libpq-style connection string
func (c Config) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslMode,
	)
}

// NewDB creates a new database connection
func NewDB(ctx context.Context, cfg Config, logger *logging.Logger) (*DB, error) {
	if logger == nil {
		logger = logging.Default()
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 10
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	l := logger.WithComponent("database")
	l.Info("Connected to PostgreSQL", "database", cfg.Database, "host", cfg.Host)

	return &DB{Pool: pool, logger: l}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.logger.Info("Database connection closed")
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	db.logger.Info("Running database migrations")

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS signals (
			id UUID PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL,
			symbol VARCHAR(30) NOT NULL,
			timeframe VARCHAR(10) NOT NULL,
			signal_type VARCHAR(10) NOT NULL,
			pattern VARCHAR(30) NOT NULL DEFAULT '',
			entry_price DECIMAL(20, 8) NOT NULL,
			stop_loss DECIMAL(20, 8) NOT NULL,
			take_profit DECIMAL(20, 8) NOT NULL,
			position_size DECIMAL(20, 8) NOT NULL,
			leverage INTEGER NOT NULL,
			confidence DECIMAL(10, 4) NOT NULL,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_timestamp ON signals(timestamp DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_symbol_timeframe ON signals(symbol, timeframe)`,

		`CREATE TABLE IF NOT EXISTS logs (
			id BIGSERIAL PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL,
			level VARCHAR(10) NOT NULL,
			message TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON logs(timestamp DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_logs_level ON logs(level)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}

	db.logger.Info("Database migrations completed")
	return nil
}
