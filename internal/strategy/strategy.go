package strategy

import (
	"context"

	"pinbar-signal-bot/internal/models"
)

// Strategy defines the interface for signal strategies
type Strategy interface {
	// Name returns the strategy name
	Name() string

	// Analyze scans one (symbol, timeframe) and returns the best signal, or
	// nil when there is none. Failures are absorbed and logged.
	Analyze(ctx context.Context, symbol, timeframe string) *models.TradingSignal
}

// DetailedAnalyzer is the error-returning form used by the scheduler so that
// per-symbol failures can be reported.
type DetailedAnalyzer interface {
	AnalyzeDetailed(ctx context.Context, symbol, timeframe string) (*models.TradingSignal, error)
}

var (
	_ Strategy         = (*PinBarStrategy)(nil)
	_ DetailedAnalyzer = (*PinBarStrategy)(nil)
)
