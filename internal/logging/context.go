package logging

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	loggerKey  contextKey = "logger"
	traceIDKey contextKey = "trace_id"
)

// GenerateTraceID generates a new trace ID
func GenerateTraceID() string {
	return uuid.NewString()
}

// FromContext retrieves the logger from context
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey).(*Logger); ok {
		return l
	}
	return Default()
}

// NewContext creates a new context with the logger
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// TraceIDFromContext returns the trace ID stored by WithTraceContext, if any
func TraceIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey).(string); ok {
		return id
	}
	return ""
}

// WithTraceContext adds a trace ID to the context and returns a logger with it.
// The logger already stored in ctx (or the default) is used as the base.
func WithTraceContext(ctx context.Context) (context.Context, *Logger) {
	traceID := GenerateTraceID()
	l := FromContext(ctx).WithTraceID(traceID)
	newCtx := context.WithValue(ctx, traceIDKey, traceID)
	newCtx = context.WithValue(newCtx, loggerKey, l)
	return newCtx, l
}

// AnalysisContext creates a logger context for one (symbol, timeframe) analysis
func AnalysisContext(base *Logger, symbol, timeframe string) *Logger {
	return base.WithFields(map[string]interface{}{
		"symbol":    symbol,
		"timeframe": timeframe,
	})
}

// PatternContext creates a logger context for pattern detection
func PatternContext(base *Logger, symbol, timeframe, patternType string) *Logger {
	return base.WithFields(map[string]interface{}{
		"symbol":       symbol,
		"timeframe":    timeframe,
		"pattern_type": patternType,
	}).WithComponent("pattern")
}

// SignalContext creates a logger context for trading signals
func SignalContext(base *Logger, symbol, direction string, confidence float64) *Logger {
	return base.WithFields(map[string]interface{}{
		"symbol":     symbol,
		"direction":  direction,
		"confidence": confidence,
	}).WithComponent("signal")
}

// ExchangeContext creates a logger context for market data calls
func ExchangeContext(base *Logger, symbol, interval string, limit int) *Logger {
	return base.WithFields(map[string]interface{}{
		"symbol":   symbol,
		"interval": interval,
		"limit":    limit,
	}).WithComponent("binance")
}

// DatabaseContext creates a logger context for database operations
func DatabaseContext(base *Logger, operation, table string) *Logger {
	return base.WithFields(map[string]interface{}{
		"operation": operation,
		"table":     table,
	}).WithComponent("database")
}

// NotificationContext creates a logger context for notifications
func NotificationContext(base *Logger, provider string) *Logger {
	return base.WithFields(map[string]interface{}{
		"provider": provider,
	}).WithComponent("notification")
}
