package binance

import (
	"context"
	"errors"
	"fmt"

	"pinbar-signal-bot/internal/models"
)

// ErrRetriesExhausted marks a fetch that failed on every attempt
var ErrRetriesExhausted = errors.New("market data retries exhausted")

// MarketDataProvider returns OHLCV candles, oldest first. Implementations
// must be safe for concurrent use.
type MarketDataProvider interface {
	GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error)
}

// FetchError describes a failed candle fetch
type FetchError struct {
	Symbol    string
	Timeframe string
	Attempts  int
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s %s failed after %d attempt(s): %v", e.Symbol, e.Timeframe, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() []error {
	return []error{ErrRetriesExhausted, e.Err}
}

// Ensure providers implement MarketDataProvider
var (
	_ MarketDataProvider = (*FuturesClient)(nil)
	_ MarketDataProvider = (*MockClient)(nil)
	_ MarketDataProvider = (*CachedProvider)(nil)
	_ MarketDataProvider = (*GuardedProvider)(nil)
)
