package binance

import (
	"context"

	"pinbar-signal-bot/internal/circuit"
	"pinbar-signal-bot/internal/models"
)

// GuardedProvider fails fast while the exchange breaker is open
type GuardedProvider struct {
	inner   MarketDataProvider
	breaker *circuit.CircuitBreaker
}

// NewGuardedProvider wraps inner with breaker
func NewGuardedProvider(inner MarketDataProvider, breaker *circuit.CircuitBreaker) *GuardedProvider {
	return &GuardedProvider{inner: inner, breaker: breaker}
}

// GetCandles implements MarketDataProvider
func (p *GuardedProvider) GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	var candles []models.Candle
	err := p.breaker.Execute(func() error {
		var err error
		candles, err = p.inner.GetCandles(ctx, symbol, timeframe, limit)
		return err
	})
	return candles, err
}
