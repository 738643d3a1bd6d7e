package binance

import (
	"context"
	"fmt"
	"time"

	"pinbar-signal-bot/internal/models"
)

// CachedProvider serves repeated candle requests from a CandleCache.
// The same higher timeframe is requested once per symbol per tick for every
// scanned timeframe mapped onto it, so a short TTL removes most duplicates.
type CachedProvider struct {
	inner MarketDataProvider
	cache CandleCache
	ttl   time.Duration
}

// NewCachedProvider wraps inner with cache
func NewCachedProvider(inner MarketDataProvider, cache CandleCache, ttl time.Duration) *CachedProvider {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedProvider{inner: inner, cache: cache, ttl: ttl}
}

// CandleKey builds the cache key for a request
func CandleKey(symbol, timeframe string, limit int) string {
	interval, err := NormalizeInterval(timeframe)
	if err != nil {
		interval = timeframe
	}
	return fmt.Sprintf("candles:%s:%s:%d", NormalizeSymbol(symbol), interval, limit)
}

// GetCandles implements MarketDataProvider
func (p *CachedProvider) GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	key := CandleKey(symbol, timeframe, limit)
	if candles, ok := p.cache.GetCandles(ctx, key); ok {
		return candles, nil
	}

	candles, err := p.inner.GetCandles(ctx, symbol, timeframe, limit)
	if err != nil {
		return nil, err
	}
	p.cache.SetCandles(ctx, key, candles, p.ttl)
	return candles, nil
}
