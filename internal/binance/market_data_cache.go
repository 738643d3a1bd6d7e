package binance

import (
	"context"
	"sync"
	"time"

	"pinbar-signal-bot/internal/models"
)

// CandleCache stores candle slices by key. Misses and backend errors both
// report ok=false so callers fall through to the exchange.
type CandleCache interface {
	GetCandles(ctx context.Context, key string) ([]models.Candle, bool)
	SetCandles(ctx context.Context, key string, candles []models.Candle, ttl time.Duration)
}

// CachedKlines holds candle data with its expiry
type CachedKlines struct {
	Data      []models.Candle
	ExpiresAt time.Time
}

// MarketDataCache is an in-process CandleCache, used when Redis is disabled
type MarketDataCache struct {
	klines sync.Map // key -> *CachedKlines
	now    func() time.Time
}

// NewMarketDataCache creates a new market data cache
func NewMarketDataCache() *MarketDataCache {
	return &MarketDataCache{now: time.Now}
}

// GetCandles returns a copy of the cached candles if they have not expired
func (c *MarketDataCache) GetCandles(_ context.Context, key string) ([]models.Candle, bool) {
	if val, ok := c.klines.Load(key); ok {
		cached := val.(*CachedKlines)
		if c.now().Before(cached.ExpiresAt) {
			return append([]models.Candle(nil), cached.Data...), true
		}
		c.klines.Delete(key)
	}
	return nil, false
}

// SetCandles stores a copy of candles for ttl
func (c *MarketDataCache) SetCandles(_ context.Context, key string, candles []models.Candle, ttl time.Duration) {
	c.klines.Store(key, &CachedKlines{
		Data:      append([]models.Candle(nil), candles...),
		ExpiresAt: c.now().Add(ttl),
	})
}
