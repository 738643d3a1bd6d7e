package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"pinbar-signal-bot/internal/models"
)

// Default TTL for cached candle slices
const DefaultCandleTTL = 30 * time.Second

// CandleCache stores candle slices in Redis as JSON
type CandleCache struct {
	service *CacheService
	prefix  string
}

// NewCandleCache creates a candle cache on top of service
func NewCandleCache(service *CacheService, prefix string) *CandleCache {
	return &CandleCache{service: service, prefix: prefix}
}

func (c *CandleCache) key(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + ":" + key
}

// GetCandles returns cached candles. Redis errors and misses both report ok=false.
func (c *CandleCache) GetCandles(ctx context.Context, key string) ([]models.Candle, bool) {
	data, err := c.service.Get(ctx, c.key(key))
	if err != nil {
		if !errors.Is(err, ErrMiss) && !errors.Is(err, ErrUnavailable) {
			c.service.logger.Debug("Candle cache read failed", "key", key, "error", err)
		}
		return nil, false
	}

	candles, err := decodeCandles(data)
	if err != nil {
		c.service.logger.Warn("Dropping undecodable candle cache entry", "key", key, "error", err)
		_ = c.service.Delete(ctx, c.key(key))
		return nil, false
	}
	return candles, true
}

// SetCandles stores candles for ttl. Failures are logged and ignored.
func (c *CandleCache) SetCandles(ctx context.Context, key string, candles []models.Candle, ttl time.Duration) {
	data, err := encodeCandles(candles)
	if err != nil {
		return
	}
	if err := c.service.Set(ctx, c.key(key), data, ttl); err != nil && !errors.Is(err, ErrUnavailable) {
		c.service.logger.Debug("Candle cache write failed", "key", key, "error", err)
	}
}

func encodeCandles(candles []models.Candle) ([]byte, error) {
	return json.Marshal(candles)
}

func decodeCandles(data []byte) ([]models.Candle, error) {
	var candles []models.Candle
	if err := json.Unmarshal(data, &candles); err != nil {
		return nil, err
	}
	return candles, nil
}
