package binance

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"sync"
	"time"

	"pinbar-signal-bot/internal/models"
)

// MockClient provides simulated market data for development/testing
type MockClient struct {
	prices map[string]float64
	now    func() time.Time
	mu     sync.RWMutex
}

// NewMockClient creates a new mock client
func NewMockClient() *MockClient {
	return &MockClient{
		now: time.Now,
		prices: map[string]float64{
			"BTCUSDT":  104500.00,
			"ETHUSDT":  3900.00,
			"BNBUSDT":  710.00,
			"SOLUSDT":  220.00,
			"XRPUSDT":  2.35,
			"ADAUSDT":  1.05,
			"DOGEUSDT": 0.40,
			"LINKUSDT": 28.00,
		},
	}
}

// GetCandles returns a deterministic random walk for the symbol, timeframe and
// current candle slot. Roughly one candle in fifteen is shaped as a pin bar.
func (mc *MockClient) GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sym := NormalizeSymbol(symbol)
	interval, err := NormalizeInterval(timeframe)
	if err != nil {
		return nil, err
	}
	intervalDuration, _ := IntervalDuration(interval)

	mc.mu.RLock()
	basePrice, ok := mc.prices[sym]
	mc.mu.RUnlock()
	if !ok {
		basePrice = 100.0
	}

	lastOpen := mc.now().UTC().Truncate(intervalDuration)
	rng := rand.New(rand.NewSource(seedFor(sym, interval, lastOpen)))

	candles := make([]models.Candle, limit)
	currentPrice := basePrice
	volatility := 0.01
	for i := 0; i < limit; i++ {
		openTime := lastOpen.Add(-time.Duration(limit-1-i) * intervalDuration)

		open := currentPrice
		change := (rng.Float64() - 0.5) * volatility * 2
		close := open * (1 + change)
		high := math.Max(open, close) * (1 + rng.Float64()*volatility*0.5)
		low := math.Min(open, close) * (1 - rng.Float64()*volatility*0.5)

		if rng.Intn(15) == 0 {
			body := open * volatility * 0.1
			if rng.Intn(2) == 0 {
				close = open + body
				high = close + body*0.5
				low = open - body*4
			} else {
				close = open - body
				low = close - body*0.5
				high = open + body*4
			}
		}

		candles[i] = models.Candle{
			Timestamp: openTime,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    1000 + rng.Float64()*5000,
		}
		currentPrice = close
	}

	return candles, nil
}

func seedFor(symbol, interval string, slot time.Time) int64 {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	h.Write([]byte(interval))
	return int64(h.Sum64()>>1) ^ slot.Unix()
}
