package binance

import (
	"context"
	"errors"
	"testing"
	"time"

	"pinbar-signal-bot/internal/circuit"
	"pinbar-signal-bot/internal/models"
)

type countingProvider struct {
	calls int
	err   error
}

func (p *countingProvider) GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return []models.Candle{{Open: 1, High: 2, Low: 0.5, Close: 1.5}}, nil
}

func TestMockClientIsDeterministicAndValid(t *testing.T) {
	mc := NewMockClient()
	fixed := time.Date(2024, 5, 1, 12, 7, 0, 0, time.UTC)
	mc.now = func() time.Time { return fixed }

	a, err := mc.GetCandles(context.Background(), "BTC/USDT", "15m", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := mc.GetCandles(context.Background(), "BTCUSDT", "15m", 100)

	if len(a) != 100 {
		t.Fatalf("expected 100 candles, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("candle %d differs between calls", i)
		}
		c := a[i]
		if c.High < c.Open || c.High < c.Close || c.Low > c.Open || c.Low > c.Close {
			t.Fatalf("candle %d has invalid geometry %+v", i, c)
		}
		if i > 0 && !a[i].Timestamp.After(a[i-1].Timestamp) {
			t.Fatalf("candles not oldest-first at %d", i)
		}
	}
	if !a[99].Timestamp.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("last candle should open at the current slot, got %v", a[99].Timestamp)
	}
}

func TestCachedProvider(t *testing.T) {
	inner := &countingProvider{}
	cache := NewMarketDataCache()
	p := NewCachedProvider(inner, cache, time.Minute)

	for i := 0; i < 3; i++ {
		if _, err := p.GetCandles(context.Background(), "BTC/USDT", "4h", 200); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", inner.calls)
	}

	if _, err := p.GetCandles(context.Background(), "BTCUSDT", "4h", 100); err != nil {
		t.Fatal(err)
	}
	if inner.calls != 2 {
		t.Errorf("different limit should miss, got %d calls", inner.calls)
	}
}

func TestMarketDataCacheExpiry(t *testing.T) {
	cache := NewMarketDataCache()
	now := time.Now()
	cache.now = func() time.Time { return now }

	cache.SetCandles(context.Background(), "k", []models.Candle{{Close: 1}}, time.Second)
	if _, ok := cache.GetCandles(context.Background(), "k"); !ok {
		t.Fatal("expected hit before expiry")
	}
	now = now.Add(2 * time.Second)
	if _, ok := cache.GetCandles(context.Background(), "k"); ok {
		t.Error("expected miss after expiry")
	}
}

func TestCachedProviderDoesNotCacheErrors(t *testing.T) {
	inner := &countingProvider{err: errors.New("down")}
	p := NewCachedProvider(inner, NewMarketDataCache(), time.Minute)

	p.GetCandles(context.Background(), "BTCUSDT", "1h", 10)
	p.GetCandles(context.Background(), "BTCUSDT", "1h", 10)
	if inner.calls != 2 {
		t.Errorf("errors must not be cached, calls=%d", inner.calls)
	}
}

func TestGuardedProviderOpensBreaker(t *testing.T) {
	inner := &countingProvider{err: errors.New("down")}
	breaker := circuit.NewCircuitBreaker("binance", &circuit.CircuitBreakerConfig{
		Enabled:                true,
		MaxConsecutiveFailures: 2,
		Cooldown:               time.Hour,
	})
	p := NewGuardedProvider(inner, breaker)

	p.GetCandles(context.Background(), "BTCUSDT", "1h", 10)
	p.GetCandles(context.Background(), "BTCUSDT", "1h", 10)
	_, err := p.GetCandles(context.Background(), "BTCUSDT", "1h", 10)

	if !errors.Is(err, circuit.ErrOpen) {
		t.Fatalf("expected circuit.ErrOpen, got %v", err)
	}
	if inner.calls != 2 {
		t.Errorf("open breaker should not reach upstream, calls=%d", inner.calls)
	}
}
