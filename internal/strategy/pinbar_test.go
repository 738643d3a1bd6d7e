package strategy

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"pinbar-signal-bot/internal/logging"
	"pinbar-signal-bot/internal/models"
	"pinbar-signal-bot/internal/patterns"
	"pinbar-signal-bot/internal/risk"
)

// background returns n candles with a 50% body: never a pin bar, TR = 2
func background(n int, base float64) []models.Candle {
	out := make([]models.Candle, n)
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		out[i] = models.Candle{
			Timestamp: t0.Add(time.Duration(i) * 15 * time.Minute),
			Open:      base,
			High:      base + 1.5,
			Low:       base - 0.5,
			Close:     base + 1,
		}
	}
	return out
}

// bullishPinSeries is 99 background candles followed by a bullish pin bar
func bullishPinSeries(base float64) []models.Candle {
	candles := background(99, base)
	candles = append(candles, models.Candle{
		Timestamp: candles[98].Timestamp.Add(15 * time.Minute),
		Open:      base,
		High:      base + 1,
		Low:       base - 10,
		Close:     base + 0.5,
	})
	return candles
}

type stubProvider struct {
	mu     sync.Mutex
	series map[string][]models.Candle
	err    error
	panics bool
	calls  []string
}

func (p *stubProvider) GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	p.mu.Lock()
	p.calls = append(p.calls, timeframe)
	p.mu.Unlock()
	if p.panics {
		panic("provider exploded")
	}
	if p.err != nil {
		return nil, p.err
	}
	c := p.series[timeframe]
	if len(c) > limit {
		c = c[len(c)-limit:]
	}
	return c, nil
}

type fakeRecorder struct {
	mu      sync.Mutex
	signals []*models.TradingSignal
	logs    []models.LogEntry
}

func (r *fakeRecorder) RecordSignal(sig *models.TradingSignal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, sig)
}

func (r *fakeRecorder) RecordLog(level models.LogLevel, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, models.LogEntry{Level: level, Message: message})
}

func newTestStrategy(p *stubProvider, rec *fakeRecorder, mutate func(*Config)) *PinBarStrategy {
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	return NewPinBarStrategy(
		p,
		patterns.NewRegistry(patterns.DefaultConfig()),
		NewTrendClassifier(),
		risk.NewSizer(risk.Config{TotalCapital: 10000}),
		rec,
		logging.Nop(),
		cfg,
	)
}

func TestAnalyzeBullishPinBarNeutralTrend(t *testing.T) {
	p := &stubProvider{series: map[string][]models.Candle{
		"15m": bullishPinSeries(100),
		"4h":  ramp(200, 100, 0),
	}}
	rec := &fakeRecorder{}
	s := newTestStrategy(p, rec, nil)

	sig, err := s.AnalyzeDetailed(context.Background(), "BTCUSDT", "15m")
	if err != nil {
		t.Fatalf("AnalyzeDetailed: %v", err)
	}
	if sig == nil {
		t.Fatal("expected a signal")
	}
	if sig.Direction != models.DirectionBullish || sig.Pattern != string(patterns.PinBar) {
		t.Errorf("unexpected signal %+v", sig)
	}
	if sig.Confidence < 0.3 || sig.Confidence > 0.9 {
		t.Errorf("confidence %v out of range", sig.Confidence)
	}
	if !(sig.StopLoss < sig.EntryPrice && sig.EntryPrice < sig.TakeProfit) {
		t.Errorf("expected SL < entry < TP, got %v < %v < %v", sig.StopLoss, sig.EntryPrice, sig.TakeProfit)
	}

	atr := 37.0 / 14
	if math.Abs(sig.StopLoss-(90-0.5*atr)) > 1e-9 || math.Abs(sig.TakeProfit-(100.5+3*atr)) > 1e-9 {
		t.Errorf("unexpected SL/TP %v/%v", sig.StopLoss, sig.TakeProfit)
	}
	if sig.PositionSize != 86 || sig.Leverage != 1 {
		t.Errorf("unexpected sizing %v x%d", sig.PositionSize, sig.Leverage)
	}
	if len(rec.signals) != 1 || rec.signals[0] != sig {
		t.Errorf("expected the signal to be recorded once, got %d", len(rec.signals))
	}
}

func TestAnalyzeRejectsAgainstBearishTrend(t *testing.T) {
	p := &stubProvider{series: map[string][]models.Candle{
		"15m": bullishPinSeries(100),
		"4h":  ramp(200, 300, -1),
	}}
	rec := &fakeRecorder{}
	s := newTestStrategy(p, rec, nil)

	if sig := s.Analyze(context.Background(), "BTCUSDT", "15m"); sig != nil {
		t.Fatalf("expected no signal against a bearish trend, got %+v", sig)
	}
	if len(rec.signals) != 0 {
		t.Error("nothing should be recorded")
	}
}

func TestAnalyzeInsufficientHistory(t *testing.T) {
	p := &stubProvider{series: map[string][]models.Candle{
		"15m": bullishPinSeries(100)[60:],
	}}
	s := newTestStrategy(p, &fakeRecorder{}, nil)

	sig, err := s.AnalyzeDetailed(context.Background(), "BTCUSDT", "15m")
	if sig != nil || err != nil {
		t.Fatalf("expected (nil, nil), got (%v, %v)", sig, err)
	}
	if len(p.calls) != 1 {
		t.Errorf("higher timeframe should not be fetched, calls=%v", p.calls)
	}
}

func TestAnalyzeShortHigherTimeframe(t *testing.T) {
	p := &stubProvider{series: map[string][]models.Candle{
		"15m": bullishPinSeries(100),
		"4h":  ramp(120, 100, 0),
	}}
	sig, err := newTestStrategy(p, &fakeRecorder{}, nil).AnalyzeDetailed(context.Background(), "BTCUSDT", "15m")
	if sig != nil || err != nil {
		t.Fatalf("expected (nil, nil), got (%v, %v)", sig, err)
	}
}

func TestAnalyzeUnmappedTimeframeIsNeutral(t *testing.T) {
	p := &stubProvider{series: map[string][]models.Candle{
		"5m": bullishPinSeries(100),
	}}
	sig := newTestStrategy(p, &fakeRecorder{}, nil).Analyze(context.Background(), "BTCUSDT", "5m")
	if sig == nil || sig.Direction != models.DirectionBullish {
		t.Fatalf("expected bullish signal, got %+v", sig)
	}
	if len(p.calls) != 1 || p.calls[0] != "5m" {
		t.Errorf("expected only the scan timeframe to be fetched, calls=%v", p.calls)
	}
}

func TestTrendFetchCoversClassifierHistory(t *testing.T) {
	p := &stubProvider{series: map[string][]models.Candle{
		"15m": bullishPinSeries(100),
		"4h":  ramp(200, 100, 0),
	}}
	s := newTestStrategy(p, &fakeRecorder{}, func(c *Config) { c.TrendLookback = 100 })

	sig, err := s.AnalyzeDetailed(context.Background(), "BTCUSDT", "15m")
	if err != nil || sig == nil {
		t.Fatalf("expected a signal with a short trend lookback, got %+v (%v)", sig, err)
	}
}

func TestMinVolatilityFilter(t *testing.T) {
	series := map[string][]models.Candle{"5m": bullishPinSeries(10000)}

	s := newTestStrategy(&stubProvider{series: series}, &fakeRecorder{}, nil)
	if sig := s.Analyze(context.Background(), "BTCUSDT", "5m"); sig != nil {
		t.Fatalf("low volatility signal should be filtered, got %+v", sig)
	}

	s = newTestStrategy(&stubProvider{series: series}, &fakeRecorder{}, func(c *Config) { c.MinVolatilityFilter = false })
	if sig := s.Analyze(context.Background(), "BTCUSDT", "5m"); sig == nil {
		t.Fatal("expected a signal with the volatility filter off")
	}
}

func TestAnalyzeAbsorbsProviderError(t *testing.T) {
	boom := errors.New("exchange down")
	p := &stubProvider{err: boom}
	rec := &fakeRecorder{}
	s := newTestStrategy(p, rec, nil)

	_, err := s.AnalyzeDetailed(context.Background(), "BTCUSDT", "1h")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}

	if sig := s.Analyze(context.Background(), "BTCUSDT", "1h"); sig != nil {
		t.Fatal("Analyze should return nil on error")
	}
	if len(rec.logs) != 1 || rec.logs[0].Level != models.LogError {
		t.Errorf("expected one ERROR log entry, got %+v", rec.logs)
	}
}

func TestAnalyzeRecoversPanic(t *testing.T) {
	s := newTestStrategy(&stubProvider{panics: true}, &fakeRecorder{}, nil)

	sig, err := s.AnalyzeDetailed(context.Background(), "BTCUSDT", "1h")
	if sig != nil || err == nil {
		t.Fatalf("expected panic to surface as error, got (%v, %v)", sig, err)
	}
	if s.Analyze(context.Background(), "BTCUSDT", "1h") != nil {
		t.Error("Analyze should absorb panics")
	}
}

func TestSelectBestTieGoesToLater(t *testing.T) {
	first := &models.TradingSignal{ID: "first", Confidence: 0.5}
	second := &models.TradingSignal{ID: "second", Confidence: 0.5}
	weaker := &models.TradingSignal{ID: "weaker", Confidence: 0.4}

	if got := selectBest([]*models.TradingSignal{first, second, weaker}); got != second {
		t.Errorf("expected later candidate on tie, got %s", got.ID)
	}
	if selectBest(nil) != nil {
		t.Error("expected nil for no candidates")
	}
}

func TestSignalIDStableAcrossTicks(t *testing.T) {
	p := &stubProvider{series: map[string][]models.Candle{"5m": bullishPinSeries(100)}}
	s := newTestStrategy(p, &fakeRecorder{}, nil)

	a := s.Analyze(context.Background(), "BTCUSDT", "5m")
	b := s.Analyze(context.Background(), "BTCUSDT", "5m")
	if a == nil || b == nil || a.ID != b.ID {
		t.Fatalf("expected the same ID for the same candle, got %v and %v", a, b)
	}
}
