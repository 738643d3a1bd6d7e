package database

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"pinbar-signal-bot/internal/logging"
	"pinbar-signal-bot/internal/models"
)

func sampleSignal(id string, ts time.Time) *models.TradingSignal {
	return &models.TradingSignal{
		ID:           id,
		Symbol:       "BTCUSDT",
		Timeframe:    "15m",
		Direction:    models.DirectionBullish,
		Pattern:      "pin_bar",
		EntryPrice:   100.5,
		StopLoss:     88.68,
		TakeProfit:   108.43,
		PositionSize: 86.0,
		Leverage:     1,
		Confidence:   0.3,
		Timestamp:    ts,
	}
}

func assertSignalEqual(t *testing.T, got models.TradingSignal, want *models.TradingSignal) {
	t.Helper()
	if got.ID != want.ID || got.Symbol != want.Symbol || got.Timeframe != want.Timeframe ||
		got.Direction != want.Direction || got.Pattern != want.Pattern || got.Leverage != want.Leverage {
		t.Errorf("identity fields differ: got %+v want %+v", got, *want)
	}
	if got.EntryPrice != want.EntryPrice || got.StopLoss != want.StopLoss || got.TakeProfit != want.TakeProfit ||
		got.PositionSize != want.PositionSize || got.Confidence != want.Confidence {
		t.Errorf("numeric fields differ: got %+v want %+v", got, *want)
	}
	if !got.Timestamp.Equal(want.Timestamp) {
		t.Errorf("timestamp differs: got %v want %v", got.Timestamp, want.Timestamp)
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	older := sampleSignal("a", base)
	newer := sampleSignal("b", base.Add(time.Hour))
	s.SaveSignal(ctx, older)
	s.SaveSignal(ctx, newer)
	s.SaveSignal(ctx, older)

	got, err := s.RecentSignals(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("duplicate ID should be ignored, got %d signals", len(got))
	}
	assertSignalEqual(t, got[0], newer)
	assertSignalEqual(t, got[1], older)
}

func TestMemoryStoreLogsBounded(t *testing.T) {
	s := NewMemoryStore(3)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		s.SaveLog(ctx, models.LogEntry{Level: models.LogInfo, Message: string(rune('a' + i))})
	}

	logs, _ := s.RecentLogs(ctx, 10)
	if len(logs) != 3 {
		t.Fatalf("expected 3 logs, got %d", len(logs))
	}
	if logs[0].Message != "e" || logs[2].Message != "c" {
		t.Errorf("expected newest first, got %v", logs)
	}

	s.Close()
	if err := s.SaveLog(ctx, models.LogEntry{}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	s, err := NewSQLiteStore(t.TempDir() + "/signals.db")
	if err != nil {
		if strings.Contains(err.Error(), "cgo") || strings.Contains(err.Error(), "CGO") {
			t.Skipf("sqlite unavailable: %v", err)
		}
		t.Fatalf("open sqlite: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	ts := time.Date(2024, 3, 1, 12, 15, 0, 123456789, time.UTC)
	sig := sampleSignal(models.SignalIDFor("BTCUSDT", "15m", "pin_bar", ts), ts)

	if err := s.SaveSignal(ctx, sig); err != nil {
		t.Fatalf("save signal: %v", err)
	}
	if err := s.SaveSignal(ctx, sig); err != nil {
		t.Fatalf("duplicate save should be ignored: %v", err)
	}

	got, err := s.RecentSignals(ctx, 10)
	if err != nil {
		t.Fatalf("read signals: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(got))
	}
	assertSignalEqual(t, got[0], sig)

	entry := models.LogEntry{Timestamp: ts, Level: models.LogCritical, Message: "tick failed"}
	if err := s.SaveLog(ctx, entry); err != nil {
		t.Fatalf("save log: %v", err)
	}
	logs, err := s.RecentLogs(ctx, 10)
	if err != nil || len(logs) != 1 {
		t.Fatalf("read logs: %v %v", logs, err)
	}
	if logs[0].Level != models.LogCritical || logs[0].Message != "tick failed" || !logs[0].Timestamp.Equal(ts) {
		t.Errorf("unexpected log %+v", logs[0])
	}
}

type failingStore struct {
	*MemoryStore
	mu    sync.Mutex
	calls int
}

func (f *failingStore) SaveLog(ctx context.Context, entry models.LogEntry) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return errors.New("disk full")
}

type blockingStore struct {
	*MemoryStore
	release chan struct{}
}

func (b *blockingStore) SaveLog(ctx context.Context, entry models.LogEntry) error {
	<-b.release
	return b.MemoryStore.SaveLog(ctx, entry)
}

func TestAsyncStoreWritesAndFlushes(t *testing.T) {
	mem := NewMemoryStore(0)
	a := NewAsyncStore(mem, AsyncConfig{QueueSize: 16, Workers: 2}, logging.Nop())

	sig := sampleSignal("x", time.Now())
	a.RecordSignal(sig)
	a.RecordLog(models.LogInfo, "started")
	a.RecordLog(models.LogLevel("bogus"), "normalised")

	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	signals, _ := mem.RecentSignals(context.Background(), 10)
	logs, _ := mem.RecentLogs(context.Background(), 10)
	if len(signals) != 1 || len(logs) != 2 {
		t.Fatalf("expected 1 signal and 2 logs, got %d and %d", len(signals), len(logs))
	}
	for _, l := range logs {
		if !l.Level.Valid() {
			t.Errorf("invalid level persisted: %q", l.Level)
		}
	}

	stats := a.Stats()
	if stats.Submitted != 3 || stats.Written != 3 || stats.Dropped != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestAsyncStoreFailureFallsBack(t *testing.T) {
	fs := &failingStore{MemoryStore: NewMemoryStore(0)}
	a := NewAsyncStore(fs, AsyncConfig{QueueSize: 4, Workers: 1}, logging.Nop())
	var buf safeBuffer
	a.fallback = &buf

	a.RecordLog(models.LogError, "BTCUSDT analysis failed")
	a.Close(context.Background())

	if a.Stats().Failed != 1 {
		t.Errorf("expected 1 failed write, got %+v", a.Stats())
	}
	if !strings.Contains(buf.String(), "BTCUSDT analysis failed") {
		t.Errorf("fallback should contain the lost message, got %q", buf.String())
	}
}

func TestAsyncStoreNeverBlocks(t *testing.T) {
	bs := &blockingStore{MemoryStore: NewMemoryStore(0), release: make(chan struct{})}
	a := NewAsyncStore(bs, AsyncConfig{QueueSize: 2, Workers: 1}, logging.Nop())
	a.fallback = nil

	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			a.RecordLog(models.LogInfo, "tick")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RecordLog blocked on a slow backend")
	}

	if a.Stats().Dropped == 0 {
		t.Error("expected drops once the queue filled")
	}

	close(bs.release)
	a.Close(context.Background())

	// Writes after close are dropped, not panics
	a.RecordLog(models.LogInfo, "late")
}

type safeBuffer struct {
	mu sync.Mutex
	b  strings.Builder
}

func (s *safeBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *safeBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}
