package models

import (
	"testing"
	"time"
)

func TestCandleGeometry(t *testing.T) {
	c := Candle{Open: 100, High: 110, Low: 99, Close: 99.5}
	if c.Body() != 0.5 {
		t.Errorf("Body() = %v, want 0.5", c.Body())
	}
	if c.Range() != 11 {
		t.Errorf("Range() = %v, want 11", c.Range())
	}
	if !c.IsBearish() || c.IsBullish() {
		t.Error("expected a bearish candle")
	}
}

func TestTrendAllows(t *testing.T) {
	tests := []struct {
		trend TrendState
		dir   Direction
		want  bool
	}{
		{TrendNeutral, DirectionBullish, true},
		{TrendNeutral, DirectionBearish, true},
		{TrendBullish, DirectionBullish, true},
		{TrendBullish, DirectionBearish, false},
		{TrendBearish, DirectionBullish, false},
		{TrendBearish, DirectionBearish, true},
	}
	for _, tt := range tests {
		if got := tt.trend.Allows(tt.dir); got != tt.want {
			t.Errorf("%s.Allows(%s) = %v, want %v", tt.trend, tt.dir, got, tt.want)
		}
	}
}

func TestLogLevelValid(t *testing.T) {
	for _, l := range []LogLevel{LogInfo, LogWarning, LogError, LogCritical} {
		if !l.Valid() {
			t.Errorf("%s should be valid", l)
		}
	}
	if LogLevel("DEBUG").Valid() {
		t.Error("DEBUG is not a store level")
	}
}

func TestSignalIDForIsStable(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := SignalIDFor("BTCUSDT", "1h", "pin_bar", ts)
	b := SignalIDFor("BTCUSDT", "1h", "pin_bar", ts.In(time.FixedZone("X", 3600)))
	if a != b {
		t.Errorf("same candle produced different IDs: %s vs %s", a, b)
	}
	if a == SignalIDFor("BTCUSDT", "4h", "pin_bar", ts) {
		t.Error("different timeframe should produce a different ID")
	}
}
