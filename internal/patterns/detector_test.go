package patterns

import (
	"testing"

	"pinbar-signal-bot/internal/models"
)

var (
	bearishPrev      = models.Candle{Open: 100, High: 102, Low: 98, Close: 99}
	bullishEngulfing = models.Candle{Open: 98, High: 105, Low: 97, Close: 104}
	bullishPinBar    = models.Candle{Open: 100, High: 101, Low: 90, Close: 100.5}
)

func TestDefaultRegistryDisablesEngulfing(t *testing.T) {
	r := NewRegistry(DefaultConfig())

	if !r.Enabled(PinBar) {
		t.Error("pin bar should be enabled by default")
	}
	if r.Enabled(Engulfing) {
		t.Error("engulfing should be disabled by default")
	}

	prev := bearishPrev
	if matches := r.Detect(bullishEngulfing, &prev); len(matches) != 0 {
		t.Errorf("expected no matches with engulfing disabled, got %v", matches)
	}
}

func TestRegistryEngulfingEnabled(t *testing.T) {
	r := NewRegistry(Config{PinBar: true, Engulfing: true})

	prev := bearishPrev
	matches := r.Detect(bullishEngulfing, &prev)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].Type != Engulfing || matches[0].Direction != models.DirectionBullish {
		t.Errorf("unexpected match %+v", matches[0])
	}

	if matches := r.Detect(bullishEngulfing, nil); len(matches) != 0 {
		t.Errorf("engulfing needs a previous candle, got %v", matches)
	}
}

func TestRegistryOrder(t *testing.T) {
	r := &Registry{}
	r.Register(EngulfingDetector{}, true)
	r.Register(PinBarDetector{}, true)

	matches := r.Detect(bullishPinBar, nil)
	if len(matches) != 1 || matches[0].Type != PinBar {
		t.Fatalf("expected a single pin bar match, got %v", matches)
	}

	r2 := NewRegistry(Config{PinBar: false, Engulfing: false})
	if matches := r2.Detect(bullishPinBar, nil); len(matches) != 0 {
		t.Errorf("all detectors disabled, got %v", matches)
	}
}
