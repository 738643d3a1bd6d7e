package patterns

import (
	"testing"

	"pinbar-signal-bot/internal/models"
)

// TestBullishPinBar tests the long-lower-wick case
func TestBullishPinBar(t *testing.T) {
	c := models.Candle{Open: 100, High: 101, Low: 90, Close: 100.5}
	if got := DetectPinBar(c); got != models.DirectionBullish {
		t.Errorf("expected BULLISH pin bar, got %q", got)
	}
}

// TestBearishPinBar tests the long-upper-wick case
func TestBearishPinBar(t *testing.T) {
	c := models.Candle{Open: 100, High: 110, Low: 99, Close: 99.5}
	if got := DetectPinBar(c); got != models.DirectionBearish {
		t.Errorf("expected BEARISH pin bar, got %q", got)
	}
}

func TestPinBarRejections(t *testing.T) {
	tests := []struct {
		name   string
		candle models.Candle
	}{
		{"zero range", models.Candle{Open: 100, High: 100, Low: 100, Close: 100}},
		{"body too large with long lower wick", models.Candle{Open: 100, High: 104, Low: 92, Close: 104}},
		{"body too large with long upper wick", models.Candle{Open: 104, High: 112, Low: 100, Close: 100}},
		{"body just above ratio", models.Candle{Open: 100, High: 103.1, Low: 93, Close: 103.1}},
		{"doji", models.Candle{Open: 100, High: 101, Low: 99, Close: 100}},
		{"green candle with wick on the wrong side", models.Candle{Open: 100, High: 110, Low: 99.9, Close: 100.5}},
		{"red candle with wick on the wrong side", models.Candle{Open: 100, High: 100.1, Low: 90, Close: 99.5}},
		{"wick equal to twice the body", models.Candle{Open: 100, High: 104, Low: 98, Close: 101}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectPinBar(tt.candle); got != models.DirectionNone {
				t.Errorf("expected none, got %q", got)
			}
		})
	}
}

// TestBullishEngulfing tests Bullish Engulfing pattern detection
func TestBullishEngulfing(t *testing.T) {
	prev := models.Candle{Open: 100, High: 102, Low: 98, Close: 99}
	cur := models.Candle{Open: 98, High: 105, Low: 97, Close: 104}

	if DetectEngulfing(cur, prev) != models.DirectionBullish {
		t.Error("Should detect valid Bullish Engulfing pattern")
	}

	prevGreen := models.Candle{Open: 99, High: 102, Low: 98, Close: 100}
	if DetectEngulfing(cur, prevGreen) != models.DirectionNone {
		t.Error("Should NOT detect pattern when previous candle is not bearish")
	}

	small := models.Candle{Open: 99, High: 101, Low: 98, Close: 99.5}
	if DetectEngulfing(small, prev) != models.DirectionNone {
		t.Error("Should NOT detect pattern when current body is smaller")
	}
}

// TestBearishEngulfing tests Bearish Engulfing pattern detection
func TestBearishEngulfing(t *testing.T) {
	prev := models.Candle{Open: 99, High: 102, Low: 98, Close: 100}
	cur := models.Candle{Open: 101, High: 103, Low: 95, Close: 96}

	if DetectEngulfing(cur, prev) != models.DirectionBearish {
		t.Error("Should detect valid Bearish Engulfing pattern")
	}
}
