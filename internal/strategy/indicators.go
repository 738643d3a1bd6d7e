package strategy

import (
	talib "github.com/markcheno/go-talib"

	"pinbar-signal-bot/internal/models"
)

// ============================================================================
// SERIES HELPERS
// ============================================================================

func closes(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

func highsLowsCloses(candles []models.Candle) (highs, lows, cls []float64) {
	highs = make([]float64, len(candles))
	lows = make([]float64, len(candles))
	cls = make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
		cls[i] = c.Close
	}
	return highs, lows, cls
}

// ============================================================================
// MOVING AVERAGES
// ============================================================================

// CalculateEMA returns the SMA-seeded exponential moving average of closes at
// the last candle
func CalculateEMA(candles []models.Candle, period int) float64 {
	if period <= 0 || len(candles) < period {
		return 0
	}
	out := talib.Ema(closes(candles), period)
	return out[len(out)-1]
}

// ============================================================================
// ATR (Average True Range)
// ============================================================================

// CalculateATR returns Wilder's average true range at the last candle
func CalculateATR(candles []models.Candle, period int) float64 {
	if period <= 0 || len(candles) < period+1 {
		return 0
	}
	highs, lows, cls := highsLowsCloses(candles)
	out := talib.Atr(highs, lows, cls, period)
	return out[len(out)-1]
}
