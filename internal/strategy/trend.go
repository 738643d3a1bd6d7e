package strategy

import (
	"errors"
	"fmt"

	"pinbar-signal-bot/internal/models"
)

// ErrInsufficientHistory is returned when there are too few candles for a computation
var ErrInsufficientHistory = errors.New("insufficient candle history")

// TrendClassifier compares a fast and a slow EMA of closes with a hysteresis band
type TrendClassifier struct {
	FastPeriod int
	SlowPeriod int
	Band       float64
}

// NewTrendClassifier returns the EMA50/EMA200 classifier with a 2% band
func NewTrendClassifier() *TrendClassifier {
	return &TrendClassifier{FastPeriod: 50, SlowPeriod: 200, Band: 0.02}
}

// MinCandles is the history the classifier needs
func (tc *TrendClassifier) MinCandles() int {
	return tc.SlowPeriod
}

// Classify returns the trend at the most recent candle
func (tc *TrendClassifier) Classify(candles []models.Candle) (models.TrendState, error) {
	if len(candles) < tc.SlowPeriod {
		return models.TrendNeutral, fmt.Errorf("trend needs %d candles, got %d: %w",
			tc.SlowPeriod, len(candles), ErrInsufficientHistory)
	}

	fast := CalculateEMA(candles, tc.FastPeriod)
	slow := CalculateEMA(candles, tc.SlowPeriod)
	return ClassifyEMAs(fast, slow, tc.Band), nil
}

// ClassifyEMAs applies the strict band rule:
// fast > slow*(1+band) is bullish, fast < slow*(1-band) is bearish.
func ClassifyEMAs(fast, slow, band float64) models.TrendState {
	switch {
	case fast > slow*(1+band):
		return models.TrendBullish
	case fast < slow*(1-band):
		return models.TrendBearish
	default:
		return models.TrendNeutral
	}
}
