package patterns

import (
	"pinbar-signal-bot/internal/models"
)

// Pin bar thresholds
const (
	maxPinBarBodyRatio = 0.3
	minPinBarWickRatio = 2.0
)

// DetectPinBar classifies a single candle as a bullish or bearish pin bar.
// The body must be at most 30% of the range and the wick on the open side
// must exceed twice the body.
func DetectPinBar(c models.Candle) models.Direction {
	body := c.Body()
	rng := c.Range()

	if rng == 0 {
		return models.DirectionNone
	}
	if body/rng > maxPinBarBodyRatio {
		return models.DirectionNone
	}

	// Long lower wick
	if c.Close > c.Open && (c.Open-c.Low) > minPinBarWickRatio*body {
		return models.DirectionBullish
	}

	// Long upper wick
	if c.Close < c.Open && (c.High-c.Open) > minPinBarWickRatio*body {
		return models.DirectionBearish
	}

	return models.DirectionNone
}

// DetectEngulfing applies the classic two-candle engulfing rule: the current
// body is larger, of opposite colour, and opens and closes beyond the
// previous body.
func DetectEngulfing(current, previous models.Candle) models.Direction {
	if current.Body() <= previous.Body() {
		return models.DirectionNone
	}

	if current.IsBullish() && previous.IsBearish() &&
		current.Open < previous.Close && current.Close > previous.Open {
		return models.DirectionBullish
	}

	if current.IsBearish() && previous.IsBullish() &&
		current.Open > previous.Close && current.Close < previous.Open {
		return models.DirectionBearish
	}

	return models.DirectionNone
}

// PinBarDetector adapts DetectPinBar to the registry
type PinBarDetector struct{}

func (PinBarDetector) Type() PatternType { return PinBar }

func (PinBarDetector) Detect(current models.Candle, _ *models.Candle) models.Direction {
	return DetectPinBar(current)
}

// EngulfingDetector adapts DetectEngulfing to the registry
type EngulfingDetector struct{}

func (EngulfingDetector) Type() PatternType { return Engulfing }

func (EngulfingDetector) Detect(current models.Candle, previous *models.Candle) models.Direction {
	if previous == nil {
		return models.DirectionNone
	}
	return DetectEngulfing(current, *previous)
}
