package risk

import (
	"math"

	"github.com/shopspring/decimal"
)

// Defaults used when a timeframe carries no explicit risk parameters
const (
	DefaultPositionRatio = 0.01
	DefaultMaxLeverage   = 3
	DefaultMaxDrawdown   = 0.20
)

// Params are the per-timeframe risk parameters
type Params struct {
	PositionRatio float64 // fraction of total capital at full confidence
	MaxLeverage   int
}

// DefaultParams returns 1% of capital and leverage capped at 3
func DefaultParams() Params {
	return Params{PositionRatio: DefaultPositionRatio, MaxLeverage: DefaultMaxLeverage}
}

func (p Params) withDefaults() Params {
	if p.PositionRatio <= 0 {
		p.PositionRatio = DefaultPositionRatio
	}
	if p.MaxLeverage <= 0 {
		p.MaxLeverage = DefaultMaxLeverage
	}
	return p
}

// Config holds account-level risk settings
type Config struct {
	TotalCapital float64
	MaxDrawdown  float64 // fraction, e.g. 0.20
}

// Position is the sizing result for one signal
type Position struct {
	Size     float64
	Leverage int
}

// Sizer converts a confidence score into position size and leverage.
// It holds no mutable state and is safe for concurrent use.
type Sizer struct {
	config Config
}

// NewSizer creates a sizer for the given account settings
func NewSizer(config Config) *Sizer {
	if config.MaxDrawdown <= 0 {
		config.MaxDrawdown = DefaultMaxDrawdown
	}
	return &Sizer{config: config}
}

// TotalCapital returns the configured account size
func (s *Sizer) TotalCapital() float64 {
	return s.config.TotalCapital
}

// MaxDrawdown returns the configured drawdown limit
func (s *Sizer) MaxDrawdown() float64 {
	return s.config.MaxDrawdown
}

// Size sizes a position against the configured total capital
func (s *Sizer) Size(params Params, confidence float64) Position {
	size, lev := SizePosition(s.config.TotalCapital, params, confidence)
	return Position{Size: size, Leverage: lev}
}

// DrawdownExceeded checks current capital against the configured limit
func (s *Sizer) DrawdownExceeded(currentCapital float64) bool {
	return CheckDrawdown(currentCapital, s.config.TotalCapital, s.config.MaxDrawdown)
}

// SizePosition scales the base ratio into an 80%-100% band by confidence and
// rounds the size to cents. Leverage is floor(3*confidence) capped by
// MaxLeverage and never below 1.
func SizePosition(totalCapital float64, params Params, confidence float64) (float64, int) {
	params = params.withDefaults()

	adjustedRatio := decimal.NewFromFloat(params.PositionRatio).
		Mul(decimal.NewFromFloat(0.8).Add(decimal.NewFromFloat(confidence).Mul(decimal.NewFromFloat(0.2))))
	size := decimal.NewFromFloat(totalCapital).Mul(adjustedRatio).Round(2)
	if size.IsNegative() {
		size = decimal.Zero
	}

	leverage := int(math.Floor(3 * confidence))
	if leverage > params.MaxLeverage {
		leverage = params.MaxLeverage
	}
	if leverage < 1 {
		leverage = 1
	}

	return size.InexactFloat64(), leverage
}

// CheckDrawdown reports whether the loss from totalCapital to currentCapital
// exceeds maxDrawdown (a fraction)
func CheckDrawdown(currentCapital, totalCapital, maxDrawdown float64) bool {
	if totalCapital <= 0 {
		return false
	}
	return (totalCapital-currentCapital)/totalCapital > maxDrawdown
}

// Drawdown returns the fractional loss from totalCapital, zero when in profit
func Drawdown(currentCapital, totalCapital float64) float64 {
	if totalCapital <= 0 {
		return 0
	}
	return math.Max(0, (totalCapital-currentCapital)/totalCapital)
}
