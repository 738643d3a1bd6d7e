package patterns

import (
	"pinbar-signal-bot/internal/models"
)

// PatternType tags a detector in the registry
type PatternType string

const (
	PinBar    PatternType = "pin_bar"
	Engulfing PatternType = "engulfing"
)

// Detector recognises a reversal pattern on the current candle.
// previous is nil when no preceding candle is available.
type Detector interface {
	Type() PatternType
	Detect(current models.Candle, previous *models.Candle) models.Direction
}

// Match is a non-none detector result
type Match struct {
	Type      PatternType
	Direction models.Direction
}

// Config toggles individual detectors
type Config struct {
	PinBar    bool `json:"pin_bar" yaml:"pin_bar" default:"true"`
	Engulfing bool `json:"engulfing" yaml:"engulfing"`
}

// DefaultConfig enables the pin bar detector only
func DefaultConfig() Config {
	return Config{PinBar: true, Engulfing: false}
}

type entry struct {
	detector Detector
	enabled  bool
}

// Registry runs its detectors in registration order
type Registry struct {
	entries []entry
}

// NewRegistry creates the standard registry: pin bar, then engulfing
func NewRegistry(cfg Config) *Registry {
	r := &Registry{}
	r.Register(PinBarDetector{}, cfg.PinBar)
	r.Register(EngulfingDetector{}, cfg.Engulfing)
	return r
}

// Register appends a detector
func (r *Registry) Register(d Detector, enabled bool) {
	r.entries = append(r.entries, entry{detector: d, enabled: enabled})
}

// Enabled reports whether the detector of the given type is active
func (r *Registry) Enabled(t PatternType) bool {
	for _, e := range r.entries {
		if e.detector.Type() == t {
			return e.enabled
		}
	}
	return false
}

// Detect returns every non-none result from the enabled detectors
func (r *Registry) Detect(current models.Candle, previous *models.Candle) []Match {
	var matches []Match
	for _, e := range r.entries {
		if !e.enabled {
			continue
		}
		if dir := e.detector.Detect(current, previous); dir != models.DirectionNone {
			matches = append(matches, Match{Type: e.detector.Type(), Direction: dir})
		}
	}
	return matches
}
