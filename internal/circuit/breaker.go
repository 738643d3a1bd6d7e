package circuit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrOpen is returned by Execute while the breaker rejects calls
var ErrOpen = errors.New("circuit breaker open")

// BreakerState represents the circuit breaker state
type BreakerState string

const (
	StateClosed   BreakerState = "closed"    // Normal operation
	StateOpen     BreakerState = "open"      // Calls rejected
	StateHalfOpen BreakerState = "half_open" // Testing recovery
)

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled                bool          `json:"enabled"`
	MaxConsecutiveFailures int           `json:"max_consecutive_failures"` // Failures in a row before tripping
	Cooldown               time.Duration `json:"cooldown"`                 // Time spent open before a trial call
}

// DefaultCircuitBreakerConfig returns safe defaults
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Enabled:                true,
		MaxConsecutiveFailures: 5,
		Cooldown:               2 * time.Minute,
	}
}

// CircuitBreaker stops hammering an upstream that keeps failing
type CircuitBreaker struct {
	name                string
	config              *CircuitBreakerConfig
	state               BreakerState
	consecutiveFailures int
	totalFailures       int64
	lastTripTime        time.Time
	tripReason          string
	mu                  sync.RWMutex
	onTrip              func(name, reason string)
	onReset             func(name string)
	now                 func() time.Time
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(name string, config *CircuitBreakerConfig) *CircuitBreaker {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}
	if config.MaxConsecutiveFailures <= 0 {
		config.MaxConsecutiveFailures = 5
	}

	return &CircuitBreaker{
		name:   name,
		config: config,
		state:  StateClosed,
		now:    time.Now,
	}
}

// OnTrip sets callback for when breaker trips
func (cb *CircuitBreaker) OnTrip(handler func(name, reason string)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onTrip = handler
}

// OnReset sets callback for when breaker resets
func (cb *CircuitBreaker) OnReset(handler func(name string)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onReset = handler
}

// Allow checks if a call may proceed
func (cb *CircuitBreaker) Allow() (bool, string) {
	if !cb.config.Enabled {
		return true, ""
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		elapsed := cb.now().Sub(cb.lastTripTime)
		if elapsed < cb.config.Cooldown {
			remaining := cb.config.Cooldown - elapsed
			return false, fmt.Sprintf("circuit breaker %s open, cooldown remaining: %v (reason: %s)",
				cb.name, remaining.Round(time.Second), cb.tripReason)
		}

		// Cooldown passed, try half-open
		cb.state = StateHalfOpen
	}

	return true, ""
}

// RecordSuccess closes a half-open breaker and clears the failure streak
func (cb *CircuitBreaker) RecordSuccess() {
	if !cb.config.Enabled {
		return
	}

	cb.mu.Lock()
	cb.consecutiveFailures = 0
	var reset func(string)
	if cb.state != StateClosed {
		cb.state = StateClosed
		cb.tripReason = ""
		reset = cb.onReset
	}
	cb.mu.Unlock()

	if reset != nil {
		go reset(cb.name)
	}
}

// RecordFailure counts a failed call and trips the breaker when the streak
// reaches the limit. A failure while half-open trips immediately.
func (cb *CircuitBreaker) RecordFailure(err error) {
	if !cb.config.Enabled {
		return
	}

	cb.mu.Lock()
	cb.consecutiveFailures++
	cb.totalFailures++

	var trip func(string, string)
	var reason string
	if cb.state == StateHalfOpen || cb.consecutiveFailures >= cb.config.MaxConsecutiveFailures {
		reason = fmt.Sprintf("%d consecutive failures", cb.consecutiveFailures)
		if err != nil {
			reason = fmt.Sprintf("%s, last: %v", reason, err)
		}
		cb.state = StateOpen
		cb.lastTripTime = cb.now()
		cb.tripReason = reason
		trip = cb.onTrip
	}
	cb.mu.Unlock()

	if trip != nil {
		go trip(cb.name, reason)
	}
}

// Execute runs fn if the breaker allows it and records the outcome
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if ok, reason := cb.Allow(); !ok {
		return fmt.Errorf("%w: %s", ErrOpen, reason)
	}
	if err := fn(); err != nil {
		cb.RecordFailure(err)
		return err
	}
	cb.RecordSuccess()
	return nil
}

// GetState returns the current state
func (cb *CircuitBreaker) GetState() BreakerState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// GetStatus returns a snapshot for the status API
func (cb *CircuitBreaker) GetStatus() map[string]interface{} {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	status := map[string]interface{}{
		"name":                 cb.name,
		"enabled":              cb.config.Enabled,
		"state":                cb.state,
		"consecutive_failures": cb.consecutiveFailures,
		"total_failures":       cb.totalFailures,
		"trip_reason":          cb.tripReason,
	}
	if !cb.lastTripTime.IsZero() {
		status["last_trip_time"] = cb.lastTripTime
	}
	return status
}
