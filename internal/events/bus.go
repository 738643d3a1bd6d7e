package events

import (
	"sync"
	"time"

	"pinbar-signal-bot/internal/models"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventSignalGenerated      EventType = "SIGNAL_GENERATED"
	EventAnalysisFailed       EventType = "ANALYSIS_FAILED"
	EventTickStarted          EventType = "TICK_STARTED"
	EventTickCompleted        EventType = "TICK_COMPLETED"
	EventTickCrashed          EventType = "TICK_CRASHED"
	EventHeartbeat            EventType = "HEARTBEAT"
	EventCircuitBreakerUpdate EventType = "CIRCUIT_BREAKER_UPDATE"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers. Each subscriber runs in its own
// goroutine so a slow consumer never stalls a scheduler tick.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event)
		}
	}

	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishSignal publishes a signal generated event
func (eb *EventBus) PublishSignal(sig *models.TradingSignal) {
	eb.Publish(Event{
		Type: EventSignalGenerated,
		Data: map[string]interface{}{
			"id":            sig.ID,
			"symbol":        sig.Symbol,
			"timeframe":     sig.Timeframe,
			"direction":     string(sig.Direction),
			"pattern":       sig.Pattern,
			"entry_price":   sig.EntryPrice,
			"stop_loss":     sig.StopLoss,
			"take_profit":   sig.TakeProfit,
			"position_size": sig.PositionSize,
			"leverage":      sig.Leverage,
			"confidence":    sig.Confidence,
		},
	})
}

// PublishAnalysisFailed publishes a per-symbol analysis failure
func (eb *EventBus) PublishAnalysisFailed(symbol, timeframe string, err error) {
	eb.Publish(Event{
		Type: EventAnalysisFailed,
		Data: map[string]interface{}{
			"symbol":    symbol,
			"timeframe": timeframe,
			"error":     err.Error(),
		},
	})
}

// PublishTick publishes the start or completion of a timeframe tick
func (eb *EventBus) PublishTick(eventType EventType, timeframe string, data map[string]interface{}) {
	if data == nil {
		data = make(map[string]interface{})
	}
	data["timeframe"] = timeframe
	eb.Publish(Event{Type: eventType, Data: data})
}

// PublishHeartbeat publishes a heartbeat
func (eb *EventBus) PublishHeartbeat() {
	eb.Publish(Event{Type: EventHeartbeat, Data: map[string]interface{}{"status": "ok"}})
}

// PublishCircuitBreaker publishes a breaker state change
func (eb *EventBus) PublishCircuitBreaker(name, state, reason string) {
	eb.Publish(Event{
		Type: EventCircuitBreakerUpdate,
		Data: map[string]interface{}{
			"name":   name,
			"state":  state,
			"reason": reason,
		},
	})
}
