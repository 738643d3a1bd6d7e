package events

import (
	"errors"
	"testing"
	"time"

	"pinbar-signal-bot/internal/models"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestSubscribeByType(t *testing.T) {
	bus := NewEventBus()
	signals := make(chan Event, 4)
	all := make(chan Event, 4)
	bus.Subscribe(EventSignalGenerated, func(e Event) { signals <- e })
	bus.SubscribeAll(func(e Event) { all <- e })

	bus.PublishSignal(&models.TradingSignal{ID: "abc", Symbol: "BTCUSDT", Timeframe: "1h", Direction: models.DirectionBullish})
	bus.PublishAnalysisFailed("ETHUSDT", "1h", errors.New("boom"))

	ev := receive(t, signals)
	if ev.Data["id"] != "abc" || ev.Data["direction"] != "BULLISH" {
		t.Errorf("unexpected signal event %+v", ev)
	}
	if ev.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}

	seen := map[EventType]bool{}
	seen[receive(t, all).Type] = true
	seen[receive(t, all).Type] = true
	if !seen[EventSignalGenerated] || !seen[EventAnalysisFailed] {
		t.Errorf("all-subscriber missed events: %v", seen)
	}

	select {
	case ev := <-signals:
		t.Errorf("typed subscriber received unrelated event %s", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishTickAddsTimeframe(t *testing.T) {
	bus := NewEventBus()
	ch := make(chan Event, 1)
	bus.Subscribe(EventTickCompleted, func(e Event) { ch <- e })

	bus.PublishTick(EventTickCompleted, "4h", map[string]interface{}{"signals": 2})
	ev := receive(t, ch)
	if ev.Data["timeframe"] != "4h" || ev.Data["signals"] != 2 {
		t.Errorf("unexpected tick data %v", ev.Data)
	}
}

func TestNilBusIsSafe(t *testing.T) {
	var bus *EventBus
	bus.PublishHeartbeat()
}
