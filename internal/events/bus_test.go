package events

import (
	"errors"
	"testing"
	"time"
)

func waitForEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestSubscribeReceivesMatchingType(t *testing.T) {
	bus := NewEventBus()
	got := make(chan Event, 1)
	bus.Subscribe(EventSignalGenerated, func(e Event) { got <- e })

	bus.Publish(Event{Type: EventBotStarted})
	bus.PublishSignal("abc-123", "EURUSD", "BUY", 62, 1.0850)

	e := waitForEvent(t, got)
	if e.Type != EventSignalGenerated {
		t.Errorf("expected SIGNAL_GENERATED, got %s", e.Type)
	}
	if e.Data["signal_id"] != "abc-123" || e.Data["symbol"] != "EURUSD" {
		t.Errorf("unexpected payload: %+v", e.Data)
	}

	select {
	case e := <-got:
		t.Errorf("subscriber received unrelated event %s", e.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeAllReceivesEverything(t *testing.T) {
	bus := NewEventBus()
	got := make(chan Event, 4)
	bus.SubscribeAll(func(e Event) { got <- e })

	bus.Publish(Event{Type: EventBotConnected})
	bus.PublishPriceUpdate("GBPUSD", 1.2700)

	seen := map[EventType]bool{}
	for i := 0; i < 2; i++ {
		seen[waitForEvent(t, got).Type] = true
	}
	if !seen[EventBotConnected] || !seen[EventPriceUpdate] {
		t.Errorf("catch-all subscriber missed events: %v", seen)
	}
}

func TestPublishStampsTimestamp(t *testing.T) {
	bus := NewEventBus()
	got := make(chan Event, 1)
	bus.Subscribe(EventOrderPlaced, func(e Event) { got <- e })

	before := time.Now()
	bus.PublishOrderPlaced(42, "EURUSD", "SELL", 1.0850, 0.1)

	e := waitForEvent(t, got)
	if e.Timestamp.Before(before) {
		t.Errorf("timestamp %v should not predate publish", e.Timestamp)
	}
	if e.Data["ticket"] != int64(42) {
		t.Errorf("ticket = %v, want 42", e.Data["ticket"])
	}
}

func TestPublishErrorIncludesCause(t *testing.T) {
	bus := NewEventBus()
	got := make(chan Event, 1)
	bus.Subscribe(EventError, func(e Event) { got <- e })

	bus.PublishError("bridge", "order rejected", errors.New("insufficient margin"))

	e := waitForEvent(t, got)
	if e.Data["source"] != "bridge" || e.Data["error"] != "insufficient margin" {
		t.Errorf("unexpected payload: %+v", e.Data)
	}
}
