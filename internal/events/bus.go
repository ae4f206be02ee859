package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventBotConnected        EventType = "BOT_CONNECTED"
	EventBotStarted          EventType = "BOT_STARTED"
	EventBotStopped          EventType = "BOT_STOPPED"
	EventAutoTradingEnabled  EventType = "AUTO_TRADING_ENABLED"
	EventAutoTradingDisabled EventType = "AUTO_TRADING_DISABLED"
	EventEmergencyStop       EventType = "EMERGENCY_STOP"
	EventEmergencyCleared    EventType = "EMERGENCY_CLEARED"
	EventSignalGenerated     EventType = "SIGNAL_GENERATED"
	EventSignalExecuted      EventType = "SIGNAL_EXECUTED"
	EventSignalDiscarded     EventType = "SIGNAL_DISCARDED"
	EventOrderPlaced         EventType = "ORDER_PLACED"
	EventPriceUpdate         EventType = "PRICE_UPDATE"
	EventNewsEvent           EventType = "NEWS_EVENT"
	EventHealthCheckFailed   EventType = "HEALTH_CHECK_FAILED"
	EventError               EventType = "ERROR"
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
	allSubs     []Subscriber
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

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event) // Run in goroutine to avoid blocking
		}
	}

	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishSignal publishes a signal generated event
func (eb *EventBus) PublishSignal(signalID, symbol, side string, score, price float64) {
	eb.Publish(Event{
		Type: EventSignalGenerated,
		Data: map[string]interface{}{
			"signal_id": signalID,
			"symbol":    symbol,
			"side":      side,
			"score":     score,
			"price":     price,
		},
	})
}

// PublishOrderPlaced publishes an order placed event
func (eb *EventBus) PublishOrderPlaced(ticket int64, symbol, side string, price, volume float64) {
	eb.Publish(Event{
		Type: EventOrderPlaced,
		Data: map[string]interface{}{
			"ticket": ticket,
			"symbol": symbol,
			"side":   side,
			"price":  price,
			"volume": volume,
		},
	})
}

// PublishPriceUpdate publishes a price update event
func (eb *EventBus) PublishPriceUpdate(symbol string, price float64) {
	eb.Publish(Event{
		Type: EventPriceUpdate,
		Data: map[string]interface{}{
			"symbol": symbol,
			"price":  price,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventError,
		Data: data,
	})
}
