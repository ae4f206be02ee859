package news

import (
	"strings"
	"sync"
	"time"
)

// Impact is the published severity of a news event
type Impact string

const (
	ImpactHigh   Impact = "HIGH"
	ImpactMedium Impact = "MEDIUM"
	ImpactLow    Impact = "LOW"
)

// Multiplier scales a model's averages by event severity
func (i Impact) Multiplier() float64 {
	switch i {
	case ImpactHigh:
		return 1.5
	case ImpactMedium:
		return 1.2
	case ImpactLow:
		return 0.8
	default:
		return 1.0
	}
}

// ParseImpact normalizes an impact string, defaulting to LOW
func ParseImpact(s string) Impact {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "HIGH":
		return ImpactHigh
	case "MEDIUM", "MED":
		return ImpactMedium
	default:
		return ImpactLow
	}
}

// Event is one historical (or upcoming) news item with its observed market
// response. Upcoming events carry only Impact, Currency and Sentiment.
type Event struct {
	Timestamp       time.Time `json:"timestamp"`
	Title           string    `json:"title"`
	Impact          Impact    `json:"impact"`
	Currency        string    `json:"currency"`
	PreVolatility   float64   `json:"pre_volatility"`  // fraction
	PostVolatility  float64   `json:"post_volatility"` // fraction
	PriceChangePct  float64   `json:"price_change_pct"`
	Direction       string    `json:"direction"` // "up", "down" or "neutral"
	RecoveryMinutes float64   `json:"recovery_minutes"`
	Sentiment       float64   `json:"sentiment"` // -1..1, expectation going in
}

// ImpactModel holds per-currency statistics rebuilt from bounded history.
// Recomputation is the source of truth; the model is never persisted.
type ImpactModel struct {
	Currency                  string    `json:"currency"`
	AverageVolatilityIncrease float64   `json:"average_volatility_increase"`
	AveragePriceMovePct       float64   `json:"average_price_move_pct"`
	AverageRecoveryMinutes    float64   `json:"average_recovery_minutes"`
	DirectionalAccuracy       float64   `json:"directional_accuracy"` // 0-1
	Confidence                float64   `json:"confidence"`           // 0-100
	LastUpdated               time.Time `json:"last_updated"`
	EventCount                int       `json:"event_count"`
}

// eventRing is a fixed-capacity FIFO of events per currency
type eventRing struct {
	buf   []Event
	head  int
	count int
}

func newEventRing(capacity int) *eventRing {
	return &eventRing{buf: make([]Event, capacity)}
}

// push appends an event, evicting the oldest when full
func (r *eventRing) push(e Event) {
	if r.count < len(r.buf) {
		r.buf[(r.head+r.count)%len(r.buf)] = e
		r.count++
		return
	}
	r.buf[r.head] = e
	r.head = (r.head + 1) % len(r.buf)
}

// items returns events oldest first
func (r *eventRing) items() []Event {
	out := make([]Event, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(r.head+i)%len(r.buf)])
	}
	return out
}

// ImpactTracker maintains one ImpactModel per currency, rebuilt in full on
// every append. History is bounded so rebuilds stay O(capacity).
type ImpactTracker struct {
	mu       sync.RWMutex
	capacity int
	history  map[string]*eventRing
	models   map[string]*ImpactModel
}

// NewImpactTracker creates a tracker with the given per-currency history cap
func NewImpactTracker(capacity int) *ImpactTracker {
	if capacity <= 0 {
		capacity = 100
	}
	return &ImpactTracker{
		capacity: capacity,
		history:  make(map[string]*eventRing),
		models:   make(map[string]*ImpactModel),
	}
}

// AddEvent appends a historical event and rebuilds that currency's model
func (t *ImpactTracker) AddEvent(e Event) {
	ccy := strings.ToUpper(e.Currency)
	if ccy == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	ring, ok := t.history[ccy]
	if !ok {
		ring = newEventRing(t.capacity)
		t.history[ccy] = ring
	}
	ring.push(e)
	t.models[ccy] = rebuildModel(ccy, ring.items())
}

// UpdateModelWithOutcome records a realized outcome for an event and triggers
// a full rebuild of that currency's model.
func (t *ImpactTracker) UpdateModelWithOutcome(e Event) {
	t.AddEvent(e)
}

// Model returns the model for a currency, or nil if none has been built
func (t *ImpactTracker) Model(currency string) *ImpactModel {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if m, ok := t.models[strings.ToUpper(currency)]; ok {
		copied := *m
		return &copied
	}
	return nil
}

// EventCount returns the bounded history size for a currency
func (t *ImpactTracker) EventCount(currency string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if ring, ok := t.history[strings.ToUpper(currency)]; ok {
		return ring.count
	}
	return 0
}

// rebuildModel recomputes statistics over the full bounded history. Always a
// complete pass, never incremental.
func rebuildModel(currency string, events []Event) *ImpactModel {
	model := &ImpactModel{
		Currency:    currency,
		LastUpdated: time.Now().UTC(),
		EventCount:  len(events),
	}
	if len(events) == 0 {
		return model
	}

	var volSum, moveSum, recoverySum float64
	directional := 0
	matches := 0

	for _, e := range events {
		volSum += e.PostVolatility - e.PreVolatility
		moveSum += abs(e.PriceChangePct)
		recoverySum += e.RecoveryMinutes

		switch e.Direction {
		case "up":
			directional++
			if e.PriceChangePct > 0 {
				matches++
			}
		case "down":
			directional++
			if e.PriceChangePct < 0 {
				matches++
			}
		}
	}

	n := float64(len(events))
	model.AverageVolatilityIncrease = volSum / n
	model.AveragePriceMovePct = moveSum / n
	model.AverageRecoveryMinutes = recoverySum / n
	if directional > 0 {
		model.DirectionalAccuracy = float64(matches) / float64(directional)
	}
	// Confidence grows with sample size, 5 points per event, capped at 100
	model.Confidence = minF(n*5, 100)

	return model
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
