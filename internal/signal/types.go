package signal

import (
	"time"

	"forex-trading-bot/internal/confluence"
)

// Status tracks a signal through its lifecycle
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusExecuted  Status = "EXECUTED"
	StatusDiscarded Status = "DISCARDED"
	StatusFailed    Status = "FAILED"
	StatusExpired   Status = "EXPIRED"
)

// Signal is one actionable trade recommendation produced by the generator
type Signal struct {
	ID                string                `json:"id"`
	Symbol            string                `json:"symbol"`
	Bias              confluence.Bias       `json:"bias"`
	Score             float64               `json:"score"`
	Factors           []string              `json:"factors"`
	EntryZone         *confluence.EntryZone `json:"entry_zone,omitempty"`
	InvalidationLevel float64               `json:"invalidation_level"`
	SoftAnchor        bool                  `json:"soft_anchor"`
	PriceAtSignal     float64               `json:"price_at_signal"`
	Lots              float64               `json:"lots,omitempty"`
	Ticket            int64                 `json:"ticket,omitempty"`
	Status            Status                `json:"status"`
	StatusReason      string                `json:"status_reason,omitempty"`
	CreatedAt         time.Time             `json:"created_at"`
	ExecutedAt        *time.Time            `json:"executed_at,omitempty"`
}

// Configuration controls the generation loop and execution behavior
type Configuration struct {
	Symbols           []string
	IntervalSec       int
	TimeframeMinutes  int
	HistoryCandles    int
	MinScore          float64
	MaxPendingSignals int
	UseStopLoss       bool
	UseTakeProfit     bool

	// UTC "HH:MM" window; empty means around the clock
	TradingHoursStart string
	TradingHoursEnd   string
}

// applyDefaults fills zero-valued fields with workable settings
func (c *Configuration) applyDefaults() {
	if c.IntervalSec <= 0 {
		c.IntervalSec = 180
	}
	if c.TimeframeMinutes <= 0 {
		c.TimeframeMinutes = 15
	}
	if c.HistoryCandles <= 0 {
		c.HistoryCandles = 100
	}
	if c.MaxPendingSignals <= 0 {
		c.MaxPendingSignals = 20
	}
}
