package database

import "time"

// NewsEventRecord is a persisted news event with its observed market response
type NewsEventRecord struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Currency        string    `json:"currency"`
	Impact          string    `json:"impact"`
	EventTime       time.Time `json:"event_time"`
	Sentiment       float64   `json:"sentiment"`
	PreVolatility   float64   `json:"pre_volatility"`
	PostVolatility  float64   `json:"post_volatility"`
	PriceChangePct  float64   `json:"price_change_pct"`
	Direction       string    `json:"direction"`
	RecoveryMinutes float64   `json:"recovery_minutes"`
	CreatedAt       time.Time `json:"created_at"`
}

// SignalRecord is a persisted trade signal
type SignalRecord struct {
	ID            string     `json:"id"`
	Symbol        string     `json:"symbol"`
	Bias          string     `json:"bias"`
	Score         float64    `json:"score"`
	Factors       []string   `json:"factors"`
	EntryHigh     float64    `json:"entry_high"`
	EntryLow      float64    `json:"entry_low"`
	Invalidation  float64    `json:"invalidation"`
	SoftAnchor    bool       `json:"soft_anchor"`
	PriceAtSignal float64    `json:"price_at_signal"`
	Lots          float64    `json:"lots"`
	Ticket        int64      `json:"ticket"`
	Status        string     `json:"status"`
	StatusReason  string     `json:"status_reason"`
	CreatedAt     time.Time  `json:"created_at"`
	ExecutedAt    *time.Time `json:"executed_at,omitempty"`
}

// TradeRecord is a persisted trade lifecycle row
type TradeRecord struct {
	ID         int64      `json:"id"`
	SignalID   string     `json:"signal_id"`
	Ticket     int64      `json:"ticket"`
	Symbol     string     `json:"symbol"`
	Side       string     `json:"side"`
	EntryPrice float64    `json:"entry_price"`
	ExitPrice  *float64   `json:"exit_price,omitempty"`
	Lots       float64    `json:"lots"`
	StopLoss   float64    `json:"stop_loss"`
	TakeProfit float64    `json:"take_profit"`
	PnL        *float64   `json:"pnl,omitempty"`
	EntryTime  time.Time  `json:"entry_time"`
	ExitTime   *time.Time `json:"exit_time,omitempty"`
	Status     string     `json:"status"`
}
