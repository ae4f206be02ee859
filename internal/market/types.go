package market

import (
	"fmt"
	"strings"
	"time"
)

// Candle represents a single OHLCV candle. Immutable once observed.
type Candle struct {
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

// IsBullish reports whether the candle closed above its open
func (c Candle) IsBullish() bool {
	return c.Close > c.Open
}

// IsBearish reports whether the candle closed below its open
func (c Candle) IsBearish() bool {
	return c.Close < c.Open
}

// Body returns the absolute candle body size
func (c Candle) Body() float64 {
	if c.Close > c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Range returns high minus low
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// Credentials identifies an MT5 account on the bridge
type Credentials struct {
	Login    int64  `json:"login"`
	Password string `json:"password"`
	Server   string `json:"server"`
}

// AccountInfo represents broker account state
type AccountInfo struct {
	Login        int64   `json:"login"`
	Balance      float64 `json:"balance"`
	Equity       float64 `json:"equity"`
	Margin       float64 `json:"margin"`
	FreeMargin   float64 `json:"free_margin"`
	Currency     string  `json:"currency"`
	Leverage     int     `json:"leverage"`
	TradeAllowed bool    `json:"trade_allowed"`
}

// TradingCapabilities reports whether the account may trade and why not
type TradingCapabilities struct {
	CanTrade bool     `json:"can_trade"`
	Issues   []string `json:"issues"`
}

// OrderSide is the direction of an order
type OrderSide string

const (
	OrderBuy  OrderSide = "BUY"
	OrderSell OrderSide = "SELL"
)

// OrderRequest describes an order to place through the bridge
type OrderRequest struct {
	Symbol     string    `json:"symbol"`
	Side       OrderSide `json:"side"`
	Volume     float64   `json:"volume"` // lots
	Price      float64   `json:"price,omitempty"`
	StopLoss   float64   `json:"sl,omitempty"`
	TakeProfit float64   `json:"tp,omitempty"`
	Comment    string    `json:"comment,omitempty"`
}

// OrderResult is the bridge's response to a placed order
type OrderResult struct {
	Ticket int64   `json:"ticket"`
	Symbol string  `json:"symbol"`
	Side   string  `json:"side"`
	Volume float64 `json:"volume"`
	Price  float64 `json:"price"`
}

// Tick is a single streamed price update
type Tick struct {
	Symbol    string    `json:"symbol"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
	Timestamp time.Time `json:"timestamp"`
}

// SplitPair splits a 6-letter forex pair into base and quote currency.
// Longer symbols with a broker suffix ("EURUSDm") keep the first six letters.
func SplitPair(symbol string) (base, quote string, err error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if len(s) < 6 {
		return "", "", fmt.Errorf("symbol %q too short to split into currencies", symbol)
	}
	return s[:3], s[3:6], nil
}

// PipSize returns the standard pip increment for a pair.
// JPY-quoted pairs use 0.01; everything else 0.0001.
func PipSize(symbol string) float64 {
	if _, quote, err := SplitPair(symbol); err == nil && quote == "JPY" {
		return 0.01
	}
	return 0.0001
}
