package smc

import (
	"time"
)

// Direction marks the side a pattern favors
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
)

// Trend represents the prevailing market structure direction
type Trend string

const (
	TrendBullish Trend = "bullish"
	TrendBearish Trend = "bearish"
	TrendRanging Trend = "ranging"
)

// LiquiditySide marks which side of price a liquidity cluster sits on
type LiquiditySide string

const (
	Buyside  LiquiditySide = "buyside"  // Clustered swing highs, stops above price
	Sellside LiquiditySide = "sellside" // Clustered swing lows, stops below price
)

// OrderBlock is a candle range where a sharp reversal originated
type OrderBlock struct {
	Direction Direction `json:"direction"`
	PriceHigh float64   `json:"price_high"`
	PriceLow  float64   `json:"price_low"`
	Timestamp time.Time `json:"timestamp"`
	Strength  float64   `json:"strength"` // 0-100
	Tested    bool      `json:"tested"`   // Price re-entered the block after formation
}

// Contains reports whether a price sits inside the block range
func (ob OrderBlock) Contains(price float64) bool {
	return price >= ob.PriceLow && price <= ob.PriceHigh
}

// FairValueGap is a price range skipped over by rapid movement
type FairValueGap struct {
	Direction      Direction `json:"direction"`
	PriceHigh      float64   `json:"price_high"`
	PriceLow       float64   `json:"price_low"`
	Midpoint       float64   `json:"midpoint"`
	Timestamp      time.Time `json:"timestamp"`
	Filled         bool      `json:"filled"`
	FillPercentage float64   `json:"fill_percentage"` // 0-100, against current price
}

// LiquidityZone is a clustered swing level where stops concentrate
type LiquidityZone struct {
	Side      LiquiditySide `json:"side"`
	Level     float64       `json:"level"`
	Strength  float64       `json:"strength"` // 0-100
	Timestamp time.Time     `json:"timestamp"`
}

// StructureBreak records a break-of-structure or change-of-character point
type StructureBreak struct {
	Price     float64   `json:"price"`
	Direction Direction `json:"direction"`
	Timestamp time.Time `json:"timestamp"`
}

// MarketStructure summarizes trend state derived from recent swings
type MarketStructure struct {
	Trend                 Trend           `json:"trend"`
	LastBreakOfStructure  *StructureBreak `json:"last_break_of_structure,omitempty"`
	LastChangeOfCharacter *StructureBreak `json:"last_change_of_character,omitempty"`
	SwingHigh             float64         `json:"swing_high"`
	SwingLow              float64         `json:"swing_low"`
}

// Analysis is the complete detector output for one evaluation instant
type Analysis struct {
	Symbol         string          `json:"symbol"`
	CurrentPrice   float64         `json:"current_price"`
	OrderBlocks    []OrderBlock    `json:"order_blocks"`
	FairValueGaps  []FairValueGap  `json:"fair_value_gaps"`
	LiquidityZones []LiquidityZone `json:"liquidity_zones"`
	Structure      MarketStructure `json:"structure"`
	Timestamp      time.Time       `json:"timestamp"`
}

// emptyAnalysis is the canonical degraded result for short series
func emptyAnalysis(symbol string, currentPrice float64) Analysis {
	return Analysis{
		Symbol:         symbol,
		CurrentPrice:   currentPrice,
		OrderBlocks:    []OrderBlock{},
		FairValueGaps:  []FairValueGap{},
		LiquidityZones: []LiquidityZone{},
		Structure:      MarketStructure{Trend: TrendRanging},
		Timestamp:      time.Now().UTC(),
	}
}
