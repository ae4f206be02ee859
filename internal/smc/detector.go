package smc

import (
	"time"

	"forex-trading-bot/internal/market"
)

// Config holds detector thresholds. Zero values fall back to the documented
// defaults in NewDetector.
type Config struct {
	MinCandles        int     // Below this Analyze returns the canonical empty result
	MinMovePercent    float64 // Minimum 3-candle reversal move for an order block
	MinBlockStrength  float64 // Order blocks at or below this are discarded
	MaxOrderBlocks    int     // Newest N kept, FIFO by detection order
	MaxFairValueGaps  int     // Newest N unfilled gaps kept
	ClusterTolerance  float64 // Relative distance percent for liquidity clustering
	MinZoneStrength   float64 // Liquidity clusters below this are discarded
	MaxLiquidityZones int
	SwingWindow       int // Neighbors per side for a swing point
	StructureLookback int // Candles considered for market structure
}

// Detector derives order blocks, fair value gaps, liquidity zones and market
// structure from a candle series. All methods are pure: they never mutate the
// input series and recompute everything from scratch each pass.
type Detector struct {
	cfg Config
}

// NewDetector creates a detector, filling unset config fields with defaults
func NewDetector(cfg Config) *Detector {
	if cfg.MinCandles <= 0 {
		cfg.MinCandles = 20
	}
	if cfg.MinMovePercent <= 0 {
		cfg.MinMovePercent = 0.05
	}
	if cfg.MinBlockStrength <= 0 {
		cfg.MinBlockStrength = 20
	}
	if cfg.MaxOrderBlocks <= 0 {
		cfg.MaxOrderBlocks = 10
	}
	if cfg.MaxFairValueGaps <= 0 {
		cfg.MaxFairValueGaps = 5
	}
	if cfg.ClusterTolerance <= 0 {
		cfg.ClusterTolerance = 0.2
	}
	if cfg.MinZoneStrength <= 0 {
		cfg.MinZoneStrength = 30
	}
	if cfg.MaxLiquidityZones <= 0 {
		cfg.MaxLiquidityZones = 6
	}
	if cfg.SwingWindow <= 0 {
		cfg.SwingWindow = 2
	}
	if cfg.StructureLookback <= 0 {
		cfg.StructureLookback = 20
	}
	return &Detector{cfg: cfg}
}

// Analyze runs all detections over a candle series. Fewer than MinCandles
// candles yields the canonical empty analysis rather than an error.
func (d *Detector) Analyze(symbol string, candles []market.Candle, currentPrice float64) Analysis {
	if len(candles) < d.cfg.MinCandles {
		return emptyAnalysis(symbol, currentPrice)
	}

	return Analysis{
		Symbol:         symbol,
		CurrentPrice:   currentPrice,
		OrderBlocks:    d.DetectOrderBlocks(candles),
		FairValueGaps:  d.DetectFairValueGaps(candles, currentPrice),
		LiquidityZones: d.DetectLiquidityZones(candles),
		Structure:      d.AnalyzeStructure(candles),
		Timestamp:      time.Now().UTC(),
	}
}
