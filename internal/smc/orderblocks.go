package smc

import (
	"math"

	"forex-trading-bot/internal/market"
)

// DetectOrderBlocks scans candle triples for 3-candle reversals. The block
// range is the originating candle (the last opposing candle before the move).
// Strength grows with the size of the reversal move relative to the minimum
// threshold and is capped at 100. Only blocks stronger than MinBlockStrength
// survive; the newest MaxOrderBlocks are kept in detection order.
func (d *Detector) DetectOrderBlocks(candles []market.Candle) []OrderBlock {
	blocks := make([]OrderBlock, 0)
	if len(candles) < 3 {
		return blocks
	}

	for i := 1; i < len(candles)-1; i++ {
		prev, cur, next := candles[i-1], candles[i], candles[i+1]

		// Bullish: bearish candle followed by two bullish candles
		if prev.IsBearish() && cur.IsBullish() && next.IsBullish() {
			movePct := percentChange(prev.Close, next.Close)
			if movePct > d.cfg.MinMovePercent {
				block := OrderBlock{
					Direction: Bullish,
					PriceHigh: prev.High,
					PriceLow:  prev.Low,
					Timestamp: prev.Timestamp,
					Strength:  d.blockStrength(movePct),
					Tested:    blockTested(candles[i+2:], prev.Low, prev.High),
				}
				if block.Strength > d.cfg.MinBlockStrength {
					blocks = append(blocks, block)
				}
			}
		}

		// Bearish: bullish candle followed by two bearish candles
		if prev.IsBullish() && cur.IsBearish() && next.IsBearish() {
			movePct := percentChange(next.Close, prev.Close)
			if movePct > d.cfg.MinMovePercent {
				block := OrderBlock{
					Direction: Bearish,
					PriceHigh: prev.High,
					PriceLow:  prev.Low,
					Timestamp: prev.Timestamp,
					Strength:  d.blockStrength(movePct),
					Tested:    blockTested(candles[i+2:], prev.Low, prev.High),
				}
				if block.Strength > d.cfg.MinBlockStrength {
					blocks = append(blocks, block)
				}
			}
		}
	}

	// FIFO eviction by detection order, newest kept
	if len(blocks) > d.cfg.MaxOrderBlocks {
		blocks = blocks[len(blocks)-d.cfg.MaxOrderBlocks:]
	}
	return blocks
}

// blockStrength maps a reversal move to 0-100. The move is measured in
// multiples of the minimum threshold so the score is meaningful across
// intraday granularities; it is monotonic in move size.
func (d *Detector) blockStrength(movePct float64) float64 {
	moveStrength := movePct / d.cfg.MinMovePercent
	return math.Min(moveStrength*10, 100)
}

// blockTested reports whether any later candle re-entered the block range
func blockTested(later []market.Candle, low, high float64) bool {
	for _, c := range later {
		if c.Low <= high && c.High >= low {
			return true
		}
	}
	return false
}

// percentChange returns the move from a to b as a percentage of a.
// Positive when b is above a.
func percentChange(a, b float64) float64 {
	if a == 0 {
		return 0
	}
	return (b - a) / a * 100
}
