package smc

import (
	"forex-trading-bot/internal/market"
)

// DetectFairValueGaps scans candle triples (i-2, i-1, i) for price ranges the
// middle candle jumped over. Fill status is recomputed against the current
// price on every pass; gaps at or past 50% fill are dropped and the newest
// MaxFairValueGaps unfilled gaps are kept.
func (d *Detector) DetectFairValueGaps(candles []market.Candle, currentPrice float64) []FairValueGap {
	gaps := make([]FairValueGap, 0)
	if len(candles) < 3 {
		return gaps
	}

	for i := 2; i < len(candles); i++ {
		first, middle, last := candles[i-2], candles[i-1], candles[i]

		// Bullish FVG: the last candle's low never reached back to the
		// first candle's high
		if last.Low > first.High {
			gap := FairValueGap{
				Direction: Bullish,
				PriceHigh: last.Low,
				PriceLow:  first.High,
				Midpoint:  (last.Low + first.High) / 2,
				Timestamp: middle.Timestamp,
			}
			gap.FillPercentage = bullishFillPercent(gap, currentPrice)
			gap.Filled = gap.FillPercentage >= 50
			if !gap.Filled {
				gaps = append(gaps, gap)
			}
		}

		// Bearish FVG: the last candle's high never reached back up to the
		// first candle's low
		if last.High < first.Low {
			gap := FairValueGap{
				Direction: Bearish,
				PriceHigh: first.Low,
				PriceLow:  last.High,
				Midpoint:  (first.Low + last.High) / 2,
				Timestamp: middle.Timestamp,
			}
			gap.FillPercentage = bearishFillPercent(gap, currentPrice)
			gap.Filled = gap.FillPercentage >= 50
			if !gap.Filled {
				gaps = append(gaps, gap)
			}
		}
	}

	if len(gaps) > d.cfg.MaxFairValueGaps {
		gaps = gaps[len(gaps)-d.cfg.MaxFairValueGaps:]
	}
	return gaps
}

// bullishFillPercent measures how far price has traded back down into a
// bullish gap. Price at or above the gap top means untouched; at or below the
// bottom means fully filled.
func bullishFillPercent(gap FairValueGap, currentPrice float64) float64 {
	size := gap.PriceHigh - gap.PriceLow
	if size <= 0 {
		return 100
	}
	fill := (gap.PriceHigh - currentPrice) / size * 100
	return clampPercent(fill)
}

// bearishFillPercent measures how far price has traded back up into a bearish
// gap.
func bearishFillPercent(gap FairValueGap, currentPrice float64) float64 {
	size := gap.PriceHigh - gap.PriceLow
	if size <= 0 {
		return 100
	}
	fill := (currentPrice - gap.PriceLow) / size * 100
	return clampPercent(fill)
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
