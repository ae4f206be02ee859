package smc

import (
	"forex-trading-bot/internal/market"
)

// AnalyzeStructure derives trend, break-of-structure and change-of-character
// from swing points over the last StructureLookback candles.
//
// The two most recent swing highs and lows set the trend: higher high with
// higher low is bullish, lower high with lower low is bearish, anything else
// is ranging. A break-of-structure is recorded at the newest swing extreme in
// the trend direction. A change-of-character is flagged only when the newest
// swing contradicts the trend established by the swings before it.
func (d *Detector) AnalyzeStructure(candles []market.Candle) MarketStructure {
	structure := MarketStructure{Trend: TrendRanging}

	window := candles
	if len(window) > d.cfg.StructureLookback {
		window = window[len(window)-d.cfg.StructureLookback:]
	}

	highs := d.findSwingHighs(window)
	lows := d.findSwingLows(window)

	if len(highs) > 0 {
		structure.SwingHigh = highs[len(highs)-1].price
	}
	if len(lows) > 0 {
		structure.SwingLow = lows[len(lows)-1].price
	}
	if len(highs) < 2 || len(lows) < 2 {
		return structure
	}

	prevHigh, lastHigh := highs[len(highs)-2], highs[len(highs)-1]
	prevLow, lastLow := lows[len(lows)-2], lows[len(lows)-1]

	higherHigh := lastHigh.price > prevHigh.price
	higherLow := lastLow.price > prevLow.price
	lowerHigh := lastHigh.price < prevHigh.price
	lowerLow := lastLow.price < prevLow.price

	switch {
	case higherHigh && higherLow:
		structure.Trend = TrendBullish
		structure.LastBreakOfStructure = &StructureBreak{
			Price:     lastHigh.price,
			Direction: Bullish,
			Timestamp: lastHigh.timestamp,
		}
	case lowerHigh && lowerLow:
		structure.Trend = TrendBearish
		structure.LastBreakOfStructure = &StructureBreak{
			Price:     lastLow.price,
			Direction: Bearish,
			Timestamp: lastLow.timestamp,
		}
	}

	structure.LastChangeOfCharacter = d.detectChangeOfCharacter(highs, lows)
	return structure
}

// detectChangeOfCharacter checks whether the single newest swing point
// contradicts the trend established by the swings preceding it. A bearish
// CHoCH is a fresh lower-low while the established trend was still bullish;
// bullish CHoCH is the mirror case.
func (d *Detector) detectChangeOfCharacter(highs, lows []swingPoint) *StructureBreak {
	if len(highs) < 2 || len(lows) < 2 {
		return nil
	}

	// Trend before the newest swing arrived
	established := establishedTrend(highs, lows)
	if established == TrendRanging {
		return nil
	}

	lastHigh := highs[len(highs)-1]
	lastLow := lows[len(lows)-1]

	// The newest swing overall decides whether a contradiction just appeared
	if lastLow.index > lastHigh.index {
		if established == TrendBullish && lastLow.price < lows[len(lows)-2].price {
			return &StructureBreak{
				Price:     lastLow.price,
				Direction: Bearish,
				Timestamp: lastLow.timestamp,
			}
		}
	} else {
		if established == TrendBearish && lastHigh.price > highs[len(highs)-2].price {
			return &StructureBreak{
				Price:     lastHigh.price,
				Direction: Bullish,
				Timestamp: lastHigh.timestamp,
			}
		}
	}
	return nil
}

// establishedTrend derives the trend from the swing sequence with the newest
// point of the later-moving side excluded, approximating "the trend as it
// stood before the latest swing printed".
func establishedTrend(highs, lows []swingPoint) Trend {
	h := highs
	l := lows

	// Drop the single newest swing point
	if len(l) > 0 && (len(h) == 0 || l[len(l)-1].index > h[len(h)-1].index) {
		l = l[:len(l)-1]
	} else if len(h) > 0 {
		h = h[:len(h)-1]
	}
	if len(h) < 2 || len(l) < 2 {
		return TrendRanging
	}

	higherHigh := h[len(h)-1].price > h[len(h)-2].price
	higherLow := l[len(l)-1].price > l[len(l)-2].price
	lowerHigh := h[len(h)-1].price < h[len(h)-2].price
	lowerLow := l[len(l)-1].price < l[len(l)-2].price

	switch {
	case higherHigh && higherLow:
		return TrendBullish
	case lowerHigh && lowerLow:
		return TrendBearish
	}
	return TrendRanging
}
