package confluence

import (
	"fmt"
	"math"

	"forex-trading-bot/internal/news"
	"forex-trading-bot/internal/smc"
)

// Bias is the directional outcome of a confluence evaluation
type Bias string

const (
	BiasBuy     Bias = "BUY"
	BiasSell    Bias = "SELL"
	BiasNeutral Bias = "NEUTRAL"
)

// Point weights per confluence factor
const (
	pointsTrend      = 15.0
	pointsBOS        = 12.0
	pointsOrderBlock = 15.0 // scaled by block strength
	pointsFVG        = 12.0
	pointsLiquidity  = 10.0
	pointsNoChoch    = 5.0 // both sides when no change of character printed
	pointsChochAlign = 8.0 // the side a change of character confirms
	pointsStackedOBs = 8.0
	pointsNewsMax    = 15.0 // scaled by model confidence and event impact

	liquidityProximityPct = 1.0
)

// minBiasPoints is the assignment gate: one side must reach this total and
// strictly beat the other, otherwise the evaluation abstains.
const minBiasPoints = 40.0

// EntryZone is the price range a signal should be entered within
type EntryZone struct {
	High float64 `json:"high"`
	Low  float64 `json:"low"`
}

// Result is one confluence evaluation. Factors are human-readable, listed in
// detection order for auditing.
type Result struct {
	Score             float64    `json:"score"` // 0-100, zero when no bias assigned
	Factors           []string   `json:"factors"`
	Bias              Bias       `json:"bias"`
	EntryZone         *EntryZone `json:"entry_zone,omitempty"`
	InvalidationLevel float64    `json:"invalidation_level,omitempty"`
	SoftAnchor        bool       `json:"soft_anchor"` // entry zone synthesized around price, not pattern-backed
	BullishPoints     float64    `json:"bullish_points"`
	BearishPoints     float64    `json:"bearish_points"`
}

// Scorer fuses pattern analysis with the news impact model into a single
// directional bias per evaluation instant.
type Scorer struct {
	minNewsConfidence float64
}

// NewScorer creates a scorer with default thresholds
func NewScorer() *Scorer {
	return &Scorer{minNewsConfidence: 30}
}

// Score evaluates one analysis snapshot. The news prediction is optional;
// passing nil scores patterns alone.
func (s *Scorer) Score(analysis smc.Analysis, prediction *news.Prediction) Result {
	result := Result{
		Bias:    BiasNeutral,
		Factors: make([]string, 0, 8),
	}

	var bullish, bearish float64
	price := analysis.CurrentPrice

	// 1. Market structure trend
	switch analysis.Structure.Trend {
	case smc.TrendBullish:
		bullish += pointsTrend
		result.Factors = append(result.Factors, "Bullish market structure (higher highs and higher lows)")
	case smc.TrendBearish:
		bearish += pointsTrend
		result.Factors = append(result.Factors, "Bearish market structure (lower highs and lower lows)")
	}

	// 2. Recent break of structure
	if bos := analysis.Structure.LastBreakOfStructure; bos != nil {
		if bos.Direction == smc.Bullish {
			bullish += pointsBOS
			result.Factors = append(result.Factors, fmt.Sprintf("Bullish break of structure at %.5f", bos.Price))
		} else {
			bearish += pointsBOS
			result.Factors = append(result.Factors, fmt.Sprintf("Bearish break of structure at %.5f", bos.Price))
		}
	}

	// 3. Price trading inside an order block, scaled by block strength
	if block := containingBlock(analysis.OrderBlocks, price); block != nil {
		scaled := pointsOrderBlock * block.Strength / 100
		if block.Direction == smc.Bullish {
			bullish += scaled
			result.Factors = append(result.Factors, fmt.Sprintf("Price inside bullish order block %.5f-%.5f (strength %.0f)", block.PriceLow, block.PriceHigh, block.Strength))
		} else {
			bearish += scaled
			result.Factors = append(result.Factors, fmt.Sprintf("Price inside bearish order block %.5f-%.5f (strength %.0f)", block.PriceLow, block.PriceHigh, block.Strength))
		}
	}

	// 4. Unfilled fair value gaps
	if hasUnfilledGap(analysis.FairValueGaps, smc.Bullish) {
		bullish += pointsFVG
		result.Factors = append(result.Factors, "Unfilled bullish fair value gap")
	}
	if hasUnfilledGap(analysis.FairValueGaps, smc.Bearish) {
		bearish += pointsFVG
		result.Factors = append(result.Factors, "Unfilled bearish fair value gap")
	}

	// 5. Target-side liquidity within reach: buyside pools above price pull
	// longs, sellside pools below pull shorts
	if zoneNear(analysis.LiquidityZones, smc.Buyside, price) {
		bullish += pointsLiquidity
		result.Factors = append(result.Factors, "Buyside liquidity within 1% above price")
	}
	if zoneNear(analysis.LiquidityZones, smc.Sellside, price) {
		bearish += pointsLiquidity
		result.Factors = append(result.Factors, "Sellside liquidity within 1% below price")
	}

	// 6. Change of character: absence reassures both sides a little, a printed
	// one strongly backs its own direction and denies the other
	if choch := analysis.Structure.LastChangeOfCharacter; choch == nil {
		bullish += pointsNoChoch
		bearish += pointsNoChoch
	} else if choch.Direction == smc.Bullish {
		bullish += pointsChochAlign
		result.Factors = append(result.Factors, fmt.Sprintf("Bullish change of character at %.5f", choch.Price))
	} else {
		bearish += pointsChochAlign
		result.Factors = append(result.Factors, fmt.Sprintf("Bearish change of character at %.5f", choch.Price))
	}

	// 7. Stacked order blocks
	if countBlocks(analysis.OrderBlocks, smc.Bullish) >= 2 {
		bullish += pointsStackedOBs
		result.Factors = append(result.Factors, "Multiple stacked bullish order blocks")
	}
	if countBlocks(analysis.OrderBlocks, smc.Bearish) >= 2 {
		bearish += pointsStackedOBs
		result.Factors = append(result.Factors, "Multiple stacked bearish order blocks")
	}

	// 8. News sentiment alignment
	if prediction != nil && prediction.Confidence > s.minNewsConfidence {
		newsPoints := math.Min(pointsNewsMax, pointsNewsMax*(prediction.Confidence/100)*prediction.ImpactMultiplier)
		if prediction.Direction.Up > prediction.Direction.Down {
			bullish += newsPoints
			result.Factors = append(result.Factors, fmt.Sprintf("News model favors upside (%.0f%% up, confidence %.0f)", prediction.Direction.Up*100, prediction.Confidence))
		} else if prediction.Direction.Down > prediction.Direction.Up {
			bearish += newsPoints
			result.Factors = append(result.Factors, fmt.Sprintf("News model favors downside (%.0f%% down, confidence %.0f)", prediction.Direction.Down*100, prediction.Confidence))
		}
	}

	result.BullishPoints = bullish
	result.BearishPoints = bearish

	// Ties and sub-threshold totals abstain; the gate keeps low-conviction
	// setups out of the signal queue entirely
	switch {
	case bullish >= minBiasPoints && bullish > bearish:
		result.Bias = BiasBuy
		result.Score = math.Min(bullish, 100)
	case bearish >= minBiasPoints && bearish > bullish:
		result.Bias = BiasSell
		result.Score = math.Min(bearish, 100)
	default:
		return result
	}

	s.resolveEntry(&result, analysis)
	return result
}

// resolveEntry anchors the entry zone and invalidation level: order block
// first, unfilled gap second, and as a last resort a tight synthetic zone
// around the current price so a high-score signal is never dropped for lack
// of geometry.
func (s *Scorer) resolveEntry(result *Result, analysis smc.Analysis) {
	direction := smc.Bullish
	if result.Bias == BiasSell {
		direction = smc.Bearish
	}
	price := analysis.CurrentPrice

	if block := matchingBlock(analysis.OrderBlocks, direction, price); block != nil {
		result.EntryZone = &EntryZone{High: block.PriceHigh, Low: block.PriceLow}
		if direction == smc.Bullish {
			result.InvalidationLevel = block.PriceLow * (1 - 0.002)
		} else {
			result.InvalidationLevel = block.PriceHigh * (1 + 0.002)
		}
		return
	}

	if gap := newestGap(analysis.FairValueGaps, direction); gap != nil {
		result.EntryZone = &EntryZone{High: gap.PriceHigh, Low: gap.PriceLow}
		if direction == smc.Bullish {
			result.InvalidationLevel = gap.PriceLow * (1 - 0.002)
		} else {
			result.InvalidationLevel = gap.PriceHigh * (1 + 0.002)
		}
		return
	}

	// Price-only anchor; downstream sizing treats this as lower conviction
	result.SoftAnchor = true
	result.EntryZone = &EntryZone{High: price * 1.001, Low: price * 0.999}
	if direction == smc.Bullish {
		result.InvalidationLevel = price * (1 - 0.005)
	} else {
		result.InvalidationLevel = price * (1 + 0.005)
	}
}

// containingBlock returns the newest block whose range contains the price
func containingBlock(blocks []smc.OrderBlock, price float64) *smc.OrderBlock {
	for i := len(blocks) - 1; i >= 0; i-- {
		if blocks[i].Contains(price) {
			return &blocks[i]
		}
	}
	return nil
}

// matchingBlock prefers a matching-direction block containing the price, then
// falls back to the newest matching-direction block.
func matchingBlock(blocks []smc.OrderBlock, direction smc.Direction, price float64) *smc.OrderBlock {
	var newest *smc.OrderBlock
	for i := len(blocks) - 1; i >= 0; i-- {
		if blocks[i].Direction != direction {
			continue
		}
		if blocks[i].Contains(price) {
			return &blocks[i]
		}
		if newest == nil {
			newest = &blocks[i]
		}
	}
	return newest
}

func newestGap(gaps []smc.FairValueGap, direction smc.Direction) *smc.FairValueGap {
	for i := len(gaps) - 1; i >= 0; i-- {
		if gaps[i].Direction == direction && !gaps[i].Filled {
			return &gaps[i]
		}
	}
	return nil
}

func hasUnfilledGap(gaps []smc.FairValueGap, direction smc.Direction) bool {
	for _, g := range gaps {
		if g.Direction == direction && !g.Filled {
			return true
		}
	}
	return false
}

func countBlocks(blocks []smc.OrderBlock, direction smc.Direction) int {
	count := 0
	for _, b := range blocks {
		if b.Direction == direction {
			count++
		}
	}
	return count
}

// zoneNear reports whether a zone on the given side sits within the proximity
// percentage of price, on the correct side of it.
func zoneNear(zones []smc.LiquidityZone, side smc.LiquiditySide, price float64) bool {
	if price == 0 {
		return false
	}
	for _, z := range zones {
		if z.Side != side {
			continue
		}
		distance := math.Abs(z.Level-price) / price * 100
		if distance > liquidityProximityPct {
			continue
		}
		if side == smc.Buyside && z.Level >= price {
			return true
		}
		if side == smc.Sellside && z.Level <= price {
			return true
		}
	}
	return false
}
