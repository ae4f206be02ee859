package news

import (
	"forex-trading-bot/internal/market"
)

// DirectionProbability is a normalized distribution over price reaction
// directions. Up + Down + Neutral always sums to 1.
type DirectionProbability struct {
	Up      float64 `json:"up"`
	Down    float64 `json:"down"`
	Neutral float64 `json:"neutral"`
}

// Prediction is the expected market response for a symbol around a news item
type Prediction struct {
	Symbol              string               `json:"symbol"`
	Currency            string               `json:"currency"` // Currency whose model produced the prediction
	ExpectedMovePct     float64              `json:"expected_move_pct"`
	ExpectedVolatility  float64              `json:"expected_volatility"` // fraction
	ExpectedRecoveryMin float64              `json:"expected_recovery_min"`
	Direction           DirectionProbability `json:"direction"`
	Confidence          float64              `json:"confidence"` // 0-100
	ImpactMultiplier    float64              `json:"impact_multiplier"`
	RiskMultiplier      float64              `json:"risk_multiplier"` // never below 0.3
}

// riskFloor prevents the position-size multiplier from reaching zero
const riskFloor = 0.3

// PredictImpact predicts the market response for a symbol, optionally shaped
// by an upcoming or live news event. The symbol's base and quote currency
// models compete; the one with higher confidence wins, ties favor the base.
// With no model for either currency a fixed low-confidence fallback is
// returned rather than an error.
func (t *ImpactTracker) PredictImpact(symbol string, event *Event) Prediction {
	base, quote, err := market.SplitPair(symbol)
	if err != nil {
		return fallbackPrediction(symbol, event)
	}

	model := t.Model(base)
	if quoteModel := t.Model(quote); quoteModel != nil {
		if model == nil || quoteModel.Confidence > model.Confidence {
			model = quoteModel
		}
	}
	if model == nil || model.EventCount == 0 {
		return fallbackPrediction(symbol, event)
	}

	mult := 1.0
	sentiment := 0.0
	if event != nil {
		mult = event.Impact.Multiplier()
		sentiment = clamp(event.Sentiment, -1, 1)
	}

	expectedVol := model.AverageVolatilityIncrease * mult
	if expectedVol < 0 {
		expectedVol = 0
	}

	p := Prediction{
		Symbol:              symbol,
		Currency:            model.Currency,
		ExpectedMovePct:     model.AveragePriceMovePct * mult,
		ExpectedVolatility:  expectedVol,
		ExpectedRecoveryMin: model.AverageRecoveryMinutes,
		Direction:           skewedDirection(sentiment * model.DirectionalAccuracy),
		Confidence:          model.Confidence,
		ImpactMultiplier:    mult,
		RiskMultiplier:      maxF(riskFloor, 1-2*expectedVol),
	}
	return p
}

// fallbackPrediction is the fixed low-confidence answer when no model exists:
// a 10-pip expected move, uniform direction, confidence 20.
func fallbackPrediction(symbol string, event *Event) Prediction {
	mult := 1.0
	if event != nil {
		mult = event.Impact.Multiplier()
	}
	pips := 10 * market.PipSize(symbol)
	return Prediction{
		Symbol:           symbol,
		ExpectedMovePct:  pips * 100, // pips expressed as a percent of a unit-price pair
		Direction:        DirectionProbability{Up: 1.0 / 3, Down: 1.0 / 3, Neutral: 1.0 / 3},
		Confidence:       20,
		ImpactMultiplier: mult,
		RiskMultiplier:   1.0,
	}
}

// skewedDirection starts from a uniform distribution and shifts weight toward
// up or down proportionally to the skew (sentiment times directional
// accuracy), then renormalizes so the probabilities sum to exactly 1.
func skewedDirection(skew float64) DirectionProbability {
	skew = clamp(skew, -1, 1)

	wUp, wDown, wNeutral := 1.0, 1.0, 1.0
	if skew > 0 {
		wUp += 3 * skew
	} else if skew < 0 {
		wDown += 3 * -skew
	}

	total := wUp + wDown + wNeutral
	return DirectionProbability{
		Up:      wUp / total,
		Down:    wDown / total,
		Neutral: wNeutral / total,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
