package news

import (
	"math"
	"testing"
	"time"

	"forex-trading-bot/internal/market"
)

func TestVolatilityBaseline(t *testing.T) {
	vt := NewVolatilityTracker(50)
	for _, v := range []float64{0.001, 0.002, 0.003} {
		vt.Record("EURUSD", v)
	}
	if b := vt.Baseline("EURUSD"); math.Abs(b-0.002) > 1e-12 {
		t.Errorf("baseline should be the window mean, got %.6f", b)
	}
	if vt.Baseline("GBPUSD") != 0 {
		t.Error("untracked symbol should have zero baseline")
	}
}

func TestVolatilityWindowEviction(t *testing.T) {
	vt := NewVolatilityTracker(5)
	for i := 0; i < 10; i++ {
		vt.Record("EURUSD", float64(i))
	}
	// Window keeps 5..9, mean 7
	if b := vt.Baseline("EURUSD"); b != 7 {
		t.Errorf("old readings should be evicted, got baseline %.1f", b)
	}
}

func TestNewsVolatilityPeriod(t *testing.T) {
	vt := NewVolatilityTracker(50)

	// Too few readings: never a news period
	for i := 0; i < 4; i++ {
		vt.Record("EURUSD", 0.001)
	}
	if vt.IsNewsVolatilityPeriod("EURUSD") {
		t.Error("fewer than 5 readings should not flag a news period")
	}

	// Calm baseline, then a burst: the last 5 run far above the mean
	for i := 0; i < 20; i++ {
		vt.Record("EURUSD", 0.001)
	}
	if vt.IsNewsVolatilityPeriod("EURUSD") {
		t.Error("steady volatility should not flag a news period")
	}
	for i := 0; i < 5; i++ {
		vt.Record("EURUSD", 0.010)
	}
	if !vt.IsNewsVolatilityPeriod("EURUSD") {
		t.Error("a recent burst above 1.5x baseline should flag a news period")
	}
}

func TestRealizedVolatility(t *testing.T) {
	base := time.Now().UTC()
	mk := func(i int, close float64) market.Candle {
		return market.Candle{Open: close, High: close, Low: close, Close: close, Timestamp: base.Add(time.Duration(i) * time.Minute)}
	}

	// Constant price: zero volatility
	flat := []market.Candle{mk(0, 100), mk(1, 100), mk(2, 100)}
	if v := RealizedVolatility(flat); v != 0 {
		t.Errorf("flat series should have zero volatility, got %.6f", v)
	}

	// Alternating +1%/-1% returns have a known standard deviation
	swing := []market.Candle{mk(0, 100), mk(1, 101), mk(2, 99.99)}
	if v := RealizedVolatility(swing); v <= 0 {
		t.Errorf("moving series should have positive volatility, got %.6f", v)
	}

	if v := RealizedVolatility(flat[:1]); v != 0 {
		t.Error("a single candle has no volatility")
	}
}
