package news

import (
	"fmt"
	"math"
	"testing"
	"time"
)

func usdEvent(priceChangePct float64, direction string) Event {
	return Event{
		Timestamp:       time.Now().UTC(),
		Title:           "Non-Farm Payrolls",
		Impact:          ImpactHigh,
		Currency:        "USD",
		PreVolatility:   0.001,
		PostVolatility:  0.004,
		PriceChangePct:  priceChangePct,
		Direction:       direction,
		RecoveryMinutes: 45,
	}
}

func TestImpactMultipliers(t *testing.T) {
	cases := []struct {
		impact Impact
		want   float64
	}{
		{ImpactHigh, 1.5},
		{ImpactMedium, 1.2},
		{ImpactLow, 0.8},
		{Impact(""), 1.0},
	}
	for _, tc := range cases {
		if got := tc.impact.Multiplier(); got != tc.want {
			t.Errorf("multiplier for %q: got %.1f, want %.1f", tc.impact, got, tc.want)
		}
	}
}

func TestParseImpactDefaultsToLow(t *testing.T) {
	if ParseImpact("high") != ImpactHigh {
		t.Error("case-insensitive HIGH should parse")
	}
	if ParseImpact("Med") != ImpactMedium {
		t.Error("MED alias should parse as MEDIUM")
	}
	if ParseImpact("unknown") != ImpactLow {
		t.Error("unrecognized impact should default to LOW")
	}
}

func TestModelRebuiltOnEveryAppend(t *testing.T) {
	tracker := NewImpactTracker(100)

	tracker.AddEvent(usdEvent(0.5, "up"))
	m := tracker.Model("USD")
	if m == nil {
		t.Fatal("model should exist after the first event")
	}
	if m.EventCount != 1 {
		t.Errorf("expected 1 event, got %d", m.EventCount)
	}
	if m.Confidence != 5 {
		t.Errorf("one event should give confidence 5, got %.0f", m.Confidence)
	}
	if m.DirectionalAccuracy != 1.0 {
		t.Errorf("one correct call should give accuracy 1.0, got %.2f", m.DirectionalAccuracy)
	}

	// A wrong directional call halves the accuracy
	tracker.AddEvent(usdEvent(-0.3, "up"))
	m = tracker.Model("USD")
	if m.EventCount != 2 {
		t.Errorf("expected 2 events, got %d", m.EventCount)
	}
	if m.DirectionalAccuracy != 0.5 {
		t.Errorf("1 of 2 correct should give accuracy 0.5, got %.2f", m.DirectionalAccuracy)
	}
	if m.Confidence != 10 {
		t.Errorf("two events should give confidence 10, got %.0f", m.Confidence)
	}
}

func TestModelAverages(t *testing.T) {
	tracker := NewImpactTracker(100)
	tracker.AddEvent(usdEvent(0.4, "up"))
	tracker.AddEvent(usdEvent(-0.2, "down"))

	m := tracker.Model("USD")
	if math.Abs(m.AveragePriceMovePct-0.3) > 1e-9 {
		t.Errorf("price move should average absolute values: got %.3f, want 0.3", m.AveragePriceMovePct)
	}
	if math.Abs(m.AverageVolatilityIncrease-0.003) > 1e-9 {
		t.Errorf("volatility increase should average post minus pre: got %.4f", m.AverageVolatilityIncrease)
	}
	if m.AverageRecoveryMinutes != 45 {
		t.Errorf("expected 45 minute recovery, got %.0f", m.AverageRecoveryMinutes)
	}
}

func TestHistoryBoundedFIFO(t *testing.T) {
	tracker := NewImpactTracker(100)

	// 120 events with the first 20 carrying a distinctive large move
	for i := 0; i < 120; i++ {
		move := 0.1
		if i < 20 {
			move = 10.0
		}
		tracker.AddEvent(usdEvent(move, "up"))
	}

	if n := tracker.EventCount("USD"); n != 100 {
		t.Fatalf("history should cap at 100, got %d", n)
	}
	m := tracker.Model("USD")
	if m.Confidence != 100 {
		t.Errorf("confidence should cap at 100, got %.0f", m.Confidence)
	}
	// The 20 large moves were evicted, so the average reflects only 0.1 moves
	if math.Abs(m.AveragePriceMovePct-0.1) > 1e-9 {
		t.Errorf("evicted events must not influence the model: got %.3f", m.AveragePriceMovePct)
	}
}

func TestConfidenceGrowsWithSampleSize(t *testing.T) {
	tracker := NewImpactTracker(100)
	for i := 0; i < 7; i++ {
		tracker.AddEvent(usdEvent(0.2, "up"))
	}
	if m := tracker.Model("USD"); m.Confidence != 35 {
		t.Errorf("7 events should give confidence 35, got %.0f", m.Confidence)
	}
}

func TestCurrenciesTrackedIndependently(t *testing.T) {
	tracker := NewImpactTracker(100)
	tracker.AddEvent(usdEvent(0.5, "up"))

	eur := usdEvent(1.5, "down")
	eur.Currency = "eur" // normalized to upper case
	tracker.AddEvent(eur)

	if tracker.Model("USD").EventCount != 1 || tracker.Model("EUR").EventCount != 1 {
		t.Error("currencies must keep independent histories")
	}
	if tracker.Model("GBP") != nil {
		t.Error("untracked currency should have no model")
	}
}

func TestModelReturnsCopy(t *testing.T) {
	tracker := NewImpactTracker(100)
	tracker.AddEvent(usdEvent(0.5, "up"))

	m := tracker.Model("USD")
	m.Confidence = 999
	if tracker.Model("USD").Confidence == 999 {
		t.Error("mutating a returned model must not affect the tracker")
	}
}

func TestEventWithoutCurrencyIgnored(t *testing.T) {
	tracker := NewImpactTracker(100)
	e := usdEvent(0.5, "up")
	e.Currency = ""
	tracker.AddEvent(e)

	if n := tracker.EventCount(""); n != 0 {
		t.Errorf("currency-less events should be dropped, got %d", n)
	}
}

func BenchmarkModelRebuild(b *testing.B) {
	tracker := NewImpactTracker(100)
	for i := 0; i < 100; i++ {
		tracker.AddEvent(usdEvent(0.2, "up"))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tracker.AddEvent(usdEvent(float64(i%5)*0.1, "up"))
	}
}

func ExampleImpactTracker_Model() {
	tracker := NewImpactTracker(100)
	tracker.AddEvent(Event{
		Currency:       "USD",
		Impact:         ImpactHigh,
		PriceChangePct: 0.42,
		Direction:      "up",
	})

	m := tracker.Model("USD")
	fmt.Printf("%s events=%d confidence=%.0f\n", m.Currency, m.EventCount, m.Confidence)
	// Output: USD events=1 confidence=5
}
