package market

import (
	"context"
	"math"
	"testing"
)

func TestSplitPair(t *testing.T) {
	cases := []struct {
		symbol      string
		base, quote string
		wantErr     bool
	}{
		{"EURUSD", "EUR", "USD", false},
		{"usdjpy", "USD", "JPY", false},
		{"GBPUSDm", "GBP", "USD", false}, // broker suffix
		{" EURUSD ", "EUR", "USD", false},
		{"EUR", "", "", true},
		{"", "", "", true},
	}

	for _, tc := range cases {
		base, quote, err := SplitPair(tc.symbol)
		if tc.wantErr {
			if err == nil {
				t.Errorf("SplitPair(%q): expected error", tc.symbol)
			}
			continue
		}
		if err != nil {
			t.Errorf("SplitPair(%q): %v", tc.symbol, err)
			continue
		}
		if base != tc.base || quote != tc.quote {
			t.Errorf("SplitPair(%q) = %s/%s, want %s/%s", tc.symbol, base, quote, tc.base, tc.quote)
		}
	}
}

func TestPipSize(t *testing.T) {
	if PipSize("EURUSD") != 0.0001 {
		t.Error("non-JPY pairs should have a 0.0001 pip")
	}
	if PipSize("USDJPY") != 0.01 {
		t.Error("JPY-quoted pairs should have a 0.01 pip")
	}
	if PipSize("EURJPY") != 0.01 {
		t.Error("EURJPY is JPY-quoted")
	}
	if PipSize("bad") != 0.0001 {
		t.Error("unsplittable symbols should fall back to the standard pip")
	}
}

func TestCandleHelpers(t *testing.T) {
	bull := Candle{Open: 1.0, High: 1.3, Low: 0.9, Close: 1.2}
	if !bull.IsBullish() || bull.IsBearish() {
		t.Error("close above open is bullish")
	}
	if math.Abs(bull.Body()-0.2) > 1e-9 {
		t.Errorf("body should be |close-open|, got %.2f", bull.Body())
	}
	if math.Abs(bull.Range()-0.4) > 1e-9 {
		t.Errorf("range should be high-low, got %.2f", bull.Range())
	}

	bear := Candle{Open: 1.2, Close: 1.0}
	if !bear.IsBearish() {
		t.Error("close below open is bearish")
	}
	if math.Abs(bear.Body()-0.2) > 1e-9 {
		t.Errorf("bearish body should still be positive, got %.2f", bear.Body())
	}

	doji := Candle{Open: 1.0, Close: 1.0}
	if doji.IsBullish() || doji.IsBearish() {
		t.Error("a doji is neither bullish nor bearish")
	}
}

func TestSimClientLifecycle(t *testing.T) {
	ctx := context.Background()
	sim := NewSimClient()

	if sim.IsConnected() {
		t.Error("fresh sim client should not report connected")
	}
	if err := sim.Connect(ctx, Credentials{Login: 1}); err != nil {
		t.Fatalf("sim connect failed: %v", err)
	}
	if !sim.IsConnected() {
		t.Error("sim client should report connected after Connect")
	}

	info, err := sim.GetAccountInfo(ctx)
	if err != nil {
		t.Fatalf("account info failed: %v", err)
	}
	if !info.TradeAllowed || info.Balance <= 0 {
		t.Errorf("sim account should be tradeable and funded: %+v", info)
	}

	caps, err := sim.VerifyTradingCapabilities(ctx)
	if err != nil || !caps.CanTrade {
		t.Errorf("sim account should always be allowed to trade: %+v err=%v", caps, err)
	}
}

func TestSimClientHistoricalData(t *testing.T) {
	ctx := context.Background()
	sim := NewSimClient()

	candles, err := sim.GetHistoricalData(ctx, "EURUSD", 15, 100)
	if err != nil {
		t.Fatalf("historical data failed: %v", err)
	}
	if len(candles) != 100 {
		t.Fatalf("expected 100 candles, got %d", len(candles))
	}

	price, err := sim.GetCurrentPrice(ctx, "EURUSD")
	if err != nil {
		t.Fatalf("current price failed: %v", err)
	}
	if last := candles[len(candles)-1].Close; last != price {
		t.Errorf("series should end at the live quote: %.5f vs %.5f", last, price)
	}

	for i, c := range candles {
		if c.High < c.Low || c.High < c.Close || c.Low > c.Close || c.High < c.Open || c.Low > c.Open {
			t.Fatalf("candle %d violates OHLC invariants: %+v", i, c)
		}
		if i > 0 && !candles[i].Timestamp.After(candles[i-1].Timestamp) {
			t.Fatalf("candle %d timestamp not increasing", i)
		}
	}
}

func TestSimClientOrderTickets(t *testing.T) {
	ctx := context.Background()
	sim := NewSimClient()

	first, err := sim.PlaceOrder(ctx, OrderRequest{Symbol: "EURUSD", Side: OrderBuy, Volume: 0.1})
	if err != nil {
		t.Fatalf("order failed: %v", err)
	}
	second, err := sim.PlaceOrder(ctx, OrderRequest{Symbol: "EURUSD", Side: OrderSell, Volume: 0.1})
	if err != nil {
		t.Fatalf("order failed: %v", err)
	}
	if second.Ticket <= first.Ticket {
		t.Errorf("tickets should increase: %d then %d", first.Ticket, second.Ticket)
	}
	if first.Price <= 0 {
		t.Error("sim fills should carry a price")
	}
}
