package market

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

// SimClient provides simulated market data and order handling for development
// and testing. It is selected only through the explicit bridge.simulation
// config toggle; the real client never falls back to it on failure.
type SimClient struct {
	prices     map[string]float64
	lastUpdate time.Time
	mu         sync.RWMutex
	connected  bool
	rng        *rand.Rand
	nextTicket int64
}

// NewSimClient creates a new simulation client
func NewSimClient() *SimClient {
	sc := &SimClient{
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		lastUpdate: time.Now(),
		nextTicket: 1000,
	}

	// Realistic base quotes for the majors
	sc.prices = map[string]float64{
		"EURUSD": 1.0850,
		"GBPUSD": 1.2700,
		"USDJPY": 148.50,
		"USDCHF": 0.8800,
		"AUDUSD": 0.6550,
		"USDCAD": 1.3600,
		"NZDUSD": 0.6000,
		"EURGBP": 0.8540,
		"EURJPY": 161.10,
		"GBPJPY": 188.60,
	}

	return sc
}

// updatePrices applies a small random walk to simulate market movement
func (sc *SimClient) updatePrices() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if time.Since(sc.lastUpdate) < time.Second {
		return
	}

	for symbol, price := range sc.prices {
		// Random walk: -0.05% to +0.05% change
		change := (sc.rng.Float64() - 0.5) * 0.001
		sc.prices[symbol] = price * (1 + change)
	}
	sc.lastUpdate = time.Now()
}

// Connect always succeeds in simulation mode
func (sc *SimClient) Connect(ctx context.Context, creds Credentials) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.connected = true
	return nil
}

func (sc *SimClient) IsConnected() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.connected
}

func (sc *SimClient) Ping(ctx context.Context) error {
	return nil
}

func (sc *SimClient) GetAccountInfo(ctx context.Context) (*AccountInfo, error) {
	return &AccountInfo{
		Login:        99999,
		Balance:      10000,
		Equity:       10000,
		FreeMargin:   10000,
		Currency:     "USD",
		Leverage:     100,
		TradeAllowed: true,
	}, nil
}

func (sc *SimClient) VerifyTradingCapabilities(ctx context.Context) (*TradingCapabilities, error) {
	return &TradingCapabilities{CanTrade: true}, nil
}

func (sc *SimClient) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	sc.updatePrices()

	sc.mu.RLock()
	defer sc.mu.RUnlock()
	if price, ok := sc.prices[symbol]; ok {
		return price, nil
	}
	return 1.0, nil
}

// GetHistoricalData generates a plausible random-walk candle series ending at
// the current simulated price.
func (sc *SimClient) GetHistoricalData(ctx context.Context, symbol string, timeframeMinutes, count int) ([]Candle, error) {
	price, _ := sc.GetCurrentPrice(ctx, symbol)

	sc.mu.Lock()
	defer sc.mu.Unlock()

	interval := time.Duration(timeframeMinutes) * time.Minute
	now := time.Now().UTC().Truncate(interval)

	candles := make([]Candle, count)
	// Walk backwards from the current price so the series ends where the
	// live quote is.
	closes := make([]float64, count)
	closes[count-1] = price
	for i := count - 2; i >= 0; i-- {
		drift := (sc.rng.Float64() - 0.5) * 0.002
		closes[i] = closes[i+1] * (1 - drift)
	}

	for i := 0; i < count; i++ {
		open := closes[i] * (1 + (sc.rng.Float64()-0.5)*0.001)
		high := math.Max(open, closes[i]) * (1 + sc.rng.Float64()*0.0008)
		low := math.Min(open, closes[i]) * (1 - sc.rng.Float64()*0.0008)
		candles[i] = Candle{
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closes[i],
			Volume:    100 + sc.rng.Float64()*900,
			Timestamp: now.Add(-interval * time.Duration(count-1-i)),
		}
	}
	return candles, nil
}

func (sc *SimClient) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	price, _ := sc.GetCurrentPrice(ctx, req.Symbol)

	sc.mu.Lock()
	sc.nextTicket++
	ticket := sc.nextTicket
	sc.mu.Unlock()

	return &OrderResult{
		Ticket: ticket,
		Symbol: req.Symbol,
		Side:   string(req.Side),
		Volume: req.Volume,
		Price:  price,
	}, nil
}

func (sc *SimClient) CloseAllPositions(ctx context.Context) error {
	return nil
}
