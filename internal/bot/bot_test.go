package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"forex-trading-bot/config"
	"forex-trading-bot/internal/confluence"
	"forex-trading-bot/internal/events"
	"forex-trading-bot/internal/market"
	"forex-trading-bot/internal/news"
	"forex-trading-bot/internal/risk"
	"forex-trading-bot/internal/signal"
	"forex-trading-bot/internal/smc"
)

// fakeBridge is a controllable BridgeClient for orchestrator tests
type fakeBridge struct {
	mu          sync.Mutex
	connected   bool
	connectErr  error
	pingErr     error
	account     market.AccountInfo
	caps        market.TradingCapabilities
	historyErr  error
	closedAll   bool
	closeAllErr error
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{
		account: market.AccountInfo{Login: 123, Balance: 10000, Equity: 10000, FreeMargin: 9000, Leverage: 100, TradeAllowed: true},
		caps:    market.TradingCapabilities{CanTrade: true},
	}
}

func (f *fakeBridge) Connect(ctx context.Context, creds market.Credentials) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	return nil
}

func (f *fakeBridge) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeBridge) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeBridge) GetAccountInfo(ctx context.Context) (*market.AccountInfo, error) {
	info := f.account
	return &info, nil
}

func (f *fakeBridge) VerifyTradingCapabilities(ctx context.Context) (*market.TradingCapabilities, error) {
	caps := f.caps
	return &caps, nil
}

func (f *fakeBridge) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	return 1.0850, nil
}

func (f *fakeBridge) GetHistoricalData(ctx context.Context, symbol string, timeframeMinutes, count int) ([]market.Candle, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	candles := make([]market.Candle, 10)
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	for i := range candles {
		candles[i] = market.Candle{
			Timestamp: base.Add(time.Duration(i*timeframeMinutes) * time.Minute),
			Open:      1.0850, High: 1.0855, Low: 1.0845, Close: 1.0850,
		}
	}
	return candles, nil
}

func (f *fakeBridge) PlaceOrder(ctx context.Context, req market.OrderRequest) (*market.OrderResult, error) {
	return &market.OrderResult{Ticket: 1}, nil
}

func (f *fakeBridge) CloseAllPositions(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closedAll = true
	return f.closeAllErr
}

func (f *fakeBridge) dropConnection() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
}

func (f *fakeBridge) didCloseAll() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closedAll
}

func testConfig() *config.Config {
	return &config.Config{
		TradingConfig: config.TradingConfig{
			MinConfidence:    55,
			MaxRiskPerTrade:  1,
			MaxDailyLoss:     5,
			EnabledPairs:     []string{"EURUSD"},
			UseStopLoss:      true,
			TimeframeMinutes: 15,
			HistoryCandles:   100,
		},
		SignalConfig: config.SignalConfig{
			GenerationIntervalSec: 180,
			MaxPendingSignals:     20,
		},
	}
}

func newTestOrchestrator(bridge market.BridgeClient, cfg *config.Config) *Orchestrator {
	if cfg == nil {
		cfg = testConfig()
	}
	bus := events.NewEventBus()
	detector := smc.NewDetector(smc.Config{})
	tracker := news.NewImpactTracker(100)
	riskMgr := risk.NewManager(&risk.Config{MaxRiskPerTrade: 1, MaxDailyDrawdown: 5, MaxOpenPositions: 3, MaxLotSize: 1})
	riskMgr.UpdateAccountBalance(10000)
	worker := signal.NewGenerator(
		bridge, detector, tracker, news.NewVolatilityTracker(50),
		confluence.NewScorer(), riskMgr, bus, zerolog.Nop(),
	)
	return New(cfg, bridge, worker, detector, tracker, bus)
}

func connect(t *testing.T, o *Orchestrator) {
	t.Helper()
	if err := o.Connect(context.Background(), market.Credentials{Login: 123, Server: "Demo"}); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
}

func TestInitialStateIsIdle(t *testing.T) {
	o := newTestOrchestrator(newFakeBridge(), nil)
	if o.State() != StateIdle {
		t.Errorf("expected IDLE, got %s", o.State())
	}
}

func TestConnectTransitionsToConnected(t *testing.T) {
	o := newTestOrchestrator(newFakeBridge(), nil)
	connect(t, o)

	if o.State() != StateConnected {
		t.Errorf("expected CONNECTED, got %s", o.State())
	}
	if err := o.Connect(context.Background(), market.Credentials{}); err == nil {
		t.Error("second connect should be rejected")
	}
}

func TestConnectFailureStaysIdle(t *testing.T) {
	bridge := newFakeBridge()
	bridge.connectErr = errors.New("bridge down")
	o := newTestOrchestrator(bridge, nil)

	if err := o.Connect(context.Background(), market.Credentials{}); err == nil {
		t.Fatal("expected connect to fail")
	}
	if o.State() != StateIdle {
		t.Errorf("failed connect must stay IDLE, got %s", o.State())
	}
}

func TestStartRequiresConnected(t *testing.T) {
	o := newTestOrchestrator(newFakeBridge(), nil)
	if err := o.Start(context.Background()); err == nil {
		t.Error("start from IDLE should fail")
	}
}

func TestStartTransitionsToActive(t *testing.T) {
	o := newTestOrchestrator(newFakeBridge(), nil)
	connect(t, o)

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer o.Stop()

	if o.State() != StateActive {
		t.Errorf("expected ACTIVE, got %s", o.State())
	}
}

func TestStartBlockedByCriticalHealthIssue(t *testing.T) {
	bridge := newFakeBridge()
	bridge.caps = market.TradingCapabilities{CanTrade: false, Issues: []string{"algo trading disabled"}}
	o := newTestOrchestrator(bridge, nil)
	connect(t, o)

	if err := o.Start(context.Background()); err == nil {
		t.Fatal("start should fail when trading is not permitted")
	}
	if o.State() != StateConnected {
		t.Errorf("failed start must stay CONNECTED, got %s", o.State())
	}
}

func TestStartProceedsPastWarnings(t *testing.T) {
	bridge := newFakeBridge()
	bridge.account.Leverage = 10 // warning only
	o := newTestOrchestrator(bridge, nil)
	connect(t, o)

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("warnings must not block start: %v", err)
	}
	defer o.Stop()

	status := o.Status()
	if len(status.LastHealthCheck) == 0 {
		t.Error("warnings should be retained in the status")
	}
}

func TestEnableAutoTradingRequiresLiveBridge(t *testing.T) {
	bridge := newFakeBridge()
	o := newTestOrchestrator(bridge, nil)
	connect(t, o)

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer o.Stop()

	// The session drops while the bot is still Active
	bridge.dropConnection()

	if err := o.EnableAutoTrading(); err == nil {
		t.Error("auto trading over a dropped bridge session should be rejected")
	}
	if o.State() != StateActive {
		t.Errorf("failed enable must leave the state untouched, got %s", o.State())
	}
}

func TestAutoTradingLifecycle(t *testing.T) {
	o := newTestOrchestrator(newFakeBridge(), nil)
	connect(t, o)

	if err := o.EnableAutoTrading(); err == nil {
		t.Error("auto trading from CONNECTED should be rejected")
	}

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer o.Stop()

	if err := o.EnableAutoTrading(); err != nil {
		t.Fatalf("enable auto trading failed: %v", err)
	}
	if o.State() != StateActiveAutoTrading {
		t.Errorf("expected ACTIVE_AUTO_TRADING, got %s", o.State())
	}

	if err := o.DisableAutoTrading(); err != nil {
		t.Fatalf("disable auto trading failed: %v", err)
	}
	if o.State() != StateActive {
		t.Errorf("expected ACTIVE after disabling, got %s", o.State())
	}
}

func TestStopReturnsToConnected(t *testing.T) {
	o := newTestOrchestrator(newFakeBridge(), nil)
	connect(t, o)
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if err := o.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if o.State() != StateConnected {
		t.Errorf("expected CONNECTED after stop, got %s", o.State())
	}
	if err := o.Stop(); err == nil {
		t.Error("second stop should be rejected")
	}
}

func TestEmergencyStopIsIdempotent(t *testing.T) {
	bridge := newFakeBridge()
	o := newTestOrchestrator(bridge, nil)
	connect(t, o)
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if err := o.EmergencyStop(context.Background(), "manual"); err != nil {
		t.Fatalf("emergency stop failed: %v", err)
	}
	if !o.IsEmergencyStopped() {
		t.Fatal("emergency flag should be latched")
	}
	if !bridge.didCloseAll() {
		t.Error("emergency stop should close all open positions")
	}
	if o.State() != StateConnected {
		t.Errorf("emergency stop should drop back to CONNECTED, got %s", o.State())
	}

	// Second call is a no-op, not an error
	if err := o.EmergencyStop(context.Background(), "again"); err != nil {
		t.Errorf("repeated emergency stop should be a no-op, got %v", err)
	}
}

func TestEmergencyStopBlocksRestartUntilCleared(t *testing.T) {
	o := newTestOrchestrator(newFakeBridge(), nil)
	connect(t, o)
	if err := o.EmergencyStop(context.Background(), "manual"); err != nil {
		t.Fatalf("emergency stop failed: %v", err)
	}

	if err := o.Start(context.Background()); err == nil {
		t.Error("start must be rejected while emergency stopped")
	}
	if err := o.EnableAutoTrading(); err == nil {
		t.Error("auto trading must be rejected while emergency stopped")
	}

	if err := o.ClearEmergencyStop(); err != nil {
		t.Fatalf("clearing emergency stop failed: %v", err)
	}
	if err := o.ClearEmergencyStop(); err == nil {
		t.Error("clearing an inactive emergency stop should error")
	}

	if err := o.Start(context.Background()); err != nil {
		t.Errorf("start should succeed after clearing: %v", err)
	}
	o.Stop()
}

func TestUpdateConfigNeverTransitions(t *testing.T) {
	o := newTestOrchestrator(newFakeBridge(), nil)

	trading := testConfig().TradingConfig
	trading.MinConfidence = 70
	o.UpdateConfig(trading, testConfig().SignalConfig)
	if o.State() != StateIdle {
		t.Errorf("config update in IDLE must not transition, got %s", o.State())
	}

	connect(t, o)
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer o.Stop()

	o.UpdateConfig(trading, testConfig().SignalConfig)
	if o.State() != StateActive {
		t.Errorf("config update while ACTIVE must not transition, got %s", o.State())
	}
}

func TestGenerateTestSignalRequiresRunningBot(t *testing.T) {
	o := newTestOrchestrator(newFakeBridge(), nil)
	if _, err := o.GenerateTestSignal(context.Background(), "EURUSD"); err == nil {
		t.Error("test signal from IDLE should be rejected")
	}

	connect(t, o)
	if _, err := o.GenerateTestSignal(context.Background(), "EURUSD"); err == nil {
		t.Error("test signal from CONNECTED should be rejected")
	}

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer o.Stop()

	sig, err := o.GenerateTestSignal(context.Background(), "EURUSD")
	if err != nil {
		t.Fatalf("test signal failed: %v", err)
	}
	// The fake bridge returns too few candles for the detector, so the
	// confluence gate abstains
	if sig != nil {
		t.Errorf("expected no signal without enough market data, got %+v", sig)
	}
}
