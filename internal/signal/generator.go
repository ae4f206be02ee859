package signal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"forex-trading-bot/internal/confluence"
	"forex-trading-bot/internal/events"
	"forex-trading-bot/internal/market"
	"forex-trading-bot/internal/news"
	"forex-trading-bot/internal/risk"
	"forex-trading-bot/internal/smc"
)

// Worker defines the signal generation and execution surface
type Worker interface {
	SetConfiguration(cfg Configuration)
	StartAutomaticGeneration() error
	StopAutomaticGeneration()
	EnableAutoExecution(enabled bool)
	GenerateAndProcessSignals(ctx context.Context) ([]*Signal, error)
	ForceExecutePendingSignals(ctx context.Context) (int, error)
}

// recentSignalCap bounds the in-memory history exposed to the API
const recentSignalCap = 50

// Generator produces trade signals on a fixed interval by running the full
// analysis pipeline per symbol: detector, news model, confluence scorer,
// risk sizing. Execution is opt-in.
type Generator struct {
	bridge     market.BridgeClient
	detector   *smc.Detector
	newsModel  *news.ImpactTracker
	volatility *news.VolatilityTracker
	scorer     *confluence.Scorer
	riskMgr    *risk.Manager
	bus        *events.EventBus
	logger     zerolog.Logger

	mu          sync.RWMutex
	cfg         Configuration
	autoExecute bool
	running     bool
	pending     []*Signal
	recent      []*Signal

	stopChan chan struct{}
	wg       sync.WaitGroup
}

var _ Worker = (*Generator)(nil)

// NewGenerator wires the analysis pipeline into a signal worker
func NewGenerator(
	bridge market.BridgeClient,
	detector *smc.Detector,
	newsModel *news.ImpactTracker,
	volatility *news.VolatilityTracker,
	scorer *confluence.Scorer,
	riskMgr *risk.Manager,
	bus *events.EventBus,
	logger zerolog.Logger,
) *Generator {
	return &Generator{
		bridge:     bridge,
		detector:   detector,
		newsModel:  newsModel,
		volatility: volatility,
		scorer:     scorer,
		riskMgr:    riskMgr,
		bus:        bus,
		logger:     logger.With().Str("component", "signal_generator").Logger(),
	}
}

// SetConfiguration replaces the worker configuration. Safe while running; the
// next cycle picks it up.
func (g *Generator) SetConfiguration(cfg Configuration) {
	cfg.applyDefaults()

	g.mu.Lock()
	defer g.mu.Unlock()
	g.cfg = cfg
}

// EnableAutoExecution toggles immediate execution of newly generated signals
func (g *Generator) EnableAutoExecution(enabled bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.autoExecute = enabled
	g.logger.Info().Bool("enabled", enabled).Msg("auto execution toggled")
}

func (g *Generator) autoExecutionEnabled() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.autoExecute
}

// StartAutomaticGeneration launches the periodic generation loop
func (g *Generator) StartAutomaticGeneration() error {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return fmt.Errorf("signal generation already running")
	}
	if len(g.cfg.Symbols) == 0 {
		g.mu.Unlock()
		return fmt.Errorf("no symbols configured for signal generation")
	}
	g.running = true
	g.stopChan = make(chan struct{})
	interval := time.Duration(g.cfg.IntervalSec) * time.Second
	g.mu.Unlock()

	g.wg.Add(1)
	go g.loop(interval)

	g.logger.Info().Dur("interval", interval).Msg("automatic signal generation started")
	return nil
}

// StopAutomaticGeneration stops the loop and waits for the current cycle
func (g *Generator) StopAutomaticGeneration() {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return
	}
	g.running = false
	close(g.stopChan)
	g.mu.Unlock()

	g.wg.Wait()
	g.logger.Info().Msg("automatic signal generation stopped")
}

// IsRunning reports whether the generation loop is active
func (g *Generator) IsRunning() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.running
}

func (g *Generator) loop(interval time.Duration) {
	defer g.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-g.stopChan:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			if _, err := g.GenerateAndProcessSignals(ctx); err != nil {
				g.logger.Error().Err(err).Msg("signal generation cycle failed")
				g.bus.PublishError("signal_generator", "generation cycle failed", err)
			}
			cancel()
		}
	}
}

// GenerateAndProcessSignals runs one full analysis cycle over the configured
// symbols. Symbols are evaluated sequentially so bridge load stays bounded.
// Returns the signals produced this cycle.
func (g *Generator) GenerateAndProcessSignals(ctx context.Context) ([]*Signal, error) {
	g.mu.RLock()
	cfg := g.cfg
	g.mu.RUnlock()

	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("no symbols configured")
	}

	if !withinTradingHours(cfg.TradingHoursStart, cfg.TradingHoursEnd, time.Now()) {
		g.logger.Debug().Msg("outside trading hours, skipping cycle")
		return nil, nil
	}

	// Refresh the balance so position sizing tracks the live account
	if account, err := g.bridge.GetAccountInfo(ctx); err == nil {
		g.riskMgr.UpdateAccountBalance(account.Balance)
	}

	var produced []*Signal
	var firstErr error
	for _, symbol := range cfg.Symbols {
		sig, err := g.evaluateSymbol(ctx, symbol, cfg)
		if err != nil {
			g.logger.Warn().Err(err).Str("symbol", symbol).Msg("symbol evaluation failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if sig == nil {
			continue
		}

		g.enqueue(sig, cfg.MaxPendingSignals)
		g.bus.PublishSignal(sig.ID, sig.Symbol, string(sig.Bias), sig.Score, sig.PriceAtSignal)
		g.logger.Info().
			Str("signal_id", sig.ID).
			Str("symbol", sig.Symbol).
			Str("bias", string(sig.Bias)).
			Float64("score", sig.Score).
			Msg("signal generated")

		// Re-read the flag per signal: an emergency stop can disable
		// execution while this cycle is still in flight, and queued work
		// from before the stop must not reach the broker.
		if g.autoExecutionEnabled() {
			if err := g.execute(ctx, sig); err != nil {
				g.logger.Error().Err(err).Str("signal_id", sig.ID).Msg("auto execution failed")
			}
		}
		produced = append(produced, sig)
	}

	if len(produced) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return produced, nil
}

// evaluateSymbol runs the pipeline for one symbol. A nil signal with nil
// error means the confluence gate abstained.
func (g *Generator) evaluateSymbol(ctx context.Context, symbol string, cfg Configuration) (*Signal, error) {
	candles, err := g.bridge.GetHistoricalData(ctx, symbol, cfg.TimeframeMinutes, cfg.HistoryCandles)
	if err != nil {
		return nil, fmt.Errorf("fetching history for %s: %w", symbol, err)
	}
	price, err := g.bridge.GetCurrentPrice(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("fetching price for %s: %w", symbol, err)
	}

	if g.volatility != nil {
		g.volatility.Record(symbol, news.RealizedVolatility(candles))
	}

	analysis := g.detector.Analyze(symbol, candles, price)

	var prediction *news.Prediction
	if g.newsModel != nil {
		p := g.newsModel.PredictImpact(symbol, nil)
		prediction = &p
	}

	result := g.scorer.Score(analysis, prediction)
	if result.Bias == confluence.BiasNeutral || result.Score < cfg.MinScore {
		return nil, nil
	}

	return &Signal{
		ID:                uuid.New().String(),
		Symbol:            symbol,
		Bias:              result.Bias,
		Score:             result.Score,
		Factors:           result.Factors,
		EntryZone:         result.EntryZone,
		InvalidationLevel: result.InvalidationLevel,
		SoftAnchor:        result.SoftAnchor,
		PriceAtSignal:     price,
		Status:            StatusPending,
		CreatedAt:         time.Now().UTC(),
	}, nil
}

// GenerateOnce evaluates a single symbol immediately and returns the result
// without queueing or executing it. A nil signal means the gate abstained.
func (g *Generator) GenerateOnce(ctx context.Context, symbol string) (*Signal, error) {
	g.mu.RLock()
	cfg := g.cfg
	g.mu.RUnlock()
	cfg.applyDefaults()

	sig, err := g.evaluateSymbol(ctx, symbol, cfg)
	if err != nil {
		return nil, err
	}
	if sig != nil {
		g.logger.Info().
			Str("signal_id", sig.ID).
			Str("symbol", symbol).
			Str("bias", string(sig.Bias)).
			Float64("score", sig.Score).
			Msg("test signal generated")
	}
	return sig, nil
}

// ExecuteSignal sizes and places the order for a signal right away, skipping
// the pending queue entirely.
func (g *Generator) ExecuteSignal(ctx context.Context, sig *Signal) error {
	if account, err := g.bridge.GetAccountInfo(ctx); err == nil {
		g.riskMgr.UpdateAccountBalance(account.Balance)
	}
	return g.execute(ctx, sig)
}

// ForceExecutePendingSignals executes every queued signal immediately,
// regardless of the auto-execution setting. Returns how many were executed.
func (g *Generator) ForceExecutePendingSignals(ctx context.Context) (int, error) {
	g.mu.Lock()
	queued := make([]*Signal, len(g.pending))
	copy(queued, g.pending)
	g.mu.Unlock()

	if account, err := g.bridge.GetAccountInfo(ctx); err == nil {
		g.riskMgr.UpdateAccountBalance(account.Balance)
	}

	executed := 0
	var firstErr error
	for _, sig := range queued {
		if err := g.execute(ctx, sig); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		executed++
	}
	return executed, firstErr
}

// DiscardPending drops all queued signals, marking them discarded. Used on
// emergency stop so nothing stale fires after trading resumes.
func (g *Generator) DiscardPending(reason string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := len(g.pending)
	for _, sig := range g.pending {
		sig.Status = StatusDiscarded
		sig.StatusReason = reason
		g.bus.Publish(events.Event{
			Type: events.EventSignalDiscarded,
			Data: map[string]interface{}{"signal_id": sig.ID, "reason": reason},
		})
	}
	g.pending = nil
	return n
}

// PendingSignals returns a snapshot of the queue
func (g *Generator) PendingSignals() []*Signal {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*Signal, len(g.pending))
	copy(out, g.pending)
	return out
}

// RecentSignals returns the bounded signal history, newest last
func (g *Generator) RecentSignals() []*Signal {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*Signal, len(g.recent))
	copy(out, g.recent)
	return out
}

// enqueue adds a signal to both the pending queue and the recent history,
// expiring the oldest pending signal past the cap.
func (g *Generator) enqueue(sig *Signal, maxPending int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.pending = append(g.pending, sig)
	if len(g.pending) > maxPending {
		oldest := g.pending[0]
		oldest.Status = StatusExpired
		oldest.StatusReason = "pending queue full"
		g.pending = g.pending[1:]
	}

	g.recent = append(g.recent, sig)
	if len(g.recent) > recentSignalCap {
		g.recent = g.recent[1:]
	}
}

// execute sizes and places the order for a signal, then removes it from the
// pending queue.
func (g *Generator) execute(ctx context.Context, sig *Signal) error {
	if ok, reason := g.riskMgr.CanOpenPosition(); !ok {
		sig.Status = StatusDiscarded
		sig.StatusReason = reason
		g.removePending(sig.ID)
		return fmt.Errorf("risk check rejected signal %s: %s", sig.ID, reason)
	}

	g.mu.RLock()
	cfg := g.cfg
	g.mu.RUnlock()

	entry := sig.PriceAtSignal
	if sig.EntryZone != nil {
		entry = (sig.EntryZone.High + sig.EntryZone.Low) / 2
	}

	riskMult := 1.0
	if g.newsModel != nil {
		p := g.newsModel.PredictImpact(sig.Symbol, nil)
		riskMult = p.RiskMultiplier
	}

	lots := g.riskMgr.CalculateLotSize(entry, sig.InvalidationLevel, riskMult)
	if lots <= 0 {
		sig.Status = StatusFailed
		sig.StatusReason = "position size resolved to zero"
		g.removePending(sig.ID)
		return fmt.Errorf("signal %s: position size resolved to zero", sig.ID)
	}

	req := market.OrderRequest{
		Symbol:  sig.Symbol,
		Volume:  lots,
		Comment: fmt.Sprintf("signal %s", sig.ID[:8]),
	}
	if sig.Bias == confluence.BiasBuy {
		req.Side = market.OrderBuy
	} else {
		req.Side = market.OrderSell
	}
	if cfg.UseStopLoss {
		req.StopLoss = sig.InvalidationLevel
	}
	if cfg.UseTakeProfit {
		// 2R target from the invalidation distance
		riskDist := entry - sig.InvalidationLevel
		req.TakeProfit = entry + 2*riskDist
	}

	result, err := g.bridge.PlaceOrder(ctx, req)
	if err != nil {
		sig.Status = StatusFailed
		sig.StatusReason = err.Error()
		g.removePending(sig.ID)
		return fmt.Errorf("placing order for signal %s: %w", sig.ID, err)
	}

	now := time.Now().UTC()
	sig.Status = StatusExecuted
	sig.ExecutedAt = &now
	sig.Lots = lots
	sig.Ticket = result.Ticket
	g.removePending(sig.ID)

	g.riskMgr.RegisterPositionOpen()
	g.bus.PublishOrderPlaced(result.Ticket, sig.Symbol, string(req.Side), result.Price, lots)
	g.bus.Publish(events.Event{
		Type: events.EventSignalExecuted,
		Data: map[string]interface{}{"signal_id": sig.ID, "ticket": result.Ticket, "lots": lots},
	})
	g.logger.Info().
		Str("signal_id", sig.ID).
		Int64("ticket", result.Ticket).
		Float64("lots", lots).
		Msg("signal executed")

	return nil
}

// withinTradingHours reports whether now falls inside the configured UTC
// window. An empty or unparsable window means around the clock; the window
// may cross midnight.
func withinTradingHours(start, end string, now time.Time) bool {
	if start == "" || end == "" {
		return true
	}
	s, errS := time.Parse("15:04", start)
	e, errE := time.Parse("15:04", end)
	if errS != nil || errE != nil {
		return true
	}

	cur := now.UTC().Hour()*60 + now.UTC().Minute()
	openMin := s.Hour()*60 + s.Minute()
	closeMin := e.Hour()*60 + e.Minute()

	if openMin == closeMin {
		return true
	}
	if openMin < closeMin {
		return cur >= openMin && cur < closeMin
	}
	return cur >= openMin || cur < closeMin
}

func (g *Generator) removePending(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i, sig := range g.pending {
		if sig.ID == id {
			g.pending = append(g.pending[:i], g.pending[i+1:]...)
			return
		}
	}
}
