package bot

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"forex-trading-bot/config"
	"forex-trading-bot/internal/events"
	"forex-trading-bot/internal/market"
	"forex-trading-bot/internal/news"
	"forex-trading-bot/internal/signal"
	"forex-trading-bot/internal/smc"
)

// State is the orchestrator's lifecycle position
type State string

const (
	StateIdle              State = "IDLE"
	StateConnected         State = "CONNECTED"
	StateActive            State = "ACTIVE"
	StateActiveAutoTrading State = "ACTIVE_AUTO_TRADING"
)

// Status is the full externally visible bot state
type Status struct {
	State            State     `json:"state"`
	Connected        bool      `json:"connected"`
	Running          bool      `json:"running"`
	AutoTrading      bool      `json:"auto_trading"`
	EmergencyStopped bool      `json:"emergency_stopped"`
	ConnectedSince   time.Time `json:"connected_since,omitempty"`
	StartedAt        time.Time `json:"started_at,omitempty"`
	LastHealthCheck  []Issue   `json:"last_health_check,omitempty"`
	EnabledPairs     []string  `json:"enabled_pairs"`
}

// Orchestrator drives the bot through its lifecycle: connect to the bridge,
// start analysis, optionally enable automatic trading. Emergency stop is an
// orthogonal latch that survives state transitions until cleared.
type Orchestrator struct {
	bridge    market.BridgeClient
	worker    *signal.Generator
	detector  *smc.Detector
	newsModel *news.ImpactTracker
	eventBus  *events.EventBus
	config    *config.Config

	mu               sync.RWMutex
	state            State
	emergencyStopped bool
	connectedSince   time.Time
	startedAt        time.Time
	lastHealthCheck  []Issue
}

// New creates an orchestrator in the Idle state
func New(
	cfg *config.Config,
	bridge market.BridgeClient,
	worker *signal.Generator,
	detector *smc.Detector,
	newsModel *news.ImpactTracker,
	eventBus *events.EventBus,
) *Orchestrator {
	return &Orchestrator{
		bridge:    bridge,
		worker:    worker,
		detector:  detector,
		newsModel: newsModel,
		eventBus:  eventBus,
		config:    cfg,
		state:     StateIdle,
	}
}

// State returns the current lifecycle state
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Status returns a snapshot of the full bot state
func (o *Orchestrator) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return Status{
		State:            o.state,
		Connected:        o.state != StateIdle,
		Running:          o.state == StateActive || o.state == StateActiveAutoTrading,
		AutoTrading:      o.state == StateActiveAutoTrading,
		EmergencyStopped: o.emergencyStopped,
		ConnectedSince:   o.connectedSince,
		StartedAt:        o.startedAt,
		LastHealthCheck:  append([]Issue(nil), o.lastHealthCheck...),
		EnabledPairs:     o.config.TradingConfig.EnabledPairs,
	}
}

// Connect establishes the bridge session. Valid only from Idle.
func (o *Orchestrator) Connect(ctx context.Context, creds market.Credentials) error {
	o.mu.Lock()
	if o.state != StateIdle {
		state := o.state
		o.mu.Unlock()
		return fmt.Errorf("cannot connect from state %s", state)
	}
	o.mu.Unlock()

	if err := o.bridge.Connect(ctx, creds); err != nil {
		return fmt.Errorf("bridge connection failed: %w", err)
	}

	o.mu.Lock()
	o.state = StateConnected
	o.connectedSince = time.Now().UTC()
	o.mu.Unlock()

	log.Printf("Bot connected to bridge (login %d, server %s)", creds.Login, creds.Server)
	o.eventBus.Publish(events.Event{
		Type: events.EventBotConnected,
		Data: map[string]interface{}{"login": creds.Login, "server": creds.Server},
	})
	return nil
}

// Start moves the bot from Connected to Active. Connectivity is re-checked
// even though Connect succeeded earlier, and the full health gate must pass:
// a critical issue aborts the start, lesser issues are logged and kept in the
// status for inspection.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.state != StateConnected {
		state := o.state
		o.mu.Unlock()
		return fmt.Errorf("cannot start from state %s", state)
	}
	if o.emergencyStopped {
		o.mu.Unlock()
		return fmt.Errorf("cannot start while emergency stopped")
	}
	o.mu.Unlock()

	if !o.bridge.IsConnected() {
		return fmt.Errorf("bridge connection lost before start")
	}

	issues := o.RunHealthChecks(ctx)
	o.mu.Lock()
	o.lastHealthCheck = issues
	o.mu.Unlock()

	for _, issue := range issues {
		switch issue.Severity {
		case SeverityCritical:
			o.eventBus.Publish(events.Event{
				Type: events.EventHealthCheckFailed,
				Data: map[string]interface{}{"component": issue.Component, "message": issue.Message},
			})
			return fmt.Errorf("health check failed: %s: %s (%s)", issue.Component, issue.Message, issue.Resolution)
		case SeverityError:
			log.Printf("Health check error [%s]: %s - %s", issue.Component, issue.Message, issue.Resolution)
		case SeverityWarning:
			log.Printf("Health check warning [%s]: %s", issue.Component, issue.Message)
		}
	}

	o.worker.SetConfiguration(signal.Configuration{
		Symbols:           o.config.TradingConfig.EnabledPairs,
		IntervalSec:       o.config.SignalConfig.GenerationIntervalSec,
		TimeframeMinutes:  o.config.TradingConfig.TimeframeMinutes,
		HistoryCandles:    o.config.TradingConfig.HistoryCandles,
		MinScore:          o.config.TradingConfig.MinConfidence,
		MaxPendingSignals: o.config.SignalConfig.MaxPendingSignals,
		UseStopLoss:       o.config.TradingConfig.UseStopLoss,
		UseTakeProfit:     o.config.TradingConfig.UseTakeProfit,
		TradingHoursStart: o.config.TradingConfig.TradingHoursStart,
		TradingHoursEnd:   o.config.TradingConfig.TradingHoursEnd,
	})
	if err := o.worker.StartAutomaticGeneration(); err != nil {
		return fmt.Errorf("starting signal worker: %w", err)
	}

	o.mu.Lock()
	o.state = StateActive
	o.startedAt = time.Now().UTC()
	o.mu.Unlock()

	log.Printf("Bot started: analyzing %v every %ds", o.config.TradingConfig.EnabledPairs, o.config.SignalConfig.GenerationIntervalSec)
	o.eventBus.Publish(events.Event{Type: events.EventBotStarted, Data: map[string]interface{}{}})
	return nil
}

// EnableAutoTrading moves Active to ActiveAutoTrading. Rejected while
// emergency stopped, from any other state, or when the bridge session
// has dropped since the bot went active.
func (o *Orchestrator) EnableAutoTrading() error {
	o.mu.Lock()
	if o.emergencyStopped {
		o.mu.Unlock()
		return fmt.Errorf("cannot enable auto trading while emergency stopped")
	}
	if o.state != StateActive {
		state := o.state
		o.mu.Unlock()
		return fmt.Errorf("cannot enable auto trading from state %s", state)
	}
	if !o.bridge.IsConnected() {
		o.mu.Unlock()
		return fmt.Errorf("cannot enable auto trading: bridge connection lost")
	}
	o.state = StateActiveAutoTrading
	o.mu.Unlock()

	o.worker.EnableAutoExecution(true)
	log.Println("Automatic trading enabled")
	o.eventBus.Publish(events.Event{Type: events.EventAutoTradingEnabled, Data: map[string]interface{}{}})
	return nil
}

// DisableAutoTrading drops back from ActiveAutoTrading to Active
func (o *Orchestrator) DisableAutoTrading() error {
	o.mu.Lock()
	if o.state != StateActiveAutoTrading {
		state := o.state
		o.mu.Unlock()
		return fmt.Errorf("auto trading is not enabled in state %s", state)
	}
	o.state = StateActive
	o.mu.Unlock()

	o.worker.EnableAutoExecution(false)
	log.Println("Automatic trading disabled")
	o.eventBus.Publish(events.Event{Type: events.EventAutoTradingDisabled, Data: map[string]interface{}{}})
	return nil
}

// Stop halts analysis and drops back to Connected. The bridge session stays
// up so a subsequent Start needs no reconnect.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	if o.state != StateActive && o.state != StateActiveAutoTrading {
		state := o.state
		o.mu.Unlock()
		return fmt.Errorf("cannot stop from state %s", state)
	}
	wasAuto := o.state == StateActiveAutoTrading
	o.state = StateConnected
	o.mu.Unlock()

	if wasAuto {
		o.worker.EnableAutoExecution(false)
	}
	o.worker.StopAutomaticGeneration()

	log.Println("Bot stopped")
	o.eventBus.Publish(events.Event{Type: events.EventBotStopped, Data: map[string]interface{}{}})
	return nil
}

// EmergencyStop latches the emergency flag, halts all activity, discards
// pending signals and closes every open position. Idempotent: a second call
// while latched is a no-op.
func (o *Orchestrator) EmergencyStop(ctx context.Context, reason string) error {
	o.mu.Lock()
	if o.emergencyStopped {
		o.mu.Unlock()
		return nil
	}
	o.emergencyStopped = true
	wasRunning := o.state == StateActive || o.state == StateActiveAutoTrading
	if wasRunning {
		o.state = StateConnected
	}
	o.mu.Unlock()

	log.Printf("EMERGENCY STOP: %s", reason)

	if wasRunning {
		o.worker.EnableAutoExecution(false)
		o.worker.StopAutomaticGeneration()
	}
	discarded := o.worker.DiscardPending("emergency stop: " + reason)
	if discarded > 0 {
		log.Printf("Discarded %d pending signals", discarded)
	}

	var closeErr error
	if o.bridge.IsConnected() {
		if closeErr = o.bridge.CloseAllPositions(ctx); closeErr != nil {
			log.Printf("Failed to close open positions during emergency stop: %v", closeErr)
		}
	}

	o.eventBus.Publish(events.Event{
		Type: events.EventEmergencyStop,
		Data: map[string]interface{}{"reason": reason, "discarded_signals": discarded},
	})
	return closeErr
}

// ClearEmergencyStop releases the latch. The bot stays in whatever state it
// held; trading must be restarted explicitly.
func (o *Orchestrator) ClearEmergencyStop() error {
	o.mu.Lock()
	if !o.emergencyStopped {
		o.mu.Unlock()
		return fmt.Errorf("emergency stop is not active")
	}
	o.emergencyStopped = false
	o.mu.Unlock()

	log.Println("Emergency stop cleared")
	o.eventBus.Publish(events.Event{Type: events.EventEmergencyCleared, Data: map[string]interface{}{}})
	return nil
}

// IsEmergencyStopped reports the latch state
func (o *Orchestrator) IsEmergencyStopped() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.emergencyStopped
}

// UpdateConfig swaps trading parameters in place. Allowed in any state and
// never causes a transition; a running worker picks the new values up on its
// next cycle.
func (o *Orchestrator) UpdateConfig(trading config.TradingConfig, sig config.SignalConfig) {
	o.mu.Lock()
	o.config.TradingConfig = trading
	o.config.SignalConfig = sig
	running := o.state == StateActive || o.state == StateActiveAutoTrading
	o.mu.Unlock()

	if running {
		o.worker.SetConfiguration(signal.Configuration{
			Symbols:           trading.EnabledPairs,
			IntervalSec:       sig.GenerationIntervalSec,
			TimeframeMinutes:  trading.TimeframeMinutes,
			HistoryCandles:    trading.HistoryCandles,
			MinScore:          trading.MinConfidence,
			MaxPendingSignals: sig.MaxPendingSignals,
			UseStopLoss:       trading.UseStopLoss,
			UseTakeProfit:     trading.UseTakeProfit,
			TradingHoursStart: trading.TradingHoursStart,
			TradingHoursEnd:   trading.TradingHoursEnd,
		})
	}
	log.Println("Configuration updated")
}

// GenerateTestSignal runs one manual evaluation for a single symbol and
// returns whatever the pipeline produces, without queueing it. Requires a
// running bot; when auto-trading is on, a produced signal executes
// immediately instead of waiting for the next cycle.
func (o *Orchestrator) GenerateTestSignal(ctx context.Context, symbol string) (*signal.Signal, error) {
	o.mu.RLock()
	state := o.state
	o.mu.RUnlock()
	if state != StateActive && state != StateActiveAutoTrading {
		return nil, fmt.Errorf("cannot generate test signal in state %s", state)
	}

	sig, err := o.worker.GenerateOnce(ctx, symbol)
	if err != nil || sig == nil {
		return sig, err
	}
	if state == StateActiveAutoTrading {
		if err := o.worker.ExecuteSignal(ctx, sig); err != nil {
			return sig, fmt.Errorf("executing test signal: %w", err)
		}
	}
	return sig, nil
}
