package main

import (
	"context"
	"log"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"forex-trading-bot/config"
	"forex-trading-bot/internal/api"
	"forex-trading-bot/internal/bot"
	"forex-trading-bot/internal/cache"
	"forex-trading-bot/internal/confluence"
	"forex-trading-bot/internal/database"
	"forex-trading-bot/internal/events"
	"forex-trading-bot/internal/logging"
	"forex-trading-bot/internal/market"
	"forex-trading-bot/internal/news"
	"forex-trading-bot/internal/risk"
	"forex-trading-bot/internal/signal"
	"forex-trading-bot/internal/smc"
	"forex-trading-bot/internal/vault"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.Setup(cfg.LoggingConfig)
	logger.Info().Msg("Configuration loaded")

	eventBus := events.NewEventBus()

	// Bridge credentials come from Vault when enabled, config otherwise
	credentials := market.Credentials{
		Login:    cfg.BridgeConfig.Login,
		Password: cfg.BridgeConfig.Password,
		Server:   cfg.BridgeConfig.Server,
	}
	vaultClient, err := vault.NewClient(cfg.VaultConfig)
	if err != nil {
		log.Fatalf("Failed to initialize vault client: %v", err)
	}
	if vaultClient.IsEnabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		creds, err := vaultClient.GetCredentials(ctx, "bridge")
		cancel()
		if err != nil {
			logger.Warn().Err(err).Msg("Vault credentials unavailable, falling back to config")
		} else {
			credentials = *creds
			logger.Info().Msg("Bridge credentials loaded from Vault")
		}
	}

	var bridge market.BridgeClient
	if cfg.BridgeConfig.Simulation {
		bridge = market.NewSimClient()
		logger.Info().Msg("Using simulated bridge client")
	} else {
		bridge = market.NewClient(cfg.BridgeConfig.BaseURL)
		logger.Info().Str("url", cfg.BridgeConfig.BaseURL).Msg("Using MT5 bridge client")
	}

	detector := smc.NewDetector(smc.Config{
		MinCandles:        cfg.DetectorConfig.MinCandles,
		MinMovePercent:    cfg.DetectorConfig.MinMovePercent,
		MinBlockStrength:  cfg.DetectorConfig.MinBlockStrength,
		MaxOrderBlocks:    cfg.DetectorConfig.MaxOrderBlocks,
		MaxFairValueGaps:  cfg.DetectorConfig.MaxFairValueGaps,
		ClusterTolerance:  cfg.DetectorConfig.ClusterTolerance,
		MinZoneStrength:   cfg.DetectorConfig.MinZoneStrength,
		MaxLiquidityZones: cfg.DetectorConfig.MaxLiquidityZones,
		SwingWindow:       cfg.DetectorConfig.SwingWindow,
		StructureLookback: cfg.DetectorConfig.StructureLookback,
	})

	newsTracker := news.NewImpactTracker(cfg.NewsConfig.MaxEventsPerCcy)
	volatility := news.NewVolatilityTracker(cfg.NewsConfig.VolatilityWindow)
	if cfg.NewsConfig.Enabled && cfg.NewsConfig.CalendarFile != "" {
		ingestCalendar(cfg.NewsConfig.CalendarFile, newsTracker, logger)
	}

	scorer := confluence.NewScorer()
	riskManager := risk.NewManager(&risk.Config{
		MaxRiskPerTrade:    cfg.RiskConfig.MaxRiskPerTrade,
		MaxDailyDrawdown:   cfg.RiskConfig.MaxDailyDrawdown,
		MaxOpenPositions:   cfg.RiskConfig.MaxOpenPositions,
		PositionSizeMethod: cfg.RiskConfig.PositionSizeMethod,
		FixedPositionLots:  cfg.RiskConfig.FixedPositionLots,
	})

	worker := signal.NewGenerator(bridge, detector, newsTracker, volatility, scorer, riskManager, eventBus, logger)
	orchestrator := bot.New(cfg, bridge, worker, detector, newsTracker, eventBus)

	// Optional persistence
	var repo *database.Repository
	if cfg.DatabaseConfig.Enabled {
		db, err := database.New(cfg.DatabaseConfig)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = db.RunMigrations(ctx)
		cancel()
		if err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}

		repo = database.NewRepository(db, logger)
		subscribePersistence(eventBus, worker, repo, logger)
		replayNewsHistory(repo, newsTracker, cfg.TradingConfig.EnabledPairs, logger)
	}

	// Optional analysis cache
	var analysisCache *cache.AnalysisCache
	if cfg.RedisConfig.Enabled {
		analysisCache, err = cache.New(cfg.RedisConfig)
		if err != nil {
			logger.Warn().Err(err).Msg("Analysis cache disabled")
		} else {
			defer analysisCache.Close()
		}
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// Live tick feed publishes price updates onto the bus
	if !cfg.BridgeConfig.Simulation && cfg.BridgeConfig.StreamURL != "" {
		stream := market.NewStream(cfg.BridgeConfig.StreamURL, cfg.TradingConfig.EnabledPairs)
		go func() {
			if err := stream.Run(rootCtx); err != nil && rootCtx.Err() == nil {
				logger.Error().Err(err).Msg("Tick stream stopped")
			}
		}()
		go func() {
			for tick := range stream.Ticks() {
				eventBus.PublishPriceUpdate(tick.Symbol, (tick.Bid+tick.Ask)/2)
			}
		}()
		defer stream.Close()
	}

	server := api.NewServer(cfg.ServerConfig, api.Deps{
		Orchestrator:  orchestrator,
		Worker:        worker,
		RiskManager:   riskManager,
		Detector:      detector,
		Bridge:        bridge,
		EventBus:      eventBus,
		AnalysisCache: analysisCache,
		Repo:          repo,
		AppConfig:     cfg,
		Credentials:   credentials,
	})

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	logger.Info().
		Strs("pairs", cfg.TradingConfig.EnabledPairs).
		Int("port", cfg.ServerConfig.Port).
		Msg("Forex trading bot is up")

	sigCh := make(chan os.Signal, 1)
	ossignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("Shutting down")

	rootCancel()

	if orchestrator.Status().Running {
		if err := orchestrator.Stop(); err != nil {
			logger.Error().Err(err).Msg("Stopping bot failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}

	logger.Info().Msg("Shutdown complete")
}

// ingestCalendar seeds the impact tracker from a JSONL economic calendar
func ingestCalendar(path string, tracker *news.ImpactTracker, logger zerolog.Logger) {
	file, err := os.Open(path)
	if err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("Calendar file not readable")
		return
	}
	defer file.Close()

	calendarEvents, err := news.ReadCalendar(file)
	if err != nil {
		logger.Warn().Err(err).Msg("Calendar parse failed")
		return
	}
	for _, ce := range calendarEvents {
		tracker.AddEvent(ce.ToEvent())
	}
	logger.Info().Int("events", len(calendarEvents)).Str("path", path).Msg("Calendar ingested")
}

// subscribePersistence writes signal lifecycle events through to PostgreSQL
func subscribePersistence(bus *events.EventBus, worker *signal.Generator, repo *database.Repository, logger zerolog.Logger) {
	persist := func(event events.Event) {
		id, _ := event.Data["signal_id"].(string)
		if id == "" {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		for _, sig := range append(worker.PendingSignals(), worker.RecentSignals()...) {
			if sig.ID == id {
				if err := repo.SaveSignal(ctx, sig); err != nil {
					logger.Error().Err(err).Str("signal_id", id).Msg("Persisting signal failed")
				}
				return
			}
		}
	}

	bus.Subscribe(events.EventSignalGenerated, persist)
	bus.Subscribe(events.EventSignalExecuted, persist)
	bus.Subscribe(events.EventSignalDiscarded, persist)

	bus.Subscribe(events.EventSignalExecuted, func(event events.Event) {
		id, _ := event.Data["signal_id"].(string)
		if id == "" {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		for _, sig := range worker.RecentSignals() {
			if sig.ID != id || sig.EntryZone == nil {
				continue
			}
			side := "BUY"
			if sig.Bias == confluence.BiasSell {
				side = "SELL"
			}
			trade := database.TradeRecord{
				SignalID:   sig.ID,
				Ticket:     sig.Ticket,
				Symbol:     sig.Symbol,
				Side:       side,
				EntryPrice: (sig.EntryZone.High + sig.EntryZone.Low) / 2,
				Lots:       sig.Lots,
				StopLoss:   sig.InvalidationLevel,
				EntryTime:  time.Now().UTC(),
			}
			if err := repo.OpenTrade(ctx, trade); err != nil {
				logger.Error().Err(err).Str("signal_id", id).Msg("Recording trade failed")
			}
			return
		}
	})
}

// replayNewsHistory warms the impact model from persisted events
func replayNewsHistory(repo *database.Repository, tracker *news.ImpactTracker, pairs []string, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	seen := map[string]bool{}
	total := 0
	for _, pair := range pairs {
		base, quote, err := market.SplitPair(pair)
		if err != nil {
			continue
		}
		for _, ccy := range []string{base, quote} {
			if seen[ccy] {
				continue
			}
			seen[ccy] = true
			history, err := repo.LoadNewsEvents(ctx, ccy, 100)
			if err != nil {
				logger.Warn().Err(err).Str("currency", ccy).Msg("Loading news history failed")
				continue
			}
			for _, e := range history {
				tracker.AddEvent(e)
			}
			total += len(history)
		}
	}
	if total > 0 {
		logger.Info().Int("events", total).Msg("Replayed persisted news events")
	}
}
