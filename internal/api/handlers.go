package api

import (
	"net/http"
	"strconv"
	"time"

	"forex-trading-bot/config"
	"forex-trading-bot/internal/bot"

	"github.com/gin-gonic/gin"
)

// handleHealth is the liveness probe
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStatus returns the orchestrator state snapshot, with closed-trade
// performance when the database is configured
func (s *Server) handleStatus(c *gin.Context) {
	status := s.orchestrator.Status()
	if s.repo == nil {
		successResponse(c, status)
		return
	}

	payload := gin.H{
		"state":             status.State,
		"connected":         status.Connected,
		"running":           status.Running,
		"auto_trading":      status.AutoTrading,
		"emergency_stopped": status.EmergencyStopped,
		"connected_since":   status.ConnectedSince,
		"started_at":        status.StartedAt,
		"last_health_check": status.LastHealthCheck,
		"enabled_pairs":     status.EnabledPairs,
	}
	if stats, err := s.repo.Stats(c.Request.Context()); err == nil {
		payload["trade_stats"] = stats
	}
	successResponse(c, payload)
}

// handleGetConfig returns the trading-facing configuration sections
func (s *Server) handleGetConfig(c *gin.Context) {
	successResponse(c, gin.H{
		"trading": s.appConfig.TradingConfig,
		"signal":  s.appConfig.SignalConfig,
		"risk":    s.appConfig.RiskConfig,
		"news":    s.appConfig.NewsConfig,
	})
}

// handleUpdateConfig applies trading/signal configuration at runtime. The
// orchestrator pushes the new values into a running worker without a state
// transition.
func (s *Server) handleUpdateConfig(c *gin.Context) {
	var req struct {
		Trading *config.TradingConfig `json:"trading"`
		Signal  *config.SignalConfig  `json:"signal"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid config payload: "+err.Error())
		return
	}
	if req.Trading == nil && req.Signal == nil {
		errorResponse(c, http.StatusBadRequest, "nothing to update")
		return
	}

	trading := s.appConfig.TradingConfig
	if req.Trading != nil {
		trading = *req.Trading
	}
	sig := s.appConfig.SignalConfig
	if req.Signal != nil {
		sig = *req.Signal
	}

	s.orchestrator.UpdateConfig(trading, sig)
	s.appConfig.TradingConfig = trading
	s.appConfig.SignalConfig = sig

	successResponse(c, gin.H{
		"trading": trading,
		"signal":  sig,
	})
}

// handleHealthChecks runs the preflight checks on demand. Warnings alone do
// not flip the healthy flag.
func (s *Server) handleHealthChecks(c *gin.Context) {
	issues := s.orchestrator.RunHealthChecks(c.Request.Context())
	successResponse(c, gin.H{
		"issues":  issues,
		"healthy": bot.Healthy(issues),
	})
}

// handleConnect establishes the bridge session
func (s *Server) handleConnect(c *gin.Context) {
	if err := s.orchestrator.Connect(c.Request.Context(), s.credentials); err != nil {
		errorResponse(c, http.StatusConflict, err.Error())
		return
	}
	successResponse(c, s.orchestrator.Status())
}

// handleStart begins automatic analysis
func (s *Server) handleStart(c *gin.Context) {
	if err := s.orchestrator.Start(c.Request.Context()); err != nil {
		errorResponse(c, http.StatusConflict, err.Error())
		return
	}
	successResponse(c, s.orchestrator.Status())
}

// handleStop halts analysis, keeping the bridge session
func (s *Server) handleStop(c *gin.Context) {
	if err := s.orchestrator.Stop(); err != nil {
		errorResponse(c, http.StatusConflict, err.Error())
		return
	}
	successResponse(c, s.orchestrator.Status())
}

func (s *Server) handleEnableAutoTrading(c *gin.Context) {
	if err := s.orchestrator.EnableAutoTrading(); err != nil {
		errorResponse(c, http.StatusConflict, err.Error())
		return
	}
	successResponse(c, s.orchestrator.Status())
}

func (s *Server) handleDisableAutoTrading(c *gin.Context) {
	if err := s.orchestrator.DisableAutoTrading(); err != nil {
		errorResponse(c, http.StatusConflict, err.Error())
		return
	}
	successResponse(c, s.orchestrator.Status())
}

// handleEmergencyStop latches the emergency stop and closes all positions
func (s *Server) handleEmergencyStop(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "manual emergency stop via API"
	}

	if err := s.orchestrator.EmergencyStop(c.Request.Context(), req.Reason); err != nil {
		// The latch is set even when closing positions failed
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"data":      s.orchestrator.Status(),
			"close_err": err.Error(),
		})
		return
	}
	successResponse(c, s.orchestrator.Status())
}

func (s *Server) handleClearEmergencyStop(c *gin.Context) {
	if err := s.orchestrator.ClearEmergencyStop(); err != nil {
		errorResponse(c, http.StatusConflict, err.Error())
		return
	}
	successResponse(c, s.orchestrator.Status())
}

// handleAnalysis returns the latest market structure snapshot for a symbol,
// from cache when available, otherwise computed from fresh candles.
func (s *Server) handleAnalysis(c *gin.Context) {
	symbol := c.Param("symbol")
	ctx := c.Request.Context()

	if s.analysisCache != nil {
		if cached, err := s.analysisCache.GetAnalysis(ctx, symbol); err == nil && cached != nil {
			successResponse(c, gin.H{"analysis": cached, "cached": true})
			return
		}
	}

	if !s.bridge.IsConnected() {
		errorResponse(c, http.StatusServiceUnavailable, "bridge is not connected")
		return
	}

	timeframe := s.appConfig.TradingConfig.TimeframeMinutes
	count := s.appConfig.TradingConfig.HistoryCandles
	candles, err := s.bridge.GetHistoricalData(ctx, symbol, timeframe, count)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, "fetching candles: "+err.Error())
		return
	}
	price, err := s.bridge.GetCurrentPrice(ctx, symbol)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, "fetching price: "+err.Error())
		return
	}

	analysis := s.detector.Analyze(symbol, candles, price)
	if s.analysisCache != nil {
		s.analysisCache.StoreAnalysis(ctx, analysis)
	}
	successResponse(c, gin.H{"analysis": analysis, "cached": false})
}

// handlePrice returns the current price for a symbol
func (s *Server) handlePrice(c *gin.Context) {
	if !s.bridge.IsConnected() {
		errorResponse(c, http.StatusServiceUnavailable, "bridge is not connected")
		return
	}

	symbol := c.Param("symbol")
	price, err := s.bridge.GetCurrentPrice(c.Request.Context(), symbol)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, err.Error())
		return
	}
	successResponse(c, gin.H{"symbol": symbol, "price": price})
}

// handleRecentSignals returns the in-memory signal history
func (s *Server) handleRecentSignals(c *gin.Context) {
	successResponse(c, s.worker.RecentSignals())
}

// handlePendingSignals returns signals awaiting execution
func (s *Server) handlePendingSignals(c *gin.Context) {
	successResponse(c, s.worker.PendingSignals())
}

// handleSignalHistory returns persisted signals, newest first
func (s *Server) handleSignalHistory(c *gin.Context) {
	if s.repo == nil {
		errorResponse(c, http.StatusNotImplemented, "signal history requires the database")
		return
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := s.repo.RecentSignals(c.Request.Context(), limit)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	successResponse(c, records)
}

// handleTestSignal runs a one-off evaluation for a symbol without queueing
func (s *Server) handleTestSignal(c *gin.Context) {
	var req struct {
		Symbol string `json:"symbol" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "symbol is required")
		return
	}

	sig, err := s.orchestrator.GenerateTestSignal(c.Request.Context(), req.Symbol)
	if err != nil {
		errorResponse(c, http.StatusConflict, err.Error())
		return
	}
	if sig == nil {
		successResponse(c, gin.H{"signal": nil, "message": "no actionable setup for " + req.Symbol})
		return
	}
	successResponse(c, gin.H{"signal": sig})
}

// handleExecutePending forces execution of all queued signals
func (s *Server) handleExecutePending(c *gin.Context) {
	executed, err := s.worker.ForceExecutePendingSignals(c.Request.Context())
	if err != nil {
		errorResponse(c, http.StatusConflict, err.Error())
		return
	}
	successResponse(c, gin.H{"executed": executed})
}

// handleRiskMetrics returns the risk manager's live counters
func (s *Server) handleRiskMetrics(c *gin.Context) {
	successResponse(c, s.riskManager.GetRiskMetrics())
}
