package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"forex-trading-bot/config"
	"forex-trading-bot/internal/bot"
	"forex-trading-bot/internal/cache"
	"forex-trading-bot/internal/database"
	"forex-trading-bot/internal/events"
	"forex-trading-bot/internal/market"
	"forex-trading-bot/internal/risk"
	"forex-trading-bot/internal/signal"
	"forex-trading-bot/internal/smc"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Server exposes the status/control HTTP API
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	config     config.ServerConfig

	orchestrator *bot.Orchestrator
	worker       *signal.Generator
	riskManager  *risk.Manager
	detector     *smc.Detector
	bridge       market.BridgeClient
	eventBus     *events.EventBus

	// Optional; nil when the corresponding backend is disabled
	analysisCache *cache.AnalysisCache
	repo          *database.Repository

	appConfig   *config.Config
	credentials market.Credentials
	hub         *WSHub
}

// Deps bundles what the server needs from the rest of the application
type Deps struct {
	Orchestrator  *bot.Orchestrator
	Worker        *signal.Generator
	RiskManager   *risk.Manager
	Detector      *smc.Detector
	Bridge        market.BridgeClient
	EventBus      *events.EventBus
	AnalysisCache *cache.AnalysisCache
	Repo          *database.Repository
	AppConfig     *config.Config
	Credentials   market.Credentials
}

// NewServer creates the API server and registers all routes
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if cfg.AllowedOrigins == "" || cfg.AllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = splitOrigins(cfg.AllowedOrigins)
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		router:        router,
		config:        cfg,
		orchestrator:  deps.Orchestrator,
		worker:        deps.Worker,
		riskManager:   deps.RiskManager,
		detector:      deps.Detector,
		bridge:        deps.Bridge,
		eventBus:      deps.EventBus,
		analysisCache: deps.AnalysisCache,
		repo:          deps.Repo,
		appConfig:     deps.AppConfig,
		credentials:   deps.Credentials,
	}

	if deps.EventBus != nil {
		s.hub = NewWSHub(deps.EventBus)
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.GET("/config", s.handleGetConfig)
		api.PUT("/config", s.handleUpdateConfig)
		api.GET("/health", s.handleHealthChecks)

		api.POST("/connect", s.handleConnect)
		api.POST("/start", s.handleStart)
		api.POST("/stop", s.handleStop)
		api.POST("/auto-trading/enable", s.handleEnableAutoTrading)
		api.POST("/auto-trading/disable", s.handleDisableAutoTrading)
		api.POST("/emergency-stop", s.handleEmergencyStop)
		api.POST("/emergency-stop/clear", s.handleClearEmergencyStop)

		api.GET("/analysis/:symbol", s.handleAnalysis)
		api.GET("/price/:symbol", s.handlePrice)

		api.GET("/signals", s.handleRecentSignals)
		api.GET("/signals/pending", s.handlePendingSignals)
		api.GET("/signals/history", s.handleSignalHistory)
		api.POST("/signals/test", s.handleTestSignal)
		api.POST("/signals/execute", s.handleExecutePending)

		api.GET("/risk", s.handleRiskMetrics)
	}

	if s.hub != nil {
		s.router.GET("/ws", s.hub.HandleConnection)
	}
}

// Start runs the HTTP server until it is shut down
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	readTimeout := time.Duration(s.config.ReadTimeout) * time.Second
	if readTimeout <= 0 {
		readTimeout = 30 * time.Second
	}
	writeTimeout := time.Duration(s.config.WriteTimeout) * time.Second
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("Starting HTTP server on %s", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down HTTP server...")

	if s.hub != nil {
		s.hub.Close()
	}
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Router exposes the gin engine, used by tests
func (s *Server) Router() http.Handler {
	return s.router
}

func splitOrigins(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}
