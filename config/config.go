package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	BridgeConfig   BridgeConfig   `json:"bridge"`
	TradingConfig  TradingConfig  `json:"trading"`
	DetectorConfig DetectorConfig `json:"detector"`
	NewsConfig     NewsConfig     `json:"news"`
	RiskConfig     RiskConfig     `json:"risk"`
	SignalConfig   SignalConfig   `json:"signal"`
	LoggingConfig  LoggingConfig  `json:"logging"`
	ServerConfig   ServerConfig   `json:"server"`
	DatabaseConfig DatabaseConfig `json:"database"`
	RedisConfig    RedisConfig    `json:"redis"`
	VaultConfig    VaultConfig    `json:"vault"`
}

// BridgeConfig holds MT5 bridge connection configuration
type BridgeConfig struct {
	BaseURL        string `json:"base_url"`
	StreamURL      string `json:"stream_url"`       // WebSocket tick stream endpoint
	Login          int64  `json:"login"`
	Password       string `json:"password"`
	Server         string `json:"server"`
	ProbeTimeoutMs int    `json:"probe_timeout_ms"` // Reachability probe timeout
	Simulation     bool   `json:"simulation"`       // Explicit simulation mode, never a silent fallback
}

// TradingConfig holds bot-level trading configuration
type TradingConfig struct {
	MinConfidence        float64  `json:"min_confidence"`     // Minimum confluence score to act on
	MaxRiskPerTrade      float64  `json:"max_risk_per_trade"` // Percentage of account per trade
	MaxDailyLoss         float64  `json:"max_daily_loss"`     // Percentage; bot stops for the day past this
	EnabledPairs         []string `json:"enabled_pairs"`
	TradingHoursStart    string   `json:"trading_hours_start"` // "HH:MM" UTC
	TradingHoursEnd      string   `json:"trading_hours_end"`   // "HH:MM" UTC
	UseStopLoss          bool     `json:"use_stop_loss"`
	UseTakeProfit        bool     `json:"use_take_profit"`
	EmergencyStopEnabled bool     `json:"emergency_stop_enabled"`
	TimeframeMinutes     int      `json:"timeframe_minutes"`
	HistoryCandles       int      `json:"history_candles"` // Candles fetched per evaluation
}

// DetectorConfig holds price-action detector thresholds
type DetectorConfig struct {
	MinCandles        int     `json:"min_candles"`        // Below this the detector returns empty results
	MinMovePercent    float64 `json:"min_move_percent"`   // Minimum 3-candle reversal move
	MinBlockStrength  float64 `json:"min_block_strength"` // Order blocks weaker than this are discarded
	MaxOrderBlocks    int     `json:"max_order_blocks"`
	MaxFairValueGaps  int     `json:"max_fair_value_gaps"`
	ClusterTolerance  float64 `json:"cluster_tolerance"` // Relative distance percent for liquidity clustering
	MinZoneStrength   float64 `json:"min_zone_strength"` // Single configurable cutoff; see DESIGN.md
	MaxLiquidityZones int     `json:"max_liquidity_zones"`
	SwingWindow       int     `json:"swing_window"` // Neighbors per side for swing points
	StructureLookback int     `json:"structure_lookback"`
}

// NewsConfig holds news impact model configuration
type NewsConfig struct {
	Enabled          bool   `json:"enabled"`
	MaxEventsPerCcy  int    `json:"max_events_per_currency"` // Bounded history, FIFO eviction
	VolatilityWindow int    `json:"volatility_window"`       // Rolling readings per symbol
	CalendarFile     string `json:"calendar_file"`           // Optional JSONL calendar to ingest on boot
}

type RiskConfig struct {
	MaxRiskPerTrade    float64 `json:"max_risk_per_trade"`
	MaxDailyDrawdown   float64 `json:"max_daily_drawdown"`
	MaxOpenPositions   int     `json:"max_open_positions"`
	PositionSizeMethod string  `json:"position_size_method"` // "fixed" or "percent"
	FixedPositionLots  float64 `json:"fixed_position_lots"`
}

// SignalConfig holds signal worker configuration
type SignalConfig struct {
	GenerationIntervalSec int  `json:"generation_interval_sec"`
	MaxPendingSignals     int  `json:"max_pending_signals"`
	AutoExecute           bool `json:"auto_execute"`
}

type LoggingConfig struct {
	Level       string `json:"level"`        // DEBUG, INFO, WARN, ERROR
	Output      string `json:"output"`       // stdout, stderr, or file path
	JSONFormat  bool   `json:"json_format"`  // Output as JSON
	IncludeFile bool   `json:"include_file"` // Include file and line number
}

// ServerConfig holds the status/control HTTP API configuration
type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"`
	ReadTimeout     int    `json:"read_timeout"`     // seconds
	WriteTimeout    int    `json:"write_timeout"`    // seconds
	ShutdownTimeout int    `json:"shutdown_timeout"` // seconds
}

// DatabaseConfig holds PostgreSQL configuration for event/trade history
type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	URL      string `json:"url"`
	MaxConns int    `json:"max_conns"`
}

// RedisConfig holds Redis configuration for analysis snapshot caching
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// VaultConfig holds HashiCorp Vault configuration for bridge credentials
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`
	SecretPath string `json:"secret_path"`
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

func Load() (*Config, error) {
	// First try to load base config from file
	cfg, err := loadFromFile("config.json")
	if err != nil {
		// If no config file, start with empty config
		cfg = &Config{}
	}

	// Apply environment variable overrides (these take precedence)
	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Bridge credentials may also come from Vault; environment values win only
// when set.
func applyEnvOverrides(cfg *Config) {
	// Bridge config
	cfg.BridgeConfig.BaseURL = getEnvOrDefault("BRIDGE_BASE_URL", cfg.BridgeConfig.BaseURL)
	cfg.BridgeConfig.StreamURL = getEnvOrDefault("BRIDGE_STREAM_URL", cfg.BridgeConfig.StreamURL)
	cfg.BridgeConfig.Login = getEnvInt64OrDefault("BRIDGE_LOGIN", cfg.BridgeConfig.Login)
	cfg.BridgeConfig.Password = getEnvOrDefault("BRIDGE_PASSWORD", cfg.BridgeConfig.Password)
	cfg.BridgeConfig.Server = getEnvOrDefault("BRIDGE_SERVER", cfg.BridgeConfig.Server)
	cfg.BridgeConfig.Simulation = getEnvOrDefault("BRIDGE_SIMULATION", boolStr(cfg.BridgeConfig.Simulation)) == "true"

	// Trading config
	if pairs := os.Getenv("TRADING_ENABLED_PAIRS"); pairs != "" {
		cfg.TradingConfig.EnabledPairs = splitAndTrim(pairs)
	}
	cfg.TradingConfig.MinConfidence = getEnvFloatOrDefault("TRADING_MIN_CONFIDENCE", cfg.TradingConfig.MinConfidence)
	cfg.TradingConfig.MaxRiskPerTrade = getEnvFloatOrDefault("TRADING_MAX_RISK_PER_TRADE", cfg.TradingConfig.MaxRiskPerTrade)
	cfg.TradingConfig.MaxDailyLoss = getEnvFloatOrDefault("TRADING_MAX_DAILY_LOSS", cfg.TradingConfig.MaxDailyLoss)

	// News config
	cfg.NewsConfig.Enabled = getEnvOrDefault("NEWS_ENABLED", "true") == "true"
	cfg.NewsConfig.CalendarFile = getEnvOrDefault("NEWS_CALENDAR_FILE", cfg.NewsConfig.CalendarFile)

	// Signal config
	cfg.SignalConfig.GenerationIntervalSec = getEnvIntOrDefault("SIGNAL_INTERVAL_SEC", cfg.SignalConfig.GenerationIntervalSec)

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", "INFO")
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", "stdout")
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", "true") == "true"
	cfg.LoggingConfig.IncludeFile = getEnvOrDefault("LOG_INCLUDE_FILE", "false") == "true"

	// Server config
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", 8080)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", "0.0.0.0")
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", "*")
	cfg.ServerConfig.ReadTimeout = getEnvIntOrDefault("SERVER_READ_TIMEOUT", 30)
	cfg.ServerConfig.WriteTimeout = getEnvIntOrDefault("SERVER_WRITE_TIMEOUT", 30)
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10)

	// Database config
	cfg.DatabaseConfig.Enabled = getEnvOrDefault("DATABASE_ENABLED", boolStr(cfg.DatabaseConfig.Enabled)) == "true"
	cfg.DatabaseConfig.URL = getEnvOrDefault("DATABASE_URL", cfg.DatabaseConfig.URL)

	// Redis config
	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", boolStr(cfg.RedisConfig.Enabled)) == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)

	// Vault config
	cfg.VaultConfig.Enabled = getEnvOrDefault("VAULT_ENABLED", "false") == "true"
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", "http://localhost:8200")
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", "secret")
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", "forex-bot/bridge-credentials")
	cfg.VaultConfig.TLSEnabled = getEnvOrDefault("VAULT_TLS_ENABLED", "false") == "true"
}

// applyDefaults fills zero values with safe defaults
func applyDefaults(cfg *Config) {
	if cfg.BridgeConfig.BaseURL == "" {
		cfg.BridgeConfig.BaseURL = "http://localhost:8000"
	}
	if cfg.BridgeConfig.ProbeTimeoutMs <= 0 {
		cfg.BridgeConfig.ProbeTimeoutMs = 3000
	}

	if cfg.TradingConfig.MinConfidence <= 0 {
		cfg.TradingConfig.MinConfidence = 40
	}
	if cfg.TradingConfig.MaxRiskPerTrade <= 0 {
		cfg.TradingConfig.MaxRiskPerTrade = 1.0
	}
	if cfg.TradingConfig.MaxDailyLoss <= 0 {
		cfg.TradingConfig.MaxDailyLoss = 5.0
	}
	if len(cfg.TradingConfig.EnabledPairs) == 0 {
		cfg.TradingConfig.EnabledPairs = []string{"EURUSD", "GBPUSD", "USDJPY"}
	}
	if cfg.TradingConfig.TimeframeMinutes <= 0 {
		cfg.TradingConfig.TimeframeMinutes = 15
	}
	if cfg.TradingConfig.HistoryCandles <= 0 {
		cfg.TradingConfig.HistoryCandles = 100
	}

	if cfg.DetectorConfig.MinCandles <= 0 {
		cfg.DetectorConfig.MinCandles = 20
	}
	if cfg.DetectorConfig.MinMovePercent <= 0 {
		cfg.DetectorConfig.MinMovePercent = 0.05
	}
	if cfg.DetectorConfig.MinBlockStrength <= 0 {
		cfg.DetectorConfig.MinBlockStrength = 20
	}
	if cfg.DetectorConfig.MaxOrderBlocks <= 0 {
		cfg.DetectorConfig.MaxOrderBlocks = 10
	}
	if cfg.DetectorConfig.MaxFairValueGaps <= 0 {
		cfg.DetectorConfig.MaxFairValueGaps = 5
	}
	if cfg.DetectorConfig.ClusterTolerance <= 0 {
		cfg.DetectorConfig.ClusterTolerance = 0.2
	}
	if cfg.DetectorConfig.MinZoneStrength <= 0 {
		cfg.DetectorConfig.MinZoneStrength = 30
	}
	if cfg.DetectorConfig.MaxLiquidityZones <= 0 {
		cfg.DetectorConfig.MaxLiquidityZones = 6
	}
	if cfg.DetectorConfig.SwingWindow <= 0 {
		cfg.DetectorConfig.SwingWindow = 2
	}
	if cfg.DetectorConfig.StructureLookback <= 0 {
		cfg.DetectorConfig.StructureLookback = 20
	}

	if cfg.NewsConfig.MaxEventsPerCcy <= 0 {
		cfg.NewsConfig.MaxEventsPerCcy = 100
	}
	if cfg.NewsConfig.VolatilityWindow <= 0 {
		cfg.NewsConfig.VolatilityWindow = 50
	}

	if cfg.RiskConfig.MaxRiskPerTrade <= 0 {
		cfg.RiskConfig.MaxRiskPerTrade = 1.0
	}
	if cfg.RiskConfig.MaxDailyDrawdown <= 0 {
		cfg.RiskConfig.MaxDailyDrawdown = 5.0
	}
	if cfg.RiskConfig.MaxOpenPositions <= 0 {
		cfg.RiskConfig.MaxOpenPositions = 3
	}
	if cfg.RiskConfig.PositionSizeMethod == "" {
		cfg.RiskConfig.PositionSizeMethod = "percent"
	}
	if cfg.RiskConfig.FixedPositionLots <= 0 {
		cfg.RiskConfig.FixedPositionLots = 0.01
	}

	if cfg.SignalConfig.GenerationIntervalSec <= 0 {
		cfg.SignalConfig.GenerationIntervalSec = 180
	}
	if cfg.SignalConfig.MaxPendingSignals <= 0 {
		cfg.SignalConfig.MaxPendingSignals = 20
	}

	if cfg.DatabaseConfig.MaxConns <= 0 {
		cfg.DatabaseConfig.MaxConns = 4
	}
	if cfg.RedisConfig.PoolSize <= 0 {
		cfg.RedisConfig.PoolSize = 10
	}
}

func loadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
