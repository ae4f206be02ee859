package config

import (
	"reflect"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	if cfg.BridgeConfig.BaseURL != "http://localhost:8000" {
		t.Errorf("unexpected bridge default: %s", cfg.BridgeConfig.BaseURL)
	}
	if cfg.BridgeConfig.ProbeTimeoutMs != 3000 {
		t.Errorf("unexpected probe timeout: %d", cfg.BridgeConfig.ProbeTimeoutMs)
	}
	if cfg.TradingConfig.MinConfidence != 40 {
		t.Errorf("unexpected min confidence: %v", cfg.TradingConfig.MinConfidence)
	}
	if got := cfg.TradingConfig.EnabledPairs; !reflect.DeepEqual(got, []string{"EURUSD", "GBPUSD", "USDJPY"}) {
		t.Errorf("unexpected default pairs: %v", got)
	}
	if cfg.DetectorConfig.SwingWindow != 2 {
		t.Errorf("unexpected swing window: %d", cfg.DetectorConfig.SwingWindow)
	}
	if cfg.DetectorConfig.MinZoneStrength != 30 {
		t.Errorf("unexpected zone strength: %v", cfg.DetectorConfig.MinZoneStrength)
	}
	if cfg.NewsConfig.MaxEventsPerCcy != 100 {
		t.Errorf("unexpected news capacity: %d", cfg.NewsConfig.MaxEventsPerCcy)
	}
	if cfg.SignalConfig.GenerationIntervalSec != 180 {
		t.Errorf("unexpected signal interval: %d", cfg.SignalConfig.GenerationIntervalSec)
	}
	if cfg.RiskConfig.PositionSizeMethod != "percent" {
		t.Errorf("unexpected sizing method: %s", cfg.RiskConfig.PositionSizeMethod)
	}
}

func TestDefaultsDoNotOverrideExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.TradingConfig.MinConfidence = 65
	cfg.DetectorConfig.MaxOrderBlocks = 3
	applyDefaults(cfg)

	if cfg.TradingConfig.MinConfidence != 65 {
		t.Errorf("explicit min confidence was overridden: %v", cfg.TradingConfig.MinConfidence)
	}
	if cfg.DetectorConfig.MaxOrderBlocks != 3 {
		t.Errorf("explicit max order blocks was overridden: %d", cfg.DetectorConfig.MaxOrderBlocks)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BRIDGE_BASE_URL", "http://bridge:9000")
	t.Setenv("BRIDGE_LOGIN", "5021337")
	t.Setenv("BRIDGE_SIMULATION", "true")
	t.Setenv("TRADING_ENABLED_PAIRS", "EURUSD, GBPUSD ,USDJPY")
	t.Setenv("TRADING_MIN_CONFIDENCE", "62.5")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("WEB_PORT", "9090")
	t.Setenv("VAULT_ENABLED", "true")

	cfg := &Config{}
	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if cfg.BridgeConfig.BaseURL != "http://bridge:9000" {
		t.Errorf("bridge url override failed: %s", cfg.BridgeConfig.BaseURL)
	}
	if cfg.BridgeConfig.Login != 5021337 {
		t.Errorf("login override failed: %d", cfg.BridgeConfig.Login)
	}
	if !cfg.BridgeConfig.Simulation {
		t.Error("simulation override failed")
	}
	if got := cfg.TradingConfig.EnabledPairs; !reflect.DeepEqual(got, []string{"EURUSD", "GBPUSD", "USDJPY"}) {
		t.Errorf("pairs override failed: %v", got)
	}
	if cfg.TradingConfig.MinConfidence != 62.5 {
		t.Errorf("min confidence override failed: %v", cfg.TradingConfig.MinConfidence)
	}
	if cfg.LoggingConfig.Level != "DEBUG" {
		t.Errorf("log level override failed: %s", cfg.LoggingConfig.Level)
	}
	if cfg.ServerConfig.Port != 9090 {
		t.Errorf("port override failed: %d", cfg.ServerConfig.Port)
	}
	if !cfg.VaultConfig.Enabled {
		t.Error("vault enable override failed")
	}
	if cfg.VaultConfig.MountPath != "secret" {
		t.Errorf("vault mount default missing: %s", cfg.VaultConfig.MountPath)
	}
}

func TestInvalidEnvValuesFallBack(t *testing.T) {
	t.Setenv("WEB_PORT", "not-a-number")
	t.Setenv("TRADING_MIN_CONFIDENCE", "abc")

	cfg := &Config{}
	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if cfg.ServerConfig.Port != 8080 {
		t.Errorf("bad port should fall back to 8080, got %d", cfg.ServerConfig.Port)
	}
	if cfg.TradingConfig.MinConfidence != 40 {
		t.Errorf("bad confidence should fall back to default, got %v", cfg.TradingConfig.MinConfidence)
	}
}

func TestSplitAndTrim(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"EURUSD,GBPUSD", []string{"EURUSD", "GBPUSD"}},
		{" EURUSD , GBPUSD ", []string{"EURUSD", "GBPUSD"}},
		{"EURUSD,,GBPUSD,", []string{"EURUSD", "GBPUSD"}},
		{",", []string{}},
	}
	for _, tc := range cases {
		if got := splitAndTrim(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("splitAndTrim(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
