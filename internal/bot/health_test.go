package bot

import (
	"context"
	"errors"
	"testing"

	"forex-trading-bot/internal/market"
)

func severities(issues []Issue) map[Severity]int {
	out := make(map[Severity]int)
	for _, issue := range issues {
		out[issue.Severity]++
	}
	return out
}

func TestHealthChecksHealthyAccount(t *testing.T) {
	o := newTestOrchestrator(newFakeBridge(), nil)
	connect(t, o)

	issues := o.RunHealthChecks(context.Background())
	if n := severities(issues)[SeverityCritical]; n != 0 {
		t.Errorf("healthy setup should have no critical issues, got %d: %+v", n, issues)
	}
}

func TestHealthChecksUnreachableBridgeIsCritical(t *testing.T) {
	bridge := newFakeBridge()
	bridge.pingErr = errors.New("connection refused")
	o := newTestOrchestrator(bridge, nil)
	connect(t, o)

	issues := o.RunHealthChecks(context.Background())
	found := false
	for _, issue := range issues {
		if issue.Component == "bridge" && issue.Severity == SeverityCritical {
			found = true
			if issue.Resolution == "" {
				t.Error("critical issue should carry a resolution hint")
			}
		}
	}
	if !found {
		t.Errorf("unreachable bridge should report critical, got %+v", issues)
	}
}

func TestHealthChecksEmptyBalanceIsError(t *testing.T) {
	bridge := newFakeBridge()
	bridge.account.Balance = 0
	bridge.account.FreeMargin = 0
	o := newTestOrchestrator(bridge, nil)
	connect(t, o)

	issues := o.RunHealthChecks(context.Background())
	counts := severities(issues)
	if counts[SeverityError] < 2 {
		t.Errorf("zero balance and margin should report two errors, got %+v", issues)
	}
	if counts[SeverityCritical] != 0 {
		t.Errorf("funding problems are errors, not critical: %+v", issues)
	}
}

func TestHealthChecksNoPairsIsCritical(t *testing.T) {
	cfg := testConfig()
	cfg.TradingConfig.EnabledPairs = nil
	o := newTestOrchestrator(newFakeBridge(), cfg)
	connect(t, o)

	issues := o.RunHealthChecks(context.Background())
	found := false
	for _, issue := range issues {
		if issue.Component == "config" && issue.Severity == SeverityCritical {
			found = true
		}
	}
	if !found {
		t.Errorf("missing pairs should be critical, got %+v", issues)
	}
}

func TestHealthChecksMissingMarketDataIsError(t *testing.T) {
	bridge := newFakeBridge()
	bridge.historyErr = errors.New("symbol not found")
	o := newTestOrchestrator(bridge, nil)
	connect(t, o)

	issues := o.RunHealthChecks(context.Background())
	found := false
	for _, issue := range issues {
		if issue.Component == "market_data" && issue.Severity == SeverityError {
			found = true
		}
	}
	if !found {
		t.Errorf("unavailable history should report a market_data error, got %+v", issues)
	}
}

func TestHealthChecksDeadBridgeShortCircuits(t *testing.T) {
	// With the bridge unreachable the later probes never run; the caller
	// gets the connectivity failure alone
	bridge := newFakeBridge()
	bridge.pingErr = errors.New("timeout")
	bridge.account.Balance = 0
	bridge.caps = market.TradingCapabilities{CanTrade: false}
	o := newTestOrchestrator(bridge, nil)
	connect(t, o)

	issues := o.RunHealthChecks(context.Background())
	if len(issues) == 0 {
		t.Fatal("unreachable bridge should report an issue")
	}
	for _, issue := range issues {
		if issue.Component != "bridge" {
			t.Errorf("no stage should run against a dead bridge, got %+v", issue)
		}
	}
}

func TestHealthChecksRunAllStagesWhenBridgeAnswers(t *testing.T) {
	bridge := newFakeBridge()
	bridge.account.Balance = 0
	bridge.caps = market.TradingCapabilities{CanTrade: false}
	bridge.historyErr = errors.New("symbol not found")

	cfg := testConfig()
	cfg.TradingConfig.MaxRiskPerTrade = 50
	o := newTestOrchestrator(bridge, cfg)
	connect(t, o)

	issues := o.RunHealthChecks(context.Background())
	components := make(map[string]bool)
	for _, issue := range issues {
		components[issue.Component] = true
	}
	for _, want := range []string{"account", "permissions", "market_data", "config"} {
		if !components[want] {
			t.Errorf("expected findings from %s stage, got %+v", want, issues)
		}
	}
}

func TestHealthyIgnoresWarnings(t *testing.T) {
	warnings := []Issue{
		{Severity: SeverityWarning, Component: "account"},
		{Severity: SeverityWarning, Component: "config"},
	}
	if !Healthy(warnings) {
		t.Error("warnings alone should leave the bot healthy")
	}
	if Healthy(append(warnings, Issue{Severity: SeverityError, Component: "account"})) {
		t.Error("an error issue should mark the bot unhealthy")
	}
	if Healthy([]Issue{{Severity: SeverityCritical, Component: "bridge"}}) {
		t.Error("a critical issue should mark the bot unhealthy")
	}
	if !Healthy(nil) {
		t.Error("no issues should be healthy")
	}
}
