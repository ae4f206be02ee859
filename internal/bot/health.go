package bot

import (
	"context"
	"fmt"
	"time"
)

// Severity grades a health issue
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityError    Severity = "ERROR"
	SeverityWarning  Severity = "WARNING"
)

// Issue is one finding from the pre-start health gate
type Issue struct {
	Severity   Severity `json:"severity"`
	Component  string   `json:"component"`
	Message    string   `json:"message"`
	Resolution string   `json:"resolution"`
}

// probeTimeout bounds each individual bridge probe
const probeTimeout = 3 * time.Second

// RunHealthChecks walks the pre-start gate: bridge reachability first, and
// only when the bridge answers do the account, permission, market data and
// configuration stages run. Probing a dead bridge would just burn four more
// timeouts without telling the caller anything new.
func (o *Orchestrator) RunHealthChecks(ctx context.Context) []Issue {
	issues := o.checkBridge(ctx)
	if len(issues) > 0 {
		return issues
	}

	issues = append(issues, o.checkAccount(ctx)...)
	issues = append(issues, o.checkTradingPermissions(ctx)...)
	issues = append(issues, o.checkMarketData(ctx)...)
	issues = append(issues, o.checkConfiguration()...)

	return issues
}

// Healthy reports whether an issue list leaves the bot fit to start.
// Warnings alone do not count against health.
func Healthy(issues []Issue) bool {
	for _, issue := range issues {
		if issue.Severity == SeverityCritical || issue.Severity == SeverityError {
			return false
		}
	}
	return true
}

// checkBridge verifies the bridge answers within the probe timeout
func (o *Orchestrator) checkBridge(ctx context.Context) []Issue {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if !o.bridge.IsConnected() {
		return []Issue{{
			Severity:   SeverityCritical,
			Component:  "bridge",
			Message:    "no active bridge session",
			Resolution: "connect to the bridge before starting",
		}}
	}
	if err := o.bridge.Ping(probeCtx); err != nil {
		return []Issue{{
			Severity:   SeverityCritical,
			Component:  "bridge",
			Message:    fmt.Sprintf("bridge unreachable: %v", err),
			Resolution: "check that the MT5 bridge process is running and reachable",
		}}
	}
	return nil
}

// checkAccount verifies account info is retrievable and funded
func (o *Orchestrator) checkAccount(ctx context.Context) []Issue {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	info, err := o.bridge.GetAccountInfo(probeCtx)
	if err != nil {
		return []Issue{{
			Severity:   SeverityCritical,
			Component:  "account",
			Message:    fmt.Sprintf("account info unavailable: %v", err),
			Resolution: "verify the bridge login session is still valid",
		}}
	}

	var issues []Issue
	if info.Balance <= 0 {
		issues = append(issues, Issue{
			Severity:   SeverityError,
			Component:  "account",
			Message:    fmt.Sprintf("account balance is %.2f", info.Balance),
			Resolution: "fund the account before trading",
		})
	}
	if info.FreeMargin <= 0 {
		issues = append(issues, Issue{
			Severity:   SeverityError,
			Component:  "account",
			Message:    "no free margin available",
			Resolution: "close positions or reduce exposure to free margin",
		})
	}
	if info.Leverage > 0 && info.Leverage < 30 {
		issues = append(issues, Issue{
			Severity:   SeverityWarning,
			Component:  "account",
			Message:    fmt.Sprintf("low account leverage (1:%d)", info.Leverage),
			Resolution: "position sizes will be constrained by margin",
		})
	}
	return issues
}

// checkTradingPermissions verifies the account is allowed to trade
func (o *Orchestrator) checkTradingPermissions(ctx context.Context) []Issue {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	caps, err := o.bridge.VerifyTradingCapabilities(probeCtx)
	if err != nil {
		return []Issue{{
			Severity:   SeverityError,
			Component:  "permissions",
			Message:    fmt.Sprintf("could not verify trading capabilities: %v", err),
			Resolution: "retry once the bridge session is stable",
		}}
	}
	if !caps.CanTrade {
		msg := "trading is not permitted on this account"
		if len(caps.Issues) > 0 {
			msg = fmt.Sprintf("trading not permitted: %v", caps.Issues)
		}
		return []Issue{{
			Severity:   SeverityCritical,
			Component:  "permissions",
			Message:    msg,
			Resolution: "enable algorithmic trading on the account or with the broker",
		}}
	}
	return nil
}

// checkMarketData verifies the bridge can serve candles for the first
// enabled pair. The config stage reports a missing pair list.
func (o *Orchestrator) checkMarketData(ctx context.Context) []Issue {
	pairs := o.config.TradingConfig.EnabledPairs
	if len(pairs) == 0 {
		return nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	timeframe := o.config.TradingConfig.TimeframeMinutes
	candles, err := o.bridge.GetHistoricalData(probeCtx, pairs[0], timeframe, 10)
	if err != nil {
		return []Issue{{
			Severity:   SeverityError,
			Component:  "market_data",
			Message:    fmt.Sprintf("historical data for %s unavailable: %v", pairs[0], err),
			Resolution: "confirm the symbol is visible in the bridge terminal",
		}}
	}
	if len(candles) == 0 {
		return []Issue{{
			Severity:   SeverityError,
			Component:  "market_data",
			Message:    fmt.Sprintf("bridge returned no candles for %s", pairs[0]),
			Resolution: "confirm the symbol and timeframe have history available",
		}}
	}
	return nil
}

// checkConfiguration sanity-checks the trading parameters
func (o *Orchestrator) checkConfiguration() []Issue {
	var issues []Issue
	tc := o.config.TradingConfig

	if len(tc.EnabledPairs) == 0 {
		issues = append(issues, Issue{
			Severity:   SeverityCritical,
			Component:  "config",
			Message:    "no trading pairs enabled",
			Resolution: "add at least one pair to enabled_pairs",
		})
	}
	if tc.MaxRiskPerTrade <= 0 || tc.MaxRiskPerTrade > 10 {
		issues = append(issues, Issue{
			Severity:   SeverityError,
			Component:  "config",
			Message:    fmt.Sprintf("max risk per trade %.2f%% is outside the 0-10%% range", tc.MaxRiskPerTrade),
			Resolution: "set max_risk_per_trade to a sane percentage",
		})
	}
	if tc.MinConfidence < 40 {
		issues = append(issues, Issue{
			Severity:   SeverityWarning,
			Component:  "config",
			Message:    fmt.Sprintf("minimum confidence %.0f is below the bias gate", tc.MinConfidence),
			Resolution: "signals below 40 points never get a bias; raising min_confidence has no extra effect there",
		})
	}
	if !tc.UseStopLoss {
		issues = append(issues, Issue{
			Severity:   SeverityWarning,
			Component:  "config",
			Message:    "stop loss placement is disabled",
			Resolution: "positions will only close at invalidation via monitoring",
		})
	}
	return issues
}
