package risk

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"
)

// Lot size boundaries most forex brokers enforce
const (
	minLot  = 0.01
	lotStep = 0.01
)

// Config holds risk management configuration
type Config struct {
	MaxRiskPerTrade    float64 // Percentage of account to risk per trade
	MaxDailyDrawdown   float64 // Max daily loss percentage before stopping
	MaxOpenPositions   int     // Maximum concurrent positions
	MaxLotSize         float64 // Hard cap on a single position
	PositionSizeMethod string  // "fixed" or "percent"
	FixedPositionLots  float64 // Lot size when method is "fixed"
}

// Manager handles position sizing and daily-loss limits
type Manager struct {
	config         *Config
	dailyPnL       float64
	dailyPnLReset  time.Time
	openPositions  int
	accountBalance float64
	mu             sync.RWMutex
}

// NewManager creates a new risk manager
func NewManager(config *Config) *Manager {
	if config.MaxLotSize <= 0 {
		config.MaxLotSize = 1.0
	}
	return &Manager{
		config:        config,
		dailyPnLReset: time.Now().Truncate(24 * time.Hour),
	}
}

// UpdateAccountBalance updates the current account balance
func (rm *Manager) UpdateAccountBalance(balance float64) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.accountBalance = balance
}

// GetAccountBalance returns the current account balance
func (rm *Manager) GetAccountBalance() float64 {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.accountBalance
}

// CanOpenPosition checks if a new position can be opened
func (rm *Manager) CanOpenPosition() (bool, string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.openPositions >= rm.config.MaxOpenPositions {
		return false, fmt.Sprintf("max positions reached (%d/%d)", rm.openPositions, rm.config.MaxOpenPositions)
	}

	rm.checkDailyReset()
	if rm.accountBalance > 0 {
		dailyDrawdownPercent := (rm.dailyPnL / rm.accountBalance) * 100
		if dailyDrawdownPercent <= -rm.config.MaxDailyDrawdown {
			return false, fmt.Sprintf("daily drawdown limit reached (%.2f%%)", dailyDrawdownPercent)
		}
	}

	return true, ""
}

// CalculateLotSize sizes a position from the distance to invalidation. The
// news risk multiplier (1.0 when no event is near, floored at 0.3 around
// high-volatility releases) scales the risked amount down, never up.
func (rm *Manager) CalculateLotSize(entryPrice, invalidation, newsRiskMultiplier float64) float64 {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	if entryPrice <= 0 || invalidation <= 0 || rm.accountBalance <= 0 {
		return 0
	}
	if newsRiskMultiplier <= 0 || newsRiskMultiplier > 1 {
		newsRiskMultiplier = 1
	}

	if rm.config.PositionSizeMethod == "fixed" && rm.config.FixedPositionLots > 0 {
		return clampLot(rm.config.FixedPositionLots*newsRiskMultiplier, rm.config.MaxLotSize)
	}

	riskAmount := rm.accountBalance * (rm.config.MaxRiskPerTrade / 100) * newsRiskMultiplier
	riskPerUnit := math.Abs(entryPrice - invalidation)
	if riskPerUnit == 0 {
		return 0
	}

	// One standard lot moves roughly the per-unit distance times 100k units
	lots := riskAmount / (riskPerUnit * 100000)
	lots = clampLot(lots, rm.config.MaxLotSize)

	log.Printf("Position sizing: Balance=%.2f, Risk%%=%.2f%%, NewsMult=%.2f, Entry=%.5f, Inval=%.5f, Lots=%.2f",
		rm.accountBalance, rm.config.MaxRiskPerTrade, newsRiskMultiplier, entryPrice, invalidation, lots)

	return lots
}

// clampLot snaps a raw size to broker lot boundaries
func clampLot(lots, maxLot float64) float64 {
	if lots < minLot {
		return minLot
	}
	if lots > maxLot {
		lots = maxLot
	}
	return math.Floor(lots/lotStep) * lotStep
}

// RegisterPositionOpen registers a new position opening
func (rm *Manager) RegisterPositionOpen() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.openPositions++
}

// RegisterPositionClose registers a position closing
func (rm *Manager) RegisterPositionClose(pnl float64) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.openPositions--
	if rm.openPositions < 0 {
		rm.openPositions = 0
	}

	rm.checkDailyReset()
	rm.dailyPnL += pnl
}

// GetDailyPnL returns the current daily P&L
func (rm *Manager) GetDailyPnL() float64 {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.dailyPnL
}

// GetOpenPositionCount returns the number of open positions
func (rm *Manager) GetOpenPositionCount() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.openPositions
}

// checkDailyReset resets daily P&L on the first touch of a new day.
// Callers must hold the write lock.
func (rm *Manager) checkDailyReset() {
	today := time.Now().Truncate(24 * time.Hour)
	if today.After(rm.dailyPnLReset) {
		rm.dailyPnL = 0
		rm.dailyPnLReset = today
	}
}

// GetRiskMetrics returns current risk metrics
func (rm *Manager) GetRiskMetrics() map[string]interface{} {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	dailyDrawdownPercent := 0.0
	if rm.accountBalance > 0 {
		dailyDrawdownPercent = (rm.dailyPnL / rm.accountBalance) * 100
	}

	return map[string]interface{}{
		"account_balance":        rm.accountBalance,
		"daily_pnl":              rm.dailyPnL,
		"daily_drawdown_percent": dailyDrawdownPercent,
		"open_positions":         rm.openPositions,
		"max_positions":          rm.config.MaxOpenPositions,
		"max_risk_per_trade":     rm.config.MaxRiskPerTrade,
		"max_daily_drawdown":     rm.config.MaxDailyDrawdown,
		"can_trade":              rm.openPositions < rm.config.MaxOpenPositions && dailyDrawdownPercent > -rm.config.MaxDailyDrawdown,
	}
}
