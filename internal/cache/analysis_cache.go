// Package cache provides Redis-based caching for analysis snapshots with
// graceful degradation: when Redis is unavailable callers fall back to
// recomputing from market data.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"forex-trading-bot/config"
	"forex-trading-bot/internal/smc"

	"github.com/redis/go-redis/v9"
)

// Key formats per cache type
const (
	keyAnalysis   = "analysis:%s"    // symbol -> latest Analysis snapshot
	keyLastSignal = "signal:last:%s" // symbol -> last emitted signal JSON
)

// Default TTLs
const (
	DefaultAnalysisTTL = 15 * time.Minute
	DefaultSignalTTL   = 24 * time.Hour
)

// AnalysisCache caches detector output per symbol. A small circuit breaker
// stops hammering a dead Redis; operations fail fast until it recovers.
type AnalysisCache struct {
	client       *redis.Client
	config       config.RedisConfig
	mu           sync.RWMutex
	healthy      bool
	failureCount int
	lastCheck    time.Time

	maxFailures   int
	checkInterval time.Duration
}

// New creates an AnalysisCache and verifies connectivity. A failed initial
// ping returns the cache in degraded mode rather than an error.
func New(cfg config.RedisConfig) (*AnalysisCache, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("redis is not enabled in configuration")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ac := &AnalysisCache{
		client:        client,
		config:        cfg,
		maxFailures:   3,
		checkInterval: 30 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("[CACHE] Initial Redis connection failed: %v", err)
		return ac, nil
	}

	ac.healthy = true
	ac.lastCheck = time.Now()
	log.Printf("[CACHE] Redis connected at %s", cfg.Address)
	return ac, nil
}

// IsHealthy returns whether Redis is currently available
func (ac *AnalysisCache) IsHealthy() bool {
	ac.mu.RLock()
	defer ac.mu.RUnlock()
	return ac.healthy
}

// StoreAnalysis caches the latest analysis snapshot for a symbol
func (ac *AnalysisCache) StoreAnalysis(ctx context.Context, analysis smc.Analysis) error {
	ac.checkHealth(ctx)
	if !ac.IsHealthy() {
		return fmt.Errorf("cache unavailable")
	}

	data, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("marshaling analysis: %w", err)
	}

	key := fmt.Sprintf(keyAnalysis, analysis.Symbol)
	if err := ac.client.Set(ctx, key, data, DefaultAnalysisTTL).Err(); err != nil {
		ac.recordFailure()
		return fmt.Errorf("caching analysis for %s: %w", analysis.Symbol, err)
	}
	ac.recordSuccess()
	return nil
}

// GetAnalysis fetches the cached snapshot for a symbol. A cache miss returns
// (nil, nil) so callers can distinguish it from Redis being down.
func (ac *AnalysisCache) GetAnalysis(ctx context.Context, symbol string) (*smc.Analysis, error) {
	ac.checkHealth(ctx)
	if !ac.IsHealthy() {
		return nil, fmt.Errorf("cache unavailable")
	}

	data, err := ac.client.Get(ctx, fmt.Sprintf(keyAnalysis, symbol)).Bytes()
	if err == redis.Nil {
		ac.recordSuccess()
		return nil, nil
	}
	if err != nil {
		ac.recordFailure()
		return nil, fmt.Errorf("reading cached analysis for %s: %w", symbol, err)
	}

	var analysis smc.Analysis
	if err := json.Unmarshal(data, &analysis); err != nil {
		return nil, fmt.Errorf("unmarshaling cached analysis: %w", err)
	}
	ac.recordSuccess()
	return &analysis, nil
}

// StoreLastSignal records the most recent signal JSON for a symbol
func (ac *AnalysisCache) StoreLastSignal(ctx context.Context, symbol string, signalJSON []byte) error {
	ac.checkHealth(ctx)
	if !ac.IsHealthy() {
		return fmt.Errorf("cache unavailable")
	}

	key := fmt.Sprintf(keyLastSignal, symbol)
	if err := ac.client.Set(ctx, key, signalJSON, DefaultSignalTTL).Err(); err != nil {
		ac.recordFailure()
		return fmt.Errorf("caching signal for %s: %w", symbol, err)
	}
	ac.recordSuccess()
	return nil
}

// GetLastSignal fetches the most recent signal JSON for a symbol, (nil, nil)
// on a miss.
func (ac *AnalysisCache) GetLastSignal(ctx context.Context, symbol string) ([]byte, error) {
	ac.checkHealth(ctx)
	if !ac.IsHealthy() {
		return nil, fmt.Errorf("cache unavailable")
	}

	data, err := ac.client.Get(ctx, fmt.Sprintf(keyLastSignal, symbol)).Bytes()
	if err == redis.Nil {
		ac.recordSuccess()
		return nil, nil
	}
	if err != nil {
		ac.recordFailure()
		return nil, err
	}
	ac.recordSuccess()
	return data, nil
}

// Invalidate drops the cached snapshot for a symbol
func (ac *AnalysisCache) Invalidate(ctx context.Context, symbol string) error {
	if !ac.IsHealthy() {
		return nil
	}
	return ac.client.Del(ctx, fmt.Sprintf(keyAnalysis, symbol)).Err()
}

// Close releases the Redis connection pool
func (ac *AnalysisCache) Close() error {
	return ac.client.Close()
}

// recordFailure counts toward the circuit breaker opening
func (ac *AnalysisCache) recordFailure() {
	ac.mu.Lock()
	defer ac.mu.Unlock()

	ac.failureCount++
	if ac.failureCount >= ac.maxFailures {
		if ac.healthy {
			log.Printf("[CACHE] Circuit breaker OPEN: Redis marked unhealthy after %d failures", ac.failureCount)
		}
		ac.healthy = false
	}
}

// recordSuccess resets the failure counter
func (ac *AnalysisCache) recordSuccess() {
	ac.mu.Lock()
	defer ac.mu.Unlock()

	if !ac.healthy {
		log.Printf("[CACHE] Circuit breaker CLOSED: Redis recovered")
	}
	ac.healthy = true
	ac.failureCount = 0
	ac.lastCheck = time.Now()
}

// checkHealth re-pings Redis once the backoff interval has passed
func (ac *AnalysisCache) checkHealth(ctx context.Context) {
	ac.mu.RLock()
	shouldCheck := !ac.healthy && time.Since(ac.lastCheck) >= ac.checkInterval
	ac.mu.RUnlock()

	if !shouldCheck {
		return
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := ac.client.Ping(pingCtx).Err(); err != nil {
		ac.mu.Lock()
		ac.lastCheck = time.Now()
		ac.mu.Unlock()
		return
	}
	ac.recordSuccess()
}
