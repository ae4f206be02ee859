package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"forex-trading-bot/config"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// New creates a database connection pool from a connection URL
func New(cfg config.DatabaseConfig) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	maxConns := int32(cfg.MaxConns)
	if maxConns <= 0 {
		maxConns = 10
	}
	poolConfig.MaxConns = maxConns
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	log.Println("Successfully connected to PostgreSQL")
	return &DB{Pool: pool}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		log.Println("Database connection closed")
	}
}

// RunMigrations creates the schema if it does not exist
func (db *DB) RunMigrations(ctx context.Context) error {
	log.Println("Running database migrations...")

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS news_events (
			id SERIAL PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			currency VARCHAR(3) NOT NULL,
			impact VARCHAR(10) NOT NULL,
			event_time TIMESTAMP NOT NULL,
			sentiment DECIMAL(6, 4) DEFAULT 0,
			pre_volatility DECIMAL(12, 8),
			post_volatility DECIMAL(12, 8),
			price_change_pct DECIMAL(10, 4),
			direction VARCHAR(10),
			recovery_minutes DECIMAL(10, 2),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_news_events_currency ON news_events(currency)`,
		`CREATE INDEX IF NOT EXISTS idx_news_events_time ON news_events(event_time)`,

		`CREATE TABLE IF NOT EXISTS signals (
			id UUID PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL,
			bias VARCHAR(10) NOT NULL,
			score DECIMAL(6, 2) NOT NULL,
			factors JSONB,
			entry_high DECIMAL(20, 8),
			entry_low DECIMAL(20, 8),
			invalidation DECIMAL(20, 8),
			soft_anchor BOOLEAN DEFAULT FALSE,
			price_at_signal DECIMAL(20, 8) NOT NULL,
			lots DECIMAL(10, 2),
			ticket BIGINT,
			status VARCHAR(20) NOT NULL,
			status_reason TEXT,
			created_at TIMESTAMP NOT NULL,
			executed_at TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_symbol ON signals(symbol)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_status ON signals(status)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_created_at ON signals(created_at)`,

		`CREATE TABLE IF NOT EXISTS trades (
			id SERIAL PRIMARY KEY,
			signal_id UUID REFERENCES signals(id) ON DELETE SET NULL,
			ticket BIGINT NOT NULL,
			symbol VARCHAR(20) NOT NULL,
			side VARCHAR(4) NOT NULL,
			entry_price DECIMAL(20, 8) NOT NULL,
			exit_price DECIMAL(20, 8),
			lots DECIMAL(10, 2) NOT NULL,
			stop_loss DECIMAL(20, 8),
			take_profit DECIMAL(20, 8),
			pnl DECIMAL(20, 8),
			entry_time TIMESTAMP NOT NULL,
			exit_time TIMESTAMP,
			status VARCHAR(20) NOT NULL DEFAULT 'OPEN',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_status ON trades(status)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	log.Println("Database migrations completed")
	return nil
}
