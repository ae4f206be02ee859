package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"forex-trading-bot/internal/news"
	"forex-trading-bot/internal/signal"
)

// Repository provides persistence for news events, signals and trades
type Repository struct {
	db     *DB
	logger zerolog.Logger
}

// NewRepository creates a repository over the connection pool
func NewRepository(db *DB, logger zerolog.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger.With().Str("component", "repository").Logger(),
	}
}

// SaveNewsEvent persists a news event and its observed outcome
func (r *Repository) SaveNewsEvent(ctx context.Context, e news.Event) error {
	query := `
		INSERT INTO news_events (title, currency, impact, event_time, sentiment,
			pre_volatility, post_volatility, price_change_pct, direction, recovery_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Pool.Exec(ctx, query,
		e.Title, e.Currency, string(e.Impact), e.Timestamp, e.Sentiment,
		e.PreVolatility, e.PostVolatility, e.PriceChangePct, e.Direction, e.RecoveryMinutes,
	)
	if err != nil {
		return fmt.Errorf("saving news event: %w", err)
	}

	r.logger.Debug().Str("currency", e.Currency).Str("title", e.Title).Msg("news event saved")
	return nil
}

// LoadNewsEvents returns the newest events for a currency, oldest first, so
// they can be replayed into the impact tracker on boot.
func (r *Repository) LoadNewsEvents(ctx context.Context, currency string, limit int) ([]news.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT title, currency, impact, event_time, sentiment,
			COALESCE(pre_volatility, 0), COALESCE(post_volatility, 0),
			COALESCE(price_change_pct, 0), COALESCE(direction, ''), COALESCE(recovery_minutes, 0)
		FROM news_events
		WHERE currency = $1
		ORDER BY event_time DESC
		LIMIT $2`

	rows, err := r.db.Pool.Query(ctx, query, currency, limit)
	if err != nil {
		return nil, fmt.Errorf("loading news events: %w", err)
	}
	defer rows.Close()

	var events []news.Event
	for rows.Next() {
		var e news.Event
		var impact string
		if err := rows.Scan(&e.Title, &e.Currency, &impact, &e.Timestamp, &e.Sentiment,
			&e.PreVolatility, &e.PostVolatility, &e.PriceChangePct, &e.Direction, &e.RecoveryMinutes); err != nil {
			return nil, fmt.Errorf("scanning news event: %w", err)
		}
		e.Impact = news.ParseImpact(impact)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest-first from the query, reverse for replay order
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

// SaveSignal upserts a signal row, updating status fields on conflict
func (r *Repository) SaveSignal(ctx context.Context, s *signal.Signal) error {
	factors, err := json.Marshal(s.Factors)
	if err != nil {
		return fmt.Errorf("marshaling factors: %w", err)
	}

	var entryHigh, entryLow float64
	if s.EntryZone != nil {
		entryHigh = s.EntryZone.High
		entryLow = s.EntryZone.Low
	}

	query := `
		INSERT INTO signals (id, symbol, bias, score, factors, entry_high, entry_low,
			invalidation, soft_anchor, price_at_signal, lots, ticket, status, status_reason,
			created_at, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			lots = EXCLUDED.lots,
			ticket = EXCLUDED.ticket,
			status = EXCLUDED.status,
			status_reason = EXCLUDED.status_reason,
			executed_at = EXCLUDED.executed_at`

	_, err = r.db.Pool.Exec(ctx, query,
		s.ID, s.Symbol, string(s.Bias), s.Score, factors, entryHigh, entryLow,
		s.InvalidationLevel, s.SoftAnchor, s.PriceAtSignal, s.Lots, s.Ticket,
		string(s.Status), s.StatusReason, s.CreatedAt, s.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("saving signal: %w", err)
	}

	r.logger.Debug().Str("signal_id", s.ID).Str("status", string(s.Status)).Msg("signal saved")
	return nil
}

// RecentSignals returns the newest persisted signals
func (r *Repository) RecentSignals(ctx context.Context, limit int) ([]SignalRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, symbol, bias, score, COALESCE(factors, '[]'), entry_high, entry_low,
			invalidation, soft_anchor, price_at_signal, COALESCE(lots, 0), COALESCE(ticket, 0),
			status, COALESCE(status_reason, ''), created_at, executed_at
		FROM signals
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("loading signals: %w", err)
	}
	defer rows.Close()

	var records []SignalRecord
	for rows.Next() {
		var rec SignalRecord
		var factors []byte
		if err := rows.Scan(&rec.ID, &rec.Symbol, &rec.Bias, &rec.Score, &factors,
			&rec.EntryHigh, &rec.EntryLow, &rec.Invalidation, &rec.SoftAnchor,
			&rec.PriceAtSignal, &rec.Lots, &rec.Ticket, &rec.Status, &rec.StatusReason,
			&rec.CreatedAt, &rec.ExecutedAt); err != nil {
			return nil, fmt.Errorf("scanning signal: %w", err)
		}
		if err := json.Unmarshal(factors, &rec.Factors); err != nil {
			rec.Factors = nil
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// OpenTrade records a freshly executed trade
func (r *Repository) OpenTrade(ctx context.Context, t TradeRecord) error {
	query := `
		INSERT INTO trades (signal_id, ticket, symbol, side, entry_price, lots,
			stop_loss, take_profit, entry_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'OPEN')`

	_, err := r.db.Pool.Exec(ctx, query,
		nullIfEmpty(t.SignalID), t.Ticket, t.Symbol, t.Side, t.EntryPrice, t.Lots,
		t.StopLoss, t.TakeProfit, t.EntryTime,
	)
	if err != nil {
		return fmt.Errorf("opening trade: %w", err)
	}

	r.logger.Info().Int64("ticket", t.Ticket).Str("symbol", t.Symbol).Msg("trade opened")
	return nil
}

// CloseTrade marks a trade closed with its realized result
func (r *Repository) CloseTrade(ctx context.Context, ticket int64, exitPrice, pnl float64) error {
	query := `
		UPDATE trades
		SET exit_price = $2, pnl = $3, exit_time = $4, status = 'CLOSED'
		WHERE ticket = $1 AND status = 'OPEN'`

	tag, err := r.db.Pool.Exec(ctx, query, ticket, exitPrice, pnl, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("closing trade: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no open trade with ticket %d", ticket)
	}

	r.logger.Info().Int64("ticket", ticket).Float64("pnl", pnl).Msg("trade closed")
	return nil
}

// OpenTrades returns all trades still marked open
func (r *Repository) OpenTrades(ctx context.Context) ([]TradeRecord, error) {
	query := `
		SELECT id, COALESCE(signal_id::text, ''), ticket, symbol, side, entry_price,
			exit_price, lots, COALESCE(stop_loss, 0), COALESCE(take_profit, 0), pnl,
			entry_time, exit_time, status
		FROM trades
		WHERE status = 'OPEN'
		ORDER BY entry_time`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("loading open trades: %w", err)
	}
	defer rows.Close()

	var trades []TradeRecord
	for rows.Next() {
		var t TradeRecord
		if err := rows.Scan(&t.ID, &t.SignalID, &t.Ticket, &t.Symbol, &t.Side, &t.EntryPrice,
			&t.ExitPrice, &t.Lots, &t.StopLoss, &t.TakeProfit, &t.PnL,
			&t.EntryTime, &t.ExitTime, &t.Status); err != nil {
			return nil, fmt.Errorf("scanning trade: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// TradeStats summarizes closed-trade performance
type TradeStats struct {
	TotalTrades int     `json:"total_trades"`
	Wins        int     `json:"wins"`
	WinRate     float64 `json:"win_rate"`
	DailyPnL    float64 `json:"daily_pnl"`
	WeeklyPnL   float64 `json:"weekly_pnl"`
}

// Stats aggregates closed trades into headline performance numbers
func (r *Repository) Stats(ctx context.Context) (*TradeStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE pnl > 0),
			COALESCE(SUM(pnl) FILTER (WHERE exit_time >= date_trunc('day', now())), 0),
			COALESCE(SUM(pnl) FILTER (WHERE exit_time >= now() - interval '7 days'), 0)
		FROM trades
		WHERE status = 'CLOSED'`

	var stats TradeStats
	err := r.db.Pool.QueryRow(ctx, query).Scan(&stats.TotalTrades, &stats.Wins, &stats.DailyPnL, &stats.WeeklyPnL)
	if err != nil {
		return nil, fmt.Errorf("aggregating trade stats: %w", err)
	}
	if stats.TotalTrades > 0 {
		stats.WinRate = float64(stats.Wins) / float64(stats.TotalTrades) * 100
	}
	return &stats, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
