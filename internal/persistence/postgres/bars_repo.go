// Package postgres adapts the persistence interfaces onto PostgreSQL via
// sqlx/lib-pq, grounded directly on the teacher's
// internal/persistence/postgres/trades_repo.go: same sqlx.DB + timeout
// wrapping, same prepared-statement batch-insert pattern, same
// pq.Error-code duplicate detection, retargeted from trade executions to
// OHLCV bars and funding observations.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sawpanic/marketdata/internal/data/schema"
	"github.com/sawpanic/marketdata/internal/interval"
	"github.com/sawpanic/marketdata/internal/persistence"
)

func schemaInterval(s string) interval.Interval { return interval.Interval(s) }

type barsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewBarsRepo creates a PostgreSQL-backed BarRepo.
func NewBarsRepo(db *sqlx.DB, timeout time.Duration) persistence.BarRepo {
	return &barsRepo{db: db, timeout: timeout}
}

func (r *barsRepo) Insert(ctx context.Context, b schema.Bar) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO bars (venue, symbol, interval, open_time, close_time, open, high, low, close, volume, quote_volume, trade_count, taker_buy_base, taker_buy_quote, data_source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (venue, symbol, interval, open_time) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query,
		b.Venue, b.Symbol, string(b.Interval), b.OpenTime, b.CloseTime,
		b.Open, b.High, b.Low, b.Close, b.Volume, b.QuoteVolume, b.TradeCount,
		b.TakerBuyBase, b.TakerBuyQuote, b.DataSource)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate bar: %w", err)
		}
		return fmt.Errorf("insert bar: %w", err)
	}
	return nil
}

func (r *barsRepo) InsertBatch(ctx context.Context, bars []schema.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout*time.Duration(len(bars)/500+1))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bars (venue, symbol, interval, open_time, close_time, open, high, low, close, volume, quote_volume, trade_count, taker_buy_base, taker_buy_quote, data_source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (venue, symbol, interval, open_time) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx,
			b.Venue, b.Symbol, string(b.Interval), b.OpenTime, b.CloseTime,
			b.Open, b.High, b.Low, b.Close, b.Volume, b.QuoteVolume, b.TradeCount,
			b.TakerBuyBase, b.TakerBuyQuote, b.DataSource); err != nil {
			return fmt.Errorf("insert bar in batch: %w", err)
		}
	}
	return tx.Commit()
}

func (r *barsRepo) ListBySymbol(ctx context.Context, venue, symbol string, i string, tr persistence.TimeRange, limit int) ([]schema.Bar, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT venue, symbol, interval, open_time, close_time, open, high, low, close, volume, quote_volume, trade_count, taker_buy_base, taker_buy_quote, data_source
		FROM bars
		WHERE venue = $1 AND symbol = $2 AND interval = $3 AND open_time >= $4 AND open_time <= $5
		ORDER BY open_time ASC
		LIMIT $6`

	rows, err := r.db.QueryxContext(ctx, query, venue, symbol, i, tr.FromMicros, tr.ToMicros, limit)
	if err != nil {
		return nil, fmt.Errorf("query bars by symbol: %w", err)
	}
	defer rows.Close()

	var out []schema.Bar
	for rows.Next() {
		var b schema.Bar
		var ivl string
		if err := rows.Scan(&b.Venue, &b.Symbol, &ivl, &b.OpenTime, &b.CloseTime,
			&b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.QuoteVolume,
			&b.TradeCount, &b.TakerBuyBase, &b.TakerBuyQuote, &b.DataSource); err != nil {
			return nil, fmt.Errorf("scan bar row: %w", err)
		}
		b.Interval = schemaInterval(ivl)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bar rows: %w", err)
	}
	return out, nil
}

func (r *barsRepo) Count(ctx context.Context, venue string, tr persistence.TimeRange) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT COUNT(*) FROM bars WHERE venue = $1 AND open_time >= $2 AND open_time <= $3`
	var count int64
	if err := r.db.QueryRowxContext(ctx, query, venue, tr.FromMicros, tr.ToMicros).Scan(&count); err != nil {
		return 0, fmt.Errorf("count bars: %w", err)
	}
	return count, nil
}
