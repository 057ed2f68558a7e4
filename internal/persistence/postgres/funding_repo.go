package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/marketdata/internal/data/schema"
	"github.com/sawpanic/marketdata/internal/persistence"
)

type fundingRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewFundingRepo creates a PostgreSQL-backed FundingRepo.
func NewFundingRepo(db *sqlx.DB, timeout time.Duration) persistence.FundingRepo {
	return &fundingRepo{db: db, timeout: timeout}
}

func (r *fundingRepo) Insert(ctx context.Context, f schema.FundingBar) error {
	return r.InsertBatch(ctx, []schema.FundingBar{f})
}

func (r *fundingRepo) InsertBatch(ctx context.Context, bars []schema.FundingBar) error {
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
		INSERT INTO funding_rates (venue, symbol, funding_time, funding_rate, mark_price, data_source)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (venue, symbol, funding_time) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, f := range bars {
		if _, err := stmt.ExecContext(ctx, f.Venue, f.Symbol, f.FundingTime, f.FundingRate, f.MarkPrice, f.DataSource); err != nil {
			return fmt.Errorf("insert funding observation in batch: %w", err)
		}
	}
	return tx.Commit()
}

func (r *fundingRepo) ListBySymbol(ctx context.Context, venue, symbol string, tr persistence.TimeRange, limit int) ([]schema.FundingBar, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT venue, symbol, funding_time, funding_rate, mark_price, data_source
		FROM funding_rates
		WHERE venue = $1 AND symbol = $2 AND funding_time >= $3 AND funding_time <= $4
		ORDER BY funding_time ASC
		LIMIT $5`

	rows, err := r.db.QueryxContext(ctx, query, venue, symbol, tr.FromMicros, tr.ToMicros, limit)
	if err != nil {
		return nil, fmt.Errorf("query funding observations: %w", err)
	}
	defer rows.Close()

	var out []schema.FundingBar
	for rows.Next() {
		var f schema.FundingBar
		if err := rows.Scan(&f.Venue, &f.Symbol, &f.FundingTime, &f.FundingRate, &f.MarkPrice, &f.DataSource); err != nil {
			return nil, fmt.Errorf("scan funding row: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate funding rows: %w", err)
	}
	return out, nil
}
