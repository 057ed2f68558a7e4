// Package persistence defines the optional Postgres-backed point-in-time
// store for the data manager (C10). It is optional: a Manager with no
// Repository configured still serves cache/Vision/REST data, it just
// cannot replay a historical point-in-time snapshot of what it returned.
// Grounded on the teacher's internal/persistence/interfaces.go TradesRepo
// shape (Insert/InsertBatch/ListBySymbol/Count), narrowed to bars and
// funding observations, which is what this engine's callers persist.
package persistence

import (
	"context"
	"time"

	"github.com/sawpanic/marketdata/internal/data/schema"
)

// TimeRange bounds a persistence query, in engine-internal microseconds.
type TimeRange struct {
	FromMicros int64
	ToMicros   int64
}

// BarRepo persists OHLCV bars with their DataSource tag intact, so a
// later point-in-time query can show exactly what was returned and from
// where, even after the cache has been evicted or rewritten.
type BarRepo interface {
	Insert(ctx context.Context, b schema.Bar) error
	InsertBatch(ctx context.Context, bars []schema.Bar) error
	ListBySymbol(ctx context.Context, venue, symbol string, i string, tr TimeRange, limit int) ([]schema.Bar, error)
	Count(ctx context.Context, venue string, tr TimeRange) (int64, error)
}

// FundingRepo persists funding-rate observations the same way.
type FundingRepo interface {
	Insert(ctx context.Context, f schema.FundingBar) error
	InsertBatch(ctx context.Context, bars []schema.FundingBar) error
	ListBySymbol(ctx context.Context, venue, symbol string, tr TimeRange, limit int) ([]schema.FundingBar, error)
}

// Repository aggregates the persistence interfaces a Manager can wire in.
type Repository struct {
	Bars    BarRepo
	Funding FundingRepo
}

// HealthCheck reports repository connectivity for the manager's health
// snapshot.
type HealthCheck struct {
	Healthy        bool
	Errors         []string
	LastCheck      time.Time
	ResponseTimeMS int64
}

// RepositoryHealth lets a Manager probe its optional Repository without
// depending on a concrete driver.
type RepositoryHealth interface {
	Health(ctx context.Context) HealthCheck
	Ping(ctx context.Context) error
}
