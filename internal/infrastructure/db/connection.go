// Package db manages the optional PostgreSQL connection backing the data
// manager's point-in-time Repository (C10). Grounded on the teacher's
// internal/infrastructure/db/connection.go Manager: same disabled-by-default
// Config, same sqlx connection-pool setup and healthChecker, retargeted
// from a TradesRepo/RegimeRepo/PremoveRepo bundle onto BarRepo/FundingRepo.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/sawpanic/marketdata/internal/persistence"
	"github.com/sawpanic/marketdata/internal/persistence/postgres"
)

// Config holds database connection configuration.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	QueryTimeout    time.Duration
	Enabled         bool
}

// DefaultConfig returns reasonable defaults for database connections.
func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
		QueryTimeout:    30 * time.Second,
		Enabled:         false,
	}
}

// Manager owns the optional database connection and the Repository built
// on top of it.
type Manager struct {
	db     *sqlx.DB
	config Config
	repos  *persistence.Repository
	health *healthChecker
}

// NewManager opens the database connection (if enabled) and wires the
// Bar/Funding repositories on top of it.
func NewManager(config Config) (*Manager, error) {
	if !config.Enabled {
		return &Manager{config: config, health: &healthChecker{enabled: false}}, nil
	}
	if config.DSN == "" {
		return nil, fmt.Errorf("db: DSN is required when enabled")
	}

	conn, err := sqlx.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("db: open: %w", err)
	}
	conn.SetMaxOpenConns(config.MaxOpenConns)
	conn.SetMaxIdleConns(config.MaxIdleConns)
	conn.SetConnMaxLifetime(config.ConnMaxLifetime)
	conn.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}

	repos := &persistence.Repository{
		Bars:    postgres.NewBarsRepo(conn, config.QueryTimeout),
		Funding: postgres.NewFundingRepo(conn, config.QueryTimeout),
	}

	return &Manager{
		db:     conn,
		config: config,
		repos:  repos,
		health: &healthChecker{enabled: true, db: conn, timeout: config.QueryTimeout},
	}, nil
}

// Repository returns the repository collection, or nil if disabled.
func (m *Manager) Repository() *persistence.Repository { return m.repos }

// Health returns the health-check interface for this connection.
func (m *Manager) Health() persistence.RepositoryHealth { return m.health }

// DB returns the underlying connection, for migrations or diagnostics.
func (m *Manager) DB() *sqlx.DB { return m.db }

// IsEnabled reports whether persistence is actually active.
func (m *Manager) IsEnabled() bool { return m.config.Enabled && m.db != nil }

// Close releases the underlying connection.
func (m *Manager) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}

type healthChecker struct {
	enabled bool
	db      *sqlx.DB
	timeout time.Duration
}

func (h *healthChecker) Health(ctx context.Context) persistence.HealthCheck {
	if !h.enabled {
		return persistence.HealthCheck{Healthy: true, Errors: []string{"database persistence disabled"}, LastCheck: time.Now()}
	}

	start := time.Now()
	pingCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var errs []string
	healthy := true
	if err := h.db.PingContext(pingCtx); err != nil {
		errs = append(errs, fmt.Sprintf("ping failed: %v", err))
		healthy = false
	}

	return persistence.HealthCheck{
		Healthy:        healthy,
		Errors:         errs,
		LastCheck:      time.Now(),
		ResponseTimeMS: time.Since(start).Milliseconds(),
	}
}

func (h *healthChecker) Ping(ctx context.Context) error {
	if !h.enabled {
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return h.db.PingContext(pingCtx)
}
