// Package manager implements the top-level data manager (C10): a
// stateless facade wrapping the FCP orchestrator with configuration
// resolution, attribution/health snapshots, and an optional
// PostgreSQL-backed point-in-time store. Grounded on the teacher's
// internal/data/facade/facade.go Facade and facade_impl.go's
// attribution/health bookkeeping, narrowed from its hot-tier WebSocket
// streaming (out of scope: this engine only ever composes cache, Vision,
// and REST, never a live stream) down to the warm-tier
// cache-check/fetch/attribution/health sequence GetKlines exemplifies.
package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/marketdata/internal/cache"
	"github.com/sawpanic/marketdata/internal/classify"
	"github.com/sawpanic/marketdata/internal/config"
	"github.com/sawpanic/marketdata/internal/data/cachestore"
	"github.com/sawpanic/marketdata/internal/data/fcp"
	"github.com/sawpanic/marketdata/internal/data/funding"
	"github.com/sawpanic/marketdata/internal/data/rest"
	"github.com/sawpanic/marketdata/internal/data/schema"
	"github.com/sawpanic/marketdata/internal/data/vision"
	"github.com/sawpanic/marketdata/internal/interval"
	"github.com/sawpanic/marketdata/internal/persistence"
	"github.com/sawpanic/marketdata/internal/quota"
)

// Attribution tracks where a venue's data has come from lately.
type Attribution struct {
	Venue      string
	LastUpdate time.Time
	Sources    []string
	CacheHits  int64
	CacheMisses int64
}

// UnsupportedIntervalForMarket is returned when GetBars/GetFunding is asked
// for an interval/market (or market/chart-type) combination no venue
// supports. spec.md's Enforcement section and "never guessed" principle
// both require this to abort synchronously, before any dialect or network
// call, rather than let the request reach REST/Vision and fail there.
type UnsupportedIntervalForMarket struct {
	Market   schema.MarketType
	Interval string
}

func (e *UnsupportedIntervalForMarket) Error() string {
	return fmt.Sprintf("manager: unsupported combination: interval=%s market=%s", e.Interval, e.Market)
}

// checkBarsEnforcement rejects 1s on any non-SPOT market up-front: no venue
// publishes 1s klines for futures markets, Vision or REST.
func checkBarsEnforcement(market schema.MarketType, i interval.Interval) error {
	if i == interval.I1s && market != schema.MarketSpot {
		return &UnsupportedIntervalForMarket{Market: market, Interval: string(i)}
	}
	return nil
}

// checkFundingEnforcement rejects FUNDING_RATE requests against a SPOT
// market up-front: funding rates only exist for perpetual/futures symbols.
func checkFundingEnforcement(market schema.MarketType) error {
	if market == schema.MarketSpot {
		return &UnsupportedIntervalForMarket{Market: market, Interval: "funding_rate"}
	}
	return nil
}

// HealthStatus tracks venue responsiveness, in the same shape the teacher
// surfaces for trading-side consumers of venue health.
type HealthStatus struct {
	Venue          string
	Status         string // "healthy", "degraded", "unknown"
	LastSeen       time.Time
	ErrorRate      float64
	P99Latency     time.Duration
	Recommendation string
}

// Manager is the single entry point callers use to retrieve bars and
// funding-rate history across venues.
type Manager struct {
	cfg          config.Config
	orchestrator *fcp.Orchestrator
	fundingClient *funding.Client
	pit          PITStore
	repository   *persistence.Repository

	mu          sync.Mutex
	attribution map[string]*Attribution
	health      map[string]*HealthStatus
}

// New builds a Manager from a resolved Config, wiring the cache store,
// Vision client, REST engine, and negative cache behind one orchestrator.
func New(cfg config.Config) (*Manager, error) {
	store, err := cachestore.Open(cfg.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("manager: open cache store: %w", err)
	}

	var backing cache.Cache
	if cfg.RedisAddr != "" {
		backing = cache.NewAuto()
	} else {
		backing = cache.New()
	}
	neg := cache.NewNegativeCache(backing, cfg.NegativeCacheTTL)

	visionClient := vision.NewClient(nil)
	restClient := rest.NewClient(rest.DefaultConfig()).WithBudgets(quota.DefaultGuard())

	return &Manager{
		cfg:           cfg,
		orchestrator:  fcp.New(store, visionClient, restClient, neg),
		fundingClient: funding.NewClient(restClient),
		attribution:   make(map[string]*Attribution),
		health:        make(map[string]*HealthStatus),
	}, nil
}

// SetRepository enables PostgreSQL-backed point-in-time persistence.
func (m *Manager) SetRepository(repo *persistence.Repository) { m.repository = repo }

// PITReads exposes point-in-time queries for calibration and backtesting,
// available only once a Repository has been set.
func (m *Manager) PITReads() PITReader {
	return &pitReader{repository: m.repository}
}

// SetPITStore installs a point-in-time snapshot store, used after every
// successful GetBars/GetFunding call.
func (m *Manager) SetPITStore(pit PITStore) { m.pit = pit }

// GetBars resolves [startMicros, endMicros] of OHLCV bars for venue via
// the FCP orchestrator, updating attribution and health as it goes.
func (m *Manager) GetBars(ctx context.Context, venue, symbol string, market schema.MarketType, i interval.Interval, startMicros, endMicros int64, opts fcp.Opts) (*schema.Table, error) {
	if err := checkBarsEnforcement(market, i); err != nil {
		return nil, err
	}

	d, ok := rest.Dialects[venue]
	if !ok {
		return nil, fmt.Errorf("manager: unsupported venue %q", venue)
	}

	start := time.Now()
	table, err := m.orchestrator.Get(ctx, d, market, symbol, i, startMicros, endMicros, opts)
	latency := time.Since(start)

	if err != nil {
		m.updateHealthError(venue, err)
		return nil, err
	}

	if attr, ok := m.orchestrator.Attribution(venue); ok {
		m.updateAttribution(venue, attr)
	}
	m.updateHealthLatency(venue, latency)

	if m.pit != nil {
		for _, b := range table.Bars {
			if err := m.pit.Snapshot("bars", interval.FromMicros(b.OpenTime), b, venue); err != nil {
				log.Warn().Str("venue", venue).Err(err).Msg("failed to write bar PIT snapshot")
			}
		}
	}
	return table, nil
}

// GetFunding resolves funding-rate history for venue/symbol/market directly
// through the REST dialect registry; funding observations are not
// cache/Vision composed since they are not published as bulk archives.
func (m *Manager) GetFunding(ctx context.Context, venue, symbol string, market schema.MarketType, startMicros, endMicros int64) (*schema.FundingTable, error) {
	if err := checkFundingEnforcement(market); err != nil {
		return nil, err
	}

	d, ok := rest.Dialects[venue]
	if !ok {
		return nil, fmt.Errorf("manager: unsupported venue %q", venue)
	}

	start := time.Now()
	table, err := m.fundingClient.FetchRange(ctx, d, symbol, startMicros, endMicros)
	latency := time.Since(start)

	if err != nil {
		var cerr *classify.Error
		if ce, ok := err.(*classify.Error); ok {
			cerr = ce
		}
		if cerr == nil || cerr.Kind != classify.DataEmpty {
			m.updateHealthError(venue, err)
		}
		return nil, err
	}
	m.updateHealthLatency(venue, latency)

	if m.pit != nil {
		for _, f := range table.Bars {
			if err := m.pit.Snapshot("funding", interval.FromMicros(f.FundingTime), f, venue); err != nil {
				log.Warn().Str("venue", venue).Err(err).Msg("failed to write funding PIT snapshot")
			}
		}
	}
	return table, nil
}

// Attribution reports the last-known source attribution for venue.
func (m *Manager) Attribution(venue string) Attribution {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.attribution[venue]; ok {
		return *a
	}
	return Attribution{Venue: venue}
}

// Health reports the last-known health snapshot for venue.
func (m *Manager) Health(venue string) HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.health[venue]; ok {
		return *h
	}
	return HealthStatus{Venue: venue, Status: "unknown"}
}

func (m *Manager) updateAttribution(venue string, a fcp.Attribution) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.attribution[venue]
	if cur == nil {
		cur = &Attribution{Venue: venue}
		m.attribution[venue] = cur
	}
	cur.LastUpdate = time.Now()
	cur.Sources = sourcesFromAttribution(a)
	if a.CacheRows > 0 {
		cur.CacheHits++
	} else {
		cur.CacheMisses++
	}
}

func sourcesFromAttribution(a fcp.Attribution) []string {
	var sources []string
	if a.CacheRows > 0 {
		sources = append(sources, fcp.SourceCache)
	}
	if a.VisionRows > 0 {
		sources = append(sources, fcp.SourceVision)
	}
	if a.RESTRows > 0 {
		sources = append(sources, fcp.SourceREST)
	}
	return sources
}

func (m *Manager) updateHealthError(venue string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.health[venue]
	if h == nil {
		h = &HealthStatus{Venue: venue}
		m.health[venue] = h
	}
	h.ErrorRate = h.ErrorRate*0.9 + 0.1
	h.Status = "degraded"
	h.Recommendation = "check venue connectivity"
	log.Warn().Str("venue", venue).Err(err).Float64("error_rate", h.ErrorRate).Msg("venue health degraded")
}

func (m *Manager) updateHealthLatency(venue string, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.health[venue]
	if h == nil {
		h = &HealthStatus{Venue: venue}
		m.health[venue] = h
	}
	h.LastSeen = time.Now()
	if h.P99Latency == 0 {
		h.P99Latency = latency
	} else {
		h.P99Latency = time.Duration(float64(h.P99Latency)*0.9 + float64(latency)*0.1)
	}
	if latency > 2*time.Second {
		h.Status = "degraded"
		h.Recommendation = "elevated latency"
	} else if h.Status != "degraded" {
		h.Status = "healthy"
		h.Recommendation = ""
	}
}
