package manager

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sawpanic/marketdata/internal/data/fcp"
)

func newTestManager() *Manager {
	return &Manager{
		attribution: make(map[string]*Attribution),
		health:      make(map[string]*HealthStatus),
	}
}

func TestUpdateAttributionTracksSourcesAndCacheCounters(t *testing.T) {
	m := newTestManager()

	m.updateAttribution("binance", fcp.Attribution{Venue: "binance", CacheRows: 10})
	a := m.Attribution("binance")
	assert.Equal(t, []string{fcp.SourceCache}, a.Sources)
	assert.EqualValues(t, 1, a.CacheHits)
	assert.Zero(t, a.CacheMisses)

	m.updateAttribution("binance", fcp.Attribution{Venue: "binance", VisionRows: 5, RESTRows: 2})
	a = m.Attribution("binance")
	assert.Equal(t, []string{fcp.SourceVision, fcp.SourceREST}, a.Sources)
	assert.EqualValues(t, 1, a.CacheMisses)
}

func TestAttributionUnknownVenueReturnsZeroValue(t *testing.T) {
	m := newTestManager()
	a := m.Attribution("okx")
	assert.Equal(t, "okx", a.Venue)
	assert.Empty(t, a.Sources)
}

func TestUpdateHealthErrorDegradesStatus(t *testing.T) {
	m := newTestManager()
	m.updateHealthError("binance", assertErr{})
	h := m.Health("binance")
	assert.Equal(t, "degraded", h.Status)
	assert.Greater(t, h.ErrorRate, 0.0)
}

func TestUpdateHealthLatencyMarksDegradedOnSlowResponse(t *testing.T) {
	m := newTestManager()
	m.updateHealthLatency("binance", 3*time.Second)
	h := m.Health("binance")
	assert.Equal(t, "degraded", h.Status)
	assert.Equal(t, "elevated latency", h.Recommendation)
}

func TestUpdateHealthLatencyMarksHealthyOnFastResponse(t *testing.T) {
	m := newTestManager()
	m.updateHealthLatency("binance", 50*time.Millisecond)
	h := m.Health("binance")
	assert.Equal(t, "healthy", h.Status)
}

func TestHealthUnknownVenueReturnsUnknownStatus(t *testing.T) {
	m := newTestManager()
	h := m.Health("okx")
	assert.Equal(t, "unknown", h.Status)
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
