// Package rest implements the REST chunking engine (C5): interval-aware
// time-range partitioning, bounded concurrency, endpoint rotation, circuit
// breaking, rate limiting, and backoff — grounded on the teacher's
// internal/providers/guards/guard.go Execute loop and internal/providers/
// adapters/binance.go URL-building conventions, but generalized behind a
// Dialect capability set (spec.md §9's fix for "subclass-by-variation")
// instead of one struct per venue.
package rest

import (
	"github.com/sawpanic/marketdata/internal/data/schema"
	"github.com/sawpanic/marketdata/internal/interval"
)

// Dialect captures everything that varies between Binance and OKX without
// requiring a type switch at every call site: URL shape, wire interval
// strings, and response parsing.
type Dialect interface {
	Name() string
	Endpoints() []string
	BuildKlinesURL(endpoint, symbol string, i interval.Interval, startMicros, endMicros int64, limit int) string
	ParseKlinesPage(venue string, body []byte) ([]schema.Bar, error)
	BuildFundingURL(endpoint, symbol string, startMicros, endMicros int64, limit int) string
	ParseFundingPage(venue string, body []byte) ([]schema.FundingBar, error)
	IntervalToWire(i interval.Interval) (string, bool)
	MaxKlinesPerPage() int
}

// Dialects is the registry of supported venues, populated in init() by
// each venue's own file so adding a venue never touches this file.
var Dialects = map[string]Dialect{}

func register(d Dialect) { Dialects[d.Name()] = d }
