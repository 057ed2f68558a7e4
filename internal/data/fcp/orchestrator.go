// Package fcp implements the Failover/Composition Protocol orchestrator
// (C7): cache-probe, gap-fill via Vision-then-REST failover, multi-source
// merge under a stable schema, and optional cache backfill. Grounded on the
// teacher's internal/data/facade/facade_impl.go GetKlines — cache check,
// cache-miss fetch, attribution/health update, cache write-back — the same
// shape generalized from a single warm-tier REST call into the full
// cache/vision/rest composition spec.md's FCP describes.
package fcp

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/marketdata/internal/cache"
	"github.com/sawpanic/marketdata/internal/classify"
	"github.com/sawpanic/marketdata/internal/data/cachestore"
	"github.com/sawpanic/marketdata/internal/data/gaps"
	"github.com/sawpanic/marketdata/internal/data/rest"
	"github.com/sawpanic/marketdata/internal/data/schema"
	"github.com/sawpanic/marketdata/internal/data/validate"
	"github.com/sawpanic/marketdata/internal/data/vision"
	"github.com/sawpanic/marketdata/internal/interval"
)

// Source tags the provenance of a bar, used for merge tie-breaking
// (CACHE beats VISION beats REST, per I7) and stripped at the boundary.
const (
	SourceCache  = "cache"
	SourceVision = "vision"
	SourceREST   = "rest"
)

// Attribution summarizes where a Get call's bars came from, for the
// manager's health/attribution snapshot.
type Attribution struct {
	Venue      string
	CacheRows  int
	VisionRows int
	RESTRows   int
}

// EnforceSource pins Get to a single source, or lets it compose across all
// three (AUTO), per spec.md §4.7.
type EnforceSource string

const (
	EnforceAuto   EnforceSource = "AUTO"
	EnforceVision EnforceSource = "VISION"
	EnforceREST   EnforceSource = "REST"
	EnforceCache  EnforceSource = "CACHE"
)

// Opts controls one Get call's cache/source/provenance policy.
type Opts struct {
	// UseCache gates the initial cache probe and the cache write-back after
	// a successful fetch. Has no effect on EnforceCache's own contract
	// below.
	UseCache bool
	// EnforceSource restricts which source(s) Get is allowed to consult.
	// AUTO is the default composition policy: cache, then Vision, then
	// REST. EnforceCache requires UseCache=true — combined with
	// UseCache=false it must fail synchronously, before any I/O.
	EnforceSource EnforceSource
	// IncludeSourceMetadata keeps the per-row _data_source provenance tag
	// on the returned Table instead of stripping it at the boundary.
	IncludeSourceMetadata bool
}

// DefaultOpts is the AUTO/cache-on/no-provenance policy equivalent to the
// orchestrator's original single-path behavior.
func DefaultOpts() Opts {
	return Opts{UseCache: true, EnforceSource: EnforceAuto}
}

// Orchestrator wires the cache, Vision, and REST sources behind one Get
// call implementing the Failover/Composition Protocol.
type Orchestrator struct {
	Cache    *cachestore.Store
	Vision   *vision.Client
	REST     *rest.Client
	Negative *cache.NegativeCache

	mu          sync.Mutex
	attribution map[string]*Attribution
}

func New(store *cachestore.Store, visionClient *vision.Client, restClient *rest.Client, neg *cache.NegativeCache) *Orchestrator {
	return &Orchestrator{
		Cache: store, Vision: visionClient, REST: restClient, Negative: neg,
		attribution: make(map[string]*Attribution),
	}
}

// Get resolves [startMicros, endMicros] at the given interval for
// venue/symbol/market per spec.md §4.7's get_klines(key, start, end, opts)
// contract: cache first (if opts.UseCache), then whichever of Vision/REST
// opts.EnforceSource allows, merging under the canonical schema and writing
// newly-fetched bars back to cache before returning.
func (o *Orchestrator) Get(ctx context.Context, d rest.Dialect, market schema.MarketType, symbol string, i interval.Interval, startMicros, endMicros int64, opts Opts) (*schema.Table, error) {
	venue := d.Name()

	// enforce_source=CACHE with use_cache=false can never be satisfied —
	// reject synchronously, before any I/O.
	if opts.EnforceSource == EnforceCache && !opts.UseCache {
		return nil, classify.NewInvalidRequest(venue, "fcp.get", "enforce_source=CACHE requires use_cache=true")
	}

	start := interval.AlignStart(startMicros, i)
	end := interval.AlignEnd(endMicros, i)

	var cacheBars []schema.Bar
	var missingRanges []gaps.Range
	if opts.UseCache {
		cacheBars = o.loadFromCache(venue, market, symbol, i, start, end)
		have := make([]int64, 0, len(cacheBars))
		for _, b := range cacheBars {
			have = append(have, b.OpenTime)
		}
		expected := gaps.ExpectedGrid(start, end, i)
		missingRanges = gaps.Missing(expected, have, i)
	} else {
		missingRanges = []gaps.Range{{Start: start, EndExclusive: end + i.Micros()}}
	}

	// CACHE enforcement never touches the network: whatever the cache
	// already holds is the whole answer, gaps are left unfilled.
	if opts.EnforceSource == EnforceCache {
		missingRanges = nil
	}

	attr := &Attribution{Venue: venue, CacheRows: len(cacheBars)}
	allBars := append([]schema.Bar{}, cacheBars...)

	for _, r := range missingRanges {
		filled, source, err := o.fillGap(ctx, d, market, symbol, i, r.Start, r.EndExclusive-i.Micros(), opts.EnforceSource)
		if err != nil {
			var cerr *classify.Error
			if isClassified(err, &cerr) && cerr.Kind == classify.DataEmpty {
				o.Negative.MarkEmpty(venue, symbol, string(i), source, r.Start, r.EndExclusive)
				continue
			}
			return nil, err
		}
		for k := range filled {
			filled[k].Venue, filled[k].Symbol, filled[k].Interval = venue, symbol, i
		}
		switch source {
		case SourceVision:
			attr.VisionRows += len(filled)
		case SourceREST:
			attr.RESTRows += len(filled)
		}
		allBars = append(allBars, filled...)
		if opts.UseCache {
			o.saveToCache(venue, market, symbol, i, filled)
		}
	}

	o.mu.Lock()
	o.attribution[venue] = attr
	o.mu.Unlock()

	table := schema.NewTable(venue, symbol, string(i), allBars)
	if verr := table.Validate(); verr != nil {
		return nil, verr
	}
	if verr := validate.ValidateTable(venue, table.Bars, i); verr != nil {
		return nil, verr
	}
	if opts.IncludeSourceMetadata {
		return table, nil
	}
	return table.StripSource(), nil
}

// fillGap resolves one gap per enforce's policy: AUTO tries Vision then
// falls over to REST; VISION and REST each use exactly one source with no
// fallback and let their errors surface directly to the caller.
func (o *Orchestrator) fillGap(ctx context.Context, d rest.Dialect, market schema.MarketType, symbol string, i interval.Interval, startMicros, endMicros int64, enforce EnforceSource) ([]schema.Bar, string, error) {
	venue := d.Name()

	switch enforce {
	case EnforceVision:
		if o.Negative.IsKnownEmpty(venue, symbol, string(i), SourceVision, startMicros, endMicros) {
			return nil, SourceVision, classify.NewDataEmpty(venue, "fcp.fill_gap", "range already known empty on vision")
		}
		bars, err := o.fetchVisionRange(ctx, venue, market, symbol, i, startMicros, endMicros)
		if err != nil {
			return nil, SourceVision, err
		}
		tag(bars, SourceVision)
		return bars, SourceVision, nil

	case EnforceREST:
		if o.Negative.IsKnownEmpty(venue, symbol, string(i), SourceREST, startMicros, endMicros) {
			return nil, SourceREST, classify.NewDataEmpty(venue, "fcp.fill_gap", "range already known empty on rest")
		}
		bars, err := o.REST.FetchKlines(ctx, d, symbol, i, startMicros, endMicros)
		if err != nil {
			return nil, SourceREST, err
		}
		tag(bars, SourceREST)
		return bars, SourceREST, nil

	default: // AUTO
		if !o.Negative.IsKnownEmpty(venue, symbol, string(i), SourceVision, startMicros, endMicros) {
			bars, err := o.fetchVisionRange(ctx, venue, market, symbol, i, startMicros, endMicros)
			if err == nil && len(bars) > 0 {
				tag(bars, SourceVision)
				return bars, SourceVision, nil
			}
			if err != nil {
				var cerr *classify.Error
				if !isClassified(err, &cerr) || cerr.Kind != classify.DataEmpty {
					log.Warn().Str("venue", venue).Str("symbol", symbol).Err(err).Msg("vision fetch failed, falling back to rest")
				}
			}
		}

		if o.Negative.IsKnownEmpty(venue, symbol, string(i), SourceREST, startMicros, endMicros) {
			return nil, SourceREST, classify.NewDataEmpty(venue, "fcp.fill_gap", "range already known empty on rest")
		}
		bars, err := o.REST.FetchKlines(ctx, d, symbol, i, startMicros, endMicros)
		if err != nil {
			return nil, SourceREST, err
		}
		tag(bars, SourceREST)
		return bars, SourceREST, nil
	}
}

func (o *Orchestrator) fetchVisionRange(ctx context.Context, venue string, market schema.MarketType, symbol string, i interval.Interval, startMicros, endMicros int64) ([]schema.Bar, error) {
	var all []schema.Bar
	for _, day := range interval.DatesOverlapping(startMicros, endMicros) {
		date := day.Format("2006-01-02")
		dayBars, err := o.Vision.FetchDay(ctx, venue, market, symbol, i, date)
		if err != nil {
			var cerr *classify.Error
			if isClassified(err, &cerr) && cerr.Kind == classify.DataEmpty {
				continue
			}
			return all, err
		}
		all = append(all, dayBars...)
	}
	// Trim to the exact requested window; Vision ships whole days.
	out := make([]schema.Bar, 0, len(all))
	for _, b := range all {
		if b.OpenTime >= startMicros && b.OpenTime <= endMicros {
			out = append(out, b)
		}
	}
	if len(out) == 0 {
		return nil, classify.NewDataEmpty(venue, "fcp.fetch_vision_range", "no vision rows in window")
	}
	return out, nil
}

func (o *Orchestrator) loadFromCache(venue string, market schema.MarketType, symbol string, i interval.Interval, start, end int64) []schema.Bar {
	var out []schema.Bar
	for d := start; d <= end; {
		dayStart, dayEnd := interval.DayBounds(d)
		bars, err := o.Cache.LoadDay(venue, market, symbol, i, dayStart)
		if err == nil {
			for _, b := range bars {
				if b.OpenTime >= start && b.OpenTime <= end {
					// Shards do not store venue/symbol/interval; the shard key does.
					b.Venue, b.Symbol, b.Interval = venue, symbol, i
					b.DataSource = SourceCache
					out = append(out, b)
				}
			}
		}
		d = dayEnd
	}
	return out
}

func (o *Orchestrator) saveToCache(venue string, market schema.MarketType, symbol string, i interval.Interval, bars []schema.Bar) {
	byDay := make(map[int64][]schema.Bar)
	for _, b := range bars {
		dayStart, _ := interval.DayBounds(b.OpenTime)
		byDay[dayStart] = append(byDay[dayStart], b)
	}
	for day, dayBars := range byDay {
		existing, _ := o.Cache.LoadDay(venue, market, symbol, i, day)
		merged := schema.NewTable(venue, symbol, string(i), append(existing, dayBars...))
		if err := o.Cache.SaveDay(venue, market, symbol, i, day, merged.Bars); err != nil {
			log.Error().Err(err).Str("venue", venue).Str("symbol", symbol).Msg("failed to persist cache shard")
		}
	}
}

// Attribution returns the last Get call's per-source row counts for venue.
func (o *Orchestrator) Attribution(venue string) (Attribution, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	a, ok := o.attribution[venue]
	if !ok {
		return Attribution{}, false
	}
	return *a, true
}

func tag(bars []schema.Bar, source string) {
	for i := range bars {
		bars[i].DataSource = source
	}
}

func isClassified(err error, out **classify.Error) bool {
	ce, ok := err.(*classify.Error)
	if ok {
		*out = ce
	}
	return ok
}

