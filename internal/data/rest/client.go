package rest

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/sawpanic/marketdata/internal/classify"
	"github.com/sawpanic/marketdata/internal/data/schema"
	"github.com/sawpanic/marketdata/internal/interval"
	"github.com/sawpanic/marketdata/internal/net/circuit"
	"github.com/sawpanic/marketdata/internal/quota"
)

// Config tunes the chunking engine's concurrency and resilience behavior.
type Config struct {
	MaxConcurrency int
	RequestTimeout time.Duration
	// MaxTimeout is the hard ceiling (spec §6's MAX_TIMEOUT) on a whole
	// fetch's context deadline; the effective deadline is
	// min(MaxTimeout, RequestTimeout*2).
	MaxTimeout  time.Duration
	MaxRetries  int
	BackoffBase time.Duration
	RateRPS     float64
	RateBurst   int
}

func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		RequestTimeout: 10 * time.Second,
		MaxTimeout:     9 * time.Second,
		MaxRetries:     5,
		BackoffBase:    200 * time.Millisecond,
		RateRPS:        10,
		RateBurst:      20,
	}
}

// wholeFetchDeadline implements spec §4.5 step 6:
// min(MAX_TIMEOUT, fetch_timeout*2).
func (c Config) wholeFetchDeadline() time.Duration {
	d := c.RequestTimeout * 2
	if c.MaxTimeout > 0 && c.MaxTimeout < d {
		return c.MaxTimeout
	}
	return d
}

// additionalSpanCapSeconds is spec §4.5 step 2's per-interval additional
// chunk-span cap, tighter than the dialect's row-count cap for the
// intervals providers bound by elapsed time rather than row count.
func additionalSpanCapSeconds(i interval.Interval) int64 {
	switch i {
	case interval.I1s:
		return 1000
	case interval.I1m:
		return 1000 * 60
	case interval.I3m, interval.I5m, interval.I15m, interval.I30m:
		return 7 * 24 * 3600
	case interval.I1h, interval.I2h, interval.I4h, interval.I6h, interval.I8h, interval.I12h:
		return 30 * 24 * 3600
	default:
		return 0
	}
}

// FetchIncident is logged whenever a whole fetch is aborted by its deadline,
// giving operators enough context to tell which request to retry (spec §8
// scenario 5).
type FetchIncident struct {
	Operation       string
	Duration        time.Duration
	Symbol          string
	Interval        string
	Start           int64
	End             int64
	ChunkCount      int
	CompletedChunks int
}

func logFetchIncident(rec FetchIncident) {
	log.Error().
		Str("operation", rec.Operation).
		Dur("duration", rec.Duration).
		Str("symbol", rec.Symbol).
		Str("interval", rec.Interval).
		Int64("start", rec.Start).
		Int64("end", rec.End).
		Int("chunk_count", rec.ChunkCount).
		Int("completed_chunks", rec.CompletedChunks).
		Msg("rest: whole-fetch deadline exceeded")
}

// Client is the REST chunking engine (C5): it partitions a time range into
// interval-aware, size-bounded chunks, fetches each chunk under bounded
// concurrency with endpoint rotation, per-venue rate limiting and circuit
// breaking, and merges the chunk results into one ordered bar slice.
type Client struct {
	cfg      Config
	http     *http.Client
	limiters map[string]*rate.Limiter
	breakers *circuit.Manager
	budgets  *quota.Guard
	mu       sync.Mutex
	rotation map[string]int
}

func NewClient(cfg Config) *Client {
	return &Client{
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.RequestTimeout},
		limiters: make(map[string]*rate.Limiter),
		breakers: circuit.NewManager(),
		rotation: make(map[string]int),
	}
}

// WithBudgets attaches a call-budget guard; doGet consults it before every
// request once set, so a venue that exhausts its free-tier ceiling fails
// fast instead of drawing a 429/418 ban.
func (c *Client) WithBudgets(g *quota.Guard) *Client {
	c.budgets = g
	return c
}

func (c *Client) limiterFor(venue string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[venue]
	if !ok {
		l = rate.NewLimiter(rate.Limit(c.cfg.RateRPS), c.cfg.RateBurst)
		c.limiters[venue] = l
	}
	return l
}

// nextEndpoint rotates through a dialect's endpoint list under a mutex, so
// repeated failures against one host fail over to the next.
func (c *Client) nextEndpoint(d Dialect) string {
	eps := d.Endpoints()
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.rotation[d.Name()]
	ep := eps[i%len(eps)]
	c.rotation[d.Name()] = i + 1
	return ep
}

// chunkBounds splits [start, end] into sequential sub-ranges sized so each
// chunk requests at most the dialect's page limit worth of bars, further
// bounded by the interval's additional span cap (spec §4.5 step 2) when the
// row-count cap alone would span more wall-clock time than the provider
// actually accepts for that interval class.
func chunkBounds(start, end int64, i interval.Interval, maxRows int) []gapRange {
	rows := maxRows
	if capSeconds := additionalSpanCapSeconds(i); capSeconds > 0 {
		if capRows := int(capSeconds / i.Seconds()); capRows > 0 && capRows < rows {
			rows = capRows
		}
	}
	step := i.Micros() * int64(rows)
	var out []gapRange
	for s := start; s <= end; s += step {
		e := s + step - i.Micros()
		if e > end {
			e = end
		}
		out = append(out, gapRange{Start: s, End: e})
	}
	return out
}

type gapRange struct{ Start, End int64 }

// FetchKlines fetches [startMicros, endMicros] for symbol/interval, failing
// over across endpoints and retrying with backoff on retryable
// classifications, bounded overall by the whole-fetch deadline
// (spec §4.5 step 6: min(MaxTimeout, RequestTimeout*2)). If that deadline
// expires before every chunk completes, an incident record is logged
// describing how much of the fetch finished.
func (c *Client) FetchKlines(ctx context.Context, d Dialect, symbol string, i interval.Interval, startMicros, endMicros int64) ([]schema.Bar, error) {
	deadline := c.cfg.wholeFetchDeadline()
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	start := time.Now()
	chunks := chunkBounds(startMicros, endMicros, i, d.MaxKlinesPerPage())
	sem := make(chan struct{}, c.cfg.MaxConcurrency)
	results := make([][]schema.Bar, len(chunks))
	errs := make([]error, len(chunks))
	var completed int32

	var wg sync.WaitGroup
	for idx, ch := range chunks {
		idx, ch := idx, ch
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			bars, err := c.fetchChunk(ctx, d, symbol, i, ch.Start, ch.End)
			results[idx] = bars
			errs[idx] = err
			var cerr *classify.Error
			if err == nil || (errors.As(err, &cerr) && cerr.Kind == classify.DataEmpty) {
				atomic.AddInt32(&completed, 1)
			}
		}()
	}
	wg.Wait()

	completedChunks := int(atomic.LoadInt32(&completed))
	if ctx.Err() != nil && completedChunks < len(chunks) {
		logFetchIncident(FetchIncident{
			Operation:       "rest.fetch_klines",
			Duration:        time.Since(start),
			Symbol:          symbol,
			Interval:        string(i),
			Start:           startMicros,
			End:             endMicros,
			ChunkCount:      len(chunks),
			CompletedChunks: completedChunks,
		})
	}

	var out []schema.Bar
	for idx, err := range errs {
		if err != nil {
			var cerr *classify.Error
			if errors.As(err, &cerr) && cerr.Kind == classify.DataEmpty {
				continue // empty-chunk tolerance: a source can legitimately have no data for a sub-range
			}
			return nil, err
		}
		out = append(out, results[idx]...)
	}
	return out, nil
}

func (c *Client) fetchChunk(ctx context.Context, d Dialect, symbol string, i interval.Interval, start, end int64) ([]schema.Bar, error) {
	venue := d.Name()
	body, err := c.fetchPage(ctx, d, "rest.fetch_chunk", func(endpoint string) string {
		return d.BuildKlinesURL(endpoint, symbol, i, start, end, d.MaxKlinesPerPage())
	})
	if err != nil {
		return nil, err
	}
	bars, perr := d.ParseKlinesPage(venue, body)
	if perr != nil {
		return nil, perr
	}
	if len(bars) == 0 {
		return nil, classify.NewDataEmpty(venue, "rest.fetch_chunk", "empty chunk tolerated")
	}
	return bars, nil
}

// FetchFundingPage fetches one funding-history page through the same
// retry/backoff/rotation/circuit-breaker/rate-limit machinery fetchChunk
// uses for klines, per spec §4.8's "same retry/backoff/rotation/timeout
// rules as C5."
func (c *Client) FetchFundingPage(ctx context.Context, d Dialect, symbol string, startMicros, endMicros int64, limit int) ([]schema.FundingBar, error) {
	venue := d.Name()
	body, err := c.fetchPage(ctx, d, "rest.fetch_funding_page", func(endpoint string) string {
		return d.BuildFundingURL(endpoint, symbol, startMicros, endMicros, limit)
	})
	if err != nil {
		return nil, err
	}
	page, perr := d.ParseFundingPage(venue, body)
	if perr != nil {
		return nil, perr
	}
	return page, nil
}

// fetchPage runs one classified-retry GET against d's rotating endpoints,
// sharing retry/backoff/circuit-breaker/rate-limit/budget machinery between
// klines chunk fetches (C5) and funding page fetches (C8). buildURL is
// invoked fresh on every attempt so endpoint rotation is visible to the
// caller's URL shape.
func (c *Client) fetchPage(ctx context.Context, d Dialect, op string, buildURL func(endpoint string) string) ([]byte, error) {
	venue := d.Name()
	breaker := c.breakers.For(venue)
	limiter := c.limiterFor(venue)

	var lastErr *classify.Error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay(lastErr, attempt)
			log.Debug().Str("venue", venue).Str("op", op).Int("attempt", attempt).Dur("delay", delay).Msg("rest retry")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, classify.FromTransportError(venue, op, ctx.Err())
			}
		}
		if err := limiter.Wait(ctx); err != nil {
			return nil, classify.FromTransportError(venue, op, err)
		}

		endpoint := c.nextEndpoint(d)
		url := buildURL(endpoint)

		res, err := breaker.Execute(func() (any, error) {
			return c.doGet(ctx, venue, url)
		})
		if err != nil {
			if errors.Is(err, circuit.ErrOpen) {
				lastErr = &classify.Error{Kind: classify.NetworkConnection, Venue: venue, Op: op, Message: "circuit breaker open"}
				continue
			}
			// doGet already classifies HTTP status failures (keeping
			// Retry-After); only raw transport errors are classified here.
			var cerr *classify.Error
			if !errors.As(err, &cerr) {
				cerr = classify.FromTransportError(venue, op, err)
			}
			if !cerr.Retryable() {
				return nil, cerr
			}
			lastErr = cerr
			continue
		}
		return res.([]byte), nil
	}
	return nil, lastErr
}

// retryDelay implements spec §4.5 step 4's bifurcated policy: RateLimit
// (429/418) honors the provider's Retry-After header (defaulting to 1s when
// absent), every other retryable classification uses exponential backoff.
func (c *Client) retryDelay(lastErr *classify.Error, attempt int) time.Duration {
	if lastErr != nil && lastErr.Kind == classify.RateLimit {
		if lastErr.RetryAfter > 0 {
			return lastErr.RetryAfter
		}
		return time.Second
	}
	return c.backoff(attempt)
}

// doGet performs one HTTP GET and classifies any non-2xx response,
// including 429/418 Retry-After extraction, per the taxonomy in C9.
func (c *Client) doGet(ctx context.Context, venue, url string) ([]byte, error) {
	if c.budgets != nil {
		if err := c.budgets.CheckAndConsume(venue, 1); err != nil {
			return nil, &classify.Error{Kind: classify.RateLimit, Venue: venue, Op: "rest.do_get", Message: err.Error()}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		cerr := classify.FromHTTPStatus(classify.Context{Venue: venue, Op: "rest.do_get", StatusCode: resp.StatusCode, Headers: resp.Header, Message: string(body)})
		return nil, cerr
	}
	return body, nil
}

func (c *Client) backoff(attempt int) time.Duration {
	base := c.cfg.BackoffBase
	d := base * time.Duration(1<<uint(attempt-1))
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(d)/4 + 1))
	return d + jitter
}
