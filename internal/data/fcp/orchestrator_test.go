package fcp

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sawpanic/marketdata/internal/cache"
	"github.com/sawpanic/marketdata/internal/data/cachestore"
	"github.com/sawpanic/marketdata/internal/data/rest"
	"github.com/sawpanic/marketdata/internal/data/schema"
	"github.com/sawpanic/marketdata/internal/data/vision"
	"github.com/sawpanic/marketdata/internal/interval"
)

func newTestOrchestrator(t *testing.T, visionSrv, restSrv *httptest.Server) *Orchestrator {
	t.Helper()
	dir := t.TempDir()
	store, err := cachestore.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	vc := vision.NewClientAt(visionSrv.Client(), visionSrv.URL)
	rc := rest.NewClient(rest.DefaultConfig())
	neg := cache.NewNegativeCache(cache.New(), time.Minute)
	_ = rc
	_ = restSrv
	return New(store, vc, rc, neg)
}

// fakeDialect lets the REST path be driven against an httptest server
// without touching the real binance/okx dialects.
type fakeDialect struct {
	endpoint string
}

func (f fakeDialect) Name() string          { return "fakevenue" }
func (f fakeDialect) Endpoints() []string   { return []string{f.endpoint} }
func (f fakeDialect) MaxKlinesPerPage() int { return 1000 }
func (f fakeDialect) IntervalToWire(i interval.Interval) (string, bool) {
	return string(i), true
}
func (f fakeDialect) BuildKlinesURL(endpoint, symbol string, i interval.Interval, start, end int64, limit int) string {
	return fmt.Sprintf("%s/klines?symbol=%s&start=%d&end=%d", endpoint, symbol, start, end)
}
func (f fakeDialect) BuildFundingURL(endpoint, symbol string, start, end int64, limit int) string {
	return endpoint + "/funding"
}
func (f fakeDialect) ParseKlinesPage(venue string, body []byte) ([]schema.Bar, error) {
	return nil, nil
}
func (f fakeDialect) ParseFundingPage(venue string, body []byte) ([]schema.FundingBar, error) {
	return nil, nil
}

func TestOrchestratorServesFromCacheWithoutNetworkCalls(t *testing.T) {
	restCalls := 0
	restSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		restCalls++
		w.Write([]byte(`[]`))
	}))
	defer restSrv.Close()
	visionSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer visionSrv.Close()

	o := newTestOrchestrator(t, visionSrv, restSrv)
	d := fakeDialect{endpoint: restSrv.URL}

	day := interval.ToMicrosFromTime(mustParseDay(t, "2024-01-02"))
	dayStart, _ := interval.DayBounds(day)
	bar := schema.Bar{Venue: "fakevenue", Symbol: "BTCUSDT", Interval: "1m", OpenTime: dayStart, CloseTime: dayStart + interval.I1m.Micros() - 1, Open: 1, High: 2, Low: 1, Close: 1.5, Volume: 10}
	if err := o.Cache.SaveDay("fakevenue", schema.MarketSpot, "BTCUSDT", interval.I1m, dayStart, []schema.Bar{bar}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	table, err := o.Get(context.Background(), d, schema.MarketSpot, "BTCUSDT", interval.I1m, dayStart, dayStart, DefaultOpts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(table.Bars) != 1 {
		t.Fatalf("expected 1 bar served purely from cache, got %d", len(table.Bars))
	}
	if restCalls != 0 {
		t.Fatalf("expected no rest calls for a fully cached range, got %d", restCalls)
	}
}

func TestOrchestratorStripsSourceTagOnOutput(t *testing.T) {
	restSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer restSrv.Close()
	visionSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer visionSrv.Close()

	o := newTestOrchestrator(t, visionSrv, restSrv)
	d := fakeDialect{endpoint: restSrv.URL}

	day := interval.ToMicrosFromTime(mustParseDay(t, "2024-01-03"))
	dayStart, _ := interval.DayBounds(day)
	bar := schema.Bar{Venue: "fakevenue", Symbol: "ETHUSDT", Interval: "1m", OpenTime: dayStart, CloseTime: dayStart + interval.I1m.Micros() - 1, Open: 1, High: 2, Low: 1, Close: 1.5, Volume: 10, DataSource: SourceCache}
	if err := o.Cache.SaveDay("fakevenue", schema.MarketSpot, "ETHUSDT", interval.I1m, dayStart, []schema.Bar{bar}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	table, err := o.Get(context.Background(), d, schema.MarketSpot, "ETHUSDT", interval.I1m, dayStart, dayStart, DefaultOpts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, b := range table.Bars {
		if b.DataSource != "" {
			t.Fatalf("expected DataSource stripped from output, got %q", b.DataSource)
		}
	}
}

func TestOrchestratorRejectsCacheEnforcementWithoutCache(t *testing.T) {
	restSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("expected no network calls for a synchronously rejected request")
	}))
	defer restSrv.Close()
	visionSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("expected no network calls for a synchronously rejected request")
	}))
	defer visionSrv.Close()

	o := newTestOrchestrator(t, visionSrv, restSrv)
	d := fakeDialect{endpoint: restSrv.URL}

	_, err := o.Get(context.Background(), d, schema.MarketSpot, "BTCUSDT", interval.I1m, 0, 0, Opts{UseCache: false, EnforceSource: EnforceCache})
	if err == nil {
		t.Fatal("expected enforce_source=CACHE with use_cache=false to error")
	}
}

func TestOrchestratorRestEnforcementSkipsVision(t *testing.T) {
	visionCalls := 0
	visionSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		visionCalls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer visionSrv.Close()
	restSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer restSrv.Close()

	o := newTestOrchestrator(t, visionSrv, restSrv)
	d := fakeDialect{endpoint: restSrv.URL}

	day := interval.ToMicrosFromTime(mustParseDay(t, "2024-01-04"))
	dayStart, _ := interval.DayBounds(day)

	table, err := o.Get(context.Background(), d, schema.MarketSpot, "BTCUSDT", interval.I1m, dayStart, dayStart, Opts{UseCache: true, EnforceSource: EnforceREST})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(table.Bars) != 0 {
		t.Fatalf("expected empty table, got %d bars", len(table.Bars))
	}
	if visionCalls != 0 {
		t.Fatalf("expected vision to never be consulted under enforce_source=REST, got %d calls", visionCalls)
	}
}

func mustParseDay(t *testing.T, s string) time.Time {
	t.Helper()
	layout := "2006-01-02"
	tm, err := time.Parse(layout, s)
	if err != nil {
		t.Fatal(err)
	}
	return tm
}
