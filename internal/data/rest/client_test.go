package rest

import (
	"testing"
	"time"

	"github.com/sawpanic/marketdata/internal/classify"
	"github.com/sawpanic/marketdata/internal/interval"
)

func TestChunkBoundsRespectsMaxRows(t *testing.T) {
	step := interval.I1m.Micros()
	end := step * 2500
	chunks := chunkBounds(0, end, interval.I1m, 1000)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks for 2501 bars at 1000/page, got %d", len(chunks))
	}
	if chunks[0].Start != 0 || chunks[0].End != step*999 {
		t.Fatalf("unexpected first chunk: %+v", chunks[0])
	}
	if chunks[len(chunks)-1].End != end {
		t.Fatalf("expected last chunk to end at range end, got %d", chunks[len(chunks)-1].End)
	}
}

func TestChunkBoundsCapsSpanForSlowerIntervals(t *testing.T) {
	// 30m bars, 1000/page would span ~20.8 days; the 7-day additional cap
	// must win over the row-count cap.
	step := interval.I30m.Micros()
	end := step * 2000
	chunks := chunkBounds(0, end, interval.I30m, 1000)

	sevenDaySeconds := int64(7 * 24 * 3600)
	maxRowsAllowed := sevenDaySeconds / interval.I30m.Seconds()
	for idx, c := range chunks[:len(chunks)-1] {
		rows := (c.End-c.Start)/step + 1
		if rows > maxRowsAllowed {
			t.Fatalf("chunk %d spans %d rows, exceeding the 7-day cap of %d rows", idx, rows, maxRowsAllowed)
		}
	}
}

func TestRetryDelayHonorsRetryAfterForRateLimit(t *testing.T) {
	c := NewClient(DefaultConfig())
	lastErr := &classify.Error{Kind: classify.RateLimit, RetryAfter: 3 * time.Second}
	if got := c.retryDelay(lastErr, 1); got != 3*time.Second {
		t.Fatalf("expected Retry-After to be honored, got %v", got)
	}
}

func TestRetryDelayDefaultsToOneSecondWhenRetryAfterAbsent(t *testing.T) {
	c := NewClient(DefaultConfig())
	lastErr := &classify.Error{Kind: classify.RateLimit}
	if got := c.retryDelay(lastErr, 1); got != time.Second {
		t.Fatalf("expected 1s default, got %v", got)
	}
}

func TestRetryDelayUsesExponentialBackoffForOtherKinds(t *testing.T) {
	c := NewClient(DefaultConfig())
	lastErr := &classify.Error{Kind: classify.NetworkTimeout}
	if got := c.retryDelay(lastErr, 1); got < c.cfg.BackoffBase {
		t.Fatalf("expected exponential backoff floor of %v, got %v", c.cfg.BackoffBase, got)
	}
}

func TestWholeFetchDeadlineUsesLesserOfMaxTimeoutAndDoubleRequestTimeout(t *testing.T) {
	cfg := Config{RequestTimeout: 10 * time.Second, MaxTimeout: 9 * time.Second}
	if got := cfg.wholeFetchDeadline(); got != 9*time.Second {
		t.Fatalf("expected MaxTimeout to win, got %v", got)
	}
	cfg = Config{RequestTimeout: 3 * time.Second, MaxTimeout: 9 * time.Second}
	if got := cfg.wholeFetchDeadline(); got != 6*time.Second {
		t.Fatalf("expected RequestTimeout*2 to win, got %v", got)
	}
}

func TestDialectRegistry(t *testing.T) {
	if _, ok := Dialects["binance"]; !ok {
		t.Fatal("expected binance dialect registered")
	}
	if _, ok := Dialects["okx"]; !ok {
		t.Fatal("expected okx dialect registered")
	}
}

func TestBinanceBuildKlinesURL(t *testing.T) {
	d := Dialects["binance"]
	url := d.BuildKlinesURL("https://api.binance.com", "BTCUSDT", interval.I1m, 0, 60_000_000, 1000)
	if url == "" {
		t.Fatal("expected non-empty URL")
	}
}

func TestBinanceParseKlinesPage(t *testing.T) {
	d := Dialects["binance"]
	body := []byte(`[[1700000000000,"1.0","2.0","0.5","1.5","10.0",1700000059999,"15.0",3,"4.0","6.0","0"]]`)
	bars, err := d.ParseKlinesPage("binance", body)
	if err != nil {
		t.Fatal(err)
	}
	if len(bars) != 1 || bars[0].Close != 1.5 {
		t.Fatalf("unexpected bars: %+v", bars)
	}
}
