package classify

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestFromHTTPStatusRateLimit(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "5")
	e := FromHTTPStatus(Context{Venue: "binance", Op: "get_klines", StatusCode: 429, Headers: h})
	if e.Kind != RateLimit {
		t.Fatalf("got %s", e.Kind)
	}
	if !e.Retryable() {
		t.Fatal("rate limit must be retryable")
	}
	if e.RetryAfter != 5*time.Second {
		t.Fatalf("got %v", e.RetryAfter)
	}
}

func TestFromHTTPStatusTaxonomy(t *testing.T) {
	cases := []struct {
		status int
		want   Kind
		retry  bool
	}{
		{418, RateLimit, true},
		{401, AuthFailure, false},
		{403, AuthFailure, false},
		{404, ResourceNotFound, false},
		{500, NetworkConnection, true},
		{503, NetworkConnection, true},
		{400, ProtocolFormat, false},
	}
	for _, c := range cases {
		e := FromHTTPStatus(Context{Venue: "binance", Op: "x", StatusCode: c.status})
		if e.Kind != c.want {
			t.Errorf("status %d: got kind %s, want %s", c.status, e.Kind, c.want)
		}
		if e.Retryable() != c.retry {
			t.Errorf("status %d: got retryable %v, want %v", c.status, e.Retryable(), c.retry)
		}
	}
}

func TestFromTransportErrorDeadline(t *testing.T) {
	e := FromTransportError("binance", "get_klines", context.DeadlineExceeded)
	if e.Kind != NetworkTimeout {
		t.Fatalf("got %s", e.Kind)
	}
	if !e.Retryable() {
		t.Fatal("timeout must be retryable")
	}
}

func TestNonRetryableKinds(t *testing.T) {
	if (&Error{Kind: ChecksumMismatch}).Retryable() {
		t.Fatal("checksum mismatch must not be retryable")
	}
	if (&Error{Kind: SchemaMismatch}).Retryable() {
		t.Fatal("schema mismatch must not be retryable")
	}
	if (&Error{Kind: DataEmpty}).Retryable() {
		t.Fatal("data empty must not be retryable")
	}
}
