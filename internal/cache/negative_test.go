package cache

import (
	"testing"
	"time"
)

func TestNegativeCacheMarkAndCheck(t *testing.T) {
	n := NewNegativeCache(New(), time.Minute)
	if n.IsKnownEmpty("binance", "BTCUSDT", "1m", "vision", 0, 100) {
		t.Fatal("expected not known empty before marking")
	}
	n.MarkEmpty("binance", "BTCUSDT", "1m", "vision", 0, 100)
	if !n.IsKnownEmpty("binance", "BTCUSDT", "1m", "vision", 0, 100) {
		t.Fatal("expected known empty after marking")
	}
	if n.IsKnownEmpty("binance", "BTCUSDT", "1m", "rest", 0, 100) {
		t.Fatal("expected different source to be independent")
	}
}

func TestNegativeCacheExpires(t *testing.T) {
	n := NewNegativeCache(New(), time.Millisecond)
	n.MarkEmpty("binance", "BTCUSDT", "1m", "vision", 0, 100)
	time.Sleep(5 * time.Millisecond)
	if n.IsKnownEmpty("binance", "BTCUSDT", "1m", "vision", 0, 100) {
		t.Fatal("expected TTL expiry")
	}
}
