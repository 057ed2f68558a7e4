package vision

import (
	"testing"

	"github.com/sawpanic/marketdata/internal/data/schema"
	"github.com/sawpanic/marketdata/internal/interval"
)

func TestPathSegment1sQuirk(t *testing.T) {
	if got := pathSegment(interval.I1s); got != "1m" {
		t.Fatalf("expected 1s interval to use 1m path segment, got %q", got)
	}
	if got := pathSegment(interval.I5m); got != "5m" {
		t.Fatalf("expected 5m interval to use 5m path segment, got %q", got)
	}
}

func TestDailyArchiveURL(t *testing.T) {
	c := NewClient(nil)
	url := c.DailyArchiveURL(schema.MarketSpot, "BTCUSDT", interval.I1s, "2024-01-02")
	want := "https://data.binance.vision/data/spot/daily/klines/BTCUSDT/1m/BTCUSDT-1m-2024-01-02.zip"
	if url != want {
		t.Fatalf("got %q want %q", url, want)
	}
}

func TestParseKlineRowsHeaderless(t *testing.T) {
	rows := [][]string{
		{"1700000000000", "1.0", "2.0", "0.5", "1.5", "10.0", "1700000059999", "15.0", "3", "4.0", "6.0", "0"},
	}
	bars, err := parseKlineRows("binance", rows)
	if err != nil {
		t.Fatal(err)
	}
	if len(bars) != 1 || bars[0].Close != 1.5 {
		t.Fatalf("unexpected bars: %+v", bars)
	}
}

func TestParseKlineRowsWithHeader(t *testing.T) {
	rows := [][]string{
		{"open_time", "open", "high", "low", "close", "volume", "close_time", "quote_volume", "trades", "taker_base", "taker_quote", "ignore"},
		{"1700000000000", "1.0", "2.0", "0.5", "1.5", "10.0", "1700000059999", "15.0", "3", "4.0", "6.0", "0"},
	}
	bars, err := parseKlineRows("binance", rows)
	if err != nil {
		t.Fatal(err)
	}
	if len(bars) != 1 {
		t.Fatalf("expected header row to be skipped, got %d bars", len(bars))
	}
}

func TestParseChecksumFile(t *testing.T) {
	sum, err := parseChecksumFile([]byte("deadbeef  BTCUSDT-1m-2024-01-02.zip\n"))
	if err != nil {
		t.Fatal(err)
	}
	if sum != "deadbeef" {
		t.Fatalf("got %q", sum)
	}
}
