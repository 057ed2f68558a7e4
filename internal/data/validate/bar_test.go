package validate

import (
	"testing"

	"github.com/sawpanic/marketdata/internal/data/schema"
)

func TestBarOHLCSaneRejectsInvertedHighLow(t *testing.T) {
	b := schema.Bar{OpenTime: 1, Open: 10, High: 5, Low: 1, Close: 8, Volume: 1}
	if err := BarOHLCSane("binance", b); err == nil {
		t.Fatal("expected error when high < open")
	}
}

func TestBarOHLCSaneRejectsNonPositivePrice(t *testing.T) {
	b := schema.Bar{OpenTime: 1, Open: 0, High: 5, Low: 1, Close: 2, Volume: 1}
	if err := BarOHLCSane("binance", b); err == nil {
		t.Fatal("expected error for non-positive open")
	}
}

func TestBarOHLCSaneAcceptsValidBar(t *testing.T) {
	b := schema.Bar{OpenTime: 1, Open: 10, High: 12, Low: 9, Close: 11, Volume: 5}
	if err := BarOHLCSane("binance", b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBarAnomalyCheckerFlagsCorruption(t *testing.T) {
	c := NewBarAnomalyChecker("binance", AnomalyConfig{EnableQuarantine: true})
	bad := schema.Bar{OpenTime: 1, Open: -1, High: 1, Low: -2, Close: 0, Volume: 1}
	if err := c.Check(bad); err == nil {
		t.Fatal("expected sanity check to catch negative price before anomaly detector runs")
	}
}
