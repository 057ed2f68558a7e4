package funding

import (
	"testing"

	"github.com/sawpanic/marketdata/internal/data/rest"
)

func TestDialectFundingURLBuild(t *testing.T) {
	d := rest.Dialects["binance"]
	url := d.BuildFundingURL("https://fapi.binance.com", "BTCUSDT", 0, 1000, 1000)
	if url == "" {
		t.Fatal("expected non-empty funding URL")
	}
}

func TestParseBinanceFundingPage(t *testing.T) {
	d := rest.Dialects["binance"]
	body := []byte(`[{"symbol":"BTCUSDT","fundingTime":1700000000000,"fundingRate":"0.0001","markPrice":"50000.0"}]`)
	bars, err := d.ParseFundingPage("binance", body)
	if err != nil {
		t.Fatal(err)
	}
	if len(bars) != 1 || bars[0].FundingRate != 0.0001 {
		t.Fatalf("unexpected bars: %+v", bars)
	}
}
