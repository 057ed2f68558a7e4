package rest

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/sawpanic/marketdata/internal/classify"
	"github.com/sawpanic/marketdata/internal/data/schema"
	"github.com/sawpanic/marketdata/internal/interval"
)

func init() { register(binanceDialect{}) }

type binanceDialect struct{}

func (binanceDialect) Name() string { return "binance" }

// Endpoints lists the REST hosts rotated on failure/rate-limit, mirroring
// Binance's own published failover hosts.
func (binanceDialect) Endpoints() []string {
	return []string{
		"https://api.binance.com",
		"https://api1.binance.com",
		"https://api2.binance.com",
		"https://api3.binance.com",
	}
}

func (binanceDialect) MaxKlinesPerPage() int { return 1000 }

var binanceWireIntervals = map[interval.Interval]string{
	interval.I1s: "1s", interval.I1m: "1m", interval.I3m: "3m", interval.I5m: "5m",
	interval.I15m: "15m", interval.I30m: "30m", interval.I1h: "1h", interval.I2h: "2h",
	interval.I4h: "4h", interval.I6h: "6h", interval.I8h: "8h", interval.I12h: "12h",
	interval.I1d: "1d", interval.I3d: "3d", interval.I1w: "1w", interval.I1mo: "1M",
}

func (binanceDialect) IntervalToWire(i interval.Interval) (string, bool) {
	s, ok := binanceWireIntervals[i]
	return s, ok
}

func (d binanceDialect) BuildKlinesURL(endpoint, symbol string, i interval.Interval, startMicros, endMicros int64, limit int) string {
	wire, _ := d.IntervalToWire(i)
	startMs := startMicros / 1000
	endMs := endMicros / 1000
	return fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&startTime=%d&endTime=%d&limit=%d",
		endpoint, symbol, wire, startMs, endMs, limit)
}

func (binanceDialect) BuildFundingURL(endpoint, symbol string, startMicros, endMicros int64, limit int) string {
	startMs := startMicros / 1000
	endMs := endMicros / 1000
	return fmt.Sprintf("%s/fapi/v1/fundingRate?symbol=%s&startTime=%d&endTime=%d&limit=%d",
		endpoint, symbol, startMs, endMs, limit)
}

// klines are returned as an array of 12-element arrays; numeric fields
// arrive as either JSON numbers or quoted strings depending on endpoint,
// so every field is decoded through json.Number.
func (binanceDialect) ParseKlinesPage(venue string, body []byte) ([]schema.Bar, error) {
	var raw [][]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, classify.NewProtocolFormat(venue, "rest.parse_klines", err.Error())
	}
	bars := make([]schema.Bar, 0, len(raw))
	for _, row := range raw {
		if len(row) < 11 {
			return nil, classify.NewProtocolFormat(venue, "rest.parse_klines", "kline row has fewer than 11 fields")
		}
		openMs, err := parseJSONInt(row[0])
		if err != nil {
			return nil, classify.NewProtocolFormat(venue, "rest.parse_klines", err.Error())
		}
		closeMs, err := parseJSONInt(row[6])
		if err != nil {
			return nil, classify.NewProtocolFormat(venue, "rest.parse_klines", err.Error())
		}
		b := schema.Bar{OpenTime: openMs * 1000, CloseTime: closeMs*1000 + 999}
		if b.Open, err = parseJSONFloat(row[1]); err != nil {
			return nil, classify.NewProtocolFormat(venue, "rest.parse_klines", err.Error())
		}
		if b.High, err = parseJSONFloat(row[2]); err != nil {
			return nil, classify.NewProtocolFormat(venue, "rest.parse_klines", err.Error())
		}
		if b.Low, err = parseJSONFloat(row[3]); err != nil {
			return nil, classify.NewProtocolFormat(venue, "rest.parse_klines", err.Error())
		}
		if b.Close, err = parseJSONFloat(row[4]); err != nil {
			return nil, classify.NewProtocolFormat(venue, "rest.parse_klines", err.Error())
		}
		if b.Volume, err = parseJSONFloat(row[5]); err != nil {
			return nil, classify.NewProtocolFormat(venue, "rest.parse_klines", err.Error())
		}
		if b.QuoteVolume, err = parseJSONFloat(row[7]); err != nil {
			return nil, classify.NewProtocolFormat(venue, "rest.parse_klines", err.Error())
		}
		if tc, err := parseJSONInt(row[8]); err == nil {
			b.TradeCount = tc
		}
		if b.TakerBuyBase, err = parseJSONFloat(row[9]); err != nil {
			return nil, classify.NewProtocolFormat(venue, "rest.parse_klines", err.Error())
		}
		if b.TakerBuyQuote, err = parseJSONFloat(row[10]); err != nil {
			return nil, classify.NewProtocolFormat(venue, "rest.parse_klines", err.Error())
		}
		bars = append(bars, b)
	}
	return bars, nil
}

type binanceFundingEntry struct {
	Symbol      string `json:"symbol"`
	FundingTime int64  `json:"fundingTime"`
	FundingRate string `json:"fundingRate"`
	MarkPrice   string `json:"markPrice"`
}

func (binanceDialect) ParseFundingPage(venue string, body []byte) ([]schema.FundingBar, error) {
	var raw []binanceFundingEntry
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, classify.NewProtocolFormat(venue, "rest.parse_funding", err.Error())
	}
	out := make([]schema.FundingBar, 0, len(raw))
	for _, e := range raw {
		rate, err := strconv.ParseFloat(e.FundingRate, 64)
		if err != nil {
			return nil, classify.NewProtocolFormat(venue, "rest.parse_funding", err.Error())
		}
		var mark float64
		if e.MarkPrice != "" {
			mark, _ = strconv.ParseFloat(e.MarkPrice, 64)
		}
		out = append(out, schema.FundingBar{
			Venue: venue, Symbol: e.Symbol,
			FundingTime: e.FundingTime * 1000,
			FundingRate: rate, MarkPrice: mark,
		})
	}
	return out, nil
}

func parseJSONFloat(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.ParseFloat(s, 64)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, err
	}
	return f, nil
}

func parseJSONInt(raw json.RawMessage) (int64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.ParseInt(s, 10, 64)
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, err
	}
	return n, nil
}
