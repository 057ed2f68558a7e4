package rest

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/sawpanic/marketdata/internal/classify"
	"github.com/sawpanic/marketdata/internal/data/schema"
	"github.com/sawpanic/marketdata/internal/interval"
)

func init() { register(okxDialect{}) }

type okxDialect struct{}

func (okxDialect) Name() string { return "okx" }

func (okxDialect) Endpoints() []string {
	return []string{"https://www.okx.com"}
}

// OKX caps candle history requests to 300 rows per page, tighter than
// Binance's 1000.
func (okxDialect) MaxKlinesPerPage() int { return 300 }

var okxWireIntervals = map[interval.Interval]string{
	interval.I1m: "1m", interval.I3m: "3m", interval.I5m: "5m", interval.I15m: "15m",
	interval.I30m: "30m", interval.I1h: "1H", interval.I2h: "2H", interval.I4h: "4H",
	interval.I6h: "6H", interval.I12h: "12H", interval.I1d: "1D", interval.I1w: "1W", interval.I1mo: "1M",
}

func (okxDialect) IntervalToWire(i interval.Interval) (string, bool) {
	s, ok := okxWireIntervals[i]
	return s, ok
}

func (d okxDialect) BuildKlinesURL(endpoint, symbol string, i interval.Interval, startMicros, endMicros int64, limit int) string {
	wire, _ := d.IntervalToWire(i)
	return fmt.Sprintf("%s/api/v5/market/history-candles?instId=%s&bar=%s&before=%d&after=%d&limit=%d",
		endpoint, symbol, wire, startMicros/1000, endMicros/1000, limit)
}

func (okxDialect) BuildFundingURL(endpoint, symbol string, startMicros, endMicros int64, limit int) string {
	return fmt.Sprintf("%s/api/v5/public/funding-rate-history?instId=%s&before=%d&after=%d&limit=%d",
		endpoint, symbol, startMicros/1000, endMicros/1000, limit)
}

type okxEnvelope struct {
	Code string            `json:"code"`
	Msg  string             `json:"msg"`
	Data [][]string         `json:"data"`
}

// ParseKlinesPage decodes OKX's string-array candle rows: [ts, o, h, l, c,
// vol, volCcy, volCcyQuote, confirm].
func (okxDialect) ParseKlinesPage(venue string, body []byte) ([]schema.Bar, error) {
	var env okxEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, classify.NewProtocolFormat(venue, "rest.parse_klines", err.Error())
	}
	if env.Code != "0" {
		return nil, classify.NewProtocolFormat(venue, "rest.parse_klines", fmt.Sprintf("okx error code %s: %s", env.Code, env.Msg))
	}
	bars := make([]schema.Bar, 0, len(env.Data))
	for _, row := range env.Data {
		if len(row) < 7 {
			return nil, classify.NewProtocolFormat(venue, "rest.parse_klines", "candle row has fewer than 7 fields")
		}
		openMs, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, classify.NewProtocolFormat(venue, "rest.parse_klines", err.Error())
		}
		b := schema.Bar{OpenTime: openMs * 1000}
		if b.Open, err = strconv.ParseFloat(row[1], 64); err != nil {
			return nil, classify.NewProtocolFormat(venue, "rest.parse_klines", err.Error())
		}
		if b.High, err = strconv.ParseFloat(row[2], 64); err != nil {
			return nil, classify.NewProtocolFormat(venue, "rest.parse_klines", err.Error())
		}
		if b.Low, err = strconv.ParseFloat(row[3], 64); err != nil {
			return nil, classify.NewProtocolFormat(venue, "rest.parse_klines", err.Error())
		}
		if b.Close, err = strconv.ParseFloat(row[4], 64); err != nil {
			return nil, classify.NewProtocolFormat(venue, "rest.parse_klines", err.Error())
		}
		if b.Volume, err = strconv.ParseFloat(row[5], 64); err != nil {
			return nil, classify.NewProtocolFormat(venue, "rest.parse_klines", err.Error())
		}
		if b.QuoteVolume, err = strconv.ParseFloat(row[6], 64); err != nil {
			return nil, classify.NewProtocolFormat(venue, "rest.parse_klines", err.Error())
		}
		bars = append(bars, b)
	}
	return bars, nil
}

type okxFundingEnvelope struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []struct {
		FundingTime string `json:"fundingTime"`
		FundingRate string `json:"fundingRate"`
	} `json:"data"`
}

func (okxDialect) ParseFundingPage(venue string, body []byte) ([]schema.FundingBar, error) {
	var env okxFundingEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, classify.NewProtocolFormat(venue, "rest.parse_funding", err.Error())
	}
	if env.Code != "0" {
		return nil, classify.NewProtocolFormat(venue, "rest.parse_funding", fmt.Sprintf("okx error code %s: %s", env.Code, env.Msg))
	}
	out := make([]schema.FundingBar, 0, len(env.Data))
	for _, e := range env.Data {
		ts, err := strconv.ParseInt(e.FundingTime, 10, 64)
		if err != nil {
			return nil, classify.NewProtocolFormat(venue, "rest.parse_funding", err.Error())
		}
		rate, err := strconv.ParseFloat(e.FundingRate, 64)
		if err != nil {
			return nil, classify.NewProtocolFormat(venue, "rest.parse_funding", err.Error())
		}
		out = append(out, schema.FundingBar{Venue: venue, FundingTime: ts * 1000, FundingRate: rate})
	}
	return out, nil
}
