// Package schema implements the column schema and table model (C2): the
// canonical Bar/FundingBar row shapes and the Table abstraction that every
// source (cache, Vision, REST) normalizes into before merge, guaranteeing
// the Liskov-style column-stability invariant (I7) regardless of source
// mix. Adapted from the teacher's internal/data/schema/registry.go, which
// defined a single flat envelope struct for all storage formats; that
// single-struct idea survives here as Bar/FundingBar, narrowed to OHLCV and
// funding-rate semantics instead of order-book snapshots.
package schema

import "github.com/sawpanic/marketdata/internal/interval"

// MarketType distinguishes spot from USDT-margined and coin-margined
// futures symbols, since Vision path layout (spot / futures/um /
// futures/cm) and REST endpoint selection both depend on it.
type MarketType string

const (
	MarketSpot        MarketType = "spot"
	MarketFutures     MarketType = "futures"      // USDT-margined perpetual/futures
	MarketFuturesCoin MarketType = "futures_coin" // coin-margined perpetual/futures
)

// Bar is one OHLCV row, normalized to microsecond UTC timestamps (I5)
// regardless of which source produced it.
type Bar struct {
	Venue            string
	Symbol           string
	Interval         interval.Interval
	OpenTime         int64 // microseconds since epoch, inclusive
	CloseTime        int64 // microseconds since epoch, inclusive (I1: OpenTime + interval - 1us)
	Open             float64
	High             float64
	Low              float64
	Close            float64
	Volume           float64
	QuoteVolume      float64
	TradeCount       int64
	TakerBuyBase     float64
	TakerBuyQuote    float64
	// DataSource is a transient provenance tag ("cache", "vision", "rest")
	// added by the orchestrator (C7) and stripped at the public boundary
	// unless explicitly requested (I7).
	DataSource string
}

// FundingBar is one funding-rate observation.
type FundingBar struct {
	Venue       string
	Symbol      string
	FundingTime int64 // microseconds since epoch
	FundingRate float64
	MarkPrice   float64
	DataSource  string
}

// BarColumns is the canonical, fixed output column order for OHLCV tables.
// Every Table produced by any source must expose exactly these columns in
// this order once DataSource is stripped — this is what I7 pins down.
var BarColumns = []string{
	"open_time", "close_time", "open", "high", "low", "close",
	"volume", "quote_volume", "trade_count", "taker_buy_base", "taker_buy_quote",
}

// FundingColumns is the canonical output column order for funding tables.
var FundingColumns = []string{"funding_time", "funding_rate", "mark_price"}

// BarColumnsTagged (and FundingColumnsTagged below) return BarColumns
// (FundingColumns) plus the provenance tag column, used only when a caller
// opts in to seeing per-row source mix.
func BarColumnsTagged() []string {
	return append(append([]string{}, BarColumns...), "_data_source")
}

func FundingColumnsTagged() []string {
	return append(append([]string{}, FundingColumns...), "_data_source")
}
