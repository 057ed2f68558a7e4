package validate

import (
	"fmt"
	"time"

	"github.com/sawpanic/marketdata/internal/classify"
	"github.com/sawpanic/marketdata/internal/data/schema"
	"github.com/sawpanic/marketdata/internal/interval"
)

// ValidateFn is a single validation check over a denormalized record,
// the shape AnomalyCheckFn/CreateStalenessValidator in this package
// already return; C11 composes these against Bar fields below.
type ValidateFn func(data map[string]interface{}) error

// BarOHLCSane enforces I2: High is the max and Low is the min of the four
// OHLC prices, and every price is strictly positive.
func BarOHLCSane(venue string, b schema.Bar) *classify.Error {
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return classify.NewSchemaMismatch(venue, "validate.ohlc_sane", fmt.Sprintf("non-positive price in bar at open_time=%d", b.OpenTime))
	}
	if b.High < b.Open || b.High < b.Close || b.High < b.Low {
		return classify.NewSchemaMismatch(venue, "validate.ohlc_sane", fmt.Sprintf("high is not the max OHLC value at open_time=%d", b.OpenTime))
	}
	if b.Low > b.Open || b.Low > b.Close || b.Low > b.High {
		return classify.NewSchemaMismatch(venue, "validate.ohlc_sane", fmt.Sprintf("low is not the min OHLC value at open_time=%d", b.OpenTime))
	}
	if b.Volume < 0 {
		return classify.NewSchemaMismatch(venue, "validate.ohlc_sane", fmt.Sprintf("negative volume at open_time=%d", b.OpenTime))
	}
	return nil
}

// ValidateTable is C11's entry point into the Get path: it asserts I1 (the
// exact close_time = open_time + interval - 1us formula), I3 (every
// open_time falls on the interval's grid, i.e. open_time mod interval
// seconds == 0), and per-bar OHLC sanity, over and above the structural
// venue/symbol/monotonicity checks schema.Table.Validate already performs.
func ValidateTable(venue string, bars []schema.Bar, i interval.Interval) *classify.Error {
	stepMicros := i.Micros()
	for _, b := range bars {
		if err := BarOHLCSane(venue, b); err != nil {
			return err
		}
		if want := b.OpenTime + stepMicros - 1; b.CloseTime != want {
			return classify.NewSchemaMismatch(venue, "validate.close_time",
				fmt.Sprintf("bar at open_time=%d has close_time=%d, want %d (open_time + interval - 1us)", b.OpenTime, b.CloseTime, want))
		}
		if b.OpenTime%stepMicros != 0 {
			return classify.NewSchemaMismatch(venue, "validate.frequency",
				fmt.Sprintf("bar open_time=%d is not aligned to the %s grid", b.OpenTime, i))
		}
	}
	return nil
}

// toAnomalyMap projects the OHLCV fields an AnomalyChecker inspects, reusing
// the package's existing MAD-based detector instead of re-implementing
// outlier detection for the Bar type.
func toAnomalyMap(b schema.Bar, t time.Time) map[string]interface{} {
	return map[string]interface{}{
		"open": b.Open, "high": b.High, "low": b.Low, "close": b.Close,
		"volume": b.Volume, "quote_volume": b.QuoteVolume,
		"timestamp": t,
	}
}

// BarAnomalyChecker wraps AnomalyChecker for a single venue/symbol/interval
// stream of bars, maintaining its own rolling window across calls.
type BarAnomalyChecker struct {
	venue   string
	checker *AnomalyChecker
}

func NewBarAnomalyChecker(venue string, cfg AnomalyConfig) *BarAnomalyChecker {
	if len(cfg.PriceFields) == 0 {
		cfg.PriceFields = []string{"open", "high", "low", "close"}
	}
	if len(cfg.VolumeFields) == 0 {
		cfg.VolumeFields = []string{"volume", "quote_volume"}
	}
	return &BarAnomalyChecker{venue: venue, checker: NewAnomalyChecker(cfg)}
}

// Check runs the sanity check (I2) then the MAD-based anomaly detector, in
// that order, so a structurally-broken bar is reported before a merely
// statistically-unusual one.
func (c *BarAnomalyChecker) Check(b schema.Bar) *classify.Error {
	if err := BarOHLCSane(c.venue, b); err != nil {
		return err
	}
	result := c.checker.CheckAnomaly(toAnomalyMap(b, time.UnixMicro(b.OpenTime).UTC()), "bar")
	if result.IsAnomaly && result.ShouldQuarantine {
		return classify.NewSchemaMismatch(c.venue, "validate.anomaly", result.Reason)
	}
	return nil
}

// CheckStaleness wraps StalenessChecker.CheckStalenessAtTime for a single
// bar's close_time against "now", flagging a bar that has fallen behind.
func CheckStaleness(sc *StalenessChecker, venue string, b schema.Bar, now time.Time) *classify.Error {
	data := map[string]interface{}{"timestamp": time.UnixMicro(b.CloseTime).UTC()}
	result := sc.CheckStalenessAtTime(data, "bar", now)
	if !result.Valid {
		return classify.NewDataEmpty(venue, "validate.staleness", fmt.Sprintf("bar closed at %v is stale as of %v: %s", time.UnixMicro(b.CloseTime).UTC(), now, result.Message))
	}
	return nil
}
