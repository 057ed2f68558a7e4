// Package funding implements the funding-rate client (C8): fetching
// perpetual funding-rate history through the same REST chunking engine and
// Dialect set as klines (C5), grounded on the teacher's
// internal/providers/derivs/binance_provider.go DerivProvider shape,
// narrowed from its full derivatives surface (open interest, basis,
// z-scores, cross-venue consensus) to the funding-rate history this engine
// actually serves.
package funding

import (
	"context"

	"github.com/sawpanic/marketdata/internal/classify"
	"github.com/sawpanic/marketdata/internal/data/rest"
	"github.com/sawpanic/marketdata/internal/data/schema"
)

// Client fetches funding-rate history for perpetual symbols. It shares the
// Dialect registry AND the rest.Client resilience machinery (retry,
// backoff, endpoint rotation, circuit breaking, rate limiting) with the
// klines REST client (C5) — spec §4.8 calls for "the same retry/backoff/
// rotation/timeout rules as C5 with a smaller concurrency cap" — but pages
// through funding history with its own simple cursor loop rather than the
// concurrent chunk-fan-out klines use, since funding observations arrive
// far less densely than bars.
type Client struct {
	rest *rest.Client
}

func NewClient(r *rest.Client) *Client { return &Client{rest: r} }

// FetchRange retrieves funding observations in [startMicros, endMicros],
// paging through the dialect's funding endpoint one page at a time, each
// page starting just after the last observation of the previous one.
func (c *Client) FetchRange(ctx context.Context, d rest.Dialect, symbol string, startMicros, endMicros int64) (*schema.FundingTable, error) {
	venue := d.Name()
	var all []schema.FundingBar
	cursor := startMicros
	const pageLimit = 1000

	for cursor <= endMicros {
		page, err := c.rest.FetchFundingPage(ctx, d, symbol, cursor, endMicros, pageLimit)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		last := page[len(page)-1].FundingTime
		if last <= cursor {
			break // guard against a non-advancing cursor on a malformed page
		}
		cursor = last + 1
	}

	if len(all) == 0 {
		return nil, classify.NewDataEmpty(venue, "funding.fetch_range", "no funding observations in range")
	}
	return schema.NewFundingTable(venue, symbol, all), nil
}
