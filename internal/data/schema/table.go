package schema

import (
	"sort"

	"github.com/sawpanic/marketdata/internal/classify"
)

// Table is an ordered, deduplicated collection of Bars for a single
// venue/symbol/interval, sorted ascending by OpenTime. It is the unit
// every component (C3-C7) passes around instead of a raw slice, so sort
// order and dedup are enforced in exactly one place.
type Table struct {
	Venue    string
	Symbol   string
	Interval string
	Bars     []Bar
}

// NewTable builds a Table from unsorted, possibly-duplicate bars, keeping
// the last-seen bar for any duplicate OpenTime (callers encode source
// precedence by the order in which they pass bars in).
func NewTable(venue, symbol, ivl string, bars []Bar) *Table {
	t := &Table{Venue: venue, Symbol: symbol, Interval: ivl}
	t.Bars = dedupeSorted(bars)
	return t
}

func dedupeSorted(bars []Bar) []Bar {
	if len(bars) == 0 {
		return nil
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].OpenTime < bars[j].OpenTime })
	out := make([]Bar, 0, len(bars))
	for _, b := range bars {
		if n := len(out); n > 0 && out[n-1].OpenTime == b.OpenTime {
			out[n-1] = b // later entry wins: caller controls ordering to encode precedence
			continue
		}
		out = append(out, b)
	}
	return out
}

// StripSource returns a copy of the table with DataSource cleared on every
// bar, the default shape returned by the public API (I7).
func (t *Table) StripSource() *Table {
	out := &Table{Venue: t.Venue, Symbol: t.Symbol, Interval: t.Interval, Bars: make([]Bar, len(t.Bars))}
	for i, b := range t.Bars {
		b.DataSource = ""
		out.Bars[i] = b
	}
	return out
}

// OpenTimes returns the sorted set of OpenTime values present in the table,
// the input the missing-range computer (C6) diffs against the expected
// grid.
func (t *Table) OpenTimes() []int64 {
	out := make([]int64, len(t.Bars))
	for i, b := range t.Bars {
		out[i] = b.OpenTime
	}
	return out
}

// Validate checks that every bar in the table carries the declared
// venue/symbol, a CloseTime not before its OpenTime, and strictly
// increasing OpenTime across the table,
// returning a classify.Error of kind SchemaMismatch on the first violation.
func (t *Table) Validate() *classify.Error {
	for i, b := range t.Bars {
		if b.Venue != t.Venue || b.Symbol != t.Symbol {
			return classify.NewSchemaMismatch(t.Venue, "table.validate", "bar venue/symbol does not match table")
		}
		if b.CloseTime < b.OpenTime {
			return classify.NewSchemaMismatch(t.Venue, "table.validate", "bar close_time precedes open_time")
		}
		if i > 0 && b.OpenTime <= t.Bars[i-1].OpenTime {
			return classify.NewSchemaMismatch(t.Venue, "table.validate", "bars not strictly increasing by open_time")
		}
	}
	return nil
}

// FundingTable is the funding-rate analogue of Table.
type FundingTable struct {
	Venue  string
	Symbol string
	Bars   []FundingBar
}

func NewFundingTable(venue, symbol string, bars []FundingBar) *FundingTable {
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].FundingTime < bars[j].FundingTime })
	out := make([]FundingBar, 0, len(bars))
	for _, b := range bars {
		if n := len(out); n > 0 && out[n-1].FundingTime == b.FundingTime {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return &FundingTable{Venue: venue, Symbol: symbol, Bars: out}
}

func (t *FundingTable) StripSource() *FundingTable {
	out := &FundingTable{Venue: t.Venue, Symbol: t.Symbol, Bars: make([]FundingBar, len(t.Bars))}
	for i, b := range t.Bars {
		b.DataSource = ""
		out.Bars[i] = b
	}
	return out
}
