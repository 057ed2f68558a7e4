// Package gaps implements the missing-range computer (C6): pure functions
// that diff an expected aligned timestamp grid against the timestamps
// already present in cache, collapsing the difference into maximal
// contiguous gap runs for the FCP orchestrator (C7) to fill.
package gaps

import "github.com/sawpanic/marketdata/internal/interval"

// Range is a half-open [Start, EndExclusive) microsecond span on the
// interval grid.
type Range struct {
	Start        int64
	EndExclusive int64
}

// ExpectedGrid returns every aligned open_time in [start, end] at the given
// interval, inclusive of both aligned endpoints.
func ExpectedGrid(start, end int64, i interval.Interval) []int64 {
	alignedStart := interval.AlignStart(start, i)
	alignedEnd := interval.AlignEnd(end, i)
	if alignedEnd < alignedStart {
		return nil
	}
	step := i.Micros()
	n := int((alignedEnd-alignedStart)/step) + 1
	out := make([]int64, n)
	for idx := range out {
		out[idx] = alignedStart + int64(idx)*step
	}
	return out
}

// Missing computes the set difference expected-minus-have and collapses it
// into maximal contiguous ranges (as open_time spans, end-exclusive one
// step past the last missing point), so a caller can issue one fetch per
// run instead of one per point.
func Missing(expected []int64, have []int64, i interval.Interval) []Range {
	if len(expected) == 0 {
		return nil
	}
	haveSet := make(map[int64]bool, len(have))
	for _, h := range have {
		haveSet[h] = true
	}

	step := i.Micros()
	var out []Range
	var cur *Range
	for _, t := range expected {
		if haveSet[t] {
			if cur != nil {
				out = append(out, *cur)
				cur = nil
			}
			continue
		}
		if cur == nil {
			cur = &Range{Start: t, EndExclusive: t + step}
		} else if t == cur.EndExclusive {
			cur.EndExclusive = t + step
		} else {
			out = append(out, *cur)
			cur = &Range{Start: t, EndExclusive: t + step}
		}
	}
	if cur != nil {
		out = append(out, *cur)
	}
	return out
}

// Coverage reports the fraction of the expected grid already present,
// [0.0, 1.0], used by the orchestrator's health/attribution snapshot.
func Coverage(expected []int64, have []int64) float64 {
	if len(expected) == 0 {
		return 1.0
	}
	haveSet := make(map[int64]bool, len(have))
	for _, h := range have {
		haveSet[h] = true
	}
	present := 0
	for _, t := range expected {
		if haveSet[t] {
			present++
		}
	}
	return float64(present) / float64(len(expected))
}
