package gaps

import (
	"reflect"
	"testing"

	"github.com/sawpanic/marketdata/internal/interval"
)

func TestExpectedGrid(t *testing.T) {
	g := ExpectedGrid(0, 3*interval.I1m.Micros(), interval.I1m)
	want := []int64{0, interval.I1m.Micros(), 2 * interval.I1m.Micros(), 3 * interval.I1m.Micros()}
	if !reflect.DeepEqual(g, want) {
		t.Fatalf("got %v want %v", g, want)
	}
}

func TestMissingCollapsesContiguousRuns(t *testing.T) {
	step := interval.I1m.Micros()
	expected := []int64{0, step, 2 * step, 3 * step, 4 * step}
	have := []int64{0, 2 * step}
	got := Missing(expected, have, interval.I1m)
	want := []Range{
		{Start: step, EndExclusive: 2 * step},
		{Start: 3 * step, EndExclusive: 5 * step},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestMissingNoneWhenFullyCached(t *testing.T) {
	step := interval.I1m.Micros()
	expected := []int64{0, step, 2 * step}
	have := []int64{0, step, 2 * step}
	if got := Missing(expected, have, interval.I1m); got != nil {
		t.Fatalf("expected no gaps, got %+v", got)
	}
}

func TestCoverage(t *testing.T) {
	step := interval.I1m.Micros()
	expected := []int64{0, step, 2 * step, 3 * step}
	have := []int64{0, 2 * step}
	if c := Coverage(expected, have); c != 0.5 {
		t.Fatalf("got %v want 0.5", c)
	}
}
