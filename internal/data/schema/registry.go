package schema

import (
	"fmt"

	"github.com/sawpanic/marketdata/internal/classify"
)

// ValidationMode controls how ColumnSet reacts to unexpected columns,
// adapted from the teacher's SchemaRegistry.ValidateEnvelope strict/warn/
// ignore switch — narrowed here to the one thing C11 actually needs:
// checking a source's column set against the canonical BarColumns/
// FundingColumns before rows are accepted into a merge.
type ValidationMode int

const (
	ValidationStrict ValidationMode = iota // reject any unknown or missing column
	ValidationWarn                         // accept but report unknown columns
	ValidationIgnore                       // accept unknown columns silently
)

// ColumnReport is the result of checking a source's columns against a
// canonical set.
type ColumnReport struct {
	Missing []string
	Unknown []string
}

func (r ColumnReport) OK() bool { return len(r.Missing) == 0 && len(r.Unknown) == 0 }

// CheckColumns compares got against want and, depending on mode, returns a
// classify.Error of kind SchemaMismatch when the comparison fails the
// mode's tolerance. ValidationWarn and ValidationIgnore tolerate unknown
// columns but still error when a wanted column is missing; callers that want
// the unknown-column list use the returned ColumnReport directly.
func CheckColumns(venue, op string, want, got []string, mode ValidationMode) (ColumnReport, *classify.Error) {
	wantSet := toSet(want)
	gotSet := toSet(got)

	var report ColumnReport
	for _, c := range want {
		if !gotSet[c] {
			report.Missing = append(report.Missing, c)
		}
	}
	for _, c := range got {
		if !wantSet[c] {
			report.Unknown = append(report.Unknown, c)
		}
	}

	if report.OK() {
		return report, nil
	}

	switch mode {
	case ValidationStrict:
		return report, classify.NewSchemaMismatch(venue, op, fmt.Sprintf("column mismatch: missing=%v unknown=%v", report.Missing, report.Unknown))
	case ValidationWarn:
		if len(report.Missing) > 0 {
			return report, classify.NewSchemaMismatch(venue, op, fmt.Sprintf("required columns missing: %v", report.Missing))
		}
		return report, nil
	default: // ValidationIgnore
		if len(report.Missing) > 0 {
			return report, classify.NewSchemaMismatch(venue, op, fmt.Sprintf("required columns missing: %v", report.Missing))
		}
		return report, nil
	}
}

func toSet(vals []string) map[string]bool {
	m := make(map[string]bool, len(vals))
	for _, v := range vals {
		m[v] = true
	}
	return m
}
