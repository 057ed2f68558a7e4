// Package interval implements the shared time and interval model (C1):
// interval durations, boundary alignment, and timestamp-unit detection.
// Every other component — Vision, REST chunking, and cache-key derivation —
// calls through this package so the same alignment rule is applied
// everywhere (spec I4).
package interval

import (
	"fmt"
	"time"
)

// Interval is one of the supported bar widths.
type Interval string

const (
	I1s  Interval = "1s"
	I1m  Interval = "1m"
	I3m  Interval = "3m"
	I5m  Interval = "5m"
	I15m Interval = "15m"
	I30m Interval = "30m"
	I1h  Interval = "1h"
	I2h  Interval = "2h"
	I4h  Interval = "4h"
	I6h  Interval = "6h"
	I8h  Interval = "8h"
	I12h Interval = "12h"
	I1d  Interval = "1d"
	I3d  Interval = "3d"
	I1w  Interval = "1w"
	I1mo Interval = "1mo"
)

// secondsTable fixes the duration of every interval. Months are approximated
// as 30 days for millisecond/microsecond arithmetic only; calendar months
// never cross this boundary in chunk computation (spec §3 Interval).
var secondsTable = map[Interval]int64{
	I1s:  1,
	I1m:  60,
	I3m:  3 * 60,
	I5m:  5 * 60,
	I15m: 15 * 60,
	I30m: 30 * 60,
	I1h:  3600,
	I2h:  2 * 3600,
	I4h:  4 * 3600,
	I6h:  6 * 3600,
	I8h:  8 * 3600,
	I12h: 12 * 3600,
	I1d:  24 * 3600,
	I3d:  3 * 24 * 3600,
	I1w:  7 * 24 * 3600,
	I1mo: 30 * 24 * 3600,
}

// ErrUnknownInterval is returned when an interval string is not recognized.
type ErrUnknownInterval struct{ Raw string }

func (e *ErrUnknownInterval) Error() string { return fmt.Sprintf("unknown interval: %q", e.Raw) }

// Valid reports whether i is a member of the supported interval set.
func (i Interval) Valid() bool {
	_, ok := secondsTable[i]
	return ok
}

// Seconds returns the interval's fixed duration in seconds.
func (i Interval) Seconds() int64 {
	s, ok := secondsTable[i]
	if !ok {
		panic(&ErrUnknownInterval{Raw: string(i)})
	}
	return s
}

// Micros returns the interval's fixed duration in microseconds.
func (i Interval) Micros() int64 { return i.Seconds() * 1_000_000 }

// All returns every supported interval, in ascending duration order.
func All() []Interval {
	return []Interval{I1s, I1m, I3m, I5m, I15m, I30m, I1h, I2h, I4h, I6h, I8h, I12h, I1d, I3d, I1w, I1mo}
}

// AlignStart implements the I4 ceiling rule: if t is not already on an
// interval boundary, advance it to the next one.
func AlignStart(tMicros int64, i Interval) int64 {
	step := i.Micros()
	r := tMicros % step
	if r == 0 {
		return tMicros
	}
	return tMicros + (step - r)
}

// AlignEnd implements the I4 floor rule: if t is not already on an interval
// boundary, retreat it to the previous one.
func AlignEnd(tMicros int64, i Interval) int64 {
	step := i.Micros()
	r := tMicros % step
	return tMicros - r
}

// PeriodOf returns the [start, endExclusive) microsecond bounds of the
// period containing t.
func PeriodOf(tMicros int64, i Interval) (start, endExclusive int64) {
	start = AlignEnd(tMicros, i)
	return start, start + i.Micros()
}

// CloseTime derives close_time from open_time per invariant I1:
// close_time = open_time + interval − 1µs.
func CloseTime(openTimeMicros int64, i Interval) int64 {
	return openTimeMicros + i.Micros() - 1
}

// Unit is the timestamp resolution detected on ingress.
type Unit int

const (
	UnitUnknown Unit = iota
	UnitMillis
	UnitMicros
)

// TimestampFormatError is raised when a raw timestamp matches neither the
// 13-digit millisecond nor 16-digit microsecond width.
type TimestampFormatError struct{ Raw int64 }

func (e *TimestampFormatError) Error() string {
	return fmt.Sprintf("timestamp %d does not match a known millisecond/microsecond width", e.Raw)
}

// DetectUnit classifies a raw timestamp by its decimal digit count: 13
// digits is milliseconds (roughly years 2001-2286), 16 digits is
// microseconds. Anything else is a format error.
func DetectUnit(raw int64) (Unit, error) {
	n := digitCount(raw)
	switch n {
	case 13:
		return UnitMillis, nil
	case 16:
		return UnitMicros, nil
	default:
		return UnitUnknown, &TimestampFormatError{Raw: raw}
	}
}

func digitCount(v int64) int {
	if v < 0 {
		v = -v
	}
	if v == 0 {
		return 1
	}
	n := 0
	for v > 0 {
		n++
		v /= 10
	}
	return n
}

// ToMicros converts a raw timestamp of the given unit to microseconds.
// Per I5, all internal representations are microseconds.
func ToMicros(raw int64, u Unit) int64 {
	switch u {
	case UnitMillis:
		return raw * 1000
	case UnitMicros:
		return raw
	default:
		return raw
	}
}

// ToMicrosAuto detects the unit and converts in one step.
func ToMicrosAuto(raw int64) (int64, error) {
	u, err := DetectUnit(raw)
	if err != nil {
		return 0, err
	}
	return ToMicros(raw, u), nil
}

// FromMicros converts an internal microsecond timestamp to a UTC time.Time.
func FromMicros(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}

// ToMicrosFromTime converts a UTC time.Time to an internal microsecond
// timestamp.
func ToMicrosFromTime(t time.Time) int64 {
	return t.UnixMicro()
}

// DayBounds returns the [00:00, 24:00) microsecond bounds (UTC) of the day
// containing t.
func DayBounds(tMicros int64) (start, endExclusive int64) {
	t := FromMicros(tMicros)
	y, m, d := t.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	start = ToMicrosFromTime(dayStart)
	return start, start + 24*3600*1_000_000
}

// DatesOverlapping returns the UTC calendar dates (as midnight time.Time)
// overlapping [startMicros, endMicros].
func DatesOverlapping(startMicros, endMicros int64) []time.Time {
	if endMicros < startMicros {
		return nil
	}
	startDay := FromMicros(startMicros).Truncate(24 * time.Hour)
	endDay := FromMicros(endMicros).Truncate(24 * time.Hour)
	var out []time.Time
	for d := startDay; !d.After(endDay); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}
