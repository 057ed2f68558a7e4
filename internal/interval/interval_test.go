package interval

import "testing"

func TestAlignStartCeiling(t *testing.T) {
	cases := []struct {
		name string
		t    int64
		i    Interval
		want int64
	}{
		{"already aligned", 60_000_000, I1m, 60_000_000},
		{"round up", 61_000_000, I1m, 120_000_000},
		{"one micro past", 60_000_001, I1m, 120_000_000},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := AlignStart(c.t, c.i); got != c.want {
				t.Errorf("AlignStart(%d, %s) = %d, want %d", c.t, c.i, got, c.want)
			}
		})
	}
}

func TestAlignEndFloor(t *testing.T) {
	cases := []struct {
		name string
		t    int64
		i    Interval
		want int64
	}{
		{"already aligned", 60_000_000, I1m, 60_000_000},
		{"round down", 61_000_000, I1m, 60_000_000},
		{"one micro before next", 119_999_999, I1m, 60_000_000},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := AlignEnd(c.t, c.i); got != c.want {
				t.Errorf("AlignEnd(%d, %s) = %d, want %d", c.t, c.i, got, c.want)
			}
		})
	}
}

func TestAlignIdempotent(t *testing.T) {
	for _, i := range All() {
		t1 := int64(123456789123)
		a := AlignStart(t1, i)
		if AlignStart(a, i) != a {
			t.Errorf("AlignStart not idempotent for %s", i)
		}
		b := AlignEnd(t1, i)
		if AlignEnd(b, i) != b {
			t.Errorf("AlignEnd not idempotent for %s", i)
		}
	}
}

func TestDetectUnit(t *testing.T) {
	cases := []struct {
		raw     int64
		want    Unit
		wantErr bool
	}{
		{1700000000000, UnitMillis, false},      // 13 digits
		{1700000000000000, UnitMicros, false},   // 16 digits
		{170000000000, UnitUnknown, true},       // 12 digits
		{17000000000000000, UnitUnknown, true},  // 17 digits
	}
	for _, c := range cases {
		got, err := DetectUnit(c.raw)
		if (err != nil) != c.wantErr {
			t.Fatalf("DetectUnit(%d) err = %v, wantErr %v", c.raw, err, c.wantErr)
		}
		if err == nil && got != c.want {
			t.Errorf("DetectUnit(%d) = %v, want %v", c.raw, got, c.want)
		}
	}
}

func TestToMicrosAuto(t *testing.T) {
	ms := int64(1700000000000)
	us, err := ToMicrosAuto(ms)
	if err != nil {
		t.Fatal(err)
	}
	if us != ms*1000 {
		t.Errorf("got %d want %d", us, ms*1000)
	}
}

func TestCloseTime(t *testing.T) {
	open := int64(0)
	ct := CloseTime(open, I1m)
	if ct != I1m.Micros()-1 {
		t.Errorf("got %d want %d", ct, I1m.Micros()-1)
	}
}

func TestPeriodOf(t *testing.T) {
	start, end := PeriodOf(90_000_000, I1m)
	if start != 60_000_000 || end != 120_000_000 {
		t.Errorf("PeriodOf = (%d, %d), want (60000000, 120000000)", start, end)
	}
}

func TestDayBounds(t *testing.T) {
	// 2024-01-02 00:00:00 UTC in micros
	mid, _ := ToMicrosAuto(1704153600000)
	start, end := DayBounds(mid + 3600*1_000_000)
	if start != mid {
		t.Errorf("start = %d, want %d", start, mid)
	}
	if end-start != 24*3600*1_000_000 {
		t.Errorf("day length = %d", end-start)
	}
}
