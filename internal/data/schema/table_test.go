package schema

import "testing"

func TestNewTableDedupeAndSort(t *testing.T) {
	bars := []Bar{
		{Venue: "binance", Symbol: "BTCUSDT", OpenTime: 200, CloseTime: 259, Close: 1, DataSource: "cache"},
		{Venue: "binance", Symbol: "BTCUSDT", OpenTime: 100, CloseTime: 159, Close: 2, DataSource: "cache"},
		{Venue: "binance", Symbol: "BTCUSDT", OpenTime: 200, CloseTime: 259, Close: 3, DataSource: "rest"},
	}
	tbl := NewTable("binance", "BTCUSDT", "1m", bars)
	if len(tbl.Bars) != 2 {
		t.Fatalf("expected 2 bars after dedupe, got %d", len(tbl.Bars))
	}
	if tbl.Bars[0].OpenTime != 100 || tbl.Bars[1].OpenTime != 200 {
		t.Fatalf("bars not sorted: %+v", tbl.Bars)
	}
	if tbl.Bars[1].Close != 3 {
		t.Fatalf("expected later duplicate to win, got close=%v", tbl.Bars[1].Close)
	}
}

func TestTableStripSource(t *testing.T) {
	tbl := NewTable("binance", "BTCUSDT", "1m", []Bar{{Venue: "binance", Symbol: "BTCUSDT", OpenTime: 1, CloseTime: 2, DataSource: "vision"}})
	stripped := tbl.StripSource()
	if stripped.Bars[0].DataSource != "" {
		t.Fatalf("expected source stripped, got %q", stripped.Bars[0].DataSource)
	}
	if tbl.Bars[0].DataSource != "vision" {
		t.Fatalf("original table must not be mutated")
	}
}

func TestTableValidateRejectsOutOfOrder(t *testing.T) {
	tbl := &Table{Venue: "binance", Symbol: "BTCUSDT", Bars: []Bar{
		{Venue: "binance", Symbol: "BTCUSDT", OpenTime: 200, CloseTime: 259},
		{Venue: "binance", Symbol: "BTCUSDT", OpenTime: 100, CloseTime: 159},
	}}
	if err := tbl.Validate(); err == nil {
		t.Fatal("expected schema mismatch for out-of-order bars")
	}
}

func TestCheckColumnsStrict(t *testing.T) {
	report, err := CheckColumns("binance", "probe", BarColumns, append(append([]string{}, BarColumns...), "extra_col"), ValidationStrict)
	if err == nil {
		t.Fatal("expected strict mode to reject unknown column")
	}
	if len(report.Unknown) != 1 || report.Unknown[0] != "extra_col" {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestCheckColumnsIgnoreToleratesUnknown(t *testing.T) {
	_, err := CheckColumns("binance", "probe", BarColumns, append(append([]string{}, BarColumns...), "extra_col"), ValidationIgnore)
	if err != nil {
		t.Fatalf("ignore mode should tolerate unknown columns, got %v", err)
	}
}
