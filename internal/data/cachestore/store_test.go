package cachestore

import (
	"os"
	"testing"

	"github.com/sawpanic/marketdata/internal/data/schema"
	"github.com/sawpanic/marketdata/internal/interval"
)

func TestSaveAndLoadDayRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	day := int64(1_700_000_000_000_000)
	bars := []schema.Bar{
		{OpenTime: day, CloseTime: day + interval.I1m.Micros() - 1, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10, QuoteVolume: 15, TradeCount: 3, TakerBuyBase: 4, TakerBuyQuote: 6},
	}
	if err := s.SaveDay("binance", schema.MarketSpot, "BTCUSDT", interval.I1m, day, bars); err != nil {
		t.Fatal(err)
	}

	probe := s.Probe("binance", schema.MarketSpot, "BTCUSDT", interval.I1m, []int64{day})
	if !probe[day] {
		t.Fatal("expected day to be present after save")
	}

	got, err := s.LoadDay("binance", schema.MarketSpot, "BTCUSDT", interval.I1m, day)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Close != 1.5 {
		t.Fatalf("unexpected bars: %+v", got)
	}
}

func TestLoadDayDetectsChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	day := int64(1_700_000_000_000_000)
	bars := []schema.Bar{{OpenTime: day, CloseTime: day + 1}}
	if err := s.SaveDay("binance", schema.MarketSpot, "ETHUSDT", interval.I1m, day, bars); err != nil {
		t.Fatal(err)
	}

	path := shardPath(dir, "binance", schema.MarketSpot, "ETHUSDT", interval.I1m, day)
	if err := os.WriteFile(path, []byte("corrupted"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := s.LoadDay("binance", schema.MarketSpot, "ETHUSDT", interval.I1m, day); err == nil {
		t.Fatal("expected checksum mismatch error")
	}

	probe := s.Probe("binance", schema.MarketSpot, "ETHUSDT", interval.I1m, []int64{day})
	if probe[day] {
		t.Fatal("expected entry evicted from index after mismatch")
	}
}

func TestStatsAggregates(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	day := int64(1_700_000_000_000_000)
	if err := s.SaveDay("binance", schema.MarketSpot, "BTCUSDT", interval.I1m, day, []schema.Bar{{OpenTime: day}, {OpenTime: day + interval.I1m.Micros()}}); err != nil {
		t.Fatal(err)
	}
	st := s.Stats()
	if st.ShardCount != 1 || st.TotalRows != 2 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestStatsTracksHitsMissesErrors(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	day := int64(1_700_000_000_000_000)

	if _, err := s.LoadDay("binance", schema.MarketSpot, "BTCUSDT", interval.I1m, day); err != nil {
		t.Fatal(err)
	}
	if st := s.Stats(); st.Misses != 1 || st.Hits != 0 {
		t.Fatalf("expected one miss before any save, got %+v", st)
	}

	bars := []schema.Bar{{OpenTime: day, CloseTime: day + interval.I1m.Micros() - 1}}
	if err := s.SaveDay("binance", schema.MarketSpot, "BTCUSDT", interval.I1m, day, bars); err != nil {
		t.Fatal(err)
	}
	if _, err := s.LoadDay("binance", schema.MarketSpot, "BTCUSDT", interval.I1m, day); err != nil {
		t.Fatal(err)
	}
	if st := s.Stats(); st.Hits != 1 || st.Misses != 1 {
		t.Fatalf("expected one hit after save, got %+v", st)
	}
}

func TestInvalidateDeletesShardFile(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	day := int64(1_700_000_000_000_000)
	bars := []schema.Bar{{OpenTime: day, CloseTime: day + interval.I1m.Micros() - 1}}
	if err := s.SaveDay("binance", schema.MarketSpot, "BTCUSDT", interval.I1m, day, bars); err != nil {
		t.Fatal(err)
	}

	path := shardPath(dir, "binance", schema.MarketSpot, "BTCUSDT", interval.I1m, day)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected shard file to exist before invalidate: %v", err)
	}

	if err := s.Invalidate("binance", schema.MarketSpot, "BTCUSDT", interval.I1m, day); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected shard file to be removed after invalidate, stat err: %v", err)
	}
}

func TestLoadDayDetectsChecksumMismatchAppendsFailureLog(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	day := int64(1_700_000_000_000_000)
	bars := []schema.Bar{{OpenTime: day, CloseTime: day + 1}}
	if err := s.SaveDay("binance", schema.MarketSpot, "ADAUSDT", interval.I1m, day, bars); err != nil {
		t.Fatal(err)
	}
	path := shardPath(dir, "binance", schema.MarketSpot, "ADAUSDT", interval.I1m, day)
	if err := os.WriteFile(path, []byte("corrupted"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.LoadDay("binance", schema.MarketSpot, "ADAUSDT", interval.I1m, day); err == nil {
		t.Fatal("expected checksum mismatch error")
	}

	log, err := os.ReadFile(checksumFailureLogPath(dir))
	if err != nil {
		t.Fatalf("expected checksum failure log to exist: %v", err)
	}
	if len(log) == 0 {
		t.Fatal("expected checksum failure log to contain a record")
	}
}
