package manager

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/marketdata/internal/data/schema"
)

func TestFilePITStoreSnapshotWritesDateShardedFile(t *testing.T) {
	base := t.TempDir()
	store := NewFilePITStore(nil, base)

	ts := time.Date(2026, 3, 5, 10, 30, 0, 0, time.UTC)
	bar := schema.Bar{Venue: "binance", Symbol: "BTCUSDT", OpenTime: 1}

	require.NoError(t, store.Snapshot("bars", ts, bar, "rest"))

	dir := filepath.Join(base, "bars", "2026", "03", "05")
	entries, err := store.List("bars", ts.Add(-time.Hour), ts.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "bars", entries[0].Entity)
	assert.DirExists(t, dir)
}

func TestFilePITStoreListExcludesOutsideWindow(t *testing.T) {
	base := t.TempDir()
	store := NewFilePITStore(nil, base)

	ts := time.Now()
	require.NoError(t, store.Snapshot("funding", ts, schema.FundingBar{Venue: "okx", Symbol: "BTC-USDT-SWAP"}, "rest"))

	entries, err := store.List("funding", ts.Add(time.Hour), ts.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFilePITStoreListOnMissingDirectoryReturnsEmpty(t *testing.T) {
	store := NewFilePITStore(nil, t.TempDir())
	entries, err := store.List("bars", time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
