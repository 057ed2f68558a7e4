package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/marketdata/internal/data/schema"
	"github.com/sawpanic/marketdata/internal/persistence"
)

func newMockBarsRepo(t *testing.T) (persistence.BarRepo, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewBarsRepo(sqlx.NewDb(db, "postgres"), time.Second), mock
}

func TestBarsRepoInsertExecutesUpsert(t *testing.T) {
	repo, mock := newMockBarsRepo(t)

	mock.ExpectExec("INSERT INTO bars").
		WithArgs("binance", "BTCUSDT", "1h", int64(1000), int64(2000), 1.0, 2.0, 0.5, 1.5, 10.0, 15.0, int64(5), 1.0, 2.0, "rest").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Insert(context.Background(), schema.Bar{
		Venue: "binance", Symbol: "BTCUSDT", Interval: "1h",
		OpenTime: 1000, CloseTime: 2000,
		Open: 1.0, High: 2.0, Low: 0.5, Close: 1.5,
		Volume: 10.0, QuoteVolume: 15.0, TradeCount: 5,
		TakerBuyBase: 1.0, TakerBuyQuote: 2.0, DataSource: "rest",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBarsRepoInsertBatchCommitsOnSuccess(t *testing.T) {
	repo, mock := newMockBarsRepo(t)

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO bars")
	mock.ExpectExec("INSERT INTO bars").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO bars").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	bars := []schema.Bar{
		{Venue: "binance", Symbol: "BTCUSDT", Interval: "1h", OpenTime: 1000, CloseTime: 2000},
		{Venue: "binance", Symbol: "BTCUSDT", Interval: "1h", OpenTime: 2000, CloseTime: 3000},
	}
	require.NoError(t, repo.InsertBatch(context.Background(), bars))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBarsRepoInsertBatchEmptyIsNoop(t *testing.T) {
	repo, mock := newMockBarsRepo(t)
	require.NoError(t, repo.InsertBatch(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBarsRepoListBySymbolScansRows(t *testing.T) {
	repo, mock := newMockBarsRepo(t)

	cols := []string{"venue", "symbol", "interval", "open_time", "close_time", "open", "high", "low", "close", "volume", "quote_volume", "trade_count", "taker_buy_base", "taker_buy_quote", "data_source"}
	mock.ExpectQuery("SELECT venue, symbol, interval").
		WithArgs("binance", "BTCUSDT", "1h", int64(0), int64(10000), 100).
		WillReturnRows(sqlmock.NewRows(cols).AddRow("binance", "BTCUSDT", "1h", int64(1000), int64(2000), 1.0, 2.0, 0.5, 1.5, 10.0, 15.0, 5, 1.0, 2.0, ""))

	out, err := repo.ListBySymbol(context.Background(), "binance", "BTCUSDT", "1h", persistence.TimeRange{FromMicros: 0, ToMicros: 10000}, 100)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, int64(1000), out[0].OpenTime)
}
