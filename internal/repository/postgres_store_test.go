package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockTracker/internal/domain/models"
	"StockTracker/internal/domain/repository"
)

func newSQLMock(t *testing.T, driver string) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, driver), mock
}

func TestPostgresInsertBatchReportsConflicts(t *testing.T) {
	db, mock := newSQLMock(t, "postgres")
	s := NewPostgresPriceStore(db, time.Second)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO prices")
	prep.ExpectExec().WithArgs("A", day(1), "100").WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs("A", day(2), "103").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	res, err := s.InsertBatch(context.Background(), []models.PriceRecord{price("A", 1, "100"), price("A", 2, "103")})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, []models.PriceKey{{Ticker: "A", Date: "2024-01-02"}}, res.Duplicates)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertBatchRollsBackOnError(t *testing.T) {
	db, mock := newSQLMock(t, "postgres")
	s := NewPostgresPriceStore(db, time.Second)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO prices")
	prep.ExpectExec().WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := s.InsertBatch(context.Background(), []models.PriceRecord{price("A", 1, "100")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "A 2024-01-01")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListByTicker(t *testing.T) {
	db, mock := newSQLMock(t, "postgres")
	s := NewPostgresPriceStore(db, time.Second)

	rows := sqlmock.NewRows([]string{"ticker", "date", "close"}).
		AddRow("A", day(1), []byte("100.000000")).
		AddRow("A", day(2), []byte("99.910000"))
	mock.ExpectQuery(`SELECT ticker, date, close FROM prices WHERE ticker = \$1 AND date >= \$2 ORDER BY date ASC`).
		WithArgs("A", day(1)).
		WillReturnRows(rows)

	out, err := s.ListByTicker(context.Background(), "A", day(1), time.Time{})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.True(t, out[1].Close.Equal(decimal.RequireFromString("99.91")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteTickerNotFound(t *testing.T) {
	db, mock := newSQLMock(t, "postgres")
	s := NewPostgresPriceStore(db, time.Second)

	mock.ExpectExec("DELETE FROM prices").WithArgs("ZZZ").WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := s.DeleteTicker(context.Background(), "ZZZ")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPostgresReportStoreGet(t *testing.T) {
	db, mock := newSQLMock(t, "postgres")
	s := NewPostgresReportStore(db, time.Second)

	reportRows, _ := json.Marshal([]models.ReportRow{{Ticker: "A", BuySignals: 1}})
	cols := []string{"id", "title", "generated_at", "start_date", "end_date", "rows",
		"total_signals", "total_buys", "total_sells", "successful_trades", "success_rate"}
	mock.ExpectQuery("SELECT (.+) FROM reports WHERE id").
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"r1", "Report", time.Now(), day(1), day(31), reportRows, 3, 1, 1, 1, []byte("100.00")))

	r, err := s.Get(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "Report", r.Title)
	require.Len(t, r.Rows, 1)
	assert.Equal(t, "A", r.Rows[0].Ticker)
	assert.Equal(t, "100", r.SuccessRate.String())

	mock.ExpectQuery("SELECT (.+) FROM reports WHERE id").WithArgs("r2").WillReturnError(sql.ErrNoRows)
	_, err = s.Get(context.Background(), "r2")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPostgresHealth(t *testing.T) {
	db, mock := newSQLMock(t, "postgres")
	s := NewPostgresPriceStore(db, time.Second)

	mock.ExpectPing()
	assert.NoError(t, s.Health(context.Background()))
}
