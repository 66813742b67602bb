package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockTracker/internal/domain/models"
	"StockTracker/internal/domain/repository"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func price(ticker string, d int, close string) models.PriceRecord {
	return models.PriceRecord{Ticker: ticker, Date: day(d), Close: decimal.RequireFromString(close)}
}

func TestMemoryPriceStoreRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryPriceStore()

	res, err := s.InsertBatch(ctx, []models.PriceRecord{price("A", 1, "100"), price("A", 2, "103")})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)

	res, err = s.InsertBatch(ctx, []models.PriceRecord{price("A", 2, "50"), price("A", 3, "99.91")})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, []models.PriceKey{{Ticker: "A", Date: "2024-01-02"}}, res.Duplicates)

	rows, err := s.ListByTicker(ctx, "A", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	// the original close is kept
	assert.Equal(t, "103", rows[1].Close.String())
}

func TestMemoryPriceStoreListOrderAndRange(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryPriceStore()
	_, err := s.InsertBatch(ctx, []models.PriceRecord{price("A", 5, "5"), price("A", 1, "1"), price("A", 3, "3"), price("B", 2, "2")})
	require.NoError(t, err)

	rows, err := s.ListByTicker(ctx, "A", day(2), day(5))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, day(3), rows[0].Date)
	assert.Equal(t, day(5), rows[1].Date)

	stats, err := s.ListTickers(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, models.TickerStat{Ticker: "A", Records: 3, FirstDate: day(1), LastDate: day(5)}, stats[0])

	n, err := s.CountPrices(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestMemoryPriceStoreDeleteTicker(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryPriceStore()
	_, err := s.InsertBatch(ctx, []models.PriceRecord{price("A", 1, "1"), price("A", 2, "2")})
	require.NoError(t, err)

	n, err := s.DeleteTicker(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = s.DeleteTicker(ctx, "A")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestMemoryReportStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryReportStore()

	older := &models.Report{ID: "1", GeneratedAt: time.Now().Add(-time.Hour)}
	newer := &models.Report{ID: "2", GeneratedAt: time.Now()}
	require.NoError(t, s.Save(ctx, older))
	require.NoError(t, s.Save(ctx, newer))

	list, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "2", list[0].ID)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
