package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockTracker/internal/domain/models"
	"StockTracker/internal/repository"
	"StockTracker/internal/services/ingest"
	"StockTracker/internal/usecase"
	"StockTracker/pkg/cache"
	xlogger "StockTracker/pkg/logger"
	"StockTracker/pkg/metrics"
)

func newTestAPI(t *testing.T, csv string) *echo.Echo {
	t.Helper()
	l := xlogger.Nop()
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { mc.Close() })

	store := repository.NewMemoryPriceStore()
	signals := usecase.NewSignalsUseCase(store, repository.NewVersionedSignalCache(mc, time.Minute, l), metrics.Nop{}, l)
	ingestion := usecase.NewIngestionUseCase(ingest.NewReader(100), store, signals, repository.NoopEventPublisher{}, metrics.Nop{}, l)
	dashboard := usecase.NewDashboardUseCase(store, signals, l)

	if csv != "" {
		mapping := models.ColumnMapping{Ticker: "ticker", Date: "date", Close: "close"}
		_, err := ingestion.Upload(context.Background(), "seed.csv", strings.NewReader(csv), mapping)
		require.NoError(t, err)
	}

	e := echo.New()
	NewStocksHandler(l, signals, dashboard).RegisterRoutes(e)
	return e
}

const seed = "ticker,date,close\n" +
	"TEST-1,2024-01-01,100.00\nTEST-1,2024-01-02,103.00\nTEST-1,2024-01-03,99.91\n" +
	"B,2024-01-01,10\n"

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func get(t *testing.T, e *echo.Echo, target string) (int, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var body envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec.Code, body
}

func TestSummary(t *testing.T) {
	e := newTestAPI(t, seed)

	code, body := get(t, e, "/api/summary")
	require.Equal(t, http.StatusOK, code)

	var s SummaryResponse
	require.NoError(t, json.Unmarshal(body.Data, &s))
	assert.Equal(t, 2, s.TotalTickers)
	assert.Equal(t, int64(4), s.TotalPrices)
	assert.Equal(t, 1, s.BuyDays)
	assert.Equal(t, 3, s.HoldDays)
	require.Len(t, s.RecentSignals, 1)
	assert.Equal(t, models.SignalBuy, s.RecentSignals[0].Signal)
	assert.Equal(t, "3.00", s.RecentSignals[0].DropPct.StringFixed(2))
}

func TestTickers(t *testing.T) {
	e := newTestAPI(t, seed)

	code, body := get(t, e, "/api/tickers")
	require.Equal(t, http.StatusOK, code)

	var list struct {
		Rows  []models.TickerOverview `json:"rows"`
		Total int64                   `json:"total"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &list))
	assert.Equal(t, int64(2), list.Total)
	assert.Equal(t, "B", list.Rows[0].Ticker)
	assert.Equal(t, "TEST-1", list.Rows[1].Ticker)
	assert.Equal(t, models.SignalBuy, list.Rows[1].LatestSignal)
}

func TestTickersEmpty(t *testing.T) {
	e := newTestAPI(t, "")
	code, body := get(t, e, "/api/tickers")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"rows":[],"total":0}`, string(body.Data))
}

func TestStockRecentWindow(t *testing.T) {
	e := newTestAPI(t, seed)

	code, body := get(t, e, "/api/stock/TEST-1?days=2")
	require.Equal(t, http.StatusOK, code)

	var r models.RecentData
	require.NoError(t, json.Unmarshal(body.Data, &r))
	require.Len(t, r.Signals, 2)
	assert.Equal(t, "2024-01-02", r.From.Format("2006-01-02"))
	assert.Equal(t, models.SignalBuy, r.Signals[1].Signal)
	assert.Len(t, r.Prices, 2)
}

func TestStockDefaultsToThirtyDays(t *testing.T) {
	e := newTestAPI(t, seed)

	code, body := get(t, e, "/api/stock/TEST-1")
	require.Equal(t, http.StatusOK, code)

	var r models.RecentData
	require.NoError(t, json.Unmarshal(body.Data, &r))
	assert.Len(t, r.Signals, 3)
	assert.Equal(t, "2023-12-05", r.From.Format("2006-01-02"))
}

func TestStockErrors(t *testing.T) {
	e := newTestAPI(t, seed)

	code, body := get(t, e, "/api/stock/NOPE")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, string(body.Data), "ERR_NOT_FOUND")

	code, body = get(t, e, "/api/stock/TEST-1?days=5000")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, string(body.Data), "ERR_LTE")

	code, _ = get(t, e, "/api/stock/TEST-1?days=abc")
	assert.Equal(t, http.StatusBadRequest, code)
}
