package web

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockTracker/internal/repository"
	"StockTracker/internal/services/ingest"
	"StockTracker/internal/usecase"
	"StockTracker/pkg/cache"
	xhttp "StockTracker/pkg/http"
	xlogger "StockTracker/pkg/logger"
	"StockTracker/pkg/metrics"
)

const exampleCSV = "ticker,date,close\nTEST-1,2024-01-01,100.00\nTEST-1,2024-01-02,103.00\nTEST-1,2024-01-03,99.91\n"

type denyAll struct{}

func (denyAll) Allow(string) bool { return false }

type app struct {
	t      *testing.T
	server *xhttp.Server
}

func newApp(t *testing.T, maxUpload int64, limiter interface{ Allow(string) bool }) *app {
	t.Helper()
	l := xlogger.Nop()
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { mc.Close() })

	store := repository.NewMemoryPriceStore()
	signals := usecase.NewSignalsUseCase(store, repository.NewVersionedSignalCache(mc, time.Minute, l), metrics.Nop{}, l)
	h := NewHandler(l,
		usecase.NewIngestionUseCase(ingest.NewReader(100), store, signals, repository.NoopEventPublisher{}, metrics.Nop{}, l),
		signals,
		usecase.NewDashboardUseCase(store, signals, l),
		usecase.NewReportsUseCase(store, repository.NewMemoryReportStore(), signals, l),
		limiter,
		maxUpload,
	)

	r, err := NewRenderer()
	require.NoError(t, err)
	return &app{t: t, server: xhttp.NewServer(l, []xhttp.Handler{h}, xhttp.WithRenderer(r, ErrorPage))}
}

func (a *app) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.server.Echo().ServeHTTP(rec, req)
	return rec
}

func (a *app) get(target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return a.do(req)
}

func (a *app) postForm(target string, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return a.do(req)
}

func (a *app) upload(filename, body string, fields map[string]string) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(a.t, w.WriteField(k, v))
	}
	fw, err := w.CreateFormFile("file", filename)
	require.NoError(a.t, err)
	_, err = fw.Write([]byte(body))
	require.NoError(a.t, err)
	require.NoError(a.t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return a.do(req)
}

func TestDashboardEmpty(t *testing.T) {
	a := newApp(t, 1<<20, nil)
	rec := a.get("/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No prices yet")
}

func TestUploadRedirectsWithFlash(t *testing.T) {
	a := newApp(t, 1<<20, nil)

	rec := a.upload("prices.csv", exampleCSV, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	rec = a.get("/", cookies...)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Stored 3 rows for 1 ticker (1 new) from prices.csv.")
	assert.Contains(t, body, `href="/stock/TEST-1"`)
	assert.Contains(t, body, `class="signal-buy">BUY`)
}

func TestUploadWithRejectedRowsIs422(t *testing.T) {
	a := newApp(t, 1<<20, nil)
	require.Equal(t, http.StatusSeeOther, a.upload("prices.csv", exampleCSV, nil).Code)

	rec := a.upload("prices.csv", exampleCSV+"TEST-1,2024-01-04,abc\nTEST-1,2024-01-05,98\n", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "4 of 5 rows in prices.csv were rejected.")
	assert.Contains(t, body, "ERR_DUPLICATE")
	assert.Contains(t, body, "ERR_PRICE")
	assert.Contains(t, body, "1 rows were stored.")
}

func TestUploadResultLeavesDatesBlankForFullyRejectedTicker(t *testing.T) {
	a := newApp(t, 1<<20, nil)

	rec := a.upload("mixed.csv", "ticker,date,close\nGOOD,2024-01-01,10\nBAD,2024-01-01,abc\n", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<td>BAD</td>")
	assert.Contains(t, body, "2024-01-01")
	assert.NotContains(t, body, "0001-01-01")
	assert.NotContains(t, body, `href="/stock/BAD"`)
}

func TestUploadCustomHeaders(t *testing.T) {
	a := newApp(t, 1<<20, nil)
	rec := a.upload("prices.csv", "Symbol,Day,Price\nXYZ,2024-03-01,12.5\n", map[string]string{
		"ticker_column": "symbol",
		"date_column":   "day",
		"price_column":  "price",
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, http.StatusOK, a.get("/stock/XYZ").Code)
}

func TestUploadRejectedAsAWhole(t *testing.T) {
	a := newApp(t, 1<<20, nil)

	rec := a.upload("prices.txt", exampleCSV, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "is not a .csv file")

	rec = a.upload("prices.csv", "symbol,when\nA,2024-01-01\n", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing required columns: ticker, date, close")

	rec = a.upload("prices.csv", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "file is empty")
}

func TestUploadTooLarge(t *testing.T) {
	a := newApp(t, 64, nil)
	rec := a.upload("prices.csv", exampleCSV+strings.Repeat("TEST-1,2024-02-01,1\n", 20), nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "larger than the 64 byte limit")
}

func TestUploadRateLimited(t *testing.T) {
	a := newApp(t, 1<<20, denyAll{})
	rec := a.upload("prices.csv", exampleCSV, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "Too many uploads")
	assert.Equal(t, http.StatusOK, a.get("/upload").Code)
}

func TestStockPage(t *testing.T) {
	a := newApp(t, 1<<20, nil)
	a.upload("prices.csv", exampleCSV, nil)

	rec := a.get("/stock/TEST-1")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<h1>TEST-1</h1>")
	assert.Contains(t, body, "2024-01-03")
	assert.Contains(t, body, "-3.00%")

	rec = a.get("/stock/NOPE")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "ticker &#34;NOPE&#34; not found")
}

func TestReportsFlow(t *testing.T) {
	a := newApp(t, 1<<20, nil)
	a.upload("prices.csv", exampleCSV, nil)

	rec := a.postForm("/reports", url.Values{"start_date": {"2024-02-01"}, "end_date": {"2024-01-01"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "must not be after the end date")

	rec = a.postForm("/reports", url.Values{"start_date": {"01/01/2024"}, "end_date": {"2024-01-31"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "start_date must be a date in YYYY-MM-DD format")

	rec = a.postForm("/reports", url.Values{"start_date": {"2024-01-01"}, "end_date": {"2024-01-31"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	location := rec.Header().Get("Location")
	require.True(t, strings.HasPrefix(location, "/reports/"))

	rec = a.get(location)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Signal report 2024-01-01 to 2024-01-31")

	rec = a.get("/reports")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), location)

	assert.Equal(t, http.StatusNotFound, a.get("/reports/not-a-uuid").Code)
	assert.Equal(t, http.StatusNotFound, a.get("/reports/7d3c1c1e-6f0e-4a4b-9d7a-2b8d2f9c0e11").Code)
}

func TestDeleteTicker(t *testing.T) {
	a := newApp(t, 1<<20, nil)
	a.upload("prices.csv", exampleCSV, nil)

	rec := a.get("/delete/TEST-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "This removes all 3 price rows")

	rec = a.do(httptest.NewRequest(http.MethodPost, "/delete/TEST-1", nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec = a.get("/", rec.Result().Cookies()...)
	assert.Contains(t, rec.Body.String(), "Deleted 3 rows for TEST-1.")

	assert.Equal(t, http.StatusNotFound, a.get("/stock/TEST-1").Code)
	assert.Equal(t, http.StatusNotFound, a.get("/delete/TEST-1").Code)
	assert.Equal(t, http.StatusNotFound, a.do(httptest.NewRequest(http.MethodPost, "/delete/TEST-1", nil)).Code)
}
