package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	applogger "StockTracker/pkg/logger"
)

type fixedLimiter struct{ allow map[string]bool }

func (f fixedLimiter) Allow(key string) bool { return f.allow[key] }

func TestRateLimitRejectsOverLimit(t *testing.T) {
	e := echo.New()
	e.POST("/upload", func(c echo.Context) error { return c.NoContent(http.StatusSeeOther) },
		RateLimit(fixedLimiter{allow: map[string]bool{"10.0.0.1": true}},
			echo.NewHTTPError(http.StatusTooManyRequests, "slow down")))

	req := httptest.NewRequest(http.MethodPost, "/upload", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/upload", nil)
	req.RemoteAddr = "10.0.0.2:5555"
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestMetricsUseRouteTemplate(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	e := echo.New()
	e.Use(m.Middleware(applogger.Nop(), 0), RequestLogging(applogger.Nop()))
	e.GET("/stock/:ticker", func(c echo.Context) error {
		if c.Param("ticker") == "NONE" {
			return echo.NewHTTPError(http.StatusNotFound)
		}
		return c.String(http.StatusOK, "ok")
	})

	for _, path := range []string{"/stock/AAPL", "/stock/MSFT", "/stock/NONE"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("/stock/:ticker", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("/stock/:ticker", "GET", "404")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inFlight.WithLabelValues("/stock/:ticker", "GET")))
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(204))
	assert.Equal(t, "3xx", statusClass(303))
	assert.Equal(t, "4xx", statusClass(422))
	assert.Equal(t, "5xx", statusClass(503))
}
