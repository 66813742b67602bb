package api

import (
	"errors"

	"github.com/labstack/echo/v4"

	"StockTracker/internal/domain/models"
	domrepo "StockTracker/internal/domain/repository"
	"StockTracker/internal/usecase"
	xhttp "StockTracker/pkg/http"
	xlogger "StockTracker/pkg/logger"
)

// StocksHandler serves the JSON endpoints used by charts and scripts.
type StocksHandler struct {
	logger    *xlogger.Logger
	signals   *usecase.SignalsUseCase
	dashboard *usecase.DashboardUseCase
}

func NewStocksHandler(logger *xlogger.Logger, signals *usecase.SignalsUseCase, dashboard *usecase.DashboardUseCase) *StocksHandler {
	return &StocksHandler{logger: logger, signals: signals, dashboard: dashboard}
}

func (h *StocksHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/summary", h.Summary)
	g.GET("/tickers", h.Tickers)
	g.GET("/stock/:ticker", h.Stock)
}

// SummaryResponse is the dashboard without the per-ticker rows.
type SummaryResponse struct {
	TotalTickers  int                  `json:"total_tickers"`
	TotalPrices   int64                `json:"total_prices"`
	BuyDays       int                  `json:"buy_days"`
	SellDays      int                  `json:"sell_days"`
	HoldDays      int                  `json:"hold_days"`
	RecentSignals []models.SignalEntry `json:"recent_signals"`
}

func (h *StocksHandler) Summary(c echo.Context) error {
	d, err := h.dashboard.Overview(c.Request().Context(), usecase.RecentSignalsLimit)
	if err != nil {
		h.logger.Error("summary usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, SummaryResponse{
		TotalTickers:  d.TotalTickers,
		TotalPrices:   d.TotalPrices,
		BuyDays:       d.BuyDays,
		SellDays:      d.SellDays,
		HoldDays:      d.HoldDays,
		RecentSignals: d.RecentSignals,
	})
}

func (h *StocksHandler) Tickers(c echo.Context) error {
	d, err := h.dashboard.Overview(c.Request().Context(), 0)
	if err != nil {
		h.logger.Error("tickers usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, d.Tickers, int64(len(d.Tickers)))
}

func (h *StocksHandler) Stock(c echo.Context) error {
	req := &models.RecentRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.signals.Recent(c.Request().Context(), req.Ticker, req.Days)
	if errors.Is(err, domrepo.ErrNotFound) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("ticker %q not found", req.Ticker))
	}
	if err != nil {
		h.logger.Error("recent usecase error", xlogger.String("ticker", req.Ticker), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, res)
}
