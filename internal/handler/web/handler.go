// Package web serves the HTML pages: dashboard, upload, ticker detail,
// reports and the per-ticker data reset.
package web

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/creasty/defaults"
	"github.com/labstack/echo/v4"

	"StockTracker/internal/domain/models"
	domrepo "StockTracker/internal/domain/repository"
	"StockTracker/internal/services/ingest"
	"StockTracker/internal/usecase"
	xhttp "StockTracker/pkg/http"
	"StockTracker/pkg/http/middleware"
	xlogger "StockTracker/pkg/logger"
	"StockTracker/pkg/util"
)

const maxRecentSignals = 100

type Handler struct {
	logger         *xlogger.Logger
	ingestion      *usecase.IngestionUseCase
	signals        *usecase.SignalsUseCase
	dashboard      *usecase.DashboardUseCase
	reports        *usecase.ReportsUseCase
	uploadLimiter  middleware.Limiter
	maxUploadBytes int64
}

func NewHandler(
	logger *xlogger.Logger,
	ingestion *usecase.IngestionUseCase,
	signals *usecase.SignalsUseCase,
	dashboard *usecase.DashboardUseCase,
	reports *usecase.ReportsUseCase,
	uploadLimiter middleware.Limiter,
	maxUploadBytes int64,
) *Handler {
	return &Handler{
		logger:         logger,
		ingestion:      ingestion,
		signals:        signals,
		dashboard:      dashboard,
		reports:        reports,
		uploadLimiter:  uploadLimiter,
		maxUploadBytes: maxUploadBytes,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Dashboard)

	upload := []echo.MiddlewareFunc{}
	if h.uploadLimiter != nil {
		upload = append(upload, middleware.RateLimit(h.uploadLimiter,
			xhttp.TooManyRequestsError("Too many uploads, try again in a minute.")))
	}
	e.GET("/upload", h.UploadForm)
	e.POST("/upload", h.Upload, upload...)

	e.GET("/stock/:ticker", h.Stock)

	e.GET("/reports", h.Reports)
	e.POST("/reports", h.GenerateReport)
	e.GET("/reports/:id", h.Report)

	e.GET("/delete/:ticker", h.ConfirmDelete)
	e.POST("/delete/:ticker", h.Delete)
}

type dashboardView struct {
	layout
	Dashboard *models.Dashboard
}

func (h *Handler) Dashboard(c echo.Context) error {
	recent := util.ParseIntDefault(c.QueryParam("recent"), usecase.RecentSignalsLimit)
	if recent < 1 || recent > maxRecentSignals {
		recent = usecase.RecentSignalsLimit
	}

	d, err := h.dashboard.Overview(c.Request().Context(), recent)
	if err != nil {
		h.logger.Error("dashboard overview failed", xlogger.Error(err))
		return err
	}
	return c.Render(http.StatusOK, "dashboard.html", dashboardView{
		layout:    layout{Title: "Dashboard", Flash: xhttp.PopFlash(c)},
		Dashboard: d,
	})
}

type uploadView struct {
	layout
	Mapping models.ColumnMapping
	Error   string
}

type uploadResultView struct {
	layout
	Result *models.UploadResult
}

func (h *Handler) UploadForm(c echo.Context) error {
	var m models.ColumnMapping
	if err := defaults.Set(&m); err != nil {
		return err
	}
	return h.renderUploadForm(c, http.StatusOK, m, "")
}

func (h *Handler) renderUploadForm(c echo.Context, status int, m models.ColumnMapping, msg string) error {
	return c.Render(status, "upload.html", uploadView{
		layout:  layout{Title: "Upload", Flash: xhttp.PopFlash(c)},
		Mapping: m,
		Error:   msg,
	})
}

// uploadError re-renders the form with the error's status and message.
func (h *Handler) uploadError(c echo.Context, m models.ColumnMapping, e *xhttp.AppError) error {
	return h.renderUploadForm(c, e.Status, m, e.Message)
}

func (h *Handler) Upload(c echo.Context) error {
	req := c.Request()
	if h.maxUploadBytes > 0 {
		req.Body = http.MaxBytesReader(c.Response(), req.Body, h.maxUploadBytes)
	}

	var mapping models.ColumnMapping
	_ = defaults.Set(&mapping)

	// parse up front so an oversized body is reported as such
	if err := req.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return h.uploadError(c, mapping, xhttp.TooLargeError(
				fmt.Sprintf("The file is larger than the %d byte limit.", h.maxUploadBytes)))
		}
		return h.uploadError(c, mapping, xhttp.BadRequestError("Choose a CSV file to upload."))
	}

	if errs := xhttp.ReadAndValidateRequest(c, &mapping); errs != nil {
		return h.uploadError(c, mapping, xhttp.ValidationAppError(errs))
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return h.uploadError(c, mapping, xhttp.BadRequestError("Choose a CSV file to upload."))
	}
	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	result, err := h.ingestion.Upload(req.Context(), fh.Filename, f, mapping)
	switch {
	case errors.Is(err, ingest.ErrTooManyRows):
		return h.uploadError(c, mapping, xhttp.TooLargeError(err.Error()))
	case errors.Is(err, usecase.ErrInvalidUpload):
		return h.uploadError(c, mapping, xhttp.BadRequestError(err.Error()))
	case err != nil:
		return xhttp.InternalErrorf("upload %s", fh.Filename).WithError(err)
	}

	if result.HasErrors() {
		return c.Render(http.StatusUnprocessableEntity, "upload_result.html", uploadResultView{
			layout: layout{Title: "Upload result"},
			Result: result,
		})
	}

	xhttp.SetFlash(c, uploadMessage(result))
	return c.Redirect(http.StatusSeeOther, "/")
}

func uploadMessage(r *models.UploadResult) string {
	tickers := len(r.Tickers)
	return fmt.Sprintf("Stored %d %s for %d %s (%d new) from %s.",
		r.Inserted, plural(r.Inserted, "row", "rows"),
		tickers, plural(tickers, "ticker", "tickers"),
		r.NewTickers, r.Filename)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

type stockView struct {
	layout
	History *models.TickerHistory
}

func (h *Handler) Stock(c echo.Context) error {
	req := &models.TickerRequest{}
	if errs := xhttp.ReadAndValidateRequest(c, req); errs != nil {
		return xhttp.NotFoundErrorf("ticker %q not found", c.Param("ticker"))
	}

	hist, err := h.signals.History(c.Request().Context(), req.Ticker)
	if errors.Is(err, domrepo.ErrNotFound) {
		return xhttp.NotFoundErrorf("ticker %q not found", req.Ticker)
	}
	if err != nil {
		h.logger.Error("ticker history failed", xlogger.String("ticker", req.Ticker), xlogger.Error(err))
		return err
	}

	return c.Render(http.StatusOK, "stock.html", stockView{
		layout:  layout{Title: req.Ticker, Flash: xhttp.PopFlash(c)},
		History: hist,
	})
}

type reportsView struct {
	layout
	Reports   []models.Report
	StartDate string
	EndDate   string
	Error     string
}

func (h *Handler) Reports(c echo.Context) error {
	today := util.TruncateDay(time.Now())
	return h.renderReports(c, http.StatusOK, models.ReportRequest{
		StartDate: util.FormatDate(today.AddDate(0, 0, -30)),
		EndDate:   util.FormatDate(today),
	}, "")
}

func (h *Handler) renderReports(c echo.Context, status int, form models.ReportRequest, msg string) error {
	list, err := h.reports.List(c.Request().Context())
	if err != nil {
		h.logger.Error("list reports failed", xlogger.Error(err))
		return err
	}
	return c.Render(status, "reports.html", reportsView{
		layout:    layout{Title: "Reports", Flash: xhttp.PopFlash(c)},
		Reports:   list,
		StartDate: form.StartDate,
		EndDate:   form.EndDate,
		Error:     msg,
	})
}

func (h *Handler) GenerateReport(c echo.Context) error {
	form := models.ReportRequest{}
	if errs := xhttp.ReadAndValidateRequest(c, &form); errs != nil {
		return h.renderReports(c, http.StatusBadRequest, form, errs[0].Message)
	}

	// both already passed the datetime check
	start, _ := util.ParseDate(form.StartDate)
	end, _ := util.ParseDate(form.EndDate)

	r, err := h.reports.Generate(c.Request().Context(), start, end)
	if errors.Is(err, usecase.ErrInvalidRange) {
		return h.renderReports(c, http.StatusBadRequest, form, "The start date must not be after the end date.")
	}
	if err != nil {
		return xhttp.InternalError("generate report").WithError(err)
	}
	return c.Redirect(http.StatusSeeOther, "/reports/"+r.ID)
}

type reportView struct {
	layout
	Report *models.Report
}

func (h *Handler) Report(c echo.Context) error {
	req := &models.ReportIDRequest{}
	if errs := xhttp.ReadAndValidateRequest(c, req); errs != nil {
		return xhttp.NotFoundError("report not found")
	}

	r, err := h.reports.Get(c.Request().Context(), req.ID)
	if errors.Is(err, domrepo.ErrNotFound) {
		return xhttp.NotFoundError("report not found")
	}
	if err != nil {
		h.logger.Error("get report failed", xlogger.String("id", req.ID), xlogger.Error(err))
		return err
	}
	return c.Render(http.StatusOK, "report.html", reportView{
		layout: layout{Title: r.Title},
		Report: r,
	})
}

type confirmDeleteView struct {
	layout
	Stat models.TickerStat
}

func (h *Handler) ConfirmDelete(c echo.Context) error {
	req := &models.TickerRequest{}
	if errs := xhttp.ReadAndValidateRequest(c, req); errs != nil {
		return xhttp.NotFoundErrorf("ticker %q not found", c.Param("ticker"))
	}

	stats, err := h.dashboard.Tickers(c.Request().Context())
	if err != nil {
		h.logger.Error("list tickers failed", xlogger.Error(err))
		return err
	}
	for _, st := range stats {
		if st.Ticker == req.Ticker {
			return c.Render(http.StatusOK, "confirm_delete.html", confirmDeleteView{
				layout: layout{Title: "Delete " + st.Ticker},
				Stat:   st,
			})
		}
	}
	return xhttp.NotFoundErrorf("ticker %q not found", req.Ticker)
}

func (h *Handler) Delete(c echo.Context) error {
	req := &models.TickerRequest{}
	if errs := xhttp.ReadAndValidateRequest(c, req); errs != nil {
		return xhttp.NotFoundErrorf("ticker %q not found", c.Param("ticker"))
	}

	n, err := h.dashboard.DeleteTicker(c.Request().Context(), req.Ticker)
	if errors.Is(err, domrepo.ErrNotFound) {
		return xhttp.NotFoundErrorf("ticker %q not found", req.Ticker)
	}
	if err != nil {
		h.logger.Error("delete ticker failed", xlogger.String("ticker", req.Ticker), xlogger.Error(err))
		return err
	}

	xhttp.SetFlash(c, fmt.Sprintf("Deleted %d %s for %s.", n, plural(int(n), "row", "rows"), req.Ticker))
	return c.Redirect(http.StatusSeeOther, "/")
}
