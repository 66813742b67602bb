package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"StockTracker/internal/domain/models"
	domrepo "StockTracker/internal/domain/repository"
	"StockTracker/internal/services/signal"
	applogger "StockTracker/pkg/logger"
	"StockTracker/pkg/util"
)

// ErrInvalidRange is returned when the report start is after its end.
var ErrInvalidRange = errors.New("start date must not be after end date")

const reportListLimit = 50

type ReportsUseCase struct {
	prices  domrepo.PriceStore
	reports domrepo.ReportStore
	signals *SignalsUseCase
	l       *applogger.Logger
	now     func() time.Time
}

func NewReportsUseCase(prices domrepo.PriceStore, reports domrepo.ReportStore, signals *SignalsUseCase, l *applogger.Logger) *ReportsUseCase {
	return &ReportsUseCase{prices: prices, reports: reports, signals: signals, l: l, now: time.Now}
}

// Generate snapshots signal outcomes between start and end (inclusive) for
// every ticker and persists the report. A trade counts as successful when its
// SELL falls in the range with a positive return.
func (uc *ReportsUseCase) Generate(ctx context.Context, start, end time.Time) (*models.Report, error) {
	start, end = util.TruncateDay(start), util.TruncateDay(end)
	if start.After(end) {
		return nil, ErrInvalidRange
	}

	stats, err := uc.prices.ListTickers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tickers: %w", err)
	}

	r := &models.Report{
		ID:          uuid.NewString(),
		Title:       fmt.Sprintf("Signal report %s to %s", util.FormatDate(start), util.FormatDate(end)),
		GeneratedAt: uc.now().UTC(),
		StartDate:   start,
		EndDate:     end,
		Rows:        make([]models.ReportRow, 0, len(stats)),
	}

	for _, st := range stats {
		if st.LastDate.Before(start) || st.FirstDate.After(end) {
			continue
		}

		entries, err := uc.signals.ForTicker(ctx, st.Ticker)
		if errors.Is(err, domrepo.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		row := models.ReportRow{Ticker: st.Ticker}
		for _, e := range entries {
			if e.Date.Before(start) || e.Date.After(end) {
				continue
			}
			row.TotalSignals++
			switch e.Signal {
			case models.SignalBuy:
				row.BuySignals++
			case models.SignalSell:
				row.SellSignals++
				if e.ReturnPct != nil && e.ReturnPct.IsPositive() {
					row.SuccessfulTrades++
				}
			}
		}
		row.SuccessRate = signal.SuccessRate(row.SuccessfulTrades, row.SellSignals)

		r.Rows = append(r.Rows, row)
		r.TotalSignals += row.TotalSignals
		r.TotalBuys += row.BuySignals
		r.TotalSells += row.SellSignals
		r.SuccessfulTrades += row.SuccessfulTrades
	}
	r.SuccessRate = signal.SuccessRate(r.SuccessfulTrades, r.TotalSells)

	if err := uc.reports.Save(ctx, r); err != nil {
		return nil, fmt.Errorf("save report: %w", err)
	}

	uc.l.Info("report generated",
		applogger.String("id", r.ID),
		applogger.Date("start_date", start),
		applogger.Date("end_date", end),
		applogger.Int("tickers", len(r.Rows)),
	)
	return r, nil
}

func (uc *ReportsUseCase) Get(ctx context.Context, id string) (*models.Report, error) {
	return uc.reports.Get(ctx, id)
}

func (uc *ReportsUseCase) List(ctx context.Context) ([]models.Report, error) {
	return uc.reports.List(ctx, reportListLimit)
}
