package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"StockTracker/internal/domain/models"
	domrepo "StockTracker/internal/domain/repository"
	applogger "StockTracker/pkg/logger"
)

// RecentSignalsLimit is how many BUY/SELL days the dashboard lists.
const RecentSignalsLimit = 10

type DashboardUseCase struct {
	store   domrepo.PriceStore
	signals *SignalsUseCase
	l       *applogger.Logger
}

func NewDashboardUseCase(store domrepo.PriceStore, signals *SignalsUseCase, l *applogger.Logger) *DashboardUseCase {
	return &DashboardUseCase{store: store, signals: signals, l: l}
}

// Overview builds the dashboard. recent caps the list of latest BUY/SELL days.
func (uc *DashboardUseCase) Overview(ctx context.Context, recent int) (*models.Dashboard, error) {
	stats, err := uc.store.ListTickers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tickers: %w", err)
	}
	total, err := uc.store.CountPrices(ctx)
	if err != nil {
		return nil, fmt.Errorf("count prices: %w", err)
	}

	d := &models.Dashboard{
		Tickers:      make([]models.TickerOverview, 0, len(stats)),
		TotalTickers: len(stats),
		TotalPrices:  total,
	}

	var actions []models.SignalEntry
	for _, st := range stats {
		entries, err := uc.signals.ForTicker(ctx, st.Ticker)
		if errors.Is(err, domrepo.ErrNotFound) {
			// deleted between the two reads
			continue
		}
		if err != nil {
			return nil, err
		}

		last := entries[len(entries)-1]
		d.Tickers = append(d.Tickers, models.TickerOverview{
			TickerStat:   st,
			LatestSignal: last.Signal,
			LatestClose:  last.Close,
		})

		for _, e := range entries {
			switch e.Signal {
			case models.SignalBuy:
				d.BuyDays++
				actions = append(actions, e)
			case models.SignalSell:
				d.SellDays++
				actions = append(actions, e)
			default:
				d.HoldDays++
			}
		}
	}

	sort.SliceStable(actions, func(i, j int) bool {
		if actions[i].Date.Equal(actions[j].Date) {
			return actions[i].Ticker < actions[j].Ticker
		}
		return actions[i].Date.After(actions[j].Date)
	})
	if recent >= 0 && len(actions) > recent {
		actions = actions[:recent]
	}
	d.RecentSignals = actions

	return d, nil
}

// DeleteTicker removes every price of a ticker and drops its cached signals.
func (uc *DashboardUseCase) DeleteTicker(ctx context.Context, ticker string) (int64, error) {
	n, err := uc.store.DeleteTicker(ctx, ticker)
	if err != nil {
		return 0, err
	}
	uc.signals.Invalidate(ctx, ticker)

	uc.l.Info("ticker deleted", applogger.String("ticker", ticker), applogger.Int64("rows", n))
	return n, nil
}

// Tickers lists what the store holds.
func (uc *DashboardUseCase) Tickers(ctx context.Context) ([]models.TickerStat, error) {
	return uc.store.ListTickers(ctx)
}
