package usecase

import (
	"context"
	"fmt"
	"time"

	"StockTracker/internal/domain/models"
	domrepo "StockTracker/internal/domain/repository"
	"StockTracker/internal/services/signal"
	applogger "StockTracker/pkg/logger"
)

// SignalsUseCase computes signal series from stored prices, through a cache
// keyed by the ticker's write generation.
type SignalsUseCase struct {
	store   domrepo.PriceStore
	cache   domrepo.SignalCache
	metrics domrepo.Metrics
	l       *applogger.Logger
}

func NewSignalsUseCase(store domrepo.PriceStore, cache domrepo.SignalCache, metrics domrepo.Metrics, l *applogger.Logger) *SignalsUseCase {
	return &SignalsUseCase{store: store, cache: cache, metrics: metrics, l: l}
}

// ForTicker returns the full date-ordered series. Unknown tickers yield ErrNotFound.
func (uc *SignalsUseCase) ForTicker(ctx context.Context, ticker string) ([]models.SignalEntry, error) {
	gen, err := uc.cache.Generation(ctx, ticker)
	if err != nil {
		uc.l.Warn("signal cache unavailable", applogger.String("ticker", ticker), applogger.Error(err))
		return uc.compute(ctx, ticker)
	}

	if entries, ok := uc.cache.Get(ctx, ticker, gen); ok {
		uc.l.Debug("signal cache hit", applogger.String("ticker", ticker), applogger.Int64("generation", gen))
		return entries, nil
	}

	entries, err := uc.compute(ctx, ticker)
	if err != nil {
		return nil, err
	}

	if err := uc.cache.Set(ctx, ticker, gen, entries); err != nil {
		uc.l.Warn("signal cache write failed", applogger.String("ticker", ticker), applogger.Error(err))
	}
	return entries, nil
}

func (uc *SignalsUseCase) compute(ctx context.Context, ticker string) ([]models.SignalEntry, error) {
	start := time.Now()

	prices, err := uc.store.ListByTicker(ctx, ticker, time.Time{}, time.Time{})
	if err != nil {
		uc.metrics.RecordError("store_read")
		return nil, fmt.Errorf("load prices: %w", err)
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("ticker %s: %w", ticker, domrepo.ErrNotFound)
	}

	entries := signal.Compute(prices)

	counts := map[models.SignalType]int{}
	for _, e := range entries {
		counts[e.Signal]++
	}
	for sig, n := range counts {
		uc.metrics.RecordSignals(sig, n)
	}
	uc.metrics.RecordLatency("compute_signals", time.Since(start).Seconds())

	return entries, nil
}

// History is the ticker detail view: every day with its signal plus the summary.
func (uc *SignalsUseCase) History(ctx context.Context, ticker string) (*models.TickerHistory, error) {
	entries, err := uc.ForTicker(ctx, ticker)
	if err != nil {
		return nil, err
	}
	return &models.TickerHistory{
		Ticker:  ticker,
		Signals: entries,
		Summary: signal.Summarize(entries),
	}, nil
}

// Recent returns the last days calendar days up to the ticker's latest date.
// Signals are computed over the whole history so a window never cuts a trade.
func (uc *SignalsUseCase) Recent(ctx context.Context, ticker string, days int) (*models.RecentData, error) {
	entries, err := uc.ForTicker(ctx, ticker)
	if err != nil {
		return nil, err
	}

	last := entries[len(entries)-1].Date
	from := last.AddDate(0, 0, -(days - 1))

	out := &models.RecentData{Ticker: ticker, From: from, To: last}
	for _, e := range entries {
		if e.Date.Before(from) {
			continue
		}
		out.Signals = append(out.Signals, e)
		out.Prices = append(out.Prices, models.PriceRecord{Ticker: e.Ticker, Date: e.Date, Close: e.Close})
	}
	return out, nil
}

// Invalidate drops cached series for the given tickers. Failures are logged
// and the stale series then lives until the cache TTL.
func (uc *SignalsUseCase) Invalidate(ctx context.Context, tickers ...string) {
	for _, t := range tickers {
		if err := uc.cache.Invalidate(ctx, t); err != nil {
			uc.metrics.RecordError("cache_invalidate")
			uc.l.Error("signal cache invalidate failed", applogger.String("ticker", t), applogger.Error(err))
		}
	}
}
