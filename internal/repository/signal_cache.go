package repository

import (
	"context"
	"errors"
	"time"

	"StockTracker/internal/domain/models"
	"StockTracker/pkg/cache"
	applogger "StockTracker/pkg/logger"
)

// VersionedSignalCache stores computed series under signals:<ticker>:<generation>.
// Invalidate bumps the generation, so a series computed before a write can
// never be served after it, even by another instance or a stale L1 entry.
//
// A missing generation counter (first use, or lost to Redis eviction) is
// seeded from the clock, so a new counter never repeats generations whose
// series may still be cached.
type VersionedSignalCache struct {
	c    cache.Service
	ttl  time.Duration
	l    *applogger.Logger
	seed func() int64
}

func NewVersionedSignalCache(c cache.Service, ttl time.Duration, l *applogger.Logger) *VersionedSignalCache {
	if l == nil {
		l = applogger.Nop()
	}
	return &VersionedSignalCache{
		c:    c,
		ttl:  ttl,
		l:    l,
		seed: func() int64 { return time.Now().UnixNano() },
	}
}

func generationKey(ticker string) string {
	return cache.GenerateKey("signals:gen", ticker)
}

func seriesKey(ticker string, gen int64) string {
	return cache.GenerateKeyWithParams("signals", ticker, gen)
}

func (s *VersionedSignalCache) Generation(ctx context.Context, ticker string) (int64, error) {
	gen, err := s.c.Counter(ctx, generationKey(ticker))
	if err != nil || gen != 0 {
		return gen, err
	}
	return s.c.IncrementBy(ctx, generationKey(ticker), s.seed())
}

// Get reports a miss on any cache error; the caller recomputes from the store.
func (s *VersionedSignalCache) Get(ctx context.Context, ticker string, gen int64) ([]models.SignalEntry, bool) {
	var entries []models.SignalEntry
	if err := s.c.Get(ctx, seriesKey(ticker, gen), &entries); err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.l.Warn("signal cache read failed", applogger.String("ticker", ticker), applogger.Error(err))
		}
		return nil, false
	}
	return entries, true
}

func (s *VersionedSignalCache) Set(ctx context.Context, ticker string, gen int64, entries []models.SignalEntry) error {
	return s.c.Set(ctx, seriesKey(ticker, gen), entries, s.ttl)
}

func (s *VersionedSignalCache) Invalidate(ctx context.Context, ticker string) error {
	gen, err := s.c.Increment(ctx, generationKey(ticker))
	if err != nil || gen != 1 {
		return err
	}
	// the counter did not exist before this increment
	_, err = s.c.IncrementBy(ctx, generationKey(ticker), s.seed())
	return err
}

// NoopSignalCache always misses.
type NoopSignalCache struct{}

func (NoopSignalCache) Generation(context.Context, string) (int64, error) { return 0, nil }

func (NoopSignalCache) Get(context.Context, string, int64) ([]models.SignalEntry, bool) {
	return nil, false
}

func (NoopSignalCache) Set(context.Context, string, int64, []models.SignalEntry) error { return nil }

func (NoopSignalCache) Invalidate(context.Context, string) error { return nil }
