package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"StockTracker/internal/domain/models"
	"StockTracker/internal/domain/repository"
)

// MemoryPriceStore keeps prices in process. One mutex serializes writers,
// which is enough to keep the duplicate check and the insert atomic.
type MemoryPriceStore struct {
	mu     sync.RWMutex
	prices map[string]map[string]models.PriceRecord // ticker -> date -> record
}

func NewMemoryPriceStore() *MemoryPriceStore {
	return &MemoryPriceStore{prices: make(map[string]map[string]models.PriceRecord)}
}

func (s *MemoryPriceStore) InsertBatch(_ context.Context, prices []models.PriceRecord) (*repository.InsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := &repository.InsertResult{}
	for _, p := range prices {
		key := p.Key()
		days, ok := s.prices[p.Ticker]
		if !ok {
			days = make(map[string]models.PriceRecord)
			s.prices[p.Ticker] = days
		}
		if _, dup := days[key.Date]; dup {
			res.Duplicates = append(res.Duplicates, key)
			continue
		}
		days[key.Date] = p
		res.Inserted++
	}
	return res, nil
}

func (s *MemoryPriceStore) ListByTicker(_ context.Context, ticker string, from, to time.Time) ([]models.PriceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	days := s.prices[ticker]
	out := make([]models.PriceRecord, 0, len(days))
	for _, p := range days {
		if !from.IsZero() && p.Date.Before(from) {
			continue
		}
		if !to.IsZero() && p.Date.After(to) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *MemoryPriceStore) ListTickers(context.Context) ([]models.TickerStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.TickerStat, 0, len(s.prices))
	for ticker, days := range s.prices {
		if len(days) == 0 {
			continue
		}
		st := models.TickerStat{Ticker: ticker, Records: int64(len(days))}
		for _, p := range days {
			if st.FirstDate.IsZero() || p.Date.Before(st.FirstDate) {
				st.FirstDate = p.Date
			}
			if p.Date.After(st.LastDate) {
				st.LastDate = p.Date
			}
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out, nil
}

func (s *MemoryPriceStore) CountPrices(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, days := range s.prices {
		n += int64(len(days))
	}
	return n, nil
}

func (s *MemoryPriceStore) DeleteTicker(_ context.Context, ticker string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.prices[ticker]))
	if n == 0 {
		return 0, repository.ErrNotFound
	}
	delete(s.prices, ticker)
	return n, nil
}

func (s *MemoryPriceStore) Health(context.Context) error { return nil }

type MemoryReportStore struct {
	mu      sync.RWMutex
	reports map[string]models.Report
}

func NewMemoryReportStore() *MemoryReportStore {
	return &MemoryReportStore{reports: make(map[string]models.Report)}
}

func (s *MemoryReportStore) Save(_ context.Context, r *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reports[r.ID] = *r
	return nil
}

func (s *MemoryReportStore) Get(_ context.Context, id string) (*models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reports[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (s *MemoryReportStore) List(_ context.Context, limit int) ([]models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Report, 0, len(s.reports))
	for _, r := range s.reports {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GeneratedAt.After(out[j].GeneratedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
