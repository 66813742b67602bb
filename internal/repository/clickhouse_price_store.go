package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"StockTracker/internal/domain/models"
	"StockTracker/internal/domain/repository"
	"StockTracker/pkg/cache"
	applogger "StockTracker/pkg/logger"
	"StockTracker/pkg/util"
)

// ClickHousePriceStore implements PriceStore on ClickHouse.
//
// ClickHouse has no unique constraints, so InsertBatch takes a per-ticker lock
// from the cache, reads the dates already stored and inserts only new ones.
type ClickHousePriceStore struct {
	db      *sqlx.DB
	locks   cache.Service
	lockTTL time.Duration
	l       *applogger.Logger
}

func NewClickHousePriceStore(db *sqlx.DB, locks cache.Service, lockTTL time.Duration) *ClickHousePriceStore {
	return &ClickHousePriceStore{db: db, locks: locks, lockTTL: lockTTL, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *ClickHousePriceStore) SetLogger(l *applogger.Logger) { s.l = l }

func lockKey(ticker string) string {
	return cache.GenerateKey("lock:prices", ticker)
}

func (s *ClickHousePriceStore) InsertBatch(ctx context.Context, prices []models.PriceRecord) (*repository.InsertResult, error) {
	res := &repository.InsertResult{}

	byTicker := make(map[string][]models.PriceRecord)
	for _, p := range prices {
		byTicker[p.Ticker] = append(byTicker[p.Ticker], p)
	}
	tickers := make([]string, 0, len(byTicker))
	for t := range byTicker {
		tickers = append(tickers, t)
	}
	// fixed lock order keeps concurrent uploads from deadlocking
	sort.Strings(tickers)

	for _, ticker := range tickers {
		err := cache.WithLock(ctx, s.locks, lockKey(ticker), s.lockTTL, func() error {
			return s.insertTicker(ctx, ticker, byTicker[ticker], res)
		})
		if err != nil {
			// earlier tickers are committed; res reports them
			return res, fmt.Errorf("insert %s: %w", ticker, err)
		}
	}
	return res, nil
}

// insertTicker must run under the ticker lock.
func (s *ClickHousePriceStore) insertTicker(ctx context.Context, ticker string, rows []models.PriceRecord, res *repository.InsertResult) error {
	existing, err := s.existingDates(ctx, ticker, rows)
	if err != nil {
		return err
	}

	fresh := make([]models.PriceRecord, 0, len(rows))
	for _, p := range rows {
		if existing[util.FormatDate(p.Date)] {
			res.Duplicates = append(res.Duplicates, p.Key())
			continue
		}
		fresh = append(fresh, p)
	}
	if len(fresh) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO prices (ticker, date, close)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	defer stmt.Close()

	for _, p := range fresh {
		if _, err := stmt.ExecContext(ctx, p.Ticker, p.Date, p.Close); err != nil {
			return fmt.Errorf("append row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		s.l.Error("clickhouse insert batch failed",
			applogger.String("ticker", ticker),
			applogger.Int("rows", len(fresh)),
			applogger.Error(err),
		)
		return fmt.Errorf("send batch: %w", err)
	}

	res.Inserted += len(fresh)
	return nil
}

func (s *ClickHousePriceStore) existingDates(ctx context.Context, ticker string, rows []models.PriceRecord) (map[string]bool, error) {
	from, to := rows[0].Date, rows[0].Date
	for _, p := range rows[1:] {
		if p.Date.Before(from) {
			from = p.Date
		}
		if p.Date.After(to) {
			to = p.Date
		}
	}

	var dates []string
	err := s.db.SelectContext(ctx, &dates, `
		SELECT DISTINCT toString(date)
		FROM prices
		WHERE ticker = ? AND date >= ? AND date <= ?`,
		ticker, from, to)
	if err != nil {
		return nil, fmt.Errorf("existing dates: %w", err)
	}

	out := make(map[string]bool, len(dates))
	for _, d := range dates {
		out[d] = true
	}
	return out, nil
}

type chPriceRow struct {
	Ticker string    `db:"ticker"`
	Date   time.Time `db:"date"`
	Close  string    `db:"close"`
}

func (s *ClickHousePriceStore) ListByTicker(ctx context.Context, ticker string, from, to time.Time) ([]models.PriceRecord, error) {
	conds := []string{"ticker = ?"}
	args := []interface{}{ticker}
	if !from.IsZero() {
		conds = append(conds, "date >= ?")
		args = append(args, from)
	}
	if !to.IsZero() {
		conds = append(conds, "date <= ?")
		args = append(args, to)
	}

	// FINAL collapses rows not merged yet; close is read as text for exact decimals
	q := `SELECT ticker, date, toString(close) AS close FROM prices FINAL WHERE ` +
		strings.Join(conds, " AND ") + ` ORDER BY date ASC`

	var rows []chPriceRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		s.l.Error("clickhouse list prices failed", applogger.String("ticker", ticker), applogger.Error(err))
		return nil, fmt.Errorf("list prices for %s: %w", ticker, err)
	}

	out := make([]models.PriceRecord, 0, len(rows))
	for _, r := range rows {
		c, err := decimal.NewFromString(r.Close)
		if err != nil {
			return nil, fmt.Errorf("parse close %q: %w", r.Close, err)
		}
		out = append(out, models.PriceRecord{Ticker: r.Ticker, Date: util.TruncateDay(r.Date), Close: c})
	}
	return out, nil
}

func (s *ClickHousePriceStore) ListTickers(ctx context.Context) ([]models.TickerStat, error) {
	var out []models.TickerStat
	err := s.db.SelectContext(ctx, &out, `
		SELECT ticker, toInt64(count()) AS records, min(date) AS first_date, max(date) AS last_date
		FROM prices FINAL
		GROUP BY ticker
		ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("list tickers: %w", err)
	}
	for i := range out {
		out[i].FirstDate = util.TruncateDay(out[i].FirstDate)
		out[i].LastDate = util.TruncateDay(out[i].LastDate)
	}
	return out, nil
}

func (s *ClickHousePriceStore) CountPrices(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, `SELECT toInt64(count()) FROM prices FINAL`); err != nil {
		return 0, fmt.Errorf("count prices: %w", err)
	}
	return n, nil
}

func (s *ClickHousePriceStore) DeleteTicker(ctx context.Context, ticker string) (int64, error) {
	var n int64
	err := cache.WithLock(ctx, s.locks, lockKey(ticker), s.lockTTL, func() error {
		if err := s.db.GetContext(ctx, &n,
			`SELECT toInt64(count()) FROM prices FINAL WHERE ticker = ?`, ticker); err != nil {
			return fmt.Errorf("count %s: %w", ticker, err)
		}
		if n == 0 {
			return repository.ErrNotFound
		}
		if _, err := s.db.ExecContext(ctx, `DELETE FROM prices WHERE ticker = ?`, ticker); err != nil {
			return fmt.Errorf("delete %s: %w", ticker, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *ClickHousePriceStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
