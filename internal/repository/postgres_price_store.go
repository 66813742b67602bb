package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"StockTracker/internal/domain/models"
	"StockTracker/internal/domain/repository"
	applogger "StockTracker/pkg/logger"
	"StockTracker/pkg/util"
)

// PostgresPriceStore implements PriceStore on PostgreSQL. The (ticker, date)
// primary key makes duplicate rejection atomic across concurrent uploads.
type PostgresPriceStore struct {
	db      *sqlx.DB
	timeout time.Duration
	l       *applogger.Logger
}

func NewPostgresPriceStore(db *sqlx.DB, timeout time.Duration) *PostgresPriceStore {
	return &PostgresPriceStore{db: db, timeout: timeout, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *PostgresPriceStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *PostgresPriceStore) InsertBatch(ctx context.Context, prices []models.PriceRecord) (*repository.InsertResult, error) {
	res := &repository.InsertResult{}
	if len(prices) == 0 {
		return res, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout*time.Duration(len(prices)/1000+1))
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO prices (ticker, date, close)
		VALUES ($1, $2, $3)
		ON CONFLICT (ticker, date) DO NOTHING`)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range prices {
		r, err := stmt.ExecContext(ctx, p.Ticker, p.Date, p.Close)
		if err != nil {
			s.l.Error("postgres insert price failed",
				applogger.String("ticker", p.Ticker),
				applogger.Date("date", p.Date),
				applogger.Error(err),
			)
			return nil, fmt.Errorf("insert %s %s: %w", p.Ticker, util.FormatDate(p.Date), err)
		}
		n, err := r.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			res.Duplicates = append(res.Duplicates, p.Key())
			continue
		}
		res.Inserted++
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

func (s *PostgresPriceStore) ListByTicker(ctx context.Context, ticker string, from, to time.Time) ([]models.PriceRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	conds := []string{"ticker = $1"}
	args := []interface{}{ticker}
	if !from.IsZero() {
		args = append(args, from)
		conds = append(conds, fmt.Sprintf("date >= $%d", len(args)))
	}
	if !to.IsZero() {
		args = append(args, to)
		conds = append(conds, fmt.Sprintf("date <= $%d", len(args)))
	}

	q := `SELECT ticker, date, close FROM prices WHERE ` + strings.Join(conds, " AND ") + ` ORDER BY date ASC`

	var out []models.PriceRecord
	if err := s.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, fmt.Errorf("list prices for %s: %w", ticker, err)
	}
	for i := range out {
		out[i].Date = util.TruncateDay(out[i].Date)
	}
	return out, nil
}

func (s *PostgresPriceStore) ListTickers(ctx context.Context) ([]models.TickerStat, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var out []models.TickerStat
	err := s.db.SelectContext(ctx, &out, `
		SELECT ticker, COUNT(*) AS records, MIN(date) AS first_date, MAX(date) AS last_date
		FROM prices
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

func (s *PostgresPriceStore) CountPrices(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var n int64
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM prices`); err != nil {
		return 0, fmt.Errorf("count prices: %w", err)
	}
	return n, nil
}

func (s *PostgresPriceStore) DeleteTicker(ctx context.Context, ticker string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	r, err := s.db.ExecContext(ctx, `DELETE FROM prices WHERE ticker = $1`, ticker)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", ticker, err)
	}
	n, err := r.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return 0, repository.ErrNotFound
	}
	return n, nil
}

func (s *PostgresPriceStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
