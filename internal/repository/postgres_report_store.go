package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"StockTracker/internal/domain/models"
	"StockTracker/internal/domain/repository"
	"StockTracker/pkg/util"
)

type PostgresReportStore struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewPostgresReportStore(db *sqlx.DB, timeout time.Duration) *PostgresReportStore {
	return &PostgresReportStore{db: db, timeout: timeout}
}

// reportRecord is the row shape; per-ticker rows are stored as JSON.
type reportRecord struct {
	models.Report
	RowsJSON []byte `db:"rows"`
}

const reportColumns = `id, title, generated_at, start_date, end_date, rows,
	total_signals, total_buys, total_sells, successful_trades, success_rate`

func (s *PostgresReportStore) Save(ctx context.Context, r *models.Report) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := json.Marshal(r.Rows)
	if err != nil {
		return fmt.Errorf("marshal report rows: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reports (`+reportColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		r.ID, r.Title, r.GeneratedAt, r.StartDate, r.EndDate, rows,
		r.TotalSignals, r.TotalBuys, r.TotalSells, r.SuccessfulTrades, r.SuccessRate)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate report %s: %w", r.ID, err)
		}
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (s *PostgresReportStore) Get(ctx context.Context, id string) (*models.Report, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var rec reportRecord
	err := s.db.GetContext(ctx, &rec, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report %s: %w", id, err)
	}
	return rec.decode()
}

func (s *PostgresReportStore) List(ctx context.Context, limit int) ([]models.Report, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var recs []reportRecord
	err := s.db.SelectContext(ctx, &recs,
		`SELECT `+reportColumns+` FROM reports ORDER BY generated_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}

	out := make([]models.Report, 0, len(recs))
	for i := range recs {
		r, err := recs[i].decode()
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, nil
}

func (rec *reportRecord) decode() (*models.Report, error) {
	r := rec.Report
	if len(rec.RowsJSON) > 0 {
		if err := json.Unmarshal(rec.RowsJSON, &r.Rows); err != nil {
			return nil, fmt.Errorf("decode rows of report %s: %w", r.ID, err)
		}
	}
	r.StartDate = util.TruncateDay(r.StartDate)
	r.EndDate = util.TruncateDay(r.EndDate)
	return &r, nil
}
