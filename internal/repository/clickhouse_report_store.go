package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"StockTracker/internal/domain/models"
	"StockTracker/internal/domain/repository"
	"StockTracker/pkg/util"
)

type ClickHouseReportStore struct {
	db *sqlx.DB
}

func NewClickHouseReportStore(db *sqlx.DB) *ClickHouseReportStore {
	return &ClickHouseReportStore{db: db}
}

type chReportRow struct {
	ID               string    `db:"id"`
	Title            string    `db:"title"`
	GeneratedAt      time.Time `db:"generated_at"`
	StartDate        time.Time `db:"start_date"`
	EndDate          time.Time `db:"end_date"`
	Rows             string    `db:"rows"`
	TotalSignals     uint32    `db:"total_signals"`
	TotalBuys        uint32    `db:"total_buys"`
	TotalSells       uint32    `db:"total_sells"`
	SuccessfulTrades uint32    `db:"successful_trades"`
	SuccessRate      string    `db:"success_rate"`
}

const chReportSelect = `SELECT id, title, generated_at, start_date, end_date, rows,
	total_signals, total_buys, total_sells, successful_trades, toString(success_rate) AS success_rate
	FROM reports`

func (s *ClickHouseReportStore) Save(ctx context.Context, r *models.Report) error {
	rows, err := json.Marshal(r.Rows)
	if err != nil {
		return fmt.Errorf("marshal report rows: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO reports`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx,
		r.ID, r.Title, r.GeneratedAt, r.StartDate, r.EndDate, string(rows),
		uint32(r.TotalSignals), uint32(r.TotalBuys), uint32(r.TotalSells),
		uint32(r.SuccessfulTrades), r.SuccessRate)
	if err != nil {
		return fmt.Errorf("append report: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (s *ClickHouseReportStore) Get(ctx context.Context, id string) (*models.Report, error) {
	var rows []chReportRow
	if err := s.db.SelectContext(ctx, &rows, chReportSelect+` WHERE id = ? LIMIT 1`, id); err != nil {
		return nil, fmt.Errorf("get report %s: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, repository.ErrNotFound
	}
	return rows[0].toModel()
}

func (s *ClickHouseReportStore) List(ctx context.Context, limit int) ([]models.Report, error) {
	var rows []chReportRow
	if err := s.db.SelectContext(ctx, &rows, chReportSelect+` ORDER BY generated_at DESC LIMIT ?`, limit); err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}

	out := make([]models.Report, 0, len(rows))
	for _, row := range rows {
		r, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, nil
}

func (row chReportRow) toModel() (*models.Report, error) {
	rate, err := decimal.NewFromString(row.SuccessRate)
	if err != nil {
		return nil, fmt.Errorf("parse success rate %q: %w", row.SuccessRate, err)
	}

	r := &models.Report{
		ID:               row.ID,
		Title:            row.Title,
		GeneratedAt:      row.GeneratedAt,
		StartDate:        util.TruncateDay(row.StartDate),
		EndDate:          util.TruncateDay(row.EndDate),
		TotalSignals:     int(row.TotalSignals),
		TotalBuys:        int(row.TotalBuys),
		TotalSells:       int(row.TotalSells),
		SuccessfulTrades: int(row.SuccessfulTrades),
		SuccessRate:      rate,
	}
	if row.Rows != "" {
		if err := json.Unmarshal([]byte(row.Rows), &r.Rows); err != nil {
			return nil, fmt.Errorf("decode rows of report %s: %w", row.ID, err)
		}
	}
	return r, nil
}
