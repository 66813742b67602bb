package repository

import (
	"context"
	"errors"
	"time"

	"StockTracker/internal/domain/models"
)

// ErrNotFound is returned when a ticker or report does not exist.
var ErrNotFound = errors.New("not found")

// InsertResult reports which rows of a batch were stored.
// Duplicates holds the keys that already existed (in the store or earlier in the batch).
type InsertResult struct {
	Inserted   int
	Duplicates []models.PriceKey
}

// PriceStore persists daily closes. Implementations must never overwrite an
// existing (ticker, date) row.
type PriceStore interface {
	// InsertBatch may commit part of the batch before failing; the returned
	// result then describes what was stored.
	InsertBatch(ctx context.Context, prices []models.PriceRecord) (*InsertResult, error)
	// ListByTicker returns rows in ascending date order. A zero from/to is unbounded.
	ListByTicker(ctx context.Context, ticker string, from, to time.Time) ([]models.PriceRecord, error)
	ListTickers(ctx context.Context) ([]models.TickerStat, error)
	CountPrices(ctx context.Context) (int64, error)
	DeleteTicker(ctx context.Context, ticker string) (int64, error)
	Health(ctx context.Context) error
}

type ReportStore interface {
	Save(ctx context.Context, r *models.Report) error
	Get(ctx context.Context, id string) (*models.Report, error)
	List(ctx context.Context, limit int) ([]models.Report, error)
}

// SignalCache holds computed signal series keyed by the ticker's write
// generation. Readers take the generation before reading prices and store the
// result under it; writers call Invalidate after their rows are committed.
type SignalCache interface {
	Generation(ctx context.Context, ticker string) (int64, error)
	Get(ctx context.Context, ticker string, gen int64) ([]models.SignalEntry, bool)
	Set(ctx context.Context, ticker string, gen int64, entries []models.SignalEntry) error
	Invalidate(ctx context.Context, ticker string) error
}

type EventPublisher interface {
	PublishIngested(ctx context.Context, events []models.IngestedEvent) error
	Close() error
}

type Metrics interface {
	RecordRowsIngested(ticker string, n int)
	RecordRowsRejected(code string, n int)
	RecordSignals(signal models.SignalType, n int)
	RecordUpload(status string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
