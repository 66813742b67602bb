package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"StockTracker/internal/domain/models"
	domrepo "StockTracker/internal/domain/repository"
	"StockTracker/internal/services/ingest"
	applogger "StockTracker/pkg/logger"
	"StockTracker/pkg/util"
)

// ErrInvalidUpload marks uploads rejected as a whole; nothing was stored.
var ErrInvalidUpload = errors.New("invalid upload")

// IngestionUseCase validates an uploaded CSV and stores its rows.
// Valid rows are stored even when others are rejected.
type IngestionUseCase struct {
	reader  *ingest.Reader
	store   domrepo.PriceStore
	signals *SignalsUseCase
	events  domrepo.EventPublisher
	metrics domrepo.Metrics
	l       *applogger.Logger
	now     func() time.Time
}

func NewIngestionUseCase(
	reader *ingest.Reader,
	store domrepo.PriceStore,
	signals *SignalsUseCase,
	events domrepo.EventPublisher,
	metrics domrepo.Metrics,
	l *applogger.Logger,
) *IngestionUseCase {
	return &IngestionUseCase{
		reader:  reader,
		store:   store,
		signals: signals,
		events:  events,
		metrics: metrics,
		l:       l,
		now:     time.Now,
	}
}

func (uc *IngestionUseCase) Upload(ctx context.Context, filename string, src io.Reader, mapping models.ColumnMapping) (*models.UploadResult, error) {
	start := time.Now()
	defer func() { uc.metrics.RecordLatency("upload", time.Since(start).Seconds()) }()

	if !strings.EqualFold(filepath.Ext(filename), ".csv") {
		uc.metrics.RecordUpload("rejected")
		return nil, fmt.Errorf("%w: %q is not a .csv file", ErrInvalidUpload, filename)
	}

	batch, err := uc.reader.Read(src, mapping)
	if err != nil {
		uc.metrics.RecordUpload("rejected")
		return nil, fmt.Errorf("%w: %w", ErrInvalidUpload, err)
	}

	known, err := uc.knownTickers(ctx)
	if err != nil {
		return nil, err
	}

	stored, err := uc.store.InsertBatch(ctx, batch.Records)
	if err != nil {
		// some tickers may have committed before the failure
		uc.signals.Invalidate(ctx, batchTickers(batch.Records)...)
		uc.metrics.RecordError("store_write")
		uc.metrics.RecordUpload("failed")

		inserted := 0
		if stored != nil {
			inserted = stored.Inserted
		}
		uc.l.Error("upload store failed",
			applogger.String("filename", filename),
			applogger.Int("rows", len(batch.Records)),
			applogger.Int("inserted", inserted),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("store prices: %w", err)
	}

	result := uc.buildResult(filename, batch, stored, known)

	touched := make([]string, 0, len(result.Tickers))
	for _, t := range result.Tickers {
		if t.Inserted > 0 {
			touched = append(touched, t.Ticker)
			uc.metrics.RecordRowsIngested(t.Ticker, t.Inserted)
		}
	}
	uc.signals.Invalidate(ctx, touched...)

	rejected := map[string]int{}
	for _, e := range result.Errors {
		rejected[e.Code]++
	}
	for code, n := range rejected {
		uc.metrics.RecordRowsRejected(code, n)
	}

	uc.publish(ctx, result)

	status := "ok"
	if result.HasErrors() {
		status = "partial"
	}
	uc.metrics.RecordUpload(status)

	uc.l.Info("upload processed",
		applogger.String("filename", filename),
		applogger.Int("rows", result.TotalRows),
		applogger.Int("inserted", result.Inserted),
		applogger.Int("rejected", len(result.Errors)),
		applogger.Bool("partial", result.HasErrors()),
		applogger.Strings("tickers", touched),
		applogger.Duration("duration_ms", time.Since(start)),
	)

	return result, nil
}

func batchTickers(records []models.PriceRecord) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range records {
		if !seen[r.Ticker] {
			seen[r.Ticker] = true
			out = append(out, r.Ticker)
		}
	}
	return out
}

func (uc *IngestionUseCase) knownTickers(ctx context.Context) (map[string]bool, error) {
	stats, err := uc.store.ListTickers(ctx)
	if err != nil {
		uc.metrics.RecordError("store_read")
		return nil, fmt.Errorf("list tickers: %w", err)
	}
	known := make(map[string]bool, len(stats))
	for _, s := range stats {
		known[s.Ticker] = true
	}
	return known, nil
}

func (uc *IngestionUseCase) buildResult(filename string, batch *ingest.Batch, stored *domrepo.InsertResult, known map[string]bool) *models.UploadResult {
	result := &models.UploadResult{
		Filename:  filename,
		TotalRows: batch.TotalRows,
		Inserted:  stored.Inserted,
		Errors:    append([]models.RowError(nil), batch.Errors...),
	}

	lineOf := make(map[models.PriceKey]int, len(batch.Records))
	for i, p := range batch.Records {
		lineOf[p.Key()] = batch.Lines[i]
	}
	dup := make(map[models.PriceKey]bool, len(stored.Duplicates))
	for _, k := range stored.Duplicates {
		dup[k] = true
		result.Errors = append(result.Errors, ingest.DuplicateError(lineOf[k], k, "already stored"))
	}
	sort.SliceStable(result.Errors, func(i, j int) bool { return result.Errors[i].Line < result.Errors[j].Line })

	byTicker := map[string]*models.TickerIngest{}
	get := func(ticker string) *models.TickerIngest {
		t, ok := byTicker[ticker]
		if !ok {
			t = &models.TickerIngest{Ticker: ticker, New: !known[ticker]}
			byTicker[ticker] = t
		}
		return t
	}

	for _, p := range batch.Records {
		if dup[p.Key()] {
			continue
		}
		t := get(p.Ticker)
		t.Inserted++
		if t.FirstDate.IsZero() || p.Date.Before(t.FirstDate) {
			t.FirstDate = p.Date
		}
		if p.Date.After(t.LastDate) {
			t.LastDate = p.Date
		}
	}
	for _, e := range result.Errors {
		if e.Ticker != "" {
			get(e.Ticker).Rejected++
		}
	}

	for _, t := range byTicker {
		if t.New && t.Inserted > 0 {
			result.NewTickers++
		}
		result.Tickers = append(result.Tickers, *t)
	}
	sort.Slice(result.Tickers, func(i, j int) bool { return result.Tickers[i].Ticker < result.Tickers[j].Ticker })

	return result
}

// publish emits one event per ticker that stored rows. Failures are logged only.
func (uc *IngestionUseCase) publish(ctx context.Context, result *models.UploadResult) {
	now := uc.now().UTC()
	events := make([]models.IngestedEvent, 0, len(result.Tickers))
	for _, t := range result.Tickers {
		if t.Inserted == 0 {
			continue
		}
		events = append(events, models.IngestedEvent{
			Ticker:     t.Ticker,
			Inserted:   t.Inserted,
			Rejected:   t.Rejected,
			FirstDate:  util.FormatDate(t.FirstDate),
			LastDate:   util.FormatDate(t.LastDate),
			UploadedAt: now,
		})
	}
	if len(events) == 0 {
		return
	}
	if err := uc.events.PublishIngested(ctx, events); err != nil {
		uc.metrics.RecordError("publish")
		uc.l.Error("publish ingested events failed", applogger.Int("events", len(events)), applogger.Error(err))
	}
}
