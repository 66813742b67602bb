// Package ingest turns an uploaded CSV into validated price records.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"StockTracker/internal/domain/models"
	"StockTracker/pkg/util"
)

const (
	MaxTickerLen = 20
	MaxPriceExp  = -6
)

var (
	ErrEmptyFile   = errors.New("file is empty")
	ErrTooManyRows = errors.New("too many rows")
)

// MissingColumnsError is returned when the header lacks mapped columns.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Columns, ", "))
}

// Batch is the parsed content of one upload. Lines[i] is the file line of Records[i].
type Batch struct {
	Records   []models.PriceRecord
	Lines     []int
	Errors    []models.RowError
	TotalRows int
}

type row struct {
	Ticker string `validate:"required,max=20"`
	Date   string `validate:"required,datetime=2006-01-02"`
	Close  string `validate:"required,price"`
}

var fieldNames = map[string]string{
	"Ticker": "ticker",
	"Date":   "date",
	"Close":  "close",
}

type Reader struct {
	validate *validator.Validate
	maxRows  int
}

func NewReader(maxRows int) *Reader {
	v := validator.New()
	_ = v.RegisterValidation("price", validPrice)
	return &Reader{validate: v, maxRows: maxRows}
}

// validPrice accepts positive decimals with at most six fractional digits.
func validPrice(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	return d.IsPositive() && d.Equal(d.Truncate(-MaxPriceExp))
}

// Read parses src with the given header mapping. Row-level problems are
// collected in Batch.Errors; structural problems abort with an error.
// Rows repeating an earlier (ticker, date) of the same file are rejected.
func (r *Reader) Read(src io.Reader, mapping models.ColumnMapping) (*Batch, error) {
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx, err := columnIndex(header, mapping)
	if err != nil {
		return nil, err
	}

	batch := &Batch{}
	seen := make(map[models.PriceKey]int)
	line := 1

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if blank(rec) {
			continue
		}

		batch.TotalRows++
		if r.maxRows > 0 && batch.TotalRows > r.maxRows {
			return nil, fmt.Errorf("%w: limit is %d", ErrTooManyRows, r.maxRows)
		}

		raw := row{
			Ticker: field(rec, idx[0]),
			Date:   field(rec, idx[1]),
			Close:  field(rec, idx[2]),
		}

		if rowErr := r.check(raw, line); rowErr != nil {
			batch.Errors = append(batch.Errors, *rowErr)
			continue
		}

		p, rowErr := toRecord(raw, line)
		if rowErr != nil {
			batch.Errors = append(batch.Errors, *rowErr)
			continue
		}

		key := p.Key()
		if first, ok := seen[key]; ok {
			batch.Errors = append(batch.Errors, DuplicateError(line, key,
				fmt.Sprintf("duplicate of line %d", first)))
			continue
		}
		seen[key] = line

		batch.Records = append(batch.Records, p)
		batch.Lines = append(batch.Lines, line)
	}

	if batch.TotalRows == 0 {
		return nil, ErrEmptyFile
	}

	return batch, nil
}

// DuplicateError builds the row error for a (ticker, date) that already exists.
func DuplicateError(line int, key models.PriceKey, detail string) models.RowError {
	return models.RowError{
		Line:    line,
		Ticker:  key.Ticker,
		Date:    key.Date,
		Field:   "date",
		Code:    models.ErrCodeDuplicate,
		Message: fmt.Sprintf("%s already has a price for %s (%s)", key.Ticker, key.Date, detail),
	}
}

func (r *Reader) check(raw row, line int) *models.RowError {
	err := r.validate.Struct(raw)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &models.RowError{Line: line, Code: "ERR_UNKNOWN", Message: err.Error()}
	}

	fe := verrs[0]
	name := fieldNames[fe.Field()]
	return &models.RowError{
		Line:    line,
		Ticker:  raw.Ticker,
		Date:    raw.Date,
		Field:   name,
		Code:    errorCode(fe.Tag()),
		Message: errorMessage(name, fe),
	}
}

func toRecord(raw row, line int) (models.PriceRecord, *models.RowError) {
	date, err := util.ParseDate(raw.Date)
	if err != nil {
		return models.PriceRecord{}, &models.RowError{
			Line: line, Ticker: raw.Ticker, Date: raw.Date, Field: "date",
			Code: models.ErrCodeDate, Message: err.Error(),
		}
	}
	// validPrice already accepted the value
	price := decimal.RequireFromString(raw.Close)

	return models.PriceRecord{Ticker: raw.Ticker, Date: date, Close: price}, nil
}

func errorCode(tag string) string {
	switch tag {
	case "required":
		return models.ErrCodeRequired
	case "max":
		return models.ErrCodeMax
	case "datetime":
		return models.ErrCodeDate
	case "price":
		return models.ErrCodePrice
	default:
		return "ERR_" + strings.ToUpper(tag)
	}
}

func errorMessage(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "datetime":
		return fmt.Sprintf("%s %q is not a valid YYYY-MM-DD date", field, fe.Value())
	case "price":
		return fmt.Sprintf("%s %q must be a positive number with at most %d decimals", field, fe.Value(), -MaxPriceExp)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}

// columnIndex maps the ticker, date and close columns to header positions.
func columnIndex(header []string, m models.ColumnMapping) ([3]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}

	var idx [3]int
	var missing []string
	for i, name := range []string{m.Ticker, m.Date, m.Close} {
		p, ok := pos[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			missing = append(missing, name)
			continue
		}
		idx[i] = p
	}
	if len(missing) > 0 {
		return idx, &MissingColumnsError{Columns: missing}
	}
	return idx, nil
}

func field(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
