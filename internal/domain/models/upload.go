package models

import "time"

// Row error codes reported back to the uploader.
const (
	ErrCodeRequired  = "ERR_REQUIRED"
	ErrCodeMax       = "ERR_MAX"
	ErrCodeDate      = "ERR_DATE"
	ErrCodePrice     = "ERR_PRICE"
	ErrCodeDuplicate = "ERR_DUPLICATE"
)

// ColumnMapping names the CSV header of each required field.
type ColumnMapping struct {
	Ticker string `form:"ticker_column" json:"ticker_column" default:"ticker" validate:"required,max=100"`
	Date   string `form:"date_column" json:"date_column" default:"date" validate:"required,max=100"`
	Close  string `form:"price_column" json:"price_column" default:"close" validate:"required,max=100"`
}

// RowError is a single rejected upload row. Line is 1-based and counts the header.
type RowError struct {
	Line    int    `json:"line"`
	Ticker  string `json:"ticker,omitempty"`
	Date    string `json:"date,omitempty"`
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	return e.Message
}

// TickerIngest is the per-ticker outcome of one upload.
type TickerIngest struct {
	Ticker    string    `json:"ticker"`
	Inserted  int       `json:"inserted"`
	Rejected  int       `json:"rejected"`
	FirstDate time.Time `json:"first_date"`
	LastDate  time.Time `json:"last_date"`
	New       bool      `json:"new"`
}

// UploadResult summarizes an upload. Partial success is allowed.
type UploadResult struct {
	Filename   string         `json:"filename"`
	TotalRows  int            `json:"total_rows"`
	Inserted   int            `json:"inserted"`
	NewTickers int            `json:"new_tickers"`
	Tickers    []TickerIngest `json:"tickers"`
	Errors     []RowError     `json:"errors"`
}

// HasErrors reports whether any row was rejected.
func (r *UploadResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// IngestedEvent is published once per ticker after an upload stored rows.
type IngestedEvent struct {
	Ticker     string    `json:"ticker"`
	Inserted   int       `json:"inserted"`
	Rejected   int       `json:"rejected"`
	FirstDate  string    `json:"first_date"`
	LastDate   string    `json:"last_date"`
	UploadedAt time.Time `json:"uploaded_at"`
}
