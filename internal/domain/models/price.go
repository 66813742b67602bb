package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceRecord is one daily close for a ticker. Unique per (Ticker, Date).
type PriceRecord struct {
	Ticker string          `json:"ticker" db:"ticker"`
	Date   time.Time       `json:"date" db:"date"`
	Close  decimal.Decimal `json:"close" db:"close"`
}

// Key identifies the record within the store.
func (p PriceRecord) Key() PriceKey {
	return PriceKey{Ticker: p.Ticker, Date: p.Date.Format(time.DateOnly)}
}

type PriceKey struct {
	Ticker string
	Date   string
}

// TickerStat describes what the store holds for one ticker.
type TickerStat struct {
	Ticker    string    `json:"ticker" db:"ticker"`
	Records   int64     `json:"records" db:"records"`
	FirstDate time.Time `json:"first_date" db:"first_date"`
	LastDate  time.Time `json:"last_date" db:"last_date"`
}
