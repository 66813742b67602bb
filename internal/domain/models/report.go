package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReportRow is the per-ticker line of a report.
type ReportRow struct {
	Ticker           string          `json:"ticker"`
	TotalSignals     int             `json:"total_signals"`
	BuySignals       int             `json:"buy_signals"`
	SellSignals      int             `json:"sell_signals"`
	SuccessfulTrades int             `json:"successful_trades"`
	SuccessRate      decimal.Decimal `json:"success_rate"`
}

// Report is a persisted snapshot of signal outcomes over a date range.
type Report struct {
	ID               string          `json:"id" db:"id"`
	Title            string          `json:"title" db:"title"`
	GeneratedAt      time.Time       `json:"generated_at" db:"generated_at"`
	StartDate        time.Time       `json:"start_date" db:"start_date"`
	EndDate          time.Time       `json:"end_date" db:"end_date"`
	Rows             []ReportRow     `json:"rows" db:"-"`
	TotalSignals     int             `json:"total_signals" db:"total_signals"`
	TotalBuys        int             `json:"total_buys" db:"total_buys"`
	TotalSells       int             `json:"total_sells" db:"total_sells"`
	SuccessfulTrades int             `json:"successful_trades" db:"successful_trades"`
	SuccessRate      decimal.Decimal `json:"success_rate" db:"success_rate"`
}
