package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
	SignalHold SignalType = "HOLD"
)

// SignalEntry is the derived label for one PriceRecord.
//
// ChangePct is nil on the first day of a series. DropPct is set on BUY days,
// ReturnPct on SELL days (realized return against the paired BUY close).
type SignalEntry struct {
	Ticker    string           `json:"ticker"`
	Date      time.Time        `json:"date"`
	Close     decimal.Decimal  `json:"close"`
	Signal    SignalType       `json:"signal"`
	ChangePct *decimal.Decimal `json:"change_pct,omitempty"`
	DropPct   *decimal.Decimal `json:"drop_pct,omitempty"`
	ReturnPct *decimal.Decimal `json:"return_pct,omitempty"`
}

// SignalSummary aggregates one series of SignalEntry.
type SignalSummary struct {
	TotalDays        int             `json:"total_days"`
	BuySignals       int             `json:"buy_signals"`
	SellSignals      int             `json:"sell_signals"`
	HoldSignals      int             `json:"hold_signals"`
	SuccessfulTrades int             `json:"successful_trades"`
	SuccessRate      decimal.Decimal `json:"success_rate"`
	AvgDropPct       decimal.Decimal `json:"avg_drop_pct"`
	MaxDropPct       decimal.Decimal `json:"max_drop_pct"`
	MinDropPct       decimal.Decimal `json:"min_drop_pct"`
	AvgReturnPct     decimal.Decimal `json:"avg_return_pct"`
}

// TickerHistory is the full date-ordered view of one ticker.
type TickerHistory struct {
	Ticker  string        `json:"ticker"`
	Signals []SignalEntry `json:"signals"`
	Summary SignalSummary `json:"summary"`
}

// TickerOverview is a dashboard row.
type TickerOverview struct {
	TickerStat
	LatestSignal SignalType      `json:"latest_signal"`
	LatestClose  decimal.Decimal `json:"latest_close"`
}

// Dashboard is the landing page projection.
type Dashboard struct {
	Tickers       []TickerOverview `json:"tickers"`
	RecentSignals []SignalEntry    `json:"recent_signals"`
	TotalTickers  int              `json:"total_tickers"`
	TotalPrices   int64            `json:"total_prices"`
	BuyDays       int              `json:"buy_days"`
	SellDays      int              `json:"sell_days"`
	HoldDays      int              `json:"hold_days"`
}

// RecentData backs chart endpoints: the tail window of a ticker.
type RecentData struct {
	Ticker  string        `json:"ticker"`
	From    time.Time     `json:"from"`
	To      time.Time     `json:"to"`
	Prices  []PriceRecord `json:"prices"`
	Signals []SignalEntry `json:"signals"`
}
