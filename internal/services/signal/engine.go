// Package signal labels a single ticker's daily closes with BUY, SELL or HOLD.
//
// A close that is at least 3% below the previous close is a BUY. The row five
// positions later is the SELL for that BUY. While a SELL is pending further
// drops are ignored, and a due SELL always wins over a BUY on the same row.
package signal

import (
	"github.com/shopspring/decimal"

	"StockTracker/internal/domain/models"
)

const (
	// HoldPeriod is the number of rows between a BUY and its SELL.
	HoldPeriod = 5
)

var (
	// BuyThreshold is the inclusive day-over-day change that triggers a BUY.
	BuyThreshold = decimal.RequireFromString("-0.03")

	hundred = decimal.NewFromInt(100)
)

const pctPlaces = 2

// Compute labels prices, which must belong to one ticker and be sorted by date.
// The result has the same length and order as the input.
func Compute(prices []models.PriceRecord) []models.SignalEntry {
	out := make([]models.SignalEntry, len(prices))

	sellAt := -1
	var buyClose decimal.Decimal

	for i, p := range prices {
		e := models.SignalEntry{
			Ticker: p.Ticker,
			Date:   p.Date,
			Close:  p.Close,
			Signal: models.SignalHold,
		}

		if i == 0 {
			out[i] = e
			continue
		}

		prev := prices[i-1].Close
		diff := p.Close.Sub(prev)
		change := diff.Div(prev).Mul(hundred).Round(pctPlaces)
		e.ChangePct = &change

		switch {
		case i == sellAt:
			e.Signal = models.SignalSell
			ret := p.Close.Sub(buyClose).Div(buyClose).Mul(hundred).Round(pctPlaces)
			e.ReturnPct = &ret
			sellAt = -1
		case sellAt >= 0:
			// pending SELL, drops are ignored until it fires
		case isDrop(diff, prev):
			e.Signal = models.SignalBuy
			drop := change.Neg()
			e.DropPct = &drop
			sellAt = i + HoldPeriod
			buyClose = p.Close
		}

		out[i] = e
	}

	return out
}

// isDrop reports diff/prev <= -3% without dividing, so the boundary is exact.
func isDrop(diff, prev decimal.Decimal) bool {
	return diff.LessThanOrEqual(BuyThreshold.Mul(prev))
}

// Summarize aggregates a computed series. A trade is completed when its SELL
// was emitted, and successful when the realized return is positive.
func Summarize(entries []models.SignalEntry) models.SignalSummary {
	s := models.SignalSummary{TotalDays: len(entries)}

	var (
		dropSum, returnSum decimal.Decimal
		drops              int
	)

	for _, e := range entries {
		switch e.Signal {
		case models.SignalBuy:
			s.BuySignals++
			if e.DropPct == nil {
				continue
			}
			d := *e.DropPct
			dropSum = dropSum.Add(d)
			if drops == 0 || d.GreaterThan(s.MaxDropPct) {
				s.MaxDropPct = d
			}
			if drops == 0 || d.LessThan(s.MinDropPct) {
				s.MinDropPct = d
			}
			drops++
		case models.SignalSell:
			s.SellSignals++
			if e.ReturnPct == nil {
				continue
			}
			returnSum = returnSum.Add(*e.ReturnPct)
			if e.ReturnPct.IsPositive() {
				s.SuccessfulTrades++
			}
		default:
			s.HoldSignals++
		}
	}

	if drops > 0 {
		s.AvgDropPct = dropSum.Div(decimal.NewFromInt(int64(drops))).Round(pctPlaces)
	}
	if s.SellSignals > 0 {
		n := decimal.NewFromInt(int64(s.SellSignals))
		s.AvgReturnPct = returnSum.Div(n).Round(pctPlaces)
		s.SuccessRate = SuccessRate(s.SuccessfulTrades, s.SellSignals)
	}

	return s
}

// SuccessRate is successful/completed as a percentage with two decimals.
func SuccessRate(successful, completed int) decimal.Decimal {
	if completed == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(successful)).
		Mul(hundred).
		Div(decimal.NewFromInt(int64(completed))).
		Round(pctPlaces)
}

// Latest returns the last entry of a series, if any.
func Latest(entries []models.SignalEntry) (models.SignalEntry, bool) {
	if len(entries) == 0 {
		return models.SignalEntry{}, false
	}
	return entries[len(entries)-1], true
}
