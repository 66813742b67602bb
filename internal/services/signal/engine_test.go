package signal

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockTracker/internal/domain/models"
)

func series(closes ...string) []models.PriceRecord {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.PriceRecord, len(closes))
	for i, c := range closes {
		out[i] = models.PriceRecord{
			Ticker: "TEST-1",
			Date:   start.AddDate(0, 0, i),
			Close:  decimal.RequireFromString(c),
		}
	}
	return out
}

func labels(entries []models.SignalEntry) []models.SignalType {
	out := make([]models.SignalType, len(entries))
	for i, e := range entries {
		out[i] = e.Signal
	}
	return out
}

const (
	B = models.SignalBuy
	S = models.SignalSell
	H = models.SignalHold
)

func TestComputeEmpty(t *testing.T) {
	assert.Empty(t, Compute(nil))
}

func TestComputeSinglePointIsHold(t *testing.T) {
	out := Compute(series("100"))
	require.Len(t, out, 1)
	assert.Equal(t, H, out[0].Signal)
	assert.Nil(t, out[0].ChangePct)
}

func TestComputeExampleUpload(t *testing.T) {
	out := Compute(series("100.00", "103.00", "99.91"))

	assert.Equal(t, []models.SignalType{H, H, B}, labels(out))
	require.NotNil(t, out[2].DropPct)
	assert.True(t, out[2].DropPct.Equal(decimal.NewFromInt(3)), out[2].DropPct.String())
	assert.True(t, out[1].ChangePct.Equal(decimal.NewFromInt(3)))
}

func TestComputeBoundary(t *testing.T) {
	cases := []struct {
		name string
		next string
		want models.SignalType
	}{
		{"exactly three percent", "97", B},
		{"just under three percent", "97.01", H},
		{"more than three percent", "90", B},
		{"rise", "110", H},
		{"flat", "100", H},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := Compute(series("100", tc.next))
			assert.Equal(t, tc.want, out[1].Signal)
		})
	}
}

func TestComputeSellFiveRowsAfterBuy(t *testing.T) {
	out := Compute(series("100", "96", "97", "98", "99", "100", "101"))

	assert.Equal(t, []models.SignalType{H, B, H, H, H, H, S}, labels(out))
	require.NotNil(t, out[6].ReturnPct)
	// (101-96)/96 = 5.208...
	assert.Equal(t, "5.21", out[6].ReturnPct.StringFixed(2))
}

func TestComputeBuyOnFirstChangeSellsOnSixthDay(t *testing.T) {
	// BUY on day 2 (index 1), SELL on day 7 (index 6)
	six := Compute(series("100", "90", "91", "92", "93", "94", "95"))
	assert.Equal(t, S, six[6].Signal)

	short := Compute(series("100", "90", "91", "92", "93", "94"))
	assert.NotContains(t, labels(short), S)
}

func TestComputeBuyNearEndNeverSells(t *testing.T) {
	out := Compute(series("100", "101", "102", "90", "91"))
	assert.Equal(t, []models.SignalType{H, H, H, B, H}, labels(out))
}

func TestComputeIgnoresDropsWhileSellPending(t *testing.T) {
	// every day drops 5%, only the first one is a BUY until its SELL fires
	closes := []string{"100", "95", "90.25", "85.7375", "81.450625", "77.37809375", "73.5091890625"}
	out := Compute(series(closes...))
	assert.Equal(t, []models.SignalType{H, B, H, H, H, H, S}, labels(out))
}

func TestComputeSellTakesPriorityOverBuy(t *testing.T) {
	// index 6 is both the due SELL and a 10% drop
	out := Compute(series("100", "90", "91", "92", "93", "94", "80", "70"))

	assert.Equal(t, S, out[6].Signal)
	assert.Nil(t, out[6].DropPct)
	// the next drop can start a new trade
	assert.Equal(t, B, out[7].Signal)
}

func TestComputeIsPerSeriesState(t *testing.T) {
	first := Compute(series("100", "90", "91"))
	second := Compute(series("100", "100", "100", "100", "100", "100"))

	assert.Equal(t, B, first[1].Signal)
	assert.Equal(t, []models.SignalType{H, H, H, H, H, H}, labels(second))
}

func TestComputeDeterministic(t *testing.T) {
	in := series("100", "96", "97", "92", "93", "99", "100", "95", "95")
	assert.Equal(t, Compute(in), Compute(in))
}

func TestComputeBuyMatchesRuleWhenNothingPending(t *testing.T) {
	in := series("50", "48", "47", "46", "45", "44", "43", "41", "40", "38.8", "38", "37")
	out := Compute(in)

	pending := -1
	threshold := decimal.RequireFromString("-0.03")
	for i := 1; i < len(in); i++ {
		change := in[i].Close.Sub(in[i-1].Close).Div(in[i-1].Close)
		switch {
		case i == pending:
			assert.Equal(t, S, out[i].Signal, "index %d", i)
			pending = -1
		case pending >= 0:
			assert.Equal(t, H, out[i].Signal, "index %d", i)
		case change.LessThanOrEqual(threshold):
			assert.Equal(t, B, out[i].Signal, "index %d", i)
			pending = i + HoldPeriod
		default:
			assert.Equal(t, H, out[i].Signal, "index %d", i)
		}
	}
}

func TestSummarize(t *testing.T) {
	// two trades: 96 -> 101 (win), 90 -> 85 (loss)
	out := Compute(series(
		"100", "96", "97", "98", "99", "100", "101",
		"90", "89", "88", "87", "86", "85",
	))
	require.Equal(t, []models.SignalType{H, B, H, H, H, H, S, B, H, H, H, H, S}, labels(out))

	s := Summarize(out)
	assert.Equal(t, 13, s.TotalDays)
	assert.Equal(t, 2, s.BuySignals)
	assert.Equal(t, 2, s.SellSignals)
	assert.Equal(t, 9, s.HoldSignals)
	assert.Equal(t, 1, s.SuccessfulTrades)
	assert.Equal(t, "50.00", s.SuccessRate.StringFixed(2))
	// drops: 4.00 and 10.89
	assert.Equal(t, "10.89", s.MaxDropPct.StringFixed(2))
	assert.Equal(t, "4.00", s.MinDropPct.StringFixed(2))
	assert.Equal(t, "7.45", s.AvgDropPct.StringFixed(2))
}

func TestSummarizeNoTrades(t *testing.T) {
	s := Summarize(Compute(series("100", "101")))
	assert.Equal(t, 2, s.HoldSignals)
	assert.True(t, s.SuccessRate.IsZero())
	assert.True(t, s.AvgDropPct.IsZero())
}

func TestSuccessRate(t *testing.T) {
	assert.Equal(t, "66.67", SuccessRate(2, 3).StringFixed(2))
	assert.True(t, SuccessRate(1, 0).IsZero())
}

func TestLatest(t *testing.T) {
	_, ok := Latest(nil)
	assert.False(t, ok)

	e, ok := Latest(Compute(series("100", "90")))
	require.True(t, ok)
	assert.Equal(t, B, e.Signal)
}
