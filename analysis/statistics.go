package analysis

import (
	"context"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"buyside-ai/models"
	"buyside-ai/observability"
)

// InfoLookup provides secondary per-ticker data (dividend yield, expense ratio)
type InfoLookup interface {
	GetTickerInfo(ctx context.Context, symbol string) (*models.TickerInfo, error)
}

// ComputeStatistics derives one metrics row per ticker column of prices.
//
// Returns are simple period-over-period changes. Mean and standard deviation
// of returns are reported in percent, variance is left unscaled. Standard
// deviation and variance use the sample (N-1) estimator. Dividend yield and
// expense ratio come from info; a failed or empty lookup leaves that ticker's
// fields nil without affecting the others. info may be nil.
func ComputeStatistics(ctx context.Context, prices *models.PriceTable, info InfoLookup) (*models.MetricsTable, error) {
	if prices.IsEmpty() {
		return nil, models.ErrNoData
	}
	if prices.Len() < 2 {
		return nil, fmt.Errorf("%w: got %d", models.ErrInsufficientData, prices.Len())
	}

	table := &models.MetricsTable{Rows: make([]models.TickerMetrics, 0, len(prices.Tickers))}

	for j, ticker := range prices.Tickers {
		row := tickerMetrics(ticker, prices.ColumnAt(j))

		if info != nil {
			row.DividendYield, row.ExpenseRatio = lookupInfo(ctx, info, ticker)
		}

		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

func tickerMetrics(ticker string, closes []float64) models.TickerMetrics {
	returns := Returns(closes)

	var mean, std, variance float64
	if len(returns) > 0 {
		mean = stat.Mean(returns, nil)
	}
	if len(returns) > 1 {
		std = stat.StdDev(returns, nil)
		variance = stat.Variance(returns, nil)
	}

	return models.TickerMetrics{
		Ticker:           ticker,
		CumulativeReturn: Round2((closes[len(closes)-1]/closes[0] - 1) * 100),
		MeanDailyReturn:  Round2(mean * 100),
		StdDeviation:     Round2(std * 100),
		Variance:         Round2(variance),
		MaxDrawdown:      Round2(MaxDrawdown(closes) * 100),
	}
}

func lookupInfo(ctx context.Context, info InfoLookup, ticker string) (dividend, expense *float64) {
	ti, err := info.GetTickerInfo(ctx, ticker)
	if err != nil {
		observability.WithSymbol(ticker).Warn("ticker info unavailable", "error", err)
		return nil, nil
	}
	if ti == nil {
		return nil, nil
	}
	return percentOrNil(ti.DividendYield), percentOrNil(ti.ExpenseRatio)
}

// percentOrNil scales a raw ratio to percent. Missing and zero ratios are reported as nil.
func percentOrNil(ratio *float64) *float64 {
	if ratio == nil || *ratio == 0 || math.IsNaN(*ratio) {
		return nil
	}
	return models.Float(Round2(*ratio * 100))
}

// Returns computes simple returns between consecutive closes. The result has len(closes)-1 entries.
func Returns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		out[i-1] = closes[i]/closes[i-1] - 1
	}
	return out
}

// MaxDrawdown returns the deepest fall from a running peak as a non-positive
// fraction (-0.1 is a 10% drawdown). A non-decreasing series returns 0.
func MaxDrawdown(closes []float64) float64 {
	if len(closes) == 0 {
		return 0
	}

	worst := 0.0
	peak := closes[0]
	for _, p := range closes {
		if p > peak {
			peak = p
		}
		if peak > 0 {
			if dd := (p - peak) / peak; dd < worst {
				worst = dd
			}
		}
	}
	return worst
}

// Round2 scales by 100 in float64, rounds half to even and scales back, the
// way numpy.round does: 1.015 becomes 1.01 because 1.015*100 is 101.4999...
// NaN and infinities become 0.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	r := decimal.NewFromFloat(v * 100).RoundBank(0).Shift(-2).InexactFloat64()
	if r == 0 {
		// normalise -0
		return 0
	}
	return r
}
