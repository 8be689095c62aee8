package charts

import (
	"fmt"
	"time"

	"buyside-ai/models"
)

// Prepare resamples prices to the period (last observation in each period,
// labelled with the period's end date) and applies the mode transformation.
//
// ModeNormalized divides every column by its first value, so the first row is 1.0.
// ModePercentChange reports period-over-period change in percent and drops the
// first row.
func Prepare(prices *models.PriceTable, period models.Period, mode models.Mode) (*models.ChartSeries, error) {
	if prices.IsEmpty() {
		return nil, models.ErrNoData
	}

	dates, rows, err := resample(prices, period)
	if err != nil {
		return nil, err
	}

	series := &models.ChartSeries{
		Period:  period,
		Mode:    mode,
		Tickers: append([]string(nil), prices.Tickers...),
	}

	switch mode {
	case models.ModeNormalized:
		base := rows[0]
		series.Dates = dates
		series.Values = make([][]float64, len(rows))
		for i, row := range rows {
			out := make([]float64, len(row))
			for j, v := range row {
				out[j] = v / base[j]
			}
			series.Values[i] = out
		}
	case models.ModePercentChange:
		series.Dates = dates[1:]
		series.Values = make([][]float64, 0, len(rows)-1)
		for i := 1; i < len(rows); i++ {
			out := make([]float64, len(rows[i]))
			for j, v := range rows[i] {
				out[j] = (v/rows[i-1][j] - 1) * 100
			}
			series.Values = append(series.Values, out)
		}
	default:
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidMode, mode)
	}

	return series, nil
}

func resample(prices *models.PriceTable, period models.Period) ([]time.Time, [][]float64, error) {
	var bucket func(time.Time) time.Time
	switch period {
	case models.PeriodNone:
		return append([]time.Time(nil), prices.Dates...), prices.Closes, nil
	case models.PeriodMonthly:
		bucket = monthEnd
	case models.PeriodQuarterly:
		bucket = quarterEnd
	case models.PeriodYearly:
		bucket = yearEnd
	default:
		return nil, nil, fmt.Errorf("%w: %q", models.ErrInvalidPeriod, period)
	}

	var (
		dates []time.Time
		rows  [][]float64
	)
	// Dates are sorted, so each period is one contiguous run; keep its last row.
	for i, d := range prices.Dates {
		label := bucket(d)
		if n := len(dates); n > 0 && dates[n-1].Equal(label) {
			rows[n-1] = prices.Closes[i]
			continue
		}
		dates = append(dates, label)
		rows = append(rows, prices.Closes[i])
	}
	return dates, rows, nil
}

func monthEnd(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC)
}

func quarterEnd(t time.Time) time.Time {
	lastMonth := ((int(t.Month())-1)/3 + 1) * 3
	return time.Date(t.Year(), time.Month(lastMonth)+1, 0, 0, 0, 0, 0, time.UTC)
}

func yearEnd(t time.Time) time.Time {
	return time.Date(t.Year(), time.December, 31, 0, 0, 0, 0, time.UTC)
}
