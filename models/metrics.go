package models

// Column headers of the metrics table, in display and CSV order
const (
	ColumnTicker           = "Ticker"
	ColumnCumulativeReturn = "Cumulative Return (%)"
	ColumnMeanDailyReturn  = "Mean Daily Return (%)"
	ColumnStdDeviation     = "Std Deviation (%)"
	ColumnVariance         = "Variance"
	ColumnMaxDrawdown      = "Max Drawdown (%)"
	ColumnDividendYield    = "Dividend Yield (%)"
	ColumnExpenseRatio     = "Expense Ratio (%)"
)

// MetricColumns lists the metric headers (without the ticker column)
var MetricColumns = []string{
	ColumnCumulativeReturn,
	ColumnMeanDailyReturn,
	ColumnStdDeviation,
	ColumnVariance,
	ColumnMaxDrawdown,
	ColumnDividendYield,
	ColumnExpenseRatio,
}

// TickerMetrics holds the descriptive statistics for one ticker.
// Percent fields are already scaled by 100; all values are rounded to 2 decimals.
type TickerMetrics struct {
	Ticker           string   `json:"ticker"`
	CumulativeReturn float64  `json:"cumulative_return_pct"`
	MeanDailyReturn  float64  `json:"mean_daily_return_pct"`
	StdDeviation     float64  `json:"std_deviation_pct"`
	Variance         float64  `json:"variance"`
	MaxDrawdown      float64  `json:"max_drawdown_pct"`
	DividendYield    *float64 `json:"dividend_yield_pct"`
	ExpenseRatio     *float64 `json:"expense_ratio_pct"`
}

// Values returns the metric cells in MetricColumns order. A nil entry is a null cell.
func (m TickerMetrics) Values() []*float64 {
	return []*float64{
		Float(m.CumulativeReturn),
		Float(m.MeanDailyReturn),
		Float(m.StdDeviation),
		Float(m.Variance),
		Float(m.MaxDrawdown),
		m.DividendYield,
		m.ExpenseRatio,
	}
}

// SetValues assigns metric cells in MetricColumns order. Nil required fields become zero.
func (m *TickerMetrics) SetValues(values []*float64) {
	get := func(i int) float64 {
		if i < len(values) && values[i] != nil {
			return *values[i]
		}
		return 0
	}
	m.CumulativeReturn = get(0)
	m.MeanDailyReturn = get(1)
	m.StdDeviation = get(2)
	m.Variance = get(3)
	m.MaxDrawdown = get(4)
	m.DividendYield, m.ExpenseRatio = nil, nil
	if len(values) > 5 {
		m.DividendYield = values[5]
	}
	if len(values) > 6 {
		m.ExpenseRatio = values[6]
	}
}

// MetricsTable holds one row per ticker, in the price table's column order
type MetricsTable struct {
	Rows []TickerMetrics `json:"rows"`
}

// Len returns the number of rows
func (t *MetricsTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Tickers returns the tickers in row order
func (t *MetricsTable) Tickers() []string {
	out := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Ticker
	}
	return out
}

// Get returns the row for a ticker
func (t *MetricsTable) Get(ticker string) (TickerMetrics, bool) {
	for _, r := range t.Rows {
		if r.Ticker == ticker {
			return r, true
		}
	}
	return TickerMetrics{}, false
}

// Float returns a pointer to v
func Float(v float64) *float64 {
	return &v
}
