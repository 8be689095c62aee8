package models

import (
	"fmt"
	"strings"
	"time"
)

// Period is the resampling interval for chart data
type Period string

const (
	PeriodNone      Period = "none"
	PeriodMonthly   Period = "monthly"
	PeriodQuarterly Period = "quarterly"
	PeriodYearly    Period = "yearly"
)

// ParsePeriod accepts the canonical names and the UI labels
// (Cumulative, Monthly, Quarterly, Yearly). Empty means no resampling.
func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "cumulative", "daily":
		return PeriodNone, nil
	case "monthly", "month", "m":
		return PeriodMonthly, nil
	case "quarterly", "quarter", "q":
		return PeriodQuarterly, nil
	case "yearly", "annual", "year", "y", "a":
		return PeriodYearly, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
}

// Mode is the chart value transformation
type Mode string

const (
	ModeNormalized    Mode = "normalized"
	ModePercentChange Mode = "percent_change"
)

// ParseMode accepts the canonical names and the UI labels (Normalized, Return).
// Empty means normalized.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normalized", "normalised", "performance":
		return ModeNormalized, nil
	case "percent_change", "pct_change", "return", "returns":
		return ModePercentChange, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// ChartType selects how a series is drawn
type ChartType string

const (
	ChartLine ChartType = "line"
	ChartBar  ChartType = "bar"
)

// ParseChartType parses "line" or "bar"; empty means line
func ParseChartType(s string) (ChartType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "line":
		return ChartLine, nil
	case "bar":
		return ChartBar, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidChartType, s)
}

// ChartSeries is chart-ready data: dates by tickers after resampling and transformation
type ChartSeries struct {
	Period  Period      `json:"period"`
	Mode    Mode        `json:"mode"`
	Dates   []time.Time `json:"dates"`
	Tickers []string    `json:"tickers"`
	// Values[i][j] is the value of Tickers[j] at Dates[i]
	Values [][]float64 `json:"values"`
}

// Title returns the chart heading for the series mode
func (c *ChartSeries) Title() string {
	if c.Mode == ModePercentChange {
		return "Return Chart"
	}
	return "Performance Chart"
}

// Len returns the number of rows
func (c *ChartSeries) Len() int {
	return len(c.Dates)
}
