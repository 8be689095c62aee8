package analysis

import (
	"strings"
	"testing"

	"buyside-ai/models"
)

func sampleTable() *models.MetricsTable {
	return &models.MetricsTable{Rows: []models.TickerMetrics{
		{
			Ticker:           "AAA",
			CumulativeReturn: -1,
			MeanDailyReturn:  0,
			StdDeviation:     14.14,
			Variance:         0.02,
			MaxDrawdown:      -10,
		},
		{
			Ticker:           "BBB",
			CumulativeReturn: 20,
			MeanDailyReturn:  11.67,
			StdDeviation:     30.64,
			Variance:         0.09,
			MaxDrawdown:      -10,
			DividendYield:    models.Float(1.5),
			ExpenseRatio:     models.Float(0.09),
		},
	}}
}

func TestMetricsToCSV(t *testing.T) {
	out, err := MetricsToCSV(sampleTable())
	if err != nil {
		t.Fatalf("MetricsToCSV() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3:\n%s", len(lines), out)
	}

	wantHeader := "Ticker,Cumulative Return (%),Mean Daily Return (%),Std Deviation (%),Variance,Max Drawdown (%),Dividend Yield (%),Expense Ratio (%)"
	if lines[0] != wantHeader {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "AAA,-1.0,0.0,14.14,0.02,-10.0,," {
		t.Errorf("AAA row = %q", lines[1])
	}
	if lines[2] != "BBB,20.0,11.67,30.64,0.09,-10.0,1.5,0.09" {
		t.Errorf("BBB row = %q", lines[2])
	}
}

func TestMetricsCSV_RoundTrip(t *testing.T) {
	original := sampleTable()

	out, err := MetricsToCSV(original)
	if err != nil {
		t.Fatalf("MetricsToCSV() error = %v", err)
	}
	parsed, err := ParseMetricsCSV(out)
	if err != nil {
		t.Fatalf("ParseMetricsCSV() error = %v", err)
	}

	if parsed.Len() != original.Len() {
		t.Fatalf("rows = %d, want %d", parsed.Len(), original.Len())
	}
	for i, want := range original.Rows {
		got := parsed.Rows[i]
		if got.Ticker != want.Ticker {
			t.Errorf("row %d ticker = %q, want %q", i, got.Ticker, want.Ticker)
		}
		gv, wv := got.Values(), want.Values()
		for k := range wv {
			switch {
			case wv[k] == nil && gv[k] != nil:
				t.Errorf("%s %s = %v, want null", want.Ticker, models.MetricColumns[k], *gv[k])
			case wv[k] != nil && (gv[k] == nil || *gv[k] != *wv[k]):
				t.Errorf("%s %s = %v, want %v", want.Ticker, models.MetricColumns[k], gv[k], *wv[k])
			}
		}
	}
}

func TestParseMetricsCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"no ticker column", "Name,Variance\nA,1\n"},
		{"missing metric column", "Ticker,Variance\nA,1\n"},
		{"bad number", "Ticker,Cumulative Return (%),Mean Daily Return (%),Std Deviation (%),Variance,Max Drawdown (%),Dividend Yield (%),Expense Ratio (%)\nA,x,0,0,0,0,,\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseMetricsCSV(tt.in); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   *float64
		want string
	}{
		{nil, ""},
		{models.Float(20), "20.0"},
		{models.Float(-1), "-1.0"},
		{models.Float(0), "0.0"},
		{models.Float(11.67), "11.67"},
		{models.Float(0.5), "0.5"},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.in); got != tt.want {
			t.Errorf("FormatValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
