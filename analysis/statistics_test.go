package analysis

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"buyside-ai/models"
)

type mockInfoLookup struct {
	GetTickerInfoFunc func(ctx context.Context, symbol string) (*models.TickerInfo, error)
	calls             []string
}

func (m *mockInfoLookup) GetTickerInfo(ctx context.Context, symbol string) (*models.TickerInfo, error) {
	m.calls = append(m.calls, symbol)
	if m.GetTickerInfoFunc != nil {
		return m.GetTickerInfoFunc(ctx, symbol)
	}
	return nil, nil
}

func priceTable(cols map[string][]float64, order ...string) *models.PriceTable {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := make([]models.PriceSeries, 0, len(order))
	for _, ticker := range order {
		s := models.PriceSeries{Symbol: ticker}
		for i, c := range cols[ticker] {
			s.Points = append(s.Points, models.PricePoint{Date: start.AddDate(0, 0, i), Close: c})
		}
		series = append(series, s)
	}
	return models.NewPriceTable(series)
}

func TestComputeStatistics_TwoTickers(t *testing.T) {
	prices := priceTable(map[string][]float64{
		"AAA": {100, 110, 99},
		"BBB": {50, 45, 60},
	}, "AAA", "BBB")

	table, err := ComputeStatistics(context.Background(), prices, nil)
	if err != nil {
		t.Fatalf("ComputeStatistics() error = %v", err)
	}
	if table.Len() != 2 {
		t.Fatalf("rows = %d, want 2", table.Len())
	}

	aaa, _ := table.Get("AAA")
	bbb, _ := table.Get("BBB")

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"AAA cumulative", aaa.CumulativeReturn, -1.0},
		{"AAA mean", aaa.MeanDailyReturn, 0},
		{"AAA std", aaa.StdDeviation, 14.14},
		{"AAA variance", aaa.Variance, 0.02},
		{"AAA drawdown", aaa.MaxDrawdown, -10.0},
		{"BBB cumulative", bbb.CumulativeReturn, 20.0},
		{"BBB mean", bbb.MeanDailyReturn, 11.67},
		{"BBB std", bbb.StdDeviation, 30.64},
		{"BBB variance", bbb.Variance, 0.09},
		{"BBB drawdown", bbb.MaxDrawdown, -10.0},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}

	if aaa.DividendYield != nil || aaa.ExpenseRatio != nil {
		t.Error("without an info lookup dividend and expense should be nil")
	}
}

func TestComputeStatistics_RowPerTicker(t *testing.T) {
	prices := priceTable(map[string][]float64{
		"A": {1, 2, 3, 4},
		"B": {4, 3, 2, 1},
		"C": {2, 2, 2, 2},
	}, "C", "A", "B")

	table, err := ComputeStatistics(context.Background(), prices, nil)
	if err != nil {
		t.Fatalf("ComputeStatistics() error = %v", err)
	}

	got := table.Tickers()
	want := []string{"C", "A", "B"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Tickers() = %v, want %v", got, want)
		}
	}
}

func TestComputeStatistics_InsufficientData(t *testing.T) {
	prices := priceTable(map[string][]float64{"AAA": {100}}, "AAA")

	_, err := ComputeStatistics(context.Background(), prices, nil)
	if !errors.Is(err, models.ErrInsufficientData) {
		t.Errorf("error = %v, want ErrInsufficientData", err)
	}

	_, err = ComputeStatistics(context.Background(), models.NewPriceTable(nil), nil)
	if !errors.Is(err, models.ErrNoData) {
		t.Errorf("error = %v, want ErrNoData", err)
	}
}

func TestComputeStatistics_TwoRowsHasZeroSpread(t *testing.T) {
	prices := priceTable(map[string][]float64{"AAA": {100, 105}}, "AAA")

	table, err := ComputeStatistics(context.Background(), prices, nil)
	if err != nil {
		t.Fatalf("ComputeStatistics() error = %v", err)
	}
	row := table.Rows[0]
	if row.StdDeviation != 0 || row.Variance != 0 {
		t.Errorf("single return should have zero spread, got std=%v var=%v", row.StdDeviation, row.Variance)
	}
	if row.MeanDailyReturn != 5 {
		t.Errorf("MeanDailyReturn = %v, want 5", row.MeanDailyReturn)
	}
}

func TestComputeStatistics_InfoLookup(t *testing.T) {
	prices := priceTable(map[string][]float64{
		"SPY":  {100, 101, 102},
		"AAPL": {10, 11, 12},
		"BAD":  {5, 6, 7},
	}, "SPY", "AAPL", "BAD")

	info := &mockInfoLookup{
		GetTickerInfoFunc: func(ctx context.Context, symbol string) (*models.TickerInfo, error) {
			switch symbol {
			case "SPY":
				return &models.TickerInfo{Symbol: symbol, DividendYield: models.Float(0.0123), ExpenseRatio: models.Float(0.000945)}, nil
			case "AAPL":
				return &models.TickerInfo{Symbol: symbol, DividendYield: models.Float(0.0044), ExpenseRatio: models.Float(0)}, nil
			default:
				return nil, errors.New("rate limited")
			}
		},
	}

	table, err := ComputeStatistics(context.Background(), prices, info)
	if err != nil {
		t.Fatalf("ComputeStatistics() error = %v", err)
	}
	if len(info.calls) != 3 {
		t.Errorf("lookups = %v, want one per ticker", info.calls)
	}

	spy, _ := table.Get("SPY")
	if spy.DividendYield == nil || *spy.DividendYield != 1.23 {
		t.Errorf("SPY dividend = %v, want 1.23", spy.DividendYield)
	}
	if spy.ExpenseRatio == nil || *spy.ExpenseRatio != 0.09 {
		t.Errorf("SPY expense = %v, want 0.09", spy.ExpenseRatio)
	}

	aapl, _ := table.Get("AAPL")
	if aapl.DividendYield == nil || *aapl.DividendYield != 0.44 {
		t.Errorf("AAPL dividend = %v, want 0.44", aapl.DividendYield)
	}
	if aapl.ExpenseRatio != nil {
		t.Errorf("zero expense ratio should be nil, got %v", *aapl.ExpenseRatio)
	}

	bad, _ := table.Get("BAD")
	if bad.DividendYield != nil || bad.ExpenseRatio != nil {
		t.Error("failed lookup should leave both fields nil")
	}
	if bad.CumulativeReturn != 40 {
		t.Errorf("BAD cumulative = %v, want 40", bad.CumulativeReturn)
	}
}

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name   string
		closes []float64
		want   float64
	}{
		{"non-decreasing", []float64{1, 1, 2, 3, 3}, 0},
		{"single", []float64{5}, 0},
		{"empty", nil, 0},
		{"dip and recover", []float64{100, 110, 99, 120}, -0.1},
		{"deepest of two", []float64{100, 80, 100, 200, 120}, -0.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaxDrawdown(tt.closes)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("MaxDrawdown(%v) = %v, want %v", tt.closes, got, tt.want)
			}
			if got > 0 {
				t.Errorf("drawdown must never be positive, got %v", got)
			}
		})
	}
}

func TestReturns(t *testing.T) {
	got := Returns([]float64{100, 110, 99})
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if math.Abs(got[0]-0.1) > 1e-12 || math.Abs(got[1]+0.1) > 1e-12 {
		t.Errorf("Returns() = %v", got)
	}
	if Returns([]float64{1}) != nil {
		t.Error("Returns of one close should be nil")
	}
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{1.234, 1.23},
		{1.236, 1.24},
		{0.125, 0.12},
		{0.375, 0.38},
		{-0.125, -0.12},
		{2.675, 2.68},
		{1.005, 1},
		{1.015, 1.01},
		{-1.015, -1.01},
		{-1.0000000000000009, -1},
		{-0.001, 0},
		{math.NaN(), 0},
		{math.Inf(1), 0},
	}
	for _, tt := range tests {
		if got := Round2(tt.in); got != tt.want {
			t.Errorf("Round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if math.Signbit(Round2(-0.001)) {
		t.Error("Round2 should not return negative zero")
	}
}
