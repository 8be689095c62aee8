package models

import (
	"math"
	"sort"
	"time"
)

// PricePoint is one daily closing price
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// PriceSeries is the raw daily history for one symbol as returned by a provider
type PriceSeries struct {
	Symbol string       `json:"symbol"`
	Points []PricePoint `json:"points"`
}

// PriceTable holds closing prices indexed by trading date (rows) and ticker (columns).
// Every cell is populated; dates missing a price for any ticker are not present.
type PriceTable struct {
	Dates   []time.Time `json:"dates"`
	Tickers []string    `json:"tickers"`
	// Closes[i][j] is the close of Tickers[j] on Dates[i]
	Closes [][]float64 `json:"closes"`
}

// NewPriceTable joins per-symbol series on date. Symbols without any usable
// price are left out, as are dates that are not present for every kept symbol.
// Column order follows the order of the input series.
func NewPriceTable(series []PriceSeries) *PriceTable {
	table := &PriceTable{}

	byTicker := make([]map[time.Time]float64, 0, len(series))
	seen := make(map[string]bool)
	for _, s := range series {
		if s.Symbol == "" || seen[s.Symbol] {
			continue
		}
		closes := make(map[time.Time]float64, len(s.Points))
		for _, p := range s.Points {
			if math.IsNaN(p.Close) || math.IsInf(p.Close, 0) || p.Close <= 0 {
				continue
			}
			closes[TradingDay(p.Date)] = p.Close
		}
		if len(closes) == 0 {
			continue
		}
		seen[s.Symbol] = true
		table.Tickers = append(table.Tickers, s.Symbol)
		byTicker = append(byTicker, closes)
	}

	if len(byTicker) == 0 {
		return table
	}

	for d := range byTicker[0] {
		inAll := true
		for _, closes := range byTicker[1:] {
			if _, ok := closes[d]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			table.Dates = append(table.Dates, d)
		}
	}
	sort.Slice(table.Dates, func(i, j int) bool { return table.Dates[i].Before(table.Dates[j]) })

	table.Closes = make([][]float64, len(table.Dates))
	for i, d := range table.Dates {
		row := make([]float64, len(byTicker))
		for j, closes := range byTicker {
			row[j] = closes[d]
		}
		table.Closes[i] = row
	}

	return table
}

// TradingDay truncates a timestamp to its calendar date in UTC
func TradingDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Len returns the number of rows
func (t *PriceTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Dates)
}

// IsEmpty reports whether the table holds no prices at all
func (t *PriceTable) IsEmpty() bool {
	return t == nil || len(t.Tickers) == 0 || len(t.Dates) == 0
}

// Index returns the column index of a ticker, or -1
func (t *PriceTable) Index(ticker string) int {
	for j, tk := range t.Tickers {
		if tk == ticker {
			return j
		}
	}
	return -1
}

// Column returns a copy of one ticker's closes in date order, or nil if the ticker is absent
func (t *PriceTable) Column(ticker string) []float64 {
	j := t.Index(ticker)
	if j < 0 {
		return nil
	}
	return t.ColumnAt(j)
}

// ColumnAt returns a copy of column j
func (t *PriceTable) ColumnAt(j int) []float64 {
	col := make([]float64, len(t.Closes))
	for i, row := range t.Closes {
		col[i] = row[j]
	}
	return col
}
