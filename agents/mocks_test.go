package agents

import (
	"context"
	"sync"
	"time"

	"buyside-ai/models"
	"buyside-ai/services"
)

// mockLLM implements LLMService for testing
type mockLLM struct {
	mu       sync.Mutex
	response string
	err      error
	respond  func(req services.CompletionRequest) (string, error)
	requests []services.CompletionRequest
}

func (m *mockLLM) Complete(ctx context.Context, req services.CompletionRequest) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.respond != nil {
		return m.respond(req)
	}
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *mockLLM) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// mockFetcher implements PriceFetcher from fixed closes per ticker
type mockFetcher struct {
	closes map[string][]float64
	err    error

	gotTickers []string
	gotStart   time.Time
	gotEnd     time.Time
	calls      int
}

func (m *mockFetcher) FetchPrices(ctx context.Context, tickers []string, start, end time.Time) (*models.PriceTable, error) {
	m.calls++
	m.gotTickers = tickers
	m.gotStart = start
	m.gotEnd = end
	if m.err != nil {
		return nil, m.err
	}

	series := make([]models.PriceSeries, 0, len(tickers))
	for _, ticker := range tickers {
		closes, ok := m.closes[ticker]
		if !ok {
			continue
		}
		s := models.PriceSeries{Symbol: ticker}
		for i, c := range closes {
			s.Points = append(s.Points, models.PricePoint{
				Date:  time.Date(2024, 1, 2+i, 0, 0, 0, 0, time.UTC),
				Close: c,
			})
		}
		series = append(series, s)
	}
	return models.NewPriceTable(series), nil
}

// mockInfo implements InfoLookup
type mockInfo struct {
	info map[string]*models.TickerInfo
	err  error
}

func (m *mockInfo) GetTickerInfo(ctx context.Context, symbol string) (*models.TickerInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	if info, ok := m.info[symbol]; ok {
		return info, nil
	}
	return &models.TickerInfo{Symbol: symbol}, nil
}

func aaaBBBFetcher() *mockFetcher {
	return &mockFetcher{closes: map[string][]float64{
		"AAA": {100, 110, 99},
		"BBB": {50, 45, 60},
	}}
}
