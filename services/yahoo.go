package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"buyside-ai/models"
	"buyside-ai/observability"
)

const yahooUserAgent = "Mozilla/5.0 (compatible; buyside-ai/1.0)"

// YahooFinanceService fetches daily history from the Yahoo Finance chart API
type YahooFinanceService struct {
	baseURL     string
	httpClient  *http.Client
	retryConfig RetryConfig
}

// NewYahooFinanceService creates a new YahooFinanceService instance
func NewYahooFinanceService(baseURL string) *YahooFinanceService {
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com"
	}
	return &YahooFinanceService{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		retryConfig: DefaultRetryConfig,
	}
}

// FetchPrices downloads each ticker in turn and joins the closes into one table.
// A ticker that fails or has no closes is logged and left out.
func (s *YahooFinanceService) FetchPrices(ctx context.Context, tickers []string, start, end time.Time) (*models.PriceTable, error) {
	series := make([]models.PriceSeries, 0, len(tickers))
	for _, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		history, err := s.GetHistory(ctx, ticker, start, end)
		if err != nil {
			observability.Warn("price history unavailable",
				"symbol", ticker,
				"provider", BreakerYahoo,
				"error", err)
			continue
		}
		series = append(series, *history)
	}

	return models.NewPriceTable(series), nil
}

// GetHistory returns the daily closes of one symbol between start and end (both inclusive).
// Adjusted closes are used when the response carries them.
func (s *YahooFinanceService) GetHistory(ctx context.Context, symbol string, start, end time.Time) (*models.PriceSeries, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerYahoo, "chart")
	timer := metrics.NewTimer()

	series, err := WithCircuitBreaker(ctx, BreakerYahoo, func() (*models.PriceSeries, error) {
		var result *models.PriceSeries
		err := WithRetry(ctx, s.retryConfig, func() error {
			body, err := s.get(ctx, symbol, start, end)
			if err != nil {
				return err
			}
			result, err = parseChart(symbol, body)
			return err
		})
		return result, err
	})

	timer.ObserveExternalAPI(BreakerYahoo, "chart")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerYahoo, "chart", categorizeAPIError(err))
		return nil, err
	}
	return series, nil
}

func (s *YahooFinanceService) get(ctx context.Context, symbol string, start, end time.Time) ([]byte, error) {
	params := url.Values{}
	params.Set("period1", strconv.FormatInt(models.TradingDay(start).Unix(), 10))
	params.Set("period2", strconv.FormatInt(models.TradingDay(end).AddDate(0, 0, 1).Unix(), 10))
	params.Set("interval", "1d")
	params.Set("events", "div,splits")

	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", s.baseURL, url.PathEscape(symbol), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, Permanent(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("User-Agent", yahooUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chart for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read chart for %s: %w", symbol, err)
	}
	if err := checkStatus(BreakerYahoo, resp, body); err != nil {
		return nil, err
	}
	return body, nil
}

// parseChart reads chart.result[0]; an error object in the payload is permanent
func parseChart(symbol string, body []byte) (*models.PriceSeries, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid chart payload for %s", symbol)
	}
	doc := gjson.ParseBytes(body)

	if e := doc.Get("chart.error"); e.Exists() && e.Type != gjson.Null {
		return nil, Permanent(fmt.Errorf("chart error for %s: %s", symbol, e.Get("description").String()))
	}

	result := doc.Get("chart.result.0")
	if !result.Exists() {
		return nil, Permanent(fmt.Errorf("no chart result for %s", symbol))
	}

	timestamps := result.Get("timestamp").Array()
	closes := result.Get("indicators.adjclose.0.adjclose").Array()
	if len(closes) == 0 {
		closes = result.Get("indicators.quote.0.close").Array()
	}

	series := &models.PriceSeries{Symbol: symbol}
	for i, ts := range timestamps {
		if i >= len(closes) || closes[i].Type != gjson.Number {
			continue
		}
		series.Points = append(series.Points, models.PricePoint{
			Date:  models.TradingDay(time.Unix(ts.Int(), 0).UTC()),
			Close: closes[i].Float(),
		})
	}
	return series, nil
}
