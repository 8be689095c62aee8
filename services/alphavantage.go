package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"buyside-ai/models"
	"buyside-ai/observability"
)

// AlphaVantageService looks up dividend yield and expense ratio from Alpha Vantage
type AlphaVantageService struct {
	apiKey      string
	httpClient  *http.Client
	baseURL     string
	retryConfig RetryConfig
}

// NewAlphaVantageService creates a new AlphaVantageService instance
func NewAlphaVantageService(apiKey, baseURL string) *AlphaVantageService {
	if baseURL == "" {
		baseURL = "https://www.alphavantage.co/query"
	}
	return &AlphaVantageService{
		apiKey:      apiKey,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		baseURL:     baseURL,
		retryConfig: DefaultRetryConfig,
	}
}

// GetTickerInfo returns the dividend yield and, for funds, the net expense ratio.
// Stocks answer OVERVIEW; ETFs answer ETF_PROFILE, which is only queried when
// the overview has nothing.
func (s *AlphaVantageService) GetTickerInfo(ctx context.Context, symbol string) (*models.TickerInfo, error) {
	info := &models.TickerInfo{Symbol: symbol}

	overview, err := s.query(ctx, "OVERVIEW", symbol)
	if err != nil {
		return nil, err
	}
	if overview.Get("Symbol").Exists() {
		info.DividendYield = parseRatio(overview.Get("DividendYield"))
		return info, nil
	}

	profile, err := s.query(ctx, "ETF_PROFILE", symbol)
	if err != nil {
		return nil, err
	}
	info.DividendYield = parseRatio(profile.Get("dividend_yield"))
	info.ExpenseRatio = parseRatio(profile.Get("net_expense_ratio"))
	return info, nil
}

func (s *AlphaVantageService) query(ctx context.Context, function, symbol string) (gjson.Result, error) {
	metrics := observability.GetMetrics()
	endpoint := "/query/" + function
	metrics.RecordExternalAPIRequest(BreakerAlphaVantage, endpoint)
	timer := metrics.NewTimer()

	result, err := WithCircuitBreaker(ctx, BreakerAlphaVantage, func() (gjson.Result, error) {
		var doc gjson.Result
		err := WithRetry(ctx, s.retryConfig, func() error {
			params := url.Values{}
			params.Set("function", function)
			params.Set("symbol", symbol)
			params.Set("apikey", s.apiKey)

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
			if err != nil {
				return Permanent(fmt.Errorf("failed to build request: %w", err))
			}

			resp, err := s.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("failed to fetch %s: %w", function, err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", function, err)
			}
			if err := checkStatus(BreakerAlphaVantage, resp, body); err != nil {
				return err
			}
			if !gjson.ValidBytes(body) {
				return fmt.Errorf("failed to decode %s: invalid JSON", function)
			}

			doc = gjson.ParseBytes(body)
			// Rate limiting is reported in a 200 body
			if note := doc.Get("Note"); note.Exists() {
				return &StatusError{Service: BreakerAlphaVantage, StatusCode: http.StatusTooManyRequests, Body: note.String()}
			}
			if msg := doc.Get("Error Message"); msg.Exists() {
				return Permanent(fmt.Errorf("%s %s: %s", function, symbol, msg.String()))
			}
			return nil
		})
		return doc, err
	})

	timer.ObserveExternalAPI(BreakerAlphaVantage, endpoint)
	if err != nil {
		metrics.RecordExternalAPIError(BreakerAlphaVantage, endpoint, categorizeAPIError(err))
	}
	return result, err
}

// parseRatio reads a numeric field that the API may report as a string, "None" or "-"
func parseRatio(v gjson.Result) *float64 {
	switch v.Type {
	case gjson.Number:
		f := v.Float()
		return &f
	case gjson.String:
		f, err := strconv.ParseFloat(v.String(), 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}
