package services

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"buyside-ai/models"
	"buyside-ai/observability"
)

// barsClient is the subset of the Alpaca market data client used here (for testing)
type barsClient interface {
	GetMultiBars(symbols []string, req marketdata.GetBarsRequest) (map[string][]marketdata.Bar, error)
}

// AlpacaService fetches daily bars from Alpaca market data
type AlpacaService struct {
	dataClient barsClient
}

// NewAlpacaService creates a new AlpacaService instance. An empty dataURL uses the SDK default.
func NewAlpacaService(apiKey, apiSecret, dataURL string) *AlpacaService {
	dataClient := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   dataURL,
	})

	return &AlpacaService{dataClient: dataClient}
}

// FetchPrices returns split and dividend adjusted daily closes for the tickers
func (s *AlpacaService) FetchPrices(ctx context.Context, tickers []string, start, end time.Time) (*models.PriceTable, error) {
	if len(tickers) == 0 {
		return models.NewPriceTable(nil), nil
	}

	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerAlpaca, "multi_bars")
	timer := metrics.NewTimer()

	bars, err := WithCircuitBreaker(ctx, BreakerAlpaca, func() (map[string][]marketdata.Bar, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return s.dataClient.GetMultiBars(tickers, marketdata.GetBarsRequest{
			TimeFrame:  marketdata.OneDay,
			Start:      models.TradingDay(start),
			End:        models.TradingDay(end).AddDate(0, 0, 1),
			Adjustment: marketdata.All,
		})
	})

	timer.ObserveExternalAPI(BreakerAlpaca, "multi_bars")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerAlpaca, "multi_bars", categorizeAPIError(err))
		return nil, fmt.Errorf("failed to get bars: %w", err)
	}

	series := make([]models.PriceSeries, 0, len(tickers))
	for _, ticker := range tickers {
		tickerBars, ok := bars[ticker]
		if !ok || len(tickerBars) == 0 {
			observability.Warn("price history unavailable", "symbol", ticker, "provider", BreakerAlpaca)
			continue
		}
		points := make([]models.PricePoint, 0, len(tickerBars))
		for _, bar := range tickerBars {
			points = append(points, models.PricePoint{Date: bar.Timestamp, Close: bar.Close})
		}
		series = append(series, models.PriceSeries{Symbol: ticker, Points: points})
	}

	return models.NewPriceTable(series), nil
}
