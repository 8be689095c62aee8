package services

import (
	"context"
	"time"

	"buyside-ai/models"
)

// ChatMessage is one message of a chat completion request
type ChatMessage struct {
	Role    string `json:"role"` // system, user or assistant
	Content string `json:"content"`
}

// CompletionRequest is a provider-neutral chat completion request.
// Zero MaxTokens means the service default.
type CompletionRequest struct {
	Messages    []ChatMessage
	Temperature float64
	MaxTokens   int
}

// LLMService performs chat completions.
//
// Implementations return *ErrorPayloadError when the endpoint answers with an
// error object and *UnexpectedResponseError when a response has no choices.
// Anything else is a transport or decoding failure.
type LLMService interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// PriceFetcher retrieves daily closing prices. Tickers without data are
// omitted from the table; when none has data the table is empty and the error nil.
type PriceFetcher interface {
	FetchPrices(ctx context.Context, tickers []string, start, end time.Time) (*models.PriceTable, error)
}

// InfoLookup provides secondary per-ticker data
type InfoLookup interface {
	GetTickerInfo(ctx context.Context, symbol string) (*models.TickerInfo, error)
}

// Compile-time interface verification
var _ LLMService = (*OpenAIService)(nil)
var _ LLMService = (*BedrockService)(nil)
var _ PriceFetcher = (*YahooFinanceService)(nil)
var _ PriceFetcher = (*AlpacaService)(nil)
var _ InfoLookup = (*AlphaVantageService)(nil)
