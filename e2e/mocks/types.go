package mocks

import "time"

// PriceFixture is a daily close series served from the chart endpoint
type PriceFixture struct {
	Dates  []time.Time
	Closes []float64
}

// DailyCloses builds a fixture of consecutive days starting at start
func DailyCloses(start time.Time, closes ...float64) PriceFixture {
	f := PriceFixture{Closes: closes}
	for i := range closes {
		f.Dates = append(f.Dates, start.AddDate(0, 0, i))
	}
	return f
}

// TickerInfoFixture is served from the Alpha Vantage query endpoint.
// Ratios are raw strings as the upstream returns them ("0.015", "None").
type TickerInfoFixture struct {
	ETF           bool
	DividendYield string
	ExpenseRatio  string
}

// Yahoo chart API shapes

type chartResponse struct {
	Chart chartBody `json:"chart"`
}

type chartBody struct {
	Result []chartResult `json:"result"`
	Error  *chartError   `json:"error"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta       chartMeta       `json:"meta"`
	Timestamp  []int64         `json:"timestamp"`
	Indicators chartIndicators `json:"indicators"`
}

type chartMeta struct {
	Symbol   string `json:"symbol"`
	Currency string `json:"currency"`
}

type chartIndicators struct {
	Quote    []chartQuote    `json:"quote"`
	AdjClose []chartAdjClose `json:"adjclose"`
}

type chartQuote struct {
	Close []float64 `json:"close"`
}

type chartAdjClose struct {
	AdjClose []float64 `json:"adjclose"`
}

// OpenAI-compatible chat completion shapes

type completionRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

type completionResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []completionChoice `json:"choices"`
}

type completionChoice struct {
	Index        int               `json:"index"`
	Message      completionMessage `json:"message"`
	FinishReason string            `json:"finish_reason"`
}

type completionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
