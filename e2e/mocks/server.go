// Package mocks provides an HTTP mock of the upstream APIs used in E2E tests:
// the Yahoo chart API, an OpenAI-compatible chat completion endpoint and
// Alpha Vantage.
package mocks

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// MockServer provides configurable mock responses for all upstream APIs.
type MockServer struct {
	mu     sync.RWMutex
	server *httptest.Server

	// Response configurations
	prices     map[string]PriceFixture
	tickerInfo map[string]TickerInfoFixture
	completion func(messages []Message) string

	// Error injection
	completionStatus int
	completionBody   string
	chartStatus      int

	// Request tracking for assertions
	requestLog  []RequestLog
	completions [][]Message
}

// RequestLog records incoming requests for test assertions.
type RequestLog struct {
	Method string
	Path   string
	Query  string
	Body   string
}

// Message is one chat message received by the completion endpoint
type Message struct {
	Role    string
	Content string
}

// NewMockServer creates a new mock server with default responses.
func NewMockServer() *MockServer {
	m := &MockServer{
		prices:     make(map[string]PriceFixture),
		tickerInfo: make(map[string]TickerInfoFixture),
	}
	m.completion = func([]Message) string { return "Mock analysis." }
	m.server = httptest.NewServer(m)
	return m
}

// URL returns the mock server's base URL.
func (m *MockServer) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockServer) Close() {
	m.server.Close()
}

// ServeHTTP implements http.Handler to route requests to appropriate mock handlers.
func (m *MockServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	m.mu.Lock()
	m.requestLog = append(m.requestLog, RequestLog{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Body:   string(body),
	})
	m.mu.Unlock()

	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/v8/finance/chart/"):
		m.handleChart(w, strings.TrimPrefix(path, "/v8/finance/chart/"))
	case strings.HasSuffix(path, "/chat/completions") && r.Method == http.MethodPost:
		m.handleCompletion(w, body)
	case path == "/query":
		m.handleQuery(w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// SetPrices configures the chart data served for a symbol.
func (m *MockServer) SetPrices(symbol string, fixture PriceFixture) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[symbol] = fixture
}

// SetChartStatus makes the chart endpoint fail with status; zero restores it.
func (m *MockServer) SetChartStatus(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chartStatus = status
}

// SetTickerInfo configures the Alpha Vantage answer for a symbol.
func (m *MockServer) SetTickerInfo(symbol string, info TickerInfoFixture) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickerInfo[symbol] = info
}

// SetCompletion makes the completion endpoint answer with text.
func (m *MockServer) SetCompletion(text string) {
	m.SetCompletionFunc(func([]Message) string { return text })
}

// SetCompletionFunc makes the completion endpoint answer with fn(messages).
func (m *MockServer) SetCompletionFunc(fn func(messages []Message) string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completion = fn
	m.completionStatus = 0
	m.completionBody = ""
}

// SetCompletionError makes the completion endpoint answer with status and a raw body.
func (m *MockServer) SetCompletionError(status int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completionStatus = status
	m.completionBody = body
}

// GetRequestLog returns all logged requests for assertions.
func (m *MockServer) GetRequestLog() []RequestLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]RequestLog{}, m.requestLog...)
}

// Completions returns the messages of every completion request received.
func (m *MockServer) Completions() [][]Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([][]Message{}, m.completions...)
}

// CountRequests returns how many logged requests have a path starting with prefix.
func (m *MockServer) CountRequests(prefix string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, r := range m.requestLog {
		if strings.HasPrefix(r.Path, prefix) {
			n++
		}
	}
	return n
}

// ClearRequestLog clears the request log.
func (m *MockServer) ClearRequestLog() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestLog = nil
	m.completions = nil
}

// Reset restores the default responses and clears the request log.
func (m *MockServer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices = make(map[string]PriceFixture)
	m.tickerInfo = make(map[string]TickerInfoFixture)
	m.completion = func([]Message) string { return "Mock analysis." }
	m.completionStatus = 0
	m.completionBody = ""
	m.chartStatus = 0
	m.requestLog = nil
	m.completions = nil
}

func (m *MockServer) handleChart(w http.ResponseWriter, symbol string) {
	m.mu.RLock()
	fixture, ok := m.prices[symbol]
	status := m.chartStatus
	m.mu.RUnlock()

	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, chartResponse{Chart: chartBody{
			Error: &chartError{Code: "Not Found", Description: "No data found, symbol may be delisted"},
		}})
		return
	}

	result := chartResult{Meta: chartMeta{Symbol: symbol, Currency: "USD"}}
	for _, d := range fixture.Dates {
		// Yahoo stamps daily bars at the market open
		result.Timestamp = append(result.Timestamp, d.Add(14*60*60+30*60).Unix())
	}
	result.Indicators.Quote = []chartQuote{{Close: fixture.Closes}}
	result.Indicators.AdjClose = []chartAdjClose{{AdjClose: fixture.Closes}}

	writeJSON(w, http.StatusOK, chartResponse{Chart: chartBody{Result: []chartResult{result}}})
}

func (m *MockServer) handleCompletion(w http.ResponseWriter, body []byte) {
	var req completionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": map[string]string{"message": "invalid request body", "type": "invalid_request_error"},
		})
		return
	}

	messages := make([]Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, Message{Role: msg.Role, Content: msg.Content})
	}

	m.mu.Lock()
	m.completions = append(m.completions, messages)
	status, errBody, answer := m.completionStatus, m.completionBody, m.completion
	m.mu.Unlock()

	if status != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, errBody)
		return
	}

	writeJSON(w, http.StatusOK, completionResponse{
		ID:      "chatcmpl-mock",
		Object:  "chat.completion",
		Created: 1700000000,
		Model:   req.Model,
		Choices: []completionChoice{{
			Message:      completionMessage{Role: "assistant", Content: answer(messages)},
			FinishReason: "stop",
		}},
	})
}

func (m *MockServer) handleQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol := q.Get("symbol")

	m.mu.RLock()
	info, ok := m.tickerInfo[symbol]
	m.mu.RUnlock()

	switch q.Get("function") {
	case "OVERVIEW":
		if !ok || info.ETF {
			writeJSON(w, http.StatusOK, map[string]string{})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"Symbol":        symbol,
			"DividendYield": info.DividendYield,
		})
	case "ETF_PROFILE":
		if !ok {
			writeJSON(w, http.StatusOK, map[string]string{})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"net_expense_ratio": info.ExpenseRatio,
			"dividend_yield":    info.DividendYield,
		})
	default:
		writeJSON(w, http.StatusOK, map[string]string{
			"Error Message": "Invalid API call.",
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
