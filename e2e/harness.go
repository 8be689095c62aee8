// Package e2e provides end-to-end testing infrastructure for buyside-ai.
//
// The harness runs the real router, app, agent and upstream clients
// in-process against a mock upstream server. A database is only used when
// E2E_DATABASE_URL is set.
package e2e

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"buyside-ai/agents"
	"buyside-ai/config"
	"buyside-ai/e2e/mocks"
	"buyside-ai/internal/api"
	"buyside-ai/internal/app"
	"buyside-ai/models"
	"buyside-ai/report"
	"buyside-ai/repository"
	"buyside-ai/services"
)

// Option customizes the harness configuration before Setup
type Option func(*config.Config)

// WithoutLLMKey leaves the LLM API key empty
func WithoutLLMKey() Option {
	return func(cfg *config.Config) { cfg.LLM.APIKey = "" }
}

// WithCacheTTL enables the result cache
func WithCacheTTL(ttl time.Duration) Option {
	return func(cfg *config.Config) { cfg.Cache.TTLSeconds = int(ttl.Seconds()) }
}

// WithLanguage sets the default language
func WithLanguage(lang models.Language) Option {
	return func(cfg *config.Config) { cfg.Analysis.DefaultLanguage = string(lang) }
}

// TestHarness provides the infrastructure for running E2E tests.
type TestHarness struct {
	t          *testing.T
	ctx        context.Context
	cancel     context.CancelFunc
	opts       []Option
	mockServer *mocks.MockServer
	repo       *repository.Repository
	app        *app.App
	router     http.Handler
	config     *config.Config
}

// NewTestHarness creates a new test harness.
func NewTestHarness(t *testing.T, opts ...Option) *TestHarness {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)

	return &TestHarness{
		t:      t,
		ctx:    ctx,
		cancel: cancel,
		opts:   opts,
	}
}

// Setup initializes all test dependencies.
func (h *TestHarness) Setup() error {
	// Start mock server for upstream APIs
	h.mockServer = mocks.NewMockServer()

	h.config = h.createTestConfig()
	for _, opt := range h.opts {
		opt(h.config)
	}

	// Fresh breakers so failures in one scenario do not leak into the next
	services.SetGlobalRegistry(services.NewCircuitBreakerRegistry(services.BreakerConfigFrom(h.config)))

	if dbURL := os.Getenv("E2E_DATABASE_URL"); dbURL != "" {
		var err error
		h.repo, err = repository.NewRepository(h.ctx, dbURL)
		if err != nil {
			return fmt.Errorf("failed to connect to test database: %w", err)
		}
		h.cleanupTestData()
	}

	agent := agents.NewFinancialAgent(agents.AgentConfig{
		Fetcher:          services.NewYahooFinanceService(h.config.MarketData.YahooBaseURL),
		Info:             services.NewAlphaVantageService(h.config.AlphaVantage.APIKey, h.config.AlphaVantage.BaseURL),
		LLM:              h.newLLM(),
		Narrative:        &agents.NarrativeSettings{Temperature: h.config.LLM.Temperature, MaxTokens: h.config.LLM.MaxTokens},
		Composer:         report.NewComposer(h.t.TempDir(), ""),
		Cache:            h.newCache(),
		Language:         models.Language(h.config.Analysis.DefaultLanguage),
		LookbackDays:     h.config.Analysis.LookbackDays,
		TickerResolution: h.config.Analysis.TickerResolution,
	})

	if h.repo != nil {
		h.app = app.New(h.config, app.LanguageAgents(agent), h.repo)
	} else {
		h.app = app.New(h.config, app.LanguageAgents(agent), nil)
	}

	handler := api.NewHandler(h.app, h.config)
	h.router = api.NewRouter(handler, h.config)

	return nil
}

// Teardown cleans up all test resources.
func (h *TestHarness) Teardown() {
	if h.cancel != nil {
		h.cancel()
	}

	if h.repo != nil {
		h.cleanupTestData()
	}

	if h.app != nil {
		h.app.Shutdown(context.Background())
	}

	if h.mockServer != nil {
		h.mockServer.Close()
	}

	services.SetGlobalRegistry(nil)
}

// Context returns the test context.
func (h *TestHarness) Context() context.Context {
	return h.ctx
}

// MockServer returns the mock server for configuring responses.
func (h *TestHarness) MockServer() *mocks.MockServer {
	return h.mockServer
}

// App returns the application instance.
func (h *TestHarness) App() *app.App {
	return h.app
}

// Router returns the HTTP router for making requests.
func (h *TestHarness) Router() http.Handler {
	return h.router
}

// Config returns the test configuration.
func (h *TestHarness) Config() *config.Config {
	return h.config
}

// DoRequest performs an HTTP request and returns the response.
func (h *TestHarness) DoRequest(method, path string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *TestHarness) createTestConfig() *config.Config {
	mockURL := h.mockServer.URL()

	cfg := config.NewTestConfig()
	cfg.LLM.APIKey = "e2e-test-key"
	cfg.LLM.BaseURL = mockURL + "/v1"
	cfg.MarketData.YahooBaseURL = mockURL
	cfg.AlphaVantage.APIKey = "e2e-test-key"
	cfg.AlphaVantage.BaseURL = mockURL + "/query"
	cfg.Cache.TTLSeconds = 0

	return cfg
}

func (h *TestHarness) newLLM() services.LLMService {
	if !h.config.HasLLM() {
		return nil
	}
	svc, err := services.NewOpenAIService(h.config)
	if err != nil {
		h.t.Fatalf("failed to create LLM service: %v", err)
	}
	return svc
}

func (h *TestHarness) newCache() agents.ResultCache {
	ttl := h.config.CacheTTL()
	if ttl <= 0 {
		return nil
	}
	if h.repo != nil {
		return repository.NewAnalysisCache(h.repo, ttl)
	}
	return agents.NewMemoryResultCache(ttl)
}

func (h *TestHarness) cleanupTestData() {
	if _, err := h.repo.CleanExpiredCache(h.ctx); err != nil {
		h.t.Logf("cache cleanup failed: %v", err)
	}
}
