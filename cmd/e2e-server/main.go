// Package main provides a standalone HTTP server for E2E testing.
// It runs the same routes and handlers as the main server against an
// in-process mock of the upstream APIs, making it suitable for browser tests.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"buyside-ai/agents"
	"buyside-ai/config"
	"buyside-ai/e2e/mocks"
	"buyside-ai/internal/api"
	"buyside-ai/internal/app"
	"buyside-ai/models"
	"buyside-ai/observability"
	"buyside-ai/report"
	"buyside-ai/services"
)

func main() {
	// Initialize logger in development mode for tests
	observability.InitLoggerWithLevel(false, observability.ParseLevel(os.Getenv("LOG_LEVEL")))
	observability.InitMetrics()

	port := os.Getenv("E2E_SERVER_PORT")
	if port == "" {
		port = "9090"
	}

	upstream := mocks.NewMockServer()
	defer upstream.Close()
	seedFixtures(upstream)
	observability.Info("mock upstream started", "url", upstream.URL())

	cfg := config.NewTestConfig()
	cfg.LLM.APIKey = "e2e-test-key"
	cfg.LLM.BaseURL = upstream.URL() + "/v1"
	cfg.MarketData.YahooBaseURL = upstream.URL()
	cfg.AlphaVantage.APIKey = "e2e-test-key"
	cfg.AlphaVantage.BaseURL = upstream.URL() + "/query"
	if lang := os.Getenv("E2E_LANGUAGE"); lang != "" {
		cfg.Analysis.DefaultLanguage = lang
	}
	if err := cfg.Validate(); err != nil {
		observability.Fatal("invalid e2e configuration", "error", err)
	}

	llm, err := services.NewOpenAIService(cfg)
	if err != nil {
		observability.Fatal("failed to initialize LLM service", "error", err)
	}

	agent := agents.NewFinancialAgent(agents.AgentConfig{
		Fetcher:          services.NewYahooFinanceService(cfg.MarketData.YahooBaseURL),
		Info:             services.NewAlphaVantageService(cfg.AlphaVantage.APIKey, cfg.AlphaVantage.BaseURL),
		LLM:              llm,
		Narrative:        &agents.NarrativeSettings{Temperature: cfg.LLM.Temperature, MaxTokens: cfg.LLM.MaxTokens},
		Composer:         report.NewComposer("", os.Getenv("REPORT_FONT_PATH")),
		Language:         models.Language(cfg.Analysis.DefaultLanguage),
		LookbackDays:     cfg.Analysis.LookbackDays,
		TickerResolution: cfg.Analysis.TickerResolution,
	})
	application := app.New(cfg, app.LanguageAgents(agent), nil)

	// Create HTTP router
	handler := api.NewHandler(application, cfg)
	router := api.NewRouter(handler, cfg)

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		observability.Info("starting E2E test server", "port", port, "url", fmt.Sprintf("http://localhost:%s", port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			observability.Fatal("server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	observability.Info("shutting down E2E test server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		observability.Error("server forced to shutdown", "error", err)
	}

	application.Shutdown(shutdownCtx)
	observability.Info("E2E test server stopped")
}
