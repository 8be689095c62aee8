package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"buyside-ai/agents"
	"buyside-ai/config"
	"buyside-ai/internal/api"
	"buyside-ai/internal/app"
	"buyside-ai/models"
	"buyside-ai/observability"
	"buyside-ai/report"
	"buyside-ai/repository"
	"buyside-ai/services"
)

func main() {
	// Load environment variables
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		observability.InitLogger(false)
		observability.Fatal("invalid configuration", "error", err)
	}

	observability.InitLoggerWithLevel(cfg.Log.Production, observability.ParseLevel(cfg.Log.Level))
	observability.InitMetrics()
	services.SetGlobalRegistry(services.NewCircuitBreakerRegistry(services.BreakerConfigFrom(cfg)))
	if envErr != nil {
		observability.Debug("no .env file found, using environment variables")
	}

	ctx := context.Background()

	// Initialize database (optional, backs the result cache)
	var repo *repository.Repository
	if cfg.HasDatabase() {
		repo, err = repository.NewRepository(ctx, cfg.Database.URL)
		if err != nil {
			observability.Warn("failed to initialize database, falling back to in-memory cache", "error", err)
			repo = nil
		}
	}

	agent := agents.NewFinancialAgent(agents.AgentConfig{
		Fetcher:          newPriceFetcher(cfg),
		Info:             newInfoLookup(cfg),
		LLM:              newLLM(ctx, cfg),
		Narrative:        &agents.NarrativeSettings{Temperature: cfg.LLM.Temperature, MaxTokens: cfg.LLM.MaxTokens},
		Composer:         report.NewComposer(cfg.Report.TempDir, cfg.Report.FontPath),
		Cache:            newResultCache(cfg, repo),
		Language:         models.Language(cfg.Analysis.DefaultLanguage),
		LookbackDays:     cfg.Analysis.LookbackDays,
		TickerResolution: cfg.Analysis.TickerResolution,
	})

	var application *app.App
	if repo != nil {
		application = app.New(cfg, app.LanguageAgents(agent), repo)
	} else {
		application = app.New(cfg, app.LanguageAgents(agent), nil)
	}

	handler := api.NewHandler(application, cfg)
	router := api.NewRouter(handler, cfg)

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.RequestTimeoutSeconds+10) * time.Second,
	}

	stopCleanup := make(chan struct{})
	if repo != nil && cfg.CacheTTL() > 0 {
		go cleanExpiredCache(repo, cfg.CacheTTL(), stopCleanup)
	}

	go func() {
		observability.Info("starting server",
			"addr", cfg.HTTP.Addr,
			"llm_provider", cfg.LLM.Provider,
			"market_data", cfg.MarketData.Provider,
			"language", cfg.Analysis.DefaultLanguage)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			observability.Fatal("server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	observability.Info("shutting down server...")
	close(stopCleanup)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		observability.Error("server forced to shutdown", "error", err)
	}
	application.Shutdown(shutdownCtx)
	observability.Info("server stopped")
}

// newLLM returns the configured chat completion service, or nil when it has
// no credentials. A nil LLM still produces reports, with a failed narrative.
func newLLM(ctx context.Context, cfg *config.Config) services.LLMService {
	switch cfg.LLM.Provider {
	case config.ProviderBedrock:
		svc, err := services.NewBedrockService(ctx, cfg.Bedrock.Region, cfg.Bedrock.ModelID, cfg.LLM.MaxTokens)
		if err != nil {
			observability.Warn("failed to initialize Bedrock service, narratives disabled", "error", err)
			return nil
		}
		return svc
	default:
		if !cfg.HasLLM() {
			observability.Warn("TOGETHER_API_KEY not set, narratives disabled")
			return nil
		}
		svc, err := services.NewOpenAIService(cfg)
		if err != nil {
			observability.Warn("failed to initialize LLM service, narratives disabled", "error", err)
			return nil
		}
		return svc
	}
}

func newPriceFetcher(cfg *config.Config) services.PriceFetcher {
	if cfg.MarketData.Provider == config.MarketDataAlpaca {
		return services.NewAlpacaService(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL)
	}
	return services.NewYahooFinanceService(cfg.MarketData.YahooBaseURL)
}

func newInfoLookup(cfg *config.Config) services.InfoLookup {
	if !cfg.HasAlphaVantage() {
		observability.Info("Alpha Vantage API key not set, dividend yield and expense ratio left empty")
		return nil
	}
	return services.NewAlphaVantageService(cfg.AlphaVantage.APIKey, cfg.AlphaVantage.BaseURL)
}

func newResultCache(cfg *config.Config, repo *repository.Repository) agents.ResultCache {
	if cfg.CacheTTL() <= 0 {
		return nil
	}
	if repo != nil {
		return repository.NewAnalysisCache(repo, cfg.CacheTTL())
	}
	return agents.NewMemoryResultCache(cfg.CacheTTL())
}

func cleanExpiredCache(repo *repository.Repository, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			n, err := repo.CleanExpiredCache(ctx)
			cancel()
			if err != nil {
				observability.Warn("failed to clean expired cache", "error", err)
				continue
			}
			if n > 0 {
				observability.Debug("cleaned expired cache entries", "count", n)
			}
		}
	}
}
