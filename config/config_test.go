package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var allEnvKeys = []string{
	"CONFIG_FILE",
	"LLM_PROVIDER",
	"TOGETHER_API_KEY",
	"LLM_API_KEY",
	"LLM_BASE_URL",
	"LLM_MODEL",
	"LLM_TEMPERATURE",
	"LLM_MAX_TOKENS",
	"LLM_MAX_RETRIES",
	"AWS_REGION",
	"BEDROCK_MODEL_ID",
	"MARKET_DATA_PROVIDER",
	"YAHOO_BASE_URL",
	"ALPACA_API_KEY",
	"ALPACA_API_SECRET",
	"ALPACA_DATA_URL",
	"ALPHA_VANTAGE_API_KEY",
	"ALPHA_VANTAGE_BASE_URL",
	"DATABASE_URL",
	"ANALYSIS_LOOKBACK_DAYS",
	"DEFAULT_LANGUAGE",
	"TICKER_RESOLUTION",
	"ANALYSIS_CONCURRENCY_LIMIT",
	"ANALYSIS_TIMEOUT_SECONDS",
	"RESULT_STORE_SIZE",
	"CACHE_TTL_SECONDS",
	"BREAKER_MIN_REQUESTS",
	"BREAKER_FAILURE_RATIO",
	"BREAKER_OPEN_SECONDS",
	"REPORT_FONT_PATH",
	"REPORT_TEMP_DIR",
	"HTTP_ADDR",
	"CORS_ALLOWED_ORIGINS",
	"REQUEST_TIMEOUT_SECONDS",
	"LOG_LEVEL",
	"APP_ENV",
}

// clearEnv blanks every key the loader reads; empty values are treated as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allEnvKeys {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LLM.BaseURL != "https://api.together.xyz/v1" {
		t.Errorf("LLM.BaseURL = %q", cfg.LLM.BaseURL)
	}
	if cfg.LLM.Model != "mistralai/Mixtral-8x7B-Instruct-v0.1" {
		t.Errorf("LLM.Model = %q", cfg.LLM.Model)
	}
	if cfg.LLM.Temperature != 0.7 {
		t.Errorf("LLM.Temperature = %v, want 0.7", cfg.LLM.Temperature)
	}
	if cfg.LLM.MaxTokens != 500 {
		t.Errorf("LLM.MaxTokens = %d, want 500", cfg.LLM.MaxTokens)
	}
	if cfg.Analysis.LookbackDays != 365 {
		t.Errorf("Analysis.LookbackDays = %d, want 365", cfg.Analysis.LookbackDays)
	}
	if cfg.Analysis.TickerResolution != ResolutionHeuristic {
		t.Errorf("Analysis.TickerResolution = %q", cfg.Analysis.TickerResolution)
	}
	if cfg.MarketData.Provider != MarketDataYahoo {
		t.Errorf("MarketData.Provider = %q", cfg.MarketData.Provider)
	}
	if cfg.CacheTTL() != 0 {
		t.Errorf("CacheTTL() = %v, want 0", cfg.CacheTTL())
	}
	if cfg.HasLLM() {
		t.Error("HasLLM() should be false without an API key")
	}
	if cfg.HasDatabase() {
		t.Error("HasDatabase() should be false without DATABASE_URL")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TOGETHER_API_KEY", "tg-key")
	t.Setenv("LLM_TEMPERATURE", "0.2")
	t.Setenv("LLM_MAX_RETRIES", "0")
	t.Setenv("DEFAULT_LANGUAGE", "he")
	t.Setenv("CACHE_TTL_SECONDS", "600")
	t.Setenv("APP_ENV", "production")
	t.Setenv("ALPHA_VANTAGE_API_KEY", "av")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LLM.APIKey != "tg-key" || !cfg.HasLLM() {
		t.Errorf("LLM.APIKey = %q", cfg.LLM.APIKey)
	}
	if cfg.LLM.Temperature != 0.2 {
		t.Errorf("LLM.Temperature = %v, want 0.2", cfg.LLM.Temperature)
	}
	if cfg.LLM.MaxRetries != 0 {
		t.Errorf("LLM.MaxRetries = %d, want 0", cfg.LLM.MaxRetries)
	}
	if cfg.Analysis.DefaultLanguage != "he" {
		t.Errorf("Analysis.DefaultLanguage = %q", cfg.Analysis.DefaultLanguage)
	}
	if cfg.CacheTTL() != 10*time.Minute {
		t.Errorf("CacheTTL() = %v, want 10m", cfg.CacheTTL())
	}
	if !cfg.Log.Production {
		t.Error("Log.Production should be true for APP_ENV=production")
	}
	if !cfg.HasAlphaVantage() {
		t.Error("HasAlphaVantage() should be true")
	}
}

func TestLoad_LLMAPIKeyAlias(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_API_KEY", "generic")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLM.APIKey != "generic" {
		t.Errorf("LLM.APIKey = %q, want generic", cfg.LLM.APIKey)
	}

	t.Setenv("TOGETHER_API_KEY", "together")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLM.APIKey != "together" {
		t.Errorf("TOGETHER_API_KEY should win, got %q", cfg.LLM.APIKey)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_TEMPERATURE", "5")
	t.Setenv("ANALYSIS_LOOKBACK_DAYS", "-3")
	t.Setenv("CACHE_TTL_SECONDS", "abc")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLM.Temperature != 0.7 {
		t.Errorf("LLM.Temperature = %v, want default 0.7", cfg.LLM.Temperature)
	}
	if cfg.Analysis.LookbackDays != 365 {
		t.Errorf("Analysis.LookbackDays = %d, want default 365", cfg.Analysis.LookbackDays)
	}
	if cfg.Cache.TTLSeconds != 0 {
		t.Errorf("Cache.TTLSeconds = %d, want 0", cfg.Cache.TTLSeconds)
	}
}

func TestLoad_TOMLFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "buyside.toml")
	content := `
[llm]
model = "meta-llama/Llama-3-8b-chat-hf"
max_tokens = 800

[analysis]
lookback_days = 180
ticker_resolution = "always"

[cache]
ttl_seconds = 60
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LLM_MAX_TOKENS", "900")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LLM.Model != "meta-llama/Llama-3-8b-chat-hf" {
		t.Errorf("LLM.Model = %q", cfg.LLM.Model)
	}
	if cfg.LLM.MaxTokens != 900 {
		t.Errorf("env should override file: LLM.MaxTokens = %d, want 900", cfg.LLM.MaxTokens)
	}
	if cfg.LLM.BaseURL != "https://api.together.xyz/v1" {
		t.Errorf("keys absent from the file should keep defaults, got %q", cfg.LLM.BaseURL)
	}
	if cfg.Analysis.LookbackDays != 180 {
		t.Errorf("Analysis.LookbackDays = %d, want 180", cfg.Analysis.LookbackDays)
	}
	if cfg.Analysis.TickerResolution != ResolutionAlways {
		t.Errorf("Analysis.TickerResolution = %q", cfg.Analysis.TickerResolution)
	}
	if cfg.CacheTTL() != time.Minute {
		t.Errorf("CacheTTL() = %v, want 1m", cfg.CacheTTL())
	}
}

func TestLoad_TOMLUnknownKey(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[llm]\nmodle = \"typo\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
	if !strings.Contains(err.Error(), "bad.toml") {
		t.Errorf("error should name the file, got %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))

	if _, err := Load(); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad provider", func(c *Config) { c.LLM.Provider = "cohere" }, "LLM_PROVIDER"},
		{"bad temperature", func(c *Config) { c.LLM.Temperature = 3 }, "LLM_TEMPERATURE"},
		{"bad market data", func(c *Config) { c.MarketData.Provider = "iex" }, "MARKET_DATA_PROVIDER"},
		{"alpaca without keys", func(c *Config) { c.MarketData.Provider = MarketDataAlpaca }, "ALPACA_API_KEY"},
		{"bad language", func(c *Config) { c.Analysis.DefaultLanguage = "fr" }, "DEFAULT_LANGUAGE"},
		{"bad resolution", func(c *Config) { c.Analysis.TickerResolution = "never" }, "TICKER_RESOLUTION"},
		{"zero concurrency", func(c *Config) { c.Analysis.ConcurrencyLimit = 0 }, "ANALYSIS_CONCURRENCY_LIMIT"},
		{"negative ttl", func(c *Config) { c.Cache.TTLSeconds = -1 }, "CACHE_TTL_SECONDS"},
		{"breaker ratio above one", func(c *Config) { c.Breaker.FailureRatio = 1.5 }, "BREAKER_FAILURE_RATIO"},
		{"breaker never opens", func(c *Config) { c.Breaker.OpenSeconds = 0 }, "BREAKER_OPEN_SECONDS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewTestConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestHasLLM_Bedrock(t *testing.T) {
	cfg := NewTestConfig()
	cfg.LLM.Provider = ProviderBedrock
	if !cfg.HasLLM() {
		t.Error("bedrock uses the AWS credential chain and should count as configured")
	}
}

func TestLoad_BreakerEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("BREAKER_MIN_REQUESTS", "10")
	t.Setenv("BREAKER_FAILURE_RATIO", "0.8")
	t.Setenv("BREAKER_OPEN_SECONDS", "90")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Breaker.MinRequests != 10 || cfg.Breaker.FailureRatio != 0.8 || cfg.Breaker.OpenSeconds != 90 {
		t.Errorf("Breaker = %+v", cfg.Breaker)
	}
	if cfg.Breaker.HalfOpenProbes != 5 {
		t.Errorf("HalfOpenProbes = %d, want default 5", cfg.Breaker.HalfOpenProbes)
	}
}
