package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration.
//
// Values are layered: built-in defaults, then the optional TOML file named by
// CONFIG_FILE, then environment variables.
type Config struct {
	LLM          LLMConfig          `toml:"llm"`
	Bedrock      BedrockConfig      `toml:"bedrock"`
	MarketData   MarketDataConfig   `toml:"market_data"`
	Alpaca       AlpacaConfig       `toml:"alpaca"`
	AlphaVantage AlphaVantageConfig `toml:"alpha_vantage"`
	Database     DatabaseConfig     `toml:"database"`
	Analysis     AnalysisConfig     `toml:"analysis"`
	Cache        CacheConfig        `toml:"cache"`
	Breaker      BreakerConfig      `toml:"breaker"`
	Report       ReportConfig       `toml:"report"`
	HTTP         HTTPConfig         `toml:"http"`
	Log          LogConfig          `toml:"log"`
}

// LLMConfig holds the chat completion endpoint configuration
type LLMConfig struct {
	Provider    string  `toml:"provider"` // openai (any OpenAI-compatible endpoint) or bedrock
	APIKey      string  `toml:"api_key"`
	BaseURL     string  `toml:"base_url"`
	Model       string  `toml:"model"`
	Temperature float64 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
	MaxRetries  int     `toml:"max_retries"`
}

// BedrockConfig holds AWS Bedrock configuration
type BedrockConfig struct {
	Region  string `toml:"region"`
	ModelID string `toml:"model_id"`
}

// MarketDataConfig selects the price history provider
type MarketDataConfig struct {
	Provider     string `toml:"provider"` // yahoo or alpaca
	YahooBaseURL string `toml:"yahoo_base_url"`
}

// AlpacaConfig holds Alpaca market data configuration
type AlpacaConfig struct {
	APIKey    string `toml:"api_key"`
	APISecret string `toml:"api_secret"`
	DataURL   string `toml:"data_url"`
}

// AlphaVantageConfig holds Alpha Vantage API configuration
type AlphaVantageConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string `toml:"url"`
}

// AnalysisConfig holds pipeline configuration
type AnalysisConfig struct {
	LookbackDays     int    `toml:"lookback_days"`
	DefaultLanguage  string `toml:"default_language"`  // en or he
	TickerResolution string `toml:"ticker_resolution"` // heuristic or always
	ConcurrencyLimit int    `toml:"concurrency_limit"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
	ResultStoreSize  int    `toml:"result_store_size"`
}

// CacheConfig holds result cache configuration. A zero TTL disables caching.
type CacheConfig struct {
	TTLSeconds int `toml:"ttl_seconds"`
}

// BreakerConfig tunes the circuit breakers around upstream calls. A breaker
// opens once it has seen MinRequests calls with at least FailureRatio failing.
type BreakerConfig struct {
	MinRequests     int     `toml:"min_requests"`
	FailureRatio    float64 `toml:"failure_ratio"`
	OpenSeconds     int     `toml:"open_seconds"`
	HalfOpenProbes  int     `toml:"half_open_probes"`
	IntervalSeconds int     `toml:"interval_seconds"`
}

// ReportConfig holds PDF report configuration. Hebrew text needs a UTF-8
// TrueType font; without one the core font is used.
type ReportConfig struct {
	FontPath string `toml:"font_path"`
	TempDir  string `toml:"temp_dir"`
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Addr                  string `toml:"addr"`
	CORSAllowedOrigins    string `toml:"cors_allowed_origins"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string `toml:"level"`
	Production bool   `toml:"production"`
}

const (
	ProviderOpenAI  = "openai"
	ProviderBedrock = "bedrock"

	MarketDataYahoo  = "yahoo"
	MarketDataAlpaca = "alpaca"

	ResolutionHeuristic = "heuristic"
	ResolutionAlways    = "always"
)

// Defaults returns the built-in configuration
func Defaults() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    ProviderOpenAI,
			BaseURL:     "https://api.together.xyz/v1",
			Model:       "mistralai/Mixtral-8x7B-Instruct-v0.1",
			Temperature: 0.7,
			MaxTokens:   500,
			MaxRetries:  2,
		},
		Bedrock: BedrockConfig{
			Region:  "us-east-1",
			ModelID: "anthropic.claude-3-haiku-20240307-v1:0",
		},
		MarketData: MarketDataConfig{
			Provider:     MarketDataYahoo,
			YahooBaseURL: "https://query1.finance.yahoo.com",
		},
		Alpaca: AlpacaConfig{
			DataURL: "https://data.alpaca.markets",
		},
		AlphaVantage: AlphaVantageConfig{
			BaseURL: "https://www.alphavantage.co/query",
		},
		Analysis: AnalysisConfig{
			LookbackDays:     365,
			DefaultLanguage:  "en",
			TickerResolution: ResolutionHeuristic,
			ConcurrencyLimit: 3,
			TimeoutSeconds:   120,
			ResultStoreSize:  100,
		},
		Breaker: BreakerConfig{
			MinRequests:     5,
			FailureRatio:    0.5,
			OpenSeconds:     30,
			HalfOpenProbes:  5,
			IntervalSeconds: 60,
		},
		HTTP: HTTPConfig{
			Addr:                  ":8080",
			CORSAllowedOrigins:    "*",
			RequestTimeoutSeconds: 180,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from defaults, the optional CONFIG_FILE and the environment
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFile merges a TOML file into the configuration. Keys absent from the
// file keep their current values; unknown keys are rejected.
func (c *Config) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(c); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("config file %s: %s", path, strict.String())
		}
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.LLM.Provider = getEnvString("LLM_PROVIDER", c.LLM.Provider)
	c.LLM.APIKey = getEnvString("TOGETHER_API_KEY", getEnvString("LLM_API_KEY", c.LLM.APIKey))
	c.LLM.BaseURL = getEnvString("LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.Model = getEnvString("LLM_MODEL", c.LLM.Model)
	c.LLM.Temperature = getEnvFloatRange("LLM_TEMPERATURE", c.LLM.Temperature, 0, 2)
	c.LLM.MaxTokens = getEnvInt("LLM_MAX_TOKENS", c.LLM.MaxTokens)
	c.LLM.MaxRetries = getEnvIntRange("LLM_MAX_RETRIES", c.LLM.MaxRetries, 0, 10)

	c.Bedrock.Region = getEnvString("AWS_REGION", c.Bedrock.Region)
	c.Bedrock.ModelID = getEnvString("BEDROCK_MODEL_ID", c.Bedrock.ModelID)

	c.MarketData.Provider = getEnvString("MARKET_DATA_PROVIDER", c.MarketData.Provider)
	c.MarketData.YahooBaseURL = getEnvString("YAHOO_BASE_URL", c.MarketData.YahooBaseURL)

	c.Alpaca.APIKey = getEnvString("ALPACA_API_KEY", c.Alpaca.APIKey)
	c.Alpaca.APISecret = getEnvString("ALPACA_API_SECRET", c.Alpaca.APISecret)
	c.Alpaca.DataURL = getEnvString("ALPACA_DATA_URL", c.Alpaca.DataURL)

	c.AlphaVantage.APIKey = getEnvString("ALPHA_VANTAGE_API_KEY", c.AlphaVantage.APIKey)
	c.AlphaVantage.BaseURL = getEnvString("ALPHA_VANTAGE_BASE_URL", c.AlphaVantage.BaseURL)

	c.Database.URL = getEnvString("DATABASE_URL", c.Database.URL)

	c.Analysis.LookbackDays = getEnvInt("ANALYSIS_LOOKBACK_DAYS", c.Analysis.LookbackDays)
	c.Analysis.DefaultLanguage = getEnvString("DEFAULT_LANGUAGE", c.Analysis.DefaultLanguage)
	c.Analysis.TickerResolution = getEnvString("TICKER_RESOLUTION", c.Analysis.TickerResolution)
	c.Analysis.ConcurrencyLimit = getEnvInt("ANALYSIS_CONCURRENCY_LIMIT", c.Analysis.ConcurrencyLimit)
	c.Analysis.TimeoutSeconds = getEnvInt("ANALYSIS_TIMEOUT_SECONDS", c.Analysis.TimeoutSeconds)
	c.Analysis.ResultStoreSize = getEnvInt("RESULT_STORE_SIZE", c.Analysis.ResultStoreSize)

	c.Cache.TTLSeconds = getEnvIntRange("CACHE_TTL_SECONDS", c.Cache.TTLSeconds, 0, 7*24*3600)

	c.Breaker.MinRequests = getEnvIntRange("BREAKER_MIN_REQUESTS", c.Breaker.MinRequests, 1, 1000)
	c.Breaker.FailureRatio = getEnvFloatRange("BREAKER_FAILURE_RATIO", c.Breaker.FailureRatio, 0.01, 1)
	c.Breaker.OpenSeconds = getEnvInt("BREAKER_OPEN_SECONDS", c.Breaker.OpenSeconds)

	c.Report.FontPath = getEnvString("REPORT_FONT_PATH", c.Report.FontPath)
	c.Report.TempDir = getEnvString("REPORT_TEMP_DIR", c.Report.TempDir)

	c.HTTP.Addr = getEnvString("HTTP_ADDR", c.HTTP.Addr)
	c.HTTP.CORSAllowedOrigins = getEnvString("CORS_ALLOWED_ORIGINS", c.HTTP.CORSAllowedOrigins)
	c.HTTP.RequestTimeoutSeconds = getEnvInt("REQUEST_TIMEOUT_SECONDS", c.HTTP.RequestTimeoutSeconds)

	c.Log.Level = getEnvString("LOG_LEVEL", c.Log.Level)
	if env := os.Getenv("APP_ENV"); env != "" {
		c.Log.Production = strings.EqualFold(env, "production")
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderBedrock:
	default:
		return fmt.Errorf("LLM_PROVIDER must be %q or %q, got %q", ProviderOpenAI, ProviderBedrock, c.LLM.Provider)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("LLM_TEMPERATURE must be between 0 and 2, got %.2f", c.LLM.Temperature)
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("LLM_MAX_TOKENS must be positive, got %d", c.LLM.MaxTokens)
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("LLM_MAX_RETRIES must not be negative, got %d", c.LLM.MaxRetries)
	}

	switch c.MarketData.Provider {
	case MarketDataYahoo, MarketDataAlpaca:
	default:
		return fmt.Errorf("MARKET_DATA_PROVIDER must be %q or %q, got %q", MarketDataYahoo, MarketDataAlpaca, c.MarketData.Provider)
	}
	if c.MarketData.Provider == MarketDataAlpaca && !c.HasAlpaca() {
		return fmt.Errorf("MARKET_DATA_PROVIDER=alpaca requires ALPACA_API_KEY and ALPACA_API_SECRET")
	}

	switch c.Analysis.DefaultLanguage {
	case "en", "he":
	default:
		return fmt.Errorf("DEFAULT_LANGUAGE must be \"en\" or \"he\", got %q", c.Analysis.DefaultLanguage)
	}
	switch c.Analysis.TickerResolution {
	case ResolutionHeuristic, ResolutionAlways:
	default:
		return fmt.Errorf("TICKER_RESOLUTION must be %q or %q, got %q", ResolutionHeuristic, ResolutionAlways, c.Analysis.TickerResolution)
	}
	if c.Analysis.LookbackDays <= 0 {
		return fmt.Errorf("ANALYSIS_LOOKBACK_DAYS must be positive, got %d", c.Analysis.LookbackDays)
	}
	if c.Analysis.ConcurrencyLimit <= 0 {
		return fmt.Errorf("ANALYSIS_CONCURRENCY_LIMIT must be positive, got %d", c.Analysis.ConcurrencyLimit)
	}
	if c.Analysis.TimeoutSeconds <= 0 {
		return fmt.Errorf("ANALYSIS_TIMEOUT_SECONDS must be positive, got %d", c.Analysis.TimeoutSeconds)
	}
	if c.Analysis.ResultStoreSize <= 0 {
		return fmt.Errorf("RESULT_STORE_SIZE must be positive, got %d", c.Analysis.ResultStoreSize)
	}
	if c.Cache.TTLSeconds < 0 {
		return fmt.Errorf("CACHE_TTL_SECONDS must not be negative, got %d", c.Cache.TTLSeconds)
	}
	if c.Breaker.MinRequests <= 0 || c.Breaker.HalfOpenProbes <= 0 {
		return fmt.Errorf("breaker min_requests and half_open_probes must be positive")
	}
	if c.Breaker.FailureRatio <= 0 || c.Breaker.FailureRatio > 1 {
		return fmt.Errorf("BREAKER_FAILURE_RATIO must be in (0, 1], got %.2f", c.Breaker.FailureRatio)
	}
	if c.Breaker.OpenSeconds <= 0 || c.Breaker.IntervalSeconds < 0 {
		return fmt.Errorf("BREAKER_OPEN_SECONDS must be positive, got %d", c.Breaker.OpenSeconds)
	}

	return nil
}

// HasLLM returns true if the selected LLM provider has credentials.
// Bedrock relies on the AWS credential chain, so it is always considered configured.
func (c *Config) HasLLM() bool {
	if c.LLM.Provider == ProviderBedrock {
		return true
	}
	return c.LLM.APIKey != ""
}

// HasDatabase returns true if database configuration is available
func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}

// HasAlpaca returns true if Alpaca configuration is available
func (c *Config) HasAlpaca() bool {
	return c.Alpaca.APIKey != "" && c.Alpaca.APISecret != ""
}

// HasAlphaVantage returns true if Alpha Vantage configuration is available
func (c *Config) HasAlphaVantage() bool {
	return c.AlphaVantage.APIKey != ""
}

// CacheTTL returns the result cache TTL; zero means caching is disabled
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// AnalysisTimeout returns the per-run pipeline timeout
func (c *Config) AnalysisTimeout() time.Duration {
	return time.Duration(c.Analysis.TimeoutSeconds) * time.Second
}

func getEnvString(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvIntRange(key string, defaultValue, minVal, maxVal int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed >= minVal && parsed <= maxVal {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloatRange(key string, defaultValue, minVal, maxVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil && parsed >= minVal && parsed <= maxVal {
			return parsed
		}
	}
	return defaultValue
}

// NewTestConfig creates a Config with default values for testing
func NewTestConfig() *Config {
	cfg := Defaults()
	cfg.LLM.MaxRetries = 0
	cfg.HTTP.RequestTimeoutSeconds = 30
	cfg.Analysis.TimeoutSeconds = 30
	return cfg
}
