package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"buyside-ai/analysis"
	"buyside-ai/charts"
	"buyside-ai/models"
	"buyside-ai/observability"
	"buyside-ai/report"
)

// Analysis kinds, used as metric labels
const (
	KindAnalyze = "analyze"
	KindCompare = "compare"
)

var (
	// ErrPriceFetch wraps failures of the price provider
	ErrPriceFetch = errors.New("failed to fetch prices")
	// ErrReportCompose wraps failures of the PDF composer
	ErrReportCompose = errors.New("failed to compose report")
)

// ChartOptions selects the chart embedded in a report
type ChartOptions struct {
	Period models.Period
	Mode   models.Mode
	Type   models.ChartType
}

// DefaultChartOptions is the cumulative normalized line chart
var DefaultChartOptions = ChartOptions{
	Period: models.PeriodNone,
	Mode:   models.ModeNormalized,
	Type:   models.ChartLine,
}

// AgentConfig wires a FinancialAgent. Info, LLM, Narrative and Cache may be nil.
type AgentConfig struct {
	Fetcher          PriceFetcher
	Info             InfoLookup
	LLM              LLMService
	Narrative        *NarrativeSettings
	Composer         *report.Composer
	Cache            ResultCache
	Language         models.Language
	LookbackDays     int
	TickerResolution string
}

// FinancialAgent runs the analysis pipeline: prices, statistics, CSV summary,
// narrative and PDF report. It keeps no per-request state; the only setting is
// the language.
type FinancialAgent struct {
	fetcher  PriceFetcher
	info     InfoLookup
	narrator *NarrativeGenerator
	resolver *TickerResolver
	composer *report.Composer
	cache    ResultCache
	language models.Language
	lookback int
	now      func() time.Time
}

// NewFinancialAgent creates a new FinancialAgent
func NewFinancialAgent(cfg AgentConfig) *FinancialAgent {
	lang := cfg.Language
	if lang == "" {
		lang = models.LanguageEnglish
	}
	lookback := cfg.LookbackDays
	if lookback <= 0 {
		lookback = 365
	}
	composer := cfg.Composer
	if composer == nil {
		composer = report.NewComposer("", "")
	}
	narrator := NewNarrativeGenerator(cfg.LLM)
	if cfg.Narrative != nil {
		narrator = narrator.WithSettings(*cfg.Narrative)
	}

	return &FinancialAgent{
		fetcher:  cfg.Fetcher,
		info:     cfg.Info,
		narrator: narrator,
		resolver: NewTickerResolver(cfg.LLM, cfg.TickerResolution),
		composer: composer,
		cache:    cfg.Cache,
		language: lang,
		lookback: lookback,
		now:      time.Now,
	}
}

// WithLanguage returns a copy of the agent that answers in lang
func (a *FinancialAgent) WithLanguage(lang models.Language) *FinancialAgent {
	clone := *a
	clone.language = lang
	return &clone
}

// Language returns the agent's language
func (a *FinancialAgent) Language() models.Language {
	return a.language
}

// AnalyzeStocks resolves comma separated company names or tickers and
// analyzes the last year of prices up to today.
func (a *FinancialAgent) AnalyzeStocks(ctx context.Context, input string) (*models.AnalysisResult, error) {
	entries := SplitEntries(input)
	if len(entries) == 0 {
		return nil, models.ErrNoTickers
	}

	tickers := a.resolver.ResolveAll(ctx, entries, a.language)
	end := models.TradingDay(a.now())
	start := end.AddDate(0, 0, -a.lookback)

	return a.run(ctx, KindAnalyze, tickers, start, end, nil)
}

// Compare analyzes literal tickers over an explicit date range. The report
// carries the chart described by chart; nil means DefaultChartOptions.
func (a *FinancialAgent) Compare(ctx context.Context, tickers []string, start, end time.Time, chart *ChartOptions) (*models.AnalysisResult, error) {
	symbols := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			symbols = append(symbols, t)
		}
	}
	if len(symbols) == 0 {
		return nil, models.ErrNoTickers
	}
	if start.After(end) {
		return nil, models.ErrInvalidDateRange
	}
	if chart == nil {
		chart = &DefaultChartOptions
	}

	return a.run(ctx, KindCompare, symbols, models.TradingDay(start), models.TradingDay(end), chart)
}

// Chat answers a follow-up question. Like the narrative it never fails.
func (a *FinancialAgent) Chat(ctx context.Context, prompt string) models.Narrative {
	return a.narrator.Chat(ctx, prompt, a.language)
}

// Report composes the PDF for a finished analysis. A chart that cannot be
// rendered is left out of the report.
func (a *FinancialAgent) Report(result *models.AnalysisResult, chart *ChartOptions) ([]byte, error) {
	var png []byte
	if chart != nil {
		var err error
		png, err = RenderChart(result.Prices, *chart)
		if err != nil {
			observability.Warn("chart omitted from report",
				"analysis_id", result.ID.String(),
				"error", err)
			png = nil
		}
	}

	narrative := result.Narrative
	return a.composer.Compose(result.Metrics, &narrative, png)
}

// RenderChart prepares and draws a price chart as PNG
func RenderChart(prices *models.PriceTable, opts ChartOptions) ([]byte, error) {
	series, err := charts.Prepare(prices, opts.Period, opts.Mode)
	if err != nil {
		return nil, err
	}
	return charts.RenderPNG(series, opts.Type, series.Title())
}

func (a *FinancialAgent) run(ctx context.Context, kind string, tickers []string, start, end time.Time, chart *ChartOptions) (*models.AnalysisResult, error) {
	metrics := observability.GetMetrics()
	metrics.RecordAnalysisRequest(kind)
	metrics.RecordTickers(len(tickers))
	timer := metrics.NewTimer()

	result, err := a.pipeline(ctx, kind, tickers, start, end, chart)
	if err != nil {
		timer.ObserveAnalysis(kind, "error")
		metrics.RecordAnalysisError(kind, analysisErrorType(err))
		observability.Warn("analysis failed", "kind", kind, "tickers", tickers, "error", err)
		return nil, err
	}

	timer.ObserveAnalysis(kind, "success")
	observability.WithAnalysis(result.ID.String()).Info("analysis completed",
		"kind", kind,
		"tickers", result.Metrics.Tickers(),
		"narrative", string(result.Narrative.Status))
	return result, nil
}

func (a *FinancialAgent) pipeline(ctx context.Context, kind string, tickers []string, start, end time.Time, chart *ChartOptions) (*models.AnalysisResult, error) {
	key := CacheKey(tickers, start, end, a.language)
	if cached := a.cached(ctx, key); cached != nil {
		hit := *cached
		hit.ID = uuid.New()
		hit.CreatedAt = a.now().UTC()
		pdf, err := a.Report(&hit, chart)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrReportCompose, err)
		}
		hit.Report = pdf
		return &hit, nil
	}

	prices, err := a.fetcher.FetchPrices(ctx, tickers, start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPriceFetch, err)
	}
	if prices.IsEmpty() {
		return nil, models.ErrNoData
	}

	stats, err := analysis.ComputeStatistics(ctx, prices, a.info)
	if err != nil {
		return nil, err
	}

	summary, err := analysis.MetricsToCSV(stats)
	if err != nil {
		return nil, fmt.Errorf("failed to build summary: %w", err)
	}

	result := models.NewAnalysisResult(tickers, start, end, a.language)
	result.Prices = prices
	result.Metrics = stats
	result.Narrative = a.narrator.Generate(ctx, summary, a.language)

	result.Report, err = a.Report(result, chart)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReportCompose, err)
	}

	// A failed narrative is usually transient; the next request asks again.
	if a.cache != nil && result.Narrative.OK() {
		if err := a.cache.Set(ctx, key, result); err != nil {
			observability.Warn("failed to cache analysis", "kind", kind, "error", err)
		}
	}
	return result, nil
}

func (a *FinancialAgent) cached(ctx context.Context, key string) *models.AnalysisResult {
	if a.cache == nil {
		return nil
	}
	result, ok, err := a.cache.Get(ctx, key)
	if err != nil {
		observability.Warn("result cache lookup failed", "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	return result
}

func analysisErrorType(err error) string {
	switch {
	case errors.Is(err, models.ErrNoData):
		return "no_data"
	case errors.Is(err, models.ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	case errors.Is(err, ErrPriceFetch):
		return "fetch_error"
	case errors.Is(err, ErrReportCompose):
		return "report_error"
	default:
		return "unknown"
	}
}
