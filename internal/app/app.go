package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"buyside-ai/agents"
	"buyside-ai/charts"
	"buyside-ai/config"
	"buyside-ai/models"
	"buyside-ai/observability"
)

var (
	// ErrQueueFull is returned when every analysis slot is busy
	ErrQueueFull = errors.New("analysis queue full, too many concurrent requests - try again later")
	// ErrResultNotFound is returned for unknown or evicted result ids
	ErrResultNotFound = errors.New("analysis result not found")
	// ErrInvalidID is returned for result ids that are not UUIDs
	ErrInvalidID = errors.New("invalid UUID")
)

// Agent runs analyses in one language
type Agent interface {
	AnalyzeStocks(ctx context.Context, input string) (*models.AnalysisResult, error)
	Compare(ctx context.Context, tickers []string, start, end time.Time, chart *agents.ChartOptions) (*models.AnalysisResult, error)
	Chat(ctx context.Context, prompt string) models.Narrative
	Report(result *models.AnalysisResult, chart *agents.ChartOptions) ([]byte, error)
}

// AgentFactory returns the agent for a language
type AgentFactory func(lang models.Language) Agent

// LanguageAgents adapts a FinancialAgent into an AgentFactory
func LanguageAgents(agent *agents.FinancialAgent) AgentFactory {
	return func(lang models.Language) Agent {
		return agent.WithLanguage(lang)
	}
}

// RepositoryInterface defines the repository operations needed by App
type RepositoryInterface interface {
	Close()
	Health(ctx context.Context) error
}

// CompareRequest is an explicit-range comparison of literal tickers
type CompareRequest struct {
	Tickers  []string
	Start    time.Time
	End      time.Time
	Language models.Language
	Chart    *agents.ChartOptions
}

// App struct holds application dependencies using interfaces for testability
type App struct {
	cfg         *config.Config
	agentFor    AgentFactory
	repo        RepositoryInterface
	results     *resultStore
	analysisSem chan struct{}
}

// New creates a new App. repo may be nil when no database is configured.
func New(cfg *config.Config, agentFor AgentFactory, repo RepositoryInterface) *App {
	return &App{
		cfg:         cfg,
		agentFor:    agentFor,
		repo:        repo,
		results:     newResultStore(cfg.Analysis.ResultStoreSize),
		analysisSem: make(chan struct{}, cfg.Analysis.ConcurrencyLimit),
	}
}

// Shutdown releases the database connection
func (a *App) Shutdown(ctx context.Context) {
	if a.repo != nil {
		a.repo.Close()
	}
}

// HasDatabase reports whether a database is configured
func (a *App) HasDatabase() bool {
	return a.repo != nil
}

// Health checks the database connection, if any
func (a *App) Health(ctx context.Context) error {
	if a.repo == nil {
		return nil
	}
	return a.repo.Health(ctx)
}

// DefaultLanguage returns the configured default language
func (a *App) DefaultLanguage() models.Language {
	return models.Language(a.cfg.Analysis.DefaultLanguage)
}

// AnalyzeStocks analyzes comma separated company names or tickers
func (a *App) AnalyzeStocks(ctx context.Context, input string, lang models.Language) (*models.AnalysisResult, error) {
	return a.runAnalysis(ctx, func(ctx context.Context) (*models.AnalysisResult, error) {
		return a.agent(lang).AnalyzeStocks(ctx, input)
	})
}

// Compare analyzes literal tickers over an explicit date range
func (a *App) Compare(ctx context.Context, req CompareRequest) (*models.AnalysisResult, error) {
	return a.runAnalysis(ctx, func(ctx context.Context) (*models.AnalysisResult, error) {
		return a.agent(req.Language).Compare(ctx, req.Tickers, req.Start, req.End, req.Chart)
	})
}

// Chat answers a follow-up question
func (a *App) Chat(ctx context.Context, prompt string, lang models.Language) models.Narrative {
	if a.agentFor == nil {
		return models.NarrativeFailure("financial agent not initialized")
	}
	return a.agent(lang).Chat(ctx, prompt)
}

// GetResult returns a stored analysis by id
func (a *App) GetResult(id string) (*models.AnalysisResult, error) {
	parsed, err := ParseUUID(id)
	if err != nil {
		return nil, err
	}
	result, ok := a.results.get(parsed)
	if !ok {
		return nil, ErrResultNotFound
	}
	return result, nil
}

// ChartData returns the chart series of a stored analysis
func (a *App) ChartData(id string, period models.Period, mode models.Mode) (*models.ChartSeries, error) {
	result, err := a.GetResult(id)
	if err != nil {
		return nil, err
	}
	return charts.Prepare(result.Prices, period, mode)
}

// ChartImage renders the chart of a stored analysis as PNG
func (a *App) ChartImage(id string, opts agents.ChartOptions) ([]byte, error) {
	result, err := a.GetResult(id)
	if err != nil {
		return nil, err
	}
	return agents.RenderChart(result.Prices, opts)
}

// Report returns the PDF of a stored analysis. With chart options the report
// is composed again with that chart.
func (a *App) Report(id string, chart *agents.ChartOptions) ([]byte, error) {
	result, err := a.GetResult(id)
	if err != nil {
		return nil, err
	}
	if chart == nil && len(result.Report) > 0 {
		return result.Report, nil
	}
	return a.agent(result.Language).Report(result, chart)
}

// ParseUUID parses a string UUID
func ParseUUID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrInvalidID, err)
	}
	return parsed, nil
}

// AnalysisSemCapacity returns the capacity of the analysis semaphore (for testing)
func (a *App) AnalysisSemCapacity() int {
	return cap(a.analysisSem)
}

func (a *App) agent(lang models.Language) Agent {
	if lang == "" {
		lang = a.DefaultLanguage()
	}
	return a.agentFor(lang)
}

func (a *App) runAnalysis(ctx context.Context, run func(context.Context) (*models.AnalysisResult, error)) (*models.AnalysisResult, error) {
	if a.agentFor == nil {
		return nil, fmt.Errorf("financial agent not initialized")
	}

	select {
	case a.analysisSem <- struct{}{}:
		defer func() { <-a.analysisSem }()
	default:
		observability.Warn("analysis rejected", "reason", "queue full", "capacity", cap(a.analysisSem))
		return nil, ErrQueueFull
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.AnalysisTimeout())
	defer cancel()

	result, err := run(ctx)
	if err != nil {
		return nil, err
	}
	a.results.put(result)
	return result, nil
}
