package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"buyside-ai/agents"
	"buyside-ai/config"
	"buyside-ai/internal/app"
	"buyside-ai/models"
	"buyside-ai/observability"
	"buyside-ai/report"
	"buyside-ai/services"
	"buyside-ai/templates"
)

// dateLayout is the request date format
const dateLayout = "2006-01-02"

// Handler handles HTTP API requests
type Handler struct {
	app      *app.App
	cfg      *config.Config
	markdown goldmark.Markdown
}

// NewHandler creates a new Handler
func NewHandler(application *app.App, cfg *config.Config) *Handler {
	return &Handler{
		app: application,
		cfg: cfg,
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.Table, extension.Strikethrough),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
	}
}

// AnalyzeRequest asks for an analysis of company names or tickers
type AnalyzeRequest struct {
	Input    string `json:"input"`
	Language string `json:"language"`
}

// CompareRequest asks for a comparison of literal tickers over a date range
type CompareRequest struct {
	Tickers   []string `json:"tickers"`
	Start     string   `json:"start"`
	End       string   `json:"end"`
	Language  string   `json:"language"`
	Period    string   `json:"period"`
	Mode      string   `json:"mode"`
	ChartType string   `json:"chart_type"`
}

// ChatRequest is a follow-up question
type ChatRequest struct {
	Prompt   string `json:"prompt"`
	Language string `json:"language"`
}

// AnalysisResponse is the JSON view of an analysis result
type AnalysisResponse struct {
	ID            string               `json:"id"`
	Tickers       []string             `json:"tickers"`
	Start         string               `json:"start"`
	End           string               `json:"end"`
	Language      models.Language      `json:"language"`
	Metrics       *models.MetricsTable `json:"metrics"`
	Narrative     models.Narrative     `json:"narrative"`
	NarrativeHTML string               `json:"narrative_html,omitempty"`
	ReportURL     string               `json:"report_url"`
	ChartURL      string               `json:"chart_url"`
	CreatedAt     time.Time            `json:"created_at"`
}

// ChatResponse is the answer to a follow-up question
type ChatResponse struct {
	Narrative models.Narrative `json:"narrative"`
	HTML      string           `json:"html,omitempty"`
}

// HandleIndex serves the main application page using templ
func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	lang := h.app.DefaultLanguage()
	if q := r.URL.Query().Get("lang"); q != "" {
		if parsed, err := models.ParseLanguage(q); err == nil {
			lang = parsed
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Index(lang).Render(r.Context(), w); err != nil {
		observability.Error("failed to render index", "error", err)
	}
}

// HandleHealth returns the health status of the application
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status": "ok",
	}
	deps := map[string]string{
		"llm": "configured",
	}
	if !h.cfg.HasLLM() {
		deps["llm"] = "not_configured"
	}

	switch {
	case !h.app.HasDatabase():
		deps["database"] = "not_configured"
	case h.app.Health(r.Context()) == nil:
		deps["database"] = "connected"
	default:
		deps["database"] = "disconnected"
		status["status"] = "degraded"
	}
	status["services"] = deps

	breakers := services.GetGlobalRegistry()
	status["circuit_breakers"] = breakers.Status()
	if breakers.AnyOpen() {
		status["status"] = "degraded"
	}

	h.jsonResponse(w, http.StatusOK, status)
}

// HandleAnalyze runs the pipeline over company names or tickers for the last year
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if !h.decode(w, r, &req) {
		return
	}
	lang, ok := h.language(w, req.Language)
	if !ok {
		return
	}
	if strings.TrimSpace(req.Input) == "" {
		h.jsonError(w, "input is required", http.StatusBadRequest)
		return
	}

	result, err := h.app.AnalyzeStocks(r.Context(), req.Input, lang)
	if err != nil {
		h.analysisError(w, err, lang)
		return
	}

	h.jsonResponse(w, http.StatusOK, h.analysisResponse(result))
}

// HandleCompare runs the pipeline over literal tickers and an explicit date range
func (h *Handler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if !h.decode(w, r, &req) {
		return
	}
	lang, ok := h.language(w, req.Language)
	if !ok {
		return
	}

	start, err := time.Parse(dateLayout, strings.TrimSpace(req.Start))
	if err != nil {
		h.jsonError(w, "start must be a YYYY-MM-DD date", http.StatusBadRequest)
		return
	}
	end, err := time.Parse(dateLayout, strings.TrimSpace(req.End))
	if err != nil {
		h.jsonError(w, "end must be a YYYY-MM-DD date", http.StatusBadRequest)
		return
	}
	chart, err := ParseChartOptions(req.Period, req.Mode, req.ChartType)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.app.Compare(r.Context(), app.CompareRequest{
		Tickers:  req.Tickers,
		Start:    start,
		End:      end,
		Language: lang,
		Chart:    &chart,
	})
	if err != nil {
		h.analysisError(w, err, lang)
		return
	}

	h.jsonResponse(w, http.StatusOK, h.analysisResponse(result))
}

// HandleChat answers a follow-up question
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !h.decode(w, r, &req) {
		return
	}
	lang, ok := h.language(w, req.Language)
	if !ok {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		h.jsonError(w, "prompt is required", http.StatusBadRequest)
		return
	}

	n := h.app.Chat(r.Context(), req.Prompt, lang)
	h.jsonResponse(w, http.StatusOK, ChatResponse{Narrative: n, HTML: h.narrativeHTML(n)})
}

// HandleGetResult returns a stored analysis
func (h *Handler) HandleGetResult(w http.ResponseWriter, r *http.Request) {
	result, err := h.app.GetResult(chi.URLParam(r, "id"))
	if err != nil {
		h.resultError(w, err)
		return
	}
	h.jsonResponse(w, http.StatusOK, h.analysisResponse(result))
}

// HandleChartData returns chart-ready series for a stored analysis
func (h *Handler) HandleChartData(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts, err := ParseChartOptions(q.Get("period"), q.Get("mode"), "")
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	series, err := h.app.ChartData(chi.URLParam(r, "id"), opts.Period, opts.Mode)
	if err != nil {
		h.resultError(w, err)
		return
	}
	h.jsonResponse(w, http.StatusOK, series)
}

// HandleChartImage renders the chart of a stored analysis as PNG
func (h *Handler) HandleChartImage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts, err := ParseChartOptions(q.Get("period"), q.Get("mode"), q.Get("chart_type"))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	png, err := h.app.ChartImage(chi.URLParam(r, "id"), opts)
	if err != nil {
		h.resultError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

// HandleReport downloads the PDF report of a stored analysis. Chart query
// parameters compose the report again with that chart.
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	var chart *agents.ChartOptions
	q := r.URL.Query()
	if q.Has("period") || q.Has("mode") || q.Has("chart_type") {
		opts, err := ParseChartOptions(q.Get("period"), q.Get("mode"), q.Get("chart_type"))
		if err != nil {
			h.jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		chart = &opts
	}

	pdf, err := h.app.Report(chi.URLParam(r, "id"), chart)
	if err != nil {
		h.resultError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.Filename+`"`)
	w.Write(pdf)
}

// ParseChartOptions parses chart query or body fields. Empty values take the defaults.
func ParseChartOptions(period, mode, chartType string) (agents.ChartOptions, error) {
	opts := agents.DefaultChartOptions
	var err error
	if opts.Period, err = models.ParsePeriod(period); err != nil {
		return opts, err
	}
	if mode != "" {
		if opts.Mode, err = models.ParseMode(mode); err != nil {
			return opts, err
		}
	}
	if chartType != "" {
		if opts.Type, err = models.ParseChartType(chartType); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

// Helper functions

func (h *Handler) analysisResponse(result *models.AnalysisResult) AnalysisResponse {
	id := result.ID.String()
	return AnalysisResponse{
		ID:            id,
		Tickers:       result.Tickers,
		Start:         result.Start.Format(dateLayout),
		End:           result.End.Format(dateLayout),
		Language:      result.Language,
		Metrics:       result.Metrics,
		Narrative:     result.Narrative,
		NarrativeHTML: h.narrativeHTML(result.Narrative),
		ReportURL:     "/api/results/" + id + "/report.pdf",
		ChartURL:      "/api/results/" + id + "/chart.png",
		CreatedAt:     result.CreatedAt,
	}
}

// narrativeHTML renders generated markdown; failed narratives have no HTML
func (h *Handler) narrativeHTML(n models.Narrative) string {
	if !n.OK() {
		return ""
	}
	var buf bytes.Buffer
	if err := h.markdown.Convert([]byte(n.Text), &buf); err != nil {
		observability.Warn("failed to render narrative markdown", "error", err)
		return ""
	}
	return buf.String()
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handler) language(w http.ResponseWriter, s string) (models.Language, bool) {
	if s == "" {
		return h.app.DefaultLanguage(), true
	}
	lang, err := models.ParseLanguage(s)
	if err != nil {
		h.jsonError(w, "language must be \"en\" or \"he\"", http.StatusBadRequest)
		return "", false
	}
	return lang, true
}

func (h *Handler) analysisError(w http.ResponseWriter, err error, lang models.Language) {
	switch {
	case errors.Is(err, models.ErrNoData):
		h.jsonError(w, lang.NoDataMessage(), http.StatusNotFound)
	case errors.Is(err, models.ErrNoTickers),
		errors.Is(err, models.ErrInvalidDateRange),
		errors.Is(err, models.ErrInsufficientData):
		h.jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, app.ErrQueueFull):
		h.jsonError(w, err.Error(), http.StatusTooManyRequests)
	case errors.Is(err, context.DeadlineExceeded):
		h.jsonError(w, "analysis timed out", http.StatusGatewayTimeout)
	default:
		observability.Error("analysis failed", "error", err)
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) resultError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrResultNotFound):
		h.jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, app.ErrInvalidID),
		errors.Is(err, models.ErrInvalidPeriod),
		errors.Is(err, models.ErrInvalidMode),
		errors.Is(err, models.ErrInvalidChartType):
		h.jsonError(w, err.Error(), http.StatusBadRequest)
	// the options leave nothing to draw, e.g. yearly returns inside one year
	case errors.Is(err, models.ErrNoData), errors.Is(err, report.ErrEmptyMetrics):
		h.jsonError(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		observability.Error("result request failed", "error", err)
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, status int) {
	h.jsonResponse(w, status, map[string]string{"error": message})
}
