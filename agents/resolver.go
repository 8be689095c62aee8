package agents

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"buyside-ai/config"
	"buyside-ai/models"
	"buyside-ai/observability"
	"buyside-ai/services"
)

// tickerPattern matches entries that already look like a listing symbol (AAPL, BRK.B, TEVA-TA)
var tickerPattern = regexp.MustCompile(`^[A-Z0-9]{1,5}([.-][A-Z0-9]{1,4})?$`)

// TickerResolver maps company names to ticker symbols
type TickerResolver struct {
	llm  LLMService
	mode string
}

// NewTickerResolver creates a resolver. mode is config.ResolutionHeuristic or
// config.ResolutionAlways; a nil llm upper-cases every entry.
func NewTickerResolver(llm LLMService, mode string) *TickerResolver {
	if mode == "" {
		mode = config.ResolutionHeuristic
	}
	return &TickerResolver{llm: llm, mode: mode}
}

// Resolve returns the ticker for one user entry. It never fails; when the LLM is
// unavailable or answers with nothing, the entry itself is upper-cased.
func (r *TickerResolver) Resolve(ctx context.Context, entry string, lang models.Language) string {
	entry = strings.TrimSpace(entry)
	fallback := strings.ToUpper(entry)
	metrics := observability.GetMetrics()

	if r.mode != config.ResolutionAlways && tickerPattern.MatchString(entry) {
		metrics.RecordTickerResolution("literal")
		return entry
	}
	if r.llm == nil {
		metrics.RecordTickerResolution("fallback")
		return fallback
	}

	answer, err := r.llm.Complete(ctx, services.CompletionRequest{
		Messages:    []services.ChatMessage{{Role: "system", Content: resolutionPrompt(entry, lang)}},
		Temperature: 0,
		MaxTokens:   20,
	})
	if err != nil {
		observability.Warn("ticker resolution failed", "entry", entry, "error", err)
		metrics.RecordTickerResolution("fallback")
		return fallback
	}

	ticker := firstToken(answer)
	if ticker == "" {
		metrics.RecordTickerResolution("fallback")
		return fallback
	}

	observability.Debug("resolved ticker", "entry", entry, "symbol", ticker)
	metrics.RecordTickerResolution("llm")
	return ticker
}

// ResolveAll resolves each entry in order
func (r *TickerResolver) ResolveAll(ctx context.Context, entries []string, lang models.Language) []string {
	tickers := make([]string, 0, len(entries))
	for _, entry := range entries {
		tickers = append(tickers, r.Resolve(ctx, entry, lang))
	}
	return tickers
}

func resolutionPrompt(company string, lang models.Language) string {
	if lang == models.LanguageHebrew {
		return fmt.Sprintf("אתה מומחה לשוק ההון. מהו הסימול לבורסה של '%s'? "+
			"ענה רק עם הסימול המדויק ללא טקסט נוסף, לדוגמה 'תכלת' עבור חברה מסוימת.", company)
	}
	return fmt.Sprintf("You are a stock market expert. What is the stock ticker for '%s'? "+
		"Return only the exact ticker without any additional text or explanation (e.g., 'AAPL').", company)
}

// firstToken upper-cases the first word of the answer, dropping quotes and trailing punctuation
func firstToken(answer string) string {
	fields := strings.Fields(answer)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(strings.Trim(fields[0], `'"`+"`.,;:"))
}

// SplitEntries splits comma separated input, trimming blanks and dropping empty entries
func SplitEntries(input string) []string {
	var entries []string
	for _, part := range strings.Split(input, ",") {
		if part = strings.TrimSpace(part); part != "" {
			entries = append(entries, part)
		}
	}
	return entries
}
