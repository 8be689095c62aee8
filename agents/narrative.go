package agents

import (
	"context"
	"errors"
	"fmt"

	"buyside-ai/models"
	"buyside-ai/observability"
	"buyside-ai/services"
)

// MissingKeyMessage is the narrative text when no LLM is configured
const MissingKeyMessage = "Error: TOGETHER_API_KEY not found in environment variables."

// NarrativeSettings are the sampling parameters of narrative and chat calls
type NarrativeSettings struct {
	Temperature float64
	MaxTokens   int
}

// DefaultNarrativeSettings matches the LLM section defaults
var DefaultNarrativeSettings = NarrativeSettings{Temperature: 0.7, MaxTokens: 500}

type narrativePrompts struct {
	system string
	user   string // formatted with the CSV summary
}

var prompts = map[models.Language]narrativePrompts{
	models.LanguageEnglish: {
		system: "You are a smart financial advisor. Respond in English with a friendly and professional analysis.",
		user:   "Here is a table (CSV) with stock statistics:\n\n%s\n\nPlease analyze it and explain the key metrics to the user.",
	},
	models.LanguageHebrew: {
		system: "אתה יועץ פיננסי חכם. ענה בעברית בניתוח מקצועי וידידותי על הנתונים שהוזנו.",
		user:   "הנה נתונים על מניות בטבלה (CSV):\n\n%s\n\nנתח את הנתונים והסבר למשתמש את הביצועים והסטטיסטיקות החשובות.",
	},
}

func promptsFor(lang models.Language) narrativePrompts {
	if p, ok := prompts[lang]; ok {
		return p
	}
	return prompts[models.LanguageEnglish]
}

// NarrativeGenerator asks the LLM to explain a metrics summary.
// A nil LLM means no credential was configured.
type NarrativeGenerator struct {
	llm      LLMService
	settings NarrativeSettings
}

// NewNarrativeGenerator creates a NarrativeGenerator with DefaultNarrativeSettings
func NewNarrativeGenerator(llm LLMService) *NarrativeGenerator {
	return &NarrativeGenerator{llm: llm, settings: DefaultNarrativeSettings}
}

// WithSettings returns a copy using s. A non-positive MaxTokens keeps the current value.
func (g *NarrativeGenerator) WithSettings(s NarrativeSettings) *NarrativeGenerator {
	clone := *g
	if s.MaxTokens <= 0 {
		s.MaxTokens = g.settings.MaxTokens
	}
	clone.settings = s
	return &clone
}

// Generate returns the narrative for a CSV summary. It never fails: any problem
// is reported as a failed Narrative whose text explains what went wrong.
func (g *NarrativeGenerator) Generate(ctx context.Context, summaryCSV string, lang models.Language) models.Narrative {
	p := promptsFor(lang)
	return g.complete(ctx, lang, []services.ChatMessage{
		{Role: "system", Content: p.system},
		{Role: "user", Content: fmt.Sprintf(p.user, summaryCSV)},
	})
}

// Chat answers a free-form follow-up question with the advisor persona
func (g *NarrativeGenerator) Chat(ctx context.Context, question string, lang models.Language) models.Narrative {
	return g.complete(ctx, lang, []services.ChatMessage{
		{Role: "system", Content: promptsFor(lang).system},
		{Role: "user", Content: question},
	})
}

func (g *NarrativeGenerator) complete(ctx context.Context, lang models.Language, messages []services.ChatMessage) models.Narrative {
	metrics := observability.GetMetrics()

	if g == nil || g.llm == nil {
		metrics.RecordNarrative(string(lang), "missing_key")
		return models.NarrativeFailure(MissingKeyMessage)
	}

	text, err := g.llm.Complete(ctx, services.CompletionRequest{
		Messages:    messages,
		Temperature: g.settings.Temperature,
		MaxTokens:   g.settings.MaxTokens,
	})
	if err != nil {
		observability.Warn("narrative generation failed", "language", string(lang), "error", err)
		metrics.RecordNarrative(string(lang), "failed")
		return models.NarrativeFailure(failureMessage(err))
	}

	metrics.RecordNarrative(string(lang), "ok")
	return models.NarrativeSuccess(text)
}

// failureMessage maps an LLM error to the text shown in place of the analysis
func failureMessage(err error) string {
	var payload *services.ErrorPayloadError
	if errors.As(err, &payload) {
		return "Server error: " + payload.Payload
	}
	var unexpected *services.UnexpectedResponseError
	if errors.As(err, &unexpected) {
		return "Unexpected response: " + unexpected.Body
	}
	return fmt.Sprintf("Error contacting AI: %v", err)
}
