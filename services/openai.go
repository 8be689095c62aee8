package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/tidwall/gjson"

	appconfig "buyside-ai/config"
	"buyside-ai/observability"
)

// openaiClient defines the interface for chat completion calls (for testing)
type openaiClient interface {
	CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// openaiClientWrapper wraps the openai.Client to implement our interface
type openaiClientWrapper struct {
	client openai.Client
}

func (w *openaiClientWrapper) CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return w.client.Chat.Completions.New(ctx, params)
}

// OpenAIService talks to any OpenAI-compatible chat completion endpoint
// (Together AI by default).
type OpenAIService struct {
	client    openaiClient
	model     string
	maxTokens int
}

// NewOpenAIService creates a new OpenAIService instance
func NewOpenAIService(cfg *appconfig.Config) (*OpenAIService, error) {
	if cfg.LLM.APIKey == "" {
		return nil, fmt.Errorf("TOGETHER_API_KEY: %w", ErrMissingAPIKey)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.LLM.APIKey),
		option.WithMaxRetries(cfg.LLM.MaxRetries),
	}
	if cfg.LLM.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.LLM.BaseURL))
	}

	client := openai.NewClient(opts...)

	return &OpenAIService{
		client:    &openaiClientWrapper{client: client},
		model:     cfg.LLM.Model,
		maxTokens: cfg.LLM.MaxTokens,
	}, nil
}

// newOpenAIServiceWithClient creates an OpenAIService with a custom client (for testing)
func newOpenAIServiceWithClient(client openaiClient, model string, maxTokens int) *OpenAIService {
	return &OpenAIService{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
	}
}

// Complete sends the messages and returns the first choice's content
func (s *OpenAIService) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerLLM, "chat_completion")
	timer := metrics.NewTimer()

	result, err := WithCircuitBreaker(ctx, BreakerLLM, func() (string, error) {
		completion, err := s.client.CreateChatCompletion(ctx, s.params(req))
		if err != nil {
			return "", classifyOpenAIError(err)
		}

		if len(completion.Choices) == 0 {
			raw := completion.RawJSON()
			if e := gjson.Get(raw, "error"); e.Exists() {
				return "", Permanent(&ErrorPayloadError{Payload: payloadText(e)})
			}
			return "", Permanent(&UnexpectedResponseError{Body: raw})
		}

		return completion.Choices[0].Message.Content, nil
	})

	timer.ObserveExternalAPI(BreakerLLM, "chat_completion")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerLLM, "chat_completion", categorizeAPIError(err))
	}
	return result, err
}

func (s *OpenAIService) params(req CompletionRequest) openai.ChatCompletionNewParams {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = s.maxTokens
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(msg.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	return openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(s.model),
		MaxTokens:   openai.Int(int64(maxTokens)),
		Temperature: openai.Float(req.Temperature),
		Messages:    messages,
	}
}

// classifyOpenAIError turns an API error whose body carries an "error" object
// into an ErrorPayloadError; a JSON body without one becomes an
// UnexpectedResponseError. Transport failures pass through unchanged.
func classifyOpenAIError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("failed to contact LLM endpoint: %w", err)
	}

	raw := apiErr.RawJSON()
	if raw == "" || !gjson.Valid(raw) {
		return fmt.Errorf("failed to contact LLM endpoint: %w", err)
	}

	// openai-go unwraps the "error" envelope, so the raw JSON is usually the error object itself.
	payload := gjson.Parse(raw)
	if e := payload.Get("error"); e.Exists() {
		payload = e
	}

	var wrapped error
	if payload.IsObject() && (payload.Get("message").Exists() || payload.Get("type").Exists() || payload.Get("code").Exists()) || payload.Type == gjson.String {
		wrapped = &ErrorPayloadError{StatusCode: apiErr.StatusCode, Payload: payloadText(payload)}
	} else {
		wrapped = &UnexpectedResponseError{Body: raw}
	}

	if apiErr.StatusCode >= 500 || apiErr.StatusCode == 429 {
		return wrapped
	}
	return Permanent(wrapped)
}

func payloadText(v gjson.Result) string {
	if v.Type == gjson.String {
		return v.String()
	}
	return v.Raw
}
