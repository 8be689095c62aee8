package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

type mockBedrockInvoker struct {
	invokeFunc func(ctx context.Context, params *bedrockruntime.InvokeModelInput) (*bedrockruntime.InvokeModelOutput, error)
	lastBody   []byte
}

func (m *mockBedrockInvoker) InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	m.lastBody = params.Body
	return m.invokeFunc(ctx, params)
}

func TestBedrockService_Complete(t *testing.T) {
	resetBreakers(t)
	mock := &mockBedrockInvoker{
		invokeFunc: func(ctx context.Context, params *bedrockruntime.InvokeModelInput) (*bedrockruntime.InvokeModelOutput, error) {
			if *params.ModelId != "claude-test" {
				t.Errorf("model = %s", *params.ModelId)
			}
			return &bedrockruntime.InvokeModelOutput{
				Body: []byte(`{"id":"m1","type":"message","role":"assistant","content":[{"type":"text","text":"Both tickers fell 10% at worst."}]}`),
			}, nil
		},
	}
	svc := &BedrockService{client: mock, model: "claude-test", maxTokens: 500}

	text, err := svc.Complete(context.Background(), sampleRequest)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if text != "Both tickers fell 10% at worst." {
		t.Errorf("text = %q", text)
	}

	var sent ClaudeRequest
	if err := json.Unmarshal(mock.lastBody, &sent); err != nil {
		t.Fatal(err)
	}
	if sent.AnthropicVersion != anthropicBedrockVersion {
		t.Errorf("anthropic_version = %q", sent.AnthropicVersion)
	}
	if sent.System != "You are a smart financial advisor." {
		t.Errorf("system = %q", sent.System)
	}
	if len(sent.Messages) != 1 || sent.Messages[0].Role != "user" {
		t.Errorf("messages = %+v", sent.Messages)
	}
	if sent.Temperature != 0.7 || sent.MaxTokens != 500 {
		t.Errorf("temperature/max_tokens = %v/%d", sent.Temperature, sent.MaxTokens)
	}
}

func TestBedrockService_SystemOnlyPrompt(t *testing.T) {
	svc := &BedrockService{model: "m", maxTokens: 20}
	req := svc.request(CompletionRequest{Messages: []ChatMessage{{Role: "system", Content: "What is the ticker for 'Apple'?"}}})

	if req.System != "" {
		t.Errorf("system = %q, want empty", req.System)
	}
	if len(req.Messages) != 1 || req.Messages[0].Content != "What is the ticker for 'Apple'?" {
		t.Errorf("messages = %+v", req.Messages)
	}
	if req.MaxTokens != 20 {
		t.Errorf("max tokens = %d, want 20", req.MaxTokens)
	}
}

func TestBedrockService_EmptyContent(t *testing.T) {
	resetBreakers(t)
	svc := &BedrockService{client: &mockBedrockInvoker{
		invokeFunc: func(ctx context.Context, params *bedrockruntime.InvokeModelInput) (*bedrockruntime.InvokeModelOutput, error) {
			return &bedrockruntime.InvokeModelOutput{Body: []byte(`{"content":[]}`)}, nil
		},
	}, model: "m"}

	_, err := svc.Complete(context.Background(), sampleRequest)
	var unexpected *UnexpectedResponseError
	if !errors.As(err, &unexpected) {
		t.Fatalf("error = %v, want UnexpectedResponseError", err)
	}
}

func TestBedrockService_InvokeError(t *testing.T) {
	resetBreakers(t)
	svc := &BedrockService{client: &mockBedrockInvoker{
		invokeFunc: func(ctx context.Context, params *bedrockruntime.InvokeModelInput) (*bedrockruntime.InvokeModelOutput, error) {
			return nil, errors.New("AccessDeniedException")
		},
	}, model: "m"}

	if _, err := svc.Complete(context.Background(), sampleRequest); err == nil {
		t.Error("expected error")
	}
}
