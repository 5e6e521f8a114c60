// Package llm generates walk-in customers with an OpenAI chat model and falls
// back to a deterministic library when the model is unavailable.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/talgya/pawnbroker/internal/observability"
)

const DefaultModel = "gpt-4o-mini"

// Completer returns the raw text of a single chat completion.
type Completer interface {
	Complete(ctx context.Context, system, userPrompt string, maxTokens int) (string, error)
}

// Client wraps the OpenAI chat completions API.
type Client struct {
	client *openai.Client
	model  string
	tracer trace.Tracer

	// Rate limiting: max calls per minute.
	mu        sync.Mutex
	callCount int
	resetAt   time.Time
	maxPerMin int
}

// ClientOptions tunes a Client. Zero values pick defaults.
type ClientOptions struct {
	Model     string
	BaseURL   string
	MaxPerMin int
}

// NewClient creates a new chat client.
// Returns nil if apiKey is empty (LLM features disabled).
func NewClient(apiKey string, opts ClientOptions) *Client {
	if apiKey == "" {
		return nil
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	client := openai.NewClient(reqOpts...)

	c := &Client{
		client:    &client,
		model:     opts.Model,
		tracer:    otel.Tracer("pawnbroker/llm"),
		maxPerMin: opts.MaxPerMin,
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.maxPerMin <= 0 {
		c.maxPerMin = 20 // Conservative rate limit
	}
	return c
}

// Enabled returns true if the client is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.client != nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.model
}

// allow counts a call against the per-minute budget.
func (c *Client) allow(now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now.After(c.resetAt) {
		c.callCount = 0
		c.resetAt = now.Add(time.Minute)
	}
	if c.callCount >= c.maxPerMin {
		return fmt.Errorf("rate limit exceeded (%d calls/min)", c.maxPerMin)
	}
	c.callCount++
	return nil
}

// Complete sends a prompt in JSON mode and returns the response text.
func (c *Client) Complete(ctx context.Context, system, userPrompt string, maxTokens int) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("LLM client not configured")
	}
	if err := c.allow(time.Now()); err != nil {
		return "", err
	}

	ctx, span := c.tracer.Start(ctx, "llm.complete",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(observability.GenAIAttributes("openai", c.model, maxTokens)...),
	)
	defer span.End()

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(userPrompt),
		},
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: func() *shared.ResponseFormatJSONObjectParam {
				p := shared.NewResponseFormatJSONObjectParam()
				return &p
			}(),
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chat completion failed")
		return "", fmt.Errorf("API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		span.SetStatus(codes.Error, "empty response")
		return "", fmt.Errorf("empty response")
	}

	span.SetAttributes(
		attribute.Int64("gen_ai.usage.input_tokens", resp.Usage.PromptTokens),
		attribute.Int64("gen_ai.usage.output_tokens", resp.Usage.CompletionTokens),
	)
	slog.Debug("llm call",
		"model", c.model,
		"input_tokens", resp.Usage.PromptTokens,
		"output_tokens", resp.Usage.CompletionTokens,
	)

	return resp.Choices[0].Message.Content, nil
}
