// Package llmclient wraps the Anthropic Messages API behind the breaker
// registry, providing the single call every higher-level package (chat,
// aisummary, history) uses to talk to Claude.
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/nyuchitech/mukoko-weather/internal/breaker"
	"github.com/nyuchitech/mukoko-weather/internal/metrics"
)

// ErrRateLimited indicates Anthropic returned a 429; callers should degrade
// to a fallback response rather than retry immediately.
var ErrRateLimited = errors.New("llmclient: rate limited")

// Tool describes a single tool exposed to the model, mirroring the
// Anthropic tool-use schema.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
}

// ToolUse is a single tool call the model requested.
type ToolUse struct {
	ID    string
	Name  string
	Input map[string]interface{}
}

// ToolResult is fed back to the model as the outcome of executing a ToolUse.
type ToolResult struct {
	ToolUseID string
	Content   string
	IsError   bool
}

// Message is one turn in a conversation, either from the user, the model,
// or a tool result.
type Message struct {
	Role       string // "user" or "assistant"
	Text       string
	ToolUses   []ToolUse
	ToolResult *ToolResult
}

// Response is a single completion from the model.
type Response struct {
	Text             string
	ToolUses         []ToolUse
	StopReason       string
	PromptTokens     int
	CompletionTokens int
}

// Client wraps the Anthropic SDK client with breaker protection and metrics.
type Client struct {
	sdk      anthropic.Client
	model    string
	breakers *breaker.Registry
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// New creates a Client. apiKey may be empty, in which case no key option is
// passed and the SDK client is built from its own defaults; calls are still
// sent and are not rejected locally.
func New(apiKey, model string, breakers *breaker.Registry, m *metrics.Collector, logger *zap.Logger) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &Client{
		sdk:      anthropic.NewClient(opts...),
		model:    model,
		breakers: breakers,
		metrics:  m,
		logger:   logger.With(zap.String("component", "llmclient")),
	}
}

// Complete sends messages (with optional system prompt and tool
// definitions) to Claude and returns the parsed response, breaker-wrapped
// under the "anthropic" provider configuration.
func (c *Client) Complete(ctx context.Context, system string, messages []Message, tools []Tool, maxTokens int64) (*Response, error) {
	b := c.breakers.Get("anthropic")

	start := time.Now()
	resp, err := breaker.CallWithResult(ctx, b, func(ctx context.Context) (*Response, error) {
		return c.call(ctx, system, messages, tools, maxTokens)
	})
	duration := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
		if errors.Is(err, ErrRateLimited) {
			status = "rate_limited"
		}
	}
	if c.metrics != nil {
		promptTokens, completionTokens := 0, 0
		if resp != nil {
			promptTokens, completionTokens = resp.PromptTokens, resp.CompletionTokens
		}
		c.metrics.RecordLLMRequest(c.model, status, duration, promptTokens, completionTokens)
	}

	return resp, err
}

func (c *Client) call(ctx context.Context, system string, messages []Message, tools []Tool, maxTokens int64) (*Response, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxTokens,
		Messages:  toSDKMessages(messages),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(tools) > 0 {
		params.Tools = toSDKTools(tools)
	}

	msg, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == 429 {
			return nil, ErrRateLimited
		}
		return nil, fmt.Errorf("llmclient: anthropic call failed: %w", err)
	}

	return fromSDKMessage(msg), nil
}
