package openai

import (
	"context"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/atlas-cloud/ragdex/internal/domain"
	"github.com/atlas-cloud/ragdex/internal/metrics"
)

// ChatClient is a chat completion provider supporting tool calls.
type ChatClient struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	logger      *zap.Logger
}

// ChatConfig holds the chat completion provider settings.
type ChatConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Logger      *zap.Logger
}

// ChatResult is the outcome of a single completion call.
type ChatResult struct {
	Content          string
	ToolCalls        []openai.ToolCall
	FinishReason     openai.FinishReason
	PromptTokens     int
	CompletionTokens int
}

// NewChatClient creates an OpenAI-compatible chat completion provider.
func NewChatClient(cfg *ChatConfig) *ChatClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &ChatClient{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      cfg.Logger,
	}
}

// Complete runs a single chat completion. Tools are optional; when the model
// wants to call one, the result carries the tool calls and empty content.
func (c *ChatClient) Complete(
	ctx context.Context,
	messages []openai.ChatCompletionMessage,
	tools []openai.Tool,
) (ChatResult, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
	}
	if c.maxTokens > 0 {
		req.MaxTokens = c.maxTokens
	}
	if len(tools) > 0 {
		req.Tools = tools
	}

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, req)

	duration := time.Since(start)

	if err != nil {
		metrics.ChatRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return ChatResult{}, parseChatError(err)
	}

	metrics.ChatRequestsTotal.WithLabelValues(c.model, "success").Inc()
	metrics.ChatRequestDuration.WithLabelValues(c.model).Observe(duration.Seconds())
	metrics.ChatTokensTotal.WithLabelValues(c.model, "prompt").
		Add(float64(resp.Usage.PromptTokens))
	metrics.ChatTokensTotal.WithLabelValues(c.model, "completion").
		Add(float64(resp.Usage.CompletionTokens))

	if len(resp.Choices) == 0 {
		return ChatResult{}, parseChatError(&openai.APIError{
			HTTPStatusCode: http.StatusBadGateway,
			Message:        "completion returned no choices",
		})
	}

	choice := resp.Choices[0]

	if c.logger != nil {
		c.logger.Debug("chat completion",
			zap.String("model", c.model),
			zap.String("finish_reason", string(choice.FinishReason)),
			zap.Int("tool_calls", len(choice.Message.ToolCalls)),
			zap.Int("prompt_tokens", resp.Usage.PromptTokens),
			zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			zap.Duration("duration", duration),
		)
	}

	return ChatResult{
		Content:          choice.Message.Content,
		ToolCalls:        choice.Message.ToolCalls,
		FinishReason:     choice.FinishReason,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// Model returns the configured completion model name.
func (c *ChatClient) Model() string {
	return c.model
}

func parseChatError(err error) error {
	return parseAPIError(err, domain.ErrLLMProviderError)
}
