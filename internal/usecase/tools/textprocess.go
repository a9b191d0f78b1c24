package tools

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/atlas-cloud/ragdex/internal/domain"
)

const textProcessingSystemPrompt = "You are an assistant that transforms the " +
	"text the user provides. Apply the requested operation and return only " +
	"the transformed text."

// TextProcessingTool runs in-context operations on user-supplied text, such
// as summarizing, translating, or rephrasing. No retrieval is involved.
type TextProcessingTool struct {
	chat   completer
	logger *zap.Logger
}

// NewTextProcessingTool creates the text processing tool.
func NewTextProcessingTool(c completer, logger *zap.Logger) *TextProcessingTool {
	return &TextProcessingTool{chat: c, logger: logger}
}

// Process applies operation to text and returns the transformed result.
func (t *TextProcessingTool) Process(ctx context.Context, text, operation string) (domain.Answer, error) {
	if text == "" || operation == "" {
		return domain.Answer{}, fmt.Errorf("text and operation are required: %w", domain.ErrBadInput)
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: textProcessingSystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Please %s the following text: %s", operation, text)},
	}

	result, err := t.chat.Complete(ctx, messages, nil)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("text processing completion: %w", err)
	}

	t.logger.Debug("text processed",
		zap.String("operation", operation),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("completion_tokens", result.CompletionTokens))

	return domain.Answer{
		Question:         operation,
		Answer:           result.Content,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
	}, nil
}
