package tools

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/atlas-cloud/ragdex/internal/domain"
	"github.com/atlas-cloud/ragdex/internal/domain/appconfig"
)

// PostPromptTool asks the model whether an answer is actually supported by
// the sources it was generated from. Unsupported answers are replaced with
// the configured refusal text; the source documents stay untouched so the
// caller can decide what to surface.
type PostPromptTool struct {
	chat   completer
	logger *zap.Logger
}

// NewPostPromptTool creates the post-answer validator.
func NewPostPromptTool(c completer, logger *zap.Logger) *PostPromptTool {
	return &PostPromptTool{chat: c, logger: logger}
}

// Validate returns the answer unchanged and supported=true when the model
// confirms it, or the answer with its text replaced by the refusal message
// and supported=false otherwise. A verdict other than True is treated as
// unsupported.
func (t *PostPromptTool) Validate(
	ctx context.Context,
	answer domain.Answer,
	prompts appconfig.Prompts,
) (domain.Answer, bool, error) {
	prompt := fillPrompt(prompts.PostAnswering, map[string]string{
		"sources":  formatSources(answer.SourceDocuments),
		"question": answer.Question,
		"answer":   answer.Answer,
	})

	result, err := t.chat.Complete(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	}, nil)
	if err != nil {
		return domain.Answer{}, false, fmt.Errorf("post-answering completion: %w", err)
	}
	answer.PromptTokens += result.PromptTokens
	answer.CompletionTokens += result.CompletionTokens

	verdict := strings.TrimSpace(result.Content)
	if strings.EqualFold(verdict, "true") {
		return answer, true, nil
	}

	t.logger.Info("answer failed post-answering validation",
		zap.String("verdict", verdict))
	answer.Answer = prompts.PostAnsweringRefusal
	return answer, false, nil
}
