package tools

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/atlas-cloud/ragdex/internal/domain"
	"github.com/atlas-cloud/ragdex/internal/domain/appconfig"
	llm "github.com/atlas-cloud/ragdex/internal/transport/openai"
	"github.com/atlas-cloud/ragdex/internal/usecase/retrieval"
)

// QuestionAnswerTool answers a question from retrieved chunk sources.
//
// When the conversation has prior exchanges the question is first condensed
// into a standalone one so retrieval is not confused by pronouns referring
// to earlier turns.
type QuestionAnswerTool struct {
	retrieve retriever
	chat     completer
	logger   *zap.Logger
}

// NewQuestionAnswerTool creates the QA tool.
func NewQuestionAnswerTool(r retriever, c completer, logger *zap.Logger) *QuestionAnswerTool {
	return &QuestionAnswerTool{retrieve: r, chat: c, logger: logger}
}

// Answer runs condense, retrieve, and answer for one question.
func (t *QuestionAnswerTool) Answer(
	ctx context.Context,
	question string,
	history []domain.HistoryPair,
	prompts appconfig.Prompts,
) (domain.Answer, error) {
	if question == "" {
		return domain.Answer{}, fmt.Errorf("question is required: %w", domain.ErrBadInput)
	}

	promptTokens, completionTokens := 0, 0

	standalone := question
	if len(history) > 0 && prompts.CondenseQuestion != "" {
		condensed, result, err := t.condense(ctx, question, history, prompts.CondenseQuestion)
		if err != nil {
			return domain.Answer{}, err
		}
		promptTokens += result.PromptTokens
		completionTokens += result.CompletionTokens
		if condensed != "" {
			standalone = condensed
		}
	}

	docs, err := t.retrieve.Retrieve(ctx, retrieval.Request{Query: standalone})
	if err != nil {
		return domain.Answer{}, fmt.Errorf("retrieve sources: %w", err)
	}

	sources := formatSources(docs)
	vars := map[string]string{
		"sources":  sources,
		"question": standalone,
	}
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: fillPrompt(prompts.AnsweringSystem, vars)},
		{Role: openai.ChatMessageRoleUser, Content: fillPrompt(prompts.AnsweringUser, vars)},
	}

	result, err := t.chat.Complete(ctx, messages, nil)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("answering completion: %w", err)
	}
	promptTokens += result.PromptTokens
	completionTokens += result.CompletionTokens

	t.logger.Debug("question answered",
		zap.String("standalone_question", standalone),
		zap.Int("sources", len(docs)),
		zap.Int("prompt_tokens", promptTokens),
		zap.Int("completion_tokens", completionTokens))

	return domain.Answer{
		Question:         standalone,
		Answer:           result.Content,
		SourceDocuments:  docs,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
	}, nil
}

// condense rewrites a follow-up question into a standalone one.
func (t *QuestionAnswerTool) condense(
	ctx context.Context,
	question string,
	history []domain.HistoryPair,
	template string,
) (string, llm.ChatResult, error) {
	prompt := fillPrompt(template, map[string]string{
		"chat_history": formatHistory(history),
		"question":     question,
	})
	result, err := t.chat.Complete(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	}, nil)
	if err != nil {
		return "", llm.ChatResult{}, fmt.Errorf("condense question: %w", err)
	}
	return strings.TrimSpace(result.Content), result, nil
}
