package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/atlas-cloud/ragdex/internal/domain"
	"github.com/atlas-cloud/ragdex/internal/domain/appconfig"
	"github.com/atlas-cloud/ragdex/internal/usecase/tools"
)

const pluginSystemPrompt = "You orchestrate plugins for a document " +
	"assistant. Invoke documents_search to answer from the indexed " +
	"documents, text_process to transform user text, and safety_check to " +
	"screen a text. Reply directly only when no plugin applies."

// pluginStrategy is the plugin-flavored variant of function calling: the
// same tool set exposed under plugin-qualified names with a planner prompt.
type pluginStrategy struct {
	qa      questionAnswerer
	text    textProcessor
	safety  safetyChecker
	chat    completer
	maxHops int
	logger  *zap.Logger
}

func newPluginStrategy(
	qa questionAnswerer,
	text textProcessor,
	safety safetyChecker,
	chat completer,
	logger *zap.Logger,
) *pluginStrategy {
	return &pluginStrategy{
		qa: qa, text: text, safety: safety, chat: chat,
		maxHops: defaultMaxToolHops, logger: logger,
	}
}

func (s *pluginStrategy) setMaxHops(n int) { s.maxHops = n }

func pluginDefinitions() []openai.Tool {
	return []openai.Tool{
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        "documents_search",
				Description: "Answer a question from the indexed documents.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"question": map[string]any{"type": "string"},
					},
					"required": []string{"question"},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        "text_process",
				Description: "Transform user-provided text, e.g. summarize or translate.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"text":      map[string]any{"type": "string"},
						"operation": map[string]any{"type": "string"},
					},
					"required": []string{"text", "operation"},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        "safety_check",
				Description: "Screen a text for harmful content.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"text": map[string]any{"type": "string"},
					},
					"required": []string{"text"},
				},
			},
		},
	}
}

func (s *pluginStrategy) Run(
	ctx context.Context,
	question string,
	history []domain.HistoryPair,
	cfg appconfig.Configuration,
) (Result, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: pluginSystemPrompt},
	}
	messages = append(messages, historyMessages(history)...)
	messages = append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser, Content: question,
	})

	promptTokens, completionTokens := 0, 0
	defs := pluginDefinitions()

	for hop := 0; hop < s.maxHops; hop++ {
		res, err := s.chat.Complete(ctx, messages, defs)
		if err != nil {
			return Result{}, err
		}
		promptTokens += res.PromptTokens
		completionTokens += res.CompletionTokens

		if len(res.ToolCalls) == 0 {
			return Result{
				Answer: domain.Answer{
					Question:         question,
					Answer:           res.Content,
					PromptTokens:     promptTokens,
					CompletionTokens: completionTokens,
				},
				Intent: question,
			}, nil
		}

		call := res.ToolCalls[0]
		switch call.Function.Name {
		case "documents_search":
			var args struct {
				Question string `json:"question"`
			}
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil || args.Question == "" {
				args.Question = question
			}
			answer, err := s.qa.Answer(ctx, args.Question, history, cfg.Prompts)
			if err != nil {
				return Result{}, err
			}
			answer.PromptTokens += promptTokens
			answer.CompletionTokens += completionTokens
			return Result{Answer: answer, Intent: args.Question}, nil

		case "text_process":
			var args struct {
				Text      string `json:"text"`
				Operation string `json:"operation"`
			}
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
				return Result{}, fmt.Errorf("text_process arguments: %w", domain.ErrBadInput)
			}
			answer, err := s.text.Process(ctx, args.Text, args.Operation)
			if err != nil {
				return Result{}, err
			}
			answer.Question = question
			answer.PromptTokens += promptTokens
			answer.CompletionTokens += completionTokens
			return Result{Answer: answer, Intent: args.Operation}, nil

		case "safety_check":
			var args struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
				args.Text = question
			}
			ok, err := s.safety.Validate(ctx, args.Text, tools.DirectionIn)
			if err != nil {
				return Result{}, err
			}
			verdict := "safe"
			if !ok {
				verdict = "flagged"
			}
			messages = append(messages,
				openai.ChatCompletionMessage{
					Role:      openai.ChatMessageRoleAssistant,
					ToolCalls: res.ToolCalls,
				},
				openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					ToolCallID: call.ID,
					Content:    verdict,
				},
			)

		default:
			s.logger.Warn("model invoked unknown plugin",
				zap.String("plugin", call.Function.Name))
			messages = append(messages,
				openai.ChatCompletionMessage{
					Role:      openai.ChatMessageRoleAssistant,
					ToolCalls: res.ToolCalls,
				},
				openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					ToolCallID: call.ID,
					Content:    "unknown plugin",
				},
			)
		}
	}

	return Result{}, fmt.Errorf("no terminal answer after %d plugin hops: %w", s.maxHops, domain.ErrLLMProviderError)
}
