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

const functionSystemPrompt = "You help users with questions about their " +
	"documents. Call search_documents for any question that could be " +
	"answered from the indexed documents. Call text_processing when the " +
	"user asks you to transform text they provided, such as summarizing or " +
	"translating. Call check_content_safety when you are unsure whether a " +
	"text is appropriate. Answer directly only for greetings and small talk."

// functionStrategy lets the model pick a tool through OpenAI function
// calling. search_documents and text_processing are terminal: their result
// is the answer. check_content_safety feeds its verdict back and loops.
type functionStrategy struct {
	qa      questionAnswerer
	text    textProcessor
	safety  safetyChecker
	chat    completer
	maxHops int
	logger  *zap.Logger
}

func newFunctionStrategy(
	qa questionAnswerer,
	text textProcessor,
	safety safetyChecker,
	chat completer,
	logger *zap.Logger,
) *functionStrategy {
	return &functionStrategy{
		qa: qa, text: text, safety: safety, chat: chat,
		maxHops: defaultMaxToolHops, logger: logger,
	}
}

func (s *functionStrategy) setMaxHops(n int) { s.maxHops = n }

func functionDefinitions() []openai.Tool {
	return []openai.Tool{
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        "search_documents",
				Description: "Answer a question from the indexed documents.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"question": map[string]any{
							"type":        "string",
							"description": "A standalone question to answer from the documents",
						},
					},
					"required": []string{"question"},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        "text_processing",
				Description: "Transform user-provided text, e.g. summarize or translate.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"text":      map[string]any{"type": "string"},
						"operation": map[string]any{
							"type":        "string",
							"description": "The transformation to apply",
						},
					},
					"required": []string{"text", "operation"},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        "check_content_safety",
				Description: "Check whether a text is appropriate to show the user.",
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

func (s *functionStrategy) Run(
	ctx context.Context,
	question string,
	history []domain.HistoryPair,
	cfg appconfig.Configuration,
) (Result, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: functionSystemPrompt},
	}
	messages = append(messages, historyMessages(history)...)
	messages = append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser, Content: question,
	})

	promptTokens, completionTokens := 0, 0
	defs := functionDefinitions()

	for hop := 0; hop < s.maxHops; hop++ {
		res, err := s.chat.Complete(ctx, messages, defs)
		if err != nil {
			return Result{}, err
		}
		promptTokens += res.PromptTokens
		completionTokens += res.CompletionTokens

		if len(res.ToolCalls) == 0 {
			// Terminal assistant message, no retrieval happened.
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
		case "search_documents":
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

		case "text_processing":
			var args struct {
				Text      string `json:"text"`
				Operation string `json:"operation"`
			}
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
				return Result{}, fmt.Errorf("text_processing arguments: %w", domain.ErrBadInput)
			}
			answer, err := s.text.Process(ctx, args.Text, args.Operation)
			if err != nil {
				return Result{}, err
			}
			answer.Question = question
			answer.PromptTokens += promptTokens
			answer.CompletionTokens += completionTokens
			return Result{Answer: answer, Intent: args.Operation}, nil

		case "check_content_safety":
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
			s.logger.Warn("model requested unknown function",
				zap.String("function", call.Function.Name))
			messages = append(messages,
				openai.ChatCompletionMessage{
					Role:      openai.ChatMessageRoleAssistant,
					ToolCalls: res.ToolCalls,
				},
				openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					ToolCallID: call.ID,
					Content:    "unknown function",
				},
			)
		}
	}

	return Result{}, fmt.Errorf("no terminal answer after %d tool hops: %w", s.maxHops, domain.ErrLLMProviderError)
}
