package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/atlas-cloud/ragdex/internal/domain"
	"github.com/atlas-cloud/ragdex/internal/domain/appconfig"
)

const agentSystemPrompt = `You are an agent that answers questions about the user's documents.
You have access to the following tools:

search_documents: answer a question from the indexed documents. Input: the standalone question.
text_processing: transform user-provided text. Input: a JSON object {"text": ..., "operation": ...}.

Use this format:

Thought: reason about what to do next
Action: the tool to use, one of [search_documents, text_processing]
Action Input: the input to the tool

or, when you can answer without a tool:

Final Answer: the answer to give the user`

// agentStrategy drives a ReAct-style text loop: the model emits
// Action/Action Input lines, the strategy executes the tool, and the
// first search or processing action is terminal.
type agentStrategy struct {
	qa      questionAnswerer
	text    textProcessor
	chat    completer
	maxHops int
	logger  *zap.Logger
}

func newAgentStrategy(qa questionAnswerer, text textProcessor, chat completer, logger *zap.Logger) *agentStrategy {
	return &agentStrategy{qa: qa, text: text, chat: chat, maxHops: defaultMaxToolHops, logger: logger}
}

func (s *agentStrategy) setMaxHops(n int) { s.maxHops = n }

func (s *agentStrategy) Run(
	ctx context.Context,
	question string,
	history []domain.HistoryPair,
	cfg appconfig.Configuration,
) (Result, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: agentSystemPrompt},
	}
	messages = append(messages, historyMessages(history)...)
	messages = append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser, Content: question,
	})

	promptTokens, completionTokens := 0, 0

	for hop := 0; hop < s.maxHops; hop++ {
		res, err := s.chat.Complete(ctx, messages, nil)
		if err != nil {
			return Result{}, err
		}
		promptTokens += res.PromptTokens
		completionTokens += res.CompletionTokens

		if final, ok := parseFinalAnswer(res.Content); ok {
			return Result{
				Answer: domain.Answer{
					Question:         question,
					Answer:           final,
					PromptTokens:     promptTokens,
					CompletionTokens: completionTokens,
				},
				Intent: question,
			}, nil
		}

		action, input, ok := parseAction(res.Content)
		if !ok {
			// Lenient parse: a bare reply with no action lines is the answer.
			return Result{
				Answer: domain.Answer{
					Question:         question,
					Answer:           strings.TrimSpace(res.Content),
					PromptTokens:     promptTokens,
					CompletionTokens: completionTokens,
				},
				Intent: question,
			}, nil
		}

		switch action {
		case "search_documents":
			if input == "" {
				input = question
			}
			answer, err := s.qa.Answer(ctx, input, history, cfg.Prompts)
			if err != nil {
				return Result{}, err
			}
			answer.PromptTokens += promptTokens
			answer.CompletionTokens += completionTokens
			return Result{Answer: answer, Intent: input}, nil

		case "text_processing":
			var args struct {
				Text      string `json:"text"`
				Operation string `json:"operation"`
			}
			if err := json.Unmarshal([]byte(input), &args); err != nil {
				args.Text = question
				args.Operation = input
			}
			answer, err := s.text.Process(ctx, args.Text, args.Operation)
			if err != nil {
				return Result{}, err
			}
			answer.Question = question
			answer.PromptTokens += promptTokens
			answer.CompletionTokens += completionTokens
			return Result{Answer: answer, Intent: args.Operation}, nil

		default:
			s.logger.Warn("agent chose unknown tool", zap.String("tool", action))
			messages = append(messages,
				openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: res.Content},
				openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleUser,
					Content: fmt.Sprintf("Observation: %s is not a valid tool, try one of [search_documents, text_processing]", action),
				},
			)
		}
	}

	return Result{}, fmt.Errorf("agent produced no answer after %d hops: %w", s.maxHops, domain.ErrLLMProviderError)
}

// parseFinalAnswer extracts the text after a "Final Answer:" marker.
func parseFinalAnswer(content string) (string, bool) {
	idx := strings.Index(content, "Final Answer:")
	if idx < 0 {
		return "", false
	}
	return strings.TrimSpace(content[idx+len("Final Answer:"):]), true
}

// parseAction extracts the Action and Action Input lines.
func parseAction(content string) (action, input string, ok bool) {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if after, found := strings.CutPrefix(line, "Action:"); found {
			action = strings.Trim(strings.TrimSpace(after), "[]")
		} else if after, found := strings.CutPrefix(line, "Action Input:"); found {
			input = strings.TrimSpace(after)
		}
	}
	return action, input, action != ""
}
