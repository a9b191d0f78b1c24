package orchestrator

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/atlas-cloud/ragdex/internal/domain"
	"github.com/atlas-cloud/ragdex/internal/domain/appconfig"
	llm "github.com/atlas-cloud/ragdex/internal/transport/openai"
)

// defaultMaxToolHops bounds how many tool selections a strategy may make
// for one turn before it is forced to give up.
const defaultMaxToolHops = 5

// Result is the inner outcome of a strategy run, before safety and
// citation post-processing.
type Result struct {
	Answer domain.Answer
	Intent string
}

// Strategy produces an answer for one user turn. Implementations differ in
// how they choose between tools, not in the shape of what they return.
type Strategy interface {
	Run(
		ctx context.Context,
		question string,
		history []domain.HistoryPair,
		cfg appconfig.Configuration,
	) (Result, error)
}

// questionAnswerer is the consumer interface over the QA tool (ISP).
type questionAnswerer interface {
	Answer(
		ctx context.Context,
		question string,
		history []domain.HistoryPair,
		prompts appconfig.Prompts,
	) (domain.Answer, error)
}

// textProcessor is the consumer interface over the text tool (ISP).
type textProcessor interface {
	Process(ctx context.Context, text, operation string) (domain.Answer, error)
}

// completer is the consumer interface over the chat provider (ISP).
type completer interface {
	Complete(
		ctx context.Context,
		messages []openai.ChatCompletionMessage,
		tools []openai.Tool,
	) (llm.ChatResult, error)
}

// StrategySet holds one instance of every orchestration strategy.
type StrategySet struct {
	byName map[appconfig.Strategy]Strategy
}

// NewStrategySet builds all strategies over the shared tool set.
func NewStrategySet(
	qa questionAnswerer,
	text textProcessor,
	safety safetyChecker,
	chat completer,
	logger *zap.Logger,
) *StrategySet {
	return &StrategySet{
		byName: map[appconfig.Strategy]Strategy{
			appconfig.StrategyOpenAIFunction: newFunctionStrategy(qa, text, safety, chat, logger),
			appconfig.StrategyLangChain:      newAgentStrategy(qa, text, chat, logger),
			appconfig.StrategySemanticKernel: newPluginStrategy(qa, text, safety, chat, logger),
			appconfig.StrategyPromptFlow:     newFlowStrategy(qa, logger),
		},
	}
}

// hopBounded is implemented by strategies with a tool hop bound.
type hopBounded interface {
	setMaxHops(n int)
}

// WithMaxToolHops overrides the tool hop bound on every strategy that has
// one. Non-positive values keep the default.
func (s *StrategySet) WithMaxToolHops(n int) *StrategySet {
	if n <= 0 {
		return s
	}
	for _, strategy := range s.byName {
		if b, ok := strategy.(hopBounded); ok {
			b.setMaxHops(n)
		}
	}
	return s
}

// For returns the strategy registered under name.
func (s *StrategySet) For(name appconfig.Strategy) (Strategy, error) {
	strategy, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("strategy %q: %w", name, domain.ErrUnknownStrategy)
	}
	return strategy, nil
}

// historyMessages renders completed exchanges as chat messages, oldest first.
func historyMessages(history []domain.HistoryPair) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)*2)
	for _, p := range history {
		msgs = append(msgs,
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: p.Question},
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: p.Answer},
		)
	}
	return msgs
}
