package orchestrator

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/atlas-cloud/ragdex/internal/domain"
	"github.com/atlas-cloud/ragdex/internal/domain/appconfig"
	llm "github.com/atlas-cloud/ragdex/internal/transport/openai"
	"github.com/atlas-cloud/ragdex/internal/usecase/tools"
)

// mockConfigSource implements the configSource consumer interface.
type mockConfigSource struct {
	getFn func(ctx context.Context) (*appconfig.Configuration, error)
	calls int
}

func (m *mockConfigSource) GetActiveOrDefault(ctx context.Context) (*appconfig.Configuration, error) {
	m.calls++
	if m.getFn != nil {
		return m.getFn(ctx)
	}
	cfg := appconfig.Default()
	return &cfg, nil
}

// mockSafety implements the safetyChecker consumer interface.
type mockSafety struct {
	validateFn func(ctx context.Context, text string, direction tools.Direction) (bool, error)
	calls      int
}

func (m *mockSafety) Validate(ctx context.Context, text string, direction tools.Direction) (bool, error) {
	m.calls++
	if m.validateFn != nil {
		return m.validateFn(ctx, text, direction)
	}
	return true, nil
}

// mockPost implements the postValidator consumer interface.
type mockPost struct {
	validateFn func(ctx context.Context, answer domain.Answer, prompts appconfig.Prompts) (domain.Answer, bool, error)
	calls      int
}

func (m *mockPost) Validate(
	ctx context.Context, answer domain.Answer, prompts appconfig.Prompts,
) (domain.Answer, bool, error) {
	m.calls++
	if m.validateFn != nil {
		return m.validateFn(ctx, answer, prompts)
	}
	return answer, true, nil
}

// mockQA implements the questionAnswerer consumer interface.
type mockQA struct {
	answerFn func(ctx context.Context, question string, history []domain.HistoryPair, prompts appconfig.Prompts) (domain.Answer, error)
	calls    int
}

func (m *mockQA) Answer(
	ctx context.Context, question string, history []domain.HistoryPair, prompts appconfig.Prompts,
) (domain.Answer, error) {
	m.calls++
	if m.answerFn != nil {
		return m.answerFn(ctx, question, history, prompts)
	}
	return domain.Answer{Question: question}, nil
}

// mockText implements the textProcessor consumer interface.
type mockText struct {
	processFn func(ctx context.Context, text, operation string) (domain.Answer, error)
	calls     int
}

func (m *mockText) Process(ctx context.Context, text, operation string) (domain.Answer, error) {
	m.calls++
	if m.processFn != nil {
		return m.processFn(ctx, text, operation)
	}
	return domain.Answer{}, nil
}

// mockChat implements the completer consumer interface.
type mockChat struct {
	completeFn func(ctx context.Context, messages []openai.ChatCompletionMessage, tools []openai.Tool) (llm.ChatResult, error)
	calls      int
}

func (m *mockChat) Complete(
	ctx context.Context, messages []openai.ChatCompletionMessage, tools []openai.Tool,
) (llm.ChatResult, error) {
	m.calls++
	if m.completeFn != nil {
		return m.completeFn(ctx, messages, tools)
	}
	return llm.ChatResult{}, nil
}

// stubStrategy returns a canned result for pipeline tests.
type stubStrategy struct {
	result Result
	err    error
	calls  int
}

func (s *stubStrategy) Run(
	ctx context.Context, question string, history []domain.HistoryPair, cfg appconfig.Configuration,
) (Result, error) {
	s.calls++
	return s.result, s.err
}

// stubSet builds a StrategySet whose every entry is the given strategy.
func stubSet(s Strategy) *StrategySet {
	return &StrategySet{byName: map[appconfig.Strategy]Strategy{
		appconfig.StrategyOpenAIFunction: s,
		appconfig.StrategyLangChain:      s,
		appconfig.StrategySemanticKernel: s,
		appconfig.StrategyPromptFlow:     s,
	}}
}
