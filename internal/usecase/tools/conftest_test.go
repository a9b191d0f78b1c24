package tools

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/atlas-cloud/ragdex/internal/domain"
	llm "github.com/atlas-cloud/ragdex/internal/transport/openai"
	"github.com/atlas-cloud/ragdex/internal/transport/safety"
	"github.com/atlas-cloud/ragdex/internal/usecase/retrieval"
)

// mockCompleter implements the completer consumer interface for tests.
type mockCompleter struct {
	completeFn func(ctx context.Context, messages []openai.ChatCompletionMessage, tools []openai.Tool) (llm.ChatResult, error)
	calls      int
}

func (m *mockCompleter) Complete(
	ctx context.Context, messages []openai.ChatCompletionMessage, tools []openai.Tool,
) (llm.ChatResult, error) {
	m.calls++
	if m.completeFn != nil {
		return m.completeFn(ctx, messages, tools)
	}
	return llm.ChatResult{}, nil
}

// mockRetriever implements the retriever consumer interface for tests.
type mockRetriever struct {
	retrieveFn func(ctx context.Context, req retrieval.Request) ([]domain.SourceDocument, error)
	calls      int
}

func (m *mockRetriever) Retrieve(
	ctx context.Context, req retrieval.Request,
) ([]domain.SourceDocument, error) {
	m.calls++
	if m.retrieveFn != nil {
		return m.retrieveFn(ctx, req)
	}
	return nil, nil
}

// mockModerator implements the moderator consumer interface for tests.
type mockModerator struct {
	analyzeFn func(ctx context.Context, text string) (safety.Analysis, error)
	calls     int
}

func (m *mockModerator) AnalyzeText(ctx context.Context, text string) (safety.Analysis, error) {
	m.calls++
	if m.analyzeFn != nil {
		return m.analyzeFn(ctx, text)
	}
	return safety.Analysis{}, nil
}
