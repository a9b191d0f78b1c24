// Package tools holds the callable units shared by the orchestration
// strategies: question answering over retrieved chunks, free-form text
// processing, content safety screening, and post-answer validation.
package tools

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/atlas-cloud/ragdex/internal/domain"
	llm "github.com/atlas-cloud/ragdex/internal/transport/openai"
	"github.com/atlas-cloud/ragdex/internal/usecase/retrieval"
)

// completer is the consumer interface over the chat provider (ISP).
type completer interface {
	Complete(
		ctx context.Context,
		messages []openai.ChatCompletionMessage,
		tools []openai.Tool,
	) (llm.ChatResult, error)
}

// retriever is the consumer interface over the retrieval service (ISP).
type retriever interface {
	Retrieve(ctx context.Context, req retrieval.Request) ([]domain.SourceDocument, error)
}

// formatSources renders retrieved chunks as numbered source blocks. The
// numbering matches the [docN] markers the answering prompt asks the model
// to cite against.
func formatSources(docs []domain.SourceDocument) string {
	var b strings.Builder
	for i, d := range docs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[doc%d]: %s", i+1, d.Content)
	}
	return b.String()
}

// fillPrompt substitutes {name} placeholders in a prompt template.
func fillPrompt(template string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// formatHistory renders completed exchanges for the condensation prompt.
func formatHistory(history []domain.HistoryPair) string {
	var b strings.Builder
	for _, p := range history {
		fmt.Fprintf(&b, "user: %s\nassistant: %s\n", p.Question, p.Answer)
	}
	return b.String()
}
