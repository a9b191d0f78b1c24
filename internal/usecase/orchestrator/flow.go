package orchestrator

import (
	"context"

	"go.uber.org/zap"

	"github.com/atlas-cloud/ragdex/internal/domain"
	"github.com/atlas-cloud/ragdex/internal/domain/appconfig"
)

// flowStrategy is the deterministic variant: every turn goes through
// condense, retrieve, and answer with no tool selection. Used when
// predictable latency and behavior matter more than chit-chat handling.
type flowStrategy struct {
	qa     questionAnswerer
	logger *zap.Logger
}

func newFlowStrategy(qa questionAnswerer, logger *zap.Logger) *flowStrategy {
	return &flowStrategy{qa: qa, logger: logger}
}

func (s *flowStrategy) Run(
	ctx context.Context,
	question string,
	history []domain.HistoryPair,
	cfg appconfig.Configuration,
) (Result, error) {
	answer, err := s.qa.Answer(ctx, question, history, cfg.Prompts)
	if err != nil {
		return Result{}, err
	}
	// The condensed standalone question doubles as the extracted intent.
	return Result{Answer: answer, Intent: answer.Question}, nil
}
