// Package orchestrator routes a conversation turn through safety screening,
// a pluggable answering strategy, post-answer validation, and citation
// renumbering, producing the turn list returned to the client.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-cloud/ragdex/internal/domain"
	"github.com/atlas-cloud/ragdex/internal/domain/appconfig"
	"github.com/atlas-cloud/ragdex/internal/metrics"
	"github.com/atlas-cloud/ragdex/internal/usecase/tools"
)

// configSource provides the active configuration snapshot (ISP).
type configSource interface {
	GetActiveOrDefault(ctx context.Context) (*appconfig.Configuration, error)
}

// safetyChecker screens text for harmful content (ISP).
type safetyChecker interface {
	Validate(ctx context.Context, text string, direction tools.Direction) (bool, error)
}

// postValidator verifies an answer against its sources (ISP).
type postValidator interface {
	Validate(ctx context.Context, answer domain.Answer, prompts appconfig.Prompts) (domain.Answer, bool, error)
}

// Request is one conversation turn to handle.
type Request struct {
	ConversationID string
	UserMessage    string
	History        []domain.HistoryPair
}

// Orchestrator is the strategy-independent outer pipeline.
type Orchestrator struct {
	config     configSource
	strategies *StrategySet
	safety     safetyChecker
	post       postValidator
	logger     *zap.Logger
}

// New creates the orchestrator.
func New(
	config configSource,
	strategies *StrategySet,
	safety safetyChecker,
	post postValidator,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		config:     config,
		strategies: strategies,
		safety:     safety,
		post:       post,
		logger:     logger,
	}
}

// HandleMessage runs the outer pipeline for one user turn. The configuration
// is snapshotted once at the start so an admin save mid-turn cannot mix
// prompt versions within a single answer.
//
// Strategy failures surface as errors; the caller maps them to transport
// status codes. A successful turn always returns exactly one tool turn with
// the citations payload followed by one terminal assistant turn.
func (o *Orchestrator) HandleMessage(ctx context.Context, req Request) ([]domain.ConversationTurn, error) {
	if req.UserMessage == "" {
		return nil, fmt.Errorf("user message is required: %w", domain.ErrBadInput)
	}

	cfg, err := o.config.GetActiveOrDefault(ctx)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	strategyName := string(cfg.Orchestrator.Strategy)
	started := time.Now()
	defer func() {
		metrics.ConversationTurnDuration.WithLabelValues(strategyName).Observe(time.Since(started).Seconds())
	}()

	if cfg.EnableContentSafety {
		ok, err := o.safety.Validate(ctx, req.UserMessage, tools.DirectionIn)
		if err != nil {
			metrics.ConversationTurnsTotal.WithLabelValues(strategyName, "error").Inc()
			return nil, err
		}
		if !ok {
			metrics.ConversationTurnsTotal.WithLabelValues(strategyName, "flagged_in").Inc()
			o.logger.Info("input flagged, short-circuiting",
				zap.String("conversation_id", req.ConversationID))
			return []domain.ConversationTurn{
				domain.NewAssistantTurn(cfg.Prompts.ContentSafetyReplacement),
			}, nil
		}
	}

	strategy, err := o.strategies.For(cfg.Orchestrator.Strategy)
	if err != nil {
		metrics.ConversationTurnsTotal.WithLabelValues(strategyName, "error").Inc()
		return nil, err
	}

	result, err := strategy.Run(ctx, req.UserMessage, req.History, *cfg)
	if err != nil {
		metrics.ConversationTurnsTotal.WithLabelValues(strategyName, "error").Inc()
		return nil, fmt.Errorf("strategy %s: %w", strategyName, err)
	}
	answer := result.Answer
	outcome := "ok"

	if cfg.EnableContentSafety {
		ok, err := o.safety.Validate(ctx, answer.Answer, tools.DirectionOut)
		if err != nil {
			metrics.ConversationTurnsTotal.WithLabelValues(strategyName, "error").Inc()
			return nil, err
		}
		if !ok {
			answer.Answer = cfg.Prompts.ContentSafetyReplacement
			answer.SourceDocuments = nil
			outcome = "flagged_out"
		}
	}

	if outcome == "ok" && cfg.EnablePostAnsweringCheck && len(answer.SourceDocuments) > 0 {
		validated, supported, err := o.post.Validate(ctx, answer, cfg.Prompts)
		if err != nil {
			metrics.ConversationTurnsTotal.WithLabelValues(strategyName, "error").Inc()
			return nil, err
		}
		answer = validated
		if !supported {
			answer.SourceDocuments = nil
			outcome = "refused"
		}
	}

	text, cited, droppedMarkers := domain.RenumberCitations(answer.Answer, answer.SourceDocuments)
	if droppedMarkers > 0 {
		o.logger.Warn("dropped out-of-range citation markers",
			zap.Int("count", droppedMarkers),
			zap.String("conversation_id", req.ConversationID))
	}

	metrics.ConversationTurnsTotal.WithLabelValues(strategyName, outcome).Inc()
	o.logger.Debug("turn handled",
		zap.String("conversation_id", req.ConversationID),
		zap.String("strategy", strategyName),
		zap.String("outcome", outcome),
		zap.Int("citations", len(cited)),
		zap.Int("prompt_tokens", answer.PromptTokens),
		zap.Int("completion_tokens", answer.CompletionTokens))

	return []domain.ConversationTurn{
		domain.NewToolTurn(cited, result.Intent),
		domain.NewAssistantTurn(text),
	}, nil
}
