package tools

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/atlas-cloud/ragdex/internal/metrics"
	"github.com/atlas-cloud/ragdex/internal/transport/safety"
)

// Direction labels which side of the conversation a safety check covers.
type Direction string

const (
	// DirectionIn screens the user message before orchestration.
	DirectionIn Direction = "in"
	// DirectionOut screens the generated answer before it is returned.
	DirectionOut Direction = "out"
)

// moderator is the consumer interface over the moderation API (ISP).
type moderator interface {
	AnalyzeText(ctx context.Context, text string) (safety.Analysis, error)
}

// SafetyChecker screens text against the content moderation service.
// Severities at or above the threshold flag the text.
type SafetyChecker struct {
	moderator moderator
	threshold int
	logger    *zap.Logger
}

// NewSafetyChecker creates a checker. A threshold of 0 or less falls back
// to flagging any non-zero severity.
func NewSafetyChecker(m moderator, threshold int, logger *zap.Logger) *SafetyChecker {
	if threshold <= 0 {
		threshold = 1
	}
	return &SafetyChecker{moderator: m, threshold: threshold, logger: logger}
}

// Validate reports whether text passes the safety screen. Empty text
// passes without a remote call.
func (s *SafetyChecker) Validate(ctx context.Context, text string, direction Direction) (bool, error) {
	if text == "" {
		return true, nil
	}

	analysis, err := s.moderator.AnalyzeText(ctx, text)
	if err != nil {
		metrics.SafetyChecksTotal.WithLabelValues(string(direction), "error").Inc()
		return false, fmt.Errorf("safety check: %w", err)
	}

	if analysis.MaxSeverity() >= s.threshold {
		metrics.SafetyChecksTotal.WithLabelValues(string(direction), "flagged").Inc()
		s.logger.Warn("content flagged",
			zap.String("direction", string(direction)),
			zap.Int("max_severity", analysis.MaxSeverity()),
			zap.Int("threshold", s.threshold))
		return false, nil
	}

	metrics.SafetyChecksTotal.WithLabelValues(string(direction), "ok").Inc()
	return true, nil
}
