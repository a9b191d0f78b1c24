// Package appconfig serves the active runtime configuration with a
// process-local cache over the persisted document.
package appconfig

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/atlas-cloud/ragdex/internal/domain"
	model "github.com/atlas-cloud/ragdex/internal/domain/appconfig"
)

// repository is the consumer interface over the persisted document (ISP).
type repository interface {
	Get(ctx context.Context) (*model.Configuration, string, error)
	Save(ctx context.Context, cfg *model.Configuration, etag string) (string, error)
}

// Service caches the active configuration. Every request takes one
// immutable snapshot; Clear forces a re-read on the next access.
type Service struct {
	repo            repository
	fromStorage     bool
	defaultStrategy model.Strategy
	logger          *zap.Logger

	mu     sync.RWMutex
	cached *model.Configuration
	etag   string
}

// New creates the configuration service. With fromStorage false the
// built-in defaults always win and the store is never read.
// defaultStrategy overrides the built-in orchestration strategy whenever
// defaults are served; empty keeps the built-in one.
func New(repo repository, fromStorage bool, defaultStrategy model.Strategy, logger *zap.Logger) *Service {
	return &Service{
		repo:            repo,
		fromStorage:     fromStorage,
		defaultStrategy: defaultStrategy,
		logger:          logger,
	}
}

// defaults returns the built-in configuration with the process-level
// strategy override applied.
func (s *Service) defaults() model.Configuration {
	cfg := model.Default()
	if s.defaultStrategy != "" {
		cfg.Orchestrator.Strategy = s.defaultStrategy
	}
	return cfg
}

// GetActiveOrDefault returns the active configuration snapshot, falling
// back to built-in defaults when nothing is persisted.
func (s *Service) GetActiveOrDefault(ctx context.Context) (*model.Configuration, error) {
	cfg, _, err := s.GetActiveWithEtag(ctx)
	return cfg, err
}

// GetActiveWithEtag returns the snapshot plus the etag admin updates
// must echo back. Defaults carry an empty etag.
func (s *Service) GetActiveWithEtag(ctx context.Context) (*model.Configuration, string, error) {
	if !s.fromStorage {
		cfg := s.defaults()
		return &cfg, "", nil
	}

	s.mu.RLock()
	if s.cached != nil {
		cfg := *s.cached
		etag := s.etag
		s.mu.RUnlock()
		return &cfg, etag, nil
	}
	s.mu.RUnlock()

	cfg, etag, err := s.repo.Get(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			def := s.defaults()
			return &def, "", nil
		}
		return nil, "", fmt.Errorf("load active configuration: %w", err)
	}

	s.mu.Lock()
	s.cached = cfg
	s.etag = etag
	s.mu.Unlock()

	snapshot := *cfg
	return &snapshot, etag, nil
}

// Save validates and persists a new configuration. etag guards against
// concurrent updates; empty etag creates the first document. The cache
// picks up the saved value immediately.
func (s *Service) Save(ctx context.Context, cfg *model.Configuration, etag string) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrBadInput, err)
	}

	newEtag, err := s.repo.Save(ctx, cfg, etag)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	snapshot := *cfg
	s.cached = &snapshot
	s.etag = newEtag
	s.mu.Unlock()

	s.logger.Info("Active configuration saved", zap.String("etag", newEtag))
	return newEtag, nil
}

// Clear drops the cache so the next read hits storage again.
func (s *Service) Clear() {
	s.mu.Lock()
	s.cached = nil
	s.etag = ""
	s.mu.Unlock()
	s.logger.Info("Configuration cache cleared")
}
