package appconfig

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/atlas-cloud/ragdex/internal/domain"
	model "github.com/atlas-cloud/ragdex/internal/domain/appconfig"
)

// mockRepo implements the consumer interface for tests.
type mockRepo struct {
	getFn    func(ctx context.Context) (*model.Configuration, string, error)
	getCalls int
	saveFn   func(ctx context.Context, cfg *model.Configuration, etag string) (string, error)
}

func (m *mockRepo) Get(ctx context.Context) (*model.Configuration, string, error) {
	m.getCalls++
	if m.getFn != nil {
		return m.getFn(ctx)
	}
	return nil, "", domain.ErrNotFound
}

func (m *mockRepo) Save(ctx context.Context, cfg *model.Configuration, etag string) (string, error) {
	if m.saveFn != nil {
		return m.saveFn(ctx, cfg, etag)
	}
	return "1", nil
}

func TestGetActiveOrDefault_FallsBackWhenAbsent(t *testing.T) {
	repo := &mockRepo{}
	svc := New(repo, true, "", zap.NewNop())

	cfg, err := svc.GetActiveOrDefault(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Orchestrator.Strategy != model.StrategyOpenAIFunction {
		t.Errorf("expected default strategy, got %s", cfg.Orchestrator.Strategy)
	}
}

func TestGetActiveOrDefault_DefaultStrategyOverride(t *testing.T) {
	repo := &mockRepo{}
	svc := New(repo, true, model.StrategyPromptFlow, zap.NewNop())

	cfg, err := svc.GetActiveOrDefault(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Orchestrator.Strategy != model.StrategyPromptFlow {
		t.Errorf("configured default strategy not applied, got %s", cfg.Orchestrator.Strategy)
	}
}

func TestGetActiveOrDefault_StoredStrategyWinsOverDefault(t *testing.T) {
	stored := model.Default()
	stored.Orchestrator.Strategy = model.StrategyLangChain
	repo := &mockRepo{
		getFn: func(_ context.Context) (*model.Configuration, string, error) {
			cfg := stored
			return &cfg, "1", nil
		},
	}
	svc := New(repo, true, model.StrategyPromptFlow, zap.NewNop())

	cfg, err := svc.GetActiveOrDefault(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Orchestrator.Strategy != model.StrategyLangChain {
		t.Errorf("stored strategy must win, got %s", cfg.Orchestrator.Strategy)
	}
}

func TestGetActiveOrDefault_StorageDisabled(t *testing.T) {
	repo := &mockRepo{
		getFn: func(_ context.Context) (*model.Configuration, string, error) {
			t.Fatal("storage must not be read when disabled")
			return nil, "", nil
		},
	}
	svc := New(repo, false, "", zap.NewNop())

	if _, err := svc.GetActiveOrDefault(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGetActiveOrDefault_CachesUntilClear(t *testing.T) {
	stored := model.Default()
	stored.Orchestrator.Strategy = model.StrategyLangChain
	repo := &mockRepo{
		getFn: func(_ context.Context) (*model.Configuration, string, error) {
			cfg := stored
			return &cfg, "7", nil
		},
	}
	svc := New(repo, true, "", zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		cfg, etag, err := svc.GetActiveWithEtag(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Orchestrator.Strategy != model.StrategyLangChain || etag != "7" {
			t.Fatalf("unexpected snapshot: %s / %s", cfg.Orchestrator.Strategy, etag)
		}
	}
	if repo.getCalls != 1 {
		t.Errorf("expected 1 storage read, got %d", repo.getCalls)
	}

	svc.Clear()
	if _, err := svc.GetActiveOrDefault(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.getCalls != 2 {
		t.Errorf("expected re-read after Clear, got %d reads", repo.getCalls)
	}
}

func TestSave_ValidatesBeforePersisting(t *testing.T) {
	repo := &mockRepo{
		saveFn: func(_ context.Context, _ *model.Configuration, _ string) (string, error) {
			t.Fatal("invalid configuration must not reach storage")
			return "", nil
		},
	}
	svc := New(repo, true, "", zap.NewNop())

	bad := model.Default()
	bad.Orchestrator.Strategy = "bogus"

	_, err := svc.Save(context.Background(), &bad, "")
	if !errors.Is(err, domain.ErrBadInput) {
		t.Fatalf("expected ErrBadInput, got %v", err)
	}
}

func TestSave_UpdatesCacheAndEtag(t *testing.T) {
	repo := &mockRepo{
		saveFn: func(_ context.Context, _ *model.Configuration, etag string) (string, error) {
			if etag != "7" {
				t.Errorf("expected caller etag forwarded, got %q", etag)
			}
			return "8", nil
		},
	}
	svc := New(repo, true, "", zap.NewNop())

	cfg := model.Default()
	cfg.Orchestrator.Strategy = model.StrategyPromptFlow

	newEtag, err := svc.Save(context.Background(), &cfg, "7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if newEtag != "8" {
		t.Errorf("expected new etag 8, got %q", newEtag)
	}

	got, etag, err := svc.GetActiveWithEtag(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Orchestrator.Strategy != model.StrategyPromptFlow || etag != "8" {
		t.Errorf("cache not updated after save: %s / %s", got.Orchestrator.Strategy, etag)
	}
	if repo.getCalls != 0 {
		t.Errorf("save must prime the cache without a storage read, got %d reads", repo.getCalls)
	}
}

func TestSave_ConflictPropagates(t *testing.T) {
	repo := &mockRepo{
		saveFn: func(_ context.Context, _ *model.Configuration, _ string) (string, error) {
			return "", domain.ErrEtagConflict
		},
	}
	svc := New(repo, true, "", zap.NewNop())

	cfg := model.Default()
	_, err := svc.Save(context.Background(), &cfg, "stale")
	if !errors.Is(err, domain.ErrEtagConflict) {
		t.Fatalf("expected ErrEtagConflict, got %v", err)
	}
}
