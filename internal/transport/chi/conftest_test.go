package chi

import (
	"context"

	"go.uber.org/zap"

	"github.com/atlas-cloud/ragdex/internal/domain"
	"github.com/atlas-cloud/ragdex/internal/domain/appconfig"
	"github.com/atlas-cloud/ragdex/internal/repository/index"
	healthuc "github.com/atlas-cloud/ragdex/internal/usecase/health"
	"github.com/atlas-cloud/ragdex/internal/usecase/orchestrator"
)

// mockConversation implements the conversationHandler consumer interface.
type mockConversation struct {
	handleFn func(ctx context.Context, req orchestrator.Request) ([]domain.ConversationTurn, error)
	lastReq  orchestrator.Request
	calls    int
}

func (m *mockConversation) HandleMessage(
	ctx context.Context, req orchestrator.Request,
) ([]domain.ConversationTurn, error) {
	m.calls++
	m.lastReq = req
	if m.handleFn != nil {
		return m.handleFn(ctx, req)
	}
	return []domain.ConversationTurn{domain.NewAssistantTurn("hi")}, nil
}

// mockIngestion implements the ingestionStarter consumer interface.
type mockIngestion struct {
	startFn  func(ctx context.Context, processAll bool) (int, error)
	addURLFn func(ctx context.Context, url string) error
}

func (m *mockIngestion) StartProcessing(ctx context.Context, processAll bool) (int, error) {
	if m.startFn != nil {
		return m.startFn(ctx, processAll)
	}
	return 0, nil
}

func (m *mockIngestion) AddURL(ctx context.Context, url string) error {
	if m.addURLFn != nil {
		return m.addURLFn(ctx, url)
	}
	return nil
}

// mockFiles implements the fileAdmin consumer interface.
type mockFiles struct {
	facetsFn func(ctx context.Context, field string) ([]index.Facet, error)
	deleteFn func(ctx context.Context, source string) (int, error)
	deleted  []string
}

func (m *mockFiles) Facets(ctx context.Context, field string) ([]index.Facet, error) {
	if m.facetsFn != nil {
		return m.facetsFn(ctx, field)
	}
	return nil, nil
}

func (m *mockFiles) DeleteBySource(ctx context.Context, source string) (int, error) {
	m.deleted = append(m.deleted, source)
	if m.deleteFn != nil {
		return m.deleteFn(ctx, source)
	}
	return 0, nil
}

// mockBlobs implements the blobDeleter consumer interface.
type mockBlobs struct {
	deleteFn func(ctx context.Context, name string) error
	deleted  []string
}

func (m *mockBlobs) Delete(ctx context.Context, name string) error {
	m.deleted = append(m.deleted, name)
	if m.deleteFn != nil {
		return m.deleteFn(ctx, name)
	}
	return nil
}

// mockConfig implements the configAdmin consumer interface.
type mockConfig struct {
	getFn   func(ctx context.Context) (*appconfig.Configuration, string, error)
	saveFn  func(ctx context.Context, cfg *appconfig.Configuration, etag string) (string, error)
	cleared int
}

func (m *mockConfig) GetActiveWithEtag(ctx context.Context) (*appconfig.Configuration, string, error) {
	if m.getFn != nil {
		return m.getFn(ctx)
	}
	cfg := appconfig.Default()
	return &cfg, "1", nil
}

func (m *mockConfig) Save(
	ctx context.Context, cfg *appconfig.Configuration, etag string,
) (string, error) {
	if m.saveFn != nil {
		return m.saveFn(ctx, cfg, etag)
	}
	return "2", nil
}

func (m *mockConfig) Clear() {
	m.cleared++
}

// mockHealth implements the healthChecker consumer interface.
type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report {
	if m.report.Status == "" {
		return healthuc.Report{Status: healthuc.Healthy}
	}
	return m.report
}

func newTestServer(
	conv *mockConversation,
	ing *mockIngestion,
	files *mockFiles,
	blobs *mockBlobs,
	config *mockConfig,
	health *mockHealth,
) *Server {
	if conv == nil {
		conv = &mockConversation{}
	}
	if ing == nil {
		ing = &mockIngestion{}
	}
	if files == nil {
		files = &mockFiles{}
	}
	if blobs == nil {
		blobs = &mockBlobs{}
	}
	if config == nil {
		config = &mockConfig{}
	}
	if health == nil {
		health = &mockHealth{}
	}
	return NewServer(conv, ing, files, blobs, config, health, "test-model", zap.NewNop())
}
