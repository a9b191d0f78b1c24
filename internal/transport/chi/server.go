// Package chi exposes the HTTP API: ingestion endpoints, the conversation
// endpoint, and the admin surface for files and configuration.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/atlas-cloud/ragdex/internal/domain"
	"github.com/atlas-cloud/ragdex/internal/domain/appconfig"
	"github.com/atlas-cloud/ragdex/internal/repository/index"
	healthuc "github.com/atlas-cloud/ragdex/internal/usecase/health"
	"github.com/atlas-cloud/ragdex/internal/usecase/orchestrator"
)

// Error codes returned in JSON error bodies.
const (
	codeBadRequest    = "bad_request"
	codeNotFound      = "not_found"
	codeEtagConflict  = "etag_conflict"
	codeRateLimited   = "rate_limited"
	codeProviderError = "provider_error"
	codeInternalError = "internal_error"
)

// conversationHandler runs one conversation turn (ISP).
type conversationHandler interface {
	HandleMessage(ctx context.Context, req orchestrator.Request) ([]domain.ConversationTurn, error)
}

// ingestionStarter kicks off ingestion runs (ISP).
type ingestionStarter interface {
	StartProcessing(ctx context.Context, processAll bool) (int, error)
	AddURL(ctx context.Context, url string) error
}

// fileAdmin serves the admin file explorer (ISP).
type fileAdmin interface {
	Facets(ctx context.Context, field string) ([]index.Facet, error)
	DeleteBySource(ctx context.Context, source string) (int, error)
}

// blobDeleter removes stored source files (ISP).
type blobDeleter interface {
	Delete(ctx context.Context, name string) error
}

// configAdmin reads and writes the active configuration (ISP).
type configAdmin interface {
	GetActiveWithEtag(ctx context.Context) (*appconfig.Configuration, string, error)
	Save(ctx context.Context, cfg *appconfig.Configuration, etag string) (string, error)
	Clear()
}

// healthChecker aggregates component health (ISP).
type healthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server implements the HTTP handlers.
type Server struct {
	conversation  conversationHandler
	ingestion     ingestionStarter
	files         fileAdmin
	blobs         blobDeleter
	config        configAdmin
	health        healthChecker
	chatModel     string
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates the HTTP API server. chatModel is echoed in the
// conversation response envelope.
func NewServer(
	conversation conversationHandler,
	ingestion ingestionStarter,
	files fileAdmin,
	blobs blobDeleter,
	config configAdmin,
	health healthChecker,
	chatModel string,
	logger *zap.Logger,
) *Server {
	s := &Server{
		conversation: conversation,
		ingestion:    ingestion,
		files:        files,
		blobs:        blobs,
		config:       config,
		health:       health,
		chatModel:    chatModel,
		logger:       logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrBadInput, http.StatusBadRequest, codeBadRequest),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrEtagConflict, http.StatusConflict, codeEtagConflict),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeProviderError),
		sentinelHandler(domain.ErrLLMProviderError, http.StatusBadGateway, codeProviderError),
		sentinelHandler(domain.ErrSafetyProviderError, http.StatusBadGateway, codeProviderError),
		sentinelHandler(domain.ErrAnalysisProviderError, http.StatusBadGateway, codeProviderError),
	}
	return s
}

// AddURLEmbeddings handles POST /AddURLEmbeddings. The url comes from a
// query parameter or a JSON body.
func (s *Server) AddURLEmbeddings(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		var body struct {
			URL string `json:"url"`
		}
		// A missing or malformed body falls through to the empty-url check.
		_ = json.NewDecoder(r.Body).Decode(&body)
		url = body.URL
	}
	if url == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "url is required")
		return
	}

	if err := s.ingestion.AddURL(r.Context(), url); err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "Embeddings added successfully for %s", url)
}

// BatchStartProcessing handles POST /BatchStartProcessing.
func (s *Server) BatchStartProcessing(w http.ResponseWriter, r *http.Request) {
	processAll := r.URL.Query().Get("process_all") == "true"

	queued, err := s.ingestion.StartProcessing(r.Context(), processAll)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"queued": queued})
}

// conversationRequest is the POST /GetConversationResponse body.
type conversationRequest struct {
	ConversationID string `json:"conversation_id"`
	Messages       []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// conversationResponse is the chat completion style envelope.
type conversationResponse struct {
	ID      string               `json:"id"`
	Model   string               `json:"model"`
	Created int64                `json:"created"`
	Object  string               `json:"object"`
	Choices []conversationChoice `json:"choices"`
}

type conversationChoice struct {
	Messages []domain.ConversationTurn `json:"messages"`
}

// GetConversationResponse handles POST /GetConversationResponse. The last
// user message is the question; earlier messages become paired history.
func (s *Server) GetConversationResponse(w http.ResponseWriter, r *http.Request) {
	var req conversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}

	turns := make([]domain.ConversationTurn, 0, len(req.Messages))
	userMessage := ""
	for _, m := range req.Messages {
		turns = append(turns, domain.ConversationTurn{
			Role:    domain.Role(m.Role),
			Content: m.Content,
		})
		if m.Role == string(domain.RoleUser) {
			userMessage = m.Content
		}
	}
	if userMessage == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "messages must contain a user message")
		return
	}

	result, err := s.conversation.HandleMessage(r.Context(), orchestrator.Request{
		ConversationID: req.ConversationID,
		UserMessage:    userMessage,
		History:        domain.PairHistory(turns),
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, conversationResponse{
		ID:      uuid.NewString(),
		Model:   s.chatModel,
		Created: time.Now().Unix(),
		Object:  "response",
		Choices: []conversationChoice{{Messages: result}},
	})
}

// HealthCheck handles GET /api/health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())
	if report.Status != healthuc.Healthy {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": report.Status,
			"checks": report.Checks,
		})
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// GetConfig handles GET /api/config: the read-only snapshot subset.
func (s *Server) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, etag, err := s.config.GetActiveWithEtag(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	if etag != "" {
		w.Header().Set("ETag", etag)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orchestrator":             cfg.Orchestrator,
		"document_processors":      cfg.DocumentProcessors,
		"integrated_vectorization": cfg.IntegratedVectorization,
		"enable_content_safety":    cfg.EnableContentSafety,
	})
}

// SaveConfig handles POST /api/config. The If-Match header carries the
// expected etag; absent means create-only.
func (s *Server) SaveConfig(w http.ResponseWriter, r *http.Request) {
	var cfg appconfig.Configuration
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid configuration body: "+err.Error())
		return
	}

	etag, err := s.config.Save(r.Context(), &cfg, r.Header.Get("If-Match"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.Header().Set("ETag", etag)
	writeJSON(w, http.StatusOK, map[string]string{"etag": etag})
}

// RefreshConfig handles POST /api/config/refresh: drops the process-local
// configuration cache.
func (s *Server) RefreshConfig(w http.ResponseWriter, r *http.Request) {
	s.config.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// ListFiles handles GET /api/files: distinct document titles with chunk
// counts from the index.
func (s *Server) ListFiles(w http.ResponseWriter, r *http.Request) {
	facets, err := s.files.Facets(r.Context(), "title")
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	files := make([]map[string]any, len(facets))
	for i, f := range facets {
		files[i] = map[string]any{"filename": f.Value, "chunk_count": f.Count}
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

// DeleteFiles handles DELETE /api/files: removes stored files and their
// index records.
func (s *Server) DeleteFiles(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filenames []string `json:"filenames"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Filenames) == 0 {
		writeError(w, http.StatusBadRequest, codeBadRequest, "filenames is required")
		return
	}

	deletedChunks := 0
	for _, name := range req.Filenames {
		n, err := s.files.DeleteBySource(r.Context(), name)
		if err != nil {
			s.handleDomainError(w, err)
			return
		}
		deletedChunks += n

		if err := s.blobs.Delete(r.Context(), name); err != nil && !errors.Is(err, domain.ErrNotFound) {
			s.handleDomainError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"deleted_files":  len(req.Filenames),
		"deleted_chunks": deletedChunks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"code":    code,
		"message": message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrBadInput,
		domain.ErrNotFound,
		domain.ErrEtagConflict,
		domain.ErrRateLimited,
		domain.ErrEmbeddingProviderError,
		domain.ErrLLMProviderError,
		domain.ErrSafetyProviderError,
		domain.ErrAnalysisProviderError,
		domain.ErrUnknownStrategy,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
