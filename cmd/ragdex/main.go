package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/atlas-cloud/ragdex/internal/config"
	dbRedis "github.com/atlas-cloud/ragdex/internal/db/redis"
	"github.com/atlas-cloud/ragdex/internal/domain"
	appconfigmodel "github.com/atlas-cloud/ragdex/internal/domain/appconfig"
	"github.com/atlas-cloud/ragdex/internal/embedder"
	"github.com/atlas-cloud/ragdex/internal/loader"
	logpkg "github.com/atlas-cloud/ragdex/internal/logger"
	"github.com/atlas-cloud/ragdex/internal/metrics"
	appconfigrepo "github.com/atlas-cloud/ragdex/internal/repository/appconfig"
	blobrepo "github.com/atlas-cloud/ragdex/internal/repository/blob"
	"github.com/atlas-cloud/ragdex/internal/repository/embcache"
	indexrepo "github.com/atlas-cloud/ragdex/internal/repository/index"
	queuerepo "github.com/atlas-cloud/ragdex/internal/repository/queue"
	chiTransport "github.com/atlas-cloud/ragdex/internal/transport/chi"
	"github.com/atlas-cloud/ragdex/internal/transport/docintel"
	openaiTransport "github.com/atlas-cloud/ragdex/internal/transport/openai"
	"github.com/atlas-cloud/ragdex/internal/transport/safety"
	appconfiguc "github.com/atlas-cloud/ragdex/internal/usecase/appconfig"
	embeddinguc "github.com/atlas-cloud/ragdex/internal/usecase/embedding"
	healthuc "github.com/atlas-cloud/ragdex/internal/usecase/health"
	ingestionuc "github.com/atlas-cloud/ragdex/internal/usecase/ingestion"
	"github.com/atlas-cloud/ragdex/internal/usecase/orchestrator"
	retrievaluc "github.com/atlas-cloud/ragdex/internal/usecase/retrieval"
	"github.com/atlas-cloud/ragdex/internal/usecase/tools"
	"github.com/atlas-cloud/ragdex/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting ragdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("default_strategy", cfg.Orchestration.DefaultStrategy),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterProviderMetrics()
	metrics.RegisterIngestionMetrics()
	metrics.RegisterOrchestratorMetrics()

	// Embedder chain: OpenAI -> Cached -> Instrumented
	embedChain, baseEmbedder := buildEmbedder(cfg, store, logger)
	logger.Info("Embedder created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	chat := openaiTransport.NewChatClient(&openaiTransport.ChatConfig{
		APIKey:      cfg.Chat.APIKey,
		BaseURL:     cfg.Chat.BaseURL,
		Model:       cfg.Chat.Model,
		Temperature: float32(cfg.Chat.Temperature),
		MaxTokens:   cfg.Chat.MaxTokens,
		Logger:      logger,
	})

	docClient := docintel.New(&docintel.Config{
		Endpoint: cfg.DocIntel.Endpoint,
		APIKey:   cfg.DocIntel.APIKey,
		Timeout:  time.Duration(cfg.DocIntel.PollTimeoutSec) * time.Second,
		Logger:   logger,
	})
	safetyClient := safety.New(&safety.Config{
		Endpoint: cfg.Safety.Endpoint,
		APIKey:   cfg.Safety.APIKey,
		Logger:   logger,
	})

	loaders := loader.NewRegistry()
	webLoader := loader.NewWebLoader(30 * time.Second)
	loaders.Register("layout", loader.NewLayoutLoader(docClient))
	loaders.Register("read", loader.NewReadLoader(docClient))
	loaders.Register("web", webLoader)
	loaders.Register("url", webLoader)
	loaders.Register("docx", loader.NewDocxLoader())

	// Repositories
	chunkIndex := indexrepo.New(store, cfg.Embedding.Dimensions, logger).
		WithHNSW(cfg.Storage.HNSWM, cfg.Storage.HNSWEFConstr)
	if err := chunkIndex.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure chunk index", zap.Error(err))
	}
	blobs := blobrepo.New(store, logger)

	defaultStrategy, err := appconfigmodel.ParseStrategy(cfg.Orchestration.DefaultStrategy)
	if err != nil {
		logger.Fatal("Invalid default strategy", zap.Error(err))
	}
	configSvc := appconfiguc.New(appconfigrepo.New(store), cfg.Storage.LoadFromStore, defaultStrategy, logger)

	queue, err := queuerepo.New(ctx, store, queuerepo.Config{
		Stream:           cfg.Queue.Stream,
		Group:            cfg.Queue.Group,
		DeadLetterStream: cfg.Queue.DeadLetterStream,
		MaxDeliveries:    int64(cfg.Queue.MaxDeliveries),
		Visibility:       time.Duration(cfg.Queue.VisibilitySec) * time.Second,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create ingestion queue", zap.Error(err))
	}

	// Ingestion: the file embedder variant follows the vectorization mode.
	// URL adds always take the push path because a reprocess pass only
	// sees stored files.
	pushEmbed := embedder.NewPush(blobs, chunkIndex, loaders, configSvc, embedChain, logger)
	var fileEmbed fileEmbedder = pushEmbed
	if cfg.Orchestration.IntegratedVectorization {
		fileEmbed = embedder.NewIntegrated(blobs, chunkIndex, loaders, configSvc, logger)
	}

	ingestSvc := ingestionuc.New(
		blobs, queue, fileEmbed, pushEmbed,
		cfg.Orchestration.IntegratedVectorization,
		cfg.Queue.StartProcessLimit,
		logger,
	)

	poolCtx, poolCancel := context.WithCancel(ctx)
	pool := ingestionuc.NewPool(queue, fileEmbed, ingestionuc.PoolConfig{
		Workers:      cfg.Queue.Workers,
		Block:        time.Duration(cfg.Queue.BlockSec) * time.Second,
		EmbedTimeout: time.Duration(cfg.Queue.EmbedTimeoutSec) * time.Second,
		ClaimSweep:   time.Duration(cfg.Queue.ClaimSweepSec) * time.Second,
		ClaimBatch:   cfg.Queue.ClaimBatchSize,
	}, logger)
	pool.Start(poolCtx)

	// Conversation pipeline
	retrieveSvc := retrievaluc.New(chunkIndex, embedChain, logger).
		WithDefaultTopK(cfg.Orchestration.TopK)
	safetyTool := tools.NewSafetyChecker(safetyClient, cfg.Safety.SeverityThreshold, logger)
	qaTool := tools.NewQuestionAnswerTool(retrieveSvc, chat, logger)
	textTool := tools.NewTextProcessingTool(chat, logger)
	postTool := tools.NewPostPromptTool(chat, logger)

	strategies := orchestrator.NewStrategySet(qaTool, textTool, safetyTool, chat, logger).
		WithMaxToolHops(cfg.Orchestration.MaxToolHops)
	orch := orchestrator.New(configSvc, strategies, safetyTool, postTool, logger)

	healthSvc := healthuc.New(store, newEmbeddingHealthChecker(baseEmbedder))

	server := chiTransport.NewServer(
		orch, ingestSvc, chunkIndex, blobs, configSvc, healthSvc,
		cfg.Chat.Model, logger,
	)

	adminKeys := cfg.Auth.APIKeys
	if cfg.Auth.AdminDisabled {
		adminKeys = nil
	}
	router := chiTransport.NewRouter(server, adminKeys,
		jsonRecoverer(logger),
		chiMiddleware.RequestID,
		chiMiddleware.Timeout(time.Duration(cfg.HTTP.RequestDeadline)*time.Second),
		wideEventMiddleware(logger),
		metrics.Middleware(),
	)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	// Stop workers after the HTTP surface is drained so in-flight requests
	// can still enqueue.
	poolCancel()
	pool.Wait()

	logger.Info("Server stopped gracefully")
}

// fileEmbedder covers both ingestion variants.
type fileEmbedder interface {
	EmbedFile(ctx context.Context, filename, downloadURL string) error
	ReprocessAll(ctx context.Context) error
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented.
// The base provider is returned separately for health checks.
func buildEmbedder(
	cfg config.Config, store *dbRedis.Store, logger *zap.Logger,
) (*embeddinguc.InstrumentedEmbedder, *openaiTransport.Embedder) {
	base := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})

	cached := embcache.New(base, store, metrics.EmbeddingCacheTotal, logger)

	chain := embeddinguc.NewInstrumentedEmbedder(cached, "openai", cfg.Embedding.Model, logger)
	return chain, base
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line: one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
