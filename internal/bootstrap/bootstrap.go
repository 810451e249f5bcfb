package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kirillkom/benefits-rag/internal/config"
	"github.com/kirillkom/benefits-rag/internal/core/domain"
	"github.com/kirillkom/benefits-rag/internal/core/ports"
	"github.com/kirillkom/benefits-rag/internal/core/usecase"
	"github.com/kirillkom/benefits-rag/internal/infrastructure/cache/memory"
	cacheredis "github.com/kirillkom/benefits-rag/internal/infrastructure/cache/redis"
	"github.com/kirillkom/benefits-rag/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/benefits-rag/internal/infrastructure/llm/openai"
	"github.com/kirillkom/benefits-rag/internal/infrastructure/queue/nats"
	"github.com/kirillkom/benefits-rag/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/benefits-rag/internal/infrastructure/rerank/httprerank"
	"github.com/kirillkom/benefits-rag/internal/infrastructure/resilience"
	"github.com/kirillkom/benefits-rag/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/benefits-rag/internal/observability/metrics"
)

// Dependency is a named liveness check for an external service.
type Dependency struct {
	Name string
	Ping func(context.Context) error
}

type App struct {
	Config config.Config

	QueryUC *usecase.QueryUseCase
	Metrics *metrics.HTTPServerMetrics

	Dependencies []Dependency

	executors []*resilience.Executor
	closers   []func()
}

// New builds the query service graph. Every call returns a fresh graph; the
// caller owns Close.
func New(ctx context.Context, cfg config.Config, service string) (_ *App, err error) {
	app := &App{Config: cfg}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	db, err := postgres.OpenDB(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	app.closers = append(app.closers, func() { _ = db.Close() })
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	app.Dependencies = append(app.Dependencies, Dependency{Name: "postgres", Ping: db.PingContext})
	documents := postgres.NewDocumentRepository(db)

	executor := resilience.NewExecutor(resilienceConfig(cfg))
	// Reranking already falls back on failure, so it gets one attempt.
	rerankExecutor := resilience.NewExecutor(resilienceConfig(cfg).WithoutRetry())
	app.executors = append(app.executors, executor, rerankExecutor)

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
	var openaiClient *openai.Client
	if cfg.EmbedProvider == "openai" || cfg.SynthProvider == "openai" {
		openaiClient = openai.New(openai.Config{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			EmbedModel: cfg.OpenAIEmbedModel,
			ChatModel:  cfg.OpenAIChatModel,
			Dimensions: cfg.OpenAIEmbedDimensions,
		}, executor)
	}

	var embedder ports.Embedder = ollama.NewEmbedder(ollamaClient)
	if cfg.EmbedProvider == "openai" {
		embedder = openai.NewEmbedder(openaiClient)
	}
	var answerModel ports.AnswerModel = ollama.NewAnswerModel(ollamaClient)
	if cfg.SynthProvider == "openai" {
		answerModel = openai.NewAnswerModel(openaiClient)
	}

	vectorDB := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, qdrant.Options{
		DenseVector:  cfg.QdrantDenseVector,
		SparseVector: cfg.QdrantSparseVector,
	}, executor)
	app.Dependencies = append(app.Dependencies, Dependency{Name: "qdrant", Ping: vectorDB.Ping})

	var lexical ports.LexicalIndex = documents
	if cfg.LexicalBackend == "qdrant" {
		lexical = vectorDB
	}

	listwise, err := selectReranker(cfg, ollamaClient, rerankExecutor)
	if err != nil {
		return nil, err
	}

	caches, err := selectCaches(cfg)
	if err != nil {
		return nil, err
	}
	if caches.close != nil {
		app.closers = append(app.closers, caches.close)
	}
	if caches.ping != nil {
		app.Dependencies = append(app.Dependencies, Dependency{Name: "cache", Ping: caches.ping})
	}

	var queryLog ports.QueryLogSink
	switch cfg.QueryLogSink {
	case "nats":
		queue, err := nats.New(cfg.NATSURL, cfg.NATSQueryLogSubject, nats.Options{ResilienceExecutor: executor})
		if err != nil {
			return nil, fmt.Errorf("init query log queue: %w", err)
		}
		app.closers = append(app.closers, queue.Close)
		app.Dependencies = append(app.Dependencies, Dependency{Name: "nats", Ping: queue.Ping})
		queryLog = queue
	case "postgres":
		queryLog = postgres.NewQueryLogRepository(db)
	}

	app.Metrics = metrics.NewHTTPServerMetrics(service)

	app.QueryUC = usecase.NewQueryUseCase(usecase.QueryComponents{
		Embeddings: usecase.NewEmbeddingGateway(embedder, caches.embeddings, app.Metrics),
		Retriever:  usecase.NewHybridRetriever(vectorDB, lexical, cfg.RAGVectorTopK, cfg.RAGLexicalTopK),
		Reranker:   usecase.NewReranker(listwise),
		Synthesizer: usecase.NewAnswerSynthesizer(answerModel, usecase.ConfidenceWeights{
			Rank:     cfg.RAGConfidenceRankWeight,
			Citation: cfg.RAGConfidenceCiteWeight,
		}),
		Guardrail: usecase.NewGuardrailAnnotator(),
		Freshness: usecase.NewFreshnessAnnotator(timeoutMetadataSource{
			source:  documents,
			timeout: cfg.FreshnessSnapshotTimeout,
		}, nil),
		Responses: caches.responses,
		QueryLog:  queryLog,
		Observer:  app.Metrics,
	}, domain.QueryLimits{
		RRFK:             cfg.RAGFusionRRFK,
		FuseTopN:         cfg.RAGFuseTopN,
		RerankTopN:       cfg.RAGRerankTopN,
		ContextTopC:      cfg.RAGContextTopC,
		DedupThreshold:   cfg.RAGDedupThreshold,
		ResponseCacheTTL: cfg.ResponseCacheTTL,
		LogTimeout:       cfg.QueryLogTimeout,
	})

	return app, nil
}

// BreakerStates merges the breaker views of every executor in the graph.
func (a *App) BreakerStates() []resilience.BreakerState {
	var out []resilience.BreakerState
	for _, executor := range a.executors {
		out = append(out, executor.States()...)
	}
	return out
}

// Close drains background query log writes, then releases connections in
// reverse order of creation.
func (a *App) Close() {
	if a.QueryUC != nil {
		a.QueryUC.Flush()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func resilienceConfig(cfg config.Config) resilience.Config {
	out := resilience.DefaultConfig()
	out.RetryMaxAttempts = cfg.ResilienceRetryMaxAttempts
	out.RetryInitialBackoff = cfg.ResilienceRetryInitialBackoff
	out.RetryMaxBackoff = cfg.ResilienceRetryMaxBackoff
	out.AttemptTimeout = cfg.ResilienceAttemptTimeout
	out.BreakerEnabled = cfg.ResilienceBreakerEnabled
	if cfg.ResilienceBreakerMinRequests > 0 {
		out.BreakerMinRequests = uint32(cfg.ResilienceBreakerMinRequests)
	}
	out.BreakerFailureRatio = cfg.ResilienceBreakerFailureRatio
	out.BreakerOpenTimeout = cfg.ResilienceBreakerOpenTimeout
	return out
}

// selectReranker returns a nil interface for "none" so the reranker always
// takes its fallback path.
func selectReranker(cfg config.Config, ollamaClient *ollama.Client, executor *resilience.Executor) (ports.ListwiseReranker, error) {
	switch cfg.RerankProvider {
	case "ollama":
		return ollama.NewReranker(ollamaClient, cfg.RerankTimeout, executor), nil
	case "http":
		return httprerank.New(cfg.RerankHTTPURL, cfg.RerankTimeout, executor), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown rerank provider %q", cfg.RerankProvider)
	}
}

type cacheSet struct {
	responses  ports.ResponseCache
	embeddings ports.EmbeddingCache
	ping       func(context.Context) error
	close      func()
}

func selectCaches(cfg config.Config) (cacheSet, error) {
	switch cfg.CacheBackend {
	case "redis":
		client, err := cacheredis.NewClient(cfg.RedisURL)
		if err != nil {
			return cacheSet{}, fmt.Errorf("init redis: %w", err)
		}
		cache := cacheredis.New(client, cfg.EmbeddingCacheTTL)
		return cacheSet{
			responses:  cache,
			embeddings: cache,
			ping:       cache.Ping,
			close:      func() { _ = client.Close() },
		}, nil
	case "memory":
		cache, err := memory.New(cfg.MemoryCacheSize, cfg.EmbeddingCacheTTL, nil)
		if err != nil {
			return cacheSet{}, fmt.Errorf("init memory cache: %w", err)
		}
		return cacheSet{responses: cache, embeddings: cache}, nil
	case "none":
		return cacheSet{}, nil
	default:
		return cacheSet{}, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

// timeoutMetadataSource bounds the freshness snapshot load independently of
// the query deadline.
type timeoutMetadataSource struct {
	source  ports.DocumentMetadataSource
	timeout time.Duration
}

func (s timeoutMetadataSource) ListDocuments(ctx context.Context) ([]domain.DocumentMeta, error) {
	if s.timeout <= 0 {
		return s.source.ListDocuments(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.source.ListDocuments(ctx)
}

// Worker persists query logs published by the API.
type Worker struct {
	Config config.Config

	Queue     *nats.Queue
	QueryLogs *postgres.QueryLogRepository
	Metrics   *metrics.WorkerMetrics

	db *sql.DB
}

func NewWorker(ctx context.Context, cfg config.Config, service string) (*Worker, error) {
	db, err := postgres.OpenDB(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSQueryLogSubject, nats.Options{})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init query log queue: %w", err)
	}

	return &Worker{
		Config:    cfg,
		Queue:     queue,
		QueryLogs: postgres.NewQueryLogRepository(db),
		Metrics:   metrics.NewWorkerMetrics(service),
		db:        db,
	}, nil
}

func (w *Worker) Close() {
	w.Queue.Close()
	_ = w.db.Close()
}
