package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/selivandex/thesis-engine/internal/adapters/ai"
	"github.com/selivandex/thesis-engine/internal/adapters/config"
	"github.com/selivandex/thesis-engine/internal/adapters/database"
	embeddingsRepo "github.com/selivandex/thesis-engine/internal/adapters/embeddings"
	"github.com/selivandex/thesis-engine/internal/adapters/news"
	"github.com/selivandex/thesis-engine/internal/adapters/price"
	redisAdapter "github.com/selivandex/thesis-engine/internal/adapters/redis"
	"github.com/selivandex/thesis-engine/internal/analysis"
	"github.com/selivandex/thesis-engine/internal/api"
	"github.com/selivandex/thesis-engine/internal/cache"
	"github.com/selivandex/thesis-engine/internal/evidence"
	"github.com/selivandex/thesis-engine/internal/health"
	"github.com/selivandex/thesis-engine/internal/market"
	"github.com/selivandex/thesis-engine/internal/synthesis"
	"github.com/selivandex/thesis-engine/internal/workers"
	"github.com/selivandex/thesis-engine/pkg/embeddings"
	"github.com/selivandex/thesis-engine/pkg/lock"
	"github.com/selivandex/thesis-engine/pkg/logger"
	"github.com/selivandex/thesis-engine/pkg/worker"
)

const refreshLockTTL = 2 * time.Minute

func main() {
	// a missing .env is fine
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := initConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("thesis engine starting",
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.Int("feeds", len(cfg.News.Feeds)),
	)

	db, err := database.New(cfg.Evidence.IndexDir)
	if err != nil {
		return fmt.Errorf("failed to open index storage: %w", err)
	}
	defer db.Close()

	registry := health.NewRegistry()
	registry.Register("storage", db)

	var redisClient *redisAdapter.Client
	if cfg.RedisEnabled() {
		redisClient, err = redisAdapter.New(&cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisClient.Close()
		registry.Register("redis", redisClient)
	}

	var openaiClient *openai.Client
	if cfg.AI.HasAPIKey() {
		openaiCfg := openai.DefaultConfig(cfg.AI.APIKey)
		if cfg.AI.BaseURL != "" {
			openaiCfg.BaseURL = cfg.AI.BaseURL
		}
		openaiClient = openai.NewClientWithConfig(openaiCfg)
	}

	embedder := initEmbedder(cfg, db, openaiClient)
	if c, ok := embedder.(*embeddings.Client); ok {
		defer c.LogDeduplicationStats()
	}

	store := evidence.NewStore(
		database.NewIndexRepository(db),
		embedder,
		evidence.Options{
			PreviewChars: cfg.Evidence.PreviewChars,
			MaxDistance:  cfg.Evidence.MaxDistance,
		},
	)

	yahoo := price.NewYahooProvider(cfg.Price.Timeout, cfg.Price.Proxy)
	extractor := market.NewExtractor(yahoo, nil, market.Options{
		Range:         cfg.Price.Range,
		Interval:      cfg.Price.Interval,
		FallbackRange: cfg.Price.FallbackRange,
	})

	aggregator := news.NewAggregator(news.NewRSSProvider(cfg.News.Timeout), cfg.News.Timeout)

	synthesizer, err := initSynthesizer(cfg, openaiClient)
	if err != nil {
		return err
	}

	reportCache, locker := initCache(cfg, redisClient)
	if m, ok := reportCache.(*cache.Memory); ok {
		defer func() {
			logger.Info("report cache entries at shutdown", zap.Int("entries", m.Len()))
		}()
	}

	service := analysis.NewService(analysis.Deps{
		Signals:   extractor,
		Headlines: aggregator,
		Evidence:  store,
		Writer:    synthesizer,
		Cache:     reportCache,
		Locker:    locker,
	}, analysis.Config{
		Feeds:     cfg.News.Feeds,
		NewsLimit: cfg.News.Limit,
		EvidenceK: cfg.Evidence.K,
		CacheTTL:  cfg.Cache.TTL,
	})

	group := worker.NewGroup(ctx)
	if len(cfg.Watch.Tickers) > 0 {
		refresher, err := workers.NewEvidenceRefresher(aggregator, store, cfg.Watch.Tickers, cfg.News.Feeds, cfg.News.Limit)
		if err != nil {
			return err
		}
		if cfg.Watch.Schedule != "" {
			if err := group.AddCron(refresher, cfg.Watch.Schedule); err != nil {
				return err
			}
		} else {
			group.Add(refresher, cfg.Watch.Interval)
		}
		logger.Info("evidence refresher enabled", zap.Strings("tickers", refresher.Tickers()))
	}
	group.Start()

	server := api.NewServer(service, registry, api.Options{
		Port:           cfg.HTTP.Port,
		RateLimit:      cfg.HTTP.RateLimit,
		RateBurst:      cfg.HTTP.RateBurst,
		AnalyzeTimeout: cfg.HTTP.AnalyzeTimeout,
		CORSOrigins:    cfg.HTTP.CORSOrigins,
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()
	registry.SetReady(true)

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-serverErr:
		if err != nil {
			logger.Error("api server failed", zap.Error(err))
		}
	}

	return performGracefulShutdown(server, group, registry)
}

// initConfig loads configuration and initializes logger
func initConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return cfg, nil
}

// initEmbedder prefers OpenAI embeddings with persistent dedup, falling back to the offline hash embedder
func initEmbedder(cfg *config.Config, db *database.DB, client *openai.Client) embeddings.Embedder {
	if client == nil {
		logger.Warn("OpenAI API key not set - using offline hash embeddings (lower quality)")
		return embeddings.NewHashEmbedder()
	}

	logger.Info("OpenAI embeddings client initialized", zap.String("model", cfg.AI.EmbedModel))
	return embeddings.NewClient(embeddings.Config{
		OpenAIClient: client,
		Repository:   embeddingsRepo.NewRepository(db),
		Model:        openai.EmbeddingModel(cfg.AI.EmbedModel),
		MaxAttempts:  cfg.AI.EmbedMaxAttempts,
	})
}

func initSynthesizer(cfg *config.Config, openaiClient *openai.Client) (*synthesis.Synthesizer, error) {
	prompts, err := ai.NewPromptBuilder(cfg.AI.PromptsDir)
	if err != nil {
		return nil, err
	}

	var generator ai.Generator
	switch cfg.AI.Provider {
	case "claude":
		generator = ai.NewClaudeProvider(ai.ClaudeConfig{
			APIKey:      cfg.AI.AnthropicAPIKey,
			BaseURL:     cfg.AI.AnthropicBaseURL,
			Model:       cfg.AI.AnthropicModel,
			Temperature: cfg.AI.Temperature,
			MaxTokens:   cfg.AI.MaxTokens,
		})
		if cfg.AI.AnthropicAPIKey == "" {
			logger.Warn("ANTHROPIC_API_KEY not set - analysis requests will fail at synthesis")
		}
	default:
		generator = ai.NewOpenAIProvider(ai.OpenAIConfig{
			Client:      openaiClient,
			Model:       cfg.AI.Model,
			Temperature: cfg.AI.Temperature,
			MaxTokens:   cfg.AI.MaxTokens,
		})
		if openaiClient == nil {
			logger.Warn("OPENAI_API_KEY not set - analysis requests will fail at synthesis")
		}
	}

	logger.Info("thesis generator initialized", zap.String("provider", generator.GetName()))
	return synthesis.NewSynthesizer(generator, prompts), nil
}

func initCache(cfg *config.Config, redisClient *redisAdapter.Client) (cache.Cache, lock.Locker) {
	if redisClient == nil {
		return cache.NewMemory(nil), lock.NewLocal()
	}
	logger.Info("using redis report cache and distributed refresh lock")
	return cache.NewRedis(redisClient), redisClient.Locker("thesis:refresh:", refreshLockTTL)
}

// performGracefulShutdown stops accepting requests, then stops workers
func performGracefulShutdown(server *api.Server, group *worker.Group, registry *health.Registry) error {
	logger.Info("starting graceful shutdown...")
	registry.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var errs []error
	if err := server.Stop(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("api server shutdown: %w", err))
	}
	group.Stop(10 * time.Second)

	logger.Info("shutdown complete")
	return errors.Join(errs...)
}
