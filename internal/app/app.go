package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/promotion-service/internal/category"
	"github.com/utafrali/promotion-service/internal/config"
	"github.com/utafrali/promotion-service/internal/event"
	handler "github.com/utafrali/promotion-service/internal/handler/http"
	"github.com/utafrali/promotion-service/internal/index"
	"github.com/utafrali/promotion-service/internal/pkg/clock"
	"github.com/utafrali/promotion-service/internal/repository/postgres"
	"github.com/utafrali/promotion-service/internal/scheduler"
	"github.com/utafrali/promotion-service/internal/service"
	"github.com/utafrali/promotion-service/pkg/database"
	"github.com/utafrali/promotion-service/pkg/health"
	pkgkafka "github.com/utafrali/promotion-service/pkg/kafka"
)

// App wires together all dependencies and runs the promotion service.
type App struct {
	cfg         *config.Config
	logger      *slog.Logger
	pool        *pgxpool.Pool
	redisClient *redis.Client
	producer    *pkgkafka.Producer
	scheduler   *scheduler.Scheduler
	httpServer  *http.Server

	schedulerCancel context.CancelFunc
	schedulerDone   chan struct{}
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// PostgreSQL connection pool.
	pgCfg := cfg.PostgresConfig()
	pgCfg.MaxConns = 25
	pgCfg.MinConns = 5
	pgCfg.MaxConnLifetime = time.Hour
	pgCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	prometheus.MustRegister(database.NewPoolStatsCollector(pool, "promotion"))

	// Index backend.
	var (
		indexBackend index.Backend
		redisClient  *redis.Client
	)
	switch cfg.IndexBackend {
	case config.IndexBackendRedis:
		redisClient, err = database.NewRedisClient(ctx, cfg.RedisConfig())
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info("connected to Redis",
			slog.String("host", cfg.RedisHost),
			slog.Int("port", cfg.RedisPort),
		)
		indexBackend = index.NewRedisBackend(redisClient)
	case config.IndexBackendMemory:
		logger.Warn("using in-memory index backend, entries are lost on restart")
		indexBackend = index.NewMemoryBackend()
	}

	// Kafka producer.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Build the dependency graph.
	clk := clock.RealClock{}
	campaignRepo := postgres.NewCampaignRepository(pool)
	productRepo := postgres.NewProductRepository(pool)
	variantRepo := postgres.NewVariantRepository(pool)
	categoryRepo := postgres.NewCategoryRepository(pool)

	tree := category.NewTree(categoryRepo, cfg.CategoryCacheTTL, clk)
	syncer := index.NewSyncer(productRepo, variantRepo, indexBackend, clk, logger)
	eventProducer := event.NewProducer(producer)

	promotionService := service.NewPromotionService(
		campaignRepo, productRepo, variantRepo, tree, syncer, eventProducer, clk, logger,
	)

	sched := scheduler.New(promotionService, campaignRepo, cfg.SchedulerInterval, clk, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	if redisClient != nil {
		healthHandler.Register("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	// HTTP router.
	router := handler.NewRouter(promotionService, healthHandler, logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:         cfg,
		logger:      logger,
		pool:        pool,
		redisClient: redisClient,
		producer:    producer,
		scheduler:   sched,
		httpServer:  httpServer,
	}, nil
}

// Run starts the scheduler and HTTP server and blocks until the context is
// canceled.
func (a *App) Run(ctx context.Context) error {
	schedCtx, cancel := context.WithCancel(context.Background())
	a.schedulerCancel = cancel
	a.schedulerDone = make(chan struct{})
	go func() {
		defer close(a.schedulerDone)
		a.scheduler.Run(schedCtx)
	}()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components: HTTP first so no new work
// arrives, then the scheduler, then the outbound clients.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	if a.schedulerCancel != nil {
		a.schedulerCancel()
		select {
		case <-a.schedulerDone:
		case <-shutdownCtx.Done():
			a.logger.Warn("scheduler did not stop before deadline")
		}
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return nil
}
