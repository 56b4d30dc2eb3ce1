package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/winestore/internal/catalog"
	"github.com/utafrali/winestore/internal/checkout"
	"github.com/utafrali/winestore/internal/config"
	"github.com/utafrali/winestore/internal/event"
	handler "github.com/utafrali/winestore/internal/handler/http"
	"github.com/utafrali/winestore/internal/repository"
	"github.com/utafrali/winestore/internal/repository/memory"
	redisrepo "github.com/utafrali/winestore/internal/repository/redis"
	"github.com/utafrali/winestore/internal/service"
	"github.com/utafrali/winestore/pkg/database"
	"github.com/utafrali/winestore/pkg/health"
	"github.com/utafrali/winestore/pkg/httpclient"
	pkgkafka "github.com/utafrali/winestore/pkg/kafka"
	"github.com/utafrali/winestore/pkg/middleware"
	"github.com/utafrali/winestore/pkg/tracing"
)

const serviceName = "storefront"

// App wires together all dependencies and runs the storefront.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	rdb            *redis.Client
	publisher      pkgkafka.Publisher
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	healthHandler := health.NewHandler()

	// Cart persistence.
	var (
		sessions repository.SessionStore
		rdb      *redis.Client
	)
	switch cfg.CartStore {
	case config.CartStoreRedis:
		redisCfg := database.DefaultRedisConfig()
		redisCfg.Addr = cfg.RedisAddr
		redisCfg.Password = cfg.RedisPass
		redisCfg.DB = cfg.RedisDB

		rdb, err = database.NewRedisClient(ctx, redisCfg, logger)
		if err != nil {
			_ = tracerShutdown(context.Background())
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info("connected to Redis",
			slog.String("addr", cfg.RedisAddr),
			slog.Int("db", cfg.RedisDB),
		)
		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, rdb, serviceName); err != nil {
			logger.Warn("redis pool metrics not registered", slog.String("error", err.Error()))
		}
		healthHandler.RegisterCritical("redis", database.PingChecker(rdb))
		sessions = redisrepo.NewSessionStore(rdb, cfg.CartTTLDuration())
	default:
		logger.Warn("carts are kept in process memory and are lost on restart")
		sessions = memory.NewSessionStore()
	}

	// Kafka publisher.
	var publisher pkgkafka.Publisher = pkgkafka.NoopPublisher{Logger: logger}
	if cfg.KafkaEnabled {
		producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		healthHandler.RegisterNonCritical("kafka", producer.Ping)
		publisher = producer
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}
	eventProducer := event.NewProducer(publisher, logger)

	// HTTP clients with circuit breakers for the upstream APIs. Each API gets
	// its own breaker so a failing Order API does not take the catalog down.
	baseClient := httpclient.New(httpclient.Config{
		Timeout:         time.Duration(cfg.HTTPClientTimeoutSeconds) * time.Second,
		MaxRetries:      cfg.HTTPClientMaxRetries,
		RetryWaitMin:    200 * time.Millisecond,
		RetryWaitMax:    2 * time.Second,
		MaxConnsPerHost: 50,
		UserAgent:       "winestore-storefront",
	})
	productCB := httpclient.NewCircuitBreakerClient(baseClient, breakerConfig(cfg, "product-api"), logger).
		WithFallback(catalog.CircuitOpenFallback)
	orderCB := httpclient.NewCircuitBreakerClient(baseClient, breakerConfig(cfg, "order-api"), logger).
		WithFallback(checkout.CircuitOpenFallback)
	logger.Info("circuit breakers initialized",
		slog.Uint64("max_requests", uint64(cfg.CBMaxRequests)),
		slog.Int("timeout_seconds", cfg.CBTimeout),
		slog.Uint64("min_requests", uint64(cfg.CBMinRequests)),
	)

	var reader catalog.Reader = catalog.NewClient(productCB, cfg.ProductAPIURL, logger)
	if rdb != nil && cfg.CatalogCacheTTL() > 0 {
		reader = catalog.NewCachedReader(reader, rdb, cfg.CatalogCacheTTL(), logger)
		logger.Info("catalog cache enabled", slog.Duration("ttl", cfg.CatalogCacheTTL()))
	}
	orders := checkout.NewClient(orderCB, cfg.OrderAPIURL, logger)

	// Build the dependency graph.
	cartService := service.NewCartService(sessions, reader, eventProducer, cfg.DefaultLocale, logger)
	catalogService := service.NewCatalogService(reader, cfg.DefaultLocale, logger)
	checkoutService := service.NewCheckoutService(sessions, orders, eventProducer, logger)

	// HTTP router.
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins
	corsCfg.Environment = cfg.Environment

	sessionCfg := middleware.DefaultSessionConfig()
	sessionCfg.CookieName = cfg.SessionCookieName
	sessionCfg.Secure = cfg.SessionCookieSecure
	if ttl := cfg.CartTTLDuration(); ttl > 0 {
		sessionCfg.MaxAge = ttl
	}

	router := handler.NewRouter(cartService, catalogService, checkoutService, healthHandler, logger, handler.RouterOptions{
		PprofCIDRs:     cfg.PprofAllowedCIDRs,
		CORS:           corsCfg,
		Session:        sessionCfg,
		CatalogMaxAge:  cfg.CatalogMaxAgeSeconds,
		RequestTimeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      time.Duration(cfg.RequestTimeoutSeconds+5) * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		rdb:            rdb,
		publisher:      publisher,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

func breakerConfig(cfg *config.Config, name string) httpclient.CircuitBreakerConfig {
	return httpclient.CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  cfg.CBMaxRequests,
		Interval:     time.Duration(cfg.CBInterval) * time.Second,
		Timeout:      time.Duration(cfg.CBTimeout) * time.Second,
		FailureRatio: cfg.CBFailureRatio,
		MinRequests:  cfg.CBMinRequests,
	}
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order: the HTTP server drains
// in-flight requests, then spans are flushed, then the Kafka writer and the
// Redis client are closed.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	if err := a.tracerShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	if err := a.publisher.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
	}

	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}

	a.logger.Info("application shutdown complete")
	return nil
}
