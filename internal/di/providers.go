package di

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"StockTracker/internal/domain/repository"
	"StockTracker/internal/handler/api"
	"StockTracker/internal/handler/web"
	internalrepo "StockTracker/internal/repository"
	"StockTracker/internal/service/ratelimit"
	"StockTracker/internal/services/ingest"
	"StockTracker/internal/usecase"
	"StockTracker/pkg/cache"
	pkgch "StockTracker/pkg/clickhouse"
	"StockTracker/pkg/config"
	xhttp "StockTracker/pkg/http"
	"StockTracker/pkg/http/middleware"
	pkgkafka "StockTracker/pkg/kafka"
	applogger "StockTracker/pkg/logger"
	"StockTracker/pkg/metrics"
	pkgpg "StockTracker/pkg/postgres"
	"StockTracker/pkg/server"
)

// Backend bundles the stores of the configured storage backend.
type Backend struct {
	Prices  repository.PriceStore
	Reports repository.ReportStore
}

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideRegisterer returns the Prometheus registerer metrics are created on.
func ProvideRegisterer() prometheus.Registerer {
	return prometheus.DefaultRegisterer
}

// ProvideGatherer returns what /metrics serves.
func ProvideGatherer() prometheus.Gatherer {
	return prometheus.DefaultGatherer
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(cfg *config.Config, reg prometheus.Registerer) repository.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Nop{}
	}
	return metrics.New(reg)
}

// ProvideHTTPMetrics creates the request metrics middleware, nil when metrics are off.
func ProvideHTTPMetrics(cfg *config.Config, reg prometheus.Registerer) *middleware.HTTPMetrics {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return middleware.NewHTTPMetrics(reg)
}

// ProvideCache creates the in-process cache, or a memory+Redis layered cache
// when Redis is enabled.
func ProvideCache(ctx context.Context, cfg *config.Config, l *applogger.Logger) (cache.Service, func(), error) {
	if !cfg.Cache.Redis.Enabled {
		c := cache.NewMemoryCache(
			cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize),
			cache.WithMemoryCleanup(cfg.Cache.MemoryCleanup),
		)
		return c, func() { _ = c.Close() }, nil
	}

	rc, err := cache.NewRedisCache(ctx,
		cache.WithRedisHost(cfg.Cache.Redis.Host),
		cache.WithRedisPort(cfg.Cache.Redis.Port),
		cache.WithRedisPassword(cfg.Cache.Redis.Password),
		cache.WithRedisDB(cfg.Cache.Redis.DB),
		cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
		cache.WithRedisPool(cfg.Cache.Redis.PoolSize, cfg.Cache.Redis.MinIdleConns, cfg.Cache.Redis.PoolTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	l.Info("redis cache connected", applogger.String("addr", cfg.RedisAddr()))

	c := cache.NewLayeredCache(rc,
		cache.WithLayeredMemorySize(cfg.Cache.MemoryMaxSize),
		cache.WithLayeredMemoryTTL(cfg.Cache.MemoryTTL),
	)
	return c, func() {
		if err := c.Close(); err != nil {
			l.Warn("cache close error", applogger.Error(err))
		}
	}, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
// The error log collector ships through the same producer.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}

	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.WriteTimeout),
		pkgkafka.WithBatchSize(cfg.Kafka.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.BatchTimeout),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithAutoCreateTopics(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}

	if cfg.Logging.Collector.Enabled {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Logging.Collector.TimeInterval,
			CountThreshold: cfg.Logging.Collector.CountThreshold,
			Topic:          cfg.Logging.Collector.Topic,
			Publisher:      producer,
		})
	}
	l.Info("kafka producer ready", applogger.Strings("brokers", cfg.Kafka.Brokers))

	return producer, func() {
		l.RemoveCollector()
		if err := producer.Close(); err != nil {
			l.Warn("kafka producer close error", applogger.Error(err))
		}
	}, nil
}

// ProvideEventPublisher publishes ingestion events behind a circuit breaker,
// or drops them when Kafka is disabled.
func ProvideEventPublisher(cfg *config.Config, producer *pkgkafka.Producer, l *applogger.Logger) repository.EventPublisher {
	if producer == nil {
		return internalrepo.NoopEventPublisher{}
	}
	return internalrepo.NewBreakerEventPublisher(
		internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.Topic),
		cfg.Kafka.Breaker.Failures,
		cfg.Kafka.Breaker.OpenFor,
		l,
	)
}

// ProvideBackend opens the configured storage backend and, when enabled,
// applies its schema.
func ProvideBackend(ctx context.Context, cfg *config.Config, c cache.Service, l *applogger.Logger) (*Backend, func(), error) {
	switch cfg.Backend.Type {
	case config.BackendPostgres:
		client, err := newPostgresClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Backend.AutoMigrate {
			applied, err := client.Migrate(ctx)
			if err != nil {
				_ = client.Close()
				return nil, nil, fmt.Errorf("postgres migrate: %w", err)
			}
			l.Info("postgres schema ready", applogger.Strings("migrations", applied))
		}

		prices := internalrepo.NewPostgresPriceStore(client.DB(), cfg.Postgres.QueryTimeout)
		prices.SetLogger(l)
		return &Backend{
			Prices:  prices,
			Reports: internalrepo.NewPostgresReportStore(client.DB(), cfg.Postgres.QueryTimeout),
		}, closer(l, "postgres", client.Close), nil

	case config.BackendClickHouse:
		client, err := newClickHouseClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Backend.AutoMigrate {
			if err := client.InitSchema(ctx); err != nil {
				_ = client.Close()
				return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
			}
			l.Info("clickhouse schema ready", applogger.String("database", cfg.ClickHouse.Database))
		}

		prices := internalrepo.NewClickHousePriceStore(client.DB(), c, cfg.Cache.LockTTL)
		prices.SetLogger(l)
		return &Backend{
			Prices:  prices,
			Reports: internalrepo.NewClickHouseReportStore(client.DB()),
		}, closer(l, "clickhouse", client.Close), nil

	case config.BackendMemory:
		l.Warn("using in-memory backend, data is lost on restart")
		return &Backend{
			Prices:  internalrepo.NewMemoryPriceStore(),
			Reports: internalrepo.NewMemoryReportStore(),
		}, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend.Type)
}

func closer(l *applogger.Logger, name string, fn func() error) func() {
	return func() {
		if err := fn(); err != nil {
			l.Warn(name+" close error", applogger.Error(err))
		}
	}
}

func newPostgresClient(ctx context.Context, cfg *config.Config) (*pkgpg.Client, error) {
	client, err := pkgpg.NewClient(ctx,
		pkgpg.WithDSN(cfg.Postgres.DSN),
		pkgpg.WithMaxConnections(cfg.Postgres.MaxOpenConns, cfg.Postgres.MaxIdleConns),
		pkgpg.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres client: %w", err)
	}
	return client, nil
}

func newClickHouseClient(ctx context.Context, cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// Migrate applies the schema of the configured backend and returns what was applied.
func Migrate(ctx context.Context, cfg *config.Config) ([]string, error) {
	switch cfg.Backend.Type {
	case config.BackendPostgres:
		client, err := newPostgresClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		defer client.Close()
		return client.Migrate(ctx)

	case config.BackendClickHouse:
		client, err := newClickHouseClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		defer client.Close()
		if err := client.InitSchema(ctx); err != nil {
			return nil, err
		}
		return []string{fmt.Sprintf("clickhouse schema (%d statements)", len(pkgch.Schema()))}, nil
	}
	return nil, nil
}

func ProvidePriceStore(b *Backend) repository.PriceStore { return b.Prices }

func ProvideReportStore(b *Backend) repository.ReportStore { return b.Reports }

// ProvideSignalCache versions cached signal series by a per-ticker generation.
func ProvideSignalCache(c cache.Service, cfg *config.Config, l *applogger.Logger) repository.SignalCache {
	return internalrepo.NewVersionedSignalCache(c, cfg.Cache.SignalsTTL, l)
}

func ProvideReader(cfg *config.Config) *ingest.Reader {
	return ingest.NewReader(cfg.Ingest.MaxRows)
}

// ProvideUploadLimiter returns nil when rate limiting is disabled.
func ProvideUploadLimiter(cfg *config.Config) middleware.Limiter {
	if cfg.Ingest.RatePerMinute == 0 {
		return nil
	}
	return ratelimit.New(cfg.Ingest.RatePerMinute, cfg.Ingest.RateBurst)
}

func ProvideWebHandler(
	cfg *config.Config,
	l *applogger.Logger,
	ingestion *usecase.IngestionUseCase,
	signals *usecase.SignalsUseCase,
	dashboard *usecase.DashboardUseCase,
	reports *usecase.ReportsUseCase,
	limiter middleware.Limiter,
) *web.Handler {
	return web.NewHandler(l, ingestion, signals, dashboard, reports, limiter, cfg.Ingest.MaxUploadBytes)
}

// ProvideHTTPServer builds the Echo server with pages, JSON API, health and metrics.
func ProvideHTTPServer(
	cfg *config.Config,
	l *applogger.Logger,
	webHandler *web.Handler,
	apiHandler *api.StocksHandler,
	prices repository.PriceStore,
	httpMetrics *middleware.HTTPMetrics,
	gatherer prometheus.Gatherer,
) (*xhttp.Server, error) {
	renderer, err := web.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("templates: %w", err)
	}

	opts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithRenderer(renderer, web.ErrorPage),
		xhttp.WithHealthCheck(prices.Health),
	}
	if httpMetrics != nil {
		opts = append(opts, xhttp.WithMetrics(httpMetrics, gatherer, cfg.Metrics.Path, cfg.Server.SlowRequest))
	}

	return xhttp.NewServer(l, []xhttp.Handler{webHandler, apiHandler}, opts...), nil
}

// ProvideApp creates the application server.
func ProvideApp(cfg *config.Config, l *applogger.Logger, httpServer *xhttp.Server) *server.App {
	return server.New(cfg, l, httpServer)
}
