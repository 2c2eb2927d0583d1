// Package container provides dependency injection using Uber FX
package container

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ecofridge/server/internal/application/generation"
	"github.com/ecofridge/server/internal/application/pantry"
	"github.com/ecofridge/server/internal/infrastructure/ai"
	"github.com/ecofridge/server/internal/infrastructure/ai/gemini"
	"github.com/ecofridge/server/internal/infrastructure/ai/ollama"
	"github.com/ecofridge/server/internal/infrastructure/ai/parser"
	"github.com/ecofridge/server/internal/infrastructure/ai/scripted"
	"github.com/ecofridge/server/internal/infrastructure/audit"
	"github.com/ecofridge/server/internal/infrastructure/config"
	"github.com/ecofridge/server/internal/infrastructure/events"
	"github.com/ecofridge/server/internal/infrastructure/http/apiserver"
	"github.com/ecofridge/server/internal/infrastructure/monitoring"
	gormgw "github.com/ecofridge/server/internal/infrastructure/persistence/gorm"
	"github.com/ecofridge/server/internal/infrastructure/persistence/memory"
	"github.com/ecofridge/server/internal/infrastructure/persistence/postgres"
	redisgw "github.com/ecofridge/server/internal/infrastructure/persistence/redis"
	"github.com/ecofridge/server/internal/infrastructure/persistence/sqlite"
	"github.com/ecofridge/server/internal/ports/inbound"
	"github.com/ecofridge/server/internal/ports/outbound"
	apperrors "github.com/ecofridge/server/pkg/errors"
	"github.com/ecofridge/server/pkg/healthcheck"
	"github.com/ecofridge/server/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// ConfigPath is the config file handed to config.Load. Empty searches the
// default locations.
type ConfigPath string

// Module provides all dependency injection modules
var Module = fx.Options(
	ConfigModule,
	LoggerModule,
	StorageModule,
	MonitoringModule,
	AIModule,
	ServiceModule,
	HTTPModule,
	LifecycleModule,
)

// ConfigModule provides configuration
var ConfigModule = fx.Provide(
	func(path ConfigPath) (*config.Config, error) {
		return config.Load(string(path))
	},
)

// LoggerModule provides logging, and routes fx's own events through it
var LoggerModule = fx.Options(
	fx.Provide(func(cfg *config.Config) (*zap.Logger, error) {
		return logger.New(logger.Config{
			Level:       cfg.App.LogLevel,
			Format:      cfg.App.LogFormat,
			Development: cfg.App.Debug && !cfg.IsProduction(),
		})
	}),
	fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
		l := &fxevent.ZapLogger{Logger: log.Named("fx")}
		l.UseLogLevel(zap.DebugLevel)
		return l
	}),
)

// StorageModule provides the gateway selected by database.driver
var StorageModule = fx.Provide(
	NewStorage,
	func(s *Storage) outbound.Gateway { return s.Gateway },
)

// MonitoringModule provides metrics, tracing and health checks
var MonitoringModule = fx.Provide(
	monitoring.NewMetricsCollector,
	func(cfg *config.Config) (*resource.Resource, error) {
		return monitoring.NewResource(cfg.App)
	},
	func(cfg *config.Config, res *resource.Resource, log *zap.Logger) (*monitoring.TracingProvider, error) {
		return monitoring.NewTracingProvider(cfg.Monitoring, res, log)
	},
	func(m *monitoring.MetricsCollector, res *resource.Resource) (*monitoring.MeterProvider, error) {
		return monitoring.NewMeterProvider(m.Registry(), res)
	},
	NewHealthCheck,
)

// AIModule provides the model provider, audit sink and generation client
var AIModule = fx.Provide(
	NewModelProvider,
	func(cfg *config.Config, log *zap.Logger) (outbound.AuditSink, error) {
		return audit.New(cfg.Audit, log)
	},
	NewGenerationClient,
)

// ServiceModule provides the event fan-out and the pipeline service
var ServiceModule = fx.Provide(
	func(cfg *config.Config, log *zap.Logger) *events.Hub {
		return events.NewHub(cfg.Server.AllowedOrigins, log)
	},
	NewEventPublisher,
	fx.Annotate(
		NewPantryService,
		fx.As(new(inbound.PantryService)),
	),
)

// HTTPModule provides the API server
var HTTPModule = fx.Provide(
	func(
		cfg *config.Config,
		log *zap.Logger,
		svc inbound.PantryService,
		health *healthcheck.HealthCheck,
		metrics *monitoring.MetricsCollector,
		hub *events.Hub,
	) (*apiserver.APIServer, error) {
		return apiserver.NewAPIServer(cfg, log, apiserver.Deps{
			Service: svc,
			Health:  health,
			Metrics: metrics,
			Hub:     hub,
		})
	},
)

// LifecycleModule provides lifecycle hooks
var LifecycleModule = fx.Invoke(
	RegisterLifecycleHooks,
)

// Storage is the selected gateway together with what the process needs to
// probe and release it
type Storage struct {
	Gateway outbound.Gateway
	Ping    func(ctx context.Context) error
	Close   func() error
	// Redis is set only for the redis driver; events are then also
	// appended to a stream.
	Redis redis.UniversalClient
}

// NewStorage opens the gateway for cfg.Database.Driver
func NewStorage(cfg *config.Config, log *zap.Logger) (*Storage, error) {
	noop := func() error { return nil }

	switch cfg.Database.Driver {
	case config.DriverMemory, "":
		log.Info("Using in-memory storage")
		return &Storage{
			Gateway: memory.NewGateway(),
			Ping:    func(context.Context) error { return nil },
			Close:   noop,
		}, nil

	case config.DriverSQLite:
		db, err := sqlite.SetupDatabase(cfg.Database.Path,
			gormgw.NewLogger(log, cfg.Database.LogLevel, cfg.Database.SlowQueryThreshold))
		if err != nil {
			return nil, apperrors.NewDatabaseError("open sqlite", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, apperrors.NewDatabaseError("open sqlite", err)
		}
		log.Info("Connected to SQLite database", zap.String("path", cfg.Database.Path))
		return sqlStorage(gormgw.NewGateway(db), sqlDB), nil

	case config.DriverPostgres:
		cm, err := postgres.NewConnectionManager(cfg.Database, log)
		if err != nil {
			return nil, apperrors.NewDatabaseError("open postgres", err)
		}
		return &Storage{
			Gateway: gormgw.NewGateway(cm.GetDB()),
			Ping:    cm.HealthCheck,
			Close:   cm.Close,
		}, nil

	case config.DriverRedis:
		client, err := redisgw.NewClient(cfg.Redis, log)
		if err != nil {
			return nil, apperrors.NewDatabaseError("open redis", err)
		}
		return &Storage{
			Gateway: redisgw.NewGateway(client, cfg.Redis.KeyPrefix, log),
			Ping:    func(ctx context.Context) error { return client.Ping(ctx).Err() },
			Close:   client.Close,
			Redis:   client,
		}, nil

	default:
		return nil, apperrors.NewConfigurationError("database.driver",
			fmt.Sprintf("unknown driver %q", cfg.Database.Driver))
	}
}

func sqlStorage(gw outbound.Gateway, db *sql.DB) *Storage {
	return &Storage{Gateway: gw, Ping: db.PingContext, Close: db.Close}
}

// NewModelProvider builds the configured provider behind a circuit breaker
func NewModelProvider(cfg *config.Config, log *zap.Logger) (*ai.GuardedProvider, error) {
	var provider outbound.ModelProvider
	switch cfg.AI.Provider {
	case config.ProviderGemini:
		client, err := gemini.NewClient(context.Background(), gemini.Config{
			APIKey:            cfg.AI.APIKey,
			Model:             cfg.AI.Model,
			Timeout:           cfg.AI.Timeout,
			RequestsPerMinute: cfg.AI.RequestsPerMinute,
			Burst:             cfg.AI.Burst,
		}, log)
		if err != nil {
			return nil, err
		}
		provider = client
	case config.ProviderOllama:
		client, err := ollama.NewClient(ollama.Config{
			BaseURL: cfg.AI.BaseURL,
			Model:   cfg.AI.Model,
			Timeout: cfg.AI.Timeout,
		}, log)
		if err != nil {
			return nil, err
		}
		provider = client
	case config.ProviderMock:
		log.Warn("Using offline model provider; responses are canned")
		provider = scripted.NewOffline()
	default:
		return nil, apperrors.NewConfigurationError("ai.provider",
			fmt.Sprintf("unknown provider %q", cfg.AI.Provider))
	}

	return ai.NewGuardedProvider(provider, healthcheck.CircuitBreakerConfig{
		FailureThreshold: cfg.AI.BreakerFailures,
		Timeout:          cfg.AI.BreakerCooldown,
	}, log), nil
}

// NewGenerationClient wires the provider, audit sink, parser and metrics
func NewGenerationClient(
	cfg *config.Config,
	provider *ai.GuardedProvider,
	sink outbound.AuditSink,
	metrics *monitoring.MetricsCollector,
	log *zap.Logger,
) (*generation.Client, error) {
	sampling := generation.DefaultConfig()
	if cfg.AI.Temperature > 0 {
		sampling.Temperature = cfg.AI.Temperature
	}
	if cfg.AI.TopP > 0 {
		sampling.TopP = cfg.AI.TopP
	}
	if cfg.AI.TopK > 0 {
		sampling.TopK = cfg.AI.TopK
	}
	if cfg.AI.MaxOutputTokens > 0 {
		sampling.MaxOutputTokens = cfg.AI.MaxOutputTokens
	}

	return generation.NewClient(provider, sink, sampling, log,
		generation.WithParser(parser.New(parser.Strategy(cfg.AI.ParserStrategy))),
		generation.WithMetrics(metrics),
	)
}

// NewEventPublisher fans events out to the log, websocket subscribers and,
// with the redis driver, a redis stream
func NewEventPublisher(cfg *config.Config, storage *Storage, hub *events.Hub, log *zap.Logger) outbound.EventPublisher {
	fanout := events.Fanout{events.NewLogPublisher(log), hub}
	if storage.Redis != nil {
		fanout = append(fanout, events.NewStreamPublisher(storage.Redis, cfg.Redis.KeyPrefix, log))
	}
	return fanout
}

// NewPantryService creates the pipeline service
func NewPantryService(
	cfg *config.Config,
	gateway outbound.Gateway,
	gen *generation.Client,
	publisher outbound.EventPublisher,
	metrics *monitoring.MetricsCollector,
	log *zap.Logger,
) *pantry.Service {
	return pantry.NewService(gateway, gen, publisher, metrics, pantry.Options{
		ProposalCacheSize: cfg.Pipeline.ProposalCacheSize,
		ProposalTTL:       cfg.Pipeline.ProposalTTL,
		DefaultTenant:     cfg.Pipeline.DefaultTenant,
	}, log)
}

// NewHealthCheck registers the storage and model provider checks
func NewHealthCheck(cfg *config.Config, storage *Storage, provider *ai.GuardedProvider, log *zap.Logger) *healthcheck.HealthCheck {
	h := healthcheck.New(cfg.App.Version, log)
	h.Register("storage", healthcheck.PingChecker(storage.Ping))
	h.Register("model_provider", provider.Checker())
	return h
}

// RegisterLifecycleHooks registers application lifecycle hooks
func RegisterLifecycleHooks(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	path ConfigPath,
	cfg *config.Config,
	log *zap.Logger,
	storage *Storage,
	hub *events.Hub,
	tracing *monitoring.TracingProvider,
	meter *monitoring.MeterProvider,
	server *apiserver.APIServer,
) {
	hubCtx, stopHub := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting ecofridge",
				zap.String("version", cfg.App.Version),
				zap.String("environment", cfg.App.Environment),
				zap.String("storage", cfg.Database.Driver),
				zap.String("model_provider", cfg.AI.Provider),
			)

			go hub.Run(hubCtx)

			if err := config.Watch(string(path), log, func(next *config.Config) {
				logger.SetLevel(next.App.LogLevel)
				log.Info("Log level reloaded", zap.String("level", next.App.LogLevel))
			}); err != nil {
				log.Warn("Config watch disabled", zap.Error(err))
			}

			go func() {
				if err := server.Start(); err != nil {
					log.Error("HTTP server failed", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down ecofridge")

			if cfg.Server.ShutdownTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
				defer cancel()
			}

			if err := server.Shutdown(ctx); err != nil {
				log.Error("Failed to shutdown HTTP server", zap.Error(err))
			}
			stopHub()

			if err := tracing.Shutdown(ctx); err != nil {
				log.Error("Failed to flush traces", zap.Error(err))
			}
			if err := meter.Shutdown(ctx); err != nil {
				log.Error("Failed to stop meter provider", zap.Error(err))
			}

			if err := storage.Close(); err != nil {
				log.Error("Failed to close storage", zap.Error(err))
			}

			_ = log.Sync()
			return nil
		},
	})
}
