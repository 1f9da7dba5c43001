package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/KavyaGunapati/TypeFromProject/internal/auth"
	"github.com/KavyaGunapati/TypeFromProject/internal/config"
	"github.com/KavyaGunapati/TypeFromProject/internal/credential"
	"github.com/KavyaGunapati/TypeFromProject/internal/event"
	handler "github.com/KavyaGunapati/TypeFromProject/internal/handler/http"
	"github.com/KavyaGunapati/TypeFromProject/internal/repository"
	"github.com/KavyaGunapati/TypeFromProject/internal/repository/memory"
	"github.com/KavyaGunapati/TypeFromProject/internal/repository/postgres"
	"github.com/KavyaGunapati/TypeFromProject/internal/service"
	"github.com/KavyaGunapati/TypeFromProject/migrations"
	"github.com/KavyaGunapati/TypeFromProject/pkg/database"
	"github.com/KavyaGunapati/TypeFromProject/pkg/health"
	pkgkafka "github.com/KavyaGunapati/TypeFromProject/pkg/kafka"
	"github.com/KavyaGunapati/TypeFromProject/pkg/middleware"
	"github.com/KavyaGunapati/TypeFromProject/pkg/tracing"
)

const serviceName = "identity"

// App wires together all dependencies and runs the identity service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	events         *event.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// repositories is the storage backend selected by STORAGE_DRIVER.
type repositories struct {
	users         repository.UserRepository
	roles         repository.RoleRepository
	refreshTokens repository.RefreshTokenRepository
	organizations repository.OrganizationRepository
	memberships   repository.MembershipRepository
}

func postgresRepositories(db database.DBTX) repositories {
	return repositories{
		users:         postgres.NewUserRepository(db),
		roles:         postgres.NewRoleRepository(db),
		refreshTokens: postgres.NewRefreshTokenRepository(db),
		organizations: postgres.NewOrganizationRepository(db),
		memberships:   postgres.NewMembershipRepository(db),
	}
}

func memoryRepositories() repositories {
	return repositories{
		users:         memory.NewUserRepository(),
		roles:         memory.NewRoleRepository(),
		refreshTokens: memory.NewRefreshTokenRepository(),
		organizations: memory.NewOrganizationRepository(),
		memberships:   memory.NewMembershipRepository(),
	}
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// The issuer is built first so a bad signing configuration fails before
	// any connection is opened.
	signing, err := cfg.SigningConfig()
	if err != nil {
		return nil, fmt.Errorf("signing config: %w", err)
	}
	issuer, err := auth.NewTokenIssuer(signing)
	if err != nil {
		return nil, fmt.Errorf("token issuer: %w", err)
	}

	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEndpoint != "",
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	a := &App{
		cfg:            cfg,
		logger:         logger,
		tracerShutdown: tracerShutdown,
	}
	healthHandler := health.NewHandler()

	var repos repositories
	switch cfg.StorageDriver {
	case config.StorageMemory:
		logger.Warn("using in-memory storage; data is lost on restart")
		repos = memoryRepositories()
	default:
		pool, err := a.openPostgres(ctx)
		if err != nil {
			return nil, err
		}
		a.pool = pool
		healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
			return pool.Ping(ctx)
		})
		repos = postgresRepositories(pool)
	}

	// Role cache is optional; the service runs without it.
	var roleCache *credential.RoleCache
	if cfg.RedisHost != "" {
		client, err := database.NewRedisClient(ctx, cfg.Redis())
		if err != nil {
			logger.Warn("redis unavailable, role cache disabled", slog.String("error", err.Error()))
		} else {
			a.redis = client
			roleCache = credential.NewRoleCache(client, cfg.RoleCacheTTL)
			healthHandler.RegisterNonCritical("redis", roleCache.Ping)
			logger.Info("role cache enabled", slog.String("addr", cfg.Redis().Addr()))
		}
	}

	// Events are best-effort. A nil publisher disables them entirely.
	var publisher service.EventPublisher
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		breaker := pkgkafka.NewBreakerPublisher(a.producer, pkgkafka.DefaultBreakerConfig("identity-events"), logger)
		a.events = event.NewProducer(breaker, logger)
		publisher = a.events
		producer := a.producer
		healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
			return producer.Ping(ctx)
		})
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Build the dependency graph.
	creds := credential.NewStore(repos.users, repos.roles, roleCache, logger)
	svcs := handler.Services{
		Sessions:      service.NewSessionService(creds, repos.refreshTokens, issuer, publisher, logger),
		Organizations: service.NewOrganizationService(repos.organizations, logger),
		Memberships:   service.NewMembershipService(repos.memberships, repos.organizations, creds, logger),
	}

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = cfg.CORSAllowedOrigins
	corsConfig.Environment = cfg.Environment

	router := handler.NewRouter(svcs, issuer, healthHandler, logger, corsConfig, cfg.AuthRateLimit())

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// openPostgres connects with startup retry, registers pool metrics and runs
// the embedded migrations.
func (a *App) openPostgres(ctx context.Context) (*pgxpool.Pool, error) {
	pgCfg := a.cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.logger.Info("connected to PostgreSQL",
		slog.String("host", pgCfg.Host),
		slog.Int("port", pgCfg.Port),
		slog.String("database", pgCfg.DBName),
	)

	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
		a.logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}

	if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	a.logger.Info("database migrations completed")

	if a.cfg.SlowQuery > 0 {
		database.SetSlowQueryLogging(a.cfg.SlowQuery, a.logger)
	}

	return pool, nil
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
		return errors.Join(err, a.Shutdown())
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Pending event publishes
// 3. Tracer (flush pending spans)
// 4. Kafka producer, Redis client and PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests.
	httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Let publishes started by drained requests finish.
	if a.events != nil {
		a.events.Wait()
	}

	// 3. Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 4. Close external clients.
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
