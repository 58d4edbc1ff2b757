package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cargodesk/cargodesk/pkg/auth"
	"github.com/cargodesk/cargodesk/pkg/config"
	"github.com/cargodesk/cargodesk/pkg/handovers"
	"github.com/cargodesk/cargodesk/pkg/health"
	"github.com/cargodesk/cargodesk/pkg/locking"
	"github.com/cargodesk/cargodesk/pkg/observability/logger"
	obsmetrics "github.com/cargodesk/cargodesk/pkg/observability/metrics"
	"github.com/cargodesk/cargodesk/pkg/observability/tracing"
	"github.com/cargodesk/cargodesk/pkg/orders"
	"github.com/cargodesk/cargodesk/pkg/scheduler"
	"github.com/cargodesk/cargodesk/pkg/server/router"
	"github.com/cargodesk/cargodesk/pkg/server/router/factory"
	"github.com/cargodesk/cargodesk/pkg/store/postgres"
	"github.com/cargodesk/cargodesk/pkg/users"
	"github.com/cargodesk/cargodesk/pkg/version"
)

const lockCleanupTask = "lock-cleanup"

// App wires configuration, storage, the lock manager, controllers, the
// sweep scheduler, and both HTTP servers into a runnable service.
type App struct {
	Config     *config.Config
	Logger     logger.Logger
	DB         *postgres.Adapter
	Locks      *locking.Manager
	Scheduler  *scheduler.Runtime
	Public     *PublicAPIServer
	Management *ManagementServer

	lockProvider scheduler.LockProvider
	tracer       *tracing.TracerProvider
}

// NewApp builds the full application from configuration.
func NewApp(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}

	db, err := postgres.NewAdapter(postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		QueryTimeout:    cfg.Database.QueryTimeout,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	lockManager := locking.NewManager(
		locking.NewPostgresStore(db),
		db,
		cfg.Lock.Timeout,
		log,
		obsmetrics.NewLockRecorder(),
	)

	lockProvider, err := buildSchedulerLockProvider(cfg, log)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create scheduler lock provider: %w", err)
	}

	runtime, err := scheduler.NewRuntime(lockProvider, log, scheduler.Config{
		DefaultLockTTL: cfg.Scheduler.LockTTL,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create scheduler runtime: %w", err)
	}
	if err := runtime.Register(scheduler.Task{
		Name:     lockCleanupTask,
		Interval: cfg.Lock.CleanupInterval,
		Run: func(taskCtx context.Context) error {
			swept, sweepErr := lockManager.CleanupExpired(taskCtx)
			if sweepErr != nil {
				return sweepErr
			}
			if swept > 0 {
				log.Info("expired locks swept", "count", swept)
			}
			return nil
		},
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("register %s task: %w", lockCleanupTask, err)
	}

	versionInfo := version.Current(cfg.Service.Name)
	if versionInfo.Version != version.DevelopmentVersion {
		if _, ok := versionInfo.SemVer(); !ok {
			log.Warn("build version is not a semantic version; release builds should be stamped with a vX.Y.Z tag",
				"version", versionInfo.Version,
			)
		}
	}

	tracer, err := tracing.NewTracerProvider(ctx, tracing.TracerConfig{
		ServiceName:    cfg.Service.Name,
		ServiceVersion: versionInfo.Version,
		Environment:    cfg.Service.Environment,
		Endpoint:       cfg.Observability.Tracing.Endpoint,
		SampleRate:     cfg.Observability.Tracing.SampleRate,
		Enabled:        cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize tracing provider: %w", err)
	}

	publicRouter, err := factory.NewRouter(cfg.RouterType)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create public router: %w", err)
	}
	public, err := NewPublicAPIServer(PublicAPIOptions{
		HTTP:          cfg.HTTP,
		CORS:          cfg.CORS,
		RateLimit:     cfg.RateLimit,
		Observability: cfg.Observability,
	}, publicRouter, log)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create public server: %w", err)
	}
	if err := registerAPIRoutes(publicRouter, cfg, db, lockManager, log); err != nil {
		db.Close()
		return nil, err
	}

	app := &App{
		Config:       cfg,
		Logger:       log,
		DB:           db,
		Locks:        lockManager,
		Scheduler:    runtime,
		Public:       public,
		lockProvider: lockProvider,
		tracer:       tracer,
	}

	if cfg.Management.Enabled {
		managementRouter, err := factory.NewRouter(cfg.RouterType)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("create management router: %w", err)
		}

		healthRegistry := health.NewRegistry()
		healthRegistry.Register(health.NewDatabaseChecker("postgres", db))
		healthRegistry.Register(health.NewLeaseProviderChecker("scheduler-lease", lockProvider))

		app.Management, err = NewManagementServer(
			cfg.Management,
			managementRouter,
			log,
			healthRegistry,
			obsmetrics.NewRegistry(),
			versionInfo,
		)
		if err != nil {
			db.Close()
			return nil, err
		}
	}

	return app, nil
}

// registerAPIRoutes mounts the resource controllers under /api/v1. When
// auth is enabled every route requires a valid token, and the user
// management routes additionally require the ADMIN role.
func registerAPIRoutes(
	r router.Router,
	cfg *config.Config,
	db *postgres.Adapter,
	lockManager *locking.Manager,
	log logger.Logger,
) error {
	api := r.Group("/api/v1")

	var adminOnly []router.MiddlewareFunc
	if cfg.Auth.Enabled {
		validator, err := auth.NewHS256Validator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.Audience, log)
		if err != nil {
			return fmt.Errorf("create JWT validator: %w", err)
		}
		api.Use(auth.Middleware(validator, log))
		adminOnly = append(adminOnly, auth.RequireRole(string(users.RoleAdmin)))
	}

	ordersCtrl := orders.NewController(orders.NewPostgresRepository(db), lockManager, db, log)
	ordersCtrl.RegisterRoutes(api.Group("/orders"))

	handoversCtrl := handovers.NewController(handovers.NewPostgresRepository(db), lockManager, log)
	handoversCtrl.RegisterRoutes(api.Group("/handovers"))

	usersCtrl := users.NewController(users.NewPostgresRepository(db), log)
	usersCtrl.RegisterRoutes(api.Group("/users", adminOnly...))

	return nil
}

func buildSchedulerLockProvider(cfg *config.Config, log logger.Logger) (scheduler.LockProvider, error) {
	switch cfg.Scheduler.LockProvider {
	case "", config.SchedulerLockProviderPostgres:
		return scheduler.NewPostgresLockProvider(scheduler.PostgresLockProviderConfig{
			URL:   cfg.Database.URL,
			Table: cfg.Scheduler.PostgresTable,
		}, log)
	case config.SchedulerLockProviderRedis:
		return scheduler.NewRedisLockProvider(scheduler.RedisLockProviderConfig{
			URL: cfg.Scheduler.RedisURL,
		}, log)
	default:
		return nil, fmt.Errorf("unsupported scheduler lock provider %q", cfg.Scheduler.LockProvider)
	}
}

// Run starts the scheduler and both HTTP servers, blocking until the
// context is cancelled or a server fails. Resources are released on return.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	if err := a.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.Scheduler.Stop(stopCtx); err != nil {
			a.Logger.Error("scheduler stop failed", "error", err)
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverCount := 1
	if a.Management != nil {
		serverCount = 2
	}

	errCh := make(chan error, serverCount)
	go func() { errCh <- a.Public.Start(runCtx) }()
	if a.Management != nil {
		go func() { errCh <- a.Management.Start(runCtx) }()
	}

	var firstErr error
	for idx := 0; idx < serverCount; idx++ {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
			cancel()
		}
	}
	return firstErr
}

// RunWithSignals runs the application until SIGINT or SIGTERM.
func (a *App) RunWithSignals() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.Run(ctx)
}

func (a *App) close() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.tracer != nil {
		if err := a.tracer.Shutdown(shutdownCtx); err != nil {
			a.Logger.Error("tracer shutdown failed", "error", err)
		}
	}
	if a.lockProvider != nil {
		if err := a.lockProvider.Close(); err != nil {
			a.Logger.Error("scheduler lock provider close failed", "error", err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error("database close failed", "error", err)
		}
	}
}
