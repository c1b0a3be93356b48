package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"task-tracker/backend/internal/cache"
	"task-tracker/backend/internal/config"
	"task-tracker/backend/internal/database"
	"task-tracker/backend/internal/handlers"
	"task-tracker/backend/internal/logging"
	"task-tracker/backend/internal/monitoring"
	"task-tracker/backend/internal/repositories"
	"task-tracker/backend/internal/services"
	"task-tracker/backend/internal/worker"
)

// application owns every long-lived component of the server process.
type application struct {
	cfg    *config.Config
	logger *slog.Logger
	pool   *database.DatabasePool
	cache  *cache.RedisCache
	worker *worker.Worker
	engine *services.Engine
	router *gin.Engine
	server *http.Server
}

func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	poolConfig := database.DefaultPoolConfig()
	poolConfig.Driver = cfg.Database.Driver
	poolConfig.DSN = cfg.GetDatabaseDSN()
	poolConfig.MaxOpenConns = cfg.Database.MaxOpenConns
	poolConfig.MaxIdleConns = cfg.Database.MaxIdleConns
	poolConfig.ConnMaxLifetime = cfg.Database.ConnMaxLifetime
	poolConfig.ConnMaxIdleTime = cfg.Database.ConnMaxIdleTime
	poolConfig.LogLevel = logging.GormLevel(cfg.Database.LogLevel)

	pool, err := database.NewDatabasePool(poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := pool.Migrate(); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	app := &application{cfg: cfg, logger: logger, pool: pool}

	monitoring.RegisterHealthCheck("database", func(ctx context.Context) error {
		return pool.Health()
	})
	monitoring.RegisterStatsProvider("database", func() interface{} {
		return pool.Stats()
	})

	var store services.Store = repositories.NewGormStore(pool.DB)
	opts := []services.EngineOption{
		services.WithLogger(logger),
		services.WithCompensationHook(monitoring.RecordCompensationFailure),
	}

	var repairs *worker.RepairQueue
	if cfg.Redis.Enabled {
		app.cache = cache.NewRedisCache(&cache.CacheConfig{
			Addr:         cfg.GetRedisAddr(),
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			KeyPrefix:    cfg.Redis.KeyPrefix,
			Breaker:      cache.DefaultCircuitBreakerConfig(),
		})
		if err := app.cache.Health(ctx); err != nil {
			logger.Warn("redis is not reachable, reads fall back to the database", "addr", cfg.GetRedisAddr(), "error", err)
		}

		monitoring.RegisterHealthCheck("redis", app.cache.Health)
		monitoring.RegisterStatsProvider("cache", func() interface{} {
			return app.cache.Stats()
		})

		store = services.NewCachedStore(store, app.cache, cfg.Redis.CacheTTL, logger)
		repairs = worker.NewRepairQueue(app.cache.Client(), cfg.Worker.RepairDelay)
		opts = append(opts, services.WithRepairScheduler(repairs))

		app.worker = worker.NewWorker(worker.WorkerConfig{
			RedisClient:  app.cache.Client(),
			PollInterval: cfg.Worker.PollInterval,
			Logger:       logger,
		})
	}

	app.engine = services.NewEngine(store, opts...)

	if app.worker != nil {
		app.worker.RegisterHandler(worker.JobTypeReconcile, repairs.ReconcileHandler(app.reconcile))
	}

	app.router = handlers.SetupRouter(handlers.RouterConfig{
		Tasks:         services.NewTaskService(store, app.engine, cfg.Query.TaskDefaultLimit, cfg.Query.MaxLimit),
		Users:         services.NewUserService(store, app.engine, cfg.Query.UserDefaultLimit, cfg.Query.MaxLimit),
		Reconciler:    app.engine,
		Logger:        logger,
		DatabaseCheck: "database",
	})

	app.server = &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      app.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return app, nil
}

func (a *application) reconcile(ctx context.Context) error {
	_, err := a.engine.Reconcile(ctx)
	return err
}

// start launches the HTTP server, the job workers and the periodic
// reconciler. It returns immediately.
func (a *application) start(ctx context.Context) {
	go func() {
		a.logger.Info("HTTP server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server error", "error", err)
		}
	}()

	if a.worker != nil {
		a.worker.Start(a.cfg.Worker.Concurrency)
	}

	go worker.RunPeriodically(ctx, a.cfg.Worker.ReconcileInterval, a.logger, "reconcile", a.reconcile)
}

// shutdown stops accepting requests first, then drains the workers and
// finally closes Redis and the database.
func (a *application) shutdown(ctx context.Context) error {
	var errs []error

	if a.server != nil {
		a.logger.Info("shutting down HTTP server")
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http server: %w", err))
		}
	}
	if a.worker != nil {
		if err := a.worker.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("worker: %w", err))
		}
	}
	if err := a.close(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// close releases the Redis and database connections.
func (a *application) close() error {
	var errs []error
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if err := a.pool.Close(); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}
	return errors.Join(errs...)
}
