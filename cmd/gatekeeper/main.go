package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/rivoli-ai/gatekeeper/internal/app"
	"github.com/rivoli-ai/gatekeeper/internal/authz"
	"github.com/rivoli-ai/gatekeeper/internal/catalog"
	"github.com/rivoli-ai/gatekeeper/internal/clients"
	"github.com/rivoli-ai/gatekeeper/internal/directory"
	"github.com/rivoli-ai/gatekeeper/internal/observability"
	"github.com/rivoli-ai/gatekeeper/internal/platform/cache"
	"github.com/rivoli-ai/gatekeeper/internal/platform/db"
	"github.com/rivoli-ai/gatekeeper/internal/resources"
	"github.com/rivoli-ai/gatekeeper/internal/roles"
	"github.com/rivoli-ai/gatekeeper/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := observability.NewMetrics()

	var snapshotCache authz.Cache = authz.NopCache{}
	switch cfg.CacheBackend {
	case "redis":
		redisClient, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Error("connect redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		snapshotCache = authz.NewRedisCache(redisClient, cfg.CacheTTL, logger)
	case "memory":
		snapshotCache = authz.NewMemoryCache(cfg.CacheSize, cfg.CacheTTL)
	}

	authzRepo := authz.NewRepository(pool)
	resolver := authz.NewResolver(authzRepo, cfg.DefaultApplication, logger, metrics)
	checker := authz.NewCachedResolver(resolver, snapshotCache, metrics)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("connect job queue", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	authzService := authz.NewService(authzRepo, snapshotCache, cfg.DefaultApplication, logger, jobClient)
	authzHandler := authz.NewHandler(logger, checker, authzService)

	catalogHandler := catalog.NewHandler(logger, catalog.NewService(catalog.NewRepository(pool)))
	rolesHandler := roles.NewHandler(logger, roles.NewService(roles.NewRepository(pool)))
	directoryHandler := directory.NewHandler(logger, directory.NewService(directory.NewRepository(pool)))
	resourceHandler := resources.NewHandler(logger, resources.NewService(resources.NewRepository(pool)))

	clientsService := clients.NewService(clients.NewRepository(pool))
	clientsHandler := clients.NewHandler(logger, clientsService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		AuthzHandler:     authzHandler,
		CatalogHandler:   catalogHandler,
		RolesHandler:     rolesHandler,
		DirectoryHandler: directoryHandler,
		ResourceHandler:  resourceHandler,
		ClientsHandler:   clientsHandler,
		JobHandler:       jobHandler,
		ClientAuth:       clients.Middleware{Service: clientsService, Logger: logger},
		Gate:             authz.Middleware{Checker: checker, Logger: logger},
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
