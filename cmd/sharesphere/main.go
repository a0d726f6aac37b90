package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sharesphere/sharesphere/pkg/authz"
	"github.com/sharesphere/sharesphere/pkg/config"
	"github.com/sharesphere/sharesphere/pkg/content"
	"github.com/sharesphere/sharesphere/pkg/httputil"
	"github.com/sharesphere/sharesphere/pkg/moderation"
	"github.com/sharesphere/sharesphere/pkg/observability"
	"github.com/sharesphere/sharesphere/pkg/session"
	"github.com/sharesphere/sharesphere/pkg/spheres"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	db, err := openDatabase(cfg)
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := runMigrations(ctx, db); err != nil {
		logrus.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("migrations applied")

	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	var cache *authz.SnapshotCache
	var healthChecker *observability.HealthChecker
	if cfg.Redis.URL != "" {
		redisClient, err := authz.NewRedisClient(ctx, cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize)
		if err != nil {
			logrus.Fatalf("Failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		cache = authz.NewSnapshotCache(redisClient, cfg.Authz.SnapshotTTL, metrics)
		healthChecker = observability.NewHealthChecker(db, redisClient)
		logger.Info("snapshot cache enabled")
	} else {
		healthChecker = observability.NewHealthChecker(db, nil)
		logger.Warn("redis not configured, snapshots load from postgres on every read")
	}

	locks, err := authz.NewUserLockTable(cfg.Authz.UserLockCacheSize)
	if err != nil {
		logrus.Fatalf("Failed to create user lock table: %v", err)
	}

	authzService := authz.NewService(authz.NewStore(db), cache, locks, logger, metrics)
	sphereService := spheres.NewService(spheres.NewStore(db), authzService, logger)
	contentService := content.NewService(content.NewStore(db), sphereService, logger, metrics)
	moderationStore := moderation.NewStore(db)
	moderationService := moderation.NewService(moderationStore, authzService, sphereService, contentService, logger, metrics)

	sweeper, err := moderation.NewBanSweeper(moderationStore, authzService, cfg.Authz.BanSweepSchedule, logger)
	if err != nil {
		logrus.Fatalf("Failed to create ban sweeper: %v", err)
	}
	sweeper.Start()

	router := mux.NewRouter()
	router.Use(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(logger),
		httputil.RecoveryMiddleware(logger),
		httputil.MaxBytesMiddleware(1<<20),
	)
	if metrics != nil {
		router.Use(metrics.HTTPMiddleware)
	}
	router.Use(mux.MiddlewareFunc(authzService.CallerMiddleware))

	authz.NewHandlers(authzService).RegisterRoutes(router)
	spheres.NewHandlers(sphereService).RegisterRoutes(router)
	content.NewHandlers(contentService).RegisterRoutes(router)
	moderation.NewHandlers(moderationService).RegisterRoutes(router)

	if cfg.OIDCEnabled() {
		exchanger, err := session.NewOIDCExchanger(ctx, cfg.OIDC.IssuerURL, cfg.OIDC.ClientID, cfg.OIDC.ClientSecret)
		if err != nil {
			logrus.Fatalf("Failed to configure OIDC: %v", err)
		}
		sessionService := session.NewService(session.NewStore(db), exchanger, authzService, logger)
		session.NewHandlers(sessionService).RegisterRoutes(router)
		logger.Info("credential refresh enabled")
	}

	apiServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, healthChecker)
	if cfg.Observability.MetricsEnabled {
		healthMux.Handle("/metrics", observability.MetricsHandler(registry))
	}
	healthServer := &http.Server{
		Addr: fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.HealthPort),
		Handler: httputil.Chain(
			httputil.RecoveryMiddleware(logger),
		)(healthMux),
	}

	shutdown := observability.NewShutdown(logger, cfg.Server.ShutdownTimeout)
	shutdown.ManageServer(apiServer)
	shutdown.ManageServer(healthServer)
	shutdown.OnStop(sweeper.Stop)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("api server listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("health server failed: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		return shutdown.Wait(groupCtx)
	})
	if metrics != nil {
		group.Go(func() error {
			reportDBStats(groupCtx, db, metrics)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		logrus.Fatalf("Server exited with error: %v", err)
	}
	logger.Info("server stopped")
}

func reportDBStats(ctx context.Context, db *sql.DB, metrics *observability.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			metrics.DBConnectionsActive.Set(float64(stats.InUse))
			metrics.DBConnectionsIdle.Set(float64(stats.Idle))
		}
	}
}

func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	if err := authz.RunMigrationSet(ctx, db, "authz_migrations", authz.GetMigrations()); err != nil {
		return err
	}
	if err := authz.RunMigrationSet(ctx, db, "spheres_migrations", spheres.GetMigrations()); err != nil {
		return err
	}
	if err := authz.RunMigrationSet(ctx, db, "content_migrations", content.GetMigrations()); err != nil {
		return err
	}
	return authz.RunMigrationSet(ctx, db, "moderation_migrations", moderation.GetMigrations())
}
