package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cp-path-builder/backend/internal/handler"
	"github.com/cp-path-builder/backend/internal/infrastructure"
	"github.com/cp-path-builder/backend/internal/middleware"
	"github.com/cp-path-builder/backend/internal/repository"
	"github.com/cp-path-builder/backend/internal/service"
	"github.com/cp-path-builder/backend/internal/tools"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Bool("seed-sample", false, "load the bundled sample problemset into an empty database")
}

func runServe(cmd *cobra.Command, _ []string) error {
	rt, err := loadApp()
	if err != nil {
		return err
	}
	defer rt.close()
	config, logger := rt.config, rt.logger

	logger.Info("Starting cp-path-builder API",
		zap.String("environment", config.Server.Environment),
		zap.Int("port", config.Server.Port),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetry, err := infrastructure.NewTelemetry(ctx, &config.Telemetry, config.Server.Environment, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = telemetry.Shutdown(shutdownCtx)
	}()

	metrics, err := telemetry.CreateMetrics()
	if err != nil {
		return err
	}

	database, err := rt.openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.AutoMigrate(); err != nil {
		return err
	}

	problemRepo := repository.NewProblemRepository(database.DB)
	pathRepo := repository.NewPathRepository(database.DB)
	progressRepo := repository.NewProgressRepository(database.DB)

	// The API stays up without redis; queries simply go to the database
	var cache service.Cache
	redisCache := rt.openCache(ctx)
	if redisCache != nil {
		cache = redisCache
		defer redisCache.Close()
	}

	if seed, _ := cmd.Flags().GetBool("seed-sample"); seed {
		if _, err := rt.newSeeder(problemRepo, redisCache).SeedSample(ctx); err != nil {
			return err
		}
	}

	pathService := service.NewPathService(problemRepo, pathRepo, progressRepo, service.PathSettings{
		DefaultSize: config.Path.DefaultSize,
		MaxSize:     config.Path.MaxSize,
		RatingStep:  config.Path.RatingStep,
		MinRating:   config.Path.MinRating,
		MaxRating:   config.Path.MaxRating,
		RandomSeed:  config.Path.RandomSeed,
	}, metrics, telemetry.Tracer, logger)
	recommendService := service.NewRecommendService(problemRepo, progressRepo, pathRepo, cache, telemetry.Tracer, logger)
	tokenService := service.NewTokenService(&config.JWT)

	registry, err := tools.NewRegistry(recommendService, metrics, telemetry.Tracer, logger)
	if err != nil {
		return err
	}

	var limiter *middleware.RateLimiter
	if config.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(config.RateLimit.RequestsPerSecond, config.RateLimit.Burst)
		limiter.StartCleanup(5 * time.Minute)
		defer limiter.Stop()
	}

	router := newRouter(routerDeps{
		config:    config,
		logger:    logger,
		telemetry: telemetry,
		metrics:   metrics,
		tokens:    tokenService,
		limiter:   limiter,
		health: func(ctx context.Context) error {
			if err := database.HealthCheck(ctx); err != nil {
				return err
			}
			if redisCache != nil {
				return redisCache.HealthCheck(ctx)
			}
			return nil
		},
		paths:    handler.NewPathHandler(pathService),
		problems: handler.NewProblemHandler(recommendService),
		users:    handler.NewUserHandler(recommendService),
		tools:    handler.NewToolHandler(registry),
	})

	server := &http.Server{
		Addr:         config.Server.Addr(),
		Handler:      router,
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server starting", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	logger.Info("Server exited")
	return nil
}
