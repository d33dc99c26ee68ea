package main

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cp-path-builder/backend/internal/handler"
	"github.com/cp-path-builder/backend/internal/infrastructure"
	"github.com/cp-path-builder/backend/internal/middleware"
)

type routerDeps struct {
	config    *infrastructure.Config
	logger    *zap.Logger
	telemetry *infrastructure.Telemetry
	metrics   middleware.HTTPMetrics
	tokens    middleware.TokenVerifier
	limiter   *middleware.RateLimiter
	health    func(ctx context.Context) error

	paths    *handler.PathHandler
	problems *handler.ProblemHandler
	users    *handler.UserHandler
	tools    *handler.ToolHandler
}

func newRouter(d routerDeps) *gin.Engine {
	if d.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(d.logger))
	router.Use(middleware.LoggingMiddleware(d.logger))
	router.Use(middleware.CORSMiddleware(middleware.NewCORSConfig(d.config.Server.AllowedOrigins)))
	router.Use(middleware.TracingMiddleware(d.telemetry.Tracer))
	router.Use(middleware.MetricsMiddleware(d.metrics))

	router.GET("/health", func(c *gin.Context) {
		if err := d.health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": d.config.Telemetry.ServiceVersion,
		})
	})

	router.GET(d.config.Telemetry.MetricsEndpoint, gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.Use(middleware.OptionalAuthMiddleware(d.tokens))
	if d.limiter != nil {
		api.Use(middleware.RateLimitMiddleware(d.limiter))
	}
	{
		problems := api.Group("/problems")
		{
			problems.GET("", d.problems.SearchProblems)
			problems.GET("/stats", d.problems.GetProblemStats)
			problems.GET("/tags", d.problems.GetTags)
			problems.GET("/:id", d.problems.GetProblem)
			problems.GET("/:id/similar", d.problems.GetSimilarProblems)
		}

		api.GET("/tools", d.tools.ListTools)

		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(d.tokens))
		{
			paths := protected.Group("/paths")
			{
				paths.POST("", d.paths.CreatePath)
				paths.POST("/preview", d.paths.PreviewPath)
				paths.GET("", d.paths.GetPaths)
				paths.GET("/:id", d.paths.GetPath)
				paths.PATCH("/:id", d.paths.UpdatePath)
				paths.DELETE("/:id", d.paths.DeletePath)
				paths.POST("/:id/solve", d.paths.MarkSolved)
				paths.POST("/:id/skip/:position", d.paths.SkipProblem)
				paths.POST("/:id/attempt/:position", d.paths.AttemptProblem)
			}

			users := protected.Group("/users/me")
			{
				users.GET("", d.users.GetCurrentUser)
				users.GET("/stats", d.users.GetUserStats)
				users.GET("/topics", d.users.GetTopicStrengths)
				users.GET("/weak-topics", d.users.GetWeakTopics)
				users.GET("/history", d.users.GetSolvedHistory)
			}

			protected.POST("/tools/:name", d.tools.InvokeTool)
		}
	}

	return router
}
