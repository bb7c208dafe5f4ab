package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/prephub/contests/internal/cache"
	"github.com/prephub/contests/internal/data"
	"github.com/prephub/contests/internal/domain"
	"github.com/prephub/contests/internal/handler"
	"github.com/prephub/contests/internal/infrastructure"
	"github.com/prephub/contests/internal/judge"
	"github.com/prephub/contests/internal/middleware"
	"github.com/prephub/contests/internal/repository"
	"github.com/prephub/contests/internal/service"
)

func main() {
	// Load configuration
	config := infrastructure.LoadConfig()

	// Initialize logger
	logger, err := infrastructure.NewLogger(config.Server.Environment, config.Server.LogLevel)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer infrastructure.SyncLogger(logger)

	logger.Info("Starting contests API",
		zap.String("environment", config.Server.Environment),
		zap.Int("port", config.Server.Port),
		zap.Int("attempt_cap", config.Contest.AttemptCap),
	)

	// Root context for background workers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize telemetry
	telemetry, err := infrastructure.NewTelemetry(ctx, &config.Telemetry, config.Server.Environment, logger)
	if err != nil {
		logger.Error("Failed to initialize telemetry", zap.Error(err))
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Telemetry shutdown failed", zap.Error(err))
		}
	}()

	metrics, err := telemetry.CreateMetrics()
	if err != nil {
		logger.Error("Failed to create metrics", zap.Error(err))
		os.Exit(1)
	}

	// Initialize database
	database, err := infrastructure.NewDatabase(&config.Database, logger)
	if err != nil {
		logger.Error("Failed to connect to database", zap.Error(err))
		os.Exit(1)
	}
	defer database.Close()

	if err := database.AutoMigrate(); err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		os.Exit(1)
	}

	// Leaderboard cache: redis when enabled, otherwise every read recomputes
	var (
		redisClient      *redis.Client
		leaderboardCache domain.LeaderboardCache = cache.NewNoopLeaderboardCache()
	)
	if config.Redis.Enabled {
		redisClient, err = infrastructure.NewRedisClient(ctx, &config.Redis, logger)
		if err != nil {
			logger.Error("Failed to connect to redis", zap.Error(err))
			os.Exit(1)
		}
		defer redisClient.Close()
		leaderboardCache = cache.NewRedisLeaderboardCache(redisClient)
	}

	clock := domain.SystemClock{}

	if config.SeedDemo {
		seeder := data.NewSeeder(database.DB, clock, logger)
		if err := seeder.SeedDemo(ctx); err != nil {
			logger.Error("Failed to seed demo contests", zap.Error(err))
			os.Exit(1)
		}
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(database.DB)
	contestRepo := repository.NewContestRepository(database.DB)
	problemRepo := repository.NewProblemRepository(database.DB)
	participantRepo := repository.NewParticipantRepository(database.DB)
	submissionRepo := repository.NewSubmissionRepository(database.DB)

	judgeClient := judge.NewHTTPClient(&config.Judge, metrics, logger)

	// Initialize services
	ledger := service.NewAttemptLedger(submissionRepo, clock, config.Contest.AttemptCap)
	aggregator := service.NewScoreAggregator(
		participantRepo, submissionRepo,
		config.Contest.RecomputeLanes, config.Contest.RecomputeMaxRetries,
		metrics, telemetry.Tracer, logger,
	)
	defer aggregator.Close()

	userService := service.NewUserService(userRepo, &config.JWT, clock, telemetry.Tracer, logger)
	contestService := service.NewContestService(contestRepo, participantRepo, userRepo, clock, ledger.Cap(), telemetry.Tracer, logger)
	submissionService := service.NewSubmissionService(
		contestRepo, problemRepo, participantRepo, submissionRepo,
		ledger, judgeClient, aggregator, clock, config.Judge.Timeout,
		metrics, telemetry.Tracer, logger,
	)
	leaderboardService := service.NewLeaderboardService(
		contestRepo, participantRepo, aggregator, leaderboardCache, clock,
		&config.Contest, metrics, telemetry.Tracer, logger,
	)

	refresherDone := make(chan struct{})
	go func() {
		defer close(refresherDone)
		leaderboardService.RunRefresher(ctx)
	}()

	// Initialize handlers
	authHandler := handler.NewAuthHandler(userService)
	userHandler := handler.NewUserHandler(userService, contestService)
	contestHandler := handler.NewContestHandler(contestService)
	submissionHandler := handler.NewSubmissionHandler(submissionService, contestService)
	leaderboardHandler := handler.NewLeaderboardHandler(leaderboardService, contestService)

	// Setup Gin router
	if config.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add global middleware
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.CORSMiddleware(middleware.NewCORSConfig(config.Server.AllowedOrigins)))
	router.Use(middleware.TracingMiddleware(telemetry.Tracer))
	router.Use(middleware.MetricsMiddleware(metrics))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		if err := database.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}
		if redisClient != nil {
			if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status": "unhealthy",
					"error":  "redis connection failed",
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": config.Telemetry.ServiceVersion,
		})
	})

	// Metrics endpoint for Prometheus
	router.GET(config.Telemetry.MetricsEndpoint, gin.WrapH(promhttp.Handler()))

	requireAuth := middleware.AuthMiddleware(userService)

	// API routes
	api := router.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/signup", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
		}

		// User routes
		users := api.Group("/users", requireAuth)
		{
			users.GET("/me", userHandler.GetCurrentUser)
			users.GET("/me/contests", userHandler.GetMyContests)
		}

		// Contest routes: reads and live join are public
		contests := api.Group("/contests")
		{
			contests.GET("", contestHandler.ListContests)
			contests.GET("/:id", contestHandler.GetContest)
			contests.GET("/:id/leaderboard", leaderboardHandler.GetLeaderboard)
			contests.POST("/:id/join", contestHandler.JoinByEmail)

			contests.POST("", requireAuth, contestHandler.CreateContest)
			contests.POST("/:id/cancel", requireAuth, contestHandler.CancelContest)
			contests.POST("/:id/register", requireAuth, contestHandler.Register)
			contests.POST("/:id/withdraw", requireAuth, contestHandler.Withdraw)
			contests.GET("/:id/me", requireAuth, contestHandler.GetMyParticipation)
			contests.GET("/:id/submissions", requireAuth, submissionHandler.ListSubmissions)
			contests.GET("/:id/submissions/:submissionId", requireAuth, submissionHandler.GetSubmission)
			contests.POST("/:id/problems/:problemId/submissions", requireAuth, submissionHandler.Submit)
			contests.GET("/:id/problems/:problemId/attempts", requireAuth, submissionHandler.AttemptStatus)
			contests.POST("/:id/problems/:problemId/review", requireAuth, submissionHandler.Review)
			contests.POST("/:id/leaderboard/refresh", requireAuth, leaderboardHandler.Refresh)
		}
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port),
		Handler:      router,
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("HTTP server starting",
			zap.String("address", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Stop the refresher before the aggregator it feeds is closed
	cancel()
	<-refresherDone

	logger.Info("Server exited")
}
