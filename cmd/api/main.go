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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"assetmanager/internal/config"
	"assetmanager/internal/database"
	"assetmanager/internal/events"
	"assetmanager/internal/handlers"
	"assetmanager/internal/logger"
	"assetmanager/internal/metrics"
	"assetmanager/internal/middleware"
	"assetmanager/internal/scheduler"
	"assetmanager/internal/services"
	"assetmanager/internal/validator"
	"assetmanager/internal/valuation"

	_ "assetmanager/internal/docs" // Import swagger docs
)

// @title           Asset Manager API
// @version         1.0
// @description     Asset registry that values assets from sensor readings and holds outlying readings for approval.
// @termsOfService  http://swagger.io/terms/

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

const shutdownTimeout = 10 * time.Second

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbConfig, err := database.NewConfig(appConfig)
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer dbManager.Close()

	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	validator.Register()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewProm(registry)

	// Notifications
	broker := events.NewBroker(0)
	publishers := events.Publishers{broker}
	if appConfig.RedisAddr != "" {
		redisPub := events.NewRedisPublisher(&redis.Options{Addr: appConfig.RedisAddr}, appConfig.RedisChannel)
		defer redisPub.Close()
		publishers = append(publishers, redisPub)
		log.Infof("Publishing queued notifications to redis channel %s", appConfig.RedisChannel)
	}

	// Services
	db := dbManager.DB()
	store := services.NewRegistryStore(db)
	engine, err := services.NewValuationEngine(store, services.EngineConfig{
		ThresholdBps: appConfig.DeviationThresholdBps,
		Mode:         valuation.Mode(appConfig.BaselineMode),
	}, publishers, recorder)
	if err != nil {
		return fmt.Errorf("failed to create valuation engine: %w", err)
	}
	userService := services.NewUserService(db)
	auditService := services.NewAuditService(db)

	// Background jobs
	runner := scheduler.New(ctx)
	report := scheduler.NewPendingReport(store, recorder, appConfig.PendingStaleAfter)
	if _, err := runner.Add(appConfig.PendingReportSchedule, report.Run); err != nil {
		return fmt.Errorf("invalid PENDING_REPORT_SCHEDULE %q: %w", appConfig.PendingReportSchedule, err)
	}
	runner.Start()
	defer runner.Stop()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	handlers.Routes{
		Auth:           handlers.NewAuthHandler(userService, auditService, appConfig),
		Assets:         handlers.NewAssetHandler(engine, auditService),
		Events:         handlers.NewEventHandler(engine, broker),
		PipelineAPIKey: appConfig.PipelineAPIKey,
	}.Register(router)

	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("Starting asset manager server",
			"port", appConfig.Port,
			"baseline_mode", appConfig.BaselineMode,
			"threshold_bps", appConfig.DeviationThresholdBps,
		)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
