package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"golang-workspace-automation/internal/api/handlers"
	"golang-workspace-automation/internal/api/routes"
	"golang-workspace-automation/internal/config"
	"golang-workspace-automation/internal/repository"
	"golang-workspace-automation/internal/services/automation"
	"golang-workspace-automation/internal/services/billing"
	"golang-workspace-automation/internal/services/dispatch"
	"golang-workspace-automation/internal/services/progressbus"
	"golang-workspace-automation/internal/services/syncrun"
	"golang-workspace-automation/internal/services/workspace"
	"golang-workspace-automation/internal/utils"
	"golang-workspace-automation/pkg/postgres"
	"golang-workspace-automation/pkg/ratelimit"
	"golang-workspace-automation/pkg/redis"
	"golang-workspace-automation/pkg/vault"
)

func main() {
	ctxCancel, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	logrusLevel, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.WithError(err).Fatal("Failed to parse log level")
	}
	logger.SetLevel(logrusLevel)

	// Set Gin mode based on environment
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Initialize platform database (workspace registry)
	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		defer sqlDB.Close()
	}

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize Redis client")
	}

	cipher, err := vault.NewCipher(cfg.Vault.CredentialKey)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize credential cipher")
	}

	// Workspace-scoped database handles, cached with a TTL
	pool := postgres.NewWorkspacePool(cfg.Database, cfg.Sync.WorkspacePoolTTL, nil)
	defer pool.Close()
	storeProvider := repository.NewStoreProvider(pool)

	// Directory and resolution
	workspaceRepo := repository.NewWorkspaceRepository(db.DB)
	directory := workspace.NewDirectoryService(logger, workspaceRepo, redisClient, cfg.Database, cfg.Sync.DirectoryCacheTTL)
	resolver := workspace.NewWorkspaceResolver()

	// Supervisor and its collaborators
	billingLimiter := ratelimit.NewBillingRateLimiter(cfg.Billing.GlobalMaxRPS, cfg.Billing.PerIntegrationMaxRPS, logger)
	billingLimiter.StartCleanupExpired(ctxCancel)
	billingClient := billing.NewClient(&cfg.Billing, logger, billingLimiter)
	bus := progressbus.NewRedisBus(logger, redisClient)
	cancels := syncrun.NewCancelRegistry()
	supervisor := syncrun.NewSupervisorService(&cfg.Sync, logger, storeProvider, billingClient, cipher, bus, cancels)

	// Automation detector
	sink := automation.NewRedisStreamSink(redisClient)
	detector := automation.NewDetectorService(&cfg.Automation, logger, storeProvider, sink)

	// Job dispatch
	registry := dispatch.NewRegistry()
	if err := registry.Register(syncrun.JobKindSync, syncrun.NewSyncHandler(supervisor)); err != nil {
		logger.WithError(err).Fatal("Failed to register sync job handler")
	}
	if err := registry.Register(automation.JobKindDetect, automation.NewDetectHandler(detector)); err != nil {
		logger.WithError(err).Fatal("Failed to register detect job handler")
	}
	dispatcher := dispatch.NewDispatcher(logger, redisClient, resolver, directory)
	runner := dispatch.NewRunner(&cfg.Dispatch, logger, redisClient, registry)
	runner.Start(ctxCancel)

	// Register recurring detector schedules and sweep runs left behind by
	// an earlier process.
	if err := automation.RegisterSchedules(ctxCancel, &cfg.Automation, logger, directory, dispatcher); err != nil {
		logger.WithError(err).Error("Failed to register detector schedules")
	}
	utils.SafeGo(func() {
		descriptors, err := directory.ListAll(ctxCancel, nil)
		if err != nil {
			logger.WithError(err).Error("Failed to enumerate workspaces for stale-run sweep")
			return
		}
		for _, descriptor := range descriptors {
			reconciled, err := supervisor.ReconcileStale(ctxCancel, descriptor.ID)
			if err != nil {
				logger.WithError(err).WithField("workspace_id", descriptor.ID).Error("Stale-run sweep failed")
				continue
			}
			if reconciled > 0 {
				logger.WithFields(logrus.Fields{
					"workspace_id": descriptor.ID,
					"reconciled":   reconciled,
				}).Warn("Marked stale sync runs as failed")
			}
		}
	})

	// Initialize handlers
	syncHandler := handlers.NewSyncHandler(supervisor, resolver, directory, logger)
	workspaceHandler := handlers.NewWorkspaceHandler(directory, logger)

	// Setup routes
	routes.SetupRoutes(router, syncHandler, workspaceHandler)

	// Create HTTP server
	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	cancel()
	billingLimiter.StopCleanupExpired()

	runnerDone := make(chan struct{})
	go func() {
		runner.Stop()
		close(runnerDone)
	}()
	select {
	case <-runnerDone:
		logger.Info("Job runner stopped")
	case <-time.After(15 * time.Second):
		logger.Warn("Timeout waiting for job runner to stop, proceeding with server shutdown")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	} else {
		logger.Info("HTTP server shutdown completed successfully")
	}

	logger.Info("Server exited")
}
