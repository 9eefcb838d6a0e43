package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/testaustime/testaustime-auth/internal/api"
	"github.com/testaustime/testaustime-auth/internal/audit"
	"github.com/testaustime/testaustime-auth/internal/config"
	"github.com/testaustime/testaustime-auth/internal/database"
	"github.com/testaustime/testaustime-auth/internal/identity"
	"github.com/testaustime/testaustime-auth/internal/jobs"
	"github.com/testaustime/testaustime-auth/internal/logger"
	"github.com/testaustime/testaustime-auth/internal/oauth"
	"github.com/testaustime/testaustime-auth/internal/session"
	"github.com/testaustime/testaustime-auth/internal/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	os.Exit(exitCode(zlog, run(cfg, zlog)))
}

// exitCode logs a failed run and flushes the logger before the process exits
func exitCode(zlog *zap.Logger, err error) int {
	code := 0
	if err != nil {
		zlog.Error("Server failed", zap.Error(err))
		code = 1
	}
	_ = zlog.Sync()
	return code
}

// writeTimeout leaves room for the whole login flow plus writing the response
func writeTimeout(cfg config.ProviderConfig) time.Duration {
	return oauth.MaxLoginDuration(cfg) + 15*time.Second
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())

	// Initialize database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	defer sqlDB.Close()

	// Run migrations
	if err := database.RunMigrations(db, cfg.Database.Type); err != nil {
		return err
	}

	// Session issuer validates the cookie configuration before serving anything
	issuer, err := session.NewIssuer(cfg.Session)
	if err != nil {
		return err
	}

	providerClient, err := oauth.NewClient(cfg.Provider)
	if err != nil {
		return err
	}

	store := identity.NewStore(db, zlog.Named("identity"))
	recorder := audit.NewRecorder(db, zlog.Named("audit"))
	flow := oauth.NewService(providerClient, store, recorder, zlog.Named("oauth"))

	// Audit retention job
	scheduler := jobs.NewScheduler(recorder, cfg.Audit.Retention, zlog.Named("jobs"))
	if err := scheduler.Start(cfg.Audit.PruneSchedule); err != nil {
		return err
	}
	defer scheduler.Stop()

	limiter := api.NewRateLimiter(cfg.RateLimit.CallbackPerMinute, cfg.RateLimit.Burst)
	limiter.RunCleanup(ctx)

	// Setup API router
	router := api.NewRouter(cfg, flow, issuer, store, limiter, zlog.Named("http"))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout(cfg.Provider),
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		zlog.Info("Server starting", zap.Int("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Graceful shutdown
	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed to start: %w", err)
	case <-ctx.Done():
	}

	zlog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	zlog.Info("Server exited")
	return nil
}
