package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"github.com/anonto42/inkwell/backend/internal/cache"
	"github.com/anonto42/inkwell/backend/internal/handlers"
	"github.com/anonto42/inkwell/backend/internal/mailer"
	"github.com/anonto42/inkwell/backend/internal/middleware"
	"github.com/anonto42/inkwell/backend/internal/router"
	"github.com/anonto42/inkwell/backend/internal/services"
	"github.com/anonto42/inkwell/backend/internal/storage"
	"github.com/anonto42/inkwell/backend/pkg/config"
	"github.com/anonto42/inkwell/backend/pkg/firebase"
	"github.com/anonto42/inkwell/backend/validators"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogger(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connections
	db, err := config.InitDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.CloseDB()

	store, uploadDir, err := newStore(cfg)
	if err != nil {
		return err
	}

	svcs, err := router.NewServices(ctx, router.Infra{
		Postgres:    db.Postgres,
		Mongo:       db.MongoDB,
		Store:       store,
		Mailer:      mailer.New(cfg.SMTP),
		Tokens:      services.NewTokenService(cfg.JWTSecret, cfg.JWTExpiresIn),
		FrontendURL: cfg.FrontendURL,
	})
	if err != nil {
		return err
	}
	svcs.UploadDir = uploadDir
	svcs.HealthChecks = map[string]handlers.Pinger{
		"mongo":    db.PingMongo,
		"postgres": db.PingPostgres,
	}

	fb, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
	if err != nil {
		return err
	}
	if fb != nil {
		svcs.Firebase = fb.AuthClient
	}

	globalLimiter := middleware.MemoryRateLimitStore(cfg.RateLimitRequests, cfg.RateLimitWindow)
	svcs.BlogLimiter = middleware.MemoryRateLimitStore(cfg.BlogRateLimitRequests, cfg.RateLimitWindow)
	if cfg.RedisAddr != "" {
		client, err := cache.Connect(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return err
		}
		defer client.Close()
		globalLimiter = cache.NewRateLimitStore(client, "global", cfg.RateLimitRequests, cfg.RateLimitWindow)
		svcs.BlogLimiter = cache.NewRateLimitStore(client, "blog", cfg.BlogRateLimitRequests, cfg.RateLimitWindow)
		svcs.HealthChecks["redis"] = func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()
	config.SetupMiddleware(e, cfg, globalLimiter)
	router.SetupRoutes(e, svcs)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Port, "env", cfg.Env)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

// newStore picks S3 when it is configured and the local upload directory
// otherwise. The returned directory is non-empty only for the local store.
func newStore(cfg *config.Config) (storage.Store, string, error) {
	s3Store, err := storage.NewS3Store(cfg.S3)
	if err != nil {
		return nil, "", err
	}
	if s3Store != nil {
		slog.Info("using s3 storage", "endpoint", cfg.S3.Endpoint, "bucket", cfg.S3.Bucket)
		return s3Store, "", nil
	}

	local, err := storage.NewLocalStore(cfg.UploadDir, "/uploads")
	if err != nil {
		return nil, "", err
	}
	slog.Info("using local storage", "dir", cfg.UploadDir)
	return local, cfg.UploadDir, nil
}

