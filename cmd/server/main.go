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

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"planextract/internal/app"
	"planextract/internal/auth/google"
	"planextract/internal/auth/jwtauth"
	"planextract/internal/config"
	"planextract/internal/handler"
	"planextract/internal/port"
	"planextract/internal/router"
	"planextract/internal/service"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := app.NewLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.RegisterProviders()
	components, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}

	if cfg.Templates.WatchCatalog {
		if err := components.Catalog.Watch(ctx); err != nil {
			return fmt.Errorf("failed to watch template catalog: %w", err)
		}
	}

	if missing := cfg.MissingCredentials(); len(missing) > 0 {
		zap.L().Warn("server: missing upstream credentials", zap.Strings("keys", missing))
	}

	// Background jobs
	registry := service.NewJobRegistry()
	worker := service.NewJobWorker(components.Orchestrator, registry, service.JobWorkerConfig{
		Concurrency: cfg.Jobs.Concurrency,
		QueueSize:   cfg.Jobs.QueueSize,
	})
	workerDone := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(workerDone)
	}()

	var archive port.ObjectStorage
	if cfg.Storage.ArchiveUploads {
		archive = components.Storage
	}
	processingSvc := service.NewProcessingService(components.Orchestrator, registry, worker, archive)

	// Handlers
	processH := handler.NewProcessHandler(processingSvc, cfg.Server.MaxUploadMB)
	jobH := handler.NewJobHandler(processingSvc)
	healthH := handler.NewHealthHandler(cfg.MissingCredentials)

	r := router.Setup(processH, jobH, healthH, router.Options{
		Verifier:       newVerifier(&cfg.Auth),
		AllowedDomain:  cfg.Auth.AllowedDomain,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("server: starting", zap.String("addr", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	zap.L().Info("server: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("server: graceful shutdown failed", zap.Error(err))
	}
	stop()
	<-workerDone
	return nil
}

func newVerifier(cfg *config.AuthConfig) port.IdentityVerifier {
	switch cfg.Mode {
	case config.AuthModeJWT:
		return jwtauth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	case config.AuthModeGoogle:
		return google.NewVerifier(cfg.GoogleClientID)
	default:
		return nil
	}
}
