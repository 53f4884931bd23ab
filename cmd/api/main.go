//	@title			Storage API
//	@version		1.0
//	@description	File upload and pre-signed download service backed by S3-compatible object storage.
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT Bearer token. Format: **Bearer {token}**

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

	"github.com/reponote/storage/internal/auth"
	"github.com/reponote/storage/internal/config"
	"github.com/reponote/storage/internal/files"
	"github.com/reponote/storage/internal/logging"
	"github.com/reponote/storage/internal/server"
	"github.com/reponote/storage/internal/storage"
)

const (
	storageInitTimeout = 30 * time.Second
	shutdownTimeout    = 30 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if !cfg.EnvFileLoaded {
		logger.Infow("no .env file found, reading from environment")
	}

	if err := cfg.Validate(); err != nil {
		logger.Fatalw("invalid configuration", "error", err)
	}

	// The bucket is ensured here, before the listener opens.
	initCtx, cancelInit := context.WithTimeout(context.Background(), storageInitTimeout)
	store, err := storage.New(initCtx, cfg)
	cancelInit()
	if err != nil {
		logger.Fatalw("object storage init failed", "driver", cfg.StorageDriver, "error", err)
	}

	// Wire dependencies: storage → service → handler
	filesSvc := files.NewService(store)
	filesHandler := files.NewHandler(filesSvc)
	verifier := auth.NewVerifier(cfg.JWTSecret)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.NewRouter(verifier, filesHandler),
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine; wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Infow("server listening",
			"addr", srv.Addr,
			"env", cfg.AppEnv,
			"driver", cfg.StorageDriver,
			"bucket", cfg.StorageBucket,
			"presign_expiry", cfg.StoragePresignExpiry,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("server error", "error", err)
		}
	}()

	<-quit
	logger.Infow("shutting down gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorw("forced shutdown", "error", err)
		return
	}

	logger.Infow("server stopped")
}
