package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"pantry.app/internal/config"
	"pantry.app/internal/db"
	"pantry.app/internal/httpapi"
	"pantry.app/internal/jobqueue"
	"pantry.app/internal/migrate"
	"pantry.app/internal/obs"
	"pantry.app/internal/recipes"
	"pantry.app/internal/session"
)

// Overridden at build time via -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "0.3.1"
	commit  = "none"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := obs.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := migrate.Up(ctx, cfg.DB.DSN()); err != nil {
		cancel()
		logger.Fatal("migrations failed", zap.Error(err))
	}
	cancel()

	manager, err := db.Open(cfg.DB.DSN(), logger)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer func() { _ = manager.Close() }()

	priv, pub, err := session.EnsureKeys(cfg.Keys.PrivatePath, cfg.Keys.PublicPath)
	if err != nil {
		logger.Fatal("load signing keys", zap.Error(err))
	}

	sessions := session.New(manager, cfg.Google, priv, pub, cfg.SessionTTL, logger)
	recipeSvc := recipes.NewService(manager, logger)
	queue := jobqueue.New(logger)
	defer queue.Close()

	api := httpapi.New(manager, sessions, recipeSvc, queue, cfg.MapsPath, version, logger)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting pantry-api",
		zap.String("version", version),
		zap.String("addr", srv.Addr))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	logger.Info("stopped")
}
