package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vidgrab/vidgrab/internal/config"
	"github.com/vidgrab/vidgrab/internal/download"
	"github.com/vidgrab/vidgrab/internal/engine"
	"github.com/vidgrab/vidgrab/internal/server"
	"github.com/vidgrab/vidgrab/internal/store"
	"github.com/vidgrab/vidgrab/internal/task"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// Optional: local .env for development setups.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn(".env not loaded", "error", err)
	}

	cfg := config.Default()
	if _, err := os.Stat("config.yaml"); err == nil {
		loaded, err := config.LoadFromFile("config.yaml")
		if err != nil {
			log.Error("load config.yaml failed", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if err := cfg.LoadFromEnv(); err != nil {
		log.Error("load config from env failed", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.DownloadDir, 0755); err != nil {
		log.Error("create download directory failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := engine.Install(ctx); err != nil {
		log.Error("yt-dlp install failed", "error", err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.DataDir, log)
	if err != nil {
		log.Error("open task store failed", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	registry := task.NewRegistry(st, log)
	persisted, err := st.LoadAll()
	if err != nil {
		log.Error("load persisted tasks failed", "error", err)
		os.Exit(1)
	}
	registry.Load(persisted)
	log.Info("task state restored", "tasks", len(persisted))

	downloads := download.NewService(registry, engine.NewYtDlp(log), cfg.MaxParallel, log)
	srv := server.New(cfg, registry, downloads, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown failed", "error", err)
		}
	}
}
