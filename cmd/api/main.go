package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/your-org/photoflow/internal/api"
	"github.com/your-org/photoflow/internal/api/ws"
	"github.com/your-org/photoflow/internal/config"
	"github.com/your-org/photoflow/internal/face"
	"github.com/your-org/photoflow/internal/ml"
	"github.com/your-org/photoflow/internal/models"
	"github.com/your-org/photoflow/internal/observability"
	"github.com/your-org/photoflow/internal/queue"
	"github.com/your-org/photoflow/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting photoflow API service", "port", cfg.Server.Port)

	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	jobs, err := queue.NewManager(cfg.NATS.URL, cfg.Job)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer jobs.Close()

	if err := jobs.EnsureStream(context.Background()); err != nil {
		slog.Warn("ensure nats stream", "error", err)
	}

	local := storage.NewLocalStore(cfg.Storage.MediaDir)
	faces := face.NewService(db, jobs, ml.NewClient(), minioStore, local, cfg)

	// WebSocket hub fed by job lifecycle events from the workers.
	hub := ws.NewHub()
	go hub.Run()

	sub, err := jobs.SubscribeEvents(func(data []byte) {
		var event models.JobEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return
		}
		hub.BroadcastJobEvent(event)
	})
	if err != nil {
		slog.Warn("subscribe to job events", "error", err)
	} else {
		defer sub.Unsubscribe()
	}

	router := api.NewRouter(api.RouterConfig{
		APIKey: cfg.Server.APIKey,
		DB:     db,
		MinIO:  minioStore,
		Jobs:   jobs,
		Faces:  faces,
		Hub:    hub,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}
