package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/photoflow/internal/config"
	"github.com/your-org/photoflow/internal/face"
	"github.com/your-org/photoflow/internal/media"
	"github.com/your-org/photoflow/internal/ml"
	"github.com/your-org/photoflow/internal/observability"
	"github.com/your-org/photoflow/internal/queue"
	"github.com/your-org/photoflow/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	metricsAddr := flag.String("metrics-addr", ":8082", "metrics listen address")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting photoflow worker", "media_dir", cfg.Storage.MediaDir)

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
		slog.Error("ensure nats stream", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	local := storage.NewLocalStore(cfg.Storage.MediaDir)

	mediaSvc := media.NewService(db, jobs, media.NewTranscoder(), minioStore, local, cfg)
	mediaSvc.Register(jobs)

	faceSvc := face.NewService(db, jobs, ml.NewClient(), minioStore, local, cfg)
	faceSvc.Register(jobs)

	if err := jobs.Start(ctx); err != nil {
		slog.Error("start queue workers", "error", err)
		os.Exit(1)
	}

	// Nightly recognition sweep
	go queue.NewScheduler(jobs).Run(ctx)

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		slog.Info("worker metrics listening", "addr", *metricsAddr)
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Periodically export queue depths
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, q := range queue.AllQueues {
					counts, err := jobs.GetCounts(ctx, q)
					if err != nil {
						continue
					}
					observability.QueueActive.WithLabelValues(string(q)).Set(float64(counts.Active))
					observability.QueueWaiting.WithLabelValues(string(q)).Set(float64(counts.Waiting))
				}
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	cancel()
	time.Sleep(2 * time.Second)
	slog.Info("worker stopped")
}
