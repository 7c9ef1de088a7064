package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/probe365/advocacia-ia-sub000/internal/bootstrap"
	"github.com/probe365/advocacia-ia-sub000/internal/config"
	"github.com/probe365/advocacia-ia-sub000/internal/core/domain"
	"github.com/probe365/advocacia-ia-sub000/internal/observability/logging"
	"github.com/probe365/advocacia-ia-sub000/internal/observability/metrics"
)

const (
	serviceName = "worker"
	jobTimeout  = 15 * time.Minute
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{Queue: true})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", workerMetrics.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeUploads(ctx, func(handlerCtx context.Context, job domain.UploadJob) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, jobTimeout)
		defer cancel()

		workerMetrics.ObserveQueueLag(serviceName, time.Since(job.EnqueuedAt))
		workerMetrics.StartJob()
		start := time.Now()
		result, err := app.Workspace.HandleUploadJob(processCtx, job)
		workerMetrics.FinishJob(serviceName, string(result.Media), result.Chunks, time.Since(start), err)
		if err != nil {
			return err
		}
		logger.Info("upload_job_done",
			"tenant", job.Tenant,
			"case_id", job.CaseID,
			"filename", job.Filename,
			"media", result.Media,
			"chunks", result.Chunks,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
