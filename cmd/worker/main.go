package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/doc-triage/internal/bootstrap"
	"github.com/kirillkom/doc-triage/internal/config"
	"github.com/kirillkom/doc-triage/internal/core/domain"
	"github.com/kirillkom/doc-triage/internal/infrastructure/queue/nats"
	"github.com/kirillkom/doc-triage/internal/observability/logging"
	"github.com/kirillkom/doc-triage/internal/observability/metrics"
)

const sendTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLogger("worker", cfg.LogLevel))

	if cfg.NATSURL == "" {
		slog.Error("worker_misconfigured", "error", "NATS_URL is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: bootstrap.NewExecutor(cfg, nil),
	})
	if err != nil {
		slog.Error("queue_connect_failed", "error", err)
		os.Exit(1)
	}
	defer queue.Close()

	mailer := bootstrap.NewMailer(cfg)
	workerMetrics := metrics.NewWorkerMetrics("worker")

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", workerMetrics.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = queue.SubscribeNotifications(ctx, func(handlerCtx context.Context, n domain.Notification) error {
		sendCtx, cancel := context.WithTimeout(handlerCtx, sendTimeout)
		defer cancel()

		start := time.Now()
		workerMetrics.StartNotification()
		err := mailer.Send(sendCtx, n.Recipient, n.Subject, n.Body)
		workerMetrics.FinishNotification("worker", time.Since(start), err)
		return err
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
