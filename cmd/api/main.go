package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	httpadapter "github.com/kirillkom/doc-triage/internal/adapters/http"
	"github.com/kirillkom/doc-triage/internal/bootstrap"
	"github.com/kirillkom/doc-triage/internal/config"
	"github.com/kirillkom/doc-triage/internal/observability/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLogger("api", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "api")
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	router := httpadapter.NewRouter(httpadapter.Services{
		Intake:       app.IntakeUC,
		Analysis:     app.AnalysisUC,
		Lifecycle:    app.LifecycleUC,
		Assignment:   app.AssignmentUC,
		Directory:    app.DirectoryUC,
		Verification: app.VerificationUC,
	}, httpadapter.Options{
		Service:                 "api",
		Tokens:                  app.Tokens,
		Exporter:                app.Exporter,
		Metrics:                 app.Metrics,
		RateLimitRPS:            cfg.APIRateLimitRPS,
		RateLimitBurst:          cfg.APIRateLimitBurst,
		BackpressureMaxInFlight: cfg.APIBackpressureMaxInFlight,
		BackpressureWait:        cfg.APIBackpressureWaitTimeout,
		MaxUploadBytes:          cfg.APIMaxUploadBytes,
		ValidateRequests:        cfg.APIRequestValidationEnabled,
	}).Handler()

	server := &http.Server{
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.AnalysisTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", ":"+cfg.APIPort)
	if err != nil {
		slog.Error("api_listen_failed", "error", err)
		os.Exit(1)
	}
	if cfg.APIMaxConnections > 0 {
		listener = netutil.LimitListener(listener, cfg.APIMaxConnections)
	}

	go func() {
		slog.Info("api_listening", "port", cfg.APIPort, "max_connections", cfg.APIMaxConnections)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err)
	}
}
