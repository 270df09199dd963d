package main

import (
	"context"
	"log/slog"
	"os"

	mcpadapter "github.com/kirillkom/doc-triage/internal/adapters/mcp"
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
	// stdout carries the protocol
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel))

	ctx := context.Background()
	app, err := bootstrap.New(ctx, cfg, "mcp")
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	actor, err := mcpadapter.ResolveActor(ctx, app.Directory, cfg.MCPActorEmail)
	if err != nil {
		slog.Error("mcp_actor_unresolved", "error", err)
		os.Exit(1)
	}

	srv := mcpadapter.NewServer(mcpadapter.Services{
		Analysis:  app.AnalysisUC,
		Lifecycle: app.LifecycleUC,
	}, actor)
	slog.Info("mcp_serving", "actor_id", actor.ID, "organization_id", actor.OrganizationID)
	if err := srv.ServeStdio(); err != nil {
		slog.Error("mcp_serve_failed", "error", err)
		os.Exit(1)
	}
}
