// Package mcpadapter exposes read-mostly analysis operations as MCP tools.
package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/doc-triage/internal/core/domain"
	"github.com/kirillkom/doc-triage/internal/core/ports"
)

const (
	serverName    = "doc-triage"
	serverVersion = "1.0.0"
)

type Services struct {
	Analysis  ports.DocumentAnalysisService
	Lifecycle ports.DocumentLifecycleService
}

// Server runs every tool call as one fixed actor, normally an organization
// administrator resolved at startup.
type Server struct {
	svc   Services
	actor domain.Actor
}

func NewServer(svc Services, actor domain.Actor) *Server {
	return &Server{svc: svc, actor: actor}
}

// ResolveActor looks up the employee the tool server acts as.
func ResolveActor(ctx context.Context, directory ports.Directory, email string) (domain.Actor, error) {
	if email == "" {
		return domain.Actor{}, domain.WrapError(domain.ErrInvalidInput, "resolve mcp actor", errors.New("MCP_ACTOR_EMAIL is required"))
	}
	emp, err := directory.FindEmployeeByEmail(ctx, email)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("resolve mcp actor: %w", err)
	}
	return emp.Actor(), nil
}

func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer(serverName, serverVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	srv.AddTool(mcp.NewTool("get_analysis_result",
		mcp.WithDescription("Return the stored analysis and processing status of a document."),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("Document identifier")),
	), s.getAnalysisResult)

	srv.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List the organization's documents, newest first."),
		mcp.WithBoolean("include_deleted", mcp.Description("Include documents in the deleted status")),
	), s.listDocuments)

	srv.AddTool(mcp.NewTool("analyze_text",
		mcp.WithDescription("Analyze free text without storing a document."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to analyze")),
	), s.analyzeText)

	return srv
}

// ServeStdio blocks serving the tools over stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.MCPServer())
}

func (s *Server) getAnalysisResult(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	view, err := s.svc.Analysis.GetAnalysisResult(ctx, s.actor, id)
	return toolResult("get_analysis_result", view, err)
}

func (s *Server) listDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docs, err := s.svc.Lifecycle.ListDocuments(ctx, s.actor, req.GetBool("include_deleted", false))
	return toolResult("list_documents", docs, err)
}

func (s *Server) analyzeText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := s.svc.Analysis.AnalyzeText(ctx, s.actor, text)
	return toolResult("analyze_text", result, err)
}

// toolResult reports domain failures as tool errors so the client sees
// them; only encoding failures are protocol errors.
func toolResult(tool string, payload any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		if !isClientError(err) {
			slog.Error("mcp_tool_failed", "tool", tool, "error", err)
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", tool, err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func isClientError(err error) bool {
	for _, kind := range []error{domain.ErrNotFound, domain.ErrForbidden, domain.ErrInvalidInput, domain.ErrConflict} {
		if domain.IsKind(err, kind) {
			return true
		}
	}
	return false
}
