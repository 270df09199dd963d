package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/doc-triage/internal/core/domain"
	"github.com/kirillkom/doc-triage/internal/infrastructure/repository/memory"
)

type analysisFake struct {
	gotActor domain.Actor
	gotText  string
}

func (f *analysisFake) StartAnalysis(context.Context, domain.Actor, string) (*domain.AnalysisOutcome, error) {
	return nil, errors.New("not used")
}

func (f *analysisFake) GetAnalysisResult(_ context.Context, actor domain.Actor, id string) (*domain.AnalysisView, error) {
	f.gotActor = actor
	if id != "doc-1" {
		return nil, domain.WrapError(domain.ErrNotFound, "get document", errors.New("document "+id))
	}
	return &domain.AnalysisView{DocumentID: id, DocumentName: "Q3 report", Status: domain.StatusAnalyzed,
		Analysis: &domain.AnalysisResult{UrgencyScore: 90}}, nil
}

func (f *analysisFake) AnalyzeText(_ context.Context, _ domain.Actor, text string) (*domain.AnalysisResult, error) {
	f.gotText = text
	return &domain.AnalysisResult{Summary: "server outage", DocumentType: "Incident"}, nil
}

type lifecycleFake struct {
	includeDeleted bool
}

func (f *lifecycleFake) SetDocumentStatus(context.Context, domain.Actor, string, domain.DocumentStatus) (*domain.Document, error) {
	return nil, errors.New("not used")
}

func (f *lifecycleFake) ListDocuments(_ context.Context, _ domain.Actor, includeDeleted bool) ([]domain.Document, error) {
	f.includeDeleted = includeDeleted
	return []domain.Document{{ID: "doc-1", Name: "Q3 report"}}, nil
}

func (f *lifecycleFake) ListEmployeeDocuments(context.Context, domain.Actor) ([]domain.EmployeeDocument, error) {
	return nil, errors.New("not used")
}

var admin = domain.Actor{ID: "admin-1", OrganizationID: "org-1", Role: domain.RoleAdmin}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("expected one content item, got %d", len(res.Content))
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}
	return text.Text
}

func TestGetAnalysisResultTool(t *testing.T) {
	analysis := &analysisFake{}
	srv := NewServer(Services{Analysis: analysis, Lifecycle: &lifecycleFake{}}, admin)

	res, err := srv.getAnalysisResult(context.Background(), callRequest("get_analysis_result", map[string]any{"document_id": "doc-1"}))
	if err != nil {
		t.Fatalf("getAnalysisResult() error = %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, res))
	}
	var view domain.AnalysisView
	if err := json.Unmarshal([]byte(resultText(t, res)), &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.Analysis == nil || view.Analysis.UrgencyScore != 90 || analysis.gotActor != admin {
		t.Fatalf("unexpected view %+v for actor %+v", view, analysis.gotActor)
	}
}

func TestToolErrorsAreReportedToClient(t *testing.T) {
	srv := NewServer(Services{Analysis: &analysisFake{}, Lifecycle: &lifecycleFake{}}, admin)

	res, err := srv.getAnalysisResult(context.Background(), callRequest("get_analysis_result", map[string]any{"document_id": "missing"}))
	if err != nil {
		t.Fatalf("domain errors must not be protocol errors: %v", err)
	}
	if !res.IsError || !strings.Contains(resultText(t, res), "not found") {
		t.Fatalf("expected not found tool error, got %+v", res)
	}

	res, err = srv.analyzeText(context.Background(), callRequest("analyze_text", map[string]any{}))
	if err != nil || !res.IsError {
		t.Fatalf("expected missing argument tool error, got %+v %v", res, err)
	}
}

func TestListDocumentsTool(t *testing.T) {
	lifecycle := &lifecycleFake{}
	srv := NewServer(Services{Analysis: &analysisFake{}, Lifecycle: lifecycle}, admin)

	res, err := srv.listDocuments(context.Background(), callRequest("list_documents", map[string]any{"include_deleted": true}))
	if err != nil || res.IsError {
		t.Fatalf("listDocuments() = %+v, %v", res, err)
	}
	if !lifecycle.includeDeleted || !strings.Contains(resultText(t, res), `"id":"doc-1"`) {
		t.Fatalf("unexpected list result %q", resultText(t, res))
	}
}

func TestAnalyzeTextTool(t *testing.T) {
	analysis := &analysisFake{}
	srv := NewServer(Services{Analysis: analysis, Lifecycle: &lifecycleFake{}}, admin)

	res, err := srv.analyzeText(context.Background(), callRequest("analyze_text", map[string]any{"text": "server is down"}))
	if err != nil || res.IsError {
		t.Fatalf("analyzeText() = %+v, %v", res, err)
	}
	if analysis.gotText != "server is down" || !strings.Contains(resultText(t, res), "Incident") {
		t.Fatalf("unexpected result %q", resultText(t, res))
	}
}

func TestMCPServerRegistersTools(t *testing.T) {
	srv := NewServer(Services{Analysis: &analysisFake{}, Lifecycle: &lifecycleFake{}}, admin).MCPServer()
	tools := srv.ListTools()
	for _, name := range []string{"get_analysis_result", "list_documents", "analyze_text"} {
		if _, ok := tools[name]; !ok {
			t.Fatalf("tool %s not registered", name)
		}
	}
}

func TestResolveActor(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	if err := store.CreateEmployee(ctx, &domain.Employee{ID: "admin-1", Email: "root@example.com", OrganizationID: "org-1",
		IsAdmin: true, CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("CreateEmployee() error = %v", err)
	}

	actor, err := ResolveActor(ctx, store, "ROOT@example.com")
	if err != nil {
		t.Fatalf("ResolveActor() error = %v", err)
	}
	if actor.Role != domain.RoleAdmin || actor.OrganizationID != "org-1" {
		t.Fatalf("unexpected actor %+v", actor)
	}
	if _, err := ResolveActor(ctx, store, "nobody@example.com"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := ResolveActor(ctx, store, ""); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
