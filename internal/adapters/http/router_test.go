package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/doc-triage/internal/core/domain"
)

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	return res
}

func TestHealthzEndpoint(t *testing.T) {
	tr := newTestRouter(Options{ValidateRequests: true}, analysisFake{})
	res := do(t, tr.handler, http.MethodGet, "/healthz", "", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestProtectedRouteRequiresBearerToken(t *testing.T) {
	tr := newTestRouter(Options{}, analysisFake{})

	if res := do(t, tr.handler, http.MethodGet, "/v1/documents", "", nil); res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", res.Code)
	}
	if res := do(t, tr.handler, http.MethodGet, "/v1/documents", "forged", nil); res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown token, got %d", res.Code)
	}
	if res := do(t, tr.handler, http.MethodGet, "/v1/documents", "employee-token", nil); res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for employee, got %d", res.Code)
	}
}

func TestListDocumentsBindsIncludeDeleted(t *testing.T) {
	tr := newTestRouter(Options{ValidateRequests: true}, analysisFake{})

	res := do(t, tr.handler, http.MethodGet, "/v1/documents?include_deleted=true", "admin-token", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if !tr.lifecycle.includeDeleted {
		t.Fatalf("include_deleted was not bound")
	}

	res = do(t, tr.handler, http.MethodGet, "/v1/documents?include_deleted=maybe", "admin-token", nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-boolean flag, got %d", res.Code)
	}
}

func TestUploadDocumentSuccess(t *testing.T) {
	tr := newTestRouter(Options{ValidateRequests: true}, analysisFake{})

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "scan.pdf")
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	if _, err := part.Write([]byte("%PDF-1.7")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer admin-token")
	res := httptest.NewRecorder()
	tr.handler.ServeHTTP(res, req)

	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	if tr.intake.gotName != "scan.pdf" || tr.intake.gotBody != "%PDF-1.7" {
		t.Fatalf("unexpected upload: %q %q", tr.intake.gotName, tr.intake.gotBody)
	}
}

func TestUploadDocumentTooLarge(t *testing.T) {
	tr := newTestRouter(Options{MaxUploadBytes: 512}, analysisFake{})

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, _ := writer.CreateFormFile("file", "big.png")
	_, _ = part.Write(bytes.Repeat([]byte("x"), 8192))
	_ = writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer admin-token")
	res := httptest.NewRecorder()
	tr.handler.ServeHTTP(res, req)

	if res.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d: %s", res.Code, res.Body.String())
	}
}

func TestCreateTextDocumentReturnsOutcome(t *testing.T) {
	tr := newTestRouter(Options{ValidateRequests: true}, analysisFake{})

	res := do(t, tr.handler, http.MethodPost, "/v1/documents/text", "admin-token",
		map[string]any{"title": "D1", "content": "server is down", "analyze": true})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	var payload struct {
		Document domain.Document        `json:"document"`
		Analysis domain.AnalysisOutcome `json:"analysis"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !tr.intake.gotAnalyze || payload.Analysis.Status != domain.StatusPending || payload.Analysis.ErrorMessage == "" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestRequestValidationRejectsContractViolations(t *testing.T) {
	tr := newTestRouter(Options{ValidateRequests: true}, analysisFake{})

	cases := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{name: "missing content", method: http.MethodPost, path: "/v1/documents/text", body: map[string]any{"title": "x"}},
		{name: "unknown admin status", method: http.MethodPut, path: "/v1/documents/doc-1/status", body: map[string]any{"status": "analyzed"}},
		{name: "empty departments", method: http.MethodPost, path: "/v1/documents/doc-1/assignments", body: map[string]any{"departments": []string{}}},
		{name: "bad personal status", method: http.MethodPut, path: "/v1/documents/doc-1/personal-status", body: map[string]any{"status": "finished"}},
		{name: "bad export format", method: http.MethodGet, path: "/v1/documents/doc-1/statuses?format=csv"},
	}
	for _, tc := range cases {
		res := do(t, tr.handler, tc.method, tc.path, "admin-token", tc.body)
		if res.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d: %s", tc.name, res.Code, res.Body.String())
		}
	}
}

func TestAnalysisRoutesMapDomainErrors(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{err: domain.WrapError(domain.ErrNotFound, "get", errors.New("missing")), code: http.StatusNotFound},
		{err: domain.WrapError(domain.ErrForbidden, "get", errors.New("other org")), code: http.StatusForbidden},
		{err: domain.WrapError(domain.ErrConflict, "begin", errors.New("processing")), code: http.StatusConflict},
		{err: domain.WrapError(domain.ErrInvalidInput, "begin", errors.New("empty")), code: http.StatusBadRequest},
		{err: errors.New("boom"), code: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		tr := newTestRouter(Options{}, analysisFake{err: tc.err})
		res := do(t, tr.handler, http.MethodPost, "/v1/documents/doc-1/analysis", "admin-token", nil)
		if res.Code != tc.code {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.code, res.Code)
		}
	}
}

func TestInternalErrorsDoNotLeakDetails(t *testing.T) {
	tr := newTestRouter(Options{}, analysisFake{err: errors.New("pq: password authentication failed")})
	res := do(t, tr.handler, http.MethodGet, "/v1/documents/doc-1/analysis", "admin-token", nil)
	if strings.Contains(res.Body.String(), "password") {
		t.Fatalf("internal error leaked: %s", res.Body.String())
	}
}

func TestAssignAndPersonalStatus(t *testing.T) {
	tr := newTestRouter(Options{ValidateRequests: true}, analysisFake{})

	res := do(t, tr.handler, http.MethodPost, "/v1/documents/doc-1/assignments", "admin-token",
		map[string]any{"departments": []string{"Engineering"}})
	if res.Code != http.StatusOK || len(tr.assignment.departments) != 1 {
		t.Fatalf("assign: %d %s", res.Code, res.Body.String())
	}

	res = do(t, tr.handler, http.MethodPut, "/v1/documents/doc-1/personal-status", "employee-token",
		map[string]any{"status": "in_progress", "comment": "reading"})
	if res.Code != http.StatusOK || tr.assignment.comment == nil || *tr.assignment.comment != "reading" {
		t.Fatalf("personal status: %d %s", res.Code, res.Body.String())
	}

	res = do(t, tr.handler, http.MethodPut, "/v1/documents/doc-1/personal-status", "employee-token",
		map[string]any{"status": "done"})
	if res.Code != http.StatusOK || tr.assignment.comment != nil {
		t.Fatalf("omitted comment must stay nil: %d", res.Code)
	}
}

func TestStatusBoardExportsSpreadsheet(t *testing.T) {
	tr := newTestRouter(Options{ValidateRequests: true, Exporter: exporterFake{}}, analysisFake{})

	res := do(t, tr.handler, http.MethodGet, "/v1/documents/doc-7/statuses?format=xlsx", "admin-token", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Header().Get("Content-Type"), "spreadsheetml") {
		t.Fatalf("unexpected content type %q", res.Header().Get("Content-Type"))
	}
	if !strings.Contains(res.Header().Get("Content-Disposition"), "status-board-doc-7.xlsx") || res.Body.String() != "xlsx:doc-7" {
		t.Fatalf("unexpected export response: %q", res.Body.String())
	}

	res = do(t, tr.handler, http.MethodGet, "/v1/documents/doc-7/statuses", "admin-token", nil)
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), `"document_name":"Q3"`) {
		t.Fatalf("expected JSON board, got %d %s", res.Code, res.Body.String())
	}
}

func TestOTPRoutesArePublic(t *testing.T) {
	tr := newTestRouter(Options{ValidateRequests: true}, analysisFake{})

	res := do(t, tr.handler, http.MethodPost, "/v1/auth/otp", "", map[string]string{"email": "e1@example.com"})
	if res.Code != http.StatusAccepted || len(tr.verification.issued) != 1 {
		t.Fatalf("issue: %d %s", res.Code, res.Body.String())
	}

	res = do(t, tr.handler, http.MethodPost, "/v1/auth/otp/verify", "", map[string]string{"email": "e1@example.com", "code": "123456"})
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), `"access_token":"tok"`) {
		t.Fatalf("verify: %d %s", res.Code, res.Body.String())
	}
}

func TestDirectoryRoutes(t *testing.T) {
	tr := newTestRouter(Options{ValidateRequests: true}, analysisFake{})

	res := do(t, tr.handler, http.MethodPost, "/v1/departments", "admin-token", map[string]string{"name": "Legal"})
	if res.Code != http.StatusCreated {
		t.Fatalf("create department: %d %s", res.Code, res.Body.String())
	}
	res = do(t, tr.handler, http.MethodPost, "/v1/employees", "admin-token",
		map[string]string{"name": "Lee", "email": "lee@example.com", "department": "Legal"})
	if res.Code != http.StatusCreated {
		t.Fatalf("add employee: %d %s", res.Code, res.Body.String())
	}
	res = do(t, tr.handler, http.MethodGet, "/v1/departments", "admin-token", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("list departments: %d", res.Code)
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	tr := newTestRouter(Options{}, analysisFake{})
	res := do(t, tr.handler, http.MethodPost, "/v1/analyze-text", "admin-token", map[string]string{"text": "x", "model": "gpt"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}
