package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/doc-triage/internal/core/domain"
	"github.com/kirillkom/doc-triage/internal/infrastructure/resilience"
)

type capturedRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images"`
	Stream bool     `json:"stream"`
	Format string   `json:"format"`
}

func newCapturingServer(t *testing.T, response string, captured *capturedRequest) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"response": response})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestAnalyzeTextUsesTextModelAndTruncates(t *testing.T) {
	var captured capturedRequest
	server := newCapturingServer(t, `{"summary":"ok"}`, &captured)
	analyzer := NewAnalyzer(New(server.URL, Options{TextModel: "llama3", VisionModel: "llava", MaxTextChars: 10}))

	raw, err := analyzer.Analyze(context.Background(), domain.TextPayload(domain.SourceText, "0123456789TAIL"), domain.TaskAnalyzeText)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if raw != `{"summary":"ok"}` {
		t.Fatalf("unexpected raw output %q", raw)
	}
	if captured.Model != "llama3" || captured.Format != "json" || captured.Stream {
		t.Fatalf("unexpected request: %+v", captured)
	}
	if !strings.Contains(captured.Prompt, "0123456789") || strings.Contains(captured.Prompt, "TAIL") {
		t.Fatalf("expected text truncated to 10 runes, got prompt %q", captured.Prompt)
	}
	if len(captured.Images) != 0 {
		t.Fatalf("text payload must not send images")
	}
}

func TestAnalyzeScannedPDFSendsAllPagesInOrder(t *testing.T) {
	var captured capturedRequest
	server := newCapturingServer(t, `{"summary":"scan"}`, &captured)
	analyzer := NewAnalyzer(New(server.URL, Options{TextModel: "llama3", VisionModel: "llava"}))

	pages := []domain.Image{
		{MimeType: "image/png", Data: []byte("page-1")},
		{MimeType: "image/png", Data: []byte("page-2")},
		{MimeType: "image/png", Data: []byte("page-3")},
	}
	if _, err := analyzer.Analyze(context.Background(), domain.ImagePayload(domain.SourceScannedPDF, pages), domain.TaskOCRScannedPDF); err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if captured.Model != "llava" {
		t.Fatalf("expected vision model, got %q", captured.Model)
	}
	if len(captured.Images) != 3 {
		t.Fatalf("expected 3 images, got %d", len(captured.Images))
	}
	for i, encoded := range captured.Images {
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			t.Fatalf("decode image %d: %v", i, err)
		}
		if want := pages[i].Data; string(decoded) != string(want) {
			t.Fatalf("image %d out of order: %q", i, decoded)
		}
	}
	if !strings.Contains(captured.Prompt, "OCR") {
		t.Fatalf("expected OCR instruction, got %q", captured.Prompt)
	}
}

func TestAnalyzeErrorsAreAnalysisErrors(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		body      string
		temporary bool
	}{
		{name: "bad gateway", status: http.StatusBadGateway, body: "model unavailable", temporary: true},
		{name: "bad request", status: http.StatusBadRequest, body: "unknown model", temporary: false},
	}
	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, tc.body, tc.status)
		}))
		analyzer := NewAnalyzer(New(server.URL, Options{TextModel: "llama3"}))
		_, err := analyzer.Analyze(context.Background(), domain.TextPayload(domain.SourceText, "x"), domain.TaskAnalyzeText)
		server.Close()

		if !domain.IsKind(err, domain.ErrAnalysis) {
			t.Fatalf("%s: expected analysis error, got %v", tc.name, err)
		}
		if domain.IsKind(err, domain.ErrTemporary) != tc.temporary {
			t.Fatalf("%s: temporary=%v, got %v", tc.name, tc.temporary, err)
		}
		if !strings.Contains(err.Error(), tc.body) {
			t.Fatalf("%s: expected response body in error, got %v", tc.name, err)
		}
	}
}

func TestAnalyzeEmptyOutputIsAnalysisError(t *testing.T) {
	var captured capturedRequest
	server := newCapturingServer(t, "   ", &captured)
	analyzer := NewAnalyzer(New(server.URL, Options{TextModel: "llama3"}))

	_, err := analyzer.Analyze(context.Background(), domain.TextPayload(domain.SourceText, "x"), domain.TaskAnalyzeText)
	if !domain.IsKind(err, domain.ErrAnalysis) {
		t.Fatalf("expected analysis error, got %v", err)
	}
}

func TestAnalyzeRejectsEmptyPayload(t *testing.T) {
	analyzer := NewAnalyzer(New("http://127.0.0.1:1", Options{TextModel: "llama3"}))
	_, err := analyzer.Analyze(context.Background(), domain.ImagePayload(domain.SourceImage, nil), domain.TaskAnalyzeImage)
	if !domain.IsKind(err, domain.ErrAnalysis) {
		t.Fatalf("expected analysis error, got %v", err)
	}
}

func TestClassifyOllamaError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want resilience.ErrorClassification
	}{
		{name: "overloaded", err: &HTTPStatusError{Operation: "generate", StatusCode: http.StatusServiceUnavailable}, want: resilience.Transient},
		{name: "unknown model", err: &HTTPStatusError{Operation: "generate", StatusCode: http.StatusNotFound}, want: resilience.Rejected},
		{name: "canceled", err: context.Canceled, want: resilience.Rejected},
	}
	for _, tc := range cases {
		if got := classifyOllamaError(tc.err); got != tc.want {
			t.Fatalf("%s: got %+v, want %+v", tc.name, got, tc.want)
		}
	}
}
