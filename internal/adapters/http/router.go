package httpadapter

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kirillkom/doc-triage/internal/core/ports"
	"github.com/kirillkom/doc-triage/internal/observability/metrics"
)

type Services struct {
	Intake       ports.DocumentIntake
	Analysis     ports.DocumentAnalysisService
	Lifecycle    ports.DocumentLifecycleService
	Assignment   ports.AssignmentService
	Directory    ports.DirectoryService
	Verification ports.VerificationService
}

type Options struct {
	Service  string
	Tokens   ActorParser
	Exporter ports.StatusBoardExporter
	Metrics  *metrics.HTTPServerMetrics

	RateLimitRPS            float64
	RateLimitBurst          int
	BackpressureMaxInFlight int
	BackpressureWait        time.Duration
	MaxUploadBytes          int64
	ValidateRequests        bool
}

type Router struct {
	svc  Services
	opts Options
}

func NewRouter(svc Services, opts Options) *Router {
	if opts.Service == "" {
		opts.Service = "api"
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 25 << 20
	}
	return &Router{svc: svc, opts: opts}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	protect := func(h actorHandler) http.HandlerFunc {
		return authenticated(rt.opts.Tokens, h)
	}

	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.opts.Metrics != nil {
		mux.Handle("GET /metrics", rt.opts.Metrics.Handler())
	}

	mux.HandleFunc("POST /v1/auth/otp", rt.issueOTP)
	mux.HandleFunc("POST /v1/auth/otp/verify", rt.verifyOTP)

	mux.HandleFunc("GET /v1/documents", protect(rt.listDocuments))
	mux.HandleFunc("POST /v1/documents", protect(rt.uploadDocument))
	mux.HandleFunc("POST /v1/documents/text", protect(rt.createTextDocument))
	mux.HandleFunc("GET /v1/documents/mine", protect(rt.listMyDocuments))
	mux.HandleFunc("POST /v1/documents/{document_id}/analysis", protect(rt.startAnalysis))
	mux.HandleFunc("GET /v1/documents/{document_id}/analysis", protect(rt.getAnalysisResult))
	mux.HandleFunc("PUT /v1/documents/{document_id}/status", protect(rt.setDocumentStatus))
	mux.HandleFunc("POST /v1/documents/{document_id}/assignments", protect(rt.assignDocument))
	mux.HandleFunc("PUT /v1/documents/{document_id}/personal-status", protect(rt.setPersonalStatus))
	mux.HandleFunc("GET /v1/documents/{document_id}/statuses", protect(rt.statusBoard))
	mux.HandleFunc("POST /v1/analyze-text", protect(rt.analyzeText))

	mux.HandleFunc("GET /v1/departments", protect(rt.listDepartments))
	mux.HandleFunc("POST /v1/departments", protect(rt.createDepartment))
	mux.HandleFunc("POST /v1/employees", protect(rt.addEmployee))

	var handler http.Handler = mux
	if rt.opts.ValidateRequests {
		handler = requestValidationMiddleware(handler)
	}
	handler = backpressureMiddleware(handler, rt.opts.BackpressureMaxInFlight, rt.opts.BackpressureWait)
	handler = rateLimitMiddleware(handler, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst)
	if rt.opts.Metrics != nil {
		handler = rt.opts.Metrics.Middleware(rt.opts.Service, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// decodeJSON reads a JSON body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return invalidInput("decode request body", err)
	}
	return nil
}
