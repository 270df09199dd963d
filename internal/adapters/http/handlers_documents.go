package httpadapter

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/kirillkom/doc-triage/internal/core/domain"
	"github.com/kirillkom/doc-triage/internal/infrastructure/report/xlsx"
)

func invalidInput(op string, err error) error {
	return domain.WrapError(domain.ErrInvalidInput, op, err)
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request, actor domain.Actor) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.opts.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody(r, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit)))
			return
		}
		writeError(w, r, invalidInput("read upload", errors.New("multipart field 'file' is required")))
		return
	}
	defer file.Close()

	doc, err := rt.svc.Intake.UploadFile(r.Context(), actor, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (rt *Router) createTextDocument(w http.ResponseWriter, r *http.Request, actor domain.Actor) {
	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
		Analyze bool   `json:"analyze"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	doc, outcome, err := rt.svc.Intake.CreateTextDocument(r.Context(), actor, req.Title, req.Content, req.Analyze)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"document": doc,
		"analysis": outcome,
	})
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request, actor domain.Actor) {
	includeDeleted, err := bindOptionalBool(r, "include_deleted")
	if err != nil {
		writeError(w, r, err)
		return
	}
	docs, err := rt.svc.Lifecycle.ListDocuments(r.Context(), actor, includeDeleted)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (rt *Router) listMyDocuments(w http.ResponseWriter, r *http.Request, actor domain.Actor) {
	docs, err := rt.svc.Lifecycle.ListEmployeeDocuments(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (rt *Router) startAnalysis(w http.ResponseWriter, r *http.Request, actor domain.Actor) {
	id, err := bindDocumentID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	outcome, err := rt.svc.Analysis.StartAnalysis(r.Context(), actor, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (rt *Router) getAnalysisResult(w http.ResponseWriter, r *http.Request, actor domain.Actor) {
	id, err := bindDocumentID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := rt.svc.Analysis.GetAnalysisResult(r.Context(), actor, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (rt *Router) analyzeText(w http.ResponseWriter, r *http.Request, actor domain.Actor) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := rt.svc.Analysis.AnalyzeText(r.Context(), actor, req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) setDocumentStatus(w http.ResponseWriter, r *http.Request, actor domain.Actor) {
	id, err := bindDocumentID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		Status domain.DocumentStatus `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := rt.svc.Lifecycle.SetDocumentStatus(r.Context(), actor, id, req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) assignDocument(w http.ResponseWriter, r *http.Request, actor domain.Actor) {
	id, err := bindDocumentID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		Departments []string `json:"departments"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	outcome, err := rt.svc.Assignment.AssignDocument(r.Context(), actor, id, req.Departments)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.opts.Metrics != nil {
		rt.opts.Metrics.RecordAssigned(len(outcome.NewlyAssigned))
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (rt *Router) setPersonalStatus(w http.ResponseWriter, r *http.Request, actor domain.Actor) {
	id, err := bindDocumentID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		Status  domain.PersonalStatus `json:"status"`
		Comment *string               `json:"comment"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	record, err := rt.svc.Assignment.SetPersonalStatus(r.Context(), actor, id, req.Status, req.Comment)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (rt *Router) statusBoard(w http.ResponseWriter, r *http.Request, actor domain.Actor) {
	id, err := bindDocumentID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	format, err := bindOptionalString(r, "format")
	if err != nil {
		writeError(w, r, err)
		return
	}
	board, err := rt.svc.Assignment.StatusBoard(r.Context(), actor, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if format != "xlsx" {
		writeJSON(w, http.StatusOK, board)
		return
	}
	if rt.opts.Exporter == nil {
		writeError(w, r, invalidInput("export status board", errors.New("spreadsheet export is not configured")))
		return
	}
	w.Header().Set("Content-Type", xlsx.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", xlsx.Filename(*board)))
	if err := rt.opts.Exporter.Export(*board, w); err != nil {
		writeError(w, r, fmt.Errorf("export status board: %w", err))
	}
}
