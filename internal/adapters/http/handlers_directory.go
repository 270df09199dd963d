package httpadapter

import (
	"net/http"

	"github.com/kirillkom/doc-triage/internal/core/domain"
)

func (rt *Router) createDepartment(w http.ResponseWriter, r *http.Request, actor domain.Actor) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	dept, err := rt.svc.Directory.CreateDepartment(r.Context(), actor, req.Name, req.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dept)
}

func (rt *Router) listDepartments(w http.ResponseWriter, r *http.Request, actor domain.Actor) {
	departments, err := rt.svc.Directory.ListDepartments(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"departments": departments})
}

func (rt *Router) addEmployee(w http.ResponseWriter, r *http.Request, actor domain.Actor) {
	var req struct {
		Name       string `json:"name"`
		Email      string `json:"email"`
		Department string `json:"department"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	emp, err := rt.svc.Directory.AddEmployee(r.Context(), actor, req.Name, req.Email, req.Department)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, emp)
}

func (rt *Router) issueOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := rt.svc.Verification.Issue(r.Context(), req.Email); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

func (rt *Router) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := rt.svc.Verification.Verify(r.Context(), req.Email, req.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
