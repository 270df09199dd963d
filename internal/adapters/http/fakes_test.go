package httpadapter

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/kirillkom/doc-triage/internal/core/domain"
)

var (
	adminActor    = domain.Actor{ID: "admin-1", OrganizationID: "org-1", Role: domain.RoleAdmin}
	employeeActor = domain.Actor{ID: "emp-1", OrganizationID: "org-1", Department: "Engineering", Role: domain.RoleEmployee}
)

type tokenParserFake map[string]domain.Actor

func (f tokenParserFake) Parse(token string) (domain.Actor, error) {
	actor, ok := f[token]
	if !ok {
		return domain.Actor{}, domain.WrapError(domain.ErrUnauthorized, "parse token", errors.New("unknown token"))
	}
	return actor, nil
}

type intakeFake struct {
	gotName    string
	gotBody    string
	gotAnalyze bool
}

func (f *intakeFake) UploadFile(_ context.Context, actor domain.Actor, filename, contentType string, body io.Reader) (*domain.Document, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	f.gotName, f.gotBody = filename, string(raw)
	return &domain.Document{ID: "doc-1", Name: filename, ContentKind: domain.ContentKindFile, MimeType: contentType,
		OrganizationID: actor.OrganizationID, Status: domain.StatusPending}, nil
}

func (f *intakeFake) CreateTextDocument(_ context.Context, actor domain.Actor, title, content string, analyze bool) (*domain.Document, *domain.AnalysisOutcome, error) {
	f.gotAnalyze = analyze
	doc := &domain.Document{ID: "doc-2", Name: title, ContentKind: domain.ContentKindText, Text: content,
		OrganizationID: actor.OrganizationID, Status: domain.StatusPending}
	if !analyze {
		return doc, nil, nil
	}
	return doc, &domain.AnalysisOutcome{DocumentID: doc.ID, Status: domain.StatusPending, ErrorMessage: "analysis timed out"}, nil
}

type analysisFake struct {
	err error
}

func (f analysisFake) StartAnalysis(_ context.Context, _ domain.Actor, id string) (*domain.AnalysisOutcome, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.AnalysisOutcome{DocumentID: id, Status: domain.StatusAnalyzed, Analysis: &domain.AnalysisResult{UrgencyScore: 90}}, nil
}

func (f analysisFake) GetAnalysisResult(_ context.Context, _ domain.Actor, id string) (*domain.AnalysisView, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.AnalysisView{DocumentID: id, Status: domain.StatusAnalyzed}, nil
}

func (f analysisFake) AnalyzeText(context.Context, domain.Actor, string) (*domain.AnalysisResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.AnalysisResult{Summary: "ok", DocumentType: "Memo"}, nil
}

type lifecycleFake struct {
	includeDeleted bool
}

func (f *lifecycleFake) SetDocumentStatus(_ context.Context, _ domain.Actor, id string, status domain.DocumentStatus) (*domain.Document, error) {
	return &domain.Document{ID: id, Status: status}, nil
}

func (f *lifecycleFake) ListDocuments(_ context.Context, actor domain.Actor, includeDeleted bool) ([]domain.Document, error) {
	if !actor.IsAdmin() {
		return nil, domain.WrapError(domain.ErrForbidden, "list documents", errors.New("admin only"))
	}
	f.includeDeleted = includeDeleted
	return []domain.Document{{ID: "doc-1"}}, nil
}

func (f *lifecycleFake) ListEmployeeDocuments(context.Context, domain.Actor) ([]domain.EmployeeDocument, error) {
	return []domain.EmployeeDocument{}, nil
}

type assignmentFake struct {
	departments []string
	comment     *string
}

func (f *assignmentFake) AssignDocument(_ context.Context, _ domain.Actor, id string, departments []string) (*domain.AssignmentOutcome, error) {
	f.departments = departments
	return &domain.AssignmentOutcome{DocumentID: id, Departments: departments, NewlyAssigned: []string{"emp-1"}}, nil
}

func (f *assignmentFake) SetPersonalStatus(_ context.Context, actor domain.Actor, id string, status domain.PersonalStatus, comment *string) (*domain.PersonalStatusRecord, error) {
	f.comment = comment
	return &domain.PersonalStatusRecord{DocumentID: id, EmployeeID: actor.ID, Status: status, Comment: comment}, nil
}

func (f *assignmentFake) StatusBoard(_ context.Context, _ domain.Actor, id string) (*domain.StatusBoard, error) {
	return &domain.StatusBoard{DocumentID: id, DocumentName: "Q3", Statuses: []domain.EmployeeStatusView{}}, nil
}

type directoryFake struct{}

func (directoryFake) CreateDepartment(_ context.Context, actor domain.Actor, name, description string) (*domain.Department, error) {
	return &domain.Department{ID: "dep-1", OrganizationID: actor.OrganizationID, Name: name, Description: description}, nil
}

func (directoryFake) ListDepartments(context.Context, domain.Actor) ([]domain.DepartmentWithEmployees, error) {
	return []domain.DepartmentWithEmployees{}, nil
}

func (directoryFake) AddEmployee(_ context.Context, actor domain.Actor, name, email, department string) (*domain.Employee, error) {
	return &domain.Employee{ID: "emp-9", Name: name, Email: email, Department: department, OrganizationID: actor.OrganizationID}, nil
}

type verificationFake struct {
	issued []string
}

func (f *verificationFake) Issue(_ context.Context, subject string) error {
	f.issued = append(f.issued, subject)
	return nil
}

func (f *verificationFake) Verify(_ context.Context, _ string, code string) (*domain.VerificationResult, error) {
	if code != "123456" {
		return &domain.VerificationResult{Outcome: domain.OTPMismatch}, nil
	}
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	return &domain.VerificationResult{Outcome: domain.OTPVerified, AccessToken: "tok", ExpiresAt: &exp}, nil
}

type exporterFake struct{}

func (exporterFake) Export(board domain.StatusBoard, w io.Writer) error {
	_, err := io.WriteString(w, "xlsx:"+board.DocumentID)
	return err
}

type testRouter struct {
	handler      http.Handler
	intake       *intakeFake
	lifecycle    *lifecycleFake
	assignment   *assignmentFake
	verification *verificationFake
}

func newTestRouter(opts Options, analysis analysisFake) testRouter {
	tr := testRouter{
		intake:       &intakeFake{},
		lifecycle:    &lifecycleFake{},
		assignment:   &assignmentFake{},
		verification: &verificationFake{},
	}
	if opts.Tokens == nil {
		opts.Tokens = tokenParserFake{"admin-token": adminActor, "employee-token": employeeActor}
	}
	tr.handler = NewRouter(Services{
		Intake:       tr.intake,
		Analysis:     analysis,
		Lifecycle:    tr.lifecycle,
		Assignment:   tr.assignment,
		Directory:    directoryFake{},
		Verification: tr.verification,
	}, opts).Handler()
	return tr
}
