package ports

import (
	"context"
	"io"

	"github.com/kirillkom/doc-triage/internal/core/domain"
)

// DocumentIntake is the inbound contract for creating documents.
type DocumentIntake interface {
	UploadFile(ctx context.Context, actor domain.Actor, filename, contentType string, body io.Reader) (*domain.Document, error)
	CreateTextDocument(ctx context.Context, actor domain.Actor, title, content string, analyze bool) (*domain.Document, *domain.AnalysisOutcome, error)
}

// DocumentAnalysisService runs and reads analyses.
type DocumentAnalysisService interface {
	StartAnalysis(ctx context.Context, actor domain.Actor, documentID string) (*domain.AnalysisOutcome, error)
	GetAnalysisResult(ctx context.Context, actor domain.Actor, documentID string) (*domain.AnalysisView, error)
	AnalyzeText(ctx context.Context, actor domain.Actor, text string) (*domain.AnalysisResult, error)
}

// DocumentLifecycleService covers explicit admin transitions and listing.
type DocumentLifecycleService interface {
	SetDocumentStatus(ctx context.Context, actor domain.Actor, documentID string, status domain.DocumentStatus) (*domain.Document, error)
	ListDocuments(ctx context.Context, actor domain.Actor, includeDeleted bool) ([]domain.Document, error)
	ListEmployeeDocuments(ctx context.Context, actor domain.Actor) ([]domain.EmployeeDocument, error)
}

// AssignmentService fans documents out and tracks personal statuses.
type AssignmentService interface {
	AssignDocument(ctx context.Context, actor domain.Actor, documentID string, departments []string) (*domain.AssignmentOutcome, error)
	SetPersonalStatus(ctx context.Context, actor domain.Actor, documentID string, status domain.PersonalStatus, comment *string) (*domain.PersonalStatusRecord, error)
	StatusBoard(ctx context.Context, actor domain.Actor, documentID string) (*domain.StatusBoard, error)
}

// DirectoryService manages departments and employees of an organization.
type DirectoryService interface {
	CreateDepartment(ctx context.Context, actor domain.Actor, name, description string) (*domain.Department, error)
	ListDepartments(ctx context.Context, actor domain.Actor) ([]domain.DepartmentWithEmployees, error)
	AddEmployee(ctx context.Context, actor domain.Actor, name, email, department string) (*domain.Employee, error)
}

// VerificationService issues and checks one-time codes.
type VerificationService interface {
	Issue(ctx context.Context, subject string) error
	Verify(ctx context.Context, subject, code string) (*domain.VerificationResult, error)
}
