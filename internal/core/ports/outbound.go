package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/doc-triage/internal/core/domain"
)

// DocumentRepository persists documents and performs single-statement,
// compare-and-swap lifecycle transitions.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context, filter domain.DocumentListFilter) ([]domain.Document, error)
	// BeginAnalysis moves pending (or processing with updated_at before
	// staleBefore) to processing. Returns domain.ErrConflict otherwise.
	BeginAnalysis(ctx context.Context, id string, staleBefore, now time.Time) error
	// CompleteAnalysis writes the analysis unit and moves processing to analyzed.
	CompleteAnalysis(ctx context.Context, id string, result domain.AnalysisResult, now time.Time) error
	// FailAnalysis moves processing back to pending with an error message.
	FailAnalysis(ctx context.Context, id string, errMessage string, now time.Time) error
	MarkAssigned(ctx context.Context, id string, departments []string, now time.Time) error
	// UpdateStatus applies an explicit admin transition when the current
	// status is one of from.
	UpdateStatus(ctx context.Context, id string, from []domain.DocumentStatus, to domain.DocumentStatus, now time.Time) error
}

// AssignmentStore owns the received-documents sets and personal status records.
type AssignmentStore interface {
	// AddReceivedDocument reports whether the document was newly added.
	AddReceivedDocument(ctx context.Context, employeeID, documentID string, now time.Time) (bool, error)
	// EnsurePersonalStatus creates a pending record unless one exists and
	// reports whether it was created.
	EnsurePersonalStatus(ctx context.Context, documentID, employeeID string, now time.Time) (bool, error)
	HasReceived(ctx context.Context, employeeID, documentID string) (bool, error)
	ListReceivedDocumentIDs(ctx context.Context, employeeID string) ([]string, error)
	UpsertPersonalStatus(ctx context.Context, record domain.PersonalStatusRecord) error
	GetPersonalStatus(ctx context.Context, documentID, employeeID string) (*domain.PersonalStatusRecord, error)
	ListPersonalStatuses(ctx context.Context, documentID string) ([]domain.PersonalStatusRecord, error)
}

// Directory is the organization membership collaborator.
type Directory interface {
	ListEmployees(ctx context.Context, organizationID string) ([]domain.Employee, error)
	GetEmployee(ctx context.Context, id string) (*domain.Employee, error)
	FindEmployeeByEmail(ctx context.Context, email string) (*domain.Employee, error)
	ListDepartments(ctx context.Context, organizationID string) ([]domain.Department, error)
	CreateDepartment(ctx context.Context, dept *domain.Department) error
	CreateEmployee(ctx context.Context, employee *domain.Employee) error
}

type Blob struct {
	Data        []byte
	ContentType string
}

// BlobStore stores and fetches source files.
type BlobStore interface {
	Store(ctx context.Context, folder, filename, contentType string, data io.Reader) (string, error)
	Fetch(ctx context.Context, locator string) (Blob, error)
}

// ContentNormalizer produces a model-ready payload for a document.
type ContentNormalizer interface {
	Normalize(ctx context.Context, doc *domain.Document) (domain.ContentPayload, error)
}

// PDFTextReader extracts the embedded text layer of a PDF, one entry per page.
type PDFTextReader interface {
	PageTexts(data []byte) ([]string, error)
}

// PageRasterizer renders every PDF page to an image, in page order.
type PageRasterizer interface {
	RenderPages(ctx context.Context, data []byte, dpi float64) ([]domain.Image, error)
}

// DocumentAnalyzer sends a payload to the AI service and returns raw output.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, payload domain.ContentPayload, hint domain.TaskHint) (string, error)
}

// Notifier delivers fire-and-forget messages.
type Notifier interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// NotificationQueue carries notifications from the API to the worker.
type NotificationQueue interface {
	PublishNotification(ctx context.Context, n domain.Notification) error
	SubscribeNotifications(ctx context.Context, handler func(context.Context, domain.Notification) error) error
}

// OTPStore persists short-lived verification challenges.
type OTPStore interface {
	Save(ctx context.Context, ch domain.OTPChallenge) error
	Get(ctx context.Context, subject string) (*domain.OTPChallenge, error)
	Delete(ctx context.Context, subject string) error
}

// TokenIssuer signs access tokens for verified actors.
type TokenIssuer interface {
	Issue(actor domain.Actor) (string, time.Time, error)
}

// AnalysisRecorder observes analysis runs.
type AnalysisRecorder interface {
	ObserveAnalysis(source domain.ContentSource, outcome string, duration time.Duration)
}

// StatusBoardExporter renders the per-employee status board.
type StatusBoardExporter interface {
	Export(board domain.StatusBoard, w io.Writer) error
}
