package domain

import (
	"path/filepath"
	"strings"
	"time"
)

type ContentKind string

const (
	ContentKindFile ContentKind = "file"
	ContentKindText ContentKind = "text"
)

type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusAnalyzed   DocumentStatus = "analyzed"
	StatusAssigned   DocumentStatus = "assigned"
	StatusCompleted  DocumentStatus = "completed"
	StatusDeleted    DocumentStatus = "deleted"
	StatusIgnored    DocumentStatus = "ignored"
)

func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusAnalyzed, StatusAssigned,
		StatusCompleted, StatusDeleted, StatusIgnored:
		return true
	default:
		return false
	}
}

// Document is the unit of intake. Exactly one of BlobLocator and Text is set,
// as selected by ContentKind. Analysis is nil until a successful analysis run.
type Document struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	ContentKind         ContentKind     `json:"content_kind"`
	BlobLocator         string          `json:"blob_locator,omitempty"`
	Text                string          `json:"text,omitempty"`
	MimeType            string          `json:"mime_type,omitempty"`
	OrganizationID      string          `json:"organization_id"`
	CreatedBy           string          `json:"created_by"`
	Status              DocumentStatus  `json:"status"`
	Analysis            *AnalysisResult `json:"analysis,omitempty"`
	AssignedDepartments []string        `json:"assigned_departments"`
	Error               string          `json:"error_message,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
	AnalyzedAt          *time.Time      `json:"analyzed_at,omitempty"`
	AssignedAt          *time.Time      `json:"assigned_at,omitempty"`
	CompletedAt         *time.Time      `json:"completed_at,omitempty"`
	DeletedAt           *time.Time      `json:"deleted_at,omitempty"`
	IgnoredAt           *time.Time      `json:"ignored_at,omitempty"`
}

// Extension returns the lower-cased file extension of the document name.
func (d *Document) Extension() string {
	return strings.ToLower(filepath.Ext(d.Name))
}

func (d *Document) IsPDF() bool {
	return d.Extension() == ".pdf"
}

// AnalysisResult is the strict structure produced from model output.
// Every field is populated once a result exists.
type AnalysisResult struct {
	Summary                string   `json:"summary"`
	DocumentType           string   `json:"document_type"`
	UrgencyScore           float64  `json:"urgency_score"`
	ImportanceScore        float64  `json:"importance_score"`
	DepartmentsResponsible []string `json:"departments_responsible"`
	KeyFindings            []string `json:"key_findings"`
	Confidence             float64  `json:"confidence"`
}

type PayloadKind string

const (
	PayloadText   PayloadKind = "text"
	PayloadImages PayloadKind = "images"
)

// ContentSource records which normalization path produced a payload.
type ContentSource string

const (
	SourceText       ContentSource = "text"
	SourceDigitalPDF ContentSource = "digital_pdf"
	SourceScannedPDF ContentSource = "scanned_pdf"
	SourceImage      ContentSource = "image"
)

type Image struct {
	MimeType string
	Data     []byte
}

// ContentPayload is the normalized, model-ready representation of a document.
type ContentPayload struct {
	Kind   PayloadKind
	Source ContentSource
	Text   string
	Images []Image
}

func TextPayload(source ContentSource, text string) ContentPayload {
	return ContentPayload{Kind: PayloadText, Source: source, Text: text}
}

func ImagePayload(source ContentSource, images []Image) ContentPayload {
	return ContentPayload{Kind: PayloadImages, Source: source, Images: images}
}

// TaskHint selects the instruction template used for an analysis request.
type TaskHint string

const (
	TaskAnalyzeText   TaskHint = "analyze_text"
	TaskOCRScannedPDF TaskHint = "ocr_scanned_pdf"
	TaskAnalyzeImage  TaskHint = "analyze_image"
)

func TaskHintFor(source ContentSource) TaskHint {
	switch source {
	case SourceScannedPDF:
		return TaskOCRScannedPDF
	case SourceImage:
		return TaskAnalyzeImage
	default:
		return TaskAnalyzeText
	}
}

// AnalysisOutcome is the result of an analysis run. A failed run is reported
// through Status=pending and ErrorMessage, not through a returned error.
type AnalysisOutcome struct {
	DocumentID   string          `json:"document_id"`
	Status       DocumentStatus  `json:"status"`
	Source       ContentSource   `json:"source,omitempty"`
	Analysis     *AnalysisResult `json:"analysis,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

func (o AnalysisOutcome) Succeeded() bool {
	return o.Status == StatusAnalyzed
}

type AnalysisView struct {
	DocumentID   string          `json:"document_id"`
	DocumentName string          `json:"document_name"`
	Status       DocumentStatus  `json:"status"`
	Analysis     *AnalysisResult `json:"analysis,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	AnalyzedAt   *time.Time      `json:"analyzed_at,omitempty"`
}

type DocumentListFilter struct {
	OrganizationID string
	IncludeDeleted bool
}
