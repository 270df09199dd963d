package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/doc-triage/internal/core/domain"
	"github.com/kirillkom/doc-triage/internal/core/ports"
)

type IntakeUseCase struct {
	repo     ports.DocumentRepository
	blobs    ports.BlobStore
	analysis ports.DocumentAnalysisService
	now      func() time.Time
}

func NewIntakeUseCase(
	repo ports.DocumentRepository,
	blobs ports.BlobStore,
	analysis ports.DocumentAnalysisService,
) *IntakeUseCase {
	return &IntakeUseCase{
		repo:     repo,
		blobs:    blobs,
		analysis: analysis,
		now:      utcNow,
	}
}

func (uc *IntakeUseCase) UploadFile(
	ctx context.Context,
	actor domain.Actor,
	filename, contentType string,
	body io.Reader,
) (*domain.Document, error) {
	const op = "upload file"
	if err := requireAdmin(actor, op); err != nil {
		return nil, err
	}
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, errors.New("filename is required"))
	}

	id := uuid.NewString()
	folder := "documents/" + actor.OrganizationID
	storageName := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))

	locator, err := uc.blobs.Store(ctx, folder, storageName, contentType, body)
	if err != nil {
		return nil, fmt.Errorf("save to blob store: %w", err)
	}

	now := uc.now()
	doc := &domain.Document{
		ID:                  id,
		Name:                filename,
		ContentKind:         domain.ContentKindFile,
		BlobLocator:         locator,
		MimeType:            contentType,
		OrganizationID:      actor.OrganizationID,
		CreatedBy:           actor.ID,
		Status:              domain.StatusPending,
		AssignedDepartments: []string{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document metadata: %w", err)
	}
	return doc, nil
}

// CreateTextDocument stores inline text as a pending document and, when
// analyze is set, runs the first analysis pass right away.
func (uc *IntakeUseCase) CreateTextDocument(
	ctx context.Context,
	actor domain.Actor,
	title, content string,
	analyze bool,
) (*domain.Document, *domain.AnalysisOutcome, error) {
	const op = "create text document"
	if err := requireAdmin(actor, op); err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, nil, domain.WrapError(domain.ErrInvalidInput, op, errors.New("content is required"))
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Text document"
	}

	now := uc.now()
	doc := &domain.Document{
		ID:                  uuid.NewString(),
		Name:                title,
		ContentKind:         domain.ContentKindText,
		Text:                content,
		OrganizationID:      actor.OrganizationID,
		CreatedBy:           actor.ID,
		Status:              domain.StatusPending,
		AssignedDepartments: []string{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, nil, fmt.Errorf("create document metadata: %w", err)
	}
	if !analyze {
		return doc, nil, nil
	}

	outcome, err := uc.analysis.StartAnalysis(ctx, actor, doc.ID)
	if err != nil {
		return doc, nil, fmt.Errorf("analyze created document: %w", err)
	}
	doc.Status = outcome.Status
	doc.Analysis = outcome.Analysis
	doc.Error = outcome.ErrorMessage
	return doc, outcome, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "document.bin"
	}
	return base
}
