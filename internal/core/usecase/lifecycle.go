package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/kirillkom/doc-triage/internal/core/domain"
	"github.com/kirillkom/doc-triage/internal/core/ports"
)

type LifecycleUseCase struct {
	repo        ports.DocumentRepository
	assignments ports.AssignmentStore
	now         func() time.Time
}

func NewLifecycleUseCase(repo ports.DocumentRepository, assignments ports.AssignmentStore) *LifecycleUseCase {
	return &LifecycleUseCase{
		repo:        repo,
		assignments: assignments,
		now:         utcNow,
	}
}

func (uc *LifecycleUseCase) SetDocumentStatus(
	ctx context.Context,
	actor domain.Actor,
	documentID string,
	status domain.DocumentStatus,
) (*domain.Document, error) {
	const op = "set document status"
	if err := requireAdmin(actor, op); err != nil {
		return nil, err
	}
	doc, err := loadOrgDocument(ctx, uc.repo, actor, documentID, op)
	if err != nil {
		return nil, err
	}
	if err := domain.CheckAdminTransition(doc.Status, status); err != nil {
		return nil, err
	}

	if err := uc.repo.UpdateStatus(ctx, doc.ID, domain.AllowedSourcesFor(status), status, uc.now()); err != nil {
		return nil, fmt.Errorf("set status=%s: %w", status, err)
	}

	updated, err := uc.repo.GetByID(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("reload document: %w", err)
	}
	return updated, nil
}

// ListDocuments returns the organization's documents, newest first.
func (uc *LifecycleUseCase) ListDocuments(ctx context.Context, actor domain.Actor, includeDeleted bool) ([]domain.Document, error) {
	if err := requireAdmin(actor, "list documents"); err != nil {
		return nil, err
	}
	docs, err := uc.repo.List(ctx, domain.DocumentListFilter{
		OrganizationID: actor.OrganizationID,
		IncludeDeleted: includeDeleted,
	})
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// ListEmployeeDocuments merges the caller's received documents with their
// personal status. Deleted documents and documents that vanished are skipped.
func (uc *LifecycleUseCase) ListEmployeeDocuments(ctx context.Context, actor domain.Actor) ([]domain.EmployeeDocument, error) {
	if err := requireActor(actor, "list employee documents"); err != nil {
		return nil, err
	}
	ids, err := uc.assignments.ListReceivedDocumentIDs(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("list received documents: %w", err)
	}

	out := make([]domain.EmployeeDocument, 0, len(ids))
	for _, id := range ids {
		doc, err := uc.repo.GetByID(ctx, id)
		if err != nil {
			if domain.IsKind(err, domain.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("fetch document by id: %w", err)
		}
		if doc.Status == domain.StatusDeleted || doc.OrganizationID != actor.OrganizationID {
			continue
		}

		item := domain.EmployeeDocument{Document: *doc}
		record, err := uc.assignments.GetPersonalStatus(ctx, doc.ID, actor.ID)
		switch {
		case err == nil:
			item.PersonalStatus = record.Status
			item.PersonalComment = record.Comment
		case domain.IsKind(err, domain.ErrNotFound):
			item.PersonalStatus = domain.PersonalPending
		default:
			return nil, fmt.Errorf("fetch personal status: %w", err)
		}
		out = append(out, item)
	}
	return out, nil
}
