package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/doc-triage/internal/core/domain"
	"github.com/kirillkom/doc-triage/internal/core/ports"
)

// stateWriteTimeout bounds lifecycle writes that must survive a cancelled
// request context, such as recording an analysis failure after a timeout.
const stateWriteTimeout = 10 * time.Second

func requireActor(actor domain.Actor, op string) error {
	if actor.ID == "" || actor.OrganizationID == "" {
		return domain.WrapError(domain.ErrUnauthorized, op, errors.New("missing actor"))
	}
	return nil
}

func requireAdmin(actor domain.Actor, op string) error {
	if err := requireActor(actor, op); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return domain.WrapError(domain.ErrForbidden, op, errors.New("admin role required"))
	}
	return nil
}

// loadOrgDocument fetches a document and rejects callers from another
// organization.
func loadOrgDocument(ctx context.Context, repo ports.DocumentRepository, actor domain.Actor, id, op string) (*domain.Document, error) {
	if id == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, errors.New("document id is required"))
	}
	doc, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	if doc.OrganizationID != actor.OrganizationID {
		return nil, domain.WrapError(domain.ErrForbidden, op, errors.New("document belongs to another organization"))
	}
	return doc, nil
}

func detachedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), stateWriteTimeout)
}

func utcNow() time.Time {
	return time.Now().UTC()
}
