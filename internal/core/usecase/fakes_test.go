package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/doc-triage/internal/core/domain"
	"github.com/kirillkom/doc-triage/internal/core/ports"
	"github.com/kirillkom/doc-triage/internal/infrastructure/repository/memory"
)

var (
	adminActor    = domain.Actor{ID: "admin-1", OrganizationID: "org-1", Role: domain.RoleAdmin}
	outsiderAdmin = domain.Actor{ID: "admin-9", OrganizationID: "org-2", Role: domain.RoleAdmin}
	engineerActor = domain.Actor{ID: "emp-1", OrganizationID: "org-1", Department: "Engineering", Role: domain.RoleEmployee}
	salesActor    = domain.Actor{ID: "emp-2", OrganizationID: "org-1", Department: "Sales", Role: domain.RoleEmployee}
)

// seedOrganization creates org-1 with Engineering and Sales, one employee in
// each and an admin.
func seedOrganization(t *testing.T, store *memory.Store) {
	t.Helper()
	ctx := context.Background()
	for _, d := range []domain.Department{
		{ID: "dep-eng", OrganizationID: "org-1", Name: "Engineering"},
		{ID: "dep-sales", OrganizationID: "org-1", Name: "Sales"},
	} {
		if err := store.CreateDepartment(ctx, &d); err != nil {
			t.Fatalf("seed department: %v", err)
		}
	}
	for _, e := range []domain.Employee{
		{ID: "emp-1", Name: "Eve Engineer", Email: "e1@example.com", OrganizationID: "org-1", Department: "Engineering"},
		{ID: "emp-2", Name: "Sam Sales", Email: "e2@example.com", OrganizationID: "org-1", Department: "Sales"},
		{ID: "admin-1", Name: "Ada Admin", Email: "admin@example.com", OrganizationID: "org-1", Department: "Engineering", IsAdmin: true},
	} {
		if err := store.CreateEmployee(ctx, &e); err != nil {
			t.Fatalf("seed employee: %v", err)
		}
	}
}

func seedDocument(t *testing.T, store *memory.Store, doc domain.Document) {
	t.Helper()
	if doc.OrganizationID == "" {
		doc.OrganizationID = "org-1"
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
		doc.UpdatedAt = doc.CreatedAt
	}
	if err := store.Create(context.Background(), &doc); err != nil {
		t.Fatalf("seed document: %v", err)
	}
}

func textDocument(id, text string) domain.Document {
	return domain.Document{
		ID:          id,
		Name:        id + ".txt",
		ContentKind: domain.ContentKindText,
		Text:        text,
		Status:      domain.StatusPending,
	}
}

type normalizerFake struct {
	payload *domain.ContentPayload
	err     error
	calls   int
}

func (f *normalizerFake) Normalize(_ context.Context, doc *domain.Document) (domain.ContentPayload, error) {
	f.calls++
	if f.err != nil {
		return domain.ContentPayload{}, f.err
	}
	if f.payload != nil {
		return *f.payload, nil
	}
	return domain.TextPayload(domain.SourceText, doc.Text), nil
}

type analyzerFake struct {
	raw   string
	err   error
	block bool
	calls []domain.ContentPayload
	hints []domain.TaskHint
}

func (f *analyzerFake) Analyze(ctx context.Context, payload domain.ContentPayload, hint domain.TaskHint) (string, error) {
	f.calls = append(f.calls, payload)
	f.hints = append(f.hints, hint)
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	return f.raw, nil
}

type sentMessage struct {
	recipient string
	subject   string
	body      string
}

type notifierFake struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *notifierFake) Send(_ context.Context, recipient, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{recipient: recipient, subject: subject, body: body})
	return f.err
}

type recorderFake struct {
	outcomes []string
}

func (f *recorderFake) ObserveAnalysis(_ domain.ContentSource, outcome string, _ time.Duration) {
	f.outcomes = append(f.outcomes, outcome)
}

type blobStoreFake struct {
	folder      string
	filename    string
	contentType string
	body        string
	err         error
}

func (f *blobStoreFake) Store(_ context.Context, folder, filename, contentType string, data io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	f.folder = folder
	f.filename = filename
	f.contentType = contentType
	f.body = string(raw)
	return folder + "/" + filename, nil
}

func (f *blobStoreFake) Fetch(context.Context, string) (ports.Blob, error) {
	return ports.Blob{}, errors.New("not implemented")
}
