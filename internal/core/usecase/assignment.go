package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/doc-triage/internal/core/domain"
	"github.com/kirillkom/doc-triage/internal/core/ports"
)

const defaultFanoutConcurrency = 8

type AssignmentUseCase struct {
	repo        ports.DocumentRepository
	assignments ports.AssignmentStore
	directory   ports.Directory
	notifier    ports.Notifier
	concurrency int
	now         func() time.Time
}

func NewAssignmentUseCase(
	repo ports.DocumentRepository,
	assignments ports.AssignmentStore,
	directory ports.Directory,
	notifier ports.Notifier,
	concurrency int,
) *AssignmentUseCase {
	if concurrency <= 0 {
		concurrency = defaultFanoutConcurrency
	}
	return &AssignmentUseCase{
		repo:        repo,
		assignments: assignments,
		directory:   directory,
		notifier:    notifier,
		concurrency: concurrency,
		now:         utcNow,
	}
}

// AssignDocument fans an analyzed document out to every non-admin employee of
// the given departments. Repeating the call touches nobody new.
func (uc *AssignmentUseCase) AssignDocument(
	ctx context.Context,
	actor domain.Actor,
	documentID string,
	departments []string,
) (*domain.AssignmentOutcome, error) {
	const op = "assign document"
	if err := requireAdmin(actor, op); err != nil {
		return nil, err
	}
	requested := normalizeNames(departments)
	if len(requested) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, errors.New("at least one department is required"))
	}

	doc, err := loadOrgDocument(ctx, uc.repo, actor, documentID, op)
	if err != nil {
		return nil, err
	}
	if !domain.CanAssign(doc.Status) {
		return nil, domain.WrapError(domain.ErrConflict, op, fmt.Errorf("document is %s", doc.Status))
	}
	if err := uc.requireDepartments(ctx, actor.OrganizationID, requested); err != nil {
		return nil, err
	}

	if err := uc.repo.MarkAssigned(ctx, doc.ID, requested, uc.now()); err != nil {
		return nil, fmt.Errorf("set status=assigned: %w", err)
	}

	recipients, err := uc.eligibleEmployees(ctx, actor.OrganizationID, requested)
	if err != nil {
		return nil, err
	}
	touched, err := uc.fanOut(ctx, doc.ID, recipients)
	ids := employeeIDs(touched)
	if err != nil {
		// The document is already assigned; repeating the call completes the fan-out.
		slog.Error("assignment_fanout_incomplete",
			"document_id", doc.ID,
			"departments", requested,
			"recipients", len(recipients),
			"touched_employee_ids", ids,
			"error", err,
		)
		return nil, err
	}
	uc.notifyAssigned(ctx, doc, touched)

	return &domain.AssignmentOutcome{
		DocumentID:          doc.ID,
		Departments:         requested,
		NewlyAssigned:       ids,
		AssignedDepartments: requested,
	}, nil
}

func (uc *AssignmentUseCase) requireDepartments(ctx context.Context, organizationID string, names []string) error {
	existing, err := uc.directory.ListDepartments(ctx, organizationID)
	if err != nil {
		return fmt.Errorf("list departments: %w", err)
	}
	known := make(map[string]struct{}, len(existing))
	for _, d := range existing {
		known[d.Name] = struct{}{}
	}
	for _, name := range names {
		if _, ok := known[name]; !ok {
			return domain.WrapError(domain.ErrNotFound, "assign document", fmt.Errorf("department %q", name))
		}
	}
	return nil
}

func (uc *AssignmentUseCase) eligibleEmployees(ctx context.Context, organizationID string, departments []string) ([]domain.Employee, error) {
	employees, err := uc.directory.ListEmployees(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	wanted := make(map[string]struct{}, len(departments))
	for _, d := range departments {
		wanted[d] = struct{}{}
	}

	out := make([]domain.Employee, 0, len(employees))
	for _, emp := range employees {
		if emp.IsAdmin || emp.Department == "" {
			continue
		}
		if _, ok := wanted[emp.Department]; ok {
			out = append(out, emp)
		}
	}
	return out, nil
}

// fanOut returns the employees for whom a received entry or a personal status
// record was actually created, including those written before a failure.
func (uc *AssignmentUseCase) fanOut(ctx context.Context, documentID string, employees []domain.Employee) ([]domain.Employee, error) {
	var (
		mu      sync.Mutex
		touched []domain.Employee
	)
	now := uc.now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.concurrency)
	for _, emp := range employees {
		g.Go(func() error {
			added, err := uc.assignments.AddReceivedDocument(gctx, emp.ID, documentID, now)
			if err != nil {
				return fmt.Errorf("add received document for %s: %w", emp.ID, err)
			}
			created, err := uc.assignments.EnsurePersonalStatus(gctx, documentID, emp.ID, now)
			if err != nil {
				return fmt.Errorf("create personal status for %s: %w", emp.ID, err)
			}
			if added || created {
				mu.Lock()
				touched = append(touched, emp)
				mu.Unlock()
			}
			return nil
		})
	}
	err := g.Wait()
	return touched, err
}

func (uc *AssignmentUseCase) notifyAssigned(ctx context.Context, doc *domain.Document, employees []domain.Employee) {
	if uc.notifier == nil {
		return
	}
	subject := "New document assigned: " + doc.Name
	for _, emp := range employees {
		if emp.Email == "" {
			continue
		}
		body := fmt.Sprintf(
			"Hello %s,\n\nThe document %q has been assigned to your department (%s).\nPlease review it and update your status.\n",
			emp.Name, doc.Name, emp.Department,
		)
		if err := uc.notifier.Send(ctx, emp.Email, subject, body); err != nil {
			slog.Warn("assignment_notification_failed", "document_id", doc.ID, "employee_id", emp.ID, "error", err)
		}
	}
}

// SetPersonalStatus updates the caller's own status for a received document.
// A nil comment keeps the stored one.
func (uc *AssignmentUseCase) SetPersonalStatus(
	ctx context.Context,
	actor domain.Actor,
	documentID string,
	status domain.PersonalStatus,
	comment *string,
) (*domain.PersonalStatusRecord, error) {
	const op = "set personal status"
	if err := requireActor(actor, op); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("invalid status %q", status))
	}
	received, err := uc.assignments.HasReceived(ctx, actor.ID, documentID)
	if err != nil {
		return nil, fmt.Errorf("check received document: %w", err)
	}
	if !received {
		return nil, domain.WrapError(domain.ErrForbidden, op, errors.New("document not assigned to caller"))
	}

	record := domain.PersonalStatusRecord{
		DocumentID: documentID,
		EmployeeID: actor.ID,
		Status:     status,
		Comment:    comment,
		UpdatedAt:  uc.now(),
	}
	if comment == nil {
		existing, err := uc.assignments.GetPersonalStatus(ctx, documentID, actor.ID)
		switch {
		case err == nil:
			record.Comment = existing.Comment
		case !domain.IsKind(err, domain.ErrNotFound):
			return nil, fmt.Errorf("fetch personal status: %w", err)
		}
	}

	if err := uc.assignments.UpsertPersonalStatus(ctx, record); err != nil {
		return nil, fmt.Errorf("save personal status: %w", err)
	}
	return &record, nil
}

// StatusBoard lists every personal status of a document with employee details.
func (uc *AssignmentUseCase) StatusBoard(ctx context.Context, actor domain.Actor, documentID string) (*domain.StatusBoard, error) {
	const op = "status board"
	if err := requireAdmin(actor, op); err != nil {
		return nil, err
	}
	doc, err := loadOrgDocument(ctx, uc.repo, actor, documentID, op)
	if err != nil {
		return nil, err
	}
	records, err := uc.assignments.ListPersonalStatuses(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("list personal statuses: %w", err)
	}
	employees, err := uc.directory.ListEmployees(ctx, actor.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	byID := make(map[string]domain.Employee, len(employees))
	for _, emp := range employees {
		byID[emp.ID] = emp
	}

	board := &domain.StatusBoard{
		DocumentID:   doc.ID,
		DocumentName: doc.Name,
		Statuses:     make([]domain.EmployeeStatusView, 0, len(records)),
	}
	for _, rec := range records {
		view := domain.EmployeeStatusView{PersonalStatusRecord: rec}
		if emp, ok := byID[rec.EmployeeID]; ok {
			view.EmployeeName = emp.Name
			view.EmployeeEmail = emp.Email
			view.DepartmentName = emp.Department
		}
		board.Statuses = append(board.Statuses, view)
	}
	return board, nil
}

func normalizeNames(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func employeeIDs(employees []domain.Employee) []string {
	ids := make([]string, 0, len(employees))
	for _, emp := range employees {
		ids = append(ids, emp.ID)
	}
	sort.Strings(ids)
	return ids
}
