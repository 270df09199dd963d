// Package memory holds process-local implementations of the document,
// assignment and directory stores. It backs local runs and use case tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/kirillkom/doc-triage/internal/core/domain"
)

type statusKey struct {
	documentID string
	employeeID string
}

type received struct {
	documentID string
	at         time.Time
}

type Store struct {
	mu          sync.RWMutex
	documents   map[string]domain.Document
	received    map[string][]received
	statuses    map[statusKey]domain.PersonalStatusRecord
	employees   map[string]domain.Employee
	departments map[string]domain.Department
}

func NewStore() *Store {
	return &Store{
		documents:   make(map[string]domain.Document),
		received:    make(map[string][]received),
		statuses:    make(map[statusKey]domain.PersonalStatusRecord),
		employees:   make(map[string]domain.Employee),
		departments: make(map[string]domain.Department),
	}
}

func (s *Store) Create(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[doc.ID]; ok {
		return domain.WrapError(domain.ErrConflict, "insert document", fmt.Errorf("document %s exists", doc.ID))
	}
	s.documents[doc.ID] = cloneDocument(*doc)
	return nil
}

func (s *Store) GetByID(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, notFound("document", id)
	}
	out := cloneDocument(doc)
	return &out, nil
}

func (s *Store) List(_ context.Context, filter domain.DocumentListFilter) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Document, 0)
	for _, doc := range s.documents {
		if doc.OrganizationID != filter.OrganizationID {
			continue
		}
		if doc.Status == domain.StatusDeleted && !filter.IncludeDeleted {
			continue
		}
		out = append(out, cloneDocument(doc))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) BeginAnalysis(_ context.Context, id string, staleBefore, now time.Time) error {
	return s.transition(id, "begin analysis", func(doc *domain.Document) bool {
		if !domain.CanStartAnalysis(doc.Status, doc.UpdatedAt, staleBefore) {
			return false
		}
		doc.Status = domain.StatusProcessing
		doc.UpdatedAt = now
		return true
	})
}

func (s *Store) CompleteAnalysis(_ context.Context, id string, result domain.AnalysisResult, now time.Time) error {
	return s.transition(id, "complete analysis", func(doc *domain.Document) bool {
		if doc.Status != domain.StatusProcessing {
			return false
		}
		r := cloneAnalysis(result)
		doc.Analysis = &r
		doc.Status = domain.StatusAnalyzed
		doc.Error = ""
		doc.AnalyzedAt = &now
		doc.UpdatedAt = now
		return true
	})
}

func (s *Store) FailAnalysis(_ context.Context, id string, errMessage string, now time.Time) error {
	return s.transition(id, "fail analysis", func(doc *domain.Document) bool {
		if doc.Status != domain.StatusProcessing {
			return false
		}
		doc.Status = domain.StatusPending
		doc.Error = errMessage
		doc.UpdatedAt = now
		return true
	})
}

func (s *Store) MarkAssigned(_ context.Context, id string, departments []string, now time.Time) error {
	return s.transition(id, "mark assigned", func(doc *domain.Document) bool {
		if !domain.CanAssign(doc.Status) {
			return false
		}
		doc.Status = domain.StatusAssigned
		doc.AssignedDepartments = slices.Clone(departments)
		doc.AssignedAt = &now
		doc.UpdatedAt = now
		return true
	})
}

func (s *Store) UpdateStatus(_ context.Context, id string, from []domain.DocumentStatus, to domain.DocumentStatus, now time.Time) error {
	return s.transition(id, "update status", func(doc *domain.Document) bool {
		if !slices.Contains(from, doc.Status) {
			return false
		}
		doc.Status = to
		doc.UpdatedAt = now
		switch to {
		case domain.StatusCompleted:
			doc.CompletedAt = &now
		case domain.StatusDeleted:
			doc.DeletedAt = &now
		case domain.StatusIgnored:
			doc.IgnoredAt = &now
		}
		return true
	})
}

// transition applies fn under the write lock; fn reports whether the current
// state allowed the change.
func (s *Store) transition(id, op string, fn func(doc *domain.Document) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return notFound("document", id)
	}
	if !fn(&doc) {
		return domain.WrapError(domain.ErrConflict, op, fmt.Errorf("document %s is %s", id, doc.Status))
	}
	s.documents[id] = doc
	return nil
}

func (s *Store) AddReceivedDocument(_ context.Context, employeeID, documentID string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.received[employeeID] {
		if r.documentID == documentID {
			return false, nil
		}
	}
	s.received[employeeID] = append(s.received[employeeID], received{documentID: documentID, at: now})
	return true, nil
}

func (s *Store) EnsurePersonalStatus(_ context.Context, documentID, employeeID string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := statusKey{documentID: documentID, employeeID: employeeID}
	if _, ok := s.statuses[key]; ok {
		return false, nil
	}
	s.statuses[key] = domain.PersonalStatusRecord{
		DocumentID: documentID,
		EmployeeID: employeeID,
		Status:     domain.PersonalPending,
		UpdatedAt:  now,
	}
	return true, nil
}

func (s *Store) HasReceived(_ context.Context, employeeID, documentID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.received[employeeID] {
		if r.documentID == documentID {
			return true, nil
		}
	}
	return false, nil
}

// ListReceivedDocumentIDs returns the most recently received documents first.
func (s *Store) ListReceivedDocumentIDs(_ context.Context, employeeID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := slices.Clone(s.received[employeeID])
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].at.After(items[j].at)
	})
	ids := make([]string, 0, len(items))
	for _, r := range items {
		ids = append(ids, r.documentID)
	}
	return ids, nil
}

func (s *Store) UpsertPersonalStatus(_ context.Context, record domain.PersonalStatusRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[statusKey{documentID: record.DocumentID, employeeID: record.EmployeeID}] = cloneRecord(record)
	return nil
}

func (s *Store) GetPersonalStatus(_ context.Context, documentID, employeeID string) (*domain.PersonalStatusRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.statuses[statusKey{documentID: documentID, employeeID: employeeID}]
	if !ok {
		return nil, notFound("personal status", documentID+"/"+employeeID)
	}
	out := cloneRecord(rec)
	return &out, nil
}

func (s *Store) ListPersonalStatuses(_ context.Context, documentID string) ([]domain.PersonalStatusRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.PersonalStatusRecord, 0)
	for key, rec := range s.statuses {
		if key.documentID == documentID {
			out = append(out, cloneRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].EmployeeID < out[j].EmployeeID
	})
	return out, nil
}

func (s *Store) ListEmployees(_ context.Context, organizationID string) ([]domain.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Employee, 0)
	for _, emp := range s.employees {
		if emp.OrganizationID == organizationID {
			out = append(out, emp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) GetEmployee(_ context.Context, id string) (*domain.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	emp, ok := s.employees[id]
	if !ok {
		return nil, notFound("employee", id)
	}
	return &emp, nil
}

func (s *Store) FindEmployeeByEmail(_ context.Context, email string) (*domain.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := domain.NormalizeSubject(email)
	for _, emp := range s.employees {
		if domain.NormalizeSubject(emp.Email) == want {
			return &emp, nil
		}
	}
	return nil, notFound("employee", email)
}

func (s *Store) ListDepartments(_ context.Context, organizationID string) ([]domain.Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Department, 0)
	for _, d := range s.departments {
		if d.OrganizationID == organizationID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) CreateDepartment(_ context.Context, dept *domain.Department) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.departments {
		if d.OrganizationID == dept.OrganizationID && d.Name == dept.Name {
			return domain.WrapError(domain.ErrConflict, "insert department", fmt.Errorf("department %q exists", dept.Name))
		}
	}
	s.departments[dept.ID] = *dept
	return nil
}

func (s *Store) CreateEmployee(_ context.Context, employee *domain.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, emp := range s.employees {
		if domain.NormalizeSubject(emp.Email) == domain.NormalizeSubject(employee.Email) {
			return domain.WrapError(domain.ErrConflict, "insert employee", fmt.Errorf("employee %s exists", employee.Email))
		}
	}
	s.employees[employee.ID] = *employee
	return nil
}

func notFound(kind, id string) error {
	return domain.WrapError(domain.ErrNotFound, "lookup "+kind, fmt.Errorf("%s %s", kind, id))
}

func cloneDocument(doc domain.Document) domain.Document {
	if doc.Analysis != nil {
		a := cloneAnalysis(*doc.Analysis)
		doc.Analysis = &a
	}
	doc.AssignedDepartments = slices.Clone(doc.AssignedDepartments)
	if doc.AssignedDepartments == nil {
		doc.AssignedDepartments = []string{}
	}
	return doc
}

func cloneAnalysis(a domain.AnalysisResult) domain.AnalysisResult {
	a.DepartmentsResponsible = slices.Clone(a.DepartmentsResponsible)
	a.KeyFindings = slices.Clone(a.KeyFindings)
	return a
}

func cloneRecord(rec domain.PersonalStatusRecord) domain.PersonalStatusRecord {
	if rec.Comment != nil {
		c := *rec.Comment
		rec.Comment = &c
	}
	return rec
}
