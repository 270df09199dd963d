package memory

import (
	"context"
	"testing"
	"time"

	"github.com/kirillkom/doc-triage/internal/core/domain"
)

func seedDocument(t *testing.T, s *Store, status domain.DocumentStatus, updatedAt time.Time) {
	t.Helper()
	err := s.Create(context.Background(), &domain.Document{
		ID:             "doc-1",
		Name:           "report.txt",
		ContentKind:    domain.ContentKindText,
		Text:           "hello",
		OrganizationID: "org-1",
		Status:         status,
		CreatedAt:      updatedAt,
		UpdatedAt:      updatedAt,
	})
	if err != nil {
		t.Fatalf("seed document: %v", err)
	}
}

func TestBeginAnalysisIsCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore()
	seedDocument(t, s, domain.StatusPending, now)

	if err := s.BeginAnalysis(ctx, "doc-1", now.Add(-time.Minute), now); err != nil {
		t.Fatalf("first begin: %v", err)
	}
	err := s.BeginAnalysis(ctx, "doc-1", now.Add(-time.Minute), now)
	if !domain.IsKind(err, domain.ErrConflict) {
		t.Fatalf("expected conflict on second begin, got %v", err)
	}

	// a lease older than staleBefore can be taken over
	later := now.Add(time.Hour)
	if err := s.BeginAnalysis(ctx, "doc-1", later.Add(-time.Minute), later); err != nil {
		t.Fatalf("stale takeover: %v", err)
	}
}

func TestBeginAnalysisMissingDocument(t *testing.T) {
	err := NewStore().BeginAnalysis(context.Background(), "missing", time.Now(), time.Now())
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCompleteAndFailRequireProcessing(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	s := NewStore()
	seedDocument(t, s, domain.StatusPending, now)

	err := s.CompleteAnalysis(ctx, "doc-1", domain.AnalysisResult{Summary: "x"}, now)
	if !domain.IsKind(err, domain.ErrConflict) {
		t.Fatalf("expected conflict completing a pending document, got %v", err)
	}

	if err := s.BeginAnalysis(ctx, "doc-1", now, now); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := s.FailAnalysis(ctx, "doc-1", "timeout", now); err != nil {
		t.Fatalf("fail: %v", err)
	}
	doc, _ := s.GetByID(ctx, "doc-1")
	if doc.Status != domain.StatusPending || doc.Error != "timeout" || doc.Analysis != nil {
		t.Fatalf("unexpected document after failure: %+v", doc)
	}
}

func TestUpdateStatusHonorsAllowedSources(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	s := NewStore()
	seedDocument(t, s, domain.StatusDeleted, now)

	err := s.UpdateStatus(ctx, "doc-1", domain.AllowedSourcesFor(domain.StatusCompleted), domain.StatusCompleted, now)
	if !domain.IsKind(err, domain.ErrConflict) {
		t.Fatalf("expected conflict leaving deleted, got %v", err)
	}
}

func TestReceivedAndStatusCreationAreIdempotent(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	s := NewStore()

	added, _ := s.AddReceivedDocument(ctx, "emp-1", "doc-1", now)
	again, _ := s.AddReceivedDocument(ctx, "emp-1", "doc-1", now)
	if !added || again {
		t.Fatalf("expected first add only, got %v/%v", added, again)
	}

	created, _ := s.EnsurePersonalStatus(ctx, "doc-1", "emp-1", now)
	createdAgain, _ := s.EnsurePersonalStatus(ctx, "doc-1", "emp-1", now)
	if !created || createdAgain {
		t.Fatalf("expected first create only, got %v/%v", created, createdAgain)
	}

	records, _ := s.ListPersonalStatuses(ctx, "doc-1")
	if len(records) != 1 || records[0].Status != domain.PersonalPending {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestListFiltersOrganizationAndDeleted(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	s := NewStore()
	docs := []domain.Document{
		{ID: "a", OrganizationID: "org-1", Status: domain.StatusPending, CreatedAt: now},
		{ID: "b", OrganizationID: "org-1", Status: domain.StatusDeleted, CreatedAt: now.Add(time.Second)},
		{ID: "c", OrganizationID: "org-2", Status: domain.StatusPending, CreatedAt: now},
		{ID: "d", OrganizationID: "org-1", Status: domain.StatusAnalyzed, CreatedAt: now.Add(2 * time.Second)},
	}
	for i := range docs {
		if err := s.Create(ctx, &docs[i]); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	got, _ := s.List(ctx, domain.DocumentListFilter{OrganizationID: "org-1"})
	if len(got) != 2 || got[0].ID != "d" || got[1].ID != "a" {
		t.Fatalf("unexpected list: %+v", got)
	}
	all, _ := s.List(ctx, domain.DocumentListFilter{OrganizationID: "org-1", IncludeDeleted: true})
	if len(all) != 3 {
		t.Fatalf("expected deleted to be included, got %d", len(all))
	}
}
