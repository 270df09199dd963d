package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/doc-triage/internal/core/analysis"
	"github.com/kirillkom/doc-triage/internal/core/domain"
	"github.com/kirillkom/doc-triage/internal/core/ports"
)

const (
	outcomeAnalyzed = "analyzed"
	outcomeFailed   = "failed"
)

type AnalysisUseCase struct {
	repo        ports.DocumentRepository
	assignments ports.AssignmentStore
	normalizer  ports.ContentNormalizer
	analyzer    ports.DocumentAnalyzer
	recorder    ports.AnalysisRecorder
	leaseTTL    time.Duration
	timeout     time.Duration
	now         func() time.Time
}

func NewAnalysisUseCase(
	repo ports.DocumentRepository,
	assignments ports.AssignmentStore,
	normalizer ports.ContentNormalizer,
	analyzer ports.DocumentAnalyzer,
	recorder ports.AnalysisRecorder,
	leaseTTL time.Duration,
	timeout time.Duration,
) *AnalysisUseCase {
	return &AnalysisUseCase{
		repo:        repo,
		assignments: assignments,
		normalizer:  normalizer,
		analyzer:    analyzer,
		recorder:    recorder,
		leaseTTL:    leaseTTL,
		timeout:     timeout,
		now:         utcNow,
	}
}

// StartAnalysis runs one analysis pass for a document. Extraction and
// analysis failures return the document to pending and are reported in the
// outcome; only rejected requests surface as errors.
func (uc *AnalysisUseCase) StartAnalysis(ctx context.Context, actor domain.Actor, documentID string) (*domain.AnalysisOutcome, error) {
	const op = "start analysis"
	if err := requireAdmin(actor, op); err != nil {
		return nil, err
	}
	doc, err := loadOrgDocument(ctx, uc.repo, actor, documentID, op)
	if err != nil {
		return nil, err
	}
	if err := validateAnalyzable(doc); err != nil {
		return nil, err
	}

	now := uc.now()
	if err := uc.repo.BeginAnalysis(ctx, doc.ID, now.Add(-uc.leaseTTL), now); err != nil {
		return nil, fmt.Errorf("set status=processing: %w", err)
	}

	started := time.Now()
	payload, result, err := uc.runPipeline(ctx, doc)
	if err != nil {
		return uc.markFailed(ctx, doc.ID, payload.Source, started, err)
	}

	if err := uc.persistAnalysis(ctx, doc.ID, result); err != nil {
		if !domain.IsKind(err, domain.ErrConflict) {
			uc.releaseLease(ctx, doc.ID, err)
		}
		uc.observe(payload.Source, outcomeFailed, started)
		return nil, err
	}
	uc.observe(payload.Source, outcomeAnalyzed, started)

	return &domain.AnalysisOutcome{
		DocumentID: doc.ID,
		Status:     domain.StatusAnalyzed,
		Source:     payload.Source,
		Analysis:   &result,
	}, nil
}

func (uc *AnalysisUseCase) runPipeline(ctx context.Context, doc *domain.Document) (domain.ContentPayload, domain.AnalysisResult, error) {
	if uc.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.timeout)
		defer cancel()
	}

	payload, err := uc.normalize(ctx, doc)
	if err != nil {
		return domain.ContentPayload{}, domain.AnalysisResult{}, err
	}

	raw, err := uc.invoke(ctx, payload)
	if err != nil {
		return payload, domain.AnalysisResult{}, err
	}
	return payload, analysis.Parse(raw), nil
}

func (uc *AnalysisUseCase) normalize(ctx context.Context, doc *domain.Document) (domain.ContentPayload, error) {
	payload, err := uc.normalizer.Normalize(ctx, doc)
	if err != nil {
		if !errors.Is(err, domain.ErrExtraction) {
			err = domain.WrapError(domain.ErrExtraction, "normalize content", err)
		}
		return domain.ContentPayload{}, err
	}
	return payload, nil
}

func (uc *AnalysisUseCase) invoke(ctx context.Context, payload domain.ContentPayload) (string, error) {
	raw, err := uc.analyzer.Analyze(ctx, payload, domain.TaskHintFor(payload.Source))
	if err != nil {
		if !errors.Is(err, domain.ErrAnalysis) {
			err = domain.WrapError(domain.ErrAnalysis, "invoke analyzer", err)
		}
		return "", err
	}
	if strings.TrimSpace(raw) == "" {
		return "", domain.WrapError(domain.ErrAnalysis, "invoke analyzer", errors.New("empty model output"))
	}
	return raw, nil
}

func (uc *AnalysisUseCase) persistAnalysis(ctx context.Context, documentID string, result domain.AnalysisResult) error {
	writeCtx, cancel := detachedContext(ctx)
	defer cancel()
	if err := uc.repo.CompleteAnalysis(writeCtx, documentID, result, uc.now()); err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}
	return nil
}

// releaseLease returns a still-processing document to pending after its
// result could not be saved, so it does not wait out the lease.
func (uc *AnalysisUseCase) releaseLease(ctx context.Context, documentID string, saveErr error) {
	writeCtx, cancel := detachedContext(ctx)
	defer cancel()
	if err := uc.repo.FailAnalysis(writeCtx, documentID, saveErr.Error(), uc.now()); err != nil {
		slog.Error("analysis_lease_release_failed", "document_id", documentID, "save_error", saveErr, "error", err)
		return
	}
	slog.Warn("analysis_save_failed", "document_id", documentID, "error", saveErr)
}

func (uc *AnalysisUseCase) markFailed(
	ctx context.Context,
	documentID string,
	source domain.ContentSource,
	started time.Time,
	processErr error,
) (*domain.AnalysisOutcome, error) {
	message := processErr.Error()
	slog.Warn("analysis_failed", "document_id", documentID, "source", source, "error", message)
	uc.observe(source, outcomeFailed, started)

	writeCtx, cancel := detachedContext(ctx)
	defer cancel()
	if err := uc.repo.FailAnalysis(writeCtx, documentID, message, uc.now()); err != nil {
		return nil, fmt.Errorf("%w; mark failed status: %v", processErr, err)
	}

	return &domain.AnalysisOutcome{
		DocumentID:   documentID,
		Status:       domain.StatusPending,
		Source:       source,
		ErrorMessage: message,
	}, nil
}

func (uc *AnalysisUseCase) observe(source domain.ContentSource, outcome string, started time.Time) {
	if uc.recorder == nil {
		return
	}
	uc.recorder.ObserveAnalysis(source, outcome, time.Since(started))
}

// GetAnalysisResult is readable by admins of the organization and by
// employees who received the document.
func (uc *AnalysisUseCase) GetAnalysisResult(ctx context.Context, actor domain.Actor, documentID string) (*domain.AnalysisView, error) {
	const op = "get analysis result"
	if err := requireActor(actor, op); err != nil {
		return nil, err
	}
	doc, err := loadOrgDocument(ctx, uc.repo, actor, documentID, op)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		received, err := uc.assignments.HasReceived(ctx, actor.ID, doc.ID)
		if err != nil {
			return nil, fmt.Errorf("check received document: %w", err)
		}
		if !received {
			return nil, domain.WrapError(domain.ErrForbidden, op, errors.New("document not assigned to caller"))
		}
	}

	return &domain.AnalysisView{
		DocumentID:   doc.ID,
		DocumentName: doc.Name,
		Status:       doc.Status,
		Analysis:     doc.Analysis,
		ErrorMessage: doc.Error,
		AnalyzedAt:   doc.AnalyzedAt,
	}, nil
}

// AnalyzeText analyzes ad-hoc text without creating a document.
func (uc *AnalysisUseCase) AnalyzeText(ctx context.Context, actor domain.Actor, text string) (*domain.AnalysisResult, error) {
	const op = "analyze text"
	if err := requireAdmin(actor, op); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, errors.New("text is required"))
	}
	if uc.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.timeout)
		defer cancel()
	}

	started := time.Now()
	raw, err := uc.invoke(ctx, domain.TextPayload(domain.SourceText, text))
	if err != nil {
		uc.observe(domain.SourceText, outcomeFailed, started)
		return nil, err
	}
	uc.observe(domain.SourceText, outcomeAnalyzed, started)

	result := analysis.Parse(raw)
	return &result, nil
}

func validateAnalyzable(doc *domain.Document) error {
	const op = "validate document"
	switch doc.ContentKind {
	case domain.ContentKindText:
		if strings.TrimSpace(doc.Text) == "" {
			return domain.WrapError(domain.ErrInvalidInput, op, errors.New("text document has no content"))
		}
	case domain.ContentKindFile:
		if doc.BlobLocator == "" {
			return domain.WrapError(domain.ErrInvalidInput, op, errors.New("file document has no stored content"))
		}
	default:
		return domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("unknown content kind %q", doc.ContentKind))
	}
	return nil
}
