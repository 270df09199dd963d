package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/doc-triage/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `id, name, content_kind, blob_locator, text_content, mime_type, organization_id, created_by,
	status, analysis, assigned_departments, error_message, created_at, updated_at,
	analyzed_at, assigned_at, completed_at, deleted_at, ignored_at`

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	departments, err := json.Marshal(nonNil(doc.AssignedDepartments))
	if err != nil {
		return fmt.Errorf("marshal departments: %w", err)
	}
	var analysis []byte
	if doc.Analysis != nil {
		if analysis, err = json.Marshal(doc.Analysis); err != nil {
			return fmt.Errorf("marshal analysis: %w", err)
		}
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO documents (
	id, name, content_kind, blob_locator, text_content, mime_type, organization_id, created_by,
	status, analysis, assigned_departments, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
`,
		doc.ID, doc.Name, string(doc.ContentKind), doc.BlobLocator, doc.Text, doc.MimeType, doc.OrganizationID, doc.CreatedBy,
		string(doc.Status), analysis, departments, doc.Error, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get document", fmt.Errorf("document %s", id))
		}
		return nil, err
	}
	return doc, nil
}

func (r *DocumentRepository) List(ctx context.Context, filter domain.DocumentListFilter) ([]domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE organization_id = $1`
	if !filter.IncludeDeleted {
		query += ` AND status <> 'deleted'`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, filter.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func (r *DocumentRepository) BeginAnalysis(ctx context.Context, id string, staleBefore, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = 'processing', updated_at = $3
WHERE id = $1 AND (status = 'pending' OR (status = 'processing' AND updated_at < $2))
`, id, staleBefore, now)
	return r.checkTransition(ctx, res, err, id, "begin analysis")
}

func (r *DocumentRepository) CompleteAnalysis(ctx context.Context, id string, result domain.AnalysisResult, now time.Time) error {
	analysis, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = 'analyzed', analysis = $2, error_message = '', analyzed_at = $3, updated_at = $3
WHERE id = $1 AND status = 'processing'
`, id, analysis, now)
	return r.checkTransition(ctx, res, err, id, "complete analysis")
}

func (r *DocumentRepository) FailAnalysis(ctx context.Context, id string, errMessage string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = 'pending', error_message = $2, updated_at = $3
WHERE id = $1 AND status = 'processing'
`, id, errMessage, now)
	return r.checkTransition(ctx, res, err, id, "fail analysis")
}

func (r *DocumentRepository) MarkAssigned(ctx context.Context, id string, departments []string, now time.Time) error {
	payload, err := json.Marshal(nonNil(departments))
	if err != nil {
		return fmt.Errorf("marshal departments: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = 'assigned', assigned_departments = $2, assigned_at = $3, updated_at = $3
WHERE id = $1 AND status IN ('analyzed', 'assigned')
`, id, payload, now)
	return r.checkTransition(ctx, res, err, id, "mark assigned")
}

var statusTimestampColumn = map[domain.DocumentStatus]string{
	domain.StatusCompleted: "completed_at",
	domain.StatusDeleted:   "deleted_at",
	domain.StatusIgnored:   "ignored_at",
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, from []domain.DocumentStatus, to domain.DocumentStatus, now time.Time) error {
	column, ok := statusTimestampColumn[to]
	if !ok {
		return domain.WrapError(domain.ErrInvalidInput, "update status", fmt.Errorf("status %q cannot be set explicitly", to))
	}
	sources := make([]string, 0, len(from))
	for _, s := range from {
		sources = append(sources, string(s))
	}
	query := fmt.Sprintf(`
UPDATE documents
SET status = $2, %s = $3, updated_at = $3
WHERE id = $1 AND status = ANY(string_to_array($4, ','))
`, column)
	res, err := r.db.ExecContext(ctx, query, id, string(to), now, strings.Join(sources, ","))
	return r.checkTransition(ctx, res, err, id, "update status")
}

// checkTransition turns a zero-row CAS update into NotFound or Conflict
// depending on whether the document exists.
func (r *DocumentRepository) checkTransition(ctx context.Context, res sql.Result, execErr error, id, op string) error {
	if execErr != nil {
		return fmt.Errorf("%s: %w", op, execErr)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected > 0 {
		return nil
	}

	var status string
	err = r.db.QueryRowContext(ctx, `SELECT status FROM documents WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.WrapError(domain.ErrNotFound, op, fmt.Errorf("document %s", id))
	}
	if err != nil {
		return fmt.Errorf("%s: load status: %w", op, err)
	}
	return domain.WrapError(domain.ErrConflict, op, fmt.Errorf("document %s is %s", id, status))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var (
		doc                                         domain.Document
		kind, status                                string
		analysisRaw, departmentsRaw                 []byte
		analyzed, assigned, completed, deleted, ign sql.NullTime
	)
	err := row.Scan(
		&doc.ID, &doc.Name, &kind, &doc.BlobLocator, &doc.Text, &doc.MimeType, &doc.OrganizationID, &doc.CreatedBy,
		&status, &analysisRaw, &departmentsRaw, &doc.Error, &doc.CreatedAt, &doc.UpdatedAt,
		&analyzed, &assigned, &completed, &deleted, &ign,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	doc.ContentKind = domain.ContentKind(kind)
	doc.Status = domain.DocumentStatus(status)

	if len(analysisRaw) > 0 {
		var a domain.AnalysisResult
		if err := json.Unmarshal(analysisRaw, &a); err != nil {
			return nil, fmt.Errorf("unmarshal analysis: %w", err)
		}
		doc.Analysis = &a
	}
	doc.AssignedDepartments = []string{}
	if len(departmentsRaw) > 0 {
		if err := json.Unmarshal(departmentsRaw, &doc.AssignedDepartments); err != nil {
			return nil, fmt.Errorf("unmarshal departments: %w", err)
		}
	}
	doc.AnalyzedAt = nullTime(analyzed)
	doc.AssignedAt = nullTime(assigned)
	doc.CompletedAt = nullTime(completed)
	doc.DeletedAt = nullTime(deleted)
	doc.IgnoredAt = nullTime(ign)
	return &doc, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
