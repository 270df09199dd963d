package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/doc-triage/internal/core/domain"
)

// AssignmentRepository owns received-document sets and personal statuses.
// Every write is a single idempotent statement keyed on the natural key, so
// concurrent fan-out workers never block each other.
type AssignmentRepository struct {
	db *sql.DB
}

func NewAssignmentRepository(db *sql.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

func (r *AssignmentRepository) AddReceivedDocument(ctx context.Context, employeeID, documentID string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
INSERT INTO received_documents (employee_id, document_id, received_at)
VALUES ($1, $2, $3)
ON CONFLICT (employee_id, document_id) DO NOTHING
`, employeeID, documentID, now)
	if err != nil {
		return false, fmt.Errorf("insert received document: %w", err)
	}
	return inserted(res)
}

func (r *AssignmentRepository) EnsurePersonalStatus(ctx context.Context, documentID, employeeID string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
INSERT INTO personal_statuses (document_id, employee_id, status, comment, updated_at)
VALUES ($1, $2, 'pending', NULL, $3)
ON CONFLICT (document_id, employee_id) DO NOTHING
`, documentID, employeeID, now)
	if err != nil {
		return false, fmt.Errorf("insert personal status: %w", err)
	}
	return inserted(res)
}

func (r *AssignmentRepository) HasReceived(ctx context.Context, employeeID, documentID string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, `
SELECT EXISTS (SELECT 1 FROM received_documents WHERE employee_id = $1 AND document_id = $2)
`, employeeID, documentID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check received document: %w", err)
	}
	return ok, nil
}

func (r *AssignmentRepository) ListReceivedDocumentIDs(ctx context.Context, employeeID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT document_id FROM received_documents WHERE employee_id = $1 ORDER BY received_at DESC
`, employeeID)
	if err != nil {
		return nil, fmt.Errorf("list received documents: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan received document: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate received documents: %w", err)
	}
	return ids, nil
}

func (r *AssignmentRepository) UpsertPersonalStatus(ctx context.Context, record domain.PersonalStatusRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO personal_statuses (document_id, employee_id, status, comment, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (document_id, employee_id)
DO UPDATE SET status = EXCLUDED.status, comment = EXCLUDED.comment, updated_at = EXCLUDED.updated_at
`, record.DocumentID, record.EmployeeID, string(record.Status), nullString(record.Comment), record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert personal status: %w", err)
	}
	return nil
}

func (r *AssignmentRepository) GetPersonalStatus(ctx context.Context, documentID, employeeID string) (*domain.PersonalStatusRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT document_id, employee_id, status, comment, updated_at
FROM personal_statuses
WHERE document_id = $1 AND employee_id = $2
`, documentID, employeeID)
	rec, err := scanPersonalStatus(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.WrapError(domain.ErrNotFound, "get personal status", fmt.Errorf("personal status %s/%s", documentID, employeeID))
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *AssignmentRepository) ListPersonalStatuses(ctx context.Context, documentID string) ([]domain.PersonalStatusRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT document_id, employee_id, status, comment, updated_at
FROM personal_statuses
WHERE document_id = $1
ORDER BY employee_id
`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list personal statuses: %w", err)
	}
	defer rows.Close()

	out := make([]domain.PersonalStatusRecord, 0)
	for rows.Next() {
		rec, err := scanPersonalStatus(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate personal statuses: %w", err)
	}
	return out, nil
}

func scanPersonalStatus(row rowScanner) (*domain.PersonalStatusRecord, error) {
	var (
		rec     domain.PersonalStatusRecord
		status  string
		comment sql.NullString
	)
	if err := row.Scan(&rec.DocumentID, &rec.EmployeeID, &status, &comment, &rec.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan personal status: %w", err)
	}
	rec.Status = domain.PersonalStatus(status)
	if comment.Valid {
		c := comment.String
		rec.Comment = &c
	}
	return &rec, nil
}

func inserted(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
