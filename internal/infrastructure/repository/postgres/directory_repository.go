package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kirillkom/doc-triage/internal/core/domain"
)

type DirectoryRepository struct {
	db *sql.DB
}

func NewDirectoryRepository(db *sql.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

const employeeColumns = `id, email, name, organization_id, department, is_admin, created_at`

func (r *DirectoryRepository) ListEmployees(ctx context.Context, organizationID string) ([]domain.Employee, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE organization_id = $1 ORDER BY name`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Employee, 0)
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *emp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate employees: %w", err)
	}
	return out, nil
}

func (r *DirectoryRepository) GetEmployee(ctx context.Context, id string) (*domain.Employee, error) {
	emp, err := scanEmployee(r.db.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.WrapError(domain.ErrNotFound, "get employee", fmt.Errorf("employee %s", id))
	}
	return emp, err
}

func (r *DirectoryRepository) FindEmployeeByEmail(ctx context.Context, email string) (*domain.Employee, error) {
	email = domain.NormalizeSubject(email)
	emp, err := scanEmployee(r.db.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE email = $1`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.WrapError(domain.ErrNotFound, "find employee", fmt.Errorf("employee %s", email))
	}
	return emp, err
}

func (r *DirectoryRepository) ListDepartments(ctx context.Context, organizationID string) ([]domain.Department, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, organization_id, name, description, created_by, created_at
FROM departments
WHERE organization_id = $1
ORDER BY name
`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Department, 0)
	for rows.Next() {
		var d domain.Department
		if err := rows.Scan(&d.ID, &d.OrganizationID, &d.Name, &d.Description, &d.CreatedBy, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan department: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate departments: %w", err)
	}
	return out, nil
}

func (r *DirectoryRepository) CreateDepartment(ctx context.Context, dept *domain.Department) error {
	res, err := r.db.ExecContext(ctx, `
INSERT INTO departments (id, organization_id, name, description, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (organization_id, name) DO NOTHING
`, dept.ID, dept.OrganizationID, dept.Name, dept.Description, dept.CreatedBy, dept.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert department: %w", err)
	}
	ok, err := inserted(res)
	if err != nil {
		return err
	}
	if !ok {
		return domain.WrapError(domain.ErrConflict, "insert department", fmt.Errorf("department %q exists", dept.Name))
	}
	return nil
}

func (r *DirectoryRepository) CreateEmployee(ctx context.Context, employee *domain.Employee) error {
	res, err := r.db.ExecContext(ctx, `
INSERT INTO employees (id, email, name, organization_id, department, is_admin, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (email) DO NOTHING
`, employee.ID, domain.NormalizeSubject(employee.Email), employee.Name, employee.OrganizationID,
		employee.Department, employee.IsAdmin, employee.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert employee: %w", err)
	}
	ok, err := inserted(res)
	if err != nil {
		return err
	}
	if !ok {
		return domain.WrapError(domain.ErrConflict, "insert employee", fmt.Errorf("employee %s exists", employee.Email))
	}
	return nil
}

func scanEmployee(row rowScanner) (*domain.Employee, error) {
	var emp domain.Employee
	if err := row.Scan(&emp.ID, &emp.Email, &emp.Name, &emp.OrganizationID, &emp.Department, &emp.IsAdmin, &emp.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan employee: %w", err)
	}
	return &emp, nil
}
