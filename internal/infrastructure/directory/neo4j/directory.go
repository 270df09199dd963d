// Package neo4j stores organization membership as a graph:
// (:Employee)-[:WORKS_IN]->(:Department), both scoped by organization_id.
package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kirillkom/doc-triage/internal/core/domain"
)

type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

type Directory struct {
	driver   neo4j.DriverWithContext
	database string
}

func New(ctx context.Context, cfg Config) (*Directory, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	return &Directory{driver: driver, database: cfg.Database}, nil
}

func (d *Directory) Close(ctx context.Context) error {
	return d.driver.Close(ctx)
}

// EnsureSchema creates the uniqueness constraints the queries rely on.
func (d *Directory) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{
		"CREATE CONSTRAINT employee_id IF NOT EXISTS FOR (e:Employee) REQUIRE e.id IS UNIQUE",
		"CREATE CONSTRAINT employee_email IF NOT EXISTS FOR (e:Employee) REQUIRE e.email IS UNIQUE",
		"CREATE CONSTRAINT department_id IF NOT EXISTS FOR (d:Department) REQUIRE d.id IS UNIQUE",
	} {
		if _, err := d.write(ctx, stmt, nil); err != nil {
			return fmt.Errorf("ensure neo4j schema: %w", err)
		}
	}
	return nil
}

const employeeProjection = `
OPTIONAL MATCH (e)-[:WORKS_IN]->(d:Department)
RETURN e.id AS id, e.email AS email, e.name AS name, e.organization_id AS organization_id,
       coalesce(d.name, '') AS department, coalesce(e.is_admin, false) AS is_admin, e.created_at AS created_at`

func (d *Directory) ListEmployees(ctx context.Context, organizationID string) ([]domain.Employee, error) {
	result, err := d.read(ctx,
		"MATCH (e:Employee {organization_id: $org})"+employeeProjection+" ORDER BY name",
		map[string]any{"org": organizationID})
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "list employees", err)
	}
	out := make([]domain.Employee, 0, len(result.Records))
	for _, record := range result.Records {
		emp, err := employeeFromRecord(record)
		if err != nil {
			return nil, err
		}
		out = append(out, emp)
	}
	return out, nil
}

func (d *Directory) GetEmployee(ctx context.Context, id string) (*domain.Employee, error) {
	return d.singleEmployee(ctx, "MATCH (e:Employee {id: $id})"+employeeProjection, map[string]any{"id": id}, id)
}

func (d *Directory) FindEmployeeByEmail(ctx context.Context, email string) (*domain.Employee, error) {
	email = domain.NormalizeSubject(email)
	return d.singleEmployee(ctx, "MATCH (e:Employee {email: $email})"+employeeProjection, map[string]any{"email": email}, email)
}

func (d *Directory) singleEmployee(ctx context.Context, query string, params map[string]any, key string) (*domain.Employee, error) {
	result, err := d.read(ctx, query, params)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "get employee", err)
	}
	if len(result.Records) == 0 {
		return nil, domain.WrapError(domain.ErrNotFound, "get employee", fmt.Errorf("employee %s", key))
	}
	emp, err := employeeFromRecord(result.Records[0])
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

func (d *Directory) ListDepartments(ctx context.Context, organizationID string) ([]domain.Department, error) {
	result, err := d.read(ctx, `
MATCH (d:Department {organization_id: $org})
RETURN d.id AS id, d.organization_id AS organization_id, d.name AS name,
       coalesce(d.description, '') AS description, d.created_by AS created_by, d.created_at AS created_at
ORDER BY name`, map[string]any{"org": organizationID})
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "list departments", err)
	}
	out := make([]domain.Department, 0, len(result.Records))
	for _, record := range result.Records {
		dept, err := departmentFromRecord(record)
		if err != nil {
			return nil, err
		}
		out = append(out, dept)
	}
	return out, nil
}

func (d *Directory) CreateDepartment(ctx context.Context, dept *domain.Department) error {
	result, err := d.write(ctx, `
OPTIONAL MATCH (existing:Department {organization_id: $org, name: $name})
WITH existing WHERE existing IS NULL
CREATE (d:Department {id: $id, organization_id: $org, name: $name, description: $description,
                      created_by: $created_by, created_at: $created_at})
RETURN d.id AS id`, map[string]any{
		"id":          dept.ID,
		"org":         dept.OrganizationID,
		"name":        dept.Name,
		"description": dept.Description,
		"created_by":  dept.CreatedBy,
		"created_at":  dept.CreatedAt,
	})
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "insert department", err)
	}
	if len(result.Records) == 0 {
		return domain.WrapError(domain.ErrConflict, "insert department", fmt.Errorf("department %q exists", dept.Name))
	}
	return nil
}

func (d *Directory) CreateEmployee(ctx context.Context, employee *domain.Employee) error {
	result, err := d.write(ctx, `
OPTIONAL MATCH (existing:Employee {email: $email})
WITH existing WHERE existing IS NULL
CREATE (e:Employee {id: $id, email: $email, name: $name, organization_id: $org,
                    is_admin: $is_admin, created_at: $created_at})
WITH e
OPTIONAL MATCH (d:Department {organization_id: $org, name: $department})
FOREACH (_ IN CASE WHEN d IS NULL THEN [] ELSE [1] END | CREATE (e)-[:WORKS_IN]->(d))
RETURN e.id AS id`, map[string]any{
		"id":         employee.ID,
		"email":      domain.NormalizeSubject(employee.Email),
		"name":       employee.Name,
		"org":        employee.OrganizationID,
		"department": employee.Department,
		"is_admin":   employee.IsAdmin,
		"created_at": employee.CreatedAt,
	})
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "insert employee", err)
	}
	if len(result.Records) == 0 {
		return domain.WrapError(domain.ErrConflict, "insert employee", fmt.Errorf("employee %s exists", employee.Email))
	}
	return nil
}

func (d *Directory) read(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	return neo4j.ExecuteQuery(ctx, d.driver, query, params, neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(d.database), neo4j.ExecuteQueryWithReadersRouting())
}

func (d *Directory) write(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	return neo4j.ExecuteQuery(ctx, d.driver, query, params, neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(d.database))
}

func employeeFromRecord(record *neo4j.Record) (domain.Employee, error) {
	var (
		emp domain.Employee
		err error
	)
	if emp.ID, err = stringValue(record, "id"); err != nil {
		return emp, err
	}
	if emp.Email, err = stringValue(record, "email"); err != nil {
		return emp, err
	}
	if emp.Name, err = stringValue(record, "name"); err != nil {
		return emp, err
	}
	if emp.OrganizationID, err = stringValue(record, "organization_id"); err != nil {
		return emp, err
	}
	if emp.Department, err = stringValue(record, "department"); err != nil {
		return emp, err
	}
	if emp.IsAdmin, _, err = neo4j.GetRecordValue[bool](record, "is_admin"); err != nil {
		return emp, fmt.Errorf("decode employee is_admin: %w", err)
	}
	if emp.CreatedAt, err = timeValue(record, "created_at"); err != nil {
		return emp, err
	}
	return emp, nil
}

func departmentFromRecord(record *neo4j.Record) (domain.Department, error) {
	var (
		dept domain.Department
		err  error
	)
	if dept.ID, err = stringValue(record, "id"); err != nil {
		return dept, err
	}
	if dept.OrganizationID, err = stringValue(record, "organization_id"); err != nil {
		return dept, err
	}
	if dept.Name, err = stringValue(record, "name"); err != nil {
		return dept, err
	}
	if dept.Description, err = stringValue(record, "description"); err != nil {
		return dept, err
	}
	if dept.CreatedBy, err = stringValue(record, "created_by"); err != nil {
		return dept, err
	}
	if dept.CreatedAt, err = timeValue(record, "created_at"); err != nil {
		return dept, err
	}
	return dept, nil
}

// stringValue treats a null property as the empty string.
func stringValue(record *neo4j.Record, key string) (string, error) {
	v, _, err := neo4j.GetRecordValue[string](record, key)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", key, err)
	}
	return v, nil
}

func timeValue(record *neo4j.Record, key string) (time.Time, error) {
	v, isNil, err := neo4j.GetRecordValue[time.Time](record, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode %s: %w", key, err)
	}
	if isNil {
		return time.Time{}, nil
	}
	return v.UTC(), nil
}
