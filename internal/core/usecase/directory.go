package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/doc-triage/internal/core/domain"
	"github.com/kirillkom/doc-triage/internal/core/ports"
)

type DirectoryUseCase struct {
	directory ports.Directory
	notifier  ports.Notifier
	now       func() time.Time
}

func NewDirectoryUseCase(directory ports.Directory, notifier ports.Notifier) *DirectoryUseCase {
	return &DirectoryUseCase{
		directory: directory,
		notifier:  notifier,
		now:       utcNow,
	}
}

func (uc *DirectoryUseCase) CreateDepartment(ctx context.Context, actor domain.Actor, name, description string) (*domain.Department, error) {
	const op = "create department"
	if err := requireAdmin(actor, op); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, errors.New("department name is required"))
	}

	existing, err := uc.directory.ListDepartments(ctx, actor.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	for _, d := range existing {
		if strings.EqualFold(d.Name, name) {
			return nil, domain.WrapError(domain.ErrConflict, op, fmt.Errorf("department %q already exists", name))
		}
	}

	dept := &domain.Department{
		ID:             uuid.NewString(),
		OrganizationID: actor.OrganizationID,
		Name:           name,
		Description:    strings.TrimSpace(description),
		CreatedBy:      actor.ID,
		CreatedAt:      uc.now(),
	}
	if err := uc.directory.CreateDepartment(ctx, dept); err != nil {
		return nil, fmt.Errorf("create department: %w", err)
	}
	return dept, nil
}

// ListDepartments groups the organization's non-admin employees under their
// department.
func (uc *DirectoryUseCase) ListDepartments(ctx context.Context, actor domain.Actor) ([]domain.DepartmentWithEmployees, error) {
	if err := requireAdmin(actor, "list departments"); err != nil {
		return nil, err
	}
	departments, err := uc.directory.ListDepartments(ctx, actor.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	employees, err := uc.directory.ListEmployees(ctx, actor.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}

	byDepartment := make(map[string][]domain.Employee)
	for _, emp := range employees {
		if emp.IsAdmin || emp.Department == "" {
			continue
		}
		byDepartment[emp.Department] = append(byDepartment[emp.Department], emp)
	}

	out := make([]domain.DepartmentWithEmployees, 0, len(departments))
	for _, d := range departments {
		members := byDepartment[d.Name]
		if members == nil {
			members = []domain.Employee{}
		}
		out = append(out, domain.DepartmentWithEmployees{
			Department:    d,
			EmployeeCount: len(members),
			Employees:     members,
		})
	}
	return out, nil
}

func (uc *DirectoryUseCase) AddEmployee(ctx context.Context, actor domain.Actor, name, email, department string) (*domain.Employee, error) {
	const op = "add employee"
	if err := requireAdmin(actor, op); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	department = strings.TrimSpace(department)
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("invalid email: %w", err))
	}
	if name == "" || department == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, errors.New("name and department are required"))
	}
	email = domain.NormalizeSubject(addr.Address)

	if err := uc.requireDepartment(ctx, actor.OrganizationID, department); err != nil {
		return nil, err
	}
	if _, err := uc.directory.FindEmployeeByEmail(ctx, email); err == nil {
		return nil, domain.WrapError(domain.ErrConflict, op, fmt.Errorf("employee %s already exists", email))
	} else if !domain.IsKind(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("find employee by email: %w", err)
	}

	emp := &domain.Employee{
		ID:             uuid.NewString(),
		Email:          email,
		Name:           name,
		OrganizationID: actor.OrganizationID,
		Department:     department,
		CreatedAt:      uc.now(),
	}
	if err := uc.directory.CreateEmployee(ctx, emp); err != nil {
		return nil, fmt.Errorf("create employee: %w", err)
	}
	uc.sendWelcome(ctx, emp)
	return emp, nil
}

func (uc *DirectoryUseCase) requireDepartment(ctx context.Context, organizationID, name string) error {
	departments, err := uc.directory.ListDepartments(ctx, organizationID)
	if err != nil {
		return fmt.Errorf("list departments: %w", err)
	}
	for _, d := range departments {
		if d.Name == name {
			return nil
		}
	}
	return domain.WrapError(domain.ErrNotFound, "add employee", fmt.Errorf("department %q", name))
}

func (uc *DirectoryUseCase) sendWelcome(ctx context.Context, emp *domain.Employee) {
	if uc.notifier == nil {
		return
	}
	body := fmt.Sprintf(
		"Hello %s,\n\nYou have been added to the %s department.\nSign in with a one-time code sent to %s.\n",
		emp.Name, emp.Department, emp.Email,
	)
	if err := uc.notifier.Send(ctx, emp.Email, "Welcome to document triage", body); err != nil {
		slog.Warn("welcome_notification_failed", "employee_id", emp.ID, "error", err)
	}
}
