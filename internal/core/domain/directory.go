package domain

import "time"

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

// Actor is the authenticated caller of a use case.
type Actor struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Department     string `json:"department,omitempty"`
	Role           Role   `json:"role"`
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

type Employee struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	OrganizationID string    `json:"organization_id"`
	Department     string    `json:"department,omitempty"`
	IsAdmin        bool      `json:"is_admin"`
	CreatedAt      time.Time `json:"created_at"`
}

// Actor derives the caller identity carried in access tokens.
func (e Employee) Actor() Actor {
	role := RoleEmployee
	if e.IsAdmin {
		role = RoleAdmin
	}
	return Actor{
		ID:             e.ID,
		OrganizationID: e.OrganizationID,
		Department:     e.Department,
		Role:           role,
	}
}

type Department struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	CreatedBy      string    `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
}

type DepartmentWithEmployees struct {
	Department
	EmployeeCount int        `json:"employee_count"`
	Employees     []Employee `json:"employees"`
}

// Notification is an outbound message for the notification channel.
type Notification struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}
