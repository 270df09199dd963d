package domain

import "time"

type PersonalStatus string

const (
	PersonalPending    PersonalStatus = "pending"
	PersonalInProgress PersonalStatus = "in_progress"
	PersonalDone       PersonalStatus = "done"
	PersonalIgnored    PersonalStatus = "ignored"
)

func (s PersonalStatus) Valid() bool {
	switch s {
	case PersonalPending, PersonalInProgress, PersonalDone, PersonalIgnored:
		return true
	default:
		return false
	}
}

// PersonalStatusRecord is one employee's own tracking state for one assigned
// document. (DocumentID, EmployeeID) is unique.
type PersonalStatusRecord struct {
	DocumentID string         `json:"document_id"`
	EmployeeID string         `json:"employee_id"`
	Status     PersonalStatus `json:"status"`
	Comment    *string        `json:"comment,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

type AssignmentOutcome struct {
	DocumentID          string   `json:"document_id"`
	Departments         []string `json:"departments"`
	NewlyAssigned       []string `json:"newly_assigned"`
	AssignedDepartments []string `json:"assigned_departments"`
}

// EmployeeStatusView enriches a personal status record for the admin board.
type EmployeeStatusView struct {
	PersonalStatusRecord
	EmployeeName   string `json:"employee_name,omitempty"`
	EmployeeEmail  string `json:"employee_email,omitempty"`
	DepartmentName string `json:"department_name,omitempty"`
}

type StatusBoard struct {
	DocumentID   string               `json:"document_id"`
	DocumentName string               `json:"document_name"`
	Statuses     []EmployeeStatusView `json:"employee_statuses"`
}

// EmployeeDocument is a received document merged with the employee's status.
type EmployeeDocument struct {
	Document
	PersonalStatus  PersonalStatus `json:"personal_status,omitempty"`
	PersonalComment *string        `json:"personal_comment,omitempty"`
}
