package events

import "time"

const (
	AttendanceEventsTopic = "hr.attendance.events.v1"
	PayrollEventsTopic    = "hr.payroll.events.v1"
)

// AttendanceEvent arrives from the attendance system. The bridge treats it
// opaquely: it only needs a recipient and a message.
type AttendanceEvent struct {
	EventType  string    `json:"event_type"`
	EmployeeID string    `json:"employee_id"`
	CompanyID  string    `json:"company_id"`
	Message    string    `json:"message"`
	SourceRef  string    `json:"source_ref"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PayrollEvent arrives from the payroll system, same opaque contract.
type PayrollEvent struct {
	EventType  string    `json:"event_type"`
	EmployeeID string    `json:"employee_id"`
	CompanyID  string    `json:"company_id"`
	Message    string    `json:"message"`
	SourceRef  string    `json:"source_ref"`
	OccurredAt time.Time `json:"occurred_at"`
}
