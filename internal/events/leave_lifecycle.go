package events

import "time"

const LeaveLifecycleTopic = "hr.leave.lifecycle.v1"

const (
	LeaveEventSubmitted = "leave.submitted"
	LeaveEventApproved  = "leave.approved"
	LeaveEventRejected  = "leave.rejected"
)

// LeaveLifecycleEvent is published through the outbox on every workflow
// transition, for downstream systems (reporting, calendar sync). It is not
// part of the realtime push path.
type LeaveLifecycleEvent struct {
	EventType  string    `json:"event_type"`
	LeaveID    string    `json:"leave_id"`
	CompanyID  string    `json:"company_id"`
	EmployeeID string    `json:"employee_id"`
	Status     string    `json:"status"`
	DecidedBy  string    `json:"decided_by,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
