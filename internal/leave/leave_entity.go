package leave

import (
	"time"

	"github.com/google/uuid"
)

// Leave is the durable record of a time-off request. Records are never
// deleted; a decided request stays immutable apart from audit timestamps.
type Leave struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	CompanyID  uuid.UUID `gorm:"type:uuid;not null;index:idx_leaves_company_status"`
	EmployeeID uuid.UUID `gorm:"type:uuid;not null;index:idx_leaves_employee_status"`

	LeaveType string    `gorm:"type:varchar(30);not null;default:'ANNUAL'"`
	StartDate time.Time `gorm:"type:date;not null"`
	EndDate   time.Time `gorm:"type:date;not null"`
	TotalDays int       `gorm:"type:int;not null;default:1"`
	Reason    string    `gorm:"type:text"`

	Status      string     `gorm:"type:varchar(20);not null;default:'PENDING';index:idx_leaves_company_status;index:idx_leaves_employee_status"`
	RequestedAt time.Time  `gorm:"not null"`
	DecidedBy   *uuid.UUID `gorm:"type:uuid"`
	DecidedAt   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
