package notification

import (
	"time"

	"github.com/google/uuid"
)

// Notification is the durable, per-recipient record of a domain event. It is
// only ever created by the event bridge and only ever mutated by its
// recipient's MarkRead. Records are never deleted.
type Notification struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	RecipientID uuid.UUID `gorm:"type:uuid;not null;index:idx_notifications_recipient_created,priority:1;uniqueIndex:uq_notifications_dedupe,priority:1"`
	CompanyID   uuid.UUID `gorm:"type:uuid;not null"`

	Kind    string `gorm:"type:varchar(30);not null;uniqueIndex:uq_notifications_dedupe,priority:2"`
	Message string `gorm:"type:text;not null"`
	// SourceRef deduplicates redelivered broker events per recipient and
	// kind; records without a source are exempt from the constraint.
	SourceRef string `gorm:"type:varchar(100);uniqueIndex:uq_notifications_dedupe,priority:3,where:source_ref <> ''"`

	Read   bool       `gorm:"not null;default:false"`
	ReadAt *time.Time

	CreatedAt time.Time `gorm:"index:idx_notifications_recipient_created,priority:2,sort:desc"`
	UpdatedAt time.Time
}
