package directory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Directory resolves employee display names for notification message text.
// It is a read-only collaborator; profile CRUD lives in another system.
//
//go:generate mockgen -source=directory.go -destination=mock/directory_mock.go -package=mock
type Directory interface {
	DisplayName(ctx context.Context, employeeID string) (string, error)
	// Email returns an empty string when the employee has no known address.
	Email(ctx context.Context, employeeID string) (string, error)
}

type Employee struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CompanyID uuid.UUID `gorm:"type:uuid;index"`
	FullName  string
	Email     string `gorm:"uniqueIndex"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type gormDirectory struct {
	db *gorm.DB
}

func NewGormDirectory(db *gorm.DB) Directory {
	return &gormDirectory{db: db}
}

// DisplayName falls back to the raw id when the employee row is missing, so
// a stale reference never blocks a notification.
func (d *gormDirectory) DisplayName(ctx context.Context, employeeID string) (string, error) {
	var e Employee
	err := d.db.WithContext(ctx).
		Select("full_name").
		First(&e, "id = ?", employeeID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return employeeID, nil
		}
		return "", err
	}
	if e.FullName == "" {
		return employeeID, nil
	}
	return e.FullName, nil
}

func (d *gormDirectory) Email(ctx context.Context, employeeID string) (string, error) {
	var e Employee
	err := d.db.WithContext(ctx).
		Select("email").
		First(&e, "id = ?", employeeID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return e.Email, nil
}
