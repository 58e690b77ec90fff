package leave

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

//go:generate mockgen -source=leave_repo.go -destination=mock/leave_repo_mock.go -package=mock
type Repository interface {
	WithTx(tx *sql.Tx) Repository
	Create(ctx context.Context, l *Leave) error
	FindByIDAndCompany(ctx context.Context, companyID, id string) (*Leave, error)
	FindAllByCompany(ctx context.Context, companyID string) ([]Leave, error)
	FindByEmployee(ctx context.Context, companyID, employeeID string) ([]Leave, error)
	FindByStatus(ctx context.Context, companyID, status string) ([]Leave, error)
	// DecideIfPending applies the terminal status only when the current
	// status is still PENDING, and reports how many rows changed. Zero rows
	// means the request was either unknown or already decided.
	DecideIfPending(ctx context.Context, id, status string, decidedBy uuid.UUID, decidedAt time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
	tx *sql.Tx
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *sql.Tx) Repository {
	return &repository{db: r.db, tx: tx}
}

// Writes go through raw SQL so they share the caller's transaction with the
// outbox append.
func (r *repository) Create(ctx context.Context, l *Leave) error {
	query := `
        INSERT INTO leaves (
            id, company_id, employee_id, leave_type, start_date, end_date,
            total_days, reason, status, requested_at, created_at, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
    `
	_, err := r.execer().ExecContext(
		ctx, query,
		l.ID, l.CompanyID, l.EmployeeID, l.LeaveType, l.StartDate, l.EndDate,
		l.TotalDays, l.Reason, l.Status, l.RequestedAt,
	)
	return err
}

func (r *repository) FindByIDAndCompany(ctx context.Context, companyID, id string) (*Leave, error) {
	var l Leave
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		First(&l, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *repository) FindAllByCompany(ctx context.Context, companyID string) ([]Leave, error) {
	var leaves []Leave
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("requested_at DESC").
		Find(&leaves).Error
	return leaves, err
}

func (r *repository) FindByEmployee(ctx context.Context, companyID, employeeID string) ([]Leave, error) {
	var leaves []Leave
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Where("employee_id = ?", employeeID).
		Order("requested_at DESC").
		Find(&leaves).Error
	return leaves, err
}

func (r *repository) FindByStatus(ctx context.Context, companyID, status string) ([]Leave, error) {
	var leaves []Leave
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Where("status = ?", status).
		Order("requested_at DESC").
		Find(&leaves).Error
	return leaves, err
}

func (r *repository) DecideIfPending(ctx context.Context, id, status string, decidedBy uuid.UUID, decidedAt time.Time) (int64, error) {
	query := `
        UPDATE leaves
        SET status = $2, decided_by = $3, decided_at = $4, updated_at = NOW()
        WHERE id = $1 AND status = $5
    `
	res, err := r.execer().ExecContext(ctx, query, id, status, decidedBy, decidedAt, StatusPending)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *repository) execer() interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
} {
	if r.tx != nil {
		return r.tx
	}
	if db, err := r.db.DB(); err == nil {
		return db
	}
	return noopExecer{}
}

type noopExecer struct{}

func (noopExecer) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, sql.ErrConnDone
}
