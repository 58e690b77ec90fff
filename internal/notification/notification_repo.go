package notification

import (
	"context"
	"time"

	"gorm.io/gorm"
)

//go:generate mockgen -source=notification_repo.go -destination=mock/notification_repo_mock.go -package=mock
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	FindByIDAndRecipient(ctx context.Context, recipientID, id string) (*Notification, error)
	FindAllByRecipient(ctx context.Context, recipientID string) ([]Notification, error)
	// MarkReadIfUnread flips read only when it is still false and reports how
	// many rows changed. Zero rows with an existing record means the
	// notification was already read.
	MarkReadIfUnread(ctx context.Context, recipientID, id string, readAt time.Time) (int64, error)
	CountUnread(ctx context.Context, recipientID string) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, n *Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *repository) FindByIDAndRecipient(ctx context.Context, recipientID, id string) (*Notification, error) {
	var n Notification
	err := r.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		First(&n, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *repository) FindAllByRecipient(ctx context.Context, recipientID string) ([]Notification, error) {
	var notifications []Notification
	err := r.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC").
		Find(&notifications).Error
	return notifications, err
}

func (r *repository) MarkReadIfUnread(ctx context.Context, recipientID, id string, readAt time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&Notification{}).
		Where("id = ?", id).
		Where("recipient_id = ?", recipientID).
		Where("read = ?", false).
		Updates(map[string]any{
			"read":    true,
			"read_at": readAt,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&Notification{}).
		Where("recipient_id = ?", recipientID).
		Where("read = ?", false).
		Count(&count).Error
	return count, err
}
