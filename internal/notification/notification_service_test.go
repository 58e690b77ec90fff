package notification_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go-leavehub/internal/events"
	"go-leavehub/internal/notification"
	notificationerrors "go-leavehub/internal/notification/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

type fakeNotificationRepository struct {
	mu sync.Mutex

	createFn             func(ctx context.Context, n *notification.Notification) error
	findByIDFn           func(ctx context.Context, recipientID, id string) (*notification.Notification, error)
	findAllByRecipientFn func(ctx context.Context, recipientID string) ([]notification.Notification, error)
	markReadIfUnreadFn   func(ctx context.Context, recipientID, id string, readAt time.Time) (int64, error)
	countUnreadFn        func(ctx context.Context, recipientID string) (int64, error)

	countCalls int
}

func (f *fakeNotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	if f.createFn != nil {
		return f.createFn(ctx, n)
	}
	return nil
}

func (f *fakeNotificationRepository) FindByIDAndRecipient(ctx context.Context, recipientID, id string) (*notification.Notification, error) {
	if f.findByIDFn != nil {
		return f.findByIDFn(ctx, recipientID, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeNotificationRepository) FindAllByRecipient(ctx context.Context, recipientID string) ([]notification.Notification, error) {
	if f.findAllByRecipientFn != nil {
		return f.findAllByRecipientFn(ctx, recipientID)
	}
	return nil, nil
}

func (f *fakeNotificationRepository) MarkReadIfUnread(ctx context.Context, recipientID, id string, readAt time.Time) (int64, error) {
	if f.markReadIfUnreadFn != nil {
		return f.markReadIfUnreadFn(ctx, recipientID, id, readAt)
	}
	return 1, nil
}

func (f *fakeNotificationRepository) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	f.mu.Lock()
	f.countCalls++
	f.mu.Unlock()
	if f.countUnreadFn != nil {
		return f.countUnreadFn(ctx, recipientID)
	}
	return 0, nil
}

func TestNotificationService_Create(t *testing.T) {
	ctx := context.Background()
	companyID := uuid.New().String()
	recipientID := uuid.New().String()

	t.Run("success", func(t *testing.T) {
		repo := &fakeNotificationRepository{
			createFn: func(ctx context.Context, n *notification.Notification) error {
				assert.Equal(t, uuid.MustParse(recipientID), n.RecipientID)
				assert.Equal(t, events.KindLeaveSubmitted.String(), n.Kind)
				assert.False(t, n.Read)
				return nil
			},
		}
		svc := notification.NewService(repo, nil)

		resp, err := svc.Create(ctx, companyID, recipientID, events.KindLeaveSubmitted, "Alex requested 3 days of leave", "leave-1")

		assert.NoError(t, err)
		assert.Equal(t, recipientID, resp.RecipientID)
		assert.False(t, resp.Read)
		assert.Nil(t, resp.ReadAt)
	})

	t.Run("negative duplicate source ref maps unique violation", func(t *testing.T) {
		repo := &fakeNotificationRepository{
			createFn: func(ctx context.Context, n *notification.Notification) error {
				return &pgconn.PgError{Code: "23505", ConstraintName: "uq_notifications_dedupe"}
			},
		}
		svc := notification.NewService(repo, nil)

		_, err := svc.Create(ctx, companyID, recipientID, events.KindAttendance, "Missing clock-out on 2026-08-28", "att-556")

		assert.ErrorIs(t, err, notificationerrors.ErrDuplicateNotification)
	})

	t.Run("negative unknown kind", func(t *testing.T) {
		svc := notification.NewService(&fakeNotificationRepository{}, nil)

		_, err := svc.Create(ctx, companyID, recipientID, events.Kind("GOSSIP"), "message text", "")

		assert.ErrorIs(t, err, notificationerrors.ErrInvalidKind)
	})

	t.Run("negative blank message", func(t *testing.T) {
		svc := notification.NewService(&fakeNotificationRepository{}, nil)

		_, err := svc.Create(ctx, companyID, recipientID, events.KindGeneric, "   ", "")

		assert.ErrorIs(t, err, notificationerrors.ErrMessageRequired)
	})

	t.Run("negative bad recipient id", func(t *testing.T) {
		svc := notification.NewService(&fakeNotificationRepository{}, nil)

		_, err := svc.Create(ctx, companyID, "not-a-uuid", events.KindGeneric, "message text", "")

		assert.ErrorIs(t, err, notificationerrors.ErrInvalidRecipientID)
	})
}

func TestNotificationService_MarkRead(t *testing.T) {
	ctx := context.Background()
	recipientID := uuid.New().String()
	id := uuid.New().String()

	readNotification := func(read bool) *notification.Notification {
		n := &notification.Notification{
			ID:          uuid.MustParse(id),
			RecipientID: uuid.MustParse(recipientID),
			CompanyID:   uuid.New(),
			Kind:        events.KindLeaveDecided.String(),
			Message:     "Your leave request was approved",
			Read:        read,
			CreatedAt:   time.Now().UTC(),
		}
		if read {
			at := time.Now().UTC()
			n.ReadAt = &at
		}
		return n
	}

	t.Run("success first read", func(t *testing.T) {
		repo := &fakeNotificationRepository{
			markReadIfUnreadFn: func(ctx context.Context, rid, nid string, readAt time.Time) (int64, error) {
				assert.Equal(t, recipientID, rid)
				assert.Equal(t, id, nid)
				return 1, nil
			},
			findByIDFn: func(ctx context.Context, rid, nid string) (*notification.Notification, error) {
				return readNotification(true), nil
			},
		}
		svc := notification.NewService(repo, nil)

		resp, err := svc.MarkRead(ctx, recipientID, id)

		assert.NoError(t, err)
		assert.True(t, resp.Read)
		assert.NotNil(t, resp.ReadAt)
	})

	t.Run("already read is a no-op success", func(t *testing.T) {
		repo := &fakeNotificationRepository{
			markReadIfUnreadFn: func(ctx context.Context, rid, nid string, readAt time.Time) (int64, error) {
				return 0, nil
			},
			findByIDFn: func(ctx context.Context, rid, nid string) (*notification.Notification, error) {
				return readNotification(true), nil
			},
		}
		svc := notification.NewService(repo, nil)

		resp, err := svc.MarkRead(ctx, recipientID, id)

		assert.NoError(t, err)
		assert.True(t, resp.Read)
	})

	t.Run("negative unknown or foreign id", func(t *testing.T) {
		repo := &fakeNotificationRepository{
			markReadIfUnreadFn: func(ctx context.Context, rid, nid string, readAt time.Time) (int64, error) {
				return 0, nil
			},
			findByIDFn: func(ctx context.Context, rid, nid string) (*notification.Notification, error) {
				return nil, gorm.ErrRecordNotFound
			},
		}
		svc := notification.NewService(repo, nil)

		_, err := svc.MarkRead(ctx, recipientID, id)

		assert.ErrorIs(t, err, notificationerrors.ErrNotificationNotFound)
	})

	t.Run("negative repo error", func(t *testing.T) {
		repo := &fakeNotificationRepository{
			markReadIfUnreadFn: func(ctx context.Context, rid, nid string, readAt time.Time) (int64, error) {
				return 0, errors.New("db error")
			},
		}
		svc := notification.NewService(repo, nil)

		_, err := svc.MarkRead(ctx, recipientID, id)

		assert.Error(t, err)
	})
}

func TestNotificationService_ListByRecipient(t *testing.T) {
	ctx := context.Background()
	recipientID := uuid.New().String()

	t.Run("success preserves order", func(t *testing.T) {
		newer := uuid.New()
		older := uuid.New()
		repo := &fakeNotificationRepository{
			findAllByRecipientFn: func(ctx context.Context, rid string) ([]notification.Notification, error) {
				assert.Equal(t, recipientID, rid)
				return []notification.Notification{
					{ID: newer, RecipientID: uuid.MustParse(recipientID), Kind: events.KindLeaveDecided.String(), Message: "m1", CreatedAt: time.Now().UTC()},
					{ID: older, RecipientID: uuid.MustParse(recipientID), Kind: events.KindLeaveSubmitted.String(), Message: "m2", CreatedAt: time.Now().UTC().Add(-time.Hour)},
				}, nil
			},
		}
		svc := notification.NewService(repo, nil)

		resp, err := svc.ListByRecipient(ctx, recipientID)

		assert.NoError(t, err)
		assert.Len(t, resp, 2)
		assert.Equal(t, newer.String(), resp[0].ID)
		assert.Equal(t, older.String(), resp[1].ID)
	})

	t.Run("negative bad recipient id", func(t *testing.T) {
		svc := notification.NewService(&fakeNotificationRepository{}, nil)

		_, err := svc.ListByRecipient(ctx, "whoever")

		assert.ErrorIs(t, err, notificationerrors.ErrInvalidRecipientID)
	})
}

func TestNotificationService_UnreadCount(t *testing.T) {
	ctx := context.Background()
	recipientID := uuid.New().String()

	t.Run("counts from repository without cache", func(t *testing.T) {
		repo := &fakeNotificationRepository{
			countUnreadFn: func(ctx context.Context, rid string) (int64, error) {
				return 4, nil
			},
		}
		svc := notification.NewService(repo, nil)

		count, err := svc.UnreadCount(ctx, recipientID)

		assert.NoError(t, err)
		assert.Equal(t, int64(4), count)
	})

	t.Run("negative repo error", func(t *testing.T) {
		repo := &fakeNotificationRepository{
			countUnreadFn: func(ctx context.Context, rid string) (int64, error) {
				return 0, errors.New("db error")
			},
		}
		svc := notification.NewService(repo, nil)

		_, err := svc.UnreadCount(ctx, recipientID)

		assert.Error(t, err)
	})
}
