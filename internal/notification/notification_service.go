package notification

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go-leavehub/internal/events"
	notificationerrors "go-leavehub/internal/notification/errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

const unreadCacheTTL = time.Minute

//go:generate mockgen -source=notification_service.go -destination=mock/notification_service_mock.go -package=mock
type Service interface {
	Create(ctx context.Context, companyID, recipientID string, kind events.Kind, message, sourceRef string) (NotificationResponse, error)
	MarkRead(ctx context.Context, recipientID, id string) (NotificationResponse, error)
	ListByRecipient(ctx context.Context, recipientID string) ([]NotificationResponse, error)
	UnreadCount(ctx context.Context, recipientID string) (int64, error)
}

type service struct {
	repo   Repository
	rdb    *redis.Client
	group  singleflight.Group
	logger *zap.Logger
}

func NewService(repo Repository, rdb *redis.Client, logger ...*zap.Logger) Service {
	l := zap.L().Named("notification.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("notification.service")
	}
	return &service{repo: repo, rdb: rdb, logger: l}
}

// Create is a pure append. Validation stops at required fields and kind
// membership; the bridge owns message construction.
func (s *service) Create(ctx context.Context, companyID, recipientID string, kind events.Kind, message, sourceRef string) (NotificationResponse, error) {
	recipientUUID, err := uuid.Parse(recipientID)
	if err != nil {
		return NotificationResponse{}, notificationerrors.ErrInvalidRecipientID
	}
	companyUUID, err := uuid.Parse(companyID)
	if err != nil {
		return NotificationResponse{}, notificationerrors.ErrInvalidRecipientID
	}
	if !kind.Valid() {
		return NotificationResponse{}, notificationerrors.ErrInvalidKind
	}
	if strings.TrimSpace(message) == "" {
		return NotificationResponse{}, notificationerrors.ErrMessageRequired
	}

	n := &Notification{
		ID:          uuid.New(),
		RecipientID: recipientUUID,
		CompanyID:   companyUUID,
		Kind:        kind.String(),
		Message:     message,
		SourceRef:   sourceRef,
		Read:        false,
		CreatedAt:   time.Now().UTC(),
	}

	if err := mapRepositoryError(s.repo.Create(ctx, n)); err != nil {
		if errors.Is(err, notificationerrors.ErrDuplicateNotification) {
			s.logger.Warn("notification already recorded for source",
				zap.String("recipient_id", recipientID),
				zap.String("source_ref", sourceRef),
			)
			return NotificationResponse{}, err
		}
		s.logger.Error("create notification persist failed",
			zap.String("recipient_id", recipientID),
			zap.String("kind", kind.String()),
			zap.Error(err),
		)
		return NotificationResponse{}, err
	}

	s.invalidateUnreadCache(ctx, recipientID)

	s.logger.Info("notification created",
		zap.String("notification_id", n.ID.String()),
		zap.String("recipient_id", recipientID),
		zap.String("kind", kind.String()),
	)

	return mapToResponse(*n), nil
}

// MarkRead is idempotent: marking an already-read notification succeeds and
// leaves read_at untouched.
func (s *service) MarkRead(ctx context.Context, recipientID, id string) (NotificationResponse, error) {
	if _, err := uuid.Parse(recipientID); err != nil {
		return NotificationResponse{}, notificationerrors.ErrInvalidRecipientID
	}
	if _, err := uuid.Parse(id); err != nil {
		return NotificationResponse{}, notificationerrors.ErrInvalidNotificationID
	}

	rows, err := s.repo.MarkReadIfUnread(ctx, recipientID, id, time.Now().UTC())
	if err != nil {
		s.logger.Error("mark read failed",
			zap.String("notification_id", id),
			zap.Error(err),
		)
		return NotificationResponse{}, err
	}

	n, err := s.repo.FindByIDAndRecipient(ctx, recipientID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Also covers ids owned by someone else: recipients cannot see,
			// let alone mark, notifications that are not theirs.
			return NotificationResponse{}, notificationerrors.ErrNotificationNotFound
		}
		return NotificationResponse{}, err
	}

	if rows > 0 {
		s.invalidateUnreadCache(ctx, recipientID)
		s.logger.Debug("notification marked read",
			zap.String("notification_id", id),
			zap.String("recipient_id", recipientID),
		)
	}

	return mapToResponse(*n), nil
}

func (s *service) ListByRecipient(ctx context.Context, recipientID string) ([]NotificationResponse, error) {
	if _, err := uuid.Parse(recipientID); err != nil {
		return nil, notificationerrors.ErrInvalidRecipientID
	}

	notifications, err := s.repo.FindAllByRecipient(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	return mapToListResponse(notifications), nil
}

func (s *service) UnreadCount(ctx context.Context, recipientID string) (int64, error) {
	if _, err := uuid.Parse(recipientID); err != nil {
		return 0, notificationerrors.ErrInvalidRecipientID
	}

	if s.rdb != nil {
		if val, err := s.rdb.Get(ctx, unreadCacheKey(recipientID)).Result(); err == nil {
			if count, parseErr := strconv.ParseInt(val, 10, 64); parseErr == nil {
				return count, nil
			}
		}
	}

	// Collapse concurrent cache fills for the same recipient.
	v, err, _ := s.group.Do(recipientID, func() (any, error) {
		count, err := s.repo.CountUnread(ctx, recipientID)
		if err != nil {
			return int64(0), err
		}
		if s.rdb != nil {
			if err := s.rdb.Set(ctx, unreadCacheKey(recipientID), count, unreadCacheTTL).Err(); err != nil {
				s.logger.Warn("cache unread count failed", zap.Error(err))
			}
		}
		return count, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

func (s *service) invalidateUnreadCache(ctx context.Context, recipientID string) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, unreadCacheKey(recipientID)).Err(); err != nil {
		s.logger.Warn("invalidate unread cache failed",
			zap.String("recipient_id", recipientID),
			zap.Error(err),
		)
	}
}

func unreadCacheKey(recipientID string) string {
	return fmt.Sprintf("notif:unread:%s", recipientID)
}

func mapToResponse(n Notification) NotificationResponse {
	resp := NotificationResponse{
		ID:          n.ID.String(),
		RecipientID: n.RecipientID.String(),
		Kind:        n.Kind,
		Message:     n.Message,
		SourceRef:   n.SourceRef,
		Read:        n.Read,
		CreatedAt:   n.CreatedAt.Format(time.RFC3339),
	}
	if n.ReadAt != nil {
		v := n.ReadAt.Format(time.RFC3339)
		resp.ReadAt = &v
	}
	return resp
}

func mapToListResponse(notifications []Notification) []NotificationResponse {
	resp := make([]NotificationResponse, len(notifications))
	for i, n := range notifications {
		resp[i] = mapToResponse(n)
	}
	return resp
}
