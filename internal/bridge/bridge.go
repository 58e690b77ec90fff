package bridge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go-leavehub/internal/directory"
	"go-leavehub/internal/events"
	"go-leavehub/internal/leave"
	"go-leavehub/internal/notification"
	"go-leavehub/internal/realtime"

	"go.uber.org/zap"
)

const offlineNotifyTimeout = 15 * time.Second

// Pusher is the slice of the delivery hub the bridge needs.
type Pusher interface {
	Push(recipientID string, env realtime.Envelope) int
	SessionCount(recipientID string) int
}

// AudienceResolver answers "who holds this permission in this company".
type AudienceResolver interface {
	Audience(companyID, resource, action string) ([]string, error)
}

// Bridge maps domain transitions to notification side effects. The ordering
// inside every fan-out is fixed: the durable record is created before the
// push is attempted, so a dropped push is always recoverable by a later
// pull. Push and offline-mail failures are absorbed here; they never reach
// the caller of the triggering business operation.
type Bridge struct {
	notifications notification.Service
	hub           Pusher
	audience      AudienceResolver
	directory     directory.Directory
	offline       OfflineNotifier
	logger        *zap.Logger
}

func New(
	notifications notification.Service,
	hub Pusher,
	audience AudienceResolver,
	dir directory.Directory,
	offline OfflineNotifier,
	logger ...*zap.Logger,
) *Bridge {
	l := zap.L().Named("bridge")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("bridge")
	}
	if offline == nil {
		offline = NoopOfflineNotifier{}
	}
	return &Bridge{
		notifications: notifications,
		hub:           hub,
		audience:      audience,
		directory:     dir,
		offline:       offline,
		logger:        l,
	}
}

// LeaveSubmitted notifies every employee holding the leave:decide permission,
// except the requester.
func (b *Bridge) LeaveSubmitted(ctx context.Context, l leave.LeaveResponse) {
	recipients, err := b.audience.Audience(l.CompanyID, "leave", "decide")
	if err != nil {
		b.logger.Error("resolve approver audience failed",
			zap.String("leave_id", l.ID),
			zap.Error(err),
		)
		return
	}

	name := b.displayName(ctx, l.EmployeeID)
	message := fmt.Sprintf(
		"%s requested %d day(s) of %s leave (%s to %s)",
		name, l.TotalDays, strings.ToLower(l.LeaveType), l.StartDate, l.EndDate,
	)

	for _, recipientID := range recipients {
		if recipientID == l.EmployeeID {
			continue
		}
		b.deliver(ctx, l.CompanyID, recipientID, events.KindLeaveSubmitted, message, l.ID)
	}
}

// LeaveDecided notifies the requester.
func (b *Bridge) LeaveDecided(ctx context.Context, l leave.LeaveResponse) {
	verb := "approved"
	if l.Status == leave.StatusRejected {
		verb = "rejected"
	}

	approver := ""
	if l.DecidedBy != nil {
		approver = b.displayName(ctx, *l.DecidedBy)
	}

	message := fmt.Sprintf(
		"Your leave request (%s to %s) was %s by %s",
		l.StartDate, l.EndDate, verb, approver,
	)

	b.deliver(ctx, l.CompanyID, l.EmployeeID, events.KindLeaveDecided, message, l.ID)
}

// DomainEvent is the opaque path: attendance and payroll events from the
// broker, and privileged admin broadcasts, only carry a recipient and a
// message. The created record is returned so the privileged endpoint can
// echo it.
func (b *Bridge) DomainEvent(ctx context.Context, companyID, recipientID string, kind events.Kind, message, sourceRef string) (notification.NotificationResponse, error) {
	created, err := b.notifications.Create(ctx, companyID, recipientID, kind, message, sourceRef)
	if err != nil {
		return notification.NotificationResponse{}, err
	}

	b.push(recipientID, kind, created)
	return created, nil
}

// deliver runs the store-then-push sequence for one recipient. A create
// failure skips the push (there is nothing durable to recover), and is only
// logged: the workflow transition that triggered it has already committed.
func (b *Bridge) deliver(ctx context.Context, companyID, recipientID string, kind events.Kind, message, sourceRef string) {
	created, err := b.notifications.Create(ctx, companyID, recipientID, kind, message, sourceRef)
	if err != nil {
		b.logger.Error("create notification failed",
			zap.String("recipient_id", recipientID),
			zap.String("kind", kind.String()),
			zap.String("source_ref", sourceRef),
			zap.Error(err),
		)
		return
	}

	b.push(recipientID, kind, created)
}

func (b *Bridge) push(recipientID string, kind events.Kind, created notification.NotificationResponse) {
	delivered := b.hub.Push(recipientID, realtime.Envelope{
		Kind:         kind,
		Notification: created,
	})

	if delivered > 0 {
		return
	}

	// Nobody is connected; the durable record already guarantees delivery on
	// the next pull. The offline mail is a courtesy and must never hold up
	// the business operation that triggered it, so it runs detached with its
	// own deadline.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), offlineNotifyTimeout)
		defer cancel()
		if err := b.offline.Notify(ctx, recipientID, kind, created.Message); err != nil {
			b.logger.Warn("offline notify failed",
				zap.String("recipient_id", recipientID),
				zap.Error(err),
			)
		}
	}()
}

func (b *Bridge) displayName(ctx context.Context, employeeID string) string {
	name, err := b.directory.DisplayName(ctx, employeeID)
	if err != nil || name == "" {
		return employeeID
	}
	return name
}
