package consumer

import (
	"context"
	"encoding/json"
	"errors"

	"go-leavehub/internal/events"
	"go-leavehub/internal/notification"
	notificationerrors "go-leavehub/internal/notification/errors"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// DomainEventSink is the opaque entry point of the event bridge: the
// consumers only ever hand it a recipient and a message.
type DomainEventSink interface {
	DomainEvent(ctx context.Context, companyID, recipientID string, kind events.Kind, message, sourceRef string) (notification.NotificationResponse, error)
}

// ConsumeAttendanceEvents turns attendance broker events into notifications.
// A malformed message is committed and skipped, as is a redelivered one that
// already produced a record; any other failed bridge call is left uncommitted
// so the broker redelivers it.
func ConsumeAttendanceEvents(
	ctx context.Context,
	reader *kafkago.Reader,
	sink DomainEventSink,
	logger *zap.Logger,
) {
	log := logger.Named("kafka.consumer.attendance")
	log.Info("attendance events consumer started")

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("attendance events consumer stopped")
				return
			}
			log.Error("fetch attendance message failed", zap.Error(err))
			continue
		}

		var event events.AttendanceEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Error("decode attendance event failed", zap.Error(err))
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		if _, err := sink.DomainEvent(ctx, event.CompanyID, event.EmployeeID, events.KindAttendance, event.Message, event.SourceRef); err != nil {
			if errors.Is(err, notificationerrors.ErrDuplicateNotification) {
				log.Warn("attendance event already bridged, skipping",
					zap.String("employee_id", event.EmployeeID),
					zap.String("source_ref", event.SourceRef),
				)
				_ = reader.CommitMessages(ctx, msg)
				continue
			}
			log.Error("bridge attendance event failed",
				zap.String("employee_id", event.EmployeeID),
				zap.String("source_ref", event.SourceRef),
				zap.Error(err),
			)
			continue
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit attendance message failed", zap.Error(err))
			continue
		}

		log.Info("attendance event bridged",
			zap.String("employee_id", event.EmployeeID),
			zap.String("source_ref", event.SourceRef),
		)
	}
}

// ConsumePayrollEvents mirrors the attendance consumer for payroll topics.
func ConsumePayrollEvents(
	ctx context.Context,
	reader *kafkago.Reader,
	sink DomainEventSink,
	logger *zap.Logger,
) {
	log := logger.Named("kafka.consumer.payroll")
	log.Info("payroll events consumer started")

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("payroll events consumer stopped")
				return
			}
			log.Error("fetch payroll message failed", zap.Error(err))
			continue
		}

		var event events.PayrollEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Error("decode payroll event failed", zap.Error(err))
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		if _, err := sink.DomainEvent(ctx, event.CompanyID, event.EmployeeID, events.KindPayroll, event.Message, event.SourceRef); err != nil {
			if errors.Is(err, notificationerrors.ErrDuplicateNotification) {
				log.Warn("payroll event already bridged, skipping",
					zap.String("employee_id", event.EmployeeID),
					zap.String("source_ref", event.SourceRef),
				)
				_ = reader.CommitMessages(ctx, msg)
				continue
			}
			log.Error("bridge payroll event failed",
				zap.String("employee_id", event.EmployeeID),
				zap.String("source_ref", event.SourceRef),
				zap.Error(err),
			)
			continue
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit payroll message failed", zap.Error(err))
			continue
		}

		log.Info("payroll event bridged",
			zap.String("employee_id", event.EmployeeID),
			zap.String("source_ref", event.SourceRef),
		)
	}
}
