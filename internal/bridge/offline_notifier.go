package bridge

import (
	"context"
	"fmt"

	"go-leavehub/internal/directory"
	"go-leavehub/internal/events"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// OfflineNotifier is the optional fire-and-forget channel for recipients with
// no live session. Errors are logged by the bridge and never escalated.
type OfflineNotifier interface {
	Notify(ctx context.Context, recipientID string, kind events.Kind, message string) error
}

type NoopOfflineNotifier struct{}

func (NoopOfflineNotifier) Notify(context.Context, string, events.Kind, string) error {
	return nil
}

// SMTPConfig comes from the environment at wiring time.
type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

type smtpNotifier struct {
	cfg       SMTPConfig
	directory directory.Directory
	logger    *zap.Logger
}

func NewSMTPNotifier(cfg SMTPConfig, dir directory.Directory, logger ...*zap.Logger) OfflineNotifier {
	l := zap.L().Named("bridge.smtp")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("bridge.smtp")
	}
	return &smtpNotifier{cfg: cfg, directory: dir, logger: l}
}

func (n *smtpNotifier) Notify(ctx context.Context, recipientID string, kind events.Kind, message string) error {
	email, err := n.directory.Email(ctx, recipientID)
	if err != nil {
		return err
	}
	if email == "" {
		// No address on file; nothing to send.
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.From)
	m.SetHeader("To", email)
	m.SetHeader("Subject", subjectFor(kind))
	m.SetBody("text/plain", message)

	// gomail has no context support, so the send runs on its own goroutine
	// and the caller's deadline bounds how long we wait for it.
	d := gomail.NewDialer(n.cfg.Host, n.cfg.Port, n.cfg.User, n.cfg.Pass)
	sendErr := make(chan error, 1)
	go func() { sendErr <- d.DialAndSend(m) }()

	select {
	case err := <-sendErr:
		if err != nil {
			return fmt.Errorf("send offline mail: %w", err)
		}
	case <-ctx.Done():
		return fmt.Errorf("send offline mail: %w", ctx.Err())
	}

	n.logger.Debug("offline mail sent",
		zap.String("recipient_id", recipientID),
		zap.String("kind", kind.String()),
	)
	return nil
}

func subjectFor(kind events.Kind) string {
	switch kind {
	case events.KindLeaveSubmitted:
		return "New leave request awaiting your decision"
	case events.KindLeaveDecided:
		return "Your leave request has been decided"
	case events.KindAttendance:
		return "Attendance update"
	case events.KindPayroll:
		return "Payroll update"
	default:
		return "You have a new notification"
	}
}
