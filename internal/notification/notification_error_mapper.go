package notification

import (
	"errors"
	"strings"

	notificationerrors "go-leavehub/internal/notification/errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notificationerrors.ErrNotificationNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" && pgErr.ConstraintName == "uq_notifications_dedupe" {
			return notificationerrors.ErrDuplicateNotification
		}
	}

	errMsg := strings.ToLower(err.Error())
	if strings.Contains(errMsg, "duplicate key value") && strings.Contains(errMsg, "uq_notifications_dedupe") {
		return notificationerrors.ErrDuplicateNotification
	}

	return err
}
