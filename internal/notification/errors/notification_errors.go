package notificationerrors

import (
	"net/http"

	"go-leavehub/internal/shared/apperror"
)

var (
	ErrNotificationNotFound = apperror.New(
		apperror.CodeNotFound,
		"notification not found",
		http.StatusNotFound,
	)
	ErrInvalidRecipientID = apperror.New(
		apperror.CodeInvalidInput,
		"invalid recipient id",
		http.StatusBadRequest,
	)
	ErrInvalidNotificationID = apperror.New(
		apperror.CodeInvalidInput,
		"invalid notification id",
		http.StatusBadRequest,
	)
	ErrInvalidKind = apperror.New(
		apperror.CodeInvalidInput,
		"unknown notification kind",
		http.StatusBadRequest,
	)
	ErrMessageRequired = apperror.New(
		apperror.CodeInvalidInput,
		"message is required",
		http.StatusBadRequest,
	)
	ErrDuplicateNotification = apperror.New(
		apperror.CodeConflict,
		"notification already recorded for this source",
		http.StatusConflict,
	)
)
