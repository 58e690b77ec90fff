package notification

import (
	"context"
	"net/http"

	"go-leavehub/internal/events"
	notificationerrors "go-leavehub/internal/notification/errors"
	"go-leavehub/internal/shared/apperror"
	"go-leavehub/internal/shared/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Publisher is the slice of the event bridge the privileged create endpoint
// needs: persist first, then fan out to live sessions.
type Publisher interface {
	DomainEvent(ctx context.Context, companyID, recipientID string, kind events.Kind, message, sourceRef string) (NotificationResponse, error)
}

type Handler struct {
	service   Service
	publisher Publisher
	logger    *zap.Logger
}

func NewHandler(service Service, publisher Publisher, logger ...*zap.Logger) *Handler {
	l := zap.L().Named("notification.handler")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("notification.handler")
	}
	return &Handler{service: service, publisher: publisher, logger: l}
}

func getRecipientID(c *gin.Context) string {
	recipientID := c.GetString("employee_id")
	if recipientID == "" {
		recipientID = c.GetString("user_id_validated")
	}
	return recipientID
}

func (h *Handler) writeServiceError(c *gin.Context, err error) {
	httpErr := apperror.ToHTTP(err)
	h.logger.Warn("notification request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Int("status", httpErr.Status),
		zap.String("code", httpErr.Code),
	)
	response.Error(c, httpErr.Status, httpErr.Code, httpErr.Message, httpErr.Details)
}

// ListMine returns the caller's full notification log, most-recent-first.
// Clients re-pull this at will; it is the recovery path for every dropped
// push.
func (h *Handler) ListMine(c *gin.Context) {
	resp, err := h.service.ListByRecipient(c.Request.Context(), getRecipientID(c))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, resp, nil)
}

func (h *Handler) UnreadCount(c *gin.Context) {
	count, err := h.service.UnreadCount(c.Request.Context(), getRecipientID(c))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, UnreadCountResponse{Unread: count}, nil)
}

func (h *Handler) MarkRead(c *gin.Context) {
	resp, err := h.service.MarkRead(c.Request.Context(), getRecipientID(c), c.Param("id"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, resp, nil)
}

// Create is the privileged direct-broadcast endpoint for admin-authored
// notifications.
func (h *Handler) Create(c *gin.Context) {
	var req CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("http create notification validation failed", zap.Error(err))
		httpErr := apperror.ToHTTP(apperror.MapValidationError(err))
		response.Error(c, httpErr.Status, httpErr.Code, httpErr.Message, nil)
		return
	}

	kind, err := events.ParseKind(req.Kind)
	if err != nil {
		h.writeServiceError(c, notificationerrors.ErrInvalidKind)
		return
	}

	companyID := c.GetString("company_id")
	resp, err := h.publisher.DomainEvent(c.Request.Context(), companyID, req.RecipientID, kind, req.Message, req.SourceRef)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, resp, nil)
}
