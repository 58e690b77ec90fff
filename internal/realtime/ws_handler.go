package realtime

import (
	"net/http"
	"strings"

	"go-leavehub/internal/middleware"
	"go-leavehub/internal/shared/apperror"
	"go-leavehub/internal/shared/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Handler struct {
	hub    *Hub
	logger *zap.Logger
}

func NewHandler(hub *Hub, logger ...*zap.Logger) *Handler {
	l := zap.L().Named("realtime.handler")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("realtime.handler")
	}
	return &Handler{hub: hub, logger: l}
}

// Connect validates the bearer credential at upgrade time and registers the
// session. Browser WebSocket clients cannot set headers, so the token is also
// accepted as a query parameter.
func (h *Handler) Connect(c *gin.Context) {
	tokenString, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !found {
		tokenString = c.Query("token")
	}
	if tokenString == "" {
		response.Error(c, http.StatusUnauthorized, apperror.CodeUnauthorized, "Token not found", nil)
		return
	}

	claims, err := middleware.ParseBearerToken(tokenString)
	if err != nil {
		httpErr := apperror.ToHTTP(err)
		response.Error(c, httpErr.Status, httpErr.Code, httpErr.Message, nil)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	session := NewSession(claims.EmployeeID, conn, h.logger)
	h.hub.Register(session)

	h.logger.Info("websocket connected",
		zap.String("employee_id", claims.EmployeeID),
	)

	go session.writePump(h.hub)
	go session.readPump(h.hub)
}

func RegisterRoutes(r *gin.RouterGroup, handler *Handler) {
	r.GET("/ws", handler.Connect)
}
