package notification

import (
	"go-leavehub/internal/middleware"
	"go-leavehub/internal/rbac"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(
	r *gin.RouterGroup,
	handler *Handler,
	rbacService rbac.Service,
) {
	notifications := r.Group("/notifications")
	notifications.Use(middleware.AuthMiddleware())
	{
		notifications.GET("/me", handler.ListMine)
		notifications.GET("/me/unread-count", handler.UnreadCount)
		notifications.PUT("/:id/read", handler.MarkRead)
		notifications.POST("", middleware.RBACAuthorize(rbacService, "notification", "create"), handler.Create)
	}
}
