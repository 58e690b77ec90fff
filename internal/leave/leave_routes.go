package leave

import (
	"go-leavehub/internal/middleware"
	"go-leavehub/internal/rbac"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func RegisterRoutes(
	r *gin.RouterGroup,
	handler *Handler,
	rbacService rbac.Service,
	rdb *redis.Client,
) {
	leaves := r.Group("/leaves")
	leaves.Use(middleware.AuthMiddleware())
	{
		leaves.GET("", handler.List)
		leaves.GET("/:id", handler.GetById)
		leaves.POST("", middleware.Idempotency(rdb), handler.Submit)
		leaves.PATCH("/:id", middleware.RBACAuthorize(rbacService, "leave", "decide"), handler.Decide)
	}
}
