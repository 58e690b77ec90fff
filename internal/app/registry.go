package app

import (
	"database/sql"
	"os"
	"path/filepath"
	"strconv"

	"go-leavehub/internal/bridge"
	"go-leavehub/internal/directory"
	"go-leavehub/internal/leave"
	"go-leavehub/internal/messaging/kafka"
	"go-leavehub/internal/middleware"
	"go-leavehub/internal/notification"
	"go-leavehub/internal/rbac"
	"go-leavehub/internal/rbac/infra"
	"go-leavehub/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// registerModules wires repositories, services, the delivery hub and the
// event bridge, then mounts every route group. The returned hub is owned by
// the caller, which closes it on shutdown.
func registerModules(
	router *gin.Engine,
	db *sql.DB,
	gormDB *gorm.DB,
	rdb *redis.Client,
) (*realtime.Hub, error) {
	// --- Repositories ---
	rbacRepo := rbac.NewRepository(gormDB)
	leaveRepo := leave.NewRepository(gormDB)
	notificationRepo := notification.NewRepository(gormDB)
	outboxRepo := kafka.NewOutboxRepository(db)

	// --- RBAC Core ---
	enforcer, err := infra.NewEnforcer(filepath.Join("internal", "rbac", "infra", "model.conf"))
	if err != nil {
		return nil, err
	}
	rbacService := rbac.NewService(rbacRepo, enforcer)

	// --- Delivery & Bridge ---
	hub := realtime.NewHub()
	dir := directory.NewGormDirectory(gormDB)
	notificationService := notification.NewService(notificationRepo, rdb)
	eventBridge := bridge.New(
		notificationService,
		hub,
		rbacService,
		dir,
		offlineNotifierFromEnv(dir),
	)

	// --- Services ---
	leaveService := leave.NewService(db, leaveRepo, outboxRepo, eventBridge, leaveConfigFromEnv())

	// --- Handlers ---
	leaveHandler := leave.NewHandler(leaveService)
	notificationHandler := notification.NewHandler(notificationService, eventBridge)
	realtimeHandler := realtime.NewHandler(hub)

	// --- Routes Registration ---
	router.Use(middleware.ContextLogger(zap.L()))
	router.Use(middleware.RateLimitByIP(rate.Limit(50), 100))

	api := router.Group("/api/v1")
	{
		leave.RegisterRoutes(api, leaveHandler, rbacService, rdb)
		notification.RegisterRoutes(api, notificationHandler, rbacService)
		realtime.RegisterRoutes(api, realtimeHandler)
	}

	return hub, nil
}

// leaveConfigFromEnv overrides the engine bounds from the environment,
// keeping the defaults for anything unset or unparseable.
func leaveConfigFromEnv() leave.Config {
	cfg := leave.DefaultConfig()
	cfg.MinReasonLen = envInt("LEAVE_MIN_REASON_LEN", cfg.MinReasonLen)
	cfg.MaxReasonLen = envInt("LEAVE_MAX_REASON_LEN", cfg.MaxReasonLen)
	cfg.MaxSpanDays = envInt("LEAVE_MAX_SPAN_DAYS", cfg.MaxSpanDays)
	return cfg
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

// offlineNotifierFromEnv enables SMTP fallback delivery only when a host is
// configured; everything else is a no-op.
func offlineNotifierFromEnv(dir directory.Directory) bridge.OfflineNotifier {
	host := os.Getenv("SMTP_HOST")
	if host == "" {
		return bridge.NoopOfflineNotifier{}
	}

	port, err := strconv.Atoi(os.Getenv("SMTP_PORT"))
	if err != nil || port <= 0 {
		port = 587
	}

	return bridge.NewSMTPNotifier(bridge.SMTPConfig{
		Host: host,
		Port: port,
		User: os.Getenv("SMTP_USER"),
		Pass: os.Getenv("SMTP_PASSWORD"),
		From: os.Getenv("SMTP_FROM"),
	}, dir)
}
