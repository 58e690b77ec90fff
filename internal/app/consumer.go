package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go-leavehub/internal/bridge"
	"go-leavehub/internal/directory"
	"go-leavehub/internal/events"
	"go-leavehub/internal/messaging/kafka/consumer"
	"go-leavehub/internal/notification"
	"go-leavehub/internal/rbac"
	"go-leavehub/internal/rbac/infra"
	"go-leavehub/internal/realtime"
	"go-leavehub/internal/shared/connection"

	"go.uber.org/zap"
)

// RunConsumer bridges attendance and payroll broker events into the
// notification store. The consumer process has no websocket surface, so its
// hub never holds sessions and every push falls through to the offline
// channel.
func RunConsumer() error {
	logger := zap.L().Named("app.consumer")

	gormDB, err := connection.ConnectGORMWithRetry(
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_SSLMODE"),
		5,
	)
	if err != nil {
		return err
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	kafkaBroker := os.Getenv("KAFKA_BROKER")
	if kafkaBroker == "" {
		return fmt.Errorf("KAFKA_BROKER is required")
	}

	redisClient, err := connection.ConnectRedisWithRetry(os.Getenv("REDIS_ADDR"), 5)
	if err != nil {
		return err
	}

	enforcer, err := infra.NewEnforcer(filepath.Join("internal", "rbac", "infra", "model.conf"))
	if err != nil {
		return err
	}
	rbacService := rbac.NewService(rbac.NewRepository(gormDB), enforcer)

	hub := realtime.NewHub()
	defer hub.Close()

	dir := directory.NewGormDirectory(gormDB)
	notificationService := notification.NewService(notification.NewRepository(gormDB), redisClient)
	eventBridge := bridge.New(
		notificationService,
		hub,
		rbacService,
		dir,
		offlineNotifierFromEnv(dir),
	)

	attendanceReader := connection.NewKafkaReader(kafkaBroker, events.AttendanceEventsTopic, "go-leavehub-attendance")
	defer attendanceReader.Close()

	payrollReader := connection.NewKafkaReader(kafkaBroker, events.PayrollEventsTopic, "go-leavehub-payroll")
	defer payrollReader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go consumer.ConsumeAttendanceEvents(ctx, attendanceReader, eventBridge, logger)
	go consumer.ConsumePayrollEvents(ctx, payrollReader, eventBridge, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("consumer shutting down")
	cancel()

	return nil
}
