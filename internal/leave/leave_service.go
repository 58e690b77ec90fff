package leave

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go-leavehub/internal/events"
	leaveerrors "go-leavehub/internal/leave/errors"
	"go-leavehub/internal/messaging/kafka"
	"go-leavehub/internal/shared/contextutil"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
)

const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// List scopes.
const (
	ScopePending = "pending"
	ScopeMine    = "mine"
	ScopeAll     = "all"
)

// Config bounds what the engine accepts. The UI enforces the same limits,
// but the engine is the correctness boundary.
type Config struct {
	MinReasonLen int
	MaxReasonLen int
	MaxSpanDays  int
}

func DefaultConfig() Config {
	return Config{
		MinReasonLen: 10,
		MaxReasonLen: 500,
		MaxSpanDays:  90,
	}
}

// Notifier receives workflow transitions after they are durably committed.
// Implementations must absorb delivery problems; a failed notification never
// affects the decision itself.
type Notifier interface {
	LeaveSubmitted(ctx context.Context, l LeaveResponse)
	LeaveDecided(ctx context.Context, l LeaveResponse)
}

//go:generate mockgen -source=leave_service.go -destination=mock/leave_service_mock.go -package=mock
type Service interface {
	Submit(ctx context.Context, companyID, actorID string, req CreateLeaveRequest) (LeaveResponse, error)
	List(ctx context.Context, companyID, actorID, scope string) ([]LeaveResponse, error)
	GetByID(ctx context.Context, companyID, id string) (LeaveResponse, error)
	Decide(ctx context.Context, companyID, actorID, id, action string) (LeaveResponse, error)
}

type service struct {
	db       *sql.DB
	repo     Repository
	outbox   kafka.OutboxRepository
	notifier Notifier
	cfg      Config
	logger   *zap.Logger
}

func NewService(
	db *sql.DB,
	repo Repository,
	outbox kafka.OutboxRepository,
	notifier Notifier,
	cfg Config,
	logger ...*zap.Logger,
) Service {
	l := zap.L().Named("leave.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("leave.service")
	}
	return &service{
		db:       db,
		repo:     repo,
		outbox:   outbox,
		notifier: notifier,
		cfg:      cfg,
		logger:   l,
	}
}

func (s *service) Submit(ctx context.Context, companyID, actorID string, req CreateLeaveRequest) (LeaveResponse, error) {
	s.logger.Debug("submit leave requested",
		zap.String("company_id", companyID),
		zap.String("actor_id", actorID),
		zap.String("start_date", req.StartDate),
		zap.String("end_date", req.EndDate),
	)

	companyUUID, employeeUUID, startDate, endDate, err := s.validateSubmit(companyID, actorID, req)
	if err != nil {
		s.logger.Warn("submit leave validation failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	totalDays := int(endDate.Sub(startDate).Hours()/24) + 1

	l := &Leave{
		ID:          uuid.New(),
		CompanyID:   companyUUID,
		EmployeeID:  employeeUUID,
		LeaveType:   req.LeaveType,
		StartDate:   startDate,
		EndDate:     endDate,
		TotalDays:   totalDays,
		Reason:      strings.TrimSpace(req.Reason),
		Status:      StatusPending,
		RequestedAt: time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("submit leave begin tx failed", zap.Error(err))
		return LeaveResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)
	if err := qtx.Create(ctx, l); err != nil {
		s.logger.Error("submit leave persist failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	if err := s.appendLifecycleEvent(ctx, tx, l, events.LeaveEventSubmitted, nil); err != nil {
		s.logger.Error("submit leave outbox append failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("submit leave commit failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	s.logger.Info("submit leave success",
		zap.String("leave_id", l.ID.String()),
		zap.String("employee_id", l.EmployeeID.String()),
		zap.Int("total_days", totalDays),
	)

	resp := mapToResponse(*l)
	if s.notifier != nil {
		s.notifier.LeaveSubmitted(ctx, resp)
	}
	return resp, nil
}

func (s *service) List(ctx context.Context, companyID, actorID, scope string) ([]LeaveResponse, error) {
	if scope == "" {
		scope = ScopeMine
	}

	var (
		leaves []Leave
		err    error
	)
	switch scope {
	case ScopePending:
		leaves, err = s.repo.FindByStatus(ctx, companyID, StatusPending)
	case ScopeMine:
		leaves, err = s.repo.FindByEmployee(ctx, companyID, actorID)
	case ScopeAll:
		leaves, err = s.repo.FindAllByCompany(ctx, companyID)
	default:
		return nil, leaveerrors.ErrInvalidScope
	}
	if err != nil {
		return nil, err
	}
	return mapToListResponse(leaves), nil
}

func (s *service) GetByID(ctx context.Context, companyID, id string) (LeaveResponse, error) {
	l, err := s.repo.FindByIDAndCompany(ctx, companyID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return LeaveResponse{}, leaveerrors.ErrLeaveNotFound
		}
		return LeaveResponse{}, err
	}
	return mapToResponse(*l), nil
}

// Decide transitions a PENDING request to its terminal status with a
// conditional update, so two racing approvers resolve to exactly one winner.
func (s *service) Decide(ctx context.Context, companyID, actorID, id, action string) (LeaveResponse, error) {
	s.logger.Debug("decide leave requested",
		zap.String("leave_id", id),
		zap.String("company_id", companyID),
		zap.String("actor_id", actorID),
		zap.String("action", action),
	)

	if _, err := uuid.Parse(companyID); err != nil {
		return LeaveResponse{}, leaveerrors.ErrInvalidCompanyID
	}
	actorUUID, err := uuid.Parse(actorID)
	if err != nil {
		return LeaveResponse{}, leaveerrors.ErrInvalidActorID
	}

	var targetStatus, eventType string
	switch action {
	case ActionApprove:
		targetStatus, eventType = StatusApproved, events.LeaveEventApproved
	case ActionReject:
		targetStatus, eventType = StatusRejected, events.LeaveEventRejected
	default:
		return LeaveResponse{}, leaveerrors.ErrInvalidAction
	}

	l, err := s.repo.FindByIDAndCompany(ctx, companyID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return LeaveResponse{}, leaveerrors.ErrLeaveNotFound
		}
		return LeaveResponse{}, err
	}
	if l.EmployeeID == actorUUID {
		return LeaveResponse{}, leaveerrors.ErrOwnDecision
	}

	decidedAt := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("decide leave begin tx failed", zap.Error(err))
		return LeaveResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)
	rows, err := qtx.DecideIfPending(ctx, id, targetStatus, actorUUID, decidedAt)
	if err != nil {
		s.logger.Error("decide leave conditional update failed",
			zap.String("leave_id", id),
			zap.Error(err),
		)
		return LeaveResponse{}, err
	}
	if rows == 0 {
		// The record exists, so the precondition that failed is the status.
		s.logger.Warn("decide leave lost the race",
			zap.String("leave_id", id),
			zap.String("current_status", l.Status),
		)
		return LeaveResponse{}, leaveerrors.ErrAlreadyDecided
	}

	l.Status = targetStatus
	l.DecidedBy = &actorUUID
	l.DecidedAt = &decidedAt

	if err := s.appendLifecycleEvent(ctx, tx, l, eventType, &actorUUID); err != nil {
		s.logger.Error("decide leave outbox append failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("decide leave commit failed",
			zap.String("leave_id", id),
			zap.Error(err),
		)
		return LeaveResponse{}, err
	}

	s.logger.Info("decide leave success",
		zap.String("leave_id", id),
		zap.String("status", targetStatus),
		zap.String("decided_by", actorID),
	)

	resp := mapToResponse(*l)
	if s.notifier != nil {
		s.notifier.LeaveDecided(ctx, resp)
	}
	return resp, nil
}

func (s *service) validateSubmit(companyID, actorID string, req CreateLeaveRequest) (uuid.UUID, uuid.UUID, time.Time, time.Time, error) {
	companyUUID, err := uuid.Parse(companyID)
	if err != nil {
		return uuid.Nil, uuid.Nil, time.Time{}, time.Time{}, leaveerrors.ErrInvalidCompanyID
	}
	employeeUUID, err := uuid.Parse(actorID)
	if err != nil {
		return uuid.Nil, uuid.Nil, time.Time{}, time.Time{}, leaveerrors.ErrInvalidActorID
	}
	startDate, err := parseDate(req.StartDate)
	if err != nil {
		return uuid.Nil, uuid.Nil, time.Time{}, time.Time{}, err
	}
	endDate, err := parseDate(req.EndDate)
	if err != nil {
		return uuid.Nil, uuid.Nil, time.Time{}, time.Time{}, err
	}
	if startDate.After(endDate) {
		return uuid.Nil, uuid.Nil, time.Time{}, time.Time{}, leaveerrors.ErrInvalidDateRange
	}

	span := int(endDate.Sub(startDate).Hours()/24) + 1
	if s.cfg.MaxSpanDays > 0 && span > s.cfg.MaxSpanDays {
		return uuid.Nil, uuid.Nil, time.Time{}, time.Time{}, leaveerrors.ErrSpanTooLong
	}

	// Bounds are in characters, not bytes, so multibyte reasons are measured
	// the same way validator's min/max tags measure strings.
	reason := strings.TrimSpace(req.Reason)
	reasonLen := utf8.RuneCountInString(reason)
	if reasonLen < s.cfg.MinReasonLen {
		return uuid.Nil, uuid.Nil, time.Time{}, time.Time{}, leaveerrors.ErrReasonTooShort
	}
	if s.cfg.MaxReasonLen > 0 && reasonLen > s.cfg.MaxReasonLen {
		return uuid.Nil, uuid.Nil, time.Time{}, time.Time{}, leaveerrors.ErrReasonTooLong
	}

	return companyUUID, employeeUUID, startDate, endDate, nil
}

func (s *service) appendLifecycleEvent(ctx context.Context, tx *sql.Tx, l *Leave, eventType string, decidedBy *uuid.UUID) error {
	if s.outbox == nil {
		return nil
	}

	event := events.LeaveLifecycleEvent{
		EventType:  eventType,
		LeaveID:    l.ID.String(),
		CompanyID:  l.CompanyID.String(),
		EmployeeID: l.EmployeeID.String(),
		Status:     l.Status,
		OccurredAt: time.Now().UTC(),
	}
	if decidedBy != nil {
		event.DecidedBy = decidedBy.String()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return s.outbox.WithTx(tx).Create(ctx, kafka.OutboxEvent{
		ID:            uuid.New().String(),
		RequestID:     contextutil.GetRequestID(ctx),
		AggregateType: "leave",
		AggregateID:   l.ID.String(),
		EventType:     eventType,
		Topic:         events.LeaveLifecycleTopic,
		Payload:       payload,
		Status:        kafka.OutboxStatusPending,
	})
}

func parseDate(v string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, leaveerrors.ErrInvalidDateFormat
	}
	return t, nil
}

func mapToResponse(l Leave) LeaveResponse {
	resp := LeaveResponse{
		ID:          l.ID.String(),
		CompanyID:   l.CompanyID.String(),
		EmployeeID:  l.EmployeeID.String(),
		LeaveType:   l.LeaveType,
		StartDate:   l.StartDate.Format("2006-01-02"),
		EndDate:     l.EndDate.Format("2006-01-02"),
		TotalDays:   l.TotalDays,
		Reason:      l.Reason,
		Status:      l.Status,
		RequestedAt: l.RequestedAt.Format(time.RFC3339),
	}
	if l.DecidedBy != nil {
		v := l.DecidedBy.String()
		resp.DecidedBy = &v
	}
	if l.DecidedAt != nil {
		v := l.DecidedAt.Format(time.RFC3339)
		resp.DecidedAt = &v
	}
	return resp
}

func mapToListResponse(leaves []Leave) []LeaveResponse {
	resp := make([]LeaveResponse, len(leaves))
	for i, l := range leaves {
		resp[i] = mapToResponse(l)
	}
	return resp
}
