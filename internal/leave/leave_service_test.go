package leave_test

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go-leavehub/internal/events"
	"go-leavehub/internal/leave"
	leaveerrors "go-leavehub/internal/leave/errors"
	"go-leavehub/internal/messaging/kafka"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

type fakeLeaveRepository struct {
	mu sync.Mutex

	withTxFn             func(tx *sql.Tx) leave.Repository
	createFn             func(ctx context.Context, l *leave.Leave) error
	findByIDAndCompanyFn func(ctx context.Context, companyID, id string) (*leave.Leave, error)
	findAllByCompanyFn   func(ctx context.Context, companyID string) ([]leave.Leave, error)
	findByEmployeeFn     func(ctx context.Context, companyID, employeeID string) ([]leave.Leave, error)
	findByStatusFn       func(ctx context.Context, companyID, status string) ([]leave.Leave, error)
	decideIfPendingFn    func(ctx context.Context, id, status string, decidedBy uuid.UUID, decidedAt time.Time) (int64, error)
}

func (f *fakeLeaveRepository) WithTx(tx *sql.Tx) leave.Repository {
	if f.withTxFn != nil {
		return f.withTxFn(tx)
	}
	return f
}

func (f *fakeLeaveRepository) Create(ctx context.Context, l *leave.Leave) error {
	if f.createFn != nil {
		return f.createFn(ctx, l)
	}
	return nil
}

func (f *fakeLeaveRepository) FindByIDAndCompany(ctx context.Context, companyID, id string) (*leave.Leave, error) {
	if f.findByIDAndCompanyFn != nil {
		return f.findByIDAndCompanyFn(ctx, companyID, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeLeaveRepository) FindAllByCompany(ctx context.Context, companyID string) ([]leave.Leave, error) {
	if f.findAllByCompanyFn != nil {
		return f.findAllByCompanyFn(ctx, companyID)
	}
	return nil, nil
}

func (f *fakeLeaveRepository) FindByEmployee(ctx context.Context, companyID, employeeID string) ([]leave.Leave, error) {
	if f.findByEmployeeFn != nil {
		return f.findByEmployeeFn(ctx, companyID, employeeID)
	}
	return nil, nil
}

func (f *fakeLeaveRepository) FindByStatus(ctx context.Context, companyID, status string) ([]leave.Leave, error) {
	if f.findByStatusFn != nil {
		return f.findByStatusFn(ctx, companyID, status)
	}
	return nil, nil
}

func (f *fakeLeaveRepository) DecideIfPending(ctx context.Context, id, status string, decidedBy uuid.UUID, decidedAt time.Time) (int64, error) {
	if f.decideIfPendingFn != nil {
		return f.decideIfPendingFn(ctx, id, status, decidedBy, decidedAt)
	}
	return 1, nil
}

type fakeOutboxRepository struct {
	mu      sync.Mutex
	created []kafka.OutboxEvent
	fail    error
}

func (f *fakeOutboxRepository) WithTx(tx *sql.Tx) kafka.OutboxRepository { return f }

func (f *fakeOutboxRepository) Create(ctx context.Context, event kafka.OutboxEvent) error {
	if f.fail != nil {
		return f.fail
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, event)
	return nil
}

func (f *fakeOutboxRepository) ListPending(ctx context.Context, limit int) ([]kafka.OutboxEvent, error) {
	return nil, nil
}
func (f *fakeOutboxRepository) MarkSent(ctx context.Context, id string) error { return nil }
func (f *fakeOutboxRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	return nil
}

func (f *fakeOutboxRepository) events() []kafka.OutboxEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]kafka.OutboxEvent(nil), f.created...)
}

type fakeNotifier struct {
	mu        sync.Mutex
	submitted []leave.LeaveResponse
	decided   []leave.LeaveResponse
}

func (f *fakeNotifier) LeaveSubmitted(ctx context.Context, l leave.LeaveResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, l)
}

func (f *fakeNotifier) LeaveDecided(ctx context.Context, l leave.LeaveResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decided = append(f.decided, l)
}

type leaveServiceDeps struct {
	db       *sql.DB
	sqlMock  sqlmock.Sqlmock
	service  leave.Service
	repo     *fakeLeaveRepository
	outbox   *fakeOutboxRepository
	notifier *fakeNotifier
}

func setupLeaveServiceTest(t *testing.T) *leaveServiceDeps {
	t.Helper()

	db, sqlMock, err := sqlmock.New()
	assert.NoError(t, err)

	repo := &fakeLeaveRepository{}
	outbox := &fakeOutboxRepository{}
	notifier := &fakeNotifier{}
	svc := leave.NewService(db, repo, outbox, notifier, leave.DefaultConfig())

	return &leaveServiceDeps{
		db:       db,
		sqlMock:  sqlMock,
		service:  svc,
		repo:     repo,
		outbox:   outbox,
		notifier: notifier,
	}
}

func expectTx(t *testing.T, mock sqlmock.Sqlmock, commit bool) {
	t.Helper()
	mock.ExpectBegin()
	if commit {
		mock.ExpectCommit()
	} else {
		mock.ExpectRollback()
	}
}

func TestLeaveService_Submit(t *testing.T) {
	ctx := context.Background()
	companyID := uuid.New().String()
	actorID := uuid.New().String()

	t.Run("success", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, true)
		req := leave.CreateLeaveRequest{
			LeaveType: "ANNUAL",
			StartDate: "2026-03-01",
			EndDate:   "2026-03-03",
			Reason:    "Family event out of town",
		}

		deps.repo.createFn = func(ctx context.Context, l *leave.Leave) error {
			assert.Equal(t, uuid.MustParse(companyID), l.CompanyID)
			assert.Equal(t, uuid.MustParse(actorID), l.EmployeeID)
			assert.Equal(t, "ANNUAL", l.LeaveType)
			assert.Equal(t, 3, l.TotalDays)
			assert.Equal(t, leave.StatusPending, l.Status)
			return nil
		}

		resp, err := deps.service.Submit(ctx, companyID, actorID, req)

		assert.NoError(t, err)
		assert.Equal(t, companyID, resp.CompanyID)
		assert.Equal(t, actorID, resp.EmployeeID)
		assert.Equal(t, 3, resp.TotalDays)
		assert.Equal(t, leave.StatusPending, resp.Status)
		assert.Nil(t, resp.DecidedBy)

		outboxEvents := deps.outbox.events()
		assert.Len(t, outboxEvents, 1)
		assert.Equal(t, events.LeaveEventSubmitted, outboxEvents[0].EventType)
		assert.Equal(t, events.LeaveLifecycleTopic, outboxEvents[0].Topic)
		assert.Equal(t, resp.ID, outboxEvents[0].AggregateID)

		assert.Len(t, deps.notifier.submitted, 1)
		assert.Equal(t, resp.ID, deps.notifier.submitted[0].ID)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("single day counts as one", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, true)
		req := leave.CreateLeaveRequest{
			LeaveType: "SICK",
			StartDate: "2026-03-10",
			EndDate:   "2026-03-10",
			Reason:    "Doctor appointment today",
		}

		resp, err := deps.service.Submit(ctx, companyID, actorID, req)

		assert.NoError(t, err)
		assert.Equal(t, 1, resp.TotalDays)
	})

	t.Run("negative end before start", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		req := leave.CreateLeaveRequest{
			LeaveType: "ANNUAL",
			StartDate: "2026-03-05",
			EndDate:   "2026-03-01",
			Reason:    "Backwards interval here",
		}

		_, err := deps.service.Submit(ctx, companyID, actorID, req)

		assert.ErrorIs(t, err, leaveerrors.ErrInvalidDateRange)
		assert.Empty(t, deps.outbox.events())
		assert.Empty(t, deps.notifier.submitted)
	})

	t.Run("negative malformed date", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		req := leave.CreateLeaveRequest{
			LeaveType: "ANNUAL",
			StartDate: "03/01/2026",
			EndDate:   "2026-03-02",
			Reason:    "Wrong date format used",
		}

		_, err := deps.service.Submit(ctx, companyID, actorID, req)

		assert.ErrorIs(t, err, leaveerrors.ErrInvalidDateFormat)
	})

	t.Run("negative reason too short", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		req := leave.CreateLeaveRequest{
			LeaveType: "ANNUAL",
			StartDate: "2026-03-01",
			EndDate:   "2026-03-02",
			Reason:    "  short  ",
		}

		_, err := deps.service.Submit(ctx, companyID, actorID, req)

		assert.ErrorIs(t, err, leaveerrors.ErrReasonTooShort)
	})

	t.Run("negative reason too long", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		req := leave.CreateLeaveRequest{
			LeaveType: "ANNUAL",
			StartDate: "2026-03-01",
			EndDate:   "2026-03-02",
			Reason:    strings.Repeat("a", 501),
		}

		_, err := deps.service.Submit(ctx, companyID, actorID, req)

		assert.ErrorIs(t, err, leaveerrors.ErrReasonTooLong)
	})

	t.Run("multibyte reason is measured in characters", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		// 200 characters but 600 bytes; only a byte count would reject it.
		expectTx(t, deps.sqlMock, true)
		req := leave.CreateLeaveRequest{
			LeaveType: "ANNUAL",
			StartDate: "2026-03-01",
			EndDate:   "2026-03-03",
			Reason:    strings.Repeat("旅", 200),
		}

		_, err := deps.service.Submit(ctx, companyID, actorID, req)

		assert.NoError(t, err)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("negative multibyte reason under the minimum", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		// 6 characters, 18 bytes; a byte count would let it through.
		req := leave.CreateLeaveRequest{
			LeaveType: "ANNUAL",
			StartDate: "2026-03-01",
			EndDate:   "2026-03-03",
			Reason:    "家族旅行です",
		}

		_, err := deps.service.Submit(ctx, companyID, actorID, req)

		assert.ErrorIs(t, err, leaveerrors.ErrReasonTooShort)
	})

	t.Run("negative multibyte reason over the maximum", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		req := leave.CreateLeaveRequest{
			LeaveType: "ANNUAL",
			StartDate: "2026-03-01",
			EndDate:   "2026-03-03",
			Reason:    strings.Repeat("旅", 501),
		}

		_, err := deps.service.Submit(ctx, companyID, actorID, req)

		assert.ErrorIs(t, err, leaveerrors.ErrReasonTooLong)
	})

	t.Run("span cap at ninety days", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		// 2026-01-01 .. 2026-03-31 inclusive is 90 days.
		expectTx(t, deps.sqlMock, true)
		req := leave.CreateLeaveRequest{
			LeaveType: "UNPAID",
			StartDate: "2026-01-01",
			EndDate:   "2026-03-31",
			Reason:    "Extended unpaid sabbatical",
		}

		resp, err := deps.service.Submit(ctx, companyID, actorID, req)

		assert.NoError(t, err)
		assert.Equal(t, 90, resp.TotalDays)
	})

	t.Run("negative span over cap", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		req := leave.CreateLeaveRequest{
			LeaveType: "UNPAID",
			StartDate: "2026-01-01",
			EndDate:   "2026-04-01",
			Reason:    "Extended unpaid sabbatical",
		}

		_, err := deps.service.Submit(ctx, companyID, actorID, req)

		assert.ErrorIs(t, err, leaveerrors.ErrSpanTooLong)
	})

	t.Run("negative outbox append rolls back", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, false)
		deps.outbox.fail = errors.New("outbox down")
		req := leave.CreateLeaveRequest{
			LeaveType: "ANNUAL",
			StartDate: "2026-03-01",
			EndDate:   "2026-03-02",
			Reason:    "Family event out of town",
		}

		_, err := deps.service.Submit(ctx, companyID, actorID, req)

		assert.Error(t, err)
		assert.Empty(t, deps.notifier.submitted)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})
}

func TestLeaveService_List(t *testing.T) {
	ctx := context.Background()
	companyID := uuid.New().String()
	actorID := uuid.New().String()

	t.Run("default scope is mine", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		deps.repo.findByEmployeeFn = func(ctx context.Context, cid, eid string) ([]leave.Leave, error) {
			assert.Equal(t, companyID, cid)
			assert.Equal(t, actorID, eid)
			return []leave.Leave{{
				ID:          uuid.New(),
				CompanyID:   uuid.MustParse(companyID),
				EmployeeID:  uuid.MustParse(actorID),
				LeaveType:   "SICK",
				StartDate:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
				EndDate:     time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC),
				TotalDays:   2,
				Status:      leave.StatusPending,
				RequestedAt: time.Now().UTC(),
			}}, nil
		}

		resp, err := deps.service.List(ctx, companyID, actorID, "")

		assert.NoError(t, err)
		assert.Len(t, resp, 1)
		assert.Equal(t, actorID, resp[0].EmployeeID)
	})

	t.Run("pending scope filters by status", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		deps.repo.findByStatusFn = func(ctx context.Context, cid, status string) ([]leave.Leave, error) {
			assert.Equal(t, leave.StatusPending, status)
			return nil, nil
		}

		resp, err := deps.service.List(ctx, companyID, actorID, leave.ScopePending)

		assert.NoError(t, err)
		assert.Empty(t, resp)
	})

	t.Run("negative unknown scope", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		_, err := deps.service.List(ctx, companyID, actorID, "everything")

		assert.ErrorIs(t, err, leaveerrors.ErrInvalidScope)
	})
}

func TestLeaveService_Decide(t *testing.T) {
	ctx := context.Background()
	companyID := uuid.New().String()
	requesterID := uuid.New()
	approverID := uuid.New().String()
	leaveID := uuid.New().String()

	pendingLeave := func() *leave.Leave {
		return &leave.Leave{
			ID:          uuid.MustParse(leaveID),
			CompanyID:   uuid.MustParse(companyID),
			EmployeeID:  requesterID,
			LeaveType:   "ANNUAL",
			StartDate:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			EndDate:     time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
			TotalDays:   3,
			Status:      leave.StatusPending,
			RequestedAt: time.Now().UTC(),
		}
	}

	t.Run("approve success", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, true)
		deps.repo.findByIDAndCompanyFn = func(ctx context.Context, cid, id string) (*leave.Leave, error) {
			return pendingLeave(), nil
		}
		deps.repo.decideIfPendingFn = func(ctx context.Context, id, status string, decidedBy uuid.UUID, decidedAt time.Time) (int64, error) {
			assert.Equal(t, leaveID, id)
			assert.Equal(t, leave.StatusApproved, status)
			assert.Equal(t, approverID, decidedBy.String())
			return 1, nil
		}

		resp, err := deps.service.Decide(ctx, companyID, approverID, leaveID, leave.ActionApprove)

		assert.NoError(t, err)
		assert.Equal(t, leave.StatusApproved, resp.Status)
		if assert.NotNil(t, resp.DecidedBy) {
			assert.Equal(t, approverID, *resp.DecidedBy)
		}
		assert.NotNil(t, resp.DecidedAt)

		outboxEvents := deps.outbox.events()
		assert.Len(t, outboxEvents, 1)
		assert.Equal(t, events.LeaveEventApproved, outboxEvents[0].EventType)

		assert.Len(t, deps.notifier.decided, 1)
		assert.Equal(t, leave.StatusApproved, deps.notifier.decided[0].Status)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("reject success", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, true)
		deps.repo.findByIDAndCompanyFn = func(ctx context.Context, cid, id string) (*leave.Leave, error) {
			return pendingLeave(), nil
		}

		resp, err := deps.service.Decide(ctx, companyID, approverID, leaveID, leave.ActionReject)

		assert.NoError(t, err)
		assert.Equal(t, leave.StatusRejected, resp.Status)
	})

	t.Run("negative unknown id", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		deps.repo.findByIDAndCompanyFn = func(ctx context.Context, cid, id string) (*leave.Leave, error) {
			return nil, gorm.ErrRecordNotFound
		}

		_, err := deps.service.Decide(ctx, companyID, approverID, leaveID, leave.ActionApprove)

		assert.ErrorIs(t, err, leaveerrors.ErrLeaveNotFound)
	})

	t.Run("negative own request", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		deps.repo.findByIDAndCompanyFn = func(ctx context.Context, cid, id string) (*leave.Leave, error) {
			return pendingLeave(), nil
		}

		_, err := deps.service.Decide(ctx, companyID, requesterID.String(), leaveID, leave.ActionApprove)

		assert.ErrorIs(t, err, leaveerrors.ErrOwnDecision)
		assert.Empty(t, deps.notifier.decided)
	})

	t.Run("negative invalid action", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		_, err := deps.service.Decide(ctx, companyID, approverID, leaveID, "escalate")

		assert.ErrorIs(t, err, leaveerrors.ErrInvalidAction)
	})

	t.Run("negative already decided", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, false)
		decided := pendingLeave()
		decided.Status = leave.StatusApproved
		deps.repo.findByIDAndCompanyFn = func(ctx context.Context, cid, id string) (*leave.Leave, error) {
			return decided, nil
		}
		deps.repo.decideIfPendingFn = func(ctx context.Context, id, status string, decidedBy uuid.UUID, decidedAt time.Time) (int64, error) {
			return 0, nil
		}

		_, err := deps.service.Decide(ctx, companyID, approverID, leaveID, leave.ActionReject)

		assert.ErrorIs(t, err, leaveerrors.ErrAlreadyDecided)
		assert.Empty(t, deps.outbox.events())
		assert.Empty(t, deps.notifier.decided)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("racing approvers resolve to one winner", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		// Both goroutines open a transaction; exactly one conditional
		// update reports a changed row.
		deps.sqlMock.MatchExpectationsInOrder(false)
		deps.sqlMock.ExpectBegin()
		deps.sqlMock.ExpectBegin()
		deps.sqlMock.ExpectCommit()
		deps.sqlMock.ExpectRollback()

		deps.repo.findByIDAndCompanyFn = func(ctx context.Context, cid, id string) (*leave.Leave, error) {
			return pendingLeave(), nil
		}

		var pending int64 = 1
		deps.repo.decideIfPendingFn = func(ctx context.Context, id, status string, decidedBy uuid.UUID, decidedAt time.Time) (int64, error) {
			deps.repo.mu.Lock()
			defer deps.repo.mu.Unlock()
			rows := pending
			pending = 0
			return rows, nil
		}

		secondApprover := uuid.New().String()
		results := make(chan error, 2)
		var wg sync.WaitGroup
		for _, actor := range []string{approverID, secondApprover} {
			wg.Add(1)
			go func(actor string) {
				defer wg.Done()
				_, err := deps.service.Decide(ctx, companyID, actor, leaveID, leave.ActionApprove)
				results <- err
			}(actor)
		}
		wg.Wait()
		close(results)

		var wins, conflicts int
		for err := range results {
			switch {
			case err == nil:
				wins++
			case errors.Is(err, leaveerrors.ErrAlreadyDecided):
				conflicts++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, wins)
		assert.Equal(t, 1, conflicts)
		assert.Len(t, deps.notifier.decided, 1)
	})
}
