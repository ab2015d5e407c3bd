package repository_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/persistence"
	"github.com/spec-kit/helpdesk-sla/internal/repository"
)

func newTestSQLite(t *testing.T) *sqlx.DB {
	t.Helper()
	store, err := persistence.NewSQLite(filepath.Join(t.TempDir(), "helpdesk.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store.DB
}

func seedTicket(t *testing.T, db *sqlx.DB, ticketID, key string, assigneeEmail *string) {
	t.Helper()
	now := time.Now().UnixNano()
	var assignee any
	if assigneeEmail != nil {
		staffID := "staff-" + ticketID
		_, err := db.Exec(`INSERT INTO staff_members (id, name, email, active, created_at, updated_at) VALUES (?, ?, ?, 1, ?, ?)`,
			staffID, "Engineer", *assigneeEmail, now, now)
		require.NoError(t, err)
		assignee = staffID
	}
	_, err := db.Exec(`INSERT INTO tickets (id, external_key, requester_email, assignee_staff_id, title, status, priority, created_at, updated_at)
		VALUES (?, ?, 'requester@example.com', ?, 'Printer down', 'OPEN', 'HIGH', ?, ?)`,
		ticketID, key, assignee, now, now)
	require.NoError(t, err)
}

func strPtr(s string) *string { return &s }

func TestSQLiteTimerRepository_ListActiveJoinsTicketAndAssignee(t *testing.T) {
	db := newTestSQLite(t)
	repo := repository.NewSQLiteTimerRepository(db)
	ctx := context.Background()
	due := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	seedTicket(t, db, "t1", "TCK-1", strPtr("eng@example.com"))
	seedTicket(t, db, "t2", "TCK-2", nil)
	seedTicket(t, db, "t3", "TCK-3", strPtr("other@example.com"))

	active := &domain.SLATimer{TicketID: "t1", DueDate: due, Status: domain.SLAStatusActive}
	unassigned := &domain.SLATimer{TicketID: "t2", DueDate: due.Add(-time.Hour), Status: domain.SLAStatusActive}
	paused := &domain.SLATimer{TicketID: "t3", DueDate: due, Status: domain.SLAStatusPaused}
	for _, timer := range []*domain.SLATimer{active, unassigned, paused} {
		require.NoError(t, repo.Create(ctx, timer))
		require.NotEmpty(t, timer.ID)
	}

	timers, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, timers, 2)

	assert.Equal(t, unassigned.ID, timers[0].ID, "ordered by due date")
	assert.Nil(t, timers[0].AssigneeEmail)
	assert.Equal(t, "TCK-1", timers[1].TicketKey)
	require.NotNil(t, timers[1].AssigneeEmail)
	assert.Equal(t, "eng@example.com", *timers[1].AssigneeEmail)
	assert.True(t, due.Equal(timers[1].DueDate))
	assert.False(t, timers[1].WarningSent)
	assert.False(t, timers[1].BreachNotificationSent)
}

func TestSQLiteTimerRepository_MarkFlagsAreCompareAndSet(t *testing.T) {
	db := newTestSQLite(t)
	repo := repository.NewSQLiteTimerRepository(db)
	ctx := context.Background()

	seedTicket(t, db, "t1", "TCK-1", strPtr("eng@example.com"))
	timer := &domain.SLATimer{TicketID: "t1", DueDate: time.Now().Add(time.Hour), Status: domain.SLAStatusActive}
	require.NoError(t, repo.Create(ctx, timer))

	ok, err := repo.MarkWarningSent(ctx, timer.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkWarningSent(ctx, timer.ID)
	require.NoError(t, err)
	assert.False(t, ok, "second flip is a no-op")

	got, err := repo.GetByTicketID(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, got.WarningSent)
	assert.False(t, got.BreachNotificationSent, "only the warning column changed")

	ok, err = repo.MarkBreachNotified(ctx, timer.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.MarkBreachNotified(ctx, timer.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteTimerRepository_MarkIgnoresInactiveTimers(t *testing.T) {
	db := newTestSQLite(t)
	repo := repository.NewSQLiteTimerRepository(db)
	ctx := context.Background()

	seedTicket(t, db, "t1", "TCK-1", strPtr("eng@example.com"))
	timer := &domain.SLATimer{TicketID: "t1", DueDate: time.Now().Add(-time.Hour), Status: domain.SLAStatusActive}
	require.NoError(t, repo.Create(ctx, timer))
	require.NoError(t, repo.UpdateStatus(ctx, timer.ID, domain.SLAStatusActive, domain.SLAStatusCompleted))

	ok, err := repo.MarkBreachNotified(ctx, timer.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.MarkWarningSent(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteTimerRepository_OneOpenTimerPerTicket(t *testing.T) {
	db := newTestSQLite(t)
	repo := repository.NewSQLiteTimerRepository(db)
	ctx := context.Background()

	seedTicket(t, db, "t1", "TCK-1", nil)
	first := &domain.SLATimer{TicketID: "t1", DueDate: time.Now(), Status: domain.SLAStatusActive}
	require.NoError(t, repo.Create(ctx, first))

	second := &domain.SLATimer{TicketID: "t1", DueDate: time.Now(), Status: domain.SLAStatusActive}
	assert.ErrorIs(t, repo.Create(ctx, second), repository.ErrOpenTimerExists)

	require.NoError(t, repo.UpdateStatus(ctx, first.ID, domain.SLAStatusActive, domain.SLAStatusCompleted))
	third := &domain.SLATimer{TicketID: "t1", DueDate: time.Now(), Status: domain.SLAStatusActive}
	assert.NoError(t, repo.Create(ctx, third), "completed timers do not block a new one")
}

func TestSQLiteTimerRepository_UpdateStatusRequiresExpectedState(t *testing.T) {
	db := newTestSQLite(t)
	repo := repository.NewSQLiteTimerRepository(db)
	ctx := context.Background()

	seedTicket(t, db, "t1", "TCK-1", nil)
	timer := &domain.SLATimer{TicketID: "t1", DueDate: time.Now(), Status: domain.SLAStatusActive}
	require.NoError(t, repo.Create(ctx, timer))

	err := repo.UpdateStatus(ctx, timer.ID, domain.SLAStatusPaused, domain.SLAStatusActive)
	assert.True(t, repository.IsNotFound(err))

	_, err = repo.GetByTicketID(ctx, "nope")
	assert.True(t, repository.IsNotFound(err))
}

func TestSQLiteTimerRepository_DeletingTicketRemovesItsTimer(t *testing.T) {
	db := newTestSQLite(t)
	repo := repository.NewSQLiteTimerRepository(db)
	ctx := context.Background()
	due := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	seedTicket(t, db, "t1", "TCK-1", strPtr("eng@example.com"))
	seedTicket(t, db, "t2", "TCK-2", nil)
	require.NoError(t, repo.Create(ctx, &domain.SLATimer{TicketID: "t1", DueDate: due, Status: domain.SLAStatusActive}))
	require.NoError(t, repo.Create(ctx, &domain.SLATimer{TicketID: "t2", DueDate: due, Status: domain.SLAStatusActive}))

	_, err := db.Exec(`DELETE FROM tickets WHERE id = ?`, "t1")
	require.NoError(t, err)

	var stored int
	require.NoError(t, db.Get(&stored, `SELECT COUNT(*) FROM sla_timers`))
	assert.Equal(t, 1, stored)

	timers, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, timers, 1)
	assert.Equal(t, "t2", timers[0].TicketID)
}
