package sla_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/sla"
)

var now = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func evaluate(t *testing.T, store *memoryTimers, notifier *recordingNotifier, at time.Time, opts ...sla.Option) sla.Result {
	t.Helper()
	timers, err := store.ListActive(context.Background())
	require.NoError(t, err)
	return sla.NewEvaluator(store, notifier, zap.NewNop(), opts...).EvaluateAll(context.Background(), at, timers)
}

func TestEvaluateAll_BreachNotifiesOnce(t *testing.T) {
	store := newMemoryTimers(activeTimer("a", now.Add(-2*time.Hour)))
	notifier := &recordingNotifier{}

	first := evaluate(t, store, notifier, now)
	assert.Equal(t, sla.Result{Breaches: 1}, first)
	require.Len(t, notifier.sent(), 1)

	event := notifier.sent()[0]
	assert.Equal(t, domain.NotificationSLABreach, event.Kind)
	assert.Equal(t, "ticket-a", event.TicketID)
	assert.Equal(t, "HD-a", event.TicketKey)
	assert.Equal(t, "a@example.com", event.Recipient)
	assert.Equal(t, domain.RecipientAssignee, event.Role)
	require.NotNil(t, event.DueDate)
	assert.True(t, event.DueDate.Equal(now.Add(-2*time.Hour)))
	assert.True(t, store.get("a").BreachNotificationSent)

	second := evaluate(t, store, notifier, now.Add(time.Minute))
	assert.Equal(t, 1, second.Breaches, "still breached, still counted")
	assert.Len(t, notifier.sent(), 1, "no second breach event")
}

func TestEvaluateAll_DueExactlyNowIsBreached(t *testing.T) {
	store := newMemoryTimers(activeTimer("a", now))
	notifier := &recordingNotifier{}

	result := evaluate(t, store, notifier, now)

	assert.Equal(t, 1, result.Breaches)
	assert.Equal(t, 0, result.Warnings)
	assert.Equal(t, []domain.NotificationKind{domain.NotificationSLABreach}, notifier.kinds())
	assert.False(t, store.get("a").WarningSent)
}

func TestEvaluateAll_BreachSuppressesWarning(t *testing.T) {
	store := newMemoryTimers(activeTimer("a", now.Add(-time.Minute)))
	notifier := &recordingNotifier{}

	result := evaluate(t, store, notifier, now)

	assert.Equal(t, sla.Result{Breaches: 1}, result)
	assert.Equal(t, []domain.NotificationKind{domain.NotificationSLABreach}, notifier.kinds())
	assert.False(t, store.get("a").WarningSent, "a timer that skipped its warning window never gets one")
}

func TestEvaluateAll_WarningInsideWindow(t *testing.T) {
	store := newMemoryTimers(activeTimer("a", now.Add(30*time.Minute)))
	notifier := &recordingNotifier{}

	first := evaluate(t, store, notifier, now)
	assert.Equal(t, sla.Result{Warnings: 1}, first)
	assert.Equal(t, []domain.NotificationKind{domain.NotificationSLAWarning}, notifier.kinds())
	assert.True(t, store.get("a").WarningSent)
	assert.False(t, store.get("a").BreachNotificationSent)

	second := evaluate(t, store, notifier, now.Add(10*time.Minute))
	assert.Equal(t, sla.Result{}, second)
	assert.Len(t, notifier.sent(), 1)
}

func TestEvaluateAll_WarningWindowBoundaries(t *testing.T) {
	tests := []struct {
		name     string
		due      time.Time
		warnings int
	}{
		{name: "exactly one hour out", due: now.Add(time.Hour), warnings: 1},
		{name: "one nanosecond inside", due: now.Add(time.Nanosecond), warnings: 1},
		{name: "just outside the window", due: now.Add(time.Hour + time.Nanosecond), warnings: 0},
		{name: "far away", due: now.Add(48 * time.Hour), warnings: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemoryTimers(activeTimer("a", tt.due))
			notifier := &recordingNotifier{}

			result := evaluate(t, store, notifier, now)

			assert.Equal(t, tt.warnings, result.Warnings)
			assert.Equal(t, 0, result.Breaches)
			assert.Len(t, notifier.sent(), tt.warnings)
			assert.Equal(t, tt.warnings == 1, store.get("a").WarningSent)
		})
	}
}

func TestEvaluateAll_CustomWarningWindow(t *testing.T) {
	store := newMemoryTimers(activeTimer("a", now.Add(90*time.Minute)))
	notifier := &recordingNotifier{}

	result := evaluate(t, store, notifier, now, sla.WithWarningWindow(2*time.Hour))

	assert.Equal(t, 1, result.Warnings)
}

func TestEvaluateAll_AlreadyFlaggedTimersEmitNothing(t *testing.T) {
	warned := activeTimer("w", now.Add(20*time.Minute))
	warned.WarningSent = true
	breached := activeTimer("b", now.Add(-time.Hour))
	breached.WarningSent = true
	breached.BreachNotificationSent = true
	store := newMemoryTimers(warned, breached)
	notifier := &recordingNotifier{}

	result := evaluate(t, store, notifier, now)

	assert.Equal(t, sla.Result{Breaches: 1}, result)
	assert.Empty(t, notifier.sent())
	assert.Zero(t, store.markCalls())
}

func TestEvaluateAll_LostClaimEmitsNothing(t *testing.T) {
	store := newMemoryTimers(activeTimer("a", now.Add(15*time.Minute)), activeTimer("b", now.Add(-time.Minute)))
	timers, err := store.ListActive(context.Background())
	require.NoError(t, err)

	// Another pass flips both flags after our snapshot was taken.
	_, _ = store.MarkWarningSent(context.Background(), "a")
	_, _ = store.MarkBreachNotified(context.Background(), "b")

	notifier := &recordingNotifier{}
	result := sla.NewEvaluator(store, notifier, zap.NewNop()).EvaluateAll(context.Background(), now, timers)

	assert.Equal(t, sla.Result{Breaches: 1}, result)
	assert.Empty(t, notifier.sent())
}

func TestEvaluateAll_MissingRecipientStillClaimsFlag(t *testing.T) {
	tests := []struct {
		name  string
		email *string
	}{
		{name: "no assignee", email: nil},
		{name: "blank email", email: email("   ")},
		{name: "unparsable email", email: email("not an address")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			breached := activeTimer("b", now.Add(-time.Hour))
			breached.AssigneeEmail = tt.email
			warned := activeTimer("w", now.Add(time.Minute))
			warned.AssigneeEmail = tt.email
			store := newMemoryTimers(breached, warned)
			notifier := &recordingNotifier{}

			result := evaluate(t, store, notifier, now)

			assert.Equal(t, sla.Result{Breaches: 1, Warnings: 1}, result)
			assert.Empty(t, notifier.sent())
			assert.True(t, store.get("b").BreachNotificationSent)
			assert.True(t, store.get("w").WarningSent)
		})
	}
}

func TestEvaluateAll_PersistenceFailureIsIsolated(t *testing.T) {
	store := newMemoryTimers(
		activeTimer("a", now.Add(-time.Hour)),
		activeTimer("b", now.Add(-time.Hour)),
		activeTimer("c", now.Add(30*time.Minute)),
	)
	store.markErr["a"] = errors.New("connection reset")
	notifier := &recordingNotifier{}

	result := evaluate(t, store, notifier, now)

	assert.Equal(t, sla.Result{Breaches: 2, Warnings: 1, Failed: 1}, result)
	assert.ElementsMatch(t, []domain.NotificationKind{domain.NotificationSLABreach, domain.NotificationSLAWarning}, notifier.kinds())
	for _, event := range notifier.sent() {
		assert.NotEqual(t, "ticket-a", event.TicketID)
	}
	assert.False(t, store.get("a").BreachNotificationSent)

	// The flag was never written, so the next pass retries.
	delete(store.markErr, "a")
	retry := evaluate(t, store, notifier, now.Add(time.Minute))
	assert.Equal(t, 0, retry.Failed)
	assert.Len(t, notifier.sent(), 3)
}

func TestEvaluateAll_MissingTicketReference(t *testing.T) {
	orphan := activeTimer("a", now.Add(-time.Hour))
	orphan.TicketID = ""
	store := newMemoryTimers(orphan, activeTimer("b", now.Add(-time.Hour)))
	notifier := &recordingNotifier{}

	result := evaluate(t, store, notifier, now)

	assert.Equal(t, sla.Result{Breaches: 1, Failed: 1}, result)
	assert.Len(t, notifier.sent(), 1)
	assert.False(t, store.get("a").BreachNotificationSent)
}

func TestEvaluateAll_FallsBackToTicketIDWithoutKey(t *testing.T) {
	timer := activeTimer("a", now.Add(-time.Hour))
	timer.TicketKey = ""
	store := newMemoryTimers(timer)
	notifier := &recordingNotifier{}

	evaluate(t, store, notifier, now)

	require.Len(t, notifier.sent(), 1)
	assert.Equal(t, "ticket-a", notifier.sent()[0].TicketKey)
}

func TestResolveRecipient(t *testing.T) {
	timer := activeTimer("a", now)
	timer.AssigneeEmail = email(" Jane Doe <jane@example.com> ")
	got, err := sla.ResolveRecipient(timer)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", got)

	timer.AssigneeEmail = nil
	_, err = sla.ResolveRecipient(timer)
	assert.ErrorIs(t, err, sla.ErrRecipientUnavailable)
}

func TestResultSummary(t *testing.T) {
	assert.Equal(t, "SLA check completed. Found 2 breaches and sent 1 warnings.",
		sla.Result{Breaches: 2, Warnings: 1}.Summary())
	assert.Equal(t, "SLA check completed. Found 0 breaches and sent 0 warnings. 3 timers failed.",
		sla.Result{Failed: 3}.Summary())
}
