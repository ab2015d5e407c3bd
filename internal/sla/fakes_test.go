package sla_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// memoryTimers is an in-memory timer store with compare-and-set flag updates.
type memoryTimers struct {
	mu       sync.Mutex
	timers   map[string]*domain.SLATimer
	markErr  map[string]error
	listErr  error
	marks    int
	listings int
}

func newMemoryTimers(timers ...domain.SLATimer) *memoryTimers {
	m := &memoryTimers{timers: map[string]*domain.SLATimer{}, markErr: map[string]error{}}
	for i := range timers {
		timer := timers[i]
		m.timers[timer.ID] = &timer
	}
	return m
}

func (m *memoryTimers) ListActive(context.Context) ([]domain.SLATimer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listings++
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.SLATimer
	for _, timer := range m.timers {
		if timer.Status == domain.SLAStatusActive {
			out = append(out, *timer)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryTimers) MarkWarningSent(_ context.Context, id string) (bool, error) {
	return m.mark(id, func(t *domain.SLATimer) *bool { return &t.WarningSent })
}

func (m *memoryTimers) MarkBreachNotified(_ context.Context, id string) (bool, error) {
	return m.mark(id, func(t *domain.SLATimer) *bool { return &t.BreachNotificationSent })
}

func (m *memoryTimers) mark(id string, field func(*domain.SLATimer) *bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marks++
	if err := m.markErr[id]; err != nil {
		return false, err
	}
	timer, ok := m.timers[id]
	if !ok || timer.Status != domain.SLAStatusActive {
		return false, nil
	}
	flag := field(timer)
	if *flag {
		return false, nil
	}
	*flag = true
	return true, nil
}

func (m *memoryTimers) get(id string) domain.SLATimer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.timers[id]
}

func (m *memoryTimers) markCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.marks
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.NotificationEvent
}

func (r *recordingNotifier) Enqueue(_ context.Context, event domain.NotificationEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingNotifier) sent() []domain.NotificationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.NotificationEvent(nil), r.events...)
}

func (r *recordingNotifier) kinds() []domain.NotificationKind {
	var kinds []domain.NotificationKind
	for _, event := range r.sent() {
		kinds = append(kinds, event.Kind)
	}
	return kinds
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func email(s string) *string { return &s }

func activeTimer(id string, due time.Time) domain.SLATimer {
	return domain.SLATimer{
		ID:            id,
		TicketID:      "ticket-" + id,
		TicketKey:     "HD-" + id,
		AssigneeEmail: email(id + "@example.com"),
		DueDate:       due,
		Status:        domain.SLAStatusActive,
	}
}
