package service_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

type memoryTickets struct {
	mu      sync.Mutex
	tickets map[string]domain.Ticket
	seq     int
}

func newMemoryTickets() *memoryTickets {
	return &memoryTickets{tickets: map[string]domain.Ticket{}}
}

func (m *memoryTickets) Create(_ context.Context, ticket *domain.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	ticket.ID = fmt.Sprintf("ticket-%d", m.seq)
	m.tickets[ticket.ID] = *ticket
	return nil
}

func (m *memoryTickets) Update(_ context.Context, ticket *domain.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tickets[ticket.ID]; !ok {
		return sql.ErrNoRows
	}
	m.tickets[ticket.ID] = *ticket
	return nil
}

func (m *memoryTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ticket, ok := m.tickets[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &ticket, nil
}

func (m *memoryTickets) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tickets[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.tickets, id)
	return nil
}

func (m *memoryTickets) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tickets)
}

type memoryStaff map[string]domain.StaffMember

func (m memoryStaff) GetByID(_ context.Context, id string) (*domain.StaffMember, error) {
	staff, ok := m[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &staff, nil
}

type timerCall struct {
	Op       string
	TicketID string
}

type recordingTimers struct {
	calls []timerCall
	err   error
}

func (r *recordingTimers) Start(_ context.Context, ticketID string, priority domain.TicketPriority, now time.Time) (*domain.SLATimer, error) {
	r.calls = append(r.calls, timerCall{"start", ticketID})
	if r.err != nil {
		return nil, r.err
	}
	return &domain.SLATimer{ID: "timer-" + ticketID, TicketID: ticketID, Status: domain.SLAStatusActive, DueDate: now}, nil
}

func (r *recordingTimers) Pause(_ context.Context, ticketID string) error {
	r.calls = append(r.calls, timerCall{"pause", ticketID})
	return r.err
}

func (r *recordingTimers) Resume(_ context.Context, ticketID string) error {
	r.calls = append(r.calls, timerCall{"resume", ticketID})
	return r.err
}

func (r *recordingTimers) Complete(_ context.Context, ticketID string) error {
	r.calls = append(r.calls, timerCall{"complete", ticketID})
	return r.err
}

type recordingEnqueuer struct {
	events []domain.NotificationEvent
}

func (r *recordingEnqueuer) Enqueue(_ context.Context, event domain.NotificationEvent) {
	r.events = append(r.events, event)
}

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }
