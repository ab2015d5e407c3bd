package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// ErrOpenTimerExists is returned when a ticket already owns an active or paused timer.
var ErrOpenTimerExists = errors.New("ticket already has an open sla timer")

// SLATimerRepository persists SLA timers.
//
// ListActive returns a fully materialised slice; callers never see lazily loaded rows.
// The Mark* methods update exactly one column, only while the flag is still false and the
// timer is still active, and report whether this call performed the flip.
type SLATimerRepository interface {
	Create(ctx context.Context, timer *domain.SLATimer) error
	GetByTicketID(ctx context.Context, ticketID string) (*domain.SLATimer, error)
	ListActive(ctx context.Context) ([]domain.SLATimer, error)
	ListByStatus(ctx context.Context, status domain.SLAStatus, limit int) ([]domain.SLATimer, error)
	UpdateStatus(ctx context.Context, id string, from, to domain.SLAStatus) error
	MarkWarningSent(ctx context.Context, id string) (bool, error)
	MarkBreachNotified(ctx context.Context, id string) (bool, error)
}

type slaTimerRepository struct {
	pool *pgxpool.Pool
}

// NewSLATimerRepository instantiates the Postgres-backed repository.
func NewSLATimerRepository(pool *pgxpool.Pool) SLATimerRepository {
	return &slaTimerRepository{pool: pool}
}

const timerSelect = `
        SELECT t.id, t.ticket_id, tk.external_key, s.email, t.due_date, t.status,
               t.warning_sent, t.breach_notification_sent, t.created_at, t.updated_at
        FROM sla_timers t
        -- a timer never outlives its ticket (ON DELETE CASCADE)
        JOIN tickets tk ON tk.id = t.ticket_id
        LEFT JOIN staff_members s ON s.id = tk.assignee_staff_id`

func (r *slaTimerRepository) Create(ctx context.Context, timer *domain.SLATimer) error {
	const query = `
        INSERT INTO sla_timers (ticket_id, due_date, status, warning_sent, breach_notification_sent)
        VALUES ($1,$2,$3,FALSE,FALSE)
        ON CONFLICT DO NOTHING
        RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query, timer.TicketID, timer.DueDate.UTC(), timer.Status).
		Scan(&timer.ID, &timer.CreatedAt, &timer.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrOpenTimerExists
	}
	return err
}

func (r *slaTimerRepository) GetByTicketID(ctx context.Context, ticketID string) (*domain.SLATimer, error) {
	query := timerSelect + `
        WHERE t.ticket_id=$1
        ORDER BY t.created_at DESC
        LIMIT 1`
	timer, err := scanTimer(r.pool.QueryRow(ctx, query, ticketID))
	if err != nil {
		return nil, err
	}
	return timer, nil
}

func (r *slaTimerRepository) ListActive(ctx context.Context) ([]domain.SLATimer, error) {
	return r.ListByStatus(ctx, domain.SLAStatusActive, 0)
}

func (r *slaTimerRepository) ListByStatus(ctx context.Context, status domain.SLAStatus, limit int) ([]domain.SLATimer, error) {
	query := timerSelect + `
        WHERE t.status=$1
        ORDER BY t.due_date ASC`
	args := []any{status}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.SLATimer{}
	for rows.Next() {
		timer, err := scanTimer(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *timer)
	}
	return result, rows.Err()
}

func (r *slaTimerRepository) UpdateStatus(ctx context.Context, id string, from, to domain.SLAStatus) error {
	const query = `
        UPDATE sla_timers SET status=$1, updated_at=NOW()
        WHERE id=$2 AND status=$3`
	cmd, err := r.pool.Exec(ctx, query, to, id, from)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *slaTimerRepository) MarkWarningSent(ctx context.Context, id string) (bool, error) {
	const query = `
        UPDATE sla_timers SET warning_sent=TRUE
        WHERE id=$1 AND warning_sent=FALSE AND status='ACTIVE'`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *slaTimerRepository) MarkBreachNotified(ctx context.Context, id string) (bool, error) {
	const query = `
        UPDATE sla_timers SET breach_notification_sent=TRUE
        WHERE id=$1 AND breach_notification_sent=FALSE AND status='ACTIVE'`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func scanTimer(row pgx.Row) (*domain.SLATimer, error) {
	var timer domain.SLATimer
	if err := row.Scan(
		&timer.ID,
		&timer.TicketID,
		&timer.TicketKey,
		&timer.AssigneeEmail,
		&timer.DueDate,
		&timer.Status,
		&timer.WarningSent,
		&timer.BreachNotificationSent,
		&timer.CreatedAt,
		&timer.UpdatedAt,
	); err != nil {
		return nil, err
	}
	timer.DueDate = timer.DueDate.UTC()
	return &timer, nil
}

func utcNow() time.Time { return time.Now().UTC() }

// IsNotFound reports whether err means the row does not exist in either backend.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows)
}
