package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

type sqliteTimerRepository struct {
	db *sqlx.DB
}

// NewSQLiteTimerRepository returns a timer repository on a local SQLite database.
func NewSQLiteTimerRepository(db *sqlx.DB) SLATimerRepository {
	return &sqliteTimerRepository{db: db}
}

type sqliteTimerRow struct {
	ID                     string         `db:"id"`
	TicketID               string         `db:"ticket_id"`
	TicketKey              string         `db:"external_key"`
	AssigneeEmail          sql.NullString `db:"email"`
	DueAt                  int64          `db:"due_at"`
	Status                 string         `db:"status"`
	WarningSent            bool           `db:"warning_sent"`
	BreachNotificationSent bool           `db:"breach_notification_sent"`
	CreatedAt              int64          `db:"created_at"`
	UpdatedAt              int64          `db:"updated_at"`
}

func (r sqliteTimerRow) toDomain() domain.SLATimer {
	timer := domain.SLATimer{
		ID:                     r.ID,
		TicketID:               r.TicketID,
		TicketKey:              r.TicketKey,
		DueDate:                time.Unix(0, r.DueAt).UTC(),
		Status:                 domain.SLAStatus(r.Status),
		WarningSent:            r.WarningSent,
		BreachNotificationSent: r.BreachNotificationSent,
		CreatedAt:              time.Unix(0, r.CreatedAt).UTC(),
		UpdatedAt:              time.Unix(0, r.UpdatedAt).UTC(),
	}
	if r.AssigneeEmail.Valid {
		email := r.AssigneeEmail.String
		timer.AssigneeEmail = &email
	}
	return timer
}

const sqliteTimerSelect = `
	SELECT t.id, t.ticket_id, tk.external_key, s.email, t.due_at, t.status,
	       t.warning_sent, t.breach_notification_sent, t.created_at, t.updated_at
	FROM sla_timers t
	-- a timer never outlives its ticket (ON DELETE CASCADE)
	JOIN tickets tk ON tk.id = t.ticket_id
	LEFT JOIN staff_members s ON s.id = tk.assignee_staff_id`

func (r *sqliteTimerRepository) Create(ctx context.Context, timer *domain.SLATimer) error {
	now := utcNow()
	if timer.ID == "" {
		timer.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO sla_timers (id, ticket_id, due_at, status, warning_sent, breach_notification_sent, created_at, updated_at)
	VALUES (?, ?, ?, ?, 0, 0, ?, ?)`,
		timer.ID, timer.TicketID, timer.DueDate.UTC().UnixNano(), string(timer.Status), now.UnixNano(), now.UnixNano(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrOpenTimerExists
		}
		return err
	}
	timer.CreatedAt = now
	timer.UpdatedAt = now
	return nil
}

func (r *sqliteTimerRepository) GetByTicketID(ctx context.Context, ticketID string) (*domain.SLATimer, error) {
	var row sqliteTimerRow
	err := r.db.GetContext(ctx, &row, sqliteTimerSelect+`
	WHERE t.ticket_id = ?
	ORDER BY t.created_at DESC
	LIMIT 1`, ticketID)
	if err != nil {
		return nil, err
	}
	timer := row.toDomain()
	return &timer, nil
}

func (r *sqliteTimerRepository) ListActive(ctx context.Context) ([]domain.SLATimer, error) {
	return r.ListByStatus(ctx, domain.SLAStatusActive, 0)
}

func (r *sqliteTimerRepository) ListByStatus(ctx context.Context, status domain.SLAStatus, limit int) ([]domain.SLATimer, error) {
	query := sqliteTimerSelect + `
	WHERE t.status = ?
	ORDER BY t.due_at ASC`
	args := []any{string(status)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows []sqliteTimerRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	result := make([]domain.SLATimer, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

func (r *sqliteTimerRepository) UpdateStatus(ctx context.Context, id string, from, to domain.SLAStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sla_timers SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), utcNow().UnixNano(), id, string(from),
	)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (r *sqliteTimerRepository) MarkWarningSent(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sla_timers SET warning_sent = 1 WHERE id = ? AND warning_sent = 0 AND status = 'ACTIVE'`, id)
	if err != nil {
		return false, err
	}
	return flipped(res)
}

func (r *sqliteTimerRepository) MarkBreachNotified(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sla_timers SET breach_notification_sent = 1 WHERE id = ? AND breach_notification_sent = 0 AND status = 'ACTIVE'`, id)
	if err != nil {
		return false, err
	}
	return flipped(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func flipped(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
