package repository

import (
	"context"
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// SLARepository tracks ticket due times and breach alerts.
type SLARepository interface {
	Upsert(ctx context.Context, sla *domain.SLA) error
	GetByTicket(ctx context.Context, ticketID string) (*domain.SLA, error)
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]domain.OverdueSLA, error)
	MarkAlerted(ctx context.Context, id string) error
	CountOverdue(ctx context.Context, now time.Time, requesterID *string) (int64, error)
}

type slaRepository struct {
	db DBTX
}

// NewSLARepository constructs repository.
func NewSLARepository(db DBTX) SLARepository {
	return &slaRepository{db: db}
}

// Upsert stores the due time for a ticket, resetting the alert when it moves.
func (r *slaRepository) Upsert(ctx context.Context, sla *domain.SLA) error {
	const query = `
        INSERT INTO sla (ticket_id, due_time)
        VALUES ($1,$2)
        ON CONFLICT (ticket_id) DO UPDATE SET due_time=EXCLUDED.due_time, alert_sent=FALSE
        RETURNING id, alert_sent`
	return r.db.QueryRow(ctx, query, sla.TicketID, sla.DueTime).Scan(&sla.ID, &sla.AlertSent)
}

func (r *slaRepository) GetByTicket(ctx context.Context, ticketID string) (*domain.SLA, error) {
	const query = `SELECT id, ticket_id, due_time, alert_sent FROM sla WHERE ticket_id=$1`
	var sla domain.SLA
	if err := r.db.QueryRow(ctx, query, ticketID).Scan(&sla.ID, &sla.TicketID, &sla.DueTime, &sla.AlertSent); err != nil {
		return nil, err
	}
	return &sla, nil
}

func (r *slaRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]domain.OverdueSLA, error) {
	limit, _ = normalizePage(limit, 0, 100, 1000)
	const query = `
        SELECT s.id, s.ticket_id, s.due_time, s.alert_sent, t.external_key, t.title, t.assigned_to
        FROM sla s JOIN tickets t ON t.id = s.ticket_id
        WHERE s.alert_sent=FALSE AND s.due_time < $1 AND t.status NOT IN ('Resolved', 'Closed')
        ORDER BY s.due_time ASC LIMIT $2`
	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.OverdueSLA
	for rows.Next() {
		var item domain.OverdueSLA
		if err := rows.Scan(
			&item.ID,
			&item.TicketID,
			&item.DueTime,
			&item.AlertSent,
			&item.ExternalKey,
			&item.Title,
			&item.AssigneeID,
		); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

func (r *slaRepository) MarkAlerted(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `UPDATE sla SET alert_sent=TRUE WHERE id=$1`, id)
	return err
}

// CountOverdue counts unfinished tickets past due, optionally for one requester.
func (r *slaRepository) CountOverdue(ctx context.Context, now time.Time, requesterID *string) (int64, error) {
	query := `
        SELECT COUNT(*) FROM sla s JOIN tickets t ON t.id = s.ticket_id
        WHERE s.due_time < $1 AND t.status NOT IN ('Resolved', 'Closed')`
	args := []any{now}
	if requesterID != nil {
		query += ` AND t.user_id = $2`
		args = append(args, *requesterID)
	}
	var total int64
	err := r.db.QueryRow(ctx, query, args...).Scan(&total)
	return total, err
}
