package repository

import (
	"context"
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// StatsRepository runs the aggregate queries behind dashboards and reports.
// Only the scoping fields of TicketFilter (requester, assignee, status,
// priority, created range) are applied.
type StatsRepository interface {
	StatusCounts(ctx context.Context, scope TicketFilter) (map[domain.TicketStatus]int64, error)
	PriorityCounts(ctx context.Context, scope TicketFilter) (map[domain.TicketPriority]int64, error)
	MonthlyCounts(ctx context.Context, year int) (map[int]int64, error)
	CreatedTimes(ctx context.Context, scope TicketFilter) ([]time.Time, error)
	CountAssigned(ctx context.Context, scope TicketFilter) (int64, error)
}

type statsRepository struct {
	db DBTX
}

// NewStatsRepository constructs repository.
func NewStatsRepository(db DBTX) StatsRepository {
	return &statsRepository{db: db}
}

func (r *statsRepository) StatusCounts(ctx context.Context, scope TicketFilter) (map[domain.TicketStatus]int64, error) {
	where, args := buildTicketWhere(scope)
	rows, err := r.db.Query(ctx, `SELECT t.status, COUNT(*) FROM tickets t WHERE `+where+` GROUP BY t.status`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.TicketStatus]int64, len(domain.TicketStatuses))
	for rows.Next() {
		var (
			status domain.TicketStatus
			total  int64
		)
		if err := rows.Scan(&status, &total); err != nil {
			return nil, err
		}
		counts[status] = total
	}
	return counts, rows.Err()
}

func (r *statsRepository) PriorityCounts(ctx context.Context, scope TicketFilter) (map[domain.TicketPriority]int64, error) {
	where, args := buildTicketWhere(scope)
	rows, err := r.db.Query(ctx, `SELECT t.priority, COUNT(*) FROM tickets t WHERE `+where+` GROUP BY t.priority`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.TicketPriority]int64, len(domain.TicketPriorities))
	for rows.Next() {
		var (
			priority domain.TicketPriority
			total    int64
		)
		if err := rows.Scan(&priority, &total); err != nil {
			return nil, err
		}
		counts[priority] = total
	}
	return counts, rows.Err()
}

// MonthlyCounts returns tickets created per month (1-12) of year.
func (r *statsRepository) MonthlyCounts(ctx context.Context, year int) (map[int]int64, error) {
	const query = `
        SELECT EXTRACT(MONTH FROM created_at)::int AS month, COUNT(*)
        FROM tickets
        WHERE EXTRACT(YEAR FROM created_at)::int = $1
        GROUP BY month ORDER BY month`
	rows, err := r.db.Query(ctx, query, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int64, 12)
	for rows.Next() {
		var (
			month int
			total int64
		)
		if err := rows.Scan(&month, &total); err != nil {
			return nil, err
		}
		counts[month] = total
	}
	return counts, rows.Err()
}

func (r *statsRepository) CreatedTimes(ctx context.Context, scope TicketFilter) ([]time.Time, error) {
	where, args := buildTicketWhere(scope)
	rows, err := r.db.Query(ctx, `SELECT t.created_at FROM tickets t WHERE `+where+` ORDER BY t.created_at ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []time.Time
	for rows.Next() {
		var created time.Time
		if err := rows.Scan(&created); err != nil {
			return nil, err
		}
		result = append(result, created)
	}
	return result, rows.Err()
}

func (r *statsRepository) CountAssigned(ctx context.Context, scope TicketFilter) (int64, error) {
	where, args := buildTicketWhere(scope)
	var total int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM tickets t WHERE `+where+` AND t.assigned_to IS NOT NULL`, args...).Scan(&total)
	return total, err
}
