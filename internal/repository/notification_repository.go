package repository

import (
	"context"

	"github.com/spec-kit/support-desk/internal/domain"
)

// NotificationRepository persists in-app notifications.
type NotificationRepository interface {
	Create(ctx context.Context, notification *domain.Notification) error
	ListUnread(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id, userID string) (bool, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

type notificationRepository struct {
	db DBTX
}

// NewNotificationRepository constructs repository.
func NewNotificationRepository(db DBTX) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	const query = `
        INSERT INTO notifications (user_id, ticket_id, message)
        VALUES ($1,$2,$3)
        RETURNING id, is_read, created_at`
	return r.db.QueryRow(ctx, query, n.UserID, n.TicketID, n.Message).
		Scan(&n.ID, &n.IsRead, &n.CreatedAt)
}

func (r *notificationRepository) ListUnread(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	limit, _ = normalizePage(limit, 0, 50, 200)
	const query = `
        SELECT id, user_id, ticket_id, message, is_read, created_at
        FROM notifications WHERE user_id=$1 AND is_read=FALSE
        ORDER BY created_at DESC LIMIT $2`
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.TicketID, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

// MarkRead reports whether a notification owned by userID was updated.
func (r *notificationRepository) MarkRead(ctx context.Context, id, userID string) (bool, error) {
	cmd, err := r.db.Exec(ctx, `UPDATE notifications SET is_read=TRUE WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	cmd, err := r.db.Exec(ctx, `UPDATE notifications SET is_read=TRUE WHERE user_id=$1 AND is_read=FALSE`, userID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
