package dto

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// NotificationResponse is one in-app notification.
type NotificationResponse struct {
	ID        string    `json:"id"`
	TicketID  *string   `json:"ticket_id"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// NewNotificationResponses maps a list.
func NewNotificationResponses(items []domain.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, n := range items {
		out = append(out, NotificationResponse{
			ID:        n.ID,
			TicketID:  n.TicketID,
			Message:   n.Message,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt,
		})
	}
	return out
}
