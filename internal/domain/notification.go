package domain

import "time"

// MaxNotificationLength is the width of the notifications.message column.
const MaxNotificationLength = 255

// Notification is an in-app message for one user.
type Notification struct {
	ID        string
	UserID    string
	TicketID  *string
	Message   string
	IsRead    bool
	CreatedAt time.Time
}

// SLA tracks the due time of a ticket and whether a breach alert went out.
type SLA struct {
	ID        string
	TicketID  string
	DueTime   time.Time
	AlertSent bool
}

// Breached reports whether the SLA is past due at now.
func (s *SLA) Breached(now time.Time) bool {
	return s != nil && now.After(s.DueTime)
}

// OverdueSLA joins an SLA row with the ticket fields the breach alert needs.
type OverdueSLA struct {
	SLA
	ExternalKey string
	Title       string
	AssigneeID  *string
}
