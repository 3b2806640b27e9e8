package domain

import "time"

// TicketChangeType captures what changed in a history entry.
type TicketChangeType string

const (
	ChangeTypeCreated  TicketChangeType = "CREATED"
	ChangeTypeStatus   TicketChangeType = "STATUS_CHANGE"
	ChangeTypeAssignee TicketChangeType = "ASSIGNEE_CHANGE"
	ChangeTypePriority TicketChangeType = "PRIORITY_CHANGE"
	ChangeTypeEdit     TicketChangeType = "EDIT"
)

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	ID          string
	TicketID    string
	ChangedByID *string
	ChangeType  TicketChangeType
	OldValue    map[string]any
	NewValue    map[string]any
	CreatedAt   time.Time
}

// VisibleToRequester reports whether requesters see this entry on their ticket.
func (h TicketHistory) VisibleToRequester() bool {
	switch h.ChangeType {
	case ChangeTypeCreated, ChangeTypeStatus, ChangeTypeAssignee:
		return true
	}
	return false
}
