package events

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated         EventType = "ticket_created"
	EventTicketUpdated         EventType = "ticket_updated"
	EventTicketStatusChanged   EventType = "ticket_status_changed"
	EventTicketPriorityChanged EventType = "ticket_priority_changed"
	EventTicketAssigned        EventType = "ticket_assigned"
	EventTicketCommentAdded    EventType = "ticket_comment_added"
	EventTicketDeleted         EventType = "ticket_deleted"
	EventSLABreached           EventType = "sla_breached"
)

// AllEventTypes lists every type, for subscribers that want everything.
var AllEventTypes = []EventType{
	EventTicketCreated,
	EventTicketUpdated,
	EventTicketStatusChanged,
	EventTicketPriorityChanged,
	EventTicketAssigned,
	EventTicketCommentAdded,
	EventTicketDeleted,
	EventSLABreached,
}

// Actor encapsulates actor metadata for an event. System jobs leave UserID empty.
type Actor struct {
	UserID string      `json:"user_id,omitempty"`
	Role   domain.Role `json:"role_id,omitempty"`
}

// ActorFor builds the actor for a user.
func ActorFor(user *domain.User) Actor {
	if user == nil {
		return Actor{}
	}
	return Actor{UserID: user.ID, Role: user.Role}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID          string      `json:"id"`
	Type        EventType   `json:"type"`
	TicketID    string      `json:"ticket_id"`
	ExternalKey string      `json:"external_key,omitempty"`
	Actor       Actor       `json:"actor"`
	Timestamp   time.Time   `json:"timestamp"`
	Payload     interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	RequesterID string                `json:"requester_id"`
	Priority    domain.TicketPriority `json:"priority"`
	Title       string                `json:"title"`
	DueTime     time.Time             `json:"due_time"`
}

// TicketUpdatedPayload lists the edited fields.
type TicketUpdatedPayload struct {
	RequesterID string   `json:"requester_id"`
	Fields      []string `json:"fields"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	RequesterID string              `json:"requester_id"`
	AssigneeID  *string             `json:"assignee_id,omitempty"`
	Title       string              `json:"title"`
	OldStatus   domain.TicketStatus `json:"old_status"`
	NewStatus   domain.TicketStatus `json:"new_status"`
}

// TicketPriorityChangedPayload payload.
type TicketPriorityChangedPayload struct {
	RequesterID string                `json:"requester_id"`
	AssigneeID  *string               `json:"assignee_id,omitempty"`
	Title       string                `json:"title"`
	OldPriority domain.TicketPriority `json:"old_priority"`
	NewPriority domain.TicketPriority `json:"new_priority"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	RequesterID        string  `json:"requester_id"`
	PreviousAssigneeID *string `json:"previous_assignee_id,omitempty"`
	AssigneeID         string  `json:"assignee_id"`
	Title              string  `json:"title"`
	Started            bool    `json:"started"`
}

// TicketCommentAddedPayload payload.
type TicketCommentAddedPayload struct {
	CommentID   string  `json:"comment_id"`
	RequesterID string  `json:"requester_id"`
	AssigneeID  *string `json:"assignee_id,omitempty"`
	AuthorID    string  `json:"author_id"`
	Internal    bool    `json:"internal"`
	Title       string  `json:"title"`
	BodyPreview string  `json:"body_preview"`
}

// TicketDeletedPayload payload.
type TicketDeletedPayload struct {
	RequesterID string `json:"requester_id"`
	Title       string `json:"title"`
}

// SLABreachedPayload payload.
type SLABreachedPayload struct {
	SLAID      string    `json:"sla_id"`
	AssigneeID *string   `json:"assignee_id,omitempty"`
	Title      string    `json:"title"`
	DueTime    time.Time `json:"due_time"`
}
