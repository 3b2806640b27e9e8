package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "Open"
	TicketStatusInProgress TicketStatus = "In Progress"
	TicketStatusResolved   TicketStatus = "Resolved"
	TicketStatusClosed     TicketStatus = "Closed"
)

// TicketStatuses lists statuses in dashboard order.
var TicketStatuses = []TicketStatus{
	TicketStatusOpen,
	TicketStatusInProgress,
	TicketStatusResolved,
	TicketStatusClosed,
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "Low"
	TicketPriorityMedium TicketPriority = "Medium"
	TicketPriorityHigh   TicketPriority = "High"
)

// TicketPriorities lists priorities from lowest to highest.
var TicketPriorities = []TicketPriority{
	TicketPriorityLow,
	TicketPriorityMedium,
	TicketPriorityHigh,
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID             string
	ExternalKey    string
	RequesterID    string
	RequesterName  string
	RequesterEmail string
	AssigneeID     *string
	AssigneeName   *string
	Title          string
	Description    string
	Status         TicketStatus
	Priority       TicketPriority
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ClosedAt       *time.Time
}

// IsAssigned reports whether somebody owns the work.
func (t *Ticket) IsAssigned() bool {
	return t.AssigneeID != nil && *t.AssigneeID != ""
}

// Finished reports whether the ticket needs no further work.
func (t *Ticket) Finished() bool {
	return t.Status == TicketStatusResolved || t.Status == TicketStatusClosed
}

// ParseTicketStatus normalizes client input such as "in progress" or "IN_PROGRESS".
func ParseTicketStatus(s string) (TicketStatus, bool) {
	key := normalizeEnum(s)
	for _, st := range TicketStatuses {
		if normalizeEnum(string(st)) == key {
			return st, true
		}
	}
	if key == "pending" {
		return TicketStatusOpen, true
	}
	return "", false
}

// ParseTicketPriority normalizes client input such as "high".
func ParseTicketPriority(s string) (TicketPriority, bool) {
	key := normalizeEnum(s)
	for _, p := range TicketPriorities {
		if normalizeEnum(string(p)) == key {
			return p, true
		}
	}
	return "", false
}

// Rank orders priorities; higher is more urgent.
func (p TicketPriority) Rank() int {
	for i, candidate := range TicketPriorities {
		if candidate == p {
			return i + 1
		}
	}
	return 0
}

func normalizeEnum(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_", " ")
	s = strings.ReplaceAll(s, "-", " ")
	return strings.Join(strings.Fields(s), " ")
}
