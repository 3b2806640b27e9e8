package domain

// transition describes one allowed edge; adminOnly edges are reserved for RoleAdmin.
type transition struct {
	to        TicketStatus
	adminOnly bool
}

var allowedTransitions = map[TicketStatus][]transition{
	TicketStatusOpen: {
		{to: TicketStatusInProgress},
		{to: TicketStatusClosed},
	},
	TicketStatusInProgress: {
		{to: TicketStatusOpen},
		{to: TicketStatusResolved},
		{to: TicketStatusClosed},
	},
	TicketStatusResolved: {
		{to: TicketStatusInProgress},
		{to: TicketStatusClosed},
	},
	TicketStatusClosed: {
		{to: TicketStatusOpen, adminOnly: true},
	},
}

// CanTransition reports whether role may move a ticket from current to next.
// Only staff and admins change status through this path; requesters close via
// CanRequesterClose.
func CanTransition(role Role, current, next TicketStatus) bool {
	if !role.IsStaff() || current == next {
		return false
	}
	for _, edge := range allowedTransitions[current] {
		if edge.to != next {
			continue
		}
		return !edge.adminOnly || role == RoleAdmin
	}
	return false
}

// NextStatuses lists the statuses reachable by role from current.
func NextStatuses(role Role, current TicketStatus) []TicketStatus {
	out := []TicketStatus{}
	for _, edge := range allowedTransitions[current] {
		if CanTransition(role, current, edge.to) {
			out = append(out, edge.to)
		}
	}
	return out
}

// CanRequesterClose reports whether the ticket owner may close it themselves.
func CanRequesterClose(current TicketStatus) bool {
	return current == TicketStatusResolved
}
