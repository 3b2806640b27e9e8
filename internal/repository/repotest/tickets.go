package repotest

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
)

type ticketRepo struct{ s *Store }

func (r ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[ticket.RequesterID]; !ok {
		return pgx.ErrNoRows
	}
	for _, existing := range r.s.tickets {
		if existing.ExternalKey == ticket.ExternalKey {
			return uniqueViolation()
		}
	}
	ticket.ID = uuid.NewString()
	ticket.CreatedAt = r.s.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	r.s.tickets[ticket.ID] = *ticket
	r.s.seq++
	r.s.ticketSeq[ticket.ID] = r.s.seq
	r.s.decorateLocked(ticket)
	return nil
}

func (r ticketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	ticket.UpdatedAt = r.s.Now()
	r.s.tickets[ticket.ID] = *ticket
	return nil
}

func (r ticketRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	r.s.deleteTicketLocked(id)
	return nil
}

func (r ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ticket, ok := r.s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	r.s.decorateLocked(&ticket)
	return &ticket, nil
}

func (r ticketRepo) GetByExternalKey(_ context.Context, key string) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, ticket := range r.s.tickets {
		if ticket.ExternalKey == key {
			t := ticket
			r.s.decorateLocked(&t)
			return &t, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r ticketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := r.s.matchTicketsLocked(filter)
	sort.SliceStable(out, func(i, j int) bool {
		switch filter.OrderBy {
		case repository.OrderPriority:
			if out[i].Priority.Rank() != out[j].Priority.Rank() {
				return out[i].Priority.Rank() > out[j].Priority.Rank()
			}
		case repository.OrderUpdated:
			if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
				return out[i].UpdatedAt.After(out[j].UpdatedAt)
			}
		}
		return r.s.ticketSeq[out[i].ID] > r.s.ticketSeq[out[j].ID]
	})
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	return page(out, limit, filter.Offset), nil
}

func (r ticketRepo) Count(_ context.Context, filter repository.TicketFilter) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.s.matchTicketsLocked(filter))), nil
}

func (s *Store) matchTicketsLocked(filter repository.TicketFilter) []domain.Ticket {
	var out []domain.Ticket
	for _, ticket := range s.tickets {
		if !ticketMatches(ticket, filter) {
			continue
		}
		t := ticket
		s.decorateLocked(&t)
		out = append(out, t)
	}
	return out
}

func ticketMatches(ticket domain.Ticket, filter repository.TicketFilter) bool {
	if filter.RequesterID != nil && ticket.RequesterID != *filter.RequesterID {
		return false
	}
	if filter.AssigneeID != nil {
		if ticket.AssigneeID == nil || *ticket.AssigneeID != *filter.AssigneeID {
			return false
		}
	} else if filter.Unassigned && ticket.AssigneeID != nil {
		return false
	}
	if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ticket.Status) {
		return false
	}
	if len(filter.Priorities) > 0 && !containsPriority(filter.Priorities, ticket.Priority) {
		return false
	}
	if filter.CreatedFrom != nil && ticket.CreatedAt.Before(*filter.CreatedFrom) {
		return false
	}
	if filter.CreatedTo != nil && !ticket.CreatedAt.Before(*filter.CreatedTo) {
		return false
	}
	if filter.SearchTerm != nil {
		term := strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
		if term != "" && !strings.Contains(strings.ToLower(ticket.Title), term) &&
			!strings.Contains(strings.ToLower(ticket.Description), term) {
			return false
		}
	}
	return true
}

func containsStatus(list []domain.TicketStatus, v domain.TicketStatus) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func containsPriority(list []domain.TicketPriority, v domain.TicketPriority) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func (s *Store) decorateLocked(ticket *domain.Ticket) {
	if requester, ok := s.users[ticket.RequesterID]; ok {
		ticket.RequesterName = requester.Name
		ticket.RequesterEmail = requester.Email
	}
	ticket.AssigneeName = nil
	if ticket.AssigneeID != nil {
		if assignee, ok := s.users[*ticket.AssigneeID]; ok {
			name := assignee.Name
			ticket.AssigneeName = &name
		}
	}
}

func (s *Store) deleteTicketLocked(id string) {
	delete(s.tickets, id)
	delete(s.ticketSeq, id)
	delete(s.slas, id)

	comments := s.comments[:0]
	for _, c := range s.comments {
		if c.TicketID != id {
			comments = append(comments, c)
		}
	}
	s.comments = comments

	attachments := s.attachments[:0]
	for _, a := range s.attachments {
		if a.TicketID != id {
			attachments = append(attachments, a)
		}
	}
	s.attachments = attachments

	history := s.history[:0]
	for _, h := range s.history {
		if h.TicketID != id {
			history = append(history, h)
		}
	}
	s.history = history

	notifications := s.notifications[:0]
	for _, n := range s.notifications {
		if n.TicketID == nil || *n.TicketID != id {
			notifications = append(notifications, n)
		}
	}
	s.notifications = notifications
}

type statsRepo struct{ s *Store }

func (r statsRepo) StatusCounts(_ context.Context, scope repository.TicketFilter) (map[domain.TicketStatus]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	counts := map[domain.TicketStatus]int64{}
	for _, t := range r.s.matchTicketsLocked(scope) {
		counts[t.Status]++
	}
	return counts, nil
}

func (r statsRepo) PriorityCounts(_ context.Context, scope repository.TicketFilter) (map[domain.TicketPriority]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	counts := map[domain.TicketPriority]int64{}
	for _, t := range r.s.matchTicketsLocked(scope) {
		counts[t.Priority]++
	}
	return counts, nil
}

func (r statsRepo) MonthlyCounts(_ context.Context, year int) (map[int]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	counts := map[int]int64{}
	for _, t := range r.s.tickets {
		if t.CreatedAt.Year() == year {
			counts[int(t.CreatedAt.Month())]++
		}
	}
	return counts, nil
}

func (r statsRepo) CreatedTimes(_ context.Context, scope repository.TicketFilter) ([]time.Time, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []time.Time
	for _, t := range r.s.matchTicketsLocked(scope) {
		out = append(out, t.CreatedAt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (r statsRepo) CountAssigned(_ context.Context, scope repository.TicketFilter) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var total int64
	for _, t := range r.s.matchTicketsLocked(scope) {
		if t.AssigneeID != nil {
			total++
		}
	}
	return total, nil
}
