package repotest

import (
	"context"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/support-desk/internal/domain"
)

// Backdate overrides a ticket's creation time, for stats and report tests.
func (s *Store) Backdate(ticketID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket, ok := s.tickets[ticketID]; ok {
		ticket.CreatedAt = at
		s.tickets[ticketID] = ticket
	}
}

type commentRepo struct{ s *Store }

func (r commentRepo) Create(_ context.Context, comment *domain.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tickets[comment.TicketID]; !ok {
		return pgx.ErrNoRows
	}
	comment.ID = uuid.NewString()
	comment.CreatedAt = r.s.Now()
	r.s.comments = append(r.s.comments, *comment)
	return nil
}

func (r commentRepo) ListByTicket(_ context.Context, ticketID string, includeInternal bool) ([]domain.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Comment
	for _, c := range r.s.comments {
		if c.TicketID != ticketID || (c.Internal && !includeInternal) {
			continue
		}
		if author, ok := r.s.users[c.AuthorID]; ok {
			c.AuthorName = author.Name
		}
		out = append(out, c)
	}
	return out, nil
}

type attachmentRepo struct{ s *Store }

func (r attachmentRepo) Create(_ context.Context, attachment *domain.Attachment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tickets[attachment.TicketID]; !ok {
		return pgx.ErrNoRows
	}
	attachment.ID = uuid.NewString()
	attachment.UploadedAt = r.s.Now()
	r.s.attachments = append(r.s.attachments, *attachment)
	return nil
}

func (r attachmentRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Attachment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Attachment
	for _, a := range r.s.attachments {
		if a.TicketID == ticketID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r attachmentRepo) ListOwnedBy(_ context.Context, userID string) ([]domain.Attachment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Attachment
	for _, a := range r.s.attachments {
		if a.UploaderID == userID || r.s.tickets[a.TicketID].RequesterID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

type notificationRepo struct{ s *Store }

func (r notificationRepo) Create(_ context.Context, n *domain.Notification) error {
	if utf8.RuneCountInString(n.Message) > domain.MaxNotificationLength {
		return &pgconn.PgError{Code: "22001", Message: "value too long for type character varying(255)"}
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n.ID = uuid.NewString()
	n.IsRead = false
	n.CreatedAt = r.s.Now()
	r.s.notifications = append(r.s.notifications, *n)
	return nil
}

func (r notificationRepo) ListUnread(_ context.Context, userID string, limit int) ([]domain.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Notification
	for i := len(r.s.notifications) - 1; i >= 0; i-- {
		n := r.s.notifications[i]
		if n.UserID == userID && !n.IsRead {
			out = append(out, n)
		}
	}
	return page(out, limit, 0), nil
}

func (r notificationRepo) MarkRead(_ context.Context, id, userID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, n := range r.s.notifications {
		if n.ID == id && n.UserID == userID {
			r.s.notifications[i].IsRead = true
			return true, nil
		}
	}
	return false, nil
}

func (r notificationRepo) MarkAllRead(_ context.Context, userID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var updated int64
	for i, n := range r.s.notifications {
		if n.UserID == userID && !n.IsRead {
			r.s.notifications[i].IsRead = true
			updated++
		}
	}
	return updated, nil
}

type slaRepo struct{ s *Store }

func (r slaRepo) Upsert(_ context.Context, sla *domain.SLA) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tickets[sla.TicketID]; !ok {
		return pgx.ErrNoRows
	}
	if existing, ok := r.s.slas[sla.TicketID]; ok {
		sla.ID = existing.ID
	} else {
		sla.ID = uuid.NewString()
	}
	sla.AlertSent = false
	r.s.slas[sla.TicketID] = *sla
	return nil
}

func (r slaRepo) GetByTicket(_ context.Context, ticketID string) (*domain.SLA, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sla, ok := r.s.slas[ticketID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &sla, nil
}

func (r slaRepo) ListOverdue(_ context.Context, now time.Time, limit int) ([]domain.OverdueSLA, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.OverdueSLA
	for ticketID, sla := range r.s.slas {
		ticket := r.s.tickets[ticketID]
		if sla.AlertSent || !sla.DueTime.Before(now) || ticket.Finished() {
			continue
		}
		out = append(out, domain.OverdueSLA{
			SLA:         sla,
			ExternalKey: ticket.ExternalKey,
			Title:       ticket.Title,
			AssigneeID:  ticket.AssigneeID,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueTime.Before(out[j].DueTime) })
	return page(out, limit, 0), nil
}

func (r slaRepo) MarkAlerted(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for ticketID, sla := range r.s.slas {
		if sla.ID == id {
			sla.AlertSent = true
			r.s.slas[ticketID] = sla
		}
	}
	return nil
}

func (r slaRepo) CountOverdue(_ context.Context, now time.Time, requesterID *string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var total int64
	for ticketID, sla := range r.s.slas {
		ticket := r.s.tickets[ticketID]
		if !sla.DueTime.Before(now) || ticket.Finished() {
			continue
		}
		if requesterID != nil && ticket.RequesterID != *requesterID {
			continue
		}
		total++
	}
	return total, nil
}

type historyRepo struct{ s *Store }

func (r historyRepo) Create(_ context.Context, h *domain.TicketHistory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	h.ID = uuid.NewString()
	h.CreatedAt = r.s.Now()
	r.s.history = append(r.s.history, *h)
	return nil
}

func (r historyRepo) ListByTicket(_ context.Context, ticketID string, limit, offset int) ([]domain.TicketHistory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.TicketHistory
	for _, h := range r.s.history {
		if h.TicketID == ticketID {
			out = append(out, h)
		}
	}
	return page(out, limit, offset), nil
}

type resetRepo struct{ s *Store }

func (r resetRepo) Create(_ context.Context, token *domain.PasswordResetToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	token.ID = uuid.NewString()
	token.CreatedAt = r.s.Now()
	r.s.resets[token.Token] = *token
	return nil
}

func (r resetRepo) Consume(_ context.Context, token string, now time.Time) (*domain.PasswordResetToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.resets[token]
	if !ok || !t.Usable(now) {
		return nil, pgx.ErrNoRows
	}
	t.UsedAt = &now
	r.s.resets[token] = t
	return &t, nil
}

func (r resetRepo) InvalidateForUser(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.Now()
	for key, t := range r.s.resets {
		if t.UserID == userID && t.UsedAt == nil {
			t.UsedAt = &now
			r.s.resets[key] = t
		}
	}
	return nil
}
