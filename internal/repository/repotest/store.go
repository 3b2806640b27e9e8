// Package repotest provides in-memory repository implementations for tests.
package repotest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
)

// Store backs every fake repository with shared maps so joins behave like the database.
type Store struct {
	mu            sync.Mutex
	users         map[string]domain.User
	tickets       map[string]domain.Ticket
	comments      []domain.Comment
	attachments   []domain.Attachment
	notifications []domain.Notification
	slas          map[string]domain.SLA
	history       []domain.TicketHistory
	resets        map[string]domain.PasswordResetToken
	ticketSeq     map[string]int
	seq           int
	Now           func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		users:     map[string]domain.User{},
		tickets:   map[string]domain.Ticket{},
		slas:      map[string]domain.SLA{},
		resets:    map[string]domain.PasswordResetToken{},
		ticketSeq: map[string]int{},
		Now:       time.Now,
	}
}

func (s *Store) Users() repository.UserRepository                   { return userRepo{s} }
func (s *Store) Tickets() repository.TicketRepository               { return ticketRepo{s} }
func (s *Store) Comments() repository.CommentRepository             { return commentRepo{s} }
func (s *Store) Attachments() repository.AttachmentRepository       { return attachmentRepo{s} }
func (s *Store) Notifications() repository.NotificationRepository   { return notificationRepo{s} }
func (s *Store) SLAs() repository.SLARepository                     { return slaRepo{s} }
func (s *Store) History() repository.TicketHistoryRepository        { return historyRepo{s} }
func (s *Store) PasswordResets() repository.PasswordResetRepository { return resetRepo{s} }
func (s *Store) Stats() repository.StatsRepository                  { return statsRepo{s} }

// AllNotifications returns every stored notification, read or not.
func (s *Store) AllNotifications() []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Notification(nil), s.notifications...)
}

// AllHistory returns every stored history entry.
func (s *Store) AllHistory() []domain.TicketHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.TicketHistory(nil), s.history...)
}

func uniqueViolation() error {
	return &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}
}

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	email := strings.ToLower(user.Email)
	for _, existing := range r.s.users {
		if existing.Email == email {
			return uniqueViolation()
		}
	}
	user.ID = uuid.NewString()
	user.Email = email
	user.CreatedAt = r.s.Now()
	user.UpdatedAt = user.CreatedAt
	r.s.users[user.ID] = *user
	return nil
}

func (r userRepo) Update(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	email := strings.ToLower(user.Email)
	for id, existing := range r.s.users {
		if id != user.ID && existing.Email == email {
			return uniqueViolation()
		}
	}
	user.Email = email
	user.UpdatedAt = r.s.Now()
	r.s.users[user.ID] = *user
	return nil
}

func (r userRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.s.users, id)
	for tid, ticket := range r.s.tickets {
		if ticket.RequesterID == id {
			r.s.deleteTicketLocked(tid)
			continue
		}
		if ticket.AssigneeID != nil && *ticket.AssigneeID == id {
			ticket.AssigneeID = nil
			r.s.tickets[tid] = ticket
		}
	}
	attachments := r.s.attachments[:0]
	for _, a := range r.s.attachments {
		if a.UploaderID != id {
			attachments = append(attachments, a)
		}
	}
	r.s.attachments = attachments
	return nil
}

func (r userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, user := range r.s.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r userRepo) List(_ context.Context, filter repository.UserFilter) ([]domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.User
	for _, user := range r.s.users {
		if len(filter.Roles) > 0 && !containsRole(filter.Roles, user.Role) {
			continue
		}
		if filter.Status != nil && user.Status != *filter.Status {
			continue
		}
		if filter.SearchTerm != nil {
			term := strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
			if !strings.Contains(strings.ToLower(user.Name), term) && !strings.Contains(user.Email, term) {
				continue
			}
		}
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool {
		if filter.OrderBy == "name" {
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return page(out, filter.Limit, filter.Offset), nil
}

func containsRole(roles []domain.Role, role domain.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func page[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
