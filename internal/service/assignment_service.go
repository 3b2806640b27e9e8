package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// AssignmentService handles ticket assignment operations.
type AssignmentService struct {
	tickets     repository.TicketRepository
	users       repository.UserRepository
	historyRepo repository.TicketHistoryRepository
	stats       StatsInvalidator
	policy      *auth.Policy
	events      eventPublisher
	logger      *zap.Logger
	now         func() time.Time
}

// AssignmentDependencies bundles repositories.
type AssignmentDependencies struct {
	TicketRepo  repository.TicketRepository
	UserRepo    repository.UserRepository
	HistoryRepo repository.TicketHistoryRepository
	Stats       StatsInvalidator
	Policy      *auth.Policy
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		tickets:     deps.TicketRepo,
		users:       deps.UserRepo,
		historyRepo: deps.HistoryRepo,
		stats:       deps.Stats,
		policy:      deps.Policy,
		events:      newEventPublisher(deps.Dispatcher, logger),
		logger:      logger,
		now:         time.Now,
	}
}

// AssignTicket sets the assignee. Admins may pick any active staff member or
// admin; staff may only take tickets themselves. An Open ticket moves to
// In Progress once assigned.
func (s *AssignmentService) AssignTicket(ctx context.Context, actor *domain.User, ticketID, assigneeID string) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !s.policy.Can(actor.Role, auth.ActionTicketAssignSelf) {
		return nil, apperrors.NewForbidden("staff role required for assignment")
	}
	if assigneeID != actor.ID && !s.policy.Can(actor.Role, auth.ActionTicketAssignAny) {
		return nil, apperrors.NewForbidden("staff can only assign tickets to themselves")
	}

	assignee := actor
	if assigneeID != actor.ID {
		var err error
		assignee, err = s.users.GetByID(ctx, assigneeID)
		if err != nil {
			return nil, notFoundOr(err, "user", assigneeID)
		}
	}
	if !assignee.Role.IsStaff() {
		return nil, apperrors.NewValidationError("assignee must be a staff member or admin", map[string]any{"assignee_id": assigneeID})
	}
	if !assignee.Active() {
		return nil, apperrors.NewConflict("assignee suspended", map[string]any{"assignee_id": assigneeID})
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFoundOr(err, "ticket", ticketID)
	}
	return s.assign(ctx, actor, ticket, assignee)
}

// UnassignTicket clears the assignee. Staff may only drop their own tickets.
func (s *AssignmentService) UnassignTicket(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !s.policy.Can(actor.Role, auth.ActionTicketAssignSelf) {
		return nil, apperrors.NewForbidden("staff role required for assignment")
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFoundOr(err, "ticket", ticketID)
	}
	if !ticket.IsAssigned() {
		return ticket, nil
	}
	if *ticket.AssigneeID != actor.ID && !s.policy.Can(actor.Role, auth.ActionTicketAssignAny) {
		return nil, apperrors.NewForbidden("staff can only unassign themselves")
	}

	oldAssignee := ticket.AssigneeID
	ticket.AssigneeID = nil
	ticket.AssigneeName = nil
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.recordAssigneeChange(ctx, actor.ID, ticket.ID, oldAssignee, nil); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.invalidateStats(ctx)
	return ticket, nil
}

// AutoAssignTicket gives the ticket to the active staff member with the fewest
// unfinished assigned tickets. Ties go to the longest-standing account.
func (s *AssignmentService) AutoAssignTicket(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !s.policy.Can(actor.Role, auth.ActionTicketAssignAny) {
		return nil, apperrors.NewForbidden("admin role required for auto assignment")
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFoundOr(err, "ticket", ticketID)
	}

	active := domain.UserStatusActive
	staffList, err := s.users.List(ctx, repository.UserFilter{
		Roles:  []domain.Role{domain.RoleStaff},
		Status: &active,
		Limit:  500,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(staffList) == 0 {
		return nil, apperrors.NewConflict("no eligible staff", nil)
	}
	sort.Slice(staffList, func(i, j int) bool {
		return staffList[i].CreatedAt.Before(staffList[j].CreatedAt)
	})

	best := -1
	var bestLoad int64
	for i := range staffList {
		load, err := s.tickets.Count(ctx, repository.TicketFilter{
			AssigneeID: &staffList[i].ID,
			Statuses:   []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusInProgress},
		})
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		if best < 0 || load < bestLoad {
			best, bestLoad = i, load
		}
	}
	return s.assign(ctx, actor, ticket, &staffList[best])
}

func (s *AssignmentService) assign(ctx context.Context, actor *domain.User, ticket *domain.Ticket, assignee *domain.User) (*domain.Ticket, error) {
	if ticket.Status == domain.TicketStatusClosed {
		return nil, apperrors.NewConflict("closed tickets cannot be assigned", map[string]any{"id": ticket.ID})
	}
	if ticket.IsAssigned() && *ticket.AssigneeID == assignee.ID {
		return ticket, nil
	}

	oldAssignee := ticket.AssigneeID
	oldStatus := ticket.Status
	ticket.AssigneeID = &assignee.ID
	ticket.AssigneeName = &assignee.Name
	started := ticket.Status == domain.TicketStatusOpen
	if started {
		setStatus(ticket, domain.TicketStatusInProgress, s.now())
	}

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.recordAssigneeChange(ctx, actor.ID, ticket.ID, oldAssignee, ticket.AssigneeID); err != nil {
		return nil, apperrors.MapError(err)
	}
	if started {
		if err := s.recordHistory(ctx, &domain.TicketHistory{
			TicketID:    ticket.ID,
			ChangedByID: &actor.ID,
			ChangeType:  domain.ChangeTypeStatus,
			OldValue:    map[string]any{"status": oldStatus},
			NewValue:    map[string]any{"status": ticket.Status},
		}); err != nil {
			return nil, apperrors.MapError(err)
		}
	}

	s.invalidateStats(ctx)
	s.events.publish(ctx, events.Event{
		Type:        events.EventTicketAssigned,
		TicketID:    ticket.ID,
		ExternalKey: ticket.ExternalKey,
		Actor:       events.ActorFor(actor),
		Payload: events.TicketAssignedPayload{
			RequesterID:        ticket.RequesterID,
			PreviousAssigneeID: oldAssignee,
			AssigneeID:         assignee.ID,
			Title:              ticket.Title,
			Started:            started,
		},
	})
	if started {
		s.events.publish(ctx, events.Event{
			Type:        events.EventTicketStatusChanged,
			TicketID:    ticket.ID,
			ExternalKey: ticket.ExternalKey,
			Actor:       events.ActorFor(actor),
			Payload: events.TicketStatusChangedPayload{
				RequesterID: ticket.RequesterID,
				AssigneeID:  ticket.AssigneeID,
				Title:       ticket.Title,
				OldStatus:   oldStatus,
				NewStatus:   ticket.Status,
			},
		})
	}
	return ticket, nil
}

func (s *AssignmentService) recordAssigneeChange(ctx context.Context, actorID string, ticketID string, oldAssignee, newAssignee *string) error {
	return s.recordHistory(ctx, &domain.TicketHistory{
		TicketID:    ticketID,
		ChangedByID: &actorID,
		ChangeType:  domain.ChangeTypeAssignee,
		OldValue: map[string]any{
			"assignee_id": oldAssignee,
		},
		NewValue: map[string]any{
			"assignee_id": newAssignee,
		},
	})
}

// recordHistory is a no-op when the service runs without a history repository.
func (s *AssignmentService) recordHistory(ctx context.Context, entry *domain.TicketHistory) error {
	if s.historyRepo == nil {
		return nil
	}
	return s.historyRepo.Create(ctx, entry)
}

func (s *AssignmentService) invalidateStats(ctx context.Context) {
	if s.stats == nil {
		return
	}
	if err := s.stats.InvalidateStats(ctx); err != nil {
		s.logger.Warn("failed to invalidate stats cache", zap.Error(err))
	}
}
