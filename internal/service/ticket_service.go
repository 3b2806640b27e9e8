package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/storage"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

const (
	maxTitleLength   = 200
	maxCommentLength = 5000
)

// FileStore persists attachment bytes.
type FileStore interface {
	Save(ctx context.Context, originalName string, r io.Reader) (string, int64, error)
	Remove(storedName string) error
}

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets     repository.TicketRepository
	comments    repository.CommentRepository
	attachments repository.AttachmentRepository
	history     repository.TicketHistoryRepository
	slas        repository.SLARepository
	files       FileStore
	stats       StatsInvalidator
	policy      *auth.Policy
	slaCfg      config.SLAConfig
	events      eventPublisher
	logger      *zap.Logger
	now         func() time.Time
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	CommentRepo    repository.CommentRepository
	AttachmentRepo repository.AttachmentRepository
	HistoryRepo    repository.TicketHistoryRepository
	SLARepo        repository.SLARepository
	Files          FileStore
	Stats          StatsInvalidator
	Policy         *auth.Policy
	SLA            config.SLAConfig
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Priority    domain.TicketPriority
	DueDate     *time.Time
}

// TicketUpdateInput carries optional edits; nil fields are left alone.
type TicketUpdateInput struct {
	Title       *string
	Description *string
	Priority    *domain.TicketPriority
	Status      *domain.TicketStatus
}

// TicketListFilter describes listing filters. Requesters are always scoped to their own tickets.
type TicketListFilter struct {
	RequesterID *string
	AssigneeID  *string
	Unassigned  bool
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// TicketPage is one page of a listing.
type TicketPage struct {
	Items  []domain.Ticket
	Total  int64
	Limit  int
	Offset int
}

// TicketDetail is a ticket with everything the detail view shows.
type TicketDetail struct {
	Ticket       *domain.Ticket
	Comments     []domain.Comment
	Attachments  []domain.Attachment
	History      []domain.TicketHistory
	SLA          *domain.SLA
	Overdue      bool
	NextStatuses []domain.TicketStatus
}

// AttachmentUpload is a file received from a client.
type AttachmentUpload struct {
	FileName string
	MimeType string
	Content  io.Reader
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:     deps.TicketRepo,
		comments:    deps.CommentRepo,
		attachments: deps.AttachmentRepo,
		history:     deps.HistoryRepo,
		slas:        deps.SLARepo,
		files:       deps.Files,
		stats:       deps.Stats,
		policy:      deps.Policy,
		slaCfg:      deps.SLA,
		events:      newEventPublisher(deps.Dispatcher, logger),
		logger:      logger,
		now:         time.Now,
	}
}

// CreateTicket files a ticket for actor and starts its SLA clock.
func (s *TicketService) CreateTicket(ctx context.Context, actor *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !s.policy.Can(actor.Role, auth.ActionTicketCreate) {
		return nil, apperrors.NewForbidden("not allowed to create tickets")
	}

	ticket := &domain.Ticket{
		ExternalKey: generateTicketKey(),
		RequesterID: actor.ID,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Status:      domain.TicketStatusOpen,
		Priority:    input.Priority,
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}
	if err := validateTicketFields(ticket); err != nil {
		return nil, err
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	ticket.RequesterName = actor.Name
	ticket.RequesterEmail = actor.Email

	sla := &domain.SLA{TicketID: ticket.ID, DueTime: s.dueTime(ticket.Priority, ticket.CreatedAt)}
	if input.DueDate != nil && input.DueDate.After(s.now()) {
		sla.DueTime = *input.DueDate
	}
	if err := s.slas.Upsert(ctx, sla); err != nil {
		return nil, apperrors.MapError(err)
	}

	if err := s.recordHistory(ctx, actor, ticket.ID, domain.ChangeTypeCreated, nil, map[string]any{
		"status":   ticket.Status,
		"priority": ticket.Priority,
	}); err != nil {
		return nil, err
	}

	s.invalidateStats(ctx)
	s.events.publish(ctx, events.Event{
		Type:        events.EventTicketCreated,
		TicketID:    ticket.ID,
		ExternalKey: ticket.ExternalKey,
		Actor:       events.ActorFor(actor),
		Payload: events.TicketCreatedPayload{
			RequesterID: ticket.RequesterID,
			Priority:    ticket.Priority,
			Title:       ticket.Title,
			DueTime:     sla.DueTime,
		},
	})
	return ticket, nil
}

// ListTickets returns a page of tickets visible to actor, newest first.
func (s *TicketService) ListTickets(ctx context.Context, actor *domain.User, filter TicketListFilter) (*TicketPage, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	repoFilter := repository.TicketFilter{
		RequesterID: filter.RequesterID,
		AssigneeID:  filter.AssigneeID,
		Unassigned:  filter.Unassigned,
		Statuses:    filter.Statuses,
		Priorities:  filter.Priorities,
		SearchTerm:  filter.SearchTerm,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		OrderBy:     repository.OrderNewest,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}
	if !s.policy.Can(actor.Role, auth.ActionTicketReadAny) {
		repoFilter.RequesterID = &actor.ID
	}
	if repoFilter.Limit <= 0 {
		repoFilter.Limit = 20
	}
	if repoFilter.Limit > 100 {
		repoFilter.Limit = 100
	}
	if repoFilter.Offset < 0 {
		repoFilter.Offset = 0
	}

	items, err := s.tickets.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	total, err := s.tickets.Count(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if items == nil {
		items = []domain.Ticket{}
	}
	return &TicketPage{Items: items, Total: total, Limit: repoFilter.Limit, Offset: repoFilter.Offset}, nil
}

// GetTicket returns the detail view. Requesters do not see internal notes or
// edit history.
func (s *TicketService) GetTicket(ctx context.Context, actor *domain.User, ticketID string) (*TicketDetail, error) {
	ticket, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	staffView := s.policy.Can(actor.Role, auth.ActionTicketReadAny)

	comments, err := s.comments.ListByTicket(ctx, ticket.ID, s.policy.Can(actor.Role, auth.ActionCommentInternal))
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	attachments, err := s.attachments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	history, err := s.history.ListByTicket(ctx, ticket.ID, 100, 0)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !staffView {
		history = requesterHistory(history)
	}

	detail := &TicketDetail{
		Ticket:       ticket,
		Comments:     nonNil(comments),
		Attachments:  nonNil(attachments),
		History:      nonNil(history),
		NextStatuses: domain.NextStatuses(actor.Role, ticket.Status),
	}
	if !staffView && ticket.RequesterID == actor.ID && domain.CanRequesterClose(ticket.Status) {
		detail.NextStatuses = []domain.TicketStatus{domain.TicketStatusClosed}
	}

	sla, err := s.slas.GetByTicket(ctx, ticket.ID)
	switch {
	case err == nil:
		detail.SLA = sla
		detail.Overdue = sla.Breached(s.now()) && !ticket.Finished()
	case !apperrors.IsNotFound(err):
		return nil, apperrors.MapError(err)
	}
	return detail, nil
}

// UpdateTicket edits title, description and priority. Status is applied only
// for callers allowed to move tickets through the lifecycle.
func (s *TicketService) UpdateTicket(ctx context.Context, actor *domain.User, ticketID string, input TicketUpdateInput) (*domain.Ticket, error) {
	ticket, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if input.Title != nil || input.Description != nil || input.Priority != nil {
		if err := requireOpenForChanges(ticket, "edited"); err != nil {
			return nil, err
		}
	}

	oldValues := map[string]any{}
	newValues := map[string]any{}
	var fields []string

	if input.Title != nil && strings.TrimSpace(*input.Title) != ticket.Title {
		oldValues["title"] = ticket.Title
		ticket.Title = strings.TrimSpace(*input.Title)
		newValues["title"] = ticket.Title
		fields = append(fields, "title")
	}
	if input.Description != nil && strings.TrimSpace(*input.Description) != ticket.Description {
		oldValues["description"] = stringPreview(ticket.Description, 200)
		ticket.Description = strings.TrimSpace(*input.Description)
		newValues["description"] = stringPreview(ticket.Description, 200)
		fields = append(fields, "description")
	}
	oldPriority := ticket.Priority
	if input.Priority != nil && *input.Priority != ticket.Priority {
		ticket.Priority = *input.Priority
		fields = append(fields, "priority")
	}
	if err := validateTicketFields(ticket); err != nil {
		return nil, err
	}

	oldStatus := ticket.Status
	statusChanged := false
	if input.Status != nil && s.policy.Can(actor.Role, auth.ActionTicketUpdateStatus) && *input.Status != ticket.Status {
		if err := s.applyTransition(actor, ticket, *input.Status); err != nil {
			return nil, err
		}
		statusChanged = true
	}

	if len(fields) == 0 && !statusChanged {
		return ticket, nil
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	if len(oldValues) > 0 {
		if err := s.recordHistory(ctx, actor, ticket.ID, domain.ChangeTypeEdit, oldValues, newValues); err != nil {
			return nil, err
		}
	}
	if oldPriority != ticket.Priority {
		if err := s.priorityChanged(ctx, actor, ticket, oldPriority); err != nil {
			return nil, err
		}
	}
	if statusChanged {
		if err := s.statusChanged(ctx, actor, ticket, oldStatus); err != nil {
			return nil, err
		}
	}
	if len(fields) > 0 {
		s.events.publish(ctx, events.Event{
			Type:        events.EventTicketUpdated,
			TicketID:    ticket.ID,
			ExternalKey: ticket.ExternalKey,
			Actor:       events.ActorFor(actor),
			Payload:     events.TicketUpdatedPayload{RequesterID: ticket.RequesterID, Fields: fields},
		})
	}
	s.invalidateStats(ctx)
	return ticket, nil
}

// UpdateStatus moves a ticket through the lifecycle. Staff and admins only.
func (s *TicketService) UpdateStatus(ctx context.Context, actor *domain.User, ticketID string, next domain.TicketStatus) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !s.policy.Can(actor.Role, auth.ActionTicketUpdateStatus) {
		return nil, apperrors.NewForbidden("staff role required to change status")
	}
	ticket, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	oldStatus := ticket.Status
	if err := s.applyTransition(actor, ticket, next); err != nil {
		return nil, err
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.statusChanged(ctx, actor, ticket, oldStatus); err != nil {
		return nil, err
	}
	s.invalidateStats(ctx)
	return ticket, nil
}

// CloseTicket lets the requester confirm a resolved ticket.
func (s *TicketService) CloseTicket(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.RequesterID != actor.ID {
		return nil, apperrors.NewForbidden("only the requester can close this ticket")
	}
	if !domain.CanRequesterClose(ticket.Status) {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), string(domain.TicketStatusClosed),
			[]string{string(domain.TicketStatusResolved)})
	}
	oldStatus := ticket.Status
	setStatus(ticket, domain.TicketStatusClosed, s.now())
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.statusChanged(ctx, actor, ticket, oldStatus); err != nil {
		return nil, err
	}
	s.invalidateStats(ctx)
	return ticket, nil
}

// DeleteTicket removes a ticket owned by actor, or any ticket for admins.
func (s *TicketService) DeleteTicket(ctx context.Context, actor *domain.User, ticketID string) error {
	ticket, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return err
	}
	if ticket.RequesterID != actor.ID && !s.policy.Can(actor.Role, auth.ActionTicketDeleteAny) {
		return apperrors.NewForbidden("not allowed to delete this ticket")
	}

	attachments, err := s.attachments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if err := s.tickets.Delete(ctx, ticket.ID); err != nil {
		return notFoundOr(err, "ticket", ticket.ID)
	}
	if s.files != nil {
		for _, a := range attachments {
			if err := s.files.Remove(a.StoredName); err != nil {
				s.logger.Warn("failed to remove attachment file", zap.String("file", a.StoredName), zap.Error(err))
			}
		}
	}

	s.invalidateStats(ctx)
	s.events.publish(ctx, events.Event{
		Type:        events.EventTicketDeleted,
		TicketID:    ticket.ID,
		ExternalKey: ticket.ExternalKey,
		Actor:       events.ActorFor(actor),
		Payload:     events.TicketDeletedPayload{RequesterID: ticket.RequesterID, Title: ticket.Title},
	})
	return nil
}

// AddComment appends to the ticket thread. Internal notes are staff-only.
func (s *TicketService) AddComment(ctx context.Context, actor *domain.User, ticketID, content string, internal bool) (*domain.Comment, error) {
	ticket, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if err := requireOpenForChanges(ticket, "commented on"); err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewValidationError("comment content is required", map[string]any{"field": "content"})
	}
	if utf8.RuneCountInString(content) > maxCommentLength {
		return nil, apperrors.NewValidationError("comment too long", map[string]any{"max_length": maxCommentLength})
	}
	if internal && !s.policy.Can(actor.Role, auth.ActionCommentInternal) {
		return nil, apperrors.NewForbidden("internal notes are for staff only")
	}

	comment := &domain.Comment{
		TicketID:   ticket.ID,
		AuthorID:   actor.ID,
		AuthorName: actor.Name,
		Content:    content,
		Internal:   internal,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.events.publish(ctx, events.Event{
		Type:        events.EventTicketCommentAdded,
		TicketID:    ticket.ID,
		ExternalKey: ticket.ExternalKey,
		Actor:       events.ActorFor(actor),
		Payload: events.TicketCommentAddedPayload{
			CommentID:   comment.ID,
			RequesterID: ticket.RequesterID,
			AssigneeID:  ticket.AssigneeID,
			AuthorID:    actor.ID,
			Internal:    internal,
			Title:       ticket.Title,
			BodyPreview: stringPreview(content, 120),
		},
	})
	return comment, nil
}

// ListComments returns the thread visible to actor.
func (s *TicketService) ListComments(ctx context.Context, actor *domain.User, ticketID string) ([]domain.Comment, error) {
	ticket, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByTicket(ctx, ticket.ID, s.policy.Can(actor.Role, auth.ActionCommentInternal))
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return nonNil(comments), nil
}

// AddAttachment stores an uploaded file on the ticket.
func (s *TicketService) AddAttachment(ctx context.Context, actor *domain.User, ticketID string, upload AttachmentUpload) (*domain.Attachment, error) {
	ticket, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if err := requireOpenForChanges(ticket, "given attachments"); err != nil {
		return nil, err
	}
	if s.files == nil {
		return nil, apperrors.NewInternalError(errors.New("file storage not configured"))
	}
	name := strings.TrimSpace(upload.FileName)
	if name == "" || upload.Content == nil {
		return nil, apperrors.NewValidationError("file is required", map[string]any{"field": "file"})
	}

	stored, size, err := s.files.Save(ctx, name, upload.Content)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, apperrors.NewDomainError("PAYLOAD_TOO_LARGE", "file exceeds upload limit", http.StatusRequestEntityTooLarge, nil)
		}
		return nil, apperrors.NewInternalError(err)
	}

	mime := upload.MimeType
	if mime == "" {
		mime = "application/octet-stream"
	}
	attachment := &domain.Attachment{
		TicketID:   ticket.ID,
		UploaderID: actor.ID,
		FileName:   name,
		StoredName: stored,
		MimeType:   mime,
		SizeBytes:  size,
	}
	if err := s.attachments.Create(ctx, attachment); err != nil {
		_ = s.files.Remove(stored)
		return nil, apperrors.MapError(err)
	}
	return attachment, nil
}

// ListAttachments returns the files attached to a ticket.
func (s *TicketService) ListAttachments(ctx context.Context, actor *domain.User, ticketID string) ([]domain.Attachment, error) {
	ticket, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	attachments, err := s.attachments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return nonNil(attachments), nil
}

// ListHistory returns audit entries; requesters get the public subset.
func (s *TicketService) ListHistory(ctx context.Context, actor *domain.User, ticketID string, limit, offset int) ([]domain.TicketHistory, error) {
	ticket, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	history, err := s.history.ListByTicket(ctx, ticket.ID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !s.policy.Can(actor.Role, auth.ActionTicketReadAny) {
		history = requesterHistory(history)
	}
	return nonNil(history), nil
}

// requireOpenForChanges rejects writes to a closed ticket until it is reopened.
func requireOpenForChanges(ticket *domain.Ticket, action string) error {
	if ticket.Status != domain.TicketStatusClosed {
		return nil
	}
	return apperrors.NewConflict("closed tickets cannot be "+action, map[string]any{"id": ticket.ID})
}

// loadVisible fetches a ticket the actor may see.
func (s *TicketService) loadVisible(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFoundOr(err, "ticket", ticketID)
	}
	if ticket.RequesterID != actor.ID && !s.policy.Can(actor.Role, auth.ActionTicketReadAny) {
		return nil, apperrors.NewForbidden("access denied")
	}
	return ticket, nil
}

func (s *TicketService) applyTransition(actor *domain.User, ticket *domain.Ticket, next domain.TicketStatus) error {
	if !domain.CanTransition(actor.Role, ticket.Status, next) {
		allowed := domain.NextStatuses(actor.Role, ticket.Status)
		names := make([]string, len(allowed))
		for i, st := range allowed {
			names[i] = string(st)
		}
		return apperrors.NewInvalidTransition(string(ticket.Status), string(next), names)
	}
	setStatus(ticket, next, s.now())
	return nil
}

func setStatus(ticket *domain.Ticket, next domain.TicketStatus, now time.Time) {
	ticket.Status = next
	if next == domain.TicketStatusClosed {
		ticket.ClosedAt = &now
	} else {
		ticket.ClosedAt = nil
	}
}

func (s *TicketService) statusChanged(ctx context.Context, actor *domain.User, ticket *domain.Ticket, oldStatus domain.TicketStatus) error {
	if err := s.recordHistory(ctx, actor, ticket.ID, domain.ChangeTypeStatus,
		map[string]any{"status": oldStatus},
		map[string]any{"status": ticket.Status}); err != nil {
		return err
	}
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
	return nil
}

func (s *TicketService) priorityChanged(ctx context.Context, actor *domain.User, ticket *domain.Ticket, oldPriority domain.TicketPriority) error {
	if err := s.recordHistory(ctx, actor, ticket.ID, domain.ChangeTypePriority,
		map[string]any{"priority": oldPriority},
		map[string]any{"priority": ticket.Priority}); err != nil {
		return err
	}
	if !ticket.Finished() {
		sla := &domain.SLA{TicketID: ticket.ID, DueTime: s.dueTime(ticket.Priority, ticket.CreatedAt)}
		if err := s.slas.Upsert(ctx, sla); err != nil {
			return apperrors.MapError(err)
		}
	}
	s.events.publish(ctx, events.Event{
		Type:        events.EventTicketPriorityChanged,
		TicketID:    ticket.ID,
		ExternalKey: ticket.ExternalKey,
		Actor:       events.ActorFor(actor),
		Payload: events.TicketPriorityChangedPayload{
			RequesterID: ticket.RequesterID,
			AssigneeID:  ticket.AssigneeID,
			Title:       ticket.Title,
			OldPriority: oldPriority,
			NewPriority: ticket.Priority,
		},
	})
	return nil
}

func (s *TicketService) recordHistory(ctx context.Context, actor *domain.User, ticketID string, change domain.TicketChangeType, oldValue, newValue map[string]any) error {
	if s.history == nil {
		return nil
	}
	entry := &domain.TicketHistory{
		TicketID:    ticketID,
		ChangedByID: &actor.ID,
		ChangeType:  change,
		OldValue:    oldValue,
		NewValue:    newValue,
	}
	return apperrors.MapError(s.history.Create(ctx, entry))
}

func (s *TicketService) dueTime(priority domain.TicketPriority, from time.Time) time.Time {
	return from.Add(slaWindow(s.slaCfg, priority))
}

func (s *TicketService) invalidateStats(ctx context.Context) {
	if s.stats == nil {
		return
	}
	if err := s.stats.InvalidateStats(ctx); err != nil {
		s.logger.Warn("failed to invalidate stats cache", zap.Error(err))
	}
}

// slaWindow maps priority to the configured response target.
func slaWindow(cfg config.SLAConfig, priority domain.TicketPriority) time.Duration {
	hours := cfg.MediumHours
	switch priority {
	case domain.TicketPriorityHigh:
		hours = cfg.HighHours
	case domain.TicketPriorityLow:
		hours = cfg.LowHours
	}
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

func validateTicketFields(ticket *domain.Ticket) error {
	details := map[string]any{}
	if ticket.Title == "" {
		details["title"] = "required"
	} else if utf8.RuneCountInString(ticket.Title) > maxTitleLength {
		details["title"] = "max 200 characters"
	}
	if ticket.Description == "" {
		details["description"] = "required"
	}
	if ticket.Priority.Rank() == 0 {
		details["priority"] = "must be one of Low, Medium, High"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid ticket", details)
	}
	return nil
}

func requesterHistory(history []domain.TicketHistory) []domain.TicketHistory {
	allowed := []domain.TicketHistory{}
	for _, entry := range history {
		if entry.VisibleToRequester() {
			allowed = append(allowed, entry)
		}
	}
	return allowed
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
