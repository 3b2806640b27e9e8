package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

const defaultUnreadLimit = 50

// JobQueue runs work outside the request path.
type JobQueue interface {
	Enqueue(name string, job func(context.Context) error) bool
}

// NotificationService turns domain events into in-app notifications and
// optional webhook deliveries.
type NotificationService struct {
	notifications repository.NotificationRepository
	users         repository.UserRepository
	dispatcher    events.Dispatcher
	queue         JobQueue
	webhook       *webhookClient
	metrics       *observability.Metrics
	logger        *zap.Logger
	cfg           config.NotificationConfig
	now           func() time.Time
}

// NotificationDependencies bundles collaborators for the notification service.
type NotificationDependencies struct {
	NotificationRepo repository.NotificationRepository
	UserRepo         repository.UserRepository
	Dispatcher       events.Dispatcher
	Queue            JobQueue
	Metrics          *observability.Metrics
	Logger           *zap.Logger
	HTTPClient       *http.Client
}

// NewNotificationService creates the service.
func NewNotificationService(cfg config.NotificationConfig, deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &NotificationService{
		notifications: deps.NotificationRepo,
		users:         deps.UserRepo,
		dispatcher:    deps.Dispatcher,
		queue:         deps.Queue,
		metrics:       deps.Metrics,
		logger:        logger,
		cfg:           cfg,
		now:           time.Now,
	}
	if url := strings.TrimSpace(cfg.WebhookURL); url != "" {
		n.webhook = newWebhookClient(url, cfg.WebhookTimeout, deps.HTTPClient, logger)
	}
	return n
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range events.AllEventTypes {
		n.dispatcher.Subscribe(eventType, n.countEvent)
	}
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
	n.dispatcher.Subscribe(events.EventTicketPriorityChanged, n.handleTicketPriorityChanged)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	n.dispatcher.Subscribe(events.EventTicketCommentAdded, n.handleTicketCommentAdded)
	n.dispatcher.Subscribe(events.EventSLABreached, n.handleSLABreached)
}

// ListUnread returns the caller's unread notifications, newest first.
func (n *NotificationService) ListUnread(ctx context.Context, actor *domain.User, limit int) ([]domain.Notification, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = defaultUnreadLimit
	}
	items, err := n.notifications.ListUnread(ctx, actor.ID, limit)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return items, nil
}

// MarkRead marks one of the caller's notifications as read. Ids that belong
// to someone else or do not exist are ignored.
func (n *NotificationService) MarkRead(ctx context.Context, actor *domain.User, id string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	updated, err := n.notifications.MarkRead(ctx, id, actor.ID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if !updated {
		n.logger.Debug("notification not marked", zap.String("notification_id", id), zap.String("user_id", actor.ID))
	}
	return nil
}

// MarkAllRead marks every unread notification of the caller and returns how many changed.
func (n *NotificationService) MarkAllRead(ctx context.Context, actor *domain.User) (int64, error) {
	if err := requireActor(actor); err != nil {
		return 0, err
	}
	count, err := n.notifications.MarkAllRead(ctx, actor.ID)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	return count, nil
}

// SendPasswordReset hands the reset token to the webhook. Without a webhook
// the request is only logged.
func (n *NotificationService) SendPasswordReset(ctx context.Context, user *domain.User, token *domain.PasswordResetToken) error {
	if n.webhook == nil {
		n.logger.Warn("password reset requested but no delivery channel configured", zap.String("user_id", user.ID))
		return nil
	}
	msg := WebhookMessage{
		Kind:      "password_reset",
		UserID:    user.ID,
		Email:     user.Email,
		From:      n.cfg.EmailFrom,
		Message:   fmt.Sprintf("Password reset requested for %s. The token expires at %s.", user.Email, token.ExpiresAt.UTC().Format(time.RFC3339)),
		Token:     token.Token,
		Timestamp: n.now(),
	}
	n.deliver(ctx, msg)
	return nil
}

func (n *NotificationService) countEvent(_ context.Context, event events.Event) error {
	n.metrics.RecordTicketEvent(string(event.Type))
	return nil
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	if payload.RequesterID == event.Actor.UserID {
		return nil
	}
	msg := fmt.Sprintf("Ticket %s %q status changed from %s to %s", ticketLabel(event), titlePreview(payload.Title), payload.OldStatus, payload.NewStatus)
	return n.notify(ctx, payload.RequesterID, event.TicketID, msg)
}

func (n *NotificationService) handleTicketPriorityChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketPriorityChangedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	if payload.AssigneeID == nil || *payload.AssigneeID == event.Actor.UserID {
		return nil
	}
	msg := fmt.Sprintf("Ticket %s %q priority changed from %s to %s", ticketLabel(event), titlePreview(payload.Title), payload.OldPriority, payload.NewPriority)
	return n.notify(ctx, *payload.AssigneeID, event.TicketID, msg)
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketAssignedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	if payload.AssigneeID == "" || payload.AssigneeID == event.Actor.UserID {
		return nil
	}
	msg := fmt.Sprintf("Ticket %s %q has been assigned to you", ticketLabel(event), payload.Title)
	return n.notify(ctx, payload.AssigneeID, event.TicketID, msg)
}

func (n *NotificationService) handleTicketCommentAdded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCommentAddedPayload)
	if !ok {
		return unexpectedPayload(event)
	}

	var recipient string
	switch {
	case payload.Internal:
		if payload.AssigneeID != nil {
			recipient = *payload.AssigneeID
		}
	case payload.AuthorID != payload.RequesterID:
		recipient = payload.RequesterID
	case payload.AssigneeID != nil:
		recipient = *payload.AssigneeID
	}
	if recipient == "" || recipient == payload.AuthorID {
		return nil
	}

	kind := "comment"
	if payload.Internal {
		kind = "internal note"
	}
	msg := fmt.Sprintf("New %s on ticket %s %q: %s", kind, ticketLabel(event), titlePreview(payload.Title), payload.BodyPreview)
	return n.notify(ctx, recipient, event.TicketID, msg)
}

func (n *NotificationService) handleSLABreached(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.SLABreachedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	msg := fmt.Sprintf("Ticket %s %q has breached its SLA (due %s)", ticketLabel(event), titlePreview(payload.Title), payload.DueTime.UTC().Format(time.RFC3339))

	if payload.AssigneeID != nil && *payload.AssigneeID != "" {
		return n.notify(ctx, *payload.AssigneeID, event.TicketID, msg)
	}

	active := domain.UserStatusActive
	admins, err := n.users.List(ctx, repository.UserFilter{
		Roles:  []domain.Role{domain.RoleAdmin},
		Status: &active,
		Limit:  200,
	})
	if err != nil {
		return err
	}
	for _, admin := range admins {
		if err := n.notify(ctx, admin.ID, event.TicketID, msg); err != nil {
			return err
		}
	}
	return nil
}

func (n *NotificationService) notify(ctx context.Context, userID, ticketID, message string) error {
	message = stringPreview(message, domain.MaxNotificationLength)
	notification := &domain.Notification{
		UserID:  userID,
		Message: message,
	}
	if ticketID != "" {
		notification.TicketID = &ticketID
	}
	if err := n.notifications.Create(ctx, notification); err != nil {
		return err
	}
	if n.webhook != nil {
		sentAt := notification.CreatedAt
		if sentAt.IsZero() {
			sentAt = n.now()
		}
		n.deliver(ctx, WebhookMessage{
			Kind:      "notification",
			UserID:    userID,
			TicketID:  ticketID,
			Message:   message,
			Timestamp: sentAt,
		})
	}
	return nil
}

// deliver posts msg through the queue when one is configured, inline otherwise.
func (n *NotificationService) deliver(ctx context.Context, msg WebhookMessage) {
	post := func(ctx context.Context) error {
		outcome, err := n.webhook.Post(ctx, msg)
		n.metrics.RecordWebhook(outcome)
		if err != nil {
			n.logger.Warn("webhook delivery failed",
				zap.String("kind", msg.Kind),
				zap.String("outcome", outcome),
				zap.Error(err))
		}
		return err
	}
	if n.queue == nil {
		_ = post(ctx)
		return
	}
	if !n.queue.Enqueue("webhook:"+msg.Kind, post) {
		n.metrics.RecordWebhook(webhookOutcomeRejected)
	}
}

// titlePreview keeps ticket titles short enough that a message with a comment
// preview still fits the notification column.
func titlePreview(title string) string {
	return stringPreview(title, 60)
}

func ticketLabel(event events.Event) string {
	if event.ExternalKey != "" {
		return event.ExternalKey
	}
	return event.TicketID
}

func unexpectedPayload(event events.Event) error {
	return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
}
