package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// StatsInvalidator drops cached aggregates after ticket writes.
type StatsInvalidator interface {
	InvalidateStats(ctx context.Context) error
}

// eventPublisher stamps and dispatches domain events. A nil dispatcher drops them.
type eventPublisher struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

func newEventPublisher(dispatcher events.Dispatcher, logger *zap.Logger) eventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return eventPublisher{dispatcher: dispatcher, logger: logger, now: time.Now}
}

func (p eventPublisher) publish(ctx context.Context, event events.Event) {
	if p.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}
	// Handler failures are logged by the dispatcher; the write already succeeded.
	_ = p.dispatcher.Publish(ctx, event)
}

func requireActor(actor *domain.User) error {
	if actor == nil || actor.ID == "" {
		return apperrors.NewUnauthorized("authentication required")
	}
	return nil
}

func notFoundOr(err error, resource, id string) error {
	if apperrors.IsNotFound(err) {
		return apperrors.NewNotFound(resource, map[string]any{"id": id})
	}
	return apperrors.MapError(err)
}

func generateTicketKey() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
