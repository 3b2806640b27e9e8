package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/repository"
)

const slaScanBatch = 200

// SLAScanner finds tickets past their due time and raises one breach event each.
type SLAScanner struct {
	slas       repository.SLARepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewSLAScanner wires the scanner.
func NewSLAScanner(slas repository.SLARepository, dispatcher events.Dispatcher, metrics *observability.Metrics, logger *zap.Logger) *SLAScanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SLAScanner{slas: slas, dispatcher: dispatcher, metrics: metrics, logger: logger, now: time.Now}
}

// Scan alerts every overdue SLA not yet alerted and returns how many it handled.
// A failing notification still marks the SLA so the next run does not repeat it.
func (s *SLAScanner) Scan(ctx context.Context) (int, error) {
	now := s.now()
	handled := 0
	for {
		overdue, err := s.slas.ListOverdue(ctx, now, slaScanBatch)
		if err != nil {
			return handled, err
		}
		for _, item := range overdue {
			s.publish(ctx, item.ID, item.TicketID, item.ExternalKey, events.SLABreachedPayload{
				SLAID:      item.ID,
				AssigneeID: item.AssigneeID,
				Title:      item.Title,
				DueTime:    item.DueTime,
			}, now)
			if err := s.slas.MarkAlerted(ctx, item.ID); err != nil {
				return handled, err
			}
			s.metrics.RecordSLABreach()
			handled++
		}
		if len(overdue) < slaScanBatch {
			return handled, nil
		}
	}
}

func (s *SLAScanner) publish(ctx context.Context, slaID, ticketID, key string, payload events.SLABreachedPayload, now time.Time) {
	if s.dispatcher == nil {
		return
	}
	err := s.dispatcher.Publish(ctx, events.Event{
		ID:          uuid.NewString(),
		Type:        events.EventSLABreached,
		TicketID:    ticketID,
		ExternalKey: key,
		Timestamp:   now,
		Payload:     payload,
	})
	if err != nil {
		s.logger.Warn("sla breach notification failed", zap.String("sla_id", slaID), zap.String("ticket_id", ticketID), zap.Error(err))
	}
}

// StartSLAWorker schedules Scan on spec and starts the scheduler. Overlapping
// runs are skipped. Stop the returned scheduler on shutdown.
func StartSLAWorker(spec string, scanner *SLAScanner, logger *zap.Logger) (*cron.Cron, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n, err := scanner.Scan(ctx)
		if err != nil {
			logger.Error("sla scan failed", zap.Error(err))
			return
		}
		if n > 0 {
			logger.Info("sla breaches alerted", zap.Int("count", n))
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}
