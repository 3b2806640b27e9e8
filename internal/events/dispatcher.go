package events

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher interface allows event publication/subscription.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
}

// Forwarder ships events to an external system after local handlers ran.
type Forwarder interface {
	Forward(ctx context.Context, event Event) error
}

// inMemoryDispatcher is a simple synchronous dispatcher.
type inMemoryDispatcher struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventHandler
	forwarder Forwarder
	logger    *zap.Logger
}

// Option customizes the dispatcher.
type Option func(*inMemoryDispatcher)

// WithForwarder forwards every published event, e.g. to NATS.
func WithForwarder(f Forwarder) Option {
	return func(d *inMemoryDispatcher) { d.forwarder = f }
}

// WithLogger logs handler failures.
func WithLogger(logger *zap.Logger) Option {
	return func(d *inMemoryDispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewInMemoryDispatcher creates a dispatcher instance.
func NewInMemoryDispatcher(opts ...Option) Dispatcher {
	d := &inMemoryDispatcher{
		listeners: make(map[EventType][]EventHandler),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Publish synchronously invokes handlers for the given event. Every handler
// runs even when an earlier one fails; the failures are joined.
func (d *inMemoryDispatcher) Publish(ctx context.Context, event Event) error {
	d.mu.RLock()
	handlers := append([]EventHandler{}, d.listeners[event.Type]...)
	d.mu.RUnlock()

	var errs []error
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			d.logger.Warn("event handler failed",
				zap.String("event_type", string(event.Type)),
				zap.String("ticket_id", event.TicketID),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	if d.forwarder != nil {
		if err := d.forwarder.Forward(ctx, event); err != nil {
			d.logger.Warn("event forward failed", zap.String("event_type", string(event.Type)), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Subscribe registers a handler for the given event type.
func (d *inMemoryDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[eventType] = append(d.listeners[eventType], handler)
}
