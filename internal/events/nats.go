package events

import (
	"context"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	nats "github.com/nats-io/nats.go"
)

// natsPublisher is the subset of *nats.Conn used for forwarding.
type natsPublisher interface {
	Publish(subj string, data []byte) error
}

// NATSForwarder publishes events as JSON on "<prefix>.<event type>".
type NATSForwarder struct {
	conn   natsPublisher
	prefix string
}

// NewNATSForwarder wraps an existing connection.
func NewNATSForwarder(conn natsPublisher, prefix string) *NATSForwarder {
	return &NATSForwarder{conn: conn, prefix: strings.TrimSuffix(prefix, ".")}
}

// ConnectNATS dials the server with reconnects enabled.
func ConnectNATS(url, name string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}

// Subject returns the subject an event type is published on.
func (f *NATSForwarder) Subject(eventType EventType) string {
	if f.prefix == "" {
		return string(eventType)
	}
	return f.prefix + "." + string(eventType)
}

// Forward implements Forwarder.
func (f *NATSForwarder) Forward(_ context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return f.conn.Publish(f.Subject(event.Type), payload)
}
