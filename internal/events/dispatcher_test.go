package events

import (
	"context"
	"errors"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingConn struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (r *recordingConn) Publish(subj string, data []byte) error {
	r.subjects = append(r.subjects, subj)
	r.payloads = append(r.payloads, data)
	return r.err
}

func TestDispatcherRunsAllHandlers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var calls []string
	boom := errors.New("boom")

	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		calls = append(calls, "first")
		return boom
	})
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		calls = append(calls, "second")
		return nil
	})
	d.Subscribe(EventTicketDeleted, func(context.Context, Event) error {
		calls = append(calls, "other")
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventTicketCreated})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestDispatcherForwardsToNATS(t *testing.T) {
	conn := &recordingConn{}
	d := NewInMemoryDispatcher(WithForwarder(NewNATSForwarder(conn, "support.tickets.")))

	require.NoError(t, d.Publish(context.Background(), Event{
		ID:       "e-1",
		Type:     EventTicketStatusChanged,
		TicketID: "t-1",
		Payload:  TicketStatusChangedPayload{OldStatus: "Open", NewStatus: "In Progress"},
	}))

	require.Len(t, conn.subjects, 1)
	assert.Equal(t, "support.tickets.ticket_status_changed", conn.subjects[0])

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(conn.payloads[0], &decoded))
	assert.Equal(t, "t-1", decoded["ticket_id"])
	assert.NotEmpty(t, decoded["timestamp"])
	payload := decoded["payload"].(map[string]any)
	assert.Equal(t, "In Progress", payload["new_status"])
}

func TestForwardErrorIsReported(t *testing.T) {
	conn := &recordingConn{err: errors.New("disconnected")}
	d := NewInMemoryDispatcher(WithForwarder(NewNATSForwarder(conn, "")))

	err := d.Publish(context.Background(), Event{Type: EventSLABreached})
	assert.Error(t, err)
	assert.Equal(t, []string{"sla_breached"}, conn.subjects)
}
