package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/repository/repotest"
)

type webhookSink struct {
	mu       sync.Mutex
	status   int
	received []WebhookMessage
}

func (s *webhookSink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var msg WebhookMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.received = append(s.received, msg)
	status := s.status
	s.mu.Unlock()
	if status == 0 {
		status = http.StatusNoContent
	}
	w.WriteHeader(status)
}

func (s *webhookSink) messages() []WebhookMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]WebhookMessage(nil), s.received...)
}

func TestNotificationInbox(t *testing.T) {
	f := newDeskFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice", domain.RoleUser)
	bob := f.addUser(t, "bob", domain.RoleUser)
	sam := f.addUser(t, "sam", domain.RoleStaff)
	ticket := f.newTicket(t, alice, "Projector", domain.TicketPriorityMedium)

	_, err := f.tickets.UpdateStatus(ctx, sam, ticket.ID, domain.TicketStatusInProgress)
	require.NoError(t, err)
	_, err = f.tickets.AddComment(ctx, sam, ticket.ID, "Bring it to the help desk", false)
	require.NoError(t, err)

	unread, err := f.notifications.ListUnread(ctx, alice, 0)
	require.NoError(t, err)
	require.Len(t, unread, 2)
	assert.Contains(t, unread[0].Message, "Bring it to the help desk")
	assert.Contains(t, unread[1].Message, "from Open to In Progress")
	assert.Contains(t, unread[1].Message, ticket.ExternalKey)

	// Someone else's id is accepted and ignored.
	require.NoError(t, f.notifications.MarkRead(ctx, bob, unread[0].ID))
	still, err := f.notifications.ListUnread(ctx, alice, 0)
	require.NoError(t, err)
	assert.Len(t, still, 2)

	require.NoError(t, f.notifications.MarkRead(ctx, alice, unread[0].ID))
	still, err = f.notifications.ListUnread(ctx, alice, 0)
	require.NoError(t, err)
	assert.Len(t, still, 1)

	updated, err := f.notifications.MarkAllRead(ctx, alice)
	require.NoError(t, err)
	assert.EqualValues(t, 1, updated)

	still, err = f.notifications.ListUnread(ctx, alice, 0)
	require.NoError(t, err)
	assert.Empty(t, still)

	_, err = f.notifications.ListUnread(ctx, nil, 0)
	assertCode(t, err, "UNAUTHORIZED")
}

func TestCommentRouting(t *testing.T) {
	f := newDeskFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice", domain.RoleUser)
	sam := f.addUser(t, "sam", domain.RoleStaff)
	kim := f.addUser(t, "kim", domain.RoleStaff)
	root := f.addUser(t, "root", domain.RoleAdmin)
	ticket := f.newTicket(t, alice, "Router", domain.TicketPriorityLow)
	_, err := f.assignments.AssignTicket(ctx, root, ticket.ID, sam.ID)
	require.NoError(t, err)
	before := len(f.notificationsFor(sam.ID))

	// Requester comment goes to the assignee.
	_, err = f.tickets.AddComment(ctx, alice, ticket.ID, "Any update?", false)
	require.NoError(t, err)
	// Internal note from another staff member goes to the assignee only.
	_, err = f.tickets.AddComment(ctx, kim, ticket.ID, "Check the firewall", true)
	require.NoError(t, err)
	// The assignee's own internal note notifies nobody.
	_, err = f.tickets.AddComment(ctx, sam, ticket.ID, "Done", true)
	require.NoError(t, err)

	samNotes := f.notificationsFor(sam.ID)
	require.Len(t, samNotes, before+2)
	assert.Contains(t, samNotes[before].Message, "Any update?")
	assert.Contains(t, samNotes[before+1].Message, "internal note")
	assert.Empty(t, f.notificationsFor(kim.ID))

	for _, n := range f.notificationsFor(alice.ID) {
		assert.NotContains(t, n.Message, "firewall")
	}
}

func TestPriorityChangeNotifiesAssignee(t *testing.T) {
	f := newDeskFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice", domain.RoleUser)
	sam := f.addUser(t, "sam", domain.RoleStaff)
	ticket := f.newTicket(t, alice, "Server room AC", domain.TicketPriorityLow)
	_, err := f.assignments.AssignTicket(ctx, sam, ticket.ID, sam.ID)
	require.NoError(t, err)

	high := domain.TicketPriorityHigh
	_, err = f.tickets.UpdateTicket(ctx, alice, ticket.ID, TicketUpdateInput{Priority: &high})
	require.NoError(t, err)

	notes := f.notificationsFor(sam.ID)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Message, "priority changed from Low to High")
}

func TestSLABreachNotifiesAdminsWhenUnassigned(t *testing.T) {
	f := newDeskFixture(t)
	ctx := context.Background()
	root := f.addUser(t, "root", domain.RoleAdmin)
	other := f.addUser(t, "other", domain.RoleAdmin)
	sam := f.addUser(t, "sam", domain.RoleStaff)

	require.NoError(t, f.dispatcher.Publish(ctx, events.Event{
		Type:        events.EventSLABreached,
		TicketID:    "t-1",
		ExternalKey: "TCK-00000001",
		Payload:     events.SLABreachedPayload{SLAID: "s-1", Title: "Late", DueTime: time.Now().Add(-time.Hour)},
	}))
	assert.Len(t, f.notificationsFor(root.ID), 1)
	assert.Len(t, f.notificationsFor(other.ID), 1)
	assert.Empty(t, f.notificationsFor(sam.ID))

	require.NoError(t, f.dispatcher.Publish(ctx, events.Event{
		Type:     events.EventSLABreached,
		TicketID: "t-2",
		Payload:  events.SLABreachedPayload{SLAID: "s-2", AssigneeID: &sam.ID, Title: "Later", DueTime: time.Now()},
	}))
	notes := f.notificationsFor(sam.ID)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Message, "breached its SLA")
	assert.Len(t, f.notificationsFor(root.ID), 1)
}

func TestUnexpectedPayloadIsReported(t *testing.T) {
	f := newDeskFixture(t)
	err := f.dispatcher.Publish(context.Background(), events.Event{
		Type:    events.EventTicketAssigned,
		Payload: "not a payload",
	})
	assert.Error(t, err)
}

func TestWebhookDelivery(t *testing.T) {
	sink := &webhookSink{}
	srv := httptest.NewServer(sink)
	defer srv.Close()

	store := repotest.NewStore()
	dispatcher := events.NewInMemoryDispatcher()
	svc := NewNotificationService(config.NotificationConfig{
		EmailFrom:      "desk@example.com",
		WebhookURL:     srv.URL,
		WebhookTimeout: time.Second,
	}, NotificationDependencies{
		NotificationRepo: store.Notifications(),
		UserRepo:         store.Users(),
		Dispatcher:       dispatcher,
	})
	svc.RegisterHandlers()

	ctx := context.Background()
	sam := &domain.User{Name: "sam", Email: "sam@example.com", PasswordHash: "x", Role: domain.RoleStaff, Status: domain.UserStatusActive}
	require.NoError(t, store.Users().Create(ctx, sam))

	require.NoError(t, dispatcher.Publish(ctx, events.Event{
		Type:        events.EventTicketAssigned,
		TicketID:    "t-1",
		ExternalKey: "TCK-ABCDEF12",
		Payload:     events.TicketAssignedPayload{RequesterID: "r-1", AssigneeID: sam.ID, Title: "Laptop"},
	}))

	token := &domain.PasswordResetToken{Token: "reset-token", ExpiresAt: time.Now().Add(30 * time.Minute)}
	require.NoError(t, svc.SendPasswordReset(ctx, sam, token))

	got := sink.messages()
	require.Len(t, got, 2)
	assert.Equal(t, "notification", got[0].Kind)
	assert.Equal(t, sam.ID, got[0].UserID)
	assert.Equal(t, "t-1", got[0].TicketID)
	assert.Contains(t, got[0].Message, "TCK-ABCDEF12")

	assert.Equal(t, "password_reset", got[1].Kind)
	assert.Equal(t, "reset-token", got[1].Token)
	assert.Equal(t, "sam@example.com", got[1].Email)
	assert.Equal(t, "desk@example.com", got[1].From)
}

func TestWebhookBreakerOpensAfterFailures(t *testing.T) {
	sink := &webhookSink{status: http.StatusBadGateway}
	srv := httptest.NewServer(sink)
	defer srv.Close()

	client := newWebhookClient(srv.URL, time.Second, nil, zap.NewNop())
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		outcome, err := client.Post(ctx, WebhookMessage{Kind: "notification", Message: "x"})
		assert.Error(t, err)
		assert.Equal(t, webhookOutcomeFailed, outcome)
	}

	outcome, err := client.Post(ctx, WebhookMessage{Kind: "notification", Message: "x"})
	assert.Error(t, err)
	assert.Equal(t, webhookOutcomeRejected, outcome)
	assert.Len(t, sink.messages(), 5)
}

func TestPasswordResetWithoutWebhookIsLogged(t *testing.T) {
	f := newDeskFixture(t)
	alice := f.addUser(t, "alice", domain.RoleUser)
	err := f.notifications.SendPasswordReset(context.Background(), alice, &domain.PasswordResetToken{Token: "t"})
	assert.NoError(t, err)
}

func TestLongTitlesFitNotificationColumn(t *testing.T) {
	f := newDeskFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice", domain.RoleUser)
	sam := f.addUser(t, "sam", domain.RoleStaff)
	ticket := f.newTicket(t, alice, strings.Repeat("é", 200), domain.TicketPriorityMedium)

	_, err := f.tickets.UpdateStatus(ctx, sam, ticket.ID, domain.TicketStatusInProgress)
	require.NoError(t, err)
	_, err = f.tickets.AddComment(ctx, sam, ticket.ID, strings.Repeat("word ", 900), false)
	require.NoError(t, err)

	notes := f.notificationsFor(alice.ID)
	require.Len(t, notes, 2)
	for _, n := range notes {
		assert.LessOrEqual(t, utf8.RuneCountInString(n.Message), domain.MaxNotificationLength)
		assert.Contains(t, n.Message, ticket.ExternalKey)
	}
}
