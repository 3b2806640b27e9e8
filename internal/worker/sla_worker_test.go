package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/repository/repotest"
	"github.com/spec-kit/support-desk/internal/service"
)

type breachLog struct {
	mu       sync.Mutex
	payloads []events.SLABreachedPayload
}

func (b *breachLog) handle(_ context.Context, event events.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.payloads = append(b.payloads, event.Payload.(events.SLABreachedPayload))
	return nil
}

func seedTicket(t *testing.T, store *repotest.Store, requester *domain.User, title string, status domain.TicketStatus, due time.Time) *domain.Ticket {
	t.Helper()
	ctx := context.Background()
	ticket := &domain.Ticket{
		ExternalKey: "TCK-" + title,
		RequesterID: requester.ID,
		Title:       title,
		Description: title,
		Status:      status,
		Priority:    domain.TicketPriorityMedium,
	}
	require.NoError(t, store.Tickets().Create(ctx, ticket))
	require.NoError(t, store.SLAs().Upsert(ctx, &domain.SLA{TicketID: ticket.ID, DueTime: due}))
	return ticket
}

func TestSLAScannerAlertsOnce(t *testing.T) {
	ctx := context.Background()
	store := repotest.NewStore()
	alice := &domain.User{Name: "alice", Email: "alice@example.com", PasswordHash: "x", Role: domain.RoleUser, Status: domain.UserStatusActive}
	require.NoError(t, store.Users().Create(ctx, alice))

	past := time.Now().Add(-time.Hour)
	late := seedTicket(t, store, alice, "late", domain.TicketStatusOpen, past)
	seedTicket(t, store, alice, "done", domain.TicketStatusResolved, past)
	seedTicket(t, store, alice, "fresh", domain.TicketStatusOpen, time.Now().Add(time.Hour))

	dispatcher := events.NewInMemoryDispatcher()
	log := &breachLog{}
	dispatcher.Subscribe(events.EventSLABreached, log.handle)

	scanner := NewSLAScanner(store.SLAs(), dispatcher, nil, nil)
	n, err := scanner.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, log.payloads, 1)
	assert.Equal(t, "late", log.payloads[0].Title)

	sla, err := store.SLAs().GetByTicket(ctx, late.ID)
	require.NoError(t, err)
	assert.True(t, sla.AlertSent)

	n, err = scanner.Scan(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, log.payloads, 1)
}

func TestSLAScannerNotifiesAdmins(t *testing.T) {
	ctx := context.Background()
	store := repotest.NewStore()
	alice := &domain.User{Name: "alice", Email: "alice@example.com", PasswordHash: "x", Role: domain.RoleUser, Status: domain.UserStatusActive}
	root := &domain.User{Name: "root", Email: "root@example.com", PasswordHash: "x", Role: domain.RoleAdmin, Status: domain.UserStatusActive}
	require.NoError(t, store.Users().Create(ctx, alice))
	require.NoError(t, store.Users().Create(ctx, root))
	seedTicket(t, store, alice, "late", domain.TicketStatusInProgress, time.Now().Add(-time.Minute))

	dispatcher := events.NewInMemoryDispatcher()
	queue := NewQueue(1, 10, time.Second, nil)
	notifications := service.NewNotificationService(config.NotificationConfig{}, service.NotificationDependencies{
		NotificationRepo: store.Notifications(),
		UserRepo:         store.Users(),
		Dispatcher:       dispatcher,
		Queue:            queue,
	})
	StartNotificationWorker(ctx, notifications, queue)
	defer queue.Stop()

	n, err := NewSLAScanner(store.SLAs(), dispatcher, nil, nil).Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	unread, err := store.Notifications().ListUnread(ctx, root.ID, 10)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Contains(t, unread[0].Message, "TCK-late")
}

func TestStartSLAWorker(t *testing.T) {
	store := repotest.NewStore()
	scanner := NewSLAScanner(store.SLAs(), nil, nil, nil)

	_, err := StartSLAWorker("not a schedule", scanner, nil)
	assert.Error(t, err)

	c, err := StartSLAWorker("@every 1h", scanner, nil)
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)
	<-c.Stop().Done()
}
