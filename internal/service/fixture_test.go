package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/repository/repotest"
	"github.com/spec-kit/support-desk/internal/storage"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

type fakeFiles struct {
	mu      sync.Mutex
	max     int64
	saved   map[string][]byte
	removed []string
}

func newFakeFiles(max int64) *fakeFiles {
	return &fakeFiles{max: max, saved: map[string][]byte{}}
}

func (f *fakeFiles) Save(_ context.Context, originalName string, r io.Reader) (string, int64, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, r)
	if err != nil {
		return "", 0, err
	}
	if f.max > 0 && n > f.max {
		return "", 0, storage.ErrTooLarge
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := originalName + ".bin"
	f.saved[stored] = buf.Bytes()
	return stored, n, nil
}

func (f *fakeFiles) Remove(storedName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.saved, storedName)
	f.removed = append(f.removed, storedName)
	return nil
}

type countingInvalidator struct {
	mu    sync.Mutex
	calls int
}

func (c *countingInvalidator) InvalidateStats(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return nil
}

func (c *countingInvalidator) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type deskFixture struct {
	store         *repotest.Store
	policy        *auth.Policy
	dispatcher    events.Dispatcher
	files         *fakeFiles
	invalidator   *countingInvalidator
	tickets       *TicketService
	assignments   *AssignmentService
	notifications *NotificationService
	users         *UserService
}

var testSLA = config.SLAConfig{LowHours: 72, MediumHours: 24, HighHours: 4}

func newDeskFixture(t *testing.T) *deskFixture {
	t.Helper()
	store := repotest.NewStore()
	policy := auth.MustPolicy()
	dispatcher := events.NewInMemoryDispatcher()
	files := newFakeFiles(1024)
	invalidator := &countingInvalidator{}

	f := &deskFixture{
		store:       store,
		policy:      policy,
		dispatcher:  dispatcher,
		files:       files,
		invalidator: invalidator,
		tickets: NewTicketService(TicketDependencies{
			TicketRepo:     store.Tickets(),
			CommentRepo:    store.Comments(),
			AttachmentRepo: store.Attachments(),
			HistoryRepo:    store.History(),
			SLARepo:        store.SLAs(),
			Files:          files,
			Stats:          invalidator,
			Policy:         policy,
			SLA:            testSLA,
			Dispatcher:     dispatcher,
		}),
		assignments: NewAssignmentService(AssignmentDependencies{
			TicketRepo:  store.Tickets(),
			UserRepo:    store.Users(),
			HistoryRepo: store.History(),
			Stats:       invalidator,
			Policy:      policy,
			Dispatcher:  dispatcher,
		}),
		notifications: NewNotificationService(config.NotificationConfig{}, NotificationDependencies{
			NotificationRepo: store.Notifications(),
			UserRepo:         store.Users(),
			Dispatcher:       dispatcher,
		}),
		users: NewUserService(UserDependencies{
			UserRepo:       store.Users(),
			AttachmentRepo: store.Attachments(),
			Files:          files,
			Stats:          invalidator,
			Policy:         policy,
			BcryptCost:     bcrypt.MinCost,
		}),
	}
	f.notifications.RegisterHandlers()
	return f
}

func (f *deskFixture) addUser(t *testing.T, name string, role domain.Role) *domain.User {
	t.Helper()
	user := &domain.User{
		Name:         name,
		Email:        name + "@example.com",
		PasswordHash: "x",
		Role:         role,
		Status:       domain.UserStatusActive,
	}
	require.NoError(t, f.store.Users().Create(context.Background(), user))
	return user
}

func (f *deskFixture) newTicket(t *testing.T, requester *domain.User, title string, priority domain.TicketPriority) *domain.Ticket {
	t.Helper()
	ticket, err := f.tickets.CreateTicket(context.Background(), requester, TicketCreateInput{
		Title:       title,
		Description: "details for " + title,
		Priority:    priority,
	})
	require.NoError(t, err)
	return ticket
}

func (f *deskFixture) notificationsFor(userID string) []domain.Notification {
	var out []domain.Notification
	for _, n := range f.store.AllNotifications() {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var de *apperrors.DomainError
	require.True(t, errors.As(err, &de), "expected domain error, got %v", err)
	require.Equal(t, code, de.Code)
}
