package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/report"
)

type memoryStatsCache struct {
	entries map[string][]byte
	hits    int
}

func (m *memoryStatsCache) LoadStats(_ context.Context, name string, dst any) (bool, error) {
	raw, ok := m.entries[name]
	if !ok {
		return false, nil
	}
	m.hits++
	return true, json.Unmarshal(raw, dst)
}

func (m *memoryStatsCache) StoreStats(_ context.Context, name string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[name] = raw
	return nil
}

func newStatsFixture(t *testing.T) (*deskFixture, *StatsService, *memoryStatsCache) {
	t.Helper()
	f := newDeskFixture(t)
	cache := &memoryStatsCache{entries: map[string][]byte{}}
	svc := NewStatsService(StatsDependencies{
		TicketRepo: f.store.Tickets(),
		SLARepo:    f.store.SLAs(),
		StatsRepo:  f.store.Stats(),
		Cache:      cache,
		Policy:     f.policy,
	})
	return f, svc, cache
}

func TestSummaryScopesByRole(t *testing.T) {
	f, svc, cache := newStatsFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice", domain.RoleUser)
	bob := f.addUser(t, "bob", domain.RoleUser)
	sam := f.addUser(t, "sam", domain.RoleStaff)

	mine := f.newTicket(t, alice, "one", domain.TicketPriorityLow)
	f.newTicket(t, alice, "two", domain.TicketPriorityHigh)
	f.newTicket(t, bob, "three", domain.TicketPriorityMedium)
	_, err := f.tickets.UpdateStatus(ctx, sam, mine.ID, domain.TicketStatusInProgress)
	require.NoError(t, err)

	own, err := svc.Summary(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, TicketSummary{Total: 2, Open: 1, InProgress: 1}, *own)

	global, err := svc.Summary(ctx, sam)
	require.NoError(t, err)
	assert.Equal(t, TicketSummary{Total: 3, Open: 2, InProgress: 1}, *global)
	assert.Contains(t, cache.entries, "summary")

	again, err := svc.Summary(ctx, sam)
	require.NoError(t, err)
	assert.Equal(t, *global, *again)
	assert.Equal(t, 1, cache.hits)

	my, err := svc.MySummary(ctx, sam)
	require.NoError(t, err)
	assert.Zero(t, my.Total)
}

func TestSummaryCountsOverdue(t *testing.T) {
	f, svc, _ := newStatsFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice", domain.RoleUser)
	ticket := f.newTicket(t, alice, "late", domain.TicketPriorityHigh)

	svc.now = func() time.Time { return ticket.CreatedAt.Add(5 * time.Hour) }
	sum, err := svc.MySummary(ctx, alice)
	require.NoError(t, err)
	assert.EqualValues(t, 1, sum.Overdue)
}

func TestChartsRequireStaff(t *testing.T) {
	f, svc, _ := newStatsFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice", domain.RoleUser)
	sam := f.addUser(t, "sam", domain.RoleStaff)
	root := f.addUser(t, "root", domain.RoleAdmin)
	f.newTicket(t, alice, "one", domain.TicketPriorityLow)
	f.newTicket(t, alice, "two", domain.TicketPriorityHigh)

	_, err := svc.StatusChart(ctx, alice)
	assertCode(t, err, "FORBIDDEN")

	chart, err := svc.StatusChart(ctx, sam)
	require.NoError(t, err)
	assert.Equal(t, []string{"Open", "In Progress", "Resolved", "Closed"}, chart.Labels)
	assert.Equal(t, []int64{2, 0, 0, 0}, chart.Data)

	monthly, err := svc.Monthly(ctx, sam, 0)
	require.NoError(t, err)
	require.Len(t, monthly.Labels, 12)
	assert.Equal(t, "Jan", monthly.Labels[0])
	assert.EqualValues(t, 2, monthly.Data[time.Now().Month()-1])

	_, err = svc.Monthly(ctx, sam, 1200)
	assertCode(t, err, "VALIDATION_FAILED")

	page, err := svc.ListByPriority(ctx, sam, 0, 0)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, domain.TicketPriorityHigh, page.Items[0].Priority)
	assert.EqualValues(t, 2, page.Total)

	_, err = svc.Report(ctx, sam, report.DefaultPeriod)
	assertCode(t, err, "FORBIDDEN")

	rep, err := svc.Report(ctx, root, report.Periods[0])
	require.NoError(t, err)
	assert.Equal(t, "Last 7 days", rep.Period)
	assert.EqualValues(t, 2, rep.TotalTickets)
	assert.EqualValues(t, 2, rep.OpenTickets)
	assert.Equal(t, "+100%", rep.TotalChange)
	assert.Len(t, rep.TimeChart.Labels, 7)
	assert.EqualValues(t, 2, rep.TimeChart.Data[6])
	assert.Equal(t, []string{"High", "Medium", "Low"}, rep.PriorityChart.Labels)
	assert.Equal(t, []int64{1, 0, 1}, rep.PriorityChart.Data)
}

func TestReportComparesWithPreviousPeriod(t *testing.T) {
	f, svc, _ := newStatsFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice", domain.RoleUser)
	root := f.addUser(t, "root", domain.RoleAdmin)

	now := time.Now()
	for i := 0; i < 4; i++ {
		old := f.newTicket(t, alice, "old", domain.TicketPriorityLow)
		f.store.Backdate(old.ID, now.AddDate(0, 0, -40))
	}
	for i := 0; i < 2; i++ {
		f.newTicket(t, alice, "new", domain.TicketPriorityLow)
	}

	rep, err := svc.Report(ctx, root, report.Periods[1])
	require.NoError(t, err)
	assert.Equal(t, "Last 30 days", rep.Period)
	assert.EqualValues(t, 2, rep.TotalTickets)
	assert.Equal(t, "-50%", rep.TotalChange)
	assert.Equal(t, "0%", rep.ResolvedChange)
	assert.Len(t, rep.TimeChart.Labels, 7)
}

func TestExportCSV(t *testing.T) {
	f, svc, _ := newStatsFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice", domain.RoleUser)
	sam := f.addUser(t, "sam", domain.RoleStaff)
	root := f.addUser(t, "root", domain.RoleAdmin)
	ticket := f.newTicket(t, alice, "Export me", domain.TicketPriorityHigh)

	var buf bytes.Buffer
	err := svc.Export(ctx, sam, &buf, report.FormatCSV)
	assertCode(t, err, "FORBIDDEN")

	require.NoError(t, svc.Export(ctx, root, &buf, report.FormatCSV))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Ticket", rows[0][0])
	assert.Equal(t, ticket.ExternalKey, rows[1][0])
	assert.Equal(t, "Export me", rows[1][1])
	assert.Equal(t, "High", rows[1][4])
	assert.Equal(t, "alice", rows[1][5])
}
