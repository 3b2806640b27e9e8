package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/domain"
)

func TestParsePeriod(t *testing.T) {
	cases := map[string]int{
		"":             7,
		"Last 7 days":  7,
		"last 90 days": 90,
		"7":            7,
		"30d":          30,
	}
	for in, days := range cases {
		p, err := ParsePeriod(in)
		require.NoError(t, err, in)
		assert.Equal(t, days, p.Days, in)
	}

	assert.Equal(t, "Last 7 days", DefaultPeriod.Label)

	_, err := ParsePeriod("Last 12 days")
	assert.Error(t, err)
	_, err = ParsePeriod("14")
	assert.Error(t, err)
}

func TestPeriodWindows(t *testing.T) {
	now := time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)
	p := Period{Label: "Last 7 days", Days: 7}

	from, to := p.Window(now)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), to)

	prevFrom, prevTo := p.PreviousWindow(now)
	assert.Equal(t, time.Date(2024, 2, 26, 0, 0, 0, 0, time.UTC), prevFrom)
	assert.Equal(t, from, prevTo)
}

func TestPercentChange(t *testing.T) {
	assert.Equal(t, "0%", PercentChange(0, 0))
	assert.Equal(t, "+100%", PercentChange(3, 0))
	assert.Equal(t, "+25%", PercentChange(5, 4))
	assert.Equal(t, "-50%", PercentChange(2, 4))
	assert.Equal(t, "0%", PercentChange(4, 4))
	assert.Equal(t, "+33%", PercentChange(4, 3))
}

func TestBuildDailyReport(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	rep := Build(Input{
		Period: Periods[0],
		Now:    now,
		StatusCounts: map[domain.TicketStatus]int64{
			domain.TicketStatusOpen:     2,
			domain.TicketStatusResolved: 1,
			domain.TicketStatusClosed:   1,
		},
		PreviousStatus: map[domain.TicketStatus]int64{
			domain.TicketStatusOpen:   1,
			domain.TicketStatusClosed: 1,
		},
		PriorityCounts: map[domain.TicketPriority]int64{domain.TicketPriorityHigh: 3, domain.TicketPriorityLow: 1},
		CreatedTimes: []time.Time{
			time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
			time.Date(2024, 3, 10, 1, 0, 0, 0, time.UTC),
			time.Date(2024, 3, 10, 11, 0, 0, 0, time.UTC),
			time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC),
		},
		Assigned: 2,
		Overdue:  1,
	})

	assert.Equal(t, "Last 7 days", rep.Period)
	assert.EqualValues(t, 4, rep.TotalTickets)
	assert.EqualValues(t, 2, rep.ResolvedTickets)
	assert.EqualValues(t, 2, rep.AssignedTickets)
	assert.EqualValues(t, 1, rep.OverdueTickets)
	assert.Equal(t, "+100%", rep.TotalChange)
	assert.Equal(t, "+100%", rep.ResolvedChange)

	assert.Equal(t, []string{"Open", "In Progress", "Resolved", "Closed"}, rep.StatusChart.Labels)
	assert.Equal(t, []int64{2, 0, 1, 1}, rep.StatusChart.Data)
	assert.Equal(t, []int64{3, 0, 1}, rep.PriorityChart.Data)

	require.Len(t, rep.TimeChart.Labels, 7)
	assert.Equal(t, "Mon, Mar 4", rep.TimeChart.Labels[0])
	assert.Equal(t, "Sun, Mar 10", rep.TimeChart.Labels[6])
	assert.Equal(t, []int64{1, 0, 0, 0, 0, 0, 2}, rep.TimeChart.Data)
}

func TestBuildWeekdayReport(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	rep := Build(Input{
		Period: Periods[1],
		Now:    now,
		CreatedTimes: []time.Time{
			time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),  // Monday
			time.Date(2024, 2, 26, 9, 0, 0, 0, time.UTC), // Monday
			time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC), // Sunday
		},
	})
	assert.Equal(t, []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}, rep.TimeChart.Labels)
	assert.Equal(t, []int64{2, 0, 0, 0, 0, 0, 1}, rep.TimeChart.Data)
	assert.Equal(t, "0%", rep.TotalChange)
}

func TestMonthlyChart(t *testing.T) {
	chart := MonthlyChart(map[int]int64{1: 4, 12: 2})
	require.Len(t, chart.Labels, 12)
	assert.Equal(t, "Jan", chart.Labels[0])
	assert.Equal(t, "Dec", chart.Labels[11])
	assert.EqualValues(t, 4, chart.Data[0])
	assert.EqualValues(t, 0, chart.Data[5])
	assert.EqualValues(t, 2, chart.Data[11])
}
