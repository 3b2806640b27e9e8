// Package report builds the admin period report and the ticket exports.
package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// Period is a trailing window of whole days ending today.
type Period struct {
	Label string `json:"label"`
	Days  int    `json:"days"`
}

// Periods are the windows the report endpoint accepts.
var Periods = []Period{
	{Label: "Last 7 days", Days: 7},
	{Label: "Last 30 days", Days: 30},
	{Label: "Last 90 days", Days: 90},
}

// DefaultPeriod is used when the client sends none.
var DefaultPeriod = Periods[0]

// ParsePeriod accepts the label ("Last 7 days") or a day count ("7", "7d").
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultPeriod, nil
	}
	for _, p := range Periods {
		if strings.EqualFold(p.Label, s) {
			return p, nil
		}
	}
	if days, err := strconv.Atoi(strings.TrimSuffix(strings.ToLower(s), "d")); err == nil {
		for _, p := range Periods {
			if p.Days == days {
				return p, nil
			}
		}
	}
	return Period{}, fmt.Errorf("unsupported period %q", s)
}

// Window returns [from, to) covering Days calendar days up to and including now's day.
func (p Period) Window(now time.Time) (time.Time, time.Time) {
	today := startOfDay(now)
	return today.AddDate(0, 0, -(p.Days - 1)), today.AddDate(0, 0, 1)
}

// PreviousWindow is the window of equal length immediately before Window.
func (p Period) PreviousWindow(now time.Time) (time.Time, time.Time) {
	from, _ := p.Window(now)
	return from.AddDate(0, 0, -p.Days), from
}

// Chart is a labels/data pair ready for a chart widget.
type Chart struct {
	Labels []string `json:"labels"`
	Data   []int64  `json:"data"`
}

// Input carries the aggregates the report is computed from.
type Input struct {
	Period         Period
	Now            time.Time
	StatusCounts   map[domain.TicketStatus]int64
	PriorityCounts map[domain.TicketPriority]int64
	PreviousStatus map[domain.TicketStatus]int64
	CreatedTimes   []time.Time
	Assigned       int64
	Overdue        int64
}

// Report is the admin period summary.
type Report struct {
	Period          string    `json:"period"`
	From            time.Time `json:"from"`
	To              time.Time `json:"to"`
	TotalTickets    int64     `json:"totalTickets"`
	OpenTickets     int64     `json:"openTickets"`
	InProgress      int64     `json:"inProgressTickets"`
	ResolvedTickets int64     `json:"resolvedTickets"`
	AssignedTickets int64     `json:"assignedTickets"`
	OverdueTickets  int64     `json:"overdueTickets"`
	TotalChange     string    `json:"totalChange"`
	ResolvedChange  string    `json:"resolvedChange"`
	StatusChart     Chart     `json:"statusChart"`
	PriorityChart   Chart     `json:"priorityChart"`
	TimeChart       Chart     `json:"timeChart"`
}

// Build computes the report. Resolved counts include closed tickets.
func Build(in Input) Report {
	from, to := in.Period.Window(in.Now)

	total := sumStatus(in.StatusCounts)
	resolved := in.StatusCounts[domain.TicketStatusResolved] + in.StatusCounts[domain.TicketStatusClosed]
	prevTotal := sumStatus(in.PreviousStatus)
	prevResolved := in.PreviousStatus[domain.TicketStatusResolved] + in.PreviousStatus[domain.TicketStatusClosed]

	r := Report{
		Period:          in.Period.Label,
		From:            from,
		To:              to,
		TotalTickets:    total,
		OpenTickets:     in.StatusCounts[domain.TicketStatusOpen],
		InProgress:      in.StatusCounts[domain.TicketStatusInProgress],
		ResolvedTickets: resolved,
		AssignedTickets: in.Assigned,
		OverdueTickets:  in.Overdue,
		TotalChange:     PercentChange(total, prevTotal),
		ResolvedChange:  PercentChange(resolved, prevResolved),
		StatusChart:     StatusChart(in.StatusCounts),
		PriorityChart:   PriorityChart(in.PriorityCounts),
	}
	if in.Period.Days <= 7 {
		r.TimeChart = dailyChart(from, in.Period.Days, in.CreatedTimes, in.Now.Location())
	} else {
		r.TimeChart = weekdayChart(in.CreatedTimes, in.Now.Location())
	}
	return r
}

// StatusChart lists counts in lifecycle order, including zeros.
func StatusChart(counts map[domain.TicketStatus]int64) Chart {
	chart := Chart{Labels: make([]string, 0, len(domain.TicketStatuses)), Data: make([]int64, 0, len(domain.TicketStatuses))}
	for _, st := range domain.TicketStatuses {
		chart.Labels = append(chart.Labels, string(st))
		chart.Data = append(chart.Data, counts[st])
	}
	return chart
}

// PriorityChart lists counts from High to Low.
func PriorityChart(counts map[domain.TicketPriority]int64) Chart {
	chart := Chart{}
	for i := len(domain.TicketPriorities) - 1; i >= 0; i-- {
		p := domain.TicketPriorities[i]
		chart.Labels = append(chart.Labels, string(p))
		chart.Data = append(chart.Data, counts[p])
	}
	return chart
}

// MonthlyChart lists twelve month buckets for a year.
func MonthlyChart(counts map[int]int64) Chart {
	chart := Chart{Labels: make([]string, 12), Data: make([]int64, 12)}
	for m := 1; m <= 12; m++ {
		chart.Labels[m-1] = time.Month(m).String()[:3]
		chart.Data[m-1] = counts[m]
	}
	return chart
}

// PercentChange renders the signed change from prev to cur, e.g. "+25%".
// Growth from zero is reported as "+100%".
func PercentChange(cur, prev int64) string {
	if prev == 0 {
		if cur == 0 {
			return "0%"
		}
		return "+100%"
	}
	pct := int64(math.Round(float64(cur-prev) * 100 / float64(prev)))
	switch {
	case pct > 0:
		return fmt.Sprintf("+%d%%", pct)
	case pct < 0:
		return fmt.Sprintf("%d%%", pct)
	}
	return "0%"
}

func dailyChart(from time.Time, days int, created []time.Time, loc *time.Location) Chart {
	chart := Chart{Labels: make([]string, days), Data: make([]int64, days)}
	for i := 0; i < days; i++ {
		chart.Labels[i] = from.AddDate(0, 0, i).Format("Mon, Jan 2")
	}
	for _, ts := range created {
		day := startOfDay(ts.In(loc))
		idx := int(math.Round(day.Sub(from).Hours() / 24))
		if idx >= 0 && idx < days {
			chart.Data[idx]++
		}
	}
	return chart
}

func weekdayChart(created []time.Time, loc *time.Location) Chart {
	order := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday}
	chart := Chart{Labels: make([]string, len(order)), Data: make([]int64, len(order))}
	index := map[time.Weekday]int{}
	for i, wd := range order {
		chart.Labels[i] = wd.String()[:3]
		index[wd] = i
	}
	for _, ts := range created {
		chart.Data[index[ts.In(loc).Weekday()]]++
	}
	return chart
}

func sumStatus(counts map[domain.TicketStatus]int64) int64 {
	var total int64
	for _, n := range counts {
		total += n
	}
	return total
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
