package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/report"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

const exportBatchSize = 500

// StatsCache stores global aggregates between ticket writes.
type StatsCache interface {
	LoadStats(ctx context.Context, name string, dst any) (bool, error)
	StoreStats(ctx context.Context, name string, value any) error
}

// TicketSummary holds dashboard counters.
type TicketSummary struct {
	Total      int64 `json:"total"`
	Open       int64 `json:"open"`
	InProgress int64 `json:"inProgress"`
	Resolved   int64 `json:"resolved"`
	Closed     int64 `json:"closed"`
	Overdue    int64 `json:"overdue"`
}

// StatsService serves dashboards, reports and exports.
type StatsService struct {
	tickets repository.TicketRepository
	slas    repository.SLARepository
	stats   repository.StatsRepository
	cache   StatsCache
	policy  *auth.Policy
	logger  *zap.Logger
	now     func() time.Time
}

// StatsDependencies bundles collaborators.
type StatsDependencies struct {
	TicketRepo repository.TicketRepository
	SLARepo    repository.SLARepository
	StatsRepo  repository.StatsRepository
	Cache      StatsCache
	Policy     *auth.Policy
	Logger     *zap.Logger
}

// NewStatsService creates the service.
func NewStatsService(deps StatsDependencies) *StatsService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsService{
		tickets: deps.TicketRepo,
		slas:    deps.SLARepo,
		stats:   deps.StatsRepo,
		cache:   deps.Cache,
		policy:  deps.Policy,
		logger:  logger,
		now:     time.Now,
	}
}

// Summary returns global counters for staff and admins and the caller's own
// counters for everyone else.
func (s *StatsService) Summary(ctx context.Context, actor *domain.User) (*TicketSummary, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !s.policy.Can(actor.Role, auth.ActionStatsGlobal) {
		return s.summary(ctx, &actor.ID)
	}
	var out TicketSummary
	err := s.cached(ctx, "summary", &out, func() (any, error) {
		sum, err := s.summary(ctx, nil)
		if err != nil {
			return nil, err
		}
		out = *sum
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// MySummary returns counters for tickets the caller requested.
func (s *StatsService) MySummary(ctx context.Context, actor *domain.User) (*TicketSummary, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	return s.summary(ctx, &actor.ID)
}

// StatusChart returns one bucket per status.
func (s *StatsService) StatusChart(ctx context.Context, actor *domain.User) (*report.Chart, error) {
	if err := s.authorize(actor, auth.ActionStatsGlobal); err != nil {
		return nil, err
	}
	var out report.Chart
	err := s.cached(ctx, "status", &out, func() (any, error) {
		counts, err := s.stats.StatusCounts(ctx, repository.TicketFilter{})
		if err != nil {
			return nil, err
		}
		out = report.StatusChart(counts)
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Monthly returns tickets created per month of year; zero means the current year.
func (s *StatsService) Monthly(ctx context.Context, actor *domain.User, year int) (*report.Chart, error) {
	if err := s.authorize(actor, auth.ActionStatsGlobal); err != nil {
		return nil, err
	}
	if year == 0 {
		year = s.now().Year()
	}
	if year < 1970 || year > 9999 {
		return nil, apperrors.NewValidationError("invalid year", map[string]any{"year": year})
	}
	var out report.Chart
	err := s.cached(ctx, fmt.Sprintf("monthly:%d", year), &out, func() (any, error) {
		counts, err := s.stats.MonthlyCounts(ctx, year)
		if err != nil {
			return nil, err
		}
		out = report.MonthlyChart(counts)
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListByPriority pages through all tickets, most urgent first.
func (s *StatsService) ListByPriority(ctx context.Context, actor *domain.User, limit, offset int) (*TicketPage, error) {
	if err := s.authorize(actor, auth.ActionStatsGlobal); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	filter := repository.TicketFilter{OrderBy: repository.OrderPriority, Limit: limit, Offset: offset}
	items, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	total, err := s.tickets.Count(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if items == nil {
		items = []domain.Ticket{}
	}
	return &TicketPage{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

// Report builds the admin report for a trailing period.
func (s *StatsService) Report(ctx context.Context, actor *domain.User, period report.Period) (*report.Report, error) {
	if err := s.authorize(actor, auth.ActionReportRead); err != nil {
		return nil, err
	}
	var out report.Report
	err := s.cached(ctx, fmt.Sprintf("report:%d", period.Days), &out, func() (any, error) {
		built, err := s.buildReport(ctx, period)
		if err != nil {
			return nil, err
		}
		out = *built
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Export streams every ticket to w in the requested format.
func (s *StatsService) Export(ctx context.Context, actor *domain.User, w io.Writer, format report.Format) error {
	if err := s.authorize(actor, auth.ActionTicketExport); err != nil {
		return err
	}
	var all []domain.Ticket
	for offset := 0; ; offset += exportBatchSize {
		batch, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{
			OrderBy: repository.OrderNewest,
			Limit:   exportBatchSize,
			Offset:  offset,
		})
		if err != nil {
			return apperrors.MapError(err)
		}
		all = append(all, batch...)
		if len(batch) < exportBatchSize {
			break
		}
	}
	if err := report.Write(w, format, all); err != nil {
		return apperrors.NewInternalError(fmt.Errorf("export tickets: %w", err))
	}
	return nil
}

func (s *StatsService) buildReport(ctx context.Context, period report.Period) (*report.Report, error) {
	now := s.now()
	from, to := period.Window(now)
	prevFrom, prevTo := period.PreviousWindow(now)
	scope := repository.TicketFilter{CreatedFrom: &from, CreatedTo: &to}

	statusCounts, err := s.stats.StatusCounts(ctx, scope)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	previous, err := s.stats.StatusCounts(ctx, repository.TicketFilter{CreatedFrom: &prevFrom, CreatedTo: &prevTo})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	priorityCounts, err := s.stats.PriorityCounts(ctx, scope)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	created, err := s.stats.CreatedTimes(ctx, scope)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	assigned, err := s.stats.CountAssigned(ctx, scope)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	overdue, err := s.slas.CountOverdue(ctx, now, nil)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	built := report.Build(report.Input{
		Period:         period,
		Now:            now,
		StatusCounts:   statusCounts,
		PriorityCounts: priorityCounts,
		PreviousStatus: previous,
		CreatedTimes:   created,
		Assigned:       assigned,
		Overdue:        overdue,
	})
	return &built, nil
}

func (s *StatsService) summary(ctx context.Context, requesterID *string) (*TicketSummary, error) {
	counts, err := s.stats.StatusCounts(ctx, repository.TicketFilter{RequesterID: requesterID})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	overdue, err := s.slas.CountOverdue(ctx, s.now(), requesterID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	sum := &TicketSummary{
		Open:       counts[domain.TicketStatusOpen],
		InProgress: counts[domain.TicketStatusInProgress],
		Resolved:   counts[domain.TicketStatusResolved],
		Closed:     counts[domain.TicketStatusClosed],
		Overdue:    overdue,
	}
	sum.Total = sum.Open + sum.InProgress + sum.Resolved + sum.Closed
	return sum, nil
}

func (s *StatsService) authorize(actor *domain.User, action auth.Action) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !s.policy.Can(actor.Role, action) {
		return apperrors.NewForbidden("insufficient role")
	}
	return nil
}

// cached loads name into dst, or computes it and stores the result. Cache
// failures only cost a recomputation.
func (s *StatsService) cached(ctx context.Context, name string, dst any, compute func() (any, error)) error {
	if s.cache != nil {
		hit, err := s.cache.LoadStats(ctx, name, dst)
		if err != nil {
			s.logger.Warn("stats cache read failed", zap.String("key", name), zap.Error(err))
		}
		if hit {
			return nil
		}
	}
	value, err := compute()
	if err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.StoreStats(ctx, name, value); err != nil {
			s.logger.Warn("stats cache write failed", zap.String("key", name), zap.Error(err))
		}
	}
	return nil
}
