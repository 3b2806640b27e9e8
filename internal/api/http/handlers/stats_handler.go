package handlers

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/report"
	"github.com/spec-kit/support-desk/internal/service"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// StatsHandler serves dashboard counters, charts, reports and exports.
type StatsHandler struct {
	service *service.StatsService
	now     func() time.Time
}

// NewStatsHandler constructs handler.
func NewStatsHandler(statsService *service.StatsService) *StatsHandler {
	return &StatsHandler{service: statsService, now: time.Now}
}

// Summary GET /tickets/stats.
func (h *StatsHandler) Summary(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	sum, err := h.service.Summary(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": sum})
}

// MySummary GET /tickets/my.
func (h *StatsHandler) MySummary(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	sum, err := h.service.MySummary(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": sum})
}

// StatusStats GET /tickets/status-stats.
func (h *StatsHandler) StatusStats(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	chart, err := h.service.StatusChart(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": chart})
}

// MonthlyStats GET /tickets/monthly-stats?year=.
func (h *StatsHandler) MonthlyStats(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	year := 0
	if raw := c.Query("year"); raw != "" {
		year, err = strconv.Atoi(raw)
		if err != nil {
			return apperrors.NewValidationError("invalid year", map[string]any{"year": raw})
		}
	}
	chart, err := h.service.Monthly(c.UserContext(), actor, year)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": chart})
}

// ListByPriority GET /tickets/list-by-priority.
func (h *StatsHandler) ListByPriority(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	limit, offset := paging(c)
	page, err := h.service.ListByPriority(c.UserContext(), actor, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": dto.NewTicketResponses(page.Items),
		"meta": dto.PageMeta{Total: page.Total, Limit: page.Limit, Offset: page.Offset},
	})
}

// Report GET /tickets/report?period=.
func (h *StatsHandler) Report(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	period, err := report.ParsePeriod(c.Query("period"))
	if err != nil {
		return apperrors.NewValidationError(err.Error(), map[string]any{"period": c.Query("period")})
	}
	rep, err := h.service.Report(c.UserContext(), actor, period)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": rep})
}

// Export GET /tickets/export?format=csv|xlsx.
func (h *StatsHandler) Export(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(c.Query("format"))
	if err != nil {
		return apperrors.NewValidationError(err.Error(), map[string]any{"format": c.Query("format")})
	}
	var buf bytes.Buffer
	if err := h.service.Export(c.UserContext(), actor, &buf, format); err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, format.ContentType())
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, format.FileName(h.now())))
	return c.Send(buf.Bytes())
}
