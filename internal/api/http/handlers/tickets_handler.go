package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/service"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// TicketsHandler manages ticket endpoints for every role; the service decides
// what each caller may see and do.
type TicketsHandler struct {
	service     *service.TicketService
	assignments *service.AssignmentService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, assignmentService *service.AssignmentService) *TicketsHandler {
	return &TicketsHandler{service: ticketService, assignments: assignmentService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	priority := domain.TicketPriorityMedium
	if req.Priority != "" {
		priority, _ = domain.ParseTicketPriority(req.Priority)
	}
	ticket, err := h.service.CreateTicket(c.UserContext(), actor, service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    priority,
		DueDate:     req.DueDate,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	filter, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	page, err := h.service.ListTickets(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": dto.NewTicketResponses(page.Items),
		"meta": dto.PageMeta{Total: page.Total, Limit: page.Limit, Offset: page.Offset},
	})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	detail, err := h.service.GetTicket(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	resp := dto.TicketDetailResponse{
		TicketResponse: dto.NewTicketResponse(detail.Ticket),
		Comments:       dto.NewCommentResponses(detail.Comments),
		Attachments:    dto.NewAttachmentResponses(detail.Attachments),
		History:        dto.NewHistoryResponses(detail.History),
		Overdue:        detail.Overdue,
		NextStatuses:   detail.NextStatuses,
	}
	if detail.SLA != nil {
		resp.SLA = &dto.SLAResponse{DueTime: detail.SLA.DueTime, AlertSent: detail.SLA.AlertSent}
	}
	if resp.NextStatuses == nil {
		resp.NextStatuses = []domain.TicketStatus{}
	}
	return c.JSON(fiber.Map{"data": resp})
}

// UpdateTicket PUT /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	input := service.TicketUpdateInput{Title: req.Title, Description: req.Description}
	if req.Priority != nil {
		p, _ := domain.ParseTicketPriority(*req.Priority)
		input.Priority = &p
	}
	if req.Status != nil {
		st, _ := domain.ParseTicketStatus(*req.Status)
		input.Status = &st
	}
	ticket, err := h.service.UpdateTicket(c.UserContext(), actor, id, input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// UpdateStatus PUT /tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	status, _ := domain.ParseTicketStatus(req.Status)
	ticket, err := h.service.UpdateStatus(c.UserContext(), actor, id, status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// CloseTicket POST /tickets/:id/close.
func (h *TicketsHandler) CloseTicket(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	ticket, err := h.service.CloseTicket(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// DeleteTicket DELETE /tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.DeleteTicket(c.UserContext(), actor, id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// AssignTicket PUT /tickets/:id/assign.
func (h *TicketsHandler) AssignTicket(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req dto.AssignTicketRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.assignments.AssignTicket(c.UserContext(), actor, id, req.AssigneeID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// UnassignTicket DELETE /tickets/:id/assign.
func (h *TicketsHandler) UnassignTicket(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	ticket, err := h.assignments.UnassignTicket(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// AutoAssignTicket POST /tickets/:id/auto-assign.
func (h *TicketsHandler) AutoAssignTicket(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	ticket, err := h.assignments.AutoAssignTicket(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// AddComment POST /tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req dto.CreateCommentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	comment, err := h.service.AddComment(c.UserContext(), actor, id, req.Content, req.Internal)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewCommentResponse(comment)})
}

// ListComments GET /tickets/:id/comments.
func (h *TicketsHandler) ListComments(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	comments, err := h.service.ListComments(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCommentResponses(comments)})
}

// UploadAttachment POST /tickets/:id/attachments (multipart field "file").
func (h *TicketsHandler) UploadAttachment(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	header, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewValidationError("file is required", map[string]any{"file": "is required"})
	}
	file, err := header.Open()
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	defer file.Close()

	attachment, err := h.service.AddAttachment(c.UserContext(), actor, id, service.AttachmentUpload{
		FileName: header.Filename,
		MimeType: header.Header.Get(fiber.HeaderContentType),
		Content:  file,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewAttachmentResponse(attachment)})
}

// ListAttachments GET /tickets/:id/attachments.
func (h *TicketsHandler) ListAttachments(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	items, err := h.service.ListAttachments(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAttachmentResponses(items)})
}

// ListHistory GET /tickets/:id/history.
func (h *TicketsHandler) ListHistory(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	limit, offset := paging(c)
	entries, err := h.service.ListHistory(c.UserContext(), actor, id, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewHistoryResponses(entries)})
}

func parseTicketQuery(c *fiber.Ctx) (service.TicketListFilter, error) {
	filter := service.TicketListFilter{SearchTerm: optionalString(c.Query("search"))}
	var err error
	if filter.CreatedFrom, err = parseTime("created_from", c.Query("created_from")); err != nil {
		return filter, err
	}
	if filter.CreatedTo, err = parseEndTime("created_to", c.Query("created_to")); err != nil {
		return filter, err
	}
	if filter.RequesterID, err = optionalUUID("requester_id", c.Query("requester_id")); err != nil {
		return filter, err
	}
	for _, raw := range splitList(c.Query("status")) {
		st, ok := domain.ParseTicketStatus(raw)
		if !ok {
			return filter, apperrors.NewValidationError("invalid status filter", map[string]any{"status": raw})
		}
		filter.Statuses = append(filter.Statuses, st)
	}
	for _, raw := range splitList(c.Query("priority")) {
		p, ok := domain.ParseTicketPriority(raw)
		if !ok {
			return filter, apperrors.NewValidationError("invalid priority filter", map[string]any{"priority": raw})
		}
		filter.Priorities = append(filter.Priorities, p)
	}
	switch assignee := c.Query("assignee_id"); assignee {
	case "":
	case "none", "unassigned":
		filter.Unassigned = true
	default:
		if filter.AssigneeID, err = optionalUUID("assignee_id", assignee); err != nil {
			return filter, err
		}
	}
	filter.Limit, filter.Offset = paging(c)
	return filter, nil
}
