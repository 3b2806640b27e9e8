package dto

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// UploadsPrefix is the public path attachments are served from.
const UploadsPrefix = "/uploads/"

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string     `json:"title" validate:"required,notblank,max=200"`
	Description string     `json:"description" validate:"required,notblank"`
	Priority    string     `json:"priority" validate:"omitempty,ticket_priority"`
	DueDate     *time.Time `json:"due_date"`
}

// UpdateTicketRequest carries optional edits.
type UpdateTicketRequest struct {
	Title       *string `json:"title" validate:"omitempty,notblank,max=200"`
	Description *string `json:"description" validate:"omitempty,notblank"`
	Priority    *string `json:"priority" validate:"omitempty,ticket_priority"`
	Status      *string `json:"status" validate:"omitempty,ticket_status"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,ticket_status"`
}

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	AssigneeID string `json:"assignee_id" validate:"required,uuid"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Content  string `json:"content" validate:"required,notblank,max=5000"`
	Internal bool   `json:"internal"`
}

// TicketResponse is the list view of a ticket.
type TicketResponse struct {
	ID            string                `json:"id"`
	ExternalKey   string                `json:"external_key"`
	Title         string                `json:"title"`
	Description   string                `json:"description"`
	Status        domain.TicketStatus   `json:"status"`
	Priority      domain.TicketPriority `json:"priority"`
	RequesterID   string                `json:"requester_id"`
	RequesterName string                `json:"requester_name"`
	AssigneeID    *string               `json:"assignee_id"`
	AssigneeName  *string               `json:"assignee_name"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
	ClosedAt      *time.Time            `json:"closed_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketResponse
	Comments     []CommentResponse       `json:"comments"`
	Attachments  []AttachmentResponse    `json:"attachments"`
	History      []TicketHistoryResponse `json:"history"`
	SLA          *SLAResponse            `json:"sla"`
	Overdue      bool                    `json:"overdue"`
	NextStatuses []domain.TicketStatus   `json:"next_statuses"`
}

// CommentResponse is one thread entry.
type CommentResponse struct {
	ID         string    `json:"id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Content    string    `json:"content"`
	Internal   bool      `json:"internal"`
	CreatedAt  time.Time `json:"created_at"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	ID         string    `json:"id"`
	FileName   string    `json:"file_name"`
	MimeType   string    `json:"mime_type"`
	SizeBytes  int64     `json:"size_bytes"`
	URL        string    `json:"url"`
	UploaderID string    `json:"uploader_id"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// TicketHistoryResponse is one audit entry.
type TicketHistoryResponse struct {
	ID          string                  `json:"id"`
	ChangeType  domain.TicketChangeType `json:"change_type"`
	ChangedByID *string                 `json:"changed_by_id"`
	OldValue    map[string]any          `json:"old_value"`
	NewValue    map[string]any          `json:"new_value"`
	CreatedAt   time.Time               `json:"created_at"`
}

// SLAResponse exposes the due time.
type SLAResponse struct {
	DueTime   time.Time `json:"due_time"`
	AlertSent bool      `json:"alert_sent"`
}

// PageMeta accompanies list responses.
type PageMeta struct {
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// NewTicketResponse maps a ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:            t.ID,
		ExternalKey:   t.ExternalKey,
		Title:         t.Title,
		Description:   t.Description,
		Status:        t.Status,
		Priority:      t.Priority,
		RequesterID:   t.RequesterID,
		RequesterName: t.RequesterName,
		AssigneeID:    t.AssigneeID,
		AssigneeName:  t.AssigneeName,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
		ClosedAt:      t.ClosedAt,
	}
}

// NewTicketResponses maps a list.
func NewTicketResponses(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketResponse(&tickets[i]))
	}
	return out
}

// NewCommentResponses maps thread entries.
func NewCommentResponses(comments []domain.Comment) []CommentResponse {
	out := make([]CommentResponse, 0, len(comments))
	for _, c := range comments {
		out = append(out, NewCommentResponse(&c))
	}
	return out
}

// NewCommentResponse maps one comment.
func NewCommentResponse(c *domain.Comment) CommentResponse {
	return CommentResponse{
		ID:         c.ID,
		AuthorID:   c.AuthorID,
		AuthorName: c.AuthorName,
		Content:    c.Content,
		Internal:   c.Internal,
		CreatedAt:  c.CreatedAt,
	}
}

// NewAttachmentResponse maps one attachment.
func NewAttachmentResponse(a *domain.Attachment) AttachmentResponse {
	return AttachmentResponse{
		ID:         a.ID,
		FileName:   a.FileName,
		MimeType:   a.MimeType,
		SizeBytes:  a.SizeBytes,
		URL:        UploadsPrefix + a.StoredName,
		UploaderID: a.UploaderID,
		UploadedAt: a.UploadedAt,
	}
}

// NewAttachmentResponses maps a list.
func NewAttachmentResponses(items []domain.Attachment) []AttachmentResponse {
	out := make([]AttachmentResponse, 0, len(items))
	for i := range items {
		out = append(out, NewAttachmentResponse(&items[i]))
	}
	return out
}

// NewHistoryResponses maps audit entries.
func NewHistoryResponses(entries []domain.TicketHistory) []TicketHistoryResponse {
	out := make([]TicketHistoryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, TicketHistoryResponse{
			ID:          e.ID,
			ChangeType:  e.ChangeType,
			ChangedByID: e.ChangedByID,
			OldValue:    e.OldValue,
			NewValue:    e.NewValue,
			CreatedAt:   e.CreatedAt,
		})
	}
	return out
}
