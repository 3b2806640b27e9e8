package repository

import (
	"context"

	"github.com/spec-kit/support-desk/internal/domain"
)

// AttachmentRepository persists attachment metadata. File bytes live on disk.
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *domain.Attachment) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Attachment, error)
	// ListOwnedBy returns attachments that go away with the user: those on
	// tickets they requested and those they uploaded.
	ListOwnedBy(ctx context.Context, userID string) ([]domain.Attachment, error)
}

type attachmentRepository struct {
	db DBTX
}

// NewAttachmentRepository constructs repository.
func NewAttachmentRepository(db DBTX) AttachmentRepository {
	return &attachmentRepository{db: db}
}

func (r *attachmentRepository) Create(ctx context.Context, attachment *domain.Attachment) error {
	const query = `
        INSERT INTO attachments (ticket_id, uploader_id, file_name, file_path, mime_type, size_bytes)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, uploaded_at`
	return r.db.QueryRow(ctx, query,
		attachment.TicketID,
		attachment.UploaderID,
		attachment.FileName,
		attachment.StoredName,
		attachment.MimeType,
		attachment.SizeBytes,
	).Scan(&attachment.ID, &attachment.UploadedAt)
}

func (r *attachmentRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Attachment, error) {
	const query = `
        SELECT id, ticket_id, uploader_id, file_name, file_path, mime_type, size_bytes, uploaded_at
        FROM attachments WHERE ticket_id=$1 ORDER BY uploaded_at ASC`
	return r.list(ctx, query, ticketID)
}

func (r *attachmentRepository) ListOwnedBy(ctx context.Context, userID string) ([]domain.Attachment, error) {
	const query = `
        SELECT a.id, a.ticket_id, a.uploader_id, a.file_name, a.file_path, a.mime_type, a.size_bytes, a.uploaded_at
        FROM attachments a
        JOIN tickets t ON t.id = a.ticket_id
        WHERE t.user_id=$1 OR a.uploader_id=$1
        ORDER BY a.uploaded_at ASC`
	return r.list(ctx, query, userID)
}

func (r *attachmentRepository) list(ctx context.Context, query string, args ...any) ([]domain.Attachment, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Attachment
	for rows.Next() {
		var attachment domain.Attachment
		if err := rows.Scan(
			&attachment.ID,
			&attachment.TicketID,
			&attachment.UploaderID,
			&attachment.FileName,
			&attachment.StoredName,
			&attachment.MimeType,
			&attachment.SizeBytes,
			&attachment.UploadedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, attachment)
	}
	return result, rows.Err()
}
