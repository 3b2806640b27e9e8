package domain

import "time"

// Comment is a message in a ticket thread. Internal comments are staff notes
// hidden from the requester.
type Comment struct {
	ID         string
	TicketID   string
	AuthorID   string
	AuthorName string
	Content    string
	Internal   bool
	CreatedAt  time.Time
}

// Attachment stores metadata for an uploaded file.
type Attachment struct {
	ID         string
	TicketID   string
	UploaderID string
	FileName   string
	StoredName string
	MimeType   string
	SizeBytes  int64
	UploadedAt time.Time
}
