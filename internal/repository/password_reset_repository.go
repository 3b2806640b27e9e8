package repository

import (
	"context"
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// PasswordResetRepository manages password reset token persistence.
type PasswordResetRepository interface {
	Create(ctx context.Context, token *domain.PasswordResetToken) error
	// Consume marks an unused, unexpired token as used and returns it. Only one
	// caller can consume a token; the others get pgx.ErrNoRows.
	Consume(ctx context.Context, token string, now time.Time) (*domain.PasswordResetToken, error)
	InvalidateForUser(ctx context.Context, userID string) error
}

type passwordResetRepository struct {
	db DBTX
}

// NewPasswordResetRepository constructs repository.
func NewPasswordResetRepository(db DBTX) PasswordResetRepository {
	return &passwordResetRepository{db: db}
}

func (r *passwordResetRepository) Create(ctx context.Context, token *domain.PasswordResetToken) error {
	const query = `
        INSERT INTO password_reset_tokens (user_id, token, expires_at)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		token.UserID,
		token.Token,
		token.ExpiresAt,
	).Scan(&token.ID, &token.CreatedAt)
}

func (r *passwordResetRepository) Consume(ctx context.Context, tokenStr string, now time.Time) (*domain.PasswordResetToken, error) {
	const query = `
        UPDATE password_reset_tokens SET used_at=$2
        WHERE token=$1 AND used_at IS NULL AND expires_at > $2
        RETURNING id, user_id, token, expires_at, used_at, created_at`
	var token domain.PasswordResetToken
	if err := r.db.QueryRow(ctx, query, tokenStr, now).Scan(
		&token.ID,
		&token.UserID,
		&token.Token,
		&token.ExpiresAt,
		&token.UsedAt,
		&token.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &token, nil
}

// InvalidateForUser burns every outstanding token so only the newest request stays valid.
func (r *passwordResetRepository) InvalidateForUser(ctx context.Context, userID string) error {
	const query = `
        UPDATE password_reset_tokens SET used_at=NOW()
        WHERE user_id=$1 AND used_at IS NULL`
	_, err := r.db.Exec(ctx, query, userID)
	return err
}
