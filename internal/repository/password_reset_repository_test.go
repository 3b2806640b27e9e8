package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordResetRepositoryConsumeIsConditional(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	consume := regexp.QuoteMeta("WHERE token=$1 AND used_at IS NULL AND expires_at > $2")
	columns := []string{"id", "user_id", "token", "expires_at", "used_at", "created_at"}

	mock.ExpectQuery(consume).
		WithArgs("tok", now).
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow("r-1", "u-1", "tok", now.Add(30*time.Minute), &now, now.Add(-time.Minute)))
	mock.ExpectQuery(consume).
		WithArgs("tok", now).
		WillReturnError(pgx.ErrNoRows)

	repo := NewPasswordResetRepository(mock)
	token, err := repo.Consume(context.Background(), "tok", now)
	require.NoError(t, err)
	assert.Equal(t, "u-1", token.UserID)
	require.NotNil(t, token.UsedAt)
	assert.True(t, token.UsedAt.Equal(now))

	_, err = repo.Consume(context.Background(), "tok", now)
	assert.ErrorIs(t, err, pgx.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
