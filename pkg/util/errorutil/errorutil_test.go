package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainError(t *testing.T) {
	t.Run("passes domain errors through wrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("load: %w", NewForbidden("nope"))
		de := ToDomainError(wrapped)
		require.NotNil(t, de)
		assert.Equal(t, "FORBIDDEN", de.Code)
		assert.Equal(t, http.StatusForbidden, de.HTTPStatus)
	})

	t.Run("no rows becomes not found", func(t *testing.T) {
		de := ToDomainError(fmt.Errorf("get ticket: %w", pgx.ErrNoRows))
		assert.Equal(t, "NOT_FOUND", de.Code)
		assert.True(t, IsNotFound(pgx.ErrNoRows))
	})

	t.Run("unique violation becomes conflict", func(t *testing.T) {
		de := ToDomainError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})
		assert.Equal(t, "CONFLICT", de.Code)
		assert.Equal(t, "users_email_key", de.Details["constraint"])
	})

	t.Run("fiber errors keep their status", func(t *testing.T) {
		de := ToDomainError(fiber.NewError(http.StatusTooManyRequests, "slow down"))
		assert.Equal(t, "RATE_LIMITED", de.Code)
		assert.Equal(t, http.StatusTooManyRequests, de.HTTPStatus)
	})

	t.Run("unknown errors are internal", func(t *testing.T) {
		cause := errors.New("boom")
		de := ToDomainError(cause)
		assert.Equal(t, "INTERNAL_ERROR", de.Code)
		assert.ErrorIs(t, de, cause)
	})

	assert.Nil(t, ToDomainError(nil))
	assert.NoError(t, MapError(nil))
}

func TestNewInvalidTransition(t *testing.T) {
	de := ToDomainError(NewInvalidTransition("Open", "Resolved", []string{"In Progress"}))
	assert.Equal(t, "INVALID_TRANSITION", de.Code)
	assert.Equal(t, http.StatusConflict, de.HTTPStatus)
	assert.Equal(t, []string{"In Progress"}, de.Details["allowed"])
}
