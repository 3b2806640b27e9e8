package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentRepositoryListByTicketHidesInternalNotes(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	columns := []string{"id", "ticket_id", "user_id", "name", "content", "internal", "created_at"}

	mock.ExpectQuery(regexp.QuoteMeta("WHERE c.ticket_id=$1 AND c.internal = FALSE ORDER BY c.created_at ASC")).
		WithArgs("t-1").
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow("c-1", "t-1", "u-1", "alice", "Still broken", false, at))
	mock.ExpectQuery(`WHERE c\.ticket_id=\$1 ORDER BY c\.created_at ASC`).
		WithArgs("t-1").
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow("c-1", "t-1", "u-1", "alice", "Still broken", false, at).
			AddRow("c-2", "t-1", "u-2", "sam", "Needs a new disk", true, at.Add(time.Minute)))

	repo := NewCommentRepository(mock)
	public, err := repo.ListByTicket(context.Background(), "t-1", false)
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.False(t, public[0].Internal)

	all, err := repo.ListByTicket(context.Background(), "t-1", true)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all[1].Internal)
	assert.Equal(t, "sam", all[1].AuthorName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
