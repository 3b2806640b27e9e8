package report

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/spec-kit/support-desk/internal/domain"
)

func sampleTickets() []domain.Ticket {
	created := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	closed := created.Add(48 * time.Hour)
	assignee := "Sam"
	return []domain.Ticket{
		{
			ExternalKey:    "TCK-0000AAAA",
			Title:          "VPN, again",
			Description:    "Line one\nline two",
			Status:         domain.TicketStatusClosed,
			Priority:       domain.TicketPriorityHigh,
			RequesterName:  "Alice",
			RequesterEmail: "alice@example.com",
			AssigneeName:   &assignee,
			CreatedAt:      created,
			UpdatedAt:      closed,
			ClosedAt:       &closed,
		},
		{
			ExternalKey:    "TCK-0000BBBB",
			Title:          "Mouse",
			Description:    "Broken",
			Status:         domain.TicketStatusOpen,
			Priority:       domain.TicketPriorityLow,
			RequesterName:  "Bob",
			RequesterEmail: "bob@example.com",
			CreatedAt:      created,
			UpdatedAt:      created,
		},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat("Excel")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	_, err = ParseFormat("pdf")
	assert.Error(t, err)

	assert.Equal(t, "tickets-2024-05-01.xlsx", FormatXLSX.FileName(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "text/csv; charset=utf-8", FormatCSV.ContentType())
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, sampleTickets()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, exportHeader, rows[0])
	assert.Equal(t, []string{
		"TCK-0000AAAA", "VPN, again", "Line one\nline two", "Closed", "High",
		"Alice", "alice@example.com", "Sam",
		"2024-05-01T08:00:00Z", "2024-05-03T08:00:00Z", "2024-05-03T08:00:00Z",
	}, rows[1])
	assert.Equal(t, "", rows[2][7])
	assert.Equal(t, "", rows[2][10])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatXLSX, sampleTickets()))

	book, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer book.Close()

	assert.Equal(t, []string{sheetName}, book.GetSheetList())
	rows, err := book.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, exportHeader, rows[0])
	assert.Equal(t, "TCK-0000AAAA", rows[1][0])
	assert.Equal(t, "Sam", rows[1][7])
	assert.Equal(t, "TCK-0000BBBB", rows[2][0])
	assert.Equal(t, "Low", rows[2][4])
}

func TestWriteEmptyExport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
