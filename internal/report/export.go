package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/spec-kit/support-desk/internal/domain"
)

// Format is an export file type.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat defaults to CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX, "excel":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// FileName returns a dated download name.
func (f Format) FileName(now time.Time) string {
	return fmt.Sprintf("tickets-%s.%s", now.Format("2006-01-02"), f)
}

const sheetName = "Tickets"

var exportHeader = []string{
	"Ticket", "Title", "Description", "Status", "Priority",
	"Requester", "Requester Email", "Assignee", "Created At", "Updated At", "Closed At",
}

func exportRow(t domain.Ticket) []string {
	assignee := ""
	if t.AssigneeName != nil {
		assignee = *t.AssigneeName
	}
	closed := ""
	if t.ClosedAt != nil {
		closed = t.ClosedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		t.ExternalKey,
		t.Title,
		t.Description,
		string(t.Status),
		string(t.Priority),
		t.RequesterName,
		t.RequesterEmail,
		assignee,
		t.CreatedAt.UTC().Format(time.RFC3339),
		t.UpdatedAt.UTC().Format(time.RFC3339),
		closed,
	}
}

// Write renders tickets in format f.
func Write(w io.Writer, f Format, tickets []domain.Ticket) error {
	if f == FormatXLSX {
		return WriteXLSX(w, tickets)
	}
	return WriteCSV(w, tickets)
}

// WriteCSV writes a header row followed by one row per ticket.
func WriteCSV(w io.Writer, tickets []domain.Ticket) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, t := range tickets {
		if err := cw.Write(exportRow(t)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes a single-sheet workbook with a bold header row.
func WriteXLSX(w io.Writer, tickets []domain.Ticket) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}
	if err := setRow(f, 1, exportHeader); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetRowStyle(sheetName, 1, 1, bold); err != nil {
		return err
	}
	for i, t := range tickets {
		if err := setRow(f, i+2, exportRow(t)); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(sheetName, "A", "K", 20); err != nil {
		return err
	}
	return f.Write(w)
}

func setRow(f *excelize.File, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return f.SetSheetRow(sheetName, cell, &cells)
}
