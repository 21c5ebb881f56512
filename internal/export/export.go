// Package export renders the attendance log as CSV or XLSX
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"dawam/internal/models"

	"github.com/xuri/excelize/v2"
)

// Header is the column row of every export
var Header = []string{"ID", "User", "Type", "Time", "Date", "Lat", "Lng"}

const (
	sheetName = "Attendance"
	utf8BOM   = "\ufeff"
)

// Format is an export file type
type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
)

// ParseFormat defaults to CSV
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", CSV:
		return CSV, nil
	case XLSX:
		return XLSX, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// ContentType returns the MIME type of the format
func (f Format) ContentType() string {
	if f == XLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// FileName names an export taken on the given day
func (f Format) FileName(day string) string {
	return "attendance_" + day + "." + string(f)
}

// Rows turns records into table rows; users missing from the directory show as Unknown
func Rows(records []models.AttendanceRecord, users []models.User, loc *time.Location) [][]string {
	if loc == nil {
		loc = time.UTC
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.FullName
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		name, ok := names[r.UserID]
		if !ok {
			name = "Unknown"
		}
		rows = append(rows, []string{
			r.ID,
			name,
			string(r.Kind),
			r.Timestamp.In(loc).Format(time.RFC3339),
			r.Date,
			strconv.FormatFloat(r.Location.Latitude, 'f', -1, 64),
			strconv.FormatFloat(r.Location.Longitude, 'f', -1, 64),
		})
	}
	return rows
}

// Write renders rows in the given format
func Write(w io.Writer, format Format, rows [][]string) error {
	if format == XLSX {
		return WriteXLSX(w, rows)
	}
	return WriteCSV(w, rows)
}

// WriteCSV writes a UTF-8 CSV with a byte order mark so spreadsheet apps detect the encoding
func WriteCSV(w io.Writer, rows [][]string) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

// WriteXLSX writes a single-sheet workbook with a bold header row
func WriteXLSX(w io.Writer, rows [][]string) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	if err := setRow(f, 1, Header); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheetName, 1, 1, bold); err != nil {
		return err
	}
	for i, row := range rows {
		if err := setRow(f, i+2, row); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(sheetName, "A", "A", 38); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetName, "B", "D", 24); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write xlsx: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, n int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return f.SetSheetRow(sheetName, cell, &cells)
}
