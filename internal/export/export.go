// Package export renders registrations as downloadable Excel and CSV files.
package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/projectpynew-png/SFT-Number-Generator/internal/registry"
)

// Format is an export file format
type Format string

const (
	FormatExcel Format = "excel"
	FormatCSV   Format = "csv"
)

// Worksheet names of the Excel report
const (
	ApplicationsSheet = "Applications"
	SummarySheet      = "Summary"
)

var ErrUnknownFormat = errors.New("unknown export format")

// ParseFormat accepts excel, xlsx or csv in any case
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "excel", "xlsx":
		return FormatExcel, nil
	case "csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %q (valid options: excel, csv)", ErrUnknownFormat, s)
	}
}

// Export renders records in the given format
func Export(format Format, records []registry.Registration, stats registry.Statistics) ([]byte, error) {
	switch format {
	case FormatExcel:
		return Excel(records, stats)
	case FormatCSV:
		return CSV(records)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Filename returns a timestamped download name
func Filename(format Format, now time.Time) string {
	stamp := now.Format("20060102_150405")
	if format == FormatCSV {
		return fmt.Sprintf("sft_data_%s.csv", stamp)
	}
	return fmt.Sprintf("sft_report_%s.xlsx", stamp)
}

// ContentType returns the MIME type for format
func ContentType(format Format) string {
	if format == FormatCSV {
		return "text/csv"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// CSV writes a header row followed by one row per registration
func CSV(records []registry.Registration) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(registry.Header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, rec := range records {
		if err := writer.Write(row(rec)); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}
	return buf.Bytes(), nil
}

// Excel builds a workbook with an Applications sheet and a Summary sheet
func Excel(records []registry.Registration, stats registry.Statistics) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", ApplicationsSheet); err != nil {
		return nil, fmt.Errorf("failed to name worksheet: %w", err)
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return nil, fmt.Errorf("failed to add summary sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	rows := make([][]interface{}, 0, len(records)+1)
	rows = append(rows, cells(registry.Header))
	for _, rec := range records {
		rows = append(rows, []interface{}{
			rec.ApplicationName,
			rec.Description,
			rec.Number,
			rec.RegisteredAt.UTC().Format(registry.TimestampLayout),
		})
	}
	if err := writeRows(f, ApplicationsSheet, rows, bold); err != nil {
		return nil, err
	}
	_ = f.SetColWidth(ApplicationsSheet, "A", "B", 32)
	_ = f.SetColWidth(ApplicationsSheet, "C", "C", 12)
	_ = f.SetColWidth(ApplicationsSheet, "D", "D", 22)

	summary := [][]interface{}{
		{"Metric", "Value"},
		{"Total Available", stats.TotalCapacity},
		{"Used Numbers", stats.UsedCount},
		{"Remaining Numbers", stats.RemainingCount},
		{"Usage Percentage", fmt.Sprintf("%.2f%%", stats.UsagePercentage)},
	}
	if err := writeRows(f, SummarySheet, summary, bold); err != nil {
		return nil, err
	}
	_ = f.SetColWidth(SummarySheet, "A", "A", 22)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// writeRows writes rows from A1 down and styles the first one
func writeRows(f *excelize.File, sheet string, rows [][]interface{}, headerStyle int) error {
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}

	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil
	}
	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, headerStyle)
}

func row(rec registry.Registration) []string {
	return []string{
		rec.ApplicationName,
		rec.Description,
		strconv.Itoa(rec.Number),
		rec.RegisteredAt.UTC().Format(registry.TimestampLayout),
	}
}

func cells(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
