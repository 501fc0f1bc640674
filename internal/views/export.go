package views

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"energy-dashboard/internal/dataset"
	"energy-dashboard/internal/selection"
)

// Format is an export encoding
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

const exportSheet = "energy"

// ContentType returns the MIME type served with the format
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv; charset=utf-8"
	}
}

// ParseFormat resolves a requested format; empty means CSV
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", &UnsupportedFormatError{Format: s}
	}
}

// UnsupportedFormatError is returned for an export format other than csv or xlsx
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported export format %q", e.Format)
}

// IsTransient returns false as the set of formats is fixed
func (e *UnsupportedFormatError) IsTransient() bool {
	return false
}

// ExportArtifact is a ready-to-download file
type ExportArtifact struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Format      Format `json:"format"`
	Rows        int    `json:"rows"`
	Data        []byte `json:"-"`
}

// exportHeader is country, year and the metric key
func exportHeader(sel selection.Selection) []string {
	return []string{"country", "year", string(sel.Metric)}
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteCSV writes the time-series rows of sel as CSV: header
// country,year,<metric>, one line per row, NULL as an empty field.
// Returns the number of data rows written.
func WriteCSV(w io.Writer, table *dataset.Table, sel selection.Selection) (int, error) {
	cw := csv.NewWriter(w)

	if err := cw.Write(exportHeader(sel)); err != nil {
		return 0, fmt.Errorf("failed to write CSV header: %w", err)
	}

	rows := selectRows(table, sel)
	record := make([]string, 3)
	for _, i := range rows {
		record[0] = table.Country(i)
		record[1] = strconv.Itoa(table.Year(i))
		record[2] = ""
		if v, ok := table.Value(i, sel.Metric); ok {
			record[2] = formatValue(v)
		}
		if err := cw.Write(record); err != nil {
			return 0, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("failed to flush CSV: %w", err)
	}
	return len(rows), nil
}

// WriteXLSX writes the same rows as WriteCSV into a single-sheet workbook.
// NULL values are left as empty cells.
func WriteXLSX(w io.Writer, table *dataset.Table, sel selection.Selection) (int, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return 0, fmt.Errorf("failed to name sheet: %w", err)
	}

	for i, header := range exportHeader(sel) {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(exportSheet, cell, header); err != nil {
			return 0, fmt.Errorf("failed to write header: %w", err)
		}
	}
	if err := f.SetColWidth(exportSheet, "A", "C", 20); err != nil {
		return 0, fmt.Errorf("failed to size columns: %w", err)
	}

	rows := selectRows(table, sel)
	for n, i := range rows {
		row := n + 2
		if err := f.SetCellValue(exportSheet, fmt.Sprintf("A%d", row), table.Country(i)); err != nil {
			return 0, fmt.Errorf("failed to write row %d: %w", row, err)
		}
		if err := f.SetCellValue(exportSheet, fmt.Sprintf("B%d", row), table.Year(i)); err != nil {
			return 0, fmt.Errorf("failed to write row %d: %w", row, err)
		}
		if v, ok := table.Value(i, sel.Metric); ok {
			if err := f.SetCellValue(exportSheet, fmt.Sprintf("C%d", row), v); err != nil {
				return 0, fmt.Errorf("failed to write row %d: %w", row, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return 0, fmt.Errorf("failed to write workbook: %w", err)
	}
	return len(rows), nil
}

// ExportFilename derives the download name from the selection. The same
// selection always produces the same name, whatever order the countries
// were picked in.
func ExportFilename(sel selection.Selection, format Format) string {
	names := make([]string, 0, len(sel.Countries))
	for _, c := range sel.Countries {
		names = append(names, sanitizeFilePart(c))
	}
	sort.Strings(names)

	prefix := strings.Join(names, "_")
	if prefix == "" {
		prefix = "none"
	}
	return fmt.Sprintf("%s_%s.%s", prefix, sel.Metric, format)
}

// sanitizeFilePart keeps letters, digits, '.' and '-'; anything else becomes '-'
func sanitizeFilePart(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}

// Export serializes the selection in the requested format
func Export(table *dataset.Table, sel selection.Selection, format Format) (*ExportArtifact, error) {
	var (
		buf  bytes.Buffer
		rows int
		err  error
	)

	switch format {
	case FormatCSV:
		rows, err = WriteCSV(&buf, table, sel)
	case FormatXLSX:
		rows, err = WriteXLSX(&buf, table, sel)
	default:
		return nil, &UnsupportedFormatError{Format: string(format)}
	}
	if err != nil {
		return nil, err
	}

	return &ExportArtifact{
		Filename:    ExportFilename(sel, format),
		ContentType: format.ContentType(),
		Format:      format,
		Rows:        rows,
		Data:        buf.Bytes(),
	}, nil
}
