package export

import (
	"fmt"
	"log/slog"
	"slices"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/quote-compare/constants"
	"github.com/joseph-ayodele/quote-compare/internal/compare"
)

const (
	minColWidth = 10
	maxColWidth = 60
)

// Service renders the comparison table as an XLSX workbook.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// ColumnOrder lists export columns: the active fields, the file-name column,
// then any other table column in table order.
func ColumnOrder(table *compare.Table, fields []string) []string {
	cols := make([]string, 0, len(fields)+len(table.Columns)+1)
	for _, f := range fields {
		if !constants.IsFileNameField(f) && !slices.Contains(cols, f) {
			cols = append(cols, f)
		}
	}
	cols = append(cols, constants.FileNameField)
	for _, c := range table.Columns {
		if !slices.Contains(cols, c) {
			cols = append(cols, c)
		}
	}
	return cols
}

// WriteXLSX returns a single-sheet workbook (as bytes) with a header row and
// one row per table row.
func (s *Service) WriteXLSX(table *compare.Table, fields []string) ([]byte, error) {
	start := time.Now()
	cols := ColumnOrder(table, fields)

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("export.xlsx.close_error", "error", err)
		}
	}()

	sheet := constants.ExportSheetName
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}

	widths := make([]int, len(cols))
	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = c
		widths[i] = displayWidth(c)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("xlsx header: %w", err)
	}

	for r, row := range table.Rows {
		values := make([]any, len(cols))
		for i, c := range cols {
			v := row[c]
			values[i] = v
			widths[i] = max(widths[i], displayWidth(v))
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("xlsx row %d: %w", r+1, err)
		}
	}

	for i, w := range widths {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetColWidth(sheet, name, name, float64(min(max(w+2, minColWidth), maxColWidth)))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", table.Len(),
		"columns", len(cols),
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// displayWidth approximates the rendered width; wide (CJK) runes count double.
func displayWidth(s string) int {
	w := 0
	for _, r := range s {
		if utf8.RuneLen(r) > 2 {
			w += 2
		} else {
			w++
		}
	}
	return w
}
