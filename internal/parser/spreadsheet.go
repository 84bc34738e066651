package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// LinesFromSpreadsheet reads an xlsx workbook and returns one input line per
// row, cells joined by a single space. Empty rows become blank lines, which
// Parse skips while keeping row numbers aligned with line numbers. An empty
// sheet name selects the active sheet.
func LinesFromSpreadsheet(r io.Reader, sheet string) ([]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(f.GetActiveSheetIndex())
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	lines := make([]string, len(rows))
	for i, row := range rows {
		cells := make([]string, 0, len(row))
		for _, cell := range row {
			if cell = strings.TrimSpace(cell); cell != "" {
				cells = append(cells, cell)
			}
		}
		lines[i] = strings.Join(cells, " ")
	}
	return lines, nil
}
