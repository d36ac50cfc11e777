package extract

import (
	"bytes"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/xuri/excelize/v2"
)

// extractSheet renders every sheet as a "Sheet: <name>" header followed by its
// rows in aligned columns.
func extractSheet(data []byte) (*Result, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	var sb strings.Builder
	for _, name := range sheets {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %q: %w", name, err)
		}
		sb.WriteString("Sheet: ")
		sb.WriteString(name)
		sb.WriteByte('\n')

		tw := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
		for _, row := range rows {
			if strings.TrimSpace(strings.Join(row, "")) == "" {
				continue
			}
			fmt.Fprintln(tw, strings.Join(row, "\t"))
		}
		if err := tw.Flush(); err != nil {
			return nil, fmt.Errorf("failed to render sheet %q: %w", name, err)
		}
		sb.WriteByte('\n')
	}
	return &Result{Text: sb.String(), Format: FormatExcel, Pages: len(sheets)}, nil
}
