package mockapi

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/oscarka/underwritingsystem2/pkg/types"
)

const xlsxType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// exportWorkbook renders rows as a single-sheet workbook with a header row.
func exportWorkbook(columns []string, rows []types.Record) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}
	for i, r := range rows {
		cells := make([]any, len(columns))
		for j, c := range columns {
			cells[j] = cellValue(r[c])
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return nil, err
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func cellValue(v any) any {
	switch v := v.(type) {
	case nil:
		return ""
	case string, bool, int, int64, float64:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// readWorkbook parses the first sheet; the first row names the columns.
// Blank rows are skipped.
func readWorkbook(r io.Reader) ([]types.Record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("not an xlsx workbook: %w", err)
	}
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("workbook is empty")
	}
	header := rows[0]
	var out []types.Record
	for _, row := range rows[1:] {
		rec := types.Record{}
		blank := true
		for i, col := range header {
			col = strings.TrimSpace(col)
			if col == "" || i >= len(row) {
				continue
			}
			if v := strings.TrimSpace(row[i]); v != "" {
				rec[col] = v
				blank = false
			}
		}
		if !blank {
			out = append(out, rec)
		}
	}
	return out, nil
}
