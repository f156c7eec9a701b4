// Package reporting renders tabular data as XLSX workbooks for staff export.
package reporting

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

type Column struct {
	Header string
	Width  float64
}

// Sheet is one worksheet. Each row must have one value per column; nil
// values leave the cell empty.
type Sheet struct {
	Name    string
	Columns []Column
	Rows    [][]any
}

// Workbook writes the sheets, in order, into a single XLSX file.
func Workbook(sheets ...Sheet) (*bytes.Buffer, error) {
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook needs at least one sheet")
	}

	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for i, s := range sheets {
		idx, err := f.NewSheet(s.Name)
		if err != nil {
			return nil, fmt.Errorf("create sheet %q: %w", s.Name, err)
		}
		if i == 0 {
			f.SetActiveSheet(idx)
		}
		if err := writeSheet(f, s, header); err != nil {
			return nil, fmt.Errorf("sheet %q: %w", s.Name, err)
		}
	}

	if sheets[0].Name != "Sheet1" {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return nil, fmt.Errorf("drop default sheet: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf, nil
}

func writeSheet(f *excelize.File, s Sheet, headerStyle int) error {
	for c, col := range s.Columns {
		cell, err := excelize.CoordinatesToCellName(c+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(s.Name, cell, col.Header); err != nil {
			return err
		}
		if err := f.SetCellStyle(s.Name, cell, cell, headerStyle); err != nil {
			return err
		}
		if col.Width > 0 {
			name, err := excelize.ColumnNumberToName(c + 1)
			if err != nil {
				return err
			}
			if err := f.SetColWidth(s.Name, name, name, col.Width); err != nil {
				return err
			}
		}
	}

	for r, row := range s.Rows {
		if len(row) != len(s.Columns) {
			return fmt.Errorf("row %d has %d values, want %d", r+1, len(row), len(s.Columns))
		}
		for c, v := range row {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(s.Name, cell, v); err != nil {
				return err
			}
		}
	}

	if len(s.Columns) > 0 {
		if err := f.SetPanes(s.Name, &excelize.Panes{
			Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
		}); err != nil {
			return err
		}
	}
	return nil
}
