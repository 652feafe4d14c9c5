package batch

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// xlsxStore keeps the table in an Excel worksheet whose first row is the
// header. Save only touches the header row and the written columns, so
// formulas, styles and typed cells elsewhere survive.
type xlsxStore struct {
	path  string
	sheet string
}

func (s *xlsxStore) Path() string { return s.path }

func (s *xlsxStore) Load() (*Table, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet, err := s.resolveSheet(f)
	if err != nil {
		return nil, err
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	t := &Table{}
	if len(rows) > 0 {
		t.Header, t.Rows = rows[0], rows[1:]
	}
	return t, nil
}

func (s *xlsxStore) Save(t *Table) error {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet, err := s.resolveSheet(f)
	if err != nil {
		return err
	}

	for _, col := range t.Written() {
		if err := setCell(f, sheet, col, 1, t.Header[col]); err != nil {
			return err
		}
		for i := range t.Rows {
			// Data rows start below the header on sheet row 2.
			if err := setCell(f, sheet, col, i+2, t.Cell(i, col)); err != nil {
				return err
			}
		}
	}

	if err := f.Save(); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// resolveSheet returns the configured sheet, or the first one.
func (s *xlsxStore) resolveSheet(f *excelize.File) (string, error) {
	if s.sheet != "" {
		if idx, err := f.GetSheetIndex(s.sheet); err != nil || idx < 0 {
			return "", fmt.Errorf("sheet %q not found in %s", s.sheet, s.path)
		}
		return s.sheet, nil
	}
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", fmt.Errorf("workbook %s has no sheets", s.path)
	}
	return sheets[0], nil
}

func setCell(f *excelize.File, sheet string, col, row int, value string) error {
	cell, err := excelize.CoordinatesToCellName(col+1, row)
	if err != nil {
		return fmt.Errorf("invalid cell coordinates: %w", err)
	}
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		return fmt.Errorf("failed to write cell %s: %w", cell, err)
	}
	return nil
}
