// Package sheettest writes small workbooks for tests.
package sheettest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

// Sheet is a named grid of values. Values may be string, float64, int,
// bool, time.Time or nil.
type Sheet struct {
	Name string
	Rows [][]any
}

// WriteXLSX writes rows to the first sheet of a new workbook at dir/name and
// returns the full path.
func WriteXLSX(t testing.TB, dir, name string, rows [][]any) string {
	t.Helper()
	return WriteSheets(t, dir, name, Sheet{Name: "Sheet1", Rows: rows})
}

// WriteSheets writes each sheet into a new workbook at dir/name.
func WriteSheets(t testing.TB, dir, name string, sheets ...Sheet) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	if err != nil {
		t.Fatalf("new style: %v", err)
	}

	for i, sh := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sh.Name); err != nil {
				t.Fatalf("rename sheet: %v", err)
			}
		} else if _, err := f.NewSheet(sh.Name); err != nil {
			t.Fatalf("new sheet: %v", err)
		}
		for r, row := range sh.Rows {
			for c, val := range row {
				if val == nil {
					continue
				}
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					t.Fatalf("cell name: %v", err)
				}
				if err := f.SetCellValue(sh.Name, cell, val); err != nil {
					t.Fatalf("set %s: %v", cell, err)
				}
				if _, ok := val.(time.Time); ok {
					if err := f.SetCellStyle(sh.Name, cell, cell, dateStyle); err != nil {
						t.Fatalf("style %s: %v", cell, err)
					}
				}
			}
		}
	}

	path := filepath.Join(dir, name)
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save %s: %v", path, err)
	}
	return path
}

// WriteBytes writes raw content to dir/name and returns the full path.
func WriteBytes(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// ReadRows returns every row of sheet in the workbook at path, as strings.
func ReadRows(t testing.TB, path, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	rows, err := f.GetRows(sheet)
	if err != nil {
		t.Fatalf("rows %s: %v", sheet, err)
	}
	return rows
}
