package workbook

import (
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/ryabkov82/sheetmerge/internal/apperror"
	"github.com/ryabkov82/sheetmerge/internal/config"
	"github.com/ryabkov82/sheetmerge/internal/table"
)

const (
	minColWidth = 8
	maxColWidth = 60
)

// Writer saves a table as a single-sheet .xlsx workbook.
type Writer struct {
	sheet        string
	sampleRows   int
	freezeHeader bool
}

// NewWriter returns a Writer configured from cfg.
func NewWriter(cfg config.WriterConfig) *Writer {
	return &Writer{
		sheet:        cfg.SheetName,
		sampleRows:   cfg.SampleRows,
		freezeHeader: cfg.FreezeHeader,
	}
}

// Save writes t to a temporary file next to path and renames it over path.
// On any failure the temporary file is removed and path is left as it was.
func (w *Writer) Save(t *table.Table, path string) error {
	name := filepath.Base(path)
	fail := func(err error) error {
		return apperror.NewWrite(fmt.Sprintf("cannot write %s", name), err)
	}

	if len(t.Columns) > excelize.MaxColumns {
		return fail(fmt.Errorf("%d columns exceed the sheet limit of %d", len(t.Columns), excelize.MaxColumns))
	}
	if t.Len()+1 > excelize.TotalRows {
		return fail(fmt.Errorf("%d rows exceed the sheet limit of %d", t.Len(), excelize.TotalRows-1))
	}

	f, err := w.build(t)
	if err != nil {
		return fail(err)
	}
	defer f.Close()

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+name+".*.tmp")
	if err != nil {
		return fail(fmt.Errorf("create temporary file: %w", err))
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if err := f.Write(tmp); err != nil {
		tmp.Close()
		return fail(fmt.Errorf("write temporary file: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fail(fmt.Errorf("sync temporary file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return fail(fmt.Errorf("close temporary file: %w", err))
	}
	if err := os.Chmod(tmpName, outputMode(path)); err != nil {
		return fail(fmt.Errorf("chmod temporary file: %w", err))
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fail(fmt.Errorf("replace destination: %w", err))
	}
	committed = true
	return nil
}

// outputMode keeps the permissions of an existing destination.
func outputMode(path string) os.FileMode {
	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
		return info.Mode().Perm()
	}
	return 0o644
}

func (w *Writer) build(t *table.Table) (*excelize.File, error) {
	f := excelize.NewFile()
	ok := false
	defer func() {
		if !ok {
			_ = f.Close()
		}
	}()

	if err := f.SetSheetName("Sheet1", w.sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	if err != nil {
		return nil, fmt.Errorf("date style: %w", err)
	}

	sw, err := f.NewStreamWriter(w.sheet)
	if err != nil {
		return nil, fmt.Errorf("create stream writer: %w", err)
	}

	for i, width := range w.columnWidths(t) {
		if err := sw.SetColWidth(i+1, i+1, width); err != nil {
			return nil, fmt.Errorf("column width: %w", err)
		}
	}
	if w.freezeHeader {
		if err := sw.SetPanes(&excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		}); err != nil {
			return nil, fmt.Errorf("freeze header: %w", err)
		}
	}

	headerRow := make([]any, len(t.Columns))
	for i, h := range t.Columns {
		headerRow[i] = excelize.Cell{Value: h, StyleID: headerStyle}
	}
	if err := sw.SetRow("A1", headerRow); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for r := range t.Rows {
		values := t.Values(r)
		rowData := make([]any, len(values))
		for i, c := range values {
			switch c.Kind() {
			case table.KindEmpty:
				rowData[i] = nil
			case table.KindDate:
				rowData[i] = excelize.Cell{Value: c.Time(), StyleID: dateStyle}
			default:
				rowData[i] = c.Value()
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, err
		}
		if err := sw.SetRow(cell, rowData); err != nil {
			return nil, fmt.Errorf("write row %d: %w", r+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return nil, fmt.Errorf("flush: %w", err)
	}
	ok = true
	return f, nil
}

// columnWidths sizes each column to its longest value among the header and
// the first sampleRows rows.
func (w *Writer) columnWidths(t *table.Table) []float64 {
	widths := make([]float64, len(t.Columns))
	for i, h := range t.Columns {
		widths[i] = float64(utf8.RuneCountInString(h)) + 2
	}
	for r := 0; r < len(t.Rows) && r < w.sampleRows; r++ {
		for i, c := range t.Values(r) {
			if l := float64(utf8.RuneCountInString(c.Text())) + 2; l > widths[i] {
				widths[i] = l
			}
		}
	}
	for i := range widths {
		widths[i] = min(max(widths[i], minColWidth), maxColWidth)
	}
	return widths
}
