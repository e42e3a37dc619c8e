// Package workbook loads spreadsheet files into tables and writes merged
// tables back out as a single workbook.
package workbook

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/ryabkov82/sheetmerge/internal/apperror"
	"github.com/ryabkov82/sheetmerge/internal/config"
	"github.com/ryabkov82/sheetmerge/internal/table"
)

var compoundSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// Reader loads one workbook into a table.
type Reader struct {
	sheet string
}

// NewReader returns a Reader. When cfg.Sheet is set only that sheet is read,
// otherwise every sheet contributes rows.
func NewReader(cfg config.ReaderConfig) *Reader {
	return &Reader{sheet: cfg.Sheet}
}

// Load reads path into a table. The first non-empty row of each sheet is its
// header; fully blank rows are skipped. It fails with a ReadError when the
// file is corrupt, encrypted, lacks the designated sheet or has no data rows.
func (r *Reader) Load(path string) (*table.Table, error) {
	name := filepath.Base(path)

	var (
		tbl *table.Table
		err error
	)
	if strings.EqualFold(filepath.Ext(path), ".xls") {
		tbl, err = r.loadLegacy(path)
	} else {
		tbl, err = r.loadOOXML(path)
	}
	if err != nil {
		return nil, err
	}
	if tbl.Len() == 0 {
		return nil, apperror.NewRead(fmt.Sprintf("%s has no data rows", name), nil)
	}
	return tbl, nil
}

func (r *Reader) loadOOXML(path string) (*table.Table, error) {
	name := filepath.Base(path)

	encrypted, err := isCompoundFile(path)
	if err != nil {
		return nil, apperror.NewRead(fmt.Sprintf("cannot read %s", name), err)
	}
	if encrypted {
		return nil, apperror.NewRead(fmt.Sprintf("%s is encrypted", name), nil)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperror.NewRead(fmt.Sprintf("%s is corrupt or unreadable", name), err)
	}
	defer f.Close()

	sheets, err := r.selectSheets(f.GetSheetList())
	if err != nil {
		return nil, apperror.NewRead(fmt.Sprintf("%s: %v", name, err), nil)
	}

	l := &sheetLoader{f: f, dateStyles: make(map[int]bool)}
	b := newBuilder(path)
	for _, sheet := range sheets {
		if err := l.load(sheet, b.sheet()); err != nil {
			return nil, apperror.NewRead(fmt.Sprintf("%s is corrupt or unreadable", name), err)
		}
	}
	return b.tbl, nil
}

func (r *Reader) selectSheets(all []string) ([]string, error) {
	if r.sheet == "" {
		return all, nil
	}
	for _, s := range all {
		if strings.EqualFold(s, r.sheet) {
			return []string{s}, nil
		}
	}
	return nil, fmt.Errorf("sheet %q not found", r.sheet)
}

// isCompoundFile reports whether path is an OLE2 container. Encrypted OOXML
// workbooks are stored that way.
func isCompoundFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	head := make([]byte, len(compoundSignature))
	if _, err := io.ReadFull(f, head); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return false, nil
		}
		return false, err
	}
	return bytes.Equal(head, compoundSignature), nil
}

// sheetLoader converts excelize rows into typed cells. dateStyles caches
// whether a style ID carries a date number format.
type sheetLoader struct {
	f          *excelize.File
	dateStyles map[int]bool
}

func (l *sheetLoader) load(sheet string, s *sheetState) error {
	rows, err := l.f.Rows(sheet)
	if err != nil {
		return fmt.Errorf("open sheet %s: %w", sheet, err)
	}
	defer rows.Close()

	rowNum := 0
	for rows.Next() {
		rowNum++
		raw, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return fmt.Errorf("sheet %s row %d: %w", sheet, rowNum, err)
		}
		if isBlank(raw) {
			continue
		}
		if !s.hasHeader() {
			s.header(raw)
			continue
		}

		row := make(table.Row, len(raw))
		for i, val := range raw {
			if val == "" {
				continue
			}
			ref, err := excelize.CoordinatesToCellName(i+1, rowNum)
			if err != nil {
				return err
			}
			row[s.column(i)] = l.cell(sheet, ref, val)
		}
		s.add(row)
	}
	return rows.Error()
}

func (l *sheetLoader) cell(sheet, ref, raw string) table.Cell {
	valType, err := l.f.GetCellType(sheet, ref)
	if err != nil {
		return table.Text(raw)
	}

	switch valType {
	case excelize.CellTypeBool:
		return table.Bool(raw == "1" || strings.EqualFold(raw, "true"))
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeError:
		return table.Text(raw)
	case excelize.CellTypeDate:
		if t, ok := parseISODate(raw); ok {
			return table.Date(t)
		}
		return table.Text(raw)
	case excelize.CellTypeFormula:
		// t="str" without a formula is how stream writers store plain strings
		if formula, _ := l.f.GetCellFormula(sheet, ref); formula == "" {
			return table.Text(raw)
		}
	}

	// numbers, formula results and untyped cells
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return table.Text(raw)
	}
	if l.isDateCell(sheet, ref) {
		if t, err := excelize.ExcelDateToTime(n, false); err == nil {
			return table.Date(t)
		}
	}
	return table.Number(n)
}

func (l *sheetLoader) isDateCell(sheet, ref string) bool {
	styleID, err := l.f.GetCellStyle(sheet, ref)
	if err != nil || styleID == 0 {
		return false
	}
	if cached, ok := l.dateStyles[styleID]; ok {
		return cached
	}
	isDate := false
	if style, err := l.f.GetStyle(styleID); err == nil && style != nil {
		isDate = isDateFormat(style.NumFmt) ||
			(style.CustomNumFmt != nil && isDateFormatCode(*style.CustomNumFmt))
	}
	l.dateStyles[styleID] = isDate
	return isDate
}

// loadLegacy reads a BIFF (.xls) workbook. The format only exposes display
// strings, so cell kinds are inferred from the text.
func (r *Reader) loadLegacy(path string) (tbl *table.Table, err error) {
	name := filepath.Base(path)
	defer func() {
		if rec := recover(); rec != nil {
			tbl = nil
			err = apperror.NewRead(fmt.Sprintf("%s is corrupt or unreadable", name), fmt.Errorf("xls: %v", rec))
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		return nil, apperror.NewRead(fmt.Sprintf("cannot read %s", name), err)
	}
	defer f.Close()

	wb, err := xls.OpenReader(f, "utf-8")
	if err == nil && wb == nil {
		err = errors.New("no Workbook stream")
	}
	if err != nil {
		return nil, apperror.NewRead(fmt.Sprintf("%s is corrupt or unreadable", name), err)
	}

	b := newBuilder(path)
	found := r.sheet == ""
	for i := 0; i < wb.NumSheets(); i++ {
		sheet := wb.GetSheet(i)
		if sheet == nil {
			continue
		}
		if r.sheet != "" {
			if !strings.EqualFold(sheet.Name, r.sheet) {
				continue
			}
			found = true
		}

		s := b.sheet()
		for ri := 0; ri <= int(sheet.MaxRow); ri++ {
			xr := legacyRow(sheet, ri)
			if xr == nil {
				continue
			}
			raw := make([]string, xr.LastCol())
			for c := xr.FirstCol(); c < xr.LastCol(); c++ {
				raw[c] = xr.Col(c)
			}
			if isBlank(raw) {
				continue
			}
			if !s.hasHeader() {
				s.header(raw)
				continue
			}
			row := make(table.Row, len(raw))
			for c, val := range raw {
				if val == "" {
					continue
				}
				row[s.column(c)] = inferCell(val)
			}
			s.add(row)
		}
	}
	if !found {
		return nil, apperror.NewRead(fmt.Sprintf("%s: sheet %q not found", name, r.sheet), nil)
	}
	return b.tbl, nil
}

// legacyRow returns row i, or nil when the sheet holds no record for it.
// WorkSheet.Row dereferences missing rows.
func legacyRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}

// inferCell types a display string: numbers, TRUE/FALSE and ISO dates are
// recognised, everything else stays text.
func inferCell(s string) table.Cell {
	trimmed := strings.TrimSpace(s)
	if n, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return table.Number(n)
	}
	switch strings.ToUpper(trimmed) {
	case "TRUE":
		return table.Bool(true)
	case "FALSE":
		return table.Bool(false)
	}
	if t, ok := parseISODate(trimmed); ok {
		return table.Date(t)
	}
	return table.Text(s)
}

var isoLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", time.DateTime, time.DateOnly}

func parseISODate(s string) (time.Time, bool) {
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func isBlank(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
