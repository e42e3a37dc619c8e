package workbook

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ryabkov82/sheetmerge/internal/table"
)

// builder accumulates the sheets of one workbook into a single table whose
// header is the case-insensitive union of the sheet headers.
type builder struct {
	tbl   *table.Table
	index map[string]string
}

func newBuilder(source string) *builder {
	return &builder{
		tbl:   table.New(source, nil),
		index: make(map[string]string),
	}
}

func (b *builder) canonical(name string) string {
	key := strings.ToLower(name)
	if c, ok := b.index[key]; ok {
		return c
	}
	b.index[key] = name
	b.tbl.Columns = append(b.tbl.Columns, name)
	return name
}

func (b *builder) sheet() *sheetState {
	return &sheetState{b: b, used: make(map[string]bool)}
}

// sheetState maps the column positions of one sheet to table column names.
type sheetState struct {
	b     *builder
	names []string
	used  map[string]bool
}

func (s *sheetState) hasHeader() bool {
	return s.names != nil
}

// header names every position of raw. Blank cells are named after their
// column letter, repeated names get a numeric suffix.
func (s *sheetState) header(raw []string) {
	s.names = make([]string, 0, len(raw))
	for i, h := range raw {
		s.names = append(s.names, s.unique(strings.TrimSpace(h), i))
	}
}

// column returns the table column for position i, naming positions past the
// header on first use.
func (s *sheetState) column(i int) string {
	for len(s.names) <= i {
		s.names = append(s.names, s.unique("", len(s.names)))
	}
	return s.names[i]
}

func (s *sheetState) unique(name string, pos int) string {
	if name == "" {
		letter, err := excelize.ColumnNumberToName(pos + 1)
		if err != nil {
			letter = fmt.Sprint(pos + 1)
		}
		name = "Column " + letter
	}
	candidate := name
	for n := 2; s.used[strings.ToLower(candidate)]; n++ {
		candidate = fmt.Sprintf("%s_%d", name, n)
	}
	s.used[strings.ToLower(candidate)] = true
	return s.b.canonical(candidate)
}

func (s *sheetState) add(row table.Row) {
	s.b.tbl.Rows = append(s.b.tbl.Rows, row)
}
