// Package table holds the in-memory form of a loaded or merged spreadsheet:
// an ordered header and ordered rows of typed cells.
package table

// Row maps a column name to its cell. Absent columns read as Empty.
type Row map[string]Cell

// Get returns the cell for column, or Empty.
func (r Row) Get(column string) Cell {
	if c, ok := r[column]; ok {
		return c
	}
	return Empty
}

// Table is a header plus rows. Tables are not modified after they are built.
type Table struct {
	Columns []string
	Rows    []Row
	// Source is the path the table was loaded from; empty for merged tables.
	Source string
}

// New returns an empty table with a copy of columns as its header.
func New(source string, columns []string) *Table {
	return &Table{
		Columns: append([]string(nil), columns...),
		Source:  source,
	}
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Values returns row i as a slice ordered by the header.
func (t *Table) Values(i int) []Cell {
	row := t.Rows[i]
	out := make([]Cell, len(t.Columns))
	for j, c := range t.Columns {
		out[j] = row.Get(c)
	}
	return out
}

// ColumnKinds returns the set of non-empty kinds found in column.
func (t *Table) ColumnKinds(column string) map[Kind]struct{} {
	kinds := make(map[Kind]struct{})
	for _, row := range t.Rows {
		if c := row.Get(column); !c.IsEmpty() {
			kinds[c.Kind()] = struct{}{}
		}
	}
	return kinds
}
