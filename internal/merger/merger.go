// Package merger combines loaded tables and a metadata record into one
// consolidated table. The merge is append-only: every source row becomes
// exactly one output row.
package merger

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ryabkov82/sheetmerge/internal/apperror"
	"github.com/ryabkov82/sheetmerge/internal/config"
	"github.com/ryabkov82/sheetmerge/internal/metadata"
	"github.com/ryabkov82/sheetmerge/internal/table"
)

// Result is a merged table plus what the engine did to produce it.
type Result struct {
	Table *table.Table
	// Coerced lists columns unified as text because sources disagreed on their type.
	Coerced []string
	// Similar lists column name pairs that look like typos of each other.
	Similar []SimilarPair
}

// Engine merges tables according to the configured type policy.
type Engine struct {
	policy       string
	sourceColumn string // empty when no source column is added
}

// New returns an Engine configured from cfg.
func New(cfg config.MergeConfig) *Engine {
	e := &Engine{policy: cfg.TypePolicy}
	if e.policy == "" {
		e.policy = config.PolicyText
	}
	if cfg.SourceColumn {
		e.sourceColumn = cfg.SourceColumnName
	}
	return e
}

// Merge builds the union header, appends the optional source column and the
// metadata columns, and copies every row of every table in input order.
func (e *Engine) Merge(tables []*table.Table, meta metadata.Record) (*Result, error) {
	if len(tables) == 0 {
		return nil, apperror.NewValidation("nothing to merge", nil)
	}

	h := newHeader()
	mappings := make([][]string, len(tables))
	for ti, t := range tables {
		seen := make(map[string]bool, len(t.Columns))
		mappings[ti] = make([]string, len(t.Columns))
		for ci, col := range t.Columns {
			key := strings.ToLower(col)
			if seen[key] {
				return nil, apperror.NewSchemaConflict(fmt.Sprintf("column %q appears twice in %s", col, sourceName(t)))
			}
			seen[key] = true
			if err := e.checkReserved(col, t); err != nil {
				return nil, err
			}
			mappings[ti][ci] = h.add(col)
		}
	}

	coerced, err := e.reconcile(tables, mappings, h.columns)
	if err != nil {
		return nil, err
	}

	dataColumns := len(h.columns)
	columns := append([]string(nil), h.columns...)
	if e.sourceColumn != "" {
		columns = append(columns, e.sourceColumn)
	}
	columns = append(columns, metadata.Keys...)

	merged := table.New("", columns)
	merged.Rows = make([]table.Row, 0, totalRows(tables))
	for ti, t := range tables {
		source := filepath.Base(t.Source)
		for _, row := range t.Rows {
			out := make(table.Row, len(columns))
			for _, col := range columns[:dataColumns] {
				out[col] = table.Empty
			}
			for ci, col := range t.Columns {
				c := row.Get(col)
				canonical := mappings[ti][ci]
				if coerced[canonical] {
					c = c.AsText()
				}
				out[canonical] = c
			}
			if e.sourceColumn != "" {
				out[e.sourceColumn] = table.Text(source)
			}
			for _, k := range metadata.Keys {
				out[k] = table.Text(meta.Get(k))
			}
			merged.Rows = append(merged.Rows, out)
		}
	}

	res := &Result{Table: merged, Similar: h.similar}
	for _, col := range h.columns {
		if coerced[col] {
			res.Coerced = append(res.Coerced, col)
		}
	}
	return res, nil
}

// checkReserved rejects data columns that would duplicate a column the
// engine appends itself.
func (e *Engine) checkReserved(col string, t *table.Table) error {
	if metadata.IsKey(col) {
		return apperror.NewSchemaConflict(fmt.Sprintf(
			"column %q in %s collides with the metadata column of the same name; rename it in the source file",
			col, sourceName(t)))
	}
	if e.sourceColumn != "" && strings.EqualFold(col, e.sourceColumn) {
		return apperror.NewSchemaConflict(fmt.Sprintf(
			"column %q in %s collides with the source column; rename it in the source file or set merge.source_column_name",
			col, sourceName(t)))
	}
	return nil
}

// reconcile compares the type each table declares for every union column.
// A table declares the single non-empty kind a column holds, text when it
// mixes kinds, and nothing when the column is entirely empty. Columns with
// disagreeing declarations are unified as text, or rejected under the
// strict policy.
func (e *Engine) reconcile(tables []*table.Table, mappings [][]string, columns []string) (map[string]bool, error) {
	type declaration struct {
		kind   table.Kind
		source string
	}
	decls := make(map[string][]declaration, len(columns))
	for ti, t := range tables {
		for ci, col := range t.Columns {
			kind, ok := declaredKind(t, col)
			if !ok {
				continue
			}
			canonical := mappings[ti][ci]
			decls[canonical] = append(decls[canonical], declaration{kind: kind, source: sourceName(t)})
		}
	}

	coerced := make(map[string]bool)
	for _, col := range columns {
		ds := decls[col]
		for _, d := range ds[min(1, len(ds)):] {
			if d.kind == ds[0].kind {
				continue
			}
			if e.policy == config.PolicyStrict {
				return nil, apperror.NewSchemaConflict(fmt.Sprintf(
					"column %q is %s in %s but %s in %s", col, ds[0].kind, ds[0].source, d.kind, d.source))
			}
			coerced[col] = true
			break
		}
	}
	return coerced, nil
}

func declaredKind(t *table.Table, col string) (table.Kind, bool) {
	kinds := t.ColumnKinds(col)
	switch len(kinds) {
	case 0:
		return table.KindEmpty, false
	case 1:
		for k := range kinds {
			return k, true
		}
	}
	return table.KindText, true
}

func totalRows(tables []*table.Table) int {
	n := 0
	for _, t := range tables {
		n += t.Len()
	}
	return n
}

func sourceName(t *table.Table) string {
	if t.Source == "" {
		return "an unnamed table"
	}
	return filepath.Base(t.Source)
}
