package compare

import (
	"slices"
	"sort"

	"github.com/joseph-ayodele/quote-compare/constants"
)

// Row is one extracted record keyed by column name.
type Row map[string]string

// Clone returns an independent copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table is the comparison table accumulated over a session.
// Every row holds a value for every column; columns only ever grow.
type Table struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// New returns an empty table with the given columns plus the file-name column.
func New(columns ...string) *Table {
	t := &Table{}
	t.addColumns(columns)
	t.ensureFileName()
	return t
}

// Seed builds a table from template rows, e.g. the data rows of an uploaded spreadsheet.
func Seed(columns []string, rows []Row) *Table {
	t := New(columns...)
	for _, r := range rows {
		t.Append(r, columns)
	}
	return t
}

// Append adds row to the table. New keys are added as columns after the
// existing ones: first in the order given, then the rest sorted by name.
// Existing rows are backfilled with "" for any new column.
func (t *Table) Append(row Row, order []string) {
	var fresh []string
	for _, k := range order {
		if _, ok := row[k]; ok && !t.HasColumn(k) && !slices.Contains(fresh, k) {
			fresh = append(fresh, k)
		}
	}
	var rest []string
	for k := range row {
		if !t.HasColumn(k) && !slices.Contains(fresh, k) {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	t.addColumns(append(fresh, rest...))
	t.ensureFileName()

	aligned := make(Row, len(t.Columns))
	for _, c := range t.Columns {
		aligned[c] = row[c]
	}
	t.Rows = append(t.Rows, aligned)
}

// Reset drops all rows and keeps the columns.
func (t *Table) Reset() {
	t.Rows = nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// HasColumn reports whether name is already a column.
func (t *Table) HasColumn(name string) bool {
	return slices.Contains(t.Columns, name)
}

// Value returns the cell at row i, column col.
func (t *Table) Value(i int, col string) string {
	if i < 0 || i >= len(t.Rows) {
		return ""
	}
	return t.Rows[i][col]
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	out := &Table{Columns: slices.Clone(t.Columns)}
	if t.Rows != nil {
		out.Rows = make([]Row, len(t.Rows))
		for i, r := range t.Rows {
			out.Rows[i] = r.Clone()
		}
	}
	return out
}

func (t *Table) addColumns(cols []string) {
	for _, c := range cols {
		if c == "" || t.HasColumn(c) {
			continue
		}
		t.Columns = append(t.Columns, c)
		for _, r := range t.Rows {
			r[c] = ""
		}
	}
}

func (t *Table) ensureFileName() {
	t.addColumns([]string{constants.FileNameField})
}
