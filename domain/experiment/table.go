package experiment

import (
	"fmt"

	"abtest/domain/core"
)

// Table is an ordered, immutable-by-convention collection of rows read from
// a tabular source. Cells are kept as text; components parse the columns
// they need and report schema errors themselves.
type Table struct {
	columns []string
	rows    [][]string
	index   map[string]int
}

// NewTable builds a table from a header and rows. Rows shorter than the
// header are padded with empty cells; longer rows are rejected.
func NewTable(columns []string, rows [][]string) (*Table, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := index[c]; dup {
			return nil, fmt.Errorf("duplicate column %q", c)
		}
		index[c] = i
	}

	copied := make([][]string, len(rows))
	for i, row := range rows {
		if len(row) > len(columns) {
			return nil, fmt.Errorf("row %d has %d fields, header has %d", i+1, len(row), len(columns))
		}
		r := make([]string, len(columns))
		copy(r, row)
		copied[i] = r
	}

	return &Table{
		columns: append([]string(nil), columns...),
		rows:    copied,
		index:   index,
	}, nil
}

// Columns returns a copy of the header
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// Len returns the number of data rows
func (t *Table) Len() int {
	return len(t.rows)
}

// HasColumn reports whether the header declares name
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// ColumnIndex resolves a column name, failing with a schema error
func (t *Table) ColumnIndex(name string) (int, error) {
	i, ok := t.index[name]
	if !ok {
		return -1, core.NewMissingColumnError(name)
	}
	return i, nil
}

// Row returns a copy of row i
func (t *Table) Row(i int) []string {
	return append([]string(nil), t.rows[i]...)
}

// Cell returns the value at row i, column col
func (t *Table) Cell(i, col int) string {
	return t.rows[i][col]
}

// Records returns a deep copy of all rows
func (t *Table) Records() [][]string {
	out := make([][]string, len(t.rows))
	for i := range t.rows {
		out[i] = t.Row(i)
	}
	return out
}

// Column returns a copy of every value in the named column
func (t *Table) Column(name string) ([]string, error) {
	col, err := t.ColumnIndex(name)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[col]
	}
	return out, nil
}

// Filter returns a new table holding the rows for which keep returns true.
// Row slices are shared with the receiver, which is safe because tables are
// never mutated after construction.
func (t *Table) Filter(keep func(i int) bool) *Table {
	rows := make([][]string, 0, len(t.rows))
	for i, row := range t.rows {
		if keep(i) {
			rows = append(rows, row)
		}
	}
	return &Table{columns: t.columns, rows: rows, index: t.index}
}

// WithColumns returns a new table with the given columns appended. Every
// value slice must have Len() entries and names must not already exist.
func (t *Table) WithColumns(names []string, values [][]string) (*Table, error) {
	if len(names) != len(values) {
		return nil, fmt.Errorf("%d column names for %d value slices", len(names), len(values))
	}

	columns := append(t.Columns(), names...)
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := index[c]; dup {
			return nil, fmt.Errorf("duplicate column %q", c)
		}
		index[c] = i
	}
	for j, v := range values {
		if len(v) != len(t.rows) {
			return nil, fmt.Errorf("column %q has %d values, table has %d rows", names[j], len(v), len(t.rows))
		}
	}

	rows := make([][]string, len(t.rows))
	for i, row := range t.rows {
		r := make([]string, 0, len(columns))
		r = append(r, row...)
		for _, v := range values {
			r = append(r, v[i])
		}
		rows[i] = r
	}

	return &Table{columns: columns, rows: rows, index: index}, nil
}

// Fingerprint hashes header and rows in order
func (t *Table) Fingerprint() core.Hash {
	return core.HashRecords(t.columns, t.rows)
}
