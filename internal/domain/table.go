package domain

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrDuplicateColumn is returned when a column name is added twice.
	ErrDuplicateColumn = errors.New("duplicate column")
	// ErrLengthMismatch is returned when a column's length differs from the table's.
	ErrLengthMismatch = errors.New("column length mismatch")
)

// Column is a named, unit-labelled sequence of values.
type Column struct {
	Name   string
	Unit   Unit
	Values []Value
}

func (c *Column) clone() *Column {
	vals := make([]Value, len(c.Values))
	copy(vals, c.Values)
	return &Column{Name: c.Name, Unit: c.Unit, Values: vals}
}

// Table is a column-oriented mission record table. All columns have the
// same length; rows are addressed by index.
type Table struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// NewTable returns an empty table with n rows and no columns.
func NewTable(n int) *Table {
	return &Table{index: make(map[string]int), rows: n}
}

// NewTableFromRows builds a table from a header and row-major records.
// Short records are padded with missing values.
func NewTableFromRows(header []string, rows [][]Value) (*Table, error) {
	t := NewTable(len(rows))
	for j, name := range header {
		vals := make([]Value, len(rows))
		for i, r := range rows {
			if j < len(r) {
				vals[i] = r[j]
			}
		}
		if err := t.AddColumn(&Column{Name: name, Unit: NativeUnitFor(name), Values: vals}); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Len returns the number of rows.
func (t *Table) Len() int { return t.rows }

// Width returns the number of columns.
func (t *Table) Width() int { return len(t.columns) }

// Columns returns the columns in order. The slice is shared with the table.
func (t *Table) Columns() []*Column { return t.columns }

// Names returns the column names in order.
func (t *Table) Names() []string {
	out := make([]string, len(t.columns))
	for i, c := range t.columns {
		out[i] = c.Name
	}
	return out
}

// Column looks up a column by name.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

// Has reports whether the table holds a column called name.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// AddColumn appends c. Its length must match the table's row count.
func (t *Table) AddColumn(c *Column) error {
	if _, ok := t.index[c.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateColumn, c.Name)
	}
	if len(c.Values) != t.rows {
		return fmt.Errorf("%w: %s has %d values, table has %d rows", ErrLengthMismatch, c.Name, len(c.Values), t.rows)
	}
	t.index[c.Name] = len(t.columns)
	t.columns = append(t.columns, c)
	return nil
}

// renameColumn changes a column's name in place.
func (t *Table) renameColumn(from, to string) {
	i := t.index[from]
	delete(t.index, from)
	t.columns[i].Name = to
	t.index[to] = i
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := NewTable(t.rows)
	for _, c := range t.columns {
		out.index[c.Name] = len(out.columns)
		out.columns = append(out.columns, c.clone())
	}
	return out
}

// Row returns the values of row i in column order.
func (t *Table) Row(i int) []Value {
	out := make([]Value, len(t.columns))
	for j, c := range t.columns {
		out[j] = c.Values[i]
	}
	return out
}

// RowEmpty reports whether every value of row i is missing.
func (t *Table) RowEmpty(i int) bool {
	for _, c := range t.columns {
		if !c.Values[i].IsMissing() {
			return false
		}
	}
	return true
}

// Select returns a new table holding the rows at idx, in that order.
func (t *Table) Select(idx []int) *Table {
	out := NewTable(len(idx))
	for _, c := range t.columns {
		vals := make([]Value, len(idx))
		for k, i := range idx {
			vals[k] = c.Values[i]
		}
		out.index[c.Name] = len(out.columns)
		out.columns = append(out.columns, &Column{Name: c.Name, Unit: c.Unit, Values: vals})
	}
	return out
}

// DropEmptyRows returns a table without the rows whose values are all
// missing, and the number of rows removed.
func (t *Table) DropEmptyRows() (*Table, int) {
	keep := make([]int, 0, t.rows)
	for i := 0; i < t.rows; i++ {
		if !t.RowEmpty(i) {
			keep = append(keep, i)
		}
	}
	if len(keep) == t.rows {
		return t, 0
	}
	return t.Select(keep), t.rows - len(keep)
}

// SortByTime returns a table whose rows are stably ordered by the timestamp
// column name. Rows with a missing timestamp keep their relative order and
// sort after all timestamped rows.
func (t *Table) SortByTime(name string) *Table {
	c, ok := t.Column(name)
	if !ok {
		return t
	}
	idx := make([]int, t.rows)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ta, oka := c.Values[idx[a]].TimeValue()
		tb, okb := c.Values[idx[b]].TimeValue()
		switch {
		case oka && okb:
			return ta.Before(tb)
		case oka:
			return true
		default:
			return false
		}
	})
	return t.Select(idx)
}

// Concat stacks tables vertically. The result holds the union of all
// column names in first-seen order; a table lacking a column contributes
// missing values for it. A column's unit is taken from the first table that
// labels it.
func Concat(tables ...*Table) *Table {
	total := 0
	var order []string
	units := map[string]Unit{}
	seen := map[string]bool{}
	for _, t := range tables {
		total += t.rows
		for _, c := range t.columns {
			if !seen[c.Name] {
				seen[c.Name] = true
				order = append(order, c.Name)
			}
			if units[c.Name] == UnitNone {
				units[c.Name] = c.Unit
			}
		}
	}

	out := NewTable(total)
	for _, name := range order {
		vals := make([]Value, 0, total)
		for _, t := range tables {
			if c, ok := t.Column(name); ok {
				vals = append(vals, c.Values...)
				continue
			}
			vals = append(vals, make([]Value, t.rows)...)
		}
		out.index[name] = len(out.columns)
		out.columns = append(out.columns, &Column{Name: name, Unit: units[name], Values: vals})
	}
	return out
}

// Sample returns a representative subset of at most n rows: the first,
// middle and last n/3 rows. Tables with n rows or fewer are cloned whole.
func Sample(t *Table, n int) *Table {
	if n <= 0 || t.rows <= n {
		return t.Clone()
	}
	part := n / 3
	if part == 0 {
		// Too few rows for three windows: keep the first, then the last.
		idx := []int{0}
		if n == 2 {
			idx = append(idx, t.rows-1)
		}
		return t.Select(idx)
	}
	mid := t.rows / 3

	picked := make(map[int]bool, n)
	add := func(from, to int) {
		for i := max(from, 0); i < min(to, t.rows); i++ {
			picked[i] = true
		}
	}
	add(0, part)
	add(mid, mid+part)
	add(t.rows-part, t.rows)

	idx := make([]int, 0, len(picked))
	for i := range picked {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return t.Select(idx)
}
