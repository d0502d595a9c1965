// Package table holds the typed columnar tables that pipeline stages read,
// transform and write. Every operation returns a new table; inputs are never
// modified in place.
package table

import (
	"errors"
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// ErrColumnNotFound is returned when a named column does not exist.
var ErrColumnNotFound = errors.New("column not found")

// Table is an ordered set of equally long columns with unique names.
type Table struct {
	cols  []*Column
	index map[string]int
	rows  int
}

// New assembles a table, checking lengths and name uniqueness. Pending
// appends of every column are sealed.
func New(cols ...*Column) (*Table, error) {
	t := &Table{index: make(map[string]int, len(cols))}
	for i, c := range cols {
		c.data()
		if _, dup := t.index[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		if i == 0 {
			t.rows = c.Len()
		} else if c.Len() != t.rows {
			return nil, fmt.Errorf("column %q has %d rows, want %d", c.Name, c.Len(), t.rows)
		}
		t.index[c.Name] = i
		t.cols = append(t.cols, c)
	}
	return t, nil
}

// MustNew is New for builders whose columns are constructed together.
func MustNew(cols ...*Column) *Table {
	t, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) NumRows() int { return t.rows }

func (t *Table) NumCols() int { return len(t.cols) }

// Names returns the column names in order.
func (t *Table) Names() []string {
	out := make([]string, len(t.cols))
	for i, c := range t.cols {
		out[i] = c.Name
	}
	return out
}

// Columns returns the columns in order.
func (t *Table) Columns() []*Column {
	out := make([]*Column, len(t.cols))
	copy(out, t.cols)
	return out
}

func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column looks a column up by name.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.cols[i], true
}

// Col is Column with an error naming the missing column.
func (t *Table) Col(name string) (*Column, error) {
	c, ok := t.Column(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
	}
	return c, nil
}

// Select keeps the named columns in the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	cols := make([]*Column, 0, len(names))
	for _, n := range names {
		c, err := t.Col(n)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return New(cols...)
}

// Drop removes the named columns; unknown names are ignored.
func (t *Table) Drop(names ...string) *Table {
	skip := make(map[string]struct{}, len(names))
	for _, n := range names {
		skip[n] = struct{}{}
	}
	cols := make([]*Column, 0, len(t.cols))
	for _, c := range t.cols {
		if _, ok := skip[c.Name]; !ok {
			cols = append(cols, c)
		}
	}
	out := MustNew(cols...)
	out.rows = t.rows
	return out
}

// With adds columns, replacing existing ones of the same name in place.
func (t *Table) With(cols ...*Column) (*Table, error) {
	next := t.Columns()
	index := make(map[string]int, len(t.index))
	for k, v := range t.index {
		index[k] = v
	}
	for _, c := range cols {
		if len(next) > 0 && c.Len() != t.rows {
			return nil, fmt.Errorf("column %q has %d rows, want %d", c.Name, c.Len(), t.rows)
		}
		if i, ok := index[c.Name]; ok {
			next[i] = c
			continue
		}
		index[c.Name] = len(next)
		next = append(next, c)
	}
	return New(next...)
}

// Rename renames columns by the old->new map. Renaming onto an existing
// column is an error.
func (t *Table) Rename(m map[string]string) (*Table, error) {
	cols := make([]*Column, len(t.cols))
	for i, c := range t.cols {
		if to, ok := m[c.Name]; ok && to != c.Name {
			cols[i] = c.renamed(to)
			continue
		}
		cols[i] = c
	}
	return New(cols...)
}

// Take returns the rows at the given indexes, in that order.
func (t *Table) Take(idx []int) *Table {
	cols := make([]*Column, len(t.cols))
	for i, c := range t.cols {
		cols[i] = c.take(idx)
	}
	out := MustNew(cols...)
	out.rows = len(idx)
	return out
}

// Filter keeps rows for which keep returns true.
func (t *Table) Filter(keep func(row int) bool) *Table {
	b := array.NewBooleanBuilder(mem)
	defer b.Release()
	b.Reserve(t.rows)
	kept := 0
	for i := 0; i < t.rows; i++ {
		ok := keep(i)
		if ok {
			kept++
		}
		b.Append(ok)
	}
	mask := b.NewArray()
	defer mask.Release()
	cols := make([]*Column, len(t.cols))
	for i, c := range t.cols {
		cols[i] = c.filter(mask)
	}
	out := MustNew(cols...)
	out.rows = kept
	return out
}

// RowKey renders row i as a string that is equal for equal rows.
func (t *Table) RowKey(i int, names ...string) string {
	var b strings.Builder
	if len(names) == 0 {
		for j, c := range t.cols {
			if j > 0 {
				b.WriteByte(0x1f)
			}
			c.keyAt(i, &b)
		}
		return b.String()
	}
	for j, n := range names {
		if j > 0 {
			b.WriteByte(0x1f)
		}
		if c, ok := t.Column(n); ok {
			c.keyAt(i, &b)
		}
	}
	return b.String()
}

// Distinct drops exact duplicate rows, keeping the first occurrence. It
// returns the deduplicated table and the number of rows removed.
func (t *Table) Distinct() (*Table, int) {
	seen := make(map[string]struct{}, t.rows)
	idx := make([]int, 0, t.rows)
	for i := 0; i < t.rows; i++ {
		k := t.RowKey(i)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		idx = append(idx, i)
	}
	return t.Take(idx), t.rows - len(idx)
}

// Concat unions tables by column name. Columns missing from a table are
// null for its rows; the first table that carries a column fixes its kind.
func Concat(tables ...*Table) *Table {
	var (
		names []string
		kinds = map[string]Kind{}
		total int
	)
	for _, t := range tables {
		total += t.rows
		for _, c := range t.cols {
			if _, ok := kinds[c.Name]; !ok {
				kinds[c.Name] = c.Kind
				names = append(names, c.Name)
			}
		}
	}
	cols := make([]*Column, len(names))
	for i, n := range names {
		cols[i] = concatColumn(n, kinds[n], total, tables)
	}
	res := MustNew(cols...)
	res.rows = total
	return res
}

// concatColumn joins the chunks of column name with the arrow concatenate
// kernel. Chunks of another kind are converted cell by cell first.
func concatColumn(name string, kind Kind, total int, tables []*Table) *Column {
	chunks := make([]arrow.Array, 0, len(tables))
	for _, t := range tables {
		if t.rows == 0 {
			continue
		}
		src, ok := t.Column(name)
		switch {
		case !ok:
			chunks = append(chunks, array.MakeArrayOfNull(mem, kind.ArrowType(), t.rows))
		case src.Kind == kind:
			chunks = append(chunks, src.data())
		default:
			conv := NewColumn(name, kind, t.rows)
			for r := 0; r < t.rows; r++ {
				conv.AppendFrom(src, r)
			}
			chunks = append(chunks, conv.data())
		}
	}
	switch len(chunks) {
	case 0:
		return NewColumn(name, kind, 0)
	case 1:
		return &Column{Name: name, Kind: kind, arr: chunks[0]}
	}
	joined, err := array.Concatenate(chunks, mem)
	if err != nil {
		panic(fmt.Sprintf("table: concat %s over %d rows: %v", name, total, err))
	}
	return &Column{Name: name, Kind: kind, arr: joined}
}

// Record exposes t as an arrow record sharing the column arrays. The caller
// releases it.
func (t *Table) Record() arrow.Record {
	fields := make([]arrow.Field, len(t.cols))
	arrs := make([]arrow.Array, len(t.cols))
	for i, c := range t.cols {
		fields[i] = arrow.Field{Name: c.Name, Type: c.Kind.ArrowType(), Nullable: true}
		arrs[i] = c.data()
	}
	return array.NewRecord(arrow.NewSchema(fields, nil), arrs, int64(t.rows))
}

// FromArrowTable converts an arrow table, concatenating the chunks of each
// column. Shared arrays are retained, so tbl may be released afterwards.
func FromArrowTable(tbl arrow.Table) (*Table, error) {
	n := int(tbl.NumRows())
	cols := make([]*Column, 0, tbl.NumCols())
	for i := 0; i < int(tbl.NumCols()); i++ {
		f := tbl.Schema().Field(i)
		kind, err := KindOf(f.Type)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", f.Name, err)
		}
		chunks := tbl.Column(i).Data().Chunks()
		var c *Column
		switch len(chunks) {
		case 0:
			c = NewColumn(f.Name, kind, 0)
		case 1:
			if c, err = FromArrow(f.Name, chunks[0]); err != nil {
				return nil, err
			}
		default:
			joined, err := array.Concatenate(chunks, mem)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", f.Name, err)
			}
			c, err = FromArrow(f.Name, joined)
			joined.Release()
			if err != nil {
				return nil, err
			}
		}
		cols = append(cols, c)
	}
	t, err := New(cols...)
	if err != nil {
		return nil, err
	}
	t.rows = n
	return t, nil
}

// FromStrings builds a string table from a header and records. Empty cells
// are null, short records are padded and repeated header names get a
// numeric suffix.
func FromStrings(header []string, records [][]string) *Table {
	names := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := h
		if n := seen[h]; n > 0 {
			name = fmt.Sprintf("%s_%d", h, n+1)
		}
		seen[h]++
		names[i] = name
	}
	cols := make([]*Column, len(names))
	for j, n := range names {
		c := NewColumn(n, String, len(records))
		for _, rec := range records {
			if j >= len(rec) || rec[j] == "" {
				c.AppendNull()
				continue
			}
			c.AppendStr(Str(rec[j]))
		}
		cols[j] = c
	}
	t, err := New(cols...)
	if err != nil {
		// A suffixed name can still collide with a literal header.
		for j := range cols {
			cols[j] = cols[j].renamed(fmt.Sprintf("%s#%d", cols[j].Name, j))
		}
		t = MustNew(cols...)
	}
	t.rows = len(records)
	return t
}
