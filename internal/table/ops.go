package table

import (
	"cmp"
	"fmt"
	"slices"
)

// AggOp is a grouped reduction.
type AggOp uint8

const (
	// OpSum adds the valid cells of a numeric column. A group without a
	// valid cell sums to null.
	OpSum AggOp = iota
	// OpCount counts the rows of a group.
	OpCount
	// OpFirst keeps the first cell of a group, null or not.
	OpFirst
	// OpFirstValid keeps the first valid cell of a group.
	OpFirstValid
)

// Aggregation reduces one column of each group into an output column.
type Aggregation struct {
	Op     AggOp
	Column string
	Name   string
}

// Sum adds col per group.
func Sum(col string) Aggregation { return Aggregation{Op: OpSum, Column: col, Name: col} }

// Count counts rows per group into a column named "count".
func Count() Aggregation { return Aggregation{Op: OpCount, Name: "count"} }

// First keeps the first cell of col per group.
func First(col string) Aggregation { return Aggregation{Op: OpFirst, Column: col, Name: col} }

// FirstValid keeps the first non-null cell of col per group.
func FirstValid(col string) Aggregation {
	return Aggregation{Op: OpFirstValid, Column: col, Name: col}
}

// As renames the output column.
func (a Aggregation) As(name string) Aggregation {
	a.Name = name
	return a
}

// Grouped is a table partitioned by key columns.
type Grouped struct {
	t      *Table
	keys   []string
	groups [][]int
	err    error
}

// GroupBy partitions rows by the key columns, in order of first
// appearance. Rows with a null key belong to no group.
func (t *Table) GroupBy(keys ...string) *Grouped {
	g := &Grouped{t: t, keys: keys}
	cols := make([]*Column, len(keys))
	for i, k := range keys {
		c, err := t.Col(k)
		if err != nil {
			g.err = err
			return g
		}
		cols[i] = c
	}
	at := map[string]int{}
rows:
	for r := 0; r < t.rows; r++ {
		for _, c := range cols {
			if c.IsNull(r) {
				continue rows
			}
		}
		k := t.RowKey(r, keys...)
		i, ok := at[k]
		if !ok {
			i = len(g.groups)
			at[k] = i
			g.groups = append(g.groups, nil)
		}
		g.groups[i] = append(g.groups[i], r)
	}
	return g
}

// Len is the number of groups.
func (g *Grouped) Len() int { return len(g.groups) }

// Rows returns the row indexes of group i in table order.
func (g *Grouped) Rows(i int) []int { return g.groups[i] }

// Agg returns one row per group: the key columns followed by one column
// per aggregation.
func (g *Grouped) Agg(aggs ...Aggregation) (*Table, error) {
	if g.err != nil {
		return nil, g.err
	}
	first := make([]int, len(g.groups))
	for i, rows := range g.groups {
		first[i] = rows[0]
	}
	cols := make([]*Column, 0, len(g.keys)+len(aggs))
	for _, k := range g.keys {
		c, _ := g.t.Column(k)
		cols = append(cols, c.take(first))
	}
	for _, a := range aggs {
		c, err := g.reduce(a, first)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	out, err := New(cols...)
	if err != nil {
		return nil, err
	}
	out.rows = len(g.groups)
	return out, nil
}

func (g *Grouped) reduce(a Aggregation, first []int) (*Column, error) {
	if a.Op == OpCount {
		c := NewColumn(a.Name, Int64, len(g.groups))
		for _, rows := range g.groups {
			c.AppendInt(Int(int64(len(rows))))
		}
		return c, nil
	}
	src, err := g.t.Col(a.Column)
	if err != nil {
		return nil, err
	}
	switch a.Op {
	case OpFirst:
		return src.take(first).renamed(a.Name), nil
	case OpFirstValid:
		idx := make([]int, len(g.groups))
		for i, rows := range g.groups {
			idx[i] = -1
			for _, r := range rows {
				if !src.IsNull(r) {
					idx[i] = r
					break
				}
			}
		}
		return src.take(idx).renamed(a.Name), nil
	case OpSum:
		return sumGroups(a.Name, src, g.groups)
	default:
		return nil, fmt.Errorf("unknown aggregation %d", a.Op)
	}
}

func sumGroups(name string, src *Column, groups [][]int) (*Column, error) {
	switch src.Kind {
	case Int64:
		c := NewColumn(name, Int64, len(groups))
		for _, rows := range groups {
			var s NullInt
			for _, r := range rows {
				if v := src.Int(r); v.Valid {
					s = Int(s.V + v.V)
				}
			}
			c.AppendInt(s)
		}
		return c, nil
	case Float64:
		c := NewColumn(name, Float64, len(groups))
		for _, rows := range groups {
			var s NullFloat
			for _, r := range rows {
				if v := src.Float(r); v.Valid {
					s = Float(s.V + v.V)
				}
			}
			c.AppendFloat(s)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("cannot sum %s column %q", src.Kind, src.Name)
	}
}

// JoinType selects which left rows a join keeps.
type JoinType uint8

const (
	// InnerJoin keeps left rows with at least one match.
	InnerJoin JoinType = iota
	// LeftJoin keeps every left row; unmatched rows get null right columns.
	LeftJoin
)

// JoinOptions configures Join.
type JoinOptions struct {
	Type JoinType
	// On names the key columns, present under the same name on both sides.
	On []string
}

// Join matches rows of t and right on equal keys. The result holds the
// columns of t followed by the non-key columns of right. Left order is
// kept; a left row with several matches repeats in right order. Null keys
// never match.
func (t *Table) Join(right *Table, o JoinOptions) (*Table, error) {
	if len(o.On) == 0 {
		return nil, fmt.Errorf("join without keys")
	}
	isKey := map[string]bool{}
	for _, k := range o.On {
		if !t.Has(k) || !right.Has(k) {
			return nil, fmt.Errorf("%w: join key %s", ErrColumnNotFound, k)
		}
		isKey[k] = true
	}
	for _, c := range right.cols {
		if !isKey[c.Name] && t.Has(c.Name) {
			return nil, fmt.Errorf("join: column %q on both sides", c.Name)
		}
	}

	matches := map[string][]int{}
	for r := 0; r < right.rows; r++ {
		if right.nullKey(r, o.On) {
			continue
		}
		k := right.RowKey(r, o.On...)
		matches[k] = append(matches[k], r)
	}
	var li, ri []int
	for l := 0; l < t.rows; l++ {
		var m []int
		if !t.nullKey(l, o.On) {
			m = matches[t.RowKey(l, o.On...)]
		}
		if len(m) == 0 {
			if o.Type == LeftJoin {
				li, ri = append(li, l), append(ri, -1)
			}
			continue
		}
		for _, r := range m {
			li, ri = append(li, l), append(ri, r)
		}
	}

	cols := make([]*Column, 0, len(t.cols)+len(right.cols))
	for _, c := range t.cols {
		cols = append(cols, c.take(li))
	}
	for _, c := range right.cols {
		if !isKey[c.Name] {
			cols = append(cols, c.take(ri))
		}
	}
	out, err := New(cols...)
	if err != nil {
		return nil, err
	}
	out.rows = len(li)
	return out, nil
}

func (t *Table) nullKey(r int, keys []string) bool {
	for _, k := range keys {
		if c, _ := t.Column(k); c.IsNull(r) {
			return true
		}
	}
	return false
}

// Pivot spreads the distinct values of the columns column into one column
// each, holding the sum of values per index group. Output columns follow
// the order in which pivot values first appear; a cell without rows is
// null. Rows with a null index or pivot value are skipped.
func (t *Table) Pivot(index []string, columns, values string) (*Table, error) {
	keys := append(slices.Clone(index), columns)
	long, err := t.GroupBy(keys...).Agg(Sum(values).As(values))
	if err != nil {
		return nil, err
	}
	groups := long.GroupBy(index...)
	if groups.err != nil {
		return nil, groups.err
	}
	pivot, _ := long.Column(columns)
	vals, _ := long.Column(values)

	var names []string
	cells := map[string][]int{}
	for gi, rows := range groups.groups {
		for _, r := range rows {
			name := pivot.Text(r)
			if _, ok := cells[name]; !ok {
				names = append(names, name)
				cells[name] = make([]int, len(groups.groups))
				for i := range cells[name] {
					cells[name][i] = -1
				}
			}
			cells[name][gi] = r
		}
	}
	for _, name := range names {
		if slices.Contains(index, name) {
			return nil, fmt.Errorf("pivot value %q collides with an index column", name)
		}
	}

	out, err := groups.Agg()
	if err != nil {
		return nil, err
	}
	spread := make([]*Column, len(names))
	for i, name := range names {
		spread[i] = vals.take(cells[name]).renamed(name)
	}
	return out.With(spread...)
}

// SortBy orders rows ascending by the key columns. The sort is stable and
// nulls sort last.
func (t *Table) SortBy(keys ...string) (*Table, error) {
	cols := make([]*Column, len(keys))
	for i, k := range keys {
		c, err := t.Col(k)
		if err != nil {
			return nil, err
		}
		cols[i] = c
	}
	idx := make([]int, t.rows)
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		for _, c := range cols {
			if d := c.compare(a, b); d != 0 {
				return d
			}
		}
		return 0
	})
	return t.Take(idx), nil
}

func (c *Column) compare(a, b int) int {
	na, nb := c.IsNull(a), c.IsNull(b)
	switch {
	case na && nb:
		return 0
	case na:
		return 1
	case nb:
		return -1
	}
	switch c.Kind {
	case Int64:
		return cmp.Compare(c.Int(a).V, c.Int(b).V)
	case Float64:
		return cmp.Compare(c.Float(a).V, c.Float(b).V)
	default:
		return cmp.Compare(c.Text(a), c.Text(b))
	}
}

// FillNull replaces nulls of the named numeric columns with v. Int64
// columns receive v truncated.
func (t *Table) FillNull(v float64, names ...string) (*Table, error) {
	cols := make([]*Column, 0, len(names))
	for _, n := range names {
		src, err := t.Col(n)
		if err != nil {
			return nil, err
		}
		if src.Kind != Int64 && src.Kind != Float64 {
			return nil, fmt.Errorf("cannot fill %s column %q", src.Kind, n)
		}
		c := NewColumn(n, src.Kind, t.rows)
		for i := 0; i < t.rows; i++ {
			if src.IsNull(i) {
				c.AppendFloat(Float(v))
				continue
			}
			c.AppendFrom(src, i)
		}
		cols = append(cols, c)
	}
	return t.With(cols...)
}
