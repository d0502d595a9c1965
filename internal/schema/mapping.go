package schema

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/crimeloom/internal/table"
)

// Field declares one canonical column and the raw spellings it may arrive
// under, in priority order.
type Field struct {
	Name     string
	Aliases  []string
	Required bool
	Kind     table.Kind
}

// Mapping is the declared alias table of one source.
type Mapping struct {
	Table  string
	Fields []Field
}

// MissingColumnsError reports required fields no alias could satisfy.
type MissingColumnsError struct {
	Table   string
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%s: missing required columns: %s", e.Table, strings.Join(e.Columns, ", "))
}

// Resolve produces a table with exactly the declared fields, in declared
// order. Each field is the coalesce of its present aliases. Optional fields
// with no alias present become all-null columns. Columns consumed by a
// field are dropped; unrelated columns are dropped too, so every table
// coming out of Resolve has the same schema.
func (m Mapping) Resolve(t *table.Table) (*table.Table, error) {
	byNorm := make(map[string]string, t.NumCols())
	for _, name := range t.Names() {
		n := NormalizeName(name)
		if _, ok := byNorm[n]; !ok {
			byNorm[n] = name
		}
	}
	var (
		missing []string
		cols    = make([]*table.Column, 0, len(m.Fields))
	)
	for _, f := range m.Fields {
		sources := m.present(t, byNorm, f)
		if len(sources) == 0 {
			if f.Required {
				missing = append(missing, f.Name)
				continue
			}
			c := table.NewColumn(f.Name, f.Kind, t.NumRows())
			for i := 0; i < t.NumRows(); i++ {
				c.AppendNull()
			}
			cols = append(cols, c)
			continue
		}
		cols = append(cols, coalesce(t, f.Name, f.Kind, sources))
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Table: m.Table, Columns: missing}
	}
	return table.New(cols...)
}

// present lists the columns of t matching the field, exact spellings before
// normalized ones, without repeats.
func (m Mapping) present(t *table.Table, byNorm map[string]string, f Field) []string {
	candidates := append([]string{f.Name}, f.Aliases...)
	seen := map[string]struct{}{}
	var out []string
	add := func(name string) {
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	for _, c := range candidates {
		if t.Has(c) {
			add(c)
			continue
		}
		if raw, ok := byNorm[NormalizeName(c)]; ok {
			add(raw)
		}
	}
	return out
}

// Coalesce merges the source columns into dest, taking the first non-blank
// value of each row in the given order. Sources absent from t are skipped;
// when none is present t is returned unchanged. The consumed sources are
// dropped and dest is appended (or replaced) as a string column.
func Coalesce(t *table.Table, dest string, sources ...string) *table.Table {
	var present []string
	for _, s := range sources {
		if t.Has(s) {
			present = append(present, s)
		}
	}
	if len(present) == 0 {
		return t
	}
	col := coalesce(t, dest, table.String, present)
	out, err := t.Drop(present...).With(col)
	if err != nil {
		return t
	}
	return out
}

func coalesce(t *table.Table, dest string, kind table.Kind, sources []string) *table.Column {
	srcs := make([]*table.Column, 0, len(sources))
	for _, s := range sources {
		if c, ok := t.Column(s); ok {
			srcs = append(srcs, c)
		}
	}
	out := table.NewColumn(dest, kind, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		picked := false
		for _, c := range srcs {
			if blank(c, i) {
				continue
			}
			out.AppendFrom(c, i)
			picked = true
			break
		}
		if !picked {
			out.AppendNull()
		}
	}
	return out
}

func blank(c *table.Column, i int) bool {
	if c.IsNull(i) {
		return true
	}
	if c.Kind == table.String {
		return strings.TrimSpace(c.Text(i)) == ""
	}
	return false
}
