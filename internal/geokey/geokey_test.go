package geokey

import (
	"testing"

	"github.com/KaramelBytes/crimeloom/internal/table"
)

func TestFromCombined(t *testing.T) {
	r := NewResolver(-1)
	cases := []struct {
		in   string
		want table.NullInt
	}{
		{"68001000", table.Int(68001)},
		{" 68307000 ", table.Int(68307)},
		{"68-001 000", table.Int(68001)},
		{"12", table.Int(12)},
		{"ABC000", table.NullInt{}},
		{"", table.NullInt{}},
	}
	for _, tc := range cases {
		if got := r.FromCombined(tc.in); got != tc.want {
			t.Errorf("FromCombined(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
	if got := NewResolver(0).FromCombined("68001"); got != table.Int(68001) {
		t.Errorf("width 0 = %v", got)
	}
}

func TestFromNumeric(t *testing.T) {
	var r Resolver
	cases := map[string]table.NullInt{
		"68001":   table.Int(68001),
		"68001.0": table.Int(68001),
		" 68081 ": table.Int(68081),
		"68001.5": {},
		"x":       {},
	}
	for in, want := range cases {
		if got := r.FromNumeric(in); got != want {
			t.Errorf("FromNumeric(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestColumn(t *testing.T) {
	r := NewResolver(3)
	src := table.StringColumn("codigo_dane", []string{"68001000", "", "nope"})
	got := Column("codigo_municipio", src, r.FromCombined)
	if got.Kind != table.Int64 || got.Name != "codigo_municipio" {
		t.Fatalf("column = %s %v", got.Name, got.Kind)
	}
	if got.Int(0) != table.Int(68001) || !got.IsNull(1) || !got.IsNull(2) {
		t.Errorf("values = %v %v %v", got.Int(0), got.Int(1), got.Int(2))
	}
	// int columns pass through untouched
	ints := Column("codigo_municipio", table.IntColumn("c", 68307), r.FromCombined)
	if ints.Int(0) != table.Int(68307) {
		t.Errorf("int passthrough = %v", ints.Int(0))
	}
}
