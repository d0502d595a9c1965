package table

import (
	"errors"
	"math"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/google/go-cmp/cmp"
)

func texts(c *Column) []string {
	out := make([]string, c.Len())
	for i := range out {
		out[i] = c.Text(i)
	}
	return out
}

func TestWithDropRename(t *testing.T) {
	base := MustNew(
		StringColumn("municipio", []string{"GIRON", "LEBRIJA"}),
		IntColumn("anio", 2020, 2021),
	)
	got, err := base.With(FloatColumn("anio", 1, 2), IntColumn("mes", 1, 2))
	if err != nil {
		t.Fatalf("with: %v", err)
	}
	if diff := cmp.Diff([]string{"municipio", "anio", "mes"}, got.Names()); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
	if c, _ := got.Column("anio"); c.Kind != Float64 {
		t.Errorf("anio kind = %v, want replaced float64", c.Kind)
	}
	if c, _ := base.Column("anio"); c.Kind != Int64 {
		t.Error("With modified its input")
	}
	if _, err := base.With(IntColumn("x", 1)); err == nil {
		t.Error("expected length error")
	}

	dropped := got.Drop("mes", "nope")
	if diff := cmp.Diff([]string{"municipio", "anio"}, dropped.Names()); diff != "" {
		t.Errorf("drop (-want +got):\n%s", diff)
	}
	if dropped.NumRows() != 2 {
		t.Errorf("rows = %d", dropped.NumRows())
	}

	if _, err := got.Rename(map[string]string{"mes": "anio"}); err == nil {
		t.Error("renaming onto an existing column should fail")
	}
	r, err := got.Rename(map[string]string{"mes": "month"})
	if err != nil || !r.Has("month") || r.Has("mes") {
		t.Errorf("rename = %v %v", r, err)
	}
}

func TestColMissing(t *testing.T) {
	tbl := MustNew(IntColumn("a", 1))
	if _, err := tbl.Col("b"); !errors.Is(err, ErrColumnNotFound) {
		t.Errorf("err = %v, want ErrColumnNotFound", err)
	}
	if _, err := tbl.Select("a", "b"); !errors.Is(err, ErrColumnNotFound) {
		t.Errorf("select err = %v", err)
	}
}

func TestFilterDistinct(t *testing.T) {
	tbl := MustNew(
		StringColumn("delito", []string{"HURTOS", "HURTOS", "LESIONES", "HURTOS"}),
		IntColumn("cantidad", 1, 1, 2, 3),
	)
	d, removed := tbl.Distinct()
	if removed != 1 || d.NumRows() != 3 {
		t.Errorf("distinct removed %d, rows %d", removed, d.NumRows())
	}
	c, _ := tbl.Column("cantidad")
	big := tbl.Filter(func(i int) bool { return c.Int(i).V > 1 })
	d2, _ := big.Column("delito")
	if diff := cmp.Diff([]string{"LESIONES", "HURTOS"}, texts(d2)); diff != "" {
		t.Errorf("filter (-want +got):\n%s", diff)
	}
}

func TestConcat(t *testing.T) {
	a := MustNew(StringColumn("municipio", []string{"GIRON"}), IntColumn("cantidad", 2))
	b := MustNew(StringColumn("municipio", []string{"LEBRIJA"}), StringColumn("origen", []string{"socrata"}))
	got := Concat(a, b)
	if diff := cmp.Diff([]string{"municipio", "cantidad", "origen"}, got.Names()); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
	if got.NumRows() != 2 {
		t.Fatalf("rows = %d", got.NumRows())
	}
	n, _ := got.Column("cantidad")
	o, _ := got.Column("origen")
	if n.Kind != Int64 || !n.IsNull(1) || !o.IsNull(0) || o.Text(1) != "socrata" {
		t.Errorf("cantidad %v origen %v", texts(n), texts(o))
	}
}

func TestFromStrings(t *testing.T) {
	got := FromStrings([]string{"a", "b", "a"}, [][]string{{"1", "", "3"}, {"4"}})
	if diff := cmp.Diff([]string{"a", "b", "a_2"}, got.Names()); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
	if got.NumRows() != 2 {
		t.Fatalf("rows = %d", got.NumRows())
	}
	b, _ := got.Column("b")
	a2, _ := got.Column("a_2")
	if !b.IsNull(0) || !a2.IsNull(1) || a2.Text(0) != "3" {
		t.Errorf("b %v a_2 %v", texts(b), texts(a2))
	}
}

func TestNullHelpers(t *testing.T) {
	if got := Div(Float(6), Float(3)); got != Float(2) {
		t.Errorf("Div = %v", got)
	}
	if got := Div(Float(6), Float(0)); got.Valid {
		t.Error("division by zero should be null")
	}
	if got := Div(NullFloat{}, Float(1)); got.Valid {
		t.Error("null numerator should be null")
	}
	c := StringColumn("v", []string{"68001.0", "2.5", "x"})
	if c.Int(0) != Int(68001) || c.Int(1).Valid || c.Float(1) != Float(2.5) || c.Float(2).Valid {
		t.Errorf("parsed %v %v %v %v", c.Int(0), c.Int(1), c.Float(1), c.Float(2))
	}
}

func TestIntOfFloats(t *testing.T) {
	f := FloatColumn("area", 68001, 68001.7, -3, 1e30)
	want := []NullInt{Int(68001), {}, Int(-3), {}}
	for i, w := range want {
		if got := f.Int(i); got != w {
			t.Errorf("Int(%v) = %+v, want %+v", f.Float(i).V, got, w)
		}
	}
	for in, w := range map[string]NullInt{
		"1e30":                  {},
		"-1e30":                 {},
		"9.3e18":                {},
		"9223372036854775807":   Int(9223372036854775807),
		"-9.223372036854776e18": Int(-9223372036854775808),
		" 42 ":                  Int(42),
	} {
		if got := ParseInt(in); got != w {
			t.Errorf("ParseInt(%q) = %+v, want %+v", in, got, w)
		}
	}
	n := NewColumn("n", Int64, 2)
	n.AppendFloat(Float(2.9))
	n.AppendFloat(Float(1e30))
	if n.Int(0) != Int(2) || !n.IsNull(1) {
		t.Errorf("appended %+v %+v", n.Int(0), n.Int(1))
	}
}

func TestAppendAfterRead(t *testing.T) {
	c := NewColumn("cantidad", Float64, 0)
	c.AppendFloat(Float(1))
	if c.Len() != 1 || c.Float(0) != Float(1) {
		t.Fatalf("first read = %d %+v", c.Len(), c.Float(0))
	}
	c.AppendNull()
	c.AppendFloat(Float(3))
	if diff := cmp.Diff([]string{"1", "", "3"}, texts(c)); diff != "" {
		t.Errorf("cells (-want +got):\n%s", diff)
	}
}

func TestGroupByAgg(t *testing.T) {
	tbl := MustNew(
		IntColumn("codigo_municipio", 68001, 68077, 68001, 68001),
		StringColumn("delito", []string{"HURTOS", "HURTOS", "", "LESIONES"}),
		FloatColumn("cantidad", 2, 5, math.NaN(), 1),
	)
	got, err := tbl.GroupBy("codigo_municipio").Agg(
		Sum("cantidad").As("total"),
		Count().As("filas"),
		FirstValid("delito"),
	)
	if err != nil {
		t.Fatalf("agg: %v", err)
	}
	if diff := cmp.Diff([]string{"codigo_municipio", "total", "filas", "delito"}, got.Names()); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
	for name, want := range map[string][]string{
		"codigo_municipio": {"68001", "68077"},
		"total":            {"3", "5"},
		"filas":            {"3", "1"},
		"delito":           {"HURTOS", "HURTOS"},
	} {
		c, _ := got.Column(name)
		if diff := cmp.Diff(want, texts(c)); diff != "" {
			t.Errorf("%s (-want +got):\n%s", name, diff)
		}
	}

	nulls := MustNew(IntColumn("k", 1), FloatColumn("v", math.NaN()))
	s, err := nulls.GroupBy("k").Agg(Sum("v"))
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := s.Column("v"); !v.IsNull(0) {
		t.Error("sum of only nulls should be null")
	}
	if _, err := tbl.GroupBy("nope").Agg(Count()); !errors.Is(err, ErrColumnNotFound) {
		t.Errorf("err = %v", err)
	}
	if _, err := tbl.GroupBy("codigo_municipio").Agg(Sum("delito")); err == nil {
		t.Error("summing a string column should fail")
	}
}

func TestLeftJoin(t *testing.T) {
	left := MustNew(
		IntColumn("codigo_municipio", 68001, 68077, 68081),
		StringColumn("municipio", []string{"BUCARAMANGA", "BARBOSA", "BARRANCABERMEJA"}),
	)
	code := NewColumn("codigo_municipio", Int64, 4)
	for _, v := range []NullInt{Int(68081), Int(68001), Int(68001), {}} {
		code.AppendInt(v)
	}
	right := MustNew(code, IntColumn("anio", 2021, 2020, 2022, 2023))

	got, err := left.Join(right, JoinOptions{Type: LeftJoin, On: []string{"codigo_municipio"}})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	names, _ := got.Column("municipio")
	years, _ := got.Column("anio")
	if diff := cmp.Diff([]string{"BUCARAMANGA", "BUCARAMANGA", "BARBOSA", "BARRANCABERMEJA"}, texts(names)); diff != "" {
		t.Errorf("municipio (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"2020", "2022", "", "2021"}, texts(years)); diff != "" {
		t.Errorf("anio (-want +got):\n%s", diff)
	}

	inner, err := left.Join(right, JoinOptions{Type: InnerJoin, On: []string{"codigo_municipio"}})
	if err != nil || inner.NumRows() != 3 {
		t.Errorf("inner rows = %v %v", inner, err)
	}
	if _, err := left.Join(left, JoinOptions{On: []string{"codigo_municipio"}}); err == nil {
		t.Error("overlapping non-key columns should fail")
	}
	empty := MustNew(NewColumn("codigo_municipio", Int64, 0), NewColumn("anio", Int64, 0))
	got, err = left.Join(empty, JoinOptions{Type: LeftJoin, On: []string{"codigo_municipio"}})
	if err != nil || got.NumRows() != 3 {
		t.Fatalf("join empty = %v %v", got, err)
	}
	if y, _ := got.Column("anio"); !y.IsNull(0) || y.Kind != Int64 {
		t.Error("unmatched rows should be null")
	}
}

func TestPivot(t *testing.T) {
	tbl := MustNew(
		IntColumn("codigo_municipio", 68001, 68001, 68001, 68077),
		IntColumn("anio", 2023, 2023, 2023, 2023),
		StringColumn("grupo", []string{"femenino_adultos", "masculino_adultos", "femenino_adultos", ""}),
		IntColumn("n", 10, 20, 5, 7),
	)
	got, err := tbl.Pivot([]string{"codigo_municipio", "anio"}, "grupo", "n")
	if err != nil {
		t.Fatalf("pivot: %v", err)
	}
	if diff := cmp.Diff([]string{"codigo_municipio", "anio", "femenino_adultos", "masculino_adultos"}, got.Names()); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
	f, _ := got.Column("femenino_adultos")
	m, _ := got.Column("masculino_adultos")
	if got.NumRows() != 1 || f.Int(0) != Int(15) || m.Int(0) != Int(20) || f.Kind != Int64 {
		t.Errorf("rows %d femenino %v masculino %v", got.NumRows(), texts(f), texts(m))
	}

	sparse := MustNew(
		IntColumn("k", 1, 2),
		StringColumn("c", []string{"a", "b"}),
		FloatColumn("v", 1, 2),
	)
	got, err = sparse.Pivot([]string{"k"}, "c", "v")
	if err != nil {
		t.Fatal(err)
	}
	a, _ := got.Column("a")
	if diff := cmp.Diff([]string{"1", ""}, texts(a)); diff != "" {
		t.Errorf("a (-want +got):\n%s", diff)
	}
	filled, err := got.FillNull(0, "a", "b")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := filled.Column("b")
	if diff := cmp.Diff([]string{"0", "2"}, texts(b)); diff != "" {
		t.Errorf("filled b (-want +got):\n%s", diff)
	}
	if _, err := got.FillNull(0, "k", "c"); err == nil {
		t.Error("filling a missing column should fail")
	}
}

func TestSortBy(t *testing.T) {
	year := NewColumn("anio", Int64, 4)
	for _, v := range []NullInt{Int(2023), {}, Int(2021), Int(2023)} {
		year.AppendInt(v)
	}
	tbl := MustNew(year, IntColumn("mes", 2, 1, 5, 1), StringColumn("id", []string{"a", "b", "c", "d"}))
	got, err := tbl.SortBy("anio", "mes")
	if err != nil {
		t.Fatal(err)
	}
	id, _ := got.Column("id")
	if diff := cmp.Diff([]string{"c", "d", "a", "b"}, texts(id)); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
}

func TestArrowRoundTrip(t *testing.T) {
	in := MustNew(
		IntColumn("codigo_municipio", 68001, 68077),
		StringColumn("municipio", []string{"BUCARAMANGA", ""}),
	)
	rec := in.Record()
	defer rec.Release()
	if rec.NumRows() != 2 || rec.NumCols() != 2 {
		t.Fatalf("record %d x %d", rec.NumRows(), rec.NumCols())
	}
	arrTbl := array.NewTableFromRecords(rec.Schema(), []arrow.Record{rec, rec})
	defer arrTbl.Release()
	out, err := FromArrowTable(arrTbl)
	if err != nil {
		t.Fatalf("from arrow: %v", err)
	}
	name, _ := out.Column("municipio")
	if diff := cmp.Diff([]string{"BUCARAMANGA", "", "BUCARAMANGA", ""}, texts(name)); diff != "" {
		t.Errorf("municipio (-want +got):\n%s", diff)
	}
}
