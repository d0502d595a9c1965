package schema

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/KaramelBytes/crimeloom/internal/table"
)

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"Código Municipio":  "codigo_municipio",
		"  AÑO  ":           "ano",
		"Dato Numérico":     "dato_numerico",
		"MPIO_CCNCT":        "mpio_ccnct",
		"__armas--medios__": "armas_medios",
		"edad (persona)":    "edad_persona",
		"":                  "",
	}
	for in, want := range cases {
		if got := NormalizeName(in); got != want {
			t.Errorf("NormalizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizerApply(t *testing.T) {
	raw := table.MustNew(
		table.StringColumn("COD_MPIO", []string{"68001"}),
		table.StringColumn("Municipio", []string{"BUCARAMANGA"}),
		table.StringColumn("municipio ", []string{"BGA"}),
		table.StringColumn("Otro Campo", []string{"x"}),
		table.StringColumn("MUNICIPIO", []string{"B"}),
	)
	got := NewNormalizer(nil).Apply(raw).Names()
	want := []string{"codigo_municipio", "municipio", "municipio_2", "otro_campo", "municipio_3"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
}

func TestMappingResolve(t *testing.T) {
	m := Mapping{Table: "socrata", Fields: []Field{
		{Name: "codigo_municipio", Aliases: []string{"cod_mpio", "codigo_dane"}, Required: true},
		{Name: "cantidad", Aliases: []string{"numero"}, Required: true},
		{Name: "genero", Aliases: []string{"sexo"}},
	}}
	raw := table.MustNew(
		table.StringColumn("COD_MPIO", []string{"68001", "", "68307"}),
		table.StringColumn("codigo_dane", []string{"1", "68081", "2"}),
		table.StringColumn("Número", []string{"3", "4", "5"}),
		table.StringColumn("ignorada", []string{"a", "b", "c"}),
	)
	got, err := m.Resolve(raw)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if diff := cmp.Diff([]string{"codigo_municipio", "cantidad", "genero"}, got.Names()); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
	code, _ := got.Column("codigo_municipio")
	var codes []string
	for i := 0; i < got.NumRows(); i++ {
		codes = append(codes, code.Text(i))
	}
	if diff := cmp.Diff([]string{"68001", "68081", "68307"}, codes); diff != "" {
		t.Errorf("coalesced codes (-want +got):\n%s", diff)
	}
	if g, _ := got.Column("genero"); !g.IsNull(0) || !g.IsNull(2) {
		t.Error("absent optional field should be all null")
	}

	_, err = m.Resolve(table.MustNew(table.StringColumn("sexo", []string{"F"})))
	var mce *MissingColumnsError
	if !errors.As(err, &mce) {
		t.Fatalf("err = %v, want MissingColumnsError", err)
	}
	if diff := cmp.Diff([]string{"codigo_municipio", "cantidad"}, mce.Columns); diff != "" {
		t.Errorf("missing (-want +got):\n%s", diff)
	}
}

func TestCoalesce(t *testing.T) {
	raw := table.MustNew(
		table.StringColumn("municipio", []string{"GIRON", "LEBRIJA", "PIEDECUESTA"}),
		table.StringColumn("edad", []string{"", "  ", "ADULTOS"}),
		table.StringColumn("edad_2", []string{"MENORES", "ADOLESCENTES", "MENORES"}),
	)
	got := Coalesce(raw, "edad_persona", "edad", "edad_2", "grupo_etario")
	if diff := cmp.Diff([]string{"municipio", "edad_persona"}, got.Names()); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
	c, _ := got.Column("edad_persona")
	var vals []string
	for i := 0; i < got.NumRows(); i++ {
		vals = append(vals, c.Text(i))
	}
	if diff := cmp.Diff([]string{"MENORES", "ADOLESCENTES", "ADULTOS"}, vals); diff != "" {
		t.Errorf("values (-want +got):\n%s", diff)
	}

	if out := Coalesce(raw, "x", "nope"); out != raw {
		t.Error("no present source should return the input table")
	}
}

func TestDetectHeaderRow(t *testing.T) {
	rows := [][]string{
		{"Reporte"},
		{"", "", ""},
		{"MUNICIPIO", "DELITO", "CANTIDAD"},
		{"GIRON", "HURTOS", "2"},
	}
	cases := []struct {
		from, to, want int
	}{
		{0, 3, 2},
		{1, 2, 2},
		{0, 1, 0},
		{1, 1, 0},
		{9, 12, 0},
		{3, 99, 3},
	}
	for _, tc := range cases {
		if got := DetectHeaderRow(rows, tc.from, tc.to); got != tc.want {
			t.Errorf("DetectHeaderRow(%d, %d) = %d, want %d", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestHeaderTable(t *testing.T) {
	rows := [][]string{
		{"titulo"},
		{" MUNICIPIO ", "", "CANTIDAD"},
		{"GIRON", "ignorado", "2"},
		{"", "x", " "},
		{"LEBRIJA"},
	}
	names, data := HeaderTable(rows, 1)
	if diff := cmp.Diff([]string{"MUNICIPIO", "CANTIDAD"}, names); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
	want := [][]string{{"GIRON", "2"}, {"LEBRIJA", ""}}
	if diff := cmp.Diff(want, data); diff != "" {
		t.Errorf("data (-want +got):\n%s", diff)
	}
	if n, d := HeaderTable(rows, 7); n != nil || d != nil {
		t.Error("out of range header should return nil")
	}
}
