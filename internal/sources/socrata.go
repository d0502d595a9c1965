package sources

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/KaramelBytes/crimeloom/internal/schema"
	"github.com/KaramelBytes/crimeloom/internal/table"
)

// SocrataMapping declares how open-data export keys resolve to the silver
// crime schema. Keys are matched after normalization.
var SocrataMapping = schema.Mapping{
	Table: "socrata",
	Fields: []schema.Field{
		{Name: "departamento", Aliases: []string{"depto", "nombre_departamento"}, Kind: table.String},
		{Name: "municipio", Aliases: []string{"nombre_municipio", "mpio"}, Kind: table.String},
		{Name: ColCombinedCode, Aliases: []string{"cod_dane", "codigo_municipio", "divipola"}, Required: true, Kind: table.String},
		{Name: "delito", Aliases: []string{"tipo_delito", "conducta", "descripcion_conducta"}, Kind: table.String},
		{Name: "armas_medios", Aliases: []string{"arma_medio", "armas_medio", "arma_empleada"}, Kind: table.String},
		{Name: "fecha", Aliases: []string{"fecha_hecho", "fecha_del_hecho"}, Required: true, Kind: table.String},
		{Name: "genero", Aliases: []string{"sexo"}, Kind: table.String},
		{Name: "edad_persona", Aliases: []string{"agrupa_edad_persona", "grupo_etario", "edad"}, Kind: table.String},
		{Name: "cantidad", Aliases: []string{"total", "numero_de_casos", "casos"}, Kind: table.String},
	},
}

// Stem is the dataset name of an export path ("delitos_sexuales").
func Stem(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// ReadSocrataJSON decodes an export holding a JSON array of flat records.
// Keys vary between records; the result carries the union of keys in
// sorted order. Nested values are kept as their JSON text.
func ReadSocrataJSON(path string) (*table.Table, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var recs []map[string]any
	if err := json.Unmarshal(b, &recs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	keys := map[string]struct{}{}
	for _, r := range recs {
		for k := range r {
			keys[k] = struct{}{}
		}
	}
	header := make([]string, 0, len(keys))
	for k := range keys {
		header = append(header, k)
	}
	sort.Strings(header)
	rows := make([][]string, len(recs))
	for i, r := range recs {
		row := make([]string, len(header))
		for j, k := range header {
			row[j] = jsonText(r[k])
		}
		rows[i] = row
	}
	return table.FromStrings(header, rows), nil
}

func jsonText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// SocrataSilver normalizes and resolves one export, then applies the silver
// crime rules. Rows without a crime label of their own take the dataset
// stem, upper-cased.
func SocrataSilver(raw *table.Table, stem string, norm schema.Normalizer, r CrimeRules) (*table.Table, SilverStats, error) {
	t, err := SocrataMapping.Resolve(norm.Apply(raw))
	if err != nil {
		return nil, SilverStats{}, err
	}
	fallback := strings.ToUpper(stem)
	if !hasDepartment(t) {
		// City exports carry no department; they belong to the configured one.
		t = withConstant(t, "departamento", r.Department)
	}
	res, st := silverCrime(t, r, func(i int) string {
		if v := strings.TrimSpace(cell(t, "delito", i)); v != "" {
			return v
		}
		return fallback
	})
	return res, st, nil
}

func hasDepartment(t *table.Table) bool {
	c, ok := t.Column("departamento")
	if !ok {
		return false
	}
	for i := 0; i < c.Len(); i++ {
		if !c.IsNull(i) {
			return true
		}
	}
	return false
}

func withConstant(t *table.Table, name, v string) *table.Table {
	c := table.NewColumn(name, table.String, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		c.AppendStr(table.Str(v))
	}
	out, err := t.With(c)
	if err != nil {
		return t
	}
	return out
}

// DedupReport is the before/after row count of a union.
type DedupReport struct {
	Before int
	After  int
}

func (d DedupReport) Removed() int { return d.Before - d.After }

// Union concatenates silver tables and removes exact duplicate rows.
func Union(tables ...*table.Table) (*table.Table, DedupReport) {
	all := table.Concat(tables...)
	out, _ := all.Distinct()
	return out, DedupReport{Before: all.NumRows(), After: out.NumRows()}
}
