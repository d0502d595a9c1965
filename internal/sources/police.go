// Package sources reads the bronze tier: police spreadsheets, open-data
// exports, census population files, the settlement registry and municipality
// polygons.
package sources

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/crimeloom/internal/calendar"
	"github.com/KaramelBytes/crimeloom/internal/config"
	"github.com/KaramelBytes/crimeloom/internal/schema"
	"github.com/KaramelBytes/crimeloom/internal/table"
	"github.com/KaramelBytes/crimeloom/internal/textnorm"
)

// Silver crime column names.
const (
	ColCombinedCode = "codigo_dane"
	ColFileYear     = "anio_archivo"
	ColFileCrime    = "delito_archivo"
	ColSourceFile   = "archivo_origen"
)

// PoliceGroups lists the header spellings seen across years of police
// spreadsheets, by destination column and in priority order.
var PoliceGroups = []schema.Field{
	{Name: "edad_persona", Aliases: []string{"*AGRUPA EDAD PERSONA", "*AGRUPA EDAD PERSONA*", "*AGRUPA_EDAD_PERSONA", "AGRUPA EDAD PERSONA", "AGRUPA_EDAD_PERSONA", "GRUPO ETARIO"}},
	{Name: "armas_medios", Aliases: []string{"ARMA MEDIO", "ARMAS MEDIO", "ARMAS MEDIOS", "ARMAS_MEDIOS"}},
	{Name: ColCombinedCode, Aliases: []string{"CODIGO DANE", "CODIGO_DANE"}},
	{Name: "delito", Aliases: []string{"DELITO", "DELITOS"}},
	{Name: "departamento", Aliases: []string{"DEPARTAMENTO", "Departamento"}},
	{Name: "fecha", Aliases: []string{"FECHA", "FECHA  HECHO", "FECHA HECHO"}},
	{Name: "municipio", Aliases: []string{"MUNICICPIO", "MUNICIPIO", "MUNICIPO", "Municipio"}},
	{Name: "genero", Aliases: []string{"GENERO"}},
	{Name: "cantidad", Aliases: []string{"CANTIDAD"}},
}

// SilverCrimeColumns is the schema shared by both silver crime sources.
var SilverCrimeColumns = []string{
	"departamento", "municipio", ColCombinedCode, "delito", "edad_persona",
	"armas_medios", "cantidad", "fecha", "genero", ColFileYear,
}

// HeaderRange is the row window searched for spreadsheet headers.
type HeaderRange struct {
	From, To int
}

// FileMeta extracts the year (first 4-digit token) and crime label (first
// non-numeric token) from a police file name such as
// "Homicidio%20Intencional_2023.xlsx".
func FileMeta(name string) (table.NullInt, string) {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	var (
		year  table.NullInt
		label string
	)
	for _, p := range strings.Split(stem, "_") {
		if isDigits(p) {
			if len(p) == 4 && !year.Valid {
				n, _ := strconv.ParseInt(p, 10, 64)
				year = table.Int(n)
			}
			continue
		}
		if label == "" {
			label = p
		}
	}
	return year, label
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ReadPoliceWorkbook reads every sheet of one police spreadsheet. Each sheet
// gets its header row detected in r and the file metadata columns attached.
func ReadPoliceWorkbook(path string, r HeaderRange) (*table.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	year, label := FileMeta(path)
	var parts []*table.Table
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q of %s: %w", sheet, path, err)
		}
		header := schema.DetectHeaderRow(rows, r.From, r.To)
		names, data := schema.HeaderTable(rows, header)
		if len(names) == 0 || len(data) == 0 {
			continue
		}
		t := table.FromStrings(names, data)
		n := t.NumRows()
		y := table.NewColumn(ColFileYear, table.Int64, n)
		l := table.NewColumn(ColFileCrime, table.String, n)
		src := table.NewColumn(ColSourceFile, table.String, n)
		for i := 0; i < n; i++ {
			y.AppendInt(year)
			l.AppendStr(table.NullString{V: label, Valid: label != ""})
			src.AppendStr(table.Str(filepath.Base(path)))
		}
		t, err = t.With(y, l, src)
		if err != nil {
			return nil, err
		}
		parts = append(parts, t)
	}
	if len(parts) == 0 {
		return table.MustNew(), nil
	}
	return table.Concat(parts...), nil
}

// ReadPoliceDir unions every .xlsx workbook of dir in name order. It returns
// the table and the files read.
func ReadPoliceDir(dir string, r HeaderRange) (*table.Table, []string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.xlsx"))
	if err != nil {
		return nil, nil, err
	}
	sort.Strings(files)
	var parts []*table.Table
	for _, p := range files {
		if strings.HasPrefix(filepath.Base(p), "~$") {
			continue
		}
		t, err := ReadPoliceWorkbook(p, r)
		if err != nil {
			return nil, nil, err
		}
		parts = append(parts, t)
	}
	if len(parts) == 0 {
		return nil, nil, fmt.Errorf("no police workbooks in %s: %w", dir, os.ErrNotExist)
	}
	return table.Concat(parts...), files, nil
}

// CrimeRules are the silver-tier rules applied to both crime sources.
type CrimeRules struct {
	Department string
	// Labels maps raw file labels to categories; keys match case-insensitively.
	Labels   map[string]string
	Excluded []string
	NoReport []string
}

// RulesFrom builds the rules from configuration.
func RulesFrom(c *config.Pipeline) CrimeRules {
	return CrimeRules{
		Department: c.Department.Name,
		Labels:     c.Silver.CrimeLabels,
		Excluded:   c.Silver.ExcludedCategories,
		NoReport:   c.Silver.NoReport,
	}
}

// Category maps a raw crime label to its category: the substitution table
// first, otherwise the URL-unescaped label, upper-cased.
func (r CrimeRules) Category(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if v, ok := r.Labels[raw]; ok {
		return textnorm.Category(v)
	}
	for k, v := range r.Labels {
		if strings.EqualFold(k, raw) {
			return textnorm.Category(v)
		}
	}
	if u, err := url.PathUnescape(raw); err == nil {
		raw = u
	}
	return textnorm.Category(raw)
}

// Excludes reports whether a category is dropped. Accents are ignored.
func (r CrimeRules) Excludes(category string) bool {
	c, _ := textnorm.Name(category)
	for _, e := range r.Excluded {
		if n, _ := textnorm.Name(e); n == c {
			return true
		}
	}
	return false
}

func (r CrimeRules) noReport(v string) bool {
	v = strings.ToUpper(strings.TrimSpace(v))
	for _, n := range r.NoReport {
		if strings.ToUpper(strings.TrimSpace(n)) == v {
			return true
		}
	}
	return false
}

func (r CrimeRules) inDepartment(v string) bool {
	a, _ := textnorm.Name(v)
	b, _ := textnorm.Name(r.Department)
	return a != "" && a == b
}

// SilverStats counts the rows removed by each silver rule.
type SilverStats struct {
	Input      int
	Department int
	Age        int
	Gender     int
	Excluded   int
	Output     int
}

// PoliceSilver coalesces the header variants of a unified police table and
// applies the silver rules. The crime category comes from the file label.
func PoliceSilver(raw *table.Table, r CrimeRules) (*table.Table, SilverStats) {
	t := raw
	for _, g := range PoliceGroups {
		t = schema.Coalesce(t, g.Name, append([]string{g.Name}, g.Aliases...)...)
	}
	return silverCrime(t, r, func(i int) string {
		return cell(t, ColFileCrime, i)
	})
}

func silverCrime(t *table.Table, r CrimeRules, label func(int) string) (*table.Table, SilverStats) {
	st := SilverStats{Input: t.NumRows()}
	n := t.NumRows()
	out := map[string]*table.Column{}
	for _, c := range SilverCrimeColumns {
		switch c {
		case "cantidad":
			out[c] = table.NewColumn(c, table.Float64, n)
		case ColFileYear:
			out[c] = table.NewColumn(c, table.Int64, n)
		default:
			out[c] = table.NewColumn(c, table.String, n)
		}
	}
	fileYear, _ := t.Column(ColFileYear)
	for i := 0; i < n; i++ {
		dept := strings.ToUpper(strings.TrimSpace(cell(t, "departamento", i)))
		if !r.inDepartment(dept) {
			st.Department++
			continue
		}
		age := strings.ToUpper(strings.TrimSpace(cell(t, "edad_persona", i)))
		if age == "" || r.noReport(age) {
			st.Age++
			continue
		}
		gender := strings.TrimSpace(cell(t, "genero", i))
		if gender == "" {
			st.Gender++
			continue
		}
		crime, ok := r.Category(label(i))
		if !ok || r.Excludes(crime) {
			st.Excluded++
			continue
		}
		weapon := strings.ToUpper(strings.TrimSpace(cell(t, "armas_medios", i)))
		if weapon == "" || r.noReport(weapon) {
			weapon = "NO REPORTADO"
		}
		date := table.NullString{}
		if d, ok := calendar.ParseDate(cell(t, "fecha", i), true); ok {
			date = table.Str(calendar.ISO(d))
		}
		out["departamento"].AppendStr(table.Str(dept))
		out["municipio"].AppendStr(optional(strings.ToUpper(strings.TrimSpace(cell(t, "municipio", i)))))
		out[ColCombinedCode].AppendStr(optional(strings.TrimSpace(cell(t, ColCombinedCode, i))))
		out["delito"].AppendStr(table.Str(crime))
		out["edad_persona"].AppendStr(table.Str(age))
		out["armas_medios"].AppendStr(table.Str(weapon))
		out["cantidad"].AppendStr(optional(cell(t, "cantidad", i)))
		out["fecha"].AppendStr(date)
		out["genero"].AppendStr(table.Str(gender))
		if fileYear != nil {
			out[ColFileYear].AppendInt(fileYear.Int(i))
		} else {
			out[ColFileYear].AppendNull()
		}
	}
	cols := make([]*table.Column, len(SilverCrimeColumns))
	for i, c := range SilverCrimeColumns {
		cols[i] = out[c]
	}
	res := table.MustNew(cols...)
	st.Output = res.NumRows()
	return res, st
}

func cell(t *table.Table, name string, i int) string {
	c, ok := t.Column(name)
	if !ok {
		return ""
	}
	return c.Text(i)
}

func optional(s string) table.NullString {
	return table.NullString{V: s, Valid: s != ""}
}
