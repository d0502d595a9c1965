// Package records defines the typed entities exchanged between pipeline
// stages and their table encodings.
package records

import (
	"github.com/KaramelBytes/crimeloom/internal/schema"
	"github.com/KaramelBytes/crimeloom/internal/table"
)

// Column names shared across tiers.
const (
	ColCode           = "codigo_municipio"
	ColMunicipality   = "municipio"
	ColDepartment     = "departamento"
	ColDeptCode       = "codigo_departamento"
	ColArea           = "area"
	ColGeometry       = "geometry"
	ColCRS            = "crs"
	ColPart           = "parte"
	ColSettlementCode = "codigo_centro_poblado"
	ColSettlement     = "centro_poblado"
	ColClass          = "clase"
	ColYear           = "anio"
	ColMonth          = "mes"
	ColDay            = "dia"
	ColDate           = "fecha"
	ColCrime          = "delito"
	ColWeapon         = "armas_medios"
	ColGender         = "genero"
	ColAgeBracket     = "edad_persona"
	ColCount          = "cantidad"
	ColWeekday        = "es_dia_semana"
	ColWeekend        = "es_fin_de_semana"
	ColMonthEnd       = "es_fin_mes"
	ColHoliday        = "es_festivo"
	ColHolidayName    = "nombre_festivo"
	ColWorkingDay     = "es_dia_laboral"
	ColOrigin         = "origen"
	ColAgeGroup       = "grupo_edad"
	ColPopulation     = "n_poblacion"
)

// Provenance tags of crime rows.
const (
	OriginPrimary   = "policia"
	OriginSecondary = "socrata"
)

// Genders and age groups of the population model.
const (
	Male        = "MASCULINO"
	Female      = "FEMENINO"
	Minors      = "MENORES"
	Adolescents = "ADOLESCENTES"
	Adults      = "ADULTOS"
)

// Genders lists the population genders in pivot order.
var Genders = []string{Female, Male}

// AgeGroups lists the population age groups in pivot order.
var AgeGroups = []string{Adolescents, Adults, Minors}

// Municipality is one polygon part of a municipality.
type Municipality struct {
	Code       table.NullInt
	Name       table.NullString
	DeptCode   table.NullString
	Department table.NullString
	Area       table.NullFloat
	Geometry   []byte // WKB
	CRS        string
	Part       int64
}

// Settlement is one populated place of the divipola registry.
type Settlement struct {
	Code           table.NullInt
	DeptCode       table.NullString
	SettlementCode table.NullString
	Department     table.NullString
	Municipality   table.NullString
	Name           table.NullString
	Class          table.NullString
}

// Population is a population count for one municipality, year, gender and
// age group.
type Population struct {
	Code         table.NullInt
	Municipality table.NullString
	Department   table.NullString
	Year         table.NullInt
	Gender       table.NullString
	AgeGroup     table.NullString
	Count        table.NullInt
}

// CrimeEvent is one pre-aggregated row of the crime sources.
type CrimeEvent struct {
	Code         table.NullInt
	Department   table.NullString
	Municipality table.NullString
	Date         table.NullString // ISO yyyy-mm-dd
	Year         table.NullInt
	Month        table.NullInt
	Day          table.NullInt
	Crime        table.NullString
	Weapon       table.NullString
	Gender       table.NullString
	AgeBracket   table.NullString
	Count        table.NullFloat
	Weekday      int64
	Weekend      int64
	MonthEnd     int64
	Holiday      int64
	HolidayName  table.NullString
	WorkingDay   int64
	Origin       string
}

// reader fetches columns from a table, remembering required ones that are
// missing.
type reader struct {
	t       *table.Table
	missing []string
}

func (r *reader) req(name string) *table.Column {
	c, ok := r.t.Column(name)
	if !ok {
		r.missing = append(r.missing, name)
	}
	return c
}

func (r *reader) opt(name string) *table.Column {
	c, _ := r.t.Column(name)
	return c
}

func (r *reader) err(what string) error {
	if len(r.missing) == 0 {
		return nil
	}
	return &schema.MissingColumnsError{Table: what, Columns: r.missing}
}

func str(c *table.Column, i int) table.NullString {
	if c == nil {
		return table.NullString{}
	}
	return c.Str(i)
}

func num(c *table.Column, i int) table.NullInt {
	if c == nil {
		return table.NullInt{}
	}
	return c.Int(i)
}

func flt(c *table.Column, i int) table.NullFloat {
	if c == nil {
		return table.NullFloat{}
	}
	return c.Float(i)
}

func flag(c *table.Column, i int) int64 {
	v := num(c, i)
	if v.Valid && v.V != 0 {
		return 1
	}
	return 0
}

func newStr(name string, n int) *table.Column   { return table.NewColumn(name, table.String, n) }
func newInt(name string, n int) *table.Column   { return table.NewColumn(name, table.Int64, n) }
func newFloat(name string, n int) *table.Column { return table.NewColumn(name, table.Float64, n) }
