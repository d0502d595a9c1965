package integrate

import (
	"strings"

	"github.com/KaramelBytes/crimeloom/internal/records"
)

// Gold column names.
const (
	ColSettlements    = "n_centros_poblados"
	ColTotalCrimes    = "total_delitos"
	ColPopTotal       = "poblacion_total"
	ColPopMinors      = "poblacion_menores"
	ColPopAdults      = "poblacion_adultos"
	ColPopAdolescents = "poblacion_adolescentes"
	ColAreaKm2        = "area_km2"
	ColDensity        = "densidad_poblacional"
	ColSettlementsKm2 = "centros_por_km2"
	ColShareMinors    = "proporcion_menores"
	ColShareAdults    = "proporcion_adultos"
	ColShareAdolesc   = "proporcion_adolescentes"
	ColQuarter        = "trimestre"
	ColYearMonth      = "anio_mes"
	ColYearEnd        = "es_fin_ano"
	ColWeekdays       = "n_dias_semana"
	ColWeekends       = "n_fines_de_semana"
	ColHolidays       = "n_festivos"
	ColWorkingDays    = "n_dias_laborales"
)

// PopulationColumn names the pivoted population column of one gender and
// age group ("masculino_menores").
func PopulationColumn(gender, group string) string {
	return strings.ToLower(strings.ReplaceAll(gender+"_"+group, " ", "_"))
}

// PopulationColumns lists the pivoted population columns in output order.
func PopulationColumns() []string {
	var out []string
	for _, g := range records.Genders {
		for _, a := range records.AgeGroups {
			out = append(out, PopulationColumn(g, a))
		}
	}
	return out
}

// matching returns the columns of names whose name contains part.
func matching(names []string, part string) []string {
	var out []string
	for _, n := range names {
		if strings.Contains(n, part) {
			out = append(out, n)
		}
	}
	return out
}
