package integrate

import (
	"fmt"

	"github.com/KaramelBytes/crimeloom/internal/records"
	"github.com/KaramelBytes/crimeloom/internal/table"
)

// Columns returns the integrated table's column order for the given
// categories.
func Columns(categories []string) []string {
	cols := []string{
		records.ColCode, records.ColMunicipality, records.ColDepartment, records.ColDeptCode,
		records.ColArea, records.ColGeometry, ColSettlements, records.ColYear, records.ColMonth, ColTotalCrimes,
	}
	cols = append(cols, canonical(categories).names...)
	cols = append(cols, PopulationColumns()...)
	return append(cols,
		ColPopTotal, ColPopMinors, ColPopAdults, ColPopAdolescents,
		ColAreaKm2, ColDensity, ColSettlementsKm2, ColShareMinors, ColShareAdults, ColShareAdolesc,
		records.ColDate, ColQuarter, ColYearMonth, ColYearEnd,
		ColWeekdays, ColWeekends, ColHolidays, ColWorkingDays,
	)
}

// assemble left-joins the municipalities to their crime periods and then
// to the population of the period's year. A municipality without crime
// rows appears once with a null period and zero counts.
func assemble(base, crime, pop *table.Table, cats categorySet) (*table.Table, error) {
	t, err := base.Join(crime, table.JoinOptions{Type: table.LeftJoin, On: []string{records.ColCode}})
	if err != nil {
		return nil, err
	}
	fill := append([]string{ColTotalCrimes, ColWeekdays, ColWeekends, ColHolidays, ColWorkingDays}, cats.names...)
	if t, err = t.FillNull(0, fill...); err != nil {
		return nil, err
	}
	t, err = t.Join(pop, table.JoinOptions{Type: table.LeftJoin, On: []string{records.ColCode, records.ColYear}})
	if err != nil {
		return nil, err
	}
	return withCalendar(t)
}

// withCalendar adds area_km2, the first-of-month date and its quarter,
// year-month and year-end flag. Rows without a period get nulls.
func withCalendar(t *table.Table) (*table.Table, error) {
	year, err := t.Col(records.ColYear)
	if err != nil {
		return nil, err
	}
	month, err := t.Col(records.ColMonth)
	if err != nil {
		return nil, err
	}
	area, err := t.Col(records.ColArea)
	if err != nil {
		return nil, err
	}
	n := t.NumRows()
	areaKm2 := table.NewColumn(ColAreaKm2, table.Float64, n)
	date := table.NewColumn(records.ColDate, table.String, n)
	quarter := table.NewColumn(ColQuarter, table.Int64, n)
	ym := table.NewColumn(ColYearMonth, table.String, n)
	yearEnd := table.NewColumn(ColYearEnd, table.Int64, n)
	for i := 0; i < n; i++ {
		areaKm2.AppendFrom(area, i)
		y, m := year.Int(i), month.Int(i)
		if !y.Valid || !m.Valid {
			for _, c := range []*table.Column{date, quarter, ym, yearEnd} {
				c.AppendNull()
			}
			continue
		}
		date.AppendStr(table.Str(fmt.Sprintf("%04d-%02d-01", y.V, m.V)))
		quarter.AppendInt(table.Int((m.V-1)/3 + 1))
		ym.AppendStr(table.Str(fmt.Sprintf("%04d-%02d", y.V, m.V)))
		yearEnd.AppendInt(table.Int(boolInt(m.V == 12)))
	}
	return t.With(areaKm2, date, quarter, ym, yearEnd)
}

func nullColumn(name string, kind table.Kind, n int) *table.Column {
	c := table.NewColumn(name, kind, n)
	for i := 0; i < n; i++ {
		c.AppendNull()
	}
	return c
}

// sumColumns adds the named int64 columns row by row. A row is null only
// when every part is.
func sumColumns(t *table.Table, name string, parts []string) *table.Column {
	cols := make([]*table.Column, 0, len(parts))
	for _, p := range parts {
		if c, ok := t.Column(p); ok {
			cols = append(cols, c)
		}
	}
	out := table.NewColumn(name, table.Int64, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		var sum table.NullInt
		for _, c := range cols {
			if v := c.Int(i); v.Valid {
				sum = table.Int(sum.V + v.V)
			}
		}
		out.AppendInt(sum)
	}
	return out
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// DeriveRatios recomputes density, settlements per km² and the three age
// shares from the population aggregates, area_km2 and the settlement count.
// Every ratio is null when its denominator is null or zero; the population
// ratios are also null when poblacion_total is zero.
func DeriveRatios(t *table.Table) (*table.Table, error) {
	total, err := t.Col(ColPopTotal)
	if err != nil {
		return nil, err
	}
	area, err := t.Col(ColAreaKm2)
	if err != nil {
		return nil, err
	}
	setts, err := t.Col(ColSettlements)
	if err != nil {
		return nil, err
	}
	groups := map[string]string{
		ColShareMinors:  ColPopMinors,
		ColShareAdults:  ColPopAdults,
		ColShareAdolesc: ColPopAdolescents,
	}
	src := map[string]*table.Column{}
	for share, from := range groups {
		c, err := t.Col(from)
		if err != nil {
			return nil, err
		}
		src[share] = c
	}

	n := t.NumRows()
	density := table.NewColumn(ColDensity, table.Float64, n)
	perKm2 := table.NewColumn(ColSettlementsKm2, table.Float64, n)
	shares := map[string]*table.Column{}
	for share := range groups {
		shares[share] = table.NewColumn(share, table.Float64, n)
	}
	for i := 0; i < n; i++ {
		pop := total.Float(i)
		if pop.Valid && pop.V == 0 {
			pop = table.NullFloat{}
		}
		density.AppendFloat(table.Div(pop, area.Float(i)))
		perKm2.AppendFloat(table.Div(setts.Float(i), area.Float(i)))
		for share, c := range src {
			shares[share].AppendFloat(table.Div(c.Float(i), pop))
		}
	}
	return t.With(density, perKm2, shares[ColShareMinors], shares[ColShareAdults], shares[ColShareAdolesc])
}
