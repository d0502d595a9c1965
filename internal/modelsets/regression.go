package modelsets

import (
	"math"
	"sort"
	"strings"

	"github.com/KaramelBytes/crimeloom/internal/analytics"
	"github.com/KaramelBytes/crimeloom/internal/integrate"
	"github.com/KaramelBytes/crimeloom/internal/records"
	"github.com/KaramelBytes/crimeloom/internal/table"
)

// TotalCrimes drops the descriptive columns of the analytics table.
func TotalCrimes(t *table.Table) *table.Table {
	return t.Drop(records.ColGeometry, records.ColMunicipality, records.ColDepartment, integrate.ColYearMonth, records.ColDate)
}

// perCrimeFeatures are the predictors of regression_per_crime.
var perCrimeFeatures = []string{
	records.ColCode, records.ColYear, records.ColMonth,
	integrate.ColDensity, integrate.ColSettlementsKm2,
	integrate.ColShareMinors, integrate.ColShareAdults, integrate.ColShareAdolesc,
	analytics.ColMonthSin, analytics.ColMonthCos,
	analytics.LagColumn(1), analytics.LagColumn(3), analytics.LagColumn(12),
	analytics.RollMeanColumn(3), analytics.RollMeanColumn(12),
	analytics.RollStdColumn(3), analytics.RollStdColumn(12),
	analytics.PctChangeColumn(1), analytics.PctChangeColumn(3), analytics.PctChangeColumn(12),
	integrate.ColWeekdays, integrate.ColWeekends, integrate.ColHolidays, integrate.ColWorkingDays,
}

// PerCrime keeps the predictor columns followed by every tasa_* column.
func PerCrime(t *table.Table) (*table.Table, error) {
	var names []string
	for _, n := range perCrimeFeatures {
		if t.Has(n) {
			names = append(names, n)
		}
	}
	for _, n := range t.Names() {
		if strings.HasPrefix(n, "tasa_") {
			names = append(names, n)
		}
	}
	return t.Select(names...)
}

// meanAcc averages the valid values it sees.
type meanAcc struct {
	sum float64
	n   int
}

func (m *meanAcc) add(v table.NullFloat) {
	if v.Valid {
		m.sum += v.V
		m.n++
	}
}

func (m meanAcc) value() table.NullFloat {
	if m.n == 0 {
		return table.NullFloat{}
	}
	return table.Float(m.sum / float64(m.n))
}

var geoMeans = []string{
	integrate.ColPopTotal, integrate.ColPopMinors, integrate.ColPopAdults, integrate.ColPopAdolescents,
}

type annual struct {
	code, year int64
	means      map[string]*meanAcc
	area       table.NullFloat
	seenArea   bool
	sums       map[string]float64
}

// Geo aggregates the analytics table per municipality and year: population
// columns, density and settlements per km² are averaged, area is the first
// value, crime counts are summed and each crime gets an annual rate.
func Geo(t *table.Table, crimes []string) (*table.Table, error) {
	code, err := t.Col(records.ColCode)
	if err != nil {
		return nil, err
	}
	year, err := t.Col(records.ColYear)
	if err != nil {
		return nil, err
	}
	meanCols := append(append([]string{}, geoMeans...), integrate.ColDensity, integrate.ColSettlementsKm2)
	sumCols := []string{integrate.ColTotalCrimes}
	for _, c := range crimes {
		if t.Has(c) {
			sumCols = append(sumCols, c)
		}
	}
	src := map[string]*table.Column{}
	for _, n := range append(append([]string{integrate.ColAreaKm2}, meanCols...), sumCols...) {
		c, err := t.Col(n)
		if err != nil {
			return nil, err
		}
		src[n] = c
	}

	groups := map[[2]int64]*annual{}
	for i := 0; i < t.NumRows(); i++ {
		c, y := code.Int(i), year.Int(i)
		if !c.Valid || !y.Valid {
			continue
		}
		k := [2]int64{c.V, y.V}
		g, ok := groups[k]
		if !ok {
			g = &annual{code: c.V, year: y.V, means: map[string]*meanAcc{}, sums: map[string]float64{}}
			for _, n := range meanCols {
				g.means[n] = &meanAcc{}
			}
			groups[k] = g
		}
		for _, n := range meanCols {
			g.means[n].add(src[n].Float(i))
		}
		if !g.seenArea {
			if v := src[integrate.ColAreaKm2].Float(i); v.Valid {
				g.area, g.seenArea = v, true
			}
		}
		for _, n := range sumCols {
			if v := src[n].Float(i); v.Valid {
				g.sums[n] += v.V
			}
		}
	}
	rows := make([]*annual, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, g)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].code != rows[j].code {
			return rows[i].code < rows[j].code
		}
		return rows[i].year < rows[j].year
	})

	n := len(rows)
	codes := table.NewColumn(records.ColCode, table.Int64, n)
	years := table.NewColumn(records.ColYear, table.Int64, n)
	area := table.NewColumn(integrate.ColAreaKm2, table.Float64, n)
	means := make([]*table.Column, len(meanCols))
	for j, name := range meanCols {
		means[j] = table.NewColumn(name, table.Float64, n)
	}
	sums := make([]*table.Column, len(sumCols))
	for j, name := range sumCols {
		sums[j] = table.NewColumn(name, table.Float64, n)
	}
	rateCrimes := sumCols[1:]
	rates := make([]*table.Column, len(rateCrimes))
	for j, c := range rateCrimes {
		rates[j] = table.NewColumn(analytics.RateColumn(c), table.Float64, n)
	}
	for _, g := range rows {
		codes.AppendInt(table.Int(g.code))
		years.AppendInt(table.Int(g.year))
		area.AppendFloat(g.area)
		for j, name := range meanCols {
			means[j].AppendFloat(g.means[name].value())
		}
		for j, name := range sumCols {
			sums[j].AppendFloat(table.Float(g.sums[name]))
		}
		pop := g.means[integrate.ColPopTotal].value()
		for j, c := range rateCrimes {
			r := table.Div(table.Float(g.sums[c]), pop)
			if r.Valid {
				r = table.Float(r.V * 100000)
			}
			rates[j].AppendFloat(r)
		}
	}
	cols := []*table.Column{codes, years}
	cols = append(cols, means[:len(geoMeans)]...)
	cols = append(cols, area)
	cols = append(cols, means[len(geoMeans):]...)
	cols = append(cols, sums...)
	cols = append(cols, rates...)
	return table.New(cols...)
}

// Department column names.
const (
	ColGlobalRate = "tasa_global"
	ColRoll3      = "roll_3"
	ColRoll12     = "roll_12"
)

// Department builds the department-wide monthly series: totals and
// population summed per anio_mes, the global rate and its lag, rolling and
// seasonal features.
func Department(t *table.Table) (*table.Table, error) {
	ym, err := t.Col(integrate.ColYearMonth)
	if err != nil {
		return nil, err
	}
	total, err := t.Col(integrate.ColTotalCrimes)
	if err != nil {
		return nil, err
	}
	pop, err := t.Col(integrate.ColPopTotal)
	if err != nil {
		return nil, err
	}
	type month struct {
		total, pop float64
	}
	byMonth := map[string]*month{}
	for i := 0; i < t.NumRows(); i++ {
		k := ym.Str(i)
		if !k.Valid {
			continue
		}
		m, ok := byMonth[k.V]
		if !ok {
			m = &month{}
			byMonth[k.V] = m
		}
		if v := total.Float(i); v.Valid {
			m.total += v.V
		}
		if v := pop.Float(i); v.Valid {
			m.pop += v.V
		}
	}
	keys := make([]string, 0, len(byMonth))
	for k := range byMonth {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	n := len(keys)
	ymCol := table.NewColumn(integrate.ColYearMonth, table.String, n)
	dateCol := table.NewColumn(records.ColDate, table.String, n)
	monthCol := table.NewColumn(records.ColMonth, table.Int64, n)
	totals := make([]table.NullFloat, n)
	pops := make([]table.NullFloat, n)
	rates := make([]table.NullFloat, n)
	for i, k := range keys {
		m := byMonth[k]
		ymCol.AppendStr(table.Str(k))
		dateCol.AppendStr(table.Str(k + "-01"))
		if j := strings.LastIndexByte(k, '-'); j >= 0 {
			monthCol.AppendInt(table.ParseInt(k[j+1:]))
		} else {
			monthCol.AppendNull()
		}
		totals[i] = table.Float(m.total)
		pops[i] = table.Float(m.pop)
		if r := table.Div(totals[i], pops[i]); r.Valid {
			rates[i] = table.Float(r.V * 100000)
		}
	}
	sin, cos := make([]table.NullFloat, n), make([]table.NullFloat, n)
	for i := 0; i < n; i++ {
		sin[i], cos[i] = seasonal(monthCol.Int(i))
	}
	return table.New(
		ymCol, dateCol,
		floatColumn(integrate.ColTotalCrimes, totals),
		floatColumn(integrate.ColPopTotal, pops),
		floatColumn(ColGlobalRate, rates),
		floatColumn(analytics.LagColumn(1), analytics.Lag(totals, 1)),
		floatColumn(analytics.LagColumn(3), analytics.Lag(totals, 3)),
		floatColumn(analytics.LagColumn(12), analytics.Lag(totals, 12)),
		floatColumn(ColRoll3, analytics.RollMean(totals, 3)),
		floatColumn(ColRoll12, analytics.RollMean(totals, 12)),
		floatColumn(analytics.PctChangeColumn(1), analytics.PctChange(totals, 1)),
		floatColumn(analytics.PctChangeColumn(12), analytics.PctChange(totals, 12)),
		monthCol,
		floatColumn(analytics.ColMonthSin, sin),
		floatColumn(analytics.ColMonthCos, cos),
	)
}

func floatColumn(name string, vals []table.NullFloat) *table.Column {
	c := table.NewColumn(name, table.Float64, len(vals))
	for _, v := range vals {
		c.AppendFloat(v)
	}
	return c
}

func seasonal(month table.NullInt) (sin, cos table.NullFloat) {
	if !month.Valid {
		return sin, cos
	}
	a := 2 * math.Pi * float64(month.V) / 12
	return table.Float(math.Sin(a)), table.Float(math.Cos(a))
}
