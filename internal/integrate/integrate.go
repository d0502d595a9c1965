// Package integrate joins the gold base tables into the integrated fact table:
// one row per municipality, year and month, anchored on the geometry table.
package integrate

import (
	"slices"

	"go.uber.org/zap"

	"github.com/KaramelBytes/crimeloom/internal/config"
	"github.com/KaramelBytes/crimeloom/internal/geo"
	"github.com/KaramelBytes/crimeloom/internal/records"
	"github.com/KaramelBytes/crimeloom/internal/table"
	"github.com/KaramelBytes/crimeloom/internal/textnorm"
)

// Inputs are the four cleaned gold base tables.
type Inputs struct {
	Geometry    *table.Table
	Crime       *table.Table
	Population  *table.Table
	Settlements *table.Table
}

// Stats summarizes an integration.
type Stats struct {
	Parts          int
	NullKeyParts   int
	Municipalities int
	CrimeRows      int
	// IncompleteCrime rows lack a code, year or month and join nothing.
	IncompleteCrime int
	// UnmatchedCrime rows carry a code absent from the geometry table.
	UnmatchedCrime int
	// UncollapsedGeometry municipalities kept their first part because
	// their parts could not be merged.
	UncollapsedGeometry int
	Rows                int
}

// Intermediate column names; none survives into the output.
const (
	colCategory = "categoria_canonica"
	colPopGroup = "grupo_poblacion"
)

var periodKeys = []string{records.ColCode, records.ColYear, records.ColMonth}

// Build runs the integration steps in order: settlements per municipality,
// crime totals by (municipality, year, month), the crime pivot, the
// population pivot with its aggregates, derived ratios, the synthetic date
// and the day-type counts. Geometry parts are collapsed to one row per
// municipality before any join.
func Build(in Inputs, c config.Integration, log *zap.Logger) (*table.Table, Stats, error) {
	parts, err := records.Municipalities(in.Geometry)
	if err != nil {
		return nil, Stats{}, err
	}
	crimes, err := records.CrimeEvents(in.Crime)
	if err != nil {
		return nil, Stats{}, err
	}
	pops, err := records.Populations(in.Population)
	if err != nil {
		return nil, Stats{}, err
	}
	setts, err := records.Settlements(in.Settlements)
	if err != nil {
		return nil, Stats{}, err
	}

	st := Stats{Parts: len(parts), CrimeRows: len(crimes)}
	base, err := collapse(records.MunicipalityTable(parts), &st, log)
	if err != nil {
		return nil, st, err
	}
	st.Municipalities = base.NumRows()
	codes, _ := base.Column(records.ColCode)
	known := make(map[int64]bool, base.NumRows())
	for i := 0; i < base.NumRows(); i++ {
		known[codes.Int(i).V] = true
	}

	// 1. settlements
	base, err = countSettlements(base, records.SettlementTable(setts))
	if err != nil {
		return nil, st, err
	}

	// 2, 3, 7. crime totals, pivot and day-type counts
	cats := canonical(c.Categories)
	crime, err := aggregateCrime(records.CrimeTable(crimes), cats, known, &st)
	if err != nil {
		return nil, st, err
	}

	// 4. population pivot
	pop, err := pivotPopulation(records.PopulationTable(pops))
	if err != nil {
		return nil, st, err
	}

	t, err := assemble(base, crime, pop, cats)
	if err != nil {
		return nil, st, err
	}
	// 5. ratios
	t, err = DeriveRatios(t)
	if err != nil {
		return nil, st, err
	}
	t, err = t.Select(Columns(c.Categories)...)
	if err != nil {
		return nil, st, err
	}
	st.Rows = t.NumRows()
	log.Info("gold integrated",
		zap.Int("municipalities", st.Municipalities),
		zap.Int("parts", st.Parts),
		zap.Int("uncollapsed_geometry", st.UncollapsedGeometry),
		zap.Int("crime_rows", st.CrimeRows),
		zap.Int("unmatched_crime", st.UnmatchedCrime),
		zap.Int("incomplete_crime", st.IncompleteCrime),
		zap.Int("rows", st.Rows))
	return t, st, nil
}

// collapse groups geometry parts by municipality code, ascending. Each
// attribute keeps its first non-null value and the parts are merged into
// one geometry. Parts without a code cannot join and are counted only.
// When the parts cannot be merged the first part stands for the
// municipality.
func collapse(geom *table.Table, st *Stats, log *zap.Logger) (*table.Table, error) {
	codes, err := geom.Col(records.ColCode)
	if err != nil {
		return nil, err
	}
	for i := 0; i < geom.NumRows(); i++ {
		if codes.IsNull(i) {
			st.NullKeyParts++
		}
	}
	shapes, err := geom.Col(records.ColGeometry)
	if err != nil {
		return nil, err
	}

	g := geom.GroupBy(records.ColCode)
	base, err := g.Agg(
		table.FirstValid(records.ColMunicipality),
		table.FirstValid(records.ColDepartment),
		table.FirstValid(records.ColDeptCode),
		table.FirstValid(records.ColArea),
	)
	if err != nil {
		return nil, err
	}
	merged := table.NewColumn(records.ColGeometry, table.Bytes, g.Len())
	for i := 0; i < g.Len(); i++ {
		var parts [][]byte
		for _, r := range g.Rows(i) {
			if b := shapes.Bytes(r); len(b) > 0 {
				parts = append(parts, b)
			}
		}
		switch len(parts) {
		case 0:
			merged.AppendNull()
		case 1:
			merged.AppendBytes(parts[0])
		default:
			wkb, err := geo.CollapseWKB(parts)
			if err != nil {
				st.UncollapsedGeometry++
				log.Warn("geometry parts not merged, keeping the first",
					zap.Int64("codigo_municipio", codes.Int(g.Rows(i)[0]).V),
					zap.Int("parts", len(parts)),
					zap.Error(err))
				wkb = parts[0]
			}
			merged.AppendBytes(wkb)
		}
	}
	base, err = base.With(merged)
	if err != nil {
		return nil, err
	}
	return base.SortBy(records.ColCode)
}

// countSettlements adds the number of registry settlements per
// municipality; municipalities without one count zero.
func countSettlements(base, setts *table.Table) (*table.Table, error) {
	counts, err := setts.GroupBy(records.ColCode).Agg(table.Count().As(ColSettlements))
	if err != nil {
		return nil, err
	}
	out, err := base.Join(counts, table.JoinOptions{Type: table.LeftJoin, On: []string{records.ColCode}})
	if err != nil {
		return nil, err
	}
	return out.FillNull(0, ColSettlements)
}

// categorySet maps folded category names to their configured spelling and
// keeps the configured order.
type categorySet struct {
	names  []string
	byFold map[string]string
}

func canonical(categories []string) categorySet {
	cs := categorySet{byFold: map[string]string{}}
	for _, c := range categories {
		name, ok := textnorm.Category(c)
		if !ok {
			continue
		}
		fold, _ := textnorm.Name(name)
		if _, dup := cs.byFold[fold]; dup {
			continue
		}
		cs.byFold[fold] = name
		cs.names = append(cs.names, name)
	}
	return cs
}

func (cs categorySet) lookup(crime table.NullString) (string, bool) {
	if !crime.Valid {
		return "", false
	}
	fold, ok := textnorm.Name(crime.V)
	if !ok {
		return "", false
	}
	name, ok := cs.byFold[fold]
	return name, ok
}

// aggregateCrime sums crime rows per (municipality, year, month): the total,
// one column per configured category and the day-type counts, sorted by
// key. Rows without a full key or with an unknown municipality are counted
// and dropped. A null count adds nothing.
func aggregateCrime(crime *table.Table, cats categorySet, known map[int64]bool, st *Stats) (*table.Table, error) {
	keyCols := make([]*table.Column, len(periodKeys))
	for i, k := range periodKeys {
		c, err := crime.Col(k)
		if err != nil {
			return nil, err
		}
		keyCols[i] = c
	}
	complete := crime.Filter(func(i int) bool {
		for _, c := range keyCols {
			if c.IsNull(i) {
				return false
			}
		}
		return true
	})
	st.IncompleteCrime += crime.NumRows() - complete.NumRows()
	codes, _ := complete.Column(records.ColCode)
	matched := complete.Filter(func(i int) bool { return known[codes.Int(i).V] })
	st.UnmatchedCrime += complete.NumRows() - matched.NumRows()

	names, err := matched.Col(records.ColCrime)
	if err != nil {
		return nil, err
	}
	category := table.NewColumn(colCategory, table.String, matched.NumRows())
	for i := 0; i < matched.NumRows(); i++ {
		if name, ok := cats.lookup(names.Str(i)); ok {
			category.AppendStr(table.Str(name))
			continue
		}
		category.AppendNull()
	}
	matched, err = matched.With(category)
	if err != nil {
		return nil, err
	}

	totals, err := matched.GroupBy(periodKeys...).Agg(
		table.Sum(records.ColCount).As(ColTotalCrimes),
		table.Sum(records.ColWeekday).As(ColWeekdays),
		table.Sum(records.ColWeekend).As(ColWeekends),
		table.Sum(records.ColHoliday).As(ColHolidays),
		table.Sum(records.ColWorkingDay).As(ColWorkingDays),
	)
	if err != nil {
		return nil, err
	}
	byCategory, err := matched.Pivot(periodKeys, colCategory, records.ColCount)
	if err != nil {
		return nil, err
	}
	var missing []*table.Column
	for _, name := range cats.names {
		if !byCategory.Has(name) {
			missing = append(missing, nullColumn(name, table.Float64, byCategory.NumRows()))
		}
	}
	if byCategory, err = byCategory.With(missing...); err != nil {
		return nil, err
	}
	if byCategory, err = byCategory.Select(append(slices.Clone(periodKeys), cats.names...)...); err != nil {
		return nil, err
	}

	out, err := totals.Join(byCategory, table.JoinOptions{Type: table.LeftJoin, On: periodKeys})
	if err != nil {
		return nil, err
	}
	fill := append([]string{ColTotalCrimes, ColWeekdays, ColWeekends, ColHolidays, ColWorkingDays}, cats.names...)
	if out, err = out.FillNull(0, fill...); err != nil {
		return nil, err
	}
	return out.SortBy(periodKeys...)
}

// pivotPopulation spreads population counts into one column per gender and
// age group, keyed by (municipality, year), and adds the aggregates. A
// group without a count is null; an aggregate is null only when all of its
// groups are.
func pivotPopulation(pop *table.Table) (*table.Table, error) {
	need := []string{records.ColCode, records.ColYear, records.ColGender, records.ColAgeGroup, records.ColPopulation}
	cols := make([]*table.Column, len(need))
	for i, n := range need {
		c, err := pop.Col(n)
		if err != nil {
			return nil, err
		}
		cols[i] = c
	}
	valid := pop.Filter(func(i int) bool {
		for _, c := range cols {
			if c.IsNull(i) {
				return false
			}
		}
		return true
	})
	gender, _ := valid.Column(records.ColGender)
	group, _ := valid.Column(records.ColAgeGroup)
	key := table.NewColumn(colPopGroup, table.String, valid.NumRows())
	for i := 0; i < valid.NumRows(); i++ {
		key.AppendStr(table.Str(PopulationColumn(gender.Text(i), group.Text(i))))
	}
	valid, err := valid.With(key)
	if err != nil {
		return nil, err
	}
	wide, err := valid.Pivot([]string{records.ColCode, records.ColYear}, colPopGroup, records.ColPopulation)
	if err != nil {
		return nil, err
	}

	popCols := PopulationColumns()
	var missing []*table.Column
	for _, c := range popCols {
		if !wide.Has(c) {
			missing = append(missing, nullColumn(c, table.Int64, wide.NumRows()))
		}
	}
	if wide, err = wide.With(missing...); err != nil {
		return nil, err
	}
	if wide, err = wide.Select(append([]string{records.ColCode, records.ColYear}, popCols...)...); err != nil {
		return nil, err
	}

	var genderCols []string
	for _, g := range records.Genders {
		genderCols = append(genderCols, matching(popCols, PopulationColumn(g, ""))...)
	}
	return wide.With(
		sumColumns(wide, ColPopTotal, genderCols),
		sumColumns(wide, ColPopMinors, matching(popCols, PopulationColumn("", records.Minors))),
		sumColumns(wide, ColPopAdults, matching(popCols, PopulationColumn("", records.Adults))),
		sumColumns(wide, ColPopAdolescents, matching(popCols, PopulationColumn("", records.Adolescents))),
	)
}
