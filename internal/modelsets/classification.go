package modelsets

import (
	"fmt"
	"sort"

	"github.com/KaramelBytes/crimeloom/internal/analytics"
	"github.com/KaramelBytes/crimeloom/internal/integrate"
	"github.com/KaramelBytes/crimeloom/internal/records"
	"github.com/KaramelBytes/crimeloom/internal/table"
)

// Classification targets.
const (
	ColRiskLevel     = "nivel_riesgo"
	ColIncrease      = "incremento_delitos"
	ColCrimeCount    = "conteo"
	ColClusterLabel  = "cluster_delictivo"
	RiskLow          = "BAJO"
	RiskMedium       = "MEDIO"
	RiskHigh         = "ALTO"
	defaultRiskLow   = 0.33
	defaultRiskHigh  = 0.66
	defaultClusterNo = 4
)

// Quantile returns the q-quantile of sorted by linear interpolation between
// the closest ranks, positioned at q*(n-1).
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	switch {
	case n == 0:
		return 0
	case q <= 0:
		return sorted[0]
	case q >= 1:
		return sorted[n-1]
	}
	pos := q * float64(n-1)
	lo := int(pos)
	if lo+1 >= n {
		return sorted[n-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// Risk labels every row BAJO when total_delitos is at most the low
// quantile, MEDIO when at most the high quantile and ALTO above it. Rows
// without a total have a null label.
func Risk(t *table.Table, low, high float64) (*table.Table, error) {
	if low == 0 && high == 0 {
		low, high = defaultRiskLow, defaultRiskHigh
	}
	if low > high {
		return nil, fmt.Errorf("risk quantiles out of order: %v > %v", low, high)
	}
	total, err := t.Col(integrate.ColTotalCrimes)
	if err != nil {
		return nil, err
	}
	var vals []float64
	for i := 0; i < t.NumRows(); i++ {
		if v := total.Float(i); v.Valid {
			vals = append(vals, v.V)
		}
	}
	sort.Float64s(vals)
	p33, p66 := Quantile(vals, low), Quantile(vals, high)

	level := table.NewColumn(ColRiskLevel, table.String, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		v := total.Float(i)
		switch {
		case !v.Valid:
			level.AppendNull()
		case v.V <= p33:
			level.AppendStr(table.Str(RiskLow))
		case v.V <= p66:
			level.AppendStr(table.Str(RiskMedium))
		default:
			level.AppendStr(table.Str(RiskHigh))
		}
	}
	return t.With(level)
}

// Increase flags rows whose total grew against the previous period. Rows
// without a one-period percent change are removed.
func Increase(t *table.Table) (*table.Table, error) {
	pct, err := t.Col(analytics.PctChangeColumn(1))
	if err != nil {
		return nil, err
	}
	kept := t.Filter(func(i int) bool { return !pct.IsNull(i) })
	pct, _ = kept.Column(analytics.PctChangeColumn(1))
	flag := table.NewColumn(ColIncrease, table.Int64, kept.NumRows())
	for i := 0; i < kept.NumRows(); i++ {
		flag.AppendInt(table.Int(boolInt(pct.Float(i).V > 0)))
	}
	return kept.With(flag)
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// DominantCrime picks, per municipality, year and month, the crime with the
// most rows in the gold crime table.
func DominantCrime(crime *table.Table) (*table.Table, error) {
	return dominant(crime, records.ColCrime)
}

// DominantWeapon picks the most frequent weapon or means per municipality,
// year and month.
func DominantWeapon(crime *table.Table) (*table.Table, error) {
	return dominant(crime, records.ColWeapon)
}

// dominant counts rows per (code, year, month, value); rows with a null in
// any of those are ignored. Ties go to the smallest value.
func dominant(t *table.Table, target string) (*table.Table, error) {
	keys := make([]*table.Column, 0, 4)
	for _, n := range []string{records.ColCode, records.ColYear, records.ColMonth, target} {
		c, err := t.Col(n)
		if err != nil {
			return nil, err
		}
		keys = append(keys, c)
	}
	type grain struct{ code, year, month int64 }
	counts := map[grain]map[string]int64{}
	for i := 0; i < t.NumRows(); i++ {
		code, year, month, val := keys[0].Int(i), keys[1].Int(i), keys[2].Int(i), keys[3].Str(i)
		if !code.Valid || !year.Valid || !month.Valid || !val.Valid {
			continue
		}
		g := grain{code.V, year.V, month.V}
		if counts[g] == nil {
			counts[g] = map[string]int64{}
		}
		counts[g][val.V]++
	}
	grains := make([]grain, 0, len(counts))
	for g := range counts {
		grains = append(grains, g)
	}
	sort.Slice(grains, func(i, j int) bool {
		a, b := grains[i], grains[j]
		if a.code != b.code {
			return a.code < b.code
		}
		if a.year != b.year {
			return a.year < b.year
		}
		return a.month < b.month
	})

	n := len(grains)
	code := table.NewColumn(records.ColCode, table.Int64, n)
	year := table.NewColumn(records.ColYear, table.Int64, n)
	month := table.NewColumn(records.ColMonth, table.Int64, n)
	value := table.NewColumn(target, table.String, n)
	count := table.NewColumn(ColCrimeCount, table.Int64, n)
	for _, g := range grains {
		best, bestN := "", int64(-1)
		for v, c := range counts[g] {
			if c > bestN || (c == bestN && v < best) {
				best, bestN = v, c
			}
		}
		code.AppendInt(table.Int(g.code))
		year.AppendInt(table.Int(g.year))
		month.AppendInt(table.Int(g.month))
		value.AppendStr(table.Str(best))
		count.AppendInt(table.Int(bestN))
	}
	return table.New(code, year, month, value, count)
}

var clusterFeatures = []string{integrate.ColTotalCrimes, integrate.ColPopTotal, integrate.ColDensity}

// Clusters adds cluster_delictivo from k-means over total_delitos,
// poblacion_total and densidad_poblacional, with nulls read as zero. Labels
// are ordered by the centroid's total_delitos.
func Clusters(t *table.Table, k int) (*table.Table, error) {
	if k <= 0 {
		k = defaultClusterNo
	}
	cols := make([]*table.Column, len(clusterFeatures))
	for j, n := range clusterFeatures {
		c, err := t.Col(n)
		if err != nil {
			return nil, err
		}
		cols[j] = c
	}
	points := make([][]float64, t.NumRows())
	for i := range points {
		p := make([]float64, len(cols))
		for j, c := range cols {
			if v := c.Float(i); v.Valid {
				p[j] = v.V
			}
		}
		points[i] = p
	}
	labels := KMeans(points, k, 300)
	out := table.NewColumn(ColClusterLabel, table.Int64, len(labels))
	for _, l := range labels {
		out.AppendInt(table.Int(int64(l)))
	}
	return t.With(out)
}
