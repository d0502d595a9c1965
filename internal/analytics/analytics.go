// Package analytics derives per-capita rates and time-series features from
// the integrated table.
package analytics

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/crimeloom/internal/config"
	"github.com/KaramelBytes/crimeloom/internal/integrate"
	"github.com/KaramelBytes/crimeloom/internal/records"
	"github.com/KaramelBytes/crimeloom/internal/table"
)

// RateColumn names the rate column of a crime ("tasa_violencia_intrafamiliar").
func RateColumn(crime string) string {
	return "tasa_" + strings.ReplaceAll(strings.ToLower(strings.TrimSpace(crime)), " ", "_")
}

// Rates adds tasa_<crime> = count / poblacion_total * per for every
// configured crime and recomputes the derived ratios. Crimes without a
// column in t are skipped.
func Rates(t *table.Table, c config.Analytics) (*table.Table, error) {
	pop, err := t.Col(integrate.ColPopTotal)
	if err != nil {
		return nil, err
	}
	per := c.Per
	if per == 0 {
		per = 100000
	}
	var cols []*table.Column
	for _, crime := range c.RateCrimes {
		src, ok := t.Column(crime)
		if !ok {
			continue
		}
		out := table.NewColumn(RateColumn(crime), table.Float64, t.NumRows())
		for i := 0; i < t.NumRows(); i++ {
			r := table.Div(src.Float(i), pop.Float(i))
			if r.Valid {
				r = table.Float(r.V * per)
			}
			out.AppendFloat(r)
		}
		cols = append(cols, out)
	}
	out, err := t.With(cols...)
	if err != nil {
		return nil, err
	}
	return integrate.DeriveRatios(out)
}

// Feature column names.
func LagColumn(n int) string       { return fmt.Sprintf("lag_%d", n) }
func RollMeanColumn(n int) string  { return fmt.Sprintf("roll_mean_%d", n) }
func RollStdColumn(n int) string   { return fmt.Sprintf("roll_std_%d", n) }
func PctChangeColumn(n int) string { return fmt.Sprintf("pct_change_%d", n) }

const (
	ColMonthSin = "mes_sin"
	ColMonthCos = "mes_cos"
)

// Series holds the row indexes of one municipality's series ordered by
// (anio, mes). Rows without a year or month belong to no series.
type Series struct {
	Code int64
	Rows []int
}

// GroupSeries splits t into per-municipality series.
func GroupSeries(t *table.Table) ([]Series, error) {
	code, err := t.Col(records.ColCode)
	if err != nil {
		return nil, err
	}
	year, err := t.Col(records.ColYear)
	if err != nil {
		return nil, err
	}
	month, err := t.Col(records.ColMonth)
	if err != nil {
		return nil, err
	}
	byCode := map[int64][]int{}
	for i := 0; i < t.NumRows(); i++ {
		c := code.Int(i)
		if !c.Valid || year.IsNull(i) || month.IsNull(i) {
			continue
		}
		byCode[c.V] = append(byCode[c.V], i)
	}
	out := make([]Series, 0, len(byCode))
	for c, rows := range byCode {
		sort.SliceStable(rows, func(a, b int) bool {
			ya, yb := year.Int(rows[a]).V, year.Int(rows[b]).V
			if ya != yb {
				return ya < yb
			}
			return month.Int(rows[a]).V < month.Int(rows[b]).V
		})
		out = append(out, Series{Code: c, Rows: rows})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// TimeSeries adds lag, rolling mean and deviation, percent change and
// cyclical month features of total_delitos. Values at the start of a series
// without enough history are null.
func TimeSeries(t *table.Table, c config.Analytics) (*table.Table, error) {
	total, err := t.Col(integrate.ColTotalCrimes)
	if err != nil {
		return nil, err
	}
	month, err := t.Col(records.ColMonth)
	if err != nil {
		return nil, err
	}
	series, err := GroupSeries(t)
	if err != nil {
		return nil, err
	}
	n := t.NumRows()
	feats := newFeatures(n, c)
	for _, s := range series {
		vals := make([]table.NullFloat, len(s.Rows))
		for j, r := range s.Rows {
			vals[j] = total.Float(r)
		}
		for _, k := range c.Lags {
			put(feats[LagColumn(k)], s.Rows, Lag(vals, k))
		}
		for _, w := range c.Windows {
			put(feats[RollMeanColumn(w)], s.Rows, RollMean(vals, w))
			put(feats[RollStdColumn(w)], s.Rows, RollStd(vals, w))
		}
		for _, k := range c.PctPeriods {
			put(feats[PctChangeColumn(k)], s.Rows, PctChange(vals, k))
		}
	}
	sin, cos := make([]table.NullFloat, n), make([]table.NullFloat, n)
	for i := 0; i < n; i++ {
		if m := month.Int(i); m.Valid {
			sin[i] = table.Float(math.Sin(2 * math.Pi * float64(m.V) / 12))
			cos[i] = table.Float(math.Cos(2 * math.Pi * float64(m.V) / 12))
		}
	}
	var cols []*table.Column
	for _, name := range featureNames(c) {
		cols = append(cols, column(name, feats[name]))
	}
	cols = append(cols, column(ColMonthSin, sin), column(ColMonthCos, cos))
	return t.With(cols...)
}

func featureNames(c config.Analytics) []string {
	var out []string
	for _, k := range c.Lags {
		out = append(out, LagColumn(k))
	}
	for _, w := range c.Windows {
		out = append(out, RollMeanColumn(w))
	}
	for _, w := range c.Windows {
		out = append(out, RollStdColumn(w))
	}
	for _, k := range c.PctPeriods {
		out = append(out, PctChangeColumn(k))
	}
	return out
}

func newFeatures(n int, c config.Analytics) map[string][]table.NullFloat {
	m := map[string][]table.NullFloat{}
	for _, name := range featureNames(c) {
		m[name] = make([]table.NullFloat, n)
	}
	return m
}

func put(dst []table.NullFloat, rows []int, vals []table.NullFloat) {
	for j, r := range rows {
		dst[r] = vals[j]
	}
}

func column(name string, vals []table.NullFloat) *table.Column {
	c := table.NewColumn(name, table.Float64, len(vals))
	for _, v := range vals {
		c.AppendFloat(v)
	}
	return c
}

// Lag shifts x by k positions.
func Lag(x []table.NullFloat, k int) []table.NullFloat {
	out := make([]table.NullFloat, len(x))
	if k < 0 {
		return out
	}
	for i := k; i < len(x); i++ {
		out[i] = x[i-k]
	}
	return out
}

// window returns the w values ending at i, or false when the window is not
// full or holds a null.
func window(x []table.NullFloat, i, w int) ([]float64, bool) {
	if w <= 0 || i+1 < w {
		return nil, false
	}
	vals := make([]float64, 0, w)
	for _, v := range x[i+1-w : i+1] {
		if !v.Valid {
			return nil, false
		}
		vals = append(vals, v.V)
	}
	return vals, true
}

// RollMean is the mean over a full trailing window of w values.
func RollMean(x []table.NullFloat, w int) []table.NullFloat {
	out := make([]table.NullFloat, len(x))
	for i := range x {
		if vals, ok := window(x, i, w); ok {
			out[i] = table.Float(stat.Mean(vals, nil))
		}
	}
	return out
}

// RollStd is the sample standard deviation over a full trailing window.
func RollStd(x []table.NullFloat, w int) []table.NullFloat {
	out := make([]table.NullFloat, len(x))
	if w < 2 {
		return out
	}
	for i := range x {
		if vals, ok := window(x, i, w); ok {
			_, std := stat.MeanStdDev(vals, nil)
			out[i] = table.Float(std)
		}
	}
	return out
}

// PctChange is (x[i] - x[i-k]) / x[i-k]; null when the base is null or zero.
func PctChange(x []table.NullFloat, k int) []table.NullFloat {
	out := make([]table.NullFloat, len(x))
	if k <= 0 {
		return out
	}
	for i := k; i < len(x); i++ {
		if !x[i].Valid {
			continue
		}
		base := x[i-k]
		out[i] = table.Div(table.Float(x[i].V-base.V), base)
	}
	return out
}
