// Package profile summarizes a pipeline table as a compact markdown report.
package profile

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/crimeloom/internal/table"
)

// Options controls profiling.
type Options struct {
	// SampleRows is how many leading rows the report shows.
	SampleRows int
	// GroupBy computes per-group means of numeric columns.
	GroupBy []string
	// Correlations computes Pearson correlations among numeric columns.
	Correlations bool
	// Outliers counts values with a robust |z| (MAD) above OutlierThreshold.
	Outliers         bool
	OutlierThreshold float64
}

// DefaultOptions returns the options of the profile command.
func DefaultOptions() Options {
	return Options{SampleRows: 5, Outliers: true, OutlierThreshold: 3.5}
}

// Report describes one table.
type Report struct {
	Name     string
	Rows     int
	Cols     []ColumnSummary
	Samples  [][]string
	Groups   []GroupResult
	Corr     []PairCorr
	Warnings []string
}

// ColumnSummary holds the statistics of one column.
type ColumnSummary struct {
	Name    string
	Kind    string // numeric|categorical|binary
	NonNull int
	Missing int
	Unique  int
	Min     float64
	Max     float64
	Mean    float64
	Std     float64

	OutliersCount    int
	OutliersMaxAbsZ  float64
	OutlierThreshold float64

	TopValues []CategoryCount
}

type CategoryCount struct {
	Value string
	Count int
}

// GroupResult holds the numeric means of one group.
type GroupResult struct {
	Key   string
	Size  int
	Means map[string]float64
}

type PairCorr struct {
	A, B string
	R    float64
}

// Profile computes the report of t.
func Profile(name string, t *table.Table, opt Options) (*Report, error) {
	rep := &Report{Name: name, Rows: t.NumRows()}
	sampleRows := opt.SampleRows
	if sampleRows <= 0 {
		sampleRows = 5
	}
	for i := 0; i < min(sampleRows, t.NumRows()); i++ {
		row := make([]string, t.NumCols())
		for j, c := range t.Columns() {
			if c.Kind == table.Bytes {
				if !c.IsNull(i) {
					row[j] = fmt.Sprintf("<%d bytes>", len(c.Bytes(i)))
				}
				continue
			}
			row[j] = c.Text(i)
		}
		rep.Samples = append(rep.Samples, row)
	}

	numeric := map[string][]float64{}
	var numericOrder []string
	for _, c := range t.Columns() {
		s := ColumnSummary{Name: c.Name}
		for i := 0; i < c.Len(); i++ {
			if c.IsNull(i) {
				s.Missing++
			} else {
				s.NonNull++
			}
		}
		switch c.Kind {
		case table.Int64, table.Float64:
			s.Kind = "numeric"
			vals := nonNull(c)
			numeric[c.Name] = dense(c)
			numericOrder = append(numericOrder, c.Name)
			if len(vals) > 0 {
				s.Min, s.Max = vals[0], vals[0]
				for _, v := range vals {
					s.Min = math.Min(s.Min, v)
					s.Max = math.Max(s.Max, v)
				}
				s.Mean, s.Std = stat.MeanStdDev(vals, nil)
				if len(vals) < 2 {
					s.Std = 0
				}
			}
			if opt.Outliers && len(vals) >= 8 {
				s.OutlierThreshold = opt.OutlierThreshold
				if s.OutlierThreshold <= 0 {
					s.OutlierThreshold = 3.5
				}
				s.OutliersCount, s.OutliersMaxAbsZ = outliers(vals, s.OutlierThreshold)
			}
		case table.Bytes:
			s.Kind = "binary"
		default:
			s.Kind = "categorical"
			s.TopValues, s.Unique = topValues(c, 8)
		}
		rep.Cols = append(rep.Cols, s)
	}

	if len(opt.GroupBy) > 0 {
		groups, err := groupMeans(t, opt.GroupBy, numericOrder)
		if err != nil {
			return nil, err
		}
		rep.Groups = groups
	}
	if opt.Correlations {
		rep.Corr = correlations(numeric, numericOrder)
	}
	if t.NumRows() == 0 {
		rep.Warnings = append(rep.Warnings, "table has no rows")
	}
	return rep, nil
}

func nonNull(c *table.Column) []float64 {
	out := make([]float64, 0, c.Len())
	for i := 0; i < c.Len(); i++ {
		if v := c.Float(i); v.Valid {
			out = append(out, v.V)
		}
	}
	return out
}

// dense keeps row alignment, marking nulls with NaN.
func dense(c *table.Column) []float64 {
	out := make([]float64, c.Len())
	for i := range out {
		if v := c.Float(i); v.Valid {
			out[i] = v.V
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

func outliers(vals []float64, thr float64) (int, float64) {
	median, mad := medianMAD(vals)
	if mad == 0 {
		return 0, 0
	}
	var cnt int
	maxAbsZ := 0.0
	for _, v := range vals {
		az := math.Abs(0.6745 * (v - median) / mad)
		if az > thr {
			cnt++
		}
		maxAbsZ = math.Max(maxAbsZ, az)
	}
	return cnt, maxAbsZ
}

func topValues(c *table.Column, n int) ([]CategoryCount, int) {
	counts := map[string]int{}
	for i := 0; i < c.Len(); i++ {
		if v := c.Str(i); v.Valid {
			counts[v.V]++
		}
	}
	tops := make([]CategoryCount, 0, len(counts))
	for k, v := range counts {
		tops = append(tops, CategoryCount{Value: k, Count: v})
	}
	sort.Slice(tops, func(i, j int) bool {
		if tops[i].Count == tops[j].Count {
			return tops[i].Value < tops[j].Value
		}
		return tops[i].Count > tops[j].Count
	})
	if len(tops) > n {
		tops = tops[:n]
	}
	return tops, len(counts)
}

func groupMeans(t *table.Table, by []string, numeric []string) ([]GroupResult, error) {
	for _, n := range by {
		if !t.Has(n) {
			return nil, fmt.Errorf("group-by column %q not found", n)
		}
	}
	type acc struct {
		size int
		sum  map[string]float64
		cnt  map[string]int
	}
	groups := map[string]*acc{}
	cols := map[string]*table.Column{}
	for _, n := range numeric {
		cols[n], _ = t.Column(n)
	}
	keyCols := make([]*table.Column, len(by))
	for i, n := range by {
		keyCols[i], _ = t.Column(n)
	}
	for i := 0; i < t.NumRows(); i++ {
		parts := make([]string, len(by))
		for j, c := range keyCols {
			parts[j] = fmt.Sprintf("%s=%s", by[j], safeVal(c.Text(i)))
		}
		k := strings.Join(parts, " | ")
		g := groups[k]
		if g == nil {
			g = &acc{sum: map[string]float64{}, cnt: map[string]int{}}
			groups[k] = g
		}
		g.size++
		for _, n := range numeric {
			if v := cols[n].Float(i); v.Valid {
				g.sum[n] += v.V
				g.cnt[n]++
			}
		}
	}
	out := make([]GroupResult, 0, len(groups))
	for k, g := range groups {
		gr := GroupResult{Key: k, Size: g.size, Means: map[string]float64{}}
		for n, c := range g.cnt {
			gr.Means[n] = g.sum[n] / float64(c)
		}
		out = append(out, gr)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Size == out[j].Size {
			return out[i].Key < out[j].Key
		}
		return out[i].Size > out[j].Size
	})
	if len(out) > 20 {
		out = out[:20]
	}
	return out, nil
}

// correlations computes pairwise-complete Pearson r and returns the ten
// strongest pairs.
func correlations(numeric map[string][]float64, order []string) []PairCorr {
	var pairs []PairCorr
	for a := 0; a < len(order); a++ {
		for b := a + 1; b < len(order); b++ {
			xa, xb := numeric[order[a]], numeric[order[b]]
			var x, y []float64
			for i := range xa {
				if math.IsNaN(xa[i]) || math.IsNaN(xb[i]) {
					continue
				}
				x = append(x, xa[i])
				y = append(y, xb[i])
			}
			if len(x) < 2 {
				continue
			}
			r := stat.Correlation(x, y, nil)
			if math.IsNaN(r) || math.IsInf(r, 0) {
				continue
			}
			pairs = append(pairs, PairCorr{A: order[a], B: order[b], R: r})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		ai, aj := math.Abs(pairs[i].R), math.Abs(pairs[j].R)
		if ai == aj {
			return pairs[i].A+pairs[i].B < pairs[j].A+pairs[j].B
		}
		return ai > aj
	})
	if len(pairs) > 10 {
		pairs = pairs[:10]
	}
	return pairs
}

// Markdown renders the report.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Name != "" {
		fmt.Fprintf(&b, "File: %s\n", r.Name)
	}
	fmt.Fprintf(&b, "Rows: %d\n", r.Rows)
	fmt.Fprintf(&b, "Columns: %d\n\n", len(r.Cols))

	b.WriteString("[SCHEMA]\n")
	for _, c := range r.Cols {
		total := c.NonNull + c.Missing
		missPct := 0.0
		if total > 0 {
			missPct = float64(c.Missing) * 100.0 / float64(total)
		}
		fmt.Fprintf(&b, "- %s: %s (non-null %d, missing %.1f%%)", c.Name, c.Kind, c.NonNull, missPct)
		switch c.Kind {
		case "numeric":
			if c.NonNull > 0 {
				fmt.Fprintf(&b, ": min %.4g, max %.4g, mean %.4g, std %.4g", c.Min, c.Max, c.Mean, c.Std)
			}
			if c.OutlierThreshold > 0 {
				fmt.Fprintf(&b, "; outliers: %d above |z|>%.1f", c.OutliersCount, c.OutlierThreshold)
				if c.OutliersMaxAbsZ > 0 {
					fmt.Fprintf(&b, " (max |z|≈%.2f)", c.OutliersMaxAbsZ)
				}
			}
		case "categorical":
			if len(c.TopValues) > 0 {
				b.WriteString(": top ")
				for i, kv := range c.TopValues {
					if i > 0 {
						b.WriteString(", ")
					}
					fmt.Fprintf(&b, "%s(%d)", safeVal(kv.Value), kv.Count)
				}
				if c.Unique > len(c.TopValues) {
					fmt.Fprintf(&b, "; unique=%d", c.Unique)
				}
			}
		}
		b.WriteString("\n")
	}
	if len(r.Groups) > 0 {
		b.WriteString("\n[GROUP-BY SUMMARY]\n")
		for _, g := range r.Groups {
			fmt.Fprintf(&b, "- %s (n=%d)\n", g.Key, g.Size)
			keys := make([]string, 0, len(g.Means))
			for k := range g.Means {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys[:min(6, len(keys))] {
				fmt.Fprintf(&b, "  • %s: mean %.4g\n", k, g.Means[k])
			}
		}
	}
	if len(r.Corr) > 0 {
		b.WriteString("\n[CORRELATIONS]\n")
		for _, p := range r.Corr {
			fmt.Fprintf(&b, "- %s ~ %s: r=%.3f\n", p.A, p.B, p.R)
		}
	}
	if len(r.Samples) > 0 {
		b.WriteString("\n[HEAD]\n| ")
		for i, c := range r.Cols {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(c.Name)
		}
		b.WriteString(" |\n|")
		b.WriteString(strings.Repeat(" --- |", len(r.Cols)))
		b.WriteString("\n")
		for _, row := range r.Samples {
			b.WriteString("| ")
			for i, val := range row {
				if i > 0 {
					b.WriteString(" | ")
				}
				if len(val) > 80 {
					val = val[:77] + "..."
				}
				b.WriteString(safeVal(val))
			}
			b.WriteString(" |\n")
		}
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	return b.String()
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }

// medianMAD computes median and MAD (median absolute deviation) of values.
func medianMAD(vals []float64) (median, mad float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	cp := append([]float64(nil), vals...)
	sort.Float64s(cp)
	median = quantile(cp, 0.5)
	dev := make([]float64, len(cp))
	for i, v := range cp {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	return median, quantile(dev, 0.5)
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
