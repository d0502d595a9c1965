package analytics

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/KaramelBytes/crimeloom/internal/config"
	"github.com/KaramelBytes/crimeloom/internal/integrate"
	"github.com/KaramelBytes/crimeloom/internal/records"
	"github.com/KaramelBytes/crimeloom/internal/table"
)

func floats(vs ...float64) []table.NullFloat {
	out := make([]table.NullFloat, len(vs))
	for i, v := range vs {
		if math.IsNaN(v) {
			continue
		}
		out[i] = table.Float(v)
	}
	return out
}

var null = math.NaN()

func TestLag(t *testing.T) {
	got := Lag(floats(1, 2, 3, 4), 1)
	if diff := cmp.Diff(floats(null, 1, 2, 3), got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if got := Lag(floats(1, 2), 3); got[0].Valid || got[1].Valid {
		t.Errorf("lag longer than series should be all null: %+v", got)
	}
}

func TestRollingNeedsFullWindow(t *testing.T) {
	x := floats(2, 4, 6, 8)
	if diff := cmp.Diff(floats(null, null, 4, 6), RollMean(x, 3)); diff != "" {
		t.Errorf("mean (-want +got):\n%s", diff)
	}
	std := RollStd(x, 3)
	if std[0].Valid || std[1].Valid {
		t.Errorf("std before full window: %+v", std[:2])
	}
	// Sample deviation of {2,4,6} is 2.
	if !std[2].Valid || math.Abs(std[2].V-2) > 1e-12 {
		t.Errorf("std[2] = %+v, want 2", std[2])
	}
	if got := RollMean(floats(1, null, 3), 2); got[1].Valid || got[2].Valid {
		t.Errorf("windows with a null should be null: %+v", got)
	}
}

func TestPctChange(t *testing.T) {
	got := PctChange(floats(0, 5, 10, null, 20), 1)
	want := floats(null, null, 1, null, null)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestRateColumn(t *testing.T) {
	if got := RateColumn("VIOLENCIA INTRAFAMILIAR"); got != "tasa_violencia_intrafamiliar" {
		t.Errorf("got %q", got)
	}
}

func gold() *table.Table {
	code := table.IntColumn(records.ColCode, 68001, 68001, 68001, 68307)
	year := table.NewColumn(records.ColYear, table.Int64, 4)
	month := table.NewColumn(records.ColMonth, table.Int64, 4)
	for _, ym := range [][2]int64{{2023, 2}, {2023, 1}, {2023, 3}} {
		year.AppendInt(table.Int(ym[0]))
		month.AppendInt(table.Int(ym[1]))
	}
	year.AppendNull()
	month.AppendNull()
	pop := table.NewColumn(integrate.ColPopTotal, table.Int64, 4)
	for _, p := range []int64{200000, 200000, 0} {
		pop.AppendInt(table.Int(p))
	}
	pop.AppendNull()
	return table.MustNew(
		code, year, month,
		table.FloatColumn(integrate.ColTotalCrimes, 20, 10, 30, 0),
		table.FloatColumn("HURTOS", 20, 10, 30, 0),
		pop,
		table.IntColumn(integrate.ColPopMinors, 50000, 50000, 0, 0),
		table.IntColumn(integrate.ColPopAdults, 100000, 100000, 0, 0),
		table.IntColumn(integrate.ColPopAdolescents, 50000, 50000, 0, 0),
		table.FloatColumn(integrate.ColAreaKm2, 100, 100, 100, 0),
		table.IntColumn(integrate.ColSettlements, 2, 2, 2, 1),
	)
}

func TestRates(t *testing.T) {
	c := config.Default().Analytics
	out, err := Rates(gold(), c)
	if err != nil {
		t.Fatalf("rates: %v", err)
	}
	rate, err := out.Col("tasa_hurtos")
	if err != nil {
		t.Fatalf("%v", err)
	}
	if got := rate.Float(0); got != table.Float(10) {
		t.Errorf("tasa_hurtos[0] = %+v, want 10", got)
	}
	for _, i := range []int{2, 3} {
		if !rate.IsNull(i) {
			t.Errorf("tasa_hurtos[%d] should be null", i)
		}
	}
	if out.Has("tasa_homicidios") {
		t.Errorf("rate added for a crime without a column")
	}
	density, _ := out.Column(integrate.ColDensity)
	if got := density.Float(0); got != table.Float(2000) {
		t.Errorf("densidad[0] = %+v", got)
	}
	if !density.IsNull(2) {
		t.Errorf("densidad with zero population should be null")
	}
}

func TestTimeSeriesOrdersByPeriod(t *testing.T) {
	c := config.Default().Analytics
	out, err := TimeSeries(gold(), c)
	if err != nil {
		t.Fatalf("time series: %v", err)
	}
	lag, _ := out.Column(LagColumn(1))
	// Rows are (feb, jan, mar); jan has no history.
	if lag.Float(0) != table.Float(10) || !lag.IsNull(1) || lag.Float(2) != table.Float(20) {
		t.Errorf("lag_1 = %+v %+v %+v", lag.Float(0), lag.Float(1), lag.Float(2))
	}
	if !lag.IsNull(3) {
		t.Errorf("row without period should have null features")
	}
	mean, _ := out.Column(RollMeanColumn(3))
	if mean.Float(2) != table.Float(20) {
		t.Errorf("roll_mean_3 = %+v", mean.Float(2))
	}
	pct, _ := out.Column(PctChangeColumn(1))
	if pct.Float(0) != table.Float(1) {
		t.Errorf("pct_change_1 = %+v", pct.Float(0))
	}
	sin, _ := out.Column(ColMonthSin)
	cos, _ := out.Column(ColMonthCos)
	if math.Abs(sin.Float(2).V-1) > 1e-12 || math.Abs(cos.Float(2).V) > 1e-12 {
		t.Errorf("march encodes as (%v, %v)", sin.Float(2).V, cos.Float(2).V)
	}
	for _, name := range []string{LagColumn(12), RollMeanColumn(12), RollStdColumn(12), PctChangeColumn(12)} {
		if !out.Has(name) {
			t.Errorf("missing %s", name)
		}
	}
}

func TestLongSkipsRowsWithoutPeriod(t *testing.T) {
	in, err := gold().With(table.StringColumn(records.ColMunicipality, []string{"BUCARAMANGA", "BUCARAMANGA", "BUCARAMANGA", "GIRON"}))
	if err != nil {
		t.Fatalf("%v", err)
	}
	facts, err := Long(in, []string{"HURTOS", "HOMICIDIOS"})
	if err != nil {
		t.Fatalf("long: %v", err)
	}
	if len(facts) != 3 {
		t.Fatalf("facts = %d, want 3", len(facts))
	}
	if f := facts[0]; f.Crime != "HURTOS" || f.Month != 2 || f.Rate() != table.Float(10) {
		t.Errorf("facts[0] = %+v rate %+v", f, f.Rate())
	}
	if r := facts[2].Rate(); r.Valid {
		t.Errorf("rate with zero population = %+v", r)
	}
}
