package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/KaramelBytes/crimeloom/internal/analytics"
	"github.com/KaramelBytes/crimeloom/internal/audit"
	"github.com/KaramelBytes/crimeloom/internal/cleaners"
	"github.com/KaramelBytes/crimeloom/internal/config"
	"github.com/KaramelBytes/crimeloom/internal/gapfill"
	"github.com/KaramelBytes/crimeloom/internal/integrate"
	"github.com/KaramelBytes/crimeloom/internal/modelsets"
	"github.com/KaramelBytes/crimeloom/internal/records"
	"github.com/KaramelBytes/crimeloom/internal/schema"
	"github.com/KaramelBytes/crimeloom/internal/sources"
	"github.com/KaramelBytes/crimeloom/internal/store"
	"github.com/KaramelBytes/crimeloom/internal/table"
)

func cleanInputs(p Paths, _ *config.Pipeline) []Input {
	return files(p, PoliceSilver, SocrataUnion, GeoSilver, DivipolaSilver, PopulationSilver)
}

func mergeInputs(p Paths, _ *config.Pipeline) []Input {
	return files(p, PoliceGold, SocrataGold)
}

func goldInputs(p Paths, _ *config.Pipeline) []Input {
	return files(p, GeoGold, PoliceGold, PopulationGold, DivipolaGold)
}

func analyticsInputs(p Paths, _ *config.Pipeline) []Input {
	return files(p, Integrated)
}

func modelInputs(p Paths, _ *config.Pipeline) []Input {
	return files(p, Analytics, PoliceGold)
}

func (e *env) read(ctx context.Context, dataset string) (*table.Table, error) {
	return store.Read(ctx, e.paths.Of(dataset))
}

func (e *env) write(dataset, path string, t *table.Table) error {
	if err := store.Write(path, t); err != nil {
		return fmt.Errorf("write %s: %w", dataset, err)
	}
	e.log.Debug("wrote table",
		zap.String("dataset", dataset),
		zap.String("path", path),
		zap.Int("rows", t.NumRows()),
		zap.Int("cols", t.NumCols()))
	return nil
}

func silverStage(ctx context.Context, e *env) (Result, error) {
	c, p := e.cfg, e.paths
	rules := sources.RulesFrom(c)
	var res Result

	raw, workbooks, err := sources.ReadPoliceDir(p.Of(PoliceBronze), sources.HeaderRange{From: c.Silver.HeaderFrom, To: c.Silver.HeaderTo})
	if err != nil {
		return res, err
	}
	police, st := sources.PoliceSilver(raw, rules)
	e.log.Info("police silver",
		zap.Int("workbooks", len(workbooks)),
		zap.Int("input", st.Input),
		zap.Int("other_department", st.Department),
		zap.Int("no_age", st.Age),
		zap.Int("no_gender", st.Gender),
		zap.Int("excluded", st.Excluded),
		zap.Int("output", st.Output))
	if err := e.write(PoliceSilver, p.Of(PoliceSilver), police); err != nil {
		return res, err
	}
	res.RowsIn += st.Input
	res.RowsOut += st.Output

	exports, err := filepath.Glob(filepath.Join(p.Of(SocrataBronze), "*.json"))
	if err != nil {
		return res, err
	}
	sort.Strings(exports)
	norm := schema.NewNormalizer(schema.DefaultSynonyms)
	parts := make([]*table.Table, 0, len(exports))
	for _, path := range exports {
		raw, err := sources.ReadSocrataJSON(path)
		if err != nil {
			return res, err
		}
		stem := sources.Stem(path)
		t, st, err := sources.SocrataSilver(raw, stem, norm, rules)
		if err != nil {
			return res, fmt.Errorf("%s: %w", path, err)
		}
		e.log.Info("socrata silver", zap.String("dataset", stem), zap.Int("input", st.Input), zap.Int("output", st.Output))
		if err := e.write(stem, p.Socrata(stem), t); err != nil {
			return res, err
		}
		res.RowsIn += st.Input
		parts = append(parts, t)
	}
	union, dd := sources.Union(parts...)
	if dd.Removed() > 0 {
		e.log.Warn("duplicate rows removed", zap.String("dataset", SocrataUnion), zap.Int("before", dd.Before), zap.Int("after", dd.After))
	}
	if err := e.dedup(ctx, SocrataUnion, dd.Before, dd.After); err != nil {
		return res, err
	}
	if err := e.write(SocrataUnion, p.Of(SocrataUnion), union); err != nil {
		return res, err
	}
	res.RowsOut += union.NumRows()

	ms, err := sources.ReadGeoJSON(p.Of(GeoBronze), c.Department.Code)
	if err != nil {
		return res, err
	}
	if err := e.write(GeoSilver, p.Of(GeoSilver), records.MunicipalityTable(ms)); err != nil {
		return res, err
	}
	res.RowsIn += len(ms)
	res.RowsOut += len(ms)

	ss, err := sources.ReadDivipola(p.Of(DivipolaBronze), c.Silver.DivipolaSheet, c.Silver.DivipolaHeader, c.Department.Name)
	if err != nil {
		return res, err
	}
	if err := e.write(DivipolaSilver, p.Of(DivipolaSilver), records.SettlementTable(ss)); err != nil {
		return res, err
	}
	res.RowsIn += len(ss)
	res.RowsOut += len(ss)

	ps, stats, err := sources.ReadVintages(p.Of(PopulationBronze), c)
	if err != nil {
		return res, err
	}
	for i, s := range stats {
		e.log.Info("population vintage",
			zap.String("file", c.Silver.Vintages[i].File),
			zap.Int("input", s.Input),
			zap.Int("other_department", s.Department),
			zap.Int("out_of_range", s.Years),
			zap.Int("percentage", s.Percentage),
			zap.Int("unassigned", s.Unassigned))
		res.RowsIn += s.Input
	}
	if err := e.write(PopulationSilver, p.Of(PopulationSilver), records.PopulationTable(ps)); err != nil {
		return res, err
	}
	res.RowsOut += len(ps)
	return res, nil
}

func cleanStage(ctx context.Context, e *env) (Result, error) {
	c, p := e.cfg, e.paths
	var res Result

	crimes := []struct {
		in, out, origin string
	}{
		{PoliceSilver, PoliceGold, records.OriginPrimary},
		{SocrataUnion, SocrataGold, records.OriginSecondary},
	}
	for _, cr := range crimes {
		t, err := e.read(ctx, cr.in)
		if err != nil {
			return res, err
		}
		out, st := cleaners.Crime(t, cr.origin, c.Cleaning, e.log)
		e.log.Info("crime cleaned",
			zap.String("dataset", cr.out),
			zap.Int("input", st.Input),
			zap.Int("null_key", st.NullKey),
			zap.Int("bad_date", st.BadDate),
			zap.Int("output", st.Output))
		if err := e.write(cr.out, p.Of(cr.out), out); err != nil {
			return res, err
		}
		res.RowsIn += st.Input
		res.RowsOut += out.NumRows()
	}

	geoT, err := e.read(ctx, GeoSilver)
	if err != nil {
		return res, err
	}
	g, gst, err := cleaners.Geography(geoT, c.Cleaning, e.log)
	if err != nil {
		return res, fmt.Errorf("%s: %w", GeoSilver, err)
	}
	if err := e.write(GeoGold, p.Of(GeoGold), g); err != nil {
		return res, err
	}
	res.RowsIn += gst.Input
	res.RowsOut += g.NumRows()

	steps := []struct {
		in, out string
		fn      func(*table.Table) (*table.Table, error)
	}{
		{PopulationSilver, PopulationGold, cleaners.Population},
		{DivipolaSilver, DivipolaGold, cleaners.Settlements},
	}
	for _, s := range steps {
		t, err := e.read(ctx, s.in)
		if err != nil {
			return res, err
		}
		out, err := s.fn(t)
		if err != nil {
			return res, fmt.Errorf("%s: %w", s.in, err)
		}
		if err := e.write(s.out, p.Of(s.out), out); err != nil {
			return res, err
		}
		res.RowsIn += t.NumRows()
		res.RowsOut += out.NumRows()
	}
	return res, nil
}

func mergeStage(ctx context.Context, e *env) (Result, error) {
	primary, err := e.read(ctx, PoliceGold)
	if err != nil {
		return Result{}, err
	}
	secondary, err := e.read(ctx, SocrataGold)
	if err != nil {
		return Result{}, err
	}
	out, rep, err := gapfill.Merge(primary, secondary, e.cfg.GapFill.Gaps)
	if err != nil {
		return Result{}, err
	}
	for _, cr := range rep.Categories {
		for _, a := range cr.Added {
			if err := e.gapFill(ctx, cr.Category, a.Year, a.Rows, audit.GapAdded); err != nil {
				return Result{}, err
			}
		}
		for _, y := range cr.Skipped {
			if err := e.gapFill(ctx, cr.Category, y, 0, audit.GapSkipped); err != nil {
				return Result{}, err
			}
		}
		for _, y := range cr.Missing {
			e.log.Warn("no secondary rows for gap", zap.String("category", cr.Category), zap.Int("year", y))
			if err := e.gapFill(ctx, cr.Category, y, 0, audit.GapMissing); err != nil {
				return Result{}, err
			}
		}
		e.log.Info("gap filled",
			zap.String("category", cr.Category),
			zap.Int("rows_added", cr.Rows()),
			zap.Ints("skipped", cr.Skipped),
			zap.Ints("missing", cr.Missing))
	}
	if err := e.dedup(ctx, PoliceGold, rep.Before, rep.After); err != nil {
		return Result{}, err
	}
	if err := e.write(PoliceGold, e.paths.Of(PoliceGold), out); err != nil {
		return Result{}, err
	}
	return Result{RowsIn: primary.NumRows() + secondary.NumRows(), RowsOut: out.NumRows()}, nil
}

func goldStage(ctx context.Context, e *env) (Result, error) {
	var in integrate.Inputs
	for _, x := range []struct {
		dataset string
		dst     **table.Table
	}{
		{GeoGold, &in.Geometry},
		{PoliceGold, &in.Crime},
		{PopulationGold, &in.Population},
		{DivipolaGold, &in.Settlements},
	} {
		t, err := e.read(ctx, x.dataset)
		if err != nil {
			return Result{}, err
		}
		*x.dst = t
	}
	t, st, err := integrate.Build(in, e.cfg.Integration, e.log)
	if err != nil {
		return Result{}, err
	}
	if err := e.write(Integrated, e.paths.Of(Integrated), t); err != nil {
		return Result{}, err
	}
	return Result{RowsIn: st.CrimeRows, RowsOut: st.Rows}, nil
}

func analyticsStage(ctx context.Context, e *env) (Result, error) {
	t, err := e.read(ctx, Integrated)
	if err != nil {
		return Result{}, err
	}
	rated, err := analytics.Rates(t, e.cfg.Analytics)
	if err != nil {
		return Result{}, err
	}
	full, err := analytics.TimeSeries(rated, e.cfg.Analytics)
	if err != nil {
		return Result{}, err
	}
	if err := e.write(Analytics, e.paths.Of(Analytics), full); err != nil {
		return Result{}, err
	}
	ts, err := full.Select(SeriesColumns(full, e.cfg.Analytics)...)
	if err != nil {
		return Result{}, err
	}
	if err := e.write(TimeSeries, e.paths.Of(TimeSeries), ts); err != nil {
		return Result{}, err
	}
	return Result{RowsIn: t.NumRows(), RowsOut: full.NumRows()}, nil
}

// SeriesColumns are the keys and time-series features of t, in that order.
func SeriesColumns(t *table.Table, c config.Analytics) []string {
	names := []string{
		records.ColCode, records.ColMunicipality, records.ColYear, records.ColMonth,
		integrate.ColYearMonth, records.ColDate, integrate.ColTotalCrimes,
	}
	for _, k := range c.Lags {
		names = append(names, analytics.LagColumn(k))
	}
	for _, w := range c.Windows {
		names = append(names, analytics.RollMeanColumn(w), analytics.RollStdColumn(w))
	}
	for _, k := range c.PctPeriods {
		names = append(names, analytics.PctChangeColumn(k))
	}
	names = append(names, analytics.ColMonthSin, analytics.ColMonthCos)
	out := names[:0]
	for _, n := range names {
		if t.Has(n) {
			out = append(out, n)
		}
	}
	return out
}

func modelStage(ctx context.Context, e *env) (Result, error) {
	a, err := e.read(ctx, Analytics)
	if err != nil {
		return Result{}, err
	}
	crime, err := e.read(ctx, PoliceGold)
	if err != nil {
		return Result{}, err
	}
	sets, err := modelsets.Build(a, crime, modelsets.Options{Models: e.cfg.Models, Crimes: e.cfg.Analytics.RateCrimes})
	if err != nil {
		return Result{}, err
	}
	res := Result{RowsIn: a.NumRows()}
	for _, ds := range sets {
		if err := e.write(ds.Name, e.paths.Model(ds.Name), ds.Table); err != nil {
			return res, err
		}
		res.RowsOut += ds.Table.NumRows()
	}
	return res, nil
}
