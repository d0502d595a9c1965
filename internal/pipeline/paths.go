package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/KaramelBytes/crimeloom/internal/config"
)

// Dataset names of the data layout.
const (
	PoliceBronze     = "policia_bronze"
	SocrataBronze    = "socrata_bronze"
	GeoBronze        = "geo_bronze"
	DivipolaBronze   = "divipola_bronze"
	PopulationBronze = "poblacion_bronze"

	PoliceSilver     = "policia_silver"
	SocrataSilverDir = "socrata_silver"
	SocrataUnion     = "socrata_union"
	GeoSilver        = "geografia_silver"
	DivipolaSilver   = "divipola_silver"
	PopulationSilver = "poblacion_silver"

	GeoGold        = "geo_gold"
	PoliceGold     = "policia_gold"
	SocrataGold    = "socrata_gold"
	PopulationGold = "poblacion_gold"
	DivipolaGold   = "divipola_gold"

	Integrated = "gold_integrado"
	Analytics  = "gold_analytics"
	TimeSeries = "gold_timeseries"
	ModelDir   = "gold_model"
	Ledger     = "audit"
)

var layout = map[string]string{
	PoliceBronze:     "bronze/policia_scraping",
	SocrataBronze:    "bronze/socrata_api",
	GeoBronze:        "bronze/dane_geo/municipios.geojson",
	DivipolaBronze:   "bronze/dane_geo/divipola.xlsx",
	PopulationBronze: "bronze/poblacion_dane",

	PoliceSilver:     "silver/policia_scraping/policia_santander.parquet",
	SocrataSilverDir: "silver/socrata_api",
	SocrataUnion:     "silver/socrata_api/socrata_union.parquet",
	GeoSilver:        "silver/dane_geo/geografia_silver.parquet",
	DivipolaSilver:   "silver/dane_geo/divipola_silver.parquet",
	PopulationSilver: "silver/poblacion/poblacion_santander.parquet",

	GeoGold:        "gold/base/geo_gold.parquet",
	PoliceGold:     "gold/base/policia_gold.parquet",
	SocrataGold:    "gold/base/socrata_gold.parquet",
	PopulationGold: "gold/base/poblacion_gold.parquet",
	DivipolaGold:   "gold/base/divipola_gold.parquet",

	Integrated: "gold/gold_integrado.parquet",
	Analytics:  "gold/analytics/gold_analytics.parquet",
	TimeSeries: "gold/analytics/gold_timeseries.parquet",
	ModelDir:   "gold/model",
	Ledger:     "audit/crimeloom.db",
}

// Paths resolves dataset names under a data directory.
type Paths struct {
	Root string
}

// Of returns the path of a dataset. It panics on an unknown name.
func (p Paths) Of(dataset string) string {
	path, ok := p.Lookup(dataset)
	if !ok {
		panic(fmt.Sprintf("pipeline: unknown dataset %q", dataset))
	}
	return path
}

// Lookup returns the path of a dataset, if the name is known.
func (p Paths) Lookup(dataset string) (string, bool) {
	rel, ok := layout[dataset]
	if !ok {
		return "", false
	}
	return filepath.Join(p.Root, filepath.FromSlash(rel)), true
}

// Model returns the path of one model dataset.
func (p Paths) Model(name string) string {
	return filepath.Join(p.Of(ModelDir), name+".parquet")
}

// Socrata returns the silver path of one open-data export.
func (p Paths) Socrata(stem string) string {
	return filepath.Join(p.Of(SocrataSilverDir), stem+".parquet")
}

// Dirs lists the directories of the layout, for init.
func (p Paths) Dirs() []string {
	return []string{
		p.Of(PoliceBronze),
		p.Of(SocrataBronze),
		filepath.Dir(p.Of(GeoBronze)),
		p.Of(PopulationBronze),
		filepath.Dir(p.Of(PoliceSilver)),
		p.Of(SocrataSilverDir),
		filepath.Dir(p.Of(GeoSilver)),
		filepath.Dir(p.Of(PopulationSilver)),
		filepath.Dir(p.Of(GeoGold)),
		filepath.Dir(p.Of(Analytics)),
		p.Of(ModelDir),
		filepath.Dir(p.Of(Ledger)),
	}
}

// MissingInputError reports a required input that does not exist.
type MissingInputError struct {
	Dataset string
	Path    string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("missing input %s: expected at %s", e.Dataset, e.Path)
}

// Input is a required input of a stage. With a Pattern, Path is a directory
// that must hold at least one matching file.
type Input struct {
	Dataset string
	Path    string
	Pattern string
}

func (in Input) check() error {
	if in.Pattern == "" {
		if _, err := os.Stat(in.Path); err != nil {
			return &MissingInputError{Dataset: in.Dataset, Path: in.Path}
		}
		return nil
	}
	matches, err := filepath.Glob(filepath.Join(in.Path, in.Pattern))
	if err != nil || len(matches) == 0 {
		return &MissingInputError{Dataset: in.Dataset, Path: filepath.Join(in.Path, in.Pattern)}
	}
	return nil
}

func files(p Paths, names ...string) []Input {
	out := make([]Input, len(names))
	for i, n := range names {
		out[i] = Input{Dataset: n, Path: p.Of(n)}
	}
	return out
}

func bronzeInputs(p Paths, c *config.Pipeline) []Input {
	in := []Input{
		{Dataset: PoliceBronze, Path: p.Of(PoliceBronze), Pattern: "*.xlsx"},
		{Dataset: SocrataBronze, Path: p.Of(SocrataBronze), Pattern: "*.json"},
		{Dataset: GeoBronze, Path: p.Of(GeoBronze)},
		{Dataset: DivipolaBronze, Path: p.Of(DivipolaBronze)},
	}
	for _, v := range c.Silver.Vintages {
		in = append(in, Input{Dataset: PopulationBronze, Path: filepath.Join(p.Of(PopulationBronze), v.File)})
	}
	return in
}
