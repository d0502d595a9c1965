package sources

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/crimeloom/internal/config"
	"github.com/KaramelBytes/crimeloom/internal/geokey"
	"github.com/KaramelBytes/crimeloom/internal/population"
	"github.com/KaramelBytes/crimeloom/internal/records"
	"github.com/KaramelBytes/crimeloom/internal/schema"
	"github.com/KaramelBytes/crimeloom/internal/table"
	"github.com/KaramelBytes/crimeloom/internal/textnorm"
)

// TerriDataMapping resolves the columns of a TerriData population export.
var TerriDataMapping = schema.Mapping{
	Table: "terridata",
	Fields: []schema.Field{
		{Name: records.ColCode, Aliases: []string{"Código Entidad"}, Required: true, Kind: table.String},
		{Name: records.ColMunicipality, Aliases: []string{"Entidad"}, Kind: table.String},
		{Name: records.ColDepartment, Aliases: []string{"Departamento"}, Required: true, Kind: table.String},
		{Name: records.ColYear, Aliases: []string{"Año"}, Required: true, Kind: table.String},
		{Name: records.ColPopulation, Aliases: []string{"Dato Numérico"}, Required: true, Kind: table.String},
		{Name: "indicador", Aliases: []string{"Indicador"}, Required: true, Kind: table.String},
		{Name: "unidad", Aliases: []string{"Unidad de Medida"}, Required: true, Kind: table.String},
	},
}

// ReadPipeTable parses a pipe-separated text file with a header row.
func ReadPipeTable(r io.Reader) (*table.Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = '|'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty file")
	}
	header := rows[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	return table.FromStrings(header, rows[1:]), nil
}

// TerriDataOptions filters one vintage.
type TerriDataOptions struct {
	Department string
	FromYear   int
	ToYear     int
}

// TerriDataStats counts rows removed by each rule.
type TerriDataStats struct {
	Input      int
	Department int
	Years      int
	Percentage int
	Unassigned int
}

// ParseTerriData turns a raw export into population records aggregated by
// (code, year, gender, group).
func ParseTerriData(raw *table.Table, o TerriDataOptions) ([]records.Population, TerriDataStats, error) {
	t, err := TerriDataMapping.Resolve(raw)
	if err != nil {
		return nil, TerriDataStats{}, err
	}
	st := TerriDataStats{Input: t.NumRows()}
	dept, _ := textnorm.Name(o.Department)
	var keys geokey.Resolver
	var out []records.Population
	for i := 0; i < t.NumRows(); i++ {
		d, _ := textnorm.Name(cell(t, records.ColDepartment, i))
		if d != dept {
			st.Department++
			continue
		}
		year := table.ParseInt(cell(t, records.ColYear, i))
		if !year.Valid || (o.FromYear > 0 && year.V < int64(o.FromYear)) || (o.ToYear > 0 && year.V > int64(o.ToYear)) {
			st.Years++
			continue
		}
		label := cell(t, "indicador", i)
		if population.IsPercentage(label) {
			st.Percentage++
			continue
		}
		gender, gok := population.GenderOf(cell(t, "unidad", i))
		group, aok := population.GroupOf(label)
		if !gok || !aok {
			st.Unassigned++
			continue
		}
		muni, mok := textnorm.Name(cell(t, records.ColMunicipality, i))
		out = append(out, records.Population{
			Code:         keys.FromNumeric(cell(t, records.ColCode, i)),
			Municipality: table.NullString{V: muni, Valid: mok},
			Department:   table.Str(d),
			Year:         year,
			Gender:       table.Str(gender),
			AgeGroup:     table.Str(group),
			Count:        population.ParseCount(cell(t, records.ColPopulation, i)),
		})
	}
	return population.Aggregate(out), st, nil
}

// ReadVintages reads every configured vintage under dir and concatenates
// them. Overlapping years fail with *population.OverlapError.
func ReadVintages(dir string, c *config.Pipeline) ([]records.Population, []TerriDataStats, error) {
	var (
		parts [][]records.Population
		stats []TerriDataStats
	)
	for _, v := range c.Silver.Vintages {
		path := filepath.Join(dir, v.File)
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, err
		}
		raw, err := ReadPipeTable(f)
		f.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", path, err)
		}
		ps, st, err := ParseTerriData(raw, TerriDataOptions{
			Department: c.Department.Name,
			FromYear:   v.FromYear,
			ToYear:     v.ToYear,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", path, err)
		}
		parts = append(parts, ps)
		stats = append(stats, st)
	}
	all, err := population.Concat(parts...)
	if err != nil {
		return nil, nil, err
	}
	return population.Aggregate(all), stats, nil
}
