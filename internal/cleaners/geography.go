// Package cleaners turns silver tables into the gold base tier. Each cleaner
// is a pure function of its input table and configuration.
package cleaners

import (
	"go.uber.org/zap"

	"github.com/KaramelBytes/crimeloom/internal/config"
	"github.com/KaramelBytes/crimeloom/internal/geo"
	"github.com/KaramelBytes/crimeloom/internal/records"
	"github.com/KaramelBytes/crimeloom/internal/table"
	"github.com/KaramelBytes/crimeloom/internal/textnorm"
)

// GeoStats summarizes a geography clean.
type GeoStats struct {
	Input        int
	NullGeometry int
	Undecodable  int
	Repaired     int
	Unrepairable int
	Output       int
}

// Geography drops rows without geometry, repairs invalid polygons, assigns
// the default CRS and explodes multipolygons into one row per part. Parts of
// one municipality share its code and are numbered from 0.
func Geography(t *table.Table, c config.Cleaning, log *zap.Logger) (*table.Table, GeoStats, error) {
	ms, err := records.Municipalities(t)
	if err != nil {
		return nil, GeoStats{}, err
	}
	st := GeoStats{Input: len(ms)}
	var out []records.Municipality
	for _, m := range ms {
		if len(m.Geometry) == 0 {
			st.NullGeometry++
			continue
		}
		g, err := geo.Decode(m.Geometry)
		if err != nil {
			st.Undecodable++
			log.Warn("undecodable geometry dropped", zap.Int64("codigo_municipio", m.Code.V), zap.Error(err))
			continue
		}
		valid := g.Validate() == nil
		g, ok := geo.Repair(g)
		switch {
		case !ok:
			st.Unrepairable++
			log.Warn("invalid geometry kept as is", zap.Int64("codigo_municipio", m.Code.V))
		case !valid:
			st.Repaired++
		}

		m.Name = normName(m.Name)
		m.Department = normName(m.Department)
		m.CRS = geo.CRS(m.CRS, c.DefaultCRS)

		parts := geo.Explode(g)
		if len(parts) == 0 {
			m.Geometry = g.AsBinary()
			m.Part = 0
			out = append(out, m)
			continue
		}
		for i, p := range parts {
			row := m
			row.Geometry = p.AsGeometry().AsBinary()
			row.Part = int64(i)
			out = append(out, row)
		}
	}
	st.Output = len(out)
	log.Debug("geography cleaned",
		zap.Int("input", st.Input),
		zap.Int("null_geometry", st.NullGeometry),
		zap.Int("repaired", st.Repaired),
		zap.Int("output", st.Output))
	return records.MunicipalityTable(out), st, nil
}

func normName(v table.NullString) table.NullString {
	if !v.Valid {
		return v
	}
	s, ok := textnorm.Name(v.V)
	return table.NullString{V: s, Valid: ok}
}

func normCategory(v table.NullString) table.NullString {
	if !v.Valid {
		return v
	}
	s, ok := textnorm.Category(v.V)
	return table.NullString{V: s, Valid: ok}
}
