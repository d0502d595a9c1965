package sources

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	sf "github.com/peterstace/simplefeatures/geom"

	"github.com/KaramelBytes/crimeloom/internal/geokey"
	"github.com/KaramelBytes/crimeloom/internal/records"
	"github.com/KaramelBytes/crimeloom/internal/table"
)

// GeoProperties maps polygon attributes to silver column names.
var GeoProperties = map[string]string{
	"DPTO_CCDGO": records.ColDeptCode,
	"MPIO_CCNCT": records.ColCode,
	"DPTO_CNMBR": records.ColDepartment,
	"MPIO_CNMBR": records.ColMunicipality,
	"MPIO_NAREA": records.ColArea,
}

type featureCollection struct {
	Type string `json:"type"`
	CRS  *struct {
		Properties struct {
			Name string `json:"name"`
		} `json:"properties"`
	} `json:"crs"`
	Features []struct {
		Properties map[string]any  `json:"properties"`
		Geometry   json.RawMessage `json:"geometry"`
	} `json:"features"`
}

// ReadGeoJSON reads municipality polygons of one department. Geometries are
// stored as WKB without validation; repair happens in the cleaner. Features
// with a null geometry are kept with a nil geometry.
func ReadGeoJSON(path, deptCode string) ([]records.Municipality, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseGeoJSON(b, deptCode)
}

// ParseGeoJSON is ReadGeoJSON over an in-memory document.
func ParseGeoJSON(b []byte, deptCode string) ([]records.Municipality, error) {
	var fc featureCollection
	if err := json.Unmarshal(b, &fc); err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("decode geojson: want FeatureCollection, got %q", fc.Type)
	}
	crs := ""
	if fc.CRS != nil {
		crs = fc.CRS.Properties.Name
	}
	var (
		keys geokey.Resolver
		out  []records.Municipality
	)
	for i, f := range fc.Features {
		props := map[string]string{}
		for k, v := range f.Properties {
			if to, ok := GeoProperties[k]; ok {
				props[to] = strings.TrimSpace(jsonText(v))
			}
		}
		if deptCode != "" && strings.TrimLeft(props[records.ColDeptCode], "0") != strings.TrimLeft(deptCode, "0") {
			continue
		}
		var wkb []byte
		if raw := strings.TrimSpace(string(f.Geometry)); raw != "" && raw != "null" {
			g, err := sf.UnmarshalGeoJSON(f.Geometry, sf.NoValidate{})
			if err != nil {
				return nil, fmt.Errorf("feature %d: %w", i, err)
			}
			wkb = g.AsBinary()
		}
		out = append(out, records.Municipality{
			Code:       keys.FromNumeric(props[records.ColCode]),
			Name:       optional(props[records.ColMunicipality]),
			DeptCode:   optional(props[records.ColDeptCode]),
			Department: optional(props[records.ColDepartment]),
			Area:       table.ParseFloat(props[records.ColArea]),
			Geometry:   wkb,
			CRS:        crs,
		})
	}
	return out, nil
}
