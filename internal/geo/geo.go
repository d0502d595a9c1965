// Package geo repairs, explodes and re-collapses municipality polygons held
// as WKB.
package geo

import (
	"errors"
	"strings"

	sf "github.com/peterstace/simplefeatures/geom"
)

// ErrNoPolygons is returned when a set of parts holds no polygon.
var ErrNoPolygons = errors.New("no polygon parts")

// Decode parses WKB without validating it, so invalid polygons can still be
// repaired.
func Decode(wkb []byte) (sf.Geometry, error) {
	return sf.UnmarshalWKB(wkb, sf.NoValidate{})
}

// Repair returns g when it is already valid. Otherwise it rebuilds g as its
// unary union, which dissolves self-intersections the way a zero-width
// buffer does. ok is false when the result is still invalid; g is returned
// unchanged in that case.
func Repair(g sf.Geometry) (sf.Geometry, bool) {
	if g.Validate() == nil {
		return g, true
	}
	u, err := sf.UnaryUnion(g)
	if err != nil || u.Validate() != nil {
		return g, false
	}
	return u, true
}

// Explode splits a geometry into its polygon parts. Collections are walked
// recursively; non-areal members are dropped.
func Explode(g sf.Geometry) []sf.Polygon {
	switch g.Type() {
	case sf.TypePolygon:
		p := g.MustAsPolygon()
		if p.IsEmpty() {
			return nil
		}
		return []sf.Polygon{p}
	case sf.TypeMultiPolygon:
		mp := g.MustAsMultiPolygon()
		out := make([]sf.Polygon, 0, mp.NumPolygons())
		for i := 0; i < mp.NumPolygons(); i++ {
			if p := mp.PolygonN(i); !p.IsEmpty() {
				out = append(out, p)
			}
		}
		return out
	case sf.TypeGeometryCollection:
		gc := g.MustAsGeometryCollection()
		var out []sf.Polygon
		for i := 0; i < gc.NumGeometries(); i++ {
			out = append(out, Explode(gc.GeometryN(i))...)
		}
		return out
	default:
		return nil
	}
}

// Collapse merges the parts of one municipality back into a single polygon
// or multipolygon. When the union fails the parts are kept side by side.
func Collapse(parts []sf.Geometry) (sf.Geometry, error) {
	var polys []sf.Polygon
	for _, p := range parts {
		polys = append(polys, Explode(p)...)
	}
	switch len(polys) {
	case 0:
		return sf.Geometry{}, ErrNoPolygons
	case 1:
		return polys[0].AsGeometry(), nil
	}
	mp := sf.NewMultiPolygon(polys).AsGeometry()
	u, err := sf.UnaryUnion(mp)
	if err != nil {
		return mp, nil
	}
	return u, nil
}

// CollapseWKB is Collapse over WKB parts. Parts that fail to decode are
// skipped.
func CollapseWKB(parts [][]byte) ([]byte, error) {
	gs := make([]sf.Geometry, 0, len(parts))
	for _, b := range parts {
		if len(b) == 0 {
			continue
		}
		g, err := Decode(b)
		if err != nil {
			continue
		}
		gs = append(gs, g)
	}
	g, err := Collapse(gs)
	if err != nil {
		return nil, err
	}
	return g.AsBinary(), nil
}

// CRS returns crs, or def when crs is blank. The legacy GeoJSON name for
// WGS84 lon/lat is reported as def too when def is EPSG:4326.
func CRS(crs, def string) string {
	crs = strings.TrimSpace(crs)
	switch {
	case crs == "":
		return def
	case def == "EPSG:4326" && strings.HasSuffix(crs, "CRS84"):
		return def
	}
	return crs
}
