package dashboard

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkb"
	"go.uber.org/zap"

	"github.com/KaramelBytes/crimeloom/internal/forecast"
	"github.com/KaramelBytes/crimeloom/internal/integrate"
	"github.com/KaramelBytes/crimeloom/internal/records"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) listMunicipalities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.munis)
}

// CrimeSummary is one crime of /api/resumen.
type CrimeSummary struct {
	Crime    string   `json:"delito"`
	Cases    float64  `json:"casos"`
	MeanRate *float64 `json:"tasa_promedio"`
}

// Summary is the /api/resumen response.
type Summary struct {
	Year   int64          `json:"anio"`
	Total  float64        `json:"total"`
	Crimes []CrimeSummary `json:"delitos"`
}

// summary aggregates one year, the latest by default, per crime.
func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	year := s.latestYear()
	if v := r.URL.Query().Get("anio"); v != "" {
		y, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid anio")
			return
		}
		year = y
	}
	type acc struct {
		cases, rateSum float64
		rateN          int
	}
	byCrime := map[string]*acc{}
	for _, c := range s.categories {
		byCrime[c] = &acc{}
	}
	out := Summary{Year: year}
	for _, f := range s.facts {
		if f.Year != year {
			continue
		}
		a := byCrime[f.Crime]
		if a == nil {
			continue
		}
		a.cases += f.Count
		out.Total += f.Count
		if rt := f.Rate(); rt.Valid {
			a.rateSum += rt.V
			a.rateN++
		}
	}
	for _, c := range s.categories {
		a := byCrime[c]
		cs := CrimeSummary{Crime: c, Cases: a.cases}
		if a.rateN > 0 {
			m := a.rateSum / float64(a.rateN)
			cs.MeanRate = &m
		}
		out.Crimes = append(out.Crimes, cs)
	}
	writeJSON(w, http.StatusOK, out)
}

// Point is one month of /api/series/{codigo}.
type Point struct {
	YearMonth string   `json:"anio_mes"`
	Total     float64  `json:"total_delitos"`
	Rate      *float64 `json:"tasa,omitempty"`
}

func (s *Server) series(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.ParseInt(chi.URLParam(r, "codigo"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid codigo")
		return
	}
	codes := s.column(records.ColCode)
	ym := s.column(integrate.ColYearMonth)
	total := s.column(integrate.ColTotalCrimes)
	pop := s.column(integrate.ColPopTotal)
	if ym == nil || total == nil {
		writeError(w, http.StatusInternalServerError, "table has no monthly series")
		return
	}
	var out []Point
	for i := 0; i < s.table.NumRows(); i++ {
		if c := codes.Int(i); !c.Valid || c.V != code || ym.IsNull(i) {
			continue
		}
		p := Point{YearMonth: ym.Text(i), Total: total.Float(i).V}
		if pop != nil {
			if pv := pop.Float(i); pv.Valid && pv.V > 0 {
				rt := p.Total / pv.V * 100000
				p.Rate = &rt
			}
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		writeError(w, http.StatusNotFound, "municipality not found")
		return
	}
	sort.Slice(out, func(i, j int) bool { return out[i].YearMonth < out[j].YearMonth })
	writeJSON(w, http.StatusOK, out)
}

// geo renders one feature per municipality with its total crimes.
func (s *Server) geo(w http.ResponseWriter, r *http.Request) {
	codes := s.column(records.ColCode)
	geoms := s.column(records.ColGeometry)
	total := s.column(integrate.ColTotalCrimes)
	names := s.column(records.ColMunicipality)
	if geoms == nil {
		writeError(w, http.StatusInternalServerError, "table has no geometry")
		return
	}
	totals := map[int64]float64{}
	first := map[int64]int{}
	var order []int64
	for i := 0; i < s.table.NumRows(); i++ {
		c := codes.Int(i)
		if !c.Valid {
			continue
		}
		if _, ok := first[c.V]; !ok {
			first[c.V] = i
			order = append(order, c.V)
		}
		if total != nil {
			totals[c.V] += total.Float(i).V
		}
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	fc := &geojson.FeatureCollection{}
	for _, code := range order {
		i := first[code]
		raw := geoms.Bytes(i)
		if len(raw) == 0 {
			continue
		}
		g, err := wkb.Unmarshal(raw)
		if err != nil {
			s.log.Warn("undecodable geometry", zap.Int64("codigo_municipio", code), zap.Error(err))
			continue
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       strconv.FormatInt(code, 10),
			Geometry: g,
			Properties: map[string]any{
				records.ColCode:          code,
				records.ColMunicipality:  names.Text(i),
				integrate.ColTotalCrimes: totals[code],
			},
		})
	}
	body, err := fc.MarshalJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Write(body)
}

// AskResponse is the /api/ask response.
type AskResponse struct {
	Question     string `json:"pregunta"`
	Crime        string `json:"delito,omitempty"`
	Municipality string `json:"municipio,omitempty"`
	Year         int64  `json:"anio"`
	Answer       string `json:"respuesta"`
}

func (s *Server) ask(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing q")
		return
	}
	if len(q) > 300 {
		q = q[:300]
	}
	parsed := s.agent.Parse(q)
	writeJSON(w, http.StatusOK, AskResponse{
		Question:     q,
		Crime:        parsed.Crime,
		Municipality: parsed.Municipality,
		Year:         parsed.Year,
		Answer:       s.agent.Answer(q),
	})
}

func (s *Server) predict(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	muni, crime := q.Get("municipio"), q.Get("delito")
	if muni == "" || crime == "" {
		writeError(w, http.StatusBadRequest, "municipio and delito are required")
		return
	}
	year := s.latestYear() + 1
	if v := q.Get("anio"); v != "" {
		y, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid anio")
			return
		}
		year = y
	}
	p, err := forecast.Baseline(s.facts, muni, crime, year)
	switch {
	case errors.Is(err, forecast.ErrNoData), errors.Is(err, forecast.ErrNoHistory):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}
