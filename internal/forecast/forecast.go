// Package forecast provides the baseline yearly predictor.
package forecast

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/crimeloom/internal/analytics"
	"github.com/KaramelBytes/crimeloom/internal/textnorm"
)

// Window is how many of the most recent years the baseline averages.
const Window = 3

var (
	// ErrNoData means no fact matches the municipality and crime.
	ErrNoData = errors.New("no historical data for that municipality and crime")
	// ErrNoHistory means data exists but none before the target year.
	ErrNoHistory = errors.New("no years before the target year to average")
)

// YearTotal is the yearly sum of one series.
type YearTotal struct {
	Year  int64   `json:"anio"`
	Cases float64 `json:"casos"`
}

// Prediction is the baseline estimate and the history it was built from.
type Prediction struct {
	Municipality string      `json:"municipio"`
	Crime        string      `json:"delito"`
	Year         int64       `json:"anio"`
	Value        float64     `json:"prediccion"`
	History      []YearTotal `json:"historia"`
}

func key(s string) string {
	k, _ := textnorm.Name(s)
	return k
}

// Baseline predicts the cases of crime in municipality for the target year
// as the mean of the yearly sums of the last Window years before it.
// Municipality and crime match ignoring case and accents.
func Baseline(facts []analytics.Fact, municipality, crime string, year int64) (Prediction, error) {
	muni, cr := key(municipality), key(crime)
	p := Prediction{Municipality: strings.ToUpper(strings.TrimSpace(municipality)), Crime: crime, Year: year}
	sums := map[int64]float64{}
	found := false
	for _, f := range facts {
		if key(f.Municipality) != muni || key(f.Crime) != cr {
			continue
		}
		found = true
		p.Municipality, p.Crime = f.Municipality, f.Crime
		if f.Year < year {
			sums[f.Year] += f.Count
		}
	}
	if !found {
		return p, fmt.Errorf("%s / %s: %w", municipality, crime, ErrNoData)
	}
	if len(sums) == 0 {
		return p, fmt.Errorf("%s / %s before %d: %w", municipality, crime, year, ErrNoHistory)
	}
	for y, n := range sums {
		p.History = append(p.History, YearTotal{Year: y, Cases: n})
	}
	sort.Slice(p.History, func(i, j int) bool { return p.History[i].Year < p.History[j].Year })
	tail := p.History[max(0, len(p.History)-Window):]
	vals := make([]float64, len(tail))
	for i, h := range tail {
		vals[i] = h.Cases
	}
	p.Value = stat.Mean(vals, nil)
	return p, nil
}
