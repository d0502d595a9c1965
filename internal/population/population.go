// Package population holds the census rules: age-group classification of
// indicator labels, count parsing and the vintage overlap check.
package population

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/KaramelBytes/crimeloom/internal/records"
	"github.com/KaramelBytes/crimeloom/internal/table"
)

// MinAge returns the first integer embedded in an indicator label such as
// "Población masculina de 12 a 17 años".
func MinAge(label string) (int, bool) {
	start := -1
	for i := 0; i <= len(label); i++ {
		digit := i < len(label) && label[i] >= '0' && label[i] <= '9'
		if digit && start < 0 {
			start = i
		}
		if !digit && start >= 0 {
			n, err := strconv.Atoi(label[start:i])
			return n, err == nil
		}
	}
	return 0, false
}

// Group maps a minimum age onto MENORES (<=11), ADOLESCENTES (12-17) or
// ADULTOS.
func Group(age int) string {
	switch {
	case age <= 11:
		return records.Minors
	case age <= 17:
		return records.Adolescents
	default:
		return records.Adults
	}
}

// GroupOf classifies a label; labels without digits have no group.
func GroupOf(label string) (string, bool) {
	age, ok := MinAge(label)
	if !ok {
		return "", false
	}
	return Group(age), true
}

// IsPercentage reports labels that carry a share rather than a count.
func IsPercentage(label string) bool {
	return strings.Contains(strings.ToLower(label), "porcentaje")
}

// GenderOf derives the gender from the unit of measure.
func GenderOf(unit string) (string, bool) {
	u := strings.ToLower(unit)
	switch {
	case strings.Contains(u, "hombre"):
		return records.Male, true
	case strings.Contains(u, "mujer"):
		return records.Female, true
	default:
		return "", false
	}
}

// ParseCount reads a count written with "." thousands and "," decimals
// ("1.234,6" is 1235).
func ParseCount(s string) table.NullInt {
	s = strings.TrimSpace(s)
	if s == "" {
		return table.NullInt{}
	}
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return table.NullInt{}
	}
	return table.Int(int64(math.RoundToEven(f)))
}

// OverlapError reports years supplied by more than one census vintage.
type OverlapError struct {
	Years []int
}

func (e *OverlapError) Error() string {
	parts := make([]string, len(e.Years))
	for i, y := range e.Years {
		parts[i] = strconv.Itoa(y)
	}
	return fmt.Sprintf("population vintages overlap in years %s", strings.Join(parts, ", "))
}

// Concat joins vintages that must cover disjoint years. A year present in
// two vintages is an *OverlapError.
func Concat(vintages ...[]records.Population) ([]records.Population, error) {
	owner := map[int64]int{}
	overlap := map[int64]struct{}{}
	var out []records.Population
	for i, v := range vintages {
		seen := map[int64]struct{}{}
		for _, p := range v {
			if !p.Year.Valid {
				continue
			}
			seen[p.Year.V] = struct{}{}
		}
		for y := range seen {
			if _, ok := owner[y]; ok {
				overlap[y] = struct{}{}
				continue
			}
			owner[y] = i
		}
		out = append(out, v...)
	}
	if len(overlap) > 0 {
		years := make([]int, 0, len(overlap))
		for y := range overlap {
			years = append(years, int(y))
		}
		sort.Ints(years)
		return nil, &OverlapError{Years: years}
	}
	return out, nil
}

type key struct {
	code, year    int64
	gender, group string
}

// Aggregate sums counts by (code, year, gender, group). Names keep the first
// value seen for the key. Output is sorted by key.
func Aggregate(ps []records.Population) []records.Population {
	idx := map[key]int{}
	var out []records.Population
	for _, p := range ps {
		k := key{p.Code.V, p.Year.V, p.Gender.V, p.AgeGroup.V}
		if i, ok := idx[k]; ok {
			if p.Count.Valid {
				out[i].Count = table.Int(out[i].Count.V + p.Count.V)
			}
			continue
		}
		idx[k] = len(out)
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Code.V != b.Code.V {
			return a.Code.V < b.Code.V
		}
		if a.Year.V != b.Year.V {
			return a.Year.V < b.Year.V
		}
		if a.Gender.V != b.Gender.V {
			return a.Gender.V < b.Gender.V
		}
		return a.AgeGroup.V < b.AgeGroup.V
	})
	return out
}
