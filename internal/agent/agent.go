// Package agent answers free-text questions about the crime statistics with
// a keyword matcher over the analytics facts.
package agent

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/KaramelBytes/crimeloom/internal/analytics"
	"github.com/KaramelBytes/crimeloom/internal/textnorm"
)

// keywords maps folded, lower-case fragments to crimes, checked in order.
var keywords = []struct {
	fragment string
	crime    string
}{
	{"homicid", "HOMICIDIOS"},
	{"asesin", "HOMICIDIOS"},
	{"hurto", "HURTOS"},
	{"robo", "HURTOS"},
	{"lesion", "LESIONES"},
	{"violencia intrafamiliar", "VIOLENCIA INTRAFAMILIAR"},
	{"intrafamiliar", "VIOLENCIA INTRAFAMILIAR"},
	{"sexual", "DELITOS SEXUALES"},
	{"informatic", "DELITOS INFORMÁTICOS"},
}

// Routes is appended to every answer.
const Routes = `**Rutas de atención recomendadas**

- Emergencias y situaciones en curso: **línea 123** (Policía Nacional).
- Violencia intrafamiliar y delitos sexuales:
  - **Comisarías de Familia** del municipio.
  - **Línea 155** (orientación a mujeres).
- Denuncias formales:
  - **Fiscalía General de la Nación** (URI / CAI / Casas de Justicia).
  - Estaciones de Policía más cercanas.

Recuerda que estos datos son estadísticos y no reemplazan las rutas oficiales de atención inmediata.`

// Query is what was understood from a question.
type Query struct {
	Crime        string
	Municipality string
	Year         int64
}

// Agent holds the facts it answers from.
type Agent struct {
	facts  []analytics.Fact
	munis  []string
	years  map[int64]bool
	latest int64
	print  *message.Printer
}

// New indexes facts.
func New(facts []analytics.Fact) *Agent {
	a := &Agent{facts: facts, years: map[int64]bool{}, print: message.NewPrinter(language.Spanish)}
	seen := map[string]bool{}
	for _, f := range facts {
		a.years[f.Year] = true
		a.latest = max(a.latest, f.Year)
		if f.Municipality != "" && !seen[f.Municipality] {
			seen[f.Municipality] = true
			a.munis = append(a.munis, f.Municipality)
		}
	}
	// Longest names first: a name contained in a longer one must not win.
	sort.Slice(a.munis, func(i, j int) bool {
		if len(a.munis[i]) != len(a.munis[j]) {
			return len(a.munis[i]) > len(a.munis[j])
		}
		return a.munis[i] < a.munis[j]
	})
	return a
}

func fold(s string) string { return strings.ToLower(textnorm.Fold(s)) }

// DetectCrime returns the crime of the first keyword found in the question.
func DetectCrime(question string) (string, bool) {
	q := fold(question)
	for _, k := range keywords {
		if strings.Contains(q, k.fragment) {
			return k.crime, true
		}
	}
	return "", false
}

// Parse extracts the crime, municipality and year of a question. The year
// defaults to the latest year with data.
func (a *Agent) Parse(question string) Query {
	q := fold(question)
	var out Query
	out.Crime, _ = DetectCrime(question)
	for _, m := range a.munis {
		if strings.Contains(q, fold(m)) {
			out.Municipality = m
			break
		}
	}
	out.Year = a.latest
	for _, tok := range strings.FieldsFunc(q, func(r rune) bool { return !unicode.IsDigit(r) }) {
		if len(tok) != 4 {
			continue
		}
		if y, err := strconv.ParseInt(tok, 10, 64); err == nil && a.years[y] {
			out.Year = y
			break
		}
	}
	return out
}

type summary struct {
	cases    float64
	rateSum  float64
	rateN    int
	rowCount int
}

func (a *Agent) summarize(q Query, year int64) summary {
	var s summary
	for _, f := range a.facts {
		if f.Year != year {
			continue
		}
		if q.Crime != "" && f.Crime != q.Crime {
			continue
		}
		if q.Municipality != "" && f.Municipality != q.Municipality {
			continue
		}
		s.rowCount++
		s.cases += f.Count
		if r := f.Rate(); r.Valid {
			s.rateSum += r.V
			s.rateN++
		}
	}
	return s
}

// Answer filters the facts by what the question mentions and reports cases,
// the mean rate per 100,000 inhabitants and the change against the previous
// year, followed by Routes.
func (a *Agent) Answer(question string) string {
	q := a.Parse(question)
	return a.Explain(q) + "\n\n" + Routes
}

// Explain renders the statistics of q without the routes.
func (a *Agent) Explain(q Query) string {
	filters := []string{fmt.Sprintf("año = **%d**", q.Year)}
	if q.Crime != "" {
		filters = append(filters, fmt.Sprintf("delito = **%s**", q.Crime))
	}
	if q.Municipality != "" {
		filters = append(filters, fmt.Sprintf("municipio = **%s**", q.Municipality))
	}
	cur := a.summarize(q, q.Year)
	if cur.rowCount == 0 {
		return "Con la información disponible no encontré registros que coincidan con tu pregunta. " +
			"Prueba preguntando solo por tipo de delito o solo por municipio."
	}
	cases := int64(cur.cases)
	var b strings.Builder
	fmt.Fprintf(&b, "Con los filtros %s, se registran **%s casos**", strings.Join(filters, ", "), a.num(cases))
	if cur.rateN > 0 {
		b.WriteString(a.print.Sprintf(" y una **tasa promedio de %.2f por cada 100.000 habitantes**.", cur.rateSum/float64(cur.rateN)))
	} else {
		b.WriteString(" (no hay población para calcular la tasa).")
	}
	prev := q.Year - 1
	if a.years[prev] {
		if p := a.summarize(q, prev); p.rowCount > 0 {
			diff := cases - int64(p.cases)
			switch {
			case diff > 0:
				fmt.Fprintf(&b, " En comparación con %d, hay **%s casos más**.", prev, a.num(diff))
			case diff < 0:
				fmt.Fprintf(&b, " En comparación con %d, hay **%s casos menos**.", prev, a.num(-diff))
			default:
				fmt.Fprintf(&b, " En comparación con %d, se mantiene un nivel similar de casos.", prev)
			}
		}
	}
	return b.String()
}

// num formats a count with Spanish digit grouping.
func (a *Agent) num(n int64) string { return a.print.Sprintf("%d", n) }

// Years returns the known years, ascending.
func (a *Agent) Years() []int64 {
	out := make([]int64, 0, len(a.years))
	for y := range a.years {
		out = append(out, y)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
