package agent

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/KaramelBytes/crimeloom/internal/analytics"
	"github.com/KaramelBytes/crimeloom/internal/table"
)

func fact(muni string, year int64, crime string, n float64) analytics.Fact {
	return analytics.Fact{
		Code: 68001, Municipality: muni, Year: year, Month: 1, Crime: crime,
		Count: n, Population: table.Float(100000),
	}
}

func agent() *Agent {
	return New([]analytics.Fact{
		fact("BUCARAMANGA", 2021, "HOMICIDIOS", 3),
		fact("BUCARAMANGA", 2022, "HOMICIDIOS", 5),
		fact("BUCARAMANGA", 2022, "HURTOS", 40),
		fact("SAN GIL", 2022, "HOMICIDIOS", 1),
		fact("GIRON", 2023, "HURTOS", 7),
	})
}

func TestDetectCrime(t *testing.T) {
	cases := map[string]string{
		"¿Cuántos asesinatos hubo?":          "HOMICIDIOS",
		"robos en la ciudad":                 "HURTOS",
		"Lesiones personales":                "LESIONES",
		"casos de violencia intrafamiliar":   "VIOLENCIA INTRAFAMILIAR",
		"delitos sexuales":                   "DELITOS SEXUALES",
		"fraude informático":                 "DELITOS INFORMÁTICOS",
		"¿cómo está la seguridad en Girón?": "",
	}
	for q, want := range cases {
		if got, _ := DetectCrime(q); got != want {
			t.Errorf("DetectCrime(%q) = %q, want %q", q, got, want)
		}
	}
}

func TestParse(t *testing.T) {
	a := agent()
	got := a.Parse("¿Cómo están los homicidios en Bucaramanga en 2022?")
	want := Query{Crime: "HOMICIDIOS", Municipality: "BUCARAMANGA", Year: 2022}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	// Unknown years fall back to the latest one; accents are ignored.
	got = a.Parse("hurtos en Girón 1990")
	want = Query{Crime: "HURTOS", Municipality: "GIRON", Year: 2023}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestAnswer(t *testing.T) {
	out := agent().Answer("homicidios en bucaramanga 2022")
	for _, want := range []string{
		"año = **2022**",
		"municipio = **BUCARAMANGA**",
		"**5 casos**",
		"En comparación con 2021, hay **2 casos más**",
		"Rutas de atención",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("answer missing %q:\n%s", want, out)
		}
	}
}

func TestAnswerWithoutMatches(t *testing.T) {
	out := agent().Answer("lesiones en San Gil 2022")
	if !strings.HasPrefix(out, "Con la información disponible no encontré registros") {
		t.Errorf("unexpected answer:\n%s", out)
	}
	if cmp.Diff([]int64{2021, 2022, 2023}, agent().Years()) != "" {
		t.Errorf("years = %v", agent().Years())
	}
}
