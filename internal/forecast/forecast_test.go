package forecast

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/KaramelBytes/crimeloom/internal/analytics"
)

func facts() []analytics.Fact {
	var out []analytics.Fact
	add := func(year, month int64, n float64) {
		out = append(out, analytics.Fact{Municipality: "GIRON", Year: year, Month: month, Crime: "HURTOS", Count: n})
	}
	add(2018, 1, 100)
	add(2019, 1, 4)
	add(2019, 2, 6)
	add(2020, 1, 20)
	add(2021, 5, 30)
	add(2024, 1, 999)
	out = append(out, analytics.Fact{Municipality: "GIRON", Year: 2020, Crime: "HOMICIDIOS", Count: 50})
	return out
}

func TestBaselineAveragesLastThreeYears(t *testing.T) {
	p, err := Baseline(facts(), "Girón", "hurtos", 2023)
	if err != nil {
		t.Fatalf("baseline: %v", err)
	}
	if p.Value != 20 {
		t.Errorf("prediction = %v, want 20", p.Value)
	}
	want := []YearTotal{{2018, 100}, {2019, 10}, {2020, 20}, {2021, 30}}
	if diff := cmp.Diff(want, p.History); diff != "" {
		t.Errorf("history (-want +got):\n%s", diff)
	}
	if p.Municipality != "GIRON" || p.Crime != "HURTOS" {
		t.Errorf("labels = %q %q", p.Municipality, p.Crime)
	}
}

func TestBaselineShortHistory(t *testing.T) {
	p, err := Baseline(facts(), "GIRON", "HURTOS", 2019)
	if err != nil {
		t.Fatalf("baseline: %v", err)
	}
	if p.Value != 100 {
		t.Errorf("prediction = %v, want 100", p.Value)
	}
}

func TestBaselineErrors(t *testing.T) {
	if _, err := Baseline(facts(), "GIRON", "HURTOS", 2018); !errors.Is(err, ErrNoHistory) {
		t.Errorf("err = %v, want ErrNoHistory", err)
	}
	if _, err := Baseline(facts(), "PIEDECUESTA", "HURTOS", 2023); !errors.Is(err, ErrNoData) {
		t.Errorf("err = %v, want ErrNoData", err)
	}
}
