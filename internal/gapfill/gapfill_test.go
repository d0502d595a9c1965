package gapfill

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/KaramelBytes/crimeloom/internal/config"
	"github.com/KaramelBytes/crimeloom/internal/records"
	"github.com/KaramelBytes/crimeloom/internal/table"
)

func event(crime string, year, day int64, origin string) records.CrimeEvent {
	return records.CrimeEvent{
		Code:       table.Int(68001),
		Year:       table.Int(year),
		Month:      table.Int(1),
		Day:        table.Int(day),
		Crime:      table.Str(crime),
		Gender:     table.Str(records.Female),
		AgeBracket: table.Str("ADULTOS"),
		Count:      table.Float(1),
		Origin:     origin,
	}
}

func fixtures() (*table.Table, *table.Table) {
	primary := []records.CrimeEvent{
		event("HOMICIDIOS", 2010, 1, records.OriginPrimary),
		event("HURTOS", 2010, 2, records.OriginPrimary),
		event("DELITOS SEXUALES", 2011, 3, records.OriginPrimary),
	}
	var secondary []records.CrimeEvent
	for d := int64(1); d <= 12; d++ {
		secondary = append(secondary, event("DELITOS_SEXUALES", 2010, d, records.OriginSecondary))
	}
	// Already covered by the primary source.
	secondary = append(secondary, event("DELITOS_SEXUALES", 2011, 9, records.OriginSecondary))
	// Not a configured gap.
	secondary = append(secondary, event("HURTOS", 2012, 9, records.OriginSecondary))
	return records.CrimeTable(primary), records.CrimeTable(secondary)
}

var gaps = []config.Gap{
	{Category: "DELITOS SEXUALES", Secondary: "DELITOS_SEXUALES", Years: []int{2010, 2011}},
	{Category: "DELITOS INFORMÁTICOS", Secondary: "DELITOS_INFORMATICOS", Years: []int{2010}},
}

func TestMergeBackfillsConfiguredGap(t *testing.T) {
	primary, secondary := fixtures()
	out, rep, err := Merge(primary, secondary, gaps)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if out.NumRows() != 15 {
		t.Fatalf("rows = %d, want 15", out.NumRows())
	}
	es, err := records.CrimeEvents(out)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	backfilled := 0
	for _, e := range es {
		if e.Origin != records.OriginSecondary {
			continue
		}
		backfilled++
		if e.Crime.V != "DELITOS SEXUALES" || e.Year.V != 2010 {
			t.Errorf("unexpected secondary row %+v", e)
		}
	}
	if backfilled != 12 {
		t.Errorf("backfilled = %d, want 12", backfilled)
	}

	want := []CategoryReport{
		{Category: "DELITOS SEXUALES", Secondary: "DELITOS_SEXUALES", Added: []YearCount{{2010, 12}}, Skipped: []int{2011}},
		{Category: "DELITOS INFORMÁTICOS", Secondary: "DELITOS_INFORMATICOS", Missing: []int{2010}},
	}
	if diff := cmp.Diff(want, rep.Categories); diff != "" {
		t.Errorf("report (-want +got):\n%s", diff)
	}
	if rep.RowsAdded() != 12 || rep.Duplicates() != 0 {
		t.Errorf("added = %d duplicates = %d", rep.RowsAdded(), rep.Duplicates())
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	primary, secondary := fixtures()
	once, _, err := Merge(primary, secondary, gaps)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	twice, rep, err := Merge(once, secondary, gaps)
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}
	if rep.RowsAdded() != 0 {
		t.Errorf("second merge added %d rows", rep.RowsAdded())
	}
	if once.NumRows() != twice.NumRows() {
		t.Fatalf("rows %d then %d", once.NumRows(), twice.NumRows())
	}
	for i := 0; i < once.NumRows(); i++ {
		if once.RowKey(i) != twice.RowKey(i) {
			t.Fatalf("row %d differs after second merge", i)
		}
	}
}

func TestMergeRemovesExactDuplicates(t *testing.T) {
	dup := event("HOMICIDIOS", 2010, 1, records.OriginPrimary)
	primary := records.CrimeTable([]records.CrimeEvent{dup, dup})
	out, rep, err := Merge(primary, records.CrimeTable(nil), nil)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if out.NumRows() != 1 || rep.Before != 2 || rep.After != 1 {
		t.Errorf("rows = %d report = %+v", out.NumRows(), rep)
	}
}

func TestMergeTagsUntaggedPrimaryRows(t *testing.T) {
	primary := records.CrimeTable([]records.CrimeEvent{event("HURTOS", 2020, 1, "")})
	out, _, err := Merge(primary, records.CrimeTable(nil), nil)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	es, _ := records.CrimeEvents(out)
	if es[0].Origin != records.OriginPrimary {
		t.Errorf("origin = %q", es[0].Origin)
	}
}
