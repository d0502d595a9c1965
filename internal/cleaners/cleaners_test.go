package cleaners

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	sf "github.com/peterstace/simplefeatures/geom"
	"go.uber.org/zap"

	"github.com/KaramelBytes/crimeloom/internal/config"
	"github.com/KaramelBytes/crimeloom/internal/records"
	"github.com/KaramelBytes/crimeloom/internal/table"
)

func wkb(t *testing.T, wkt string) []byte {
	t.Helper()
	g, err := sf.UnmarshalWKT(wkt, sf.NoValidate{})
	if err != nil {
		t.Fatalf("parse %q: %v", wkt, err)
	}
	return g.AsBinary()
}

func TestGeography(t *testing.T) {
	in := records.MunicipalityTable([]records.Municipality{
		{Code: table.Int(68001), Name: table.Str("Bucaramanga"), Department: table.Str("Santander"), Area: table.Float(100),
			Geometry: wkb(t, "POLYGON((0 0,1 0,1 1,0 1,0 0))")},
		{Code: table.Int(68307), Name: table.Str("Girón"), Department: table.Str("Santander"), Area: table.Float(50),
			Geometry: wkb(t, "MULTIPOLYGON(((0 0,1 0,1 1,0 1,0 0)),((5 5,6 5,6 6,5 6,5 5)))"), CRS: "EPSG:3116"},
		{Code: table.Int(68077), Name: table.Str("Barbosa")},
	})
	out, st, err := Geography(in, config.Default().Cleaning, zap.NewNop())
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	if st.NullGeometry != 1 || st.Output != 3 {
		t.Fatalf("stats = %+v", st)
	}
	ms, err := records.Municipalities(out)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	type row struct {
		Code int64
		Name string
		CRS  string
		Part int64
	}
	var got []row
	for _, m := range ms {
		got = append(got, row{m.Code.V, m.Name.V, m.CRS, m.Part})
	}
	want := []row{
		{68001, "BUCARAMANGA", "EPSG:4326", 0},
		{68307, "GIRON", "EPSG:3116", 0},
		{68307, "GIRON", "EPSG:3116", 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
}

func TestGeographyRequiresGeometryColumn(t *testing.T) {
	in := table.MustNew(table.IntColumn(records.ColCode, 68001))
	if _, _, err := Geography(in, config.Default().Cleaning, zap.NewNop()); err == nil {
		t.Fatal("expected missing column error")
	}
}

func silverCrime() *table.Table {
	header := []string{"departamento", "municipio", "codigo_dane", "delito", "edad_persona", "armas_medios", "cantidad", "fecha", "genero"}
	return table.FromStrings(header, [][]string{
		{"santander", "Bucaramanga (CT)", "68001000", "homicidios", "adultos", "arma de fuego", "2", "2023-06-12", "masculino"},
		{"SANTANDER", "", "XX", "HURTOS", "ADULTOS", "NO REPORTADO", "1", "garbage", "FEMENINO"},
		{"SANTANDER", "GIRÓN", "68307000", "HURTOS", "nan", "NO REPORTADO", "1", "2023-06-13", "FEMENINO"},
		{"SANTANDER", "GIRÓN", "68307000", "HURTOS", "ADULTOS", "NO REPORTADO", "1", "2023-06-13", ""},
	})
}

func TestCrime(t *testing.T) {
	out, st := Crime(silverCrime(), records.OriginPrimary, config.Default().Cleaning, zap.NewNop())
	want := CrimeStats{Input: 4, NullKey: 1, BadDate: 1, Age: 1, Gender: 1, Output: 2}
	if diff := cmp.Diff(want, st); diff != "" {
		t.Fatalf("stats (-want +got):\n%s", diff)
	}
	es, err := records.CrimeEvents(out)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	first := records.CrimeEvent{
		Code:         table.Int(68001),
		Department:   table.Str("SANTANDER"),
		Municipality: table.Str("BUCARAMANGA (CT)"),
		Date:         table.Str("2023-06-12"),
		Year:         table.Int(2023),
		Month:        table.Int(6),
		Day:          table.Int(12),
		Crime:        table.Str("HOMICIDIOS"),
		Weapon:       table.Str("ARMA DE FUEGO"),
		Gender:       table.Str("MASCULINO"),
		AgeBracket:   table.Str("ADULTOS"),
		Count:        table.Float(2),
		Weekday:      1,
		Holiday:      1,
		HolidayName:  table.Str("Corpus Christi"),
		Origin:       records.OriginPrimary,
	}
	if diff := cmp.Diff(first, es[0]); diff != "" {
		t.Errorf("first row (-want +got):\n%s", diff)
	}
	if es[1].Code.Valid || es[1].Year.Valid || es[1].Month.Valid {
		t.Errorf("second row should keep null key and date: %+v", es[1])
	}
}

func TestCrimeUsesPlainCodeAndExistingOrigin(t *testing.T) {
	in := table.FromStrings(
		[]string{"codigo_municipio", "fecha", "genero", "edad_persona", "delito", "cantidad", "origen"},
		[][]string{{"68001.0", "2023-01-31", "FEMENINO", "MENORES", "LESIONES", "1", "socrata"}},
	)
	out, _ := Crime(in, records.OriginPrimary, config.Default().Cleaning, zap.NewNop())
	es, err := records.CrimeEvents(out)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(es) != 1 {
		t.Fatalf("rows = %d", len(es))
	}
	if es[0].Code != table.Int(68001) || es[0].Origin != records.OriginSecondary || es[0].MonthEnd != 1 {
		t.Errorf("row = %+v", es[0])
	}
}

func TestPopulationCoercesKeys(t *testing.T) {
	in := table.FromStrings(
		[]string{records.ColCode, records.ColMunicipality, records.ColYear, records.ColGender, records.ColAgeGroup, records.ColPopulation},
		[][]string{
			{"68001", "Bucaramanga", "2023", "masculino", "adultos", "1000"},
			{"bad", "Málaga", "2023.0", "FEMENINO", "MENORES", "10"},
		},
	)
	out, err := Population(in)
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	ps, err := records.Populations(out)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []records.Population{
		{Code: table.Int(68001), Municipality: table.Str("BUCARAMANGA"), Year: table.Int(2023),
			Gender: table.Str("MASCULINO"), AgeGroup: table.Str("ADULTOS"), Count: table.Int(1000)},
		{Municipality: table.Str("MALAGA"), Year: table.Int(2023),
			Gender: table.Str("FEMENINO"), AgeGroup: table.Str("MENORES"), Count: table.Int(10)},
	}
	if diff := cmp.Diff(want, ps); diff != "" {
		t.Errorf("populations (-want +got):\n%s", diff)
	}
}

func TestSettlements(t *testing.T) {
	in := table.FromStrings(
		[]string{records.ColCode, records.ColSettlementCode, records.ColClass, records.ColSettlement},
		[][]string{{"68001", "68001000", "cm", "Bucaramanga"}, {"", "99999001", "CP", "nan"}},
	)
	out, err := Settlements(in)
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	ss, err := records.Settlements(out)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(ss) != 2 {
		t.Fatalf("rows = %d", len(ss))
	}
	if ss[0].Code != table.Int(68001) || ss[0].Class != table.Str("CM") {
		t.Errorf("first = %+v", ss[0])
	}
	if ss[1].Code.Valid || ss[1].Name.Valid {
		t.Errorf("second = %+v", ss[1])
	}
}
