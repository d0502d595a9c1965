package cleaners

import (
	"time"

	"go.uber.org/zap"

	"github.com/KaramelBytes/crimeloom/internal/calendar"
	"github.com/KaramelBytes/crimeloom/internal/config"
	"github.com/KaramelBytes/crimeloom/internal/geokey"
	"github.com/KaramelBytes/crimeloom/internal/records"
	"github.com/KaramelBytes/crimeloom/internal/sources"
	"github.com/KaramelBytes/crimeloom/internal/table"
)

// CrimeStats summarizes a crime clean.
type CrimeStats struct {
	Input   int
	NullKey int
	BadDate int
	Age     int
	Gender  int
	Output  int
}

// Crime resolves municipality codes, splits dates and attaches the calendar
// flags of the years present. The combined police code (codigo_dane) is
// preferred; a plain codigo_municipio column is used when it is absent.
// Rows with an unresolvable code or date are kept with nulls; rows whose age
// bracket or gender is missing after normalization are dropped. Rows without
// an origen value are tagged with origin.
func Crime(t *table.Table, origin string, c config.Cleaning, log *zap.Logger) (*table.Table, CrimeStats) {
	n := t.NumRows()
	st := CrimeStats{Input: n}
	keys := geokey.NewResolver(c.StripDigits)
	code := func(i int) table.NullInt {
		if v := cellStr(t, sources.ColCombinedCode, i); v.Valid {
			return keys.FromCombined(v.V)
		}
		if col, ok := t.Column(records.ColCode); ok {
			return col.Int(i)
		}
		return table.NullInt{}
	}

	dates := make([]table.NullString, n)
	var years []int
	seen := map[int]bool{}
	for i := 0; i < n; i++ {
		d, ok := calendar.ParseDate(cellStr(t, records.ColDate, i).V, true)
		if !ok {
			continue
		}
		dates[i] = table.Str(calendar.ISO(d))
		if !seen[d.Year()] {
			seen[d.Year()] = true
			years = append(years, d.Year())
		}
	}
	cal := calendar.Colombia(years...)

	out := make([]records.CrimeEvent, 0, n)
	for i := 0; i < n; i++ {
		age := normCategory(cellStr(t, records.ColAgeBracket, i))
		if !age.Valid {
			st.Age++
			continue
		}
		gender := normCategory(cellStr(t, records.ColGender, i))
		if !gender.Valid {
			st.Gender++
			continue
		}
		e := records.CrimeEvent{
			Code:         code(i),
			Department:   normName(cellStr(t, records.ColDepartment, i)),
			Municipality: normName(cellStr(t, records.ColMunicipality, i)),
			Crime:        normCategory(cellStr(t, records.ColCrime, i)),
			Weapon:       normCategory(cellStr(t, records.ColWeapon, i)),
			Gender:       gender,
			AgeBracket:   age,
			Count:        cellFloat(t, records.ColCount, i),
			Origin:       origin,
		}
		if o := cellStr(t, records.ColOrigin, i); o.Valid {
			e.Origin = o.V
		}
		if !e.Code.Valid {
			st.NullKey++
		}
		if dates[i].Valid {
			d, _ := time.Parse("2006-01-02", dates[i].V)
			f := cal.Flags(d)
			e.Date = dates[i]
			e.Year = table.Int(int64(d.Year()))
			e.Month = table.Int(int64(d.Month()))
			e.Day = table.Int(int64(d.Day()))
			e.Weekday, e.Weekend, e.MonthEnd = f.Weekday, f.Weekend, f.MonthEnd
			e.Holiday, e.WorkingDay = f.Holiday, f.WorkingDay
			e.HolidayName = table.NullString{V: f.HolidayName, Valid: f.HolidayName != ""}
		} else {
			st.BadDate++
		}
		out = append(out, e)
	}
	st.Output = len(out)
	log.Debug("crime cleaned",
		zap.String("origen", origin),
		zap.Int("input", st.Input),
		zap.Int("null_key", st.NullKey),
		zap.Int("bad_date", st.BadDate),
		zap.Int("dropped_age", st.Age),
		zap.Int("dropped_gender", st.Gender),
		zap.Int("output", st.Output),
		zap.Ints("calendar_years", cal.Years()))
	return records.CrimeTable(out), st
}

func cellStr(t *table.Table, name string, i int) table.NullString {
	c, ok := t.Column(name)
	if !ok {
		return table.NullString{}
	}
	return c.Str(i)
}

func cellFloat(t *table.Table, name string, i int) table.NullFloat {
	c, ok := t.Column(name)
	if !ok {
		return table.NullFloat{}
	}
	return c.Float(i)
}
