package calendar

import (
	"testing"
	"time"
)

func TestEaster(t *testing.T) {
	cases := map[int]string{
		2019: "2019-04-21",
		2023: "2023-04-09",
		2024: "2024-03-31",
		2025: "2025-04-20",
	}
	for y, want := range cases {
		if got := ISO(Easter(y)); got != want {
			t.Errorf("Easter(%d) = %s, want %s", y, got, want)
		}
	}
}

func TestColombia2023(t *testing.T) {
	c := Colombia(2023)
	if c.Len() != 18 {
		t.Fatalf("holidays in 2023 = %d, want 18", c.Len())
	}
	for _, d := range []string{
		"2023-01-01", "2023-01-09", "2023-03-20", "2023-04-06", "2023-04-07",
		"2023-05-01", "2023-05-22", "2023-06-12", "2023-06-19", "2023-07-03",
		"2023-07-20", "2023-08-07", "2023-08-21", "2023-10-16", "2023-11-06",
		"2023-11-13", "2023-12-08", "2023-12-25",
	} {
		day, _ := time.Parse("2006-01-02", d)
		if _, ok := c.Holiday(day); !ok {
			t.Errorf("%s should be a holiday", d)
		}
	}
	day, _ := time.Parse("2006-01-02", "2023-06-15")
	if _, ok := c.Holiday(day); ok {
		t.Errorf("2023-06-15 is not a holiday")
	}
}

func TestCalendarOnlyCoversGivenYears(t *testing.T) {
	c := Colombia(2023, 2023)
	if got := c.Years(); len(got) != 1 || got[0] != 2023 {
		t.Fatalf("years = %v", got)
	}
	day, _ := time.Parse("2006-01-02", "2024-01-01")
	if _, ok := c.Holiday(day); ok {
		t.Fatalf("2024 is outside the calendar")
	}
}

func TestFlags(t *testing.T) {
	c := Colombia(2023)
	cases := []struct {
		date string
		want Flags
	}{
		// Tuesday
		{"2023-06-13", Flags{Weekday: 1, WorkingDay: 1}},
		// Saturday, last day of month
		{"2023-09-30", Flags{Weekend: 1, MonthEnd: 1}},
		// Monday holiday
		{"2023-06-12", Flags{Weekday: 1, Holiday: 1, HolidayName: "Corpus Christi"}},
		// Sunday holiday
		{"2023-01-01", Flags{Weekend: 1, Holiday: 1, HolidayName: "Año Nuevo"}},
	}
	for _, tc := range cases {
		d, _ := time.Parse("2006-01-02", tc.date)
		if got := c.Flags(d); got != tc.want {
			t.Errorf("Flags(%s) = %+v, want %+v", tc.date, got, tc.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in       string
		dayFirst bool
		want     string
		ok       bool
	}{
		{"2023-06-01", false, "2023-06-01", true},
		{"2010-01-01T00:00:00.000", false, "2010-01-01", true},
		{"01/06/2023", true, "2023-06-01", true},
		{"5/6/2023", true, "2023-06-05", true},
		{"01/06/2023", false, "", false},
		{"45078", true, "2023-06-01", true},
		{"not a date", true, "", false},
		{"", true, "", false},
	}
	for _, tc := range cases {
		got, ok := ParseDate(tc.in, tc.dayFirst)
		if ok != tc.ok {
			t.Errorf("ParseDate(%q) ok = %v, want %v", tc.in, ok, tc.ok)
			continue
		}
		if ok && ISO(got) != tc.want {
			t.Errorf("ParseDate(%q) = %s, want %s", tc.in, ISO(got), tc.want)
		}
	}
}
