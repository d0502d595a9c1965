// Package calendar computes Colombian public holidays and the day-type flags
// attached to every crime event.
package calendar

import (
	"sort"
	"time"
)

type fixed struct {
	month time.Month
	day   int
	name  string
}

// Holidays that never move.
var fixedDates = []fixed{
	{time.January, 1, "Año Nuevo"},
	{time.May, 1, "Día del Trabajo"},
	{time.July, 20, "Día de la Independencia"},
	{time.August, 7, "Batalla de Boyacá"},
	{time.December, 8, "La Inmaculada Concepción"},
	{time.December, 25, "Navidad"},
}

// Holidays moved to the following Monday (Ley 51 de 1983).
var mondayDates = []fixed{
	{time.January, 6, "Día de los Reyes Magos"},
	{time.March, 19, "Día de San José"},
	{time.June, 29, "San Pedro y San Pablo"},
	{time.August, 15, "La Asunción de la Virgen"},
	{time.October, 12, "Día de la Raza"},
	{time.November, 1, "Día de Todos los Santos"},
	{time.November, 11, "Independencia de Cartagena"},
}

type relative struct {
	offset int
	name   string
}

// Offsets in days from Easter Sunday; the last three already land on Monday.
var easterDates = []relative{
	{-3, "Jueves Santo"},
	{-2, "Viernes Santo"},
	{43, "Ascensión del Señor"},
	{64, "Corpus Christi"},
	{71, "Sagrado Corazón"},
}

// Calendar holds the holidays of a fixed set of years.
type Calendar struct {
	days  map[string]string
	years []int
}

// Colombia builds the holiday calendar for exactly the given years.
func Colombia(years ...int) *Calendar {
	c := &Calendar{days: make(map[string]string)}
	seen := map[int]bool{}
	for _, y := range years {
		if seen[y] {
			continue
		}
		seen[y] = true
		c.years = append(c.years, y)
		for _, f := range fixedDates {
			c.add(date(y, f.month, f.day), f.name)
		}
		for _, f := range mondayDates {
			c.add(nextMonday(date(y, f.month, f.day)), f.name)
		}
		easter := Easter(y)
		for _, r := range easterDates {
			c.add(easter.AddDate(0, 0, r.offset), r.name)
		}
	}
	sort.Ints(c.years)
	return c
}

func (c *Calendar) add(d time.Time, name string) {
	k := key(d)
	if prev, ok := c.days[k]; ok {
		// Two observances on one day keep both names.
		c.days[k] = prev + "; " + name
		return
	}
	c.days[k] = name
}

// Years returns the years covered, ascending.
func (c *Calendar) Years() []int { return append([]int(nil), c.years...) }

// Holiday reports whether d is a public holiday and its name.
func (c *Calendar) Holiday(d time.Time) (string, bool) {
	name, ok := c.days[key(d)]
	return name, ok
}

// Len is the number of holiday dates in the calendar.
func (c *Calendar) Len() int { return len(c.days) }

// Flags are the day-type attributes of one date, as 0/1 integers.
type Flags struct {
	Weekday    int64
	Weekend    int64
	MonthEnd   int64
	Holiday    int64
	WorkingDay int64
	// HolidayName is empty on ordinary days.
	HolidayName string
}

// Flags computes the day-type attributes of d.
func (c *Calendar) Flags(d time.Time) Flags {
	var f Flags
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		f.Weekend = 1
	default:
		f.Weekday = 1
	}
	if d.AddDate(0, 0, 1).Month() != d.Month() {
		f.MonthEnd = 1
	}
	if name, ok := c.Holiday(d); ok {
		f.Holiday = 1
		f.HolidayName = name
	}
	if f.Weekday == 1 && f.Holiday == 0 {
		f.WorkingDay = 1
	}
	return f
}

// Easter returns Easter Sunday of the Gregorian year y (anonymous algorithm).
func Easter(y int) time.Time {
	a := y % 19
	b := y / 100
	c := y % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return date(y, time.Month(month), day)
}

func nextMonday(d time.Time) time.Time {
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func key(d time.Time) string { return d.Format("2006-01-02") }
