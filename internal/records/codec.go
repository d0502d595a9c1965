package records

import "github.com/KaramelBytes/crimeloom/internal/table"

// MunicipalityTable encodes geometry rows.
func MunicipalityTable(ms []Municipality) *table.Table {
	n := len(ms)
	code, name, dcode, dept := newInt(ColCode, n), newStr(ColMunicipality, n), newStr(ColDeptCode, n), newStr(ColDepartment, n)
	area, geom := newFloat(ColArea, n), table.NewColumn(ColGeometry, table.Bytes, n)
	crs, part := newStr(ColCRS, n), newInt(ColPart, n)
	for _, m := range ms {
		code.AppendInt(m.Code)
		name.AppendStr(m.Name)
		dcode.AppendStr(m.DeptCode)
		dept.AppendStr(m.Department)
		area.AppendFloat(m.Area)
		geom.AppendBytes(m.Geometry)
		crs.AppendStr(table.NullString{V: m.CRS, Valid: m.CRS != ""})
		part.AppendInt(table.Int(m.Part))
	}
	return table.MustNew(code, name, dcode, dept, area, geom, crs, part)
}

// Municipalities decodes geometry rows. codigo_municipio and geometry are
// required.
func Municipalities(t *table.Table) ([]Municipality, error) {
	r := &reader{t: t}
	code, geom := r.req(ColCode), r.req(ColGeometry)
	name, dcode, dept := r.opt(ColMunicipality), r.opt(ColDeptCode), r.opt(ColDepartment)
	area, crs, part := r.opt(ColArea), r.opt(ColCRS), r.opt(ColPart)
	if err := r.err("geometry"); err != nil {
		return nil, err
	}
	out := make([]Municipality, 0, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		out = append(out, Municipality{
			Code:       num(code, i),
			Name:       str(name, i),
			DeptCode:   str(dcode, i),
			Department: str(dept, i),
			Area:       flt(area, i),
			Geometry:   geom.Bytes(i),
			CRS:        str(crs, i).V,
			Part:       num(part, i).V,
		})
	}
	return out, nil
}

// SettlementTable encodes divipola rows.
func SettlementTable(ss []Settlement) *table.Table {
	n := len(ss)
	code, dcode, scode := newInt(ColCode, n), newStr(ColDeptCode, n), newStr(ColSettlementCode, n)
	dept, muni, name, class := newStr(ColDepartment, n), newStr(ColMunicipality, n), newStr(ColSettlement, n), newStr(ColClass, n)
	for _, s := range ss {
		code.AppendInt(s.Code)
		dcode.AppendStr(s.DeptCode)
		scode.AppendStr(s.SettlementCode)
		dept.AppendStr(s.Department)
		muni.AppendStr(s.Municipality)
		name.AppendStr(s.Name)
		class.AppendStr(s.Class)
	}
	return table.MustNew(code, dcode, scode, dept, muni, name, class)
}

// Settlements decodes divipola rows.
func Settlements(t *table.Table) ([]Settlement, error) {
	r := &reader{t: t}
	code, scode := r.req(ColCode), r.req(ColSettlementCode)
	dcode, dept, muni := r.opt(ColDeptCode), r.opt(ColDepartment), r.opt(ColMunicipality)
	name, class := r.opt(ColSettlement), r.opt(ColClass)
	if err := r.err("settlements"); err != nil {
		return nil, err
	}
	out := make([]Settlement, 0, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		out = append(out, Settlement{
			Code:           num(code, i),
			DeptCode:       str(dcode, i),
			SettlementCode: str(scode, i),
			Department:     str(dept, i),
			Municipality:   str(muni, i),
			Name:           str(name, i),
			Class:          str(class, i),
		})
	}
	return out, nil
}

// PopulationTable encodes population rows.
func PopulationTable(ps []Population) *table.Table {
	n := len(ps)
	code, muni, dept, year := newInt(ColCode, n), newStr(ColMunicipality, n), newStr(ColDepartment, n), newInt(ColYear, n)
	gender, group, count := newStr(ColGender, n), newStr(ColAgeGroup, n), newInt(ColPopulation, n)
	for _, p := range ps {
		code.AppendInt(p.Code)
		muni.AppendStr(p.Municipality)
		dept.AppendStr(p.Department)
		year.AppendInt(p.Year)
		gender.AppendStr(p.Gender)
		group.AppendStr(p.AgeGroup)
		count.AppendInt(p.Count)
	}
	return table.MustNew(code, muni, dept, year, gender, group, count)
}

// Populations decodes population rows.
func Populations(t *table.Table) ([]Population, error) {
	r := &reader{t: t}
	code, year, gender := r.req(ColCode), r.req(ColYear), r.req(ColGender)
	group, count := r.req(ColAgeGroup), r.req(ColPopulation)
	muni, dept := r.opt(ColMunicipality), r.opt(ColDepartment)
	if err := r.err("population"); err != nil {
		return nil, err
	}
	out := make([]Population, 0, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		out = append(out, Population{
			Code:         num(code, i),
			Municipality: str(muni, i),
			Department:   str(dept, i),
			Year:         num(year, i),
			Gender:       str(gender, i),
			AgeGroup:     str(group, i),
			Count:        num(count, i),
		})
	}
	return out, nil
}

// CrimeColumns is the column order of encoded crime tables.
var CrimeColumns = []string{
	ColCode, ColDepartment, ColMunicipality, ColDate, ColYear, ColMonth, ColDay,
	ColCrime, ColWeapon, ColGender, ColAgeBracket, ColCount,
	ColWeekday, ColWeekend, ColMonthEnd, ColHoliday, ColHolidayName, ColWorkingDay, ColOrigin,
}

// CrimeTable encodes crime events.
func CrimeTable(es []CrimeEvent) *table.Table {
	n := len(es)
	c := map[string]*table.Column{}
	for _, name := range CrimeColumns {
		switch name {
		case ColCode, ColYear, ColMonth, ColDay, ColWeekday, ColWeekend, ColMonthEnd, ColHoliday, ColWorkingDay:
			c[name] = newInt(name, n)
		case ColCount:
			c[name] = newFloat(name, n)
		default:
			c[name] = newStr(name, n)
		}
	}
	for _, e := range es {
		c[ColCode].AppendInt(e.Code)
		c[ColDepartment].AppendStr(e.Department)
		c[ColMunicipality].AppendStr(e.Municipality)
		c[ColDate].AppendStr(e.Date)
		c[ColYear].AppendInt(e.Year)
		c[ColMonth].AppendInt(e.Month)
		c[ColDay].AppendInt(e.Day)
		c[ColCrime].AppendStr(e.Crime)
		c[ColWeapon].AppendStr(e.Weapon)
		c[ColGender].AppendStr(e.Gender)
		c[ColAgeBracket].AppendStr(e.AgeBracket)
		c[ColCount].AppendFloat(e.Count)
		c[ColWeekday].AppendInt(table.Int(e.Weekday))
		c[ColWeekend].AppendInt(table.Int(e.Weekend))
		c[ColMonthEnd].AppendInt(table.Int(e.MonthEnd))
		c[ColHoliday].AppendInt(table.Int(e.Holiday))
		c[ColHolidayName].AppendStr(e.HolidayName)
		c[ColWorkingDay].AppendInt(table.Int(e.WorkingDay))
		c[ColOrigin].AppendStr(table.NullString{V: e.Origin, Valid: e.Origin != ""})
	}
	cols := make([]*table.Column, len(CrimeColumns))
	for i, name := range CrimeColumns {
		cols[i] = c[name]
	}
	return table.MustNew(cols...)
}

// CrimeEvents decodes a cleaned crime table.
func CrimeEvents(t *table.Table) ([]CrimeEvent, error) {
	r := &reader{t: t}
	code, year, month := r.req(ColCode), r.req(ColYear), r.req(ColMonth)
	crime, count := r.req(ColCrime), r.req(ColCount)
	dept, muni, date, day := r.opt(ColDepartment), r.opt(ColMunicipality), r.opt(ColDate), r.opt(ColDay)
	weapon, gender, age := r.opt(ColWeapon), r.opt(ColGender), r.opt(ColAgeBracket)
	wd, we, me, hol := r.opt(ColWeekday), r.opt(ColWeekend), r.opt(ColMonthEnd), r.opt(ColHoliday)
	holName, work, origin := r.opt(ColHolidayName), r.opt(ColWorkingDay), r.opt(ColOrigin)
	if err := r.err("crime"); err != nil {
		return nil, err
	}
	out := make([]CrimeEvent, 0, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		out = append(out, CrimeEvent{
			Code:         num(code, i),
			Department:   str(dept, i),
			Municipality: str(muni, i),
			Date:         str(date, i),
			Year:         num(year, i),
			Month:        num(month, i),
			Day:          num(day, i),
			Crime:        str(crime, i),
			Weapon:       str(weapon, i),
			Gender:       str(gender, i),
			AgeBracket:   str(age, i),
			Count:        flt(count, i),
			Weekday:      flag(wd, i),
			Weekend:      flag(we, i),
			MonthEnd:     flag(me, i),
			Holiday:      flag(hol, i),
			HolidayName:  str(holName, i),
			WorkingDay:   flag(work, i),
			Origin:       str(origin, i).V,
		})
	}
	return out, nil
}
