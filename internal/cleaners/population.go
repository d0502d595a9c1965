package cleaners

import (
	"github.com/KaramelBytes/crimeloom/internal/records"
	"github.com/KaramelBytes/crimeloom/internal/table"
)

// Population coerces code and year to integer keys and normalizes names and
// categorical fields. Rows with a null key are kept.
func Population(t *table.Table) (*table.Table, error) {
	ps, err := records.Populations(t)
	if err != nil {
		return nil, err
	}
	for i := range ps {
		ps[i].Municipality = normName(ps[i].Municipality)
		ps[i].Department = normName(ps[i].Department)
		ps[i].Gender = normCategory(ps[i].Gender)
		ps[i].AgeGroup = normCategory(ps[i].AgeGroup)
	}
	return records.PopulationTable(ps), nil
}

// Settlements coerces the municipality code to an integer key and
// normalizes names.
func Settlements(t *table.Table) (*table.Table, error) {
	ss, err := records.Settlements(t)
	if err != nil {
		return nil, err
	}
	for i := range ss {
		ss[i].Department = normName(ss[i].Department)
		ss[i].Municipality = normName(ss[i].Municipality)
		ss[i].Name = normName(ss[i].Name)
		ss[i].Class = normCategory(ss[i].Class)
	}
	return records.SettlementTable(ss), nil
}
