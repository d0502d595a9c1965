// Package gapfill merges the primary crime table with rows of the secondary
// source for configured (category, year) gaps.
package gapfill

import (
	"slices"

	"github.com/KaramelBytes/crimeloom/internal/config"
	"github.com/KaramelBytes/crimeloom/internal/records"
	"github.com/KaramelBytes/crimeloom/internal/table"
	"github.com/KaramelBytes/crimeloom/internal/textnorm"
)

// YearCount is the number of rows backfilled for one year.
type YearCount struct {
	Year int
	Rows int
}

// CategoryReport is the outcome of one configured gap.
type CategoryReport struct {
	Category  string
	Secondary string
	Added     []YearCount
	// Skipped years are already covered by the primary source.
	Skipped []int
	// Missing years have no rows in the secondary source.
	Missing []int
}

// Rows is the total number of rows added for the category.
func (c CategoryReport) Rows() int {
	n := 0
	for _, a := range c.Added {
		n += a.Rows
	}
	return n
}

// Report describes a merge.
type Report struct {
	Categories []CategoryReport
	// Before and After are the union row counts around deduplication.
	Before int
	After  int
}

// RowsAdded is the number of secondary rows appended over all categories.
func (r Report) RowsAdded() int {
	n := 0
	for _, c := range r.Categories {
		n += c.Rows()
	}
	return n
}

// Duplicates is the number of exact duplicate rows removed.
func (r Report) Duplicates() int { return r.Before - r.After }

type cell struct {
	crime string
	year  int64
}

// Merge returns the primary rows plus the secondary rows of every configured
// gap whose year the primary does not cover, relabeled to the primary
// category and tagged with the secondary origin. Exact duplicate rows of the
// union are removed. Feeding the result back as primary adds nothing.
func Merge(primary, secondary *table.Table, gaps []config.Gap) (*table.Table, Report, error) {
	pe, err := records.CrimeEvents(primary)
	if err != nil {
		return nil, Report{}, err
	}
	se, err := records.CrimeEvents(secondary)
	if err != nil {
		return nil, Report{}, err
	}

	covered := map[cell]bool{}
	for i := range pe {
		if pe[i].Origin == "" {
			pe[i].Origin = records.OriginPrimary
		}
		if k, ok := key(pe[i].Crime, pe[i].Year); ok {
			covered[k] = true
		}
	}

	bySecondary := map[cell][]int{}
	for i, e := range se {
		if k, ok := key(e.Crime, e.Year); ok {
			bySecondary[k] = append(bySecondary[k], i)
		}
	}

	var (
		rep   Report
		added []records.CrimeEvent
	)
	for _, g := range gaps {
		category, ok := textnorm.Category(g.Category)
		if !ok {
			continue
		}
		cr := CategoryReport{Category: category, Secondary: g.Secondary}
		years := slices.Clone(g.Years)
		slices.Sort(years)
		for _, y := range slices.Compact(years) {
			pk, _ := key(table.Str(category), table.Int(int64(y)))
			if covered[pk] {
				cr.Skipped = append(cr.Skipped, y)
				continue
			}
			sk, _ := key(table.Str(g.Secondary), table.Int(int64(y)))
			rows := bySecondary[sk]
			if len(rows) == 0 {
				cr.Missing = append(cr.Missing, y)
				continue
			}
			for _, i := range rows {
				e := se[i]
				e.Crime = table.Str(category)
				e.Origin = records.OriginSecondary
				added = append(added, e)
			}
			cr.Added = append(cr.Added, YearCount{Year: y, Rows: len(rows)})
		}
		rep.Categories = append(rep.Categories, cr)
	}

	union := records.CrimeTable(append(pe, added...))
	out, _ := union.Distinct()
	rep.Before, rep.After = union.NumRows(), out.NumRows()
	return out, rep, nil
}

// key compares categories by their folded name so "DELITOS INFORMÁTICOS"
// and "DELITOS INFORMATICOS" meet.
func key(crime table.NullString, year table.NullInt) (cell, bool) {
	if !crime.Valid || !year.Valid {
		return cell{}, false
	}
	c, ok := textnorm.Name(crime.V)
	if !ok {
		return cell{}, false
	}
	return cell{crime: c, year: year.V}, true
}
