package analytics

import (
	"github.com/KaramelBytes/crimeloom/internal/integrate"
	"github.com/KaramelBytes/crimeloom/internal/records"
	"github.com/KaramelBytes/crimeloom/internal/table"
)

// Fact is one crime count of one municipality and month.
type Fact struct {
	Code         int64
	Municipality string
	Year         int64
	Month        int64
	Crime        string
	Count        float64
	Population   table.NullFloat
}

// Rate is the count per 100,000 inhabitants, null without population.
func (f Fact) Rate() table.NullFloat {
	r := table.Div(table.Float(f.Count), f.Population)
	if !r.Valid || f.Population.V == 0 {
		return table.NullFloat{}
	}
	return table.Float(r.V * 100000)
}

// Long unpivots the crime columns of the integrated or analytics table.
// Rows without a code or period are skipped; crimes absent from t are
// ignored.
func Long(t *table.Table, crimes []string) ([]Fact, error) {
	code, err := t.Col(records.ColCode)
	if err != nil {
		return nil, err
	}
	name, err := t.Col(records.ColMunicipality)
	if err != nil {
		return nil, err
	}
	year, err := t.Col(records.ColYear)
	if err != nil {
		return nil, err
	}
	month, err := t.Col(records.ColMonth)
	if err != nil {
		return nil, err
	}
	pop, err := t.Col(integrate.ColPopTotal)
	if err != nil {
		return nil, err
	}
	var cols []*table.Column
	for _, c := range crimes {
		if col, ok := t.Column(c); ok {
			cols = append(cols, col)
		}
	}
	var out []Fact
	for i := 0; i < t.NumRows(); i++ {
		c, y, m := code.Int(i), year.Int(i), month.Int(i)
		if !c.Valid || !y.Valid || !m.Valid {
			continue
		}
		for _, col := range cols {
			n := col.Float(i)
			if !n.Valid {
				continue
			}
			out = append(out, Fact{
				Code: c.V, Municipality: name.Text(i), Year: y.V, Month: m.V,
				Crime: col.Name, Count: n.V, Population: pop.Float(i),
			})
		}
	}
	return out, nil
}
