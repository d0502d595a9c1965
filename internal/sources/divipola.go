package sources

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/crimeloom/internal/geokey"
	"github.com/KaramelBytes/crimeloom/internal/records"
	"github.com/KaramelBytes/crimeloom/internal/schema"
	"github.com/KaramelBytes/crimeloom/internal/table"
	"github.com/KaramelBytes/crimeloom/internal/textnorm"
)

// DivipolaMapping resolves the registry headers.
var DivipolaMapping = schema.Mapping{
	Table: "divipola",
	Fields: []schema.Field{
		{Name: records.ColDeptCode, Aliases: []string{"Código Departamento"}, Kind: table.String},
		{Name: records.ColCode, Aliases: []string{"Código Municipio"}, Required: true, Kind: table.String},
		{Name: records.ColSettlementCode, Aliases: []string{"Código Centro Poblado"}, Required: true, Kind: table.String},
		{Name: records.ColDepartment, Aliases: []string{"Nombre Departamento"}, Required: true, Kind: table.String},
		{Name: records.ColMunicipality, Aliases: []string{"Nombre Municipio"}, Kind: table.String},
		{Name: records.ColSettlement, Aliases: []string{"Nombre Centro Poblado"}, Kind: table.String},
		{Name: records.ColClass, Aliases: []string{"Clase"}, Kind: table.String},
	},
}

// ReadDivipola reads the settlement registry sheet with its header at the
// given row index and keeps the department's settlements.
func ReadDivipola(path, sheet string, header int, department string) ([]records.Settlement, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q of %s: %w", sheet, path, err)
	}
	names, data := schema.HeaderTable(rows, header)
	if len(names) == 0 {
		return nil, fmt.Errorf("%s: no header at row %d", path, header)
	}
	return ParseDivipola(table.FromStrings(names, data), department)
}

// ParseDivipola resolves a raw registry table into settlements.
func ParseDivipola(raw *table.Table, department string) ([]records.Settlement, error) {
	t, err := DivipolaMapping.Resolve(raw)
	if err != nil {
		return nil, err
	}
	dept, _ := textnorm.Name(department)
	var (
		keys geokey.Resolver
		out  []records.Settlement
	)
	for i := 0; i < t.NumRows(); i++ {
		d, _ := textnorm.Name(cell(t, records.ColDepartment, i))
		if d != dept {
			continue
		}
		out = append(out, records.Settlement{
			Code:           keys.FromNumeric(cell(t, records.ColCode, i)),
			DeptCode:       optional(cell(t, records.ColDeptCode, i)),
			SettlementCode: optional(cell(t, records.ColSettlementCode, i)),
			Department:     table.Str(d),
			Municipality:   name(cell(t, records.ColMunicipality, i)),
			Name:           name(cell(t, records.ColSettlement, i)),
			Class:          optional(cell(t, records.ColClass, i)),
		})
	}
	return out, nil
}

func name(s string) table.NullString {
	v, ok := textnorm.Name(s)
	return table.NullString{V: v, Valid: ok}
}
