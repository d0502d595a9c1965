package profile

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/crimeloom/internal/schema"
	"github.com/KaramelBytes/crimeloom/internal/store"
	"github.com/KaramelBytes/crimeloom/internal/table"
)

// Source selects how a file is read.
type Source struct {
	// Delimiter of CSV files; ',' when zero.
	Delimiter rune
	// Sheet names the XLSX sheet; SheetIndex (1-based) is used when empty.
	Sheet      string
	SheetIndex int
	// HeaderScan is how many leading rows of a sheet are searched for the
	// header row.
	HeaderScan int
}

// Load reads a parquet table written by the pipeline, a CSV file or one
// sheet of an XLSX workbook. Text columns whose values all parse as
// numbers become float columns.
func Load(ctx context.Context, path string, src Source) (*table.Table, error) {
	var (
		t   *table.Table
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return store.Read(ctx, path)
	case ".xlsx":
		t, err = loadXLSX(path, src)
	case ".csv", ".tsv", ".txt":
		f, oerr := os.Open(path)
		if oerr != nil {
			return nil, oerr
		}
		defer f.Close()
		delim := src.Delimiter
		if delim == 0 && strings.EqualFold(filepath.Ext(path), ".tsv") {
			delim = '\t'
		}
		t, err = ReadCSV(f, delim)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	return InferNumeric(t)
}

// InferNumeric converts string columns holding only numbers (and nulls) to
// float columns. Columns without any value stay strings.
func InferNumeric(t *table.Table) (*table.Table, error) {
	var conv []*table.Column
	for _, c := range t.Columns() {
		if c.Kind != table.String {
			continue
		}
		out := table.NewColumn(c.Name, table.Float64, c.Len())
		ok, seen := true, false
		for i := 0; i < c.Len() && ok; i++ {
			if c.IsNull(i) {
				out.AppendNull()
				continue
			}
			v := table.ParseFloat(c.Text(i))
			ok = v.Valid
			seen = true
			out.AppendFloat(v)
		}
		if ok && seen {
			conv = append(conv, out)
		}
	}
	if len(conv) == 0 {
		return t, nil
	}
	return t.With(conv...)
}

// ReadCSV reads delimited text whose first record is the header.
func ReadCSV(r io.Reader, delim rune) (*table.Table, error) {
	cr := csv.NewReader(r)
	if delim != 0 {
		cr.Comma = delim
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	recs, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("read csv: empty input")
	}
	if len(recs[0]) > 0 {
		recs[0][0] = strings.TrimPrefix(recs[0][0], "\ufeff")
	}
	return table.FromStrings(recs[0], recs[1:]), nil
}

func loadXLSX(path string, src Source) (*table.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	sheet := src.Sheet
	if sheet != "" {
		found := false
		for _, s := range sheets {
			if strings.EqualFold(s, sheet) {
				sheet, found = s, true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("sheet '%s' not found in workbook '%s'.\nAvailable sheets: %s",
				src.Sheet, filepath.Base(path), strings.Join(sheets, ", "))
		}
	} else {
		idx := max(src.SheetIndex, 1)
		if idx > len(sheets) {
			return nil, fmt.Errorf("workbook '%s' has %d sheets, index %d requested", filepath.Base(path), len(sheets), idx)
		}
		sheet = sheets[idx-1]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	scan := src.HeaderScan
	if scan <= 0 {
		scan = 10
	}
	header := schema.DetectHeaderRow(rows, 0, scan-1)
	names, data := schema.HeaderTable(rows, header)
	if len(names) == 0 {
		return nil, fmt.Errorf("sheet %q has no header row", sheet)
	}
	return table.FromStrings(names, data), nil
}
