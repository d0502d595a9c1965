package schema

import "strings"

// DetectHeaderRow picks the row in [from, to] with the most non-empty cells;
// the earliest row wins ties. It falls back to row 0 when the range does not
// fit the data or every candidate row is empty.
func DetectHeaderRow(rows [][]string, from, to int) int {
	if from < 0 {
		from = 0
	}
	if to > len(rows)-1 {
		to = len(rows) - 1
	}
	if from > to {
		return 0
	}
	best, bestCount := from, -1
	for i := from; i <= to; i++ {
		if n := nonEmpty(rows[i]); n > bestCount {
			best, bestCount = i, n
		}
	}
	if bestCount == 0 {
		return 0
	}
	return best
}

func nonEmpty(row []string) int {
	n := 0
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			n++
		}
	}
	return n
}

// HeaderTable turns spreadsheet rows into a header and data rows: the header
// is trimmed, blank header cells drop their column and fully blank data rows
// are skipped.
func HeaderTable(rows [][]string, header int) ([]string, [][]string) {
	if header < 0 || header >= len(rows) {
		return nil, nil
	}
	var (
		names []string
		keep  []int
	)
	for j, h := range rows[header] {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		names = append(names, h)
		keep = append(keep, j)
	}
	var data [][]string
	for _, r := range rows[header+1:] {
		rec := make([]string, len(keep))
		filled := false
		for k, j := range keep {
			if j < len(r) {
				rec[k] = strings.TrimSpace(r[j])
				if rec[k] != "" {
					filled = true
				}
			}
		}
		if filled {
			data = append(data, rec)
		}
	}
	return names, data
}
