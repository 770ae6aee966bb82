package annotate

import (
	"fmt"

	"prospect/internal/tab"
)

// MergeTables left-joins the secondary table's non-identifier columns onto
// the primary, first match per identifier. The functional annotator emits
// its annotations and seed-ortholog alignments as separate files keyed by
// the same query; they are merged into one source table before indexing.
func MergeTables(primary, secondary *tab.Table, idCol string) (*tab.Table, error) {
	pID, ok := primary.Col(idCol)
	if !ok {
		return nil, fmt.Errorf("primary table has no column %q", idCol)
	}
	sID, ok := secondary.Col(idCol)
	if !ok {
		return nil, fmt.Errorf("secondary table has no column %q", idCol)
	}

	var extraIdx []int
	header := append([]string(nil), primary.Header...)
	for i, col := range secondary.Header {
		if i == sID {
			continue
		}
		extraIdx = append(extraIdx, i)
		header = append(header, col)
	}

	first := make(map[string][]string, len(secondary.Rows))
	for _, row := range secondary.Rows {
		id := row[sID]
		if _, seen := first[id]; !seen {
			first[id] = row
		}
	}

	rows := make([][]string, len(primary.Rows))
	for i, row := range primary.Rows {
		out := append([]string(nil), row...)
		match := first[row[pID]]
		for _, j := range extraIdx {
			cell := Sentinel
			if match != nil && j < len(match) && match[j] != "" {
				cell = match[j]
			}
			out = append(out, cell)
		}
		rows[i] = out
	}
	return tab.NewTable(header, rows), nil
}
