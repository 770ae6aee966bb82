// Package annotate joins annotation tables onto a base record table by
// record identifier. Every base record survives the join; absent
// annotations are filled with an explicit sentinel.
package annotate

import (
	"fmt"
	"io"
	"log/slog"

	"prospect/internal/tab"
)

// Sentinel fills annotation fields for base records with no match in a
// source. It is written literally, never an empty cell.
const Sentinel = "-"

// Source is one annotation table, pre-indexed by record identifier. A
// record may carry zero, one, or many annotation rows. Positional sources
// (rows with start/end/strand coordinates) are expanded one output row per
// annotation row; non-positional sources collapse to bracketed lists.
type Source struct {
	Name       string
	Positional bool
	Fields     []string // annotation columns, id column excluded

	fieldIdx []int
	index    map[string][][]string
}

// NewSource indexes an annotation table once by idCol. Positional mode is
// detected from the presence of start, end, and strand columns.
func NewSource(name string, t *tab.Table, idCol string) (*Source, error) {
	idIdx, ok := t.Col(idCol)
	if !ok {
		return nil, fmt.Errorf("annotation source %s: no column %q", name, idCol)
	}

	s := &Source{Name: name, index: make(map[string][][]string)}
	_, hasStart := t.Col("start")
	_, hasEnd := t.Col("end")
	_, hasStrand := t.Col("strand")
	s.Positional = hasStart && hasEnd && hasStrand

	for i, col := range t.Header {
		if i == idIdx {
			continue
		}
		s.Fields = append(s.Fields, col)
		s.fieldIdx = append(s.fieldIdx, i)
	}

	for _, row := range t.Rows {
		id := row[idIdx]
		if id == "" {
			continue
		}
		s.index[id] = append(s.index[id], row)
	}
	return s, nil
}

// Rows returns the indexed annotation rows for a record, in table order.
func (s *Source) Rows(id string) [][]string { return s.index[id] }

// Stats counts the integrator's work per source.
type Stats struct {
	BaseRows int
	OutRows  int
	Matched  map[string]int // base records with >=1 annotation, per source
}

// Integrate performs the left outer join of sources onto the base table.
// Base row order is preserved; positional sources multiply rows, so a base
// record appears at least once, and exactly once when every source
// collapses.
func Integrate(base *tab.Table, idCol string, sources []*Source, logger *slog.Logger) (*tab.Table, Stats, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	idIdx, ok := base.Col(idCol)
	if !ok {
		return nil, Stats{}, fmt.Errorf("base table has no column %q", idCol)
	}

	header := outputHeader(base.Header, sources)
	stats := Stats{Matched: make(map[string]int, len(sources))}

	var out [][]string
	for _, row := range base.Rows {
		stats.BaseRows++
		expanded := joinRow(row, row[idIdx], sources, &stats)
		out = append(out, expanded...)
	}
	stats.OutRows = len(out)

	for _, s := range sources {
		logger.Info("annotation source joined",
			"source", s.Name, "positional", s.Positional,
			"matched", stats.Matched[s.Name], "base", stats.BaseRows)
	}
	return tab.NewTable(header, out), stats, nil
}

// IntegrateStream is the bounded-memory variant: the base table is read in
// chunks of chunkSize rows and joined rows are written as they are
// produced. Sources are already indexed, so chunking never rescans them.
func IntegrateStream(r *tab.Reader, w *tab.Writer, idCol string, sources []*Source, chunkSize int, logger *slog.Logger) (Stats, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if chunkSize < 1 {
		chunkSize = 1
	}
	idIdx, ok := r.Col(idCol)
	if !ok {
		return Stats{}, fmt.Errorf("base table has no column %q", idCol)
	}

	stats := Stats{Matched: make(map[string]int, len(sources))}
	for {
		rows, malformed, err := r.ReadChunk(chunkSize)
		if err != nil && err != io.EOF {
			return stats, err
		}
		if malformed > 0 {
			logger.Warn("dropped malformed base rows", "count", malformed)
		}
		for _, row := range rows {
			stats.BaseRows++
			for _, joined := range joinRow(row, row[idIdx], sources, &stats) {
				if err := w.Write(joined); err != nil {
					return stats, err
				}
				stats.OutRows++
			}
		}
		if len(rows) < chunkSize {
			break
		}
	}
	return stats, w.Flush()
}

// OutputHeader is the joined header for a base header and source list.
func OutputHeader(base []string, sources []*Source) []string {
	return outputHeader(base, sources)
}

func outputHeader(base []string, sources []*Source) []string {
	header := append([]string(nil), base...)
	for _, s := range sources {
		for _, f := range s.Fields {
			header = append(header, s.Name+"_"+f)
		}
	}
	return header
}

// joinRow expands one base row across all sources. Collapsing sources
// append one cell per field (bracketed list or sentinel); positional
// sources emit the cross-product of the rows accumulated so far with their
// annotation rows.
func joinRow(row []string, id string, sources []*Source, stats *Stats) [][]string {
	acc := [][]string{append([]string(nil), row...)}
	for _, s := range sources {
		matches := s.index[id]
		if len(matches) > 0 {
			stats.Matched[s.Name]++
		}

		if !s.Positional {
			cells := collapseCells(s, matches)
			for i := range acc {
				acc[i] = append(acc[i], cells...)
			}
			continue
		}

		if len(matches) == 0 {
			for i := range acc {
				for range s.Fields {
					acc[i] = append(acc[i], Sentinel)
				}
			}
			continue
		}
		next := make([][]string, 0, len(acc)*len(matches))
		for _, prefix := range acc {
			for _, m := range matches {
				joined := append([]string(nil), prefix...)
				for _, fi := range s.fieldIdx {
					cell := Sentinel
					if fi < len(m) && m[fi] != "" {
						cell = m[fi]
					}
					joined = append(joined, cell)
				}
				next = append(next, joined)
			}
		}
		acc = next
	}
	return acc
}

// collapseCells renders one cell per source field: the field's values
// across all annotation rows as a bracketed list, or the sentinel when the
// record has no annotation.
func collapseCells(s *Source, matches [][]string) []string {
	cells := make([]string, len(s.Fields))
	if len(matches) == 0 {
		for i := range cells {
			cells[i] = Sentinel
		}
		return cells
	}
	for i, fi := range s.fieldIdx {
		values := make([]string, 0, len(matches))
		for _, m := range matches {
			v := ""
			if fi < len(m) {
				v = m[fi]
			}
			if v == "" {
				v = Sentinel
			}
			values = append(values, v)
		}
		cells[i] = tab.RenderList(values)
	}
	return cells
}
