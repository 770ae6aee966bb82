// Package report finalizes the merged table: attaches sequences and
// splits the result into balanced shards for parallel downstream
// consumers.
package report

import (
	"fmt"
	"os"
	"path/filepath"

	"prospect/internal/tab"
)

// Span is a contiguous half-open row range [Start, End).
type Span struct {
	Start int
	End   int
}

// Len returns the number of rows in the span.
func (s Span) Len() int { return s.End - s.Start }

// Partition computes parts contiguous spans over rowCount rows whose sizes
// differ by at most one. The first rowCount%parts spans take the extra
// row, so concatenating the spans in order reproduces the original range.
func Partition(rowCount, parts int) ([]Span, error) {
	if parts < 1 {
		return nil, fmt.Errorf("parts must be >= 1, got %d", parts)
	}
	if rowCount < 0 {
		return nil, fmt.Errorf("row count must be >= 0, got %d", rowCount)
	}
	base := rowCount / parts
	extra := rowCount % parts
	spans := make([]Span, parts)
	pos := 0
	for i := range spans {
		size := base
		if i < extra {
			size++
		}
		spans[i] = Span{Start: pos, End: pos + size}
		pos += size
	}
	return spans, nil
}

// Split writes the table into parts shard files named
// <prefix>_<i+1>.tsv under dir, each carrying the header, preserving row
// order across shard boundaries. Shard paths are returned in order.
func Split(t *tab.Table, parts int, dir, prefix string) ([]string, error) {
	spans, err := Partition(len(t.Rows), parts)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	paths := make([]string, parts)
	for i, span := range spans {
		shard := tab.NewTable(t.Header, t.Rows[span.Start:span.End])
		path := filepath.Join(dir, fmt.Sprintf("%s_%d.tsv", prefix, i+1))
		if err := tab.WriteFile(path, shard); err != nil {
			return nil, fmt.Errorf("writing shard %d: %w", i+1, err)
		}
		paths[i] = path
	}
	return paths, nil
}
