// Package cluster merges per-threshold cluster assignments into one
// nested membership hierarchy and validates that coarser thresholds only
// ever merge clusters formed at finer ones.
package cluster

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Assignment is the clustering oracle's output at one identity threshold:
// every member mapped to its cluster representative.
type Assignment struct {
	Tau float64
	Rep map[string]string // member -> representative
}

// LoadAssignment reads a headerless two-column cluster TSV (representative,
// member) as mmseqs emits it.
func LoadAssignment(path string, tau float64) (Assignment, error) {
	f, err := os.Open(path)
	if err != nil {
		return Assignment{}, err
	}
	defer f.Close()

	a := Assignment{Tau: tau, Rep: make(map[string]string)}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if text == "" {
			continue
		}
		fields := strings.Split(text, "\t")
		if len(fields) != 2 {
			return Assignment{}, fmt.Errorf("%s line %d: expected 2 fields, got %d", path, line, len(fields))
		}
		a.Rep[fields[1]] = fields[0]
	}
	if err := sc.Err(); err != nil {
		return Assignment{}, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

// Partition builds the assignment's partition as a union-find, joining
// every member to its representative. This also normalizes chained
// representatives within one file.
func (a Assignment) Partition() *UnionFind {
	uf := NewUnionFind()
	for member, rep := range a.Rep {
		uf.Union(member, rep)
	}
	return uf
}
