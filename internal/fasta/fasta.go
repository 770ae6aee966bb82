// Package fasta is a minimal FASTA reader: enough to map record IDs to
// sequences for report enrichment.
package fasta

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// Record is one FASTA entry. ID is the first whitespace-delimited word of
// the header; Description the remainder.
type Record struct {
	ID          string
	Description string
	Seq         string
}

// Parse reads all records from r. Sequence lines are concatenated.
func Parse(r io.Reader) ([]Record, error) {
	br := bufio.NewReaderSize(r, 1<<16)
	var records []Record
	var cur *Record
	var seq strings.Builder

	flush := func() {
		if cur != nil {
			cur.Seq = seq.String()
			records = append(records, *cur)
			seq.Reset()
		}
	}

	for {
		line, err := br.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line != "" {
			if strings.HasPrefix(line, ">") {
				flush()
				header := strings.TrimPrefix(line, ">")
				id, desc := header, ""
				if i := strings.IndexAny(header, " \t"); i >= 0 {
					id, desc = header[:i], strings.TrimSpace(header[i+1:])
				}
				cur = &Record{ID: id, Description: desc}
			} else if cur != nil {
				seq.WriteString(line)
			}
		}
		if err == io.EOF {
			flush()
			return records, nil
		}
		if err != nil {
			return records, err
		}
	}
}

// Index reads a FASTA file into an ID-to-sequence map.
func Index(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := Parse(f)
	if err != nil {
		return nil, err
	}
	idx := make(map[string]string, len(records))
	for _, rec := range records {
		idx[rec.ID] = rec.Seq
	}
	return idx, nil
}
