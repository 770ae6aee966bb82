// Package hits models rows of the homology hit table and filters them by
// domain composition, coverage, and length.
package hits

import (
	"fmt"
	"regexp"
	"strconv"

	"prospect/internal/tab"
)

// Hit is one parsed row of the hit table. Row keeps the raw fields so a
// passing hit is written back without column loss.
type Hit struct {
	ID        string
	Domains   []string  // matched domain names, hit order
	Coverage  []float64 // per-domain model coverage, aligned with Domains
	TargetLen int
	Score     float64
	Start     int // protein start on the contig, 0 when unknown
	End       int
	Strand    int
	Source    string
	Row       []string
}

// MalformedRecordError marks a row that cannot be parsed into a Hit. The
// row is dropped and counted; it never fails the batch.
type MalformedRecordError struct {
	ID     string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	if e.ID == "" {
		return "malformed record: " + e.Reason
	}
	return fmt.Sprintf("malformed record %s: %s", e.ID, e.Reason)
}

// Column aliases: the canonical names on the left, the hmmsearch summary
// names the upstream tooling emits on the right.
var colAliases = map[string][]string{
	"record_id":    {"record_id", "target_name"},
	"domain_names": {"domain_names", "query_names"},
	"coverage":     {"coverage", "domain_mdl_hit_coverage"},
	"target_len":   {"target_len", "tlen"},
	"score":        {"score", "full_seq_score"},
	"start":        {"start", "prot_start"},
	"end":          {"end", "prot_end"},
	"strand":       {"strand"},
	"source":       {"source"},
	"description":  {"description"},
}

func lookup(t *tab.Table, row []string, canonical string) (string, bool) {
	for _, name := range colAliases[canonical] {
		if i, ok := t.Col(name); ok && i < len(row) {
			return row[i], true
		}
	}
	return "", false
}

// positionRe matches the prodigal-style header suffix "# start # end # strand #".
var positionRe = regexp.MustCompile(`#\s*(\d+)\s*#\s*(\d+)\s*#\s*(-?\d+)\s*#`)

// ParsePosition extracts protein coordinates from a FASTA description.
func ParsePosition(description string) (start, end, strand int, ok bool) {
	m := positionRe.FindStringSubmatch(description)
	if m == nil {
		return 0, 0, 0, false
	}
	start, _ = strconv.Atoi(m[1])
	end, _ = strconv.Atoi(m[2])
	strand, _ = strconv.Atoi(m[3])
	return start, end, strand, true
}

// Parse builds a Hit from a table row. Score values may carry list scores
// (one per domain hit); the first is taken as the sequence score, matching
// the upstream summary where full_seq_score repeats per domain.
func Parse(t *tab.Table, row []string) (Hit, error) {
	h := Hit{Row: row}

	id, ok := lookup(t, row, "record_id")
	if !ok || id == "" {
		return h, &MalformedRecordError{Reason: "missing record_id"}
	}
	h.ID = id

	domCell, ok := lookup(t, row, "domain_names")
	if !ok {
		return h, &MalformedRecordError{ID: id, Reason: "missing domain_names"}
	}
	h.Domains = tab.ParseList(domCell)
	if len(h.Domains) == 0 {
		return h, &MalformedRecordError{ID: id, Reason: "empty domain_names"}
	}

	covCell, ok := lookup(t, row, "coverage")
	if !ok {
		return h, &MalformedRecordError{ID: id, Reason: "missing coverage"}
	}
	cov, okList := tab.ParseFloatList(covCell)
	if !okList {
		// Plain scalar coverage is accepted for the canonical contract.
		v, err := strconv.ParseFloat(covCell, 64)
		if err != nil {
			return h, &MalformedRecordError{ID: id, Reason: "unparseable coverage " + covCell}
		}
		cov = []float64{v}
	}
	h.Coverage = cov

	lenCell, ok := lookup(t, row, "target_len")
	if !ok {
		return h, &MalformedRecordError{ID: id, Reason: "missing target_len"}
	}
	tlen, err := strconv.Atoi(lenCell)
	if err != nil {
		// tlen may arrive as a float from upstream tooling.
		f, ferr := strconv.ParseFloat(lenCell, 64)
		if ferr != nil {
			return h, &MalformedRecordError{ID: id, Reason: "unparseable target_len " + lenCell}
		}
		tlen = int(f)
	}
	h.TargetLen = tlen

	if scoreCell, ok := lookup(t, row, "score"); ok {
		if scores, okList := tab.ParseFloatList(scoreCell); okList && len(scores) > 0 {
			h.Score = scores[0]
		} else if v, err := strconv.ParseFloat(scoreCell, 64); err == nil {
			h.Score = v
		} else {
			return h, &MalformedRecordError{ID: id, Reason: "unparseable score " + scoreCell}
		}
	}

	if v, ok := lookup(t, row, "start"); ok {
		h.Start, _ = strconv.Atoi(v)
	}
	if v, ok := lookup(t, row, "end"); ok {
		h.End, _ = strconv.Atoi(v)
	}
	if v, ok := lookup(t, row, "strand"); ok {
		h.Strand, _ = strconv.Atoi(v)
	}
	if h.Start == 0 && h.End == 0 {
		if desc, ok := lookup(t, row, "description"); ok {
			if s, e, st, ok := ParsePosition(desc); ok {
				h.Start, h.End, h.Strand = s, e, st
			}
		}
	}
	h.Source, _ = lookup(t, row, "source")

	return h, nil
}
