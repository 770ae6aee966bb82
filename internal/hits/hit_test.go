package hits

import (
	"testing"

	"prospect/internal/tab"
)

func TestParsePosition(t *testing.T) {
	tests := []struct {
		desc               string
		start, end, strand int
		ok                 bool
	}{
		{"contig_1 # 337 # 2799 # 1 # ID=1_1", 337, 2799, 1, true},
		{"contig_9 # 10 # 90 # -1 #", 10, 90, -1, true},
		{"no coordinates here", 0, 0, 0, false},
		{"", 0, 0, 0, false},
	}
	for _, tt := range tests {
		start, end, strand, ok := ParsePosition(tt.desc)
		if ok != tt.ok || start != tt.start || end != tt.end || strand != tt.strand {
			t.Errorf("ParsePosition(%q) = (%d, %d, %d, %v), want (%d, %d, %d, %v)",
				tt.desc, start, end, strand, ok, tt.start, tt.end, tt.strand, tt.ok)
		}
	}
}

func hitTable(rows [][]string) *tab.Table {
	header := []string{"target_name", "query_names", "domain_mdl_hit_coverage", "tlen", "full_seq_score", "description", "source"}
	return tab.NewTable(header, rows)
}

func TestParseHit(t *testing.T) {
	tbl := hitTable([][]string{
		{"seq1", "[Cas9_PI, HNH]", "[0.85, 0.4]", "1368", "[321.5, 88.0]", "c1 # 100 # 4205 # 1 #", "genomes"},
	})
	h, err := Parse(tbl, tbl.Rows[0])
	if err != nil {
		t.Fatal(err)
	}
	if h.ID != "seq1" {
		t.Errorf("ID = %q", h.ID)
	}
	if len(h.Domains) != 2 || h.Domains[0] != "Cas9_PI" || h.Domains[1] != "HNH" {
		t.Errorf("Domains = %v", h.Domains)
	}
	if len(h.Coverage) != 2 || h.Coverage[0] != 0.85 {
		t.Errorf("Coverage = %v", h.Coverage)
	}
	if h.TargetLen != 1368 || h.Score != 321.5 {
		t.Errorf("TargetLen=%d Score=%v", h.TargetLen, h.Score)
	}
	if h.Start != 100 || h.End != 4205 || h.Strand != 1 {
		t.Errorf("position = (%d, %d, %d)", h.Start, h.End, h.Strand)
	}
	if h.Source != "genomes" {
		t.Errorf("Source = %q", h.Source)
	}
}

func TestParseHitCanonicalColumns(t *testing.T) {
	tbl := tab.NewTable(
		[]string{"record_id", "coverage", "target_len", "domain_names", "score"},
		[][]string{{"r1", "0.5", "900", "[RuvC]", "42.0"}},
	)
	h, err := Parse(tbl, tbl.Rows[0])
	if err != nil {
		t.Fatal(err)
	}
	if h.ID != "r1" || h.Coverage[0] != 0.5 || h.TargetLen != 900 || h.Score != 42.0 {
		t.Errorf("unexpected hit: %+v", h)
	}
}

func TestParseHitMalformed(t *testing.T) {
	tests := []struct {
		name string
		row  []string
	}{
		{"missing id", []string{"", "[A]", "[0.5]", "100", "1.0", "", "s"}},
		{"empty domains", []string{"x", "[]", "[0.5]", "100", "1.0", "", "s"}},
		{"bad coverage", []string{"x", "[A]", "not-a-number", "100", "1.0", "", "s"}},
		{"bad length", []string{"x", "[A]", "[0.5]", "abc", "1.0", "", "s"}},
	}
	for _, tt := range tests {
		tbl := hitTable([][]string{tt.row})
		if _, err := Parse(tbl, tbl.Rows[0]); err == nil {
			t.Errorf("%s: expected MalformedRecordError", tt.name)
		}
	}
}

func TestPredicateMatches(t *testing.T) {
	tests := []struct {
		name    string
		all     []string
		any     []string
		domains []string
		want    bool
	}{
		{"empty predicate passes", nil, nil, []string{"X"}, true},
		{"all present", []string{"A", "B"}, nil, []string{"A", "B", "C"}, true},
		{"all missing one", []string{"A", "B"}, nil, []string{"A", "C"}, false},
		{"any hit", nil, []string{"A", "B"}, []string{"B"}, true},
		{"any miss", nil, []string{"A", "B"}, []string{"C"}, false},
		{"all and any", []string{"A"}, []string{"B", "C"}, []string{"A", "C"}, true},
		{"all ok any miss", []string{"A"}, []string{"B"}, []string{"A", "C"}, false},
	}
	for _, tt := range tests {
		p, err := NewPredicate(tt.all, tt.any)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if got := p.Matches(tt.domains); got != tt.want {
			t.Errorf("%s: Matches(%v) = %v, want %v", tt.name, tt.domains, got, tt.want)
		}
	}
}

func TestNewPredicateRejectsBlankNames(t *testing.T) {
	if _, err := NewPredicate([]string{" "}, nil); err == nil {
		t.Error("blank AND name must be rejected")
	}
	if _, err := NewPredicate(nil, []string{""}); err == nil {
		t.Error("blank ANY name must be rejected")
	}
}
