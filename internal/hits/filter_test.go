package hits

import (
	"context"
	"fmt"
	"math/rand"
	"reflect"
	"testing"

	"prospect/internal/tab"
	"prospect/internal/testutil"
)

func row(id string, domains []string, cov []float64, tlen int, score float64) []string {
	covs := make([]string, len(cov))
	for i, c := range cov {
		covs[i] = fmt.Sprintf("%g", c)
	}
	return []string{
		id,
		tab.RenderList(domains),
		tab.RenderList(covs),
		fmt.Sprintf("%d", tlen),
		fmt.Sprintf("%g", score),
		"",
		"test",
	}
}

func TestFilterBasics(t *testing.T) {
	tbl := hitTable([][]string{
		row("keep", []string{"A", "B"}, []float64{0.9, 0.9}, 800, 100),
		row("short", []string{"A", "B"}, []float64{0.9, 0.9}, 100, 100),
		row("lowcov", []string{"A", "B"}, []float64{0.1, 0.1}, 800, 100),
		row("wrongdoms", []string{"C"}, []float64{0.9}, 800, 100),
		row("lowscore", []string{"A", "B"}, []float64{0.9, 0.9}, 800, 5),
	})
	pred, _ := NewPredicate([]string{"A"}, nil)
	opt := FilterOptions{Predicate: pred, CovThreshold: 0.5, MinLen: 400, ScoreCutoff: 16, Workers: 2}

	out, stats, err := Filter(context.Background(), tbl, opt, testutil.NewTestLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	if stats.Accepted != 1 || stats.Rejected != 4 || stats.Malformed != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	if len(out.Rows) != 1 || out.Get(out.Rows[0], "target_name") != "keep" {
		t.Fatalf("unexpected output rows: %v", out.Rows)
	}
}

func TestFilterCountsMalformed(t *testing.T) {
	tbl := hitTable([][]string{
		row("ok", []string{"A"}, []float64{0.9}, 800, 100),
		{"", "[A]", "[0.9]", "800", "100", "", "test"},
		{"noisy", "[A]", "junk", "800", "100", "", "test"},
	})
	pred, _ := NewPredicate(nil, nil)
	opt := FilterOptions{Predicate: pred, Workers: 1}

	_, stats, err := Filter(context.Background(), tbl, opt, nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Malformed != 2 {
		t.Errorf("malformed = %d, want 2", stats.Malformed)
	}
	if stats.Accepted != 1 {
		t.Errorf("accepted = %d, want 1", stats.Accepted)
	}
}

func TestFilterAnyCoverageScope(t *testing.T) {
	// Coverage is judged on the domains the ANY list selects, not on
	// unrelated domains riding along on the same hit.
	tbl := hitTable([][]string{
		row("pass", []string{"X", "Cas9"}, []float64{0.05, 0.8}, 800, 100),
		row("fail", []string{"Cas9", "X"}, []float64{0.05, 0.9}, 800, 100),
	})
	pred, _ := NewPredicate(nil, []string{"Cas9"})
	opt := FilterOptions{Predicate: pred, CovThreshold: 0.5, Workers: 1}

	out, _, err := Filter(context.Background(), tbl, opt, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Rows) != 1 || out.Get(out.Rows[0], "target_name") != "pass" {
		t.Fatalf("expected only 'pass', got %v", out.Rows)
	}
}

func TestFilterDeterministicAcrossWorkerCounts(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	var rows [][]string
	for i := 0; i < 200; i++ {
		rows = append(rows, row(
			fmt.Sprintf("seq%03d", i),
			[]string{"A", "B", "C"}[0:1+rng.Intn(3)],
			[]float64{rng.Float64(), rng.Float64(), rng.Float64()},
			rng.Intn(2000),
			rng.Float64()*200,
		))
	}
	tbl := hitTable(rows)
	pred, _ := NewPredicate([]string{"A"}, nil)
	opt := FilterOptions{Predicate: pred, CovThreshold: 0.3, MinLen: 300, ScoreCutoff: 16}

	var first *tab.Table
	for _, workers := range []int{1, 3, 8} {
		opt.Workers = workers
		out, _, err := Filter(context.Background(), tbl, opt, nil)
		if err != nil {
			t.Fatal(err)
		}
		if first == nil {
			first = out
			continue
		}
		if !reflect.DeepEqual(out.Rows, first.Rows) {
			t.Fatalf("output differs between worker counts (workers=%d)", workers)
		}
	}
}

// randomized predicate property: output is a subset of input, and a row
// is present exactly when it satisfies the acceptance rule.
func TestFilterPropertyMembership(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	domains := []string{"A", "B", "C", "D", "E"}

	for trial := 0; trial < 50; trial++ {
		var rows [][]string
		for i := 0; i < 60; i++ {
			n := 1 + rng.Intn(3)
			doms := make([]string, 0, n)
			covs := make([]float64, 0, n)
			for j := 0; j < n; j++ {
				doms = append(doms, domains[rng.Intn(len(domains))])
				covs = append(covs, rng.Float64())
			}
			rows = append(rows, row(fmt.Sprintf("t%d_%03d", trial, i), doms, covs, rng.Intn(1500), 20+rng.Float64()*100))
		}
		tbl := hitTable(rows)

		var all, any []string
		for _, d := range domains {
			switch rng.Intn(4) {
			case 0:
				all = append(all, d)
			case 1:
				any = append(any, d)
			}
		}
		pred, err := NewPredicate(all, any)
		if err != nil {
			t.Fatal(err)
		}
		opt := FilterOptions{Predicate: pred, CovThreshold: rng.Float64() * 0.8, MinLen: rng.Intn(1000), Workers: 4}

		out, _, err := Filter(context.Background(), tbl, opt, nil)
		if err != nil {
			t.Fatal(err)
		}

		inIDs := make(map[string][]string)
		for _, r := range tbl.Rows {
			inIDs[r[0]] = r
		}
		for _, r := range out.Rows {
			src, ok := inIDs[r[0]]
			if !ok {
				t.Fatalf("trial %d: output row %q not in input", trial, r[0])
			}
			h, err := Parse(tbl, src)
			if err != nil || !passes(h, opt) {
				t.Fatalf("trial %d: row %q in output but fails the rule", trial, r[0])
			}
		}
		outIDs := make(map[string]struct{})
		for _, r := range out.Rows {
			outIDs[r[0]] = struct{}{}
		}
		for _, r := range tbl.Rows {
			h, err := Parse(tbl, r)
			if err != nil {
				continue
			}
			_, present := outIDs[h.ID]
			if passes(h, opt) && !present {
				t.Fatalf("trial %d: row %q passes the rule but is missing", trial, h.ID)
			}
		}
	}
}

func TestFilterIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var rows [][]string
	for i := 0; i < 100; i++ {
		rows = append(rows, row(
			fmt.Sprintf("s%03d", i),
			[]string{"A", "B"}[:1+rng.Intn(2)],
			[]float64{rng.Float64(), rng.Float64()},
			rng.Intn(1200),
			rng.Float64()*100,
		))
	}
	tbl := hitTable(rows)
	pred, _ := NewPredicate(nil, []string{"A"})
	opt := FilterOptions{Predicate: pred, CovThreshold: 0.4, MinLen: 200, Workers: 2}

	once, _, err := Filter(context.Background(), tbl, opt, nil)
	if err != nil {
		t.Fatal(err)
	}
	twice, stats, err := Filter(context.Background(), once, opt, nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Rejected != 0 || stats.Malformed != 0 {
		t.Errorf("second pass rejected rows: %+v", stats)
	}
	if !reflect.DeepEqual(once.Rows, twice.Rows) {
		t.Error("filter is not a fixed point on its own output")
	}
}
