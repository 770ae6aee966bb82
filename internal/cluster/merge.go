package cluster

import (
	"fmt"
	"sort"
	"strconv"

	"prospect/internal/tab"
)

// Unassigned marks a hierarchy slot for a record absent from the
// clustering output at that threshold.
const Unassigned = "-"

// Hierarchy holds, for every record, its cluster representative at each
// identity threshold, finest threshold first.
type Hierarchy struct {
	Taus []float64           // strictly decreasing
	Reps map[string][]string // record -> representative per threshold
}

// HierarchyViolation reports a pair of records grouped at a finer
// threshold but split by a coarser one. Coarser thresholds may only merge
// clusters, never divide them.
type HierarchyViolation struct {
	RecordA    string
	RecordB    string
	FinerTau   float64
	CoarserTau float64
}

func (v *HierarchyViolation) Error() string {
	return fmt.Sprintf("hierarchy violation: %s and %s clustered at %.2f but split at %.2f",
		v.RecordA, v.RecordB, v.FinerTau, v.CoarserTau)
}

// Merge walks the threshold sequence, finest first, and resolves every
// record's representative at each level. Because the clustering oracle
// runs each round on the previous round's representatives, the lookup at
// level n chains through the record's representative at level n-1; records
// entering a level directly are looked up by their own ID.
//
// The merged hierarchy is validated before return. A detected split is
// resolved by keeping the coarser assignment authoritative: the offending
// records lose their finer-level slots (reset to Unassigned) and every
// violation is returned for the caller to report.
func Merge(assignments []Assignment) (*Hierarchy, []HierarchyViolation, error) {
	if len(assignments) == 0 {
		return nil, nil, fmt.Errorf("no cluster assignments given")
	}
	for i := 1; i < len(assignments); i++ {
		if assignments[i].Tau >= assignments[i-1].Tau {
			return nil, nil, fmt.Errorf("thresholds must strictly decrease: %v >= %v",
				assignments[i].Tau, assignments[i-1].Tau)
		}
	}

	ids := universe(assignments)
	taus := make([]float64, len(assignments))
	for i, a := range assignments {
		taus[i] = a.Tau
	}

	h := &Hierarchy{Taus: taus, Reps: make(map[string][]string, len(ids))}
	for _, id := range ids {
		reps := make([]string, len(assignments))
		prev := Unassigned
		for n, a := range assignments {
			key := prev
			if n == 0 || prev == Unassigned {
				key = id
			}
			rep, ok := a.Rep[key]
			if !ok {
				rep = Unassigned
			}
			reps[n] = rep
			prev = rep
		}
		h.Reps[id] = reps
	}

	violations := h.check(true)
	return h, violations, nil
}

// universe collects every member ID across all assignments, sorted.
func universe(assignments []Assignment) []string {
	seen := make(map[string]struct{})
	for _, a := range assignments {
		for member := range a.Rep {
			seen[member] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Validate reports every nesting-monotonicity violation without modifying
// the hierarchy.
func Validate(h *Hierarchy) []HierarchyViolation {
	return h.check(false)
}

// check runs the coarsening validation: a union-find accumulates the
// partition from the finest level onward, and each subsequent level's
// assignment must map every accumulated component to a single
// representative. The union-find only ever merges, so a record pair joined
// at any finer level stays visible to every coarser check even across
// unassigned gaps. With repair set, members on the losing side of a split
// have their finer slots cleared.
func (h *Hierarchy) check(repair bool) []HierarchyViolation {
	ids := make([]string, 0, len(h.Reps))
	for id := range h.Reps {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	acc := NewUnionFind()
	for _, id := range ids {
		acc.Add(id)
		if rep := h.Reps[id][0]; rep != Unassigned {
			acc.Union(id, rep)
		}
	}

	var violations []HierarchyViolation
	for n := 1; n < len(h.Taus); n++ {
		// Accumulated components, in first-member order.
		var order []string
		groups := make(map[string][]string)
		for _, id := range ids {
			root := acc.Find(id)
			if _, ok := groups[root]; !ok {
				order = append(order, root)
			}
			groups[root] = append(groups[root], id)
		}

		for _, root := range order {
			members := groups[root]
			if len(members) < 2 {
				continue
			}
			violations = append(violations, h.checkComponent(members, n, repair)...)
		}

		for _, id := range ids {
			if rep := h.Reps[id][n]; rep != Unassigned {
				acc.Union(id, rep)
			}
		}
	}
	return violations
}

// checkComponent verifies that one accumulated component maps to at most
// one representative at level n. Sub-groups are ordered largest first
// (ties by smallest member); the first is kept, the rest are the rejected
// finer merges.
func (h *Hierarchy) checkComponent(members []string, n int, repair bool) []HierarchyViolation {
	var order []string
	byRep := make(map[string][]string)
	for _, id := range members {
		rep := h.Reps[id][n]
		if rep == Unassigned {
			continue
		}
		if _, ok := byRep[rep]; !ok {
			order = append(order, rep)
		}
		byRep[rep] = append(byRep[rep], id)
	}
	if len(order) < 2 {
		return nil
	}

	sort.Slice(order, func(i, j int) bool {
		a, b := byRep[order[i]], byRep[order[j]]
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		return a[0] < b[0]
	})

	kept := byRep[order[0]]
	var violations []HierarchyViolation
	for _, rep := range order[1:] {
		lost := byRep[rep]
		violations = append(violations, HierarchyViolation{
			RecordA:    kept[0],
			RecordB:    lost[0],
			FinerTau:   h.Taus[n-1],
			CoarserTau: h.Taus[n],
		})
		if repair {
			for _, id := range lost {
				for k := 0; k < n; k++ {
					h.Reps[id][k] = Unassigned
				}
			}
		}
	}
	return violations
}

// Project returns the hierarchy truncated to a subset of its thresholds,
// in the subset's order, without recomputation. Every requested threshold
// must exist in the full hierarchy.
func (h *Hierarchy) Project(taus []float64) (*Hierarchy, error) {
	idx := make([]int, len(taus))
	for i, tau := range taus {
		found := -1
		for j, have := range h.Taus {
			if have == tau {
				found = j
				break
			}
		}
		if found < 0 {
			return nil, fmt.Errorf("threshold %v not present in hierarchy", tau)
		}
		idx[i] = found
	}

	p := &Hierarchy{Taus: append([]float64(nil), taus...), Reps: make(map[string][]string, len(h.Reps))}
	for id, reps := range h.Reps {
		sub := make([]string, len(idx))
		for i, j := range idx {
			sub[i] = reps[j]
		}
		p.Reps[id] = sub
	}
	return p, nil
}

// GroupsAt returns the clusters at one threshold: representative to sorted
// members. Unassigned records are omitted.
func (h *Hierarchy) GroupsAt(tau float64) (map[string][]string, error) {
	level := -1
	for i, have := range h.Taus {
		if have == tau {
			level = i
			break
		}
	}
	if level < 0 {
		return nil, fmt.Errorf("threshold %v not present in hierarchy", tau)
	}
	groups := make(map[string][]string)
	for id, reps := range h.Reps {
		if rep := reps[level]; rep != Unassigned {
			groups[rep] = append(groups[rep], id)
		}
	}
	for _, members := range groups {
		sort.Strings(members)
	}
	return groups, nil
}

// Representatives returns, sorted, the records that represent their own
// cluster at the given threshold.
func (h *Hierarchy) Representatives(tau float64) ([]string, error) {
	groups, err := h.GroupsAt(tau)
	if err != nil {
		return nil, err
	}
	var reps []string
	for rep := range groups {
		if levelReps, ok := h.Reps[rep]; ok {
			for i, have := range h.Taus {
				if have == tau && levelReps[i] == rep {
					reps = append(reps, rep)
				}
			}
		}
	}
	sort.Strings(reps)
	return reps, nil
}

// TauLabel renders a threshold as the percent label used in column names
// and artifact paths: 0.9 -> "90".
func TauLabel(tau float64) string {
	return strconv.FormatFloat(tau*100, 'f', -1, 64)
}

// ColumnName is the merged-table column carrying the representative at one
// threshold.
func ColumnName(tau float64) string {
	return "cluster_" + TauLabel(tau) + "_repseq"
}

// AddColumns appends one representative column per threshold to the base
// table, joined on the named ID column. Records missing from the hierarchy
// get Unassigned in every slot.
func AddColumns(t *tab.Table, h *Hierarchy, idCol string) (*tab.Table, error) {
	idIdx, ok := t.Col(idCol)
	if !ok {
		return nil, fmt.Errorf("base table has no column %q", idCol)
	}

	header := append([]string(nil), t.Header...)
	for _, tau := range h.Taus {
		header = append(header, ColumnName(tau))
	}

	rows := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		out := append([]string(nil), row...)
		reps, ok := h.Reps[row[idIdx]]
		for j := range h.Taus {
			if ok {
				out = append(out, reps[j])
			} else {
				out = append(out, Unassigned)
			}
		}
		rows[i] = out
	}
	return tab.NewTable(header, rows), nil
}
