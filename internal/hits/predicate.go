package hits

import (
	"fmt"
	"strings"
)

// Predicate is the boolean domain-composition filter: a hit's domain set
// must contain every name in All, and, when Any is non-empty, at least one
// name from Any. Built once from config and validated before use.
type Predicate struct {
	All []string
	Any []string

	all map[string]struct{}
	any map[string]struct{}
}

// NewPredicate validates the name lists and builds the lookup sets.
func NewPredicate(all, any []string) (Predicate, error) {
	p := Predicate{
		All: all,
		Any: any,
		all: make(map[string]struct{}, len(all)),
		any: make(map[string]struct{}, len(any)),
	}
	for _, n := range all {
		if strings.TrimSpace(n) == "" {
			return Predicate{}, fmt.Errorf("empty name in AND filter list")
		}
		p.all[n] = struct{}{}
	}
	for _, n := range any {
		if strings.TrimSpace(n) == "" {
			return Predicate{}, fmt.Errorf("empty name in ANY filter list")
		}
		p.any[n] = struct{}{}
	}
	return p, nil
}

// Matches reports whether the domain set satisfies the predicate.
func (p Predicate) Matches(domains []string) bool {
	return p.matchesAll(domains) && (len(p.any) == 0 || p.matchesAny(domains))
}

// matchesAll reports whether domains is a superset of the All set.
func (p Predicate) matchesAll(domains []string) bool {
	if len(p.all) == 0 {
		return true
	}
	seen := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		seen[d] = struct{}{}
	}
	for n := range p.all {
		if _, ok := seen[n]; !ok {
			return false
		}
	}
	return true
}

// matchesAny reports whether domains intersects the Any set.
func (p Predicate) matchesAny(domains []string) bool {
	for _, d := range domains {
		if _, ok := p.any[d]; ok {
			return true
		}
	}
	return false
}

// relevantCoverage returns the best per-domain coverage among the domains
// the predicate selects: Any-set members when Any is non-empty, otherwise
// every domain on the hit. ok is false when no selected domain carries a
// coverage value.
func (p Predicate) relevantCoverage(h Hit) (float64, bool) {
	best, found := 0.0, false
	for i, d := range h.Domains {
		if len(p.any) > 0 {
			if _, ok := p.any[d]; !ok {
				continue
			}
		}
		if i < len(h.Coverage) {
			if !found || h.Coverage[i] > best {
				best, found = h.Coverage[i], true
			}
		}
	}
	return best, found
}
