package cluster

import "sort"

// UnionFind is a string-keyed disjoint-set structure with path compression
// and union by rank. Elements are added lazily on first use, since cluster
// assignment files name their members implicitly.
type UnionFind struct {
	parent map[string]string
	rank   map[string]int
}

// NewUnionFind returns an empty UnionFind.
func NewUnionFind() *UnionFind {
	return &UnionFind{
		parent: make(map[string]string),
		rank:   make(map[string]int),
	}
}

// Add registers id as its own singleton component if unseen.
func (uf *UnionFind) Add(id string) {
	if _, ok := uf.parent[id]; !ok {
		uf.parent[id] = id
	}
}

// Find returns the root of the component containing id, compressing the
// path on the way up. Unknown ids are their own root.
func (uf *UnionFind) Find(id string) string {
	parent, ok := uf.parent[id]
	if !ok {
		return id
	}
	if parent == id {
		return id
	}
	root := uf.Find(parent)
	uf.parent[id] = root
	return root
}

// Union merges the components containing a and b. Returns true if they
// were previously separate.
func (uf *UnionFind) Union(a, b string) bool {
	uf.Add(a)
	uf.Add(b)
	rootA, rootB := uf.Find(a), uf.Find(b)
	if rootA == rootB {
		return false
	}
	switch {
	case uf.rank[rootA] < uf.rank[rootB]:
		uf.parent[rootA] = rootB
	case uf.rank[rootA] > uf.rank[rootB]:
		uf.parent[rootB] = rootA
	default:
		uf.parent[rootB] = rootA
		uf.rank[rootA]++
	}
	return true
}

// Same reports whether a and b are in one component.
func (uf *UnionFind) Same(a, b string) bool {
	return uf.Find(a) == uf.Find(b)
}

// Components returns the components as sorted member slices, ordered by
// their smallest member for deterministic iteration.
func (uf *UnionFind) Components() [][]string {
	groups := make(map[string][]string)
	for id := range uf.parent {
		root := uf.Find(id)
		groups[root] = append(groups[root], id)
	}
	out := make([][]string, 0, len(groups))
	for _, members := range groups {
		sort.Strings(members)
		out = append(out, members)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}
