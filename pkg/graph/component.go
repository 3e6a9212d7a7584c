package graph

// UnionFind implements a disjoint-set data structure with path compression
// and union by rank.
type UnionFind struct {
	parent []uint32
	rank   []byte
	size   []uint32
}

// NewUnionFind creates a UnionFind for n elements.
func NewUnionFind(n uint32) *UnionFind {
	parent := make([]uint32, n)
	size := make([]uint32, n)
	for i := range n {
		parent[i] = i
		size[i] = 1
	}
	return &UnionFind{
		parent: parent,
		rank:   make([]byte, n),
		size:   size,
	}
}

// Find returns the representative of the set containing x, with path halving.
func (uf *UnionFind) Find(x uint32) uint32 {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

// Union merges the sets containing x and y. Returns false if already same set.
func (uf *UnionFind) Union(x, y uint32) bool {
	rx := uf.Find(x)
	ry := uf.Find(y)
	if rx == ry {
		return false
	}

	if uf.rank[rx] < uf.rank[ry] {
		rx, ry = ry, rx
	}
	uf.parent[ry] = rx
	uf.size[rx] += uf.size[ry]
	if uf.rank[rx] == uf.rank[ry] {
		uf.rank[rx]++
	}
	return true
}

// Components groups node ids by connected component. Components are ordered by
// their first node in creation order, as are the ids inside each component.
func (g *Graph) Components() [][]NodeID {
	nodes := g.Nodes()
	if len(nodes) == 0 {
		return nil
	}

	idx := make(map[NodeID]uint32, len(nodes))
	for i, n := range nodes {
		idx[n.id] = uint32(i)
	}

	uf := NewUnionFind(uint32(len(nodes)))
	for p := g.edges.Oldest(); p != nil; p = p.Next() {
		uf.Union(idx[p.Key.A], idx[p.Key.B])
	}

	slot := make(map[uint32]int)
	var out [][]NodeID
	for i, n := range nodes {
		root := uf.Find(uint32(i))
		s, ok := slot[root]
		if !ok {
			s = len(out)
			slot[root] = s
			out = append(out, nil)
		}
		out[s] = append(out[s], n.id)
	}
	return out
}

// ComponentCount returns the number of connected components.
func (g *Graph) ComponentCount() int {
	return len(g.Components())
}

// LargestComponent returns the node ids of the largest connected component.
func (g *Graph) LargestComponent() []NodeID {
	var best []NodeID
	for _, c := range g.Components() {
		if len(c) > len(best) {
			best = c
		}
	}
	return best
}
