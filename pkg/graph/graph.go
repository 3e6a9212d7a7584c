package graph

import (
	"math"

	"github.com/google/uuid"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"access_router/pkg/geo"
)

// DefaultMergeTolerance is the distance in meters below which two coordinates
// resolve to the same node.
const DefaultMergeTolerance = 0.5

// Graph is a mutable undirected weighted graph of walkable segments, built
// incrementally from polylines.
//
// Invariants:
//   - no two nodes lie within the merge tolerance of each other;
//   - adjacency mirrors edges: any edge mutation updates both endpoints'
//     adjacency in the same operation;
//   - a node that belongs to no surviving segment is deleted when the polyline
//     that held it is removed.
//
// A Graph is not safe for concurrent use. Callers sharing one across
// goroutines must guard it with a single mutex.
type Graph struct {
	nodes     *orderedmap.OrderedMap[NodeID, *Node]
	edges     *orderedmap.OrderedMap[EdgeID, *Edge]
	polylines *orderedmap.OrderedMap[PolylineID, []NodeID]
	index     nodeIndex

	tolerance float64
	newID     func() string
}

// Option configures a Graph.
type Option func(*Graph)

// WithMergeTolerance overrides the merge tolerance in meters.
func WithMergeTolerance(meters float64) Option {
	return func(g *Graph) {
		if meters > 0 && !math.IsInf(meters, 0) {
			g.tolerance = meters
		}
	}
}

// WithIDGenerator overrides the node id source. Generated ids must be unique.
func WithIDGenerator(fn func() string) Option {
	return func(g *Graph) {
		if fn != nil {
			g.newID = fn
		}
	}
}

// New creates an empty graph.
func New(opts ...Option) *Graph {
	g := &Graph{
		nodes:     orderedmap.New[NodeID, *Node](),
		edges:     orderedmap.New[EdgeID, *Edge](),
		polylines: orderedmap.New[PolylineID, []NodeID](),
		tolerance: DefaultMergeTolerance,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// MergeTolerance returns the merge tolerance in meters.
func (g *Graph) MergeTolerance() float64 { return g.tolerance }

func (g *Graph) NumNodes() int     { return g.nodes.Len() }
func (g *Graph) NumEdges() int     { return g.edges.Len() }
func (g *Graph) NumPolylines() int { return g.polylines.Len() }

// Node returns the node with the given id.
func (g *Graph) Node(id NodeID) (*Node, bool) {
	return g.nodes.Get(id)
}

// Edge returns the edge between u and v in either order.
func (g *Graph) Edge(u, v NodeID) (*Edge, bool) {
	return g.edges.Get(MakeEdgeID(u, v))
}

// EdgeByID returns the edge with the given identity.
func (g *Graph) EdgeByID(id EdgeID) (*Edge, bool) {
	return g.edges.Get(id)
}

// Nodes returns all nodes in creation order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, g.nodes.Len())
	for p := g.nodes.Oldest(); p != nil; p = p.Next() {
		out = append(out, p.Value)
	}
	return out
}

// Edges returns all edges in creation order.
func (g *Graph) Edges() []*Edge {
	out := make([]*Edge, 0, g.edges.Len())
	for p := g.edges.Oldest(); p != nil; p = p.Next() {
		out = append(out, p.Value)
	}
	return out
}

// Polylines returns the ids of all polylines in insertion order.
func (g *Graph) Polylines() []PolylineID {
	out := make([]PolylineID, 0, g.polylines.Len())
	for p := g.polylines.Oldest(); p != nil; p = p.Next() {
		out = append(out, p.Key)
	}
	return out
}

// PolylineNodes returns the resolved node sequence of a polyline, one id per
// original coordinate.
func (g *Graph) PolylineNodes(id PolylineID) ([]NodeID, bool) {
	seq, ok := g.polylines.Get(id)
	if !ok {
		return nil, false
	}
	out := make([]NodeID, len(seq))
	copy(out, seq)
	return out, true
}

// EdgesOf returns the distinct edges traversed by a polyline, in order.
func (g *Graph) EdgesOf(id PolylineID) []*Edge {
	seq, ok := g.polylines.Get(id)
	if !ok {
		return nil
	}
	seen := make(map[EdgeID]struct{}, len(seq))
	var out []*Edge
	for i := 0; i+1 < len(seq); i++ {
		if seq[i] == seq[i+1] {
			continue
		}
		eid := MakeEdgeID(seq[i], seq[i+1])
		if _, dup := seen[eid]; dup {
			continue
		}
		seen[eid] = struct{}{}
		if e, ok := g.edges.Get(eid); ok {
			out = append(out, e)
		}
	}
	return out
}

func (g *Graph) lookup(id NodeID) *Node {
	n, _ := g.nodes.Get(id)
	return n
}

// FindNodeAt returns the existing node within the merge tolerance of pos, if any.
// It never creates a node.
func (g *Graph) FindNodeAt(pos LatLng) (*Node, bool) {
	n, _ := g.index.nearest(g.lookup, pos, g.tolerance)
	return n, n != nil
}

// NearestNode returns the node closest to pos within maxMeters, with its distance.
func (g *Graph) NearestNode(pos LatLng, maxMeters float64) (*Node, float64, bool) {
	n, d := g.index.nearest(g.lookup, pos, maxMeters)
	if n == nil {
		return nil, 0, false
	}
	return n, d, true
}

// AddOrGetNode resolves pos to a node. An existing node within the merge
// tolerance is returned with tags unioned into its tag set; otherwise a new
// node is created.
func (g *Graph) AddOrGetNode(pos LatLng, tags ...Tag) *Node {
	if n, ok := g.FindNodeAt(pos); ok {
		n.addTags(tags)
		return n
	}

	n := &Node{
		id:   NodeID(g.newID()),
		pos:  pos,
		tags: make(map[Tag]struct{}, len(tags)),
		adj:  make(map[NodeID]float64),
	}
	n.addTags(tags)
	g.nodes.Set(n.id, n)
	g.index.insert(n)
	return n
}

// UpdateNodeTags replaces a node's tag set. It reports false for an unknown id.
func (g *Graph) UpdateNodeTags(id NodeID, tags []Tag) bool {
	n, ok := g.nodes.Get(id)
	if !ok {
		return false
	}
	n.tags = make(map[Tag]struct{}, len(tags))
	n.addTags(tags)
	return true
}

// addEdge creates or reuses the edge between u and v on behalf of owner.
func (g *Graph) addEdge(u, v *Node, owner PolylineID) *Edge {
	id := MakeEdgeID(u.id, v.id)
	if e, ok := g.edges.Get(id); ok {
		e.owners[owner]++
		return e
	}

	e := &Edge{
		id:       id,
		weight:   geo.Haversine(u.pos.Lat, u.pos.Lng, v.pos.Lat, v.pos.Lng),
		owners:   map[PolylineID]int{owner: 1},
		polyline: owner,
	}
	g.edges.Set(id, e)
	u.adj[v.id] = e.weight
	v.adj[u.id] = e.weight
	return e
}

// releaseEdge drops one traversal of the edge by owner and deletes the edge
// once nothing owns it.
func (g *Graph) releaseEdge(id EdgeID, owner PolylineID) {
	e, ok := g.edges.Get(id)
	if !ok {
		return
	}
	if e.owners[owner] > 1 {
		e.owners[owner]--
		return
	}
	delete(e.owners, owner)
	if len(e.owners) > 0 {
		if e.polyline == owner {
			e.polyline = e.Owners()[0]
		}
		return
	}

	g.edges.Delete(id)
	if a, ok := g.nodes.Get(id.A); ok {
		delete(a.adj, id.B)
	}
	if b, ok := g.nodes.Get(id.B); ok {
		delete(b.adj, id.A)
	}
}

// pruneOrphans deletes any of the given nodes left without adjacency and not
// referenced by a surviving polyline.
func (g *Graph) pruneOrphans(candidates []NodeID) {
	for _, id := range candidates {
		n, ok := g.nodes.Get(id)
		if !ok || len(n.adj) > 0 || g.referenced(id) {
			continue
		}
		g.index.delete(n)
		g.nodes.Delete(id)
	}
}

// referenced reports whether any polyline still resolves a coordinate to id.
// Only degenerate polylines whose coordinates all merged into one node hold a
// node without adjacency, so this scan is rare.
func (g *Graph) referenced(id NodeID) bool {
	for p := g.polylines.Oldest(); p != nil; p = p.Next() {
		for _, n := range p.Value {
			if n == id {
				return true
			}
		}
	}
	return false
}
