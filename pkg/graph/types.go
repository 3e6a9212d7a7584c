package graph

import (
	"iter"
	"maps"
	"slices"
	"strings"
)

// LatLng represents a geographic coordinate.
type LatLng struct {
	Lat float64
	Lng float64
}

// NodeID is an opaque node identity. It is never reused within a graph.
type NodeID string

// PolylineID identifies the external polyline that produced a set of edges.
type PolylineID string

// Tag is an accessibility attribute attached to a node.
type Tag string

// TagHasStairs marks a junction that can only be traversed using stairs.
const TagHasStairs Tag = "has_stairs"

// EdgeID is the undirected identity of an edge: its endpoints in sorted order.
type EdgeID struct {
	A NodeID
	B NodeID
}

// MakeEdgeID returns the identity of the edge between u and v. The argument
// order does not matter.
func MakeEdgeID(u, v NodeID) EdgeID {
	if v < u {
		u, v = v, u
	}
	return EdgeID{A: u, B: v}
}

func (id EdgeID) String() string {
	return string(id.A) + "~" + string(id.B)
}

// ParseEdgeID is the inverse of EdgeID.String.
func ParseEdgeID(s string) (EdgeID, bool) {
	a, b, ok := strings.Cut(s, "~")
	if !ok || a == "" || b == "" {
		return EdgeID{}, false
	}
	return MakeEdgeID(NodeID(a), NodeID(b)), true
}

// Other returns the endpoint of the edge that is not n.
func (id EdgeID) Other(n NodeID) NodeID {
	if id.A == n {
		return id.B
	}
	return id.A
}

// Node is a junction in the walkable network.
//
// Nodes are created and owned by a Graph; callers only read them.
type Node struct {
	id   NodeID
	pos  LatLng
	tags map[Tag]struct{}

	// adj mirrors the edge set: neighbour -> weight of the connecting edge.
	adj map[NodeID]float64
}

func (n *Node) ID() NodeID       { return n.id }
func (n *Node) Position() LatLng { return n.pos }

// Tags returns the node's tags in sorted order.
func (n *Node) Tags() []Tag {
	return slices.Sorted(maps.Keys(n.tags))
}

func (n *Node) HasTag(t Tag) bool {
	_, ok := n.tags[t]
	return ok
}

// Degree returns the number of distinct neighbours.
func (n *Node) Degree() int { return len(n.adj) }

// Neighbors yields each adjacent node id with the weight of the connecting edge.
func (n *Node) Neighbors() iter.Seq2[NodeID, float64] {
	return func(yield func(NodeID, float64) bool) {
		for id, w := range n.adj {
			if !yield(id, w) {
				return
			}
		}
	}
}

func (n *Node) addTags(tags []Tag) {
	for _, t := range tags {
		if t == "" {
			continue
		}
		n.tags[t] = struct{}{}
	}
}

// Edge is a walkable segment directly connecting two nodes.
type Edge struct {
	id     EdgeID
	weight float64

	// owners counts traversals per polyline; the edge lives while any remain.
	owners   map[PolylineID]int
	polyline PolylineID
}

func (e *Edge) ID() EdgeID { return e.id }

// Weight is the great-circle length of the edge in meters.
func (e *Edge) Weight() float64 { return e.weight }

// Polyline returns the polyline that first produced the edge.
func (e *Edge) Polyline() PolylineID { return e.polyline }

// Owners returns every polyline that currently traverses the edge, sorted.
func (e *Edge) Owners() []PolylineID {
	return slices.Sorted(maps.Keys(e.owners))
}

// PolylineResult describes the outcome of adding a polyline.
type PolylineResult struct {
	ID    PolylineID
	Nodes []*Node // one per input coordinate, in order
	Edges []*Edge // one per consecutive pair of distinct nodes
}
