package routing

import (
	"context"

	"github.com/pkg/errors"

	"access_router/pkg/graph"
)

// ErrNoRoute is returned when no route exists between the two points. It is an
// expected outcome (unknown endpoints or disconnected components), not a fault.
var ErrNoRoute = errors.New("no route found")

// ctxCheckInterval is how many settled nodes pass between cancellation checks.
const ctxCheckInterval = 100

// PathNode is one junction along a path.
type PathNode struct {
	ID       graph.NodeID
	Position graph.LatLng
	Tags     []graph.Tag

	// DistanceMeters is the physical distance from the start of the path.
	DistanceMeters float64
	// Avoided is set when the node carries a tag named by the policy.
	Avoided bool
}

// Path is the result of a shortest-path search.
type Path struct {
	Nodes []PathNode

	// Cost is the penalized search cost the route was chosen by.
	Cost float64
	// DistanceMeters is the real-world length; penalties never inflate it.
	DistanceMeters float64
	// HasAvoidedTag is set when any node on the path carries an avoided tag.
	HasAvoidedTag bool
}

// NodeIDs returns the ordered node ids of the path.
func (p *Path) NodeIDs() []graph.NodeID {
	ids := make([]graph.NodeID, len(p.Nodes))
	for i, n := range p.Nodes {
		ids[i] = n.ID
	}
	return ids
}

// Geometry returns the ordered coordinates of the path.
func (p *Path) Geometry() []graph.LatLng {
	geom := make([]graph.LatLng, len(p.Nodes))
	for i, n := range p.Nodes {
		geom[i] = n.Position
	}
	return geom
}

// ShortestPath runs Dijkstra from start to end. Entering a node costs the edge
// weight times policy.Multiplier of that node.
//
// It returns ErrNoRoute when either endpoint is unknown or the endpoints are in
// different components, and ErrInvalidRule for a malformed policy.
func ShortestPath(ctx context.Context, g *graph.Graph, start, end graph.NodeID, policy Policy) (*Path, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if _, ok := g.Node(start); !ok {
		return nil, ErrNoRoute
	}
	if _, ok := g.Node(end); !ok {
		return nil, ErrNoRoute
	}

	cost := map[graph.NodeID]float64{start: 0}
	pred := make(map[graph.NodeID]graph.NodeID)
	settled := make(map[graph.NodeID]bool)

	var pq MinHeap
	pq.Push(start, 0)

	iterations := 0
	for pq.Len() > 0 {
		iterations++
		if iterations%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		item := pq.Pop()
		u := item.Node
		if settled[u] || item.Cost > cost[u] {
			continue // stale entry
		}
		settled[u] = true
		if u == end {
			break
		}

		node, _ := g.Node(u)
		for v, w := range node.Neighbors() {
			if settled[v] {
				continue
			}
			next, _ := g.Node(v)
			c := item.Cost + w*policy.Multiplier(next)
			if old, seen := cost[v]; !seen || c < old {
				cost[v] = c
				pred[v] = u
				pq.Push(v, c)
			}
		}
	}

	if !settled[end] {
		return nil, ErrNoRoute
	}

	return buildPath(g, reconstruct(pred, start, end), cost[end], policy), nil
}

// reconstruct walks predecessor pointers back from end.
func reconstruct(pred map[graph.NodeID]graph.NodeID, start, end graph.NodeID) []graph.NodeID {
	var ids []graph.NodeID
	for n := end; ; n = pred[n] {
		ids = append(ids, n)
		if n == start {
			break
		}
	}
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids
}

func buildPath(g *graph.Graph, ids []graph.NodeID, cost float64, policy Policy) *Path {
	p := &Path{Nodes: make([]PathNode, len(ids)), Cost: cost}

	dist := 0.0
	for i, id := range ids {
		n, _ := g.Node(id)
		if i > 0 {
			e, _ := g.Edge(ids[i-1], id)
			dist += e.Weight()
		}
		avoided := policy.Avoids(n)
		p.Nodes[i] = PathNode{
			ID:             id,
			Position:       n.Position(),
			Tags:           n.Tags(),
			DistanceMeters: dist,
			Avoided:        avoided,
		}
		p.HasAvoidedTag = p.HasAvoidedTag || avoided
	}
	p.DistanceMeters = dist
	return p
}
