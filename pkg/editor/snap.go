package editor

import (
	"math"

	"access_router/pkg/geo"
	"access_router/pkg/graph"
)

// DefaultSnapThresholdPixels is the screen distance within which a dragged
// point is pulled onto an existing node or edge.
const DefaultSnapThresholdPixels = 10.0

// SnapKind says what a point snapped to.
type SnapKind int

const (
	SnapNone SnapKind = iota
	SnapNode
	SnapEdge
)

func (k SnapKind) String() string {
	switch k {
	case SnapNode:
		return "node"
	case SnapEdge:
		return "edge"
	default:
		return "none"
	}
}

// SnapResult represents a screen point snapped to the graph.
type SnapResult struct {
	Kind SnapKind
	Node *graph.Node // set for SnapNode
	Edge *graph.Edge // set for SnapEdge

	Ratio    float64      // 0.0 = at Edge.ID().A, 1.0 = at Edge.ID().B
	Dist     float64      // screen distance in pixels
	Position graph.LatLng // geographic position of the snapped point
}

// Snapper finds the nearest node or edge point in screen space, so the snap
// radius stays constant in pixels at every zoom level.
type Snapper struct {
	g         *graph.Graph
	proj      Projector
	threshold float64
}

// NewSnapper creates a snapper. A non-positive threshold selects
// DefaultSnapThresholdPixels.
func NewSnapper(g *graph.Graph, proj Projector, threshold float64) *Snapper {
	if threshold <= 0 {
		threshold = DefaultSnapThresholdPixels
	}
	return &Snapper{g: g, proj: proj, threshold: threshold}
}

// Threshold returns the snap radius in pixels.
func (s *Snapper) Threshold() float64 { return s.threshold }

func screenDist(a, b ScreenPoint) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// NearestNode returns the node closest to p in screen space within the
// threshold, skipping exclude.
func (s *Snapper) NearestNode(p ScreenPoint, exclude graph.NodeID) (*graph.Node, float64, bool) {
	var best *graph.Node
	bestDist := math.Inf(1)
	for _, n := range s.g.Nodes() {
		if n.ID() == exclude {
			continue
		}
		if d := screenDist(p, s.proj.Project(n.Position())); d < bestDist {
			best, bestDist = n, d
		}
	}
	if best == nil || bestDist >= s.threshold {
		return nil, 0, false
	}
	return best, bestDist, true
}

// NearestEdgePoint projects p onto every edge, clamped to the segment, and
// returns the closest projection within the threshold. Edges touching exclude
// are skipped.
func (s *Snapper) NearestEdgePoint(p ScreenPoint, exclude graph.NodeID) (SnapResult, bool) {
	best := SnapResult{Dist: math.Inf(1)}
	for _, e := range s.g.Edges() {
		id := e.ID()
		if exclude != "" && (id.A == exclude || id.B == exclude) {
			continue
		}
		a, _ := s.g.Node(id.A)
		b, _ := s.g.Node(id.B)
		pa, pb := s.proj.Project(a.Position()), s.proj.Project(b.Position())

		t, d := geo.ProjectOnSegment(p.X, p.Y, pa.X, pa.Y, pb.X, pb.Y)
		if d < best.Dist {
			lat, lng := geo.Interpolate(a.Position().Lat, a.Position().Lng, b.Position().Lat, b.Position().Lng, t)
			best = SnapResult{
				Kind:     SnapEdge,
				Edge:     e,
				Ratio:    t,
				Dist:     d,
				Position: graph.LatLng{Lat: lat, Lng: lng},
			}
		}
	}
	if best.Edge == nil || best.Dist >= s.threshold {
		return SnapResult{}, false
	}
	return best, true
}

// Snap resolves p against the graph. A node within the threshold wins over an
// edge; an edge point that lands within the merge tolerance of an existing
// node resolves to that node, so snapping never duplicates a junction.
func (s *Snapper) Snap(p ScreenPoint, exclude graph.NodeID) SnapResult {
	if n, d, ok := s.NearestNode(p, exclude); ok {
		return SnapResult{Kind: SnapNode, Node: n, Dist: d, Position: n.Position()}
	}
	if es, ok := s.NearestEdgePoint(p, exclude); ok {
		if n, found := s.g.FindNodeAt(es.Position); found && n.ID() != exclude {
			return SnapResult{Kind: SnapNode, Node: n, Dist: es.Dist, Position: n.Position()}
		}
		return es
	}
	return SnapResult{Kind: SnapNone, Position: s.proj.Unproject(p)}
}
