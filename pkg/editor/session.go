// Package editor implements interactive graph editing: screen-space snapping
// of drawn or dragged vertices, edge splitting, and an editing Session that
// owns one graph.
package editor

import (
	"github.com/pkg/errors"

	"access_router/pkg/graph"
	"access_router/pkg/polyline"
)

var (
	// ErrUnknownPolyline is returned when an edit names a polyline that is not in the graph.
	ErrUnknownPolyline = errors.New("unknown polyline")
	// ErrUnknownEdge is returned when an edit names an edge that is not in the graph.
	ErrUnknownEdge = errors.New("unknown edge")
	// ErrVertexIndex is returned for a vertex index outside the polyline.
	ErrVertexIndex = errors.New("vertex index out of range")
)

// Session is the editing context for one graph. Editors hold a Session and
// call it directly; it keeps no global state.
//
// A Session is not safe for concurrent use.
type Session struct {
	g         *graph.Graph
	proj      Projector
	threshold float64
	snapper   *Snapper
}

// NewSession wraps g. threshold is the snap radius in pixels.
func NewSession(g *graph.Graph, proj Projector, threshold float64) *Session {
	return &Session{
		g:         g,
		proj:      proj,
		threshold: threshold,
		snapper:   NewSnapper(g, proj, threshold),
	}
}

// Graph returns the edited graph.
func (s *Session) Graph() *graph.Graph { return s.g }

// SetProjector swaps the view transform after a pan or zoom.
func (s *Session) SetProjector(p Projector) {
	s.proj = p
	s.snapper = NewSnapper(s.g, p, s.threshold)
}

// Projector returns the current view transform.
func (s *Session) Projector() Projector { return s.proj }

// AddPolyline validates p and adds it to the graph, replacing any polyline
// with the same id.
func (s *Session) AddPolyline(p *polyline.Polyline) (*graph.PolylineResult, error) {
	return p.AddTo(s.g)
}

// RemovePolyline removes a polyline. Unknown ids are a no-op reporting false.
func (s *Session) RemovePolyline(id graph.PolylineID) bool {
	return s.g.RemovePolyline(id)
}

// UpdateNodeTags replaces a node's tags. Unknown ids are a no-op reporting false.
func (s *Session) UpdateNodeTags(id graph.NodeID, tags []graph.Tag) bool {
	return s.g.UpdateNodeTags(id, tags)
}

// Polyline returns the persisted shape of one polyline.
func (s *Session) Polyline(id graph.PolylineID) (*polyline.Polyline, bool) {
	return polyline.FromGraph(s.g, id)
}

// Polylines returns the persisted shape of every polyline.
func (s *Session) Polylines() []*polyline.Polyline {
	return polyline.ExportAll(s.g)
}

// Snap resolves a screen point against the graph without changing it.
func (s *Session) Snap(p ScreenPoint) SnapResult {
	return s.snapper.Snap(p, "")
}

// PlaceVertex resolves a newly drawn vertex. A point near a node takes the
// node's position; a point near an edge splits the edge and takes the new
// junction's position; anything else is unprojected as is.
func (s *Session) PlaceVertex(p ScreenPoint) (graph.LatLng, SnapResult, error) {
	snap := s.snapper.Snap(p, "")
	if snap.Kind != SnapEdge {
		return snap.Position, snap, nil
	}
	n, _, err := s.splitEdge(snap.Edge.ID(), snap.Position)
	if err != nil {
		return graph.LatLng{}, snap, err
	}
	return n.Position(), snap, nil
}

// SplitEdge inserts a junction at the given position on an edge. Every
// polyline traversing the edge gets the coordinate spliced in and is rebuilt,
// so two edges replace the one. It returns the junction.
func (s *Session) SplitEdge(id graph.EdgeID, at graph.LatLng) (*graph.Node, error) {
	n, _, err := s.splitEdge(id, at)
	return n, err
}

// splitEdge also reports, per rebuilt polyline, the original segment indexes
// where the coordinate was spliced in.
func (s *Session) splitEdge(id graph.EdgeID, at graph.LatLng) (*graph.Node, map[graph.PolylineID][]int, error) {
	e, ok := s.g.EdgeByID(id)
	if !ok {
		return nil, nil, errors.Wrapf(ErrUnknownEdge, "%s", id)
	}
	if n, ok := s.g.FindNodeAt(at); ok && (n.ID() == id.A || n.ID() == id.B) {
		return n, nil, nil // already a junction
	}

	spliced := make(map[graph.PolylineID][]int)
	for _, owner := range e.Owners() {
		p, ok := polyline.FromGraph(s.g, owner)
		if !ok {
			continue
		}
		seq, _ := s.g.PolylineNodes(owner)

		var segments []int
		for i := 0; i+1 < len(seq); i++ {
			if graph.MakeEdgeID(seq[i], seq[i+1]) == id {
				segments = append(segments, i)
			}
		}
		// Splice from the back so earlier indexes stay valid.
		for k := len(segments) - 1; k >= 0; k-- {
			p = p.Insert(segments[k]+1, at)
		}
		if _, err := p.AddTo(s.g); err != nil {
			return nil, nil, err
		}
		spliced[owner] = segments
	}

	n, ok := s.g.FindNodeAt(at)
	if !ok {
		return nil, nil, errors.Wrapf(ErrUnknownEdge, "%s: split point not resolved", id)
	}
	return n, spliced, nil
}

// MoveVertex drags vertex index of a polyline to screen point p. The vertex
// snaps to a nearby node or edge (splitting it) other than itself and its own
// segments; otherwise it lands at the unprojected point. Other polylines that
// shared the old junction keep it. It returns the vertex's new node.
func (s *Session) MoveVertex(id graph.PolylineID, index int, p ScreenPoint) (*graph.Node, error) {
	seq, ok := s.g.PolylineNodes(id)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownPolyline, "%q", id)
	}
	if index < 0 || index >= len(seq) {
		return nil, errors.Wrapf(ErrVertexIndex, "polyline %q has %d vertices, got %d", id, len(seq), index)
	}

	snap := s.snapper.Snap(p, seq[index])
	target := snap.Position
	if snap.Kind == SnapEdge {
		n, spliced, err := s.splitEdge(snap.Edge.ID(), snap.Position)
		if err != nil {
			return nil, err
		}
		for _, seg := range spliced[id] {
			if seg < index {
				index++
			}
		}
		target = n.Position()
	}

	cur, _ := polyline.FromGraph(s.g, id)
	moved := cur.Clone()
	moved.Coordinates[index] = target
	res, err := moved.AddTo(s.g)
	if err != nil {
		return nil, err
	}
	return res.Nodes[index], nil
}
