package routing

import (
	"context"

	"github.com/pkg/errors"

	"access_router/pkg/graph"
)

// DefaultMaxSnapMeters bounds how far a query point may be from the nearest
// junction.
const DefaultMaxSnapMeters = 500.0

// ErrPointTooFar is returned when the query point is too far from any junction.
var ErrPointTooFar = errors.New("point too far from path network")

// RouteResult is the output of a route query.
type RouteResult struct {
	Path                *Path
	Geometry            []graph.LatLng
	TotalDistanceMeters float64
	HasAvoidedTag       bool

	// Distances from the query points to the junctions they resolved to.
	StartSnapMeters float64
	EndSnapMeters   float64
}

// Router is the interface for route queries.
type Router interface {
	Route(ctx context.Context, start, end graph.LatLng, policy Policy) (*RouteResult, error)
	RouteToNode(ctx context.Context, start graph.LatLng, end graph.NodeID, policy Policy) (*RouteResult, error)
}

// Engine implements Router over a live graph. It reads the graph on every
// query, so edits are visible immediately; callers serialize access.
type Engine struct {
	g             *graph.Graph
	maxSnapMeters float64
}

// NewEngine creates a routing engine. A non-positive maxSnapMeters selects
// DefaultMaxSnapMeters.
func NewEngine(g *graph.Graph, maxSnapMeters float64) *Engine {
	if maxSnapMeters <= 0 {
		maxSnapMeters = DefaultMaxSnapMeters
	}
	return &Engine{g: g, maxSnapMeters: maxSnapMeters}
}

// Route computes the shortest path between the junctions nearest to start and end.
func (e *Engine) Route(ctx context.Context, start, end graph.LatLng, policy Policy) (*RouteResult, error) {
	from, startSnap, err := e.snap(start)
	if err != nil {
		return nil, errors.Wrap(err, "start")
	}
	to, endSnap, err := e.snap(end)
	if err != nil {
		return nil, errors.Wrap(err, "end")
	}

	res, err := e.route(ctx, from.ID(), to.ID(), policy)
	if err != nil {
		return nil, err
	}
	res.StartSnapMeters = startSnap
	res.EndSnapMeters = endSnap
	return res, nil
}

// RouteToNode computes the shortest path from the junction nearest to start to
// a known end node.
func (e *Engine) RouteToNode(ctx context.Context, start graph.LatLng, end graph.NodeID, policy Policy) (*RouteResult, error) {
	from, startSnap, err := e.snap(start)
	if err != nil {
		return nil, errors.Wrap(err, "start")
	}

	res, err := e.route(ctx, from.ID(), end, policy)
	if err != nil {
		return nil, err
	}
	res.StartSnapMeters = startSnap
	return res, nil
}

func (e *Engine) route(ctx context.Context, from, to graph.NodeID, policy Policy) (*RouteResult, error) {
	path, err := ShortestPath(ctx, e.g, from, to, policy)
	if err != nil {
		return nil, err
	}
	return &RouteResult{
		Path:                path,
		Geometry:            path.Geometry(),
		TotalDistanceMeters: path.DistanceMeters,
		HasAvoidedTag:       path.HasAvoidedTag,
	}, nil
}

// snap resolves a query point to the nearest junction.
func (e *Engine) snap(p graph.LatLng) (*graph.Node, float64, error) {
	n, d, ok := e.g.NearestNode(p, e.maxSnapMeters)
	if !ok {
		return nil, 0, ErrPointTooFar
	}
	return n, d, nil
}
