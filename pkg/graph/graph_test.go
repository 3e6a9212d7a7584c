package graph_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"access_router/pkg/graph"
)

// sequentialIDs returns a generator yielding n1, n2, ...
func sequentialIDs() func() string {
	i := 0
	return func() string {
		i++
		return fmt.Sprintf("n%d", i)
	}
}

func newTestGraph() *graph.Graph {
	return graph.New(graph.WithIDGenerator(sequentialIDs()))
}

// ~0.33 m of latitude.
const tinyLat = 0.000003

func TestAddOrGetNode_MergeIdempotence(t *testing.T) {
	g := newTestGraph()

	first := g.AddOrGetNode(graph.LatLng{Lat: 45.5, Lng: -73.5})
	for i := 0; i < 10; i++ {
		n := g.AddOrGetNode(graph.LatLng{Lat: 45.5 + tinyLat*float64(i%2), Lng: -73.5})
		assert.Equal(t, first.ID(), n.ID())
	}
	assert.Equal(t, 1, g.NumNodes())
}

func TestAddOrGetNode_BeyondToleranceCreatesNode(t *testing.T) {
	g := newTestGraph()

	a := g.AddOrGetNode(graph.LatLng{Lat: 45.5, Lng: -73.5})
	b := g.AddOrGetNode(graph.LatLng{Lat: 45.50001, Lng: -73.5}) // ~1.1 m
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 2, g.NumNodes())
}

func TestAddOrGetNode_TagsUnionOnMerge(t *testing.T) {
	g := newTestGraph()

	n := g.AddOrGetNode(graph.LatLng{Lat: 1, Lng: 1}, graph.TagHasStairs)
	m := g.AddOrGetNode(graph.LatLng{Lat: 1, Lng: 1})
	require.Equal(t, n.ID(), m.ID())
	assert.True(t, m.HasTag(graph.TagHasStairs), "merge must not drop tags")

	g.AddOrGetNode(graph.LatLng{Lat: 1, Lng: 1}, "ramp")
	assert.Equal(t, []graph.Tag{graph.TagHasStairs, "ramp"}, n.Tags())
}

func TestAddOrGetNode_MergesAcrossAntimeridianAndPole(t *testing.T) {
	tests := []struct {
		name string
		a, b graph.LatLng
	}{
		{name: "antimeridian", a: graph.LatLng{Lat: 0, Lng: 179.999999}, b: graph.LatLng{Lat: 0, Lng: -179.999999}},
		{name: "north pole", a: graph.LatLng{Lat: 89.9999999, Lng: 100}, b: graph.LatLng{Lat: 89.9999999, Lng: -100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGraph()
			a := g.AddOrGetNode(tt.a)
			b := g.AddOrGetNode(tt.b)
			assert.Equal(t, a.ID(), b.ID())
			assert.Equal(t, 1, g.NumNodes())

			n, ok := g.FindNodeAt(tt.b)
			require.True(t, ok)
			assert.Equal(t, a.ID(), n.ID())
		})
	}
}

func TestWithMergeTolerance(t *testing.T) {
	g := graph.New(graph.WithMergeTolerance(5))
	a := g.AddOrGetNode(graph.LatLng{Lat: 45.5, Lng: -73.5})
	b := g.AddOrGetNode(graph.LatLng{Lat: 45.50003, Lng: -73.5}) // ~3.3 m
	assert.Equal(t, a.ID(), b.ID())
	assert.Equal(t, 5.0, g.MergeTolerance())
}

func TestFindNodeAt_ReadOnly(t *testing.T) {
	g := newTestGraph()

	_, ok := g.FindNodeAt(graph.LatLng{Lat: 2, Lng: 2})
	assert.False(t, ok)
	assert.Equal(t, 0, g.NumNodes(), "lookup must not create")

	n := g.AddOrGetNode(graph.LatLng{Lat: 2, Lng: 2})
	found, ok := g.FindNodeAt(graph.LatLng{Lat: 2 + tinyLat, Lng: 2})
	require.True(t, ok)
	assert.Equal(t, n.ID(), found.ID())
}

func TestNearestNode(t *testing.T) {
	g := newTestGraph()
	a := g.AddOrGetNode(graph.LatLng{Lat: 0, Lng: 0})
	g.AddOrGetNode(graph.LatLng{Lat: 0, Lng: 0.001})

	n, d, ok := g.NearestNode(graph.LatLng{Lat: 0, Lng: 0.0002}, 100)
	require.True(t, ok)
	assert.Equal(t, a.ID(), n.ID())
	assert.InDelta(t, 22.2, d, 0.5)

	_, _, ok = g.NearestNode(graph.LatLng{Lat: 1, Lng: 1}, 100)
	assert.False(t, ok)
}

func TestAddPolyline(t *testing.T) {
	g := newTestGraph()

	res, err := g.AddPolyline("p1", []graph.LatLng{
		{Lat: 0, Lng: 0}, {Lat: 0, Lng: 0.0005}, {Lat: 0, Lng: 0.001},
	}, map[int][]graph.Tag{1: {graph.TagHasStairs}})
	require.NoError(t, err)

	require.Len(t, res.Nodes, 3)
	require.Len(t, res.Edges, 2)
	assert.Equal(t, 3, g.NumNodes())
	assert.Equal(t, 2, g.NumEdges())
	assert.True(t, res.Nodes[1].HasTag(graph.TagHasStairs))
	assert.False(t, res.Nodes[0].HasTag(graph.TagHasStairs))

	for _, e := range res.Edges {
		assert.InDelta(t, 55.6, e.Weight(), 0.1)
		assert.Equal(t, graph.PolylineID("p1"), e.Polyline())
	}

	mid := res.Nodes[1]
	assert.Equal(t, 2, mid.Degree())
	for nb, w := range mid.Neighbors() {
		e, ok := g.Edge(mid.ID(), nb)
		require.True(t, ok)
		assert.Equal(t, e.Weight(), w, "adjacency mirrors edge weight")
	}
}

func TestAddPolyline_RejectsMalformed(t *testing.T) {
	g := newTestGraph()

	_, err := g.AddPolyline("p", []graph.LatLng{{Lat: 0, Lng: 0}}, nil)
	assert.ErrorIs(t, err, graph.ErrTooFewCoordinates)

	_, err = g.AddPolyline("p", []graph.LatLng{{Lat: 0, Lng: 0}, {Lat: 95, Lng: 0}}, nil)
	assert.ErrorIs(t, err, graph.ErrInvalidCoordinate)

	_, err = g.AddPolyline("p", []graph.LatLng{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 0}}, map[int][]graph.Tag{2: {graph.TagHasStairs}})
	assert.ErrorIs(t, err, graph.ErrTagIndexOutOfRange)

	_, err = g.AddPolyline("", []graph.LatLng{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 0}}, nil)
	assert.ErrorIs(t, err, graph.ErrEmptyPolylineID)

	assert.Equal(t, 0, g.NumNodes(), "rejected input must not touch the graph")
	assert.Equal(t, 0, g.NumPolylines())
}

func TestAddPolyline_DuplicateSegmentNotDoubleWeighted(t *testing.T) {
	g := newTestGraph()
	coords := []graph.LatLng{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 0.0005}}

	r1, err := g.AddPolyline("p1", coords, nil)
	require.NoError(t, err)
	r2, err := g.AddPolyline("p2", coords, nil)
	require.NoError(t, err)

	assert.Same(t, r1.Edges[0], r2.Edges[0])
	assert.Equal(t, 1, g.NumEdges())
	assert.Equal(t, graph.PolylineID("p1"), r2.Edges[0].Polyline())
	assert.Equal(t, []graph.PolylineID{"p1", "p2"}, r2.Edges[0].Owners())

	// The segment survives while p2 still traverses it.
	require.True(t, g.RemovePolyline("p1"))
	e, ok := g.Edge(r1.Nodes[0].ID(), r1.Nodes[1].ID())
	require.True(t, ok)
	assert.Equal(t, graph.PolylineID("p2"), e.Polyline())

	require.True(t, g.RemovePolyline("p2"))
	assert.Equal(t, 0, g.NumEdges())
	assert.Equal(t, 0, g.NumNodes())
}

func TestAddPolyline_CollapsedCoordinatesMakeNoSelfLoop(t *testing.T) {
	g := newTestGraph()

	res, err := g.AddPolyline("p", []graph.LatLng{
		{Lat: 0, Lng: 0}, {Lat: tinyLat, Lng: 0}, {Lat: 0, Lng: 0.0005},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, res.Nodes[0].ID(), res.Nodes[1].ID())
	assert.Len(t, res.Edges, 1)
	assert.Equal(t, 2, g.NumNodes())
}

func TestRemovePolyline_CleansOrphans(t *testing.T) {
	g := newTestGraph()
	_, err := g.AddPolyline("p", []graph.LatLng{
		{Lat: 0, Lng: 0}, {Lat: 0, Lng: 0.0005}, {Lat: 0, Lng: 0.001},
	}, nil)
	require.NoError(t, err)
	require.Equal(t, 3, g.NumNodes())
	require.Equal(t, 2, g.NumEdges())

	assert.True(t, g.RemovePolyline("p"))
	assert.Equal(t, 0, g.NumNodes())
	assert.Equal(t, 0, g.NumEdges())
	assert.Empty(t, g.Polylines())

	_, ok := g.FindNodeAt(graph.LatLng{Lat: 0, Lng: 0})
	assert.False(t, ok, "removed nodes must leave the spatial index")
}

func TestRemovePolyline_UnknownIsNoop(t *testing.T) {
	g := newTestGraph()
	_, err := g.AddPolyline("p", []graph.LatLng{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 0.001}}, nil)
	require.NoError(t, err)

	assert.False(t, g.RemovePolyline("missing"))
	assert.True(t, g.RemovePolyline("p"))
	assert.False(t, g.RemovePolyline("p"), "second removal is a no-op")
	assert.Equal(t, 0, g.NumNodes())
}

func TestRemovePolyline_SharedNodeSurvives(t *testing.T) {
	g := newTestGraph()
	shared := graph.LatLng{Lat: 0, Lng: 0.001}

	r1, err := g.AddPolyline("p1", []graph.LatLng{{Lat: 0, Lng: 0}, shared}, nil)
	require.NoError(t, err)
	r2, err := g.AddPolyline("p2", []graph.LatLng{shared, {Lat: 0.001, Lng: 0.001}}, nil)
	require.NoError(t, err)
	require.Equal(t, r1.Nodes[1].ID(), r2.Nodes[0].ID())
	require.Equal(t, 3, g.NumNodes())

	require.True(t, g.RemovePolyline("p1"))

	n, ok := g.Node(r1.Nodes[1].ID())
	require.True(t, ok, "shared node must survive")
	assert.Equal(t, 1, n.Degree())
	_, ok = g.Node(r1.Nodes[0].ID())
	assert.False(t, ok, "node unique to p1 must be removed")
	assert.Equal(t, 1, g.NumEdges())
	_, ok = g.Edge(r2.Nodes[0].ID(), r2.Nodes[1].ID())
	assert.True(t, ok)
}

func TestReplacePolyline_KeepsUnmovedIdentities(t *testing.T) {
	g := newTestGraph()
	res, err := g.AddPolyline("p", []graph.LatLng{
		{Lat: 0, Lng: 0}, {Lat: 0, Lng: 0.0005}, {Lat: 0, Lng: 0.001},
	}, map[int][]graph.Tag{0: {graph.TagHasStairs}})
	require.NoError(t, err)
	a, b, c := res.Nodes[0].ID(), res.Nodes[1].ID(), res.Nodes[2].ID()

	// Move the middle vertex north.
	res2, err := g.ReplacePolyline("p", []graph.LatLng{
		{Lat: 0, Lng: 0}, {Lat: 0.0003, Lng: 0.0005}, {Lat: 0, Lng: 0.001},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, a, res2.Nodes[0].ID())
	assert.Equal(t, c, res2.Nodes[2].ID())
	assert.NotEqual(t, b, res2.Nodes[1].ID())
	assert.True(t, res2.Nodes[0].HasTag(graph.TagHasStairs), "tags of unmoved vertices survive")

	_, ok := g.Node(b)
	assert.False(t, ok, "old middle vertex is orphaned and removed")
	assert.Equal(t, 3, g.NumNodes())
	assert.Equal(t, 2, g.NumEdges())
	assert.Equal(t, 1, g.NumPolylines())
}

func TestAddPolyline_SameIDReplaces(t *testing.T) {
	g := newTestGraph()
	_, err := g.AddPolyline("p", []graph.LatLng{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 0.001}}, nil)
	require.NoError(t, err)
	_, err = g.AddPolyline("p", []graph.LatLng{{Lat: 1, Lng: 0}, {Lat: 1, Lng: 0.001}}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, g.NumNodes())
	assert.Equal(t, 1, g.NumEdges())
	_, ok := g.FindNodeAt(graph.LatLng{Lat: 0, Lng: 0})
	assert.False(t, ok)
}

func TestUpdateNodeTags(t *testing.T) {
	g := newTestGraph()
	n := g.AddOrGetNode(graph.LatLng{Lat: 0, Lng: 0}, graph.TagHasStairs)

	assert.True(t, g.UpdateNodeTags(n.ID(), []graph.Tag{"ramp"}))
	assert.Equal(t, []graph.Tag{"ramp"}, n.Tags())

	assert.True(t, g.UpdateNodeTags(n.ID(), nil))
	assert.Empty(t, n.Tags())

	assert.False(t, g.UpdateNodeTags("missing", []graph.Tag{graph.TagHasStairs}))
}

func TestEdgesOf(t *testing.T) {
	g := newTestGraph()
	_, err := g.AddPolyline("loop", []graph.LatLng{
		{Lat: 0, Lng: 0}, {Lat: 0, Lng: 0.001}, {Lat: 0, Lng: 0},
	}, nil)
	require.NoError(t, err)

	// Out and back over the same segment is one edge.
	assert.Len(t, g.EdgesOf("loop"), 1)
	assert.Nil(t, g.EdgesOf("missing"))

	seq, ok := g.PolylineNodes("loop")
	require.True(t, ok)
	assert.Equal(t, seq[0], seq[2])

	require.True(t, g.RemovePolyline("loop"))
	assert.Equal(t, 0, g.NumEdges())
	assert.Equal(t, 0, g.NumNodes())
}

func TestEdgeID(t *testing.T) {
	assert.Equal(t, graph.MakeEdgeID("a", "b"), graph.MakeEdgeID("b", "a"))

	id := graph.MakeEdgeID("x", "y")
	parsed, ok := graph.ParseEdgeID(id.String())
	require.True(t, ok)
	assert.Equal(t, id, parsed)
	assert.Equal(t, graph.NodeID("y"), id.Other("x"))

	_, ok = graph.ParseEdgeID("nonsense")
	assert.False(t, ok)
}
