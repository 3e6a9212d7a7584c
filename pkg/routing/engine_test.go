package routing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"access_router/pkg/graph"
)

func TestEngine_Route(t *testing.T) {
	g, nodes := buildLine(t)
	require.True(t, g.UpdateNodeTags(nodes[1].ID(), []graph.Tag{graph.TagHasStairs}))
	e := NewEngine(g, 0)

	// Both query points sit a few meters off the end junctions.
	res, err := e.Route(context.Background(),
		graph.LatLng{Lat: 0.00002, Lng: 0},
		graph.LatLng{Lat: -0.00002, Lng: 0.001},
		AvoidStairs())
	require.NoError(t, err)

	assert.InDelta(t, 111.2, res.TotalDistanceMeters, 0.1)
	assert.True(t, res.HasAvoidedTag)
	assert.Len(t, res.Geometry, 3)
	assert.InDelta(t, 2.2, res.StartSnapMeters, 0.1)
	assert.InDelta(t, 2.2, res.EndSnapMeters, 0.1)
}

func TestEngine_RouteToNode(t *testing.T) {
	g, nodes := buildLine(t)
	e := NewEngine(g, 100)

	res, err := e.RouteToNode(context.Background(), graph.LatLng{Lat: 0, Lng: 0}, nodes[1].ID(), nil)
	require.NoError(t, err)
	assert.Equal(t, []graph.NodeID{nodes[0].ID(), nodes[1].ID()}, res.Path.NodeIDs())
	assert.False(t, res.HasAvoidedTag)

	_, err = e.RouteToNode(context.Background(), graph.LatLng{Lat: 0, Lng: 0}, "missing", nil)
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestEngine_PointTooFar(t *testing.T) {
	g, _ := buildLine(t)
	e := NewEngine(g, 50)

	_, err := e.Route(context.Background(), graph.LatLng{Lat: 1, Lng: 1}, graph.LatLng{Lat: 0, Lng: 0}, nil)
	assert.ErrorIs(t, err, ErrPointTooFar)

	_, err = e.Route(context.Background(), graph.LatLng{Lat: 0, Lng: 0}, graph.LatLng{Lat: 1, Lng: 1}, nil)
	assert.ErrorIs(t, err, ErrPointTooFar)
}

func TestEngine_SeesEdits(t *testing.T) {
	g, nodes := buildLine(t)
	e := NewEngine(g, 0)

	require.True(t, g.RemovePolyline("abc"))
	_, err := e.RouteToNode(context.Background(), graph.LatLng{Lat: 0, Lng: 0}, nodes[2].ID(), nil)
	assert.ErrorIs(t, err, ErrPointTooFar, "empty graph leaves nothing to snap to")
}
