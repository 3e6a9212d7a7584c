package graph

import (
	"math"

	"github.com/tidwall/rtree"

	"access_router/pkg/geo"
)

// nodeIndex is an R-tree over node positions, keyed [lng, lat].
type nodeIndex struct {
	tr rtree.RTreeG[NodeID]
}

func pointKey(p LatLng) [2]float64 {
	return [2]float64{p.Lng, p.Lat}
}

func (ix *nodeIndex) insert(n *Node) {
	k := pointKey(n.pos)
	ix.tr.Insert(k, k, n.id)
}

func (ix *nodeIndex) delete(n *Node) {
	k := pointKey(n.pos)
	ix.tr.Delete(k, k, n.id)
}

// nearest returns the node closest to p whose great-circle distance is strictly
// below radius meters.
func (ix *nodeIndex) nearest(nodes func(NodeID) *Node, p LatLng, radius float64) (*Node, float64) {
	var best *Node
	bestDist := math.Inf(1)
	for _, box := range geo.SearchBoxes(p.Lat, p.Lng, radius) {
		ix.tr.Search(box.Min, box.Max, func(_, _ [2]float64, id NodeID) bool {
			n := nodes(id)
			if n == nil {
				return true
			}
			d := geo.Haversine(p.Lat, p.Lng, n.pos.Lat, n.pos.Lng)
			// Ties go to the lexically smaller id so lookups are deterministic.
			if d < radius && (d < bestDist || (d == bestDist && best != nil && n.id < best.id)) {
				best = n
				bestDist = d
			}
			return true
		})
	}
	return best, bestDist
}
