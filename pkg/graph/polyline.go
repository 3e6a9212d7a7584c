package graph

// AddPolyline resolves every coordinate to a node and links consecutive nodes
// with edges owned by id. tags maps a coordinate index to tags merged onto the
// node resolved at that index.
//
// Malformed input is rejected before the graph is touched. Adding an id that is
// already present replaces that polyline's geometry.
func (g *Graph) AddPolyline(id PolylineID, coords []LatLng, tags map[int][]Tag) (*PolylineResult, error) {
	if err := Validate(id, coords, tags); err != nil {
		return nil, err
	}
	if _, exists := g.polylines.Get(id); exists {
		return g.replace(id, coords, tags), nil
	}
	return g.add(id, coords, tags), nil
}

// ReplacePolyline swaps the geometry of polyline id for coords. The new
// geometry is resolved while the old one is still in place, so vertices that
// did not move keep their node identities and tags. Nodes orphaned by the
// change are deleted. An unknown id is added.
func (g *Graph) ReplacePolyline(id PolylineID, coords []LatLng, tags map[int][]Tag) (*PolylineResult, error) {
	return g.AddPolyline(id, coords, tags)
}

// RemovePolyline retracts every edge owned by id and deletes nodes left without
// neighbours. It reports false for an unknown id.
func (g *Graph) RemovePolyline(id PolylineID) bool {
	seq, ok := g.polylines.Get(id)
	if !ok {
		return false
	}
	g.detach(id, seq)
	g.polylines.Delete(id)
	g.pruneOrphans(seq)
	return true
}

func (g *Graph) add(id PolylineID, coords []LatLng, tags map[int][]Tag) *PolylineResult {
	res := &PolylineResult{ID: id, Nodes: make([]*Node, len(coords))}
	seq := make([]NodeID, len(coords))
	for i, c := range coords {
		n := g.AddOrGetNode(c, tags[i]...)
		res.Nodes[i] = n
		seq[i] = n.id
	}

	for i := 0; i+1 < len(res.Nodes); i++ {
		u, v := res.Nodes[i], res.Nodes[i+1]
		if u.id == v.id {
			continue // both coordinates merged into one junction
		}
		res.Edges = append(res.Edges, g.addEdge(u, v, id))
	}

	g.polylines.Set(id, seq)
	return res
}

func (g *Graph) replace(id PolylineID, coords []LatLng, tags map[int][]Tag) *PolylineResult {
	old, _ := g.polylines.Get(id)
	res := g.add(id, coords, tags)

	// add recorded the new sequence under id; release the old traversals
	// against the edge set directly.
	g.detach(id, old)
	g.pruneOrphans(old)
	return res
}

// detach releases one traversal of each segment in seq owned by id.
func (g *Graph) detach(id PolylineID, seq []NodeID) {
	for i := 0; i+1 < len(seq); i++ {
		if seq[i] == seq[i+1] {
			continue
		}
		g.releaseEdge(MakeEdgeID(seq[i], seq[i+1]), id)
	}
}
