// Package polyline converts between the persisted shape of a drawn path (an
// ordered coordinate list plus sparse per-position tags) and the route graph.
package polyline

import (
	"maps"
	"slices"

	"github.com/pkg/errors"

	"access_router/pkg/graph"
)

// TagRecord is the per-position accessibility record. Stairs keep their own
// flag; any other junction tag is carried in Other.
type TagRecord struct {
	HasStairs bool        `json:"has_stairs"`
	Other     []graph.Tag `json:"other,omitempty"`
}

// Tags converts the record to graph tags.
func (r TagRecord) Tags() []graph.Tag {
	var out []graph.Tag
	if r.HasStairs {
		out = append(out, graph.TagHasStairs)
	}
	return append(out, r.Other...)
}

// IsZero reports whether the record carries no attribute.
func (r TagRecord) IsZero() bool { return !r.HasStairs && len(r.Other) == 0 }

// RecordFromTags builds a record from graph tags. Every tag is kept.
func RecordFromTags(tags []graph.Tag) TagRecord {
	var r TagRecord
	for _, t := range tags {
		if t == graph.TagHasStairs {
			r.HasStairs = true
			continue
		}
		r.Other = append(r.Other, t)
	}
	return r
}

// Polyline is the persisted unit of route geometry.
type Polyline struct {
	ID          graph.PolylineID
	Coordinates []graph.LatLng
	Tags        map[int]TagRecord
}

// Validate rejects malformed polylines before they reach a graph.
func (p *Polyline) Validate() error {
	return graph.Validate(p.ID, p.Coordinates, p.graphTags())
}

// graphTags converts the sparse record map to per-index graph tags.
func (p *Polyline) graphTags() map[int][]graph.Tag {
	if len(p.Tags) == 0 {
		return nil
	}
	out := make(map[int][]graph.Tag, len(p.Tags))
	for i, r := range p.Tags {
		out[i] = r.Tags()
	}
	return out
}

// AddTo resolves the polyline into g. Adding an id already present replaces it.
func (p *Polyline) AddTo(g *graph.Graph) (*graph.PolylineResult, error) {
	res, err := g.AddPolyline(p.ID, p.Coordinates, p.graphTags())
	if err != nil {
		return nil, errors.Wrapf(err, "add polyline %q", p.ID)
	}
	return res, nil
}

// Clone returns a deep copy.
func (p *Polyline) Clone() *Polyline {
	return &Polyline{
		ID:          p.ID,
		Coordinates: slices.Clone(p.Coordinates),
		Tags:        maps.Clone(p.Tags),
	}
}

// Insert returns a copy with c spliced in before index i.
func (p *Polyline) Insert(i int, c graph.LatLng) *Polyline {
	out := &Polyline{
		ID:          p.ID,
		Coordinates: slices.Insert(slices.Clone(p.Coordinates), i, c),
	}
	if len(p.Tags) > 0 {
		out.Tags = make(map[int]TagRecord, len(p.Tags))
		for j, r := range p.Tags {
			if j >= i {
				j++
			}
			out.Tags[j] = r
		}
	}
	return out
}

// FromGraph produces the persisted shape of polyline id back out of g: one
// coordinate per resolved node, and a tag record wherever the node carries
// tags. It reports false for an unknown id.
func FromGraph(g *graph.Graph, id graph.PolylineID) (*Polyline, bool) {
	seq, ok := g.PolylineNodes(id)
	if !ok {
		return nil, false
	}

	p := &Polyline{ID: id, Coordinates: make([]graph.LatLng, len(seq))}
	for i, nid := range seq {
		n, _ := g.Node(nid)
		p.Coordinates[i] = n.Position()
		if r := RecordFromTags(n.Tags()); !r.IsZero() {
			if p.Tags == nil {
				p.Tags = make(map[int]TagRecord)
			}
			p.Tags[i] = r
		}
	}
	return p, true
}

// ExportAll produces every polyline in g, in insertion order.
func ExportAll(g *graph.Graph) []*Polyline {
	ids := g.Polylines()
	out := make([]*Polyline, 0, len(ids))
	for _, id := range ids {
		if p, ok := FromGraph(g, id); ok {
			out = append(out, p)
		}
	}
	return out
}

// Rehydrate adds every polyline to g. All polylines are validated first, so a
// malformed one leaves g untouched.
func Rehydrate(g *graph.Graph, ps []*Polyline) error {
	for _, p := range ps {
		if err := p.Validate(); err != nil {
			return errors.Wrapf(err, "rehydrate")
		}
	}
	for _, p := range ps {
		if _, err := p.AddTo(g); err != nil {
			return err
		}
	}
	return nil
}
