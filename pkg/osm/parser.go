package osm

import (
	"context"
	"fmt"
	"io"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"access_router/pkg/graph"
	"access_router/pkg/polyline"
)

// footHighways lists highway tag values walkable by default.
var footHighways = map[string]bool{
	"footway":        true,
	"path":           true,
	"pedestrian":     true,
	"steps":          true,
	"corridor":       true,
	"living_street":  true,
	"residential":    true,
	"service":        true,
	"track":          true,
	"unclassified":   true,
	"tertiary":       true,
	"tertiary_link":  true,
	"secondary":      true,
	"secondary_link": true,
	"primary":        true,
	"primary_link":   true,
}

// footAllowed lists foot= values that grant access regardless of highway or
// access tags.
var footAllowed = map[string]bool{
	"yes":        true,
	"designated": true,
	"permissive": true,
}

// isWalkable returns true if the way can be used on foot or by wheelchair.
func isWalkable(tags osm.Tags) bool {
	hw := tags.Find("highway")
	foot := tags.Find("foot")

	if !footHighways[hw] && !(hw == "cycleway" && footAllowed[foot]) {
		return false
	}

	// Skip area highways (pedestrian plazas); their outline is not a path.
	if tags.Find("area") == "yes" {
		return false
	}

	if foot == "no" {
		return false
	}
	access := tags.Find("access")
	if (access == "no" || access == "private") && !footAllowed[foot] {
		return false
	}

	return true
}

// isStairs returns true if every vertex of the way is a stair junction.
func isStairs(tags osm.Tags) bool {
	return tags.Find("highway") == "steps"
}

// wayInfo holds parsed way data collected during Pass 1.
type wayInfo struct {
	ID      osm.WayID
	NodeIDs []osm.NodeID
	Stairs  bool
}

// BBox defines a geographic bounding box for filtering.
// If non-zero, only segments with both endpoints inside the box are kept.
type BBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// IsZero returns true if the bbox is unset.
func (b BBox) IsZero() bool {
	return b.MinLat == 0 && b.MaxLat == 0 && b.MinLng == 0 && b.MaxLng == 0
}

// Contains returns true if the point is inside the bounding box.
func (b BBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// ParseOptions configures the OSM parser.
type ParseOptions struct {
	BBox   BBox        // if non-zero, filter segments to this bounding box
	Logger *zap.Logger // nil disables progress logging
}

// ParseStats counts what the parser kept and dropped.
type ParseStats struct {
	Ways            int
	ReferencedNodes int
	Polylines       int
	StairWays       int
	MissingCoords   int // vertices skipped for lack of a node record
	BBoxFiltered    int // vertices outside the bounding box
}

// ParseResult holds the output of parsing an OSM PBF file.
type ParseResult struct {
	Polylines []*polyline.Polyline
	Stats     ParseStats
}

// PolylineID names the polyline built from part of a way. Ways cut by the
// bounding box or by missing nodes yield one polyline per surviving run.
func PolylineID(way osm.WayID, part int) graph.PolylineID {
	if part == 0 {
		return graph.PolylineID(fmt.Sprintf("osm-way-%d", way))
	}
	return graph.PolylineID(fmt.Sprintf("osm-way-%d-%d", way, part))
}

// Parse reads an OSM PBF file and returns one polyline per walkable way.
// The reader is consumed twice (seeks back to start for the second pass),
// so it must implement io.ReadSeeker.
func Parse(ctx context.Context, rs io.ReadSeeker, opts ...ParseOptions) (*ParseResult, error) {
	var opt ParseOptions
	if len(opts) > 0 {
		opt = opts[0]
	}
	log := opt.Logger
	if log == nil {
		log = zap.NewNop()
	}

	// Pass 1: Scan ways to collect referenced node IDs and way info.
	referencedNodes := make(map[osm.NodeID]struct{})
	var ways []wayInfo

	scanner := osmpbf.New(ctx, rs, 1)
	scanner.SkipNodes = true
	scanner.SkipRelations = true

	for scanner.Scan() {
		w, ok := scanner.Object().(*osm.Way)
		if !ok {
			continue
		}
		if !isWalkable(w.Tags) || len(w.Nodes) < 2 {
			continue
		}

		nodeIDs := make([]osm.NodeID, len(w.Nodes))
		for i, wn := range w.Nodes {
			nodeIDs[i] = wn.ID
			referencedNodes[wn.ID] = struct{}{}
		}
		ways = append(ways, wayInfo{ID: w.ID, NodeIDs: nodeIDs, Stairs: isStairs(w.Tags)})
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, errors.Wrap(err, "pass 1 (ways)")
	}
	scanner.Close()

	log.Info("pass 1 complete", zap.Int("ways", len(ways)), zap.Int("referenced_nodes", len(referencedNodes)))

	// Pass 2: Scan nodes to collect coordinates for referenced nodes only.
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "seek for pass 2")
	}

	coords := make(map[osm.NodeID]graph.LatLng, len(referencedNodes))

	scanner = osmpbf.New(ctx, rs, 1)
	scanner.SkipWays = true
	scanner.SkipRelations = true

	for scanner.Scan() {
		n, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if _, needed := referencedNodes[n.ID]; !needed {
			continue
		}
		coords[n.ID] = graph.LatLng{Lat: n.Lat, Lng: n.Lon}
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, errors.Wrap(err, "pass 2 (nodes)")
	}
	scanner.Close()

	log.Info("pass 2 complete", zap.Int("coordinates", len(coords)))

	res := buildPolylines(ways, coords, opt.BBox)
	res.Stats.ReferencedNodes = len(referencedNodes)

	if res.Stats.MissingCoords > 0 {
		log.Warn("skipped vertices with missing node coordinates", zap.Int("count", res.Stats.MissingCoords))
	}
	if res.Stats.BBoxFiltered > 0 {
		log.Info("filtered vertices outside bounding box", zap.Int("count", res.Stats.BBoxFiltered))
	}
	log.Info("built polylines", zap.Int("polylines", res.Stats.Polylines), zap.Int("stair_ways", res.Stats.StairWays))

	return res, nil
}

// buildPolylines turns ways into polylines. A vertex without coordinates or
// outside the bounding box ends the current run; runs shorter than two
// vertices are dropped.
func buildPolylines(ways []wayInfo, coords map[osm.NodeID]graph.LatLng, bbox BBox) *ParseResult {
	res := &ParseResult{}
	res.Stats.Ways = len(ways)
	useBBox := !bbox.IsZero()

	for _, w := range ways {
		part := 0
		var run []graph.LatLng
		flush := func() {
			if len(run) >= 2 {
				p := &polyline.Polyline{ID: PolylineID(w.ID, part), Coordinates: run}
				if w.Stairs {
					p.Tags = make(map[int]polyline.TagRecord, len(run))
					for i := range run {
						p.Tags[i] = polyline.TagRecord{HasStairs: true}
					}
				}
				res.Polylines = append(res.Polylines, p)
				part++
			}
			run = nil
		}

		for _, id := range w.NodeIDs {
			c, ok := coords[id]
			switch {
			case !ok:
				res.Stats.MissingCoords++
				flush()
			case useBBox && !bbox.Contains(c.Lat, c.Lng):
				res.Stats.BBoxFiltered++
				flush()
			default:
				run = append(run, c)
			}
		}
		flush()

		if w.Stairs && part > 0 {
			res.Stats.StairWays++
		}
	}

	res.Stats.Polylines = len(res.Polylines)
	return res
}
