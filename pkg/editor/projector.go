package editor

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"access_router/pkg/graph"
)

// ScreenPoint is a position in screen pixels, y growing downward.
type ScreenPoint struct {
	X float64
	Y float64
}

// Projector maps geographic coordinates to and from the current view.
type Projector interface {
	Project(graph.LatLng) ScreenPoint
	Unproject(ScreenPoint) graph.LatLng
}

const (
	tileSize = 256.0
	// mercatorHalfWorld is half the EPSG:3857 world width in meters.
	mercatorHalfWorld = math.Pi * 6378137.0
)

// WebMercator is the slippy-map projection at a fixed zoom, with Origin the
// world pixel shown at the top-left of the view.
type WebMercator struct {
	Zoom   float64
	Origin ScreenPoint
}

// NewWebMercator returns a projector whose view's top-left corner shows topLeft.
func NewWebMercator(zoom float64, topLeft graph.LatLng) *WebMercator {
	w := &WebMercator{Zoom: zoom}
	w.Origin = w.Project(topLeft)
	return w
}

// pixelsPerMeter is the scale at the equator for the current zoom.
func (w *WebMercator) pixelsPerMeter() float64 {
	return tileSize * math.Pow(2, w.Zoom) / (2 * mercatorHalfWorld)
}

func (w *WebMercator) Project(ll graph.LatLng) ScreenPoint {
	m := project.WGS84.ToMercator(orb.Point{ll.Lng, ll.Lat})
	s := w.pixelsPerMeter()
	return ScreenPoint{
		X: (m[0]+mercatorHalfWorld)*s - w.Origin.X,
		Y: (mercatorHalfWorld-m[1])*s - w.Origin.Y,
	}
}

func (w *WebMercator) Unproject(p ScreenPoint) graph.LatLng {
	s := w.pixelsPerMeter()
	m := orb.Point{
		(p.X+w.Origin.X)/s - mercatorHalfWorld,
		mercatorHalfWorld - (p.Y+w.Origin.Y)/s,
	}
	ll := project.Mercator.ToWGS84(m)
	return graph.LatLng{Lat: ll.Lat(), Lng: ll.Lon()}
}
