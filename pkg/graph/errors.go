package graph

import (
	"github.com/pkg/errors"

	"access_router/pkg/geo"
)

var (
	// ErrTooFewCoordinates is returned for a polyline with fewer than two coordinates.
	ErrTooFewCoordinates = errors.New("polyline needs at least 2 coordinates")
	// ErrInvalidCoordinate is returned for a non-finite or out-of-range coordinate.
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	// ErrTagIndexOutOfRange is returned when a tag refers to a missing coordinate.
	ErrTagIndexOutOfRange = errors.New("tag index out of range")
	// ErrEmptyPolylineID is returned when a polyline has no identity.
	ErrEmptyPolylineID = errors.New("empty polyline id")
)

// Validate checks polyline input before it is allowed to touch a graph.
func Validate(id PolylineID, coords []LatLng, tags map[int][]Tag) error {
	if id == "" {
		return ErrEmptyPolylineID
	}
	if len(coords) < 2 {
		return errors.Wrapf(ErrTooFewCoordinates, "polyline %q has %d", id, len(coords))
	}
	for i, c := range coords {
		if !geo.IsValidLatLng(c.Lat, c.Lng) {
			return errors.Wrapf(ErrInvalidCoordinate, "polyline %q index %d (%v, %v)", id, i, c.Lat, c.Lng)
		}
	}
	for i := range tags {
		if i < 0 || i >= len(coords) {
			return errors.Wrapf(ErrTagIndexOutOfRange, "polyline %q index %d", id, i)
		}
	}
	return nil
}
