package geo

import "math"

const earthRadiusMeters = 6_371_000.0

// metersPerDegreeLat is the length of one degree of latitude on the sphere above.
const metersPerDegreeLat = math.Pi / 180 * earthRadiusMeters

// Haversine returns the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	lat1r := lat1 * math.Pi / 180
	lat2r := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1r)*math.Cos(lat2r)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// EquirectangularDist returns an approximate distance in meters.
// Accurate to well under 1% for the sub-kilometre spans of a walking network.
// Use for candidate filtering and comparisons, not for edge weights.
func EquirectangularDist(lat1, lon1, lat2, lon2 float64) float64 {
	x := (lon2 - lon1) * math.Cos((lat1+lat2)/2*math.Pi/180) * math.Pi / 180
	y := (lat2 - lat1) * math.Pi / 180
	return math.Sqrt(x*x+y*y) * earthRadiusMeters
}

// Box is a lat/lng rectangle with corners as [lng, lat].
type Box struct {
	Min, Max [2]float64
}

// SearchBoxes returns one or two lat/lng boxes that together contain every point
// within radius meters of (lat, lng). A box crossing the antimeridian is split
// in two; a box reaching a pole spans every longitude. The boxes err on the
// large side; callers confirm candidates with Haversine.
func SearchBoxes(lat, lng, radius float64) []Box {
	dLat := radius / metersPerDegreeLat * 1.01
	minLat, maxLat := lat-dLat, lat+dLat
	if minLat <= -90 || maxLat >= 90 {
		return []Box{{Min: [2]float64{-180, math.Max(minLat, -90)}, Max: [2]float64{180, math.Min(maxLat, 90)}}}
	}

	// A degree of longitude is shortest at the poleward edge of the box.
	cosLat := math.Cos(math.Max(math.Abs(minLat), math.Abs(maxLat)) * math.Pi / 180)
	dLng := dLat / cosLat
	if dLng >= 180 {
		return []Box{{Min: [2]float64{-180, minLat}, Max: [2]float64{180, maxLat}}}
	}

	lo, hi := lng-dLng, lng+dLng
	switch {
	case lo < -180:
		return []Box{
			{Min: [2]float64{-180, minLat}, Max: [2]float64{hi, maxLat}},
			{Min: [2]float64{lo + 360, minLat}, Max: [2]float64{180, maxLat}},
		}
	case hi > 180:
		return []Box{
			{Min: [2]float64{lo, minLat}, Max: [2]float64{180, maxLat}},
			{Min: [2]float64{-180, minLat}, Max: [2]float64{hi - 360, maxLat}},
		}
	}
	return []Box{{Min: [2]float64{lo, minLat}, Max: [2]float64{hi, maxLat}}}
}

// PointToSegmentDist computes the perpendicular distance from point P to segment AB,
// and returns the projection ratio along AB (clamped to [0,1]).
// dist is in meters, ratio is in [0.0, 1.0].
func PointToSegmentDist(pLat, pLon, aLat, aLon, bLat, bLon float64) (dist float64, ratio float64) {
	// Work in equirectangular projection (good enough for short distances).
	cosLat := math.Cos((aLat + bLat) / 2 * math.Pi / 180)

	// Degenerate segment: compare in original coordinates, where identical
	// endpoints are exactly equal.
	if aLat == bLat && aLon == bLon {
		return EquirectangularDist(pLat, pLon, aLat, aLon), 0
	}

	t, ex, ey := projectClamped(pLon*cosLat, pLat, aLon*cosLat, aLat, bLon*cosLat, bLat)
	return math.Sqrt(ex*ex+ey*ey) * metersPerDegreeLat, t
}

// Interpolate returns the point at ratio t along segment AB, linear in lat/lng.
func Interpolate(aLat, aLon, bLat, bLon, t float64) (lat, lon float64) {
	return aLat + t*(bLat-aLat), aLon + t*(bLon-aLon)
}
