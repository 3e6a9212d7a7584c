package geo

import "math"

// ProjectOnSegment projects P onto segment AB in a planar (screen) space.
// It returns the clamped projection parameter t in [0,1] and the planar distance
// from P to the point A + t*(B-A). A zero-length segment yields t = 0.
func ProjectOnSegment(px, py, ax, ay, bx, by float64) (t, dist float64) {
	t, ex, ey := projectClamped(px, py, ax, ay, bx, by)
	return t, math.Hypot(ex, ey)
}

// projectClamped returns the clamped ratio and the offset from the projected
// point to P.
func projectClamped(px, py, ax, ay, bx, by float64) (t, ex, ey float64) {
	dx := bx - ax
	dy := by - ay
	lenSq := dx*dx + dy*dy

	if lenSq > 0 {
		t = ((px-ax)*dx + (py-ay)*dy) / lenSq
		if t < 0 {
			t = 0
		} else if t > 1 {
			t = 1
		}
	}

	return t, px - (ax + t*dx), py - (ay + t*dy)
}

// IsValidLatLng reports whether lat/lng are finite and within WGS84 bounds.
func IsValidLatLng(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
