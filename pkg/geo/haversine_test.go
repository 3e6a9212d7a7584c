package geo

import (
	"math"
	"testing"
)

func TestHaversine(t *testing.T) {
	tests := []struct {
		name             string
		lat1, lon1       float64
		lat2, lon2       float64
		wantMeters       float64
		tolerancePercent float64
	}{
		{
			name: "Half a thousandth of a degree along the equator",
			lat1: 0, lon1: 0,
			lat2: 0, lon2: 0.0005,
			wantMeters:       55.6,
			tolerancePercent: 0.5,
		},
		{
			name: "Same point",
			lat1: 45.5048, lon1: -73.5772,
			lat2: 45.5048, lon2: -73.5772,
			wantMeters:       0,
			tolerancePercent: 0,
		},
		{
			name: "Across a campus quad (~100m north)",
			lat1: 45.5048, lon1: -73.5772,
			lat2: 45.5057, lon2: -73.5772,
			wantMeters:       100,
			tolerancePercent: 1,
		},
		{
			name: "London to Paris",
			lat1: 51.5074, lon1: -0.1278,
			lat2: 48.8566, lon2: 2.3522,
			wantMeters:       343_500,
			tolerancePercent: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Haversine(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if tt.wantMeters == 0 {
				if got != 0 {
					t.Errorf("expected 0, got %f", got)
				}
				return
			}
			diff := math.Abs(got-tt.wantMeters) / tt.wantMeters * 100
			if diff > tt.tolerancePercent {
				t.Errorf("Haversine = %f m, want ~%f m (diff %.2f%%)", got, tt.wantMeters, diff)
			}
		})
	}
}

func TestHaversine_BelowMergeTolerance(t *testing.T) {
	// 0.000003 deg of latitude is about 0.33 m.
	got := Haversine(45.5, -73.5, 45.500003, -73.5)
	if got >= 0.5 {
		t.Errorf("Haversine = %f m, want < 0.5 m", got)
	}
}

func TestEquirectangularDist(t *testing.T) {
	lat1, lon1 := 45.5048, -73.5772
	lat2, lon2 := 45.5090, -73.5700

	h := Haversine(lat1, lon1, lat2, lon2)
	e := EquirectangularDist(lat1, lon1, lat2, lon2)

	diffPercent := math.Abs(h-e) / h * 100
	if diffPercent > 0.5 {
		t.Errorf("EquirectangularDist differs from Haversine by %.2f%% (haversine=%f, equirect=%f)", diffPercent, h, e)
	}
}

func inBoxes(boxes []Box, lat, lng float64) bool {
	for _, b := range boxes {
		if lng >= b.Min[0] && lng <= b.Max[0] && lat >= b.Min[1] && lat <= b.Max[1] {
			return true
		}
	}
	return false
}

func TestSearchBoxes(t *testing.T) {
	lat, lng := 45.5, -73.5
	boxes := SearchBoxes(lat, lng, 10)
	if len(boxes) != 1 {
		t.Fatalf("got %d boxes, want 1", len(boxes))
	}

	// Points 10m away in each cardinal direction must fall inside.
	dLat := 10 / metersPerDegreeLat
	dLng := dLat / math.Cos(lat*math.Pi/180)
	for _, p := range [][2]float64{
		{lng, lat + dLat}, {lng, lat - dLat}, {lng + dLng, lat}, {lng - dLng, lat},
	} {
		if !inBoxes(boxes, p[1], p[0]) {
			t.Errorf("point %v outside boxes %v", p, boxes)
		}
	}

	tests := []struct {
		name      string
		lat, lng  float64
		other     [2]float64 // lat, lng within 0.5m of the centre
		wantBoxes int
	}{
		{name: "east of the antimeridian", lat: 0, lng: 179.999999, other: [2]float64{0, -179.999999}, wantBoxes: 2},
		{name: "west of the antimeridian", lat: 0, lng: -179.999999, other: [2]float64{0, 179.999999}, wantBoxes: 2},
		{name: "near the north pole", lat: 89.9999999, lng: 100, other: [2]float64{89.9999999, -100}, wantBoxes: 1},
		{name: "at the south pole", lat: -90, lng: 0, other: [2]float64{-90, 135}, wantBoxes: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if d := Haversine(tt.lat, tt.lng, tt.other[0], tt.other[1]); d >= 0.5 {
				t.Fatalf("fixture points are %.3fm apart", d)
			}
			boxes := SearchBoxes(tt.lat, tt.lng, 0.5)
			if len(boxes) != tt.wantBoxes {
				t.Errorf("got %d boxes, want %d", len(boxes), tt.wantBoxes)
			}
			if !inBoxes(boxes, tt.other[0], tt.other[1]) {
				t.Errorf("point %v outside boxes %v", tt.other, boxes)
			}
		})
	}
}

func TestPointToSegmentDist(t *testing.T) {
	tests := []struct {
		name       string
		pLat, pLon float64
		aLat, aLon float64
		bLat, bLon float64
		wantRatio  float64
		maxDistM   float64
	}{
		{
			name: "Point at start of segment",
			pLat: 45.5000, pLon: -73.5700,
			aLat: 45.5000, aLon: -73.5700,
			bLat: 45.5010, bLon: -73.5700,
			wantRatio: 0.0,
			maxDistM:  1,
		},
		{
			name: "Point at end of segment",
			pLat: 45.5010, pLon: -73.5700,
			aLat: 45.5000, aLon: -73.5700,
			bLat: 45.5010, bLon: -73.5700,
			wantRatio: 1.0,
			maxDistM:  1,
		},
		{
			name: "Point beside the midpoint",
			pLat: 45.5005, pLon: -73.5695,
			aLat: 45.5000, aLon: -73.5700,
			bLat: 45.5010, bLon: -73.5700,
			wantRatio: 0.5,
			maxDistM:  45, // roughly 39m east
		},
		{
			name: "Point past the end is clamped",
			pLat: 45.5020, pLon: -73.5700,
			aLat: 45.5000, aLon: -73.5700,
			bLat: 45.5010, bLon: -73.5700,
			wantRatio: 1.0,
			maxDistM:  115,
		},
		{
			name: "Degenerate segment (A == B)",
			pLat: 45.5000, pLon: -73.5690,
			aLat: 45.5000, aLon: -73.5700,
			bLat: 45.5000, bLon: -73.5700,
			wantRatio: 0.0,
			maxDistM:  100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dist, ratio := PointToSegmentDist(tt.pLat, tt.pLon, tt.aLat, tt.aLon, tt.bLat, tt.bLon)
			if dist > tt.maxDistM {
				t.Errorf("dist = %f m, want <= %f m", dist, tt.maxDistM)
			}
			if math.Abs(ratio-tt.wantRatio) > 0.05 {
				t.Errorf("ratio = %f, want ~%f", ratio, tt.wantRatio)
			}
		})
	}
}

func TestProjectOnSegment(t *testing.T) {
	tests := []struct {
		name     string
		px, py   float64
		wantT    float64
		wantDist float64
	}{
		{name: "above midpoint", px: 50, py: 10, wantT: 0.5, wantDist: 10},
		{name: "before start", px: -30, py: 40, wantT: 0, wantDist: 50},
		{name: "after end", px: 103, py: -4, wantT: 1, wantDist: 5},
		{name: "on segment", px: 25, py: 0, wantT: 0.25, wantDist: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotT, gotDist := ProjectOnSegment(tt.px, tt.py, 0, 0, 100, 0)
			if math.Abs(gotT-tt.wantT) > 1e-9 {
				t.Errorf("t = %f, want %f", gotT, tt.wantT)
			}
			if math.Abs(gotDist-tt.wantDist) > 1e-9 {
				t.Errorf("dist = %f, want %f", gotDist, tt.wantDist)
			}
		})
	}

	gotT, gotDist := ProjectOnSegment(3, 4, 0, 0, 0, 0)
	if gotT != 0 || math.Abs(gotDist-5) > 1e-9 {
		t.Errorf("zero-length segment: t=%f dist=%f, want 0 and 5", gotT, gotDist)
	}
}

func TestIsValidLatLng(t *testing.T) {
	if !IsValidLatLng(45.5, -73.5) {
		t.Error("expected valid coordinate")
	}
	for _, c := range [][2]float64{{91, 0}, {0, 181}, {math.NaN(), 0}, {0, math.Inf(1)}} {
		if IsValidLatLng(c[0], c[1]) {
			t.Errorf("IsValidLatLng(%v) = true, want false", c)
		}
	}
}

func BenchmarkHaversine(b *testing.B) {
	for b.Loop() {
		Haversine(45.5048, -73.5772, 45.5090, -73.5700)
	}
}
