package geo

import (
	"math"
	"testing"
)

func TestPlanarDistanceSymmetric(t *testing.T) {
	a := Point{Lat: 51.5074, Lng: -0.1278}
	b := Point{Lat: 51.5080, Lng: -0.1290}

	if d1, d2 := PlanarDistance(a, b), PlanarDistance(b, a); d1 != d2 {
		t.Errorf("distance not symmetric: %v vs %v", d1, d2)
	}
}

func TestPlanarDistanceZero(t *testing.T) {
	p := Point{Lat: 45.0, Lng: 7.0}
	if d := PlanarDistance(p, p); d != 0 {
		t.Errorf("distance to self = %v, want 0", d)
	}
}

func TestPlanarDistanceLongitudeScaling(t *testing.T) {
	// The same longitude delta should shrink at higher latitudes.
	equator := PlanarDistance(Point{0, 10.0}, Point{0, 10.01})
	arctic := PlanarDistance(Point{70, 10.0}, Point{70, 10.01})
	if arctic >= equator {
		t.Errorf("longitude delta at 70N (%v) should be shorter than at equator (%v)", arctic, equator)
	}
	if ratio := arctic / equator; math.Abs(ratio-math.Cos(70*math.Pi/180)) > 1e-9 {
		t.Errorf("scaling ratio = %v, want cos(70deg)", ratio)
	}
}

func TestBearingCardinals(t *testing.T) {
	origin := Point{Lat: 0, Lng: 0}
	cases := []struct {
		name string
		to   Point
		want float64
	}{
		{"north", Point{Lat: 1, Lng: 0}, 0},
		{"east", Point{Lat: 0, Lng: 1}, math.Pi / 2},
		{"south", Point{Lat: -1, Lng: 0}, math.Pi},
		{"west", Point{Lat: 0, Lng: -1}, -math.Pi / 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Bearing(origin, tc.to)
			if math.Abs(math.Abs(got)-math.Abs(tc.want)) > 1e-9 {
				t.Errorf("bearing = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPerpendicularOffsetMagnitude(t *testing.T) {
	// Heading due north, a +10m offset should land due east of the point.
	prev := Point{Lat: 51.0000, Lng: -0.1000}
	p := Point{Lat: 51.0010, Lng: -0.1000}
	next := Point{Lat: 51.0020, Lng: -0.1000}

	offset := PerpendicularOffset(p, prev, next, 10)

	if math.Abs(offset.Lat-p.Lat) > 1e-7 {
		t.Errorf("offset moved in latitude: %v -> %v", p.Lat, offset.Lat)
	}
	if offset.Lng <= p.Lng {
		t.Errorf("offset should be east of p: %v -> %v", p.Lng, offset.Lng)
	}

	meters := PlanarDistance(p, offset) * MetersPerDegreeLat
	if math.Abs(meters-10) > 0.05 {
		t.Errorf("offset magnitude = %vm, want ~10m", meters)
	}
}

func TestPerpendicularOffsetSignSelectsSide(t *testing.T) {
	prev := Point{Lat: 51.0000, Lng: -0.1000}
	p := Point{Lat: 51.0010, Lng: -0.1000}
	next := Point{Lat: 51.0020, Lng: -0.1000}

	right := PerpendicularOffset(p, prev, next, 5)
	left := PerpendicularOffset(p, prev, next, -5)

	if right.Lng <= p.Lng || left.Lng >= p.Lng {
		t.Errorf("offsets did not straddle the centerline: left=%v p=%v right=%v", left.Lng, p.Lng, right.Lng)
	}
}
