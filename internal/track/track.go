// Package track models a closed-loop race circuit as an ordered polyline and
// derives the geometry the dashboard map needs: parallel boundary offset
// polylines, a drawable surface ring, a bounding region, and nearest-point
// projection of noisy GPS fixes onto the centerline.
package track

import (
	"github.com/banshee-data/trackside/internal/geo"
)

// Path is the ordered centerline of a circuit. The sequence is treated as a
// closed loop: the last waypoint connects back to the first. Ordering is the
// traversal order of the circuit.
type Path []geo.Point

// Boundary holds the inner and outer offset polylines derived from a Path.
// Both are index-aligned with the centerline and have the same length.
type Boundary struct {
	Inner []geo.Point `json:"inner"`
	Outer []geo.Point `json:"outer"`
}

// Bounds is the axis-aligned bounding region of a path, for map viewports.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`
}

// BuildBoundary derives the inner and outer boundary polylines for a closed
// path of the given total width in meters. Each waypoint is offset
// perpendicular to the local direction of travel, using its wrapped
// predecessor and successor as the direction reference. Paths with fewer
// than two waypoints yield an empty boundary.
func BuildBoundary(path Path, widthMeters float64) Boundary {
	n := len(path)
	if n < 2 {
		return Boundary{}
	}

	half := widthMeters / 2
	inner := make([]geo.Point, n)
	outer := make([]geo.Point, n)
	for i, p := range path {
		prev := path[(i-1+n)%n]
		next := path[(i+1)%n]
		outer[i] = geo.PerpendicularOffset(p, prev, next, half)
		inner[i] = geo.PerpendicularOffset(p, prev, next, -half)
	}
	return Boundary{Inner: inner, Outer: outer}
}

// SurfaceRing concatenates the outer boundary, the reversed inner boundary,
// and the first outer point again, producing a closed ring suitable for
// filled polygon rendering. The ring's winding depends on the boundary
// ordering produced by BuildBoundary.
func SurfaceRing(b Boundary) []geo.Point {
	if len(b.Outer) == 0 || len(b.Inner) == 0 {
		return nil
	}
	ring := make([]geo.Point, 0, len(b.Outer)+len(b.Inner)+1)
	ring = append(ring, b.Outer...)
	for i := len(b.Inner) - 1; i >= 0; i-- {
		ring = append(ring, b.Inner[i])
	}
	ring = append(ring, b.Outer[0])
	return ring
}

// PathBounds returns the bounding region of a path. An empty path yields the
// zero Bounds.
func PathBounds(path Path) Bounds {
	if len(path) == 0 {
		return Bounds{}
	}
	b := Bounds{
		MinLat: path[0].Lat, MaxLat: path[0].Lat,
		MinLng: path[0].Lng, MaxLng: path[0].Lng,
	}
	for _, p := range path[1:] {
		if p.Lat < b.MinLat {
			b.MinLat = p.Lat
		}
		if p.Lat > b.MaxLat {
			b.MaxLat = p.Lat
		}
		if p.Lng < b.MinLng {
			b.MinLng = p.Lng
		}
		if p.Lng > b.MaxLng {
			b.MaxLng = p.Lng
		}
	}
	return b
}
