package track

import (
	"math"

	"github.com/banshee-data/trackside/internal/geo"
)

// Projection is the result of snapping a GPS fix onto the centerline.
// Progress is the normalized position of the snapped point along the closed
// loop, in [0, 1): segment index plus interpolation fraction, divided by the
// segment count.
type Projection struct {
	Point    geo.Point `json:"point"`
	Progress float64   `json:"progress"`
}

// Project finds the nearest point on the closed path to the given fix.
//
// Every consecutive segment is considered, including the wraparound segment
// from the last waypoint back to the first. For each segment the fix is
// projected parametrically in the latitude-scaled planar space used by
// geo.PlanarDistance, with the projection scalar clamped to [0, 1]; the
// candidate with the minimum planar distance wins. Ties resolve to the first
// segment in iteration order.
//
// Degenerate inputs produce degenerate outputs rather than errors: an empty
// path passes the fix through with progress 0, a single-point path returns
// that point with progress 0, and zero-length segments (duplicate
// consecutive waypoints) are treated as bare points.
func Project(path Path, fix geo.Point) Projection {
	n := len(path)
	if n == 0 {
		return Projection{Point: fix, Progress: 0}
	}
	if n == 1 {
		return Projection{Point: path[0], Progress: 0}
	}

	best := Projection{Point: path[0], Progress: 0}
	bestDist := math.Inf(1)

	for i := 0; i < n; i++ {
		start := path[i]
		end := path[(i+1)%n]

		candidate, t := projectOntoSegment(start, end, fix)
		d := geo.PlanarDistance(fix, candidate)
		if d < bestDist {
			bestDist = d
			best = Projection{
				Point:    candidate,
				Progress: (float64(i) + t) / float64(n),
			}
		}
	}
	return best
}

// projectOntoSegment returns the closest point on the segment [start, end]
// to the fix, and the clamped parametric position t in [0, 1]. The
// computation runs in the same latitude-scaled planar space as
// geo.PlanarDistance so distances compare consistently. A zero-length
// segment collapses to its start point with t = 0.
func projectOntoSegment(start, end, fix geo.Point) (geo.Point, float64) {
	latScale := math.Cos((start.Lat + end.Lat) / 2 * math.Pi / 180)

	sx, sy := start.Lng*latScale, start.Lat
	ex, ey := end.Lng*latScale, end.Lat
	fx, fy := fix.Lng*latScale, fix.Lat

	dx, dy := ex-sx, ey-sy
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return start, 0
	}

	t := ((fx-sx)*dx + (fy-sy)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))

	return geo.Point{
		Lat: start.Lat + t*(end.Lat-start.Lat),
		Lng: start.Lng + t*(end.Lng-start.Lng),
	}, t
}
