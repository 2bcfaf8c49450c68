// Package geo provides planar-approximation distance and bearing primitives
// over latitude/longitude pairs. The approximations hold for track-sized
// spans (under ~10km); none of these are geodesic computations.
package geo

import "math"

// EarthRadiusMeters is the WGS84 equatorial radius used for meter/degree
// conversions.
const EarthRadiusMeters = 6378137.0

// Point is a single latitude/longitude sample in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// PlanarDistance returns the approximate Euclidean distance between two
// points in degree units, with the longitude delta scaled by the cosine of
// the average latitude to correct for meridian convergence. Suitable only
// for comparing short spans; use MetersPerDegreeLat to convert to meters.
func PlanarDistance(a, b Point) float64 {
	avgLat := (a.Lat + b.Lat) / 2 * math.Pi / 180
	dLat := b.Lat - a.Lat
	dLng := (b.Lng - a.Lng) * math.Cos(avgLat)
	return math.Sqrt(dLat*dLat + dLng*dLng)
}

// MetersPerDegreeLat is the approximate meter length of one degree of
// latitude, used to convert PlanarDistance results to meters.
const MetersPerDegreeLat = EarthRadiusMeters * math.Pi / 180

// Bearing returns the initial bearing in radians from one point to another
// using the standard spherical bearing formula. North is 0, east is +π/2.
func Bearing(from, to Point) float64 {
	lat1 := from.Lat * math.Pi / 180
	lat2 := to.Lat * math.Pi / 180
	dLng := (to.Lng - from.Lng) * math.Pi / 180

	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)
	return math.Atan2(y, x)
}

// PerpendicularOffset displaces p by offsetMeters perpendicular to the
// direction of travel from prev to next. The perpendicular is the travel
// bearing rotated +90 degrees; the sign of offsetMeters selects the side.
// Meters are converted to degrees using the Earth radius, with the longitude
// component additionally scaled by the local latitude.
func PerpendicularOffset(p, prev, next Point, offsetMeters float64) Point {
	perp := Bearing(prev, next) + math.Pi/2

	latRad := p.Lat * math.Pi / 180
	dLat := offsetMeters * math.Cos(perp) / EarthRadiusMeters * 180 / math.Pi
	dLng := offsetMeters * math.Sin(perp) / (EarthRadiusMeters * math.Cos(latRad)) * 180 / math.Pi

	return Point{Lat: p.Lat + dLat, Lng: p.Lng + dLng}
}
