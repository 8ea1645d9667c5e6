// Package geomath provides the geodesic measurements used by the farm
// geometry editor. All functions are pure and tolerate degenerate
// input: rings with fewer than three vertices measure zero rather than
// failing.
package geomath

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// squareMetersPerAcre converts geodesic areas to the acres shown in
// the editor UI.
const squareMetersPerAcre = 4046.86

// Area returns the geodesic surface area of the ring in square meters,
// non-negative regardless of winding. Rings with fewer than three
// vertices have zero area.
func Area(r orb.Ring) float64 {
	if len(r) < 3 {
		return 0
	}
	return math.Abs(geo.Area(r))
}

// Acres converts square meters to acres.
func Acres(squareMeters float64) float64 {
	return squareMeters / squareMetersPerAcre
}

// AreaAcres measures a ring directly in acres.
func AreaAcres(r orb.Ring) float64 {
	return Acres(Area(r))
}

// Centroid returns the arithmetic mean of the ring's vertices. A
// closing vertex that duplicates the first is excluded so it does not
// count twice. Empty rings yield the zero point.
func Centroid(r orb.Ring) orb.Point {
	pts := []orb.Point(r)
	if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	if len(pts) == 0 {
		return orb.Point{}
	}
	var lon, lat float64
	for _, p := range pts {
		lon += p[0]
		lat += p[1]
	}
	n := float64(len(pts))
	return orb.Point{lon / n, lat / n}
}

// Distance returns the great-circle distance between two points in
// meters.
func Distance(a, b orb.Point) float64 {
	return geo.Distance(a, b)
}

// Bound returns the bounding box of the ring, used to re-fit the
// viewport after the boundary is drawn.
func Bound(r orb.Ring) orb.Bound {
	if len(r) == 0 {
		return orb.Bound{}
	}
	return r.Bound()
}

// Close returns the ring with a closing vertex appended when the first
// and last differ. GeoJSON consumers expect closed rings.
func Close(r orb.Ring) orb.Ring {
	if len(r) < 3 || r[0] == r[len(r)-1] {
		return r
	}
	out := make(orb.Ring, len(r)+1)
	copy(out, r)
	out[len(r)] = r[0]
	return out
}
