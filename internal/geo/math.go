package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// MaxLat is the latitude limit of the Web Mercator projection.
const MaxLat = 85.05112878

// LatLngToTile returns the slippy-map tile containing the point at zoom z.
func LatLngToTile(p GeoPoint, z int) (x, y int) {
	lat := p.Lat
	if lat > MaxLat {
		lat = MaxLat
	} else if lat < -MaxLat {
		lat = -MaxLat
	}

	n := float64(int(1) << z)
	latRad := lat * math.Pi / 180.0

	x = int(math.Floor((p.Lng + 180.0) / 360.0 * n))
	y = int(math.Floor((1.0 - math.Log(math.Tan(latRad)+1.0/math.Cos(latRad))/math.Pi) / 2.0 * n))

	last := int(n) - 1
	x = clamp(x, 0, last)
	y = clamp(y, 0, last)

	return x, y
}

// Ring converts a vertex path to a closed orb ring in [lng, lat] order.
func Ring(path []GeoPoint) orb.Ring {
	ring := make(orb.Ring, 0, len(path)+1)
	for _, p := range path {
		ring = append(ring, orb.Point{p.Lng, p.Lat})
	}
	if len(ring) > 0 && !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return ring
}

// Contains reports whether p lies inside the polygon described by path.
// The path may be open or closed; fewer than three vertices contain nothing.
func Contains(path []GeoPoint, p GeoPoint) bool {
	if len(path) < 3 {
		return false
	}

	return planar.PolygonContains(orb.Polygon{Ring(path)}, orb.Point{p.Lng, p.Lat})
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
