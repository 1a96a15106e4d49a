// Package planar holds the low-level planar geometry primitives shared by
// the Voronoi builder, the boundary clipper, and the spatial index. All
// coordinates are projected meters; rings are closed (first == last) and
// counter-clockwise unless stated otherwise.
package planar

import (
	"math"

	"github.com/twpayne/go-geom"
)

// Dist returns the Euclidean distance between two points.
func Dist(a, b geom.Coord) float64 {
	return math.Hypot(b[0]-a[0], b[1]-a[1])
}

// DistSq returns the squared Euclidean distance between two points.
func DistSq(a, b geom.Coord) float64 {
	dx := b[0] - a[0]
	dy := b[1] - a[1]
	return dx*dx + dy*dy
}

// cross returns the z component of (b-a) x (c-a).
func cross(a, b, c geom.Coord) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

// SignedArea returns the signed area of a ring: positive for
// counter-clockwise winding, negative for clockwise.
func SignedArea(ring []geom.Coord) float64 {
	if len(ring) < 3 {
		return 0
	}
	sum := 0.0
	for i := 0; i < len(ring)-1; i++ {
		sum += ring[i][0]*ring[i+1][1] - ring[i+1][0]*ring[i][1]
	}
	// Close the ring implicitly if the caller did not.
	last := ring[len(ring)-1]
	first := ring[0]
	if last[0] != first[0] || last[1] != first[1] {
		sum += last[0]*first[1] - first[0]*last[1]
	}
	return sum / 2
}

// Area returns the absolute area of a ring.
func Area(ring []geom.Coord) float64 {
	return math.Abs(SignedArea(ring))
}

// Centroid returns the area centroid of a ring. Degenerate rings fall
// back to the vertex mean.
func Centroid(ring []geom.Coord) geom.Coord {
	a := SignedArea(ring)
	if math.Abs(a) < 1e-12 {
		return vertexMean(ring)
	}
	var cx, cy float64
	n := len(ring)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		f := ring[i][0]*ring[j][1] - ring[j][0]*ring[i][1]
		cx += (ring[i][0] + ring[j][0]) * f
		cy += (ring[i][1] + ring[j][1]) * f
	}
	return geom.Coord{cx / (6 * a), cy / (6 * a)}
}

func vertexMean(ring []geom.Coord) geom.Coord {
	var sx, sy float64
	n := len(ring)
	if n == 0 {
		return geom.Coord{0, 0}
	}
	// Skip the closing vertex if present.
	if n > 1 && ring[0][0] == ring[n-1][0] && ring[0][1] == ring[n-1][1] {
		n--
	}
	for i := 0; i < n; i++ {
		sx += ring[i][0]
		sy += ring[i][1]
	}
	return geom.Coord{sx / float64(n), sy / float64(n)}
}

// PointInRing reports whether p lies strictly inside the ring, using the
// ray casting rule. Points on the boundary are not guaranteed either way;
// callers needing boundary inclusion should combine with OnRing.
func PointInRing(p geom.Coord, ring []geom.Coord) bool {
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > p[1]) != (yj > p[1]) &&
			p[0] < (xj-xi)*(p[1]-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// OnRing reports whether p lies within tol of the ring boundary.
func OnRing(p geom.Coord, ring []geom.Coord, tol float64) bool {
	for i := 0; i < len(ring)-1; i++ {
		if PointSegDistSq(p, ring[i], ring[i+1]) <= tol*tol {
			return true
		}
	}
	return false
}

// PointSegDistSq returns the squared distance from p to segment ab.
func PointSegDistSq(p, a, b geom.Coord) float64 {
	abx := b[0] - a[0]
	aby := b[1] - a[1]
	l2 := abx*abx + aby*aby
	if l2 == 0 {
		return DistSq(p, a)
	}
	t := ((p[0]-a[0])*abx + (p[1]-a[1])*aby) / l2
	t = math.Max(0, math.Min(1, t))
	q := geom.Coord{a[0] + t*abx, a[1] + t*aby}
	return DistSq(p, q)
}

// RingBounds returns the bounding box of a ring as (minX, minY, maxX, maxY).
func RingBounds(ring []geom.Coord) (minX, minY, maxX, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, c := range ring {
		minX = math.Min(minX, c[0])
		minY = math.Min(minY, c[1])
		maxX = math.Max(maxX, c[0])
		maxY = math.Max(maxY, c[1])
	}
	return minX, minY, maxX, maxY
}

// SharedSegmentLength returns the total length along which the two ring
// boundaries coincide within tol. Segments must be collinear and overlap
// over a positive length to contribute; touching at a point counts as zero.
func SharedSegmentLength(a, b []geom.Coord, tol float64) float64 {
	total := 0.0
	for i := 0; i < len(a)-1; i++ {
		for j := 0; j < len(b)-1; j++ {
			total += segmentOverlap(a[i], a[i+1], b[j], b[j+1], tol)
		}
	}
	return total
}

// segmentOverlap returns the overlap length of two collinear segments, or
// zero when they are not collinear within tol.
func segmentOverlap(a1, a2, b1, b2 geom.Coord, tol float64) float64 {
	dx := a2[0] - a1[0]
	dy := a2[1] - a1[1]
	l := math.Hypot(dx, dy)
	if l == 0 {
		return 0
	}
	ux, uy := dx/l, dy/l

	// Both endpoints of b must lie on the line through a within tol.
	d1 := math.Abs((b1[0]-a1[0])*uy - (b1[1]-a1[1])*ux)
	d2 := math.Abs((b2[0]-a1[0])*uy - (b2[1]-a1[1])*ux)
	if d1 > tol || d2 > tol {
		return 0
	}

	// Project onto the direction of a and intersect the parameter ranges.
	t1 := (b1[0]-a1[0])*ux + (b1[1]-a1[1])*uy
	t2 := (b2[0]-a1[0])*ux + (b2[1]-a1[1])*uy
	lo := math.Max(0, math.Min(t1, t2))
	hi := math.Min(l, math.Max(t1, t2))
	if hi <= lo {
		return 0
	}
	return hi - lo
}

// SegmentsIntersect reports whether segments ab and cd share at least one
// point, endpoints included.
func SegmentsIntersect(a, b, c, d geom.Coord) bool {
	d1 := cross(c, d, a)
	d2 := cross(c, d, b)
	d3 := cross(a, b, c)
	d4 := cross(a, b, d)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}

	onSeg := func(p, q, r geom.Coord) bool {
		return math.Min(p[0], r[0]) <= q[0] && q[0] <= math.Max(p[0], r[0]) &&
			math.Min(p[1], r[1]) <= q[1] && q[1] <= math.Max(p[1], r[1])
	}
	switch {
	case d1 == 0 && onSeg(c, a, d):
		return true
	case d2 == 0 && onSeg(c, b, d):
		return true
	case d3 == 0 && onSeg(a, c, b):
		return true
	case d4 == 0 && onSeg(a, d, b):
		return true
	}
	return false
}

// CloseRing appends the first coordinate if the ring is not closed.
func CloseRing(ring []geom.Coord) []geom.Coord {
	if len(ring) == 0 {
		return ring
	}
	first := ring[0]
	last := ring[len(ring)-1]
	if first[0] == last[0] && first[1] == last[1] {
		return ring
	}
	return append(ring, geom.Coord{first[0], first[1]})
}
