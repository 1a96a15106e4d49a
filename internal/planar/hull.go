package planar

import (
	"math"
	"sort"

	"github.com/twpayne/go-geom"
)

// ConvexHull returns the convex hull of the given points in
// counter-clockwise order, not closed. Collinear interior points are
// dropped. Fewer than three distinct points return the distinct points.
func ConvexHull(points []geom.Coord) []geom.Coord {
	pts := make([]geom.Coord, len(points))
	copy(pts, points)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i][0] != pts[j][0] {
			return pts[i][0] < pts[j][0]
		}
		return pts[i][1] < pts[j][1]
	})

	// Drop exact duplicates.
	uniq := pts[:0]
	for i, p := range pts {
		if i == 0 || p[0] != pts[i-1][0] || p[1] != pts[i-1][1] {
			uniq = append(uniq, p)
		}
	}
	pts = uniq

	if len(pts) < 3 {
		return pts
	}

	// Andrew monotone chain.
	var lower, upper []geom.Coord
	for _, p := range pts {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], p) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, p)
	}
	for i := len(pts) - 1; i >= 0; i-- {
		p := pts[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], p) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, p)
	}

	return append(lower[:len(lower)-1], upper[:len(upper)-1]...)
}

// Collinear reports whether all points lie on a single line within tol.
func Collinear(points []geom.Coord, tol float64) bool {
	if len(points) < 3 {
		return true
	}
	a := points[0]

	// Find the point farthest from a to define the line direction.
	var b geom.Coord
	best := 0.0
	for _, p := range points[1:] {
		if d := DistSq(a, p); d > best {
			best = d
			b = p
		}
	}
	if best == 0 {
		return true
	}
	l := math.Sqrt(best)
	ux := (b[0] - a[0]) / l
	uy := (b[1] - a[1]) / l

	for _, p := range points {
		if math.Abs((p[0]-a[0])*uy-(p[1]-a[1])*ux) > tol {
			return false
		}
	}
	return true
}

// Circumcenter returns the center of the circle through a, b, and c.
// ok is false when the three points are (nearly) collinear.
func Circumcenter(a, b, c geom.Coord) (center geom.Coord, ok bool) {
	d := 2 * (a[0]*(b[1]-c[1]) + b[0]*(c[1]-a[1]) + c[0]*(a[1]-b[1]))
	if math.Abs(d) < 1e-12 {
		return geom.Coord{}, false
	}
	a2 := a[0]*a[0] + a[1]*a[1]
	b2 := b[0]*b[0] + b[1]*b[1]
	c2 := c[0]*c[0] + c[1]*c[1]
	ux := (a2*(b[1]-c[1]) + b2*(c[1]-a[1]) + c2*(a[1]-b[1])) / d
	uy := (a2*(c[0]-b[0]) + b2*(a[0]-c[0]) + c2*(b[0]-a[0])) / d
	return geom.Coord{ux, uy}, true
}

// SortAroundPoint orders points counter-clockwise by angle around center.
// The input slice is sorted in place and returned.
func SortAroundPoint(center geom.Coord, points []geom.Coord) []geom.Coord {
	sort.Slice(points, func(i, j int) bool {
		ai := math.Atan2(points[i][1]-center[1], points[i][0]-center[0])
		aj := math.Atan2(points[j][1]-center[1], points[j][0]-center[0])
		return ai < aj
	})
	return points
}
