package planar

import (
	"math"

	"github.com/twpayne/go-geom"
)

// TriangulateRing splits a simple ring into triangles by ear clipping.
// Accepts open or closed rings in either winding and returns closed
// counter-clockwise triangle rings covering the same area. Rings with
// fewer than three distinct vertices yield nil.
func TriangulateRing(ring []geom.Coord) [][]geom.Coord {
	n := len(ring)
	if n > 1 && ring[0][0] == ring[n-1][0] && ring[0][1] == ring[n-1][1] {
		n--
	}
	if n < 3 {
		return nil
	}
	pts := make([]geom.Coord, n)
	copy(pts, ring[:n])
	if SignedArea(pts) < 0 {
		for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
			pts[i], pts[j] = pts[j], pts[i]
		}
	}

	idxs := make([]int, len(pts))
	for i := range idxs {
		idxs[i] = i
	}

	var tris [][]geom.Coord
	for len(idxs) > 3 {
		clipped := false
		for i := range idxs {
			a := pts[idxs[(i+len(idxs)-1)%len(idxs)]]
			b := pts[idxs[i]]
			c := pts[idxs[(i+1)%len(idxs)]]
			if cross(a, b, c) <= 0 || earBlocked(pts, idxs, i, a, b, c) {
				continue
			}
			tris = append(tris, []geom.Coord{a, b, c, a})
			idxs = append(idxs[:i], idxs[i+1:]...)
			clipped = true
			break
		}
		if !clipped {
			// No ear means a degenerate remainder (collinear runs or
			// duplicate vertices); dropping the flattest vertex makes
			// progress without losing area.
			f := flattestVertex(pts, idxs)
			idxs = append(idxs[:f], idxs[f+1:]...)
		}
	}

	a, b, c := pts[idxs[0]], pts[idxs[1]], pts[idxs[2]]
	if cross(a, b, c) > 0 {
		tris = append(tris, []geom.Coord{a, b, c, a})
	}
	return tris
}

// earBlocked reports whether any remaining vertex lies strictly inside
// the candidate ear abc.
func earBlocked(pts []geom.Coord, idxs []int, ear int, a, b, c geom.Coord) bool {
	prev := (ear + len(idxs) - 1) % len(idxs)
	next := (ear + 1) % len(idxs)
	for i, id := range idxs {
		if i == ear || i == prev || i == next {
			continue
		}
		p := pts[id]
		if cross(a, b, p) > 0 && cross(b, c, p) > 0 && cross(c, a, p) > 0 {
			return true
		}
	}
	return false
}

func flattestVertex(pts []geom.Coord, idxs []int) int {
	best, bestAbs := 0, math.Inf(1)
	for i := range idxs {
		a := pts[idxs[(i+len(idxs)-1)%len(idxs)]]
		b := pts[idxs[i]]
		c := pts[idxs[(i+1)%len(idxs)]]
		if v := math.Abs(cross(a, b, c)); v < bestAbs {
			best, bestAbs = i, v
		}
	}
	return best
}
