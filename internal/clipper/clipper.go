// Package clipper intersects capped Voronoi cells with the operating
// boundary. Cells are convex, so each region ring is clipped against the
// cell with Sutherland-Hodgman; a multi-part region yields a multi-part
// face that stays with one facility.
package clipper

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sevamap/coverage-cli/internal/planar"
)

// minPartArea drops slivers produced by floating-point clipping, in m².
const minPartArea = 1e-4

// Clipper intersects convex cells with a clip region.
type Clipper struct {
	// PatchBufferM is the half-size of the square buffer unioned around a
	// facility whose clipped cell no longer contains it. Default 50.
	PatchBufferM float64
}

// Result is one clipped cell: zero or more polygon parts (outer ring
// first, then holes) all belonging to the same facility.
type Result struct {
	// Parts is empty when the cell lies entirely outside the region.
	Parts [][][]geom.Coord
	// Patched is true when a containment patch was applied around the seed.
	Patched bool
}

// Empty reports whether nothing of the cell survived clipping.
func (r *Result) Empty() bool { return len(r.Parts) == 0 }

// Area returns the total area of all parts, holes subtracted.
func (r *Result) Area() float64 {
	total := 0.0
	for _, rings := range r.Parts {
		total += planar.Area(rings[0])
		for _, hole := range rings[1:] {
			total -= planar.Area(hole)
		}
	}
	return total
}

// ClipCell intersects one capped convex cell with the region. The seed is
// the owning facility's planar position: if floating-point clipping drops
// it just outside the result, a minimal buffer around it (clipped to the
// region) is unioned in and a warning logged, so a facility is never left
// uncovered by its own cell.
func (c *Clipper) ClipCell(cell []geom.Coord, region *Region, seed geom.Coord) (*Result, error) {
	if len(cell) < 4 {
		return nil, eris.Errorf("clipper: cell ring has %d coords", len(cell))
	}
	if region == nil || len(region.Parts) == 0 {
		return nil, eris.New("clipper: empty region")
	}

	res := &Result{Parts: intersectConvex(cell, region)}

	if res.Empty() {
		// Facility entirely outside the clip region; caller records the
		// out-of-region note.
		return res, nil
	}

	if res.contains(seed, 1e-6) {
		return res, nil
	}

	// Containment patch: clip a small square around the seed to the
	// region and union it into the face.
	buf := c.PatchBufferM
	if buf <= 0 {
		buf = 50
	}
	patch := planar.CloseRing([]geom.Coord{
		{seed[0] - buf, seed[1] - buf},
		{seed[0] + buf, seed[1] - buf},
		{seed[0] + buf, seed[1] + buf},
		{seed[0] - buf, seed[1] + buf},
	})
	patched := intersectConvex(patch, region)
	if len(patched) == 0 {
		// Seed itself is outside the region; nothing to patch with.
		return res, nil
	}

	res.Parts = append(res.Parts, patched...)
	res.Patched = true
	zap.L().Warn("clipper: containment patch applied",
		zap.Float64("seed_x", seed[0]),
		zap.Float64("seed_y", seed[1]),
		zap.Float64("buffer_m", buf),
	)
	return res, nil
}

// Intersect clips every part of the region against a convex window ring
// and returns the surviving parts with their clipped holes. No patching.
func Intersect(window []geom.Coord, region *Region) [][][]geom.Coord {
	return intersectConvex(window, region)
}

// contains reports whether p is inside any part (boundary inclusive) and
// not strictly inside one of its holes.
func (r *Result) contains(p geom.Coord, tol float64) bool {
	for _, rings := range r.Parts {
		if !planar.PointInRing(p, rings[0]) && !planar.OnRing(p, rings[0], tol) {
			continue
		}
		inHole := false
		for _, hole := range rings[1:] {
			if planar.PointInRing(p, hole) && !planar.OnRing(p, hole, tol) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}

// intersectConvex clips every part of the region against a convex window
// ring, returning the surviving parts with their clipped holes.
func intersectConvex(window []geom.Coord, region *Region) [][][]geom.Coord {
	var parts [][][]geom.Coord
	wMinX, wMinY, wMaxX, wMaxY := planar.RingBounds(window)

	for _, rings := range region.Parts {
		minX, minY, maxX, maxY := planar.RingBounds(rings[0])
		if minX > wMaxX || maxX < wMinX || minY > wMaxY || maxY < wMinY {
			continue
		}

		outer := clipRing(rings[0], window)
		if planar.Area(outer) < minPartArea {
			continue
		}

		part := [][]geom.Coord{planar.CloseRing(outer)}
		for _, hole := range rings[1:] {
			clipped := clipRing(hole, window)
			if planar.Area(clipped) < minPartArea {
				continue
			}
			part = append(part, planar.CloseRing(clipped))
		}
		parts = append(parts, part)
	}
	return parts
}

// clipRing runs Sutherland-Hodgman, clipping the subject ring against a
// convex counter-clockwise window.
func clipRing(subject, window []geom.Coord) []geom.Coord {
	// Work with open rings.
	out := openRing(subject)

	win := openRing(window)
	for i := 0; i < len(win); i++ {
		if len(out) == 0 {
			return nil
		}
		a := win[i]
		b := win[(i+1)%len(win)]

		input := out
		out = nil
		for j := 0; j < len(input); j++ {
			cur := input[j]
			prev := input[(j+len(input)-1)%len(input)]

			curIn := inside(cur, a, b)
			prevIn := inside(prev, a, b)

			switch {
			case curIn && prevIn:
				out = append(out, cur)
			case curIn && !prevIn:
				out = append(out, segLineIntersect(prev, cur, a, b), cur)
			case !curIn && prevIn:
				out = append(out, segLineIntersect(prev, cur, a, b))
			}
		}
	}
	return out
}

func openRing(ring []geom.Coord) []geom.Coord {
	n := len(ring)
	if n > 1 && ring[0][0] == ring[n-1][0] && ring[0][1] == ring[n-1][1] {
		return ring[:n-1]
	}
	return ring
}

// inside reports whether p is on the interior side (left) of the directed
// window edge ab, boundary inclusive.
func inside(p, a, b geom.Coord) bool {
	return (b[0]-a[0])*(p[1]-a[1])-(b[1]-a[1])*(p[0]-a[0]) >= 0
}

// segLineIntersect returns the intersection of segment pq with the
// infinite line through ab.
func segLineIntersect(p, q, a, b geom.Coord) geom.Coord {
	dx, dy := q[0]-p[0], q[1]-p[1]
	ex, ey := b[0]-a[0], b[1]-a[1]

	denom := dx*ey - dy*ex
	if math.Abs(denom) < 1e-12 {
		return q
	}
	t := ((a[0]-p[0])*ey - (a[1]-p[1])*ex) / denom
	return geom.Coord{p[0] + t*dx, p[1] + t*dy}
}
