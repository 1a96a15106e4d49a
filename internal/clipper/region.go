package clipper

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sevamap/coverage-cli/internal/planar"
)

// Region is a planar clip region: one or more polygon parts, each an
// outer ring followed by zero or more hole rings. Parts may model
// enclaves and islands; rings are closed.
type Region struct {
	Parts [][][]geom.Coord
}

// NewRegion validates ring structure and returns a Region.
func NewRegion(parts [][][]geom.Coord) (*Region, error) {
	if len(parts) == 0 {
		return nil, eris.New("clipper: region has no parts")
	}
	for i, rings := range parts {
		if len(rings) == 0 {
			return nil, eris.Errorf("clipper: region part %d has no rings", i)
		}
		for j, ring := range rings {
			if len(ring) < 4 {
				return nil, eris.Errorf("clipper: region part %d ring %d has %d coords", i, j, len(ring))
			}
		}
	}
	return &Region{Parts: parts}, nil
}

// Bounds returns the bounding box of the region as (minX, minY, maxX, maxY).
func (r *Region) Bounds() [4]float64 {
	b := [4]float64{}
	first := true
	for _, rings := range r.Parts {
		minX, minY, maxX, maxY := planar.RingBounds(rings[0])
		if first {
			b = [4]float64{minX, minY, maxX, maxY}
			first = false
			continue
		}
		if minX < b[0] {
			b[0] = minX
		}
		if minY < b[1] {
			b[1] = minY
		}
		if maxX > b[2] {
			b[2] = maxX
		}
		if maxY > b[3] {
			b[3] = maxY
		}
	}
	return b
}

// Contains reports whether p lies inside the region or within tol of its
// boundary.
func (r *Region) Contains(p geom.Coord, tol float64) bool {
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

// Area returns the total region area: outer ring areas minus hole areas.
func (r *Region) Area() float64 {
	total := 0.0
	for _, rings := range r.Parts {
		total += planar.Area(rings[0])
		for _, hole := range rings[1:] {
			total -= planar.Area(hole)
		}
	}
	return total
}

// BoundaryVertices returns every vertex on the region's rings.
func (r *Region) BoundaryVertices() []geom.Coord {
	var out []geom.Coord
	for _, rings := range r.Parts {
		for _, ring := range rings {
			out = append(out, ring[:len(ring)-1]...)
		}
	}
	return out
}

// SampleBoundary returns points spaced at most step apart along every
// ring of the region, vertices included.
func (r *Region) SampleBoundary(step float64) []geom.Coord {
	if step <= 0 {
		return r.BoundaryVertices()
	}
	var out []geom.Coord
	for _, rings := range r.Parts {
		for _, ring := range rings {
			for i := 0; i < len(ring)-1; i++ {
				a, b := ring[i], ring[i+1]
				out = append(out, a)
				d := planar.Dist(a, b)
				for n := 1; float64(n)*step < d; n++ {
					t := float64(n) * step / d
					out = append(out, geom.Coord{
						a[0] + t*(b[0]-a[0]),
						a[1] + t*(b[1]-a[1]),
					})
				}
			}
		}
	}
	return out
}
