package analytics

import (
	"math"

	"github.com/twpayne/go-geom"

	"github.com/sevamap/coverage-cli/internal/clipper"
	"github.com/sevamap/coverage-cli/internal/planar"
)

// Circle is a planar circle in meters.
type Circle struct {
	Center  geom.Coord
	RadiusM float64
}

// MinEnclosingCircle returns the smallest circle containing all points,
// via Welzl's algorithm with an explicit support set. Deterministic for a
// given input order.
func MinEnclosingCircle(points []geom.Coord) Circle {
	if len(points) == 0 {
		return Circle{}
	}

	c := circleFrom1(points[0])
	for i := 1; i < len(points); i++ {
		if inCircle(c, points[i]) {
			continue
		}
		c = circleFrom1(points[i])
		for j := 0; j < i; j++ {
			if inCircle(c, points[j]) {
				continue
			}
			c = circleFrom2(points[i], points[j])
			for k := 0; k < j; k++ {
				if inCircle(c, points[k]) {
					continue
				}
				c = circleFrom3(points[i], points[j], points[k])
			}
		}
	}
	return c
}

func inCircle(c Circle, p geom.Coord) bool {
	return planar.Dist(c.Center, p) <= c.RadiusM*(1+1e-12)+1e-9
}

func circleFrom1(a geom.Coord) Circle {
	return Circle{Center: geom.Coord{a[0], a[1]}}
}

func circleFrom2(a, b geom.Coord) Circle {
	center := geom.Coord{(a[0] + b[0]) / 2, (a[1] + b[1]) / 2}
	return Circle{Center: center, RadiusM: planar.Dist(a, b) / 2}
}

func circleFrom3(a, b, c geom.Coord) Circle {
	center, ok := planar.Circumcenter(a, b, c)
	if !ok {
		// Collinear support: the widest pair spans the circle.
		best := circleFrom2(a, b)
		if alt := circleFrom2(a, c); alt.RadiusM > best.RadiusM {
			best = alt
		}
		if alt := circleFrom2(b, c); alt.RadiusM > best.RadiusM {
			best = alt
		}
		return best
	}
	return Circle{Center: center, RadiusM: planar.Dist(center, a)}
}

// LargestEmptyCircle returns the biggest circle centered inside the
// region that contains no facility. The true optimum center is either a
// Voronoi vertex or on the region boundary, so the search evaluates the
// supplied vertices plus boundary samples and keeps the best.
func LargestEmptyCircle(seeds []geom.Coord, voronoiVertices []geom.Coord, region *clipper.Region, sampleStep float64) Circle {
	if len(seeds) == 0 || region == nil {
		return Circle{}
	}

	best := Circle{RadiusM: -1}
	consider := func(p geom.Coord) {
		d := math.Inf(1)
		for _, s := range seeds {
			d = math.Min(d, planar.Dist(p, s))
		}
		if d > best.RadiusM {
			best = Circle{Center: geom.Coord{p[0], p[1]}, RadiusM: d}
		}
	}

	for _, v := range voronoiVertices {
		if region.Contains(v, 1e-6) {
			consider(v)
		}
	}
	for _, p := range region.SampleBoundary(sampleStep) {
		consider(p)
	}

	if best.RadiusM < 0 {
		return Circle{}
	}
	return best
}
