// Package voronoi builds planar Voronoi diagrams from facility seeds.
// Cells are derived from a Bowyer-Watson Delaunay triangulation: each
// seed's cell is the convex hull of the circumcenters of its incident
// triangles, with unbounded cells capped by extending hull-edge bisector
// rays well past the eventual clip region.
package voronoi

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sevamap/coverage-cli/internal/planar"
)

// Validation errors surfaced before any geometry work begins.
var (
	// ErrInsufficientSeeds is returned for fewer than three seeds.
	ErrInsufficientSeeds = eris.New("voronoi: need at least 3 seeds")
	// ErrCollinearInput is returned when all seeds lie on one line and no
	// two-dimensional diagram exists.
	ErrCollinearInput = eris.New("voronoi: all seeds are collinear")
	// ErrDegenerateInput is returned when two seeds coincide within the
	// dedupe epsilon; callers must deduplicate or perturb upstream.
	ErrDegenerateInput = eris.New("voronoi: coincident seeds")
)

// Builder constructs Voronoi diagrams. Zero-value tolerances are replaced
// with defaults at build time.
type Builder struct {
	// RaySafetyFactor scales the unbounded-edge extension length relative
	// to the distance from the seed hull centroid to the farthest corner
	// of the clip extent. Must comfortably exceed 1 or clipping silently
	// truncates hull cells. Default 10.
	RaySafetyFactor float64

	// DedupeEpsilon is the minimum seed separation in meters. Default 1.
	DedupeEpsilon float64
}

// Diagram is the raw planar Voronoi output: one capped convex cell per
// seed, in seed order, plus the finite Voronoi vertices and Delaunay
// neighbor sets used by analytics and adjacency derivation.
type Diagram struct {
	// Cells holds one closed counter-clockwise convex ring per seed.
	Cells [][]geom.Coord
	// Vertices are the distinct finite Voronoi vertices (triangle
	// circumcenters), junctions of three or more cell boundaries.
	Vertices []geom.Coord
	// Neighbors maps each seed index to the seed indices it shares a
	// Delaunay edge with.
	Neighbors [][]int
}

type triangle struct {
	a, b, c int
	cc      geom.Coord
	r2      float64
}

func (t triangle) has(v int) bool { return t.a == v || t.b == v || t.c == v }

type edge struct{ u, v int }

func mkEdge(u, v int) edge {
	if u > v {
		u, v = v, u
	}
	return edge{u, v}
}

// Build computes the capped Voronoi diagram for the given planar seeds.
// clipBounds is the bounding box (minX, minY, maxX, maxY) of the clip
// region the cells will later be intersected with; it only controls the
// ray extension length, not any clipping here.
func (b *Builder) Build(seeds []geom.Coord, clipBounds [4]float64) (*Diagram, error) {
	safety := b.RaySafetyFactor
	if safety <= 0 {
		safety = 10
	}
	eps := b.DedupeEpsilon
	if eps <= 0 {
		eps = 1
	}

	if err := validate(seeds, eps); err != nil {
		return nil, err
	}

	rayLen := rayLength(seeds, clipBounds, safety)

	tris, err := delaunay(seeds, rayLen)
	if err != nil {
		return nil, err
	}

	return buildCells(seeds, tris, rayLen)
}

func validate(seeds []geom.Coord, eps float64) error {
	if len(seeds) < 3 {
		return eris.Wrapf(ErrInsufficientSeeds, "got %d", len(seeds))
	}
	eps2 := eps * eps
	for i := 0; i < len(seeds); i++ {
		for j := i + 1; j < len(seeds); j++ {
			if planar.DistSq(seeds[i], seeds[j]) < eps2 {
				return eris.Wrapf(ErrDegenerateInput, "seeds %d and %d within %.2fm", i, j, eps)
			}
		}
	}
	if planar.Collinear(seeds, eps) {
		return eris.Wrapf(ErrCollinearInput, "%d seeds", len(seeds))
	}
	return nil
}

// rayLength returns the capped-ray extension: the safety factor times the
// distance from the seed hull centroid to the farthest clip corner, with
// the seed extent itself as a floor.
func rayLength(seeds []geom.Coord, clip [4]float64, safety float64) float64 {
	minX, minY, maxX, maxY := planar.RingBounds(seeds)
	centroid := geom.Coord{(minX + maxX) / 2, (minY + maxY) / 2}

	far := 0.0
	for _, corner := range []geom.Coord{
		{clip[0], clip[1]}, {clip[2], clip[1]}, {clip[2], clip[3]}, {clip[0], clip[3]},
	} {
		if d := planar.Dist(centroid, corner); d > far {
			far = d
		}
	}
	extent := math.Hypot(maxX-minX, maxY-minY)
	if extent > far {
		far = extent
	}
	if far == 0 {
		far = 1
	}
	return safety * far
}

// delaunay runs Bowyer-Watson insertion inside a super triangle sized from
// the ray length so super-vertex artifacts stay far outside the capping
// distance.
func delaunay(seeds []geom.Coord, rayLen float64) ([]triangle, error) {
	n := len(seeds)
	minX, minY, maxX, maxY := planar.RingBounds(seeds)
	cx := (minX + maxX) / 2
	cy := (minY + maxY) / 2
	m := 40 * rayLen

	pts := make([]geom.Coord, n, n+3)
	copy(pts, seeds)
	pts = append(pts,
		geom.Coord{cx - 2*m, cy - m},
		geom.Coord{cx + 2*m, cy - m},
		geom.Coord{cx, cy + 2*m},
	)
	super0, super1, super2 := n, n+1, n+2

	first, err := newTriangle(pts, super0, super1, super2)
	if err != nil {
		return nil, err
	}
	tris := []triangle{first}

	for i := 0; i < n; i++ {
		p := pts[i]

		// Triangles whose circumcircle contains the new point are removed.
		var bad []triangle
		var keep []triangle
		for _, t := range tris {
			if planar.DistSq(p, t.cc) <= t.r2*(1+1e-12) {
				bad = append(bad, t)
			} else {
				keep = append(keep, t)
			}
		}

		// The cavity boundary is every edge that appears in exactly one
		// removed triangle.
		edgeCount := map[edge]int{}
		for _, t := range bad {
			edgeCount[mkEdge(t.a, t.b)]++
			edgeCount[mkEdge(t.b, t.c)]++
			edgeCount[mkEdge(t.c, t.a)]++
		}

		tris = keep
		for e, count := range edgeCount {
			if count != 1 {
				continue
			}
			nt, err := newTriangle(pts, e.u, e.v, i)
			if err != nil {
				// Sliver cavity edge; skip rather than abort, matching the
				// tolerance-driven handling elsewhere in the pipeline.
				zap.L().Debug("voronoi: skipping degenerate cavity triangle",
					zap.Int("seed", i), zap.Error(err))
				continue
			}
			tris = append(tris, nt)
		}
	}

	// Drop triangles that use a super vertex.
	interior := tris[:0]
	for _, t := range tris {
		if t.has(super0) || t.has(super1) || t.has(super2) {
			continue
		}
		interior = append(interior, t)
	}
	if len(interior) == 0 {
		return nil, eris.Wrap(ErrCollinearInput, "triangulation produced no interior triangles")
	}
	return interior, nil
}

func newTriangle(pts []geom.Coord, a, b, c int) (triangle, error) {
	cc, ok := planar.Circumcenter(pts[a], pts[b], pts[c])
	if !ok {
		return triangle{}, eris.Errorf("voronoi: degenerate triangle (%d, %d, %d)", a, b, c)
	}
	return triangle{a: a, b: b, c: c, cc: cc, r2: planar.DistSq(cc, pts[a])}, nil
}

// buildCells derives one convex cell per seed from the triangulation.
func buildCells(seeds []geom.Coord, tris []triangle, rayLen float64) (*Diagram, error) {
	n := len(seeds)

	incident := make([][]geom.Coord, n)
	neighborSet := make([]map[int]bool, n)
	for i := range neighborSet {
		neighborSet[i] = map[int]bool{}
	}

	// Edge -> triangles sharing it; hull edges belong to exactly one.
	edgeTris := map[edge][]triangle{}
	for _, t := range tris {
		for _, v := range []int{t.a, t.b, t.c} {
			incident[v] = append(incident[v], t.cc)
		}
		neighborSet[t.a][t.b] = true
		neighborSet[t.a][t.c] = true
		neighborSet[t.b][t.a] = true
		neighborSet[t.b][t.c] = true
		neighborSet[t.c][t.a] = true
		neighborSet[t.c][t.b] = true
		for _, e := range []edge{mkEdge(t.a, t.b), mkEdge(t.b, t.c), mkEdge(t.c, t.a)} {
			edgeTris[e] = append(edgeTris[e], t)
		}
	}

	// Seeds centroid orients the outward ray direction for hull edges.
	var sx, sy float64
	for _, s := range seeds {
		sx += s[0]
		sy += s[1]
	}
	center := geom.Coord{sx / float64(n), sy / float64(n)}

	for e, owners := range edgeTris {
		if len(owners) != 1 {
			continue
		}
		// Unbounded Voronoi edge: extend from the lone triangle's
		// circumcenter along the seed-pair bisector, away from the center.
		t := owners[0]
		si, sj := seeds[e.u], seeds[e.v]
		dx := sj[0] - si[0]
		dy := sj[1] - si[1]
		l := math.Hypot(dx, dy)
		if l == 0 {
			continue
		}
		nx, ny := -dy/l, dx/l
		mid := geom.Coord{(si[0] + sj[0]) / 2, (si[1] + sj[1]) / 2}
		if (mid[0]-center[0])*nx+(mid[1]-center[1])*ny < 0 {
			nx, ny = -nx, -ny
		}
		far := geom.Coord{t.cc[0] + nx*rayLen, t.cc[1] + ny*rayLen}
		incident[e.u] = append(incident[e.u], far)
		incident[e.v] = append(incident[e.v], far)
	}

	d := &Diagram{
		Cells:     make([][]geom.Coord, n),
		Neighbors: make([][]int, n),
	}

	for i := 0; i < n; i++ {
		if len(incident[i]) < 3 {
			return nil, eris.Errorf("voronoi: seed %d has no cell vertices", i)
		}
		hull := planar.ConvexHull(incident[i])
		if len(hull) < 3 {
			return nil, eris.Errorf("voronoi: degenerate cell for seed %d", i)
		}
		d.Cells[i] = planar.CloseRing(hull)

		for j := range neighborSet[i] {
			d.Neighbors[i] = append(d.Neighbors[i], j)
		}
		sort.Ints(d.Neighbors[i])
	}

	d.Vertices = dedupeVertices(tris)
	return d, nil
}

// dedupeVertices collapses circumcenters that coincide within a small
// tolerance; junctions of 3+ cells produce one shared vertex.
func dedupeVertices(tris []triangle) []geom.Coord {
	const tol = 1e-6
	var out []geom.Coord
	for _, t := range tris {
		dup := false
		for _, v := range out {
			if planar.DistSq(v, t.cc) < tol*tol {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, t.cc)
		}
	}
	return out
}
