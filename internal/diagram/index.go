package diagram

import (
	"container/heap"
	"math"
	"sort"

	"github.com/twpayne/go-geom"

	"github.com/sevamap/coverage-cli/internal/planar"
)

// maxNodeEntries is the R-tree node capacity used by the STR packer.
const maxNodeEntries = 8

// IndexOptions tunes query behavior. Zero values take defaults.
type IndexOptions struct {
	// AdaptiveKRatio is the k-th/1st distance ratio beyond which a
	// k-nearest query escalates to a larger window. Default 3.5.
	AdaptiveKRatio float64
	// AdaptiveKMax bounds the escalated window size. Default 64.
	AdaptiveKMax int
	// AdjacencyMinLen is the minimum shared boundary length in meters for
	// two faces to count as adjacent; single-point contact is never
	// adjacency. Default 1.
	AdjacencyMinLen float64
	// BoundaryTol is the boundary-inclusion tolerance for containment
	// tests, in meters. Default 1e-6.
	BoundaryTol float64
}

func (o IndexOptions) withDefaults() IndexOptions {
	if o.AdaptiveKRatio <= 0 {
		o.AdaptiveKRatio = 3.5
	}
	if o.AdaptiveKMax <= 0 {
		o.AdaptiveKMax = 64
	}
	if o.AdjacencyMinLen <= 0 {
		o.AdjacencyMinLen = 1
	}
	if o.BoundaryTol <= 0 {
		o.BoundaryTol = 1e-6
	}
	return o
}

// Index is an immutable STR-packed R-tree over face bounding boxes. All
// queries pre-filter by box and verify exact geometry per candidate. A
// recompute builds a new index; an existing index is never mutated.
type Index struct {
	opts  IndexOptions
	root  *treeNode
	faces []*Face

	// byID and byPopulation are precomputed at build; the index never
	// changes afterwards.
	byID         map[int]*Face
	byPopulation []*Face
}

type indexEntry struct {
	bounds [4]float64
	face   *Face
	// child carries the subtree through parent-level tiling so each
	// parent's bounds cover exactly the nodes attached to it.
	child *treeNode
}

type treeNode struct {
	bounds   [4]float64
	children []*treeNode
	entries  []indexEntry
}

// BuildIndex bulk-loads the index and derives face adjacency.
func BuildIndex(faces []*Face, opts IndexOptions) *Index {
	idx := &Index{
		opts:         opts.withDefaults(),
		faces:        faces,
		byID:         make(map[int]*Face, len(faces)),
		byPopulation: make([]*Face, len(faces)),
	}
	copy(idx.byPopulation, faces)
	sort.Slice(idx.byPopulation, func(i, j int) bool {
		a, b := idx.byPopulation[i], idx.byPopulation[j]
		if a.Population != b.Population {
			return a.Population > b.Population
		}
		return a.ID < b.ID
	})
	for _, f := range faces {
		idx.byID[f.ID] = f
	}

	entries := make([]indexEntry, 0, len(faces))
	for _, f := range faces {
		if len(f.Parts) == 0 {
			continue
		}
		entries = append(entries, indexEntry{bounds: f.Bounds(), face: f})
	}
	idx.root = packSTR(entries)
	idx.deriveAdjacency()
	return idx
}

// packSTR packs entries into leaves with sort-tile-recursive tiling, then
// stacks parent levels until one root remains.
func packSTR(entries []indexEntry) *treeNode {
	if len(entries) == 0 {
		return &treeNode{}
	}

	leaves := tile(entries)
	for len(leaves) > 1 {
		parentEntries := make([]indexEntry, len(leaves))
		for i, n := range leaves {
			parentEntries[i] = indexEntry{bounds: n.bounds, child: n}
		}
		parents := tile(parentEntries)
		for _, p := range parents {
			p.children = make([]*treeNode, len(p.entries))
			for j, e := range p.entries {
				p.children[j] = e.child
			}
			p.entries = nil
		}
		leaves = parents
	}
	return leaves[0]
}

// tile slices entries into vertical strips by center x, sorts each strip
// by center y, and cuts nodes of at most maxNodeEntries.
func tile(entries []indexEntry) []*treeNode {
	sorted := make([]indexEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].bounds[0]+sorted[i].bounds[2] < sorted[j].bounds[0]+sorted[j].bounds[2]
	})

	leafCount := (len(sorted) + maxNodeEntries - 1) / maxNodeEntries
	sliceCount := int(math.Ceil(math.Sqrt(float64(leafCount))))
	sliceSize := sliceCount * maxNodeEntries

	var nodes []*treeNode
	for start := 0; start < len(sorted); start += sliceSize {
		end := start + sliceSize
		if end > len(sorted) {
			end = len(sorted)
		}
		strip := sorted[start:end]
		sort.Slice(strip, func(i, j int) bool {
			return strip[i].bounds[1]+strip[i].bounds[3] < strip[j].bounds[1]+strip[j].bounds[3]
		})
		for s := 0; s < len(strip); s += maxNodeEntries {
			e := s + maxNodeEntries
			if e > len(strip) {
				e = len(strip)
			}
			n := &treeNode{entries: append([]indexEntry(nil), strip[s:e]...)}
			n.bounds = strip[s].bounds
			for _, en := range strip[s+1 : e] {
				n.bounds = unionBounds(n.bounds, en.bounds)
			}
			nodes = append(nodes, n)
		}
	}
	return nodes
}

func unionBounds(a, b [4]float64) [4]float64 {
	return [4]float64{
		math.Min(a[0], b[0]),
		math.Min(a[1], b[1]),
		math.Max(a[2], b[2]),
		math.Max(a[3], b[3]),
	}
}

func boundsOverlap(a, b [4]float64) bool {
	return a[0] <= b[2] && b[0] <= a[2] && a[1] <= b[3] && b[1] <= a[3]
}

// search returns every face whose bounding box intersects b.
func (idx *Index) search(b [4]float64) []*Face {
	var out []*Face
	var walk func(n *treeNode)
	walk = func(n *treeNode) {
		if n == nil || (len(n.children) == 0 && len(n.entries) == 0) {
			return
		}
		if !boundsOverlap(n.bounds, b) {
			return
		}
		for _, c := range n.children {
			walk(c)
		}
		for _, e := range n.entries {
			if boundsOverlap(e.bounds, b) {
				out = append(out, e.face)
			}
		}
	}
	walk(idx.root)
	return out
}

// deriveAdjacency fills Face.Adjacent for faces sharing a boundary
// segment of at least AdjacencyMinLen. Symmetric by construction.
func (idx *Index) deriveAdjacency() {
	tol := idx.opts.AdjacencyMinLen / 10
	if tol <= 0 {
		tol = 0.1
	}
	for _, f := range idx.faces {
		if len(f.Parts) == 0 {
			continue
		}
		b := f.Bounds()
		pad := idx.opts.AdjacencyMinLen
		b = [4]float64{b[0] - pad, b[1] - pad, b[2] + pad, b[3] + pad}

		for _, other := range idx.search(b) {
			if other.ID <= f.ID {
				continue
			}
			if sharedLength(f, other, tol) >= idx.opts.AdjacencyMinLen {
				f.Adjacent = append(f.Adjacent, other.ID)
				other.Adjacent = append(other.Adjacent, f.ID)
			}
		}
	}
	for _, f := range idx.faces {
		sort.Ints(f.Adjacent)
	}
}

// sharedLength totals coincident boundary length across all ring pairs of
// two faces.
func sharedLength(a, b *Face, tol float64) float64 {
	total := 0.0
	for _, ar := range a.Parts {
		for _, aring := range ar {
			for _, br := range b.Parts {
				for _, bring := range br {
					total += planar.SharedSegmentLength(aring, bring, tol)
				}
			}
		}
	}
	return total
}

// PointQuery returns the face containing the planar point. Ties on a
// shared edge resolve to the smallest-area face. ok is false when the
// point is outside every face; that is a normal outcome, not an error.
func (idx *Index) PointQuery(p geom.Coord) (*Face, bool) {
	var best *Face
	for _, f := range idx.search([4]float64{p[0], p[1], p[0], p[1]}) {
		if !f.Contains(p, idx.opts.BoundaryTol) {
			continue
		}
		if best == nil || f.PlanarArea() < best.PlanarArea() {
			best = f
		}
	}
	return best, best != nil
}

// RangeQuery returns all faces whose polygons intersect the planar box.
func (idx *Index) RangeQuery(b [4]float64) []*Face {
	var out []*Face
	for _, f := range idx.search(b) {
		if faceIntersectsBox(f, b, idx.opts.BoundaryTol) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func faceIntersectsBox(f *Face, b [4]float64, tol float64) bool {
	box := []geom.Coord{
		{b[0], b[1]}, {b[2], b[1]}, {b[2], b[3]}, {b[0], b[3]}, {b[0], b[1]},
	}
	// A box corner inside the face, or a face vertex inside the box,
	// or any edge crossing.
	for _, c := range box[:4] {
		if f.Contains(c, tol) {
			return true
		}
	}
	for _, rings := range f.Parts {
		for _, v := range rings[0] {
			if v[0] >= b[0] && v[0] <= b[2] && v[1] >= b[1] && v[1] <= b[3] {
				return true
			}
		}
		for i := 0; i < len(rings[0])-1; i++ {
			for j := 0; j < 4; j++ {
				if planar.SegmentsIntersect(rings[0][i], rings[0][i+1], box[j], box[j+1]) {
					return true
				}
			}
		}
	}
	return false
}

// nnItem is one entry of the best-first traversal queue: either a tree
// node keyed by bounding-box distance or a face keyed by exact seed
// distance. The box distance lower-bounds the seed distance of every
// face below the node, so popped faces come out in seed-distance order.
type nnItem struct {
	dist float64
	face *Face
	node *treeNode
}

type nnQueue []nnItem

func (q nnQueue) Len() int { return len(q) }
func (q nnQueue) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	// Nodes first: a node at the same distance may hide a smaller id.
	if (q[i].node != nil) != (q[j].node != nil) {
		return q[i].node != nil
	}
	if q[i].face != nil && q[j].face != nil {
		return q[i].face.ID < q[j].face.ID
	}
	return false
}
func (q nnQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *nnQueue) Push(x any)   { *q = append(*q, x.(nnItem)) }
func (q *nnQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}

// boxDist returns the distance from p to the nearest point of the box.
func boxDist(p geom.Coord, b [4]float64) float64 {
	dx := math.Max(math.Max(b[0]-p[0], 0), p[0]-b[2])
	dy := math.Max(math.Max(b[1]-p[1], 0), p[1]-b[3])
	return math.Hypot(dx, dy)
}

// KNearest ranks faces by planar distance from the point to the owning
// facility's position, via best-first tree traversal. This is a cheap
// pre-filter for costlier downstream refinement: when the k-th/1st
// distance ratio exceeds the distortion threshold the window doubles, up
// to AdaptiveKMax, since the true nearest under a non-Euclidean metric
// may lie beyond the current window.
func (idx *Index) KNearest(p geom.Coord, k int) []*Face {
	if k <= 0 || len(idx.faces) == 0 {
		return nil
	}

	maxK := idx.opts.AdaptiveKMax
	if maxK > len(idx.faces) {
		maxK = len(idx.faces)
	}
	window := k
	if window > maxK {
		window = maxK
	}

	pq := &nnQueue{{dist: boxDist(p, idx.root.bounds), node: idx.root}}
	heap.Init(pq)

	var (
		out   []*Face
		first float64
	)
	for pq.Len() > 0 {
		it := heap.Pop(pq).(nnItem)
		if it.node != nil {
			for _, c := range it.node.children {
				heap.Push(pq, nnItem{dist: boxDist(p, c.bounds), node: c})
			}
			for _, e := range it.node.entries {
				if e.face != nil {
					heap.Push(pq, nnItem{dist: planar.Dist(p, e.face.Seed), face: e.face})
				}
			}
			continue
		}

		out = append(out, it.face)
		if len(out) == 1 {
			first = it.dist
		}
		if len(out) < window {
			continue
		}
		if len(out) >= maxK || first <= 0 || it.dist/first <= idx.opts.AdaptiveKRatio {
			break
		}
		window *= 2
		if window > maxK {
			window = maxK
		}
	}
	return out
}

// TopByPopulation returns up to n faces by descending population.
func (idx *Index) TopByPopulation(n int) []*Face {
	if n <= 0 {
		return nil
	}
	if n > len(idx.byPopulation) {
		n = len(idx.byPopulation)
	}
	out := make([]*Face, n)
	copy(out, idx.byPopulation[:n])
	return out
}

// Adjacent returns the faces sharing a boundary segment with the given
// face id, or nil for an unknown id.
func (idx *Index) Adjacent(faceID int) []*Face {
	target, ok := idx.byID[faceID]
	if !ok {
		return nil
	}
	out := make([]*Face, 0, len(target.Adjacent))
	for _, id := range target.Adjacent {
		if f, ok := idx.byID[id]; ok {
			out = append(out, f)
		}
	}
	return out
}
