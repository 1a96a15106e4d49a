package diagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sevamap/coverage-cli/internal/geodesy"
)

func boxFace(id int, minX, minY, maxX, maxY, pop float64) *Face {
	ring := []geom.Coord{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}
	return &Face{
		ID:         id,
		FacilityID: "f" + string(rune('a'+id)),
		Seed:       geom.Coord{(minX + maxX) / 2, (minY + maxY) / 2},
		Parts:      [][][]geom.Coord{{ring}},
		Population: pop,
	}
}

func TestBuildIndexAdjacency(t *testing.T) {
	left := boxFace(0, 0, 0, 10, 10, 0)
	right := boxFace(1, 10, 0, 20, 10, 0)
	corner := boxFace(2, 20, 10, 30, 20, 0)
	far := boxFace(3, 100, 100, 110, 110, 0)

	BuildIndex([]*Face{left, right, corner, far}, IndexOptions{AdjacencyMinLen: 1})

	assert.Equal(t, []int{1}, left.Adjacent)
	assert.Equal(t, []int{0}, right.Adjacent)
	// Point contact at (20, 10) is not adjacency.
	assert.Empty(t, corner.Adjacent)
	assert.Empty(t, far.Adjacent)
}

func TestPointQuery(t *testing.T) {
	faces := []*Face{
		boxFace(0, 0, 0, 10, 10, 0),
		boxFace(1, 10, 0, 15, 10, 0),
	}
	idx := BuildIndex(faces, IndexOptions{})

	f, ok := idx.PointQuery(geom.Coord{5, 5})
	require.True(t, ok)
	assert.Equal(t, 0, f.ID)

	// A point on the shared edge belongs to exactly one face; ties break
	// toward the smaller area.
	f, ok = idx.PointQuery(geom.Coord{10, 5})
	require.True(t, ok)
	assert.Equal(t, 1, f.ID)

	// Outside everything is a miss, not an error.
	_, ok = idx.PointQuery(geom.Coord{500, 500})
	assert.False(t, ok)
}

func TestRangeQuery(t *testing.T) {
	faces := []*Face{
		boxFace(0, 0, 0, 10, 10, 0),
		boxFace(1, 20, 0, 30, 10, 0),
		boxFace(2, 100, 100, 110, 110, 0),
	}
	idx := BuildIndex(faces, IndexOptions{})

	got := idx.RangeQuery([4]float64{5, 5, 25, 8})
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].ID)
	assert.Equal(t, 1, got[1].ID)

	// A box entirely inside one face still hits it.
	got = idx.RangeQuery([4]float64{103, 103, 104, 104})
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].ID)

	assert.Empty(t, idx.RangeQuery([4]float64{50, 50, 60, 60}))
}

func TestKNearest(t *testing.T) {
	faces := []*Face{
		boxFace(0, -5, -5, 5, 5, 0),      // seed (0,0)
		boxFace(1, 15, -5, 25, 5, 0),     // seed (20,0)
		boxFace(2, 35, -5, 45, 5, 0),     // seed (40,0)
		boxFace(3, 55, -5, 65, 5, 0),     // seed (60,0)
	}
	idx := BuildIndex(faces, IndexOptions{})

	got := idx.KNearest(geom.Coord{9, 0}, 2)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].ID)
	assert.Equal(t, 1, got[1].ID)

	assert.Nil(t, idx.KNearest(geom.Coord{0, 0}, 0))

	// k larger than the face count returns everything.
	assert.Len(t, idx.KNearest(geom.Coord{0, 0}, 10), 4)
}

func TestKNearestAdaptiveWidening(t *testing.T) {
	faces := []*Face{
		boxFace(0, -1, -1, 1, 1, 0),          // seed (0,0), d=1 from query
		boxFace(1, 999, -1, 1001, 1, 0),      // seed (1000,0), far
		boxFace(2, 1999, -1, 2001, 1, 0),     // seed (2000,0)
		boxFace(3, 2999, -1, 3001, 1, 0),     // seed (3000,0)
	}
	idx := BuildIndex(faces, IndexOptions{AdaptiveKRatio: 3.5, AdaptiveKMax: 64})

	// The 2nd-nearest is ~1000x farther than the 1st, so a k=2 request
	// widens to cover candidates the planar metric may be misranking.
	got := idx.KNearest(geom.Coord{1, 0}, 2)
	assert.Len(t, got, 4)

	// With an even spread no widening happens.
	even := []*Face{
		boxFace(0, -1, -1, 1, 1, 0),
		boxFace(1, 9, -1, 11, 1, 0),
		boxFace(2, 19, -1, 21, 1, 0),
		boxFace(3, 29, -1, 31, 1, 0),
	}
	idx = BuildIndex(even, IndexOptions{AdaptiveKRatio: 3.5})
	assert.Len(t, idx.KNearest(geom.Coord{5, 0}, 2), 2)
}

func TestTopByPopulation(t *testing.T) {
	faces := []*Face{
		boxFace(0, 0, 0, 10, 10, 500),
		boxFace(1, 20, 0, 30, 10, 2000),
		boxFace(2, 40, 0, 50, 10, 2000),
		boxFace(3, 60, 0, 70, 10, 100),
	}
	idx := BuildIndex(faces, IndexOptions{})

	got := idx.TopByPopulation(3)
	require.Len(t, got, 3)
	// Equal populations break ties by id.
	assert.Equal(t, []int{1, 2, 0}, []int{got[0].ID, got[1].ID, got[2].ID})

	assert.Len(t, idx.TopByPopulation(100), 4)
	assert.Nil(t, idx.TopByPopulation(0))
}

func TestIndexAdjacentLookup(t *testing.T) {
	left := boxFace(0, 0, 0, 10, 10, 0)
	mid := boxFace(1, 10, 0, 20, 10, 0)
	right := boxFace(2, 20, 0, 30, 10, 0)
	idx := BuildIndex([]*Face{left, mid, right}, IndexOptions{})

	got := idx.Adjacent(1)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].ID)
	assert.Equal(t, 2, got[1].ID)

	assert.Nil(t, idx.Adjacent(99))
}

func TestIndexMultiLevelTree(t *testing.T) {
	// A 10x10 grid forces three tree levels at 8 entries per node, so
	// every query has to descend through stacked parents whose bounds
	// must cover exactly the children attached to them.
	const n = 10
	var faces []*Face
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			x, y := float64(i)*100, float64(j)*100
			faces = append(faces, boxFace(j*n+i, x, y, x+100, y+100, float64(j*n+i)))
		}
	}
	idx := BuildIndex(faces, IndexOptions{})

	for _, f := range faces {
		got, ok := idx.PointQuery(geom.Coord{f.Seed[0], f.Seed[1]})
		require.True(t, ok, "center of face %d", f.ID)
		assert.Equal(t, f.ID, got.ID)
	}

	got := idx.RangeQuery([4]float64{420, 420, 580, 580})
	require.Len(t, got, 4)
	assert.Equal(t, []int{44, 45, 54, 55}, []int{got[0].ID, got[1].ID, got[2].ID, got[3].ID})

	// Interior faces have exactly four edge neighbors; corner contact
	// does not count.
	adj := idx.Adjacent(44)
	ids := make([]int, len(adj))
	for i, f := range adj {
		ids[i] = f.ID
	}
	assert.Equal(t, []int{34, 43, 45, 54}, ids)

	// The shared corner of four faces is equidistant to all of them.
	near := idx.KNearest(geom.Coord{500, 500}, 4)
	require.Len(t, near, 4)
	assert.Equal(t, []int{44, 45, 54, 55}, []int{near[0].ID, near[1].ID, near[2].ID, near[3].ID})

	top := idx.TopByPopulation(2)
	require.Len(t, top, 2)
	assert.Equal(t, 99, top[0].ID)
	assert.Equal(t, 98, top[1].ID)
}

func TestDiagramGeographicQueries(t *testing.T) {
	proj, err := geodesy.NewProjector(77.59, 12.97)
	require.NoError(t, err)

	// Two side-by-side planar faces centered on the projection origin.
	faces := []*Face{
		boxFace(0, -10000, -10000, 0, 10000, 800),
		boxFace(1, 0, -10000, 10000, 10000, 300),
	}
	d := NewDiagram("test", faces, nil, proj, IndexOptions{})

	// The projection center maps to the planar origin, on the shared edge.
	f, ok := d.PointQuery(77.59, 12.97)
	require.True(t, ok)
	assert.NotNil(t, f)

	// A point west of the center lands in the left face.
	f, ok = d.PointQuery(77.54, 12.97)
	require.True(t, ok)
	assert.Equal(t, 0, f.ID)

	_, ok = d.PointQuery(80.0, 15.0)
	assert.False(t, ok)

	got := d.RangeQuery(77.55, 12.95, 77.63, 12.99)
	assert.Len(t, got, 2)

	near := d.KNearest(77.54, 12.97, 1)
	require.NotEmpty(t, near)
	assert.Equal(t, 0, near[0].ID)

	top := d.TopByPopulation(1)
	require.Len(t, top, 1)
	assert.Equal(t, 0, top[0].ID)

	assert.Equal(t, faces[1], d.Face(1))
	assert.Nil(t, d.Face(42))
}

func TestDiagramSummarize(t *testing.T) {
	faces := []*Face{
		{ID: 0, Population: 100, AreaKM2: 2.5, Parts: [][][]geom.Coord{{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}}},
		{ID: 1, Population: 50, AreaKM2: 1.5, Parts: [][][]geom.Coord{{{{5, 5}, {6, 5}, {6, 6}, {5, 5}}}}},
	}
	proj, err := geodesy.NewProjector(0, 0)
	require.NoError(t, err)

	d := NewDiagram("sum", faces, nil, proj, IndexOptions{})
	s := d.Summarize()
	assert.Equal(t, 2, s.FaceCount)
	assert.InDelta(t, 150, s.TotalPopulation, 1e-9)
	assert.InDelta(t, 4.0, s.TotalAreaKM2, 1e-9)
}
