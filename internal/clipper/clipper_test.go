package clipper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sevamap/coverage-cli/internal/planar"
)

func rect(minX, minY, maxX, maxY float64) []geom.Coord {
	return []geom.Coord{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}
}

func singleRegion(t *testing.T, rings ...[]geom.Coord) *Region {
	t.Helper()
	r, err := NewRegion([][][]geom.Coord{rings})
	require.NoError(t, err)
	return r
}

func TestClipCellFullyInside(t *testing.T) {
	region := singleRegion(t, rect(-100, -100, 100, 100))
	cell := rect(0, 0, 10, 10)

	c := &Clipper{}
	res, err := c.ClipCell(cell, region, geom.Coord{5, 5})
	require.NoError(t, err)
	require.False(t, res.Empty())
	assert.False(t, res.Patched)
	assert.InDelta(t, 100, res.Area(), 1e-6)
}

func TestClipCellPartialOverlap(t *testing.T) {
	region := singleRegion(t, rect(5, 0, 30, 30))
	cell := rect(0, 0, 10, 10)

	c := &Clipper{}
	res, err := c.ClipCell(cell, region, geom.Coord{7, 5})
	require.NoError(t, err)
	require.False(t, res.Empty())
	// Only the x in [5,10] strip survives.
	assert.InDelta(t, 50, res.Area(), 1e-6)
}

func TestClipCellOutsideRegion(t *testing.T) {
	region := singleRegion(t, rect(100, 100, 200, 200))
	cell := rect(0, 0, 10, 10)

	c := &Clipper{}
	res, err := c.ClipCell(cell, region, geom.Coord{5, 5})
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.False(t, res.Patched)
}

func TestClipCellMultiPartRegion(t *testing.T) {
	// Two islands, both overlapping the same cell: the face keeps both
	// pieces, it is never split into separate facilities.
	region, err := NewRegion([][][]geom.Coord{
		{rect(0, 0, 4, 10)},
		{rect(6, 0, 10, 10)},
	})
	require.NoError(t, err)

	cell := rect(0, 0, 10, 10)

	c := &Clipper{}
	res, err := c.ClipCell(cell, region, geom.Coord{2, 5})
	require.NoError(t, err)
	require.Len(t, res.Parts, 2)
	assert.InDelta(t, 80, res.Area(), 1e-6)
}

func TestClipCellRegionWithHole(t *testing.T) {
	region := singleRegion(t,
		rect(0, 0, 20, 20),
		rect(8, 8, 12, 12), // enclave hole
	)
	cell := rect(0, 0, 10, 10)

	c := &Clipper{}
	res, err := c.ClipCell(cell, region, geom.Coord{2, 2})
	require.NoError(t, err)
	require.Len(t, res.Parts, 1)
	require.Len(t, res.Parts[0], 2)
	// 10x10 minus the 2x2 hole corner that falls inside the cell.
	assert.InDelta(t, 96, res.Area(), 1e-6)
}

func TestClipCellContainmentPatch(t *testing.T) {
	// The seed sits outside the region-clipped cell but inside the
	// region's reach via the patch buffer.
	region := singleRegion(t, rect(1, 1, 30, 30))
	cell := rect(0, 0, 10, 10)
	seed := geom.Coord{0.5, 0.5}

	c := &Clipper{PatchBufferM: 2}
	res, err := c.ClipCell(cell, region, seed)
	require.NoError(t, err)
	require.False(t, res.Empty())
	assert.True(t, res.Patched)
	assert.True(t, res.contains(seed, 1e-6) || region.Contains(seed, 2),
		"patched face must reach the seed's surroundings")
}

func TestClipCellInvalidInput(t *testing.T) {
	region := singleRegion(t, rect(0, 0, 10, 10))

	c := &Clipper{}
	_, err := c.ClipCell([]geom.Coord{{0, 0}, {1, 1}}, region, geom.Coord{0, 0})
	require.Error(t, err)

	_, err = c.ClipCell(rect(0, 0, 1, 1), nil, geom.Coord{0, 0})
	require.Error(t, err)
}

func TestNewRegionValidation(t *testing.T) {
	_, err := NewRegion(nil)
	require.Error(t, err)

	_, err = NewRegion([][][]geom.Coord{{}})
	require.Error(t, err)

	_, err = NewRegion([][][]geom.Coord{{{{0, 0}, {1, 1}}}})
	require.Error(t, err)
}

func TestRegionContains(t *testing.T) {
	region := singleRegion(t,
		rect(0, 0, 20, 20),
		rect(5, 5, 10, 10),
	)

	assert.True(t, region.Contains(geom.Coord{2, 2}, 1e-6))
	assert.False(t, region.Contains(geom.Coord{7, 7}, 1e-6), "inside the hole")
	assert.False(t, region.Contains(geom.Coord{25, 25}, 1e-6))
	// Boundary inclusive.
	assert.True(t, region.Contains(geom.Coord{0, 10}, 1e-6))
}

func TestRegionAreaAndBounds(t *testing.T) {
	region, err := NewRegion([][][]geom.Coord{
		{rect(0, 0, 10, 10), rect(2, 2, 4, 4)},
		{rect(20, 0, 30, 10)},
	})
	require.NoError(t, err)

	assert.InDelta(t, 100-4+100, region.Area(), 1e-9)
	assert.Equal(t, [4]float64{0, 0, 30, 10}, region.Bounds())
}

func TestRegionSampleBoundary(t *testing.T) {
	region := singleRegion(t, rect(0, 0, 10, 10))

	verts := region.SampleBoundary(0)
	assert.Len(t, verts, 4)

	dense := region.SampleBoundary(2.5)
	assert.Greater(t, len(dense), len(verts))
	for _, p := range dense {
		assert.True(t, planar.OnRing(p, rect(0, 0, 10, 10), 1e-9))
	}
}
