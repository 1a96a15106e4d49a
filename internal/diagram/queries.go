package diagram

import (
	"math"

	"github.com/twpayne/go-geom"
)

// PointQuery maps a geographic point into the diagram's planar frame and
// returns the containing face. ok is false on a miss.
func (d *Diagram) PointQuery(lng, lat float64) (*Face, bool) {
	x, y := d.projector.Project(lng, lat)
	return d.index.PointQuery(geom.Coord{x, y})
}

// RangeQuery returns every face intersecting the geographic bounding box.
// The box is mapped corner-wise into the planar frame; over regional
// extents the projected corners bound the projected box closely enough
// for the exact per-candidate check that follows.
func (d *Diagram) RangeQuery(minLng, minLat, maxLng, maxLat float64) []*Face {
	corners := [4]geom.Coord{}
	for i, c := range [][2]float64{
		{minLng, minLat}, {maxLng, minLat}, {maxLng, maxLat}, {minLng, maxLat},
	} {
		x, y := d.projector.Project(c[0], c[1])
		corners[i] = geom.Coord{x, y}
	}
	b := [4]float64{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
	for _, c := range corners {
		b[0] = math.Min(b[0], c[0])
		b[1] = math.Min(b[1], c[1])
		b[2] = math.Max(b[2], c[0])
		b[3] = math.Max(b[3], c[1])
	}
	return d.index.RangeQuery(b)
}

// KNearest returns the k faces whose facilities are nearest to the
// geographic point, possibly more when the distance spread triggers
// adaptive widening.
func (d *Diagram) KNearest(lng, lat float64, k int) []*Face {
	x, y := d.projector.Project(lng, lat)
	return d.index.KNearest(geom.Coord{x, y}, k)
}

// Adjacent returns the neighbors of a face, or nil for an unknown id.
func (d *Diagram) Adjacent(faceID int) []*Face {
	return d.index.Adjacent(faceID)
}

// TopByPopulation returns up to n faces by descending served population.
func (d *Diagram) TopByPopulation(n int) []*Face {
	return d.index.TopByPopulation(n)
}

// Face returns the face with the given id, or nil.
func (d *Diagram) Face(id int) *Face {
	for _, f := range d.Faces {
		if f.ID == id {
			return f
		}
	}
	return nil
}
