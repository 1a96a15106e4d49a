// Package diagram holds the immutable output of one coverage compute: the
// clipped service-area faces and the spatial index built over them. A
// recompute produces an entirely new Diagram; published diagrams are never
// mutated.
package diagram

import (
	"time"

	"github.com/twpayne/go-geom"

	"github.com/sevamap/coverage-cli/internal/geodesy"
	"github.com/sevamap/coverage-cli/internal/planar"
)

// FacilitySeed is one caller-supplied facility input.
type FacilitySeed struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category,omitempty"`
	Lng      float64 `json:"lng"`
	Lat      float64 `json:"lat"`
}

// AdministrativeRegion is an externally supplied boundary with census
// population. Read-only.
type AdministrativeRegion struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	ParentID   string            `json:"parent_id,omitempty"`
	Polygon    *geom.MultiPolygon `json:"-"`
	Population float64           `json:"population"`
	AreaKM2    float64           `json:"area_km2"`
}

// PopulationShare is one entry of a face's population breakdown: the
// slice of a region's population attributed to the face in proportion to
// the overlapped share of the region's area.
type PopulationShare struct {
	RegionID             string  `json:"region_id"`
	RegionName           string  `json:"region_name"`
	IntersectionAreaKM2  float64 `json:"intersection_area_km2"`
	OverlapFraction      float64 `json:"overlap_fraction"`
	ContributedPopulation float64 `json:"contributed_population"`
}

// Face is one facility's clipped service area. Possibly multi-part when
// the clip region has islands or enclaves; all parts stay with the one
// facility. Created by the clipper, enriched by the population
// aggregator, immutable once the Diagram is published.
type Face struct {
	ID           int     `json:"id"`
	FacilityID   string  `json:"facility_id"`
	FacilityName string  `json:"facility_name"`
	Category     string  `json:"category,omitempty"`

	// Seed is the owning facility's planar position in meters.
	Seed geom.Coord `json:"-"`
	// SeedLng and SeedLat echo the facility's geographic position.
	SeedLng float64 `json:"seed_lng"`
	SeedLat float64 `json:"seed_lat"`

	// Parts holds the planar polygon parts: outer ring first, holes after.
	Parts [][][]geom.Coord `json:"-"`
	// Geographic is the WGS84 rendering of Parts.
	Geographic *geom.MultiPolygon `json:"-"`

	AreaKM2     float64 `json:"area_km2"`
	CentroidLng float64 `json:"centroid_lng"`
	CentroidLat float64 `json:"centroid_lat"`

	Population float64           `json:"population"`
	Breakdown  []PopulationShare `json:"breakdown,omitempty"`

	// Adjacent lists ids of faces sharing a boundary segment of non-zero
	// length. Symmetric. Filled at index build.
	Adjacent []int `json:"adjacent"`

	// Patched is true when a containment patch was unioned in during
	// clipping.
	Patched bool `json:"patched,omitempty"`
}

// Contains reports whether the planar point lies inside the face
// (boundary inclusive within tol).
func (f *Face) Contains(p geom.Coord, tol float64) bool {
	for _, rings := range f.Parts {
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

// PlanarArea returns the face area in square meters.
func (f *Face) PlanarArea() float64 {
	total := 0.0
	for _, rings := range f.Parts {
		total += planar.Area(rings[0])
		for _, hole := range rings[1:] {
			total -= planar.Area(hole)
		}
	}
	return total
}

// Bounds returns the planar bounding box of all parts.
func (f *Face) Bounds() [4]float64 {
	var b [4]float64
	first := true
	for _, rings := range f.Parts {
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

// NoteCode classifies diagram build notes.
type NoteCode string

const (
	// NoteOutOfRegion marks a facility whose cell clipped to empty.
	NoteOutOfRegion NoteCode = "out_of_region"
	// NotePatched marks a face that needed a containment patch.
	NotePatched NoteCode = "patched"
	// NoteRegionSkipped marks a malformed administrative region that was
	// skipped during population aggregation.
	NoteRegionSkipped NoteCode = "region_skipped"
)

// Note records a non-fatal event from the compute pipeline.
type Note struct {
	Code    NoteCode `json:"code"`
	Subject string   `json:"subject"`
	Message string   `json:"message"`
}

// Diagram is the full set of faces plus the spatial index built over
// them. It is the versioned handle returned by a compute; the engine also
// publishes the newest diagram to a process-wide head pointer.
type Diagram struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Faces []*Face `json:"faces"`
	Notes []Note  `json:"notes,omitempty"`

	index     *Index
	projector *geodesy.Projector
}

// NewDiagram assembles a diagram and builds its spatial index. The
// projector is retained so geographic queries can be mapped into the
// diagram's planar frame.
func NewDiagram(id string, faces []*Face, notes []Note, proj *geodesy.Projector, opts IndexOptions) *Diagram {
	d := &Diagram{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		Faces:     faces,
		Notes:     notes,
		projector: proj,
	}
	d.index = BuildIndex(faces, opts)
	return d
}

// Projector returns the projector the diagram was computed with.
func (d *Diagram) Projector() *geodesy.Projector { return d.projector }

// Index returns the diagram's spatial index.
func (d *Diagram) Index() *Index { return d.index }

// Summary holds the headline coverage statistics.
type Summary struct {
	FaceCount       int     `json:"face_count"`
	TotalPopulation float64 `json:"total_population"`
	TotalAreaKM2    float64 `json:"total_area_km2"`
}

// Summarize totals population and area across all faces.
func (d *Diagram) Summarize() Summary {
	s := Summary{FaceCount: len(d.Faces)}
	for _, f := range d.Faces {
		s.TotalPopulation += f.Population
		s.TotalAreaKM2 += f.AreaKM2
	}
	return s
}
