// Package engine orchestrates the coverage pipeline: resolve the clip
// boundary, project, build the Voronoi diagram, clip, index, aggregate
// population, and publish the result. The newest diagram is published by
// atomic pointer swap; a failed compute never disturbs the published one.
package engine

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sevamap/coverage-cli/internal/boundary"
	"github.com/sevamap/coverage-cli/internal/clipper"
	"github.com/sevamap/coverage-cli/internal/config"
	"github.com/sevamap/coverage-cli/internal/diagram"
	"github.com/sevamap/coverage-cli/internal/geodesy"
	"github.com/sevamap/coverage-cli/internal/planar"
	"github.com/sevamap/coverage-cli/internal/population"
	"github.com/sevamap/coverage-cli/internal/regionstore"
	"github.com/sevamap/coverage-cli/internal/voronoi"
)

var (
	// ErrIndexNotBuilt is returned by queries before the first successful
	// compute.
	ErrIndexNotBuilt = eris.New("engine: no diagram computed yet")
	// ErrClipRegionNotFound is returned for an unknown boundary selector.
	ErrClipRegionNotFound = eris.New("engine: clip region not found")
	// ErrEmptyResult is returned when no facility cell survives clipping.
	ErrEmptyResult = eris.New("engine: no service areas inside the clip region")
)

// Options bundles the tunables the pipeline needs.
type Options struct {
	Geometry  config.GeometryConfig
	Query     config.QueryConfig
	Analytics config.AnalyticsConfig
}

// snapshot is one published compute result plus the artifacts analytics
// needs beyond the diagram itself.
type snapshot struct {
	diagram  *diagram.Diagram
	vertices []geom.Coord
	region   *clipper.Region
}

// Engine runs computes and serves queries against the published diagram.
type Engine struct {
	boundaries boundary.Provider
	regions    regionstore.Store
	opts       Options

	head atomic.Pointer[snapshot]
}

// New assembles an engine. regions may be nil, in which case faces carry
// zero population.
func New(boundaries boundary.Provider, regions regionstore.Store, opts Options) *Engine {
	return &Engine{boundaries: boundaries, regions: regions, opts: opts}
}

// Compute runs the full pipeline for the given facilities and boundary
// selector, publishes the resulting diagram as the new head, and returns
// it as a versioned handle.
func (e *Engine) Compute(ctx context.Context, seeds []diagram.FacilitySeed, selector string) (*diagram.Diagram, error) {
	if err := validateSeeds(seeds); err != nil {
		return nil, err
	}

	mp, err := e.boundaries.Resolve(ctx, selector)
	if err != nil {
		if eris.Is(err, boundary.ErrNotFound) {
			return nil, eris.Wrapf(ErrClipRegionNotFound, "engine: selector %q", selector)
		}
		return nil, eris.Wrap(err, "engine: resolve boundary")
	}

	proj, err := geodesy.NewProjectorForBounds(mp.Bounds())
	if err != nil {
		return nil, eris.Wrap(err, "engine: center projection")
	}
	region, err := clipper.NewRegion(proj.ProjectMultiPolygon(mp))
	if err != nil {
		return nil, eris.Wrap(err, "engine: project clip region")
	}

	planarSeeds := make([]geom.Coord, len(seeds))
	for i, s := range seeds {
		x, y := proj.Project(s.Lng, s.Lat)
		planarSeeds[i] = geom.Coord{x, y}
	}

	vb := &voronoi.Builder{
		RaySafetyFactor: e.opts.Geometry.RaySafetyFactor,
		DedupeEpsilon:   e.opts.Geometry.DedupeEpsilonM,
	}
	vd, err := vb.Build(planarSeeds, region.Bounds())
	if err != nil {
		return nil, eris.Wrap(err, "engine: build cells")
	}

	cl := &clipper.Clipper{PatchBufferM: e.opts.Geometry.PatchBufferM}
	var (
		faces []*diagram.Face
		notes []diagram.Note
	)
	for i, cell := range vd.Cells {
		res, err := cl.ClipCell(cell, region, planarSeeds[i])
		if err != nil {
			return nil, eris.Wrapf(err, "engine: clip cell for %s", seeds[i].ID)
		}
		if res.Empty() {
			zap.L().Warn("engine: facility outside clip region",
				zap.String("facility_id", seeds[i].ID),
				zap.String("selector", selector),
			)
			notes = append(notes, diagram.Note{
				Code:    diagram.NoteOutOfRegion,
				Subject: seeds[i].ID,
				Message: fmt.Sprintf("facility %q lies outside the clip region", seeds[i].Name),
			})
			continue
		}

		f := buildFace(len(faces), seeds[i], planarSeeds[i], res, proj)
		if res.Patched {
			notes = append(notes, diagram.Note{
				Code:    diagram.NotePatched,
				Subject: seeds[i].ID,
				Message: fmt.Sprintf("containment patch applied around facility %q", seeds[i].Name),
			})
		}
		faces = append(faces, f)
	}
	if len(faces) == 0 {
		return nil, eris.Wrapf(ErrEmptyResult, "engine: selector %q", selector)
	}

	if e.regions != nil {
		regs, err := e.regions.List(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "engine: load regions")
		}
		agg := &population.Aggregator{}
		popNotes, err := agg.Apply(ctx, faces, regs, proj)
		if err != nil {
			return nil, eris.Wrap(err, "engine: aggregate population")
		}
		notes = append(notes, popNotes...)
	}

	d := diagram.NewDiagram(uuid.NewString(), faces, notes, proj, diagram.IndexOptions{
		AdaptiveKRatio:  e.opts.Query.AdaptiveKRatio,
		AdaptiveKMax:    e.opts.Query.AdaptiveKMax,
		AdjacencyMinLen: e.opts.Geometry.AdjacencyMinLenM,
	})
	e.head.Store(&snapshot{diagram: d, vertices: vd.Vertices, region: region})

	zap.L().Info("engine: diagram published",
		zap.String("diagram_id", d.ID),
		zap.Int("faces", len(faces)),
		zap.Int("notes", len(notes)),
		zap.String("selector", selector),
	)
	return d, nil
}

func validateSeeds(seeds []diagram.FacilitySeed) error {
	if len(seeds) < 3 {
		return eris.Wrapf(voronoi.ErrInsufficientSeeds, "engine: %d seeds", len(seeds))
	}
	ids := make(map[string]struct{}, len(seeds))
	for i, s := range seeds {
		if s.ID == "" {
			return eris.Errorf("engine: seed %d has no id", i)
		}
		if _, dup := ids[s.ID]; dup {
			return eris.Errorf("engine: duplicate seed id %q", s.ID)
		}
		ids[s.ID] = struct{}{}
		if s.Lng < -180 || s.Lng > 180 || s.Lat < -90 || s.Lat > 90 {
			return eris.Errorf("engine: seed %q has invalid coordinates (%f, %f)", s.ID, s.Lng, s.Lat)
		}
	}
	return nil
}

// buildFace assembles one face from a clip result, rendering the
// geographic multipolygon and area-weighted centroid.
func buildFace(id int, seed diagram.FacilitySeed, planarSeed geom.Coord, res *clipper.Result, proj *geodesy.Projector) *diagram.Face {
	f := &diagram.Face{
		ID:           id,
		FacilityID:   seed.ID,
		FacilityName: seed.Name,
		Category:     seed.Category,
		Seed:         planarSeed,
		SeedLng:      seed.Lng,
		SeedLat:      seed.Lat,
		Parts:        res.Parts,
		AreaKM2:      res.Area() / 1e6,
		Patched:      res.Patched,
	}

	c := facesCentroid(res.Parts)
	f.CentroidLng, f.CentroidLat = proj.Unproject(c[0], c[1])

	geo := make([][][]geom.Coord, len(res.Parts))
	for i, rings := range res.Parts {
		geo[i] = make([][]geom.Coord, len(rings))
		for j, ring := range rings {
			geo[i][j] = proj.UnprojectRing(ring)
		}
	}
	if mp, err := geom.NewMultiPolygon(geom.XY).SetCoords(geo); err == nil {
		f.Geographic = mp
	} else {
		zap.L().Warn("engine: geographic rendering failed",
			zap.String("facility_id", seed.ID),
			zap.Error(err),
		)
	}
	return f
}

// facesCentroid is the area-weighted centroid across parts, holes
// subtracted.
func facesCentroid(parts [][][]geom.Coord) geom.Coord {
	var cx, cy, total float64
	for _, rings := range parts {
		for r, ring := range rings {
			a := planar.Area(ring)
			if r > 0 {
				a = -a
			}
			c := planar.Centroid(ring)
			cx += a * c[0]
			cy += a * c[1]
			total += a
		}
	}
	if total == 0 {
		if len(parts) > 0 && len(parts[0]) > 0 {
			return planar.Centroid(parts[0][0])
		}
		return geom.Coord{0, 0}
	}
	return geom.Coord{cx / total, cy / total}
}
