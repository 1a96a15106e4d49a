// Package population enriches coverage faces with served population. Each
// administrative region's census count is split across the faces it
// overlaps, in proportion to the overlapped share of the region's area.
// Population is conserved: a region never contributes more than its count.
package population

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sevamap/coverage-cli/internal/clipper"
	"github.com/sevamap/coverage-cli/internal/diagram"
	"github.com/sevamap/coverage-cli/internal/geodesy"
	"github.com/sevamap/coverage-cli/internal/planar"
)

// minOverlapM2 drops negligible sliver intersections.
const minOverlapM2 = 1e-4

// Aggregator computes area-weighted population per face.
type Aggregator struct {
	// Concurrency bounds the number of faces processed in parallel.
	// Defaults to GOMAXPROCS.
	Concurrency int
}

type preparedRegion struct {
	src    diagram.AdministrativeRegion
	planar *clipper.Region
	areaM2 float64
	bounds [4]float64
}

// Apply fills Population and Breakdown on every face. Each region is
// intersected with the face's clipped geometry, so area outside the
// operating boundary or inside a region enclave never contributes.
// Malformed regions are skipped with a note rather than failing the
// whole compute.
func (a *Aggregator) Apply(ctx context.Context, faces []*diagram.Face, regions []diagram.AdministrativeRegion, proj *geodesy.Projector) ([]diagram.Note, error) {
	prepared, notes := prepare(regions, proj)
	if len(prepared) == 0 {
		return notes, nil
	}

	limit := a.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i := range faces {
		face := faces[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			aggregateFace(face, prepared)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return notes, err
	}

	conserve(faces, prepared)
	return notes, nil
}

// prepare projects and validates the regions, dropping malformed ones.
func prepare(regions []diagram.AdministrativeRegion, proj *geodesy.Projector) ([]preparedRegion, []diagram.Note) {
	var (
		prepared []preparedRegion
		notes    []diagram.Note
	)
	skip := func(r diagram.AdministrativeRegion, reason string) {
		zap.L().Warn("population: region skipped",
			zap.String("region_id", r.ID),
			zap.String("reason", reason),
		)
		notes = append(notes, diagram.Note{
			Code:    diagram.NoteRegionSkipped,
			Subject: r.ID,
			Message: fmt.Sprintf("region %q skipped: %s", r.Name, reason),
		})
	}

	for _, r := range regions {
		if r.Polygon == nil || r.Polygon.NumPolygons() == 0 {
			skip(r, "no geometry")
			continue
		}
		if r.Population < 0 {
			skip(r, "negative population")
			continue
		}
		cr, err := clipper.NewRegion(proj.ProjectMultiPolygon(r.Polygon))
		if err != nil {
			skip(r, err.Error())
			continue
		}
		area := cr.Area()
		if area <= 0 {
			skip(r, "zero area")
			continue
		}
		prepared = append(prepared, preparedRegion{
			src:    r,
			planar: cr,
			areaM2: area,
			bounds: cr.Bounds(),
		})
	}
	return prepared, notes
}

// clipWindow is one convex piece of a face's triangulation: outer-ring
// triangles weigh +1 and hole triangles -1, so the weighted overlap sum
// equals the exact face-region intersection area.
type clipWindow struct {
	ring []geom.Coord
	sign float64
}

func faceWindows(face *diagram.Face) []clipWindow {
	var out []clipWindow
	for _, rings := range face.Parts {
		for _, tri := range planar.TriangulateRing(rings[0]) {
			out = append(out, clipWindow{ring: tri, sign: 1})
		}
		for _, hole := range rings[1:] {
			for _, tri := range planar.TriangulateRing(hole) {
				out = append(out, clipWindow{ring: tri, sign: -1})
			}
		}
	}
	return out
}

func aggregateFace(face *diagram.Face, regions []preparedRegion) {
	fb := face.Bounds()
	windows := faceWindows(face)

	var (
		total     float64
		breakdown []diagram.PopulationShare
	)
	for i := range regions {
		r := &regions[i]
		if r.bounds[0] > fb[2] || r.bounds[2] < fb[0] ||
			r.bounds[1] > fb[3] || r.bounds[3] < fb[1] {
			continue
		}

		area := 0.0
		for _, w := range windows {
			if inter := clipper.Intersect(w.ring, r.planar); len(inter) > 0 {
				area += w.sign * partsArea(inter)
			}
		}
		if area < minOverlapM2 {
			continue
		}

		fraction := area / r.areaM2
		if fraction > 1 {
			fraction = 1
		}
		contributed := fraction * r.src.Population
		total += contributed
		breakdown = append(breakdown, diagram.PopulationShare{
			RegionID:              r.src.ID,
			RegionName:            r.src.Name,
			IntersectionAreaKM2:   area / 1e6,
			OverlapFraction:       fraction,
			ContributedPopulation: contributed,
		})
	}

	sort.Slice(breakdown, func(i, j int) bool {
		if breakdown[i].ContributedPopulation != breakdown[j].ContributedPopulation {
			return breakdown[i].ContributedPopulation > breakdown[j].ContributedPopulation
		}
		return breakdown[i].RegionID < breakdown[j].RegionID
	})
	face.Population = total
	face.Breakdown = breakdown
}

// conserve rescales a region's contributions when floating-point overlap
// pushed its total across faces above its census count.
func conserve(faces []*diagram.Face, regions []preparedRegion) {
	totals := make(map[string]float64, len(regions))
	for _, f := range faces {
		for _, s := range f.Breakdown {
			totals[s.RegionID] += s.ContributedPopulation
		}
	}

	scale := make(map[string]float64)
	for i := range regions {
		r := &regions[i]
		if t := totals[r.src.ID]; t > r.src.Population && t > 0 {
			scale[r.src.ID] = r.src.Population / t
		}
	}
	if len(scale) == 0 {
		return
	}
	zap.L().Debug("population: rescaling over-attributed regions",
		zap.Int("regions", len(scale)),
	)

	for _, f := range faces {
		adjusted := 0.0
		for i := range f.Breakdown {
			s := &f.Breakdown[i]
			if factor, ok := scale[s.RegionID]; ok {
				s.ContributedPopulation *= factor
			}
			adjusted += s.ContributedPopulation
		}
		f.Population = adjusted
	}
}

func partsArea(parts [][][]geom.Coord) float64 {
	total := 0.0
	for _, rings := range parts {
		total += planar.Area(rings[0])
		for _, hole := range rings[1:] {
			total -= planar.Area(hole)
		}
	}
	return total
}
