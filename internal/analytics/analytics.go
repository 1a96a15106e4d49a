// Package analytics derives planning signals from a computed coverage
// diagram: the minimum circle enclosing all facilities, the largest
// facility-free circle inside the boundary, load rankings, and rule-based
// expansion recommendations.
package analytics

import (
	"fmt"
	"sort"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sevamap/coverage-cli/internal/clipper"
	"github.com/sevamap/coverage-cli/internal/diagram"
)

// Severity grades a recommendation.
type Severity string

const (
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Recommendation kinds.
const (
	KindCoverageGap  = "coverage_gap"
	KindOverburdened = "overburdened"
	KindCapacity     = "capacity"
)

// Options holds the analytics thresholds.
type Options struct {
	// GapRadiusKM and CriticalGapRadiusKM grade the largest empty circle.
	GapRadiusKM         float64
	CriticalGapRadiusKM float64
	// OverburdenedFactor flags faces whose population density exceeds this
	// multiple of the mean.
	OverburdenedFactor float64
	// CapacityThreshold flags the whole network when the mean served
	// population per facility exceeds it.
	CapacityThreshold float64
	// RankCount bounds the ranking lists.
	RankCount int
	// BoundarySampleStep is the spacing of boundary samples for the
	// largest empty circle search, in meters.
	BoundarySampleStep float64
}

func (o Options) withDefaults() Options {
	if o.GapRadiusKM <= 0 {
		o.GapRadiusKM = 10
	}
	if o.CriticalGapRadiusKM <= 0 {
		o.CriticalGapRadiusKM = 25
	}
	if o.OverburdenedFactor <= 0 {
		o.OverburdenedFactor = 2
	}
	if o.CapacityThreshold <= 0 {
		o.CapacityThreshold = 1e6
	}
	if o.RankCount <= 0 {
		o.RankCount = 5
	}
	if o.BoundarySampleStep <= 0 {
		o.BoundarySampleStep = 25000
	}
	return o
}

// GeoCircle is a circle in geographic terms.
type GeoCircle struct {
	CenterLng float64 `json:"center_lng"`
	CenterLat float64 `json:"center_lat"`
	RadiusKM  float64 `json:"radius_km"`
}

// Ranking is one entry of a load ranking.
type Ranking struct {
	FaceID       int     `json:"face_id"`
	FacilityID   string  `json:"facility_id"`
	FacilityName string  `json:"facility_name"`
	Value        float64 `json:"value"`
}

// Recommendation is one rule-based planning suggestion.
type Recommendation struct {
	Kind      string   `json:"kind"`
	Severity  Severity `json:"severity"`
	Message   string   `json:"message"`
	TargetLng float64  `json:"target_lng,omitempty"`
	TargetLat float64  `json:"target_lat,omitempty"`
	FaceID    int      `json:"face_id,omitempty"`
}

// Report is the full analytics output for one diagram.
type Report struct {
	Summary         diagram.Summary  `json:"summary"`
	EnclosingCircle GeoCircle        `json:"enclosing_circle"`
	LargestGap      GeoCircle        `json:"largest_gap"`
	Overburdened    []Ranking        `json:"overburdened"`
	Underserved     []Ranking        `json:"underserved"`
	Recommendations []Recommendation `json:"recommendations"`
}

// Analyze builds the report. voronoiVertices are the diagram's planar
// cell corners, reused as largest-empty-circle candidates; region is the
// planar operating boundary the diagram was clipped to.
func Analyze(d *diagram.Diagram, voronoiVertices []geom.Coord, region *clipper.Region, opts Options) Report {
	opts = opts.withDefaults()
	rep := Report{Summary: d.Summarize()}
	if len(d.Faces) == 0 {
		return rep
	}

	proj := d.Projector()
	seeds := make([]geom.Coord, len(d.Faces))
	for i, f := range d.Faces {
		seeds[i] = f.Seed
	}

	mec := MinEnclosingCircle(seeds)
	lng, lat := proj.Unproject(mec.Center[0], mec.Center[1])
	rep.EnclosingCircle = GeoCircle{CenterLng: lng, CenterLat: lat, RadiusKM: mec.RadiusM / 1000}

	lec := LargestEmptyCircle(seeds, voronoiVertices, region, opts.BoundarySampleStep)
	lng, lat = proj.Unproject(lec.Center[0], lec.Center[1])
	rep.LargestGap = GeoCircle{CenterLng: lng, CenterLat: lat, RadiusKM: lec.RadiusM / 1000}

	rep.Overburdened = rankByDensity(d.Faces, opts.RankCount)
	rep.Underserved = rankByArea(d.Faces, opts.RankCount)
	rep.Recommendations = recommend(d, rep, opts)

	zap.L().Info("analytics: report built",
		zap.Int("faces", len(d.Faces)),
		zap.Float64("largest_gap_km", rep.LargestGap.RadiusKM),
		zap.Int("recommendations", len(rep.Recommendations)),
	)
	return rep
}

// rankByDensity orders faces by served population per km², densest first.
func rankByDensity(faces []*diagram.Face, n int) []Ranking {
	var out []Ranking
	for _, f := range faces {
		if f.AreaKM2 <= 0 {
			continue
		}
		out = append(out, Ranking{
			FaceID:       f.ID,
			FacilityID:   f.FacilityID,
			FacilityName: f.FacilityName,
			Value:        f.Population / f.AreaKM2,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].FaceID < out[j].FaceID
	})
	if n < len(out) {
		out = out[:n]
	}
	return out
}

// rankByArea orders faces by service area, largest first. A large face
// means people far from their nearest facility.
func rankByArea(faces []*diagram.Face, n int) []Ranking {
	out := make([]Ranking, 0, len(faces))
	for _, f := range faces {
		out = append(out, Ranking{
			FaceID:       f.ID,
			FacilityID:   f.FacilityID,
			FacilityName: f.FacilityName,
			Value:        f.AreaKM2,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].FaceID < out[j].FaceID
	})
	if n < len(out) {
		out = out[:n]
	}
	return out
}

func recommend(d *diagram.Diagram, rep Report, opts Options) []Recommendation {
	var recs []Recommendation

	if gap := rep.LargestGap; gap.RadiusKM > opts.GapRadiusKM {
		sev := SeverityMedium
		if gap.RadiusKM > opts.CriticalGapRadiusKM {
			sev = SeverityHigh
		}
		recs = append(recs, Recommendation{
			Kind:     KindCoverageGap,
			Severity: sev,
			Message: fmt.Sprintf(
				"nearest facility is %.1f km away at the widest gap; consider a new facility near (%.4f, %.4f)",
				gap.RadiusKM, gap.CenterLng, gap.CenterLat,
			),
			TargetLng: gap.CenterLng,
			TargetLat: gap.CenterLat,
		})
	}

	if avg := meanDensity(d.Faces); avg > 0 {
		for _, r := range rep.Overburdened {
			if r.Value <= opts.OverburdenedFactor*avg {
				break
			}
			recs = append(recs, Recommendation{
				Kind:     KindOverburdened,
				Severity: SeverityMedium,
				Message: fmt.Sprintf(
					"%s serves %.0f people per km², over %.0fx the network mean; consider relief capacity nearby",
					r.FacilityName, r.Value, opts.OverburdenedFactor,
				),
				FaceID: r.FaceID,
			})
		}
	}

	if n := len(d.Faces); n > 0 {
		if avgPop := rep.Summary.TotalPopulation / float64(n); avgPop > opts.CapacityThreshold {
			recs = append(recs, Recommendation{
				Kind:     KindCapacity,
				Severity: SeverityHigh,
				Message: fmt.Sprintf(
					"facilities serve %.0f people on average, above the %.0f capacity threshold; the network needs more facilities",
					avgPop, opts.CapacityThreshold,
				),
			})
		}
	}
	return recs
}

func meanDensity(faces []*diagram.Face) float64 {
	var sum float64
	var n int
	for _, f := range faces {
		if f.AreaKM2 <= 0 {
			continue
		}
		sum += f.Population / f.AreaKM2
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
