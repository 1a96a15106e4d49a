package engine

import (
	"github.com/rotisserie/eris"

	"github.com/sevamap/coverage-cli/internal/analytics"
	"github.com/sevamap/coverage-cli/internal/diagram"
)

func (e *Engine) current() (*snapshot, error) {
	s := e.head.Load()
	if s == nil {
		return nil, eris.Wrap(ErrIndexNotBuilt, "engine: query")
	}
	return s, nil
}

// Diagram returns the currently published diagram.
func (e *Engine) Diagram() (*diagram.Diagram, error) {
	s, err := e.current()
	if err != nil {
		return nil, err
	}
	return s.diagram, nil
}

// PointQuery returns the face covering a geographic point. ok is false
// when the point is outside every service area.
func (e *Engine) PointQuery(lng, lat float64) (*diagram.Face, bool, error) {
	s, err := e.current()
	if err != nil {
		return nil, false, err
	}
	f, ok := s.diagram.PointQuery(lng, lat)
	return f, ok, nil
}

// RangeQuery returns the faces intersecting a geographic bounding box.
func (e *Engine) RangeQuery(minLng, minLat, maxLng, maxLat float64) ([]*diagram.Face, error) {
	s, err := e.current()
	if err != nil {
		return nil, err
	}
	return s.diagram.RangeQuery(minLng, minLat, maxLng, maxLat), nil
}

// KNearest returns the faces of the k facilities nearest to a point.
func (e *Engine) KNearest(lng, lat float64, k int) ([]*diagram.Face, error) {
	s, err := e.current()
	if err != nil {
		return nil, err
	}
	return s.diagram.KNearest(lng, lat, k), nil
}

// Adjacent returns the neighbor faces of a face id.
func (e *Engine) Adjacent(faceID int) ([]*diagram.Face, error) {
	s, err := e.current()
	if err != nil {
		return nil, err
	}
	return s.diagram.Adjacent(faceID), nil
}

// TopByPopulation returns up to n faces by served population.
func (e *Engine) TopByPopulation(n int) ([]*diagram.Face, error) {
	s, err := e.current()
	if err != nil {
		return nil, err
	}
	return s.diagram.TopByPopulation(n), nil
}

// Summary returns the headline statistics of the published diagram.
func (e *Engine) Summary() (diagram.Summary, error) {
	s, err := e.current()
	if err != nil {
		return diagram.Summary{}, err
	}
	return s.diagram.Summarize(), nil
}

// Analytics builds the full analytics report for the published diagram.
func (e *Engine) Analytics() (analytics.Report, error) {
	s, err := e.current()
	if err != nil {
		return analytics.Report{}, err
	}
	opts := analytics.Options{
		GapRadiusKM:         e.opts.Analytics.GapRadiusKM,
		CriticalGapRadiusKM: e.opts.Analytics.CriticalGapRadiusKM,
		OverburdenedFactor:  e.opts.Analytics.OverburdenedFactor,
		CapacityThreshold:   e.opts.Analytics.CapacityThreshold,
		RankCount:           e.opts.Analytics.RankCount,
		BoundarySampleStep:  e.opts.Geometry.BoundarySampleStep,
	}
	return analytics.Analyze(s.diagram, s.vertices, s.region, opts), nil
}
