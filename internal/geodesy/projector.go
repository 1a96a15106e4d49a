// Package geodesy converts geographic coordinates to a locally
// low-distortion planar system and back. Euclidean distance and area
// formulas are invalid directly on latitude/longitude, so all geometry
// work happens in projected meters.
package geodesy

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// EarthRadiusM is the mean Earth radius in meters.
const EarthRadiusM = 6371008.8

// Projector maps WGS84 (lng, lat) degrees to planar meters using a
// spherical transverse Mercator projection centered on the operating
// extent. The mapping is a bijection over the extent with round-trip
// error far below a meter.
type Projector struct {
	lng0 float64 // central meridian, radians
	lat0 float64 // false-origin latitude, radians
}

// NewProjector returns a projector centered on the given geographic point.
func NewProjector(centerLng, centerLat float64) (*Projector, error) {
	if centerLng < -180 || centerLng > 180 || centerLat < -89 || centerLat > 89 {
		return nil, eris.Errorf("geodesy: invalid projection center (%f, %f)", centerLng, centerLat)
	}
	return &Projector{
		lng0: centerLng * math.Pi / 180,
		lat0: centerLat * math.Pi / 180,
	}, nil
}

// NewProjectorForBounds centers the projection on the midpoint of a
// geographic bounding box.
func NewProjectorForBounds(b *geom.Bounds) (*Projector, error) {
	if b == nil {
		return nil, eris.New("geodesy: nil bounds")
	}
	return NewProjector(
		(b.Min(0)+b.Max(0))/2,
		(b.Min(1)+b.Max(1))/2,
	)
}

// Project converts geographic degrees to planar meters.
func (p *Projector) Project(lng, lat float64) (x, y float64) {
	lam := lng*math.Pi/180 - p.lng0
	phi := lat * math.Pi / 180

	b := math.Cos(phi) * math.Sin(lam)
	x = EarthRadiusM * math.Atanh(b)
	y = EarthRadiusM * (math.Atan2(math.Tan(phi), math.Cos(lam)) - p.lat0)
	return x, y
}

// Unproject converts planar meters back to geographic degrees.
func (p *Projector) Unproject(x, y float64) (lng, lat float64) {
	d := y/EarthRadiusM + p.lat0
	xr := x / EarthRadiusM

	phi := math.Asin(math.Sin(d) / math.Cosh(xr))
	lam := p.lng0 + math.Atan2(math.Sinh(xr), math.Cos(d))

	return lam * 180 / math.Pi, phi * 180 / math.Pi
}

// ProjectCoord converts a geographic go-geom coordinate to planar meters.
func (p *Projector) ProjectCoord(c geom.Coord) geom.Coord {
	x, y := p.Project(c[0], c[1])
	return geom.Coord{x, y}
}

// UnprojectCoord converts a planar go-geom coordinate back to degrees.
func (p *Projector) UnprojectCoord(c geom.Coord) geom.Coord {
	lng, lat := p.Unproject(c[0], c[1])
	return geom.Coord{lng, lat}
}

// ProjectRing projects every coordinate of a ring.
func (p *Projector) ProjectRing(ring []geom.Coord) []geom.Coord {
	out := make([]geom.Coord, len(ring))
	for i, c := range ring {
		out[i] = p.ProjectCoord(c)
	}
	return out
}

// UnprojectRing unprojects every coordinate of a ring.
func (p *Projector) UnprojectRing(ring []geom.Coord) []geom.Coord {
	out := make([]geom.Coord, len(ring))
	for i, c := range ring {
		out[i] = p.UnprojectCoord(c)
	}
	return out
}

// ProjectMultiPolygon projects a geographic multi-polygon into planar
// ring sets, one ring slice per polygon part, outer ring first.
func (p *Projector) ProjectMultiPolygon(mp *geom.MultiPolygon) [][][]geom.Coord {
	parts := make([][][]geom.Coord, 0, mp.NumPolygons())
	for i := 0; i < mp.NumPolygons(); i++ {
		poly := mp.Polygon(i)
		rings := make([][]geom.Coord, 0, poly.NumLinearRings())
		for j := 0; j < poly.NumLinearRings(); j++ {
			rings = append(rings, p.ProjectRing(poly.LinearRing(j).Coords()))
		}
		parts = append(parts, rings)
	}
	return parts
}
