package boundary

import (
	"context"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// ShapefileProvider reads subdivision boundaries from an ESRI shapefile.
// The name attribute identifies each subdivision; "nationwide" merges
// every record into one multi-part boundary.
type ShapefileProvider struct {
	path      string
	nameField string
}

// NewShapefileProvider returns a provider over the given .shp file.
func NewShapefileProvider(path, nameField string) *ShapefileProvider {
	return &ShapefileProvider{path: path, nameField: nameField}
}

func (p *ShapefileProvider) Resolve(_ context.Context, selector string) (*geom.MultiPolygon, error) {
	reader, err := shp.Open(p.path)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: open shapefile %s", p.path)
	}
	defer func() { _ = reader.Close() }()

	// Build field name -> index map.
	fields := reader.Fields()
	nameIdx := -1
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		if strings.EqualFold(name, p.nameField) {
			nameIdx = i
			break
		}
	}
	if nameIdx < 0 {
		return nil, eris.Errorf("boundary: shapefile has no %q field", p.nameField)
	}

	want := normalize(selector)
	nationwide := want == SelectorNationwide

	out := geom.NewMultiPolygon(geom.XY)
	matched := false
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok || poly == nil {
			skipped++
			continue
		}

		if !nationwide {
			name := strings.TrimSpace(strings.TrimRight(reader.Attribute(nameIdx), "\x00"))
			if normalize(name) != want {
				continue
			}
		}

		mp := shpPolygonToMultiPolygon(poly)
		if mp == nil {
			skipped++
			continue
		}
		if err := appendPolygons(out, mp); err != nil {
			return nil, err
		}
		matched = true
		if !nationwide {
			break
		}
	}

	if skipped > 0 {
		zap.L().Debug("boundary: skipped shapefile records",
			zap.String("path", p.path),
			zap.Int("skipped", skipped),
		)
	}
	if !matched {
		return nil, eris.Wrapf(ErrNotFound, "boundary: selector %q in %s", selector, p.path)
	}
	return out, nil
}

// shpPolygonToMultiPolygon converts a shapefile polygon record. Shapefile
// outer rings wind clockwise and holes counter-clockwise; each clockwise
// ring opens a polygon and following counter-clockwise rings are its holes.
func shpPolygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	var current *geom.Polygon

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		if len(flat) < 8 {
			continue
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)

		if current == nil || ringSignedArea(flat) < 0 {
			if current != nil {
				if err := mp.Push(current); err != nil {
					zap.L().Debug("boundary: skipping malformed polygon part", zap.Error(err))
				}
			}
			current = geom.NewPolygon(geom.XY)
		}
		if err := current.Push(ring); err != nil {
			zap.L().Debug("boundary: skipping malformed ring", zap.Int32("part", i), zap.Error(err))
		}
	}
	if current != nil && current.NumLinearRings() > 0 {
		if err := mp.Push(current); err != nil {
			zap.L().Debug("boundary: skipping malformed polygon part", zap.Error(err))
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

func ringSignedArea(flat []float64) float64 {
	sum := 0.0
	n := len(flat) / 2
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += flat[2*i]*flat[2*j+1] - flat[2*j]*flat[2*i+1]
	}
	return sum / 2
}
