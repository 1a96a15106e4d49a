package boundary

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// GeoJSONProvider reads subdivision boundaries from a GeoJSON feature
// collection. Each feature carries the subdivision name in its
// properties under the configured field.
type GeoJSONProvider struct {
	path      string
	nameField string
}

// NewGeoJSONProvider returns a provider over the given GeoJSON file.
func NewGeoJSONProvider(path, nameField string) *GeoJSONProvider {
	return &GeoJSONProvider{path: path, nameField: nameField}
}

func (p *GeoJSONProvider) Resolve(_ context.Context, selector string) (*geom.MultiPolygon, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: read %s", p.path)
	}

	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrapf(err, "boundary: parse %s", p.path)
	}

	want := normalize(selector)
	nationwide := want == SelectorNationwide

	out := geom.NewMultiPolygon(geom.XY)
	matched := false
	for _, f := range fc.Features {
		if !nationwide && normalize(featureName(f, p.nameField)) != want {
			continue
		}

		mp, err := toMultiPolygon(f.Geometry)
		if err != nil {
			return nil, eris.Wrapf(err, "boundary: feature %q", featureName(f, p.nameField))
		}
		if mp == nil {
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

	if !matched {
		return nil, eris.Wrapf(ErrNotFound, "boundary: selector %q in %s", selector, p.path)
	}
	return out, nil
}

func featureName(f *geojson.Feature, field string) string {
	if f.Properties == nil {
		return ""
	}
	v, ok := f.Properties[field]
	if !ok {
		return ""
	}
	return fmt.Sprint(v)
}

func toMultiPolygon(g geom.T) (*geom.MultiPolygon, error) {
	switch t := g.(type) {
	case *geom.MultiPolygon:
		return t, nil
	case *geom.Polygon:
		mp := geom.NewMultiPolygon(geom.XY)
		if err := mp.Push(t); err != nil {
			return nil, err
		}
		return mp, nil
	case nil:
		return nil, nil
	default:
		// Point and line features carry no clippable area.
		return nil, nil
	}
}
