package boundary

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Dataset describes one boundary source in the registry file.
type Dataset struct {
	Name      string `yaml:"name"`
	Kind      string `yaml:"kind"` // shapefile or geojson
	Path      string `yaml:"path"`
	NameField string `yaml:"name_field"`
}

// Registry maps dataset names to boundary sources, loaded from a YAML
// file alongside the config.
type Registry struct {
	Datasets []Dataset `yaml:"datasets"`
}

// LoadRegistry reads and validates a dataset registry file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: read registry %s", path)
	}

	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, eris.Wrapf(err, "boundary: parse registry %s", path)
	}

	for i, d := range reg.Datasets {
		if d.Name == "" || d.Path == "" {
			return nil, eris.Errorf("boundary: registry entry %d missing name or path", i)
		}
		switch d.Kind {
		case "shapefile", "geojson":
		default:
			return nil, eris.Errorf("boundary: dataset %q has unknown kind %q", d.Name, d.Kind)
		}
		if d.NameField == "" {
			reg.Datasets[i].NameField = "name"
		}
	}
	return &reg, nil
}

// Open returns the provider for a named dataset.
func (r *Registry) Open(name string) (Provider, error) {
	want := normalize(name)
	for _, d := range r.Datasets {
		if normalize(d.Name) != want {
			continue
		}
		switch d.Kind {
		case "shapefile":
			return NewShapefileProvider(d.Path, d.NameField), nil
		case "geojson":
			return NewGeoJSONProvider(d.Path, d.NameField), nil
		}
	}
	return nil, eris.Errorf("boundary: dataset %q not in registry", name)
}
