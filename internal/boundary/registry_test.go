package boundary

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRegistry(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "datasets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRegistry(t *testing.T) {
	path := writeRegistry(t, `
datasets:
  - name: india-states
    kind: shapefile
    path: data/states.shp
    name_field: STATE
  - name: india-districts
    kind: geojson
    path: data/districts.geojson
`)

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	require.Len(t, reg.Datasets, 2)

	assert.Equal(t, "STATE", reg.Datasets[0].NameField)
	// Missing name_field defaults to "name".
	assert.Equal(t, "name", reg.Datasets[1].NameField)
}

func TestLoadRegistryRejectsUnknownKind(t *testing.T) {
	path := writeRegistry(t, `
datasets:
  - name: bad
    kind: csv
    path: data/bad.csv
`)

	_, err := LoadRegistry(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown kind")
}

func TestLoadRegistryRejectsMissingPath(t *testing.T) {
	path := writeRegistry(t, `
datasets:
  - name: incomplete
    kind: geojson
`)

	_, err := LoadRegistry(path)
	require.Error(t, err)
}

func TestRegistryOpen(t *testing.T) {
	path := writeRegistry(t, `
datasets:
  - name: India-States
    kind: shapefile
    path: data/states.shp
    name_field: STATE
  - name: districts
    kind: geojson
    path: data/districts.geojson
`)

	reg, err := LoadRegistry(path)
	require.NoError(t, err)

	p, err := reg.Open("india-states")
	require.NoError(t, err)
	assert.IsType(t, &ShapefileProvider{}, p)

	p, err = reg.Open("districts")
	require.NoError(t, err)
	assert.IsType(t, &GeoJSONProvider{}, p)

	_, err = reg.Open("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in registry")
}
