package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sevamap/coverage-cli/internal/boundary"
	"github.com/sevamap/coverage-cli/internal/diagram"
	"github.com/sevamap/coverage-cli/internal/engine"
	"github.com/sevamap/coverage-cli/internal/regionstore"
)

// initProvider picks the boundary source: an explicitly configured file
// wins, otherwise the named dataset from the registry.
func initProvider(dataset string) (boundary.Provider, error) {
	if cfg.Boundary.ShapefilePath != "" {
		return boundary.NewShapefileProvider(cfg.Boundary.ShapefilePath, cfg.Boundary.NameField), nil
	}
	if cfg.Boundary.GeoJSONPath != "" {
		return boundary.NewGeoJSONProvider(cfg.Boundary.GeoJSONPath, cfg.Boundary.NameField), nil
	}

	reg, err := boundary.LoadRegistry(cfg.Boundary.RegistryPath)
	if err != nil {
		return nil, err
	}
	if dataset == "" {
		if len(reg.Datasets) == 0 {
			return nil, eris.New("boundary registry is empty")
		}
		dataset = reg.Datasets[0].Name
	}
	return reg.Open(dataset)
}

// initStore opens the region store and ensures its schema exists.
func initStore(ctx context.Context) (regionstore.Store, error) {
	st, err := regionstore.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// initEngine wires the boundary provider and region store into an engine.
// The returned closer releases the store.
func initEngine(ctx context.Context, dataset string) (*engine.Engine, func(), error) {
	provider, err := initProvider(dataset)
	if err != nil {
		return nil, nil, err
	}

	var st regionstore.Store
	closer := func() {}
	if cfg.Store.DatabaseURL != "" {
		st, err = initStore(ctx)
		if err != nil {
			return nil, nil, err
		}
		closer = func() { _ = st.Close() }
	}

	eng := engine.New(provider, st, engine.Options{
		Geometry:  cfg.Geometry,
		Query:     cfg.Query,
		Analytics: cfg.Analytics,
	})
	return eng, closer, nil
}

// loadSeeds reads a facility seeds JSON file: an array of
// {id, name, category, lng, lat}.
func loadSeeds(path string) ([]diagram.FacilitySeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read seeds file %s", path)
	}
	var seeds []diagram.FacilitySeed
	if err := json.Unmarshal(data, &seeds); err != nil {
		return nil, eris.Wrapf(err, "parse seeds file %s", path)
	}
	if len(seeds) == 0 {
		return nil, eris.Errorf("seeds file %s is empty", path)
	}
	return seeds, nil
}

// printJSON writes indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
