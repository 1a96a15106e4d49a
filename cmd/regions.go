package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sevamap/coverage-cli/internal/diagram"
)

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "Manage the administrative-region store",
}

var regionsMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the region store schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		zap.L().Info("regions: schema ready", zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

var regionsLoadFile string

var regionsLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load administrative regions from a GeoJSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		regions, err := readRegionsGeoJSON(regionsLoadFile)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Put(ctx, regions); err != nil {
			return eris.Wrap(err, "store regions")
		}

		zap.L().Info("regions: loaded",
			zap.String("file", regionsLoadFile),
			zap.Int("count", len(regions)),
		)
		return printJSON(map[string]any{"loaded": len(regions)})
	},
}

var regionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the stored administrative regions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		regions, err := st.List(ctx)
		if err != nil {
			return err
		}
		return printJSON(regions)
	},
}

// readRegionsGeoJSON parses a feature collection whose properties carry
// id, name, parent_id, population and area_km2.
func readRegionsGeoJSON(path string) ([]diagram.AdministrativeRegion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read regions file %s", path)
	}
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrapf(err, "parse regions file %s", path)
	}

	regions := make([]diagram.AdministrativeRegion, 0, len(fc.Features))
	for i, feat := range fc.Features {
		props := feat.Properties

		r := diagram.AdministrativeRegion{
			ID:         stringProp(props, "id"),
			Name:       stringProp(props, "name"),
			ParentID:   stringProp(props, "parent_id"),
			Population: floatProp(props, "population"),
			AreaKM2:    floatProp(props, "area_km2"),
			Polygon:    featureMultiPolygon(feat.Geometry),
		}
		if r.ID == "" {
			return nil, eris.Errorf("feature %d has no id property", i)
		}
		if r.Polygon == nil {
			return nil, eris.Errorf("feature %q has no polygonal geometry", r.ID)
		}
		regions = append(regions, r)
	}
	if len(regions) == 0 {
		return nil, eris.Errorf("regions file %s has no features", path)
	}
	return regions, nil
}

func stringProp(props map[string]any, key string) string {
	v, ok := props[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func floatProp(props map[string]any, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	default:
		return 0
	}
}

func featureMultiPolygon(g geom.T) *geom.MultiPolygon {
	switch gg := g.(type) {
	case *geom.MultiPolygon:
		return gg
	case *geom.Polygon:
		mp := geom.NewMultiPolygon(gg.Layout())
		if err := mp.Push(gg); err != nil {
			return nil
		}
		return mp
	default:
		return nil
	}
}

func init() {
	regionsLoadCmd.Flags().StringVar(&regionsLoadFile, "file", "", "regions GeoJSON file (required)")
	_ = regionsLoadCmd.MarkFlagRequired("file")

	regionsCmd.AddCommand(regionsMigrateCmd, regionsLoadCmd, regionsListCmd)
	rootCmd.AddCommand(regionsCmd)
}
