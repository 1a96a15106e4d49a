package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sevamap/coverage-cli/internal/engine"
)

var (
	querySeeds   string
	queryRegion  string
	queryDataset string

	queryLng float64
	queryLat float64
	queryK   int
	queryN   int

	queryMinLng float64
	queryMinLat float64
	queryMaxLng float64
	queryMaxLat float64

	queryFaceID int
)

// queryEngine computes a fresh diagram from the shared query flags and
// returns the engine ready for queries.
func queryEngine(cmd *cobra.Command) (*engine.Engine, func(), error) {
	ctx := cmd.Context()

	seeds, err := loadSeeds(querySeeds)
	if err != nil {
		return nil, nil, err
	}
	eng, closer, err := initEngine(ctx, queryDataset)
	if err != nil {
		return nil, nil, err
	}
	if _, err := eng.Compute(ctx, seeds, queryRegion); err != nil {
		closer()
		return nil, nil, eris.Wrap(err, "compute")
	}
	return eng, closer, nil
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Spatial queries against a freshly computed diagram",
}

var queryPointCmd = &cobra.Command{
	Use:   "point",
	Short: "Find the service area covering a point",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, closer, err := queryEngine(cmd)
		if err != nil {
			return err
		}
		defer closer()

		f, ok, err := eng.PointQuery(queryLng, queryLat)
		if err != nil {
			return err
		}
		if !ok {
			return printJSON(map[string]any{"covered": false})
		}
		return printJSON(map[string]any{"covered": true, "face": f})
	},
}

var queryRangeCmd = &cobra.Command{
	Use:   "range",
	Short: "List service areas intersecting a bounding box",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, closer, err := queryEngine(cmd)
		if err != nil {
			return err
		}
		defer closer()

		faces, err := eng.RangeQuery(queryMinLng, queryMinLat, queryMaxLng, queryMaxLat)
		if err != nil {
			return err
		}
		return printJSON(faces)
	},
}

var queryNearestCmd = &cobra.Command{
	Use:   "nearest",
	Short: "Rank the k nearest facilities to a point",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, closer, err := queryEngine(cmd)
		if err != nil {
			return err
		}
		defer closer()

		faces, err := eng.KNearest(queryLng, queryLat, queryK)
		if err != nil {
			return err
		}
		return printJSON(faces)
	},
}

var queryAdjacentCmd = &cobra.Command{
	Use:   "adjacent",
	Short: "List the neighbors of a service area",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, closer, err := queryEngine(cmd)
		if err != nil {
			return err
		}
		defer closer()

		faces, err := eng.Adjacent(queryFaceID)
		if err != nil {
			return err
		}
		return printJSON(faces)
	},
}

var queryTopCmd = &cobra.Command{
	Use:   "top",
	Short: "Rank service areas by served population",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, closer, err := queryEngine(cmd)
		if err != nil {
			return err
		}
		defer closer()

		faces, err := eng.TopByPopulation(queryN)
		if err != nil {
			return err
		}
		return printJSON(faces)
	},
}

func init() {
	queryCmd.PersistentFlags().StringVar(&querySeeds, "seeds", "", "facility seeds JSON file (required)")
	queryCmd.PersistentFlags().StringVar(&queryRegion, "region", "nationwide", "boundary selector")
	queryCmd.PersistentFlags().StringVar(&queryDataset, "dataset", "", "boundary dataset from the registry")
	_ = queryCmd.MarkPersistentFlagRequired("seeds")

	queryPointCmd.Flags().Float64Var(&queryLng, "lng", 0, "longitude")
	queryPointCmd.Flags().Float64Var(&queryLat, "lat", 0, "latitude")

	queryRangeCmd.Flags().Float64Var(&queryMinLng, "min-lng", 0, "west edge")
	queryRangeCmd.Flags().Float64Var(&queryMinLat, "min-lat", 0, "south edge")
	queryRangeCmd.Flags().Float64Var(&queryMaxLng, "max-lng", 0, "east edge")
	queryRangeCmd.Flags().Float64Var(&queryMaxLat, "max-lat", 0, "north edge")

	queryNearestCmd.Flags().Float64Var(&queryLng, "lng", 0, "longitude")
	queryNearestCmd.Flags().Float64Var(&queryLat, "lat", 0, "latitude")
	queryNearestCmd.Flags().IntVar(&queryK, "k", 3, "number of facilities")

	queryAdjacentCmd.Flags().IntVar(&queryFaceID, "face", 0, "face id")

	queryTopCmd.Flags().IntVar(&queryN, "n", 5, "number of service areas")

	queryCmd.AddCommand(queryPointCmd, queryRangeCmd, queryNearestCmd, queryAdjacentCmd, queryTopCmd)
	rootCmd.AddCommand(queryCmd)
}
