package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	analyticsSeeds   string
	analyticsRegion  string
	analyticsDataset string
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Coverage analytics and planning recommendations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		seeds, err := loadSeeds(analyticsSeeds)
		if err != nil {
			return err
		}

		eng, closer, err := initEngine(ctx, analyticsDataset)
		if err != nil {
			return err
		}
		defer closer()

		if _, err := eng.Compute(ctx, seeds, analyticsRegion); err != nil {
			return eris.Wrap(err, "compute")
		}

		report, err := eng.Analytics()
		if err != nil {
			return err
		}
		return printJSON(report)
	},
}

func init() {
	analyticsCmd.Flags().StringVar(&analyticsSeeds, "seeds", "", "facility seeds JSON file (required)")
	analyticsCmd.Flags().StringVar(&analyticsRegion, "region", "nationwide", "boundary selector")
	analyticsCmd.Flags().StringVar(&analyticsDataset, "dataset", "", "boundary dataset from the registry")
	_ = analyticsCmd.MarkFlagRequired("seeds")
	rootCmd.AddCommand(analyticsCmd)
}
