package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	computeSeeds   string
	computeRegion  string
	computeDataset string
	computeFaces   bool
)

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Compute the coverage diagram for a set of facilities",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		seeds, err := loadSeeds(computeSeeds)
		if err != nil {
			return err
		}

		eng, closer, err := initEngine(ctx, computeDataset)
		if err != nil {
			return err
		}
		defer closer()

		d, err := eng.Compute(ctx, seeds, computeRegion)
		if err != nil {
			return eris.Wrap(err, "compute")
		}

		zap.L().Info("compute complete",
			zap.String("diagram_id", d.ID),
			zap.Int("faces", len(d.Faces)),
			zap.Int("notes", len(d.Notes)),
		)

		if computeFaces {
			return printJSON(d)
		}
		return printJSON(struct {
			ID      string `json:"id"`
			Summary any    `json:"summary"`
			Notes   any    `json:"notes,omitempty"`
		}{d.ID, d.Summarize(), d.Notes})
	},
}

func init() {
	computeCmd.Flags().StringVar(&computeSeeds, "seeds", "", "facility seeds JSON file (required)")
	computeCmd.Flags().StringVar(&computeRegion, "region", "nationwide", "boundary selector (\"nationwide\" or a subdivision name)")
	computeCmd.Flags().StringVar(&computeDataset, "dataset", "", "boundary dataset from the registry (default: first entry)")
	computeCmd.Flags().BoolVar(&computeFaces, "faces", false, "print the full face list instead of the summary")
	_ = computeCmd.MarkFlagRequired("seeds")
	rootCmd.AddCommand(computeCmd)
}
