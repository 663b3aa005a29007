package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/delaycast/delaycast/internal/classifier"
	"github.com/delaycast/delaycast/internal/modelstore"
	"github.com/delaycast/delaycast/internal/training"
)

func newTrainCommand() *cobra.Command {
	var (
		csvPath      string
		useDB        bool
		out          string
		testFraction float64
		seed         int64
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a delay model and save the artifact",
		Long: `Train fits a logistic regression on historical flight records from a CSV
export or the ingestion database, scores it on a held-out split, and writes
the model artifact to --out.`,
		Example: `  delayctl train --csv data/flights_2017.csv
  delayctl train --db --out /var/lib/delaycast/model.json
  delayctl train --csv data/flights_2017.csv --test-fraction 0.2 --seed 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if testFraction <= 0 || testFraction >= 1 {
				return fmt.Errorf("--test-fraction must be between 0 and 1 exclusive")
			}

			ctx := cmd.Context()
			logger := newLogger()

			source, cleanup, err := resolveSource(ctx, csvPath, useDB, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			store := modelstore.NewFileStore(modelstore.FileStoreConfig{Path: out, Logger: logger})
			svc := training.NewService(training.Config{
				Store:        store,
				Logger:       logger,
				TestFraction: testFraction,
				Seed:         seed,
			})

			summary, err := svc.Train(ctx, source)
			if err != nil {
				return err
			}

			return printJSON(map[string]interface{}{
				"artifact":   out,
				"rows":       summary.Rows,
				"train_rows": summary.TrainRows,
				"test_rows":  summary.TestRows,
				"delayed":    summary.Delayed,
				"delay_rate": summary.DelayRate,
				"metrics":    summary.Metrics,
				"duration":   summary.Duration.Round(time.Millisecond).String(),
			})
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "Train from an operations feed CSV export")
	cmd.Flags().BoolVar(&useDB, "db", false, "Train from the ingestion database (DB_* env)")
	cmd.Flags().StringVarP(&out, "out", "o", getDefaultModelPath(), "Artifact output path")
	cmd.Flags().Float64Var(&testFraction, "test-fraction", training.DefaultTestFraction, "Held-out share for evaluation")
	cmd.Flags().Int64Var(&seed, "seed", classifier.DefaultSeed, "Seed for the train/test shuffle")
	return cmd
}
