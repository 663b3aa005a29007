package main

import (
	"github.com/spf13/cobra"

	"github.com/delaycast/delaycast/internal/classifier"
	"github.com/delaycast/delaycast/internal/features"
	"github.com/delaycast/delaycast/internal/flights"
	"github.com/delaycast/delaycast/internal/modelstore"
)

func newPredictCommand() *cobra.Command {
	var (
		csvPath string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score flights from a CSV with the stored model",
		Long: `Predict encodes flights from a CSV export and scores them with the stored
model artifact. Output matches the serving API: {"predict": [0, 1, ...]},
one label per row in file order.`,
		Example: `  delayctl predict --csv data/upcoming.csv
  delayctl predict --csv data/upcoming.csv --limit 100 | jq '.predict'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := newLogger()

			store := modelstore.NewFileStore(modelstore.FileStoreConfig{Path: modelPath, Logger: logger})
			artifact, err := store.Load(ctx)
			if err != nil {
				return err
			}
			clf := classifier.New(classifier.Config{})
			if err := clf.Import(&artifact.Model); err != nil {
				return err
			}

			records, err := flights.NewCSVSource(csvPath, logger).List(ctx, flights.ListOptions{Limit: limit})
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return flights.ErrNoRecords
			}

			m, _, err := features.NewBuilder().Transform(records, false)
			if err != nil {
				return err
			}

			return printJSON(map[string]interface{}{"predict": clf.Predict(m)})
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "CSV export to score (required)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Score at most this many rows (0 = all)")
	cmd.MarkFlagRequired("csv")
	return cmd
}
