package main

import (
	"github.com/spf13/cobra"

	"github.com/delaycast/delaycast/internal/modelstore"
	"github.com/delaycast/delaycast/internal/training"
)

func newEvaluateCommand() *cobra.Command {
	var (
		csvPath string
		useDB   bool
	)
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score the stored model against labeled records",
		Long: `Evaluate replays labeled flight records through the stored model artifact
and reports accuracy, precision, recall, F1 and the confusion matrix.`,
		Example: `  delayctl evaluate --csv data/flights_2018.csv
  delayctl evaluate --db --model /var/lib/delaycast/model.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := newLogger()

			source, cleanup, err := resolveSource(ctx, csvPath, useDB, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			store := modelstore.NewFileStore(modelstore.FileStoreConfig{Path: modelPath, Logger: logger})
			svc := training.NewService(training.Config{Store: store, Logger: logger})

			eval, err := svc.Evaluate(ctx, source)
			if err != nil {
				return err
			}
			return printJSON(eval)
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "Evaluate against an operations feed CSV export")
	cmd.Flags().BoolVar(&useDB, "db", false, "Evaluate against the ingestion database (DB_* env)")
	return cmd
}
