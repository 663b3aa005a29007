package main

import (
	"github.com/spf13/cobra"

	"github.com/delaycast/delaycast/internal/modelstore"
)

func newModelCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Inspect model artifacts",
	}
	cmd.AddCommand(newModelShowCommand())
	return cmd
}

func newModelShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the stored model artifact",
		Long:  "Prints the artifact with its coefficients, training metadata and held-out metrics",
		Example: `  delayctl model show
  delayctl model show --model /var/lib/delaycast/model.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			store := modelstore.NewFileStore(modelstore.FileStoreConfig{Path: modelPath, Logger: logger})
			artifact, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(artifact)
		},
	}
}
