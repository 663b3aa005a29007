// Package main provides delayctl, the operations CLI for training,
// evaluating and inspecting DelayCast model artifacts.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/delaycast/delaycast/internal/database"
	"github.com/delaycast/delaycast/internal/flights"
)

// Version is set at compile time via ldflags.
var Version = "dev"

var (
	modelPath string
	verbose   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "delayctl",
		Short: "DelayCast CLI - train, evaluate and inspect delay models",
		Long: `delayctl manages DelayCast model artifacts from the command line.
Command output is structured JSON on stdout; logs go to stderr.`,
		Version: Version,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&modelPath, "model", "m", getDefaultModelPath(), "Model artifact path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	// Add subcommands
	rootCmd.AddCommand(newTrainCommand())
	rootCmd.AddCommand(newEvaluateCommand())
	rootCmd.AddCommand(newPredictCommand())
	rootCmd.AddCommand(newModelCommand())
	rootCmd.AddCommand(newTokenCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func getDefaultModelPath() string {
	if path := os.Getenv("MODEL_PATH"); path != "" {
		return path
	}
	return "data/model.json"
}

// newLogger builds the CLI logger. Logs go to stderr so stdout stays
// parseable; --verbose lowers the level from warn to debug.
func newLogger() zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(os.Stderr).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// resolveSource builds the flight record source shared by the train and
// evaluate commands. Exactly one of csvPath and useDB must be set. The
// returned cleanup function releases any connections held by the source.
func resolveSource(ctx context.Context, csvPath string, useDB bool, logger zerolog.Logger) (flights.Source, func(), error) {
	switch {
	case csvPath != "" && useDB:
		return nil, nil, fmt.Errorf("--csv and --db are mutually exclusive")
	case csvPath == "" && !useDB:
		return nil, nil, fmt.Errorf("either --csv or --db is required")
	case csvPath != "":
		return flights.NewCSVSource(csvPath, logger), func() {}, nil
	}

	pool, err := database.Connect(ctx, database.ConfigFromEnv())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return flights.NewPostgresRepository(pool), pool.Close, nil
}

// printJSON writes v to stdout as indented JSON. All commands use this as
// the primary output path.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
