// Package cli provides the examina command-line interface.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agenthands/examina/internal/config"
	"github.com/agenthands/examina/internal/core"
	"github.com/agenthands/examina/internal/logging"
)

var (
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "examina",
	Short: "Deduplicate knowledge items extracted from exercises",
	Long: `Examina decides which knowledge items denote the same concept.

A vocabulary-aware judge settles translations and known opposites, a
committee classifier learns from oracle verdicts, and a decision graph
turns pairwise decisions into clusters.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		var err error
		cfg, err = config.LoadOrDefault(configPath)
		if err != nil {
			return err
		}
		cfg.ApplyEnv()
		if verbose {
			cfg.Logging.Level = "debug"
			cfg.Logging.Development = true
		}
		logger, err = logging.New(cfg.Logging)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.toml", "config file (missing file means defaults)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(judgeCmd)
	rootCmd.AddCommand(clusterCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(serveCmd)
}

// openEngine opens the engine with its stores. The caller closes it.
func openEngine(ctx context.Context) (*core.Engine, error) {
	e, err := core.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open engine: %w", err)
	}
	return e, nil
}

func closeEngine(cmd *cobra.Command, e *core.Engine) {
	if err := e.Close(context.Background()); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to close stores: %v\n", err)
	}
}

func readJSONFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func writeJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
