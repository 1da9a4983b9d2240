package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/agenthands/examina/internal/core/classifier"
	"github.com/agenthands/examina/internal/core/model"
)

var (
	exportOutput  string
	importReplace bool
)

var trainCmd = &cobra.Command{
	Use:   "train [records.json]",
	Short: "Refit the committee, optionally after importing records",
	Long: `Refit the committee classifier on the stored training set. When a file is
given, its records are imported first.

Records use the export format: [{"features": [7 numbers], "label": 0|1}, ...]`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTrain,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the training set as JSON",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <records.json>",
	Short: "Append training records",
	Long: `Append training records. One malformed record rejects the whole file.

With --replace the file becomes the whole training set; malformed records are
skipped with a warning.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default stdout)")
	importCmd.Flags().BoolVar(&importReplace, "replace", false, "replace the stored training set")
}

func runTrain(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer closeEngine(cmd, e)

	if len(args) == 1 {
		var records []model.TrainingRecord
		if err := readJSONFile(args[0], &records); err != nil {
			return err
		}
		if _, err := e.ImportTraining(ctx, records); err != nil {
			return fmt.Errorf("import: %w", err)
		}
	}

	stats, err := e.Train(ctx)
	if errors.Is(err, classifier.ErrInsufficientData) {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Fprintf(cmd.OutOrStdout(), "%s %v\n", yellow("not trained:"), err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}

	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s committee of %d on %d samples (%d positive, %d negative)\n",
		green("trained"), stats.Backend, stats.CommitteeSize, stats.TrainingSamples, stats.Positives, stats.Negatives)
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer closeEngine(cmd, e)

	records := e.ExportTraining()
	if exportOutput == "" {
		return writeJSON(cmd, records)
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(exportOutput, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", exportOutput, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "exported %d records to %s\n", len(records), exportOutput)
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	var records []model.TrainingRecord
	if err := readJSONFile(args[0], &records); err != nil {
		return err
	}

	ctx := cmd.Context()
	e, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer closeEngine(cmd, e)

	if importReplace {
		n, err := e.LoadTraining(ctx, records)
		if err != nil {
			return fmt.Errorf("load: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "training set replaced with %d records\n", n)
		return nil
	}
	n, err := e.ImportTraining(ctx, records)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d records\n", n)
	return nil
}
