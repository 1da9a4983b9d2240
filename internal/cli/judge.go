package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/agenthands/examina/internal/core"
	"github.com/agenthands/examina/internal/llm"
)

var judgeThreshold float64

var judgeCmd = &cobra.Command{
	Use:   "judge <name-a> <name-b>",
	Short: "Decide whether two item names should merge",
	Long: `Run the similarity judge on two names. No stores are opened.

Examples:
  examina judge "Moore Machine" "Macchina di Moore"
  examina judge "Bode Plot" "Bode Diagram" --threshold 0.7`,
	Args: cobra.ExactArgs(2),
	RunE: runJudge,
}

func init() {
	judgeCmd.Flags().Float64VarP(&judgeThreshold, "threshold", "t", -1, "merge threshold (default: configured)")
}

func runJudge(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	llmClient, embedder, err := llm.NewClient(ctx, cfg.LLM, logger)
	if err != nil {
		return fmt.Errorf("init llm: %w", err)
	}
	e, err := core.NewEngine(cfg, core.Dependencies{LLM: llmClient, Embedder: embedder}, logger)
	if err != nil {
		return err
	}

	r := e.ShouldMerge(ctx, args[0], args[1], judgeThreshold)

	green := color.New(color.FgGreen, color.Bold).SprintFunc()
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	verdict := red("DO NOT MERGE")
	if r.ShouldMerge {
		verdict = green("MERGE")
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s  %q <-> %q\n", verdict, args[0], args[1])
	fmt.Fprintf(out, "  %s %.3f  %s %s\n", gray("score"), r.SimilarityScore, gray("reason"), r.Reason)
	return nil
}
