package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/agenthands/examina/internal/core/model"
)

var clusterJSON bool

var clusterCmd = &cobra.Command{
	Use:   "cluster <items.json>",
	Short: "Deduplicate a batch of knowledge items",
	Long: `Read a JSON array of knowledge items, decide every pair and print the
resulting clusters. Decisions and accepted training examples are persisted.

Each item looks like:
  {"id": "42", "name": "Moore Machine", "description": "...", "category": "automata"}`,
	Args: cobra.ExactArgs(1),
	RunE: runCluster,
}

func init() {
	clusterCmd.Flags().BoolVar(&clusterJSON, "json", false, "print the full run report as JSON")
}

func runCluster(cmd *cobra.Command, args []string) error {
	var items []model.KnowledgeItem
	if err := readJSONFile(args[0], &items); err != nil {
		return err
	}

	ctx := cmd.Context()
	e, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer closeEngine(cmd, e)

	report, err := e.Dedupe(ctx, items)
	if err != nil {
		return fmt.Errorf("dedupe: %w", err)
	}
	if clusterJSON {
		return writeJSON(cmd, report)
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	names := make(map[string]string, len(items))
	for _, it := range items {
		names[it.Key()] = it.Name
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n", cyan(fmt.Sprintf("%d clusters from %d items", len(report.Clusters), report.Items)))
	for _, c := range report.Clusters {
		fmt.Fprintf(out, "\n%s\n", c.CanonicalName)
		for _, id := range c.Members {
			fmt.Fprintf(out, "  - %s %s\n", names[id], gray("("+id+")"))
		}
	}
	if len(report.Splits) > 0 {
		fmt.Fprintf(out, "\n%s\n", yellow(fmt.Sprintf("%d clusters have weak bridges worth a second look", len(report.Splits))))
	}
	fmt.Fprintf(out, "\n%s\n", gray(fmt.Sprintf("pairs %d  judge %d  classifier %d  inferred %d  oracle %d (failed %d)  accepted %d  rejected %d",
		report.Pairs, report.JudgeDecisions, report.ClassifierDecisions, report.InferredPairs,
		report.OracleCalls, report.OracleFailures, report.Accepted, report.Rejected)))
	return nil
}
