package commands

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/roeimichael/VarProject/internal/audit"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent evaluation runs (requires DATABASE_URL)",
	Long: `Example:
  go run ./cmd/varwatch history
  go run ./cmd/varwatch history --limit 50 --json`,
	RunE: runHistory,
}

var (
	historyLimit int
	historyJSON  bool
)

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of runs")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "print as JSON")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(30 * time.Second)
	defer cancel()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.runs == nil {
		return fmt.Errorf("run history requires DATABASE_URL")
	}

	runs, err := a.runs.ListRuns(ctx, historyLimit)
	if err != nil {
		return err
	}
	summary := audit.Summarize(runs)

	if historyJSON {
		return printJSON(map[string]interface{}{"runs": runs, "summary": summary})
	}

	PrintHeader("Evaluation history")
	widths := []int{36, 16, 8, 8, 8}
	PrintTableHeader([]string{"Run ID", "Started", "Holdings", "Findings", "Failures"}, widths)
	for _, r := range runs {
		PrintTableRow([]string{
			r.RunID,
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			fmt.Sprintf("%d", r.Holdings),
			fmt.Sprintf("%d", len(r.Findings)),
			fmt.Sprintf("%d", r.Failures),
		}, widths)
	}
	PrintSeparator()

	PrintKeyValue("Runs", fmt.Sprintf("%d (%d with findings)", summary.Runs, summary.RunsWithFindings), 14)
	rules := make([]string, 0, len(summary.FindingsByRule))
	for rule := range summary.FindingsByRule {
		rules = append(rules, rule)
	}
	sort.Strings(rules)
	for _, rule := range rules {
		PrintKeyValue(rule, fmt.Sprintf("%d", summary.FindingsByRule[rule]), 14)
	}
	if summary.LimitsChanged {
		PrintWarning("limits profile changed within this window")
	}
	return nil
}
