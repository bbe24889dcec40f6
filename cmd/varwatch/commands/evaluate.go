package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roeimichael/VarProject/internal/monitor"
	"github.com/roeimichael/VarProject/internal/portfolio"
)

// errFindings makes the process exit non-zero under --fail-on-findings
var errFindings = errors.New("risk limits breached")

// evaluateCmd represents the evaluate command
var evaluateCmd = &cobra.Command{
	Use:   "evaluate [snapshot.csv]",
	Short: "Check a portfolio snapshot against the risk limits",
	Long: `Enriches every holding with its cached VaR quality tier (fetching and
caching tickers seen for the first time), runs the portfolio rules and prints
the alert digest.

The snapshot defaults to FINISHED_PORTFOLIO_PATH. Required columns:
Symbol, Position, PortfolioPercentage (or "Protfilio Precentage"), Sector.
With --net-liquidity, an Amount column can replace Position and the percentage.

Example:
  go run ./cmd/varwatch evaluate
  go run ./cmd/varwatch evaluate data/finished.csv --json
  go run ./cmd/varwatch evaluate broker.csv --net-liquidity 294000 --fail-on-findings`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEvaluate,
}

var (
	evalJSON           bool
	evalNetLiquidity   float64
	evalFailOnFindings bool
	evalTimeout        time.Duration
)

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().BoolVar(&evalJSON, "json", false, "print the full report as JSON")
	evaluateCmd.Flags().Float64Var(&evalNetLiquidity, "net-liquidity", 0, "derive percentages from Amount (default NET_LIQUIDITY when Amount is present)")
	evaluateCmd.Flags().BoolVar(&evalFailOnFindings, "fail-on-findings", false, "exit non-zero when any rule fires")
	evaluateCmd.Flags().DurationVar(&evalTimeout, "timeout", 10*time.Minute, "overall timeout (0 = none)")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(evalTimeout)
	defer cancel()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	path := a.cfg.Paths.FinishedPortfolio
	if len(args) == 1 {
		path = args[0]
	}

	netLiq := evalNetLiquidity
	if netLiq == 0 {
		netLiq = a.cfg.VaR.NetLiquidity
	}

	report, err := a.service.EvaluateFile(ctx, path, portfolio.Options{NetLiquidity: netLiq})
	if err != nil {
		return err
	}

	if evalJSON {
		if err := printJSON(report); err != nil {
			return err
		}
	} else {
		printReport(report)
	}

	if evalFailOnFindings && len(report.Findings) > 0 {
		return errFindings
	}
	return nil
}

func printReport(r *monitor.Report) {
	PrintHeader(fmt.Sprintf("Risk evaluation %s", r.StartedAt.Format("2006-01-02 15:04")))
	PrintKeyValue("Run ID", r.RunID, 10)
	PrintKeyValue("Snapshot", r.Source, 10)
	PrintKeyValue("Limits", fmt.Sprintf("%s (%s)", r.ProfileID, r.LimitsHash[:12]), 10)
	PrintKeyValue("Holdings", fmt.Sprintf("%d (symbols: %d cached, %d new)", len(r.Holdings), r.CacheHits, r.CacheMiss), 10)
	PrintSeparator()

	fmt.Print(r.Digest)

	if len(r.Failures) > 0 {
		fmt.Println()
		PrintWarning(fmt.Sprintf("%d ticker(s) have no VaR and count as UNKNOWN:", len(r.Failures)))
		items := make([]string, len(r.Failures))
		for i, f := range r.Failures {
			items[i] = fmt.Sprintf("%s (%s): %s", f.Symbol, f.Stage, f.Error)
		}
		PrintList(items)
	}

	fmt.Println()
	if len(r.Findings) == 0 {
		PrintSuccess("All risk limits respected")
	} else {
		PrintError(fmt.Sprintf("%d finding(s)", len(r.Findings)))
	}
}
