package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/roeimichael/VarProject/internal/contracts"
	"github.com/roeimichael/VarProject/internal/portfolio"
	"github.com/roeimichael/VarProject/internal/varcache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the ticker risk cache",
	Long: `The ticker risk cache holds one VaR per ticker, ascending by VaR, with a
quality tier by rank: the lowest third GOOD, up to the 90th percentile MID,
the rest BAD.

Commands:
  list        print every cached ticker with its tier
  show        print one ticker
  reclassify  recompute every tier and rewrite the store
  warm        compute VaR for every ticker in a list`,
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached tickers (coloured by tier)",
	Long: `Example:
  go run ./cmd/varwatch cache list
  go run ./cmd/varwatch cache list --quality BAD
  go run ./cmd/varwatch cache list --json`,
	RunE: runCacheList,
}

var cacheShowCmd = &cobra.Command{
	Use:   "show SYMBOL",
	Short: "Show one cached ticker",
	Args:  cobra.ExactArgs(1),
	RunE:  runCacheShow,
}

var cacheReclassifyCmd = &cobra.Command{
	Use:   "reclassify",
	Short: "Recompute every tier and persist",
	RunE:  runCacheReclassify,
}

var cacheWarmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Compute VaR for every ticker in a list",
	Long: `Resolves every listed ticker through the same path as an evaluation:
cached tickers are skipped, new ones are fetched, estimated and inserted.
Tickers that fail are reported and left out of the cache.

The list defaults to TICKER_LIST_PATH: one symbol per line, # comments,
a CSV first column is accepted.

Example:
  go run ./cmd/varwatch cache warm
  go run ./cmd/varwatch cache warm --tickers sp500.txt`,
	RunE: runCacheWarm,
}

var (
	cacheQuality string
	cacheJSON    bool
	cacheTickers string
	cacheTimeout time.Duration
)

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheListCmd, cacheShowCmd, cacheReclassifyCmd, cacheWarmCmd)

	cacheListCmd.Flags().StringVar(&cacheQuality, "quality", "", "only GOOD, MID or BAD")
	cacheListCmd.Flags().BoolVar(&cacheJSON, "json", false, "print as JSON")
	cacheShowCmd.Flags().BoolVar(&cacheJSON, "json", false, "print as JSON")
	cacheWarmCmd.Flags().StringVar(&cacheTickers, "tickers", "", "ticker list file (default TICKER_LIST_PATH)")
	cacheWarmCmd.Flags().DurationVar(&cacheTimeout, "timeout", 0, "overall timeout (0 = none)")
}

func runCacheList(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(0)
	defer cancel()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	records := a.cache.Records()
	if cacheQuality != "" {
		tier := contracts.ParseQualityTier(cacheQuality)
		if tier == contracts.QualityUnknown {
			return fmt.Errorf("--quality must be GOOD, MID or BAD")
		}
		records = filterTier(records, tier)
	}

	if cacheJSON {
		return printJSON(records)
	}

	PrintHeader(fmt.Sprintf("Ticker risk cache (%s)", a.cache.Describe()))
	widths := []int{5, 10, 16, 8}
	PrintTableHeader([]string{"#", "Symbol", "VaR", "Quality"}, widths)
	for i, rec := range records {
		PrintTableRow([]string{
			fmt.Sprintf("%d", i+1),
			rec.Symbol,
			formatMoney(rec.VaR),
			colorTier(rec.Quality, widths[3]),
		}, widths)
	}
	PrintSeparator()
	printCounts(a.cache.Counts(), a.cache.Len())
	return nil
}

func runCacheShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(0)
	defer cancel()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	symbol := contracts.NormalizeSymbol(args[0])
	rec, ok := a.cache.Lookup(symbol)
	if !ok {
		return fmt.Errorf("%s is not cached (run `varwatch cache warm` or an evaluation to add it)", symbol)
	}

	if cacheJSON {
		return printJSON(rec)
	}

	PrintKeyValue("Symbol", rec.Symbol, 8)
	PrintKeyValue("VaR", formatMoney(rec.VaR), 8)
	PrintKeyValue("Quality", colorTier(rec.Quality, 0), 8)
	return nil
}

func runCacheReclassify(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(0)
	defer cancel()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.cache.Reclassify(ctx); err != nil {
		return err
	}

	PrintSuccess(fmt.Sprintf("Reclassified %d tickers in %s", a.cache.Len(), a.cache.Describe()))
	printCounts(a.cache.Counts(), a.cache.Len())
	return nil
}

func runCacheWarm(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cacheTimeout)
	defer cancel()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	path := cacheTickers
	if path == "" {
		path = a.cfg.Paths.TickerList
	}
	symbols, err := portfolio.LoadTickerList(path)
	if err != nil {
		return err
	}

	before := a.cache.Len()
	started := time.Now()
	PrintInfo(fmt.Sprintf("Warming %d tickers from %s", len(symbols), path))

	failures, err := a.enricher.Warm(ctx, symbols)
	if err != nil {
		return err
	}

	PrintSeparator()
	PrintSuccess(fmt.Sprintf("Added %d tickers in %s (cache size %d)",
		a.cache.Len()-before, time.Since(started).Round(time.Second), a.cache.Len()))
	if len(failures) > 0 {
		PrintWarning(fmt.Sprintf("%d bad ticker(s):", len(failures)))
		items := make([]string, len(failures))
		for i, f := range failures {
			items[i] = fmt.Sprintf("%s (%s): %v", f.Symbol, f.Stage, f.Err)
		}
		PrintList(items)
	}
	printCounts(a.cache.Counts(), a.cache.Len())
	return nil
}

func filterTier(records []varcache.Record, tier contracts.QualityTier) []varcache.Record {
	out := make([]varcache.Record, 0, len(records))
	for _, r := range records {
		if r.Quality == tier {
			out = append(out, r)
		}
	}
	return out
}

func printCounts(counts map[contracts.QualityTier]int, total int) {
	parts := []string{
		colorTier(contracts.QualityGood, 0) + fmt.Sprintf(" %d", counts[contracts.QualityGood]),
		colorTier(contracts.QualityMid, 0) + fmt.Sprintf(" %d", counts[contracts.QualityMid]),
		colorTier(contracts.QualityBad, 0) + fmt.Sprintf(" %d", counts[contracts.QualityBad]),
	}
	fmt.Printf("   %s  (total %d)\n", strings.Join(parts, "  "), total)
}

// formatMoney renders a VaR amount with two decimals
func formatMoney(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
