package risk

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/roeimichael/VarProject/internal/contracts"
)

// Rule identifiers, in evaluation order
const (
	RuleSectorConcentration = "sector_concentration"
	RulePositionSize        = "position_size"
	RulePositionCount       = "position_count"
	RuleTotalExposure       = "total_exposure"
	RuleQualityBad          = "quality_bad"
	RuleQualityRatio        = "quality_ratio"
)

// LeveragedColumn is the pass-through snapshot column marking leveraged products
const LeveragedColumn = "Leveraged"

// RuleEngine evaluates portfolio limits over an enriched snapshot
// ⭐ SSOT: pure and deterministic. Same holdings + limits → same findings
type RuleEngine struct{}

// NewRuleEngine creates a rule engine
func NewRuleEngine() *RuleEngine {
	return &RuleEngine{}
}

// Evaluate runs every rule and returns findings ordered
// sector → position size → count → exposure → quality.
// Malformed holdings return a *contracts.SchemaError naming the field.
func (e *RuleEngine) Evaluate(holdings []contracts.EnrichedHolding, limits RiskLimits) ([]contracts.Finding, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	if err := validateHoldings(holdings); err != nil {
		return nil, err
	}

	findings := make([]contracts.Finding, 0)
	findings = append(findings, checkSectors(holdings, limits)...)
	findings = append(findings, checkPositionSizes(holdings, limits)...)
	findings = append(findings, checkPositionCount(holdings, limits)...)
	findings = append(findings, checkTotalExposure(holdings, limits)...)
	findings = append(findings, checkQuality(holdings, limits)...)
	return findings, nil
}

// =============================================================================
// Rules
// =============================================================================

func checkSectors(holdings []contracts.EnrichedHolding, limits RiskLimits) []contracts.Finding {
	sums := make(map[string]float64)
	for _, h := range holdings {
		sums[h.Sector] += h.PortfolioPercentage
	}

	sectors := make([]string, 0, len(sums))
	for s := range sums {
		sectors = append(sectors, s)
	}
	sort.Strings(sectors)

	var out []contracts.Finding
	for _, sector := range sectors {
		total := sums[sector]
		if total > limits.SectorConcentrationLimit {
			out = append(out, warn(RuleSectorConcentration, sector, total,
				"%s has too many open positions with %s", sector, pct(total)))
		}
	}
	return out
}

func checkPositionSizes(holdings []contracts.EnrichedHolding, limits RiskLimits) []contracts.Finding {
	var out []contracts.Finding
	for _, h := range holdings {
		if h.PortfolioPercentage > limits.positionLimit(h.Holding) {
			out = append(out, warn(RulePositionSize, h.Symbol, h.PortfolioPercentage,
				"position of ticker %s is too big with size of %s", h.Symbol, pct(h.PortfolioPercentage)))
		}
	}
	return out
}

func checkPositionCount(holdings []contracts.EnrichedHolding, limits RiskLimits) []contracts.Finding {
	distinct := make(map[string]struct{}, len(holdings))
	for _, h := range holdings {
		distinct[contracts.NormalizeSymbol(h.Symbol)] = struct{}{}
	}

	count := len(distinct)
	if count <= limits.MaxPositionCount {
		return nil
	}
	return []contracts.Finding{warn(RulePositionCount, "", float64(count),
		"too many positions in portfolio, current amount: %d (limit %d)", count, limits.MaxPositionCount)}
}

func checkTotalExposure(holdings []contracts.EnrichedHolding, limits RiskLimits) []contracts.Finding {
	total := 0.0
	for _, h := range holdings {
		total += h.PortfolioPercentage
	}
	if total <= limits.MaxTotalExposure {
		return nil
	}

	rounded := decimal.NewFromFloat(total).Round(2)
	return []contracts.Finding{warn(RuleTotalExposure, "", rounded.InexactFloat64(),
		"portfolio isn't balanced, a risk of liquidation approaching %s", rounded.String())}
}

func checkQuality(holdings []contracts.EnrichedHolding, limits RiskLimits) []contracts.Finding {
	counts := CountTiers(holdings)
	good, mid, bad := counts[contracts.QualityGood], counts[contracts.QualityMid], counts[contracts.QualityBad]

	var out []contracts.Finding
	if bad > limits.AllowedBadPositions {
		out = append(out, warn(RuleQualityBad, "", float64(bad),
			"there are %d stocks with bad quality VaR in portfolio (allowed %d)", bad, limits.AllowedBadPositions))
	}

	// UNKNOWN and BAD stay out of the denominator
	if good+mid == 0 {
		return out
	}
	ratio := float64(good) / float64(good+mid)
	if ratio < limits.MinGoodToTotalRatio {
		minPct := decimal.NewFromFloat(limits.MinGoodToTotalRatio).Shift(2).Round(0)
		maxMid := decimal.NewFromInt(100).Sub(minPct)
		out = append(out, warn(RuleQualityRatio, "", ratio,
			"under %s%% of stocks are good and more than %s%% are mid (%d good, %d mid)",
			minPct.String(), maxMid.String(), good, mid))
	}
	return out
}

// =============================================================================
// Helpers
// =============================================================================

// CountTiers counts holdings per quality tier
func CountTiers(holdings []contracts.EnrichedHolding) map[contracts.QualityTier]int {
	counts := make(map[contracts.QualityTier]int, 4)
	for _, h := range holdings {
		counts[h.Quality]++
	}
	return counts
}

// IsLeveraged reports whether the snapshot flags the holding as leveraged
func IsLeveraged(h contracts.Holding) bool {
	for k, v := range h.Extra {
		if strings.EqualFold(strings.TrimSpace(k), LeveragedColumn) {
			return strings.EqualFold(strings.TrimSpace(v), "yes")
		}
	}
	return false
}

func validateHoldings(holdings []contracts.EnrichedHolding) error {
	for i, h := range holdings {
		row := i + 1
		switch {
		case strings.TrimSpace(h.Symbol) == "":
			return &contracts.SchemaError{Source: "snapshot", Row: row, Field: "Symbol", Reason: "empty"}
		case strings.TrimSpace(h.Sector) == "":
			return &contracts.SchemaError{Source: "snapshot", Row: row, Field: "Sector", Reason: "empty"}
		case h.Side != contracts.SideLong && h.Side != contracts.SideShort:
			return &contracts.SchemaError{Source: "snapshot", Row: row, Field: "Position", Reason: fmt.Sprintf("must be LONG or SHORT, got %q", h.Side)}
		case h.PortfolioPercentage < 0 || math.IsNaN(h.PortfolioPercentage) || math.IsInf(h.PortfolioPercentage, 0):
			return &contracts.SchemaError{Source: "snapshot", Row: row, Field: "PortfolioPercentage", Reason: fmt.Sprintf("must be a finite value >= 0, got %v", h.PortfolioPercentage)}
		}
	}
	return nil
}

func warn(ruleID, subject string, value float64, format string, args ...interface{}) contracts.Finding {
	return contracts.Finding{
		RuleID:   ruleID,
		Severity: contracts.SeverityWarn,
		Message:  fmt.Sprintf(format, args...),
		Subject:  subject,
		Value:    value,
	}
}

// pct renders a fraction for messages, rounded to 4 places
func pct(v float64) string {
	return decimal.NewFromFloat(v).Round(4).String()
}
