package risk

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roeimichael/VarProject/internal/contracts"
)

func holding(symbol, sector string, pct float64, q contracts.QualityTier) contracts.EnrichedHolding {
	return contracts.EnrichedHolding{
		Holding: contracts.Holding{
			Symbol:              symbol,
			Side:                contracts.SideLong,
			PortfolioPercentage: pct,
			Sector:              sector,
		},
		Quality: q,
	}
}

func ruleIDs(findings []contracts.Finding) []string {
	ids := make([]string, len(findings))
	for i, f := range findings {
		ids[i] = f.RuleID
	}
	return ids
}

func TestEvaluate_EndToEndExample(t *testing.T) {
	holdings := []contracts.EnrichedHolding{
		holding("AAPL", "Tech", 0.06, contracts.QualityGood),
		holding("MSFT", "Tech", 0.06, contracts.QualityGood),
		holding("GLD", "Commodity", 0.03, contracts.QualityMid),
	}
	limits := DefaultRiskLimits()
	limits.SectorConcentrationLimit = 0.1

	findings, err := NewRuleEngine().Evaluate(holdings, limits)
	require.NoError(t, err)

	assert.Equal(t, []string{RuleSectorConcentration, RulePositionSize, RulePositionSize}, ruleIDs(findings))
	assert.Equal(t, "Tech", findings[0].Subject)
	assert.InDelta(t, 0.12, findings[0].Value, 1e-9)
	assert.Equal(t, "Tech has too many open positions with 0.12", findings[0].Message)
	assert.Equal(t, "AAPL", findings[1].Subject)
	assert.Equal(t, "MSFT", findings[2].Subject)
	for _, f := range findings {
		assert.Equal(t, contracts.SeverityWarn, f.Severity)
	}
}

func TestEvaluate_QualityRatioExample(t *testing.T) {
	var holdings []contracts.EnrichedHolding
	add := func(n int, q contracts.QualityTier) {
		for i := 0; i < n; i++ {
			holdings = append(holdings, holding(string(q)+string(rune('A'+i)), "S"+string(rune('A'+len(holdings))), 0.01, q))
		}
	}
	add(3, contracts.QualityGood)
	add(5, contracts.QualityMid)
	add(2, contracts.QualityBad)

	findings, err := NewRuleEngine().Evaluate(holdings, DefaultRiskLimits())
	require.NoError(t, err)

	assert.Equal(t, []string{RuleQualityBad, RuleQualityRatio}, ruleIDs(findings))
	assert.Equal(t, float64(2), findings[0].Value)
	assert.InDelta(t, 0.375, findings[1].Value, 1e-12)
	assert.Contains(t, findings[1].Message, "under 40% of stocks are good and more than 60% are mid")
}

func TestEvaluate_QualityRatioSkippedWithoutGoodOrMid(t *testing.T) {
	holdings := []contracts.EnrichedHolding{
		holding("X", "A", 0.01, contracts.QualityUnknown),
		holding("Y", "B", 0.01, contracts.QualityUnknown),
	}

	findings, err := NewRuleEngine().Evaluate(holdings, DefaultRiskLimits())
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestEvaluate_CountAndExposure(t *testing.T) {
	var holdings []contracts.EnrichedHolding
	for i := 0; i < 25; i++ {
		holdings = append(holdings, holding(string(rune('A'+i)), string(rune('a'+i)), 0.054, contracts.QualityGood))
	}
	// Duplicate symbol differing only in case does not add to the count
	holdings = append(holdings, holding("a", "z", 0.01, contracts.QualityGood))

	limits := DefaultRiskLimits()
	limits.MaxSinglePositionPercentage = 0.06

	findings, err := NewRuleEngine().Evaluate(holdings, limits)
	require.NoError(t, err)

	require.Equal(t, []string{RulePositionCount, RuleTotalExposure}, ruleIDs(findings))
	assert.Equal(t, float64(25), findings[0].Value)
	assert.Equal(t, 1.36, findings[1].Value)
	assert.Equal(t, "portfolio isn't balanced, a risk of liquidation approaching 1.36", findings[1].Message)
}

func TestEvaluate_SectorsInNameOrder(t *testing.T) {
	holdings := []contracts.EnrichedHolding{
		holding("A", "Utilities", 0.04, contracts.QualityGood),
		holding("B", "Utilities", 0.04, contracts.QualityGood),
		holding("C", "Energy", 0.05, contracts.QualityGood),
		holding("D", "Energy", 0.05, contracts.QualityGood),
	}
	limits := DefaultRiskLimits()
	limits.SectorConcentrationLimit = 0.05

	findings, err := NewRuleEngine().Evaluate(holdings, limits)
	require.NoError(t, err)
	require.Len(t, findings, 2)
	assert.Equal(t, "Energy", findings[0].Subject)
	assert.Equal(t, "Utilities", findings[1].Subject)
}

func TestEvaluate_LeveragedLimit(t *testing.T) {
	lev := holding("TQQQ", "Tech", 0.08, contracts.QualityGood)
	lev.Extra = map[string]string{"Leveraged ": "Yes"}
	plain := holding("QQQ", "Index", 0.08, contracts.QualityGood)

	limits := DefaultRiskLimits()

	// Disabled: both use the base limit
	findings, err := NewRuleEngine().Evaluate([]contracts.EnrichedHolding{lev, plain}, limits)
	require.NoError(t, err)
	assert.Len(t, findings, 2)

	limits.LeveragedMaxSinglePositionPercentage = 0.09
	findings, err = NewRuleEngine().Evaluate([]contracts.EnrichedHolding{lev, plain}, limits)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "QQQ", findings[0].Subject)
}

func TestEvaluate_SchemaErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(h *contracts.EnrichedHolding)
		field  string
	}{
		{"empty symbol", func(h *contracts.EnrichedHolding) { h.Symbol = " " }, "Symbol"},
		{"empty sector", func(h *contracts.EnrichedHolding) { h.Sector = "" }, "Sector"},
		{"bad side", func(h *contracts.EnrichedHolding) { h.Side = "FLAT" }, "Position"},
		{"negative pct", func(h *contracts.EnrichedHolding) { h.PortfolioPercentage = -0.1 }, "PortfolioPercentage"},
		{"nan pct", func(h *contracts.EnrichedHolding) { h.PortfolioPercentage = math.NaN() }, "PortfolioPercentage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := holding("AAPL", "Tech", 0.01, contracts.QualityGood)
			tt.mutate(&h)

			_, err := NewRuleEngine().Evaluate([]contracts.EnrichedHolding{holding("MSFT", "Tech", 0.01, contracts.QualityGood), h}, DefaultRiskLimits())
			require.Error(t, err)
			assert.True(t, errors.Is(err, contracts.ErrSchema))

			var se *contracts.SchemaError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.field, se.Field)
			assert.Equal(t, 2, se.Row)
		})
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	holdings := []contracts.EnrichedHolding{
		holding("AAPL", "Tech", 0.3, contracts.QualityBad),
		holding("XOM", "Energy", 0.3, contracts.QualityMid),
		holding("CVX", "Energy", 0.3, contracts.QualityMid),
	}

	first, err := NewRuleEngine().Evaluate(holdings, DefaultRiskLimits())
	require.NoError(t, err)
	second, err := NewRuleEngine().Evaluate(holdings, DefaultRiskLimits())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRiskLimits_Validate(t *testing.T) {
	assert.NoError(t, DefaultRiskLimits().Validate())

	bad := DefaultRiskLimits()
	bad.MinGoodToTotalRatio = 1.5
	assert.ErrorIs(t, bad.Validate(), contracts.ErrInvalidInput)

	bad = DefaultRiskLimits()
	bad.MaxPositionCount = -1
	assert.ErrorIs(t, bad.Validate(), contracts.ErrInvalidInput)

	bad = DefaultRiskLimits()
	bad.SectorConcentrationLimit = math.Inf(1)
	assert.ErrorIs(t, bad.Validate(), contracts.ErrInvalidInput)
}
