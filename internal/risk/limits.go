package risk

import (
	"fmt"
	"math"

	"github.com/roeimichael/VarProject/internal/contracts"
)

// RiskLimits are the portfolio thresholds the rule engine checks
// ⭐ SSOT: percentages are fractions of net liquidity (0.05 = 5%)
type RiskLimits struct {
	SectorConcentrationLimit    float64 `json:"sector_concentration_limit"`
	MaxSinglePositionPercentage float64 `json:"max_single_position_percentage"`
	// Applied instead of MaxSinglePositionPercentage to holdings flagged
	// Leveraged=Yes. Zero disables the distinction.
	LeveragedMaxSinglePositionPercentage float64 `json:"leveraged_max_single_position_percentage"`
	MaxPositionCount                     int     `json:"max_position_count"`
	MaxTotalExposure                     float64 `json:"max_total_exposure"` // may exceed 1.0 with leverage
	AllowedBadPositions                  int     `json:"allowed_bad_positions"`
	MinGoodToTotalRatio                  float64 `json:"min_good_to_total_ratio"` // GOOD / (GOOD + MID)
}

// DefaultRiskLimits returns the house limits
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		SectorConcentrationLimit:    0.2,
		MaxSinglePositionPercentage: 0.05,
		MaxPositionCount:            20,
		MaxTotalExposure:            1.3,
		AllowedBadPositions:         0,
		MinGoodToTotalRatio:         0.4,
	}
}

// Validate checks ranges
func (l RiskLimits) Validate() error {
	fractions := []struct {
		name  string
		value float64
	}{
		{"sector_concentration_limit", l.SectorConcentrationLimit},
		{"max_single_position_percentage", l.MaxSinglePositionPercentage},
		{"leveraged_max_single_position_percentage", l.LeveragedMaxSinglePositionPercentage},
		{"max_total_exposure", l.MaxTotalExposure},
		{"min_good_to_total_ratio", l.MinGoodToTotalRatio},
	}
	for _, f := range fractions {
		if f.value < 0 || math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %s must be a finite value >= 0", contracts.ErrInvalidInput, f.name)
		}
	}
	if l.MinGoodToTotalRatio > 1 {
		return fmt.Errorf("%w: min_good_to_total_ratio must be <= 1", contracts.ErrInvalidInput)
	}
	if l.MaxPositionCount < 0 {
		return fmt.Errorf("%w: max_position_count must be >= 0", contracts.ErrInvalidInput)
	}
	if l.AllowedBadPositions < 0 {
		return fmt.Errorf("%w: allowed_bad_positions must be >= 0", contracts.ErrInvalidInput)
	}
	return nil
}

// positionLimit picks the sizing limit for one holding
func (l RiskLimits) positionLimit(h contracts.Holding) float64 {
	if l.LeveragedMaxSinglePositionPercentage > 0 && IsLeveraged(h) {
		return l.LeveragedMaxSinglePositionPercentage
	}
	return l.MaxSinglePositionPercentage
}
