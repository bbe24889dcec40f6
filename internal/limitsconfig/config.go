package limitsconfig

import (
	"github.com/roeimichael/VarProject/internal/risk"
	"github.com/roeimichael/VarProject/pkg/config"
)

// Profile is a named set of portfolio risk limits loaded from YAML
// ⭐ SSOT: struct field order is the canonical hash order
type Profile struct {
	Meta   Meta   `yaml:"meta" json:"meta"`
	Limits Limits `yaml:"limits" json:"limits"`
}

// Meta identifies the profile
type Meta struct {
	ProfileID   string `yaml:"profile_id" json:"profile_id"`
	Description string `yaml:"description" json:"description"`
}

// Limits mirrors risk.RiskLimits with YAML names
type Limits struct {
	SectorConcentration        float64 `yaml:"sector_concentration" json:"sector_concentration"`
	MaxSinglePosition          float64 `yaml:"max_single_position" json:"max_single_position"`
	LeveragedMaxSinglePosition float64 `yaml:"leveraged_max_single_position" json:"leveraged_max_single_position"`
	MaxPositionCount           int     `yaml:"max_position_count" json:"max_position_count"`
	MaxTotalExposure           float64 `yaml:"max_total_exposure" json:"max_total_exposure"`
	AllowedBadPositions        int     `yaml:"allowed_bad_positions" json:"allowed_bad_positions"`
	MinGoodRatio               float64 `yaml:"min_good_ratio" json:"min_good_ratio"`
}

// EnvProfileID names the profile built from environment variables
const EnvProfileID = "env"

// FromConfig builds a profile from the environment limits
func FromConfig(c config.LimitsConfig) *Profile {
	return &Profile{
		Meta: Meta{ProfileID: EnvProfileID, Description: "limits from environment"},
		Limits: Limits{
			SectorConcentration:        c.SectorPercentageLimit,
			MaxSinglePosition:          c.MaxPositionPercentage,
			LeveragedMaxSinglePosition: c.MaxLeveragedPercentage,
			MaxPositionCount:           c.MaxPortfolioSize,
			MaxTotalExposure:           c.MaxPortfolioExposure,
			AllowedBadPositions:        c.AllowedBadPositions,
			MinGoodRatio:               c.AllowedRatioGoodToTotal,
		},
	}
}

// RiskLimits converts the profile for the rule engine
func (p *Profile) RiskLimits() risk.RiskLimits {
	return risk.RiskLimits{
		SectorConcentrationLimit:             p.Limits.SectorConcentration,
		MaxSinglePositionPercentage:          p.Limits.MaxSinglePosition,
		LeveragedMaxSinglePositionPercentage: p.Limits.LeveragedMaxSinglePosition,
		MaxPositionCount:                     p.Limits.MaxPositionCount,
		MaxTotalExposure:                     p.Limits.MaxTotalExposure,
		AllowedBadPositions:                  p.Limits.AllowedBadPositions,
		MinGoodToTotalRatio:                  p.Limits.MinGoodRatio,
	}
}
