package limitsconfig

import (
	"fmt"
	"math"
)

// ValidationError rejects a profile
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning flags a legal but unusual setting
type Warning struct {
	Code    string
	Message string
}

// Validate checks all required constraints
func Validate(p *Profile) error {
	// === Meta ===
	if p.Meta.ProfileID == "" {
		return ValidationError{"meta.profile_id", "required"}
	}

	// === Limits ===
	l := p.Limits
	if err := validateFraction(l.SectorConcentration, "limits.sector_concentration"); err != nil {
		return err
	}
	if err := validateFraction(l.MaxSinglePosition, "limits.max_single_position"); err != nil {
		return err
	}
	if err := validateFraction(l.LeveragedMaxSinglePosition, "limits.leveraged_max_single_position"); err != nil {
		return err
	}
	if err := validateFraction(l.MinGoodRatio, "limits.min_good_ratio"); err != nil {
		return err
	}
	if l.MaxTotalExposure < 0 || math.IsNaN(l.MaxTotalExposure) || math.IsInf(l.MaxTotalExposure, 0) {
		return ValidationError{"limits.max_total_exposure", "must be a finite value >= 0"}
	}
	if l.MaxPositionCount < 0 {
		return ValidationError{"limits.max_position_count", "must be >= 0"}
	}
	if l.AllowedBadPositions < 0 {
		return ValidationError{"limits.allowed_bad_positions", "must be >= 0"}
	}

	return p.RiskLimits().Validate()
}

// Warn checks recommended constraints (non-fatal)
func Warn(p *Profile) []Warning {
	var warnings []Warning
	l := p.Limits

	if l.MaxSinglePosition > l.SectorConcentration {
		warnings = append(warnings, Warning{
			Code:    "POSITION_ABOVE_SECTOR",
			Message: "max_single_position > sector_concentration: a single holding can breach its sector limit",
		})
	}

	if l.LeveragedMaxSinglePosition > 0 && l.LeveragedMaxSinglePosition < l.MaxSinglePosition {
		warnings = append(warnings, Warning{
			Code:    "LEVERAGED_TIGHTER",
			Message: "leveraged_max_single_position < max_single_position",
		})
	}

	if l.MaxTotalExposure > 2 {
		warnings = append(warnings, Warning{
			Code:    "HIGH_EXPOSURE",
			Message: "max_total_exposure > 2.0: liquidation risk under a sharp drawdown",
		})
	}

	if l.MaxPositionCount == 0 {
		warnings = append(warnings, Warning{
			Code:    "ZERO_POSITIONS",
			Message: "max_position_count = 0: every non-empty portfolio is flagged",
		})
	}

	return warnings
}

// === Helper Functions ===

// validateFraction checks a value is in [0, 1]
func validateFraction(v float64, field string) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return ValidationError{field, "must be in range [0, 1]"}
	}
	return nil
}
