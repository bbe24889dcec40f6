package contracts

import (
	"strings"
	"time"
)

// NormalizeSymbol trims and upper-cases an instrument identifier
// ⭐ SSOT: every ingestion point (snapshot, cache, API) normalizes through here
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// =============================================================================
// Quality tiers
// =============================================================================

// QualityTier is a percentile bucket of per-ticker VaR
type QualityTier string

const (
	QualityGood    QualityTier = "GOOD"
	QualityMid     QualityTier = "MID"
	QualityBad     QualityTier = "BAD"
	QualityUnknown QualityTier = "UNKNOWN"
)

// ParseQualityTier maps a stored label to a tier.
// Blank or unrecognized labels become UNKNOWN.
func ParseQualityTier(s string) QualityTier {
	switch QualityTier(strings.ToUpper(strings.TrimSpace(s))) {
	case QualityGood:
		return QualityGood
	case QualityMid:
		return QualityMid
	case QualityBad:
		return QualityBad
	default:
		return QualityUnknown
	}
}

// IsValid reports whether q is one of the four known tiers
func (q QualityTier) IsValid() bool {
	switch q {
	case QualityGood, QualityMid, QualityBad, QualityUnknown:
		return true
	}
	return false
}

// =============================================================================
// Portfolio
// =============================================================================

// PositionSide is the direction of a holding
type PositionSide string

const (
	SideLong  PositionSide = "LONG"
	SideShort PositionSide = "SHORT"
)

// ParsePositionSide accepts LONG/SHORT case-insensitively
func ParsePositionSide(s string) (PositionSide, bool) {
	switch PositionSide(strings.ToUpper(strings.TrimSpace(s))) {
	case SideLong:
		return SideLong, true
	case SideShort:
		return SideShort, true
	}
	return "", false
}

// Holding is one row of a portfolio snapshot
// ⭐ SSOT: PortfolioPercentage = |Amount| / net liquidity, never negative
type Holding struct {
	Symbol              string            `json:"symbol"`
	Side                PositionSide      `json:"position"`
	Amount              float64           `json:"amount,omitempty"`
	PortfolioPercentage float64           `json:"portfolio_percentage"`
	Sector              string            `json:"sector"`
	Extra               map[string]string `json:"extra,omitempty"` // pass-through columns
}

// EnrichedHolding is a holding annotated with its cached VaR and tier
type EnrichedHolding struct {
	Holding
	VaR     float64     `json:"var"`
	Quality QualityTier `json:"quality"`
}

// =============================================================================
// Findings
// =============================================================================

// Severity of a rule finding
type Severity string

const (
	SeverityWarn Severity = "WARN"
)

// Finding is a single rule violation
type Finding struct {
	RuleID   string   `json:"rule_id"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Subject  string   `json:"subject,omitempty"` // sector or symbol the rule fired on
	Value    float64  `json:"value"`             // measured quantity
}

// =============================================================================
// Price history
// =============================================================================

// PricePoint is one daily close
type PricePoint struct {
	Date  time.Time `json:"date" msgpack:"d"`
	Close float64   `json:"close" msgpack:"c"`
}

// PriceSeries is the daily close history of one instrument, oldest first
type PriceSeries struct {
	Symbol string       `json:"symbol" msgpack:"s"`
	Points []PricePoint `json:"points" msgpack:"p"`
}

// Closes returns the closing prices in time order
func (ps PriceSeries) Closes() []float64 {
	closes := make([]float64, len(ps.Points))
	for i, p := range ps.Points {
		closes[i] = p.Close
	}
	return closes
}

// Len returns the number of observations
func (ps PriceSeries) Len() int {
	return len(ps.Points)
}
