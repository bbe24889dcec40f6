package alert

import (
	"strings"

	"github.com/roeimichael/VarProject/internal/contracts"
	"github.com/roeimichael/VarProject/internal/risk"
)

// Separator closes every rule group in a digest
const Separator = "-----------------------------------------"

// AllClear is the digest body when no rule fired
const AllClear = "|  all risk limits respected  |"

// groups lists the digest sections in rule evaluation order
var groups = [][]string{
	{risk.RuleSectorConcentration},
	{risk.RulePositionSize},
	{risk.RulePositionCount},
	{risk.RuleTotalExposure},
	{risk.RuleQualityBad, risk.RuleQualityRatio},
}

// Lines returns the finding messages in order
func Lines(findings []contracts.Finding) []string {
	lines := make([]string, len(findings))
	for i, f := range findings {
		lines[i] = f.Message
	}
	return lines
}

// FormatDigest renders findings as the framed chat digest:
// one "|  message  |" line per finding, each rule group closed by Separator.
func FormatDigest(findings []contracts.Finding) string {
	if len(findings) == 0 {
		return AllClear + "\n"
	}

	byRule := make(map[string][]contracts.Finding)
	for _, f := range findings {
		byRule[f.RuleID] = append(byRule[f.RuleID], f)
	}

	var sb strings.Builder
	known := make(map[string]bool)
	for _, g := range groups {
		for _, id := range g {
			known[id] = true
			for _, f := range byRule[id] {
				writeLine(&sb, f.Message)
			}
		}
		sb.WriteString(Separator)
		sb.WriteByte('\n')
	}

	// Rules outside the standard set go last, in input order
	var extra bool
	for _, f := range findings {
		if !known[f.RuleID] {
			writeLine(&sb, f.Message)
			extra = true
		}
	}
	if extra {
		sb.WriteString(Separator)
		sb.WriteByte('\n')
	}

	return sb.String()
}

func writeLine(sb *strings.Builder, msg string) {
	sb.WriteString("|  ")
	sb.WriteString(msg)
	sb.WriteString("  |\n")
}
