package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/roeimichael/VarProject/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// ═══════════════════════════════════════════════════════════

const (
	doubleLine = "═══════════════════════════════════════════════════════════"
	singleLine = "───────────────────────────────────────────────────────────"
)

// tierColors maps quality tiers to the spreadsheet fills: green, yellow, red
var tierColors = map[contracts.QualityTier]*color.Color{
	contracts.QualityGood:    color.New(color.FgGreen),
	contracts.QualityMid:     color.New(color.FgYellow),
	contracts.QualityBad:     color.New(color.FgRed),
	contracts.QualityUnknown: color.New(color.FgHiBlack),
}

// colorTier renders a tier label padded to width, in its tier colour
func colorTier(q contracts.QualityTier, width int) string {
	label := fmt.Sprintf("%-*s", width, string(q))
	if c, ok := tierColors[q]; ok {
		return c.Sprint(label)
	}
	return label
}

// PrintHeader prints a formatted section header
func PrintHeader(title string) {
	fmt.Println()
	fmt.Println(doubleLine)
	fmt.Printf("  %s\n", title)
	fmt.Println(singleLine)
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println(singleLine)
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println(doubleLine)
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Printf("⚠️  %s\n", message)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Printf("❌ %s\n", message)
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	fmt.Printf("ℹ️  %s\n", message)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	for i, col := range columns {
		fmt.Printf("%-*s", widths[i], col)
		if i < len(columns)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()

	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Println(strings.Repeat("─", totalWidth))
}

// PrintTableRow prints a table row; values may carry colour codes
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Printf("%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}

// PrintList prints a bulleted list
func PrintList(items []string) {
	for _, item := range items {
		fmt.Printf("   • %s\n", item)
	}
}

// writeJSON prints v as indented JSON
func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printJSON prints v as indented JSON to stdout
func printJSON(v interface{}) error {
	return writeJSON(os.Stdout, v)
}
