package portfolio

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/roeimichael/VarProject/internal/contracts"
)

// =============================================================================
// Snapshot columns
// =============================================================================

// Canonical field names used in SchemaError.Field
const (
	FieldSymbol     = "Symbol"
	FieldPosition   = "Position"
	FieldPercentage = "PortfolioPercentage"
	FieldSector     = "Sector"
	FieldAmount     = "Amount"
)

// headerAliases maps a lower-cased, space-free header to its canonical field.
// "protfilioprecentage" is the spreadsheet header of the broker export.
var headerAliases = map[string]string{
	"symbol":              FieldSymbol,
	"ticker":              FieldSymbol,
	"financialinstrument": FieldSymbol,
	"position":            FieldPosition,
	"side":                FieldPosition,
	"type":                FieldPosition,
	"portfoliopercentage": FieldPercentage,
	"protfilioprecentage": FieldPercentage,
	"percentage":          FieldPercentage,
	"sector":              FieldSector,
	"amount":              FieldAmount,
}

// Options control snapshot parsing
type Options struct {
	// NetLiquidity derives PortfolioPercentage from Amount when the
	// percentage column is absent. Zero disables the derivation.
	NetLiquidity float64
}

// LoadCSV reads a portfolio snapshot file
func LoadCSV(path string, opts Options) ([]contracts.Holding, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	return ReadCSV(f, path, opts)
}

// ReadCSV parses a snapshot with a header row.
// Required: Symbol, Position, PortfolioPercentage, Sector. Position and
// PortfolioPercentage may be derived from Amount (see Options).
// Unrecognized columns pass through in Holding.Extra.
func ReadCSV(r io.Reader, source string, opts Options) ([]contracts.Holding, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &contracts.SchemaError{Source: source, Field: FieldSymbol, Reason: "empty snapshot"}
	}
	if err != nil {
		return nil, &contracts.SchemaError{Source: source, Reason: err.Error()}
	}

	cols := make(map[string]int)
	extras := make(map[int]string)
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" || strings.HasPrefix(h, "Unnamed") {
			continue
		}
		key := strings.ToLower(strings.ReplaceAll(h, " ", ""))
		if field, ok := headerAliases[key]; ok {
			if _, dup := cols[field]; !dup {
				cols[field] = i
				continue
			}
		}
		extras[i] = h
	}

	_, hasAmount := cols[FieldAmount]
	required := []string{FieldSymbol, FieldSector}
	if !hasAmount {
		required = append(required, FieldPosition)
	}
	if !hasAmount || opts.NetLiquidity <= 0 {
		required = append(required, FieldPercentage)
	}
	for _, field := range required {
		if _, ok := cols[field]; !ok {
			return nil, &contracts.SchemaError{Source: source, Field: field, Reason: "missing column"}
		}
	}

	var holdings []contracts.Holding
	for row := 1; ; row++ {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &contracts.SchemaError{Source: source, Row: row, Reason: err.Error()}
		}
		if blankRow(fields) {
			continue
		}

		h, err := parseRow(fields, cols, extras, source, row, opts)
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, h)
	}
	return holdings, nil
}

func parseRow(fields []string, cols map[string]int, extras map[int]string, source string, row int, opts Options) (contracts.Holding, error) {
	get := func(field string) (string, bool) {
		i, ok := cols[field]
		if !ok || i >= len(fields) {
			return "", false
		}
		return strings.TrimSpace(fields[i]), true
	}
	schemaErr := func(field, reason string) error {
		return &contracts.SchemaError{Source: source, Row: row, Field: field, Reason: reason}
	}

	var h contracts.Holding

	sym, _ := get(FieldSymbol)
	h.Symbol = contracts.NormalizeSymbol(sym)

	h.Sector, _ = get(FieldSector)

	hasAmount := false
	if raw, ok := get(FieldAmount); ok && raw != "" {
		amount, err := parseNumber(raw)
		if err != nil {
			return h, schemaErr(FieldAmount, err.Error())
		}
		h.Amount = amount
		hasAmount = true
	}

	if raw, ok := get(FieldPosition); ok && raw != "" {
		side, valid := contracts.ParsePositionSide(raw)
		if !valid {
			return h, schemaErr(FieldPosition, fmt.Sprintf("must be LONG or SHORT, got %q", raw))
		}
		h.Side = side
	} else if hasAmount {
		h.Side = SideFromAmount(h.Amount)
	}

	if raw, ok := get(FieldPercentage); ok && raw != "" {
		pct, err := parseNumber(raw)
		if err != nil {
			return h, schemaErr(FieldPercentage, err.Error())
		}
		h.PortfolioPercentage = pct
	} else if hasAmount && opts.NetLiquidity > 0 {
		h.PortfolioPercentage = PercentageOf(h.Amount, opts.NetLiquidity)
	} else {
		return h, schemaErr(FieldPercentage, "empty")
	}

	for i, name := range extras {
		if i < len(fields) {
			if h.Extra == nil {
				h.Extra = make(map[string]string, len(extras))
			}
			h.Extra[name] = strings.TrimSpace(fields[i])
		}
	}

	if err := ValidateHolding(h, source, row); err != nil {
		return h, err
	}
	return h, nil
}

// HoldingInput is a holding as submitted over the API. Pointer fields
// tell a missing value apart from zero.
type HoldingInput struct {
	Symbol              string            `json:"symbol"`
	Position            string            `json:"position"`
	Amount              *float64          `json:"amount,omitempty"`
	PortfolioPercentage *float64          `json:"portfolio_percentage"`
	Sector              string            `json:"sector"`
	Extra               map[string]string `json:"extra,omitempty"`
}

// FromInputs converts API input to holdings. A missing percentage is a
// SchemaError; it is never read as zero.
func FromInputs(inputs []HoldingInput, source string) ([]contracts.Holding, error) {
	holdings := make([]contracts.Holding, len(inputs))
	for i, in := range inputs {
		if in.PortfolioPercentage == nil {
			return nil, &contracts.SchemaError{Source: source, Row: i + 1, Field: FieldPercentage, Reason: "missing"}
		}
		h := contracts.Holding{
			Symbol:              in.Symbol,
			Side:                contracts.PositionSide(in.Position),
			PortfolioPercentage: *in.PortfolioPercentage,
			Sector:              in.Sector,
			Extra:               in.Extra,
		}
		if in.Amount != nil {
			h.Amount = *in.Amount
		}
		holdings[i] = h
	}
	return Normalize(holdings, source)
}

// Normalize upper-cases symbols and validates holdings decoded from JSON
func Normalize(holdings []contracts.Holding, source string) ([]contracts.Holding, error) {
	out := make([]contracts.Holding, len(holdings))
	for i, h := range holdings {
		h.Symbol = contracts.NormalizeSymbol(h.Symbol)
		h.Sector = strings.TrimSpace(h.Sector)
		if side, ok := contracts.ParsePositionSide(string(h.Side)); ok {
			h.Side = side
		}
		if err := ValidateHolding(h, source, i+1); err != nil {
			return nil, err
		}
		out[i] = h
	}
	return out, nil
}

// ValidateHolding checks the required fields of one holding
func ValidateHolding(h contracts.Holding, source string, row int) error {
	switch {
	case h.Symbol == "":
		return &contracts.SchemaError{Source: source, Row: row, Field: FieldSymbol, Reason: "empty"}
	case h.Sector == "":
		return &contracts.SchemaError{Source: source, Row: row, Field: FieldSector, Reason: "empty"}
	case h.Side != contracts.SideLong && h.Side != contracts.SideShort:
		return &contracts.SchemaError{Source: source, Row: row, Field: FieldPosition, Reason: fmt.Sprintf("must be LONG or SHORT, got %q", h.Side)}
	case h.PortfolioPercentage < 0 || math.IsNaN(h.PortfolioPercentage) || math.IsInf(h.PortfolioPercentage, 0):
		return &contracts.SchemaError{Source: source, Row: row, Field: FieldPercentage, Reason: fmt.Sprintf("must be a finite value >= 0, got %v", h.PortfolioPercentage)}
	}
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

// PercentageOf is the share of net liquidity held in a position, sign dropped
func PercentageOf(amount, netLiquidity float64) float64 {
	if netLiquidity <= 0 {
		return 0
	}
	return math.Abs(amount) / netLiquidity
}

// SideFromAmount derives the position side from a signed amount
func SideFromAmount(amount float64) contracts.PositionSide {
	if amount < 0 {
		return contracts.SideShort
	}
	return contracts.SideLong
}

// parseNumber accepts thousands separators and a trailing percent sign
func parseNumber(raw string) (float64, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	scale := 1.0
	if strings.HasSuffix(s, "%") {
		s = strings.TrimSuffix(s, "%")
		scale = 0.01
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", raw)
	}
	return v * scale, nil
}

func blankRow(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// ReadTickerList reads one symbol per line, skipping blanks and # comments.
// Symbols are normalized and de-duplicated, first occurrence wins.
func ReadTickerList(r io.Reader) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// tolerate a CSV first column
		if i := strings.IndexByte(line, ','); i >= 0 {
			line = line[:i]
		}
		sym := contracts.NormalizeSymbol(line)
		if sym == "" || sym == "SYMBOL" || sym == "TICKER" {
			continue
		}
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out, sc.Err()
}

// LoadTickerList reads a ticker list file
func LoadTickerList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ticker list: %w", err)
	}
	defer f.Close()

	return ReadTickerList(f)
}
