package varcache

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/roeimichael/VarProject/internal/contracts"
)

// Column names of the tabular cache
const (
	ColumnSymbol = "Symbol"
	ColumnVaR    = "Var"
	ColumnQual   = "Qual"
)

// CSVStore keeps the cache in a CSV file with a Symbol,Var,Qual header.
// Extra columns are tolerated on read and not written back.
type CSVStore struct {
	Path string
}

// NewCSVStore creates a CSV-backed store
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{Path: path}
}

// Describe names the backing file
func (s *CSVStore) Describe() string {
	return "csv:" + s.Path
}

// Load reads the file. A missing or empty file is an empty cache.
func (s *CSVStore) Load(ctx context.Context) ([]Record, error) {
	f, err := os.Open(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	defer f.Close()

	return readCSV(f, s.Path)
}

func readCSV(r io.Reader, source string) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, &contracts.CacheCorruptError{Source: source, Reason: err.Error()}
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		cols[h] = i
	}
	for _, required := range []string{ColumnSymbol, ColumnVaR, ColumnQual} {
		if _, ok := cols[required]; !ok {
			return nil, &contracts.CacheCorruptError{Source: source, Field: required, Reason: "missing column"}
		}
	}

	var records []Record
	for row := 1; ; row++ {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &contracts.CacheCorruptError{Source: source, Row: row, Reason: err.Error()}
		}

		get := func(col string) string {
			if i := cols[col]; i < len(fields) {
				return strings.TrimSpace(fields[i])
			}
			return ""
		}

		raw := get(ColumnVaR)
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, &contracts.CacheCorruptError{Source: source, Row: row, Field: ColumnVaR, Reason: fmt.Sprintf("not a number: %q", raw)}
		}

		records = append(records, Record{
			Symbol:  get(ColumnSymbol),
			VaR:     v,
			Quality: contracts.ParseQualityTier(get(ColumnQual)),
		})
	}
	return records, nil
}

// Save atomically rewrites the file
func (s *CSVStore) Save(ctx context.Context, records []Record) error {
	return writeFileAtomic(s.Path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{ColumnSymbol, ColumnVaR, ColumnQual}); err != nil {
			return err
		}
		for _, r := range records {
			if err := cw.Write([]string{r.Symbol, strconv.FormatFloat(r.VaR, 'f', -1, 64), string(r.Quality)}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}
