package varcache

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/roeimichael/VarProject/internal/contracts"
)

// Record is one cached ticker
type Record struct {
	Symbol  string                `json:"symbol" msgpack:"symbol"`
	VaR     float64               `json:"var" msgpack:"var"`
	Quality contracts.QualityTier `json:"quality" msgpack:"qual"`
}

// Store persists the whole cache population
// ⭐ SSOT: Save must be atomic. Readers never observe a half-written cache
type Store interface {
	Load(ctx context.Context) ([]Record, error)
	Save(ctx context.Context, records []Record) error
	Describe() string
}

// Cache is the append-only ticker risk cache
// ⭐ SSOT: the only owner of per-ticker VaR and quality tiers
// Records are kept ascending by VaR. Every mutation reclassifies and persists.
type Cache struct {
	mu      sync.RWMutex
	store   Store
	records []Record
	index   map[string]int
	log     zerolog.Logger
}

// New creates an empty cache backed by store
func New(store Store, log zerolog.Logger) *Cache {
	return &Cache{
		store: store,
		index: make(map[string]int),
		log:   log.With().Str("component", "varcache").Logger(),
	}
}

// Load reads the store, validates it, and reclassifies the population.
// If any tier changed the corrected cache is written back before returning.
func Load(ctx context.Context, store Store, log zerolog.Logger) (*Cache, error) {
	c := New(store, log)

	records, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]int, len(records))
	for i := range records {
		row := i + 1
		r := &records[i]
		r.Symbol = contracts.NormalizeSymbol(r.Symbol)
		if r.Symbol == "" {
			return nil, &contracts.CacheCorruptError{Source: store.Describe(), Row: row, Field: "Symbol", Reason: "empty"}
		}
		if math.IsNaN(r.VaR) || math.IsInf(r.VaR, 0) || r.VaR < 0 {
			return nil, &contracts.CacheCorruptError{Source: store.Describe(), Row: row, Field: "Var", Reason: fmt.Sprintf("must be a finite value >= 0, got %v", r.VaR)}
		}
		if !r.Quality.IsValid() {
			r.Quality = contracts.QualityUnknown
		}
		if prev, dup := seen[r.Symbol]; dup {
			return nil, &contracts.CacheCorruptError{Source: store.Describe(), Row: row, Field: "Symbol", Reason: fmt.Sprintf("duplicate of row %d: %s", prev, r.Symbol)}
		}
		seen[r.Symbol] = row
	}

	c.records = records
	changed := classify(c.records)
	c.reindex()

	if changed {
		if err := c.store.Save(ctx, c.snapshot()); err != nil {
			return nil, fmt.Errorf("persist reclassified cache: %w", err)
		}
		c.log.Info().Int("records", len(c.records)).Msg("cache tiers corrected on load")
	}

	c.log.Debug().
		Str("store", store.Describe()).
		Int("records", len(c.records)).
		Msg("cache loaded")

	return c, nil
}

// Lookup returns the cached record for symbol
func (c *Cache) Lookup(symbol string) (Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.index[contracts.NormalizeSymbol(symbol)]
	if !ok {
		return Record{}, false
	}
	return c.records[i], true
}

// Insert adds a new ticker, reclassifies, and persists.
// Inserting a known symbol is a no-op. A failed persist rolls back the insertion.
func (c *Cache) Insert(ctx context.Context, symbol string, varValue float64) error {
	symbol = contracts.NormalizeSymbol(symbol)
	if symbol == "" {
		return fmt.Errorf("%w: empty symbol", contracts.ErrInvalidInput)
	}
	if math.IsNaN(varValue) || math.IsInf(varValue, 0) || varValue < 0 {
		return fmt.Errorf("%w: VaR for %s must be a finite value >= 0, got %v", contracts.ErrInvalidInput, symbol, varValue)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.index[symbol]; ok {
		return nil
	}

	prev := c.snapshot()
	c.records = append(c.records, Record{Symbol: symbol, VaR: varValue, Quality: contracts.QualityUnknown})
	classify(c.records)
	c.reindex()

	if err := c.store.Save(ctx, c.snapshot()); err != nil {
		c.records = prev
		c.reindex()
		return fmt.Errorf("persist cache after inserting %s: %w", symbol, err)
	}

	c.log.Debug().
		Str("symbol", symbol).
		Float64("var", varValue).
		Str("quality", string(c.records[c.index[symbol]].Quality)).
		Int("records", len(c.records)).
		Msg("cache insert")

	return nil
}

// Reclassify recomputes every tier and persists
func (c *Cache) Reclassify(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	classify(c.records)
	c.reindex()
	return c.persistLocked(ctx)
}

// Persist writes the current population to the store
func (c *Cache) Persist(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.persistLocked(ctx)
}

func (c *Cache) persistLocked(ctx context.Context) error {
	if err := c.store.Save(ctx, c.snapshot()); err != nil {
		return fmt.Errorf("persist cache: %w", err)
	}
	return nil
}

// Records returns a copy of the population, ascending by VaR
func (c *Cache) Records() []Record {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.snapshot()
}

// Len returns the population size
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.records)
}

// Counts returns the number of records per tier
func (c *Cache) Counts() map[contracts.QualityTier]int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	counts := make(map[contracts.QualityTier]int, 4)
	for _, r := range c.records {
		counts[r.Quality]++
	}
	return counts
}

// Describe names the backing store
func (c *Cache) Describe() string {
	return c.store.Describe()
}

func (c *Cache) snapshot() []Record {
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

func (c *Cache) reindex() {
	c.index = make(map[string]int, len(c.records))
	for i, r := range c.records {
		c.index[r.Symbol] = i
	}
}

// =============================================================================
// Classification
// =============================================================================

// Bands returns the tier boundaries for a population of n records:
// [0,goodEnd) GOOD, [goodEnd,badStart) MID, [badStart,n) BAD
func Bands(n int) (goodEnd, badStart int) {
	if n < 3 {
		return n, n
	}
	return n / 3, (9 * n) / 10
}

// TierAt returns the tier of the record at rank i in a population of n
func TierAt(i, n int) contracts.QualityTier {
	goodEnd, badStart := Bands(n)
	switch {
	case i < goodEnd:
		return contracts.QualityGood
	case i < badStart:
		return contracts.QualityMid
	default:
		return contracts.QualityBad
	}
}

// classify stable-sorts by VaR and rewrites every tier.
// Reports whether the order or any record's tier changed.
func classify(records []Record) bool {
	changed := !sort.SliceIsSorted(records, func(i, j int) bool {
		return records[i].VaR < records[j].VaR
	})
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].VaR < records[j].VaR
	})

	n := len(records)
	for i := range records {
		tier := TierAt(i, n)
		if records[i].Quality != tier {
			records[i].Quality = tier
			changed = true
		}
	}
	return changed
}
