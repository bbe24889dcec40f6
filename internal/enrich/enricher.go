package enrich

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/roeimichael/VarProject/internal/contracts"
	"github.com/roeimichael/VarProject/internal/metrics"
	"github.com/roeimichael/VarProject/internal/risk"
	"github.com/roeimichael/VarProject/internal/varcache"
)

// Failure stages
const (
	StageFetch    = "fetch"
	StageEstimate = "estimate"
)

// Config holds the VaR parameters used for cache misses
type Config struct {
	InitialInvestment float64
	LookbackStart     time.Time
	Concurrency       int // parallel fetches for misses, 1 = sequential
}

// Failure records a symbol that could not be resolved
type Failure struct {
	Symbol string `json:"symbol"`
	Stage  string `json:"stage"`
	Err    error  `json:"-"`
}

// Error implements error
func (f Failure) Error() string {
	return fmt.Sprintf("%s: %s: %v", f.Symbol, f.Stage, f.Err)
}

// Unwrap returns the underlying error
func (f Failure) Unwrap() error {
	return f.Err
}

// Result is the outcome of one enrichment pass
type Result struct {
	Holdings []contracts.EnrichedHolding `json:"holdings"` // input order
	Failures []Failure                   `json:"failures"`
	Hits     int                         `json:"hits"`   // distinct symbols
	Misses   int                         `json:"misses"` // distinct symbols
}

// Enricher annotates holdings with cached VaR and tiers, filling misses
// from the price provider
// ⭐ SSOT: the only writer of the ticker risk cache during an evaluation
type Enricher struct {
	cache     *varcache.Cache
	provider  contracts.PriceSeriesProvider
	estimator *risk.Estimator
	cfg       Config
	metrics   *metrics.Registry
	log       zerolog.Logger
	now       func() time.Time
}

// New creates an enricher. m may be nil.
func New(cache *varcache.Cache, provider contracts.PriceSeriesProvider, estimator *risk.Estimator, cfg Config, m *metrics.Registry, log zerolog.Logger) *Enricher {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Enricher{
		cache:     cache,
		provider:  provider,
		estimator: estimator,
		cfg:       cfg,
		metrics:   m,
		log:       log.With().Str("component", "enrich").Logger(),
		now:       time.Now,
	}
}

// Enrich resolves every holding through the cache.
// Per-symbol failures become UNKNOWN holdings with VaR 0 and are reported in
// Result.Failures. Cache persistence errors and cancellation abort the pass.
func (e *Enricher) Enrich(ctx context.Context, holdings []contracts.Holding) (*Result, error) {
	res := &Result{Holdings: make([]contracts.EnrichedHolding, len(holdings))}

	// Hits and misses count distinct symbols; misses keep first-seen order
	var misses []string
	seen := make(map[string]struct{})
	for _, h := range holdings {
		sym := contracts.NormalizeSymbol(h.Symbol)
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}

		if _, ok := e.cache.Lookup(sym); ok {
			res.Hits++
			e.metrics.CacheHit()
			continue
		}
		misses = append(misses, sym)
		e.metrics.CacheMiss()
	}
	res.Misses = len(misses)

	failed, err := e.resolve(ctx, misses)
	if err != nil {
		return nil, err
	}

	// Re-look-up everything so tiers reflect the final population
	for i, h := range holdings {
		h.Symbol = contracts.NormalizeSymbol(h.Symbol)
		eh := contracts.EnrichedHolding{Holding: h, Quality: contracts.QualityUnknown}
		if rec, ok := e.cache.Lookup(h.Symbol); ok {
			eh.VaR = rec.VaR
			eh.Quality = rec.Quality
		}
		res.Holdings[i] = eh
	}

	for _, sym := range misses {
		if f, ok := failed[sym]; ok {
			res.Failures = append(res.Failures, f)
		}
	}

	e.log.Info().
		Int("holdings", len(holdings)).
		Int("hits", res.Hits).
		Int("misses", res.Misses).
		Int("failures", len(res.Failures)).
		Msg("enrichment complete")

	return res, nil
}

// Warm resolves a list of symbols into the cache without a portfolio.
// Returns the per-symbol failures.
func (e *Enricher) Warm(ctx context.Context, symbols []string) ([]Failure, error) {
	holdings := make([]contracts.Holding, len(symbols))
	for i, s := range symbols {
		holdings[i] = contracts.Holding{Symbol: s}
	}
	res, err := e.Enrich(ctx, holdings)
	if err != nil {
		return nil, err
	}
	return res.Failures, nil
}

// resolve fetches, estimates and inserts every missing symbol.
// Fetches run up to cfg.Concurrency at a time; inserts serialize on the cache lock.
func (e *Enricher) resolve(ctx context.Context, symbols []string) (map[string]Failure, error) {
	failures := make([]*Failure, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)

	for i, sym := range symbols {
		g.Go(func() error {
			f, err := e.resolveOne(gctx, sym)
			if err != nil {
				return err
			}
			failures[i] = f
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]Failure)
	for _, f := range failures {
		if f != nil {
			out[f.Symbol] = *f
		}
	}
	return out, nil
}

// resolveOne returns a Failure for per-symbol problems and an error only
// for conditions that must abort the pass
func (e *Enricher) resolveOne(ctx context.Context, symbol string) (*Failure, error) {
	to := e.now()
	series, err := e.provider.FetchPrices(ctx, symbol, e.cfg.LookbackStart, to)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return e.fail(symbol, StageFetch, err), nil
	}

	varValue, err := e.estimator.Estimate(e.cfg.InitialInvestment, []float64{1}, series.Closes())
	if err != nil {
		return e.fail(symbol, StageEstimate, err), nil
	}
	// Negative VaR means a strong positive drift: no loss at this confidence
	if varValue < 0 {
		varValue = 0
	}

	if err := e.cache.Insert(ctx, symbol, varValue); err != nil {
		if errors.Is(err, contracts.ErrInvalidInput) {
			return e.fail(symbol, StageEstimate, err), nil
		}
		return nil, err
	}
	return nil, nil
}

func (e *Enricher) fail(symbol, stage string, err error) *Failure {
	e.metrics.EnrichFailure(stage)
	e.log.Warn().
		Err(err).
		Str("symbol", symbol).
		Str("stage", stage).
		Msg("symbol degraded to UNKNOWN")
	return &Failure{Symbol: symbol, Stage: stage, Err: err}
}
